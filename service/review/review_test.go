package review

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"github.com/KAsare1/Gigstage-server/db/dbtest"
	"github.com/KAsare1/Gigstage-server/service/apperr"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	organizerID uint = 1
	talentID    uint = 2
)

var completedAt = time.Date(2025, time.August, 10, 23, 0, 0, 0, time.UTC)

type fixture struct {
	conn  *gorm.DB
	svc   *Service
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{conn: dbtest.Open(t), clock: completedAt}
	timer := NewTimer(f.conn, nil, zap.NewNop())
	f.svc = NewService(f.conn, timer, zap.NewNop(), WithClock(func() time.Time { return f.clock }))
	dbtest.MustCreate(t, f.conn,
		&models.User{Model: gorm.Model{ID: organizerID}, FullName: "Ama Organizer", Email: "ama@example.com", Role: models.RoleOrganizer},
		&models.User{Model: gorm.Model{ID: talentID}, FullName: "Kofi Talent", Email: "kofi@example.com", Role: models.RoleTalent},
		&models.TalentProfile{UserID: talentID, StageName: "Kofi"},
	)
	return f
}

func (f *fixture) booking(t *testing.T, status models.BookingStatus, completed *time.Time) *models.Booking {
	t.Helper()
	b := &models.Booking{
		OrganizerID: organizerID, TalentID: talentID, EventID: 1,
		Amount: 1000, PlatformFee: 100, TalentAmount: 900, Currency: "KES",
		ProposedDate: completedAt.Add(-5 * time.Hour), Status: status, CompletedDate: completed,
	}
	dbtest.MustCreate(t, f.conn, b)
	return b
}

func (f *fixture) record(t *testing.T, b *models.Booking, giver uint, rating int) *models.Review {
	t.Helper()
	var r *models.Review
	err := f.conn.Transaction(func(tx *gorm.DB) error {
		var err error
		if r, err = f.svc.Record(tx, b, giver, rating, "great"); err != nil {
			return err
		}
		_, err = f.svc.ReevaluateTx(tx, b.ID)
		return err
	})
	if err != nil {
		t.Fatalf("record review: %v", err)
	}
	return r
}

func (f *fixture) profile(t *testing.T) models.TalentProfile {
	t.Helper()
	var p models.TalentProfile
	if err := f.conn.Where("user_id = ?", talentID).First(&p).Error; err != nil {
		t.Fatalf("load profile: %v", err)
	}
	return p
}

func (f *fixture) visibleCount(t *testing.T, bookingID uint) int64 {
	t.Helper()
	var n int64
	f.conn.Model(&models.Review{}).Where("booking_id = ? AND is_visible = ?", bookingID, true).Count(&n)
	return n
}

func TestBothReviewsRevealImmediately(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, models.BookingCompleted, &completedAt)

	first := f.record(t, b, organizerID, 4)
	if first.IsVisible || f.visibleCount(t, b.ID) != 0 {
		t.Fatal("single review must stay hidden")
	}
	if first.ReceiverID != talentID || first.ReviewerType != models.ReviewerOrganizer {
		t.Fatalf("unexpected review %+v", first)
	}
	if p := f.profile(t); p.TotalReviews != 0 {
		t.Fatalf("hidden review counted: %+v", p)
	}

	f.clock = completedAt.Add(time.Hour)
	f.record(t, b, talentID, 5)
	if got := f.visibleCount(t, b.ID); got != 2 {
		t.Fatalf("visible reviews = %d, want 2", got)
	}
	if p := f.profile(t); p.AverageRating != 4 || p.TotalReviews != 1 {
		t.Fatalf("profile = %+v, want average 4 over 1 review", p)
	}
}

func TestTimeoutRevealsSingleReview(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, models.BookingCompleted, &completedAt)
	f.record(t, b, organizerID, 3)

	f.clock = completedAt.Add(VisibilityDelay - time.Minute)
	v, err := f.svc.Reevaluate(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}
	if v.Visible || f.visibleCount(t, b.ID) != 0 {
		t.Fatal("review revealed before the deadline")
	}

	f.clock = completedAt.Add(VisibilityDelay)
	v, err = f.svc.Reevaluate(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("Reevaluate: %v", err)
	}
	if !v.Visible || v.Flipped != 1 || v.Reason != ReasonTimeout {
		t.Fatalf("visibility = %+v", v)
	}
	if p := f.profile(t); p.AverageRating != 3 || p.TotalReviews != 1 {
		t.Fatalf("profile = %+v", p)
	}

	again, err := f.svc.Reevaluate(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("second Reevaluate: %v", err)
	}
	if !again.Visible || again.Flipped != 0 {
		t.Fatalf("second evaluation changed state: %+v", again)
	}
}

func TestLateReviewAfterDeadlineIsVisibleAtOnce(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, models.BookingCompleted, &completedAt)
	f.clock = completedAt.Add(72 * time.Hour)

	f.record(t, b, talentID, 2)
	if got := f.visibleCount(t, b.ID); got != 1 {
		t.Fatalf("visible = %d, want 1", got)
	}
	// talent reviews never feed the talent aggregate
	if p := f.profile(t); p.TotalReviews != 0 {
		t.Fatalf("profile = %+v", p)
	}
}

func TestRatingAggregateIsFullRecompute(t *testing.T) {
	f := newFixture(t)
	f.clock = completedAt.Add(VisibilityDelay)
	for _, rating := range []int{4, 5, 5} {
		b := f.booking(t, models.BookingCompleted, &completedAt)
		f.record(t, b, organizerID, rating)
	}

	p := f.profile(t)
	if p.TotalReviews != 3 || p.AverageRating != 4.67 {
		t.Fatalf("profile = %+v, want 4.67 over 3", p)
	}
}

func TestRecordRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, models.BookingCompleted, &completedAt)

	for _, rating := range []int{0, 6} {
		err := f.conn.Transaction(func(tx *gorm.DB) error {
			_, err := f.svc.Record(tx, b, organizerID, rating, "")
			return err
		})
		if apperr.Kind(err) != "validation" {
			t.Fatalf("rating %d: expected validation error, got %v", rating, err)
		}
	}

	f.record(t, b, organizerID, 5)
	err := f.conn.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.Record(tx, b, organizerID, 4, "")
		return err
	})
	var pErr *apperr.PreconditionError
	if !errors.As(err, &pErr) || pErr.Code != "review_exists" {
		t.Fatalf("duplicate review: got %v", err)
	}

	err = f.conn.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.Record(tx, b, 99, 4, "")
		return err
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("stranger review: got %v", err)
	}
}

func TestListForBookingHidesOtherPartysReview(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, models.BookingCompleted, &completedAt)
	f.record(t, b, organizerID, 5)

	own, err := f.svc.ListForBooking(context.Background(), organizerID, b.ID)
	if err != nil || len(own) != 1 {
		t.Fatalf("organizer view = %v, %v", own, err)
	}
	other, err := f.svc.ListForBooking(context.Background(), talentID, b.ID)
	if err != nil || len(other) != 0 {
		t.Fatalf("talent view = %v, %v", other, err)
	}
	if _, err := f.svc.ListForBooking(context.Background(), 77, b.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("stranger view: got %v", err)
	}
}

type recordingQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *recordingQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "x"}, nil
}

func TestTimerEnqueue(t *testing.T) {
	conn := dbtest.Open(t)
	if err := NewTimer(conn, nil, zap.NewNop()).Enqueue(context.Background(), 1, completedAt); !errors.Is(err, ErrQueueUnavailable) {
		t.Fatalf("nil queue: got %v", err)
	}

	q := &recordingQueue{}
	timer := NewTimer(conn, q, zap.NewNop())
	if err := timer.Enqueue(context.Background(), 9, completedAt); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if len(q.tasks) != 1 || q.tasks[0].Type() != TypeReviewVisibility {
		t.Fatalf("tasks = %v", q.tasks)
	}
	var p VisibilityPayload
	if err := json.Unmarshal(q.tasks[0].Payload(), &p); err != nil || p.BookingID != 9 {
		t.Fatalf("payload = %s, %v", q.tasks[0].Payload(), err)
	}

	q.err = asynq.ErrTaskIDConflict
	if err := timer.Enqueue(context.Background(), 9, completedAt); err != nil {
		t.Fatalf("duplicate task should be accepted, got %v", err)
	}
}

func TestSweepFiresDueJobs(t *testing.T) {
	f := newFixture(t)
	due := f.booking(t, models.BookingCompleted, &completedAt)
	later := completedAt.Add(24 * time.Hour)
	notYet := f.booking(t, models.BookingCompleted, &later)
	f.record(t, due, organizerID, 5)
	f.record(t, notYet, organizerID, 1)

	err := f.conn.Transaction(func(tx *gorm.DB) error {
		if err := f.svc.timer.Arm(tx, due.ID, completedAt.Add(VisibilityDelay)); err != nil {
			return err
		}
		if err := f.svc.timer.Arm(tx, notYet.ID, later.Add(VisibilityDelay)); err != nil {
			return err
		}
		// re-arming keeps the original deadline
		return f.svc.timer.Arm(tx, due.ID, completedAt.Add(10*VisibilityDelay))
	})
	if err != nil {
		t.Fatalf("arm: %v", err)
	}

	f.clock = completedAt.Add(VisibilityDelay + time.Minute)
	worker := NewWorker(f.svc, zap.NewNop())
	fired, err := worker.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	if f.visibleCount(t, due.ID) != 1 || f.visibleCount(t, notYet.ID) != 0 {
		t.Fatal("sweep revealed the wrong booking")
	}

	var job models.ScheduledJob
	if err := f.conn.Where("booking_id = ?", due.ID).First(&job).Error; err != nil {
		t.Fatalf("load job: %v", err)
	}
	if job.Status != models.JobDone || job.CompletedAt == nil {
		t.Fatalf("job = %+v", job)
	}

	again, err := worker.Sweep(context.Background())
	if err != nil || again != 0 {
		t.Fatalf("second sweep fired %d (%v)", again, err)
	}
}

func TestHandleVisibilityTask(t *testing.T) {
	f := newFixture(t)
	b := f.booking(t, models.BookingCompleted, &completedAt)
	f.record(t, b, organizerID, 4)
	f.clock = completedAt.Add(VisibilityDelay)

	task, _, err := NewVisibilityTask(b.ID, f.clock)
	if err != nil {
		t.Fatalf("NewVisibilityTask: %v", err)
	}
	if err := NewWorker(f.svc, zap.NewNop()).HandleVisibilityTask(context.Background(), task); err != nil {
		t.Fatalf("HandleVisibilityTask: %v", err)
	}
	if f.visibleCount(t, b.ID) != 1 {
		t.Fatal("task did not reveal the review")
	}

	bad := asynq.NewTask(TypeReviewVisibility, []byte("{"))
	if err := NewWorker(f.svc, zap.NewNop()).HandleVisibilityTask(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("bad payload: got %v", err)
	}
}
