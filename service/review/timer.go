package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	TypeReviewVisibility = "review:visibility"
	JobKindVisibility    = "review_visibility"
)

var ErrQueueUnavailable = errors.New("task queue is not configured")

type VisibilityPayload struct {
	BookingID uint `json:"booking_id"`
}

// Enqueuer is the part of *asynq.Client the timer uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Timer arms the visibility deadline of a completed booking. The job row
// is the durable record; the queued task only makes it fire on time.
type Timer struct {
	db     *gorm.DB
	queue  Enqueuer
	logger *zap.Logger
}

// NewTimer builds a timer. queue may be nil, in which case only the
// worker sweep runs due jobs.
func NewTimer(db *gorm.DB, queue Enqueuer, logger *zap.Logger) *Timer {
	return &Timer{db: db, queue: queue, logger: logger}
}

func NewVisibilityTask(bookingID uint, dueAt time.Time) (*asynq.Task, []asynq.Option, error) {
	payload, err := json.Marshal(VisibilityPayload{BookingID: bookingID})
	if err != nil {
		return nil, nil, err
	}
	opts := []asynq.Option{
		asynq.ProcessAt(dueAt),
		asynq.TaskID(fmt.Sprintf("%s:%d", TypeReviewVisibility, bookingID)),
		asynq.MaxRetry(10),
	}
	return asynq.NewTask(TypeReviewVisibility, payload), opts, nil
}

// Arm writes the job row inside tx. Arming the same booking twice keeps
// the first deadline.
func (t *Timer) Arm(tx *gorm.DB, bookingID uint, dueAt time.Time) error {
	job := &models.ScheduledJob{
		Kind:      JobKindVisibility,
		BookingID: bookingID,
		DueAt:     dueAt,
		Status:    models.JobPending,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "booking_id"}},
		DoNothing: true,
	}).Create(job).Error
	if err != nil {
		return fmt.Errorf("arm visibility timer: %w", err)
	}
	return nil
}

// Enqueue schedules the task that fires the job at dueAt.
func (t *Timer) Enqueue(ctx context.Context, bookingID uint, dueAt time.Time) error {
	if t.queue == nil {
		return ErrQueueUnavailable
	}
	task, opts, err := NewVisibilityTask(bookingID, dueAt)
	if err != nil {
		return err
	}
	_, err = t.queue.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		return nil
	}
	return err
}

// Due returns pending jobs whose deadline has passed, oldest first.
func (t *Timer) Due(ctx context.Context, now time.Time, limit int) ([]models.ScheduledJob, error) {
	var jobs []models.ScheduledJob
	err := t.db.WithContext(ctx).
		Where("kind = ? AND status = ? AND due_at <= ?", JobKindVisibility, models.JobPending, now).
		Order("due_at").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

func (t *Timer) Complete(ctx context.Context, bookingID uint, now time.Time) error {
	return t.db.WithContext(ctx).Model(&models.ScheduledJob{}).
		Where("kind = ? AND booking_id = ?", JobKindVisibility, bookingID).
		Updates(map[string]interface{}{"status": models.JobDone, "completed_at": now, "last_error": ""}).Error
}

func (t *Timer) Fail(ctx context.Context, bookingID uint, cause error) error {
	return t.db.WithContext(ctx).Model(&models.ScheduledJob{}).
		Where("kind = ? AND booking_id = ?", JobKindVisibility, bookingID).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": cause.Error(),
		}).Error
}
