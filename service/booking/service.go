// Package booking runs the booking lifecycle: creation with conflict
// checks, guarded status transitions, and the completion flow that hands
// off to settlement and review visibility.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"github.com/KAsare1/Gigstage-server/service/apperr"
	"github.com/KAsare1/Gigstage-server/service/availability"
	"github.com/KAsare1/Gigstage-server/service/notifications"
	"github.com/KAsare1/Gigstage-server/service/review"
	"github.com/KAsare1/Gigstage-server/service/settlement"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db              *gorm.DB
	availability    *availability.Engine
	reviews         *review.Service
	settlement      *settlement.Service
	publisher       notifications.Publisher
	logger          *zap.Logger
	defaultCurrency string
	now             func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithDefaultCurrency(currency string) Option {
	return func(s *Service) { s.defaultCurrency = strings.ToUpper(currency) }
}

func NewService(
	db *gorm.DB,
	engine *availability.Engine,
	reviews *review.Service,
	settlementSvc *settlement.Service,
	publisher notifications.Publisher,
	logger *zap.Logger,
	opts ...Option,
) *Service {
	if publisher == nil {
		publisher = notifications.PublisherFunc(func(context.Context, notifications.Event) {})
	}
	s := &Service{
		db:              db,
		availability:    engine,
		reviews:         reviews,
		settlement:      settlementSvc,
		publisher:       publisher,
		logger:          logger,
		defaultCurrency: "USD",
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	TalentID         uint       `json:"talent_id"`
	EventID          uint       `json:"event_id"`
	Amount           float64    `json:"amount"`
	Currency         string     `json:"currency"`
	ProposedDate     time.Time  `json:"proposed_date"`
	EventEndDateTime *time.Time `json:"event_end_date_time"`
}

func (in CreateInput) validate() error {
	v := &apperr.ValidationError{}
	if in.TalentID == 0 {
		v.Add("talent_id", "is required")
	}
	if in.EventID == 0 {
		v.Add("event_id", "is required")
	}
	if in.Amount <= 0 {
		v.Add("amount", "must be positive")
	}
	if in.Currency != "" && len(in.Currency) != 3 {
		v.Add("currency", "must be a three letter code")
	}
	if in.ProposedDate.IsZero() {
		v.Add("proposed_date", "is required")
	} else if in.EventEndDateTime != nil && in.EventEndDateTime.Before(in.ProposedDate) {
		v.Add("event_end_date_time", "must not be before proposed_date")
	}
	return v.Err()
}

// ActionInput carries the optional payload of an action.
type ActionInput struct {
	Reason  string `json:"reason"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// ActionResult is the booking after an action plus whatever the action
// produced. Warnings report secondary steps that failed after the status
// change was committed.
type ActionResult struct {
	Booking    *models.Booking     `json:"booking"`
	Payment    *models.Transaction `json:"payment,omitempty"`
	Payout     *models.Transaction `json:"payout,omitempty"`
	Review     *models.Review      `json:"review,omitempty"`
	Visibility *review.Visibility  `json:"visibility,omitempty"`
	Warnings   []string            `json:"warnings,omitempty"`
}

// Create books a talent for one of the organizer's events. The talent row
// is locked while the calendar is checked so two requests cannot both
// claim the same slot.
func (s *Service) Create(ctx context.Context, organizerID uint, in CreateInput) (*models.Booking, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	platformFee, talentAmount := SplitFee(in.Amount)
	currency := strings.ToUpper(in.Currency)
	if currency == "" {
		currency = s.defaultCurrency
	}

	b := &models.Booking{
		OrganizerID:      organizerID,
		TalentID:         in.TalentID,
		EventID:          in.EventID,
		Amount:           in.Amount,
		PlatformFee:      platformFee,
		TalentAmount:     talentAmount,
		Currency:         currency,
		ProposedDate:     in.ProposedDate,
		EventEndDateTime: in.EventEndDateTime,
		Status:           models.BookingPending,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event models.Event
		err := tx.First(&event, in.EventID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		if err != nil {
			return err
		}
		if event.OrganizerID != organizerID {
			return apperr.ErrNotFound
		}
		if b.EventEndDateTime == nil && event.DurationMinutes > 0 {
			end := in.ProposedDate.Add(time.Duration(event.DurationMinutes) * time.Minute)
			b.EventEndDateTime = &end
		}

		var talent models.User
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&talent, in.TalentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && talent.Role != models.RoleTalent) {
			return apperr.Invalid("talent_id", "is not a talent")
		}
		if err != nil {
			return err
		}
		if talent.ID == organizerID {
			return apperr.Invalid("talent_id", "cannot book yourself")
		}

		var active int64
		err = tx.Model(&models.Booking{}).
			Where("event_id = ? AND talent_id = ? AND status IN ?", in.EventID, in.TalentID, models.ActiveBookingStatuses).
			Count(&active).Error
		if err != nil {
			return fmt.Errorf("count active bookings: %w", err)
		}
		if active > 0 {
			return apperr.Precondition("booking_exists", "this talent already has an active booking for the event")
		}

		end := in.ProposedDate
		if b.EventEndDateTime != nil {
			end = *b.EventEndDateTime
		}
		result, err := s.availability.WithDB(tx).CheckAvailability(ctx, in.TalentID, in.ProposedDate, end)
		if err != nil {
			return err
		}
		if !result.IsAvailable {
			return fmt.Errorf("%w: %s", apperr.ErrConflict, result.Message)
		}

		if err := tx.Omit(clause.Associations).Create(b).Error; err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		return tx.Create(&models.BookingStatusEvent{
			BookingID: b.ID,
			ToStatus:  models.BookingPending,
			Action:    "create",
			ActorID:   organizerID,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.Uint("booking_id", b.ID),
		zap.Uint("organizer_id", organizerID),
		zap.Uint("talent_id", b.TalentID),
	)
	s.publish(ctx, b, notifications.EventBookingRequested, b.TalentID,
		"New booking request", "You have a new booking request")
	return b, nil
}

// Get returns a booking the actor takes part in.
func (s *Service) Get(ctx context.Context, actorID, bookingID uint) (*models.Booking, error) {
	var b models.Booking
	err := s.db.WithContext(ctx).Preload("Event").First(&b, bookingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := roleOf(&b, actorID); err != nil {
		return nil, err
	}
	return &b, nil
}

type ListFilter struct {
	Role    Role
	Status  models.BookingStatus
	Page    int
	PerPage int
}

func (s *Service) List(ctx context.Context, actorID uint, f ListFilter) ([]models.Booking, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Booking{})
	switch f.Role {
	case RoleOrganizer:
		query = query.Where("organizer_id = ?", actorID)
	case RoleTalent:
		query = query.Where("talent_id = ?", actorID)
	case "":
		query = query.Where("organizer_id = ? OR talent_id = ?", actorID, actorID)
	default:
		return nil, 0, apperr.Invalid("role", "must be organizer or talent")
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var bookings []models.Booking
	err := query.Preload("Event").
		Order("created_at desc").
		Offset((f.Page - 1) * f.PerPage).
		Limit(f.PerPage).
		Find(&bookings).Error
	return bookings, total, err
}

// History lists the status changes of a booking, oldest first.
func (s *Service) History(ctx context.Context, actorID, bookingID uint) ([]models.BookingStatusEvent, error) {
	if _, err := s.Get(ctx, actorID, bookingID); err != nil {
		return nil, err
	}
	var events []models.BookingStatusEvent
	err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).Order("id").Find(&events).Error
	return events, err
}

// Dispatch performs action on the booking as actorID.
func (s *Service) Dispatch(ctx context.Context, actorID, bookingID uint, action Action, in ActionInput) (*ActionResult, error) {
	switch action {
	case ActionAccept:
		return s.Accept(ctx, actorID, bookingID)
	case ActionDecline:
		return s.Decline(ctx, actorID, bookingID, in.Reason)
	case ActionRecordPayment:
		return s.RecordPayment(ctx, actorID, bookingID)
	case ActionMarkComplete, ActionCompleteBooking:
		return s.complete(ctx, actorID, bookingID, action)
	case ActionCancel:
		return s.Cancel(ctx, actorID, bookingID, in.Reason)
	case ActionSubmitReview:
		return s.SubmitReview(ctx, actorID, bookingID, in.Rating, in.Comment)
	}
	return nil, apperr.Invalid("action", "unknown action "+string(action))
}

func (s *Service) Accept(ctx context.Context, actorID, bookingID uint) (*ActionResult, error) {
	res, err := s.transition(ctx, actorID, bookingID, ActionAccept, "", func(tx *gorm.DB, b *models.Booking, _ *models.Event, _ *ActionResult) error {
		now := s.now()
		b.AcceptedDate = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, res.Booking, notifications.EventBookingAccepted, res.Booking.TalentID,
		"Booking accepted", "Your booking has been accepted")
	return res, nil
}

func (s *Service) Decline(ctx context.Context, actorID, bookingID uint, reason string) (*ActionResult, error) {
	res, err := s.transition(ctx, actorID, bookingID, ActionDecline, reason, func(tx *gorm.DB, b *models.Booking, _ *models.Event, _ *ActionResult) error {
		b.StatusNote = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, res.Booking, notifications.EventBookingDeclined, res.Booking.TalentID,
		"Booking declined", declineMessage(reason))
	return res, nil
}

// RecordPayment writes the organizer's payment entry and starts the
// booking. Gateway confirmation happens before this call.
func (s *Service) RecordPayment(ctx context.Context, actorID, bookingID uint) (*ActionResult, error) {
	return s.transition(ctx, actorID, bookingID, ActionRecordPayment, "", func(tx *gorm.DB, b *models.Booking, _ *models.Event, res *ActionResult) error {
		txn, err := s.settlement.RecordBookingPayment(ctx, tx, b)
		res.Payment = txn
		return err
	})
}

func (s *Service) Cancel(ctx context.Context, actorID, bookingID uint, reason string) (*ActionResult, error) {
	res, err := s.transition(ctx, actorID, bookingID, ActionCancel, reason, func(tx *gorm.DB, b *models.Booking, _ *models.Event, _ *ActionResult) error {
		b.StatusNote = reason
		return nil
	})
	if err != nil {
		return nil, err
	}
	other := res.Booking.TalentID
	if actorID == res.Booking.TalentID {
		other = res.Booking.OrganizerID
	}
	s.publish(ctx, res.Booking, notifications.EventBookingCancelled, other,
		"Booking cancelled", "A booking you are part of has been cancelled")
	return res, nil
}

func (s *Service) MarkComplete(ctx context.Context, actorID, bookingID uint) (*ActionResult, error) {
	return s.complete(ctx, actorID, bookingID, ActionMarkComplete)
}

// CompleteBooking finalizes a booking the organizer has already reviewed,
// recording the payment too when the booking was never started.
func (s *Service) CompleteBooking(ctx context.Context, actorID, bookingID uint) (*ActionResult, error) {
	return s.complete(ctx, actorID, bookingID, ActionCompleteBooking)
}

func (s *Service) complete(ctx context.Context, actorID, bookingID uint, action Action) (*ActionResult, error) {
	var completedAt time.Time
	res, err := s.transition(ctx, actorID, bookingID, action, "", func(tx *gorm.DB, b *models.Booking, event *models.Event, res *ActionResult) error {
		now := s.now()
		end := event.EndsAt()
		if b.EventEndDateTime != nil {
			end = *b.EventEndDateTime
		}
		if !now.After(end) {
			return apperr.Precondition("event_not_ended",
				fmt.Sprintf("the event ends at %s; the booking cannot be completed before then", end.UTC().Format(time.RFC3339)))
		}

		if action == ActionCompleteBooking {
			reviewed, err := s.reviews.HasReview(tx, b.ID, b.OrganizerID)
			if err != nil {
				return err
			}
			if !reviewed {
				return apperr.Precondition("review_required", "submit your review before completing the booking")
			}
		}

		if b.Status == models.BookingAccepted {
			txn, err := s.settlement.RecordBookingPayment(ctx, tx, b)
			if err != nil {
				return err
			}
			res.Payment = txn
		}

		b.CompletedDate = &now
		completedAt = now
		return s.reviews.Timer().Arm(tx, b.ID, now.Add(review.VisibilityDelay))
	})
	if err != nil {
		return nil, err
	}

	b := res.Booking
	log := s.logger.With(zap.Uint("booking_id", b.ID))

	title := ""
	var event models.Event
	if err := s.db.WithContext(ctx).First(&event, b.EventID).Error; err == nil {
		title = event.Title
	}
	payout, err := s.settlement.CreateTalentPayout(ctx, settlement.PayoutRequest{
		BookingID:  b.ID,
		TalentID:   b.TalentID,
		Amount:     settlement.ResolvePayoutAmount(b),
		Currency:   b.Currency,
		EventTitle: title,
		Trigger:    settlement.TriggerBookingCompleted,
	})
	if err != nil {
		log.Error("talent payout failed after completion", zap.Error(err))
		res.Warnings = append(res.Warnings, "talent payout could not be created; retry with POST /bookings/"+fmt.Sprint(b.ID)+"/payout")
	}
	res.Payout = payout

	dueAt := completedAt.Add(review.VisibilityDelay)
	if err := s.reviews.Timer().Enqueue(ctx, b.ID, dueAt); err != nil {
		if errors.Is(err, review.ErrQueueUnavailable) {
			log.Debug("no task queue, review visibility left to the sweep")
		} else {
			log.Warn("enqueue review visibility task", zap.Error(err))
			res.Warnings = append(res.Warnings, "review visibility timer could not be scheduled; the periodic sweep will apply it")
		}
	}

	s.publish(ctx, b, notifications.EventBookingCompleted, b.TalentID,
		"Booking completed", "Your booking has been completed and your payout is being processed")
	s.publish(ctx, b, notifications.EventReviewRequested, b.TalentID,
		"Leave a review", "Tell us how the event went")
	return res, nil
}

// SubmitReview records the actor's review of the other party and reveals
// both reviews once the rule allows it.
func (s *Service) SubmitReview(ctx context.Context, actorID, bookingID uint, rating int, comment string) (*ActionResult, error) {
	if err := review.ValidateRating(rating); err != nil {
		return nil, err
	}
	return s.transition(ctx, actorID, bookingID, ActionSubmitReview, "", func(tx *gorm.DB, b *models.Booking, _ *models.Event, res *ActionResult) error {
		r, err := s.reviews.Record(tx, b, actorID, rating, comment)
		if err != nil {
			return err
		}
		res.Review = r
		res.Visibility, err = s.reviews.ReevaluateTx(tx, b.ID)
		return err
	})
}

type effectFunc func(tx *gorm.DB, b *models.Booking, event *models.Event, res *ActionResult) error

// transition locks the booking, checks the action against the table, runs
// effect and persists the new status with its history row, all in one
// database transaction.
func (s *Service) transition(ctx context.Context, actorID, bookingID uint, action Action, note string, effect effectFunc) (*ActionResult, error) {
	res := &ActionResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var b models.Booking
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&b, bookingID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrNotFound
		}
		if err != nil {
			return err
		}

		role, err := roleOf(&b, actorID)
		if err != nil {
			return err
		}
		next, err := Next(b.Status, action, role)
		if err != nil {
			return err
		}

		var event models.Event
		if err := tx.First(&event, b.EventID).Error; err != nil {
			return fmt.Errorf("load event %d: %w", b.EventID, err)
		}

		if err := effect(tx, &b, &event, res); err != nil {
			return err
		}

		from := b.Status
		res.Booking = &b
		if next == from {
			return nil
		}
		b.Status = next
		if err := tx.Omit(clause.Associations).Save(&b).Error; err != nil {
			return fmt.Errorf("save booking: %w", err)
		}
		return tx.Create(&models.BookingStatusEvent{
			BookingID:  b.ID,
			FromStatus: from,
			ToStatus:   next,
			Action:     string(action),
			ActorID:    actorID,
			Note:       note,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("booking action applied",
		zap.Uint("booking_id", bookingID),
		zap.String("action", string(action)),
		zap.String("status", string(res.Booking.Status)),
		zap.Uint("actor_id", actorID),
	)
	return res, nil
}

// roleOf fails with ErrNotFound for anyone outside the booking.
func roleOf(b *models.Booking, actorID uint) (Role, error) {
	switch actorID {
	case b.OrganizerID:
		return RoleOrganizer, nil
	case b.TalentID:
		return RoleTalent, nil
	}
	return "", apperr.ErrNotFound
}

func (s *Service) publish(ctx context.Context, b *models.Booking, typ notifications.EventType, recipientID uint, title, message string) {
	s.publisher.Publish(ctx, notifications.Event{
		Type:        typ,
		BookingID:   b.ID,
		RecipientID: recipientID,
		Title:       title,
		Message:     message,
		Data:        map[string]string{"status": string(b.Status)},
	})
}

func declineMessage(reason string) string {
	if reason == "" {
		return "Your booking request was declined"
	}
	return "Your booking request was declined: " + reason
}
