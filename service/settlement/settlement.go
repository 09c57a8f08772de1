// Package settlement records the money movements of a booking: the
// organizer's payment and the talent's payout.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	storage "github.com/KAsare1/Gigstage-server/db"
	"github.com/KAsare1/Gigstage-server/service/apperr"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TriggerBookingCompleted = "booking_completed"
	TriggerManualRetry      = "manual_retry"
)

type Service struct {
	db           *gorm.DB
	logger       *zap.Logger
	payoutMethod string
	now          func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(db *gorm.DB, logger *zap.Logger, payoutMethod string, opts ...Option) *Service {
	s := &Service{db: db, logger: logger, payoutMethod: payoutMethod, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type PayoutRequest struct {
	BookingID  uint
	TalentID   uint
	Amount     float64
	Currency   string
	EventTitle string
	Trigger    string
}

// ResolvePayoutAmount is the talent's share, or the full amount for
// bookings created before the split was recorded.
func ResolvePayoutAmount(b *models.Booking) float64 {
	if b.TalentAmount > 0 {
		return b.TalentAmount
	}
	return b.Amount
}

// CreateTalentPayout records a pending TALENT_PAYOUT ledger entry and its
// payout queue item. It is idempotent per (booking, talent): an existing
// entry is returned as is, including when a concurrent caller wins the
// insert race.
func (s *Service) CreateTalentPayout(ctx context.Context, req PayoutRequest) (*models.Transaction, error) {
	v := &apperr.ValidationError{}
	if req.BookingID == 0 {
		v.Add("booking_id", "is required")
	}
	if req.TalentID == 0 {
		v.Add("talent_id", "is required")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	existing, err := s.findEntry(s.db.WithContext(ctx), req.BookingID, req.TalentID, models.TransactionTalentPayout)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	if req.Amount <= 0 {
		return nil, apperr.Invalid("amount", "must be positive")
	}

	trigger := req.Trigger
	if trigger == "" {
		trigger = TriggerBookingCompleted
	}
	txn := &models.Transaction{
		BookingID:   req.BookingID,
		UserID:      req.TalentID,
		Type:        models.TransactionTalentPayout,
		Status:      models.TransactionPending,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Description: payoutDescription(req.EventTitle),
		Reference:   newReference("PAY"),
		Metadata: datatypes.JSONMap{
			"booking_id":   req.BookingID,
			"event_title":  req.EventTitle,
			"trigger":      trigger,
			"triggered_at": s.now().UTC().Format(time.RFC3339),
		},
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("User").Create(txn).Error; err != nil {
			return err
		}
		payout := &models.Payout{
			TalentID:      req.TalentID,
			BookingID:     req.BookingID,
			TransactionID: txn.ID,
			Amount:        req.Amount,
			Currency:      req.Currency,
			Status:        models.PayoutPending,
			PayoutMethod:  s.payoutMethod,
		}
		return tx.Omit("Transaction").Create(payout).Error
	})
	if storage.IsDuplicateKey(err) {
		existing, findErr := s.findEntry(s.db.WithContext(ctx), req.BookingID, req.TalentID, models.TransactionTalentPayout)
		if findErr != nil {
			return nil, findErr
		}
		if existing != nil {
			return existing, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create talent payout: %w", err)
	}

	s.logger.Info("talent payout recorded",
		zap.Uint("booking_id", req.BookingID),
		zap.Uint("talent_id", req.TalentID),
		zap.Float64("amount", req.Amount),
		zap.String("trigger", trigger),
	)
	return txn, nil
}

// RecordBookingPayment writes the organizer's BOOKING_PAYMENT entry for
// the full amount inside tx, returning the existing entry if present.
func (s *Service) RecordBookingPayment(ctx context.Context, tx *gorm.DB, b *models.Booking) (*models.Transaction, error) {
	tx = tx.WithContext(ctx)
	existing, err := s.findEntry(tx, b.ID, b.OrganizerID, models.TransactionBookingPayment)
	if err != nil || existing != nil {
		return existing, err
	}

	txn := &models.Transaction{
		BookingID:   b.ID,
		UserID:      b.OrganizerID,
		Type:        models.TransactionBookingPayment,
		Status:      models.TransactionCompleted,
		Amount:      b.Amount,
		Currency:    b.Currency,
		Description: fmt.Sprintf("Payment for booking #%d", b.ID),
		Reference:   newReference("BKP"),
		Metadata: datatypes.JSONMap{
			"booking_id":    b.ID,
			"platform_fee":  b.PlatformFee,
			"talent_amount": b.TalentAmount,
			"recorded_at":   s.now().UTC().Format(time.RFC3339),
		},
	}
	if err := tx.Omit("User").Create(txn).Error; err != nil {
		return nil, fmt.Errorf("record booking payment: %w", err)
	}
	return txn, nil
}

// RetryPayout re-runs payout creation for a completed booking the caller
// takes part in.
func (s *Service) RetryPayout(ctx context.Context, actorID, bookingID uint) (*models.Transaction, error) {
	var b models.Booking
	err := s.db.WithContext(ctx).Preload("Event").First(&b, bookingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if actorID != b.OrganizerID && actorID != b.TalentID {
		return nil, apperr.ErrNotFound
	}
	if b.Status != models.BookingCompleted {
		return nil, apperr.Precondition("booking_not_completed", "payouts are only created for completed bookings")
	}

	title := ""
	if b.Event != nil {
		title = b.Event.Title
	}
	return s.CreateTalentPayout(ctx, PayoutRequest{
		BookingID:  b.ID,
		TalentID:   b.TalentID,
		Amount:     ResolvePayoutAmount(&b),
		Currency:   b.Currency,
		EventTitle: title,
		Trigger:    TriggerManualRetry,
	})
}

func (s *Service) PayoutForBooking(ctx context.Context, bookingID uint) (*models.Payout, error) {
	var p models.Payout
	err := s.db.WithContext(ctx).Where("booking_id = ?", bookingID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Service) findEntry(tx *gorm.DB, bookingID, userID uint, typ models.TransactionType) (*models.Transaction, error) {
	var txn models.Transaction
	err := tx.Where("booking_id = ? AND user_id = ? AND type = ?", bookingID, userID, typ).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find %s entry: %w", typ, err)
	}
	return &txn, nil
}

func payoutDescription(eventTitle string) string {
	if eventTitle == "" {
		return "Talent payout"
	}
	return "Talent payout for " + eventTitle
}

func newReference(prefix string) string {
	return prefix + "-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}
