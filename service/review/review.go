// Package review implements double-blind booking reviews. A review stays
// hidden until both parties have reviewed or VisibilityDelay has passed
// since the booking completed.
package review

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"github.com/KAsare1/Gigstage-server/service/apperr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const VisibilityDelay = 48 * time.Hour

const (
	ReasonBothSubmitted = "both_submitted"
	ReasonTimeout       = "timeout"
)

type Service struct {
	db     *gorm.DB
	timer  *Timer
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(db *gorm.DB, timer *Timer, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{db: db, timer: timer, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Timer() *Timer {
	return s.timer
}

// Visibility is the outcome of one evaluation.
type Visibility struct {
	BookingID uint   `json:"booking_id"`
	Visible   bool   `json:"visible"`
	Flipped   int    `json:"flipped"`
	Reason    string `json:"reason,omitempty"`
}

func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return apperr.Invalid("rating", "must be between 1 and 5")
	}
	return nil
}

// Record stores giver's hidden review of the other party of b. The caller
// holds the booking lock and has already checked that giver may review.
func (s *Service) Record(tx *gorm.DB, b *models.Booking, giverID uint, rating int, comment string) (*models.Review, error) {
	if err := ValidateRating(rating); err != nil {
		return nil, err
	}

	review := &models.Review{
		BookingID: b.ID,
		GiverID:   giverID,
		Rating:    rating,
		Comment:   comment,
	}
	switch giverID {
	case b.OrganizerID:
		review.ReceiverID = b.TalentID
		review.ReviewerType = models.ReviewerOrganizer
	case b.TalentID:
		review.ReceiverID = b.OrganizerID
		review.ReviewerType = models.ReviewerTalent
	default:
		return nil, apperr.ErrNotFound
	}

	exists, err := s.HasReview(tx, b.ID, giverID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperr.Precondition("review_exists", "you have already reviewed this booking")
	}

	if err := tx.Create(review).Error; err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	return review, nil
}

func (s *Service) HasReview(tx *gorm.DB, bookingID, giverID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.Review{}).Where("booking_id = ? AND giver_id = ?", bookingID, giverID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count reviews: %w", err)
	}
	return count > 0, nil
}

// Reevaluate applies the visibility rule to a booking's reviews. Running
// it again after the reviews are visible changes nothing.
func (s *Service) Reevaluate(ctx context.Context, bookingID uint) (*Visibility, error) {
	var out *Visibility
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		v, err := s.ReevaluateTx(tx, bookingID)
		out = v
		return err
	})
	return out, err
}

// ReevaluateTx is Reevaluate inside the caller's transaction.
func (s *Service) ReevaluateTx(tx *gorm.DB, bookingID uint) (*Visibility, error) {
	var b models.Booking
	err := tx.First(&b, bookingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var reviews []models.Review
	if err := tx.Where("booking_id = ?", bookingID).Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("load reviews: %w", err)
	}

	v := &Visibility{BookingID: bookingID}
	if len(reviews) == 0 {
		return v, nil
	}

	var fromOrganizer, fromTalent bool
	for _, r := range reviews {
		switch r.ReviewerType {
		case models.ReviewerOrganizer:
			fromOrganizer = true
		case models.ReviewerTalent:
			fromTalent = true
		}
	}

	now := s.now()
	switch {
	case fromOrganizer && fromTalent:
		v.Reason = ReasonBothSubmitted
	case b.CompletedDate != nil && !now.Before(b.CompletedDate.Add(VisibilityDelay)):
		v.Reason = ReasonTimeout
	default:
		return v, nil
	}
	v.Visible = true

	res := tx.Model(&models.Review{}).
		Where("booking_id = ? AND is_visible = ?", bookingID, false).
		Updates(map[string]interface{}{"is_visible": true, "visible_at": now})
	if res.Error != nil {
		return nil, fmt.Errorf("reveal reviews: %w", res.Error)
	}
	v.Flipped = int(res.RowsAffected)
	if v.Flipped == 0 {
		return v, nil
	}

	for _, r := range reviews {
		if r.ReviewerType == models.ReviewerOrganizer {
			if err := s.RecomputeRating(tx, r.ReceiverID); err != nil {
				return nil, err
			}
		}
	}

	s.logger.Info("reviews revealed",
		zap.Uint("booking_id", bookingID),
		zap.String("reason", v.Reason),
		zap.Int("count", v.Flipped),
	)
	return v, nil
}

// RecomputeRating rebuilds a talent's aggregate from every visible review
// organizers have left them.
func (s *Service) RecomputeRating(tx *gorm.DB, talentID uint) error {
	var agg struct {
		Average float64
		Total   int64
	}
	err := tx.Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS total").
		Where("receiver_id = ? AND reviewer_type = ? AND is_visible = ?", talentID, models.ReviewerOrganizer, true).
		Scan(&agg).Error
	if err != nil {
		return fmt.Errorf("aggregate ratings: %w", err)
	}

	err = tx.Model(&models.TalentProfile{}).
		Where("user_id = ?", talentID).
		Updates(map[string]interface{}{
			"average_rating": math.Round(agg.Average*100) / 100,
			"total_reviews":  agg.Total,
		}).Error
	if err != nil {
		return fmt.Errorf("update talent rating: %w", err)
	}
	return nil
}

// ListForBooking returns visible reviews plus the caller's own.
func (s *Service) ListForBooking(ctx context.Context, actorID, bookingID uint) ([]models.Review, error) {
	var b models.Booking
	err := s.db.WithContext(ctx).First(&b, bookingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if actorID != b.OrganizerID && actorID != b.TalentID {
		return nil, apperr.ErrNotFound
	}

	var reviews []models.Review
	err = s.db.WithContext(ctx).
		Where("booking_id = ? AND (is_visible = ? OR giver_id = ?)", bookingID, true, actorID).
		Order("created_at").
		Find(&reviews).Error
	return reviews, err
}

// ListForTalent returns the visible organizer reviews of a talent.
func (s *Service) ListForTalent(ctx context.Context, talentID uint, page, perPage int) ([]models.Review, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Review{}).
		Where("receiver_id = ? AND reviewer_type = ? AND is_visible = ?", talentID, models.ReviewerOrganizer, true)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var reviews []models.Review
	err := query.Order("created_at DESC").Offset((page - 1) * perPage).Limit(perPage).Find(&reviews).Error
	return reviews, total, err
}
