package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/KAsare1/Gigstage-server/cmd/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Sink delivers an event over one channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, recipient *models.User, ev Event) error
}

// Dispatcher records every event in the recipient's history and hands it
// to each sink.
type Dispatcher struct {
	db     *gorm.DB
	sinks  []Sink
	logger *zap.Logger
	now    func() time.Time
}

func NewDispatcher(db *gorm.DB, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	return &Dispatcher{db: db, sinks: sinks, logger: logger, now: time.Now}
}

func (d *Dispatcher) Publish(ctx context.Context, ev Event) {
	log := d.logger.With(
		zap.String("event", string(ev.Type)),
		zap.Uint("booking_id", ev.BookingID),
		zap.Uint("recipient_id", ev.RecipientID),
	)

	var recipient models.User
	err := d.db.WithContext(ctx).First(&recipient, ev.RecipientID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn("notification recipient not found")
		return
	}
	if err != nil {
		log.Warn("load notification recipient", zap.Error(err))
		return
	}

	failed := 0
	for _, sink := range d.sinks {
		if err := sink.Deliver(ctx, &recipient, ev); err != nil {
			failed++
			log.Warn("notification delivery failed", zap.String("sink", sink.Name()), zap.Error(err))
		}
	}

	status := "sent"
	switch {
	case len(d.sinks) > 0 && failed == len(d.sinks):
		status = "failed"
	case failed > 0:
		status = "partial"
	}

	data := datatypes.JSONMap{}
	for k, v := range ev.Data {
		data[k] = v
	}
	history := &models.NotificationHistory{
		UserID:    ev.RecipientID,
		BookingID: ev.BookingID,
		EventType: string(ev.Type),
		Title:     ev.Title,
		Body:      ev.Message,
		Data:      data,
		Status:    status,
		SentAt:    d.now(),
	}
	if err := d.db.WithContext(ctx).Create(history).Error; err != nil {
		log.Warn("record notification history", zap.Error(err))
	}
}
