package notifications

import "context"

type EventType string

const (
	EventBookingRequested EventType = "booking-requested"
	EventBookingAccepted  EventType = "booking-accepted"
	EventBookingDeclined  EventType = "booking-declined"
	EventBookingCancelled EventType = "booking-cancelled"
	EventBookingCompleted EventType = "booking-completed"
	EventReviewRequested  EventType = "review-requested"
)

// Event is a booking notification addressed to one user.
type Event struct {
	Type        EventType         `json:"type"`
	BookingID   uint              `json:"booking_id"`
	RecipientID uint              `json:"recipient_id"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Data        map[string]string `json:"data,omitempty"`
}

// Publisher accepts events. Delivery is best effort: Publish never fails
// the caller.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type PublisherFunc func(ctx context.Context, ev Event)

func (f PublisherFunc) Publish(ctx context.Context, ev Event) { f(ctx, ev) }
