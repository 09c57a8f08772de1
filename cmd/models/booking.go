package models

import (
	"time"

	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingPending    BookingStatus = "PENDING"
	BookingAccepted   BookingStatus = "ACCEPTED"
	BookingDeclined   BookingStatus = "DECLINED"
	BookingInProgress BookingStatus = "IN_PROGRESS"
	BookingCompleted  BookingStatus = "COMPLETED"
	BookingCancelled  BookingStatus = "CANCELLED"
)

// ActiveBookingStatuses are the statuses that occupy a talent's calendar.
var ActiveBookingStatuses = []BookingStatus{BookingPending, BookingAccepted, BookingInProgress}

func (s BookingStatus) Terminal() bool {
	return s == BookingDeclined || s == BookingCompleted || s == BookingCancelled
}

type Booking struct {
	gorm.Model
	OrganizerID      uint          `gorm:"column:organizer_id;not null;index" json:"organizer_id"`
	TalentID         uint          `gorm:"column:talent_id;not null;index" json:"talent_id"`
	EventID          uint          `gorm:"column:event_id;not null;index" json:"event_id"`
	Amount           float64       `gorm:"column:amount;not null" json:"amount"`
	PlatformFee      float64       `gorm:"column:platform_fee;not null" json:"platform_fee"`
	TalentAmount     float64       `gorm:"column:talent_amount;not null" json:"talent_amount"`
	Currency         string        `gorm:"column:currency;size:3;not null" json:"currency"`
	ProposedDate     time.Time     `gorm:"column:proposed_date;not null" json:"proposed_date"`
	AcceptedDate     *time.Time    `gorm:"column:accepted_date" json:"accepted_date,omitempty"`
	EventEndDateTime *time.Time    `gorm:"column:event_end_date_time" json:"event_end_date_time,omitempty"`
	CompletedDate    *time.Time    `gorm:"column:completed_date" json:"completed_date,omitempty"`
	Status           BookingStatus `gorm:"column:status;type:varchar(20);not null;default:PENDING;index" json:"status"`
	StatusNote       string        `gorm:"column:status_note;type:text" json:"status_note,omitempty"`

	Event     *Event `gorm:"foreignKey:EventID" json:"event,omitempty"`
	Organizer *User  `gorm:"foreignKey:OrganizerID" json:"organizer,omitempty"`
	Talent    *User  `gorm:"foreignKey:TalentID" json:"talent,omitempty"`
}

func (Booking) TableName() string {
	return "bookings"
}

// BookingStatusEvent is an append-only record of one status change.
type BookingStatusEvent struct {
	gorm.Model
	BookingID  uint          `gorm:"column:booking_id;not null;index" json:"booking_id"`
	FromStatus BookingStatus `gorm:"column:from_status;type:varchar(20)" json:"from_status"`
	ToStatus   BookingStatus `gorm:"column:to_status;type:varchar(20);not null" json:"to_status"`
	Action     string        `gorm:"column:action;size:30;not null" json:"action"`
	ActorID    uint          `gorm:"column:actor_id;not null" json:"actor_id"`
	Note       string        `gorm:"column:note;type:text" json:"note,omitempty"`
}
