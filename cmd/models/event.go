package models

import (
	"time"

	"gorm.io/gorm"
)

type Event struct {
	gorm.Model
	OrganizerID     uint      `gorm:"column:organizer_id;not null;index" json:"organizer_id"`
	Title           string    `gorm:"column:title;size:255;not null" json:"title"`
	Venue           string    `gorm:"column:venue;size:255" json:"venue"`
	EventDate       time.Time `gorm:"column:event_date;not null" json:"event_date"`
	DurationMinutes int       `gorm:"column:duration_minutes;not null;default:0" json:"duration_minutes"`
}

// EndsAt is the event date plus its duration.
func (e Event) EndsAt() time.Time {
	return e.EventDate.Add(time.Duration(e.DurationMinutes) * time.Minute)
}
