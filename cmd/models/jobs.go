package models

import (
	"time"

	"gorm.io/gorm"
)

type JobStatus string

const (
	JobPending JobStatus = "PENDING"
	JobDone    JobStatus = "DONE"
)

// ScheduledJob is a durable timer. A worker runs every PENDING job whose
// DueAt has passed, whether or not the queued task ever arrives.
type ScheduledJob struct {
	gorm.Model
	Kind        string     `gorm:"column:kind;size:50;not null;uniqueIndex:ux_scheduled_job,priority:1" json:"kind"`
	BookingID   uint       `gorm:"column:booking_id;not null;uniqueIndex:ux_scheduled_job,priority:2" json:"booking_id"`
	DueAt       time.Time  `gorm:"column:due_at;not null;index" json:"due_at"`
	Status      JobStatus  `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	Attempts    int        `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError   string     `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}
