package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AvailabilityStatus string

const (
	AvailabilityAvailable   AvailabilityStatus = "AVAILABLE"
	AvailabilityUnavailable AvailabilityStatus = "UNAVAILABLE"
	AvailabilityBusy        AvailabilityStatus = "BUSY"
)

func (s AvailabilityStatus) Valid() bool {
	switch s {
	case AvailabilityAvailable, AvailabilityUnavailable, AvailabilityBusy:
		return true
	}
	return false
}

// Blocking reports whether the entry takes the talent out of the market.
func (s AvailabilityStatus) Blocking() bool {
	return s == AvailabilityUnavailable || s == AvailabilityBusy
}

type AvailabilityEntry struct {
	gorm.Model
	TalentID         uint                     `gorm:"column:talent_id;not null;uniqueIndex:ux_availability_slot,priority:1" json:"talent_id"`
	StartDate        time.Time                `gorm:"column:start_date;not null;uniqueIndex:ux_availability_slot,priority:2" json:"start_date"`
	EndDate          time.Time                `gorm:"column:end_date;not null;uniqueIndex:ux_availability_slot,priority:3" json:"end_date"`
	Status           AvailabilityStatus       `gorm:"column:status;type:varchar(20);not null;uniqueIndex:ux_availability_slot,priority:4" json:"status"`
	IsRecurring      bool                     `gorm:"column:is_recurring;default:false;uniqueIndex:ux_availability_slot,priority:5" json:"is_recurring"`
	RecurringPattern string                   `gorm:"column:recurring_pattern;size:20" json:"recurring_pattern,omitempty"`
	RecurringDays    datatypes.JSONSlice[int] `gorm:"column:recurring_days" json:"recurring_days,omitempty"`
	Notes            string                   `gorm:"column:notes;type:text" json:"notes,omitempty"`
	ParentEntryID    *uint                    `gorm:"column:parent_entry_id;index" json:"parent_entry_id,omitempty"`
}

func (AvailabilityEntry) TableName() string {
	return "availability_entries"
}
