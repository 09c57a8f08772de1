package models

import (
	"time"

	"gorm.io/gorm"
)

type ReviewerType string

const (
	ReviewerOrganizer ReviewerType = "ORGANIZER"
	ReviewerTalent    ReviewerType = "TALENT"
)

type Review struct {
	gorm.Model
	BookingID    uint         `gorm:"column:booking_id;not null;uniqueIndex:ux_review_booking_giver,priority:1" json:"booking_id"`
	GiverID      uint         `gorm:"column:giver_id;not null;uniqueIndex:ux_review_booking_giver,priority:2" json:"giver_id"`
	ReceiverID   uint         `gorm:"column:receiver_id;not null;index" json:"receiver_id"`
	Rating       int          `gorm:"column:rating;not null" json:"rating"`
	Comment      string       `gorm:"column:comment;type:text" json:"comment"`
	ReviewerType ReviewerType `gorm:"column:reviewer_type;type:varchar(20);not null" json:"reviewer_type"`
	IsVisible    bool         `gorm:"column:is_visible;not null;default:false" json:"is_visible"`
	VisibleAt    *time.Time   `gorm:"column:visible_at" json:"visible_at,omitempty"`
}

func (Review) TableName() string {
	return "reviews"
}
