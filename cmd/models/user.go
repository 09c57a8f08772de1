package models

import (
	"gorm.io/gorm"
)

const (
	RoleOrganizer = "organizer"
	RoleTalent    = "talent"
	RoleAdmin     = "admin"
)

type User struct {
	gorm.Model
	FullName string `gorm:"column:full_name;size:255;not null" json:"full_name"`
	Email    string `gorm:"column:email;size:255;not null" json:"email"`
	Role     string `gorm:"column:role;size:50;not null" json:"role"`
	Phone    string `gorm:"column:phone;size:20" json:"phone"`

	TalentProfile *TalentProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"talent_profile,omitempty"`
}

// TalentProfile carries the rating aggregate, recomputed from visible reviews.
type TalentProfile struct {
	gorm.Model
	UserID        uint    `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	StageName     string  `gorm:"column:stage_name;size:255" json:"stage_name"`
	Bio           string  `gorm:"column:bio;type:text" json:"bio"`
	AverageRating float64 `gorm:"column:average_rating;default:0" json:"average_rating"`
	TotalReviews  int     `gorm:"column:total_reviews;default:0" json:"total_reviews"`
}

func (TalentProfile) TableName() string {
	return "talent_profiles"
}
