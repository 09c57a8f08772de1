package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionBookingPayment TransactionType = "BOOKING_PAYMENT"
	TransactionTalentPayout   TransactionType = "TALENT_PAYOUT"
	TransactionRefund         TransactionType = "REFUND"
	TransactionPlatformFee    TransactionType = "PLATFORM_FEE"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
	TransactionCancelled TransactionStatus = "CANCELLED"
)

// Transaction is a ledger entry. At most one entry exists per
// (booking, user, type); the unique index is the source of truth.
type Transaction struct {
	gorm.Model
	BookingID   uint              `gorm:"column:booking_id;not null;uniqueIndex:ux_transaction_booking_user_type,priority:1" json:"booking_id"`
	UserID      uint              `gorm:"column:user_id;not null;index;uniqueIndex:ux_transaction_booking_user_type,priority:2" json:"user_id"`
	Type        TransactionType   `gorm:"column:type;type:varchar(30);not null;uniqueIndex:ux_transaction_booking_user_type,priority:3" json:"type"`
	Status      TransactionStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	Amount      float64           `gorm:"column:amount;not null" json:"amount"`
	Currency    string            `gorm:"column:currency;size:3;not null" json:"currency"`
	Description string            `gorm:"column:description;type:text" json:"description"`
	Reference   string            `gorm:"column:reference;size:64;uniqueIndex" json:"reference"`
	Metadata    datatypes.JSONMap `gorm:"column:metadata" json:"metadata,omitempty"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "PENDING"
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutPaid       PayoutStatus = "PAID"
	PayoutFailed     PayoutStatus = "FAILED"
)

// Payout is the queue item a disbursement processor picks up.
type Payout struct {
	gorm.Model
	TalentID      uint         `gorm:"column:talent_id;not null;index" json:"talent_id"`
	BookingID     uint         `gorm:"column:booking_id;not null;uniqueIndex" json:"booking_id"`
	TransactionID uint         `gorm:"column:transaction_id;not null" json:"transaction_id"`
	Amount        float64      `gorm:"column:amount;not null" json:"amount"`
	Currency      string       `gorm:"column:currency;size:3;not null" json:"currency"`
	Status        PayoutStatus `gorm:"column:status;type:varchar(20);not null" json:"status"`
	PayoutMethod  string       `gorm:"column:payout_method;size:50" json:"payout_method"`

	Transaction *Transaction `gorm:"foreignKey:TransactionID" json:"transaction,omitempty"`
}
