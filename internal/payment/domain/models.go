package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PaymentMode is the channel a payment arrived through.
type PaymentMode string

const (
	PaymentModeCash     PaymentMode = "CASH"
	PaymentModeCard     PaymentMode = "CARD"
	PaymentModeUPI      PaymentMode = "UPI"
	PaymentModeTransfer PaymentMode = "TRANSFER"
)

// Payment is one amount applied against a bill. Rows are append-only: never
// updated, never deleted.
type Payment struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	BillID      snowflake.ID `gorm:"not null;index" json:"bill_id"`
	AmountCents int64        `gorm:"not null" json:"amount_cents"`
	Mode        PaymentMode  `gorm:"type:text;not null" json:"mode"`
	PaidAt      time.Time    `gorm:"not null" json:"paid_at"`
	RecordedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"recorded_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }

func (m PaymentMode) Valid() bool {
	switch m {
	case PaymentModeCash, PaymentModeCard, PaymentModeUPI, PaymentModeTransfer:
		return true
	}
	return false
}
