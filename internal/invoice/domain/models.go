package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcobill/internal/period"
)

// BillStatus is the settlement state of a bill.
//
// PENDING -> {PAID, PARTIALLY_PAID, OVERDUE}
// PARTIALLY_PAID -> {PAID, OVERDUE}
// OVERDUE -> {PAID, PARTIALLY_PAID} via late payment only.
type BillStatus string

const (
	BillStatusPending       BillStatus = "PENDING"
	BillStatusPaid          BillStatus = "PAID"
	BillStatusPartiallyPaid BillStatus = "PARTIALLY_PAID"
	BillStatusOverdue       BillStatus = "OVERDUE"
)

// Bill is one customer's invoice for one month. Once generated it is
// immutable except for status and the penalty adjustment to the total.
type Bill struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_bills_customer_month,priority:1" json:"customer_id"`
	Month          period.Month `gorm:"type:text;not null;uniqueIndex:ux_bills_customer_month,priority:2" json:"month"`
	SubtotalCents  int64        `gorm:"not null" json:"subtotal_cents"`
	TaxCents       int64        `gorm:"not null" json:"tax_cents"`
	SurchargeCents int64        `gorm:"not null" json:"surcharge_cents"`
	PenaltyCents   int64        `gorm:"not null;default:0" json:"penalty_cents"`
	TotalCents     int64        `gorm:"not null" json:"total_cents"`
	Status         BillStatus   `gorm:"type:text;not null;default:'PENDING';index" json:"status"`
	DueDate        time.Time    `gorm:"not null;index" json:"due_date"`
	// PenaltyPeriod marks the scan period whose penalty has been applied,
	// so repeated scans within one period never compound.
	PenaltyPeriod *string   `gorm:"type:text" json:"penalty_period,omitempty"`
	GeneratedAt   time.Time `gorm:"not null" json:"generated_at"`
	UpdatedAt     time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Bill) TableName() string { return "bills" }

// BillLine is one SIM's priced contribution to a bill.
type BillLine struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	BillID         snowflake.ID `gorm:"not null;index" json:"bill_id"`
	SimID          snowflake.ID `gorm:"not null" json:"sim_id"`
	PlanCode       string       `gorm:"type:text;not null" json:"plan_code"`
	SubtotalCents  int64        `gorm:"not null" json:"subtotal_cents"`
	TaxCents       int64        `gorm:"not null" json:"tax_cents"`
	SurchargeCents int64        `gorm:"not null" json:"surcharge_cents"`
	TotalCents     int64        `gorm:"not null" json:"total_cents"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (BillLine) TableName() string { return "bill_lines" }
