package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PlanType discriminates the tariff specialization for a plan.
type PlanType string

const (
	PlanTypePrepaid  PlanType = "PREPAID"
	PlanTypePostpaid PlanType = "POSTPAID"
)

// Plan is the base tariff record. Exactly one specialization row (prepaid or
// postpaid) exists per plan, selected by Type.
type Plan struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Code      string       `gorm:"type:text;not null;uniqueIndex:ux_plans_code" json:"code"`
	Name      string       `gorm:"type:text;not null;uniqueIndex:ux_plans_name" json:"name"`
	Type      PlanType     `gorm:"type:text;not null" json:"type"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }

// PrepaidPlan is the bounded tariff: usage within the allowances is free,
// usage beyond them is charged at the overage rates. Amounts are cents.
type PrepaidPlan struct {
	PlanID               snowflake.ID `gorm:"primaryKey" json:"plan_id"`
	DurationDays         int          `gorm:"not null" json:"duration_days"`
	DataAllowanceGB      float64      `gorm:"not null" json:"data_allowance_gb"`
	CallAllowanceMinutes float64      `gorm:"not null" json:"call_allowance_minutes"`
	SmsAllowance         int64        `gorm:"not null" json:"sms_allowance"`
	DataOverageCentsGB   int64        `gorm:"not null" json:"data_overage_cents_gb"`
	CallOverageCentsMin  int64        `gorm:"not null" json:"call_overage_cents_min"`
	SmsOverageCents      int64        `gorm:"not null" json:"sms_overage_cents"`
	CreatedAt            time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (PrepaidPlan) TableName() string { return "prepaid_plans" }

// PostpaidPlan is the unbounded tariff: every unit is billed post-hoc at the
// per-unit rates, plus an optional monthly rental. Amounts are cents.
type PostpaidPlan struct {
	PlanID             snowflake.ID `gorm:"primaryKey" json:"plan_id"`
	DurationDays       int          `gorm:"not null" json:"duration_days"`
	CallRateCentsMin   int64        `gorm:"not null" json:"call_rate_cents_min"`
	DataRateCentsGB    int64        `gorm:"not null" json:"data_rate_cents_gb"`
	SmsRateCents       int64        `gorm:"not null" json:"sms_rate_cents"`
	MonthlyRentalCents int64        `gorm:"not null;default:0" json:"monthly_rental_cents"`
	CreatedAt          time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (PostpaidPlan) TableName() string { return "postpaid_plans" }

// Tariff is the resolved tagged variant for a plan. Exactly one of Prepaid or
// Postpaid is set, matching Type.
type Tariff struct {
	PlanID   snowflake.ID
	Code     string
	Name     string
	Type     PlanType
	Prepaid  *PrepaidPlan
	Postpaid *PostpaidPlan
}
