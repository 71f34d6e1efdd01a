package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcobill/internal/period"
)

// UsageRecord holds one SIM's metered consumption for one month. The
// (sim_id, month) pair is unique; metering may revise the row until the month
// is closed by invoice generation, never afterwards.
type UsageRecord struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	SimID       snowflake.ID `gorm:"not null;index;uniqueIndex:ux_usage_sim_month,priority:1" json:"sim_id"`
	Month       period.Month `gorm:"type:text;not null;uniqueIndex:ux_usage_sim_month,priority:2" json:"month"`
	CallMinutes float64      `gorm:"not null" json:"call_minutes"`
	DataGB      float64      `gorm:"not null" json:"data_gb"`
	SmsCount    int64        `gorm:"not null" json:"sms_count"`
	AmountCents int64        `gorm:"not null;default:0" json:"amount_cents"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "usage_records" }

// SimUsage is one SIM's aggregated totals for a billing month. A SIM with no
// usage row contributes zero totals.
type SimUsage struct {
	SimID       snowflake.ID
	PlanID      snowflake.ID
	CallMinutes float64
	DataGB      float64
	SmsCount    int64
}
