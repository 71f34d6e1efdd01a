package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CustomerStatus tracks the subscriber lifecycle.
type CustomerStatus string

const (
	CustomerStatusActive       CustomerStatus = "ACTIVE"
	CustomerStatusDeactivated  CustomerStatus = "DEACTIVATED"
	CustomerStatusDisconnected CustomerStatus = "DISCONNECTED"
)

// SimStatus tracks whether a SIM is in service.
type SimStatus string

const (
	SimStatusActive   SimStatus = "ACTIVE"
	SimStatusInactive SimStatus = "INACTIVE"
)

// Customer is a subscriber account owning zero or more SIMs.
// Invariant: a DISCONNECTED customer has no ACTIVE SIMs.
type Customer struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"type:text;not null" json:"name"`
	Email     string         `gorm:"type:text;not null;uniqueIndex:ux_customers_email" json:"email"`
	Phone     string         `gorm:"type:text" json:"phone"`
	Address   string         `gorm:"type:text" json:"address"`
	Status    CustomerStatus `gorm:"type:text;not null;default:'ACTIVE';index" json:"status"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }

// Sim belongs to exactly one customer and references exactly one plan.
type Sim struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID  snowflake.ID `gorm:"not null;index" json:"customer_id"`
	PlanID      snowflake.ID `gorm:"not null;index" json:"plan_id"`
	Msisdn      string       `gorm:"type:text;not null;uniqueIndex:ux_sims_msisdn" json:"msisdn"`
	Status      SimStatus    `gorm:"type:text;not null;default:'ACTIVE';index" json:"status"`
	ActivatedAt time.Time    `gorm:"not null" json:"activated_at"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Sim) TableName() string { return "sims" }
