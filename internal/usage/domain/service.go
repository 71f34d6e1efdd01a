package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcobill/internal/period"
)

type IngestRequest struct {
	SimID       string  `json:"sim_id"`
	Month       string  `json:"month"`
	CallMinutes float64 `json:"call_minutes"`
	DataGB      float64 `json:"data_gb"`
	SmsCount    int64   `json:"sms_count"`
}

// Service ingests metered usage and aggregates it per customer for billing.
type Service interface {
	// Ingest upserts the (sim, month) usage row. The month must still be
	// open: once a bill exists for the SIM's owner and that month, late
	// usage is rejected and belongs to the next cycle.
	Ingest(ctx context.Context, req IngestRequest) (*UsageRecord, error)

	// AggregateForCustomer returns per-SIM totals for every SIM the
	// customer owned with ACTIVE status, ordered by ascending SIM ID.
	// SIMs without a usage row appear with zero totals.
	AggregateForCustomer(ctx context.Context, customerID snowflake.ID, month period.Month) ([]SimUsage, error)

	List(ctx context.Context, simID string, month period.Month) ([]UsageRecord, error)
}

var (
	ErrInvalidSim       = errors.New("invalid_sim")
	ErrSimNotFound      = errors.New("sim_not_found")
	ErrInvalidCustomer  = errors.New("invalid_customer")
	ErrInvalidUsageData = errors.New("invalid_usage_data")
	// ErrMonthClosed rejects usage for a month that already has a generated
	// bill for the SIM's owner. Late rows are re-submitted for the next
	// cycle, never folded into an existing invoice.
	ErrMonthClosed = errors.New("month_closed")
)
