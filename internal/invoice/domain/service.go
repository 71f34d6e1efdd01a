package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcobill/internal/period"
)

// ChargeLine is one SIM's priced charge handed to Generate.
type ChargeLine struct {
	SimID          snowflake.ID
	PlanCode       string
	SubtotalCents  int64
	TaxCents       int64
	SurchargeCents int64
	TotalCents     int64
}

// Service is the invoice ledger. It records bills and their settlement state;
// the penalty engine and payment reconciler drive the transitions.
type Service interface {
	// Generate writes the bill and its lines in one transaction. A bill
	// already existing for (customer, month) fails with ErrDuplicateBill,
	// which makes cycle re-runs idempotent.
	Generate(ctx context.Context, customerID snowflake.ID, month period.Month, lines []ChargeLine) (*Bill, error)

	GetByID(ctx context.Context, billID string) (*Bill, []BillLine, error)
	List(ctx context.Context, customerID string, status BillStatus) ([]Bill, error)
}

var (
	ErrBillNotFound  = errors.New("bill_not_found")
	ErrInvalidBill   = errors.New("invalid_bill")
	ErrDuplicateBill = errors.New("duplicate_bill")
	ErrInvalidMonth  = errors.New("invalid_month")
	ErrEmptyBill     = errors.New("empty_bill")
)
