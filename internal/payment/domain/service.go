package domain

import (
	"context"
	"errors"
	"time"

	invoicedomain "github.com/smallbiznis/telcobill/internal/invoice/domain"
)

type ApplyRequest struct {
	BillID      string      `json:"bill_id"`
	AmountCents int64       `json:"amount_cents"`
	Mode        PaymentMode `json:"mode"`
	PaidAt      time.Time   `json:"paid_at"`
}

// Receipt reports the reconciliation outcome after one payment. Overpayment
// is accepted; the surplus is carried here for reporting, never discarded.
type Receipt struct {
	Payment        Payment                  `json:"payment"`
	BillStatus     invoicedomain.BillStatus `json:"bill_status"`
	PaidTotalCents int64                    `json:"paid_total_cents"`
	SurplusCents   int64                    `json:"surplus_cents"`
}

// Service applies payments against bills and keeps settlement status
// consistent under concurrent submissions.
type Service interface {
	// Apply inserts the payment and recomputes the bill's paid total inside
	// one transaction holding the bill row, then updates the status:
	// paid >= total is PAID, 0 < paid < total is PARTIALLY_PAID.
	Apply(ctx context.Context, req ApplyRequest) (*Receipt, error)

	ListByBill(ctx context.Context, billID string) ([]Payment, error)
}

var (
	ErrBillNotFound         = errors.New("bill_not_found")
	ErrInvalidBill          = errors.New("invalid_bill")
	ErrInvalidPaymentAmount = errors.New("invalid_payment_amount")
	ErrInvalidPaymentMode   = errors.New("invalid_payment_mode")
)
