package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcobill/internal/clock"
	"github.com/smallbiznis/telcobill/internal/events"
	invoicedomain "github.com/smallbiznis/telcobill/internal/invoice/domain"
	paymentdomain "github.com/smallbiznis/telcobill/internal/payment/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupPaymentTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS bills (
			id BIGINT PRIMARY KEY,
			customer_id BIGINT NOT NULL,
			month TEXT NOT NULL,
			subtotal_cents BIGINT NOT NULL DEFAULT 0,
			tax_cents BIGINT NOT NULL DEFAULT 0,
			surcharge_cents BIGINT NOT NULL DEFAULT 0,
			penalty_cents BIGINT NOT NULL DEFAULT 0,
			total_cents BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'PENDING',
			due_date TIMESTAMP,
			penalty_period TEXT,
			generated_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id BIGINT PRIMARY KEY,
			bill_id BIGINT NOT NULL,
			amount_cents BIGINT NOT NULL,
			mode TEXT NOT NULL,
			paid_at TIMESTAMP,
			recorded_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS billing_events (
			id BIGINT PRIMARY KEY,
			customer_id BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			dedupe_key TEXT,
			published BOOLEAN NOT NULL DEFAULT 0,
			created_at TIMESTAMP
		)`,
	} {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("create table: %v", err)
		}
	}
	return db
}

func newPaymentTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := setupPaymentTestDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	svc := &Service{
		db:     db,
		log:    zap.NewNop(),
		genID:  node,
		clock:  clock.Fixed(time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC)),
		outbox: events.NewOutbox(db, node),
	}
	return svc, db
}

func insertBill(t *testing.T, db *gorm.DB, id, totalCents int64, status invoicedomain.BillStatus) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO bills (id, customer_id, month, total_cents, status, due_date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, 1, "2025-07", totalCents, status, time.Date(2025, 8, 16, 0, 0, 0, 0, time.UTC),
	).Error; err != nil {
		t.Fatalf("insert bill: %v", err)
	}
}

func billStatus(t *testing.T, db *gorm.DB, id int64) invoicedomain.BillStatus {
	t.Helper()
	var status invoicedomain.BillStatus
	if err := db.Raw(`SELECT status FROM bills WHERE id = ?`, id).Scan(&status).Error; err != nil {
		t.Fatalf("read status: %v", err)
	}
	return status
}

func TestApplyPartialThenFull(t *testing.T) {
	svc, db := newPaymentTestService(t)
	ctx := context.Background()
	insertBill(t, db, 1, 10000, invoicedomain.BillStatusPending)

	receipt, err := svc.Apply(ctx, paymentdomain.ApplyRequest{
		BillID:      "1",
		AmountCents: 4000,
		Mode:        paymentdomain.PaymentModeCash,
	})
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if receipt.BillStatus != invoicedomain.BillStatusPartiallyPaid {
		t.Fatalf("expected PARTIALLY_PAID, got %q", receipt.BillStatus)
	}
	if receipt.PaidTotalCents != 4000 || receipt.SurplusCents != 0 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	receipt, err = svc.Apply(ctx, paymentdomain.ApplyRequest{
		BillID:      "1",
		AmountCents: 6000,
		Mode:        paymentdomain.PaymentModeUPI,
	})
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if receipt.BillStatus != invoicedomain.BillStatusPaid {
		t.Fatalf("expected PAID, got %q", receipt.BillStatus)
	}
	if got := billStatus(t, db, 1); got != invoicedomain.BillStatusPaid {
		t.Fatalf("persisted status %q", got)
	}
}

func TestApplyOverpaymentKeepsSurplus(t *testing.T) {
	svc, db := newPaymentTestService(t)
	insertBill(t, db, 1, 10000, invoicedomain.BillStatusPending)

	receipt, err := svc.Apply(context.Background(), paymentdomain.ApplyRequest{
		BillID:      "1",
		AmountCents: 12000,
		Mode:        paymentdomain.PaymentModeCard,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if receipt.BillStatus != invoicedomain.BillStatusPaid {
		t.Fatalf("expected PAID, got %q", receipt.BillStatus)
	}
	if receipt.SurplusCents != 2000 {
		t.Fatalf("expected surplus 2000, got %d", receipt.SurplusCents)
	}
}

func TestApplyLatePaymentReopensOverdue(t *testing.T) {
	svc, db := newPaymentTestService(t)
	insertBill(t, db, 1, 10500, invoicedomain.BillStatusOverdue)

	receipt, err := svc.Apply(context.Background(), paymentdomain.ApplyRequest{
		BillID:      "1",
		AmountCents: 500,
		Mode:        paymentdomain.PaymentModeTransfer,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if receipt.BillStatus != invoicedomain.BillStatusPartiallyPaid {
		t.Fatalf("expected PARTIALLY_PAID, got %q", receipt.BillStatus)
	}
}

func TestApplyRejectsNonPositiveAmount(t *testing.T) {
	svc, db := newPaymentTestService(t)
	insertBill(t, db, 1, 10000, invoicedomain.BillStatusPending)

	for _, amount := range []int64{0, -500} {
		_, err := svc.Apply(context.Background(), paymentdomain.ApplyRequest{
			BillID:      "1",
			AmountCents: amount,
			Mode:        paymentdomain.PaymentModeCash,
		})
		if !errors.Is(err, paymentdomain.ErrInvalidPaymentAmount) {
			t.Fatalf("expected ErrInvalidPaymentAmount for %d, got %v", amount, err)
		}
	}
}

func TestApplyRejectsUnknownMode(t *testing.T) {
	svc, db := newPaymentTestService(t)
	insertBill(t, db, 1, 10000, invoicedomain.BillStatusPending)

	_, err := svc.Apply(context.Background(), paymentdomain.ApplyRequest{
		BillID:      "1",
		AmountCents: 100,
		Mode:        "CHEQUE",
	})
	if !errors.Is(err, paymentdomain.ErrInvalidPaymentMode) {
		t.Fatalf("expected ErrInvalidPaymentMode, got %v", err)
	}
}

func TestApplyUnknownBill(t *testing.T) {
	svc, _ := newPaymentTestService(t)

	_, err := svc.Apply(context.Background(), paymentdomain.ApplyRequest{
		BillID:      "999",
		AmountCents: 100,
		Mode:        paymentdomain.PaymentModeCash,
	})
	if !errors.Is(err, paymentdomain.ErrBillNotFound) {
		t.Fatalf("expected ErrBillNotFound, got %v", err)
	}
}

func TestPaymentsAreAppendOnly(t *testing.T) {
	svc, db := newPaymentTestService(t)
	ctx := context.Background()
	insertBill(t, db, 1, 10000, invoicedomain.BillStatusPending)

	for _, amount := range []int64{4000, 6000} {
		if _, err := svc.Apply(ctx, paymentdomain.ApplyRequest{
			BillID:      "1",
			AmountCents: amount,
			Mode:        paymentdomain.PaymentModeCash,
		}); err != nil {
			t.Fatalf("apply %d: %v", amount, err)
		}
	}

	payments, err := svc.ListByBill(ctx, "1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(payments))
	}
}
