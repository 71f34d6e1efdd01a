package penalty

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/telcobill/internal/clock"
	"github.com/smallbiznis/telcobill/internal/config"
	"github.com/smallbiznis/telcobill/internal/events"
	invoicedomain "github.com/smallbiznis/telcobill/internal/invoice/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupPenaltyTestDB(t *testing.T) *gorm.DB {
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

func newTestEngine(t *testing.T, now time.Time) (*Engine, *gorm.DB) {
	t.Helper()
	db := setupPenaltyTestDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	cfg := config.Config{}
	cfg.Billing.PenaltyRate = decimal.RequireFromString("0.05")
	engine := &Engine{
		db:     db,
		log:    zap.NewNop(),
		clock:  clock.Fixed(now),
		cfg:    cfg,
		outbox: events.NewOutbox(db, node),
	}
	return engine, db
}

func insertOverdueCandidate(t *testing.T, db *gorm.DB, id, totalCents int64, status invoicedomain.BillStatus, due time.Time) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO bills (id, customer_id, month, total_cents, status, due_date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, 1, "2025-07", totalCents, status, due,
	).Error; err != nil {
		t.Fatalf("insert bill: %v", err)
	}
}

type billRow struct {
	TotalCents    int64
	PenaltyCents  int64
	Status        invoicedomain.BillStatus
	PenaltyPeriod *string
}

func readBill(t *testing.T, db *gorm.DB, id int64) billRow {
	t.Helper()
	var row billRow
	if err := db.Raw(
		`SELECT total_cents, penalty_cents, status, penalty_period FROM bills WHERE id = ?`,
		id,
	).Scan(&row).Error; err != nil {
		t.Fatalf("read bill: %v", err)
	}
	return row
}

func TestScanAppliesPenalty(t *testing.T) {
	now := time.Date(2025, 9, 1, 2, 0, 0, 0, time.UTC)
	engine, db := newTestEngine(t, now)
	insertOverdueCandidate(t, db, 1, 5000, invoicedomain.BillStatusPending, time.Date(2025, 8, 16, 0, 0, 0, 0, time.UTC))

	report, err := engine.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.Scanned != 1 || report.Penalized != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	bill := readBill(t, db, 1)
	// 5% of the 5000c outstanding.
	if bill.PenaltyCents != 250 || bill.TotalCents != 5250 {
		t.Fatalf("unexpected amounts %+v", bill)
	}
	if bill.Status != invoicedomain.BillStatusOverdue {
		t.Fatalf("unexpected status %q", bill.Status)
	}
	if bill.PenaltyPeriod == nil || *bill.PenaltyPeriod != "2025-09" {
		t.Fatalf("unexpected penalty period %v", bill.PenaltyPeriod)
	}
}

func TestScanDoesNotCompoundWithinPeriod(t *testing.T) {
	now := time.Date(2025, 9, 1, 2, 0, 0, 0, time.UTC)
	engine, db := newTestEngine(t, now)
	insertOverdueCandidate(t, db, 1, 5000, invoicedomain.BillStatusPending, time.Date(2025, 8, 16, 0, 0, 0, 0, time.UTC))

	if _, err := engine.Scan(context.Background()); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	report, err := engine.Scan(context.Background())
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if report.Penalized != 0 || report.Skipped != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	bill := readBill(t, db, 1)
	if bill.PenaltyCents != 250 || bill.TotalCents != 5250 {
		t.Fatalf("penalty compounded: %+v", bill)
	}
}

func TestScanPenalizesOnlyOutstanding(t *testing.T) {
	now := time.Date(2025, 9, 1, 2, 0, 0, 0, time.UTC)
	engine, db := newTestEngine(t, now)
	insertOverdueCandidate(t, db, 1, 5000, invoicedomain.BillStatusPartiallyPaid, time.Date(2025, 8, 16, 0, 0, 0, 0, time.UTC))
	if err := db.Exec(
		`INSERT INTO payments (id, bill_id, amount_cents, mode) VALUES (?, ?, ?, ?)`,
		10, 1, 3000, "CASH",
	).Error; err != nil {
		t.Fatalf("insert payment: %v", err)
	}

	if _, err := engine.Scan(context.Background()); err != nil {
		t.Fatalf("scan: %v", err)
	}

	bill := readBill(t, db, 1)
	// 5% of the 2000c still owed.
	if bill.PenaltyCents != 100 || bill.TotalCents != 5100 {
		t.Fatalf("unexpected amounts %+v", bill)
	}
}

func TestScanSkipsSettledAndNotYetDue(t *testing.T) {
	now := time.Date(2025, 9, 1, 2, 0, 0, 0, time.UTC)
	engine, db := newTestEngine(t, now)
	insertOverdueCandidate(t, db, 1, 5000, invoicedomain.BillStatusPaid, time.Date(2025, 8, 16, 0, 0, 0, 0, time.UTC))
	insertOverdueCandidate(t, db, 2, 5000, invoicedomain.BillStatusPending, time.Date(2025, 9, 16, 0, 0, 0, 0, time.UTC))

	report, err := engine.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.Penalized != 0 {
		t.Fatalf("unexpected report %+v", report)
	}

	for _, id := range []int64{1, 2} {
		if bill := readBill(t, db, id); bill.PenaltyCents != 0 {
			t.Fatalf("bill %d penalized: %+v", id, bill)
		}
	}
}

func TestScanSkipsBillsAlreadyOverdue(t *testing.T) {
	engine, db := newTestEngine(t, time.Date(2025, 10, 1, 2, 0, 0, 0, time.UTC))
	marker := "2025-09"
	if err := db.Exec(
		`INSERT INTO bills (id, customer_id, month, total_cents, penalty_cents, status, due_date, penalty_period)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		1, 1, "2025-07", 5250, 250, invoicedomain.BillStatusOverdue,
		time.Date(2025, 8, 16, 0, 0, 0, 0, time.UTC), marker,
	).Error; err != nil {
		t.Fatalf("insert bill: %v", err)
	}

	report, err := engine.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if report.Scanned != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestScanPenalizesAgainAfterLatePartialPayment(t *testing.T) {
	engine, db := newTestEngine(t, time.Date(2025, 9, 1, 2, 0, 0, 0, time.UTC))
	insertOverdueCandidate(t, db, 1, 5000, invoicedomain.BillStatusPending, time.Date(2025, 8, 16, 0, 0, 0, 0, time.UTC))

	if _, err := engine.Scan(context.Background()); err != nil {
		t.Fatalf("first scan: %v", err)
	}

	// A late partial payment reopens the bill; the next period's scan
	// penalizes the remaining outstanding amount.
	if err := db.Exec(
		`INSERT INTO payments (id, bill_id, amount_cents, mode) VALUES (?, ?, ?, ?)`,
		10, 1, 3000, "CASH",
	).Error; err != nil {
		t.Fatalf("insert payment: %v", err)
	}
	if err := db.Exec(
		`UPDATE bills SET status = ? WHERE id = 1`,
		invoicedomain.BillStatusPartiallyPaid,
	).Error; err != nil {
		t.Fatalf("update status: %v", err)
	}

	later := &Engine{
		db:     engine.db,
		log:    engine.log,
		clock:  clock.Fixed(time.Date(2025, 10, 1, 2, 0, 0, 0, time.UTC)),
		cfg:    engine.cfg,
		outbox: engine.outbox,
	}
	report, err := later.Scan(context.Background())
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if report.Penalized != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	bill := readBill(t, db, 1)
	// Outstanding after the first penalty and the 3000c payment is 2250;
	// 5% of that is 112.5, rounded half-up to 113.
	if bill.PenaltyCents != 250+113 || bill.TotalCents != 5363 {
		t.Fatalf("unexpected amounts %+v", bill)
	}
	if *bill.PenaltyPeriod != "2025-10" {
		t.Fatalf("unexpected penalty period %v", *bill.PenaltyPeriod)
	}
}
