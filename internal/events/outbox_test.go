package events

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS billing_events (
			id BIGINT PRIMARY KEY,
			customer_id BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			dedupe_key TEXT,
			published BOOLEAN NOT NULL DEFAULT 0,
			created_at TIMESTAMP
		)`,
	).Error; err != nil {
		t.Fatalf("create billing_events: %v", err)
	}
	return db
}

func newTestOutbox(t *testing.T) (*Outbox, *gorm.DB) {
	t.Helper()
	db := setupOutboxTestDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return NewOutbox(db, node), db
}

func countEvents(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Raw(`SELECT COUNT(1) FROM billing_events`).Scan(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return count
}

func TestPublishDedupes(t *testing.T) {
	outbox, db := newTestOutbox(t)
	ctx := context.Background()

	event := Event{
		CustomerID: 1,
		Type:       EventInvoiceGenerated,
		DedupeKey:  "invoice.generated:42",
		Payload:    map[string]any{"bill_id": "42"},
	}
	for i := 0; i < 3; i++ {
		if err := outbox.Publish(ctx, event); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	if count := countEvents(t, db); count != 1 {
		t.Fatalf("expected one event, got %d", count)
	}
}

func TestPublishRejectsMissingType(t *testing.T) {
	outbox, _ := newTestOutbox(t)

	if err := outbox.Publish(context.Background(), Event{CustomerID: 1}); err == nil {
		t.Fatal("expected error for missing event type")
	}
}

func TestFetchUnpublishedMarksRows(t *testing.T) {
	outbox, _ := newTestOutbox(t)
	ctx := context.Background()

	for _, key := range []string{"a", "b"} {
		if err := outbox.Publish(ctx, Event{
			CustomerID: 1,
			Type:       EventPaymentReceived,
			DedupeKey:  key,
		}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	records, err := outbox.FetchUnpublished(ctx, 10)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	// Drained rows stay drained.
	records, err = outbox.FetchUnpublished(ctx, 10)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestPublishTxRequiresTransaction(t *testing.T) {
	outbox, _ := newTestOutbox(t)

	err := outbox.PublishTx(context.Background(), nil, Event{CustomerID: 1, Type: EventBillPaid})
	if err == nil {
		t.Fatal("expected error for missing transaction")
	}
}
