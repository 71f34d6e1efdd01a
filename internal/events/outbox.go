package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcobill/pkg/db"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var Module = fx.Module("events",
	fx.Provide(NewOutbox),
)

// Event describes a billing event to store in the outbox.
type Event struct {
	CustomerID snowflake.ID
	Type       string
	Payload    map[string]any
	DedupeKey  string
}

// Record is a stored outbox row.
type Record struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	CustomerID snowflake.ID      `gorm:"not null;index"`
	EventType  string            `gorm:"type:text;not null"`
	Payload    datatypes.JSONMap `gorm:"not null"`
	DedupeKey  *string           `gorm:"type:text;uniqueIndex:ux_billing_events_dedupe"`
	Published  bool              `gorm:"not null;default:false;index"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Record) TableName() string { return "billing_events" }

// Outbox inserts billing events into the billing_events table so notification
// delivery stays decoupled from the transactions that produce the events.
type Outbox struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutbox(db *gorm.DB, genID *snowflake.Node) *Outbox {
	return &Outbox{db: db, genID: genID}
}

// Publish stores an event using the default database connection.
func (o *Outbox) Publish(ctx context.Context, event Event) error {
	return o.publish(ctx, o.db, event)
}

// PublishTx stores an event inside an existing transaction, so the event is
// only visible if the producing write commits.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return errors.New("missing_transaction")
	}
	return o.publish(ctx, tx, event)
}

func (o *Outbox) publish(ctx context.Context, conn *gorm.DB, event Event) error {
	if o == nil || conn == nil || o.genID == nil {
		return errors.New("outbox_unavailable")
	}
	if event.CustomerID == 0 {
		return errors.New("invalid_customer_id")
	}
	name := strings.TrimSpace(event.Type)
	if name == "" {
		return errors.New("missing_event_type")
	}

	payload := datatypes.JSONMap{}
	for key, value := range event.Payload {
		if strings.TrimSpace(key) == "" {
			continue
		}
		payload[key] = value
	}

	record := Record{
		ID:         o.genID.Generate(),
		CustomerID: event.CustomerID,
		EventType:  name,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}
	if dedupe := strings.TrimSpace(event.DedupeKey); dedupe != "" {
		record.DedupeKey = &dedupe

		var exists int64
		if err := conn.WithContext(ctx).Raw(
			`SELECT COUNT(1) FROM billing_events WHERE dedupe_key = ?`,
			dedupe,
		).Scan(&exists).Error; err != nil {
			return err
		}
		if exists > 0 {
			return nil
		}
	}

	return conn.WithContext(ctx).Create(&record).Error
}

// FetchUnpublished returns pending events oldest-first and marks them
// published. Delivery is at-least-once; consumers dedupe on the key.
func (o *Outbox) FetchUnpublished(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	var records []Record
	err := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Raw(
			`SELECT * FROM billing_events WHERE published = ? ORDER BY id ASC LIMIT ?`+db.RowLockSkipLocked(tx),
			false, limit,
		).Scan(&records).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		ids := make([]snowflake.ID, 0, len(records))
		for _, record := range records {
			ids = append(ids, record.ID)
		}
		return tx.WithContext(ctx).Exec(
			`UPDATE billing_events SET published = ? WHERE id IN ?`,
			true, ids,
		).Error
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
