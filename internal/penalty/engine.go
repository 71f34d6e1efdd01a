package penalty

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/telcobill/internal/clock"
	"github.com/smallbiznis/telcobill/internal/config"
	"github.com/smallbiznis/telcobill/internal/events"
	invoicedomain "github.com/smallbiznis/telcobill/internal/invoice/domain"
	"github.com/smallbiznis/telcobill/internal/observability/metrics"
	"github.com/smallbiznis/telcobill/internal/period"
	"github.com/smallbiznis/telcobill/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("penalty",
	fx.Provide(NewEngine),
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Cfg     config.Config
	Outbox  *events.Outbox
	Metrics *metrics.BillingMetrics
}

// Engine scans for bills past their due date and applies the late penalty.
// Scans are safe to repeat: a bill carries a marker for the period whose
// penalty it already received, so re-runs within that period skip it.
type Engine struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	cfg     config.Config
	outbox  *events.Outbox
	metrics *metrics.BillingMetrics
}

func NewEngine(p Params) *Engine {
	return &Engine{
		db:      p.DB,
		log:     p.Log.Named("penalty.engine"),
		clock:   p.Clock,
		cfg:     p.Cfg,
		outbox:  p.Outbox,
		metrics: p.Metrics,
	}
}

// Report summarizes one scan.
type Report struct {
	Scanned   int `json:"scanned"`
	Penalized int `json:"penalized"`
	Skipped   int `json:"skipped"`
}

type overdueCandidate struct {
	ID snowflake.ID
}

// Scan walks every PENDING or PARTIALLY_PAID bill whose due date has passed,
// adds outstanding * penalty_rate to the total and marks the bill OVERDUE.
func (e *Engine) Scan(ctx context.Context) (Report, error) {
	now := e.clock.Now()
	cycle := period.Of(now).String()

	var candidates []overdueCandidate
	if err := e.db.WithContext(ctx).Raw(
		`SELECT id FROM bills
		 WHERE status IN (?, ?) AND due_date < ?
		 ORDER BY id ASC`,
		invoicedomain.BillStatusPending,
		invoicedomain.BillStatusPartiallyPaid,
		now,
	).Scan(&candidates).Error; err != nil {
		return Report{}, err
	}

	report := Report{Scanned: len(candidates)}
	for _, candidate := range candidates {
		applied, err := e.penalize(ctx, candidate.ID, cycle, now)
		if err != nil {
			// One bad row must not abort the scan.
			e.log.Error("penalty application failed",
				zap.String("bill_id", candidate.ID.String()),
				zap.Error(err),
			)
			report.Skipped++
			continue
		}
		if applied {
			report.Penalized++
		} else {
			report.Skipped++
		}
	}
	return report, nil
}

func (e *Engine) penalize(ctx context.Context, billID snowflake.ID, cycle string, now time.Time) (bool, error) {
	applied := false
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bill invoicedomain.Bill
		if err := tx.WithContext(ctx).Raw(
			`SELECT * FROM bills WHERE id = ?`+db.RowLock(tx),
			billID,
		).Scan(&bill).Error; err != nil {
			return err
		}
		if bill.ID == 0 {
			return nil
		}
		// Re-check under the lock: a concurrent payment may have settled
		// the bill, and a concurrent scan may have already penalized it.
		if bill.Status != invoicedomain.BillStatusPending && bill.Status != invoicedomain.BillStatusPartiallyPaid {
			return nil
		}
		if !bill.DueDate.Before(now) {
			return nil
		}
		if bill.PenaltyPeriod != nil && *bill.PenaltyPeriod == cycle {
			return nil
		}

		var paidTotal int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT COALESCE(SUM(amount_cents), 0) FROM payments WHERE bill_id = ?`,
			billID,
		).Scan(&paidTotal).Error; err != nil {
			return err
		}

		outstanding := bill.TotalCents - paidTotal
		if outstanding <= 0 {
			return nil
		}

		penalty := decimal.NewFromInt(outstanding).
			Mul(e.cfg.Billing.PenaltyRate).
			Round(0).
			IntPart()

		if err := tx.WithContext(ctx).Exec(
			`UPDATE bills
			 SET status = ?,
			     penalty_cents = penalty_cents + ?,
			     total_cents = total_cents + ?,
			     penalty_period = ?,
			     updated_at = ?
			 WHERE id = ?`,
			invoicedomain.BillStatusOverdue,
			penalty, penalty, cycle, now, billID,
		).Error; err != nil {
			return err
		}

		applied = true
		return e.outbox.PublishTx(ctx, tx, events.Event{
			Type:       events.EventBillOverdue,
			CustomerID: bill.CustomerID,
			DedupeKey:  "bill.overdue:" + billID.String() + ":" + cycle,
			Payload: map[string]any{
				"bill_id":           billID.String(),
				"penalty_cents":     penalty,
				"outstanding_cents": outstanding + penalty,
				"due_date":          bill.DueDate.Format("2006-01-02"),
			},
		})
	})
	if err != nil {
		return false, err
	}

	if applied {
		e.metrics.IncPenaltyApplied()
	}
	return applied, nil
}
