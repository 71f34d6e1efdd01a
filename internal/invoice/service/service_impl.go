package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
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

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Cfg     config.Config
	Outbox  *events.Outbox
	Metrics *metrics.BillingMetrics
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	cfg     config.Config
	outbox  *events.Outbox
	metrics *metrics.BillingMetrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("invoice.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		cfg:     p.Cfg,
		outbox:  p.Outbox,
		metrics: p.Metrics,
	}
}

func (s *Service) Generate(ctx context.Context, customerID snowflake.ID, month period.Month, lines []invoicedomain.ChargeLine) (*invoicedomain.Bill, error) {
	if customerID == 0 {
		return nil, invoicedomain.ErrInvalidBill
	}
	if !month.Valid() {
		return nil, invoicedomain.ErrInvalidMonth
	}
	if len(lines) == 0 {
		return nil, invoicedomain.ErrEmptyBill
	}

	now := s.clock.Now()
	bill := &invoicedomain.Bill{
		ID:          s.genID.Generate(),
		CustomerID:  customerID,
		Month:       month,
		Status:      invoicedomain.BillStatusPending,
		DueDate:     month.DueDate(s.cfg.Billing.DueDays),
		GeneratedAt: now,
		UpdatedAt:   now,
	}
	for _, line := range lines {
		bill.SubtotalCents += line.SubtotalCents
		bill.TaxCents += line.TaxCents
		bill.SurchargeCents += line.SurchargeCents
		bill.TotalCents += line.TotalCents
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Generate and usage ingest serialize on the customer row, so the
		// month closes atomically with respect to late ingests.
		var locked snowflake.ID
		if err := tx.WithContext(ctx).Raw(
			`SELECT id FROM customers WHERE id = ?`+db.RowLock(tx),
			customerID,
		).Scan(&locked).Error; err != nil {
			return err
		}

		var exists int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(1) FROM bills WHERE customer_id = ? AND month = ?`,
			customerID, month,
		).Scan(&exists).Error; err != nil {
			return err
		}
		if exists > 0 {
			return invoicedomain.ErrDuplicateBill
		}

		if err := tx.WithContext(ctx).Create(bill).Error; err != nil {
			// Concurrent generates can both pass the count check; the loser
			// hits the (customer_id, month) unique index instead.
			if db.IsUniqueViolation(err) {
				return invoicedomain.ErrDuplicateBill
			}
			return err
		}

		for _, line := range lines {
			record := invoicedomain.BillLine{
				ID:             s.genID.Generate(),
				BillID:         bill.ID,
				SimID:          line.SimID,
				PlanCode:       line.PlanCode,
				SubtotalCents:  line.SubtotalCents,
				TaxCents:       line.TaxCents,
				SurchargeCents: line.SurchargeCents,
				TotalCents:     line.TotalCents,
				CreatedAt:      now,
			}
			if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
				return err
			}
		}

		return s.outbox.PublishTx(ctx, tx, events.Event{
			Type:       events.EventInvoiceGenerated,
			CustomerID: customerID,
			DedupeKey:  "invoice.generated:" + bill.ID.String(),
			Payload: map[string]any{
				"bill_id":     bill.ID.String(),
				"month":       month.String(),
				"total_cents": bill.TotalCents,
				"due_date":    bill.DueDate.Format("2006-01-02"),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncInvoiceGenerated()
	s.log.Info("bill generated",
		zap.String("bill_id", bill.ID.String()),
		zap.String("customer_id", customerID.String()),
		zap.String("month", month.String()),
		zap.Int64("total_cents", bill.TotalCents),
	)
	return bill, nil
}

func (s *Service) GetByID(ctx context.Context, billID string) (*invoicedomain.Bill, []invoicedomain.BillLine, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(billID))
	if err != nil || id == 0 {
		return nil, nil, invoicedomain.ErrInvalidBill
	}

	var bill invoicedomain.Bill
	if err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM bills WHERE id = ?`,
		id,
	).Scan(&bill).Error; err != nil {
		return nil, nil, err
	}
	if bill.ID == 0 {
		return nil, nil, invoicedomain.ErrBillNotFound
	}

	var lines []invoicedomain.BillLine
	if err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM bill_lines WHERE bill_id = ? ORDER BY sim_id ASC`,
		id,
	).Scan(&lines).Error; err != nil {
		return nil, nil, err
	}
	return &bill, lines, nil
}

func (s *Service) List(ctx context.Context, customerID string, status invoicedomain.BillStatus) ([]invoicedomain.Bill, error) {
	query := `SELECT * FROM bills WHERE 1=1`
	args := []any{}

	if trimmed := strings.TrimSpace(customerID); trimmed != "" {
		id, err := snowflake.ParseString(trimmed)
		if err != nil || id == 0 {
			return nil, invoicedomain.ErrInvalidBill
		}
		query += ` AND customer_id = ?`
		args = append(args, id)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY month DESC, customer_id ASC`

	var bills []invoicedomain.Bill
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&bills).Error; err != nil {
		return nil, err
	}
	return bills, nil
}
