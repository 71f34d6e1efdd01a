package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcobill/internal/clock"
	"github.com/smallbiznis/telcobill/internal/events"
	invoicedomain "github.com/smallbiznis/telcobill/internal/invoice/domain"
	"github.com/smallbiznis/telcobill/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/telcobill/internal/payment/domain"
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
	Outbox  *events.Outbox
	Metrics *metrics.BillingMetrics
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	outbox  *events.Outbox
	metrics *metrics.BillingMetrics
}

func NewService(p ServiceParam) paymentdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("payment.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		outbox:  p.Outbox,
		metrics: p.Metrics,
	}
}

func (s *Service) Apply(ctx context.Context, req paymentdomain.ApplyRequest) (*paymentdomain.Receipt, error) {
	billID, err := snowflake.ParseString(strings.TrimSpace(req.BillID))
	if err != nil || billID == 0 {
		return nil, paymentdomain.ErrInvalidBill
	}
	if req.AmountCents <= 0 {
		return nil, paymentdomain.ErrInvalidPaymentAmount
	}
	if !req.Mode.Valid() {
		return nil, paymentdomain.ErrInvalidPaymentMode
	}

	paidAt := req.PaidAt
	if paidAt.IsZero() {
		paidAt = s.clock.Now()
	}

	var receipt paymentdomain.Receipt
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bill invoicedomain.Bill
		if err := tx.WithContext(ctx).Raw(
			`SELECT * FROM bills WHERE id = ?`+db.RowLock(tx),
			billID,
		).Scan(&bill).Error; err != nil {
			return err
		}
		if bill.ID == 0 {
			return paymentdomain.ErrBillNotFound
		}

		now := s.clock.Now()
		payment := paymentdomain.Payment{
			ID:          s.genID.Generate(),
			BillID:      billID,
			AmountCents: req.AmountCents,
			Mode:        req.Mode,
			PaidAt:      paidAt.UTC(),
			RecordedAt:  now,
		}
		if err := tx.WithContext(ctx).Create(&payment).Error; err != nil {
			return err
		}

		var paidTotal int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT COALESCE(SUM(amount_cents), 0) FROM payments WHERE bill_id = ?`,
			billID,
		).Scan(&paidTotal).Error; err != nil {
			return err
		}

		status := settlementStatus(bill, paidTotal)
		if status != bill.Status {
			if err := tx.WithContext(ctx).Exec(
				`UPDATE bills SET status = ?, updated_at = ? WHERE id = ?`,
				status, now, billID,
			).Error; err != nil {
				return err
			}
		}

		receipt = paymentdomain.Receipt{
			Payment:        payment,
			BillStatus:     status,
			PaidTotalCents: paidTotal,
		}
		if paidTotal > bill.TotalCents {
			receipt.SurplusCents = paidTotal - bill.TotalCents
		}

		if err := s.outbox.PublishTx(ctx, tx, events.Event{
			Type:       events.EventPaymentReceived,
			CustomerID: bill.CustomerID,
			DedupeKey:  "payment.received:" + payment.ID.String(),
			Payload: map[string]any{
				"bill_id":      billID.String(),
				"payment_id":   payment.ID.String(),
				"amount_cents": payment.AmountCents,
				"mode":         string(payment.Mode),
			},
		}); err != nil {
			return err
		}
		if status == invoicedomain.BillStatusPaid && bill.Status != invoicedomain.BillStatusPaid {
			if err := s.outbox.PublishTx(ctx, tx, events.Event{
				Type:       events.EventBillPaid,
				CustomerID: bill.CustomerID,
				DedupeKey:  "bill.paid:" + billID.String(),
				Payload: map[string]any{
					"bill_id":          billID.String(),
					"paid_total_cents": paidTotal,
					"surplus_cents":    receipt.SurplusCents,
				},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncPaymentApplied()
	s.log.Info("payment applied",
		zap.String("bill_id", billID.String()),
		zap.Int64("amount_cents", req.AmountCents),
		zap.String("status", string(receipt.BillStatus)),
	)
	return &receipt, nil
}

// settlementStatus derives the bill status from the recomputed paid total.
// A late payment reopens an OVERDUE bill through the same rule.
func settlementStatus(bill invoicedomain.Bill, paidTotal int64) invoicedomain.BillStatus {
	switch {
	case paidTotal >= bill.TotalCents && paidTotal > 0:
		return invoicedomain.BillStatusPaid
	case paidTotal > 0:
		return invoicedomain.BillStatusPartiallyPaid
	default:
		return bill.Status
	}
}

func (s *Service) ListByBill(ctx context.Context, billID string) ([]paymentdomain.Payment, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(billID))
	if err != nil || id == 0 {
		return nil, paymentdomain.ErrInvalidBill
	}

	var payments []paymentdomain.Payment
	if err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM payments WHERE bill_id = ? ORDER BY recorded_at ASC, id ASC`,
		id,
	).Scan(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
