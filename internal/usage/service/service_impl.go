package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/telcobill/internal/customer/domain"
	"github.com/smallbiznis/telcobill/internal/observability/metrics"
	"github.com/smallbiznis/telcobill/internal/period"
	usagedomain "github.com/smallbiznis/telcobill/internal/usage/domain"
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
	Metrics *metrics.BillingMetrics
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	metrics *metrics.BillingMetrics
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("usage.service"),
		genID:   p.GenID,
		metrics: p.Metrics,
	}
}

func (s *Service) Ingest(ctx context.Context, req usagedomain.IngestRequest) (*usagedomain.UsageRecord, error) {
	simID, err := snowflake.ParseString(strings.TrimSpace(req.SimID))
	if err != nil || simID == 0 {
		return nil, usagedomain.ErrInvalidSim
	}
	month, err := period.Parse(strings.TrimSpace(req.Month))
	if err != nil {
		return nil, usagedomain.ErrInvalidUsageData
	}
	if req.CallMinutes < 0 || req.DataGB < 0 || req.SmsCount < 0 {
		return nil, usagedomain.ErrInvalidUsageData
	}

	var record *usagedomain.UsageRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sim struct {
			ID         snowflake.ID
			CustomerID snowflake.ID
		}
		if err := tx.WithContext(ctx).Raw(
			`SELECT id, customer_id FROM sims WHERE id = ?`,
			simID,
		).Scan(&sim).Error; err != nil {
			return err
		}
		if sim.ID == 0 {
			return usagedomain.ErrSimNotFound
		}

		// Serialize with bill generation on the customer row; without it a
		// bill could land between the closed-month check and the write.
		var locked snowflake.ID
		if err := tx.WithContext(ctx).Raw(
			`SELECT id FROM customers WHERE id = ?`+db.RowLock(tx),
			sim.CustomerID,
		).Scan(&locked).Error; err != nil {
			return err
		}

		// A generated bill closes the month for this customer.
		var billed int64
		if err := tx.WithContext(ctx).Raw(
			`SELECT COUNT(1) FROM bills WHERE customer_id = ? AND month = ?`,
			sim.CustomerID, month,
		).Scan(&billed).Error; err != nil {
			return err
		}
		if billed > 0 {
			return usagedomain.ErrMonthClosed
		}

		now := time.Now().UTC()
		var existing usagedomain.UsageRecord
		if err := tx.WithContext(ctx).Raw(
			`SELECT * FROM usage_records WHERE sim_id = ? AND month = ?`,
			simID, month,
		).Scan(&existing).Error; err != nil {
			return err
		}

		if existing.ID != 0 {
			existing.CallMinutes = req.CallMinutes
			existing.DataGB = req.DataGB
			existing.SmsCount = req.SmsCount
			existing.UpdatedAt = now
			record = &existing
			return tx.WithContext(ctx).Exec(
				`UPDATE usage_records SET call_minutes = ?, data_gb = ?, sms_count = ?, updated_at = ?
				 WHERE id = ?`,
				req.CallMinutes, req.DataGB, req.SmsCount, now, existing.ID,
			).Error
		}

		record = &usagedomain.UsageRecord{
			ID:          s.genID.Generate(),
			SimID:       simID,
			Month:       month,
			CallMinutes: req.CallMinutes,
			DataGB:      req.DataGB,
			SmsCount:    req.SmsCount,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.WithContext(ctx).Create(record).Error
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncUsageIngested()
	return record, nil
}

// AggregateForCustomer joins the customer's ACTIVE SIMs against the month's
// usage rows. Results are ordered by SIM ID so a cycle run is deterministic.
func (s *Service) AggregateForCustomer(ctx context.Context, customerID snowflake.ID, month period.Month) ([]usagedomain.SimUsage, error) {
	if customerID == 0 {
		return nil, usagedomain.ErrInvalidCustomer
	}

	var totals []usagedomain.SimUsage
	err := s.db.WithContext(ctx).Raw(
		`SELECT s.id AS sim_id,
		        s.plan_id AS plan_id,
		        COALESCE(SUM(u.call_minutes), 0) AS call_minutes,
		        COALESCE(SUM(u.data_gb), 0) AS data_gb,
		        COALESCE(SUM(u.sms_count), 0) AS sms_count
		 FROM sims s
		 LEFT JOIN usage_records u ON u.sim_id = s.id AND u.month = ?
		 WHERE s.customer_id = ? AND s.status = ?
		 GROUP BY s.id, s.plan_id
		 ORDER BY s.id ASC`,
		month, customerID, customerdomain.SimStatusActive,
	).Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func (s *Service) List(ctx context.Context, simID string, month period.Month) ([]usagedomain.UsageRecord, error) {
	query := `SELECT * FROM usage_records WHERE 1=1`
	args := []any{}

	if trimmed := strings.TrimSpace(simID); trimmed != "" {
		id, err := snowflake.ParseString(trimmed)
		if err != nil || id == 0 {
			return nil, usagedomain.ErrInvalidSim
		}
		query += ` AND sim_id = ?`
		args = append(args, id)
	}
	if month != "" {
		if !month.Valid() {
			return nil, usagedomain.ErrInvalidUsageData
		}
		query += ` AND month = ?`
		args = append(args, month)
	}
	query += ` ORDER BY month DESC, sim_id ASC`

	var records []usagedomain.UsageRecord
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
