package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/telcobill/internal/clock"
	"github.com/smallbiznis/telcobill/internal/config"
	customerdomain "github.com/smallbiznis/telcobill/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/telcobill/internal/invoice/domain"
	"github.com/smallbiznis/telcobill/internal/observability/metrics"
	"github.com/smallbiznis/telcobill/internal/period"
	plandomain "github.com/smallbiznis/telcobill/internal/plan/domain"
	"github.com/smallbiznis/telcobill/internal/rating"
	usagedomain "github.com/smallbiznis/telcobill/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Cfg         config.Config
	CustomerSvc customerdomain.Service
	UsageSvc    usagedomain.Service
	PlanSvc     plandomain.Service
	InvoiceSvc  invoicedomain.Service
	Metrics     *metrics.BillingMetrics
}

// Scheduler runs one billing cycle across all eligible customers. It owns no
// timers itself; the cron adapter (or an operator endpoint) invokes RunCycle.
type Scheduler struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	cfg         config.Config
	customerSvc customerdomain.Service
	usageSvc    usagedomain.Service
	planSvc     plandomain.Service
	invoiceSvc  invoicedomain.Service
	metrics     *metrics.BillingMetrics
}

func New(p Params) *Scheduler {
	return &Scheduler{
		db:          p.DB,
		log:         p.Log.Named("billing.scheduler"),
		genID:       p.GenID,
		clock:       p.Clock,
		cfg:         p.Cfg,
		customerSvc: p.CustomerSvc,
		usageSvc:    p.UsageSvc,
		planSvc:     p.PlanSvc,
		invoiceSvc:  p.InvoiceSvc,
		metrics:     p.Metrics,
	}
}

// RunReport summarizes one cycle run.
type RunReport struct {
	Month   period.Month `json:"month"`
	Total   int          `json:"total"`
	Billed  int          `json:"billed"`
	Skipped int          `json:"skipped"`
	Failed  int          `json:"failed"`
}

// CycleRun is the audit row recorded for every invocation, failed customers
// included, so repeated triggers for the same period stay observable.
type CycleRun struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	Month      period.Month `gorm:"type:text;not null;index"`
	StartedAt  time.Time    `gorm:"not null"`
	FinishedAt *time.Time
	Billed     int     `gorm:"not null;default:0"`
	Skipped    int     `gorm:"not null;default:0"`
	Failed     int     `gorm:"not null;default:0"`
	LastError  *string `gorm:"type:text"`
}

// TableName sets the database table name.
func (CycleRun) TableName() string { return "cycle_runs" }

// RunCycle bills every ACTIVE customer for the given month. Customers are
// processed by a bounded worker pool; one customer's failure is recorded and
// skipped, never propagated, so a bad record cannot abort the run. Re-running
// a month is idempotent: existing bills are left untouched.
func (s *Scheduler) RunCycle(ctx context.Context, month period.Month) (RunReport, error) {
	if !month.Valid() {
		return RunReport{}, invoicedomain.ErrInvalidMonth
	}

	started := s.clock.Now()
	run := CycleRun{
		ID:        s.genID.Generate(),
		Month:     month,
		StartedAt: started,
	}
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return RunReport{}, err
	}

	customers, err := s.customerSvc.ListBillable(ctx)
	if err != nil {
		s.recordRunError(ctx, run.ID, err)
		return RunReport{}, err
	}

	report := RunReport{Month: month, Total: len(customers)}
	var mu sync.Mutex
	var lastErr error

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.Billing.CycleWorkers)

	for _, customerID := range customers {
		customerID := customerID
		group.Go(func() error {
			outcome, err := s.billCustomer(groupCtx, customerID, month)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed++
				lastErr = err
				s.metrics.ObserveCycleOutcome("failed")
				s.log.Error("customer billing failed",
					zap.String("customer_id", customerID.String()),
					zap.String("month", month.String()),
					zap.Error(err),
				)
			case outcome == outcomeBilled:
				report.Billed++
				s.metrics.ObserveCycleOutcome("billed")
			default:
				report.Skipped++
				s.metrics.ObserveCycleOutcome("skipped")
			}
			// The per-customer error stays local: the cycle always
			// continues for the remaining customers.
			return nil
		})
	}
	_ = group.Wait()

	finished := s.clock.Now()
	s.metrics.ObserveCycleDuration(finished.Sub(started).Seconds())
	s.finishRun(ctx, run.ID, report, finished, lastErr)

	s.log.Info("billing cycle finished",
		zap.String("month", month.String()),
		zap.Int("total", report.Total),
		zap.Int("billed", report.Billed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

type billingOutcome int

const (
	outcomeBilled billingOutcome = iota
	outcomeSkipped
)

func (s *Scheduler) billCustomer(ctx context.Context, customerID snowflake.ID, month period.Month) (billingOutcome, error) {
	totals, err := s.usageSvc.AggregateForCustomer(ctx, customerID, month)
	if err != nil {
		return outcomeSkipped, err
	}
	if len(totals) == 0 {
		// No active SIMs: nothing to bill this cycle.
		return outcomeSkipped, nil
	}

	rates := rating.Rates{
		Tax:       s.cfg.Billing.TaxRate,
		Surcharge: s.cfg.Billing.SurchargeRate,
	}

	lines := make([]invoicedomain.ChargeLine, 0, len(totals))
	for _, simUsage := range totals {
		tariff, err := s.planSvc.Resolve(ctx, simUsage.PlanID)
		if err != nil {
			return outcomeSkipped, err
		}
		charge, err := rating.Calculate(simUsage, tariff, rates)
		if err != nil {
			return outcomeSkipped, err
		}
		lines = append(lines, invoicedomain.ChargeLine{
			SimID:          simUsage.SimID,
			PlanCode:       tariff.Code,
			SubtotalCents:  charge.SubtotalCents,
			TaxCents:       charge.TaxCents,
			SurchargeCents: charge.SurchargeCents,
			TotalCents:     charge.TotalCents,
		})
	}

	if _, err := s.invoiceSvc.Generate(ctx, customerID, month, lines); err != nil {
		if errors.Is(err, invoicedomain.ErrDuplicateBill) {
			// Already billed in an earlier run of this cycle.
			return outcomeSkipped, nil
		}
		return outcomeSkipped, err
	}
	return outcomeBilled, nil
}

func (s *Scheduler) finishRun(ctx context.Context, runID snowflake.ID, report RunReport, finished time.Time, lastErr error) {
	var message *string
	if lastErr != nil {
		text := lastErr.Error()
		message = &text
	}
	if err := s.db.WithContext(ctx).Exec(
		`UPDATE cycle_runs
		 SET finished_at = ?, billed = ?, skipped = ?, failed = ?, last_error = ?
		 WHERE id = ?`,
		finished, report.Billed, report.Skipped, report.Failed, message, runID,
	).Error; err != nil {
		s.log.Warn("failed to finalize cycle run", zap.String("run_id", runID.String()), zap.Error(err))
	}
}

func (s *Scheduler) recordRunError(ctx context.Context, runID snowflake.ID, err error) {
	message := err.Error()
	now := s.clock.Now()
	if updateErr := s.db.WithContext(ctx).Exec(
		`UPDATE cycle_runs SET finished_at = ?, last_error = ? WHERE id = ?`,
		now, message, runID,
	).Error; updateErr != nil {
		s.log.Warn("failed to record cycle error", zap.String("run_id", runID.String()), zap.Error(updateErr))
	}
}
