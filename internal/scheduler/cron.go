package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/telcobill/internal/config"
	"github.com/smallbiznis/telcobill/internal/penalty"
	"github.com/smallbiznis/telcobill/internal/period"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// CronRunner is the external trigger: it fires the billing cycle for the
// previous (just closed) month and the daily penalty scan. Both jobs are
// idempotent, so overlapping or repeated firings are harmless.
type CronRunner struct {
	log       *zap.Logger
	cfg       config.Config
	scheduler *Scheduler
	penalties *penalty.Engine
	cron      *cron.Cron
}

func NewCronRunner(log *zap.Logger, cfg config.Config, scheduler *Scheduler, penalties *penalty.Engine) *CronRunner {
	return &CronRunner{
		log:       log.Named("billing.cron"),
		cfg:       cfg,
		scheduler: scheduler,
		penalties: penalties,
		cron:      cron.New(),
	}
}

func (r *CronRunner) Start() error {
	if _, err := r.cron.AddFunc(r.cfg.BillingCronSpec, r.runBillingCycle); err != nil {
		return err
	}
	if _, err := r.cron.AddFunc(r.cfg.PenaltyCronSpec, r.runPenaltyScan); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

func (r *CronRunner) Stop() {
	<-r.cron.Stop().Done()
}

func (r *CronRunner) runBillingCycle() {
	ctx := context.Background()
	month := previousMonth()
	if _, err := r.scheduler.RunCycle(ctx, month); err != nil {
		r.log.Error("scheduled billing cycle failed", zap.String("month", month.String()), zap.Error(err))
	}
}

func (r *CronRunner) runPenaltyScan() {
	if _, err := r.penalties.Scan(context.Background()); err != nil {
		r.log.Error("scheduled penalty scan failed", zap.Error(err))
	}
}

func previousMonth() period.Month {
	firstOfCurrent := period.Of(time.Now().UTC()).Start()
	return period.Of(firstOfCurrent.AddDate(0, 0, -1))
}

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Provide(NewCronRunner),
	fx.Invoke(registerCron),
)

func registerCron(lc fx.Lifecycle, runner *CronRunner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return runner.Start()
		},
		OnStop: func(ctx context.Context) error {
			runner.Stop()
			return nil
		},
	})
}
