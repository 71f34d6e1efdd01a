package notify

import (
	"context"
	"time"

	"github.com/smallbiznis/telcobill/internal/events"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config controls the outbox drain loop.
type Config struct {
	BatchSize    int
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:    50,
		PollInterval: 5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	return c
}

type WorkerParams struct {
	fx.In

	Log      *zap.Logger
	Outbox   *events.Outbox
	Notifier Notifier
	Config   Config `optional:"true"`
}

// Worker drains the billing_events outbox and hands each event to the
// notifier. Failures are logged and retried on the next tick.
type Worker struct {
	log      *zap.Logger
	outbox   *events.Outbox
	notifier Notifier
	cfg      Config
}

func NewWorker(p WorkerParams) *Worker {
	return &Worker{
		log:      p.Log.Named("notify.worker"),
		outbox:   p.Outbox,
		notifier: p.Notifier,
		cfg:      p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("outbox drain failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) error {
	records, err := w.outbox.FetchUnpublished(ctx, w.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, record := range records {
		w.notifier.Notify(ctx, record.CustomerID, record.EventType, record.Payload)
	}
	return nil
}

var Module = fx.Module("notify",
	fx.Provide(NewLogNotifier),
	fx.Provide(DefaultConfig),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func runWorker(lc fx.Lifecycle, worker *Worker) {
	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, c := context.WithCancel(context.Background())
			cancel = c
			go worker.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}
