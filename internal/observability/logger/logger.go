package logger

import (
	"github.com/smallbiznis/telcobill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the process-wide *zap.Logger and installs it as the zap
// global so packages without an injected logger can still log.
var Module = fx.Module("logger",
	fx.Provide(New),
	fx.Invoke(func(log *zap.Logger) {
		zap.ReplaceGlobals(log)
	}),
)

// New builds the root logger. Production uses JSON output; everything else
// gets the development console encoder.
func New(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
