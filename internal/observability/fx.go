package observability

import (
	"github.com/smallbiznis/telcobill/internal/observability/logger"
	"github.com/smallbiznis/telcobill/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	logger.Module,
	fx.Provide(metrics.Billing),
)
