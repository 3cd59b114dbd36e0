package rebalance

import (
	"github.com/apmflow/rebalance/internal/logger"
	"github.com/apmflow/rebalance/internal/metrics"
	"github.com/apmflow/rebalance/types"
)

// Option configures an Assignor with optional dependencies.
type Option func(*assignorOptions)

// assignorOptions holds optional Assignor configuration.
type assignorOptions struct {
	logger  types.Logger
	metrics types.MetricsCollector
	clock   types.Clock
}

func defaultOptions() assignorOptions {
	return assignorOptions{
		logger:  logger.NewNop(),
		metrics: metrics.NewNop(),
		clock:   types.NewSystemClock(),
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation (compatible with zap.SugaredLogger)
//
// Returns:
//   - Option: Functional option for New
//
// Example:
//
//	assignor, _ := rebalance.New(cfg, rebalance.WithLogger(logging.NewSlogDefault()))
func WithLogger(logger types.Logger) Option {
	return func(o *assignorOptions) {
		o.logger = logger
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for New
//
// Example:
//
//	collector := metrics.NewPrometheus(nil, "rebalance")
//	assignor, _ := rebalance.New(cfg, rebalance.WithMetrics(collector))
func WithMetrics(metrics types.MetricsCollector) Option {
	return func(o *assignorOptions) {
		o.metrics = metrics
	}
}

// WithClock sets the clock used for scheduled-rebalance arithmetic.
//
// Production code keeps the default system clock; tests inject a fixed
// clock to drive grace-window scenarios deterministically.
//
// Parameters:
//   - clock: Clock implementation
//
// Returns:
//   - Option: Functional option for New
func WithClock(clock types.Clock) Option {
	return func(o *assignorOptions) {
		o.clock = clock
	}
}
