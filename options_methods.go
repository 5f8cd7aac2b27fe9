package xprop

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jacoelho/xprop/internal/metrics"
)

// NewOptions returns a default, valid options value.
func NewOptions() Options {
	return Options{}
}

// Validate validates option values.
func (o Options) Validate() error {
	_, err := o.withDefaults()
	return err
}

// WithLogger sets the logger receiving debug traces of rule executions and
// matches (nil restores the silent default).
func (o Options) WithLogger(logger *slog.Logger) Options {
	o.logger = logger
	return o
}

// WithMetrics registers the xprop counters on reg and records into them.
// A registration failure is reported by Validate and by the constructors.
func (o Options) WithMetrics(reg prometheus.Registerer) Options {
	o.metrics, o.metricsErr = metrics.New(reg)
	return o
}

// WithMaxDepth sets the streamed document max element depth (0 uses default).
func (o Options) WithMaxDepth(value int) Options {
	o.maxDepth = intOption{value: value, set: true}
	return o
}

// WithMaxCaptureSize sets the max bytes of text captured for one matched
// element (0 uses default).
func (o Options) WithMaxCaptureSize(value int) Options {
	o.maxCaptureSize = intOption{value: value, set: true}
	return o
}
