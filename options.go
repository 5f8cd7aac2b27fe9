package xprop

import (
	"fmt"
	"log/slog"

	"github.com/jacoelho/xprop/internal/metrics"
)

type intOption struct {
	value int
	set   bool
}

func (o intOption) resolved() int {
	if !o.set {
		return 0
	}
	return o.value
}

// Options configures logging, metrics and streaming limits. The zero value is
// valid: a silent logger, no metrics and default limits.
type Options struct {
	logger         *slog.Logger
	metrics        *metrics.Metrics
	metricsErr     error
	maxDepth       intOption
	maxCaptureSize intOption
}

type resolvedOptions struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	limits  xmlLimits
}

func (o resolvedOptions) observer() observer {
	return observer{logger: o.logger, metrics: o.metrics}
}

func (o Options) withDefaults() (resolvedOptions, error) {
	if o.metricsErr != nil {
		return resolvedOptions{}, o.metricsErr
	}
	limits, err := resolveXMLLimits(o.maxDepth.resolved(), o.maxCaptureSize.resolved())
	if err != nil {
		return resolvedOptions{}, fmt.Errorf("xml limits: %w", err)
	}
	logger := o.logger
	if logger == nil {
		logger = discardLogger()
	}
	return resolvedOptions{
		logger:  logger,
		metrics: o.metrics,
		limits:  limits,
	}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
