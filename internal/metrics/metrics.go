// Package metrics exposes prometheus counters for rule execution and XPath
// matching. A nil *Metrics is valid and records nothing.
package metrics

import (
	stderrors "errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "xprop"

// Metrics holds the counters updated by rule sets and mutator readers.
type Metrics struct {
	xpathMatches   prometheus.Counter
	ruleExecutions *prometheus.CounterVec
	merges         *prometheus.CounterVec
}

// New creates the counters and registers them on reg. Counters already
// registered on reg are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		xpathMatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "xpath_matches_total",
			Help:      "Total number of XPath match events seen while streaming",
		}),
		ruleExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_executions_total",
			Help:      "Total number of rule executions by extraction mode",
		}, []string{"mode"}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_set_merges_total",
			Help:      "Total number of rule set merges by precedence",
		}, []string{"precedence"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.xpathMatches, err = register(reg, m.xpathMatches); err != nil {
		return nil, err
	}
	if m.ruleExecutions, err = register(reg, m.ruleExecutions); err != nil {
		return nil, err
	}
	if m.merges, err = register(reg, m.merges); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if stderrors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metrics: %w", err)
	}
	return c, nil
}

// XPathMatched counts one match event.
func (m *Metrics) XPathMatched() {
	if m == nil {
		return
	}
	m.xpathMatches.Inc()
}

// RuleExecuted counts one rule execution in mode.
func (m *Metrics) RuleExecuted(mode string) {
	if m == nil {
		return
	}
	m.ruleExecutions.WithLabelValues(mode).Inc()
}

// Merged counts one merge under precedence.
func (m *Metrics) Merged(precedence string) {
	if m == nil {
		return
	}
	m.merges.WithLabelValues(precedence).Inc()
}
