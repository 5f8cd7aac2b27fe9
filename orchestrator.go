package xprop

import (
	"fmt"
	"io"
)

// Orchestrator combines the rule set of each document type's schema with the
// pipeline rule set and runs the result over messages.
type Orchestrator struct {
	locator  *Locator
	pipeline *RuleSet
	opts     resolvedOptions
}

// NewOrchestrator returns an Orchestrator merging pipeline into the schema
// rule sets found by locator. A nil pipeline is treated as empty.
func NewOrchestrator(locator *Locator, pipeline *RuleSet, opts Options) (*Orchestrator, error) {
	if locator == nil {
		return nil, fmt.Errorf("orchestrator: nil locator")
	}
	resolved, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Orchestrator{locator: locator, pipeline: orEmpty(pipeline), opts: resolved}, nil
}

// Pipeline returns the pipeline rule set.
func (o *Orchestrator) Pipeline() *RuleSet {
	return o.pipeline
}

// Effective returns the rule set applied to messages of type desc.
func (o *Orchestrator) Effective(desc DocumentType) (*RuleSet, error) {
	schema, err := o.locator.SchemaRuleSet(desc)
	if err != nil {
		return nil, err
	}
	effective := schema.union(o.pipeline, o.opts.metrics)
	o.opts.logger.Debug("merged rule sets",
		"schemaRules", schema.Len(),
		"pipelineRules", o.pipeline.Len(),
		"precedence", o.pipeline.Precedence().String(),
		"effectiveRules", effective.Len())
	return effective, nil
}

// Process applies the literal and bare rules of the effective set to store
// and returns a reader streaming r through its path rules.
func (o *Orchestrator) Process(desc DocumentType, r io.Reader, store Store) (*MutatorReader, error) {
	if r == nil || store == nil {
		return nil, fmt.Errorf("process: nil reader or store")
	}
	effective, err := o.Effective(desc)
	if err != nil {
		return nil, err
	}
	if err := effective.executeEager(store, o.opts.observer()); err != nil {
		return nil, err
	}
	return newMutatorReader(r, effective.PathRules(), store, o.opts), nil
}
