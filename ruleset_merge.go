package xprop

import "github.com/jacoelho/xprop/internal/metrics"

// Union combines s, the schema-origin set, with other, the pipeline-origin
// set. The precedence of other selects the strategy:
//
//   - SchemaOnly: s when it has rules, otherwise other.
//   - PipelineOnly: other when it has rules, otherwise s.
//   - Schema: per property, the rule of s wins; properties only in other are
//     appended.
//   - Pipeline: per property, the rule of other wins; properties only in s
//     are appended.
//
// The per-property strategies drop every rule whose resolved mode is
// ModeIgnore, so the winning side can veto a property. Neither input is
// modified.
func (s *RuleSet) Union(other *RuleSet) *RuleSet {
	return s.union(other, nil)
}

func (s *RuleSet) union(other *RuleSet, m *metrics.Metrics) *RuleSet {
	precedence := other.Precedence()
	m.Merged(precedence.String())

	switch precedence {
	case PrecedenceSchemaOnly:
		if !s.IsEmpty() {
			return s
		}
		return orEmpty(other)
	case PrecedencePipelineOnly:
		if !other.IsEmpty() {
			return other
		}
		return orEmpty(s)
	case PrecedencePipeline:
		return mergeRules(other, s, precedence)
	default:
		return mergeRules(s, other, precedence)
	}
}

func mergeRules(winner, loser *RuleSet, precedence Precedence) *RuleSet {
	out := &RuleSet{
		index:      make(map[QName]int, winner.Len()+loser.Len()),
		rules:      make([]Rule, 0, winner.Len()+loser.Len()),
		precedence: precedence,
	}
	for rule := range winner.All() {
		out.appendRetained(rule)
	}
	for rule := range loser.All() {
		if _, ok := winner.Rule(rule.name); ok {
			continue
		}
		out.appendRetained(rule)
	}
	return out
}

func (s *RuleSet) appendRetained(rule Rule) {
	if rule.mode == ModeIgnore {
		return
	}
	s.index[rule.name] = len(s.rules)
	s.rules = append(s.rules, rule)
}

func orEmpty(s *RuleSet) *RuleSet {
	if s == nil {
		return EmptyRuleSet()
	}
	return s
}
