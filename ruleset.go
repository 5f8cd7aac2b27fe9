package xprop

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrDuplicateProperty reports rule sets declaring a property more than once.
var ErrDuplicateProperty = errors.New("property declared multiple times")

// RuleSet is an ordered collection of rules, unique by property name and
// tagged with the precedence used when it is the argument of a Union.
// A RuleSet is immutable once built; a nil *RuleSet behaves as empty.
type RuleSet struct {
	index      map[QName]int
	rules      []Rule
	precedence Precedence
}

var emptyRuleSet = &RuleSet{}

// EmptyRuleSet returns the shared empty rule set.
func EmptyRuleSet() *RuleSet {
	return emptyRuleSet
}

// NewRuleSet builds a rule set. Duplicate property names are rejected with
// an error wrapping ErrDuplicateProperty that lists every duplicate.
func NewRuleSet(precedence Precedence, rules ...Rule) (*RuleSet, error) {
	if precedence > PrecedencePipelineOnly {
		return nil, fmt.Errorf("unknown precedence %d", precedence)
	}
	s := &RuleSet{
		index:      make(map[QName]int, len(rules)),
		rules:      make([]Rule, 0, len(rules)),
		precedence: precedence,
	}
	var duplicates []string
	for _, rule := range rules {
		if _, ok := s.index[rule.name]; ok {
			if !slices.Contains(duplicates, rule.name.String()) {
				duplicates = append(duplicates, rule.name.String())
			}
			continue
		}
		s.index[rule.name] = len(s.rules)
		s.rules = append(s.rules, rule)
	}
	if len(duplicates) > 0 {
		return nil, fmt.Errorf("%w: [%s]", ErrDuplicateProperty, strings.Join(duplicates, ", "))
	}
	return s, nil
}

// MustRuleSet is like NewRuleSet but panics on error.
func MustRuleSet(precedence Precedence, rules ...Rule) *RuleSet {
	s, err := NewRuleSet(precedence, rules...)
	if err != nil {
		panic(err)
	}
	return s
}

// IsEmptySentinel reports whether s is the shared empty rule set.
func (s *RuleSet) IsEmptySentinel() bool {
	return s == emptyRuleSet
}

// Precedence returns the precedence tag.
func (s *RuleSet) Precedence() Precedence {
	if s == nil {
		return PrecedenceSchema
	}
	return s.precedence
}

// Len returns the number of rules.
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// IsEmpty reports whether the set has no rules.
func (s *RuleSet) IsEmpty() bool {
	return s.Len() == 0
}

// Rules returns a copy of the rules in declaration order.
func (s *RuleSet) Rules() []Rule {
	if s == nil {
		return nil
	}
	return slices.Clone(s.rules)
}

// All yields the rules in declaration order.
func (s *RuleSet) All() func(yield func(Rule) bool) {
	return func(yield func(Rule) bool) {
		if s == nil {
			return
		}
		for _, rule := range s.rules {
			if !yield(rule) {
				return
			}
		}
	}
}

// Rule returns the rule declared for name.
func (s *RuleSet) Rule(name QName) (Rule, bool) {
	if s == nil {
		return Rule{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return Rule{}, false
	}
	return s.rules[i], true
}

// PathRules returns the rules that execute on content matches.
func (s *RuleSet) PathRules() []Rule {
	return s.filter(Rule.HasXPath)
}

// EagerRules returns the literal and bare rules, which execute once per
// message without looking at the document.
func (s *RuleSet) EagerRules() []Rule {
	return s.filter(func(r Rule) bool { return !r.HasXPath() })
}

func (s *RuleSet) filter(keep func(Rule) bool) []Rule {
	var out []Rule
	for rule := range s.All() {
		if keep(rule) {
			out = append(out, rule)
		}
	}
	return out
}

// ExecuteEager applies the literal and bare rules to store.
func (s *RuleSet) ExecuteEager(store Store) error {
	return s.executeEager(store, observer{logger: discardLogger()})
}

func (s *RuleSet) executeEager(store Store, obs observer) error {
	for _, rule := range s.EagerRules() {
		if err := rule.execute(store, "", nil, obs); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports whether both sets hold equal rules, irrespective of order
// and precedence.
func (s *RuleSet) Equal(other *RuleSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for rule := range s.All() {
		theirs, ok := other.Rule(rule.name)
		if !ok || !rule.Equal(theirs) {
			return false
		}
	}
	return true
}

// String returns a debug form listing precedence and rules.
func (s *RuleSet) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "RuleSet[precedence:%s]", s.Precedence())
	for rule := range s.All() {
		b.WriteString("\n  ")
		b.WriteString(rule.String())
	}
	return b.String()
}
