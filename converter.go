package xprop

import "strings"

// ParseRuleSet reads a rule set from its XML text form. Blank text yields the
// shared empty rule set.
func ParseRuleSet(text string) (*RuleSet, error) {
	if strings.TrimSpace(text) == "" {
		return EmptyRuleSet(), nil
	}
	return readRuleSet([]byte(text))
}

// FormatRuleSet returns the XML text form of s. Empty sets format as "".
func FormatRuleSet(s *RuleSet) string {
	if s.IsEmpty() {
		return ""
	}
	text, _ := s.MarshalText()
	return string(text)
}

// TextConverter converts rule sets to and from the opaque strings carried by
// pipeline configuration.
type TextConverter struct{}

// FromText parses text; see ParseRuleSet.
func (TextConverter) FromText(text string) (*RuleSet, error) {
	return ParseRuleSet(text)
}

// ToText formats s; see FormatRuleSet.
func (TextConverter) ToText(s *RuleSet) string {
	return FormatRuleSet(s)
}
