package xprop

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jacoelho/xprop/internal/metrics"
	"github.com/jacoelho/xprop/internal/xpath"
)

// ErrInvalidRule reports a rule whose name, value, xpath and mode do not form
// a valid combination.
var ErrInvalidRule = errors.New("invalid rule")

// Kind identifies the variant of a Rule.
type Kind uint8

const (
	// KindBare has neither value nor xpath; its mode is Clear or Ignore.
	KindBare Kind = iota
	// KindLiteral carries a constant value.
	KindLiteral
	// KindPath extracts the text found at an XPath location.
	KindPath
	// KindQNamePath extracts the local part of a QName-shaped text.
	KindQNamePath
)

func (k Kind) String() string {
	switch k {
	case KindBare:
		return "bare"
	case KindLiteral:
		return "literal"
	case KindPath:
		return "path"
	case KindQNamePath:
		return "qnamePath"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Rule declares how one property is obtained or emitted. Rules are immutable
// and only built through the New*Rule constructors.
type Rule struct {
	name      QName
	value     string
	expr      *xpath.Expression
	kind      Kind
	mode      Mode
	qnameMode QNameMode
}

// NewBareRule returns a rule without value or xpath. Only ModeClear and
// ModeIgnore are accepted.
func NewBareRule(name QName, mode Mode) (Rule, error) {
	if err := checkName(name); err != nil {
		return Rule{}, err
	}
	if mode != ModeClear && mode != ModeIgnore {
		return Rule{}, fmt.Errorf("%w: property %s: mode %s needs a value or an xpath, only clear and ignore are supported", ErrInvalidRule, name, mode)
	}
	return Rule{name: name, kind: KindBare, mode: mode}, nil
}

// NewClearRule returns a bare rule clearing name.
func NewClearRule(name QName) (Rule, error) {
	return NewBareRule(name, ModeClear)
}

// NewLiteralRule returns a rule storing a constant value. Only ModeWrite and
// ModePromote are accepted.
func NewLiteralRule(name QName, value string, mode Mode) (Rule, error) {
	if err := checkName(name); err != nil {
		return Rule{}, err
	}
	if value == "" {
		return Rule{}, fmt.Errorf("%w: property %s: value cannot be empty", ErrInvalidRule, name)
	}
	if mode != ModeWrite && mode != ModePromote {
		return Rule{}, fmt.Errorf("%w: property %s: mode %s is not supported by a literal rule", ErrInvalidRule, name, mode)
	}
	return Rule{name: name, kind: KindLiteral, mode: mode, value: value}, nil
}

// NewPathRule returns a rule bound to the text found at an XPath location.
func NewPathRule(name QName, expr string, mode Mode) (Rule, error) {
	if err := checkName(name); err != nil {
		return Rule{}, err
	}
	if mode > ModeIgnore {
		return Rule{}, fmt.Errorf("%w: property %s: unknown mode %s", ErrInvalidRule, name, mode)
	}
	compiled, err := xpath.Parse(expr, nil)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: property %s: %w", ErrInvalidRule, name, err)
	}
	return Rule{name: name, kind: KindPath, mode: mode, expr: &compiled}, nil
}

// NewQNamePathRule returns a path rule for QName-shaped values. QNameDefault
// and QNameName use the matched text as is and yield a KindPath rule; only
// QNameName is kept on the rule so that it survives a round trip.
func NewQNamePathRule(name QName, expr string, mode Mode, qnameMode QNameMode) (Rule, error) {
	if qnameMode > QNameLocalName {
		return Rule{}, fmt.Errorf("%w: property %s: unknown qnameValue %s", ErrInvalidRule, name, qnameMode)
	}
	rule, err := NewPathRule(name, expr, mode)
	if err != nil {
		return Rule{}, err
	}
	rule.qnameMode = qnameMode
	if qnameMode == QNameLocalName {
		rule.kind = KindQNamePath
	}
	return rule, nil
}

func checkName(name QName) error {
	if name.Local == "" {
		return fmt.Errorf("%w: property name cannot be empty", ErrInvalidRule)
	}
	return nil
}

// Name returns the property name.
func (r Rule) Name() QName { return r.name }

// Kind returns the rule variant.
func (r Rule) Kind() Kind { return r.kind }

// Mode returns the extraction mode.
func (r Rule) Mode() Mode { return r.mode }

// Value returns the constant of a literal rule.
func (r Rule) Value() string { return r.value }

// QNameMode returns the QName handling of a path rule.
func (r Rule) QNameMode() QNameMode { return r.qnameMode }

// XPath returns the source text of the xpath, or "" for rules without one.
func (r Rule) XPath() string {
	if r.expr == nil {
		return ""
	}
	return r.expr.Text
}

// HasXPath reports whether the rule executes on content matches.
func (r Rule) HasXPath() bool {
	return r.kind == KindPath || r.kind == KindQNamePath
}

// Equal reports whether two rules declare the same thing. Literal values
// compare case-insensitively.
func (r Rule) Equal(other Rule) bool {
	if r.kind != other.kind || r.mode != other.mode || r.name != other.name {
		return false
	}
	switch r.kind {
	case KindLiteral:
		return strings.EqualFold(r.value, other.value)
	case KindPath, KindQNamePath:
		return r.XPath() == other.XPath() && r.qnameMode == other.qnameMode
	default:
		return true
	}
}

// String returns a debug form of the rule.
func (r Rule) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s[mode:%s]", r.kind, r.name, r.mode)
	switch r.kind {
	case KindLiteral:
		fmt.Fprintf(&b, "[value:%s]", r.value)
	case KindPath:
		fmt.Fprintf(&b, "[xpath:%s]", r.XPath())
		if r.qnameMode == QNameName {
			fmt.Fprintf(&b, "[qnameValue:%s]", r.qnameMode)
		}
	case KindQNamePath:
		fmt.Fprintf(&b, "[xpath:%s][qnameValue:%s]", r.XPath(), r.qnameMode)
	}
	return b.String()
}

// Execute applies the rule to store. original is the text found at the match
// site and value the text that will be written back to the document; literal
// and bare rules ignore both. Demote only ever updates *value.
func (r Rule) Execute(store Store, original string, value *string) error {
	return r.execute(store, original, value, observer{logger: discardLogger()})
}

type observer struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func (r Rule) execute(store Store, original string, value *string, obs observer) error {
	if store == nil {
		return fmt.Errorf("execute %s: nil store", r.name)
	}
	if value == nil {
		value = new(string)
	}

	extracted := original
	switch r.kind {
	case KindLiteral:
		extracted = r.value
	case KindQNamePath:
		if r.mode == ModeDemote {
			return r.demoteQName(store, original, value, obs)
		}
		if _, local, ok := splitQNameValue(original); ok {
			extracted = local
		}
	}

	switch r.mode {
	case ModeWrite:
		obs.logger.Debug("writing property", "property", r.name.String(), "value", extracted)
		store.Set(r.name, extracted)
	case ModePromote:
		obs.logger.Debug("promoting property", "property", r.name.String(), "value", extracted)
		store.SetIndexed(r.name, extracted)
	case ModeDemote:
		if stored, ok := store.Get(r.name); ok && stored != "" {
			obs.logger.Debug("demoting property", "property", r.name.String(), "value", stored)
			*value = stored
		}
	case ModeClear:
		obs.logger.Debug("clearing property", "property", r.name.String(), "indexed", store.IsIndexed(r.name))
		store.Clear(r.name)
	case ModeIgnore:
		obs.logger.Debug("ignoring property", "property", r.name.String())
	}
	obs.metrics.RuleExecuted(r.mode.String())
	return nil
}

func (r Rule) demoteQName(store Store, original string, value *string, obs observer) error {
	stored, ok := store.Get(r.name)
	if ok && stored != "" {
		if prefix, _, parsed := splitQNameValue(original); parsed && prefix != "" {
			stored = prefix + ":" + stored
		}
		obs.logger.Debug("demoting property", "property", r.name.String(), "value", stored)
		*value = stored
	}
	obs.metrics.RuleExecuted(r.mode.String())
	return nil
}
