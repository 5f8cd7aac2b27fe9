package xprop

import (
	"bytes"
	stderrors "errors"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/jacoelho/xprop/errors"
	"github.com/jacoelho/xprop/internal/xmltree"
	"github.com/jacoelho/xprop/internal/xpath"
)

// AnnotationNamespace is the namespace of the Properties element.
const AnnotationNamespace = "urn:schemas.stateless.be:biztalk:annotations:2013:01"

const propertiesElement = "Properties"

// MarshalText writes the XML text form of the set.
func (s *RuleSet) MarshalText() ([]byte, error) {
	var buf bytes.Buffer
	writeRuleSet(&buf, s)
	return buf.Bytes(), nil
}

// UnmarshalText replaces s with the rule set read from text. The shared empty
// set returned by EmptyRuleSet cannot be a target.
func (s *RuleSet) UnmarshalText(text []byte) error {
	if s == nil || s.IsEmptySentinel() {
		return fmt.Errorf("unmarshal rule set: target is nil or the shared empty set")
	}
	parsed, err := readRuleSet(text)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

func writeRuleSet(buf *bytes.Buffer, s *RuleSet) {
	prefixes := make(map[string]string)
	var namespaces []string
	for rule := range s.All() {
		ns := rule.name.Namespace
		if ns == "" {
			continue
		}
		if _, ok := prefixes[ns]; !ok {
			prefixes[ns] = "s" + strconv.Itoa(len(namespaces)+1)
			namespaces = append(namespaces, ns)
		}
	}

	buf.WriteString("<s0:")
	buf.WriteString(propertiesElement)
	if p := s.Precedence(); p != PrecedenceSchema {
		writeAttr(buf, "precedence", p.String())
	}
	writeAttr(buf, "xmlns:s0", AnnotationNamespace)
	for _, ns := range namespaces {
		writeAttr(buf, "xmlns:"+prefixes[ns], ns)
	}
	if s.IsEmpty() {
		buf.WriteString(" />")
		return
	}
	buf.WriteByte('>')

	for rule := range s.All() {
		name := rule.name.Local
		if prefix, ok := prefixes[rule.name.Namespace]; ok {
			name = prefix + ":" + name
		}
		buf.WriteByte('<')
		buf.WriteString(name)
		if rule.mode != ModeWrite {
			writeAttr(buf, "mode", rule.mode.String())
		}
		switch rule.kind {
		case KindLiteral:
			writeAttr(buf, "value", rule.value)
		case KindPath:
			if rule.qnameMode == QNameName {
				writeAttr(buf, "qnameValue", rule.qnameMode.String())
			}
			writeAttr(buf, "xpath", rule.XPath())
		case KindQNamePath:
			writeAttr(buf, "qnameValue", rule.qnameMode.String())
			writeAttr(buf, "xpath", rule.XPath())
		}
		buf.WriteString(" />")
	}

	buf.WriteString("</s0:")
	buf.WriteString(propertiesElement)
	buf.WriteByte('>')
}

func writeAttr(buf *bytes.Buffer, name, value string) {
	buf.WriteByte(' ')
	buf.WriteString(name)
	buf.WriteString(`="`)
	_ = xml.EscapeText(buf, []byte(value))
	buf.WriteByte('"')
}

func readRuleSet(text []byte) (*RuleSet, error) {
	doc, err := xmltree.ParseBytes(text)
	if err != nil {
		return nil, errors.NewConfig(errors.CodeInvalidDocument, "", "rule set is not well-formed XML").WithCause(err)
	}
	return ruleSetFromElement(doc.Root)
}

// ruleSetFromElement reads a Properties element, either a whole document or a
// fragment embedded in a schema annotation.
func ruleSetFromElement(root *xmltree.Element) (*RuleSet, error) {
	if root == nil || root.Name.Space != AnnotationNamespace || root.Name.Local != propertiesElement {
		cfg := errors.NewConfigf(errors.CodeRootElement, root.QualifiedName(),
			"element '%s' with namespace name '%s' was not found", propertiesElement, AnnotationNamespace)
		if root != nil {
			cfg.Line = root.Line
		}
		return nil, cfg
	}

	precedence := PrecedenceSchema
	if raw, ok := root.Attr("precedence"); ok {
		p, err := ParsePrecedence(strings.TrimSpace(raw))
		if err != nil {
			cfg := errors.NewConfig(errors.CodeInvalidAttribute, root.QualifiedName(), err.Error()).WithAttribute("precedence")
			cfg.Expected = keywords(precedenceNames[:])
			cfg.Line = root.Line
			return nil, cfg
		}
		precedence = p
	}

	rules := make([]Rule, 0, len(root.Children))
	for _, el := range root.Children {
		rule, err := readRule(el)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	set, err := NewRuleSet(precedence, rules...)
	if err != nil {
		if stderrors.Is(err, ErrDuplicateProperty) {
			cfg := errors.NewConfigf(errors.CodeDuplicateProperty, root.QualifiedName(),
				"the following properties are declared multiple times: [%s]", duplicateNames(rules))
			cfg.Line = root.Line
			return nil, cfg.WithCause(err)
		}
		return nil, err
	}
	return set, nil
}

func duplicateNames(rules []Rule) string {
	seen := make(map[QName]int, len(rules))
	var out []string
	for _, rule := range rules {
		seen[rule.name]++
		if seen[rule.name] == 2 {
			out = append(out, rule.name.String())
		}
	}
	return strings.Join(out, ", ")
}

func readRule(el *xmltree.Element) (Rule, error) {
	elementName := el.QualifiedName()
	fail := func(code errors.ErrorCode, attr, msg string, cause error) (Rule, error) {
		cfg := errors.NewConfig(code, elementName, msg).WithAttribute(attr).WithCause(cause)
		cfg.Line = el.Line
		return Rule{}, cfg
	}

	if el.Unbound {
		return fail(errors.CodeUnresolvedPrefix, "",
			fmt.Sprintf("namespace prefix %q is not declared", el.Prefix), nil)
	}
	name := QName{Namespace: el.Name.Space, Local: el.Name.Local}

	mode := ModeWrite
	rawMode, hasMode := el.Attr("mode")
	if hasMode {
		parsed, err := ParseMode(strings.TrimSpace(rawMode))
		if err != nil {
			cfg := errors.NewConfig(errors.CodeInvalidAttribute, elementName, err.Error()).WithAttribute("mode")
			cfg.Expected = keywords(modeNames[:])
			cfg.Line = el.Line
			return Rule{}, cfg
		}
		mode = parsed
	} else if rawPromoted, ok := el.Attr("promoted"); ok {
		promoted, err := parseBoolean(rawPromoted)
		if err != nil {
			return fail(errors.CodeInvalidAttribute, "promoted", err.Error(), nil)
		}
		if promoted {
			mode = ModePromote
		}
	}

	if expr, ok := el.Attr("xpath"); ok {
		qnameMode := QNameDefault
		if raw, ok := el.Attr("qnameValue"); ok {
			parsed, err := ParseQNameMode(strings.TrimSpace(raw))
			if err != nil {
				cfg := errors.NewConfig(errors.CodeInvalidAttribute, elementName, err.Error()).WithAttribute("qnameValue")
				cfg.Expected = keywords(qnameModeNames[:])
				cfg.Line = el.Line
				return Rule{}, cfg
			}
			qnameMode = parsed
		}
		rule, err := NewQNamePathRule(name, expr, mode, qnameMode)
		if err != nil {
			if stderrors.Is(err, xpath.ErrInvalidXPath) {
				return fail(errors.CodeInvalidXPath, "xpath", fmt.Sprintf("invalid xpath %q", expr), err)
			}
			return fail(errors.CodeInvalidRule, "mode", "invalid rule", err)
		}
		return rule, nil
	}

	if value, ok := el.Attr("value"); ok {
		rule, err := NewLiteralRule(name, value, mode)
		if err != nil {
			attr := "mode"
			if value == "" {
				attr = "value"
			}
			return fail(errors.CodeInvalidRule, attr, "invalid rule", err)
		}
		return rule, nil
	}

	if !hasMode {
		return fail(errors.CodeMissingMode, "mode",
			"mode is missing for a property without a value or an xpath", nil)
	}
	rule, err := NewBareRule(name, mode)
	if err != nil {
		return fail(errors.CodeInvalidRule, "mode", "invalid rule", err)
	}
	return rule, nil
}

// parseBoolean parses an xs:boolean lexical value.
func parseBoolean(raw string) (bool, error) {
	switch strings.TrimSpace(raw) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", raw)
	}
}
