package xpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jacoelho/xprop/internal/xmlname"
)

// Axis describes how a step relates to the previous one.
type Axis int

const (
	AxisChild Axis = iota
	AxisDescendant
)

// NodeTest matches element or attribute names. Unset parts match anything.
type NodeTest struct {
	Local        string
	Namespace    string
	LocalSet     bool
	NamespaceSet bool
}

// Step represents a single element step in a path.
// Position is 1-based and zero when the step has no positional predicate.
// Unmatchable marks predicate combinations that cannot be evaluated while
// streaming; the step parses but never matches.
type Step struct {
	Axis        Axis
	Test        NodeTest
	Position    int
	Unmatchable bool

	byName bool
}

// Path represents a compiled location path with an optional final attribute.
type Path struct {
	Absolute  bool
	Steps     []Step
	Attribute *NodeTest
}

// Expression represents a union of paths.
type Expression struct {
	Text  string
	Paths []Path
}

// ErrInvalidXPath reports that the expression does not conform to the supported XPath syntax.
var ErrInvalidXPath = errors.New("invalid xpath")

func xpathErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidXPath}, args...)...)
}

// Parse compiles an XPath expression. Prefixed name tests are resolved against
// nsContext; a nil context rejects every prefix.
func Parse(expr string, nsContext map[string]string) (Expression, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return Expression{}, xpathErrorf("xpath cannot be empty")
	}

	parts, err := splitUnion(trimmed)
	if err != nil {
		return Expression{}, err
	}
	paths := make([]Path, 0, len(parts))
	for _, raw := range parts {
		part := strings.TrimSpace(raw)
		if part == "" {
			return Expression{}, xpathErrorf("xpath contains empty union branch: %s", trimmed)
		}
		path, err := parsePath(part, nsContext)
		if err != nil {
			return Expression{}, err
		}
		paths = append(paths, path)
	}
	return Expression{Text: expr, Paths: paths}, nil
}

// SelectsAttributes reports whether any branch ends in an attribute step.
func (e Expression) SelectsAttributes() bool {
	for _, path := range e.Paths {
		if path.Attribute != nil {
			return true
		}
	}
	return false
}

// SelectsElements reports whether any branch selects elements.
func (e Expression) SelectsElements() bool {
	for _, path := range e.Paths {
		if path.Attribute == nil {
			return true
		}
	}
	return false
}

func parsePath(expr string, nsContext map[string]string) (Path, error) {
	var path Path
	reader := &pathReader{input: expr}

	axis := AxisDescendant
	switch {
	case reader.consumeDoubleSlash():
		path.Absolute = true
	case reader.consumeSlash():
		path.Absolute = true
		axis = AxisChild
	}

	for {
		token := reader.readStep()
		if token == "" {
			if reader.atEnd() && path.Absolute && len(path.Steps) == 0 && axis == AxisChild {
				return Path{}, xpathErrorf("xpath selects the document node: %s", expr)
			}
			return Path{}, xpathErrorf("xpath step is missing a node test: %s", expr)
		}

		switch {
		case token == ".":
			if len(path.Steps) == 0 && !path.Absolute {
				// a leading "." anchors at the document node
				path.Absolute = true
				axis = AxisChild
			}
		case isAttributeToken(token):
			attr, err := parseAttributeStep(token, nsContext)
			if err != nil {
				return Path{}, err
			}
			if path.Absolute && len(path.Steps) == 0 && axis == AxisChild {
				return Path{}, xpathErrorf("xpath attribute step needs an owner element: %s", expr)
			}
			path.Attribute = &attr
		default:
			step, err := parseElementStep(token, nsContext)
			if err != nil {
				return Path{}, err
			}
			step.Axis = axis
			path.Steps = append(path.Steps, step)
			axis = AxisChild
		}

		if reader.atEnd() {
			break
		}
		if path.Attribute != nil {
			return Path{}, xpathErrorf("xpath attribute step must be final: %s", expr)
		}
		switch {
		case reader.consumeDoubleSlash():
			axis = AxisDescendant
		case reader.consumeSlash():
			if token != "." || axis != AxisDescendant {
				axis = AxisChild
			}
		default:
			return Path{}, xpathErrorf("xpath has invalid trailing content: %s", expr)
		}
		if reader.atEnd() {
			return Path{}, xpathErrorf("xpath step is missing a node test: %s", expr)
		}
	}

	if len(path.Steps) == 0 && path.Attribute == nil {
		return Path{}, xpathErrorf("xpath must contain at least one step: %s", expr)
	}
	return path, nil
}

func isAttributeToken(token string) bool {
	return strings.HasPrefix(token, "@") || strings.HasPrefix(token, "attribute::")
}

func parseAttributeStep(token string, nsContext map[string]string) (NodeTest, error) {
	name, ok := strings.CutPrefix(token, "@")
	if !ok {
		name = strings.TrimPrefix(token, "attribute::")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return NodeTest{}, xpathErrorf("xpath step is missing a node test: %s", token)
	}
	if strings.ContainsRune(name, '[') {
		return NodeTest{}, xpathErrorf("xpath attribute step cannot use predicates: %s", token)
	}
	return parseNodeTest(name, nsContext)
}

func parseElementStep(token string, nsContext map[string]string) (Step, error) {
	if before, after, ok := strings.Cut(token, "::"); ok && !strings.ContainsRune(before, '[') {
		if strings.TrimSpace(before) != "child" {
			return Step{}, xpathErrorf("xpath uses disallowed axis '%s::'", strings.TrimSpace(before))
		}
		token = strings.TrimSpace(after)
	}

	name, predicates, err := splitPredicates(token)
	if err != nil {
		return Step{}, err
	}
	test, err := parseNodeTest(name, nsContext)
	if err != nil {
		return Step{}, err
	}
	step := Step{Test: test, byName: test.LocalSet}

	constrained := false
	for _, predicate := range predicates {
		if err := applyPredicate(&step, predicate, &constrained); err != nil {
			return Step{}, err
		}
	}
	// prefix:* positions would need per-namespace counters
	if step.Position > 0 && (constrained || (test.NamespaceSet && !test.LocalSet)) {
		step.Unmatchable = true
	}
	return step, nil
}

func applyPredicate(step *Step, predicate string, constrained *bool) error {
	predicate = strings.TrimSpace(predicate)
	if predicate == "" {
		return xpathErrorf("xpath predicate cannot be empty")
	}
	if n, err := strconv.Atoi(predicate); err == nil {
		if n < 1 {
			return xpathErrorf("xpath position must be positive: [%s]", predicate)
		}
		if step.Position != 0 {
			step.Unmatchable = true
		}
		step.Position = n
		return nil
	}

	for _, clause := range splitAnd(predicate) {
		fn, value, err := parseNameFunction(clause)
		if err != nil {
			return err
		}
		*constrained = true
		switch fn {
		case "local-name":
			if step.Test.LocalSet && step.Test.Local != value {
				step.Unmatchable = true
			}
			step.Test.Local, step.Test.LocalSet = value, true
		case "namespace-uri":
			if step.Test.NamespaceSet && step.Test.Namespace != value {
				step.Unmatchable = true
			}
			step.Test.Namespace, step.Test.NamespaceSet = value, true
		}
	}
	return nil
}

// parseNameFunction parses local-name()='x' or namespace-uri()="y".
func parseNameFunction(clause string) (string, string, error) {
	clause = strings.TrimSpace(clause)
	left, right, ok := strings.Cut(clause, "=")
	if !ok {
		return "", "", xpathErrorf("xpath predicate is not supported: [%s]", clause)
	}
	fn := strings.TrimSpace(left)
	fn, ok = strings.CutSuffix(fn, ")")
	if !ok {
		return "", "", xpathErrorf("xpath predicate is not supported: [%s]", clause)
	}
	fn = strings.TrimSpace(fn)
	fn, ok = strings.CutSuffix(fn, "(")
	if !ok {
		return "", "", xpathErrorf("xpath predicate is not supported: [%s]", clause)
	}
	fn = strings.TrimSpace(fn)
	if fn != "local-name" && fn != "namespace-uri" {
		return "", "", xpathErrorf("xpath function %s() is not supported", fn)
	}
	value := strings.TrimSpace(right)
	if len(value) < 2 || (value[0] != '\'' && value[0] != '"') || value[len(value)-1] != value[0] {
		return "", "", xpathErrorf("xpath predicate needs a string literal: [%s]", clause)
	}
	return fn, value[1 : len(value)-1], nil
}

func parseNodeTest(token string, nsContext map[string]string) (NodeTest, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return NodeTest{}, xpathErrorf("xpath step is missing a node test")
	}
	if token == "*" {
		return NodeTest{}, nil
	}

	if before, ok := strings.CutSuffix(token, ":*"); ok {
		prefix := strings.TrimSpace(before)
		if !xmlname.IsValidNCName(prefix) {
			return NodeTest{}, xpathErrorf("xpath step has invalid prefix %q", token)
		}
		uri, ok := nsContext[prefix]
		if !ok {
			return NodeTest{}, xpathErrorf("xpath step uses undeclared prefix %q", prefix)
		}
		return NodeTest{Namespace: uri, NamespaceSet: true}, nil
	}

	if !xmlname.IsValidQName(token) {
		return NodeTest{}, xpathErrorf("xpath step has invalid QName %q", token)
	}
	prefix, local, hasPrefix := xmlname.SplitQName(token)
	if !hasPrefix {
		return NodeTest{Local: local, LocalSet: true, NamespaceSet: true}, nil
	}
	uri, ok := nsContext[prefix]
	if !ok {
		return NodeTest{}, xpathErrorf("xpath step uses undeclared prefix %q", prefix)
	}
	return NodeTest{Local: local, LocalSet: true, Namespace: uri, NamespaceSet: true}, nil
}

// splitPredicates separates "name[p1][p2]" into the name and predicate bodies.
func splitPredicates(token string) (string, []string, error) {
	open := strings.IndexByte(token, '[')
	if open < 0 {
		if strings.ContainsRune(token, ']') {
			return "", nil, xpathErrorf("xpath has unbalanced predicate: %s", token)
		}
		return token, nil, nil
	}
	name := strings.TrimSpace(token[:open])
	var predicates []string
	rest := token[open:]
	for rest != "" {
		rest = strings.TrimLeft(rest, " \t\r\n")
		if rest == "" {
			break
		}
		if rest[0] != '[' {
			return "", nil, xpathErrorf("xpath has invalid trailing content: %s", token)
		}
		end := closingBracket(rest)
		if end < 0 {
			return "", nil, xpathErrorf("xpath has unbalanced predicate: %s", token)
		}
		predicates = append(predicates, rest[1:end])
		rest = rest[end+1:]
	}
	return name, predicates, nil
}

func closingBracket(s string) int {
	var quote byte
	for i := 1; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '[':
			return -1
		case ch == ']':
			return i
		}
	}
	return -1
}

// splitAnd splits a predicate on top-level "and" keywords.
func splitAnd(predicate string) []string {
	var (
		parts []string
		quote byte
		start int
	)
	for i := 0; i < len(predicate); i++ {
		ch := predicate[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		if ch == '\'' || ch == '"' {
			quote = ch
			continue
		}
		if isXPathWhitespace(ch) && strings.HasPrefix(predicate[i+1:], "and") &&
			i+4 < len(predicate) && isXPathWhitespace(predicate[i+4]) {
			parts = append(parts, predicate[start:i])
			start = i + 4
			i += 3
		}
	}
	return append(parts, predicate[start:])
}

func splitUnion(expr string) ([]string, error) {
	var (
		parts []string
		quote byte
		depth int
		start int
	)
	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case '[':
			depth++
		case ']':
			depth--
			if depth < 0 {
				return nil, xpathErrorf("xpath has unbalanced predicate: %s", expr)
			}
		case '|':
			if depth == 0 {
				parts = append(parts, expr[start:i])
				start = i + 1
			}
		}
	}
	if quote != 0 {
		return nil, xpathErrorf("xpath has unterminated string literal: %s", expr)
	}
	if depth != 0 {
		return nil, xpathErrorf("xpath has unbalanced predicate: %s", expr)
	}
	return append(parts, expr[start:]), nil
}

type pathReader struct {
	input string
	pos   int
}

// readStep returns the next step token, skipping separators inside predicates
// and string literals.
func (r *pathReader) readStep() string {
	r.skipSpace()
	start := r.pos
	var quote byte
	depth := 0
	for r.pos < len(r.input) {
		ch := r.input[r.pos]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			r.pos++
			continue
		}
		switch ch {
		case '\'', '"':
			quote = ch
		case '[':
			depth++
		case ']':
			depth--
		case '/':
			if depth == 0 {
				return strings.TrimSpace(r.input[start:r.pos])
			}
		}
		r.pos++
	}
	return strings.TrimSpace(r.input[start:r.pos])
}

func (r *pathReader) consumeSlash() bool {
	r.skipSpace()
	if r.peekSlash() && !r.peekDoubleSlash() {
		r.pos++
		return true
	}
	return false
}

func (r *pathReader) consumeDoubleSlash() bool {
	r.skipSpace()
	if r.peekDoubleSlash() {
		r.pos += 2
		return true
	}
	return false
}

func (r *pathReader) peekSlash() bool {
	return r.pos < len(r.input) && r.input[r.pos] == '/'
}

func (r *pathReader) peekDoubleSlash() bool {
	return r.pos+1 < len(r.input) && r.input[r.pos] == '/' && r.input[r.pos+1] == '/'
}

func (r *pathReader) skipSpace() {
	for r.pos < len(r.input) && isXPathWhitespace(r.input[r.pos]) {
		r.pos++
	}
}

func (r *pathReader) atEnd() bool {
	r.skipSpace()
	return r.pos >= len(r.input)
}

func isXPathWhitespace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r':
		return true
	default:
		return false
	}
}
