package xprop

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/jacoelho/xprop/errors"
	"github.com/jacoelho/xprop/internal/xpath"
)

// MutatorReader streams a document through the path rules of a rule set.
// Each distinct XPath text is registered once; the rules sharing it execute
// in declaration order on its first match only, threading the value written
// back to the document. Bytes outside rewritten values pass through as read.
//
// Documents must be UTF-8. A declared encoding of US-ASCII is read as UTF-8;
// any other non-UTF-8 declaration fails with errors.ErrDocument, since
// transcoding would break the byte-exact pass-through.
//
// A MutatorReader is not safe for concurrent use.
type MutatorReader struct {
	err     error
	store   Store
	dec     *xml.Decoder
	rec     *recorder
	capture *capture
	opts    resolvedOptions
	groups  []matchGroup
	out     bytes.Buffer
	tracker xpath.Tracker
}

// matchGroup holds the rules registered under one XPath text and the number
// of times it matched in the current document.
type matchGroup struct {
	expr       xpath.Expression
	rules      []Rule
	count      int
	elements   bool
	attributes bool
}

// capture buffers a matched element until its end tag decides whether its
// text is rewritten.
type capture struct {
	groups      []int
	start       []byte
	name        string
	raw         bytes.Buffer
	text        strings.Builder
	depth       int
	selfClosing bool
}

// NewMutatorReader returns a reader yielding r with the path rules among
// rules applied to store. Rules without an xpath are skipped; run them with
// RuleSet.ExecuteEager.
func NewMutatorReader(r io.Reader, rules []Rule, store Store, opts Options) (*MutatorReader, error) {
	if r == nil {
		return nil, fmt.Errorf("mutator: nil reader")
	}
	if store == nil {
		return nil, fmt.Errorf("mutator: nil store")
	}
	resolved, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return newMutatorReader(r, rules, store, resolved), nil
}

func newMutatorReader(r io.Reader, rules []Rule, store Store, resolved resolvedOptions) *MutatorReader {
	m := &MutatorReader{store: store, opts: resolved}
	index := make(map[string]int)
	for _, rule := range rules {
		if !rule.HasXPath() {
			continue
		}
		text := rule.XPath()
		i, ok := index[text]
		if !ok {
			i = len(m.groups)
			index[text] = i
			m.groups = append(m.groups, matchGroup{
				expr:       *rule.expr,
				elements:   rule.expr.SelectsElements(),
				attributes: rule.expr.SelectsAttributes(),
			})
			resolved.logger.Debug("registering xpath", "xpath", text, "index", i)
		}
		m.groups[i].rules = append(m.groups[i].rules, rule)
	}

	m.rec = &recorder{r: bufio.NewReader(r)}
	m.dec = xml.NewDecoder(m.rec)
	m.dec.CharsetReader = utf8CharsetReader
	return m
}

// utf8CharsetReader accepts the labels whose bytes are already UTF-8.
func utf8CharsetReader(label string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "utf8", "us-ascii", "ascii":
		return input, nil
	}
	return nil, fmt.Errorf("unsupported encoding %q: documents must be UTF-8", label)
}

// Read implements io.Reader.
func (m *MutatorReader) Read(p []byte) (int, error) {
	for m.out.Len() == 0 && m.err == nil {
		m.err = m.step()
	}
	if m.out.Len() > 0 {
		return m.out.Read(p)
	}
	return 0, m.err
}

// MatchCount returns how many times xpath matched so far.
func (m *MutatorReader) MatchCount(xpath string) int {
	for i := range m.groups {
		if m.groups[i].expr.Text == xpath {
			return m.groups[i].count
		}
	}
	return 0
}

func (m *MutatorReader) step() error {
	tok, err := m.dec.Token()
	if err == io.EOF {
		m.out.Write(m.rec.takeAll())
		return io.EOF
	}
	if err != nil {
		return fmt.Errorf("%w: %w", errors.ErrDocument, err)
	}
	raw := m.rec.take(m.dec.InputOffset())

	switch t := tok.(type) {
	case xml.StartElement:
		return m.startElement(t, raw)
	case xml.EndElement:
		m.endElement(raw)
	case xml.CharData:
		if c := m.capture; c != nil && c.depth == m.tracker.Depth() {
			if c.text.Len()+len(t) > m.opts.limits.maxCaptureSize {
				return fmt.Errorf("%w: text of <%s> exceeds %d bytes", errors.ErrDocument, c.name, m.opts.limits.maxCaptureSize)
			}
			c.text.Write(t)
		}
		m.emit(raw)
	default:
		m.emit(raw)
	}
	return nil
}

func (m *MutatorReader) emit(raw []byte) {
	if m.capture != nil {
		m.capture.raw.Write(raw)
		return
	}
	m.out.Write(raw)
}

func (m *MutatorReader) startElement(t xml.StartElement, raw []byte) error {
	if m.tracker.Depth() >= m.opts.limits.maxDepth {
		return fmt.Errorf("%w: element depth exceeds %d", errors.ErrDocument, m.opts.limits.maxDepth)
	}
	if m.capture != nil {
		// the matched element holds child elements, so it has no value
		m.flushCapture()
	}
	frames := m.tracker.Push(t.Name.Space, t.Name.Local)

	raw = m.matchAttributes(t, frames, raw)

	var matched []int
	for i := range m.groups {
		if m.groups[i].elements && m.groups[i].expr.MatchElement(frames) {
			matched = append(matched, i)
		}
	}
	if len(matched) == 0 {
		m.out.Write(raw)
		return nil
	}

	m.capture = &capture{
		groups:      matched,
		start:       raw,
		name:        rawElementName(raw),
		depth:       m.tracker.Depth(),
		selfClosing: bytes.HasSuffix(raw, []byte("/>")),
	}
	return nil
}

func (m *MutatorReader) matchAttributes(t xml.StartElement, frames []xpath.Frame, raw []byte) []byte {
	var rewrites map[int]string
	for i := range m.groups {
		g := &m.groups[i]
		if !g.attributes {
			continue
		}
		for ai, attr := range t.Attr {
			if isNamespaceDecl(attr.Name) || !g.expr.MatchAttribute(frames, attr.Name.Space, attr.Name.Local) {
				continue
			}
			current, ok := rewrites[ai]
			if !ok {
				current = attr.Value
			}
			value := m.dispatch(i, attr.Value, current)
			if value != attr.Value || ok {
				if rewrites == nil {
					rewrites = make(map[int]string)
				}
				rewrites[ai] = value
			}
		}
	}
	if len(rewrites) == 0 {
		return raw
	}

	spans := attrValueSpans(raw)
	var b bytes.Buffer
	last := 0
	for ai, span := range spans {
		value, ok := rewrites[ai]
		if !ok {
			continue
		}
		b.Write(raw[last:span[0]])
		_ = xml.EscapeText(&b, []byte(value))
		last = span[1]
	}
	b.Write(raw[last:])
	return b.Bytes()
}

func (m *MutatorReader) endElement(raw []byte) {
	c := m.capture
	if c == nil || c.depth != m.tracker.Depth() {
		m.tracker.Pop()
		m.emit(raw)
		return
	}
	m.capture = nil
	m.tracker.Pop()

	original := c.text.String()
	value := original
	for _, i := range c.groups {
		value = m.dispatch(i, original, value)
	}

	if value == original {
		m.out.Write(c.start)
		m.out.Write(c.raw.Bytes())
		m.out.Write(raw)
		return
	}
	if c.selfClosing {
		m.out.Write(bytes.TrimSuffix(c.start, []byte("/>")))
		m.out.WriteByte('>')
		m.out.WriteString(escapeText(value))
		m.out.WriteString("</" + c.name + ">")
		return
	}
	m.out.Write(c.start)
	m.out.WriteString(escapeText(value))
	m.out.Write(raw)
}

func (m *MutatorReader) flushCapture() {
	c := m.capture
	m.capture = nil
	m.out.Write(c.start)
	m.out.Write(c.raw.Bytes())
}

// dispatch records a match of group index and, on its first occurrence,
// executes the group's rules. It returns the value to write back.
func (m *MutatorReader) dispatch(index int, original, value string) string {
	g := &m.groups[index]
	g.count++
	m.opts.metrics.XPathMatched()
	m.opts.logger.Debug("xpath matched", "xpath", g.expr.Text, "occurrence", g.count)
	if g.count != 1 {
		return value
	}
	obs := m.opts.observer()
	for _, rule := range g.rules {
		_ = rule.execute(m.store, original, &value, obs)
	}
	return value
}

func isNamespaceDecl(name xml.Name) bool {
	return name.Space == "xmlns" || (name.Space == "" && name.Local == "xmlns")
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeText(s string) string {
	return textEscaper.Replace(s)
}

func rawElementName(tag []byte) string {
	i := 1
	for i < len(tag) && !isXMLSpace(tag[i]) && tag[i] != '/' && tag[i] != '>' {
		i++
	}
	return string(tag[1:i])
}

// attrValueSpans returns the byte ranges of the attribute values of a raw
// start tag, in source order.
func attrValueSpans(tag []byte) [][2]int {
	i := len(rawElementName(tag)) + 1
	var spans [][2]int
	for i < len(tag) {
		for i < len(tag) && isXMLSpace(tag[i]) {
			i++
		}
		if i >= len(tag) || tag[i] == '/' || tag[i] == '>' {
			break
		}
		for i < len(tag) && tag[i] != '=' && !isXMLSpace(tag[i]) {
			i++
		}
		for i < len(tag) && isXMLSpace(tag[i]) {
			i++
		}
		if i >= len(tag) || tag[i] != '=' {
			break
		}
		i++
		for i < len(tag) && isXMLSpace(tag[i]) {
			i++
		}
		if i >= len(tag) || (tag[i] != '"' && tag[i] != '\'') {
			break
		}
		quote := tag[i]
		start := i + 1
		end := bytes.IndexByte(tag[start:], quote)
		if end < 0 {
			break
		}
		spans = append(spans, [2]int{start, start + end})
		i = start + end + 1
	}
	return spans
}

func isXMLSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// recorder keeps the bytes handed to the decoder until they are claimed as
// the raw form of a token.
type recorder struct {
	r    *bufio.Reader
	buf  []byte
	base int64
}

func (r *recorder) ReadByte() (byte, error) {
	b, err := r.r.ReadByte()
	if err == nil {
		r.buf = append(r.buf, b)
	}
	return b, err
}

func (r *recorder) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.buf = append(r.buf, p[:n]...)
	return n, err
}

// take returns the bytes up to the absolute offset off.
func (r *recorder) take(off int64) []byte {
	n := int(off - r.base)
	if n <= 0 {
		return nil
	}
	if n > len(r.buf) {
		n = len(r.buf)
	}
	seg := bytes.Clone(r.buf[:n])
	r.buf = append(r.buf[:0], r.buf[n:]...)
	r.base += int64(n)
	return seg
}

func (r *recorder) takeAll() []byte {
	return r.take(r.base + int64(len(r.buf)))
}
