// Package xmltree parses small XML fragments into a namespace-aware tree.
// Unlike encoding/xml's resolved tokens, unbound prefixes are reported on the
// nodes instead of being silently kept as namespace names.
package xmltree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// ErrNoRoot reports input without any element.
var ErrNoRoot = errors.New("xml document has no root element")

// SyntaxError is a well-formedness error with its position.
type SyntaxError struct {
	Msg    string
	Line   int
	Column int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s (line %d, column %d)", e.Msg, e.Line, e.Column)
}

// ParseString parses s; see Parse.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// ParseBytes parses b; see Parse.
func ParseBytes(b []byte) (*Document, error) {
	return Parse(bytes.NewReader(b))
}

// Parse builds a tree from r. Comments and processing instructions are dropped;
// whitespace-only text outside the root is ignored.
func Parse(r io.Reader) (*Document, error) {
	decoder := xml.NewDecoder(r)

	var (
		ns         nsStack
		stack      []*element
		root       *Element
		rootClosed bool
	)

	for {
		line, column := decoder.InputPos()
		tok, err := decoder.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if rootClosed {
				return nil, &SyntaxError{Msg: fmt.Sprintf("unexpected element %s after document end", rawName(t.Name)), Line: line, Column: column}
			}
			ns.push(declaredScope(t.Attr))
			elem := resolveElement(&ns, t)
			elem.Line, elem.Column = line, column
			if len(stack) > 0 {
				parent := stack[len(stack)-1].node
				parent.Children = append(parent.Children, elem)
				elem.Parent = parent
			} else {
				root = elem
			}
			stack = append(stack, &element{node: elem, raw: rawName(t.Name)})

		case xml.EndElement:
			if len(stack) == 0 {
				return nil, &SyntaxError{Msg: fmt.Sprintf("unexpected end element </%s>", rawName(t.Name)), Line: line, Column: column}
			}
			top := stack[len(stack)-1]
			if top.raw != rawName(t.Name) {
				return nil, &SyntaxError{Msg: fmt.Sprintf("element <%s> closed by </%s>", top.raw, rawName(t.Name)), Line: line, Column: column}
			}
			stack = stack[:len(stack)-1]
			ns.pop()
			if len(stack) == 0 {
				rootClosed = true
			}

		case xml.CharData:
			if len(stack) == 0 {
				if !isIgnorableOutsideRoot(string(t)) {
					return nil, &SyntaxError{Msg: "unexpected character data outside root element", Line: line, Column: column}
				}
				continue
			}
			stack[len(stack)-1].node.Text += string(t)
		}
	}

	if root == nil {
		return nil, ErrNoRoot
	}
	if len(stack) > 0 {
		return nil, io.ErrUnexpectedEOF
	}
	return &Document{Root: root}, nil
}

type element struct {
	node *Element
	raw  string
}

func rawName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

func declaredScope(attrs []xml.Attr) nsScope {
	var scope nsScope
	for _, a := range attrs {
		switch {
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			scope.defaultNS = a.Value
			scope.defaultSet = true
		case a.Name.Space == "xmlns":
			if scope.prefixes == nil {
				scope.prefixes = make(map[string]string)
			}
			scope.prefixes[a.Name.Local] = a.Value
		}
	}
	return scope
}

func resolveElement(ns *nsStack, t xml.StartElement) *Element {
	elem := &Element{
		Name:       Name{Local: t.Name.Local},
		Prefix:     t.Name.Space,
		Namespaces: ns.inScope(),
	}
	if uri, ok := ns.lookup(t.Name.Space); ok {
		elem.Name.Space = uri
	} else {
		elem.Unbound = true
	}
	elem.Attrs = make([]Attr, 0, len(t.Attr))
	for _, a := range t.Attr {
		attr := Attr{Name: Name{Local: a.Name.Local}, Prefix: a.Name.Space, Value: a.Value}
		switch {
		case a.Name.Space == "" && a.Name.Local == "xmlns":
			attr.Name.Space = XMLNSNamespace
		case a.Name.Space == "":
			// unprefixed attributes are in no namespace
		default:
			if uri, ok := ns.lookup(a.Name.Space); ok {
				attr.Name.Space = uri
			} else {
				attr.Unbound = true
			}
		}
		elem.Attrs = append(elem.Attrs, attr)
	}
	return elem
}

func isIgnorableOutsideRoot(data string) bool {
	for _, r := range data {
		if r == '\uFEFF' {
			continue
		}
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
