package xmltree

// Name is an expanded XML name.
type Name struct {
	Space string
	Local string
}

// Attr is an attribute with its resolved name and source prefix.
type Attr struct {
	Name    Name
	Prefix  string
	Value   string
	Unbound bool
}

// IsNamespaceDecl reports whether the attribute declares a namespace binding.
func (a Attr) IsNamespaceDecl() bool {
	return a.Name.Space == XMLNSNamespace
}

// Element is a node of the parsed tree.
// Unbound is set when the element prefix has no in-scope declaration; Name.Space
// is then empty.
type Element struct {
	Name       Name
	Prefix     string
	Attrs      []Attr
	Children   []*Element
	Parent     *Element
	Text       string
	Namespaces map[string]string
	Line       int
	Column     int
	Unbound    bool
}

// Document holds the root element of a parsed fragment.
type Document struct {
	Root *Element
}

// QualifiedName returns the element name as written in the source.
func (e *Element) QualifiedName() string {
	if e == nil {
		return ""
	}
	if e.Prefix == "" {
		return e.Name.Local
	}
	return e.Prefix + ":" + e.Name.Local
}

// Attr returns the value of the unqualified attribute local.
func (e *Element) Attr(local string) (string, bool) {
	return e.AttrNS("", local)
}

// AttrNS returns the value of the attribute {ns}local.
func (e *Element) AttrNS(ns, local string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, attr := range e.Attrs {
		if attr.Name.Space == ns && attr.Name.Local == local {
			return attr.Value, true
		}
	}
	return "", false
}

// ChildrenNamed returns the child elements named {ns}local.
func (e *Element) ChildrenNamed(ns, local string) []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	for _, child := range e.Children {
		if child.Name.Space == ns && child.Name.Local == local {
			out = append(out, child)
		}
	}
	return out
}

// LookupPrefix resolves prefix against the bindings in scope on the element.
func (e *Element) LookupPrefix(prefix string) (string, bool) {
	if e == nil {
		return "", false
	}
	switch prefix {
	case "xml":
		return XMLNamespace, true
	case "xmlns":
		return XMLNSNamespace, true
	}
	ns, ok := e.Namespaces[prefix]
	if !ok && prefix == "" {
		return "", true
	}
	return ns, ok
}
