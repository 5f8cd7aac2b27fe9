package xprop

import "fmt"

// Origin tells where a document type's schema comes from.
type Origin uint8

const (
	// OriginNative schemas are authored for the pipeline and may carry a
	// property annotation.
	OriginNative Origin = iota
	// OriginForeign schemas are imported as is; their annotations are never
	// read.
	OriginForeign
)

func (o Origin) String() string {
	switch o {
	case OriginNative:
		return "native"
	case OriginForeign:
		return "foreign"
	default:
		return fmt.Sprintf("Origin(%d)", o)
	}
}

// ParseOrigin parses "native" or "foreign".
func ParseOrigin(s string) (Origin, error) {
	switch s {
	case "native", "":
		return OriginNative, nil
	case "foreign":
		return OriginForeign, nil
	default:
		return 0, fmt.Errorf("unknown origin %q", s)
	}
}

// DocumentType describes the schema of a message type.
type DocumentType interface {
	// RootElementName is the local name of the document element, "" when the
	// type has none.
	RootElementName() string
	// TargetNamespace is the namespace of the document element.
	TargetNamespace() string
	// SchemaContent returns the XSD text declaring the root element.
	SchemaContent() ([]byte, error)
	// Origin reports whether annotations of the schema are honoured.
	Origin() Origin
	// Key identifies the type for memoization.
	Key() string
}

// StaticDocumentType is a DocumentType backed by in-memory values.
type StaticDocumentType struct {
	Name      string
	Root      string
	Namespace string
	Schema    []byte
	Source    Origin
}

// RootElementName implements DocumentType.
func (d StaticDocumentType) RootElementName() string { return d.Root }

// TargetNamespace implements DocumentType.
func (d StaticDocumentType) TargetNamespace() string { return d.Namespace }

// SchemaContent implements DocumentType.
func (d StaticDocumentType) SchemaContent() ([]byte, error) { return d.Schema, nil }

// Origin implements DocumentType.
func (d StaticDocumentType) Origin() Origin { return d.Source }

// Key implements DocumentType. It defaults to the root element's expanded
// name when Name is empty.
func (d StaticDocumentType) Key() string {
	if d.Name != "" {
		return d.Name
	}
	return NewQName(d.Namespace, d.Root).String()
}
