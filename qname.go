package xprop

import "github.com/jacoelho/xprop/internal/xmlname"

// QName identifies a property by namespace URI and local name.
type QName struct {
	Namespace string
	Local     string
}

// NewQName returns the property name {namespace}local.
func NewQName(namespace, local string) QName {
	return QName{Namespace: namespace, Local: local}
}

// String returns the name in {namespace}local form.
func (q QName) String() string {
	if q.Namespace == "" {
		return q.Local
	}
	return "{" + q.Namespace + "}" + q.Local
}

// IsZero reports whether the name is empty.
func (q QName) IsZero() bool {
	return q.Namespace == "" && q.Local == ""
}

// splitQNameValue parses a prefix:local text value. ok is false when the text
// is not a QName.
func splitQNameValue(value string) (prefix, local string, ok bool) {
	prefix, local, _, err := xmlname.ParseQName(value)
	if err != nil {
		return "", "", false
	}
	return prefix, local, true
}
