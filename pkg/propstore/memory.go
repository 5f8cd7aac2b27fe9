// Package propstore provides an in-memory property store for tools and tests.
package propstore

import (
	"cmp"
	"slices"

	"github.com/jacoelho/xprop"
)

// Entry is one stored property.
type Entry struct {
	Name    xprop.QName
	Value   string
	Indexed bool
}

// Memory is a map-backed xprop.Store. It is not safe for concurrent use.
type Memory struct {
	entries map[xprop.QName]Entry
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[xprop.QName]Entry)}
}

// Get implements xprop.Store.
func (m *Memory) Get(name xprop.QName) (string, bool) {
	e, ok := m.entries[name]
	return e.Value, ok
}

// Set implements xprop.Store. An indexed property keeps its flag.
func (m *Memory) Set(name xprop.QName, value string) {
	m.init()
	e := m.entries[name]
	e.Name, e.Value = name, value
	m.entries[name] = e
}

// SetIndexed implements xprop.Store.
func (m *Memory) SetIndexed(name xprop.QName, value string) {
	m.init()
	m.entries[name] = Entry{Name: name, Value: value, Indexed: true}
}

// IsIndexed implements xprop.Store.
func (m *Memory) IsIndexed(name xprop.QName) bool {
	return m.entries[name].Indexed
}

// Clear implements xprop.Store.
func (m *Memory) Clear(name xprop.QName) {
	delete(m.entries, name)
}

// Len returns the number of stored properties.
func (m *Memory) Len() int {
	return len(m.entries)
}

// Snapshot returns the stored properties sorted by namespace and local name.
func (m *Memory) Snapshot() []Entry {
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int {
		return cmp.Or(cmp.Compare(a.Name.Namespace, b.Name.Namespace), cmp.Compare(a.Name.Local, b.Name.Local))
	})
	return out
}

func (m *Memory) init() {
	if m.entries == nil {
		m.entries = make(map[xprop.QName]Entry)
	}
}
