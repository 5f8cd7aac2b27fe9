package propstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacoelho/xprop"
)

var _ xprop.Store = (*Memory)(nil)

func TestMemory(t *testing.T) {
	a := xprop.NewQName("urn", "a")
	b := xprop.NewQName("urn", "b")

	var m Memory
	_, ok := m.Get(a)
	assert.False(t, ok)

	m.SetIndexed(b, "two")
	m.Set(a, "one")
	m.Set(b, "deux")

	v, ok := m.Get(b)
	require.True(t, ok)
	assert.Equal(t, "deux", v)
	assert.True(t, m.IsIndexed(b), "Set keeps the indexed flag")
	assert.False(t, m.IsIndexed(a))

	assert.Equal(t, []Entry{
		{Name: a, Value: "one"},
		{Name: b, Value: "deux", Indexed: true},
	}, m.Snapshot())

	m.Clear(b)
	_, ok = m.Get(b)
	assert.False(t, ok)
	assert.False(t, m.IsIndexed(b))
	assert.Equal(t, 1, m.Len())

	m.Clear(xprop.NewQName("urn", "missing"))
	assert.Equal(t, 1, m.Len())

	m.Set(b, "trois")
	assert.False(t, m.IsIndexed(b), "a cleared property comes back unpromoted")
}
