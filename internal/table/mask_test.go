package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskBasics(t *testing.T) {
	m := NewMask([]string{"2330", "2317"})
	assert.Equal(t, 0, m.Count())

	m.Set("2330", true)
	assert.True(t, m.Contains("2330"))
	assert.False(t, m.Contains("2317"))
	assert.False(t, m.Contains("9999"))
	assert.Equal(t, []string{"2330"}, m.TrueStocks())

	all := NewMaskAll([]string{"2330", "2317"})
	assert.Equal(t, 2, all.Count())
}

func TestMaskAndOrMissingIsFalse(t *testing.T) {
	a := NewMask([]string{"2330", "2317"})
	a.Set("2330", true)
	a.Set("2317", true)

	// b does not cover 2317 at all
	b := NewMask([]string{"2330"})
	b.Set("2330", true)

	and := a.And(b)
	assert.True(t, and.Contains("2330"))
	assert.False(t, and.Contains("2317"))

	or := a.Or(b)
	assert.True(t, or.Contains("2317"))
}

func TestMaskReindex(t *testing.T) {
	m := NewMask([]string{"2330"})
	m.Set("2330", true)

	re := m.Reindex([]string{"2330", "2317", "2454"})
	require.Equal(t, 3, re.Len())
	assert.True(t, re.Contains("2330"))
	// False fill for stocks outside the source universe
	assert.False(t, re.Contains("2317"))
	assert.False(t, re.Contains("2454"))
}

func TestMaskAndAll(t *testing.T) {
	universe := []string{"2330", "2317", "2454"}

	a := NewMaskAll(universe)
	b := NewMask(universe)
	b.Set("2330", true)
	b.Set("2317", true)
	c := NewMask(universe)
	c.Set("2330", true)
	c.Set("2454", true)

	out := a.AndAll(b, c)
	assert.Equal(t, []string{"2330"}, out.TrueStocks())
}

func TestMaskNot(t *testing.T) {
	m := NewMask([]string{"2330", "2317"})
	m.Set("2330", true)

	not := m.Not()
	assert.False(t, not.Contains("2330"))
	assert.True(t, not.Contains("2317"))
}
