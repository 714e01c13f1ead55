package data

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/twquant/screener/internal/table"
)

func TestBundleMissingKeyIsEmptyFrame(t *testing.T) {
	b := NewBundle()

	f := b.Table("no_such_table")
	assert.True(t, f.IsEmpty())
	assert.False(t, b.Has("no_such_table"))
}

func TestBundleSetAndGet(t *testing.T) {
	b := NewBundle()
	f := table.FromCells([]table.Cell{
		{Date: "2025-08-28", Stock: "2330", Value: 1120},
	})
	b.Set(KeyClose, f)

	assert.True(t, b.Has(KeyClose))
	assert.Equal(t, "2025-08-28", b.Table(KeyClose).LatestDate())
	assert.Contains(t, b.Keys(), KeyClose)
}

func TestBundleNilFrameIsEmpty(t *testing.T) {
	b := NewBundle()
	b.Set(KeyVolume, nil)

	assert.False(t, b.Has(KeyVolume))
	assert.True(t, b.Table(KeyVolume).IsEmpty())
}
