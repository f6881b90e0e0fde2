package iterate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mech/internal/core"
	"mech/internal/iterate"
	"mech/internal/store"
)

func TestIteratorAllAllEnumeratesColumnMajor(t *testing.T) {
	db := store.New()
	require.NoError(t, db.ProcessTransaction(store.Transaction{Changes: []store.Change{
		store.NewTableChange{TableID: 1, Rows: 2, Cols: 2},
		store.SetChange{TableID: 1, Values: []store.ValueCell{
			{Row: 1, Col: 1, Value: core.FromU8(1)},
			{Row: 2, Col: 1, Value: core.FromU8(2)},
			{Row: 1, Col: 2, Value: core.FromU8(3)},
			{Row: 2, Col: 2, Value: core.FromU8(4)},
		}},
	}}))

	vi, err := iterate.New(core.GlobalTableId(1), core.All(), core.All(), db, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, vi.Elements())

	cells := vi.Enumerate()
	require.Len(t, cells, 4)
	want := []uint64{1, 2, 3, 4}
	for i, c := range cells {
		u, ok := c.Value.AsU64()
		require.True(t, ok)
		assert.Equal(t, want[i], u)
		assert.True(t, c.Changed)
	}
}

func TestIteratorScalarGetAndSetUnchecked(t *testing.T) {
	db := store.New()
	require.NoError(t, db.ProcessTransaction(store.Transaction{Changes: []store.Change{
		store.NewTableChange{TableID: 1, Rows: 1, Cols: 1},
	}}))

	vi, err := iterate.New(core.GlobalTableId(1), core.Index(1), core.Index(1), db, 0)
	require.NoError(t, err)
	vi.SetUnchecked(1, 1, core.FromU8(42))

	v, changed, ok := vi.Get(1, 1)
	require.True(t, ok)
	assert.True(t, changed)
	u, _ := v.AsU64()
	assert.Equal(t, uint64(42), u)
}

func TestIteratorSinceTickSuppressesChangedFlag(t *testing.T) {
	db := store.New()
	require.NoError(t, db.ProcessTransaction(store.Transaction{Changes: []store.Change{
		store.NewTableChange{TableID: 1, Rows: 1, Cols: 1},
		store.SetChange{TableID: 1, Values: []store.ValueCell{{Row: 1, Col: 1, Value: core.FromU8(1)}}},
	}}))
	tickAfterFirstWrite := db.Tick()

	vi, err := iterate.New(core.GlobalTableId(1), core.All(), core.All(), db, tickAfterFirstWrite)
	require.NoError(t, err)
	_, changed, _ := vi.Get(1, 1)
	assert.False(t, changed)
}

func TestIteratorResizeRejectedThroughPartialSelector(t *testing.T) {
	db := store.New()
	require.NoError(t, db.ProcessTransaction(store.Transaction{Changes: []store.Change{
		store.NewTableChange{TableID: 1, Rows: 2, Cols: 1},
	}}))

	vi, err := iterate.New(core.GlobalTableId(1), core.Index(1), core.All(), db, 0)
	require.NoError(t, err)
	assert.Error(t, vi.Resize(3, 1))

	full, err := iterate.New(core.GlobalTableId(1), core.All(), core.All(), db, 0)
	require.NoError(t, err)
	require.NoError(t, full.Resize(3, 2))
	assert.Equal(t, 6, full.Elements())
}

func TestIteratorIndexTableBooleanMaskSelectsRows(t *testing.T) {
	db := store.New()
	require.NoError(t, db.ProcessTransaction(store.Transaction{Changes: []store.Change{
		store.NewTableChange{TableID: 1, Rows: 3, Cols: 1},
		store.SetChange{TableID: 1, Values: []store.ValueCell{
			{Row: 1, Col: 1, Value: core.FromU8(10)},
			{Row: 2, Col: 1, Value: core.FromU8(20)},
			{Row: 3, Col: 1, Value: core.FromU8(30)},
		}},
		store.NewTableChange{TableID: 2, Rows: 3, Cols: 1},
		store.SetChange{TableID: 2, Values: []store.ValueCell{
			{Row: 1, Col: 1, Value: core.FromBool(true)},
			{Row: 2, Col: 1, Value: core.FromBool(false)},
			{Row: 3, Col: 1, Value: core.FromBool(true)},
		}},
	}}))

	sel := core.IndexByTable(core.GlobalTableId(2))
	vi, err := iterate.New(core.GlobalTableId(1), sel, core.All(), db, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, vi.Rows())

	v, _, ok := vi.Get(1, 1)
	require.True(t, ok)
	u, _ := v.AsU64()
	assert.Equal(t, uint64(10), u)
	v2, _, ok := vi.Get(2, 1)
	require.True(t, ok)
	u2, _ := v2.AsU64()
	assert.Equal(t, uint64(30), u2)
}

func TestIteratorAsReferenceFollowsToAnotherTable(t *testing.T) {
	db := store.New()
	require.NoError(t, db.ProcessTransaction(store.Transaction{Changes: []store.Change{
		store.NewTableChange{TableID: 1, Rows: 5, Cols: 1},
		store.NewTableChange{TableID: 2, Rows: 1, Cols: 1},
		store.SetChange{TableID: 2, Values: []store.ValueCell{
			{Row: 1, Col: 1, Value: core.FromReference(core.GlobalTableId(1))},
		}},
	}}))

	vi, err := iterate.New(core.GlobalTableId(2), core.Index(1), core.Index(1), db, 0)
	require.NoError(t, err)
	ref, ok := vi.AsReference(1, 1)
	require.True(t, ok)
	assert.Equal(t, core.GlobalTableId(1), ref)
}
