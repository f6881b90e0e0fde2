package ops_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mech/internal/core"
	"mech/internal/iterate"
	"mech/internal/ops"
	"mech/internal/store"
)

func newTable(t *testing.T, db *store.Database, id uint64, rows, cols int, kind core.Kind, vals [][]core.Value) {
	t.Helper()
	require.NoError(t, db.ProcessTransaction(store.Transaction{Changes: []store.Change{
		store.NewTableChange{TableID: id, Rows: rows, Cols: cols},
	}}))
	tbl, err := db.Table(core.GlobalTableId(id))
	require.NoError(t, err)
	tbl.SetKind(kind)
	var cells []store.ValueCell
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			cells = append(cells, store.ValueCell{Row: r + 1, Col: c + 1, Value: vals[r][c]})
		}
	}
	require.NoError(t, db.ProcessTransaction(store.Transaction{Changes: []store.Change{
		store.SetChange{TableID: id, Values: cells},
	}}))
}

func iter(t *testing.T, db *store.Database, id uint64) *iterate.ValueIterator {
	t.Helper()
	vi, err := iterate.New(core.GlobalTableId(id), core.All(), core.All(), db, 0)
	require.NoError(t, err)
	return vi
}

func TestHorizontalConcatenateRow(t *testing.T) {
	// A = [1 2 3], B = [4 5] -> output = [1 2 3 4 5], all u8.
	db := store.New()
	newTable(t, db, 1, 1, 3, core.KindU8, [][]core.Value{{core.FromU8(1), core.FromU8(2), core.FromU8(3)}})
	newTable(t, db, 2, 1, 2, core.KindU8, [][]core.Value{{core.FromU8(4), core.FromU8(5)}})
	require.NoError(t, db.ProcessTransaction(store.Transaction{Changes: []store.Change{
		store.NewTableChange{TableID: 3, Rows: 1, Cols: 5},
	}}))
	out, err := db.Table(core.GlobalTableId(3))
	require.NoError(t, err)
	out.SetKind(core.KindU8)

	a := iter(t, db, 1)
	b := iter(t, db, 2)
	outAll := iter(t, db, 3)

	// Per-column scalar copies, matching how the compiler's
	// horizontal-concatenate lowering dispatches one primitive per source
	// column.
	for i := 1; i <= 3; i++ {
		require.NoError(t, ops.CopySIxS(outAll, 1, i, a, 1, i))
	}
	require.NoError(t, ops.CopySIxS(outAll, 1, 4, b, 1, 1))
	require.NoError(t, ops.CopySIxS(outAll, 1, 5, b, 1, 2))

	outAll = iter(t, db, 3)
	got := outAll.Enumerate()
	want := []uint64{1, 2, 3, 4, 5}
	require.Len(t, got, 5)
	for i, c := range got {
		u, ok := c.Value.AsU64()
		require.True(t, ok)
		assert.Equal(t, want[i], u)
	}
}

func TestTableExtendAppendsMatchingKinds(t *testing.T) {
	// Table.Extend is a raw row-append step: it does no re-encoding, so
	// the kinds of both tables must already agree.
	db := store.New()
	newTable(t, db, 1, 2, 1, core.KindF32, [][]core.Value{{core.FromF32(1.0)}, {core.FromF32(2.0)}})
	newTable(t, db, 2, 1, 1, core.KindF32, [][]core.Value{{core.FromF32(3.0)}})

	a, err := db.Table(core.GlobalTableId(1))
	require.NoError(t, err)
	b, err := db.Table(core.GlobalTableId(2))
	require.NoError(t, err)

	require.NoError(t, a.Extend(b))
	require.Equal(t, 3, a.Rows)
	got := iter(t, db, 1).Enumerate()
	want := []float64{1.0, 2.0, 3.0}
	for i, c := range got {
		f, ok := c.Value.AsF64()
		require.True(t, ok)
		assert.Equal(t, want[i], f)
	}
}

func TestCopyVIGathersByIndexColumn(t *testing.T) {
	// Index values are 1-based positions into the source column.
	db := store.New()
	newTable(t, db, 1, 3, 1, core.KindU8, [][]core.Value{{core.FromU8(10)}, {core.FromU8(20)}, {core.FromU8(30)}})
	newTable(t, db, 2, 2, 1, core.KindU8, [][]core.Value{{core.FromU8(2)}, {core.FromU8(3)}})
	require.NoError(t, db.ProcessTransaction(store.Transaction{Changes: []store.Change{
		store.NewTableChange{TableID: 3, Rows: 2, Cols: 1},
	}}))
	out, err := db.Table(core.GlobalTableId(3))
	require.NoError(t, err)
	out.SetKind(core.KindU8)

	src := iter(t, db, 1)
	indices := iter(t, db, 2)
	dst := iter(t, db, 3)
	require.NoError(t, ops.CopyVI(ops.Parallel{}, dst, src, indices))

	dst = iter(t, db, 3)
	cells := dst.Enumerate()
	u0, _ := cells[0].Value.AsU64()
	u1, _ := cells[1].Value.AsU64()
	assert.Equal(t, uint64(20), u0)
	assert.Equal(t, uint64(30), u1)
}

func TestRangeFillsInclusiveColumn(t *testing.T) {
	// table/range(1, 4) -> 4x1 f32 column [1.0, 2.0, 3.0, 4.0].
	db := store.New()
	require.NoError(t, db.ProcessTransaction(store.Transaction{Changes: []store.Change{
		store.NewTableChange{TableID: 1, Rows: 0, Cols: 1},
	}}))
	dst := iter(t, db, 1)
	require.NoError(t, ops.Range(dst, 1, 4))

	dst = iter(t, db, 1)
	assert.Equal(t, 4, dst.Rows())
	cells := dst.Enumerate()
	want := []float32{1.0, 2.0, 3.0, 4.0}
	for i, c := range cells {
		f, ok := c.Value.AsF64()
		require.True(t, ok)
		assert.Equal(t, float64(want[i]), f)
	}
}

func TestRangeRejectsEndBeforeStart(t *testing.T) {
	db := store.New()
	require.NoError(t, db.ProcessTransaction(store.Transaction{Changes: []store.Change{
		store.NewTableChange{TableID: 1, Rows: 0, Cols: 1},
	}}))
	dst := iter(t, db, 1)
	assert.Error(t, ops.Range(dst, 4, 1))
}

func TestSizeReportsRowsAndCols(t *testing.T) {
	// input is a 3x5 table; table/size -> 1x2 u64 [[3, 5]].
	db := store.New()
	require.NoError(t, db.ProcessTransaction(store.Transaction{Changes: []store.Change{
		store.NewTableChange{TableID: 1, Rows: 3, Cols: 5},
		store.NewTableChange{TableID: 2, Rows: 0, Cols: 0},
	}}))
	src := iter(t, db, 1)
	dst := iter(t, db, 2)
	require.NoError(t, ops.Size(dst, src))

	dst = iter(t, db, 2)
	cells := dst.Enumerate()
	require.Len(t, cells, 2)
	rows, _ := cells[0].Value.AsU64()
	cols, _ := cells[1].Value.AsU64()
	assert.Equal(t, uint64(3), rows)
	assert.Equal(t, uint64(5), cols)
}

func TestAppendTableGrowsByOneRow(t *testing.T) {
	// table/append(a, X) on a column X of rows r produces a column of
	// rows r+1 whose last element equals a. Idempotence under unchanged
	// inputs is a block-level guarantee (the Whenever guard skips
	// re-firing when nothing changed) and is covered in internal/block,
	// not here.
	db := store.New()
	require.NoError(t, db.ProcessTransaction(store.Transaction{Changes: []store.Change{
		store.NewTableChange{TableID: 1, Rows: 2, Cols: 1},
		store.SetChange{TableID: 1, Values: []store.ValueCell{
			{Row: 1, Col: 1, Value: core.FromU8(1)},
			{Row: 2, Col: 1, Value: core.FromU8(2)},
		}},
		store.NewTableChange{TableID: 2, Rows: 1, Cols: 1},
		store.SetChange{TableID: 2, Values: []store.ValueCell{{Row: 1, Col: 1, Value: core.FromU8(9)}}},
	}}))
	x, err := db.Table(core.GlobalTableId(1))
	require.NoError(t, err)
	x.SetKind(core.KindU8)
	a, err := db.Table(core.GlobalTableId(2))
	require.NoError(t, err)
	a.SetKind(core.KindU8)

	dst := iter(t, db, 1)
	src := iter(t, db, 2)
	require.NoError(t, ops.AppendTable(dst, src))

	dst = iter(t, db, 1)
	assert.Equal(t, 3, dst.Rows())
	last, _, _ := dst.Get(3, 1)
	u, _ := last.AsU64()
	assert.Equal(t, uint64(9), u)
}

func TestCopyVBGathersMaskedCells(t *testing.T) {
	db := store.New()
	newTable(t, db, 1, 3, 1, core.KindU8, [][]core.Value{{core.FromU8(10)}, {core.FromU8(20)}, {core.FromU8(30)}})
	newTable(t, db, 2, 3, 1, core.KindBool, [][]core.Value{{core.FromBool(true)}, {core.FromBool(false)}, {core.FromBool(true)}})
	require.NoError(t, db.ProcessTransaction(store.Transaction{Changes: []store.Change{
		store.NewTableChange{TableID: 3, Rows: 2, Cols: 1},
	}}))
	out, err := db.Table(core.GlobalTableId(3))
	require.NoError(t, err)
	out.SetKind(core.KindU8)

	src := iter(t, db, 1)
	mask := iter(t, db, 2)
	dst := iter(t, db, 3)
	require.NoError(t, ops.CopyVB(ops.Parallel{}, dst, src, mask))

	dst = iter(t, db, 3)
	cells := dst.Enumerate()
	u0, _ := cells[0].Value.AsU64()
	u1, _ := cells[1].Value.AsU64()
	assert.Equal(t, uint64(10), u0)
	assert.Equal(t, uint64(30), u1)
}

func TestCopyVVDimensionMismatch(t *testing.T) {
	db := store.New()
	newTable(t, db, 1, 1, 2, core.KindU8, [][]core.Value{{core.FromU8(1), core.FromU8(2)}})
	require.NoError(t, db.ProcessTransaction(store.Transaction{Changes: []store.Change{
		store.NewTableChange{TableID: 2, Rows: 1, Cols: 3},
	}}))
	src := iter(t, db, 1)
	dst := iter(t, db, 2)
	err := ops.CopyVV(ops.Parallel{}, dst, src)
	require.Error(t, err)
	merr, ok := err.(*core.Error)
	require.True(t, ok)
	assert.Equal(t, core.ErrDimensionMismatch, merr.Kind)
}
