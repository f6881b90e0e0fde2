// Package iterate implements the ValueIterator: the uniform cursor over
// a (table, row-selector, column-selector) triple. Plans are expressed
// entirely against this layer rather than against raw
// Table/Column access, so the primitive operations in internal/ops never
// need to know whether they are looking at a scalar, a row, a column, or
// a full matrix.
package iterate

import "mech/internal/core"

// Resolver is whatever can turn a TableId into a *core.Table and resolve
// its aliases. internal/store.Database satisfies this directly for
// Global-only access, without importing this package; internal/block
// provides a Scope that additionally understands Local ids. Both satisfy
// it structurally, through methods whose signatures use only core types.
type Resolver interface {
	Table(id core.TableId) (*core.Table, error)
	ColumnAlias(id core.TableId, alias uint64) (int, bool)
	RowAlias(id core.TableId, alias uint64) (int, bool)
	Tick() uint64
}

// Cell is one (value, changed) pair produced while enumerating a
// ValueIterator, alongside the 0-based linear (column-major) index it
// came from.
type Cell struct {
	Index   int
	Value   core.Value
	Changed bool
}

// ValueIterator binds a selector against a table and exposes scalar, row,
// column, matrix, or "all" access uniformly.
type ValueIterator struct {
	resolver  Resolver
	tableID   core.TableId
	table     *core.Table
	rowSel    core.TableIndex
	colSel    core.TableIndex
	sinceTick uint64

	rows []int // 0-based row indices selected, in order
	cols []int // 0-based column indices selected, in order
}

// New binds (tableID, rowSel, colSel) against resolver. sinceTick is the
// tick the owning block last observed this register at; cells written at
// or before sinceTick report Changed=false.
func New(tableID core.TableId, rowSel, colSel core.TableIndex, resolver Resolver, sinceTick uint64) (*ValueIterator, error) {
	t, err := resolver.Table(tableID)
	if err != nil {
		return nil, err
	}
	vi := &ValueIterator{resolver: resolver, tableID: tableID, table: t, rowSel: rowSel, colSel: colSel, sinceTick: sinceTick}
	if err := vi.resolveAxes(); err != nil {
		return nil, err
	}
	return vi, nil
}

func (vi *ValueIterator) resolveAxes() error {
	rows, err := vi.resolveAxis(vi.rowSel, vi.table.Rows, true)
	if err != nil {
		return err
	}
	cols, err := vi.resolveAxis(vi.colSel, vi.table.Cols, false)
	if err != nil {
		return err
	}
	vi.rows = rows
	vi.cols = cols
	return nil
}

func (vi *ValueIterator) resolveAxis(sel core.TableIndex, extent int, isRow bool) ([]int, error) {
	switch sel.Kind() {
	case core.IndexAll:
		out := make([]int, extent)
		for i := range out {
			out[i] = i
		}
		return out, nil
	case core.IndexNone:
		return nil, nil
	case core.IndexScalar:
		ix := sel.ScalarIndex() - 1
		if ix < 0 || ix >= extent {
			return nil, core.GenericError("index %d out of range (extent %d) on table %s", sel.ScalarIndex(), extent, vi.tableID)
		}
		return []int{ix}, nil
	case core.IndexAlias:
		var ix int
		var ok bool
		if isRow {
			ix, ok = vi.resolver.RowAlias(vi.tableID, sel.AliasId())
		} else {
			ix, ok = vi.resolver.ColumnAlias(vi.tableID, sel.AliasId())
		}
		if !ok {
			return nil, core.GenericError("unknown alias %#x on table %s", sel.AliasId(), vi.tableID)
		}
		return []int{ix}, nil
	case core.IndexTable:
		return vi.resolveIndexTable(sel.TableRef(), extent)
	default:
		return nil, core.GenericError("unhandled table index kind on table %s", vi.tableID)
	}
}

// resolveIndexTable reads another table and interprets its single column
// as either a boolean mask over `extent` positions or a list of 1-based
// integer indices, depending on its column kind.
func (vi *ValueIterator) resolveIndexTable(id core.TableId, extent int) ([]int, error) {
	ixTable, err := vi.resolver.Table(id)
	if err != nil {
		return nil, err
	}
	if ixTable.Cols == 0 {
		return nil, nil
	}
	col := ixTable.Columns[0]
	if col.Kind() == core.KindBool {
		if col.Len() != extent {
			return nil, core.DimensionMismatch(core.ColumnShape(extent), core.ColumnShape(col.Len()))
		}
		var out []int
		for i := 0; i < col.Len(); i++ {
			b, _ := col.Get(i + 1).AsBool()
			if b {
				out = append(out, i)
			}
		}
		return out, nil
	}
	out := make([]int, 0, col.Len())
	for i := 0; i < col.Len(); i++ {
		v := col.Get(i + 1)
		if u, ok := v.AsU64(); ok {
			out = append(out, int(u)-1)
			continue
		}
		if s, ok := v.AsI64(); ok {
			out = append(out, int(s)-1)
			continue
		}
		if f, ok := v.AsFloat64Generic(); ok {
			out = append(out, int(f)-1)
			continue
		}
		return nil, core.GenericError("index table %s column is not numeric or boolean", id)
	}
	return out, nil
}

// ID returns the bound table id.
func (vi *ValueIterator) ID() core.TableId { return vi.tableID }

// Rows returns the number of rows in the selected subregion.
func (vi *ValueIterator) Rows() int { return len(vi.rows) }

// Columns returns the number of columns in the selected subregion.
func (vi *ValueIterator) Columns() int { return len(vi.cols) }

// Elements returns Rows()*Columns().
func (vi *ValueIterator) Elements() int { return vi.Rows() * vi.Columns() }

// Table exposes the bound *core.Table directly for primitives that need
// its Kind/Shape without another resolver round trip.
func (vi *ValueIterator) Table() *core.Table { return vi.table }

// RowSelector returns the row selector this iterator was bound with.
func (vi *ValueIterator) RowSelector() core.TableIndex { return vi.rowSel }

// ColumnSelector returns the column selector this iterator was bound with.
func (vi *ValueIterator) ColumnSelector() core.TableIndex { return vi.colSel }

// Get returns the value (and its changed flag) at 1-based logical
// position (rowIx, colIx) within the selected subregion.
func (vi *ValueIterator) Get(rowIx, colIx int) (core.Value, bool, bool) {
	if rowIx < 1 || rowIx > len(vi.rows) || colIx < 1 || colIx > len(vi.cols) {
		return core.Value{}, false, false
	}
	row := vi.rows[rowIx-1] + 1
	col := vi.cols[colIx-1] + 1
	v := vi.table.Get(row, col)
	changed := vi.table.Columns[col-1].VersionAt(row) > vi.sinceTick
	return v, changed, true
}

// Enumerate yields every (value, changed) pair in the selected subregion
// in column-major order, alongside its 0-based linear destination index.
func (vi *ValueIterator) Enumerate() []Cell {
	out := make([]Cell, 0, vi.Elements())
	ix := 0
	for _, col := range vi.cols {
		for _, row := range vi.rows {
			v := vi.table.Get(row+1, col+1)
			changed := vi.table.Columns[col].VersionAt(row+1) > vi.sinceTick
			out = append(out, Cell{Index: ix, Value: v, Changed: changed})
			ix++
		}
	}
	return out
}

// LinearIndexIterator yields the 0-based destination slots for the
// current shape, in order: 0..Elements()-1.
func (vi *ValueIterator) LinearIndexIterator() []int {
	out := make([]int, vi.Elements())
	for i := range out {
		out[i] = i
	}
	return out
}

// Resize resizes the underlying table. Only valid when both selectors
// are All, i.e. this iterator owns the whole output table.
func (vi *ValueIterator) Resize(rows, cols int) error {
	if vi.rowSel.Kind() != core.IndexAll || vi.colSel.Kind() != core.IndexAll {
		return core.GenericError("cannot resize table %s through a non-All/All iterator", vi.tableID)
	}
	vi.table.Resize(rows, cols)
	return vi.resolveAxes()
}

// SetUnchecked writes v at 1-based logical (rowIx, colIx) within the
// selected subregion, stamping it with the resolver's current tick.
func (vi *ValueIterator) SetUnchecked(rowIx, colIx int, v core.Value) {
	row := vi.rows[rowIx-1] + 1
	col := vi.cols[colIx-1] + 1
	vi.table.Set(row, col, v, vi.resolver.Tick())
}

// SetUncheckedLinear writes v at 0-based linear (column-major) index ix
// within the selected subregion.
func (vi *ValueIterator) SetUncheckedLinear(ix int, v core.Value) {
	col := ix / len(vi.rows)
	row := ix % len(vi.rows)
	vi.table.Set(vi.rows[row]+1, vi.cols[col]+1, v, vi.resolver.Tick())
}

// Subscript converts a 0-based linear (column-major) index within the
// selected subregion into its 1-based (rowIx, colIx) logical position.
func (vi *ValueIterator) Subscript(ix int) (rowIx, colIx int) {
	colIx = ix/len(vi.rows) + 1
	rowIx = ix%len(vi.rows) + 1
	return
}

// ColumnKind returns the element kind backing the 1-based logical column
// colIx, so primitives can decide whether a source value needs widening
// before it is written.
func (vi *ValueIterator) ColumnKind(colIx int) core.Kind {
	return vi.table.Columns[vi.cols[colIx-1]].Kind()
}

// Shape reports the geometric shape of the selected subregion, for
// dimension-mismatch error messages.
func (vi *ValueIterator) Shape() core.TableShape {
	return core.ShapeOf(vi.Rows(), vi.Columns(), false)
}

// AsReference follows a Reference value at 1-based logical (rowIx, colIx)
// within a scalar selection, so chained selectors (table/define, Select)
// can walk through tables-of-tables.
func (vi *ValueIterator) AsReference(rowIx, colIx int) (core.TableId, bool) {
	v, _, ok := vi.Get(rowIx, colIx)
	if !ok {
		return core.TableId{}, false
	}
	return v.AsReference()
}
