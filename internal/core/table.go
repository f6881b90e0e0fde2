package core

import "fmt"

// Table is an ordered sequence of columns with a row count, column
// aliases, and row aliases. Rows and columns may change at runtime.
// Dynamic only changes what Shape reports; table/append dispatches on its
// arguments' iterator shapes and grows its destination whether or not the
// table is marked Dynamic.
type Table struct {
	ID      TableId
	Rows    int
	Cols    int
	Columns []*Column
	ColMap  map[uint64]int // alias -> column index (0-based)
	RowMap  map[uint64]int // alias -> row index (0-based)
	Dynamic bool
}

// NewTable allocates a rows×cols table with every column initialized to
// KindEmpty (the kind is fixed at the first real assignment).
func NewTable(id TableId, rows, cols int) *Table {
	t := &Table{
		ID:      id,
		Rows:    rows,
		Cols:    cols,
		Columns: make([]*Column, cols),
		ColMap:  make(map[uint64]int),
		RowMap:  make(map[uint64]int),
	}
	for i := range t.Columns {
		t.Columns[i] = NewColumn(KindEmpty, rows)
	}
	return t
}

// Shape reports the table's current geometric shape.
func (t *Table) Shape() TableShape { return ShapeOf(t.Rows, t.Cols, t.Dynamic) }

// Resize changes the table to rows×cols, preserving existing data in the
// overlapping region. Newly created columns start at KindEmpty; newly
// created rows in existing columns are filled with EmptyValue.
func (t *Table) Resize(rows, cols int) {
	if cols > len(t.Columns) {
		for i := len(t.Columns); i < cols; i++ {
			t.Columns = append(t.Columns, NewColumn(KindEmpty, t.Rows))
		}
	} else if cols < len(t.Columns) {
		t.Columns = t.Columns[:cols]
	}
	for _, c := range t.Columns {
		c.Resize(rows, EmptyValue)
	}
	t.Rows = rows
	t.Cols = cols
}

// SetKind sets every column to kind. It is forbidden (panics, a compiler
// invariant violation) once any column already holds data of a different,
// non-empty kind — the compiler must only call this for freshly-created
// tables.
func (t *Table) SetKind(kind Kind) {
	for _, c := range t.Columns {
		if c.Kind() != KindEmpty && c.Kind() != kind {
			panic(fmt.Sprintf("core: SetKind(%s) on table already holding %s data", kind, c.Kind()))
		}
		c.SetKind(kind)
	}
}

// SetColKind sets the kind of a single 0-based column index.
func (t *Table) SetColKind(ix int, kind Kind) { t.Columns[ix].SetKind(kind) }

// ColumnByIndex resolves a TableIndex to a 0-based column index, following
// aliases. It does not resolve TableIndex::Table (index-vector) selectors
// — that is the ValueIterator's job, since it needs access to the
// database to read the index table's contents.
func (t *Table) ColumnByIndex(sel TableIndex) (int, error) {
	switch sel.Kind() {
	case IndexScalar:
		ix := sel.ScalarIndex() - 1
		if ix < 0 || ix >= t.Cols {
			return 0, GenericError("column index %d out of range for table %s with %d columns", sel.ScalarIndex(), t.ID, t.Cols)
		}
		return ix, nil
	case IndexAlias:
		ix, ok := t.ColMap[sel.AliasId()]
		if !ok {
			return 0, GenericError("unknown column alias %#x on table %s", sel.AliasId(), t.ID)
		}
		return ix, nil
	default:
		return 0, GenericError("column selector %s cannot be resolved without an index vector", sel)
	}
}

// RowByIndex mirrors ColumnByIndex for the row axis.
func (t *Table) RowByIndex(sel TableIndex) (int, error) {
	switch sel.Kind() {
	case IndexScalar:
		ix := sel.ScalarIndex() - 1
		if ix < 0 || ix >= t.Rows {
			return 0, GenericError("row index %d out of range for table %s with %d rows", sel.ScalarIndex(), t.ID, t.Rows)
		}
		return ix, nil
	case IndexAlias:
		ix, ok := t.RowMap[sel.AliasId()]
		if !ok {
			return 0, GenericError("unknown row alias %#x on table %s", sel.AliasId(), t.ID)
		}
		return ix, nil
	default:
		return 0, GenericError("row selector %s cannot be resolved without an index vector", sel)
	}
}

// Get returns the value at 1-based (row, col).
func (t *Table) Get(row, col int) Value { return t.Columns[col-1].Get(row) }

// Set writes value at 1-based (row, col) and stamps its version with tick.
func (t *Table) Set(row, col int, v Value, tick uint64) { t.Columns[col-1].SetAt(row, v, tick) }

// IndexToSubscript converts a 0-based linear index (column-major order)
// into a 1-based (row, col) pair.
func (t *Table) IndexToSubscript(linear int) (row, col int) {
	col = linear/t.Rows + 1
	row = linear%t.Rows + 1
	return
}

// SubscriptToIndex is the inverse of IndexToSubscript.
func (t *Table) SubscriptToIndex(row, col int) int {
	return (col-1)*t.Rows + (row - 1)
}

// Extend appends other's rows to t. When both tables declare column
// aliases, rows are appended by matching alias name rather than by
// position; otherwise columns are matched by index. Column counts must
// agree either way.
func (t *Table) Extend(other *Table) error {
	if t.Cols != other.Cols {
		return DimensionMismatch(t.Shape(), other.Shape())
	}
	order := make([]int, t.Cols)
	for i := range order {
		order[i] = i
	}
	if len(t.ColMap) > 0 && len(other.ColMap) > 0 {
		for alias, srcIx := range other.ColMap {
			if dstIx, ok := t.ColMap[alias]; ok {
				order[dstIx] = srcIx
			}
		}
	}
	for dstIx, srcIx := range order {
		if !CanWiden(other.Columns[srcIx].Kind(), t.Columns[dstIx].Kind()) {
			if t.Columns[dstIx].Kind() == KindEmpty {
				t.Columns[dstIx].SetKind(other.Columns[srcIx].Kind())
			} else {
				return GenericError("cannot extend column %d of kind %s with column of kind %s", dstIx, t.Columns[dstIx].Kind(), other.Columns[srcIx].Kind())
			}
		}
		t.Columns[dstIx].Extend(other.Columns[srcIx])
	}
	t.Rows += other.Rows
	return nil
}

// String renders a short summary of the table for diagnostics.
func (t *Table) String() string {
	return fmt.Sprintf("Table(%s, %dx%d)", t.ID, t.Rows, t.Cols)
}
