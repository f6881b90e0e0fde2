package store

import "mech/internal/core"

// Change is one record in a block's change queue. The register model
// treats row aliases symmetrically with column aliases, so
// SetRowAliasChange sits alongside the column form.
type Change interface {
	isChange()
}

// NewTableChange allocates a fresh Global table.
type NewTableChange struct {
	TableID uint64
	Rows    int
	Cols    int
}

// SetColumnAliasChange names a column.
type SetColumnAliasChange struct {
	TableID     uint64
	ColumnIx    int
	ColumnAlias uint64
}

// SetRowAliasChange names a row.
type SetRowAliasChange struct {
	TableID  uint64
	RowIx    int
	RowAlias uint64
}

// ValueCell is one (row, col, value) write within a SetChange.
type ValueCell struct {
	Row   int
	Col   int
	Value core.Value
}

// SetChange writes a batch of cells into one table.
type SetChange struct {
	TableID uint64
	Values  []ValueCell
}

func (NewTableChange) isChange()       {}
func (SetColumnAliasChange) isChange() {}
func (SetRowAliasChange) isChange()    {}
func (SetChange) isChange()            {}

// Transaction is the set of Changes produced by one block firing, applied
// to the database atomically.
type Transaction struct {
	Changes []Change
}
