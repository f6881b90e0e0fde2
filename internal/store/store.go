// Package store implements the process-wide Database: the arena that
// owns every Global table, the interned string table, the column/row
// alias maps, and the append-only transaction log. A single arena keyed
// by TableId means blocks hold ids, never pointers into another owner's
// tables.
package store

import (
	"fmt"

	"mech/internal/core"
)

// Database is the single shared mutable resource in the runtime: the
// scheduler holds the only reference to it and serializes all access by
// running blocks one at a time.
type Database struct {
	tables map[uint64]*core.Table

	strings map[uint64]string

	colAliasToIndex map[uint64]map[uint64]int
	colIndexToAlias map[uint64]map[int]uint64
	rowAliasToIndex map[uint64]map[uint64]int
	rowIndexToAlias map[uint64]map[int]uint64

	transactions []Transaction

	// tick is the global change counter. It increments once per applied
	// transaction and is stamped onto every cell a transaction touches,
	// backing the O(1) per-cell Whenever change detection.
	tick uint64
}

// New constructs an empty Database.
func New() *Database {
	return &Database{
		tables:          make(map[uint64]*core.Table),
		strings:         make(map[uint64]string),
		colAliasToIndex: make(map[uint64]map[uint64]int),
		colIndexToAlias: make(map[uint64]map[int]uint64),
		rowAliasToIndex: make(map[uint64]map[uint64]int),
		rowIndexToAlias: make(map[uint64]map[int]uint64),
	}
}

// Tick returns the current global change counter.
func (db *Database) Tick() uint64 { return db.tick }

// Intern stores s under its stable hash and returns the hash, so repeated
// strings share one backing value.
func (db *Database) Intern(s string) uint64 {
	h := core.HashString(s)
	if _, ok := db.strings[h]; !ok {
		db.strings[h] = s
	}
	return h
}

// LookupString resolves an interned hash back to its string, for
// diagnostics.
func (db *Database) LookupString(h uint64) (string, bool) {
	s, ok := db.strings[h]
	return s, ok
}

// Table returns the Global table for id, or a MissingTable error.
func (db *Database) Table(id core.TableId) (*core.Table, error) {
	if !id.IsGlobal() {
		return nil, core.GenericError("store: Table called with non-global id %s", id)
	}
	t, ok := db.tables[id.Raw()]
	if !ok {
		return nil, core.MissingTable(id)
	}
	return t, nil
}

// HasTable reports whether a Global table exists without allocating an
// error. Applying a NewTableChange uses it to leave an existing table
// in place.
func (db *Database) HasTable(id core.TableId) bool {
	_, ok := db.tables[id.Raw()]
	return ok
}

// ColumnAlias resolves a named column alias on a table to its 0-based
// index.
func (db *Database) ColumnAlias(id core.TableId, alias uint64) (int, bool) {
	m, ok := db.colAliasToIndex[id.Raw()]
	if !ok {
		return 0, false
	}
	ix, ok := m[alias]
	return ix, ok
}

// ColumnAliasOf returns the alias registered for a 0-based column index, if
// any.
func (db *Database) ColumnAliasOf(id core.TableId, ix int) (uint64, bool) {
	m, ok := db.colIndexToAlias[id.Raw()]
	if !ok {
		return 0, false
	}
	alias, ok := m[ix]
	return alias, ok
}

// RowAlias mirrors ColumnAlias for the row axis.
func (db *Database) RowAlias(id core.TableId, alias uint64) (int, bool) {
	m, ok := db.rowAliasToIndex[id.Raw()]
	if !ok {
		return 0, false
	}
	ix, ok := m[alias]
	return ix, ok
}

func (db *Database) setColumnAlias(id core.TableId, ix int, alias uint64) {
	if db.colAliasToIndex[id.Raw()] == nil {
		db.colAliasToIndex[id.Raw()] = make(map[uint64]int)
		db.colIndexToAlias[id.Raw()] = make(map[int]uint64)
	}
	db.colAliasToIndex[id.Raw()][alias] = ix
	db.colIndexToAlias[id.Raw()][ix] = alias
}

func (db *Database) setRowAlias(id core.TableId, ix int, alias uint64) {
	if db.rowAliasToIndex[id.Raw()] == nil {
		db.rowAliasToIndex[id.Raw()] = make(map[uint64]int)
		db.rowIndexToAlias[id.Raw()] = make(map[int]uint64)
	}
	db.rowAliasToIndex[id.Raw()][alias] = ix
	db.rowIndexToAlias[id.Raw()][ix] = alias
}

// Transactions returns the append-only execution history.
func (db *Database) Transactions() []Transaction { return db.transactions }

// ProcessTransaction applies every Change in txn to the database as one
// atomic unit: the global tick advances once, and every Set in the
// transaction is stamped with that same tick so a Whenever guard sees a
// whole transaction as a single observable step.
func (db *Database) ProcessTransaction(txn Transaction) error {
	db.tick++
	tick := db.tick
	for _, ch := range txn.Changes {
		if err := db.apply(ch, tick); err != nil {
			return fmt.Errorf("store: applying change %T: %w", ch, err)
		}
	}
	db.transactions = append(db.transactions, txn)
	return nil
}

func (db *Database) apply(ch Change, tick uint64) error {
	switch c := ch.(type) {
	case NewTableChange:
		id := core.GlobalTableId(c.TableID)
		db.tables[c.TableID] = core.NewTable(id, c.Rows, c.Cols)
		return nil
	case SetColumnAliasChange:
		id := core.GlobalTableId(c.TableID)
		if !db.HasTable(id) {
			return core.MissingTable(id)
		}
		db.setColumnAlias(id, c.ColumnIx, c.ColumnAlias)
		return nil
	case SetRowAliasChange:
		id := core.GlobalTableId(c.TableID)
		if !db.HasTable(id) {
			return core.MissingTable(id)
		}
		db.setRowAlias(id, c.RowIx, c.RowAlias)
		return nil
	case SetChange:
		id := core.GlobalTableId(c.TableID)
		t, err := db.Table(id)
		if err != nil {
			return err
		}
		for _, cell := range c.Values {
			if cell.Row > t.Rows || cell.Col > t.Cols {
				rows, cols := t.Rows, t.Cols
				if cell.Row > rows {
					rows = cell.Row
				}
				if cell.Col > cols {
					cols = cell.Col
				}
				t.Resize(rows, cols)
			}
			if col := t.Columns[cell.Col-1]; col.Kind() == core.KindEmpty && cell.Value.Kind() != core.KindEmpty {
				col.SetKind(cell.Value.Kind())
			}
			t.Set(cell.Row, cell.Col, cell.Value, tick)
		}
		return nil
	default:
		return core.GenericError("store: unknown change type %T", ch)
	}
}
