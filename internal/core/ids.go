package core

import "fmt"

// TableId addresses a table as either Local (visible only inside the
// owning block's local store) or Global (visible through the database).
// A Local id never appears in the database's table map and a Global id
// never appears in a block's local table map.
type TableId struct {
	id     uint64
	global bool
}

// LocalTableId constructs a block-local table id.
func LocalTableId(id uint64) TableId { return TableId{id: id, global: false} }

// GlobalTableId constructs a database-visible table id.
func GlobalTableId(id uint64) TableId { return TableId{id: id, global: true} }

// IsGlobal reports whether the id is visible through the database.
func (t TableId) IsGlobal() bool { return t.global }

// IsLocal reports whether the id is block-local.
func (t TableId) IsLocal() bool { return !t.global }

// Raw returns the 48-bit stable hash backing this id.
func (t TableId) Raw() uint64 { return t.id }

// String renders the id for diagnostics, e.g. "global#1a2b3c" or "local#7".
func (t TableId) String() string {
	if t.global {
		return fmt.Sprintf("global#%x", t.id)
	}
	return fmt.Sprintf("local#%x", t.id)
}

// TableIndexKind discriminates the variants of TableIndex.
type TableIndexKind uint8

const (
	IndexAll TableIndexKind = iota
	IndexNone
	IndexScalar
	IndexAlias
	IndexTable
)

// TableIndex selects a subregion along one axis (row or column) of a
// table. Indices are 1-based externally; implementations translate to
// 0-based internally at the point of access.
type TableIndex struct {
	kind  TableIndexKind
	ix    int     // 1-based scalar index, valid when kind == IndexScalar
	alias uint64  // named column/row alias, valid when kind == IndexAlias
	table TableId // index-vector table, valid when kind == IndexTable
}

// All selects every element along an axis.
func All() TableIndex { return TableIndex{kind: IndexAll} }

// None marks an axis absent (e.g. a 1-D selector with no column axis).
func None() TableIndex { return TableIndex{kind: IndexNone} }

// Index constructs a 1-based scalar TableIndex.
func Index(ix int) TableIndex { return TableIndex{kind: IndexScalar, ix: ix} }

// Alias constructs a named-alias TableIndex.
func Alias(alias uint64) TableIndex { return TableIndex{kind: IndexAlias, alias: alias} }

// IndexByTable constructs a TableIndex driven by another table used as an
// index vector, interpreted as integer indices or booleans depending on
// its column kind.
func IndexByTable(t TableId) TableIndex { return TableIndex{kind: IndexTable, table: t} }

// Kind reports which variant this TableIndex is.
func (t TableIndex) Kind() TableIndexKind { return t.kind }

// ScalarIndex returns the 1-based index, valid only when Kind() == IndexScalar.
func (t TableIndex) ScalarIndex() int { return t.ix }

// AliasId returns the alias hash, valid only when Kind() == IndexAlias.
func (t TableIndex) AliasId() uint64 { return t.alias }

// TableRef returns the index-vector table id, valid only when Kind() == IndexTable.
func (t TableIndex) TableRef() TableId { return t.table }

func (t TableIndex) String() string {
	switch t.kind {
	case IndexAll:
		return "All"
	case IndexNone:
		return "None"
	case IndexScalar:
		return fmt.Sprintf("Index(%d)", t.ix)
	case IndexAlias:
		return fmt.Sprintf("Alias(%x)", t.alias)
	case IndexTable:
		return fmt.Sprintf("Table(%s)", t.table)
	default:
		return "?"
	}
}

// Register is the unit of dependency between blocks: a (table, row
// selector, column selector) triple. A block declares the set of
// registers it reads (input), the set it writes (output), and the set
// whose prior state it also depends on (output_dependencies).
type Register struct {
	Table  TableId
	Row    TableIndex
	Column TableIndex
}

// AllRegister is the canonical "whole table" register used for alias
// collapsing: a change on any subregion of a table wakes dependents on
// the All/All root.
func AllRegister(t TableId) Register {
	return Register{Table: t, Row: All(), Column: All()}
}

func (r Register) String() string {
	return fmt.Sprintf("%s[%s,%s]", r.Table, r.Row, r.Column)
}
