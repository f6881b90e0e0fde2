// Package compile implements the transformation compiler: it lowers the
// wire `Transformation` list into a `Plan`, an ordered sequence of
// `Step`s a block's `solve` walks every time it fires. Lowering compares
// argument shapes and kinds, emits a typed primitive-op choice per
// step, and records the register and alias bookkeeping on the owning
// block as it goes.
package compile

import "mech/internal/core"

// Transformation is one entry in the parsed program the compiler
// consumes. The parser/front end that produces this list is excluded
// from this module's scope — only the already-parsed list is ever
// seen here.
type Transformation interface{ isTransformation() }

// NewTable allocates a table, local or global depending on TableID.
type NewTable struct {
	TableID core.TableId
	Rows    int
	Cols    int
}

// TableAlias names a table id with a symbolic name, resolvable later by
// any transformation that references it by alias rather than by id.
type TableAlias struct {
	TableID core.TableId
	Alias   uint64
}

// TableReference creates a 1x1 local table holding a Reference value that
// points at Reference (a Global id), queuing the referenced global's
// allocation alongside it.
type TableReference struct {
	TableID   core.TableId
	Reference core.TableId
}

// ColumnAlias names a column by index.
type ColumnAlias struct {
	TableID     core.TableId
	ColumnIx    int
	ColumnAlias uint64
}

// RowAlias names a row by index.
type RowAlias struct {
	TableID core.TableId
	RowIx   int
	RowAlias uint64
}

// Constant lowers a literal value, applying any unit conversion named by
// Unit.
type Constant struct {
	TableID core.TableId
	Value   core.Value
	Unit    uint64
}

// Set is the low-level write-a-value-into-a-cell step backing
// `Change::Set` in the change queue. It carries the value directly,
// since nothing else in the transformation list supplies it.
type Set struct {
	TableID core.TableId
	Row     core.TableIndex
	Column  core.TableIndex
	Value   core.Value
}

// Whenever guards the remainder of the plan: it only proceeds past this
// step if at least one cell among Registers changed since the block's
// last trigger.
type Whenever struct {
	TableID   core.TableId
	Row       core.TableIndex
	Column    core.TableIndex
	Registers []core.Register
}

// FunctionArg binds one named argument of a Function transformation to a
// register.
type FunctionArg struct {
	Name uint64
	Reg  core.Register
}

// Function invokes a named operation (one of the well-known table/*
// hashes, or a caller-registered one) against its bound arguments,
// writing into Out.
type Function struct {
	Name uint64
	Args []FunctionArg
	Out  core.Register
}

// Select walks a chain of (row, col) index steps, following any scalar
// Reference it encounters along the way, and writes the final selection
// into Out.
type Select struct {
	TableID core.TableId
	Indices []core.Register
	Out     core.TableId
}

func (NewTable) isTransformation()       {}
func (TableAlias) isTransformation()     {}
func (TableReference) isTransformation() {}
func (ColumnAlias) isTransformation()    {}
func (RowAlias) isTransformation()       {}
func (Constant) isTransformation()       {}
func (Set) isTransformation()            {}
func (Whenever) isTransformation()       {}
func (Function) isTransformation()       {}
func (Select) isTransformation()         {}
