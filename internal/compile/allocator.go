package compile

import (
	"mech/internal/core"
	"mech/internal/store"
)

// Allocator is everything the compiler needs from the owning block to
// turn a Transformation list into register-set mutations, change-queue
// pushes, and local-table allocations. internal/block's Scope satisfies this
// structurally, the same way it satisfies iterate.Resolver — compile
// never imports block.
type Allocator interface {
	// Table resolves id to its current *core.Table, whether Local or
	// Global. For a not-yet-created Global id it returns a PendingTable
	// error: compile does not retry, the scheduler may re-attempt
	// this block once the table appears.
	Table(id core.TableId) (*core.Table, error)

	// NewLocalTable allocates a fresh block-local table.
	NewLocalTable(id core.TableId, rows, cols int) *core.Table

	// QueueChange appends a Change to the block's pending change queue,
	// later drained into one Transaction by process_changes.
	QueueChange(ch store.Change)

	// SetLocalColumnAlias/SetLocalRowAlias record an alias directly on a
	// Local table (Global aliases instead go through QueueChange).
	SetLocalColumnAlias(id core.TableId, ix int, alias uint64)
	SetLocalRowAlias(id core.TableId, ix int, alias uint64)

	// RegisterTableAlias/ResolveTableAlias implement the TableAlias
	// transformation's symbol table: a name that resolves to a TableId.
	RegisterTableAlias(name uint64, id core.TableId)
	ResolveTableAlias(name uint64) (core.TableId, bool)

	// AddInput/AddOutput/AddOutputDependency grow the block's register
	// sets.
	AddInput(r core.Register)
	AddOutput(r core.Register)
	AddOutputDependency(r core.Register)

	// AddRegisterAlias records that alias and root are the same
	// dependency for scheduling purposes.
	AddRegisterAlias(alias, root core.Register)
}
