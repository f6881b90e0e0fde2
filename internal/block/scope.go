// Package block implements the Block lifecycle: the unit of scheduling
// that owns local tables, a compiled Plan, its register sets, and the
// state machine New → Ready → Done/Unsatisfied/Error/Disabled.
package block

import (
	"fmt"

	"mech/internal/core"
	"mech/internal/store"
)

// Scope is a block's private view of the world: its local tables and
// aliases, plus a handle to the shared Database for Global access. It
// satisfies iterate.Resolver and compile.Allocator structurally —
// neither package imports this one. A block never holds a pointer into
// another block's local store, only into its own and the database's.
type Scope struct {
	db *store.Database

	local map[uint64]*core.Table

	localColAliasToIndex map[uint64]map[uint64]int
	localColIndexToAlias map[uint64]map[int]uint64
	localRowAliasToIndex map[uint64]map[uint64]int
	localRowIndexToAlias map[uint64]map[int]uint64

	tableAliases map[uint64]core.TableId

	input              map[core.Register]struct{}
	output             map[core.Register]struct{}
	outputDependencies map[core.Register]struct{}
	registerAliases    map[core.Register]core.Register

	changes []store.Change
}

func newScope(db *store.Database) *Scope {
	return &Scope{
		db:                    db,
		local:                 make(map[uint64]*core.Table),
		localColAliasToIndex:  make(map[uint64]map[uint64]int),
		localColIndexToAlias:  make(map[uint64]map[int]uint64),
		localRowAliasToIndex:  make(map[uint64]map[uint64]int),
		localRowIndexToAlias:  make(map[uint64]map[int]uint64),
		tableAliases:          make(map[uint64]core.TableId),
		input:                 make(map[core.Register]struct{}),
		output:                make(map[core.Register]struct{}),
		outputDependencies:    make(map[core.Register]struct{}),
		registerAliases:       make(map[core.Register]core.Register),
	}
}

// Tick satisfies iterate.Resolver, delegating to the shared database's
// global change counter (local tables don't need their own clock: a
// block observes its own writes synchronously within one solve call).
func (s *Scope) Tick() uint64 { return s.db.Tick() }

// Table resolves id whether Local or Global. A not-yet-created Global
// table is reported as PendingTable, not MissingTable, matching
// compile.Allocator's documented contract: the compiler does not retry,
// the scheduler may re-attempt this block once the table appears.
func (s *Scope) Table(id core.TableId) (*core.Table, error) {
	if id.IsLocal() {
		t, ok := s.local[id.Raw()]
		if !ok {
			return nil, core.GenericError("block: unknown local table %s", id)
		}
		return t, nil
	}
	t, err := s.db.Table(id)
	if err != nil {
		return nil, core.PendingTableErr(id)
	}
	return t, nil
}

// NewLocalTable allocates and registers a fresh block-local table.
func (s *Scope) NewLocalTable(id core.TableId, rows, cols int) *core.Table {
	t := core.NewTable(id, rows, cols)
	s.local[id.Raw()] = t
	return t
}

// QueueChange appends ch to the block's pending change queue, drained by
// Block.ProcessChanges.
func (s *Scope) QueueChange(ch store.Change) { s.changes = append(s.changes, ch) }

func (s *Scope) SetLocalColumnAlias(id core.TableId, ix int, alias uint64) {
	if s.localColAliasToIndex[id.Raw()] == nil {
		s.localColAliasToIndex[id.Raw()] = make(map[uint64]int)
		s.localColIndexToAlias[id.Raw()] = make(map[int]uint64)
	}
	s.localColAliasToIndex[id.Raw()][alias] = ix
	s.localColIndexToAlias[id.Raw()][ix] = alias
	if t, ok := s.local[id.Raw()]; ok {
		t.ColMap[alias] = ix
	}
}

func (s *Scope) SetLocalRowAlias(id core.TableId, ix int, alias uint64) {
	if s.localRowAliasToIndex[id.Raw()] == nil {
		s.localRowAliasToIndex[id.Raw()] = make(map[uint64]int)
		s.localRowIndexToAlias[id.Raw()] = make(map[int]uint64)
	}
	s.localRowAliasToIndex[id.Raw()][alias] = ix
	s.localRowIndexToAlias[id.Raw()][ix] = alias
	if t, ok := s.local[id.Raw()]; ok {
		t.RowMap[alias] = ix
	}
}

// ColumnAlias satisfies iterate.Resolver, checking local aliases first
// and falling back to the database for Global tables.
func (s *Scope) ColumnAlias(id core.TableId, alias uint64) (int, bool) {
	if id.IsLocal() {
		m, ok := s.localColAliasToIndex[id.Raw()]
		if !ok {
			return 0, false
		}
		ix, ok := m[alias]
		return ix, ok
	}
	return s.db.ColumnAlias(id, alias)
}

// RowAlias mirrors ColumnAlias for the row axis.
func (s *Scope) RowAlias(id core.TableId, alias uint64) (int, bool) {
	if id.IsLocal() {
		m, ok := s.localRowAliasToIndex[id.Raw()]
		if !ok {
			return 0, false
		}
		ix, ok := m[alias]
		return ix, ok
	}
	return s.db.RowAlias(id, alias)
}

func (s *Scope) RegisterTableAlias(name uint64, id core.TableId) { s.tableAliases[name] = id }

func (s *Scope) ResolveTableAlias(name uint64) (core.TableId, bool) {
	id, ok := s.tableAliases[name]
	return id, ok
}

// AddInput declares r as a read dependency. A subregion register is
// also collapsed onto its table's All/All root in the alias map, so a
// whole-table write by another block wakes a dependent registered on
// any subregion of it.
func (s *Scope) AddInput(r core.Register) {
	s.input[r] = struct{}{}
	if root := core.AllRegister(r.Table); r != root {
		s.registerAliases[r] = root
	}
}
func (s *Scope) AddOutput(r core.Register)              { s.output[r] = struct{}{} }
func (s *Scope) AddOutputDependency(r core.Register)    { s.outputDependencies[r] = struct{}{} }
func (s *Scope) AddRegisterAlias(alias, root core.Register) { s.registerAliases[alias] = root }

// expand returns r and, when r has a registered alias, the register it
// aliases to as well — so a write to the All/All root also wakes a
// dependent registered on a column alias, and vice versa.
func (s *Scope) expand(r core.Register) []core.Register {
	out := []core.Register{r}
	if root, ok := s.registerAliases[r]; ok {
		out = append(out, root)
	}
	for alias, root := range s.registerAliases {
		if root == r {
			out = append(out, alias)
		}
	}
	return out
}

func (s *Scope) String() string {
	return fmt.Sprintf("Scope(%d local tables, %d pending changes)", len(s.local), len(s.changes))
}
