package block

import (
	"fmt"

	"mech/internal/compile"
	"mech/internal/core"
	"mech/internal/iterate"
	"mech/internal/store"
)

// State is a Block's position in its lifecycle.
type State uint8

const (
	StateNew State = iota
	StateReady
	StateDone
	StateUnsatisfied
	StateError
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "New"
	case StateReady:
		return "Ready"
	case StateDone:
		return "Done"
	case StateUnsatisfied:
		return "Unsatisfied"
	case StateError:
		return "Error"
	case StateDisabled:
		return "Disabled"
	default:
		return "?"
	}
}

// Function is the host-provided callable behind a function-name hash,
// the sole extension point for new operations. It receives the same
// bound iterators a compiled Executor would.
type Function func(resolver iterate.Resolver, args []*iterate.ValueIterator, argNames []uint64, out *iterate.ValueIterator) error

// Block is the unit of scheduling: it owns local tables, a
// compiled Plan, its register sets, and walks through
// New → Ready → Done/Unsatisfied/Error/Disabled.
type Block struct {
	id core.TableId

	scope *Scope
	plan  compile.Plan

	transformations []compile.Transformation

	state State

	ready                   map[core.Register]struct{}
	outputDependenciesReady map[core.Register]struct{}

	errors []*core.Error

	// triggered is the monotonically increasing firing count. The
	// per-register "observed at" ticks in observed, used by Whenever's
	// change detection, are taken from the database's global tick instead.
	triggered uint64
	observed  map[core.Register]uint64

	// argIterators caches bound ValueIterators per FunctionStep/SelectStep,
	// so solve does not reallocate them every firing.
	argIterators map[int][]*iterate.ValueIterator
	outIterators map[int]*iterate.ValueIterator

	processedOnce bool
}

// New constructs a Block identified by id against the shared database.
// id is only used for diagnostics; a Block has no independent identity in
// the register/table model beyond the tables its transformations create.
func New(id core.TableId, db *store.Database) *Block {
	return &Block{
		id:                      id,
		scope:                   newScope(db),
		state:                   StateNew,
		ready:                   make(map[core.Register]struct{}),
		outputDependenciesReady: make(map[core.Register]struct{}),
		observed:                make(map[core.Register]uint64),
		argIterators:            make(map[int][]*iterate.ValueIterator),
		outIterators:            make(map[int]*iterate.ValueIterator),
	}
}

// ID returns the block's diagnostic identity.
func (b *Block) ID() core.TableId { return b.id }

// State returns the block's current lifecycle state.
func (b *Block) State() State { return b.state }

// Errors returns every error accumulated by this block across its
// lifetime, not just the most recent solve's outcome.
func (b *Block) Errors() []*core.Error { return b.errors }

// Triggered returns the number of times this block has successfully run
// solve to completion.
func (b *Block) Triggered() uint64 { return b.triggered }

// Ready returns the block's current ready register set, for
// introspection and readiness tests.
func (b *Block) Ready() map[core.Register]struct{} { return b.ready }

// Input returns the block's declared input register set.
func (b *Block) Input() map[core.Register]struct{} { return b.scope.input }

// Output returns the block's declared output register set.
func (b *Block) Output() map[core.Register]struct{} { return b.scope.output }

// OutputDependencies returns the block's declared output-dependency set.
func (b *Block) OutputDependencies() map[core.Register]struct{} { return b.scope.outputDependencies }

// Disable moves the block to StateDisabled; it is skipped by the
// scheduler in all subsequent ticks until Enable is called.
func (b *Block) Disable() { b.state = StateDisabled }

// Enable moves a Disabled block back to New so it re-enters the normal
// readiness lifecycle on the next scheduler pass.
func (b *Block) Enable() {
	if b.state == StateDisabled {
		b.state = StateNew
	}
}

// RegisterTransformations compiles transforms into this block's Plan,
// populating its register sets, local tables, and pending change queue
// as a side effect of compilation. It must be called exactly
// once, before the block enters the scheduling pool.
func (b *Block) RegisterTransformations(transforms []compile.Transformation) error {
	b.transformations = transforms
	plan, err := compile.Compile(transforms, b.scope)
	if err != nil {
		b.fail(err)
		return err
	}
	b.plan = plan
	// A register over a block-local table is fully determined by this
	// same compile step: nothing outside the block can ever write
	// it, so nothing outside the block can ever mark it ready. It is
	// satisfied the moment compilation succeeds.
	for r := range b.scope.input {
		if r.Table.IsLocal() {
			b.MarkReady(r)
		}
	}
	// An output dependency on a table this same block creates is likewise
	// self-satisfying: the table's prior state is exactly what this
	// block's own NewTable established. Dependencies on tables owned
	// elsewhere stay unsatisfied until their owner's first write wakes us.
	created := make(map[core.TableId]struct{})
	for _, tr := range transforms {
		if nt, ok := tr.(compile.NewTable); ok {
			created[nt.TableID] = struct{}{}
		}
	}
	for r := range b.scope.outputDependencies {
		if _, ok := created[r.Table]; ok || r.Table.IsLocal() {
			b.outputDependenciesReady[r] = struct{}{}
		}
	}
	return nil
}

// GenID fingerprints the block's transformation list with a stable hash,
// used for deduplication of identical blocks.
func (b *Block) GenID() uint64 {
	var h uint64 = fnvOffset
	for _, tr := range b.transformations {
		h = core.HashString(fmt.Sprintf("%T:%+v", tr, tr)) ^ (h * fnvPrime)
	}
	return h
}

const (
	fnvOffset = 1469598103934665603
	fnvPrime  = 1099511628211
)

// ProcessChanges drains the block's pending change queue into a single
// Transaction and submits it to the database.
// Called once after compile-time registration, and again after every
// successful solve.
func (b *Block) ProcessChanges(db *store.Database) error {
	if len(b.scope.changes) == 0 {
		b.processedOnce = true
		return nil
	}
	txn := store.Transaction{Changes: b.scope.changes}
	if err := db.ProcessTransaction(txn); err != nil {
		return err
	}
	b.scope.changes = nil
	b.processedOnce = true
	return nil
}

// IsReady reports whether the block may fire: input ⊆ ready,
// output_dependencies ⊆ output_dependencies_ready, errors empty, and
// state neither Error nor Disabled. As a side effect, it promotes a New
// or Unsatisfied block to Ready when the clauses hold, or to Error when
// errors is non-empty.
func (b *Block) IsReady() bool {
	if len(b.errors) > 0 {
		b.state = StateError
		return false
	}
	if b.state == StateError || b.state == StateDisabled {
		return false
	}
	for r := range b.scope.input {
		if _, ok := b.ready[r]; !ok {
			if b.state == StateReady {
				b.state = StateUnsatisfied
			}
			return false
		}
	}
	for r := range b.scope.outputDependencies {
		if _, ok := b.outputDependenciesReady[r]; !ok {
			if b.state == StateReady {
				b.state = StateUnsatisfied
			}
			return false
		}
	}
	if b.state == StateNew || b.state == StateUnsatisfied || b.state == StateDone {
		b.state = StateReady
	}
	return true
}

// MarkReady adds r (and every register its alias equivalence class
// expands to) to the block's ready set, as the scheduler does after a
// dependency fires. Only registers the block actually
// declares as input or output dependency are recorded, so the ready set
// stays a subset of input no matter what the scheduler broadcasts.
func (b *Block) MarkReady(r core.Register) {
	for _, expanded := range b.scope.expand(r) {
		if _, ok := b.scope.input[expanded]; ok {
			b.ready[expanded] = struct{}{}
		}
		if _, ok := b.scope.outputDependencies[expanded]; ok {
			b.outputDependenciesReady[expanded] = struct{}{}
		}
	}
}

// RegisterAliasRoots exposes the register-alias equivalence map so the
// scheduler can expand a fired output register before testing dependents'
// inputs.
func (b *Block) RegisterAliasRoots() map[core.Register]core.Register { return b.scope.registerAliases }

func (b *Block) fail(err error) {
	if merr, ok := err.(*core.Error); ok {
		b.errors = append(b.errors, merr)
	} else {
		b.errors = append(b.errors, core.GenericError("%s", err.Error()))
	}
	b.state = StateError
}

// ResolveIterators pre-binds ValueIterators for every Function/Select
// step in the plan, if the block is Ready, so solve does not reallocate
// them every firing. It is safe to call
// repeatedly; it rebuilds the cache each time since register contents may
// have been resized since the last call.
func (b *Block) ResolveIterators() error {
	if b.state != StateReady {
		return nil
	}
	for i, step := range b.plan {
		switch s := step.(type) {
		case compile.FunctionStep:
			args := make([]*iterate.ValueIterator, len(s.Args))
			for j, a := range s.Args {
				vi, err := iterate.New(a.Reg.Table, a.Reg.Row, a.Reg.Column, b.scope, b.observed[a.Reg])
				if err != nil {
					return err
				}
				args[j] = vi
			}
			out, err := iterate.New(s.Out.Table, s.Out.Row, s.Out.Column, b.scope, 0)
			if err != nil {
				return err
			}
			b.argIterators[i] = args
			b.outIterators[i] = out
		case compile.SelectStep:
			out, err := iterate.New(s.Out, core.All(), core.All(), b.scope, 0)
			if err != nil {
				return err
			}
			b.outIterators[i] = out
		}
	}
	return nil
}

// Solve walks the compiled Plan in order:
//
//   - WheneverStep materializes the "any cell among Watch changed since
//     last trigger" guard; if nothing changed, solve breaks out of the
//     plan immediately (the block fired on an unrelated change). If
//     something did change, the corresponding input registers are
//     cleared from ready so the next tick must re-observe them.
//   - SelectStep walks its index chain, following intermediate scalar
//     References, and writes the final selection into Out.
//   - FunctionStep invokes its compiled Executor if present, or looks
//     `functions` up by name; table/split is the one well-known name
//     resolved inline when absent from both.
//
// On success the block moves to Done and its triggered counter advances;
// on any error it moves to Error, accumulates the error, and its pending
// changes are not committed for this tick.
func (b *Block) Solve(functions map[uint64]Function) error {
	if err := b.ResolveIterators(); err != nil {
		b.fail(err)
		return err
	}
	for i, step := range b.plan {
		switch s := step.(type) {
		case compile.WheneverStep:
			changed, err := b.materializeGuard(s)
			if err != nil {
				b.fail(err)
				return err
			}
			if !changed {
				return nil
			}
			for _, r := range s.Watch {
				b.observed[r] = b.scope.Tick()
				for _, expanded := range b.scope.expand(r) {
					delete(b.ready, expanded)
				}
			}

		case compile.SelectStep:
			final, err := compile.ResolveChain(b.scope, s.Start, s.Indices)
			if err != nil {
				b.fail(err)
				return err
			}
			out := b.outIterators[i]
			if out == nil {
				out, err = iterate.New(s.Out, core.All(), core.All(), b.scope, 0)
				if err != nil {
					b.fail(err)
					return err
				}
			}
			if err := compile.CopyAccess(b.scope, final, out); err != nil {
				b.fail(err)
				return err
			}

		case compile.FunctionStep:
			args := b.argIterators[i]
			out := b.outIterators[i]
			names := make([]uint64, len(s.Args))
			for j, a := range s.Args {
				names[j] = a.Name
			}
			if s.Exec != nil {
				if err := s.Exec(b.scope, args, names, out); err != nil {
					b.fail(err)
					return err
				}
				continue
			}
			fn, ok := functions[s.Name]
			if !ok && s.Name == compile.HashTableSplit {
				if err := b.solveSplit(args, out); err != nil {
					b.fail(err)
					return err
				}
				continue
			}
			if !ok {
				b.fail(core.MissingFunction(s.Name))
				return b.errors[len(b.errors)-1]
			}
			if err := fn(b.scope, args, names, out); err != nil {
				b.fail(err)
				return err
			}

		default:
			b.fail(core.GenericError("block: unhandled plan step %T", step))
			return b.errors[len(b.errors)-1]
		}
	}
	b.triggered++
	b.state = StateDone
	return nil
}

// materializeGuard fills the Whenever step's local "~" table with one
// boolean row per watched cell, true iff that cell changed since the
// block last observed its register (per-cell version counters, O(1)
// per cell). The guard trips open if any one
// cell is true, regardless of which watched column it came from.
func (b *Block) materializeGuard(s compile.WheneverStep) (bool, error) {
	guard, err := b.scope.Table(s.Guard)
	if err != nil {
		return false, err
	}
	var flags []bool
	for _, r := range s.Watch {
		vi, err := iterate.New(r.Table, r.Row, r.Column, b.scope, b.observed[r])
		if err != nil {
			return false, err
		}
		for _, cell := range vi.Enumerate() {
			flags = append(flags, cell.Changed)
		}
	}
	guard.Resize(len(flags), 1)
	guard.SetColKind(0, core.KindBool)
	any := false
	for i, f := range flags {
		guard.Set(i+1, 1, core.FromBool(f), b.scope.Tick())
		if f {
			any = true
		}
	}
	return any, nil
}

// solveSplit implements table/split inline, the one function name the
// compiler deliberately leaves unresolved at compile time: reshape
// a matrix of rows into a column of Reference values, one per row, each
// pointing at a freshly allocated global 1×cols table.
func (b *Block) solveSplit(args []*iterate.ValueIterator, out *iterate.ValueIterator) error {
	if len(args) != 1 {
		return &core.Error{Kind: core.ErrIncorrectNumberOfArguments, Expected: 1, Found: len(args)}
	}
	src := args[0]
	rows := src.Rows()
	cols := src.Columns()
	if err := out.Resize(rows, 1); err != nil {
		return err
	}
	out.Table().SetColKind(0, core.KindReference)
	for r := 1; r <= rows; r++ {
		childID := core.GlobalTableId(core.HashString(fmt.Sprintf("%s/split/%d/%d", src.ID(), b.triggered, r)))
		b.scope.QueueChange(store.NewTableChange{TableID: childID.Raw(), Rows: 1, Cols: cols})
		cells := make([]store.ValueCell, cols)
		for c := 1; c <= cols; c++ {
			v, _, _ := src.Get(r, c)
			cells[c-1] = store.ValueCell{Row: 1, Col: c, Value: v}
		}
		b.scope.QueueChange(store.SetChange{TableID: childID.Raw(), Values: cells})
		out.SetUnchecked(r, 1, core.FromReference(childID))
	}
	return nil
}
