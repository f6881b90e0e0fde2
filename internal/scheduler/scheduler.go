// Package scheduler drives the runtime's fixed-point firing loop.
// Scheduler watches register readiness across a set of registered blocks
// and advances every block whose inputs are satisfied until no block
// becomes ready.
package scheduler

import (
	"mech/internal/block"
	"mech/internal/core"
	"mech/internal/store"
)

// Scheduler wraps a *store.Database and the set of blocks registered
// against it, driving the cooperative single-threaded firing loop.
type Scheduler struct {
	db        *store.Database
	blocks    []*block.Block
	byID      map[core.TableId]*block.Block
	functions map[uint64]block.Function

	// dirty tracks which blocks have unconsumed readiness since their
	// last firing — an edge-triggered layer on top of Block.IsReady's
	// level-triggered check, so the fixed-point loop in Run terminates
	// instead of re-firing an already-Done, input-less block forever.
	// Block.IsReady itself stays a pure function of register
	// containment; this bookkeeping lives here, one layer up.
	dirty map[*block.Block]bool
}

// New constructs a Scheduler over db. functions is the host-provided
// registry, the sole extension point for new operations.
func New(db *store.Database, functions map[uint64]block.Function) *Scheduler {
	if functions == nil {
		functions = make(map[uint64]block.Function)
	}
	return &Scheduler{
		db:        db,
		byID:      make(map[core.TableId]*block.Block),
		functions: functions,
		dirty:     make(map[*block.Block]bool),
	}
}

// Register adds b to the scheduler's pool, draining its compile-time
// change queue into the database once before it can ever fire, and marks
// it dirty so it gets at least one firing attempt on the next Tick.
func (s *Scheduler) Register(b *block.Block) error {
	if err := b.ProcessChanges(s.db); err != nil {
		return err
	}
	s.blocks = append(s.blocks, b)
	s.byID[b.ID()] = b
	s.dirty[b] = true
	return nil
}

// Blocks returns every block registered with the scheduler, in
// registration order, for CLI/test introspection.
func (s *Scheduler) Blocks() []*block.Block { return s.blocks }

// Tick runs one fixed-point pass over the blocks in registration order:
// every block still marked dirty and ready fires once, and every other
// block whose input registers the firing block just wrote becomes dirty.
// A woken block later in registration order fires in this same pass; one
// earlier in the order fires on the next Tick. Returns the number of
// blocks that fired this pass.
func (s *Scheduler) Tick() int {
	fired := 0
	for _, b := range s.blocks {
		if !s.dirty[b] {
			continue
		}
		if !b.IsReady() {
			continue
		}
		s.dirty[b] = false
		if err := b.Solve(s.functions); err != nil {
			// Errors do not block other blocks: the block is
			// now in StateError and IsReady will skip it on every
			// subsequent Tick.
			continue
		}
		if b.State() != block.StateDone {
			// A Whenever guard observed no change and broke out of the
			// plan without writing anything; nothing to propagate.
			continue
		}
		fired++
		if err := b.ProcessChanges(s.db); err != nil {
			continue
		}
		s.wake(b)
	}
	return fired
}

// wake propagates b's output registers to every other block that declares
// a matching input or output-dependency register, marking the register
// ready on that dependent and flagging it dirty (see Tick for when it
// then fires). Each
// output register is expanded through the waking dependent's own
// register-alias map so a write to a table's All/All root also wakes a
// dependent registered on a column or row alias, and vice versa.
func (s *Scheduler) wake(fired *block.Block) {
	for out := range fired.Output() {
		for _, dep := range s.blocks {
			if dep == fired {
				continue
			}
			dep.MarkReady(out)
			if s.watches(dep, out) {
				s.dirty[dep] = true
			}
		}
	}
}

// watches reports whether dep declares r, or any register r's alias
// expands to in dep's own equivalence map, as an input or output
// dependency.
func (s *Scheduler) watches(dep *block.Block, r core.Register) bool {
	if _, ok := dep.Input()[r]; ok {
		return true
	}
	if _, ok := dep.OutputDependencies()[r]; ok {
		return true
	}
	for alias, root := range dep.RegisterAliasRoots() {
		if root == r {
			if _, ok := dep.Input()[alias]; ok {
				return true
			}
			if _, ok := dep.OutputDependencies()[alias]; ok {
				return true
			}
		}
		if alias == r {
			if _, ok := dep.Input()[root]; ok {
				return true
			}
			if _, ok := dep.OutputDependencies()[root]; ok {
				return true
			}
		}
	}
	return false
}

// Run repeats Tick until a pass fires no blocks (the fixed point) or
// maxTicks passes have run, whichever comes first. maxTicks <= 0 means
// unbounded — callers driving a cyclic network whose termination rests
// on a Whenever guard observing no change should still pass a sane
// bound in production; config.Scheduler.MaxTicks supplies one for the
// CLI.
func (s *Scheduler) Run(maxTicks int) (ticks int, err error) {
	for maxTicks <= 0 || ticks < maxTicks {
		ticks++
		if fired := s.Tick(); fired == 0 {
			return ticks, nil
		}
	}
	return ticks, nil
}

// Database exposes the underlying store for CLI/test introspection.
func (s *Scheduler) Database() *store.Database { return s.db }
