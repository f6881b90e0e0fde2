package block_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mech/internal/block"
	"mech/internal/compile"
	"mech/internal/core"
	"mech/internal/iterate"
	"mech/internal/store"
)

func incrementFn(resolver iterate.Resolver, args []*iterate.ValueIterator, names []uint64, out *iterate.ValueIterator) error {
	v, _, _ := args[0].Get(1, 1)
	f, _ := v.AsFloat64Generic()
	if err := out.Resize(1, 1); err != nil {
		return err
	}
	out.Table().SetColKind(0, core.KindF64)
	out.SetUnchecked(1, 1, core.FromF64(f+1))
	return nil
}

func newWheneverBlock(t *testing.T) (*block.Block, *store.Database, core.TableId, core.TableId, core.Register) {
	t.Helper()
	db := store.New()
	x := core.GlobalTableId(core.HashString("x"))
	y := core.GlobalTableId(core.HashString("y"))
	xReg := core.Register{Table: x, Row: core.Index(1), Column: core.Index(1)}

	b := block.New(core.GlobalTableId(core.HashString("block-under-test")), db)
	transforms := []compile.Transformation{
		compile.NewTable{TableID: x, Rows: 1, Cols: 1},
		compile.Constant{TableID: x, Value: core.FromF64(0)},
		compile.NewTable{TableID: y, Rows: 1, Cols: 1},
		compile.Whenever{TableID: x, Row: core.Index(1), Column: core.Index(1), Registers: []core.Register{xReg}},
		compile.Function{
			Name: core.HashString("test/increment"),
			Args: []compile.FunctionArg{{Name: core.HashString("a"), Reg: xReg}},
			Out:  core.AllRegister(y),
		},
	}
	require.NoError(t, b.RegisterTransformations(transforms))
	require.NoError(t, b.ProcessChanges(db))
	return b, db, x, y, xReg
}

// Every register in block.ready must also be declared in block.input.
func TestReadyRegistersAreDeclaredInputs(t *testing.T) {
	b, _, _, _, xReg := newWheneverBlock(t)

	require.False(t, b.IsReady(), "block must not be ready before its one input is marked ready")

	b.MarkReady(xReg)
	for r := range b.Ready() {
		_, isInput := b.Input()[r]
		require.True(t, isInput, "ready register %s must be declared as input", r)
	}
	require.True(t, b.IsReady())
}

// IsReady holds exactly when the register containment clauses hold and
// the block is neither errored nor disabled.
func TestIsReadyMatchesLifecycleClauses(t *testing.T) {
	b, _, _, _, xReg := newWheneverBlock(t)

	require.False(t, b.IsReady())
	b.MarkReady(xReg)
	require.True(t, b.IsReady())

	b.Disable()
	require.False(t, b.IsReady(), "a Disabled block is never ready regardless of register containment")
}

// A Whenever guard causes downstream writes to happen exactly once
// across two ticks where the watched register is unchanged between them.
func TestWheneverFiresOnceOnUnchangedInput(t *testing.T) {
	b, db, _, y, xReg := newWheneverBlock(t)
	functions := map[uint64]block.Function{core.HashString("test/increment"): incrementFn}

	b.MarkReady(xReg)
	require.True(t, b.IsReady())
	require.NoError(t, b.Solve(functions))
	require.NoError(t, b.ProcessChanges(db))
	require.Equal(t, block.StateDone, b.State())

	yTable, err := db.Table(y)
	require.NoError(t, err)
	v := yTable.Get(1, 1)
	f, ok := v.AsFloat64Generic()
	require.True(t, ok)
	require.Equal(t, 1.0, f)
	require.EqualValues(t, 1, b.Triggered())

	// Second tick: x did not change since the block last observed it, so
	// the Whenever guard breaks out of the plan and y is not rewritten,
	// even though the register containment check is satisfied again.
	b.MarkReady(xReg)
	require.True(t, b.IsReady())
	require.NoError(t, b.Solve(functions))
	require.EqualValues(t, 1, b.Triggered(), "Whenever must suppress the second firing since x is unchanged")

	yTable, err = db.Table(y)
	require.NoError(t, err)
	f, ok = yTable.Get(1, 1).AsFloat64Generic()
	require.True(t, ok)
	require.Equal(t, 1.0, f, "y must not be rewritten on the unchanged second tick")
}

// Solving a block whose plan references an unregistered function name
// transitions it to Error and records MissingFunction, without touching
// any other block's readiness.
func TestSolveMissingFunction(t *testing.T) {
	db := store.New()
	x := core.GlobalTableId(core.HashString("missing-x"))
	y := core.GlobalTableId(core.HashString("missing-y"))
	missing := core.HashString("nope")

	b := block.New(core.GlobalTableId(core.HashString("missing-fn-block")), db)
	transforms := []compile.Transformation{
		compile.NewTable{TableID: x, Rows: 1, Cols: 1},
		compile.NewTable{TableID: y, Rows: 1, Cols: 1},
		compile.Function{
			Name: missing,
			Args: []compile.FunctionArg{{Name: core.HashString("a"), Reg: core.AllRegister(x)}},
			Out:  core.AllRegister(y),
		},
	}
	require.NoError(t, b.RegisterTransformations(transforms))
	require.NoError(t, b.ProcessChanges(db))
	b.MarkReady(core.AllRegister(x))
	require.True(t, b.IsReady())

	err := b.Solve(nil)
	require.Error(t, err)
	require.Equal(t, block.StateError, b.State())
	require.Len(t, b.Errors(), 1)
	require.Equal(t, core.ErrMissingFunction, b.Errors()[0].Kind)
	require.Equal(t, missing, b.Errors()[0].Name)

	require.False(t, b.IsReady(), "an Error block is never ready again")
}

// table/split: a 2x3 matrix splits into a 2x1 Reference
// column pointing at two freshly allocated 1x3 tables.
func TestSolveTableSplit(t *testing.T) {
	db := store.New()
	src := core.GlobalTableId(core.HashString("split-src"))
	out := core.GlobalTableId(core.HashString("split-out"))

	b := block.New(core.GlobalTableId(core.HashString("split-block")), db)
	transforms := []compile.Transformation{
		compile.NewTable{TableID: src, Rows: 2, Cols: 3},
		compile.NewTable{TableID: out, Rows: 0, Cols: 0},
		compile.Function{
			Name: compile.HashTableSplit,
			Args: []compile.FunctionArg{{Name: core.HashString("a"), Reg: core.AllRegister(src)}},
			Out:  core.AllRegister(out),
		},
	}
	require.NoError(t, b.RegisterTransformations(transforms))
	require.NoError(t, b.ProcessChanges(db))

	srcTable, err := db.Table(src)
	require.NoError(t, err)
	srcTable.SetKind(core.KindU8)
	vals := [2][3]uint8{{1, 2, 3}, {4, 5, 6}}
	for r := 1; r <= 2; r++ {
		for c := 1; c <= 3; c++ {
			srcTable.Set(r, c, core.FromU8(vals[r-1][c-1]), 0)
		}
	}

	b.MarkReady(core.AllRegister(src))
	require.True(t, b.IsReady())
	require.NoError(t, b.Solve(nil))
	require.NoError(t, b.ProcessChanges(db))

	outTable, err := db.Table(out)
	require.NoError(t, err)
	require.Equal(t, 2, outTable.Rows)
	require.Equal(t, 1, outTable.Cols)

	for r := 1; r <= 2; r++ {
		ref, ok := outTable.Get(r, 1).AsReference()
		require.True(t, ok)
		child, err := db.Table(ref)
		require.NoError(t, err)
		require.Equal(t, 1, child.Rows)
		require.Equal(t, 3, child.Cols)
		for c := 1; c <= 3; c++ {
			v := child.Get(1, c)
			u, ok := v.AsU64()
			require.True(t, ok)
			require.EqualValues(t, vals[r-1][c-1], u)
		}
	}
}
