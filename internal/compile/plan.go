package compile

import (
	"mech/internal/core"
	"mech/internal/iterate"
)

// Plan is the compiled, ordered sequence of Steps a block walks every
// time it fires.
type Plan []Step

// Step is one entry in a Plan: WheneverStep, SelectStep, or FunctionStep
//.
type Step interface{ isStep() }

// WheneverStep guards the remainder of the plan. Watch lists the
// registers observed for change; block.solve is responsible for building
// the local boolean "~" table and breaking out of the plan when none of
// them changed since the block's last trigger.
type WheneverStep struct {
	Watch []core.Register

	// Guard is the block-local 1-column boolean "~" table the block
	// rebuilds every firing, one row per watched cell.
	Guard core.TableId
}

// SelectStep walks Indices left to right, following any intermediate
// scalar Reference, and writes the final selection into Out.
type SelectStep struct {
	Start   core.TableId
	Indices []core.Register
	Out     core.TableId
}

// FunctionStep invokes a named function against its bound arguments.
// When Exec is non-nil, the compiler has already resolved which
// primitive(s) to run based on compile-time shape inspection (the
// table/* functions with stable shape dispatch: horizontal-concatenate,
// vertical-concatenate, append, define, set, range, size, flatten,
// followed-by, copy). When Exec is nil, resolution is deferred to
// block.solve's runtime function registry, with table/split's well-known
// hash as the one explicit inline fallback.
type FunctionStep struct {
	Name     uint64
	Args     []FunctionArg
	Out      core.Register
	Exec     Executor
}

// Executor runs a compiled FunctionStep against already-bound iterators:
// args (in argument order), their parallel argument-name hashes, and out.
type Executor func(resolver iterate.Resolver, args []*iterate.ValueIterator, argNames []uint64, out *iterate.ValueIterator) error

func (WheneverStep) isStep() {}
func (SelectStep) isStep()   {}
func (FunctionStep) isStep() {}

// Well-known function-name hashes recognized at Function-lowering time
//. HashTableSplit is exported so block.solve can recognize the one
// function deliberately left unresolved at compile time.
var (
	HashHorizontalConcatenate = core.HashString("table/horizontal-concatenate")
	HashVerticalConcatenate   = core.HashString("table/vertical-concatenate")
	HashAppend                = core.HashString("table/append")
	HashDefine                = core.HashString("table/define")
	HashSet                   = core.HashString("table/set")
	HashTableSplit            = core.HashString("table/split")
	HashFlatten               = core.HashString("table/flatten")
	HashRange                 = core.HashString("table/range")
	HashSize                  = core.HashString("table/size")
	HashFollowedBy            = core.HashString("table/followed-by")
	HashCopy                  = core.HashString("table/copy")
)

// ResolveChain walks indices left to right starting at start, following
// any intermediate scalar Reference, and returns the ValueIterator bound
// to the final selection. Shared by table/define's Function lowering and
// SelectStep's execution, since both describe the same walk.
func ResolveChain(resolver iterate.Resolver, start core.TableId, indices []core.Register) (*iterate.ValueIterator, error) {
	if len(indices) == 0 {
		return nil, core.GenericError("index chain must have at least one step")
	}
	id := start
	var cur *iterate.ValueIterator
	for i, reg := range indices {
		vi, err := iterate.New(id, reg.Row, reg.Column, resolver, 0)
		if err != nil {
			return nil, err
		}
		cur = vi
		if i == len(indices)-1 {
			break
		}
		if vi.Elements() != 1 {
			return nil, core.GenericError("intermediate selection in an index chain must be scalar, got %s", vi.Shape())
		}
		ref, ok := vi.AsReference(1, 1)
		if !ok {
			return nil, core.GenericError("intermediate selection in an index chain must be a Reference")
		}
		id = ref
	}
	return cur, nil
}
