package compile

import (
	"mech/internal/core"
	"mech/internal/store"
)

// unitDef is a registered unit's fixed scale and quantity domain, keyed
// by its stable string hash.
type unitDef struct {
	scale  int32
	domain uint8
}

// unitTable is the compiler's live unit registry, pre-seeded with the
// two built-in mass units and grown at process startup from the
// [[units]] table a config.Config loads. Global and mutable: it is
// compiler configuration, not per-compile state.
var unitTable = map[uint64]unitDef{
	core.HashString("g"):  {scale: 0, domain: core.DomainMass},
	core.HashString("kg"): {scale: 3, domain: core.DomainMass},
}

// RegisterUnit installs or overwrites a named unit recognized by
// Constant's unit dispatch.
func RegisterUnit(name string, scale int32, domain uint8) {
	unitTable[core.HashString(name)] = unitDef{scale: scale, domain: domain}
}

// applyUnit converts a numeric Constant's raw value into a Quantity per
// the registered unit table; an unrecognized or absent unit passes the
// value through unchanged.
func applyUnit(v core.Value, unit uint64) core.Value {
	f, ok := v.AsFloat64Generic()
	if !ok {
		return v
	}
	def, ok := unitTable[unit]
	if !ok {
		return v
	}
	return core.MakeQuantity(int64(f), def.scale, def.domain)
}

// Compile lowers transforms into a Plan, mutating alloc as it goes:
// table creation, change-queue pushes, alias bookkeeping, and register-
// set growth, exactly as register_transformations describes.
func Compile(transforms []Transformation, alloc Allocator) (Plan, error) {
	var plan Plan
	for _, tr := range transforms {
		switch t := tr.(type) {
		case NewTable:
			if t.TableID.IsLocal() {
				alloc.NewLocalTable(t.TableID, t.Rows, t.Cols)
			} else {
				alloc.QueueChange(store.NewTableChange{TableID: t.TableID.Raw(), Rows: t.Rows, Cols: t.Cols})
			}
			alloc.AddOutput(core.AllRegister(t.TableID))

		case TableAlias:
			alloc.RegisterTableAlias(t.Alias, t.TableID)

		case TableReference:
			holder := alloc.NewLocalTable(t.TableID, 1, 1)
			holder.SetKind(core.KindReference)
			holder.Set(1, 1, core.FromReference(t.Reference), 0)
			alloc.QueueChange(store.NewTableChange{TableID: t.Reference.Raw(), Rows: 0, Cols: 0})
			alloc.AddOutput(core.AllRegister(t.Reference))

		case ColumnAlias:
			if t.TableID.IsLocal() {
				alloc.SetLocalColumnAlias(t.TableID, t.ColumnIx, t.ColumnAlias)
			} else {
				alloc.QueueChange(store.SetColumnAliasChange{TableID: t.TableID.Raw(), ColumnIx: t.ColumnIx, ColumnAlias: t.ColumnAlias})
			}
			all := core.AllRegister(t.TableID)
			named := core.Register{Table: t.TableID, Row: core.All(), Column: core.Alias(t.ColumnAlias)}
			alloc.AddRegisterAlias(named, all)

		case RowAlias:
			if t.TableID.IsLocal() {
				alloc.SetLocalRowAlias(t.TableID, t.RowIx, t.RowAlias)
			} else {
				alloc.QueueChange(store.SetRowAliasChange{TableID: t.TableID.Raw(), RowIx: t.RowIx, RowAlias: t.RowAlias})
			}
			all := core.AllRegister(t.TableID)
			named := core.Register{Table: t.TableID, Row: core.Alias(t.RowAlias), Column: core.All()}
			alloc.AddRegisterAlias(named, all)

		case Constant:
			v := applyUnit(t.Value, t.Unit)
			if t.TableID.IsLocal() {
				// A local table created earlier in this same
				// transformation list already exists in the block's
				// Scope, so it can be written directly.
				tbl, err := alloc.Table(t.TableID)
				if err != nil {
					return nil, err
				}
				tbl.SetKind(v.Kind())
				tbl.Set(1, 1, v, 0)
			} else {
				// A global table created earlier in this list exists
				// only as a queued NewTableChange until the block's
				// compile-time changes are drained into the database
				//; writing it must go through the change
				// queue the same way Set does.
				alloc.QueueChange(store.SetChange{TableID: t.TableID.Raw(), Values: []store.ValueCell{
					{Row: 1, Col: 1, Value: v},
				}})
			}

		case Set:
			tbl, err := alloc.Table(t.TableID)
			if err != nil {
				return nil, err
			}
			row, err := tbl.RowByIndex(t.Row)
			if err != nil {
				return nil, err
			}
			col, err := tbl.ColumnByIndex(t.Column)
			if err != nil {
				return nil, err
			}
			if t.TableID.IsGlobal() {
				alloc.QueueChange(store.SetChange{TableID: t.TableID.Raw(), Values: []store.ValueCell{
					{Row: row + 1, Col: col + 1, Value: t.Value},
				}})
			} else {
				tbl.Set(row+1, col+1, t.Value, 0)
			}
			alloc.AddOutput(core.Register{Table: t.TableID, Row: t.Row, Column: t.Column})

		case Whenever:
			// The "~" guard table: one boolean row per watched cell,
			// rebuilt by the block every firing.
			guard := core.LocalTableId(core.HashString("~"))
			alloc.NewLocalTable(guard, 0, 1)
			plan = append(plan, WheneverStep{Watch: t.Registers, Guard: guard})
			for _, r := range t.Registers {
				alloc.AddInput(r)
			}

		case Select:
			plan = append(plan, SelectStep{Start: t.TableID, Indices: t.Indices, Out: t.Out})
			for _, r := range t.Indices {
				alloc.AddInput(r)
			}
			alloc.AddOutput(core.AllRegister(t.Out))

		case Function:
			step, err := lowerFunction(t)
			if err != nil {
				return nil, err
			}
			plan = append(plan, step)
			for _, a := range t.Args {
				alloc.AddInput(a.Reg)
			}
			alloc.AddOutput(t.Out)
			switch t.Name {
			case HashSet, HashAppend, HashFollowedBy:
				// These read the out table's prior state before writing it
				//.
				alloc.AddOutputDependency(t.Out)
			}

		default:
			return nil, core.GenericError("compile: unhandled transformation %T", tr)
		}
	}
	return plan, nil
}

// lowerFunction looks up t.Name among the well-known table/* functions
// with stable compile-time shape dispatch and binds its Executor. Any
// other name (including table/split, deliberately) is left with a nil
// Exec for block.solve to resolve at runtime.
func lowerFunction(t Function) (FunctionStep, error) {
	step := FunctionStep{Name: t.Name, Args: t.Args, Out: t.Out}
	switch t.Name {
	case HashHorizontalConcatenate:
		step.Exec = lowerHorizontalConcatenate()
	case HashVerticalConcatenate:
		step.Exec = lowerVerticalConcatenate()
	case HashAppend:
		step.Exec = lowerAppend()
	case HashDefine:
		if len(t.Args) == 0 {
			return step, core.GenericError("table/define requires a source and at least one index step")
		}
		indices := make([]core.Register, len(t.Args)-1)
		for i, a := range t.Args[1:] {
			indices[i] = a.Reg
		}
		step.Exec = lowerDefine(indices)
	case HashSet:
		step.Exec = lowerTableSet()
	case HashFlatten:
		step.Exec = lowerFlatten()
	case HashRange:
		step.Exec = lowerRange()
	case HashSize:
		step.Exec = lowerSize()
	case HashFollowedBy:
		step.Exec = lowerFollowedBy()
	case HashCopy:
		step.Exec = lowerCopy()
	}
	return step, nil
}
