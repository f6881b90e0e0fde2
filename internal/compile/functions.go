package compile

import (
	"mech/internal/core"
	"mech/internal/iterate"
	"mech/internal/ops"
)

// chooseSinkKind decides the widened kind a destination column must hold
// to receive a value of kind src without loss, given its current kind
// cur. A smaller numeric sink accepts a wider source only via an
// explicit cast path.
func chooseSinkKind(cur, src core.Kind) (core.Kind, error) {
	switch {
	case cur == core.KindEmpty:
		return src, nil
	case cur == src:
		return cur, nil
	case cur == core.KindAny || src == core.KindAny:
		return core.KindAny, nil
	case core.CanWiden(src, cur):
		return cur, nil
	case core.CanWiden(cur, src):
		return src, nil
	default:
		return 0, core.GenericError("cannot reconcile column kinds %s and %s", cur, src)
	}
}

// lowerHorizontalConcatenate builds the row-wise concatenation executor:
// every argument must share a row count or be scalar; total output columns
// is the sum of argument columns; each argument column copies into its
// own destination column through the primitive copyConcatColumn selects,
// widening the destination column's kind as needed.
func lowerHorizontalConcatenate() Executor {
	return func(resolver iterate.Resolver, args []*iterate.ValueIterator, names []uint64, dst *iterate.ValueIterator) error {
		if len(args) == 0 {
			return core.GenericError("table/horizontal-concatenate requires at least one argument")
		}
		rows := 1
		totalCols := 0
		for _, a := range args {
			if a.Rows() > rows {
				rows = a.Rows()
			}
			totalCols += a.Columns()
		}
		for _, a := range args {
			if a.Rows() != 1 && a.Rows() != rows {
				return core.DimensionMismatch(dst.Shape(), a.Shape())
			}
		}
		if err := dst.Resize(rows, totalCols); err != nil {
			return err
		}
		destCol := 1
		for _, a := range args {
			for c := 1; c <= a.Columns(); c++ {
				kind, err := chooseSinkKind(dst.Table().Columns[destCol-1].Kind(), a.ColumnKind(c))
				if err != nil {
					return err
				}
				dst.Table().SetColKind(destCol-1, kind)
				if err := copyConcatColumn(resolver, a, c, dst, destCol); err != nil {
					return err
				}
				destCol++
			}
		}
		return nil
	}
}

// argColumnSelector maps the 1-based logical column c of an argument back
// onto a selector usable against the argument's underlying table. When
// the argument was bound with a single-column selector (Index or Alias),
// that selector already names the physical column; otherwise logical and
// physical columns coincide.
func argColumnSelector(a *iterate.ValueIterator, c int) core.TableIndex {
	if a.ColumnSelector().Kind() != core.IndexAll && a.Columns() == 1 {
		return a.ColumnSelector()
	}
	return core.Index(c)
}

// copyConcatColumn copies one argument column into destination column
// destCol, keyed on (source kind × index kind × sink shape): a boolean
// index table on the argument's row axis routes through the mask gather
// CopyVB, a numeric one through the index gather CopyVI, Reference
// channels through the reference-checked CopySSRef/CopyVRV, and
// everything else through the scalar broadcast CopySV or the
// element-wise CopyVV.
func copyConcatColumn(resolver iterate.Resolver, a *iterate.ValueIterator, c int, dst *iterate.ValueIterator, destCol int) error {
	dstCol, err := iterate.New(dst.ID(), core.All(), core.Index(destCol), resolver, 0)
	if err != nil {
		return err
	}
	if sel := a.RowSelector(); sel.Kind() == core.IndexTable {
		full, err := iterate.New(a.ID(), core.All(), argColumnSelector(a, c), resolver, 0)
		if err != nil {
			return err
		}
		ixCol, err := iterate.New(sel.TableRef(), core.All(), core.Index(1), resolver, 0)
		if err != nil {
			return err
		}
		if ixCol.ColumnKind(1) == core.KindBool {
			return ops.CopyVB(ops.Parallel{}, dstCol, full, ixCol)
		}
		return ops.CopyVI(ops.Parallel{}, dstCol, full, ixCol)
	}
	srcCol, err := iterate.New(a.ID(), a.RowSelector(), argColumnSelector(a, c), resolver, 0)
	if err != nil {
		return err
	}
	switch {
	case a.ColumnKind(c) == core.KindReference && srcCol.Rows() == 1 && dstCol.Rows() == 1:
		return ops.CopySSRef(dstCol, srcCol)
	case a.ColumnKind(c) == core.KindReference:
		return ops.CopyVRV(ops.Parallel{}, dstCol, srcCol)
	case srcCol.Rows() == 1 && dstCol.Rows() > 1:
		return ops.CopySV(ops.Parallel{}, dstCol, srcCol)
	default:
		return ops.CopyVV(ops.Parallel{}, dstCol, srcCol)
	}
}

// lowerVerticalConcatenate mirrors horizontal-concatenate along rows:
// every argument must share the same column count. Each destination
// column's kind is settled across every argument before any value lands,
// so each cell is written exactly once, re-encoded at the column's final
// width by the converting scalar copy — a narrow argument can never
// leave narrow values behind under a widened column label.
func lowerVerticalConcatenate() Executor {
	return func(resolver iterate.Resolver, args []*iterate.ValueIterator, names []uint64, dst *iterate.ValueIterator) error {
		if len(args) == 0 {
			return core.GenericError("table/vertical-concatenate requires at least one argument")
		}
		cols := args[0].Columns()
		totalRows := 0
		for _, a := range args {
			if a.Columns() != cols {
				return core.DimensionMismatch(dst.Shape(), a.Shape())
			}
			totalRows += a.Rows()
		}
		if err := dst.Resize(totalRows, cols); err != nil {
			return err
		}
		for c := 1; c <= cols; c++ {
			kind := core.KindEmpty
			for _, a := range args {
				var err error
				kind, err = chooseSinkKind(kind, a.ColumnKind(c))
				if err != nil {
					return err
				}
			}
			dst.Table().SetColKind(c-1, kind)
		}
		dstRow := 1
		for _, a := range args {
			for r := 1; r <= a.Rows(); r++ {
				for c := 1; c <= cols; c++ {
					if err := ops.SetSIxSIx(dst, dstRow, c, a, r, c); err != nil {
						return err
					}
				}
				dstRow++
			}
		}
		return nil
	}
}

// lowerAppend implements table/append's three cases: AppendTable when
// the destination is row-shaped; a resize-and-SetSIxSIx per column when
// the destination is scalar or column-shaped; SetVV for the remaining
// matrix-to-matrix case. The whole-table-reference-through-an-index-
// column case (CopyTIV) is not reachable through this generic lowering —
// it needs a second index argument this Function shape does not carry.
func lowerAppend() Executor {
	return func(resolver iterate.Resolver, args []*iterate.ValueIterator, names []uint64, dst *iterate.ValueIterator) error {
		if len(args) == 0 {
			return core.GenericError("table/append requires a value argument")
		}
		value := args[0]
		switch dst.Shape().Kind {
		case core.ShapeRow:
			return ops.AppendTable(dst, value)
		case core.ShapeColumn, core.ShapeScalar:
			row := dst.Rows() + 1
			cols := dst.Columns()
			if cols == 0 {
				cols = value.Columns()
			}
			if err := dst.Resize(row, cols); err != nil {
				return err
			}
			for c := 1; c <= cols; c++ {
				srcCol := c
				if value.Columns() == 1 {
					srcCol = 1
				}
				if err := ops.SetSIxSIx(dst, row, c, value, 1, srcCol); err != nil {
					return err
				}
			}
			return nil
		default:
			return ops.SetVV(ops.Parallel{}, dst, value)
		}
	}
}

// lowerDefine implements table/define: walk the argument's index chain,
// following any intermediate scalar Reference, and copy the final
// selection into dst.
func lowerDefine(indices []core.Register) Executor {
	return func(resolver iterate.Resolver, args []*iterate.ValueIterator, names []uint64, dst *iterate.ValueIterator) error {
		if len(args) == 0 {
			return core.GenericError("table/define requires a source argument")
		}
		final, err := ResolveChain(resolver, args[0].ID(), indices)
		if err != nil {
			return err
		}
		return CopyAccess(resolver, final, dst)
	}
}

// lowerTableSet implements table/set's remaining cases not already
// covered by the Set transformation's direct Change::Set path: scalar-to-
// logical-mask (SetVVB, when a boolean mask argument is present),
// matrix-to-matrix (SetVV), scalar-to-scalar (SetSIxSIx), and row-to-row
// alignment (SetVV, since the caller is expected to have already aligned
// columns by building the source argument's iterator with the matching
// alias or index selectors).
func lowerTableSet() Executor {
	return func(resolver iterate.Resolver, args []*iterate.ValueIterator, names []uint64, dst *iterate.ValueIterator) error {
		if len(args) == 0 {
			return core.GenericError("table/set requires a source argument")
		}
		src := args[0]
		var mask *iterate.ValueIterator
		for i, n := range names {
			if n == maskArgName {
				mask = args[i]
			}
		}
		switch {
		case mask != nil:
			return ops.SetVVB(dst, src, mask)
		case dst.Elements() == 1 && src.Elements() == 1:
			return ops.SetSIxSIx(dst, 1, 1, src, 1, 1)
		default:
			return ops.SetVV(ops.Parallel{}, dst, src)
		}
	}
}

var maskArgName = core.HashString("mask")

// lowerFlatten implements table/flatten, the inverse of table/split: a
// column of Reference values becomes a matrix whose rows are the
// referenced 1-row tables.
func lowerFlatten() Executor {
	return func(resolver iterate.Resolver, args []*iterate.ValueIterator, names []uint64, dst *iterate.ValueIterator) error {
		if len(args) == 0 {
			return core.GenericError("table/flatten requires a Reference column argument")
		}
		refs := args[0]
		n := refs.Elements()
		if n == 0 {
			return dst.Resize(0, dst.Columns())
		}
		first, ok := refs.AsReference(1, 1)
		if !ok {
			return core.GenericError("table/flatten requires a Reference column")
		}
		firstTable, err := resolver.Table(first)
		if err != nil {
			return err
		}
		cols := firstTable.Cols
		if err := dst.Resize(n, cols); err != nil {
			return err
		}
		for c := 1; c <= cols; c++ {
			dst.Table().SetColKind(c-1, firstTable.Columns[c-1].Kind())
		}
		for r := 1; r <= n; r++ {
			ref, ok := refs.AsReference(r, 1)
			if !ok {
				return core.GenericError("table/flatten: row %d is not a Reference", r)
			}
			row, err := iterate.New(ref, core.Index(1), core.All(), resolver, 0)
			if err != nil {
				return err
			}
			for c := 1; c <= cols; c++ {
				if err := ops.SetSIxSIx(dst, r, c, row, 1, c); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

// lowerRange implements table/range(start, end).
func lowerRange() Executor {
	return func(resolver iterate.Resolver, args []*iterate.ValueIterator, names []uint64, dst *iterate.ValueIterator) error {
		if len(args) != 2 {
			return &core.Error{Kind: core.ErrIncorrectNumberOfArguments, Expected: 2, Found: len(args)}
		}
		startV, _, _ := args[0].Get(1, 1)
		endV, _, _ := args[1].Get(1, 1)
		sf, ok := startV.AsFloat64Generic()
		if !ok {
			return core.GenericError("table/range start must be numeric")
		}
		ef, ok := endV.AsFloat64Generic()
		if !ok {
			return core.GenericError("table/range end must be numeric")
		}
		return ops.Range(dst, int(sf), int(ef))
	}
}

// lowerSize implements table/size(T).
func lowerSize() Executor {
	return func(resolver iterate.Resolver, args []*iterate.ValueIterator, names []uint64, dst *iterate.ValueIterator) error {
		if len(args) != 1 {
			return &core.Error{Kind: core.ErrIncorrectNumberOfArguments, Expected: 1, Found: len(args)}
		}
		return ops.Size(dst, args[0])
	}
}

// lowerFollowedBy implements table/followed-by over exactly two
// arguments.
func lowerFollowedBy() Executor {
	return func(resolver iterate.Resolver, args []*iterate.ValueIterator, names []uint64, dst *iterate.ValueIterator) error {
		if len(args) != 2 {
			return &core.Error{Kind: core.ErrIncorrectNumberOfArguments, Expected: 2, Found: len(args)}
		}
		if err := dst.Resize(args[0].Rows(), args[0].Columns()); err != nil {
			return err
		}
		for c := 1; c <= dst.Columns(); c++ {
			dst.Table().SetColKind(c-1, args[0].ColumnKind(c))
		}
		return ops.FollowedBy(ops.Parallel{}, dst, args[0], args[1])
	}
}

// lowerCopy implements table/copy: dst takes src's shape, column kinds,
// and cells wholesale.
func lowerCopy() Executor {
	return func(resolver iterate.Resolver, args []*iterate.ValueIterator, names []uint64, dst *iterate.ValueIterator) error {
		if len(args) != 1 {
			return &core.Error{Kind: core.ErrIncorrectNumberOfArguments, Expected: 1, Found: len(args)}
		}
		return ops.CopyDD(ops.Parallel{}, dst, args[0])
	}
}
