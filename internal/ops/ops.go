// Package ops implements the primitive operations: the family of small
// copy/set/arithmetic steps the transformation compiler emits, each
// specialized to a (source × index × sink) kind/shape combination. Every
// primitive is a plain function over one or more *iterate.ValueIterator
// cursors rather than a method hierarchy, so each one stays small and
// independently testable.
package ops

import (
	"golang.org/x/sync/errgroup"

	"mech/internal/core"
	"mech/internal/iterate"
)

// Parallel controls the optional data-parallel backend: an element loop
// whose size crosses Threshold is split across Workers goroutines via
// errgroup.Group. The zero value runs everything serially.
type Parallel struct {
	Enabled   bool
	Threshold int
	Workers   int
}

func (p Parallel) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return 4
}

// forEachElement runs fn(i) for every i in [0,n), serially unless p
// enables the parallel backend and n crosses its threshold. Primitives
// stay single-threaded in their own logic; this is purely a within-op
// acceleration, never a source of cross-primitive or cross-block
// reordering.
func forEachElement(p Parallel, n int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	if !p.Enabled || n < p.Threshold {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}
	workers := p.workers()
	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * chunk
		if start >= n {
			break
		}
		end := start + chunk
		if end > n {
			end = n
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// convert widens v to dstKind: a smaller numeric sink may accept a
// wider source only through an
// enumerated cast path, booleans/strings/references accept only matching
// or Any sinks, and Any accepts everything.
func convert(v core.Value, dstKind core.Kind) (core.Value, error) {
	if v.Kind() == core.KindEmpty || v.Kind() == dstKind || dstKind == core.KindAny {
		return v, nil
	}
	switch dstKind {
	case core.KindReference:
		if v.Kind() == core.KindReference {
			return v, nil
		}
		return core.Value{}, core.GenericError("cannot copy %s into a Reference sink", v.Kind())
	case core.KindBool, core.KindString, core.KindQuantity:
		return core.Value{}, core.GenericError("cannot widen %s into %s", v.Kind(), dstKind)
	}
	if !core.CanWiden(v.Kind(), dstKind) {
		return core.Value{}, core.GenericError("cannot widen %s into %s", v.Kind(), dstKind)
	}
	f, ok := v.AsFloat64Generic()
	if !ok {
		return core.Value{}, core.GenericError("value of kind %s is not numeric", v.Kind())
	}
	switch dstKind {
	case core.KindU8:
		return core.FromU8(uint8(f)), nil
	case core.KindU16:
		return core.FromU16(uint16(f)), nil
	case core.KindU32:
		return core.FromU32(uint32(f)), nil
	case core.KindU64:
		return core.FromU64(uint64(f)), nil
	case core.KindI8:
		return core.FromI8(int8(f)), nil
	case core.KindI16:
		return core.FromI16(int16(f)), nil
	case core.KindI32:
		return core.FromI32(int32(f)), nil
	case core.KindI64:
		return core.FromI64(int64(f)), nil
	case core.KindF32:
		return core.FromF32(float32(f)), nil
	case core.KindF64:
		return core.FromF64(f), nil
	default:
		return core.Value{}, core.GenericError("widening into %s is unsupported", dstKind)
	}
}

func dimensionMismatch(dst, src *iterate.ValueIterator) error {
	return core.DimensionMismatch(dst.Shape(), src.Shape())
}

// CopyVV copies every source cell into the matching destination cell,
// element for element in column-major order, widening as needed (the
// base "value to value" primitive).
func CopyVV(p Parallel, dst, src *iterate.ValueIterator) error {
	if dst.Elements() != src.Elements() {
		return dimensionMismatch(dst, src)
	}
	cells := src.Enumerate()
	return forEachElement(p, len(cells), func(i int) error {
		_, colIx := dst.Subscript(i)
		v, err := convert(cells[i].Value, dst.ColumnKind(colIx))
		if err != nil {
			return err
		}
		dst.SetUncheckedLinear(i, v)
		return nil
	})
}

// CopySV broadcasts a single scalar source value into every destination
// cell ("scalar to value").
func CopySV(p Parallel, dst *iterate.ValueIterator, src *iterate.ValueIterator) error {
	if src.Elements() != 1 {
		return core.GenericError("CopySV requires a scalar source, got %s", src.Shape())
	}
	v, _, _ := src.Get(1, 1)
	return forEachElement(p, dst.Elements(), func(i int) error {
		_, colIx := dst.Subscript(i)
		cv, err := convert(v, dst.ColumnKind(colIx))
		if err != nil {
			return err
		}
		dst.SetUncheckedLinear(i, cv)
		return nil
	})
}

// CopyVB gathers source cells into dst at the positions where mask is
// true ("value by boolean"), e.g. the boolean-mask row/column selectors
// compiled from a `TableIndex::Table` boolean index.
func CopyVB(p Parallel, dst, src, mask *iterate.ValueIterator) error {
	if mask.Elements() != src.Elements() {
		return core.DimensionMismatch(mask.Shape(), src.Shape())
	}
	srcCells := src.Enumerate()
	maskCells := mask.Enumerate()
	var selected []core.Value
	for i, m := range maskCells {
		if b, ok := m.Value.AsBool(); ok && b {
			selected = append(selected, srcCells[i].Value)
		}
	}
	if len(selected) != dst.Elements() {
		return core.DimensionMismatch(dst.Shape(), core.ColumnShape(len(selected)))
	}
	return forEachElement(p, len(selected), func(i int) error {
		_, colIx := dst.Subscript(i)
		v, err := convert(selected[i], dst.ColumnKind(colIx))
		if err != nil {
			return err
		}
		dst.SetUncheckedLinear(i, v)
		return nil
	})
}

// CopyVI gathers source cells into dst following a real-valued index
// column ("value by index"), the integer-indexed counterpart of CopyVB.
// Index values are 1-based, matching every other index-table selector.
func CopyVI(p Parallel, dst, src, indices *iterate.ValueIterator) error {
	if indices.Elements() != dst.Elements() {
		return core.DimensionMismatch(dst.Shape(), indices.Shape())
	}
	idxCells := indices.Enumerate()
	return forEachElement(p, len(idxCells), func(i int) error {
		f, ok := idxCells[i].Value.AsFloat64Generic()
		if !ok {
			return core.GenericError("index column must be numeric")
		}
		ix := int(f)
		rowIx, colIx := 1, ix
		if src.Rows() > 1 {
			rowIx, colIx = ix, 1
		}
		v, _, ok := src.Get(rowIx, colIx)
		if !ok {
			return core.GenericError("index %d out of range for source shape %s", ix, src.Shape())
		}
		_, dstColIx := dst.Subscript(i)
		cv, err := convert(v, dst.ColumnKind(dstColIx))
		if err != nil {
			return err
		}
		dst.SetUncheckedLinear(i, cv)
		return nil
	})
}

// CopyDD resizes dst to src's shape and mirrors src's column kinds
// before copying every cell ("dynamic to dynamic"), for destinations
// that take their entire shape and content from the source, e.g.
// table/copy and whole-selection element access.
func CopyDD(p Parallel, dst, src *iterate.ValueIterator) error {
	if err := dst.Resize(src.Rows(), src.Columns()); err != nil {
		return err
	}
	for c := 1; c <= src.Columns(); c++ {
		dst.Table().SetColKind(c-1, src.ColumnKind(c))
	}
	return CopyVV(p, dst, src)
}

// CopyVRV copies reference-kind cells element-wise, rejecting any
// non-Reference source cell ("value-reference to value").
func CopyVRV(p Parallel, dst, src *iterate.ValueIterator) error {
	cells := src.Enumerate()
	for _, c := range cells {
		if c.Value.Kind() != core.KindEmpty && c.Value.Kind() != core.KindReference {
			return core.GenericError("CopyVRV requires Reference-kind source cells, got %s", c.Value.Kind())
		}
	}
	return CopyVV(p, dst, src)
}

// CopySSRef copies a single scalar Reference cell ("scalar to scalar,
// reference-typed"), the horizontal-concatenate dispatch's reference
// counterpart to CopySV.
func CopySSRef(dst, src *iterate.ValueIterator) error {
	if src.Elements() != 1 || dst.Elements() != 1 {
		return dimensionMismatch(dst, src)
	}
	v, _, _ := src.Get(1, 1)
	if _, ok := v.AsReference(); !ok && v.Kind() != core.KindEmpty {
		return core.GenericError("CopySSRef requires a Reference source, got %s", v.Kind())
	}
	dst.SetUnchecked(1, 1, v)
	return nil
}

// CopySIxS copies one scalar cell at a specific 1-based source index into
// one scalar destination cell ("scalar-index to scalar"), used where the
// compiler has already resolved both sides to fixed positions rather than
// a whole-iterator shape.
func CopySIxS(dst *iterate.ValueIterator, dstRow, dstCol int, src *iterate.ValueIterator, srcRow, srcCol int) error {
	return SetSIxSIx(dst, dstRow, dstCol, src, srcRow, srcCol)
}

// CopyTIV appends into dst one row per cell of a real-valued index
// column, each row taken from the Global table referenced by the
// matching cell of refs ("table by index-vector"; table/append's
// whole-table-reference-through-an-index-column case). refs and
// indices must have the same element count;
// every referenced table must be row-shaped and column-compatible with
// dst.
func CopyTIV(dst, refs, indices *iterate.ValueIterator, resolver iterate.Resolver) error {
	if refs.Elements() != indices.Elements() {
		return core.DimensionMismatch(refs.Shape(), indices.Shape())
	}
	refCells := refs.Enumerate()
	idxCells := indices.Enumerate()
	for i, idx := range idxCells {
		f, ok := idx.Value.AsFloat64Generic()
		if !ok {
			return core.GenericError("CopyTIV index column must be numeric")
		}
		id, ok := refCells[i].Value.AsReference()
		if !ok {
			return core.GenericError("CopyTIV requires a Reference column, got %s", refCells[i].Value.Kind())
		}
		srcIter, err := iterate.New(id, core.Index(int(f)+1), core.All(), resolver, 0)
		if err != nil {
			return err
		}
		if err := AppendTable(dst, srcIter); err != nil {
			return err
		}
	}
	return nil
}

// SetVV writes src into dst cell for cell, resizing dst first when its
// shape does not already match src's ("matrix to matrix", table/set's
// matrix-to-matrix case).
func SetVV(p Parallel, dst, src *iterate.ValueIterator) error {
	if dst.Rows() != src.Rows() || dst.Columns() != src.Columns() {
		if err := dst.Resize(src.Rows(), src.Columns()); err != nil {
			return err
		}
	}
	return CopyVV(p, dst, src)
}

// SetSIxSIx writes a single scalar src cell into a single scalar dst
// cell, both located by 1-based logical index ("scalar-index to
// scalar-index"; table/set's scalar-to-scalar and row-to-row per-column
// cases).
func SetSIxSIx(dst *iterate.ValueIterator, dstRow, dstCol int, src *iterate.ValueIterator, srcRow, srcCol int) error {
	v, _, ok := src.Get(srcRow, srcCol)
	if !ok {
		return core.GenericError("SetSIxSIx: source index (%d,%d) out of range", srcRow, srcCol)
	}
	cv, err := convert(v, dst.ColumnKind(dstCol))
	if err != nil {
		return err
	}
	dst.SetUnchecked(dstRow, dstCol, cv)
	return nil
}

// SetVVB broadcasts a scalar src value into every dst cell where mask is
// true ("value to value, boolean-gated"; table/set's
// scalar-to-logical-mask case).
func SetVVB(dst *iterate.ValueIterator, src *iterate.ValueIterator, mask *iterate.ValueIterator) error {
	if src.Elements() != 1 {
		return core.GenericError("SetVVB requires a scalar source, got %s", src.Shape())
	}
	if mask.Elements() != dst.Elements() {
		return core.DimensionMismatch(dst.Shape(), mask.Shape())
	}
	v, _, _ := src.Get(1, 1)
	maskCells := mask.Enumerate()
	for i, m := range maskCells {
		b, _ := m.Value.AsBool()
		if !b {
			continue
		}
		rowIx, colIx := dst.Subscript(i)
		cv, err := convert(v, dst.ColumnKind(colIx))
		if err != nil {
			return err
		}
		dst.SetUnchecked(rowIx, colIx, cv)
	}
	return nil
}

// Range fills dst as an f32 column counting from start to end inclusive,
// strictly increasing by 1.0. dst is resized to a (end-start+1)
// x 1 column first.
func Range(dst *iterate.ValueIterator, start, end int) error {
	if end < start {
		return core.GenericError("table/range requires start <= end, got %d..%d", start, end)
	}
	n := end - start + 1
	if err := dst.Resize(n, 1); err != nil {
		return err
	}
	dst.Table().SetColKind(0, core.KindF32)
	for i := 0; i < n; i++ {
		dst.SetUnchecked(i+1, 1, core.FromF32(float32(start+i)))
	}
	return nil
}

// Size writes (rows, cols) of src as u64 into a freshly-resized 1x2 dst
//.
func Size(dst, src *iterate.ValueIterator) error {
	if err := dst.Resize(1, 2); err != nil {
		return err
	}
	dst.Table().SetColKind(0, core.KindU64)
	dst.Table().SetColKind(1, core.KindU64)
	dst.SetUnchecked(1, 1, core.FromU64(uint64(src.Rows())))
	dst.SetUnchecked(1, 2, core.FromU64(uint64(src.Columns())))
	return nil
}

// AppendTable appends src's rows onto dst's underlying table when both
// sides are row-shaped and column-compatible (table/append's row-shaped
// case).
func AppendTable(dst, src *iterate.ValueIterator) error {
	if dst.Columns() != src.Columns() {
		return core.DimensionMismatch(dst.Shape(), src.Shape())
	}
	return dst.Table().Extend(src.Table())
}

// FollowedBy writes first's cells into dst, substituting second's cell
// at any position where first carries no value this tick (Kind ==
// Empty) — the "fall back to the trailing signal" reading of
// table/followed-by.
func FollowedBy(p Parallel, dst, first, second *iterate.ValueIterator) error {
	if first.Elements() != second.Elements() || first.Elements() != dst.Elements() {
		return dimensionMismatch(dst, first)
	}
	firstCells := first.Enumerate()
	secondCells := second.Enumerate()
	return forEachElement(p, len(firstCells), func(i int) error {
		v := firstCells[i].Value
		if v.Kind() == core.KindEmpty {
			v = secondCells[i].Value
		}
		_, colIx := dst.Subscript(i)
		cv, err := convert(v, dst.ColumnKind(colIx))
		if err != nil {
			return err
		}
		dst.SetUncheckedLinear(i, cv)
		return nil
	})
}
