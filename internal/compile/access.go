package compile

import (
	"fmt"

	"mech/internal/core"
	"mech/internal/iterate"
	"mech/internal/ops"
)

// StaticShape is the element-access compiler family's classification of a
// source table by its exact dimensions.
// Small fixed shapes get their own variant so the access dispatch can
// validate an index form against them without consulting the table again;
// everything larger degrades to the dynamic variants.
type StaticShape uint8

const (
	StaticDMatrix StaticShape = iota
	StaticMatrix1
	StaticMatrix2
	StaticMatrix3
	StaticMatrix4
	StaticMatrix2x3
	StaticMatrix3x2
	StaticVector2
	StaticVector3
	StaticVector4
	StaticDVector
	StaticRowVector2
	StaticRowVector3
	StaticRowVector4
	StaticRowDVector
)

func (s StaticShape) String() string {
	switch s {
	case StaticMatrix1:
		return "Matrix1"
	case StaticMatrix2:
		return "Matrix2"
	case StaticMatrix3:
		return "Matrix3"
	case StaticMatrix4:
		return "Matrix4"
	case StaticMatrix2x3:
		return "Matrix2x3"
	case StaticMatrix3x2:
		return "Matrix3x2"
	case StaticVector2:
		return "Vector2"
	case StaticVector3:
		return "Vector3"
	case StaticVector4:
		return "Vector4"
	case StaticDVector:
		return "DVector"
	case StaticRowVector2:
		return "RowVector2"
	case StaticRowVector3:
		return "RowVector3"
	case StaticRowVector4:
		return "RowVector4"
	case StaticRowDVector:
		return "RowDVector"
	default:
		return "DMatrix"
	}
}

// IsVector reports whether the shape is single-column.
func (s StaticShape) IsVector() bool {
	switch s {
	case StaticMatrix1, StaticVector2, StaticVector3, StaticVector4, StaticDVector:
		return true
	default:
		return false
	}
}

// IsRowVector reports whether the shape is single-row.
func (s StaticShape) IsRowVector() bool {
	switch s {
	case StaticMatrix1, StaticRowVector2, StaticRowVector3, StaticRowVector4, StaticRowDVector:
		return true
	default:
		return false
	}
}

// ClassifyStatic maps exact dimensions onto a StaticShape.
func ClassifyStatic(rows, cols int) StaticShape {
	switch {
	case rows == 1 && cols == 1:
		return StaticMatrix1
	case cols == 1:
		switch rows {
		case 2:
			return StaticVector2
		case 3:
			return StaticVector3
		case 4:
			return StaticVector4
		default:
			return StaticDVector
		}
	case rows == 1:
		switch cols {
		case 2:
			return StaticRowVector2
		case 3:
			return StaticRowVector3
		case 4:
			return StaticRowVector4
		default:
			return StaticRowDVector
		}
	case rows == 2 && cols == 2:
		return StaticMatrix2
	case rows == 3 && cols == 3:
		return StaticMatrix3
	case rows == 4 && cols == 4:
		return StaticMatrix4
	case rows == 2 && cols == 3:
		return StaticMatrix2x3
	case rows == 3 && cols == 2:
		return StaticMatrix3x2
	default:
		return StaticDMatrix
	}
}

// AccessIndexKind classifies one axis selector of an element access.
type AccessIndexKind uint8

const (
	AccessAll AccessIndexKind = iota
	AccessNone
	AccessScalar
	AccessVector   // index table holding 1-based integer positions
	AccessBoolMask // index table holding a boolean mask
)

func (k AccessIndexKind) String() string {
	switch k {
	case AccessAll:
		return "All"
	case AccessNone:
		return "None"
	case AccessScalar:
		return "Scalar"
	case AccessVector:
		return "Vector"
	case AccessBoolMask:
		return "BoolMask"
	default:
		return "?"
	}
}

// classifyAccessIndex maps a TableIndex onto its access form. Scalar
// indices and aliases both address a single position; a TableIndex::Table
// selector splits into Vector or BoolMask depending on the index table's
// column kind, which requires a resolver round trip.
func classifyAccessIndex(resolver iterate.Resolver, sel core.TableIndex) (AccessIndexKind, error) {
	switch sel.Kind() {
	case core.IndexAll:
		return AccessAll, nil
	case core.IndexNone:
		return AccessNone, nil
	case core.IndexScalar, core.IndexAlias:
		return AccessScalar, nil
	case core.IndexTable:
		ixTable, err := resolver.Table(sel.TableRef())
		if err != nil {
			return 0, err
		}
		if ixTable.Cols > 0 && ixTable.Columns[0].Kind() == core.KindBool {
			return AccessBoolMask, nil
		}
		return AccessVector, nil
	default:
		return 0, unhandledAccess("unknown table index kind")
	}
}

func unhandledAccess(format string, args ...any) *core.Error {
	return &core.Error{Kind: core.ErrUnhandledFunctionArgumentKind, Message: fmt.Sprintf(format, args...)}
}

// checkAccess validates an (axis kind, axis kind) pair against the source
// shape. A single-column shape cannot be indexed by a column vector or
// mask; a single-row shape cannot be indexed that way along its rows. The
// combinations outside the enumerated table are errors, not coercions.
func checkAccess(shape StaticShape, rowKind, colKind AccessIndexKind) error {
	if shape.IsVector() && !shape.IsRowVector() {
		switch colKind {
		case AccessVector, AccessBoolMask:
			return unhandledAccess("%s cannot be column-indexed by %s", shape, colKind)
		}
	}
	if shape.IsRowVector() && !shape.IsVector() {
		switch rowKind {
		case AccessVector, AccessBoolMask:
			return unhandledAccess("%s cannot be row-indexed by %s", shape, rowKind)
		}
	}
	if rowKind == AccessNone && colKind == AccessNone {
		return unhandledAccess("%s access needs at least one axis selector", shape)
	}
	return nil
}

// CopyAccess performs one element access: it classifies the bound
// selection's (static shape × row index kind × column index kind)
// combination, validates it, resizes out to the selected subregion's
// shape, and dispatches the matching copy primitive. Shared by Select
// execution and table/define's final chain step, the two element-access
// paths.
func CopyAccess(resolver iterate.Resolver, final *iterate.ValueIterator, out *iterate.ValueIterator) error {
	src := final.Table()
	shape := ClassifyStatic(src.Rows, src.Cols)
	rowKind, err := classifyAccessIndex(resolver, final.RowSelector())
	if err != nil {
		return err
	}
	colKind, err := classifyAccessIndex(resolver, final.ColumnSelector())
	if err != nil {
		return err
	}
	if err := checkAccess(shape, rowKind, colKind); err != nil {
		return err
	}

	if rowKind == AccessScalar && colKind != AccessVector && colKind != AccessBoolMask && final.Elements() == 1 {
		// Scalar and scalar-scalar access collapse to one typed cell copy.
		if err := out.Resize(1, 1); err != nil {
			return err
		}
		out.Table().SetColKind(0, final.ColumnKind(1))
		return ops.SetSIxSIx(out, 1, 1, final, 1, 1)
	}

	// Vector, mask, and All access: the iterator already resolved the
	// selected positions, so the remaining work is a whole-selection copy.
	return ops.CopyDD(ops.Parallel{}, out, final)
}
