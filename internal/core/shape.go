package core

import "fmt"

// ShapeKind discriminates the variants of TableShape.
type ShapeKind uint8

const (
	ShapeScalar ShapeKind = iota
	ShapeRow
	ShapeColumn
	ShapeMatrix
	ShapeDynamic
	ShapePending
)

// TableShape is the compile-time geometric classification of a table,
// used to dispatch primitive operations. Pending marks a
// not-yet-resolved forward reference to a table that hasn't been created
// yet.
type TableShape struct {
	Kind    ShapeKind
	Rows    int
	Cols    int
	Pending TableId
}

func Scalar() TableShape                { return TableShape{Kind: ShapeScalar, Rows: 1, Cols: 1} }
func Row(cols int) TableShape           { return TableShape{Kind: ShapeRow, Rows: 1, Cols: cols} }
func ColumnShape(rows int) TableShape   { return TableShape{Kind: ShapeColumn, Rows: rows, Cols: 1} }
func Matrix(rows, cols int) TableShape  { return TableShape{Kind: ShapeMatrix, Rows: rows, Cols: cols} }
func Dynamic(rows, cols int) TableShape { return TableShape{Kind: ShapeDynamic, Rows: rows, Cols: cols} }
func Pending(id TableId) TableShape     { return TableShape{Kind: ShapePending, Pending: id} }

func (s TableShape) String() string {
	switch s.Kind {
	case ShapeScalar:
		return "Scalar"
	case ShapeRow:
		return fmt.Sprintf("Row(%d)", s.Cols)
	case ShapeColumn:
		return fmt.Sprintf("Column(%d)", s.Rows)
	case ShapeMatrix:
		return fmt.Sprintf("Matrix(%d,%d)", s.Rows, s.Cols)
	case ShapeDynamic:
		return fmt.Sprintf("Dynamic(%d,%d)", s.Rows, s.Cols)
	case ShapePending:
		return fmt.Sprintf("Pending(%s)", s.Pending)
	default:
		return "?"
	}
}

// ShapeOf classifies a rows×cols table, deriving ShapeScalar/Row/Column/
// Matrix from the dimensions and the dynamic flag directly (Dynamic tables
// are always reported as ShapeDynamic regardless of current size).
func ShapeOf(rows, cols int, dynamic bool) TableShape {
	if dynamic {
		return Dynamic(rows, cols)
	}
	switch {
	case rows == 1 && cols == 1:
		return Scalar()
	case rows == 1:
		return Row(cols)
	case cols == 1:
		return ColumnShape(rows)
	default:
		return Matrix(rows, cols)
	}
}
