package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mech/internal/core"
)

func TestTableResizePreservesColumnLengthInvariant(t *testing.T) {
	// For every table T and column c, len(T.columns[c]) == T.rows.
	tbl := core.NewTable(core.GlobalTableId(1), 2, 3)
	tbl.Resize(5, 4)
	assert.Equal(t, 5, tbl.Rows)
	assert.Equal(t, 4, tbl.Cols)
	for _, c := range tbl.Columns {
		assert.Equal(t, 5, c.Len())
	}
}

func TestColumnWideningRules(t *testing.T) {
	assert.True(t, core.CanWiden(core.KindU8, core.KindF32))
	assert.True(t, core.CanWiden(core.KindI16, core.KindI64))
	assert.False(t, core.CanWiden(core.KindF64, core.KindI8))
	assert.False(t, core.CanWiden(core.KindBool, core.KindI8))
	assert.True(t, core.CanWiden(core.KindString, core.KindString))
}

func TestTableExtendVerticalConcatenate(t *testing.T) {
	// Vertical concatenation of kind-compatible tables. Extend appends
	// rows raw without re-encoding, so both sides here already carry the
	// final kind.
	a := core.NewTable(core.GlobalTableId(1), 2, 1)
	a.SetKind(core.KindF32)
	a.Set(1, 1, core.FromF32(1.0), 1)
	a.Set(2, 1, core.FromF32(2.0), 1)

	b := core.NewTable(core.GlobalTableId(2), 1, 1)
	b.SetKind(core.KindF32)
	b.Set(1, 1, core.FromF32(3.0), 1)

	require.NoError(t, a.Extend(b))

	require.Equal(t, 3, a.Rows)
	v0, _ := a.Get(1, 1).AsF64()
	v1, _ := a.Get(2, 1).AsF64()
	v2, _ := a.Get(3, 1).AsF64()
	assert.Equal(t, 1.0, v0)
	assert.Equal(t, 2.0, v1)
	assert.Equal(t, 3.0, v2)
}

func TestIndexToSubscriptIsColumnMajor(t *testing.T) {
	tbl := core.NewTable(core.GlobalTableId(1), 2, 3)
	row, col := tbl.IndexToSubscript(2)
	assert.Equal(t, 1, row)
	assert.Equal(t, 2, col)
	assert.Equal(t, 2, tbl.SubscriptToIndex(row, col))
}

func TestQuantityArithmeticRequiresMatchingDomain(t *testing.T) {
	g := core.MakeQuantity(5, 0, core.DomainMass)
	kg := core.MakeQuantity(2, 3, core.DomainMass)
	gq, _ := g.AsQuantity()
	kgq, _ := kg.AsQuantity()

	sum, err := core.QuantityAdd(gq, kgq)
	require.NoError(t, err)
	assert.Equal(t, int64(2005), sum.Mantissa)
	assert.Equal(t, int32(0), sum.Scale)

	other := core.MakeQuantity(1, 0, core.DomainNone)
	otherQ, _ := other.AsQuantity()
	_, err = core.QuantityAdd(gq, otherQ)
	assert.Error(t, err)
}
