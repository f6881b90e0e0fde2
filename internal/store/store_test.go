package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mech/internal/core"
	"mech/internal/store"
)

func TestProcessTransactionAppliesChangesAtomically(t *testing.T) {
	db := store.New()

	txn := store.Transaction{Changes: []store.Change{
		store.NewTableChange{TableID: 1, Rows: 2, Cols: 2},
		store.SetColumnAliasChange{TableID: 1, ColumnIx: 0, ColumnAlias: core.HashString("x")},
		store.SetChange{TableID: 1, Values: []store.ValueCell{
			{Row: 1, Col: 1, Value: core.FromU8(7)},
		}},
	}}

	require.NoError(t, db.ProcessTransaction(txn))

	tbl, err := db.Table(core.GlobalTableId(1))
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Rows)
	v := tbl.Get(1, 1)
	u, ok := v.AsU64()
	require.True(t, ok)
	assert.Equal(t, uint64(7), u)

	ix, ok := db.ColumnAlias(core.GlobalTableId(1), core.HashString("x"))
	require.True(t, ok)
	assert.Equal(t, 0, ix)
}

func TestTransactionLogRecordsSubmissionOrder(t *testing.T) {
	// Every Change drained from a block appears in exactly one
	// Transaction, in submission order.
	db := store.New()
	first := store.Transaction{Changes: []store.Change{store.NewTableChange{TableID: 1, Rows: 1, Cols: 1}}}
	second := store.Transaction{Changes: []store.Change{store.NewTableChange{TableID: 2, Rows: 1, Cols: 1}}}

	require.NoError(t, db.ProcessTransaction(first))
	require.NoError(t, db.ProcessTransaction(second))

	txns := db.Transactions()
	require.Len(t, txns, 2)
	assert.Equal(t, first, txns[0])
	assert.Equal(t, second, txns[1])
}

func TestMissingTableError(t *testing.T) {
	db := store.New()
	_, err := db.Table(core.GlobalTableId(42))
	require.Error(t, err)
	merr, ok := err.(*core.Error)
	require.True(t, ok)
	assert.Equal(t, core.ErrMissingTable, merr.Kind)
}

func TestInternSharesBackingString(t *testing.T) {
	db := store.New()
	h1 := db.Intern("hello")
	h2 := db.Intern("hello")
	assert.Equal(t, h1, h2)
	s, ok := db.LookupString(h1)
	require.True(t, ok)
	assert.Equal(t, "hello", s)
}
