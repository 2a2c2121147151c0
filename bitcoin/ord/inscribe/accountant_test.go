// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscribe_test

import (
	"testing"

	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"inscriber/bitcoin/ord/inscribe"
)

func TestUTXOSet(t *testing.T) {
	script := scriptOf(t, testTaprootAddress(t, 0x01))

	t.Run("register and lookup", func(t *testing.T) {
		utxos := inscribe.NewUTXOSet()
		outPoint := testOutPoint(0x11, 0)

		require.False(t, utxos.Contains(outPoint))
		_, ok := utxos.Lookup(outPoint)
		require.False(t, ok)

		utxos.Register(outPoint, wire.NewTxOut(5_000, script))
		require.True(t, utxos.Contains(outPoint))

		txOut, ok := utxos.Lookup(outPoint)
		require.True(t, ok)
		require.EqualValues(t, 5_000, txOut.Value)

		utxos.Register(outPoint, wire.NewTxOut(7_000, script))
		txOut, _ = utxos.Lookup(outPoint)
		require.EqualValues(t, 7_000, txOut.Value)
	})

	t.Run("amounts and entries are copies", func(t *testing.T) {
		utxos := inscribe.NewUTXOSet()
		outPoint := testOutPoint(0x11, 0)
		utxos.Register(outPoint, wire.NewTxOut(5_000, script))

		amounts := utxos.Amounts()
		require.Len(t, amounts, 1)
		require.EqualValues(t, 5_000, amounts[outPoint])

		entries := utxos.Entries()
		delete(entries, outPoint)
		require.True(t, utxos.Contains(outPoint))
	})

	t.Run("sorted outpoints", func(t *testing.T) {
		utxos := inscribe.NewUTXOSet()
		utxos.Register(testOutPoint(0x22, 0), wire.NewTxOut(1, script))
		utxos.Register(testOutPoint(0x11, 1), wire.NewTxOut(1, script))
		utxos.Register(testOutPoint(0x11, 0), wire.NewTxOut(1, script))

		require.Equal(t, []wire.OutPoint{
			testOutPoint(0x11, 0),
			testOutPoint(0x11, 1),
			testOutPoint(0x22, 0),
		}, utxos.SortedOutPoints())
	})

	t.Run("fee", func(t *testing.T) {
		utxos := inscribe.NewUTXOSet()
		first, second := testOutPoint(0x11, 0), testOutPoint(0x22, 0)
		utxos.Register(first, wire.NewTxOut(5_000, script))
		utxos.Register(second, wire.NewTxOut(3_000, script))

		tx := wire.NewMsgTx(2)
		tx.AddTxIn(&wire.TxIn{PreviousOutPoint: first, Sequence: mempool.MaxRBFSequence})
		tx.AddTxIn(&wire.TxIn{PreviousOutPoint: second, Sequence: mempool.MaxRBFSequence})
		tx.AddTxOut(wire.NewTxOut(7_500, script))

		fee, err := utxos.Fee(tx)
		require.NoError(t, err)
		require.EqualValues(t, 500, fee)

		tx.AddTxIn(&wire.TxIn{PreviousOutPoint: testOutPoint(0x33, 0)})
		_, err = utxos.Fee(tx)
		require.ErrorIs(t, err, inscribe.ErrUntrackedOutPoint)
	})
}
