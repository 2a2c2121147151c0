// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder_test

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"inscriber/bitcoin"
	"inscriber/bitcoin/txbuilder"
)

func TestBuildFundingTransaction(t *testing.T) {
	recipient := testTaprootAddress(t, 0x11)
	alignAddr := testTaprootAddress(t, 0x22)
	changeAddr := testTaprootAddress(t, 0x33)
	changeAddresses := [2]btcutil.Address{alignAddr, changeAddr}

	satPointOutPoint := testOutPoint(0xaa, 0)

	t.Run("funds recipient with change", func(t *testing.T) {
		amounts := map[wire.OutPoint]btcutil.Amount{
			satPointOutPoint:      100_000,
			testOutPoint(0xbb, 1): 50_000,
		}

		tx, err := txbuilder.BuildFundingTransaction(txbuilder.FundingParams{
			SatPoint:        bitcoin.SatPoint{OutPoint: satPointOutPoint},
			Amounts:         amounts,
			Recipient:       recipient,
			ChangeAddresses: changeAddresses,
			FeeRate:         2,
			Target:          txbuilder.Target{Value: 30_000},
		})
		require.NoError(t, err)

		require.Len(t, tx.TxIn, 1)
		require.Equal(t, satPointOutPoint, tx.TxIn[0].PreviousOutPoint)
		require.EqualValues(t, mempool.MaxRBFSequence, tx.TxIn[0].Sequence)
		require.EqualValues(t, 2, tx.Version)

		require.Len(t, tx.TxOut, 2)
		require.EqualValues(t, 30_000, tx.TxOut[0].Value)
		require.Equal(t, scriptOf(t, recipient), tx.TxOut[0].PkScript)
		require.Equal(t, scriptOf(t, changeAddr), tx.TxOut[1].PkScript)
		require.Equal(t, measureFee(tx, 2), unspentValue(tx, amounts))
	})

	t.Run("aligns satpoint offset", func(t *testing.T) {
		amounts := map[wire.OutPoint]btcutil.Amount{
			satPointOutPoint: 100_000,
		}

		tx, err := txbuilder.BuildFundingTransaction(txbuilder.FundingParams{
			SatPoint:        bitcoin.SatPoint{OutPoint: satPointOutPoint, Offset: 1_000},
			Amounts:         amounts,
			Recipient:       recipient,
			ChangeAddresses: changeAddresses,
			FeeRate:         1,
			Target:          txbuilder.Target{Value: 30_000},
		})
		require.NoError(t, err)

		require.Len(t, tx.TxIn, 1)
		require.Len(t, tx.TxOut, 3)
		require.EqualValues(t, 1_000, tx.TxOut[0].Value)
		require.Equal(t, scriptOf(t, alignAddr), tx.TxOut[0].PkScript)
		require.EqualValues(t, 30_000, tx.TxOut[1].Value)
		require.Equal(t, scriptOf(t, recipient), tx.TxOut[1].PkScript)
		require.Equal(t, scriptOf(t, changeAddr), tx.TxOut[2].PkScript)
		require.Equal(t, measureFee(tx, 1), unspentValue(tx, amounts))
	})

	t.Run("pads sub-dust alignment with front inputs", func(t *testing.T) {
		satPoint := testOutPoint(0xaa, 0)
		small := testOutPoint(0xcc, 0)
		large := testOutPoint(0xdd, 0)
		amounts := map[wire.OutPoint]btcutil.Amount{
			satPoint: 10_000,
			small:    200,
			large:    5_000,
		}

		tx, err := txbuilder.BuildFundingTransaction(txbuilder.FundingParams{
			SatPoint:        bitcoin.SatPoint{OutPoint: satPoint, Offset: 100},
			Amounts:         amounts,
			Recipient:       recipient,
			ChangeAddresses: changeAddresses,
			FeeRate:         1,
			Target:          txbuilder.Target{Value: 9_000},
		})
		require.NoError(t, err)

		// the sub-dust alignment output takes the closest under-value
		// candidate first, each padding input lands in front.
		require.Len(t, tx.TxIn, 3)
		require.Equal(t, large, tx.TxIn[0].PreviousOutPoint)
		require.Equal(t, small, tx.TxIn[1].PreviousOutPoint)
		require.Equal(t, satPoint, tx.TxIn[2].PreviousOutPoint)

		require.EqualValues(t, 100+200+5_000, tx.TxOut[0].Value)
		require.Equal(t, scriptOf(t, alignAddr), tx.TxOut[0].PkScript)
		require.EqualValues(t, 9_000, tx.TxOut[1].Value)
		require.Equal(t, scriptOf(t, recipient), tx.TxOut[1].PkScript)
		require.Equal(t, measureFee(tx, 1), unspentValue(tx, amounts))
	})

	t.Run("no change mode sweeps into recipient", func(t *testing.T) {
		amounts := map[wire.OutPoint]btcutil.Amount{
			satPointOutPoint: 20_000,
		}

		tx, err := txbuilder.BuildFundingTransaction(txbuilder.FundingParams{
			SatPoint:        bitcoin.SatPoint{OutPoint: satPointOutPoint},
			Amounts:         amounts,
			Recipient:       recipient,
			ChangeAddresses: changeAddresses,
			FeeRate:         3,
			Target:          txbuilder.Target{Value: 5_000, NoChange: true},
		})
		require.NoError(t, err)

		require.Len(t, tx.TxOut, 1)
		require.Equal(t, scriptOf(t, recipient), tx.TxOut[0].PkScript)
		require.EqualValues(t, 20_000-measureFee(tx, 3), tx.TxOut[0].Value)
	})

	t.Run("dust change folds into fee", func(t *testing.T) {
		amounts := map[wire.OutPoint]btcutil.Amount{
			satPointOutPoint: 10_200,
		}

		tx, err := txbuilder.BuildFundingTransaction(txbuilder.FundingParams{
			SatPoint:        bitcoin.SatPoint{OutPoint: satPointOutPoint},
			Amounts:         amounts,
			Recipient:       recipient,
			ChangeAddresses: changeAddresses,
			FeeRate:         1,
			Target:          txbuilder.Target{Value: 10_000},
		})
		require.NoError(t, err)

		require.Len(t, tx.TxOut, 1)
		require.EqualValues(t, 10_000, tx.TxOut[0].Value)
		require.EqualValues(t, 200, unspentValue(tx, amounts))
		require.GreaterOrEqual(t, unspentValue(tx, amounts), measureFee(tx, 1))
	})

	t.Run("spends forced inputs", func(t *testing.T) {
		forced := testOutPoint(0xee, 7)
		amounts := map[wire.OutPoint]btcutil.Amount{
			satPointOutPoint: 50_000,
			forced:           400,
		}

		tx, err := txbuilder.BuildFundingTransaction(txbuilder.FundingParams{
			SatPoint:        bitcoin.SatPoint{OutPoint: satPointOutPoint},
			Amounts:         amounts,
			Recipient:       recipient,
			ChangeAddresses: changeAddresses,
			FeeRate:         1,
			Target:          txbuilder.Target{Value: 10_000},
			ForceInputs:     []wire.OutPoint{forced},
		})
		require.NoError(t, err)

		require.Len(t, tx.TxIn, 2)
		require.Equal(t, satPointOutPoint, tx.TxIn[0].PreviousOutPoint)
		require.Equal(t, forced, tx.TxIn[1].PreviousOutPoint)
		require.Equal(t, measureFee(tx, 1), unspentValue(tx, amounts))
	})

	t.Run("selects extra funding inputs", func(t *testing.T) {
		second := testOutPoint(0xbb, 0)
		third := testOutPoint(0xcc, 0)
		amounts := map[wire.OutPoint]btcutil.Amount{
			satPointOutPoint: 1_000,
			second:           2_000,
			third:            40_000,
		}

		tx, err := txbuilder.BuildFundingTransaction(txbuilder.FundingParams{
			SatPoint:        bitcoin.SatPoint{OutPoint: satPointOutPoint},
			Amounts:         amounts,
			Recipient:       recipient,
			ChangeAddresses: changeAddresses,
			FeeRate:         1,
			Target:          txbuilder.Target{Value: 30_000},
		})
		require.NoError(t, err)

		require.Equal(t, satPointOutPoint, tx.TxIn[0].PreviousOutPoint)
		require.Equal(t, third, tx.TxIn[1].PreviousOutPoint)
		require.Equal(t, measureFee(tx, 1), unspentValue(tx, amounts))
	})

	t.Run("insufficient balance", func(t *testing.T) {
		amounts := map[wire.OutPoint]btcutil.Amount{
			satPointOutPoint: 1_000,
		}

		_, err := txbuilder.BuildFundingTransaction(txbuilder.FundingParams{
			SatPoint:        bitcoin.SatPoint{OutPoint: satPointOutPoint},
			Amounts:         amounts,
			Recipient:       recipient,
			ChangeAddresses: changeAddresses,
			FeeRate:         1,
			Target:          txbuilder.Target{Value: 5_000},
		})
		require.Error(t, err)
		require.ErrorIs(t, err, txbuilder.ErrTxBuilder)
		require.ErrorIs(t, err, bitcoin.ErrInsufficientNativeBalance)

		var insufficientErr *txbuilder.InsufficientError
		require.ErrorAs(t, err, &insufficientErr)
		require.EqualValues(t, 1_000, insufficientErr.Have)
		require.Greater(t, insufficientErr.Need, insufficientErr.Have)
	})

	t.Run("skips inscribed locked and runic outpoints", func(t *testing.T) {
		inscribed := testOutPoint(0xbb, 0)
		locked := testOutPoint(0xcc, 0)
		runic := testOutPoint(0xdd, 0)
		amounts := map[wire.OutPoint]btcutil.Amount{
			satPointOutPoint: 1_000,
			inscribed:        100_000,
			locked:           100_000,
			runic:            100_000,
		}

		_, err := txbuilder.BuildFundingTransaction(txbuilder.FundingParams{
			SatPoint:           bitcoin.SatPoint{OutPoint: satPointOutPoint},
			Amounts:            amounts,
			InscribedOutPoints: map[wire.OutPoint]struct{}{inscribed: {}},
			LockedOutPoints:    map[wire.OutPoint]struct{}{locked: {}},
			RunicOutPoints:     map[wire.OutPoint]struct{}{runic: {}},
			Recipient:          recipient,
			ChangeAddresses:    changeAddresses,
			FeeRate:            1,
			Target:             txbuilder.Target{Value: 5_000},
		})
		require.ErrorIs(t, err, bitcoin.ErrInsufficientNativeBalance)
	})

	t.Run("unknown satpoint", func(t *testing.T) {
		_, err := txbuilder.BuildFundingTransaction(txbuilder.FundingParams{
			SatPoint:        bitcoin.SatPoint{OutPoint: testOutPoint(0x99, 3)},
			Amounts:         map[wire.OutPoint]btcutil.Amount{satPointOutPoint: 1_000},
			Recipient:       recipient,
			ChangeAddresses: changeAddresses,
			FeeRate:         1,
			Target:          txbuilder.Target{Value: 500},
		})
		require.ErrorContains(t, err, "not found in wallet")
	})

	t.Run("satpoint offset beyond value", func(t *testing.T) {
		_, err := txbuilder.BuildFundingTransaction(txbuilder.FundingParams{
			SatPoint:        bitcoin.SatPoint{OutPoint: satPointOutPoint, Offset: 1_000},
			Amounts:         map[wire.OutPoint]btcutil.Amount{satPointOutPoint: 1_000},
			Recipient:       recipient,
			ChangeAddresses: changeAddresses,
			FeeRate:         1,
			Target:          txbuilder.Target{Value: 500},
		})
		require.ErrorContains(t, err, "offset exceeds utxo value")
	})
}

// measureFee rebuilds the dummy witness shape the builder prices and
// returns its virtual size at the given rate.
func measureFee(tx *wire.MsgTx, feeRate btcutil.Amount) btcutil.Amount {
	dummy := tx.Copy()
	for _, txIn := range dummy.TxIn {
		txIn.Witness = wire.TxWitness{make([]byte, 64)}
	}

	return btcutil.Amount(mempool.GetTxVirtualSize(btcutil.NewTx(dummy))) * feeRate
}

// unspentValue returns input value minus output value, the implied fee.
func unspentValue(tx *wire.MsgTx, amounts map[wire.OutPoint]btcutil.Amount) btcutil.Amount {
	var total btcutil.Amount
	for _, txIn := range tx.TxIn {
		total += amounts[txIn.PreviousOutPoint]
	}
	for _, txOut := range tx.TxOut {
		total -= btcutil.Amount(txOut.Value)
	}

	return total
}

func testOutPoint(fill byte, index uint32) wire.OutPoint {
	var hash chainhash.Hash
	for i := range hash {
		hash[i] = fill
	}

	return wire.OutPoint{Hash: hash, Index: index}
}

func testTaprootAddress(t *testing.T, seed byte) *btcutil.AddressTaproot {
	privateKey, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	address, err := btcutil.NewAddressTaproot(schnorr.SerializePubKey(privateKey.PubKey()), &chaincfg.TestNet3Params)
	require.NoError(t, err)

	return address
}

func scriptOf(t *testing.T, address btcutil.Address) []byte {
	script, err := txscript.PayToAddrScript(address)
	require.NoError(t, err)

	return script
}
