// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscribe_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"inscriber/bitcoin"
	"inscriber/bitcoin/ord/inscribe"
	"inscriber/bitcoin/ord/inscriptions"
	"inscriber/bitcoin/txbuilder"
)

// walletStub records every node-wallet interaction of a run. Transactions
// pass through signing unchanged; broadcasts and decodes answer with the
// canonical txid; imports canonicalize by appending a checksum.
type walletStub struct {
	signs           []signCall
	broadcasts      []*wire.MsgTx
	decodes         []*wire.MsgTx
	imports         []string
	failBroadcastAt int
}

type signCall struct {
	tx     *wire.MsgTx
	inputs []inscribe.SignInput
}

func (w *walletStub) SignTransaction(_ context.Context, tx *wire.MsgTx, inputs []inscribe.SignInput) (*wire.MsgTx, error) {
	w.signs = append(w.signs, signCall{tx: tx, inputs: inputs})

	return tx, nil
}

func (w *walletStub) BroadcastTransaction(_ context.Context, tx *wire.MsgTx) (*chainhash.Hash, error) {
	if w.failBroadcastAt == len(w.broadcasts)+1 {
		return nil, errors.New("bad-txns-inputs-missingorspent")
	}

	w.broadcasts = append(w.broadcasts, tx)
	txID := tx.TxHash()

	return &txID, nil
}

func (w *walletStub) DecodeTransactionID(_ context.Context, tx *wire.MsgTx) (*chainhash.Hash, error) {
	w.decodes = append(w.decodes, tx)
	txID := tx.TxHash()

	return &txID, nil
}

func (w *walletStub) ImportRecoveryDescriptor(_ context.Context, descriptor string) (string, error) {
	w.imports = append(w.imports, descriptor)

	return descriptor + "#tq09ap3v", nil
}

func TestInscribe(t *testing.T) {
	ctx := context.Background()

	var (
		networkParams   = &chaincfg.TestNet3Params
		destination     = testTaprootAddress(t, 0x01)
		changeAddresses = [2]btcutil.Address{testTaprootAddress(t, 0x02), testTaprootAddress(t, 0x03)}
		walletScript    = scriptOf(t, testTaprootAddress(t, 0x04))
		walletOutPoint  = testOutPoint(0xaa, 0)
	)

	newParams := func() inscribe.CreateTransactionsParams {
		utxos := inscribe.NewUTXOSet()
		utxos.Register(walletOutPoint, wire.NewTxOut(100_000, walletScript))

		return inscribe.CreateTransactionsParams{
			NetworkParams:   networkParams,
			UTXOs:           utxos,
			ChangeAddresses: changeAddresses,
		}
	}

	newBatch := func(tweak func(*inscribe.Batch)) *inscribe.Batch {
		base := inscribe.Batch{
			Inscriptions:  []*inscriptions.Inscription{textInscription("driver run")},
			Mode:          inscribe.ModeSharedOutput,
			Destinations:  []btcutil.Address{destination},
			RevealFeeRate: 2,
		}
		if tweak != nil {
			tweak(&base)
		}

		batch, err := inscribe.NewBatch(base)
		require.NoError(t, err)

		return batch
	}

	t.Run("dry run touches no wallet", func(t *testing.T) {
		wallet := &walletStub{}
		output, err := inscribe.Inscribe(ctx, newBatch(func(b *inscribe.Batch) { b.DryRun = true }), newParams(), wallet)
		require.NoError(t, err)

		require.Empty(t, wallet.signs)
		require.Empty(t, wallet.broadcasts)
		require.Empty(t, wallet.decodes)
		require.Empty(t, wallet.imports)

		require.NotEmpty(t, output.Commit)
		require.NotEmpty(t, output.Reveal)
		require.False(t, output.RevealBroadcast)
		require.NotZero(t, output.TotalFees)

		require.Len(t, output.Inscriptions, 1)
		require.Equal(t, output.Reveal+"i0", output.Inscriptions[0].ID)
		require.Equal(t, output.Reveal+":0:0", output.Inscriptions[0].Location)
		require.Equal(t, destination.String(), output.Inscriptions[0].Destination)
	})

	t.Run("signs backs up and broadcasts", func(t *testing.T) {
		wallet := &walletStub{}
		output, err := inscribe.Inscribe(ctx, newBatch(nil), newParams(), wallet)
		require.NoError(t, err)

		// one wallet signature for the commit; the reveal needs none.
		require.Len(t, wallet.signs, 1)
		require.Nil(t, wallet.signs[0].inputs)

		require.Len(t, wallet.imports, 1)
		require.True(t, strings.HasPrefix(wallet.imports[0], "rawtr("))
		require.Equal(t, wallet.imports[0]+"#tq09ap3v", output.RecoveryDescriptor)

		require.Len(t, wallet.broadcasts, 2)
		require.Equal(t, wallet.broadcasts[0].TxHash().String(), output.Commit)
		require.Equal(t, wallet.broadcasts[1].TxHash().String(), output.Reveal)
		require.True(t, output.RevealBroadcast)
		require.Empty(t, wallet.decodes)
	})

	t.Run("no backup skips the import", func(t *testing.T) {
		wallet := &walletStub{}
		output, err := inscribe.Inscribe(ctx, newBatch(func(b *inscribe.Batch) { b.NoBackup = true }), newParams(), wallet)
		require.NoError(t, err)

		require.Empty(t, wallet.imports)
		require.Empty(t, output.RecoveryDescriptor)
		require.True(t, output.RevealBroadcast)
	})

	t.Run("dump decodes and returns raw artifacts", func(t *testing.T) {
		wallet := &walletStub{}
		output, err := inscribe.Inscribe(ctx, newBatch(func(b *inscribe.Batch) { b.Dump = true }), newParams(), wallet)
		require.NoError(t, err)

		require.Empty(t, wallet.broadcasts)
		require.Len(t, wallet.decodes, 2)
		require.False(t, output.RevealBroadcast)

		commitTx, err := txbuilder.TransactionFromHex(output.CommitHex)
		require.NoError(t, err)
		require.Equal(t, output.Commit, commitTx.TxHash().String())

		revealTx, err := txbuilder.TransactionFromHex(output.RevealHex)
		require.NoError(t, err)
		require.Equal(t, output.Reveal, revealTx.TxHash().String())

		require.True(t, strings.HasPrefix(output.CommitPSBT, "cHNidP8"))
		require.True(t, strings.HasSuffix(output.RecoveryDescriptor, "#tq09ap3v"))
	})

	t.Run("dump without backup keeps the raw descriptor", func(t *testing.T) {
		wallet := &walletStub{}
		output, err := inscribe.Inscribe(ctx, newBatch(func(b *inscribe.Batch) {
			b.Dump = true
			b.NoBackup = true
		}), newParams(), wallet)
		require.NoError(t, err)

		require.Empty(t, wallet.imports)
		require.True(t, strings.HasPrefix(output.RecoveryDescriptor, "rawtr("))
		require.NotContains(t, output.RecoveryDescriptor, "#")
	})

	t.Run("no broadcast decodes only", func(t *testing.T) {
		wallet := &walletStub{}
		output, err := inscribe.Inscribe(ctx, newBatch(func(b *inscribe.Batch) { b.NoBroadcast = true }), newParams(), wallet)
		require.NoError(t, err)

		require.Empty(t, wallet.broadcasts)
		require.Len(t, wallet.decodes, 2)
		require.Empty(t, output.CommitHex)
		require.Empty(t, output.RevealHex)
		require.False(t, output.RevealBroadcast)
	})

	t.Run("reveal broadcast failure points at the commit", func(t *testing.T) {
		wallet := &walletStub{failBroadcastAt: 2}
		_, err := inscribe.Inscribe(ctx, newBatch(nil), newParams(), wallet)
		require.ErrorIs(t, err, inscribe.ErrBroadcast)
		require.ErrorContains(t, err, "Failed to send reveal transaction")
		require.ErrorContains(t, err, "will be recovered once mined")
		require.Len(t, wallet.broadcasts, 1)
	})

	t.Run("commit only returns the generated reveal key", func(t *testing.T) {
		wallet := &walletStub{}
		output, err := inscribe.Inscribe(ctx, newBatch(func(b *inscribe.Batch) { b.CommitOnly = true }), newParams(), wallet)
		require.NoError(t, err)

		wif, err := btcutil.DecodeWIF(output.RevealKey)
		require.NoError(t, err)
		require.True(t, wif.CompressPubKey)

		require.Empty(t, output.Inscriptions)
		require.Empty(t, output.Reveal)
		require.False(t, output.RevealBroadcast)

		// the commit broadcasts, nothing gets backed up: the reveal key above
		// is the recovery path.
		require.Len(t, wallet.broadcasts, 1)
		require.Empty(t, wallet.imports)
		require.Equal(t, wallet.broadcasts[0].TxHash().String(), output.Commit)
	})

	t.Run("parent input goes through the wallet", func(t *testing.T) {
		parentID := inscriptions.ID{TxID: mustHash(t, "75a07d04983f7d8cd29e2a72c4bb72be542ba5ffaf1d47b62b6bd288ab4dad02"), Index: 0}
		parentDestination := testTaprootAddress(t, 0x06)
		parentOutPoint := testOutPoint(0xbc, 1)

		batch := newBatch(func(b *inscribe.Batch) {
			b.Inscriptions = []*inscriptions.Inscription{childInscription("child", parentID)}
			b.Parent = &inscribe.ParentInfo{
				ID:          parentID,
				Destination: parentDestination,
				Location:    bitcoin.SatPoint{OutPoint: parentOutPoint},
				TxOut:       wire.NewTxOut(8_000, scriptOf(t, testTaprootAddress(t, 0x05))),
			}
		})

		wallet := &walletStub{}
		output, err := inscribe.Inscribe(ctx, batch, newParams(), wallet)
		require.NoError(t, err)

		// commit first, then the reveal with the commitment prevout the node
		// cannot resolve before the commit confirms.
		require.Len(t, wallet.signs, 2)
		require.Len(t, wallet.signs[1].inputs, 1)
		require.Equal(t, output.Commitment, wallet.signs[1].inputs[0].OutPoint.String())
		require.NotEmpty(t, wallet.signs[1].inputs[0].PkScript)

		require.Equal(t, parentID.String(), output.Parent)
		require.Equal(t, output.Reveal+":1:0", output.Inscriptions[0].Location)
	})

	t.Run("reused commitment skips commit steps", func(t *testing.T) {
		key, err := btcec.NewPrivateKey()
		require.NoError(t, err)

		inscription := textInscription("driver run")
		revealScript, err := inscriptions.BatchRevealScript(schnorr.SerializePubKey(key.PubKey()), inscription)
		require.NoError(t, err)
		commitment, err := inscribe.NewCommitment(revealScript, key.PubKey(), networkParams)
		require.NoError(t, err)

		batch := newBatch(func(b *inscribe.Batch) {
			b.Key = key
			b.Commitment = &inscribe.PrevOut{
				OutPoint: testOutPoint(0xcd, 0),
				TxOut:    wire.NewTxOut(60_000, commitment.PkScript),
			}
		})

		wallet := &walletStub{}
		output, err := inscribe.Inscribe(ctx, batch, newParams(), wallet)
		require.NoError(t, err)

		require.Empty(t, wallet.signs)
		require.Empty(t, wallet.imports)
		require.Len(t, wallet.broadcasts, 1)

		require.Empty(t, output.Commit)
		require.Equal(t, wallet.broadcasts[0].TxHash().String(), output.Reveal)
		require.True(t, output.RevealBroadcast)
	})
}
