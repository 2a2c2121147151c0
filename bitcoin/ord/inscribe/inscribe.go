// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

// Package inscribe constructs commit and reveal transaction pairs that embed
// content on specific satoshis through single-leaf taproot script-path
// commitments. The construction pipeline is pure; all node interaction goes
// through the Wallet interface of the driver.
package inscribe

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"inscriber/bitcoin/txbuilder"
)

// ErrBroadcast defines errors class for transaction broadcast failures.
var ErrBroadcast = errors.New("broadcast failed")

// SignInput describes a prevout for an input the wallet signs but may not see
// yet, such as the unbroadcast commit output.
type SignInput struct {
	OutPoint wire.OutPoint
	PkScript []byte
	Value    btcutil.Amount
}

// Wallet is the node-wallet surface the driver needs.
type Wallet interface {
	// SignTransaction signs every input the wallet holds keys for, leaving
	// the witnesses of other inputs untouched.
	SignTransaction(ctx context.Context, tx *wire.MsgTx, inputs []SignInput) (*wire.MsgTx, error)
	// BroadcastTransaction submits the transaction to the network.
	BroadcastTransaction(ctx context.Context, tx *wire.MsgTx) (*chainhash.Hash, error)
	// DecodeTransactionID returns the canonical txid of a transaction
	// without broadcasting it.
	DecodeTransactionID(ctx context.Context, tx *wire.MsgTx) (*chainhash.Hash, error)
	// ImportRecoveryDescriptor backs a recovery descriptor up into the node
	// wallet and returns its canonical, checksummed form.
	ImportRecoveryDescriptor(ctx context.Context, descriptor string) (string, error)
}

// Inscribe drives a full run: construction, wallet signing, recovery-key
// backup, then broadcast — or decode and dump when broadcasting is off.
func Inscribe(ctx context.Context, batch *Batch, params CreateTransactionsParams, wallet Wallet) (*Output, error) {
	txs, err := batch.CreateTransactions(params)
	if err != nil {
		return nil, err
	}

	output := NewOutput(batch, txs)

	if batch.CommitOnly && batch.Key == nil {
		// The generated key is the only way to ever reveal this commitment.
		output.RevealKey, err = txs.RecoveryKeyPair.RevealWIF(params.NetworkParams)
		if err != nil {
			return nil, err
		}
	}

	if batch.DryRun {
		return output, nil
	}

	commitTx := txs.Commit
	if batch.Commitment == nil {
		commitTx, err = wallet.SignTransaction(ctx, txs.Commit, nil)
		if err != nil {
			return nil, err
		}
	}

	revealTx := txs.Reveal
	if revealTx != nil && (batch.Parent != nil || len(batch.RevealInputs) != 0) {
		revealTx, err = wallet.SignTransaction(ctx, revealTx, revealSignInputs(batch, params, txs))
		if err != nil {
			return nil, err
		}
	}

	if !batch.NoBackup && !batch.CommitOnly && batch.Commitment == nil {
		descriptor, err := txs.RecoveryKeyPair.RecoveryDescriptor(params.NetworkParams)
		if err != nil {
			return nil, err
		}

		output.RecoveryDescriptor, err = wallet.ImportRecoveryDescriptor(ctx, descriptor)
		if err != nil {
			return nil, err
		}
	}

	if batch.Dump {
		if err = dumpTransactions(output, batch, params, txs, commitTx, revealTx); err != nil {
			return nil, err
		}
	}

	if batch.Dump || batch.NoBroadcast {
		return decodeTxIDs(ctx, output, batch, wallet, commitTx, revealTx)
	}

	if batch.Commitment == nil {
		commitTxID, err := wallet.BroadcastTransaction(ctx, commitTx)
		if err != nil {
			return nil, errors.Join(ErrBroadcast, err)
		}

		output.Commit = commitTxID.String()
	}

	if revealTx != nil {
		revealTxID, err := wallet.BroadcastTransaction(ctx, revealTx)
		if err != nil {
			if batch.Commitment == nil {
				return nil, errors.Join(ErrBroadcast, fmt.Errorf(
					"Failed to send reveal transaction: %v\nCommit tx %s will be recovered once mined", err, output.Commit,
				))
			}

			return nil, errors.Join(ErrBroadcast, err)
		}

		output.Reveal = revealTxID.String()
		output.RevealBroadcast = true
	}

	return output, nil
}

// revealSignInputs lists prevout metadata for the inputs the wallet signs:
// the commitment output the node cannot see before broadcast, plus the extra
// reveal inputs. The parent input is a confirmed wallet output the node
// resolves on its own.
func revealSignInputs(batch *Batch, params CreateTransactionsParams, txs *Transactions) []SignInput {
	inputs := make([]SignInput, 0, len(batch.RevealInputs)+1)
	if txOut, ok := params.UTXOs.Lookup(txs.CommitmentOutPoint); ok {
		inputs = append(inputs, SignInput{
			OutPoint: txs.CommitmentOutPoint,
			PkScript: txOut.PkScript,
			Value:    btcutil.Amount(txOut.Value),
		})
	}

	for _, revealInput := range batch.RevealInputs {
		inputs = append(inputs, SignInput{
			OutPoint: revealInput.OutPoint,
			PkScript: revealInput.TxOut.PkScript,
			Value:    btcutil.Amount(revealInput.TxOut.Value),
		})
	}

	return inputs
}

// dumpTransactions fills the raw artifacts of the run: signed transaction
// hex, the unsigned commit funding PSBT and the recovery descriptor.
func dumpTransactions(
	output *Output,
	batch *Batch,
	params CreateTransactionsParams,
	txs *Transactions,
	commitTx, revealTx *wire.MsgTx,
) (err error) {
	if batch.Commitment == nil {
		output.CommitHex, err = txbuilder.TransactionToHex(commitTx)
		if err != nil {
			return err
		}

		output.CommitPSBT, err = txbuilder.BuildFundingPSBT(txs.Commit, params.UTXOs.Entries())
		if err != nil {
			return err
		}
	}

	if revealTx != nil {
		output.RevealHex, err = txbuilder.TransactionToHex(revealTx)
		if err != nil {
			return err
		}
	}

	if output.RecoveryDescriptor == "" {
		output.RecoveryDescriptor, err = txs.RecoveryKeyPair.RecoveryDescriptor(params.NetworkParams)
		if err != nil {
			return err
		}
	}

	return nil
}

// decodeTxIDs resolves canonical txids through the node decoder when nothing
// gets broadcast.
func decodeTxIDs(ctx context.Context, output *Output, batch *Batch, wallet Wallet, commitTx, revealTx *wire.MsgTx) (*Output, error) {
	if batch.Commitment == nil {
		commitTxID, err := wallet.DecodeTransactionID(ctx, commitTx)
		if err != nil {
			return nil, err
		}

		output.Commit = commitTxID.String()
	}

	if revealTx != nil {
		revealTxID, err := wallet.DecodeTransactionID(ctx, revealTx)
		if err != nil {
			return nil, err
		}

		output.Reveal = revealTxID.String()
	}

	return output, nil
}
