// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscribe

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/wire"
)

// ErrLowFee defines that an explicitly requested fee is below the computed minimum.
var ErrLowFee = errors.New("requested fee too low")

// schnorrSignatureSize defines the size of a BIP340 signature with the default
// sighash type, the only variable witness item whose length is not known
// before signing.
const schnorrSignatureSize = 64

// RevealTemplate describes the shape of a reveal transaction: enough to build
// it and to size it, nothing more. CommitInputIndex selects the input spending
// the commitment through the script path.
type RevealTemplate struct {
	Inputs           []wire.OutPoint
	CommitInputIndex int
	Outputs          []*wire.TxOut
	RevealScript     []byte
	ControlBlock     []byte
}

// EstimateRevealFee returns the minimum reveal fee for the template at the
// given fee rate in satoshi per virtual byte. A throwaway copy of the
// transaction gets a dummy signature witness on every input, the commit input
// additionally the reveal script and control block whose lengths are already
// exact, and the fee is the measured virtual size times the rate.
func EstimateRevealFee(template RevealTemplate, feeRate btcutil.Amount) btcutil.Amount {
	tx := buildRevealTransaction(template)
	for idx := range tx.TxIn {
		if idx == template.CommitInputIndex {
			tx.TxIn[idx].Witness = wire.TxWitness{
				make([]byte, schnorrSignatureSize),
				template.RevealScript,
				template.ControlBlock,
			}
		} else {
			tx.TxIn[idx].Witness = wire.TxWitness{make([]byte, schnorrSignatureSize)}
		}
	}

	return btcutil.Amount(mempool.GetTxVirtualSize(btcutil.NewTx(tx))) * feeRate
}

// checkExplicitRevealFee verifies the explicitly requested reveal fee covers
// the estimated minimum.
func checkExplicitRevealFee(requested, estimated btcutil.Amount) error {
	if requested < estimated {
		return errors.Join(ErrLowFee, fmt.Errorf("requested reveal_fee is too small; should be at least %d", int64(estimated)))
	}

	return nil
}

// buildRevealTransaction builds the unsigned reveal transaction for the
// template: version 2, zero locktime, every input RBF-signaling with an empty
// witness, outputs copied so later signing never mutates the template.
func buildRevealTransaction(template RevealTemplate) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	for _, outPoint := range template.Inputs {
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: outPoint,
			Sequence:         mempool.MaxRBFSequence,
		})
	}

	for _, txOut := range template.Outputs {
		tx.AddTxOut(wire.NewTxOut(txOut.Value, txOut.PkScript))
	}

	return tx
}
