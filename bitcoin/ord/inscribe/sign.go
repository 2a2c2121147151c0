// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscribe

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// signRevealTransaction computes the BIP341 script-path signature hash for
// the commit input over all prevouts in input order, signs it with the reveal
// key and attaches the witness stack [signature, reveal script, control
// block]. Other inputs keep their witnesses untouched; the wallet signs those
// when a parent or extra inputs are present.
func signRevealTransaction(
	tx *wire.MsgTx,
	commitInputIndex int,
	prevOuts []*wire.TxOut,
	commitment *Commitment,
	privateKey *btcec.PrivateKey,
) error {
	if len(prevOuts) != len(tx.TxIn) {
		return fmt.Errorf("have %d prevouts for %d inputs", len(prevOuts), len(tx.TxIn))
	}

	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for idx, txIn := range tx.TxIn {
		if prevOuts[idx] == nil {
			return errors.New("missing prevout")
		}

		fetcher.AddPrevOut(txIn.PreviousOutPoint, prevOuts[idx])
	}

	sigHash, err := txscript.CalcTapscriptSignaturehash(
		txscript.NewTxSigHashes(tx, fetcher),
		txscript.SigHashDefault,
		tx,
		commitInputIndex,
		fetcher,
		commitment.TapLeaf(),
	)
	if err != nil {
		return err
	}

	signature, err := schnorr.Sign(privateKey, sigHash)
	if err != nil {
		return err
	}

	tx.TxIn[commitInputIndex].Witness = wire.TxWitness{
		signature.Serialize(),
		commitment.Script,
		commitment.ControlBlock,
	}

	return nil
}
