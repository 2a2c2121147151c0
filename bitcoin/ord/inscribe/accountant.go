// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscribe

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// ErrUntrackedOutPoint defines that a transaction spends an output the store does not know.
var ErrUntrackedOutPoint = errors.New("outpoint is not tracked")

// UTXOSet tracks outputs the pipeline may spend: the wallet's unspent outputs
// plus outputs resolved or created along the way (a reused commitment, extra
// reveal inputs, the unbroadcast commit output). Single-owner, not safe for
// concurrent use.
type UTXOSet struct {
	outputs map[wire.OutPoint]*wire.TxOut
}

// NewUTXOSet is a constructor for UTXOSet.
func NewUTXOSet() *UTXOSet {
	return &UTXOSet{outputs: make(map[wire.OutPoint]*wire.TxOut)}
}

// Register adds the output to the set, overwriting a previous entry.
func (s *UTXOSet) Register(outPoint wire.OutPoint, txOut *wire.TxOut) {
	s.outputs[outPoint] = txOut
}

// Lookup returns the output the outpoint refers to.
func (s *UTXOSet) Lookup(outPoint wire.OutPoint) (*wire.TxOut, bool) {
	txOut, ok := s.outputs[outPoint]

	return txOut, ok
}

// Contains returns true if the outpoint is tracked.
func (s *UTXOSet) Contains(outPoint wire.OutPoint) bool {
	_, ok := s.outputs[outPoint]

	return ok
}

// Amounts returns outpoint to value mapping of the tracked outputs.
func (s *UTXOSet) Amounts() map[wire.OutPoint]btcutil.Amount {
	amounts := make(map[wire.OutPoint]btcutil.Amount, len(s.outputs))
	for outPoint, txOut := range s.outputs {
		amounts[outPoint] = btcutil.Amount(txOut.Value)
	}

	return amounts
}

// Entries returns a copy of the tracked outpoint to output mapping.
func (s *UTXOSet) Entries() map[wire.OutPoint]*wire.TxOut {
	entries := make(map[wire.OutPoint]*wire.TxOut, len(s.outputs))
	for outPoint, txOut := range s.outputs {
		entries[outPoint] = txOut
	}

	return entries
}

// SortedOutPoints returns tracked outpoints in total byte order, hash then
// index, so selection walks the set deterministically.
func (s *UTXOSet) SortedOutPoints() []wire.OutPoint {
	outPoints := make([]wire.OutPoint, 0, len(s.outputs))
	for outPoint := range s.outputs {
		outPoints = append(outPoints, outPoint)
	}

	sort.Slice(outPoints, func(i, j int) bool {
		if cmp := bytes.Compare(outPoints[i].Hash[:], outPoints[j].Hash[:]); cmp != 0 {
			return cmp < 0
		}

		return outPoints[i].Index < outPoints[j].Index
	})

	return outPoints
}

// Fee returns the realized fee of the transaction, the sum of its input values
// minus the sum of its output values. Every input must be tracked.
func (s *UTXOSet) Fee(tx *wire.MsgTx) (btcutil.Amount, error) {
	var inputsValue btcutil.Amount
	for _, txIn := range tx.TxIn {
		txOut, ok := s.outputs[txIn.PreviousOutPoint]
		if !ok {
			return 0, errors.Join(ErrUntrackedOutPoint, fmt.Errorf("input %s", txIn.PreviousOutPoint.String()))
		}

		inputsValue += btcutil.Amount(txOut.Value)
	}

	var outputsValue btcutil.Amount
	for _, txOut := range tx.TxOut {
		outputsValue += btcutil.Amount(txOut.Value)
	}

	return inputsValue - outputsValue, nil
}
