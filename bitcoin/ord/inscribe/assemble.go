// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscribe

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"inscriber/bitcoin"
	"inscriber/bitcoin/ord/inscriptions"
	"inscriber/bitcoin/txbuilder"
)

// CreateTransactionsParams carries the wallet state the pipeline constructs
// against. UTXOs grows along the way: the parent output, a reused commitment
// with its extra reveal inputs, and the unbroadcast commit output are
// registered so fee accounting can treat them as spendable.
type CreateTransactionsParams struct {
	NetworkParams   *chaincfg.Params
	UTXOs           *UTXOSet
	Inscribed       map[bitcoin.SatPoint][]inscriptions.ID
	LockedOutPoints map[wire.OutPoint]struct{}
	RunicOutPoints  map[wire.OutPoint]struct{}
	ChangeAddresses [2]btcutil.Address
	ForceInputs     []wire.OutPoint
}

// Transactions is the constructed commit and reveal pair with signing
// artifacts and realized fees. Reveal is nil in commit-only mode; Commit is an
// empty version-0 placeholder when a pre-existing commitment is reused.
type Transactions struct {
	Commit             *wire.MsgTx
	Reveal             *wire.MsgTx
	Commitment         *Commitment
	CommitmentOutPoint wire.OutPoint
	RecoveryKeyPair    TweakedKeyPair
	CommitFee          btcutil.Amount
	RevealFee          btcutil.Amount
	TotalFees          btcutil.Amount
}

// CreateTransactions runs the construction pipeline: satpoint resolution and
// state checks, commitment derivation, fee estimation, commit funding or
// commitment adoption, reveal assembly, dust and weight validation, and the
// commit-input script-path signature. No I/O happens here; broadcasting and
// wallet signing are the driver's concern.
func (b *Batch) CreateTransactions(params CreateTransactionsParams) (*Transactions, error) {
	if params.NetworkParams == nil {
		return nil, errors.Join(ErrConfiguration, errors.New("network params are required"))
	}
	if params.UTXOs == nil {
		params.UTXOs = NewUTXOSet()
	}
	if b.Parent != nil {
		params.UTXOs.Register(b.Parent.Location.OutPoint, b.Parent.TxOut)
	}

	satPoint, err := b.resolveSatPoint(params)
	if err != nil {
		return nil, err
	}

	privateKey := b.Key
	if privateKey == nil {
		privateKey, err = btcec.NewPrivateKey()
		if err != nil {
			return nil, err
		}
	}
	internalKey := privateKey.PubKey()

	revealScript, err := inscriptions.BatchRevealScript(schnorr.SerializePubKey(internalKey), b.Inscriptions...)
	if err != nil {
		return nil, err
	}

	commitment, err := NewCommitment(revealScript, internalKey, params.NetworkParams)
	if err != nil {
		return nil, err
	}

	if b.Commitment != nil && !bytes.Equal(b.Commitment.TxOut.PkScript, commitment.PkScript) {
		return nil, errors.Join(ErrConfiguration, errors.New("commitment output does not match the batch reveal script"))
	}

	outputs, err := b.revealOutputs()
	if err != nil {
		return nil, err
	}

	inputs, commitInputIndex := b.revealInputs()

	changeScript, err := b.revealChangeScript(params, internalKey)
	if err != nil {
		return nil, err
	}

	estimateOutputs := outputs
	if changeScript != nil {
		estimateOutputs = append(append([]*wire.TxOut{}, outputs...), wire.NewTxOut(0, changeScript))
	}

	revealFee := EstimateRevealFee(RevealTemplate{
		Inputs:           inputs,
		CommitInputIndex: commitInputIndex,
		Outputs:          estimateOutputs,
		RevealScript:     commitment.Script,
		ControlBlock:     commitment.ControlBlock,
	}, b.RevealFeeRate)
	if b.RevealFee != 0 {
		if err = checkExplicitRevealFee(b.RevealFee, revealFee); err != nil {
			return nil, err
		}

		revealFee = b.RevealFee
	}

	commitTx, commitmentOutPoint, err := b.buildCommit(params, satPoint, commitment, revealFee)
	if err != nil {
		return nil, err
	}

	recoveryKeyPair := NewTweakedKeyPair(privateKey, commitment)
	if err = recoveryKeyPair.SelfCheck(commitment); err != nil {
		return nil, err
	}

	commitFee, err := params.UTXOs.Fee(commitTx)
	if err != nil {
		return nil, err
	}

	if b.CommitOnly {
		return &Transactions{
			Commit:             commitTx,
			Commitment:         commitment,
			CommitmentOutPoint: commitmentOutPoint,
			RecoveryKeyPair:    recoveryKeyPair,
			CommitFee:          commitFee,
			TotalFees:          commitFee,
		}, nil
	}

	inputs[commitInputIndex] = commitmentOutPoint
	if changeScript != nil {
		outputs, err = b.appendRevealChange(outputs, changeScript, revealFee)
		if err != nil {
			return nil, err
		}
	}

	revealTx := buildRevealTransaction(RevealTemplate{
		Inputs:           inputs,
		CommitInputIndex: commitInputIndex,
		Outputs:          outputs,
		RevealScript:     commitment.Script,
		ControlBlock:     commitment.ControlBlock,
	})

	if err = checkRevealOutputsDust(revealTx); err != nil {
		return nil, err
	}

	prevOuts := make([]*wire.TxOut, len(revealTx.TxIn))
	for idx, txIn := range revealTx.TxIn {
		txOut, ok := params.UTXOs.Lookup(txIn.PreviousOutPoint)
		if !ok {
			return nil, errors.Join(ErrUntrackedOutPoint, fmt.Errorf("reveal input %s", txIn.PreviousOutPoint.String()))
		}

		prevOuts[idx] = txOut
	}

	if err = signRevealTransaction(revealTx, commitInputIndex, prevOuts, commitment, privateKey); err != nil {
		return nil, err
	}

	if err = checkRevealWeight(revealTx, b.NoLimit); err != nil {
		return nil, err
	}

	realizedRevealFee, err := params.UTXOs.Fee(revealTx)
	if err != nil {
		return nil, err
	}

	return &Transactions{
		Commit:             commitTx,
		Reveal:             revealTx,
		Commitment:         commitment,
		CommitmentOutPoint: commitmentOutPoint,
		RecoveryKeyPair:    recoveryKeyPair,
		CommitFee:          commitFee,
		RevealFee:          realizedRevealFee,
		TotalFees:          commitFee + realizedRevealFee,
	}, nil
}

// resolveSatPoint picks the sat the first inscription binds to: not
// applicable when reusing a commitment, the explicit satpoint when given,
// otherwise the first cardinal wallet output. The chosen satpoint is checked
// against existing inscription locations.
func (b *Batch) resolveSatPoint(params CreateTransactionsParams) (bitcoin.SatPoint, error) {
	if b.Commitment != nil {
		return bitcoin.SatPoint{}, nil
	}

	satPoint := bitcoin.SatPoint{}
	if b.SatPoint != nil {
		satPoint = *b.SatPoint
	} else {
		var err error
		satPoint, err = selectCardinalSatPoint(params.UTXOs, params.Inscribed, params.LockedOutPoints, params.RunicOutPoints)
		if err != nil {
			return bitcoin.SatPoint{}, err
		}
	}

	if err := checkReinscription(satPoint, params.Inscribed, b.Reinscribe); err != nil {
		return bitcoin.SatPoint{}, err
	}

	return satPoint, nil
}

// revealOutputs builds the reveal outputs for the mode: the parent
// passthrough first when present, then the inscription destinations.
func (b *Batch) revealOutputs() ([]*wire.TxOut, error) {
	outputs := make([]*wire.TxOut, 0, len(b.Inscriptions)+2)
	if b.Parent != nil {
		parentScript, err := txscript.PayToAddrScript(b.Parent.Destination)
		if err != nil {
			return nil, err
		}

		outputs = append(outputs, wire.NewTxOut(b.Parent.TxOut.Value, parentScript))
	}

	switch b.Mode {
	case ModeSeparateOutputs:
		for _, destination := range b.Destinations {
			script, err := txscript.PayToAddrScript(destination)
			if err != nil {
				return nil, err
			}

			outputs = append(outputs, wire.NewTxOut(int64(b.Postage), script))
		}
	case ModeSharedOutput, ModeSameSat:
		script, err := txscript.PayToAddrScript(b.Destinations[0])
		if err != nil {
			return nil, err
		}

		outputs = append(outputs, wire.NewTxOut(int64(b.TotalPostage()), script))
	}

	return outputs, nil
}

// revealInputs builds the reveal input outpoints: the parent location first
// when present, a null placeholder for the commit input until it resolves,
// then the extra reveal inputs.
func (b *Batch) revealInputs() (_ []wire.OutPoint, commitInputIndex int) {
	inputs := make([]wire.OutPoint, 0, len(b.RevealInputs)+2)
	if b.Parent != nil {
		inputs = append(inputs, b.Parent.Location.OutPoint)
	}

	commitInputIndex = len(inputs)
	inputs = append(inputs, wire.OutPoint{Index: wire.MaxPrevOutIndex})
	for _, revealInput := range b.RevealInputs {
		inputs = append(inputs, revealInput.OutPoint)
	}

	return inputs, commitInputIndex
}

// revealChangeScript returns the script of the trailing reveal change output
// used with a reused commitment: the chained next-batch commitment when one
// is configured, the first wallet change address otherwise. Nil without a
// commitment; fresh reveals carry no change.
func (b *Batch) revealChangeScript(params CreateTransactionsParams, internalKey *btcec.PublicKey) ([]byte, error) {
	if b.Commitment == nil {
		return nil, nil
	}

	if len(b.NextInscriptions) != 0 {
		nextScript, err := inscriptions.BatchRevealScript(schnorr.SerializePubKey(internalKey), b.NextInscriptions...)
		if err != nil {
			return nil, err
		}

		nextCommitment, err := NewCommitment(nextScript, internalKey, params.NetworkParams)
		if err != nil {
			return nil, err
		}

		return nextCommitment.PkScript, nil
	}

	if params.ChangeAddresses[0] == nil {
		return nil, errors.Join(ErrConfiguration, errors.New("change address is required for commitment reuse"))
	}

	return txscript.PayToAddrScript(params.ChangeAddresses[0])
}

// appendRevealChange appends the trailing change output of a reused
// commitment: everything the commitment and the extra inputs carry beyond
// total postage and the reveal fee. Sub-dust change folds into the fee.
func (b *Batch) appendRevealChange(outputs []*wire.TxOut, changeScript []byte, revealFee btcutil.Amount) ([]*wire.TxOut, error) {
	available := btcutil.Amount(b.Commitment.TxOut.Value)
	for _, revealInput := range b.RevealInputs {
		available += btcutil.Amount(revealInput.TxOut.Value)
	}

	change := available - b.TotalPostage() - revealFee
	if change < 0 {
		return nil, txbuilder.NewInsufficientError(b.TotalPostage()+revealFee, available)
	}

	changeOutput := wire.NewTxOut(int64(change), changeScript)
	if mempool.IsDust(changeOutput, mempool.DefaultMinRelayTxFee) {
		return outputs, nil
	}

	return append(outputs, changeOutput), nil
}

// buildCommit funds a fresh commit transaction through coin selection, or
// adopts the caller-supplied commitment with an empty placeholder commit. The
// commitment output is registered into the store either way so the reveal fee
// computes against it.
func (b *Batch) buildCommit(
	params CreateTransactionsParams,
	satPoint bitcoin.SatPoint,
	commitment *Commitment,
	revealFee btcutil.Amount,
) (*wire.MsgTx, wire.OutPoint, error) {
	if b.Commitment != nil {
		params.UTXOs.Register(b.Commitment.OutPoint, b.Commitment.TxOut)
		for _, revealInput := range b.RevealInputs {
			params.UTXOs.Register(revealInput.OutPoint, revealInput.TxOut)
		}

		return wire.NewMsgTx(0), b.Commitment.OutPoint, nil
	}

	fundingTx, err := txbuilder.BuildFundingTransaction(txbuilder.FundingParams{
		SatPoint:           satPoint,
		Amounts:            params.UTXOs.Amounts(),
		InscribedOutPoints: inscribedOutPoints(params.Inscribed),
		LockedOutPoints:    params.LockedOutPoints,
		RunicOutPoints:     params.RunicOutPoints,
		Recipient:          commitment.Address,
		ChangeAddresses:    params.ChangeAddresses,
		FeeRate:            b.CommitFeeRate,
		Target:             txbuilder.Target{Value: revealFee + b.TotalPostage(), NoChange: b.CommitOnly},
		ForceInputs:        params.ForceInputs,
	})
	if err != nil {
		return nil, wire.OutPoint{}, err
	}

	txID := fundingTx.TxHash()
	for vout, txOut := range fundingTx.TxOut {
		if bytes.Equal(txOut.PkScript, commitment.PkScript) {
			outPoint := wire.OutPoint{Hash: txID, Index: uint32(vout)}
			params.UTXOs.Register(outPoint, txOut)

			return fundingTx, outPoint, nil
		}
	}

	return nil, wire.OutPoint{}, errors.New("commit transaction has no output paying the commit address")
}

// inscribedOutPoints flattens inscription locations to the outpoints carrying them.
func inscribedOutPoints(inscribed map[bitcoin.SatPoint][]inscriptions.ID) map[wire.OutPoint]struct{} {
	outPoints := make(map[wire.OutPoint]struct{}, len(inscribed))
	for satPoint := range inscribed {
		outPoints[satPoint.OutPoint] = struct{}{}
	}

	return outPoints
}
