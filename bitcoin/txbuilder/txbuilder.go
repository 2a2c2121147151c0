// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"inscriber/bitcoin"
)

// ErrTxBuilder defines errors class for funding transaction construction.
var ErrTxBuilder = errors.New("funding tx construction")

const (
	// txVersion defines transaction version for this builder.
	txVersion int32 = 2
	// signHashType define signature hash type for input signing.
	signHashType = txscript.SigHashDefault
	// schnorrSignatureSize defines the dummy witness item size used to
	// measure the virtual size of unsigned key-path inputs.
	schnorrSignatureSize = 64
	// additionalInputVBytes defines the rough virtual size a taproot
	// key-path input adds, used only to aim candidate selection.
	additionalInputVBytes = 58
)

// preference steers candidate selection around the needed value.
type preference int

const (
	// preferOver picks the smallest candidate covering the needed value,
	// falling back to the largest available.
	preferOver preference = iota
	// preferUnder picks the closest candidate below the needed value,
	// falling back to the smallest above.
	preferUnder
)

// Target describes the funding goal for the recipient output.
type Target struct {
	// Value the recipient output must carry.
	Value btcutil.Amount
	// NoChange folds all excess input value into the recipient output
	// instead of a change output; Value then acts as the required minimum.
	NoChange bool
}

// FundingParams describes data needed to build a funding transaction that
// delivers the sat of SatPoint as the first sat of the recipient output.
type FundingParams struct {
	SatPoint           bitcoin.SatPoint
	Amounts            map[wire.OutPoint]btcutil.Amount // candidate wallet outputs.
	InscribedOutPoints map[wire.OutPoint]struct{}       // never spendable as padding or fees.
	LockedOutPoints    map[wire.OutPoint]struct{}
	RunicOutPoints     map[wire.OutPoint]struct{}
	Recipient          btcutil.Address
	ChangeAddresses    [2]btcutil.Address // [0] takes the alignment output, [1] the change output.
	FeeRate            btcutil.Amount     // satoshi per virtual byte.
	Target             Target
	ForceInputs        []wire.OutPoint // spent unconditionally, after the satpoint input.
}

// BuildFundingTransaction constructs the unsigned funding transaction.
// All inputs are assumed taproot key-path spends of the wallet; the fee is
// measured exactly on the dummy-signed shape at the requested rate.
//
//	Tx struct
//	inputs:
//	┌─────────┬────────────────┬────────────────────────────────────────┐
//	│  index  │      type      │              description               │
//	├=========┼================┼========================================┤
//	│   0 - k │ padding inputs │ optional, lift the alignment output    │
//	│         │                │ over its dust threshold.               │
//	├─────────┼────────────────┼────────────────────────────────────────┤
//	│     k+1 │ satpoint input │ carries the sat to deliver.            │
//	├─────────┼────────────────┼────────────────────────────────────────┤
//	│ k+2 - n │ funding inputs │ forced inputs, then selected cardinal  │
//	│         │                │ outputs covering target and fee.       │
//	└─────────┴────────────────┴────────────────────────────────────────┘
//
//	outputs:
//	┌─────────┬────────────────┬────────────────────────────────────────┐
//	│  index  │      type      │              description               │
//	├=========┼================┼========================================┤
//	│       0 │ alignment      │ optional, returns the sats preceding   │
//	│         │                │ the target sat to the wallet.          │
//	├─────────┼────────────────┼────────────────────────────────────────┤
//	│     0|1 │ recipient      │ target value, starts with the sat.     │
//	├─────────┼────────────────┼────────────────────────────────────────┤
//	│    last │ change         │ optional, remaining value when over    │
//	│         │                │ dust and change mode is on.            │
//	└─────────┴────────────────┴────────────────────────────────────────┘
func BuildFundingTransaction(params FundingParams) (_ *wire.MsgTx, err error) {
	defer func() {
		if err != nil {
			err = errors.Join(ErrTxBuilder, err)
		}
	}()

	b, err := newFundingBuilder(params)
	if err != nil {
		return nil, err
	}

	if err = b.padAlignment(); err != nil {
		return nil, err
	}

	for {
		outputs, done := b.finalizeOutputs()
		if done {
			return b.intoTransaction(outputs), nil
		}

		if err = b.addFundingInput(); err != nil {
			return nil, err
		}
	}
}

// fundingBuilder accumulates inputs until the funding goal is reachable.
type fundingBuilder struct {
	params FundingParams

	inputs    []wire.OutPoint
	used      map[wire.OutPoint]struct{}
	totalIn   btcutil.Amount
	alignment btcutil.Amount // value of the alignment output, 0 when none.

	recipientScript []byte
	alignScript     []byte
	changeScript    []byte
}

// newFundingBuilder validates params and seeds the builder with the satpoint
// input and the forced inputs.
func newFundingBuilder(params FundingParams) (*fundingBuilder, error) {
	if params.Recipient == nil {
		return nil, errors.New("recipient address is required")
	}
	if params.ChangeAddresses[0] == nil || params.ChangeAddresses[1] == nil {
		return nil, errors.New("two change addresses are required")
	}
	if params.FeeRate <= 0 {
		return nil, errors.New("fee rate is required")
	}
	if params.Target.Value <= 0 {
		return nil, errors.New("target value is required")
	}

	satValue, ok := params.Amounts[params.SatPoint.OutPoint]
	if !ok {
		return nil, fmt.Errorf("satpoint %s not found in wallet", params.SatPoint.String())
	}
	if params.SatPoint.Offset >= uint64(satValue) {
		return nil, fmt.Errorf("satpoint %s offset exceeds utxo value %d", params.SatPoint.String(), int64(satValue))
	}

	b := &fundingBuilder{
		params:    params,
		inputs:    []wire.OutPoint{params.SatPoint.OutPoint},
		used:      map[wire.OutPoint]struct{}{params.SatPoint.OutPoint: {}},
		totalIn:   satValue,
		alignment: btcutil.Amount(params.SatPoint.Offset),
	}

	var err error
	if b.recipientScript, err = txscript.PayToAddrScript(params.Recipient); err != nil {
		return nil, err
	}
	if b.alignScript, err = txscript.PayToAddrScript(params.ChangeAddresses[0]); err != nil {
		return nil, err
	}
	if b.changeScript, err = txscript.PayToAddrScript(params.ChangeAddresses[1]); err != nil {
		return nil, err
	}

	for _, outPoint := range params.ForceInputs {
		if _, ok := b.used[outPoint]; ok {
			continue
		}

		value, ok := params.Amounts[outPoint]
		if !ok {
			return nil, fmt.Errorf("forced input %s not found in wallet", outPoint.String())
		}

		b.inputs = append(b.inputs, outPoint)
		b.used[outPoint] = struct{}{}
		b.totalIn += value
	}

	return b, nil
}

// padAlignment lifts a sub-dust alignment output over its dust threshold by
// inserting cardinal inputs in front of the satpoint input; their sats land
// before the target sat and flow into the alignment output.
func (b *fundingBuilder) padAlignment() error {
	if b.alignment == 0 {
		return nil
	}

	dustThreshold := btcutil.Amount(mempool.GetDustThreshold(wire.NewTxOut(0, b.alignScript)))
	for b.alignment < dustThreshold {
		outPoint, value, ok := b.selectCardinal(dustThreshold-b.alignment, preferUnder)
		if !ok {
			return NewInsufficientError(b.params.Target.Value, b.available())
		}

		b.inputs = append([]wire.OutPoint{outPoint}, b.inputs...)
		b.totalIn += value
		b.alignment += value
	}

	return nil
}

// available returns the input value left past the alignment output.
func (b *fundingBuilder) available() btcutil.Amount {
	return b.totalIn - b.alignment
}

// finalizeOutputs tries to settle the output side with the inputs gathered so
// far. Change below dust folds into the fee rather than producing an output.
func (b *fundingBuilder) finalizeOutputs() ([]*wire.TxOut, bool) {
	if b.params.Target.NoChange {
		outputs := b.outputs(wire.NewTxOut(0, b.recipientScript))
		if value := b.available() - b.fee(outputs); value >= b.params.Target.Value {
			outputs[len(outputs)-1].Value = int64(value)
			return outputs, true
		}

		return nil, false
	}

	withChange := b.outputs(
		wire.NewTxOut(int64(b.params.Target.Value), b.recipientScript),
		wire.NewTxOut(0, b.changeScript),
	)
	change := b.available() - b.params.Target.Value - b.fee(withChange)
	if change >= 0 && !mempool.IsDust(wire.NewTxOut(int64(change), b.changeScript), mempool.DefaultMinRelayTxFee) {
		withChange[len(withChange)-1].Value = int64(change)
		return withChange, true
	}

	withoutChange := b.outputs(wire.NewTxOut(int64(b.params.Target.Value), b.recipientScript))
	if b.available()-b.params.Target.Value >= b.fee(withoutChange) {
		return withoutChange, true
	}

	return nil, false
}

// outputs prepends the alignment output, when present, to the given outputs.
func (b *fundingBuilder) outputs(rest ...*wire.TxOut) []*wire.TxOut {
	all := make([]*wire.TxOut, 0, len(rest)+1)
	if b.alignment > 0 {
		all = append(all, wire.NewTxOut(int64(b.alignment), b.alignScript))
	}

	return append(all, rest...)
}

// addFundingInput selects one more cardinal input aimed at the remaining
// shortfall, or reports insufficiency.
func (b *fundingBuilder) addFundingInput() error {
	outputs := 2 // recipient + change.
	if b.alignment > 0 {
		outputs++
	}

	roughFee := btcutil.Amount(RoughTxSizeEstimate(len(b.inputs)+1, outputs)) * b.params.FeeRate
	needed := b.params.Target.Value + roughFee - b.available()
	if needed < 1 {
		needed = 1
	}

	outPoint, value, ok := b.selectCardinal(needed, preferOver)
	if !ok {
		return NewInsufficientError(b.params.Target.Value+roughFee, b.available())
	}

	b.inputs = append(b.inputs, outPoint)
	b.totalIn += value

	return nil
}

// selectCardinal picks an unused candidate outpoint that is not inscribed,
// locked or runic, with value closest to needed in the preferred direction.
func (b *fundingBuilder) selectCardinal(needed btcutil.Amount, prefer preference) (wire.OutPoint, btcutil.Amount, bool) {
	var (
		best          wire.OutPoint
		bestValue     btcutil.Amount
		bestPreferred bool
		found         bool
	)

	for _, outPoint := range sortedOutPoints(b.params.Amounts) {
		if b.unusable(outPoint) {
			continue
		}

		value := b.params.Amounts[outPoint]
		preferred := value >= needed
		if prefer == preferUnder {
			preferred = value < needed
		}

		var better bool
		switch {
		case !found:
			better = true
		case preferred != bestPreferred:
			better = preferred
		default:
			better = distance(value, needed) < distance(bestValue, needed)
		}

		if better {
			best, bestValue, bestPreferred, found = outPoint, value, preferred, true
		}
	}

	if found {
		b.used[best] = struct{}{}
	}

	return best, bestValue, found
}

// unusable reports whether the outpoint cannot serve as a cardinal input.
func (b *fundingBuilder) unusable(outPoint wire.OutPoint) bool {
	if _, ok := b.used[outPoint]; ok {
		return true
	}
	if _, ok := b.params.InscribedOutPoints[outPoint]; ok {
		return true
	}
	if _, ok := b.params.LockedOutPoints[outPoint]; ok {
		return true
	}
	if _, ok := b.params.RunicOutPoints[outPoint]; ok {
		return true
	}

	return false
}

// fee measures the exact fee of the current inputs with the given outputs:
// every input gets a dummy key-path signature witness, the virtual size of
// the result times the rate.
func (b *fundingBuilder) fee(outputs []*wire.TxOut) btcutil.Amount {
	tx := wire.NewMsgTx(txVersion)
	for _, outPoint := range b.inputs {
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: outPoint,
			Sequence:         mempool.MaxRBFSequence,
			Witness:          wire.TxWitness{make([]byte, schnorrSignatureSize)},
		})
	}
	for _, txOut := range outputs {
		tx.AddTxOut(txOut)
	}

	return btcutil.Amount(mempool.GetTxVirtualSize(btcutil.NewTx(tx))) * b.params.FeeRate
}

// intoTransaction assembles the final unsigned transaction.
func (b *fundingBuilder) intoTransaction(outputs []*wire.TxOut) *wire.MsgTx {
	tx := wire.NewMsgTx(txVersion)
	for _, outPoint := range b.inputs {
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: outPoint,
			Sequence:         mempool.MaxRBFSequence,
		})
	}
	for _, txOut := range outputs {
		tx.AddTxOut(txOut)
	}

	return tx
}

// RoughTxSizeEstimate returns rough transaction size in vBytes for taproot
// key-path inputs, good enough to aim candidate selection.
func RoughTxSizeEstimate(inputs, outputs int) int64 {
	return 11 + additionalInputVBytes*int64(inputs) + 43*int64(outputs)
}

// distance returns the absolute difference of two amounts.
func distance(a, b btcutil.Amount) btcutil.Amount {
	if a > b {
		return a - b
	}

	return b - a
}

// sortedOutPoints returns map keys in total byte order, hash then index.
func sortedOutPoints(amounts map[wire.OutPoint]btcutil.Amount) []wire.OutPoint {
	outPoints := make([]wire.OutPoint, 0, len(amounts))
	for outPoint := range amounts {
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
