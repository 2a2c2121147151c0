// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscribe

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"inscriber/bitcoin"
	"inscriber/bitcoin/ord/inscriptions"
)

// ErrConfiguration defines errors class for conflicting or insufficient batch configuration.
var ErrConfiguration = errors.New("invalid batch configuration")

// Mode defines how inscriptions are allocated across reveal outputs.
type Mode string

const (
	// ModeSameSat inscribes all inscriptions on the same sat of a single output.
	ModeSameSat Mode = "same-sat"
	// ModeSeparateOutputs gives every inscription its own output of postage value.
	ModeSeparateOutputs Mode = "separate-outputs"
	// ModeSharedOutput places all inscriptions on a single output, postage apart.
	ModeSharedOutput Mode = "shared-output"
)

// Valid returns true for a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeSameSat, ModeSeparateOutputs, ModeSharedOutput:
		return true
	}

	return false
}

// DefaultPostage defines the postage allocated to an inscription output when
// the batch does not set one.
const DefaultPostage btcutil.Amount = 10_000

// PrevOut couples an outpoint with the output it refers to.
type PrevOut struct {
	OutPoint wire.OutPoint
	TxOut    *wire.TxOut
}

// ParentInfo describes the existing inscription the batch inscriptions are
// children of. The parent output is passed through the reveal transaction
// unchanged in value, re-delivered to Destination.
type ParentInfo struct {
	ID          inscriptions.ID
	Destination btcutil.Address
	Location    bitcoin.SatPoint
	TxOut       *wire.TxOut
}

// Batch is the full configuration of one inscribe run. Construct through
// NewBatch and treat as immutable after; the pipeline never modifies it.
type Batch struct {
	// Fee rates in satoshi per virtual byte. CommitFeeRate defaults to
	// RevealFeeRate. RevealFee, when nonzero, replaces the estimated reveal
	// fee and must be at least the estimate.
	CommitFeeRate btcutil.Amount
	RevealFeeRate btcutil.Amount
	RevealFee     btcutil.Amount

	Inscriptions []*inscriptions.Inscription
	Mode         Mode
	Destinations []btcutil.Address
	Parent       *ParentInfo
	SatPoint     *bitcoin.SatPoint
	Postage      btcutil.Amount

	// Key signs the reveal. Generated when nil; required when reusing a
	// commitment made with it.
	Key *btcec.PrivateKey

	// Commitment is a pre-existing commitment output to reveal against
	// instead of funding a fresh commit transaction. RevealInputs add
	// fee-only inputs to such a reveal; NextInscriptions chain a follow-up
	// commitment as its change output script.
	Commitment       *PrevOut
	RevealInputs     []PrevOut
	NextInscriptions []*inscriptions.Inscription

	Reinscribe  bool
	CommitOnly  bool
	DryRun      bool
	Dump        bool
	NoBroadcast bool
	NoBackup    bool
	NoLimit     bool
}

// NewBatch validates the configuration, applies defaults and returns the
// batch ready for the pipeline.
func NewBatch(batch Batch) (_ *Batch, err error) {
	defer func(err *error) {
		if err != nil && *err != nil {
			*err = errors.Join(ErrConfiguration, *err)
		}
	}(&err)

	if batch.Postage == 0 {
		batch.Postage = DefaultPostage
	}
	if batch.CommitFeeRate == 0 {
		batch.CommitFeeRate = batch.RevealFeeRate
	}

	if err := batch.validate(); err != nil {
		return nil, err
	}

	return &batch, nil
}

// validate checks every cross-field rule of the configuration.
func (b *Batch) validate() error {
	if len(b.Inscriptions) == 0 {
		return errors.New("batch must contain at least one inscription")
	}

	if !b.Mode.Valid() {
		return fmt.Errorf("unknown mode %q", string(b.Mode))
	}

	switch b.Mode {
	case ModeSameSat, ModeSharedOutput:
		if len(b.Destinations) != 1 {
			return errors.New("shared-output and same-sat modes require exactly one destination")
		}
	case ModeSeparateOutputs:
		if len(b.Destinations) != len(b.Inscriptions) {
			return errors.New("separate-outputs mode requires one destination per inscription")
		}
	}

	for _, destination := range b.Destinations {
		if destination == nil {
			return errors.New("destination is required")
		}
	}

	if b.RevealFeeRate <= 0 {
		return errors.New("fee rate is required")
	}
	if b.CommitFeeRate < 0 || b.RevealFee < 0 || b.Postage < 0 {
		return errors.New("amounts cannot be negative")
	}

	if err := b.validateParentLinkage(); err != nil {
		return err
	}

	return b.validateCommitment()
}

// validateParentLinkage checks parent info against inscription parent tags.
func (b *Batch) validateParentLinkage() error {
	if b.Parent == nil {
		for _, inscription := range b.Inscriptions {
			if len(inscription.Parents) != 0 {
				return errors.New("inscriptions declare a parent but parent info is missing")
			}
		}

		return nil
	}

	if b.Parent.TxOut == nil {
		return errors.New("parent output is required")
	}
	if b.Parent.Destination == nil {
		return errors.New("parent destination is required")
	}

	for _, inscription := range b.Inscriptions {
		var linked bool
		for _, parent := range inscription.Parents {
			if parent != nil && parent.TxID.IsEqual(b.Parent.ID.TxID) && parent.Index == b.Parent.ID.Index {
				linked = true
				break
			}
		}
		if !linked {
			return fmt.Errorf("inscription does not declare parent %s", b.Parent.ID.String())
		}
	}

	return nil
}

// validateCommitment checks the commitment-reuse field cluster.
func (b *Batch) validateCommitment() error {
	if b.Commitment == nil {
		if len(b.RevealInputs) != 0 {
			return errors.New("extra reveal inputs require a commitment")
		}
		if len(b.NextInscriptions) != 0 {
			return errors.New("chained next inscriptions require a commitment")
		}

		return nil
	}

	if b.Commitment.TxOut == nil {
		return errors.New("commitment output is required for commitment reuse")
	}
	if b.Key == nil {
		return errors.New("commitment reuse requires the reveal key")
	}
	if b.CommitOnly {
		return errors.New("commitment cannot be combined with commit-only")
	}
	if b.SatPoint != nil {
		return errors.New("satpoint cannot be targeted when reusing a commitment")
	}
	if b.Reinscribe {
		return errors.New("reinscribe is not available when reusing a commitment")
	}

	for _, revealInput := range b.RevealInputs {
		if revealInput.TxOut == nil {
			return errors.New("reveal input output is required")
		}
	}

	return nil
}

// TotalPostage returns the postage carried by all inscription outputs
// together: a single postage in same-sat mode, postage per inscription
// otherwise.
func (b *Batch) TotalPostage() btcutil.Amount {
	if b.Mode == ModeSameSat {
		return b.Postage
	}

	return b.Postage * btcutil.Amount(len(b.Inscriptions))
}
