// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscribe

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"inscriber/bitcoin"
	"inscriber/bitcoin/ord/inscriptions"
)

// InscriptionInfo reports one created inscription: its id, the address it was
// delivered to and the satpoint it occupies after the reveal confirms.
type InscriptionInfo struct {
	Destination string `json:"destination"`
	ID          string `json:"id"`
	Location    string `json:"location"`
}

// Output is the final report of an inscribe run. Commit is empty when a
// commitment was reused, Reveal is empty in commit-only mode, Inscriptions is
// empty in commit-only mode. RevealKey carries the generated reveal key in
// commit-only mode so the commitment stays revealable.
type Output struct {
	Commit             string            `json:"commit,omitempty"`
	CommitHex          string            `json:"commit_hex,omitempty"`
	CommitPSBT         string            `json:"commit_psbt,omitempty"`
	Commitment         string            `json:"commitment"`
	Inscriptions       []InscriptionInfo `json:"inscriptions"`
	Parent             string            `json:"parent,omitempty"`
	RecoveryDescriptor string            `json:"recovery_descriptor,omitempty"`
	Reveal             string            `json:"reveal,omitempty"`
	RevealBroadcast    bool              `json:"reveal_broadcast"`
	RevealHex          string            `json:"reveal_hex,omitempty"`
	RevealKey          string            `json:"reveal_key,omitempty"`
	TotalFees          int64             `json:"total_fees"`
}

// NewOutput assembles the report skeleton for the constructed transactions;
// the driver fills broadcast results, hex dumps and descriptors. Txids are
// computed locally and stay valid as long as no wallet signing alters the
// transactions.
func NewOutput(batch *Batch, txs *Transactions) *Output {
	output := &Output{
		Commitment:   txs.CommitmentOutPoint.String(),
		Inscriptions: []InscriptionInfo{},
		TotalFees:    int64(txs.TotalFees),
	}

	if batch.Commitment == nil {
		output.Commit = txs.Commit.TxHash().String()
	}
	if batch.Parent != nil {
		output.Parent = batch.Parent.ID.String()
	}

	if txs.Reveal != nil {
		revealTxID := txs.Reveal.TxHash()
		output.Reveal = revealTxID.String()
		output.Inscriptions = inscriptionInfos(batch, &revealTxID)
	}

	return output
}

// inscriptionInfos maps every batch inscription to its location in the reveal
// transaction. Output index: parent shifts everything by one; separate-outputs
// gives inscription i its own output, the other modes share output zero.
// Offset within the output: i × postage in shared-output mode, zero otherwise.
func inscriptionInfos(batch *Batch, revealTxID *chainhash.Hash) []InscriptionInfo {
	var parentShift int
	if batch.Parent != nil {
		parentShift = 1
	}

	infos := make([]InscriptionInfo, 0, len(batch.Inscriptions))
	for idx := range batch.Inscriptions {
		vout := parentShift
		var offset uint64
		destination := batch.Destinations[0]

		switch batch.Mode {
		case ModeSeparateOutputs:
			vout = parentShift + idx
			destination = batch.Destinations[idx]
		case ModeSharedOutput:
			offset = uint64(idx) * uint64(batch.Postage)
		}

		id := inscriptions.ID{TxID: revealTxID, Index: uint32(idx)}
		location := bitcoin.SatPoint{
			OutPoint: wire.OutPoint{Hash: *revealTxID, Index: uint32(vout)},
			Offset:   offset,
		}

		infos = append(infos, InscriptionInfo{
			Destination: destination.String(),
			ID:          id.String(),
			Location:    location.String(),
		})
	}

	return infos
}
