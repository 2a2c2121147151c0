// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscribe

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"

	"inscriber/bitcoin/utils"
)

// Commitment is a single-leaf taproot commitment to a reveal script: the
// commit transaction pays to Address, the reveal transaction spends it through
// the script path with ControlBlock proving Script membership.
type Commitment struct {
	Script       []byte
	ControlBlock []byte
	InternalKey  *btcec.PublicKey
	OutputKey    *btcec.PublicKey
	MerkleRoot   chainhash.Hash
	Address      *btcutil.AddressTaproot
	PkScript     []byte
}

// NewCommitment builds the taproot commitment for the reveal script with the
// script placed in a single leaf at depth zero.
func NewCommitment(revealScript []byte, internalKey *btcec.PublicKey, networkParams *chaincfg.Params) (*Commitment, error) {
	tapScriptTree, err := utils.NewTapScriptTreeFromRawScripts(revealScript)
	if err != nil {
		return nil, err
	}

	merkleRoot := tapScriptTree.RootNode.TapHash()
	outputKey := txscript.ComputeTaprootOutputKey(internalKey, merkleRoot[:])

	leafControlBlock := tapScriptTree.LeafMerkleProofs[0].ToControlBlock(internalKey)
	controlBlock, err := leafControlBlock.ToBytes()
	if err != nil {
		return nil, err
	}

	address, err := utils.NewTaprootAddressFromTweakedKey(networkParams, outputKey)
	if err != nil {
		return nil, err
	}

	pkScript, err := txscript.PayToAddrScript(address)
	if err != nil {
		return nil, err
	}

	return &Commitment{
		Script:       revealScript,
		ControlBlock: controlBlock,
		InternalKey:  internalKey,
		OutputKey:    outputKey,
		MerkleRoot:   merkleRoot,
		Address:      address,
		PkScript:     pkScript,
	}, nil
}

// TapLeaf returns the leaf the commitment was assembled from.
func (c *Commitment) TapLeaf() txscript.TapLeaf {
	return txscript.NewBaseTapLeaf(c.Script)
}
