// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package utils

import (
	"errors"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
)

// NewChecksigScript builds {<x-only pubKey> OP_CHECKSIG} locking script
// used as a prefix for taproot leaf reveal scripts.
func NewChecksigScript(xOnlyPubKey []byte) ([]byte, error) {
	if len(xOnlyPubKey) != schnorr.PubKeyBytesLen {
		return nil, errors.New("x-only public key must be 32 bytes")
	}

	return txscript.NewScriptBuilder().
		AddData(xOnlyPubKey).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// MustChecksigScript uses NewChecksigScript, panics in case of error.
func MustChecksigScript(xOnlyPubKey []byte) []byte {
	script, err := NewChecksigScript(xOnlyPubKey)
	if err != nil {
		panic(err)
	}

	return script
}

// NewTapScriptTreeFromRawScripts builds tapScript tree from provided leaf scripts.
func NewTapScriptTreeFromRawScripts(leafScripts ...[]byte) (*txscript.IndexedTapScriptTree, error) {
	if len(leafScripts) == 0 {
		return nil, errors.New("no leaf scripts provided")
	}

	var tapLeafs = make([]txscript.TapLeaf, len(leafScripts))
	for i, leafScript := range leafScripts {
		tapLeafs[i] = txscript.NewBaseTapLeaf(leafScript)
	}

	return txscript.AssembleTaprootScriptTree(tapLeafs...), nil
}

// MustTapScriptTreeFromRawScripts uses NewTapScriptTreeFromRawScripts, panics in case of error.
func MustTapScriptTreeFromRawScripts(leafScripts ...[]byte) *txscript.IndexedTapScriptTree {
	tree, err := NewTapScriptTreeFromRawScripts(leafScripts...)
	if err != nil {
		panic(err)
	}

	return tree
}

// UpdatePSBTInputWithTapScriptLeafData updates provided psbt input with all data needed to sign taproot utxo.
func UpdatePSBTInputWithTapScriptLeafData(input *psbt.PInput, tapScriptTree *txscript.IndexedTapScriptTree) error {
	if len(input.TaprootInternalKey) == 0 {
		return errors.New("no taproot internal key provided")
	}
	if len(input.WitnessScript) == 0 {
		return errors.New("no witness script provided")
	}

	tapLeaf := txscript.NewBaseTapLeaf(input.WitnessScript)
	masterPublicKey, err := schnorr.ParsePubKey(input.TaprootInternalKey)
	if err != nil {
		return err
	}

	ctrlBlock := tapScriptTree.LeafMerkleProofs[0].ToControlBlock(masterPublicKey)
	tapLeafScript := &psbt.TaprootTapLeafScript{
		Script:      tapLeaf.Script,
		LeafVersion: tapLeaf.LeafVersion,
	}
	tapLeafScript.ControlBlock, err = ctrlBlock.ToBytes()
	if err != nil {
		return err
	}

	if len(input.TaprootLeafScript) == 0 {
		input.TaprootLeafScript = []*psbt.TaprootTapLeafScript{tapLeafScript}
	}

	if len(input.TaprootMerkleRoot) == 0 {
		input.TaprootMerkleRoot = ctrlBlock.RootHash(tapLeaf.Script)
	}

	return nil
}
