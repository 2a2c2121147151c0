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
	"github.com/btcsuite/btcd/txscript"
)

// TweakedKeyPair holds the reveal key together with its taproot-tweaked
// counterpart. The tweaked key spends the commitment output through the key
// path without revealing the committed script, which recovers the funds of a
// commit transaction whose reveal never made it.
type TweakedKeyPair struct {
	PrivateKey        *btcec.PrivateKey
	TweakedPrivateKey *btcec.PrivateKey
}

// NewTweakedKeyPair tweaks the reveal private key with the commitment merkle
// root per BIP341.
func NewTweakedKeyPair(privateKey *btcec.PrivateKey, commitment *Commitment) TweakedKeyPair {
	return TweakedKeyPair{
		PrivateKey:        privateKey,
		TweakedPrivateKey: txscript.TweakTaprootPrivKey(*privateKey, commitment.MerkleRoot[:]),
	}
}

// SelfCheck verifies the tweaked public key re-derives the commitment output
// key. A mismatch means a key-derivation defect, never a user error.
func (kp TweakedKeyPair) SelfCheck(commitment *Commitment) error {
	tweakedPubKey := schnorr.SerializePubKey(kp.TweakedPrivateKey.PubKey())
	if !bytes.Equal(tweakedPubKey, schnorr.SerializePubKey(commitment.OutputKey)) {
		return fmt.Errorf("recovery key %x does not match commit address %s", tweakedPubKey, commitment.Address.String())
	}

	return nil
}

// RecoveryWIF returns the tweaked private key encoded for the network.
func (kp TweakedKeyPair) RecoveryWIF(networkParams *chaincfg.Params) (string, error) {
	return encodeWIF(kp.TweakedPrivateKey, networkParams)
}

// RevealWIF returns the untweaked reveal private key encoded for the network.
func (kp TweakedKeyPair) RevealWIF(networkParams *chaincfg.Params) (string, error) {
	return encodeWIF(kp.PrivateKey, networkParams)
}

// RecoveryDescriptor returns the rawtr output descriptor of the tweaked key,
// without a checksum. The wallet RPC canonicalizes it on import.
func (kp TweakedKeyPair) RecoveryDescriptor(networkParams *chaincfg.Params) (string, error) {
	wif, err := kp.RecoveryWIF(networkParams)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("rawtr(%s)", wif), nil
}

func encodeWIF(privateKey *btcec.PrivateKey, networkParams *chaincfg.Params) (string, error) {
	if privateKey == nil {
		return "", errors.New("missing private key")
	}

	wif, err := btcutil.NewWIF(privateKey, networkParams, true)
	if err != nil {
		return "", err
	}

	return wif.String(), nil
}
