// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"math/big"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"inscriber/internal/numbers"
)

// UTXO describes unspent transaction output data.
type UTXO struct {
	TxHash  string
	Index   uint32   // output index in transaction outputs.
	Amount  *big.Int // in Satoshi.
	Script  []byte   // ScriptPubKey.
	Address string   // output recipient address.
}

// OutPoint returns UTXO as wire outpoint.
func (u *UTXO) OutPoint() (*wire.OutPoint, error) {
	utxoHash, err := chainhash.NewHashFromStr(u.TxHash)
	if err != nil {
		return nil, err
	}

	return wire.NewOutPoint(utxoHash, u.Index), nil
}

// SatsValue returns the UTXO amount as a satoshi amount. The amount must be
// a positive integer within the satoshi value range.
func (u *UTXO) SatsValue() (btcutil.Amount, error) {
	if u.Amount == nil || !numbers.IsPositive(u.Amount) || !u.Amount.IsInt64() {
		return 0, ErrInvalidUTXOAmount
	}

	return btcutil.Amount(u.Amount.Int64()), nil
}

// NetworkParams returns chain parameters by network name.
func NetworkParams(network string) (*chaincfg.Params, error) {
	switch network {
	case chaincfg.MainNetParams.Name:
		return &chaincfg.MainNetParams, nil
	case chaincfg.TestNet3Params.Name:
		return &chaincfg.TestNet3Params, nil
	case chaincfg.SigNetParams.Name:
		return &chaincfg.SigNetParams, nil
	case chaincfg.RegressionNetParams.Name:
		return &chaincfg.RegressionNetParams, nil
	}

	return nil, ErrUnknownNetwork
}
