// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package txbuilder

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/wire"
)

// TransactionToHex returns hex view of the serialized transaction.
func TransactionToHex(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf.Bytes()), nil
}

// TransactionFromHex parses a transaction from its hex view.
func TransactionFromHex(rawTx string) (*wire.MsgTx, error) {
	serialized, err := hex.DecodeString(rawTx)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(txVersion)
	if err = tx.Deserialize(bytes.NewReader(serialized)); err != nil {
		return nil, err
	}

	return tx, nil
}

// BuildFundingPSBT returns base64 serialised PSBT of the unsigned funding
// transaction with witness utxo metadata attached to every input.
func BuildFundingPSBT(tx *wire.MsgTx, prevOuts map[wire.OutPoint]*wire.TxOut) (string, error) {
	unsigned := tx.Copy()
	for _, txIn := range unsigned.TxIn {
		txIn.SignatureScript = nil
		txIn.Witness = nil
	}

	p, err := psbt.NewFromUnsignedTx(unsigned)
	if err != nil {
		return "", err
	}

	for i, txIn := range unsigned.TxIn {
		prevOut, ok := prevOuts[txIn.PreviousOutPoint]
		if !ok {
			return "", fmt.Errorf("no previous output for input %s", txIn.PreviousOutPoint.String())
		}

		p.Inputs[i].WitnessUtxo = wire.NewTxOut(prevOut.Value, prevOut.PkScript)
		p.Inputs[i].SighashType = signHashType
	}

	return p.B64Encode()
}
