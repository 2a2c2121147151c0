// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscribe_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"inscriber/bitcoin/ord/inscribe"
	"inscriber/bitcoin/ord/inscriptions"
)

func TestEstimateRevealFee(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	script := func(body string) []byte {
		revealScript, err := inscriptions.BatchRevealScript(
			schnorr.SerializePubKey(key.PubKey()), textInscription(body))
		require.NoError(t, err)

		return revealScript
	}

	template := inscribe.RevealTemplate{
		Inputs:           []wire.OutPoint{testOutPoint(0x11, 0), testOutPoint(0x22, 0)},
		CommitInputIndex: 0,
		Outputs:          []*wire.TxOut{wire.NewTxOut(10_000, scriptOf(t, testTaprootAddress(t, 0x01)))},
		RevealScript:     script("estimate"),
		ControlBlock:     make([]byte, 33),
	}

	fee := inscribe.EstimateRevealFee(template, 5)
	require.NotZero(t, fee)

	t.Run("linear in the fee rate", func(t *testing.T) {
		require.Equal(t, 2*fee, inscribe.EstimateRevealFee(template, 10))
	})

	t.Run("leaves the template untouched", func(t *testing.T) {
		require.EqualValues(t, 10_000, template.Outputs[0].Value)
	})

	t.Run("grows with the reveal script", func(t *testing.T) {
		heavier := template
		heavier.RevealScript = script("a considerably longer inscription body to push the witness size up")

		require.Greater(t, inscribe.EstimateRevealFee(heavier, 5), fee)
	})
}
