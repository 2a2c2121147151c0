// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package inscribe

import (
	"errors"
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/mempool"
	"github.com/btcsuite/btcd/wire"

	"inscriber/bitcoin"
	"inscriber/bitcoin/ord/inscriptions"
)

// ErrState defines errors class for wallet-state rule violations.
var ErrState = errors.New("wallet state violation")

// ErrDust defines that a constructed output does not meet its dust threshold.
var ErrDust = errors.New("output below dust threshold")

// ErrTooHeavy defines that the reveal transaction exceeds the standardness weight ceiling.
var ErrTooHeavy = errors.New("transaction over weight ceiling")

// maxStandardTxWeight is the standardness ceiling transactions must stay
// under to relay.
const maxStandardTxWeight = blockchain.MaxBlockWeight / 10

// selectCardinalSatPoint returns the first sat of the first wallet output
// carrying no inscriptions, not locked and not runic, walking outputs in
// deterministic order.
func selectCardinalSatPoint(
	utxos *UTXOSet,
	inscribed map[bitcoin.SatPoint][]inscriptions.ID,
	locked map[wire.OutPoint]struct{},
	runic map[wire.OutPoint]struct{},
) (bitcoin.SatPoint, error) {
	inscribedSet := inscribedOutPoints(inscribed)
	for _, outPoint := range utxos.SortedOutPoints() {
		if _, ok := inscribedSet[outPoint]; ok {
			continue
		}
		if _, ok := locked[outPoint]; ok {
			continue
		}
		if _, ok := runic[outPoint]; ok {
			continue
		}

		return bitcoin.SatPoint{OutPoint: outPoint}, nil
	}

	return bitcoin.SatPoint{}, errors.Join(ErrState, errors.New("wallet contains no cardinal utxos"))
}

// checkReinscription verifies the chosen satpoint against existing
// inscription locations: inscribing on top of an existing inscription needs
// the reinscribe flag, an inscribed utxo is untouchable at any other offset,
// and the reinscribe flag without an inscription under it is an error.
func checkReinscription(satPoint bitcoin.SatPoint, inscribed map[bitcoin.SatPoint][]inscriptions.ID, reinscribe bool) error {
	inscribedSatPoints := make([]bitcoin.SatPoint, 0, len(inscribed))
	for inscribedSatPoint := range inscribed {
		inscribedSatPoints = append(inscribedSatPoints, inscribedSatPoint)
	}
	sort.Slice(inscribedSatPoints, func(i, j int) bool {
		return inscribedSatPoints[i].Compare(inscribedSatPoints[j]) < 0
	})

	var reinscription bool
	for _, inscribedSatPoint := range inscribedSatPoints {
		if inscribedSatPoint == satPoint {
			reinscription = true
			if reinscribe {
				continue
			}

			return errors.Join(ErrState, fmt.Errorf("sat at %s already inscribed", satPoint.String()))
		}

		if inscribedSatPoint.OutPoint == satPoint.OutPoint {
			ids := inscribed[inscribedSatPoint]
			return errors.Join(ErrState, fmt.Errorf(
				"utxo %s already inscribed with inscription %s on sat %s",
				satPoint.OutPoint.String(), ids[0].String(), inscribedSatPoint.String(),
			))
		}
	}

	if reinscribe && !reinscription {
		return errors.Join(ErrState, errors.New("reinscribe flag set but this would not be a reinscription"))
	}

	return nil
}

// checkRevealOutputsDust verifies every reveal output meets the dust
// threshold of its script.
func checkRevealOutputsDust(tx *wire.MsgTx) error {
	for _, txOut := range tx.TxOut {
		if mempool.IsDust(txOut, mempool.DefaultMinRelayTxFee) {
			return errors.Join(ErrDust, errors.New("commit transaction output would be dust"))
		}
	}

	return nil
}

// checkRevealWeight verifies the signed reveal transaction stays under the
// standardness weight ceiling.
func checkRevealWeight(tx *wire.MsgTx, noLimit bool) error {
	if noLimit {
		return nil
	}

	if weight := blockchain.GetTransactionWeight(btcutil.NewTx(tx)); weight > maxStandardTxWeight {
		return errors.Join(ErrTooHeavy, fmt.Errorf(
			"reveal transaction weight greater than %d (MAX_STANDARD_TX_WEIGHT): %d", maxStandardTxWeight, weight,
		))
	}

	return nil
}
