// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package server

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"

	"inscriber/bitcoin"
	"inscriber/bitcoin/ord/inscribe"
	"inscriber/bitcoin/ord/inscriptions"
	"inscriber/bitcoin/signer"
	"inscriber/bitcoin/txbuilder"
)

// Model converts API requests into construction runs. The service holds no
// wallet: callers supply the outputs to spend and receive raw transaction
// artifacts to sign and broadcast elsewhere.
type Model struct {
	networkParams *chaincfg.Params
}

// NewModel is a constructor for Model.
func NewModel(networkParams *chaincfg.Params) *Model {
	return &Model{networkParams: networkParams}
}

// Inscribe builds the commit and reveal pair for one request and assembles
// the report the caller needs to take the batch on chain.
func (model *Model) Inscribe(request InscribeRequest) (*inscribe.Output, error) {
	utxos, utxoSet, err := model.parseUTXOs(request.UTXOs)
	if err != nil {
		return nil, err
	}

	batch, err := model.buildBatch(request)
	if err != nil {
		return nil, err
	}

	changeAddress, err := btcutil.DecodeAddress(request.ChangeAddress, model.networkParams)
	if err != nil {
		return nil, fmt.Errorf("change_address: %w", err)
	}

	txs, err := batch.CreateTransactions(inscribe.CreateTransactionsParams{
		NetworkParams:   model.networkParams,
		UTXOs:           utxoSet,
		ChangeAddresses: [2]btcutil.Address{changeAddress, changeAddress},
	})
	if err != nil {
		return nil, err
	}

	output := inscribe.NewOutput(batch, txs)
	if err = model.attachArtifacts(output, batch, request, txs, utxoSet, utxos); err != nil {
		return nil, err
	}

	return output, nil
}

// attachArtifacts fills the report fields the wallet driver would otherwise
// obtain from a node: funding PSBT, raw hex dumps, recovery material.
func (model *Model) attachArtifacts(
	output *inscribe.Output,
	batch *inscribe.Batch,
	request InscribeRequest,
	txs *inscribe.Transactions,
	utxoSet *inscribe.UTXOSet,
	utxos []bitcoin.UTXO,
) (err error) {
	if batch.Commitment == nil {
		output.CommitPSBT, err = txbuilder.BuildFundingPSBT(txs.Commit, utxoSet.Entries())
		if err != nil {
			return err
		}

		if request.SignKey != "" {
			wif, err := btcutil.DecodeWIF(request.SignKey)
			if err != nil {
				return fmt.Errorf("sign_key: %w", err)
			}

			signedCommit, err := signer.NewSigner(model.networkParams).SignFundingTransaction(signer.SignFundingParams{
				Tx:         txs.Commit,
				UTXOs:      utxos,
				PrivateKey: wif.PrivKey,
			})
			if err != nil {
				return err
			}

			if output.CommitHex, err = txbuilder.TransactionToHex(signedCommit); err != nil {
				return err
			}
		}

		if output.RecoveryDescriptor, err = txs.RecoveryKeyPair.RecoveryDescriptor(model.networkParams); err != nil {
			return err
		}
	}

	if txs.Reveal != nil {
		if output.RevealHex, err = txbuilder.TransactionToHex(txs.Reveal); err != nil {
			return err
		}
	}

	if batch.CommitOnly && batch.Key == nil {
		if output.RevealKey, err = txs.RecoveryKeyPair.RevealWIF(model.networkParams); err != nil {
			return err
		}
	}

	return nil
}

// parseUTXOs converts the request outputs and registers them as spendable.
func (model *Model) parseUTXOs(entries []UTXO) ([]bitcoin.UTXO, *inscribe.UTXOSet, error) {
	var (
		utxos = make([]bitcoin.UTXO, 0, len(entries))
		set   = inscribe.NewUTXOSet()
	)
	for idx, entry := range entries {
		script, err := hex.DecodeString(entry.Script)
		if err != nil {
			return nil, nil, fmt.Errorf("utxos[%d].script: %w", idx, err)
		}

		utxo := bitcoin.UTXO{
			TxHash:  entry.TxID,
			Index:   entry.Vout,
			Amount:  big.NewInt(entry.Amount),
			Script:  script,
			Address: entry.Address,
		}

		outPoint, err := utxo.OutPoint()
		if err != nil {
			return nil, nil, fmt.Errorf("utxos[%d].txid: %w", idx, err)
		}

		set.Register(*outPoint, wire.NewTxOut(entry.Amount, script))
		utxos = append(utxos, utxo)
	}

	return utxos, set, nil
}

// buildBatch converts the request into a validated batch.
func (model *Model) buildBatch(request InscribeRequest) (*inscribe.Batch, error) {
	if !inscribe.Mode(request.Mode).Valid() {
		return nil, fmt.Errorf("unknown mode %q", request.Mode)
	}

	batchInscriptions, err := model.buildInscriptions(request)
	if err != nil {
		return nil, err
	}

	destinations, err := model.buildDestinations(request)
	if err != nil {
		return nil, err
	}

	batch := inscribe.Batch{
		CommitFeeRate: btcutil.Amount(request.CommitFeeRate),
		RevealFeeRate: btcutil.Amount(request.FeeRate),
		RevealFee:     btcutil.Amount(request.RevealFee),
		Inscriptions:  batchInscriptions,
		Mode:          inscribe.Mode(request.Mode),
		Destinations:  destinations,
		Postage:       btcutil.Amount(request.Postage),
		CommitOnly:    request.CommitOnly,
		NoLimit:       request.NoLimit,
	}

	if request.SatPoint != "" {
		if batch.SatPoint, err = bitcoin.NewSatPointFromString(request.SatPoint); err != nil {
			return nil, fmt.Errorf("satpoint: %w", err)
		}
	}

	if request.Key != "" {
		wif, err := btcutil.DecodeWIF(request.Key)
		if err != nil {
			return nil, fmt.Errorf("key: %w", err)
		}
		batch.Key = wif.PrivKey
	}

	if request.Commitment != nil {
		if batch.Commitment, err = parsePrevOut(*request.Commitment); err != nil {
			return nil, fmt.Errorf("commitment: %w", err)
		}
	}

	for idx, ref := range request.RevealInputs {
		revealInput, err := parsePrevOut(ref)
		if err != nil {
			return nil, fmt.Errorf("reveal_inputs[%d]: %w", idx, err)
		}
		batch.RevealInputs = append(batch.RevealInputs, *revealInput)
	}

	return inscribe.NewBatch(batch)
}

// buildInscriptions converts the request entries into envelope payloads.
func (model *Model) buildInscriptions(request InscribeRequest) ([]*inscriptions.Inscription, error) {
	batch := make([]*inscriptions.Inscription, 0, len(request.Inscriptions))
	for idx, entry := range request.Inscriptions {
		body, err := base64.StdEncoding.DecodeString(entry.Body)
		if err != nil {
			return nil, fmt.Errorf("inscriptions[%d].body: %w", idx, err)
		}

		inscription := &inscriptions.Inscription{
			Body:        body,
			ContentType: entry.ContentType,
		}

		// An explicit JSON null means no metadata, not CBOR null.
		if len(entry.Metadata) != 0 && string(entry.Metadata) != "null" {
			if inscription.Metadata, err = inscriptions.MetadataFromJSON(entry.Metadata); err != nil {
				return nil, fmt.Errorf("inscriptions[%d].metadata: %w", idx, err)
			}
		}
		if entry.Metaprotocol != "" {
			inscription.Metaprotocol = []byte(entry.Metaprotocol)
		}
		if entry.Delegate != "" {
			if inscription.Delegate, err = inscriptions.NewIDFromString(entry.Delegate); err != nil {
				return nil, fmt.Errorf("inscriptions[%d].delegate: %w", idx, err)
			}
		}
		if entry.Pointer != nil {
			inscription.Pointer = big.NewInt(*entry.Pointer)
		}

		if request.Compress {
			if err = inscription.CompressBody(); err != nil {
				return nil, err
			}
		}

		batch = append(batch, inscription)
	}

	return batch, nil
}

// buildDestinations resolves the receiving addresses. Separate-outputs mode
// takes one destination per inscription entry, the other modes take the
// single top-level destination.
func (model *Model) buildDestinations(request InscribeRequest) ([]btcutil.Address, error) {
	if inscribe.Mode(request.Mode) == inscribe.ModeSeparateOutputs {
		destinations := make([]btcutil.Address, 0, len(request.Inscriptions))
		for idx, entry := range request.Inscriptions {
			if entry.Destination == "" {
				return nil, fmt.Errorf("inscriptions[%d].destination is required in separate-outputs mode", idx)
			}

			address, err := btcutil.DecodeAddress(entry.Destination, model.networkParams)
			if err != nil {
				return nil, fmt.Errorf("inscriptions[%d].destination: %w", idx, err)
			}
			destinations = append(destinations, address)
		}

		return destinations, nil
	}

	for idx, entry := range request.Inscriptions {
		if entry.Destination != "" {
			return nil, fmt.Errorf("inscriptions[%d].destination can only be set in separate-outputs mode", idx)
		}
	}

	if request.Destination == "" {
		return nil, errors.New("destination is required")
	}

	address, err := btcutil.DecodeAddress(request.Destination, model.networkParams)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	return []btcutil.Address{address}, nil
}

// parsePrevOut converts an output reference into a spendable previous output.
func parsePrevOut(ref PrevOutRef) (*inscribe.PrevOut, error) {
	outPoint, err := bitcoin.NewOutPointFromString(ref.OutPoint)
	if err != nil {
		return nil, err
	}

	script, err := hex.DecodeString(ref.Script)
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}

	return &inscribe.PrevOut{
		OutPoint: *outPoint,
		TxOut:    wire.NewTxOut(ref.Value, script),
	}, nil
}
