// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package server

import (
	"encoding/json"

	"inscriber/bitcoin/ord/inscribe"
)

// BaseResp is the envelope every response carries.
type BaseResp struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// HealthResp reports service liveness and the network the service builds for.
type HealthResp struct {
	BaseResp
	Network string `json:"network"`
}

// UTXO is a wallet output the commit transaction may spend. The address is
// needed to classify the script when the commit is signed locally.
type UTXO struct {
	TxID    string `json:"txid" binding:"required"`
	Vout    uint32 `json:"vout"`
	Amount  int64  `json:"amount" binding:"required,gt=0"`
	Script  string `json:"script" binding:"required"`
	Address string `json:"address" binding:"required"`
}

// PrevOutRef identifies an existing output together with the value and script
// needed to spend it.
type PrevOutRef struct {
	OutPoint string `json:"outpoint" binding:"required"`
	Value    int64  `json:"value" binding:"required,gt=0"`
	Script   string `json:"script" binding:"required"`
}

// InscriptionEntry is one inscription of the request batch. The body is
// base64, metadata is plain JSON and is converted to CBOR before enveloping.
type InscriptionEntry struct {
	Body         string          `json:"body" binding:"required"`
	ContentType  string          `json:"content_type" binding:"required"`
	Destination  string          `json:"destination"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	Metaprotocol string          `json:"metaprotocol"`
	Delegate     string          `json:"delegate"`
	Pointer      *int64          `json:"pointer" binding:"omitempty,gte=0"`
}

// InscribeRequest is a batch construction request. The listed utxos fund a
// fresh commit transaction; a commitment reference replaces them when
// revealing against an already mined commitment.
type InscribeRequest struct {
	Mode          string             `json:"mode" binding:"required"`
	FeeRate       int64              `json:"fee_rate" binding:"required,gt=0"`
	CommitFeeRate int64              `json:"commit_fee_rate" binding:"omitempty,gt=0"`
	RevealFee     int64              `json:"reveal_fee" binding:"omitempty,gt=0"`
	Postage       int64              `json:"postage" binding:"omitempty,gt=0"`
	Compress      bool               `json:"compress"`
	NoLimit       bool               `json:"no_limit"`
	CommitOnly    bool               `json:"commit_only"`
	Destination   string             `json:"destination"`
	ChangeAddress string             `json:"change_address" binding:"required"`
	SatPoint      string             `json:"satpoint"`
	Key           string             `json:"key"`
	SignKey       string             `json:"sign_key"`
	Commitment    *PrevOutRef        `json:"commitment"`
	RevealInputs  []PrevOutRef       `json:"reveal_inputs" binding:"omitempty,dive"`
	UTXOs         []UTXO             `json:"utxos" binding:"required_without=Commitment,dive"`
	Inscriptions  []InscriptionEntry `json:"inscriptions" binding:"required,min=1,dive"`
}

// InscribeResp carries the constructed transaction report.
type InscribeResp struct {
	BaseResp
	Data *inscribe.Output `json:"data,omitempty"`
}
