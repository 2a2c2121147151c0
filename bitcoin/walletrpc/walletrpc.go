// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

// Package walletrpc drives a Bitcoin Core wallet over JSON-RPC. It funds,
// signs and broadcasts the transactions the inscribe engine builds, and backs
// recovery keys up into the node wallet.
package walletrpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	retry "github.com/avast/retry-go"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"
	"github.com/sirupsen/logrus"

	"inscriber/bitcoin"
	"inscriber/bitcoin/ord/inscribe"
	"inscriber/bitcoin/txbuilder"
	"inscriber/internal/logger"
)

// ErrWalletRPC indicates that there was an error in the wallet rpc client.
var ErrWalletRPC = errors.New("wallet rpc")

// Config contains the connection settings of the Bitcoin Core wallet.
type Config struct {
	Host     string `yaml:"host"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Wallet   string `yaml:"wallet"`
	Network  string `yaml:"network"`
}

const (
	dialAttempts = 5
	dialDelay    = 2 * time.Second
)

// recoveryKeyLabel labels recovery descriptors imported into the node wallet.
const recoveryKeyLabel = "commit tx recovery key"

// ensures that Client implements inscribe.Wallet.
var _ inscribe.Wallet = (*Client)(nil)

// Client is a Bitcoin Core wallet client.
type Client struct {
	rpc           *rpcclient.Client
	networkParams *chaincfg.Params
	log           *logrus.Entry
}

// Dial connects to the wallet endpoint and probes it until the node answers.
func Dial(config Config) (*Client, error) {
	networkParams, err := bitcoin.NetworkParams(config.Network)
	if err != nil {
		return nil, errors.Join(ErrWalletRPC, err)
	}

	host := config.Host
	if config.Wallet != "" {
		host += "/wallet/" + config.Wallet
	}

	connCfg := &rpcclient.ConnConfig{
		Host:         host,
		User:         config.User,
		Pass:         config.Password,
		HTTPPostMode: true, // Bitcoin core only supports HTTP POST mode.
		DisableTLS:   true, // Bitcoin core does not provide TLS by default.
	}

	// The notification parameter is nil since notifications are not
	// supported in HTTP POST mode.
	rpc, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, errors.Join(ErrWalletRPC, err)
	}

	client := &Client{
		rpc:           rpc,
		networkParams: networkParams,
		log:           logger.Entry("walletrpc"),
	}

	err = retry.Do(
		func() error {
			_, err := rpc.GetBlockCount()
			return err
		},
		retry.Attempts(dialAttempts),
		retry.Delay(dialDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			client.log.WithError(err).Warnf("node is not reachable, attempt %d", attempt+1)
		}),
	)
	if err != nil {
		rpc.Shutdown()
		return nil, errors.Join(ErrWalletRPC, err)
	}

	return client, nil
}

// Close shuts the underlying rpc client down.
func (client *Client) Close() {
	client.rpc.Shutdown()
}

// NetworkParams returns chain parameters of the connected network.
func (client *Client) NetworkParams() *chaincfg.Params {
	return client.networkParams
}

// ListUnspent returns the spendable outputs of the wallet.
func (client *Client) ListUnspent(ctx context.Context) ([]bitcoin.UTXO, error) {
	results, err := client.rpc.ListUnspent()
	if err != nil {
		return nil, errors.Join(ErrWalletRPC, err)
	}

	utxos := make([]bitcoin.UTXO, 0, len(results))
	for _, result := range results {
		if !result.Spendable {
			continue
		}

		utxo, err := utxoFromListEntry(result)
		if err != nil {
			return nil, errors.Join(ErrWalletRPC, err)
		}

		utxos = append(utxos, utxo)
	}

	return utxos, nil
}

// LockedOutPoints returns the outpoints locked in the wallet. Locked outputs
// never fund a commit transaction.
func (client *Client) LockedOutPoints(ctx context.Context) (map[wire.OutPoint]struct{}, error) {
	results, err := client.rpc.ListLockUnspent()
	if err != nil {
		return nil, errors.Join(ErrWalletRPC, err)
	}

	locked := make(map[wire.OutPoint]struct{}, len(results))
	for _, outPoint := range results {
		locked[*outPoint] = struct{}{}
	}

	return locked, nil
}

// ResolveOutPoint returns the output an outpoint refers to, looked up through
// the wallet transaction store.
func (client *Client) ResolveOutPoint(ctx context.Context, outPoint wire.OutPoint) (*wire.TxOut, error) {
	result, err := client.rpc.GetTransaction(&outPoint.Hash)
	if err != nil {
		return nil, errors.Join(ErrWalletRPC, err)
	}

	tx, err := txbuilder.TransactionFromHex(result.Hex)
	if err != nil {
		return nil, errors.Join(ErrWalletRPC, err)
	}

	if int(outPoint.Index) >= len(tx.TxOut) {
		return nil, errors.Join(ErrWalletRPC, fmt.Errorf("transaction %s has no output %d", outPoint.Hash.String(), outPoint.Index))
	}

	return tx.TxOut[outPoint.Index], nil
}

// ChangeAddress derives a fresh bech32m change address from the wallet.
func (client *Client) ChangeAddress(ctx context.Context) (btcutil.Address, error) {
	addressType, err := json.Marshal("bech32m")
	if err != nil {
		return nil, errors.Join(ErrWalletRPC, err)
	}

	raw, err := client.rpc.RawRequest("getrawchangeaddress", []json.RawMessage{addressType})
	if err != nil {
		return nil, errors.Join(ErrWalletRPC, err)
	}

	var encoded string
	if err = json.Unmarshal(raw, &encoded); err != nil {
		return nil, errors.Join(ErrWalletRPC, err)
	}

	address, err := btcutil.DecodeAddress(encoded, client.networkParams)
	if err != nil {
		return nil, errors.Join(ErrWalletRPC, err)
	}

	return address, nil
}

// SignTransaction signs every input the wallet holds keys for. Inputs the
// wallet cannot solve, such as the script-path commitment input, keep the
// witnesses they already carry.
func (client *Client) SignTransaction(ctx context.Context, tx *wire.MsgTx, inputs []inscribe.SignInput) (*wire.MsgTx, error) {
	prevOuts := make([]btcjson.RawTxWitnessInput, 0, len(inputs))
	for _, input := range inputs {
		amount := input.Value.ToBTC()
		prevOuts = append(prevOuts, btcjson.RawTxWitnessInput{
			Txid:         input.OutPoint.Hash.String(),
			Vout:         input.OutPoint.Index,
			ScriptPubKey: hex.EncodeToString(input.PkScript),
			Amount:       &amount,
		})
	}

	signedTx, complete, err := client.rpc.SignRawTransactionWithWallet2(tx, prevOuts)
	if err != nil {
		return nil, errors.Join(ErrWalletRPC, err)
	}
	if !complete {
		client.log.Debug("wallet signing left inputs incomplete")
	}

	return signedTx, nil
}

// BroadcastTransaction submits the transaction to the network through the
// node mempool.
func (client *Client) BroadcastTransaction(ctx context.Context, tx *wire.MsgTx) (*chainhash.Hash, error) {
	txHash, err := client.rpc.SendRawTransaction(tx, false)
	if err != nil {
		return nil, errors.Join(ErrWalletRPC, err)
	}

	client.log.WithField("txid", txHash.String()).Info("transaction broadcast")

	return txHash, nil
}

// DecodeTransactionID asks the node for the canonical txid of a transaction
// without broadcasting it.
func (client *Client) DecodeTransactionID(ctx context.Context, tx *wire.MsgTx) (*chainhash.Hash, error) {
	rawTx, err := txbuilder.TransactionToHex(tx)
	if err != nil {
		return nil, errors.Join(ErrWalletRPC, err)
	}

	param, err := json.Marshal(rawTx)
	if err != nil {
		return nil, errors.Join(ErrWalletRPC, err)
	}

	raw, err := client.rpc.RawRequest("decoderawtransaction", []json.RawMessage{param})
	if err != nil {
		return nil, errors.Join(ErrWalletRPC, err)
	}

	var decoded struct {
		TxID string `json:"txid"`
	}
	if err = json.Unmarshal(raw, &decoded); err != nil {
		return nil, errors.Join(ErrWalletRPC, err)
	}

	txHash, err := chainhash.NewHashFromStr(decoded.TxID)
	if err != nil {
		return nil, errors.Join(ErrWalletRPC, err)
	}

	return txHash, nil
}

// ImportRecoveryDescriptor backs a recovery descriptor up into the node
// wallet and returns its canonical, checksummed form.
func (client *Client) ImportRecoveryDescriptor(ctx context.Context, descriptor string) (string, error) {
	info, err := client.rpc.GetDescriptorInfo(descriptor)
	if err != nil {
		return "", errors.Join(ErrWalletRPC, err)
	}

	canonical := descriptor + "#" + info.Checksum

	request, err := json.Marshal([]importDescriptorRequest{{
		Descriptor: canonical,
		Timestamp:  "now",
		Label:      recoveryKeyLabel,
	}})
	if err != nil {
		return "", errors.Join(ErrWalletRPC, err)
	}

	raw, err := client.rpc.RawRequest("importdescriptors", []json.RawMessage{request})
	if err != nil {
		return "", errors.Join(ErrWalletRPC, err)
	}

	var results []importDescriptorResult
	if err = json.Unmarshal(raw, &results); err != nil {
		return "", errors.Join(ErrWalletRPC, err)
	}

	for _, result := range results {
		for _, warning := range result.Warnings {
			client.log.Warn(warning)
		}

		if !result.Success {
			if result.Error != nil {
				return "", errors.Join(ErrWalletRPC, fmt.Errorf("commit tx recovery key import failed: %s", result.Error.Message))
			}

			return "", errors.Join(ErrWalletRPC, errors.New("commit tx recovery key import failed"))
		}
	}

	client.log.WithField("descriptor", canonical).Info("recovery key imported")

	return canonical, nil
}

// utxoFromListEntry converts a listunspent entry into a wallet utxo.
func utxoFromListEntry(result btcjson.ListUnspentResult) (bitcoin.UTXO, error) {
	amount, err := btcutil.NewAmount(result.Amount)
	if err != nil {
		return bitcoin.UTXO{}, err
	}

	script, err := hex.DecodeString(result.ScriptPubKey)
	if err != nil {
		return bitcoin.UTXO{}, err
	}

	return bitcoin.UTXO{
		TxHash:  result.TxID,
		Index:   result.Vout,
		Amount:  big.NewInt(int64(amount)),
		Script:  script,
		Address: result.Address,
	}, nil
}

// importDescriptorRequest mirrors one entry of the importdescriptors rpc
// request.
type importDescriptorRequest struct {
	Descriptor string `json:"desc"`
	Timestamp  string `json:"timestamp"`
	Label      string `json:"label,omitempty"`
}

// importDescriptorResult mirrors one entry of the importdescriptors rpc
// response.
type importDescriptorResult struct {
	Success  bool     `json:"success"`
	Warnings []string `json:"warnings,omitempty"`
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
