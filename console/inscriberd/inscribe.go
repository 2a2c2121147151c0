// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/fxamacker/cbor/v2"

	"inscriber/bitcoin"
	"inscriber/bitcoin/ord/batchfile"
	"inscriber/bitcoin/ord/inscribe"
	"inscriber/bitcoin/ord/inscriptions"
	"inscriber/bitcoin/walletrpc"
	"inscriber/internal/logger"
)

func cmdInscribe(ctx context.Context, arguments *RuntimeArguments) error {
	if err := arguments.validateInscribeFlags(); err != nil {
		return err
	}

	config, err := ReadConfig(arguments.ConfigPath)
	if err != nil {
		return err
	}
	logger.Setup(config.LogLevel)

	wallet, err := walletrpc.Dial(config.RPC)
	if err != nil {
		return err
	}
	defer wallet.Close()

	run, err := prepareRun(ctx, arguments, wallet)
	if err != nil {
		return err
	}

	output, err := inscribe.Inscribe(ctx, run.batch, run.params, wallet)
	if err != nil {
		return err
	}

	report, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(report))

	if output.RevealKey != "" {
		fmt.Fprintf(os.Stderr, "use --key %s to reveal this commitment\n", output.RevealKey)
	}

	return nil
}

// validateInscribeFlags checks the flag combinations cobra groups cannot
// express.
func (arguments *RuntimeArguments) validateInscribeFlags() error {
	if arguments.FeeRate <= 0 {
		return errors.New("--fee-rate is required")
	}
	if arguments.Commitment != "" && arguments.Key == "" {
		return errors.New("--commitment only works with --key")
	}
	if arguments.CommitOnly && arguments.Commitment != "" {
		return errors.New("--commit-only and --commitment don't work together")
	}
	if arguments.NextBatchPath != "" && arguments.NextFilePath != "" {
		return errors.New("--next-batch and --next-file don't work together")
	}
	if arguments.CommitOnly && arguments.NextBatchPath != "" {
		return errors.New("--commit-only and --next-batch don't work together")
	}
	if arguments.CommitOnly && arguments.NextFilePath != "" {
		return errors.New("--commit-only and --next-file don't work together")
	}
	if len(arguments.RevealInputs) != 0 && arguments.Commitment == "" {
		return errors.New("--reveal-input only works with --commitment")
	}
	if arguments.CoinControl && len(arguments.UTXOs) == 0 {
		return errors.New("--coin-control requires at least one --utxo")
	}

	return nil
}

type runSetup struct {
	batch  *inscribe.Batch
	params inscribe.CreateTransactionsParams
}

// prepareRun gathers wallet state and converts the command line into a
// validated batch with its construction parameters.
func prepareRun(ctx context.Context, arguments *RuntimeArguments, wallet *walletrpc.Client) (*runSetup, error) {
	networkParams := wallet.NetworkParams()

	walletUTXOs, err := wallet.ListUnspent(ctx)
	if err != nil {
		return nil, err
	}

	utxoSet, err := buildUTXOSet(ctx, arguments, wallet, walletUTXOs)
	if err != nil {
		return nil, err
	}

	locked, err := wallet.LockedOutPoints(ctx)
	if err != nil {
		return nil, err
	}

	changeAddresses, err := resolveChangeAddresses(ctx, arguments, wallet, networkParams)
	if err != nil {
		return nil, err
	}

	var file *batchfile.Batchfile
	if arguments.BatchPath != "" {
		if file, err = batchfile.Load(arguments.BatchPath); err != nil {
			return nil, err
		}
	}

	parent, err := resolveParent(ctx, arguments, file, wallet, walletUTXOs, locked, networkParams)
	if err != nil {
		return nil, err
	}

	base := inscribe.Batch{
		CommitFeeRate: btcutil.Amount(arguments.CommitFeeRate),
		RevealFeeRate: btcutil.Amount(arguments.FeeRate),
		RevealFee:     btcutil.Amount(arguments.RevealFee),
		Parent:        parent,
		Reinscribe:    arguments.Reinscribe,
		CommitOnly:    arguments.CommitOnly,
		DryRun:        arguments.DryRun,
		Dump:          arguments.Dump || arguments.NoBroadcast,
		NoBroadcast:   arguments.NoBroadcast,
		NoBackup:      arguments.NoBackup || arguments.CommitOnly || arguments.Commitment != "",
		NoLimit:       arguments.NoLimit,
	}

	if file != nil {
		err = fillFromBatchfile(ctx, &base, file, arguments, wallet, networkParams, parent)
	} else {
		err = fillFromFile(ctx, &base, arguments, wallet, networkParams, parent)
	}
	if err != nil {
		return nil, err
	}

	if base.Reinscribe && base.SatPoint == nil {
		return nil, errors.New("--reinscribe requires --satpoint")
	}

	if err = attachCommitment(ctx, &base, arguments, wallet); err != nil {
		return nil, err
	}
	if err = attachNextInscriptions(ctx, &base, arguments, wallet); err != nil {
		return nil, err
	}

	if arguments.Key != "" {
		wif, err := btcutil.DecodeWIF(arguments.Key)
		if err != nil {
			return nil, fmt.Errorf("--key: %w", err)
		}
		base.Key = wif.PrivKey
	}

	batch, err := inscribe.NewBatch(base)
	if err != nil {
		return nil, err
	}

	forceInputs, err := parseOutPoints(arguments.CommitInputs)
	if err != nil {
		return nil, fmt.Errorf("--commit-input: %w", err)
	}

	return &runSetup{
		batch: batch,
		params: inscribe.CreateTransactionsParams{
			NetworkParams:   networkParams,
			UTXOs:           utxoSet,
			Inscribed:       inscribedAssertions(batch),
			LockedOutPoints: locked,
			ChangeAddresses: changeAddresses,
			ForceInputs:     forceInputs,
		},
	}, nil
}

// buildUTXOSet collects the outputs the commit transaction may spend. Coin
// control restricts funding to the outputs named on the command line; --utxo
// also unlocks outputs the node would not list, such as locked ones.
func buildUTXOSet(ctx context.Context, arguments *RuntimeArguments, wallet *walletrpc.Client, walletUTXOs []bitcoin.UTXO) (*inscribe.UTXOSet, error) {
	utxoSet := inscribe.NewUTXOSet()

	if !arguments.CoinControl {
		for _, utxo := range walletUTXOs {
			outPoint, err := utxo.OutPoint()
			if err != nil {
				return nil, err
			}
			value, err := utxo.SatsValue()
			if err != nil {
				return nil, err
			}
			utxoSet.Register(*outPoint, wire.NewTxOut(int64(value), utxo.Script))
		}
	}

	for _, raw := range arguments.UTXOs {
		outPoint, err := bitcoin.NewOutPointFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("--utxo: %w", err)
		}

		txOut, err := wallet.ResolveOutPoint(ctx, *outPoint)
		if err != nil {
			return nil, fmt.Errorf("--utxo: %w", err)
		}

		utxoSet.Register(*outPoint, txOut)
	}

	return utxoSet, nil
}

// resolveChangeAddresses returns the two change addresses of a run: the
// commit change address, overridable with --change, and the reveal change
// address used when a chained commitment leaves residue.
func resolveChangeAddresses(ctx context.Context, arguments *RuntimeArguments, wallet *walletrpc.Client, networkParams *chaincfg.Params) ([2]btcutil.Address, error) {
	var addresses [2]btcutil.Address

	first, err := resolveAddress(ctx, arguments.ChangeAddress, wallet, networkParams)
	if err != nil {
		return addresses, fmt.Errorf("--change: %w", err)
	}

	second, err := wallet.ChangeAddress(ctx)
	if err != nil {
		return addresses, err
	}

	addresses[0], addresses[1] = first, second

	return addresses, nil
}

// resolveAddress decodes the given address or draws a fresh change address
// from the wallet when none is given.
func resolveAddress(ctx context.Context, value string, wallet *walletrpc.Client, networkParams *chaincfg.Params) (btcutil.Address, error) {
	if value == "" {
		return wallet.ChangeAddress(ctx)
	}

	return btcutil.DecodeAddress(value, networkParams)
}

// fillFromFile configures a single inscription run from --file.
func fillFromFile(ctx context.Context, base *inscribe.Batch, arguments *RuntimeArguments, wallet *walletrpc.Client, networkParams *chaincfg.Params, parent *inscribe.ParentInfo) error {
	metadata, err := readMetadata(arguments)
	if err != nil {
		return err
	}

	fileParams := inscriptions.FromFileParams{
		Path:     arguments.FilePath,
		Compress: arguments.Compress,
		Metadata: metadata,
	}
	if arguments.Metaprotocol != "" {
		fileParams.Metaprotocol = []byte(arguments.Metaprotocol)
	}
	if parent != nil {
		fileParams.Parents = []*inscriptions.ID{&parent.ID}
	}

	inscription, err := inscriptions.FromFile(fileParams)
	if err != nil {
		return err
	}

	destination, err := resolveAddress(ctx, arguments.Destination, wallet, networkParams)
	if err != nil {
		return fmt.Errorf("--destination: %w", err)
	}

	base.Inscriptions = []*inscriptions.Inscription{inscription}
	base.Mode = inscribe.ModeSeparateOutputs
	base.Destinations = []btcutil.Address{destination}
	base.Postage = btcutil.Amount(arguments.Postage)

	if arguments.SatPoint != "" {
		if base.SatPoint, err = bitcoin.NewSatPointFromString(arguments.SatPoint); err != nil {
			return fmt.Errorf("--satpoint: %w", err)
		}
	}

	return nil
}

// fillFromBatchfile configures a run from a yaml batchfile. Destinations the
// file leaves open go to fresh wallet change addresses.
func fillFromBatchfile(ctx context.Context, base *inscribe.Batch, file *batchfile.Batchfile, arguments *RuntimeArguments, wallet *walletrpc.Client, networkParams *chaincfg.Params, parent *inscribe.ParentInfo) error {
	var parentValue btcutil.Amount
	if parent != nil {
		parentValue = btcutil.Amount(parent.TxOut.Value)
	}

	list, err := file.BuildInscriptions(batchfile.BuildInscriptionsParams{
		ParentValue: parentValue,
		Compress:    arguments.Compress,
	})
	if err != nil {
		return err
	}

	destinations, err := file.EntryDestinations(networkParams)
	if err != nil {
		return err
	}

	if file.Mode == inscribe.ModeSeparateOutputs {
		for idx, destination := range destinations {
			if destination != nil {
				continue
			}
			if destinations[idx], err = wallet.ChangeAddress(ctx); err != nil {
				return err
			}
		}
	} else {
		destination, err := wallet.ChangeAddress(ctx)
		if err != nil {
			return err
		}
		destinations = []btcutil.Address{destination}
	}

	base.Inscriptions = list
	base.Mode = file.Mode
	base.Destinations = destinations
	base.Postage = file.PostageValue()

	if base.SatPoint, err = file.ParsedSatPoint(); err != nil {
		return err
	}

	return nil
}

// resolveParent loads the parent inscription info. The parent satpoint names
// the output currently holding the parent, which must be a wallet output so
// the reveal can spend and re-deliver it.
func resolveParent(
	ctx context.Context,
	arguments *RuntimeArguments,
	file *batchfile.Batchfile,
	wallet *walletrpc.Client,
	walletUTXOs []bitcoin.UTXO,
	locked map[wire.OutPoint]struct{},
	networkParams *chaincfg.Params,
) (*inscribe.ParentInfo, error) {
	var (
		parentID *inscriptions.ID
		location *bitcoin.SatPoint
		err      error
	)
	switch {
	case file != nil:
		if parentID, err = file.ParentID(); err != nil {
			return nil, err
		}
		if location, err = file.ParsedParentSatPoint(); err != nil {
			return nil, err
		}
	case arguments.Parent != "":
		if parentID, err = inscriptions.NewIDFromString(arguments.Parent); err != nil {
			return nil, fmt.Errorf("--parent: %w", err)
		}
		if arguments.ParentSatPoint != "" {
			if location, err = bitcoin.NewSatPointFromString(arguments.ParentSatPoint); err != nil {
				return nil, fmt.Errorf("--parent-satpoint: %w", err)
			}
		}
	}

	if parentID == nil {
		return nil, nil
	}
	if location == nil {
		if file != nil {
			return nil, errors.New("parent_satpoint is required when the batchfile declares a parent")
		}

		return nil, errors.New("--parent-satpoint is required with --parent")
	}

	if !walletOwns(walletUTXOs, locked, location.OutPoint) {
		return nil, fmt.Errorf("parent %s not in wallet", parentID.String())
	}

	txOut, err := wallet.ResolveOutPoint(ctx, location.OutPoint)
	if err != nil {
		return nil, err
	}
	if location.Offset >= uint64(txOut.Value) {
		return nil, fmt.Errorf("parent satpoint offset %d beyond output value %d", location.Offset, txOut.Value)
	}

	destination, err := resolveAddress(ctx, arguments.ParentDestination, wallet, networkParams)
	if err != nil {
		return nil, fmt.Errorf("--parent-destination: %w", err)
	}

	return &inscribe.ParentInfo{
		ID:          *parentID,
		Destination: destination,
		Location:    *location,
		TxOut:       txOut,
	}, nil
}

func walletOwns(walletUTXOs []bitcoin.UTXO, locked map[wire.OutPoint]struct{}, outPoint wire.OutPoint) bool {
	if _, ok := locked[outPoint]; ok {
		return true
	}

	for _, utxo := range walletUTXOs {
		candidate, err := utxo.OutPoint()
		if err != nil {
			continue
		}
		if *candidate == outPoint {
			return true
		}
	}

	return false
}

// attachCommitment resolves the commitment output to reveal against and any
// extra reveal inputs. Both must be transactions the node wallet knows.
func attachCommitment(ctx context.Context, base *inscribe.Batch, arguments *RuntimeArguments, wallet *walletrpc.Client) error {
	if arguments.Commitment == "" {
		return nil
	}

	commitment, err := resolvePrevOut(ctx, arguments.Commitment, wallet)
	if err != nil {
		return fmt.Errorf("--commitment: %w", err)
	}
	base.Commitment = commitment

	for _, raw := range arguments.RevealInputs {
		revealInput, err := resolvePrevOut(ctx, raw, wallet)
		if err != nil {
			return fmt.Errorf("--reveal-input: %w", err)
		}
		base.RevealInputs = append(base.RevealInputs, *revealInput)
	}

	return nil
}

// attachNextInscriptions loads the inscriptions whose commitment the reveal
// chains as its change output. The next batchfile must pin parent_satpoint:
// the parent value feeds pointer computation and the envelopes fixed here
// have to match the later reveal run byte for byte.
func attachNextInscriptions(ctx context.Context, base *inscribe.Batch, arguments *RuntimeArguments, wallet *walletrpc.Client) error {
	switch {
	case arguments.NextFilePath != "":
		inscription, err := inscriptions.FromFile(inscriptions.FromFileParams{
			Path:     arguments.NextFilePath,
			Compress: arguments.Compress,
		})
		if err != nil {
			return err
		}
		base.NextInscriptions = []*inscriptions.Inscription{inscription}

	case arguments.NextBatchPath != "":
		file, err := batchfile.Load(arguments.NextBatchPath)
		if err != nil {
			return err
		}

		var parentValue btcutil.Amount
		parentID, err := file.ParentID()
		if err != nil {
			return err
		}
		if parentID != nil {
			location, err := file.ParsedParentSatPoint()
			if err != nil {
				return err
			}
			if location == nil {
				return errors.New("the next batchfile must pin parent_satpoint")
			}

			txOut, err := wallet.ResolveOutPoint(ctx, location.OutPoint)
			if err != nil {
				return err
			}
			parentValue = btcutil.Amount(txOut.Value)
		}

		next, err := file.BuildInscriptions(batchfile.BuildInscriptionsParams{
			ParentValue: parentValue,
			Compress:    arguments.Compress,
		})
		if err != nil {
			return err
		}
		base.NextInscriptions = next
	}

	return nil
}

func resolvePrevOut(ctx context.Context, raw string, wallet *walletrpc.Client) (*inscribe.PrevOut, error) {
	outPoint, err := bitcoin.NewOutPointFromString(raw)
	if err != nil {
		return nil, err
	}

	txOut, err := wallet.ResolveOutPoint(ctx, *outPoint)
	if err != nil {
		return nil, err
	}

	return &inscribe.PrevOut{OutPoint: *outPoint, TxOut: txOut}, nil
}

// readMetadata loads inscription metadata from either metadata flag and
// returns CBOR bytes.
func readMetadata(arguments *RuntimeArguments) ([]byte, error) {
	switch {
	case arguments.CborMetadataPath != "":
		data, err := os.ReadFile(arguments.CborMetadataPath)
		if err != nil {
			return nil, err
		}

		var decoded any
		if err = cbor.Unmarshal(data, &decoded); err != nil {
			return nil, fmt.Errorf("--cbor-metadata: %w", err)
		}

		return data, nil

	case arguments.JSONMetadataPath != "":
		data, err := os.ReadFile(arguments.JSONMetadataPath)
		if err != nil {
			return nil, err
		}

		metadata, err := inscriptions.MetadataFromJSON(data)
		if err != nil {
			return nil, fmt.Errorf("--json-metadata: %w", err)
		}

		return metadata, nil
	}

	return nil, nil
}

// inscribedAssertions seeds the inscribed-location map for reinscription
// checks. The driver runs without an ordinals index, the reinscribe flag
// itself asserts that the targeted satpoint already carries an inscription.
func inscribedAssertions(batch *inscribe.Batch) map[bitcoin.SatPoint][]inscriptions.ID {
	if !batch.Reinscribe || batch.SatPoint == nil {
		return nil
	}

	return map[bitcoin.SatPoint][]inscriptions.ID{*batch.SatPoint: nil}
}

func parseOutPoints(raws []string) ([]wire.OutPoint, error) {
	if len(raws) == 0 {
		return nil, nil
	}

	outPoints := make([]wire.OutPoint, 0, len(raws))
	for _, raw := range raws {
		outPoint, err := bitcoin.NewOutPointFromString(raw)
		if err != nil {
			return nil, err
		}
		outPoints = append(outPoints, *outPoint)
	}

	return outPoints, nil
}
