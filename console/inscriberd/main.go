// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package main

import (
	"os"

	"github.com/spf13/cobra"

	"inscriber/bitcoin"
	"inscriber/internal/logger"
	"inscriber/server"
)

// RuntimeArguments holds every command line flag of the daemon.
type RuntimeArguments struct {
	ConfigPath string

	// inscribe source.
	FilePath  string
	BatchPath string

	// fees and placement.
	FeeRate       int64
	CommitFeeRate int64
	RevealFee     int64
	Postage       int64
	Destination   string
	ChangeAddress string
	SatPoint      string

	// inscription content.
	Compress         bool
	CborMetadataPath string
	JSONMetadataPath string
	Metaprotocol     string

	// parent linkage.
	Parent            string
	ParentSatPoint    string
	ParentDestination string

	// commitment reuse and chaining.
	Key           string
	Commitment    string
	RevealInputs  []string
	CommitOnly    bool
	NextFilePath  string
	NextBatchPath string

	// input selection.
	UTXOs        []string
	CoinControl  bool
	CommitInputs []string

	// run control.
	Reinscribe  bool
	DryRun      bool
	Dump        bool
	NoBroadcast bool
	NoBackup    bool
	NoLimit     bool
}

// NewRuntimeArguments is a constructor for RuntimeArguments.
func NewRuntimeArguments() *RuntimeArguments {
	return &RuntimeArguments{}
}

// MakeCmd wires the command tree and binds every flag to the arguments.
func (arguments *RuntimeArguments) MakeCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "inscriberd",
		Short:        "Batch ordinals inscription engine",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&arguments.ConfigPath, "config", "c", "config.yaml", "path to the yaml configuration file")

	inscribeCmd := &cobra.Command{
		Use:   "inscribe",
		Short: "Build, sign and broadcast a commit and reveal transaction pair",
		Long: `Inscribe the contents of a single file or of every entry of a yaml
batchfile. The command funds a commit transaction from the node wallet,
commits to the inscription envelopes in a taproot script path and reveals
them once the commit is broadcast. A commitment made earlier with
--commit-only can be revealed later by passing --commitment together with
the --key printed by the first run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdInscribe(cmd.Context(), arguments)
		},
	}

	flags := inscribeCmd.Flags()
	flags.StringVar(&arguments.FilePath, "file", "", "inscribe the contents of a single file")
	flags.StringVar(&arguments.BatchPath, "batch", "", "inscribe the entries of a yaml batchfile")
	flags.Int64Var(&arguments.FeeRate, "fee-rate", 0, "fee rate in sat/vB")
	flags.Int64Var(&arguments.CommitFeeRate, "commit-fee-rate", 0, "commit transaction fee rate in sat/vB, defaults to --fee-rate")
	flags.Int64Var(&arguments.RevealFee, "reveal-fee", 0, "exact reveal fee in sats, overrides the estimate")
	flags.Int64Var(&arguments.Postage, "postage", 0, "sats carried by each inscription output")
	flags.StringVar(&arguments.Destination, "destination", "", "address receiving the inscription")
	flags.StringVar(&arguments.ChangeAddress, "change", "", "address receiving the commit change")
	flags.StringVar(&arguments.SatPoint, "satpoint", "", "inscribe on the sat at <txid>:<vout>:<offset>")
	flags.BoolVar(&arguments.Compress, "compress", false, "compress inscription bodies with brotli")
	flags.StringVar(&arguments.CborMetadataPath, "cbor-metadata", "", "file holding CBOR inscription metadata")
	flags.StringVar(&arguments.JSONMetadataPath, "json-metadata", "", "file holding JSON inscription metadata")
	flags.StringVar(&arguments.Metaprotocol, "metaprotocol", "", "inscription metaprotocol tag")
	flags.StringVar(&arguments.Parent, "parent", "", "make the inscriptions children of this inscription id")
	flags.StringVar(&arguments.ParentSatPoint, "parent-satpoint", "", "current location of the parent inscription")
	flags.StringVar(&arguments.ParentDestination, "parent-destination", "", "address the parent returns to, defaults to a change address")
	flags.StringVar(&arguments.Key, "key", "", "reveal private key in WIF, required to reuse a commitment")
	flags.StringVar(&arguments.Commitment, "commitment", "", "reveal against the mined commitment output <txid>:<vout>")
	flags.StringArrayVar(&arguments.RevealInputs, "reveal-input", nil, "add the wallet output <txid>:<vout> to the reveal for fees")
	flags.BoolVar(&arguments.CommitOnly, "commit-only", false, "broadcast only the commit transaction")
	flags.StringVar(&arguments.NextFilePath, "next-file", "", "chain a commitment for this file into the reveal")
	flags.StringVar(&arguments.NextBatchPath, "next-batch", "", "chain a commitment for this batchfile into the reveal")
	flags.StringArrayVar(&arguments.UTXOs, "utxo", nil, "make the wallet output <txid>:<vout> spendable for funding")
	flags.BoolVar(&arguments.CoinControl, "coin-control", false, "fund only from the outputs given with --utxo")
	flags.StringArrayVar(&arguments.CommitInputs, "commit-input", nil, "force the commit transaction to spend <txid>:<vout>")
	flags.BoolVar(&arguments.Reinscribe, "reinscribe", false, "inscribe on a sat that already carries an inscription")
	flags.BoolVar(&arguments.DryRun, "dry-run", false, "construct the transactions without touching the wallet")
	flags.BoolVar(&arguments.Dump, "dump", false, "include raw transaction hex and the funding PSBT in the report")
	flags.BoolVar(&arguments.NoBroadcast, "no-broadcast", false, "sign but do not broadcast, implies --dump")
	flags.BoolVar(&arguments.NoBackup, "no-backup", false, "do not back the recovery key up into the node wallet")
	flags.BoolVar(&arguments.NoLimit, "no-limit", false, "allow reveal transactions over the standardness weight limit")

	inscribeCmd.MarkFlagsOneRequired("file", "batch")
	inscribeCmd.MarkFlagsMutuallyExclusive("file", "batch")
	inscribeCmd.MarkFlagsMutuallyExclusive("batch", "destination")
	inscribeCmd.MarkFlagsMutuallyExclusive("batch", "cbor-metadata")
	inscribeCmd.MarkFlagsMutuallyExclusive("batch", "json-metadata")
	inscribeCmd.MarkFlagsMutuallyExclusive("batch", "metaprotocol")
	inscribeCmd.MarkFlagsMutuallyExclusive("batch", "parent")
	inscribeCmd.MarkFlagsMutuallyExclusive("batch", "parent-satpoint")
	inscribeCmd.MarkFlagsMutuallyExclusive("batch", "postage")
	inscribeCmd.MarkFlagsMutuallyExclusive("batch", "reinscribe")
	inscribeCmd.MarkFlagsMutuallyExclusive("batch", "satpoint")
	inscribeCmd.MarkFlagsMutuallyExclusive("cbor-metadata", "json-metadata")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the walletless construction API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdServe(arguments)
		},
	}

	rootCmd.AddCommand(inscribeCmd, serveCmd)

	return rootCmd
}

func cmdServe(arguments *RuntimeArguments) error {
	config, err := ReadConfig(arguments.ConfigPath)
	if err != nil {
		return err
	}
	logger.Setup(config.LogLevel)

	networkParams, err := bitcoin.NetworkParams(config.RPC.Network)
	if err != nil {
		return err
	}

	return server.NewService(config.Server, networkParams).Run()
}

func main() {
	arguments := NewRuntimeArguments()
	if err := arguments.MakeCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
