// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

// Package batchfile loads the YAML description of an inscribe run: the
// allocation mode, the shared batch settings and one entry per inscription.
package batchfile

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"inscriber/bitcoin"
	"inscriber/bitcoin/ord/inscribe"
	"inscriber/bitcoin/ord/inscriptions"
)

// ErrBatchfile defines errors class for malformed batch files.
var ErrBatchfile = errors.New("malformed batchfile")

// Entry describes one inscription of the batch: the content file and its
// optional per-inscription settings.
type Entry struct {
	File         string `yaml:"file"`
	Delegate     string `yaml:"delegate,omitempty"`
	Destination  string `yaml:"destination,omitempty"`
	Metadata     any    `yaml:"metadata,omitempty"`
	Metaprotocol string `yaml:"metaprotocol,omitempty"`
	Pointer      *int64 `yaml:"pointer,omitempty"`
}

// Batchfile is the parsed YAML description of one inscribe run.
type Batchfile struct {
	Mode           inscribe.Mode `yaml:"mode"`
	Parent         string        `yaml:"parent,omitempty"`
	ParentSatPoint string        `yaml:"parent_satpoint,omitempty"`
	Postage        int64         `yaml:"postage,omitempty"`
	SatPoint       string        `yaml:"satpoint,omitempty"`
	Inscriptions   []Entry       `yaml:"inscriptions"`
}

// Load reads and parses the batch file at path.
func Load(path string) (*Batchfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrBatchfile, err)
	}

	return Parse(data)
}

// Parse decodes the batch file, rejecting unknown fields so typos surface
// instead of silently dropping settings.
func Parse(data []byte) (_ *Batchfile, err error) {
	defer func() {
		if err != nil {
			err = errors.Join(ErrBatchfile, err)
		}
	}()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var batchfile Batchfile
	if err = decoder.Decode(&batchfile); err != nil {
		return nil, err
	}

	if err = batchfile.validate(); err != nil {
		return nil, err
	}

	return &batchfile, nil
}

// validate checks the field rules that do not need file or wallet access.
func (b *Batchfile) validate() error {
	if len(b.Inscriptions) == 0 {
		return errors.New("batchfile must contain at least one inscription")
	}
	if !b.Mode.Valid() {
		return fmt.Errorf("unknown mode %q", string(b.Mode))
	}
	if b.Postage < 0 {
		return errors.New("postage cannot be negative")
	}

	for idx, entry := range b.Inscriptions {
		if entry.File == "" {
			return fmt.Errorf("inscription %d has no file", idx)
		}
		if entry.Destination != "" && b.Mode != inscribe.ModeSeparateOutputs {
			return errors.New("individual inscription destinations cannot be set in shared-output or same-sat mode")
		}
		if entry.Pointer != nil && *entry.Pointer < 0 {
			return fmt.Errorf("inscription %d pointer cannot be negative", idx)
		}
		if entry.Delegate != "" {
			if _, err := inscriptions.NewIDFromString(entry.Delegate); err != nil {
				return fmt.Errorf("inscription %d delegate: %w", idx, err)
			}
		}
	}

	if b.Parent != "" {
		if _, err := inscriptions.NewIDFromString(b.Parent); err != nil {
			return fmt.Errorf("parent: %w", err)
		}
	}
	if b.ParentSatPoint != "" {
		if b.Parent == "" {
			return errors.New("parent_satpoint requires a parent")
		}
		if _, err := bitcoin.NewSatPointFromString(b.ParentSatPoint); err != nil {
			return fmt.Errorf("parent_satpoint: %w", err)
		}
	}
	if b.SatPoint != "" {
		if _, err := bitcoin.NewSatPointFromString(b.SatPoint); err != nil {
			return fmt.Errorf("satpoint: %w", err)
		}
	}

	return nil
}

// ParentID returns the parsed parent inscription id, nil when the batch has
// no parent.
func (b *Batchfile) ParentID() (*inscriptions.ID, error) {
	if b.Parent == "" {
		return nil, nil
	}

	return inscriptions.NewIDFromString(b.Parent)
}

// ParsedParentSatPoint returns the parsed location of the parent inscription,
// nil when the batch does not declare one.
func (b *Batchfile) ParsedParentSatPoint() (*bitcoin.SatPoint, error) {
	if b.ParentSatPoint == "" {
		return nil, nil
	}

	return bitcoin.NewSatPointFromString(b.ParentSatPoint)
}

// ParsedSatPoint returns the parsed target satpoint, nil when the batch does
// not target one.
func (b *Batchfile) ParsedSatPoint() (*bitcoin.SatPoint, error) {
	if b.SatPoint == "" {
		return nil, nil
	}

	satPoint, err := bitcoin.NewSatPointFromString(b.SatPoint)
	if err != nil {
		return nil, err
	}

	return satPoint, nil
}

// PostageValue returns the configured postage, falling back to the engine
// default.
func (b *Batchfile) PostageValue() btcutil.Amount {
	if b.Postage == 0 {
		return inscribe.DefaultPostage
	}

	return btcutil.Amount(b.Postage)
}

// BuildInscriptionsParams carries the context entry files are loaded with.
type BuildInscriptionsParams struct {
	// ParentValue is the value of the parent output preceding the inscription
	// outputs in the reveal, zero without a parent.
	ParentValue btcutil.Amount
	Compress    bool
}

// BuildInscriptions loads every entry file and assembles the inscription
// batch. Unless set explicitly, the pointer of entry i>0 is the running total
// of parent value plus i postage amounts, so every inscription lands on its
// own target sat; pointers past the reveal outputs fall back to the first
// inscription's sat, which is what same-sat mode relies on.
func (b *Batchfile) BuildInscriptions(params BuildInscriptionsParams) (_ []*inscriptions.Inscription, err error) {
	defer func() {
		if err != nil {
			err = errors.Join(ErrBatchfile, err)
		}
	}()

	parentID, err := b.ParentID()
	if err != nil {
		return nil, err
	}

	var parents []*inscriptions.ID
	if parentID != nil {
		parents = []*inscriptions.ID{parentID}
	}

	pointer := int64(params.ParentValue)
	postage := int64(b.PostageValue())

	batch := make([]*inscriptions.Inscription, 0, len(b.Inscriptions))
	for idx, entry := range b.Inscriptions {
		metadata, err := entry.EncodedMetadata()
		if err != nil {
			return nil, fmt.Errorf("inscription %d metadata: %w", idx, err)
		}

		var delegate *inscriptions.ID
		if entry.Delegate != "" {
			if delegate, err = inscriptions.NewIDFromString(entry.Delegate); err != nil {
				return nil, err
			}
		}

		var metaprotocol []byte
		if entry.Metaprotocol != "" {
			metaprotocol = []byte(entry.Metaprotocol)
		}

		var entryPointer *big.Int
		switch {
		case entry.Pointer != nil:
			entryPointer = big.NewInt(*entry.Pointer)
		case idx > 0:
			entryPointer = big.NewInt(pointer)
		}

		inscription, err := inscriptions.FromFile(inscriptions.FromFileParams{
			Path:         entry.File,
			Compress:     params.Compress,
			Metadata:     metadata,
			Metaprotocol: metaprotocol,
			Delegate:     delegate,
			Parents:      parents,
			Pointer:      entryPointer,
		})
		if err != nil {
			return nil, err
		}

		batch = append(batch, inscription)
		pointer += postage
	}

	return batch, nil
}

// EntryDestinations returns the declared destination of every entry decoded
// for the network, nil at indexes whose destination the wallet chooses.
func (b *Batchfile) EntryDestinations(networkParams *chaincfg.Params) ([]btcutil.Address, error) {
	destinations := make([]btcutil.Address, len(b.Inscriptions))
	for idx, entry := range b.Inscriptions {
		if entry.Destination == "" {
			continue
		}

		address, err := btcutil.DecodeAddress(entry.Destination, networkParams)
		if err != nil {
			return nil, errors.Join(ErrBatchfile, fmt.Errorf("inscription %d destination: %w", idx, err))
		}

		destinations[idx] = address
	}

	return destinations, nil
}

// EncodedMetadata returns the entry metadata as canonical CBOR bytes, nil
// when the entry carries none.
func (e *Entry) EncodedMetadata() ([]byte, error) {
	if e.Metadata == nil {
		return nil, nil
	}

	return cbor.Marshal(e.Metadata)
}
