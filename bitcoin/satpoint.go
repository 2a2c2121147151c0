// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// ErrMalformedSatPoint defines that satpoint string is malformed and failed to parse.
var ErrMalformedSatPoint = errors.New("satpoint is malformed")

// ErrMalformedOutPoint defines that outpoint string is malformed and failed to parse.
var ErrMalformedOutPoint = errors.New("outpoint is malformed")

// satPointSeparator defines separator between satpoint parts.
const satPointSeparator string = ":"

// SatPoint describes the position of a single satoshi:
// the outpoint it resides in and the offset within that output's value.
type SatPoint struct {
	OutPoint wire.OutPoint
	Offset   uint64
}

// NewSatPointFromString parses SatPoint from "<txid>:<vout>:<offset>" string.
func NewSatPointFromString(satPointStr string) (*SatPoint, error) {
	parts := strings.Split(satPointStr, satPointSeparator)
	if len(parts) != 3 {
		return nil, errors.Join(ErrMalformedSatPoint, fmt.Errorf("invalid format: %s", satPointStr))
	}

	txID, err := chainhash.NewHashFromStr(parts[0])
	if err != nil {
		return nil, errors.Join(ErrMalformedSatPoint, err)
	}

	index, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return nil, errors.Join(ErrMalformedSatPoint, err)
	}

	offset, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return nil, errors.Join(ErrMalformedSatPoint, err)
	}

	return &SatPoint{
		OutPoint: *wire.NewOutPoint(txID, uint32(index)),
		Offset:   offset,
	}, nil
}

// NewOutPointFromString parses an outpoint from "<txid>:<vout>" string.
func NewOutPointFromString(outPointStr string) (*wire.OutPoint, error) {
	parts := strings.Split(outPointStr, satPointSeparator)
	if len(parts) != 2 {
		return nil, errors.Join(ErrMalformedOutPoint, fmt.Errorf("invalid format: %s", outPointStr))
	}

	txID, err := chainhash.NewHashFromStr(parts[0])
	if err != nil {
		return nil, errors.Join(ErrMalformedOutPoint, err)
	}

	index, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return nil, errors.Join(ErrMalformedOutPoint, err)
	}

	return wire.NewOutPoint(txID, uint32(index)), nil
}

// String returns SatPoint as "<txid>:<vout>:<offset>" string.
func (sp SatPoint) String() string {
	return fmt.Sprintf("%s%s%d", sp.OutPoint.String(), satPointSeparator, sp.Offset)
}

// Compare returns -1, 0 or 1 comparing satpoints
// lexicographically by outpoint and then by offset.
func (sp SatPoint) Compare(other SatPoint) int {
	if cmp := bytes.Compare(sp.OutPoint.Hash[:], other.OutPoint.Hash[:]); cmp != 0 {
		return cmp
	}
	if sp.OutPoint.Index != other.OutPoint.Index {
		if sp.OutPoint.Index < other.OutPoint.Index {
			return -1
		}

		return 1
	}
	if sp.Offset != other.Offset {
		if sp.Offset < other.Offset {
			return -1
		}

		return 1
	}

	return 0
}
