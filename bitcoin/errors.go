// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package bitcoin

import (
	"errors"
)

// ErrInsufficientNativeBalance defines that there is not enough native (bitcoin) balance to cover the transfer.
var ErrInsufficientNativeBalance = errors.New("insufficient native balance")

// ErrInvalidUTXOAmount defines that the required number of utxos can not be selected.
var ErrInvalidUTXOAmount = errors.New("invalid utxo amount")

// ErrUnknownNetwork defines that provided network name does not match any known chain.
var ErrUnknownNetwork = errors.New("unknown network")
