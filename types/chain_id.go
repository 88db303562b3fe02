// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package types defines the canonical cross-chain payload types of the
// native token transfer protocol: chain identifiers, trimmed amounts, and
// the manager/transceiver message wire formats.
package types

import "strconv"

// ChainID identifies a chain in the cross-chain message namespace.
type ChainID uint16

func (c ChainID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}
