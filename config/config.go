// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config collects the foundational parameters of a manager
// deployment. These are fixed at initialization; the mutable protocol state
// (owner, threshold, enabled transceivers) lives in the state package.
package config

import (
	"errors"
	"time"

	"github.com/luxfi/ids"

	"github.com/luxfi/ntt/ratelimit"
	"github.com/luxfi/ntt/types"
)

// Mode selects how the manager takes custody of tokens on the source chain.
type Mode uint8

const (
	// Locking escrows tokens on outbound transfers and releases them on
	// inbound transfers.
	Locking Mode = iota
	// Burning burns tokens on outbound transfers and mints them on inbound
	// transfers.
	Burning
)

func (m Mode) String() string {
	switch m {
	case Locking:
		return "locking"
	case Burning:
		return "burning"
	default:
		return "unknown"
	}
}

// MaxTransceivers is the width of the attestation and release bitmaps.
// Transceiver IDs are allocated monotonically and never reused, so this
// bounds the total number of registrations over the life of a deployment.
const MaxTransceivers = 128

var (
	errEmptyManager     = errors.New("manager address must be set")
	errZeroWindow       = errors.New("rate limit window must be positive")
	errInvalidMode      = errors.New("invalid custody mode")
	errExcessPrecision  = errors.New("token decimals exceed supported precision")
	maxSupportedDecimal = uint8(38)
)

// Config collects the parameters of a manager deployment.
type Config struct {
	// Custody mode of this deployment
	Mode Mode `json:"mode"`

	// Chain this manager is deployed on, in the cross-chain namespace
	ChainID types.ChainID `json:"chainId"`

	// Address of this manager program
	Manager ids.ID `json:"manager"`

	// Token this manager moves, and its local decimal precision
	Token         ids.ID `json:"token"`
	TokenDecimals uint8  `json:"tokenDecimals"`

	// Time for a fully drained rate limiter to refill
	RateLimitWindow time.Duration `json:"rateLimitWindow"`

	// Delay applied to transfers staged without consuming capacity
	QueueDelay time.Duration `json:"queueDelay"`
}

// Validate checks the parameters and fills in defaults for the durations.
func (c *Config) Validate() error {
	switch {
	case c.Manager == ids.Empty:
		return errEmptyManager
	case c.Mode != Locking && c.Mode != Burning:
		return errInvalidMode
	case c.TokenDecimals > maxSupportedDecimal:
		return errExcessPrecision
	}
	if c.RateLimitWindow == 0 {
		c.RateLimitWindow = ratelimit.DefaultWindow
	}
	if c.RateLimitWindow < 0 {
		return errZeroWindow
	}
	if c.QueueDelay == 0 {
		c.QueueDelay = c.RateLimitWindow
	}
	return nil
}
