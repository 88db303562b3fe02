// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package manager

import "errors"

var (
	// Configuration errors
	ErrZeroThreshold       = errors.New("threshold must be non-zero")
	ErrThresholdTooHigh    = errors.New("threshold exceeds enabled transceiver count")
	ErrTooManyTransceivers = errors.New("transceiver registry is full")
	ErrTransceiverEnabled  = errors.New("transceiver is already enabled")
	ErrTransceiverDisabled = errors.New("transceiver is not enabled")

	// Rate limit errors; recoverable by queueing or retrying later
	ErrTransferExceedsRateLimit = errors.New("transfer exceeds rate limit")
	ErrCantReleaseYet           = errors.New("release timestamp not reached")

	// Authentication and integrity errors; the message is malformed or
	// adversarial and is rejected without any state change
	ErrInvalidManagerPeer      = errors.New("message source is not the registered peer manager")
	ErrInvalidRecipientManager = errors.New("message is not addressed to this manager")
	ErrInvalidChainID          = errors.New("message is not addressed to this chain")

	// Replay errors; hard unconditional rejections
	ErrTransferAlreadyRedeemed = errors.New("transfer already redeemed")

	// Quorum not yet reached
	ErrTransferNotApproved = errors.New("transfer has not reached the attestation threshold")

	// Admin errors
	ErrPaused          = errors.New("manager is paused")
	ErrNotOwner        = errors.New("caller is not the owner")
	ErrNotPendingOwner = errors.New("caller is not the pending owner")
	ErrInitialized     = errors.New("manager already initialized")
)
