// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package manager

import (
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/ntt/config"
)

func TestAdminRequiresOwner(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager(t, config.Locking)
	stranger := ids.GenerateTestID()

	require.ErrorIs(m.TransferOwnership(stranger, stranger), ErrNotOwner)
	require.ErrorIs(m.SetPaused(stranger, true), ErrNotOwner)
	require.ErrorIs(m.SetPeer(stranger, remoteChain, peerManager, peerDecimals, 1), ErrNotOwner)
	require.ErrorIs(m.SetOutboundLimit(stranger, 1), ErrNotOwner)
	require.ErrorIs(m.SetInboundLimit(stranger, remoteChain, 1), ErrNotOwner)
	require.ErrorIs(m.SetThreshold(stranger, 1), ErrNotOwner)
	_, err := m.RegisterTransceiver(stranger, ids.GenerateTestID())
	require.ErrorIs(err, ErrNotOwner)
	require.ErrorIs(m.DeregisterTransceiver(stranger, transceiverA), ErrNotOwner)
}

func TestOwnershipHandover(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager(t, config.Locking)
	newOwner := ids.GenerateTestID()

	require.NoError(m.TransferOwnership(owner, newOwner))

	// The handover is pending: the old owner stays in control and the new
	// owner has none yet.
	require.NoError(m.SetPaused(owner, false))
	require.ErrorIs(m.SetPaused(newOwner, false), ErrNotOwner)

	// Only the pending owner may claim.
	require.ErrorIs(m.ClaimOwnership(ids.GenerateTestID()), ErrNotPendingOwner)
	require.NoError(m.ClaimOwnership(newOwner))

	require.NoError(m.SetPaused(newOwner, false))
	require.ErrorIs(m.SetPaused(owner, false), ErrNotOwner)

	// No pending owner remains after the claim.
	require.ErrorIs(m.ClaimOwnership(newOwner), ErrNotPendingOwner)
}

func TestTransferOwnershipOverwritesPending(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager(t, config.Locking)

	first := ids.GenerateTestID()
	second := ids.GenerateTestID()
	require.NoError(m.TransferOwnership(owner, first))
	require.NoError(m.TransferOwnership(owner, second))

	require.ErrorIs(m.ClaimOwnership(first), ErrNotPendingOwner)
	require.NoError(m.ClaimOwnership(second))
}

func TestSetThresholdBounds(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager(t, config.Locking)

	require.ErrorIs(m.SetThreshold(owner, 0), ErrZeroThreshold)
	require.ErrorIs(m.SetThreshold(owner, 3), ErrThresholdTooHigh)
	require.NoError(m.SetThreshold(owner, 2))
}

func TestDeregisterClampsThreshold(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager(t, config.Locking)
	require.NoError(m.SetThreshold(owner, 2))

	require.NoError(m.DeregisterTransceiver(owner, transceiverB))

	// With one transceiver left, a threshold of 2 could never be met; it
	// was clamped to 1 so the remaining transceiver can still reach quorum.
	digest, err := m.RecordAttestation(transceiverA, remoteChain, inboundEnvelope(ids.GenerateTestID(), 10))
	require.NoError(err)
	released, err := m.TryReleaseInbound(digest, true)
	require.NoError(err)
	require.True(released)
}

func TestDeregisterTwice(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager(t, config.Locking)

	require.NoError(m.DeregisterTransceiver(owner, transceiverB))
	require.ErrorIs(m.DeregisterTransceiver(owner, transceiverB), ErrTransceiverDisabled)
}

func TestReRegisterKeepsID(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager(t, config.Locking)

	_, err := m.RegisterTransceiver(owner, transceiverB)
	require.ErrorIs(err, ErrTransceiverEnabled)

	require.NoError(m.DeregisterTransceiver(owner, transceiverB))

	id, err := m.RegisterTransceiver(owner, transceiverB)
	require.NoError(err)
	require.Equal(uint8(1), id)

	// Re-enabling did not burn a fresh ID.
	idC, err := m.RegisterTransceiver(owner, ids.GenerateTestID())
	require.NoError(err)
	require.Equal(uint8(2), idC)
}

func TestRegistryFillsUp(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager(t, config.Locking)

	// Two IDs are taken by the fixture.
	for i := 2; i < config.MaxTransceivers; i++ {
		_, err := m.RegisterTransceiver(owner, ids.GenerateTestID())
		require.NoError(err)
	}
	_, err := m.RegisterTransceiver(owner, ids.GenerateTestID())
	require.ErrorIs(err, ErrTooManyTransceivers)

	// Deregistering does not free the ID for newcomers.
	require.NoError(m.DeregisterTransceiver(owner, transceiverA))
	_, err = m.RegisterTransceiver(owner, ids.GenerateTestID())
	require.ErrorIs(err, ErrTooManyTransceivers)
}

func TestSetOutboundLimit(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager(t, config.Locking)

	_, err := m.InitiateTransfer(sender, 70_000, remoteChain, recipient, false)
	require.NoError(err)

	// Lowering below the current capacity caps it immediately.
	require.NoError(m.SetOutboundLimit(owner, 2_000))
	capacity, err := m.OutboundCapacity()
	require.NoError(err)
	require.Equal(uint64(2_000), capacity)

	// Raising the limit back does not refill what was consumed.
	require.NoError(m.SetOutboundLimit(owner, 20_000))
	capacity, err = m.OutboundCapacity()
	require.NoError(err)
	require.Equal(uint64(2_000), capacity)
}

func TestSetPeerReplacesLimiter(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager(t, config.Locking)

	require.NoError(m.SetPeer(owner, remoteChain, peerManager, peerDecimals, 500))
	capacity, err := m.InboundCapacity(remoteChain)
	require.NoError(err)
	require.Equal(uint64(500), capacity)
}
