// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package manager

import (
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/ntt/config"
	"github.com/luxfi/ntt/metrics"
	"github.com/luxfi/ntt/state"
	"github.com/luxfi/ntt/types"
)

func TestAttestationQuorum(t *testing.T) {
	require := require.New(t)
	m, ledger := newTestManager(t, config.Burning)
	require.NoError(m.SetThreshold(owner, 2))

	env := inboundEnvelope(ids.GenerateTestID(), 2_000)

	digest, err := m.RecordAttestation(transceiverA, remoteChain, env)
	require.NoError(err)

	// One of two attestations: not approved yet.
	_, err = m.TryReleaseInbound(digest, true)
	require.ErrorIs(err, ErrTransferNotApproved)
	require.Empty(ledger.minted)

	// A duplicate attestation through the same path changes nothing.
	digestAgain, err := m.RecordAttestation(transceiverA, remoteChain, env)
	require.NoError(err)
	require.Equal(digest, digestAgain)
	_, err = m.TryReleaseInbound(digest, true)
	require.ErrorIs(err, ErrTransferNotApproved)

	// The second transceiver completes the quorum.
	_, err = m.RecordAttestation(transceiverB, remoteChain, env)
	require.NoError(err)

	released, err := m.TryReleaseInbound(digest, true)
	require.NoError(err)
	require.True(released)
	// 2_000 at peer precision mints 20_000 local token units.
	require.Equal(uint64(20_000), ledger.minted[recipient])

	// The one-shot guarantee: any further release attempt fails loudly.
	_, err = m.TryReleaseInbound(digest, true)
	require.ErrorIs(err, ErrTransferAlreadyRedeemed)
	_, err = m.TryReleaseInbound(digest, false)
	require.ErrorIs(err, ErrTransferAlreadyRedeemed)
	require.Equal(uint64(20_000), ledger.minted[recipient])
}

func TestRecordAttestationValidation(t *testing.T) {
	m, _ := newTestManager(t, config.Locking)

	tests := []struct {
		name        string
		transceiver ids.ID
		sourceChain types.ChainID
		mutate      func(*types.TransceiverMessage)
		err         error
	}{
		{
			name:        "unregistered transceiver",
			transceiver: ids.GenerateTestID(),
			sourceChain: remoteChain,
			err:         state.ErrTransceiverNotRegistered,
		},
		{
			name:        "unregistered source chain",
			transceiver: transceiverA,
			sourceChain: types.ChainID(42),
			err:         state.ErrPeerNotRegistered,
		},
		{
			name:        "source manager is not the registered peer",
			transceiver: transceiverA,
			sourceChain: remoteChain,
			mutate: func(env *types.TransceiverMessage) {
				env.SourceManager = ids.GenerateTestID()
			},
			err: ErrInvalidManagerPeer,
		},
		{
			name:        "addressed to another manager",
			transceiver: transceiverA,
			sourceChain: remoteChain,
			mutate: func(env *types.TransceiverMessage) {
				env.RecipientManager = ids.GenerateTestID()
			},
			err: ErrInvalidRecipientManager,
		},
		{
			name:        "addressed to another chain",
			transceiver: transceiverA,
			sourceChain: remoteChain,
			mutate: func(env *types.TransceiverMessage) {
				env.ManagerPayload.Payload.ToChain = types.ChainID(3)
			},
			err: ErrInvalidChainID,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := inboundEnvelope(ids.GenerateTestID(), 1_000)
			if tt.mutate != nil {
				tt.mutate(env)
			}
			_, err := m.RecordAttestation(tt.transceiver, tt.sourceChain, env)
			require.ErrorIs(t, err, tt.err)
		})
	}
}

func TestAttestationFromDisabledTransceiver(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager(t, config.Locking)

	require.NoError(m.DeregisterTransceiver(owner, transceiverB))
	_, err := m.RecordAttestation(transceiverB, remoteChain, inboundEnvelope(ids.GenerateTestID(), 1))
	require.ErrorIs(err, ErrTransceiverDisabled)
}

func TestInboundRateLimitDefersRelease(t *testing.T) {
	require := require.New(t)
	m, ledger := newTestManager(t, config.Burning)
	require.NoError(m.SetInboundLimit(owner, remoteChain, 1_000))

	outboundBefore, err := m.OutboundCapacity()
	require.NoError(err)

	digest, err := m.RecordAttestation(transceiverA, remoteChain, inboundEnvelope(ids.GenerateTestID(), 2_000))
	require.NoError(err)

	// Over the inbound limit: the credit is deferred, not failed, even in
	// revert mode.
	released, err := m.TryReleaseInbound(digest, true)
	require.NoError(err)
	require.False(released)
	require.Empty(ledger.minted)

	// A deferred item does not replenish the outbound side.
	outboundAfter, err := m.OutboundCapacity()
	require.NoError(err)
	require.Equal(outboundBefore, outboundAfter)

	// Polling before the delay has elapsed.
	_, err = m.TryReleaseInbound(digest, true)
	require.ErrorIs(err, ErrCantReleaseYet)
	released, err = m.TryReleaseInbound(digest, false)
	require.NoError(err)
	require.False(released)

	// After the delay the credit goes through without consuming capacity.
	m.Clock().Advance(m.cfg.QueueDelay)
	released, err = m.TryReleaseInbound(digest, true)
	require.NoError(err)
	require.True(released)
	require.Equal(uint64(20_000), ledger.minted[recipient])
}

func TestInboundReleaseBackflow(t *testing.T) {
	require := require.New(t)
	m, ledger := newTestManager(t, config.Locking)

	// Drain most of the outbound capacity.
	_, err := m.InitiateTransfer(sender, 70_000, remoteChain, recipient, false)
	require.NoError(err)

	digest, err := m.RecordAttestation(transceiverA, remoteChain, inboundEnvelope(ids.GenerateTestID(), 2_000))
	require.NoError(err)
	released, err := m.TryReleaseInbound(digest, true)
	require.NoError(err)
	require.True(released)
	require.Equal(uint64(20_000), ledger.unlocked[recipient])

	// Receiving 2_000 refilled the outbound limiter by the same amount.
	capacity, err := m.OutboundCapacity()
	require.NoError(err)
	require.Equal(outboundLimit-7_000+2_000, capacity)

	// And consumed the inbound side. The earlier outbound transfer had
	// already refilled inbound to its limit, so only this redeem counts.
	inbound, err := m.InboundCapacity(remoteChain)
	require.NoError(err)
	require.Equal(inboundLimit-2_000, inbound)
}

func TestReleaseInboundWhilePaused(t *testing.T) {
	require := require.New(t)
	m, _ := newTestManager(t, config.Locking)

	digest, err := m.RecordAttestation(transceiverA, remoteChain, inboundEnvelope(ids.GenerateTestID(), 1_000))
	require.NoError(err)

	require.NoError(m.SetPaused(owner, true))

	// Attestations keep accumulating while paused; release does not.
	_, err = m.RecordAttestation(transceiverB, remoteChain, inboundEnvelope(ids.GenerateTestID(), 1_000))
	require.NoError(err)
	_, err = m.TryReleaseInbound(digest, true)
	require.ErrorIs(err, ErrPaused)
}

func TestReleaseInboundHighDecimalToken(t *testing.T) {
	require := require.New(t)

	ledger := newTestLedger()
	m, err := New(
		config.Config{
			Mode:          config.Burning,
			ChainID:       localChain,
			Manager:       managerAddr,
			Token:         tokenAddr,
			TokenDecimals: 38,
		},
		memdb.New(),
		ledger,
		log.NoLog{},
		metrics.NewNoop(),
	)
	require.NoError(err)
	m.Clock().Set(testStart)
	require.NoError(m.Initialize(owner, outboundLimit))
	require.NoError(m.SetPeer(owner, remoteChain, peerManager, peerDecimals, inboundLimit))
	_, err = m.RegisterTransceiver(owner, transceiverA)
	require.NoError(err)

	digest, err := m.RecordAttestation(transceiverA, remoteChain, inboundEnvelope(ids.GenerateTestID(), 1))
	require.NoError(err)

	// Scaling the 8-decimal wire amount up to 38 local decimals exceeds a
	// u64; the credit must fail instead of minting a wrapped amount.
	_, err = m.TryReleaseInbound(digest, true)
	require.ErrorIs(err, types.ErrAmountTooLarge)
	require.Empty(ledger.minted)
}

func TestReleaseUnknownDigest(t *testing.T) {
	m, _ := newTestManager(t, config.Locking)
	_, err := m.TryReleaseInbound(ids.GenerateTestID(), true)
	require.ErrorIs(t, err, state.ErrInboxItemNotFound)
}

func TestConcurrentAttestationPathsConverge(t *testing.T) {
	require := require.New(t)
	m, ledger := newTestManager(t, config.Burning)
	require.NoError(m.SetThreshold(owner, 2))

	// Both transceivers deliver the same logical message independently; the
	// first writer creates the record, the second lands on it.
	env := inboundEnvelope(ids.GenerateTestID(), 3_000)
	dA, err := m.RecordAttestation(transceiverA, remoteChain, env)
	require.NoError(err)
	dB, err := m.RecordAttestation(transceiverB, remoteChain, env)
	require.NoError(err)
	require.Equal(dA, dB)

	released, err := m.TryReleaseInbound(dA, true)
	require.NoError(err)
	require.True(released)
	require.Equal(uint64(30_000), ledger.minted[recipient])
}
