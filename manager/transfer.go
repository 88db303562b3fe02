// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package manager

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/crypto/hash"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/ntt/config"
	"github.com/luxfi/ntt/ratelimit"
	"github.com/luxfi/ntt/state"
	"github.com/luxfi/ntt/types"
)

// InitiateTransfer stages an outbound transfer of [amount] (in the local
// token's decimals) to [recipient] on [recipientChain].
//
// The amount is trimmed to the precision shared with the peer; the trimmed
// dust never leaves the sender. If the outbound rate limiter has capacity
// the transfer is releasable immediately and the consumed capacity
// replenishes the inbound limiter for [recipientChain] (backflow).
// Otherwise the transfer fails with ErrTransferExceedsRateLimit, unless
// [shouldQueue] is set, in which case it is staged with zero consumption and
// becomes releasable after the queue delay.
//
// Returns the outbox item ID, which doubles as the manager message ID on the
// wire.
func (m *Manager) InitiateTransfer(
	sender ids.ID,
	amount uint64,
	recipientChain types.ChainID,
	recipient ids.ID,
	shouldQueue bool,
) (ids.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.db.Abort()

	status, err := m.state.GetStatus()
	if err != nil {
		return ids.Empty, err
	}
	if status.Paused {
		return ids.Empty, ErrPaused
	}

	peer, err := m.state.GetPeer(recipientChain)
	if err != nil {
		return ids.Empty, err
	}

	trimmed := types.Trim(amount, m.cfg.TokenDecimals, peer.Decimals)
	debit, err := trimmed.Untrim(m.cfg.TokenDecimals)
	if err != nil {
		return ids.Empty, err
	}

	now := m.clock.Time()
	limiter, err := m.state.GetOutboundLimiter()
	if err != nil {
		return ids.Empty, err
	}

	releaseTimestamp := now.Unix()
	switch err := limiter.Consume(now, trimmed.Amount); {
	case err == nil:
		if err := m.state.PutOutboundLimiter(limiter); err != nil {
			return ids.Empty, err
		}
		// Consuming outbound capacity refills the inbound side for the same
		// chain, so a transfer that round-trips is not penalized twice.
		inbound, err := m.state.GetInboundLimiter(recipientChain)
		if err != nil {
			return ids.Empty, err
		}
		inbound.Replenish(now, trimmed.Amount)
		if err := m.state.PutInboundLimiter(recipientChain, inbound); err != nil {
			return ids.Empty, err
		}
		m.metrics.MarkTransferInitiated()

	case errors.Is(err, ratelimit.ErrInsufficientCapacity):
		if !shouldQueue {
			m.metrics.MarkTransferRateLimited()
			return ids.Empty, fmt.Errorf("%w: %d > %d",
				ErrTransferExceedsRateLimit, trimmed.Amount, limiter.CapacityAt(now))
		}
		// Queued transfers wait out the delay instead of consuming capacity.
		releaseTimestamp = now.Add(m.cfg.QueueDelay).Unix()
		m.metrics.MarkTransferQueued()

	default:
		return ids.Empty, err
	}

	switch m.cfg.Mode {
	case config.Burning:
		err = m.ledger.Burn(sender, debit)
	default:
		err = m.ledger.Lock(sender, debit)
	}
	if err != nil {
		return ids.Empty, fmt.Errorf("custody debit failed: %w", err)
	}

	msgID := messageID(m.cfg.Manager, status.Sequence)
	status.Sequence++
	if err := m.state.PutStatus(status); err != nil {
		return ids.Empty, err
	}
	if err := m.state.PutOutboxItem(msgID, &state.OutboxItem{
		Amount:           trimmed,
		Sender:           sender,
		RecipientChain:   recipientChain,
		RecipientManager: peer.Address,
		RecipientAddress: recipient,
		ReleaseTimestamp: releaseTimestamp,
	}); err != nil {
		return ids.Empty, err
	}

	m.log.Info("staged outbound transfer",
		log.Stringer("id", msgID),
		log.Stringer("amount", trimmed),
		log.Stringer("recipientChain", recipientChain),
		log.Int64("releaseTimestamp", releaseTimestamp),
	)
	return msgID, m.db.Commit()
}

// ReleaseOutbound marks the outbox item as relayed by [transceiver] and
// returns the envelope that transceiver must emit. It is idempotent per
// transceiver: repeated calls after the first return a nil message and no
// error, so redundant relayer submissions never abort.
//
// Before the item's release timestamp the call fails with ErrCantReleaseYet,
// or silently returns no message when [revertWhenNotReady] is false (the
// polling mode).
func (m *Manager) ReleaseOutbound(
	transceiver ids.ID,
	outboxID ids.ID,
	revertWhenNotReady bool,
) (*types.TransceiverMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.db.Abort()

	status, err := m.state.GetStatus()
	if err != nil {
		return nil, err
	}
	if status.Paused {
		return nil, ErrPaused
	}

	t, err := m.state.GetTransceiver(transceiver)
	if err != nil {
		return nil, err
	}
	if !status.Enabled().Contains(int(t.ID)) {
		return nil, fmt.Errorf("%w: %s", ErrTransceiverDisabled, transceiver)
	}

	item, err := m.state.GetOutboxItem(outboxID)
	if err != nil {
		return nil, err
	}
	if !item.ReleasableAt(m.clock.Time()) {
		if revertWhenNotReady {
			return nil, fmt.Errorf("%w: outbox item %s releases at %d",
				ErrCantReleaseYet, outboxID, item.ReleaseTimestamp)
		}
		return nil, nil
	}
	if item.Released(t.ID) {
		// Already relayed through this transceiver.
		return nil, nil
	}

	item.MarkReleased(t.ID)
	if err := m.state.PutOutboxItem(outboxID, item); err != nil {
		return nil, err
	}

	env := &types.TransceiverMessage{
		SourceManager:    m.cfg.Manager,
		RecipientManager: item.RecipientManager,
		ManagerPayload: types.ManagerMessage{
			ID:     outboxID,
			Sender: item.Sender,
			Payload: types.NativeTokenTransfer{
				Amount:      item.Amount,
				SourceToken: m.cfg.Token,
				ToChain:     item.RecipientChain,
				To:          item.RecipientAddress,
			},
		},
	}

	m.metrics.MarkOutboundReleased()
	m.log.Debug("released outbox item",
		log.Stringer("id", outboxID),
		log.Stringer("transceiver", transceiver),
	)
	return env, m.db.Commit()
}

// messageID derives the manager message ID of the [seq]th transfer sent by
// [manager].
func messageID(manager ids.ID, seq uint64) ids.ID {
	buf := make([]byte, ids.IDLen+8)
	copy(buf, manager[:])
	binary.BigEndian.PutUint64(buf[ids.IDLen:], seq)
	return hash.ComputeHash256Array(buf)
}
