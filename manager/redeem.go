// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package manager

import (
	"errors"
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/ntt/config"
	"github.com/luxfi/ntt/ratelimit"
	"github.com/luxfi/ntt/state"
	"github.com/luxfi/ntt/types"
)

// RecordAttestation records that [transceiver] has delivered [env] from
// [sourceChain]. The envelope must come from the registered peer manager on
// that chain and be addressed to this manager and chain; any mismatch
// rejects the attestation without state change.
//
// The inbox record is created on first sight. Attesting the same message
// twice through the same transceiver is a no-op, since retries by a relay
// path are expected. Returns the message digest, which keys the inbox record
// for TryReleaseInbound.
func (m *Manager) RecordAttestation(
	transceiver ids.ID,
	sourceChain types.ChainID,
	env *types.TransceiverMessage,
) (ids.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.db.Abort()

	status, err := m.state.GetStatus()
	if err != nil {
		return ids.Empty, err
	}

	t, err := m.state.GetTransceiver(transceiver)
	if err != nil {
		return ids.Empty, err
	}
	if !status.Enabled().Contains(int(t.ID)) {
		return ids.Empty, fmt.Errorf("%w: %s", ErrTransceiverDisabled, transceiver)
	}

	peer, err := m.state.GetPeer(sourceChain)
	if err != nil {
		return ids.Empty, err
	}
	if env.SourceManager != peer.Address {
		return ids.Empty, fmt.Errorf("%w: %s is not %s",
			ErrInvalidManagerPeer, env.SourceManager, peer.Address)
	}
	if env.RecipientManager != m.cfg.Manager {
		return ids.Empty, fmt.Errorf("%w: %s", ErrInvalidRecipientManager, env.RecipientManager)
	}
	msg := &env.ManagerPayload
	if msg.Payload.ToChain != m.cfg.ChainID {
		return ids.Empty, fmt.Errorf("%w: %s is not %s",
			ErrInvalidChainID, msg.Payload.ToChain, m.cfg.ChainID)
	}

	digest, err := msg.Digest(sourceChain)
	if err != nil {
		return ids.Empty, err
	}

	item, err := m.state.GetInboxItem(digest)
	switch {
	case errors.Is(err, state.ErrInboxItemNotFound):
		item = &state.InboxItem{
			SourceChain: sourceChain,
			Amount:      msg.Payload.Amount,
			Recipient:   msg.Payload.To,
		}
	case err != nil:
		return ids.Empty, err
	case item.Voted(t.ID):
		// Redundant delivery through the same relay path.
		return digest, nil
	}

	item.AddVote(t.ID)
	if _, err := m.state.UpsertInboxItem(digest, item); err != nil {
		return ids.Empty, err
	}

	m.metrics.MarkAttestation()
	m.log.Info("recorded attestation",
		log.Stringer("digest", digest),
		log.Stringer("transceiver", transceiver),
		log.Stringer("sourceChain", sourceChain),
		log.Int("votes", item.Votes().Len()),
	)
	return digest, m.db.Commit()
}

// TryReleaseInbound credits the inbound transfer keyed by [digest] to its
// recipient. It requires quorum: at least threshold distinct transceivers
// must have attested the message.
//
// The first approved attempt runs the inbound rate limiter. With capacity,
// the credit happens immediately and the consumed capacity replenishes the
// outbound limiter (backflow). Without capacity the credit is deferred by
// the queue delay rather than failed; callers poll by calling again later.
// While the deferral is pending the call fails with ErrCantReleaseYet, or
// reports false without error when [revertWhenNotReady] is false.
//
// Release happens at most once: any attempt after a successful release fails
// with ErrTransferAlreadyRedeemed so double-spend attempts stay observable.
func (m *Manager) TryReleaseInbound(digest ids.ID, revertWhenNotReady bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.db.Abort()

	status, err := m.state.GetStatus()
	if err != nil {
		return false, err
	}
	if status.Paused {
		return false, ErrPaused
	}

	item, err := m.state.GetInboxItem(digest)
	if err != nil {
		return false, err
	}
	if item.Status == state.ReleaseStatusReleased {
		return false, fmt.Errorf("%w: %s", ErrTransferAlreadyRedeemed, digest)
	}
	if votes := item.Votes().Len(); votes < int(status.Threshold) || status.Threshold == 0 {
		return false, fmt.Errorf("%w: %d of %d attestations",
			ErrTransferNotApproved, votes, status.Threshold)
	}

	now := m.clock.Time()
	delayed := false
	if item.Status == state.ReleaseStatusNone {
		limiter, err := m.state.GetInboundLimiter(item.SourceChain)
		if err != nil {
			return false, err
		}
		switch err := limiter.Consume(now, item.Amount.Amount); {
		case err == nil:
			if err := m.state.PutInboundLimiter(item.SourceChain, limiter); err != nil {
				return false, err
			}
			// Receiving a transfer refills the outbound side (backflow).
			outbound, err := m.state.GetOutboundLimiter()
			if err != nil {
				return false, err
			}
			outbound.Replenish(now, item.Amount.Amount)
			if err := m.state.PutOutboundLimiter(outbound); err != nil {
				return false, err
			}
			item.ReleaseTimestamp = now.Unix()

		case errors.Is(err, ratelimit.ErrInsufficientCapacity):
			// Deferring is not a failure: the attestation work is kept and
			// the credit is rescheduled past the queue delay.
			delayed = true
			item.ReleaseTimestamp = now.Add(m.cfg.QueueDelay).Unix()
			m.metrics.MarkInboundDelayed()
			m.log.Info("inbound transfer delayed by rate limiter",
				log.Stringer("digest", digest),
				log.Int64("releaseTimestamp", item.ReleaseTimestamp),
			)

		default:
			return false, err
		}
		item.Status = state.ReleaseStatusReleaseAfter
		if err := m.state.PutInboxItem(digest, item); err != nil {
			return false, err
		}
	}

	if now.Unix() < item.ReleaseTimestamp {
		if revertWhenNotReady && !delayed {
			return false, fmt.Errorf("%w: inbox item %s releases at %d",
				ErrCantReleaseYet, digest, item.ReleaseTimestamp)
		}
		return false, m.db.Commit()
	}

	credit, err := item.Amount.Untrim(m.cfg.TokenDecimals)
	if err != nil {
		return false, err
	}
	switch m.cfg.Mode {
	case config.Burning:
		err = m.ledger.Mint(item.Recipient, credit)
	default:
		err = m.ledger.Unlock(item.Recipient, credit)
	}
	if err != nil {
		return false, fmt.Errorf("custody credit failed: %w", err)
	}

	item.Status = state.ReleaseStatusReleased
	if err := m.state.PutInboxItem(digest, item); err != nil {
		return false, err
	}

	m.metrics.MarkInboundReleased()
	m.log.Info("released inbound transfer",
		log.Stringer("digest", digest),
		log.Stringer("recipient", item.Recipient),
		log.Uint64("amount", credit),
	)
	return true, m.db.Commit()
}
