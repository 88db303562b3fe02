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

// TransferOwnership starts the two-step ownership handover. The new owner
// takes over only after claiming; until then the current owner stays in
// control and may overwrite the pending owner.
func (m *Manager) TransferOwnership(caller, newOwner ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.db.Abort()

	status, err := m.ownedStatus(caller)
	if err != nil {
		return err
	}
	status.PendingOwner = newOwner
	if err := m.state.PutStatus(status); err != nil {
		return err
	}
	return m.db.Commit()
}

// ClaimOwnership completes the handover started by TransferOwnership.
func (m *Manager) ClaimOwnership(caller ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.db.Abort()

	status, err := m.state.GetStatus()
	if err != nil {
		return err
	}
	if status.PendingOwner == ids.Empty || caller != status.PendingOwner {
		return ErrNotPendingOwner
	}
	status.Owner = caller
	status.PendingOwner = ids.Empty
	if err := m.state.PutStatus(status); err != nil {
		return err
	}
	m.log.Info("ownership claimed", log.Stringer("owner", caller))
	return m.db.Commit()
}

// SetPaused pauses or unpauses the transfer paths. Attestations keep
// accumulating while paused; only staging and releasing are gated.
func (m *Manager) SetPaused(caller ids.ID, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.db.Abort()

	status, err := m.ownedStatus(caller)
	if err != nil {
		return err
	}
	status.Paused = paused
	if err := m.state.PutStatus(status); err != nil {
		return err
	}
	m.log.Info("set paused", log.Bool("paused", paused))
	return m.db.Commit()
}

// SetPeer registers the trusted manager for [chain] and sets the inbound
// rate limit for transfers arriving from it.
func (m *Manager) SetPeer(
	caller ids.ID,
	chain types.ChainID,
	address ids.ID,
	decimals uint8,
	inboundLimit uint64,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.db.Abort()

	if _, err := m.ownedStatus(caller); err != nil {
		return err
	}
	if err := m.state.PutPeer(chain, &state.Peer{
		Address:  address,
		Decimals: decimals,
	}); err != nil {
		return err
	}
	if err := m.state.PutInboundLimiter(
		chain,
		ratelimit.New(inboundLimit, m.cfg.RateLimitWindow, m.clock.Time()),
	); err != nil {
		return err
	}
	m.log.Info("registered peer",
		log.Stringer("chain", chain),
		log.Stringer("address", address),
		log.Uint64("inboundLimit", inboundLimit),
	)
	return m.db.Commit()
}

// SetOutboundLimit changes the outbound rate limit. Capacity accrued so far
// is preserved, capped at the new limit.
func (m *Manager) SetOutboundLimit(caller ids.ID, limit uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.db.Abort()

	if _, err := m.ownedStatus(caller); err != nil {
		return err
	}
	limiter, err := m.state.GetOutboundLimiter()
	if err != nil {
		return err
	}
	limiter.SetLimit(m.clock.Time(), limit)
	if err := m.state.PutOutboundLimiter(limiter); err != nil {
		return err
	}
	return m.db.Commit()
}

// SetInboundLimit changes the inbound rate limit for [chain].
func (m *Manager) SetInboundLimit(caller ids.ID, chain types.ChainID, limit uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.db.Abort()

	if _, err := m.ownedStatus(caller); err != nil {
		return err
	}
	limiter, err := m.state.GetInboundLimiter(chain)
	if err != nil {
		return err
	}
	limiter.SetLimit(m.clock.Time(), limit)
	if err := m.state.PutInboundLimiter(chain, limiter); err != nil {
		return err
	}
	return m.db.Commit()
}

// RegisterTransceiver enables the transceiver at [addr] and returns its ID.
// A fresh registration allocates the next ID; IDs are never reused, so the
// registry fills up permanently and rejects registrations past the bitmap
// width with ErrTooManyTransceivers. Re-registering a deregistered
// transceiver re-enables it under its original ID.
func (m *Manager) RegisterTransceiver(caller, addr ids.ID) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.db.Abort()

	status, err := m.ownedStatus(caller)
	if err != nil {
		return 0, err
	}

	t, err := m.state.GetTransceiver(addr)
	switch {
	case err == nil:
		if status.Enabled().Contains(int(t.ID)) {
			return 0, fmt.Errorf("%w: %s", ErrTransceiverEnabled, addr)
		}
	case errors.Is(err, state.ErrTransceiverNotRegistered):
		if int(status.NextTransceiverID) >= config.MaxTransceivers {
			return 0, ErrTooManyTransceivers
		}
		t = &state.Transceiver{
			ID:      status.NextTransceiverID,
			Address: addr,
		}
		status.NextTransceiverID++
		if err := m.state.PutTransceiver(t); err != nil {
			return 0, err
		}
	default:
		return 0, err
	}

	enabled := status.Enabled()
	enabled.Add(int(t.ID))
	status.SetEnabled(enabled)
	if status.Threshold == 0 {
		status.Threshold = 1
	}
	if err := m.state.PutStatus(status); err != nil {
		return 0, err
	}

	m.log.Info("registered transceiver",
		log.Stringer("address", addr),
		log.Int("id", int(t.ID)),
	)
	return t.ID, m.db.Commit()
}

// DeregisterTransceiver disables the transceiver at [addr]. Its ID stays
// reserved forever. If disabling drops the enabled count below the current
// threshold, the threshold is clamped down to the new count rather than left
// violated.
func (m *Manager) DeregisterTransceiver(caller, addr ids.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.db.Abort()

	status, err := m.ownedStatus(caller)
	if err != nil {
		return err
	}
	t, err := m.state.GetTransceiver(addr)
	if err != nil {
		return err
	}

	enabled := status.Enabled()
	if !enabled.Contains(int(t.ID)) {
		return fmt.Errorf("%w: %s", ErrTransceiverDisabled, addr)
	}
	enabled.Remove(int(t.ID))
	status.SetEnabled(enabled)
	if count := enabled.Len(); count < int(status.Threshold) {
		status.Threshold = uint8(count)
	}
	if err := m.state.PutStatus(status); err != nil {
		return err
	}

	m.log.Info("deregistered transceiver",
		log.Stringer("address", addr),
		log.Int("id", int(t.ID)),
		log.Int("threshold", int(status.Threshold)),
	)
	return m.db.Commit()
}

// SetThreshold changes the attestation threshold. Fails with
// ErrZeroThreshold for zero and ErrThresholdTooHigh when the threshold
// could never be met by the enabled transceivers.
func (m *Manager) SetThreshold(caller ids.ID, threshold uint8) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.db.Abort()

	status, err := m.ownedStatus(caller)
	if err != nil {
		return err
	}
	if threshold == 0 {
		return ErrZeroThreshold
	}
	if enabled := status.Enabled().Len(); int(threshold) > enabled {
		return fmt.Errorf("%w: %d > %d enabled", ErrThresholdTooHigh, threshold, enabled)
	}
	status.Threshold = threshold
	if err := m.state.PutStatus(status); err != nil {
		return err
	}
	return m.db.Commit()
}

// ownedStatus returns the status singleton after checking [caller] is the
// owner.
func (m *Manager) ownedStatus(caller ids.ID) (*state.Status, error) {
	status, err := m.state.GetStatus()
	if err != nil {
		return nil, err
	}
	if caller != status.Owner {
		return nil, ErrNotOwner
	}
	return status, nil
}
