// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package manager implements the rate-limited, replay-safe,
// multi-transceiver message manager at the core of the native token
// transfer protocol. Outbound transfers are staged in the outbox subject to
// a decaying-capacity rate limiter, relayed redundantly by registered
// transceivers, and credited on the destination chain exactly once after a
// configurable attestation threshold is met.
package manager

import (
	"errors"
	"sync"

	"github.com/luxfi/database"
	"github.com/luxfi/database/versiondb"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/luxfi/ntt/config"
	"github.com/luxfi/ntt/metrics"
	"github.com/luxfi/ntt/ratelimit"
	"github.com/luxfi/ntt/state"
	"github.com/luxfi/ntt/types"
	"github.com/luxfi/ntt/utils/timer/mockable"
)

// Manager orchestrates transfer send, attestation, quorum and release.
//
// Every exported operation is a single atomic state transition: it either
// commits all of its record writes or none of them. Operations never block
// waiting for time to pass or for more attestations; callers poll by
// resubmitting after conditions change.
type Manager struct {
	// Serializes operations. Within one operation the versioned database
	// provides the all-or-nothing guarantee.
	mu sync.Mutex

	cfg     config.Config
	db      *versiondb.Database
	state   *state.State
	ledger  Ledger
	clock   mockable.Clock
	log     log.Logger
	metrics metrics.Metrics
}

// New builds a manager over [db]. [ledger] is the token-custody
// collaborator invoked when transfers are staged and released.
func New(
	cfg config.Config,
	db database.Database,
	ledger Ledger,
	logger log.Logger,
	registry metrics.Metrics,
) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	vdb := versiondb.New(db)
	return &Manager{
		cfg:     cfg,
		db:      vdb,
		state:   state.New(vdb, cfg.RateLimitWindow),
		ledger:  ledger,
		log:     logger,
		metrics: registry,
	}, nil
}

// Clock returns the manager's clock so tests can drive time explicitly.
func (m *Manager) Clock() *mockable.Clock {
	return &m.clock
}

// Initialize writes the status singleton and the outbound rate limiter.
// Fails with ErrInitialized if the manager has state already.
func (m *Manager) Initialize(owner ids.ID, outboundLimit uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.db.Abort()

	if _, err := m.state.GetStatus(); err == nil {
		return ErrInitialized
	} else if !errors.Is(err, state.ErrNotInitialized) {
		return err
	}

	now := m.clock.Time()
	if err := m.state.PutStatus(&state.Status{Owner: owner}); err != nil {
		return err
	}
	if err := m.state.PutOutboundLimiter(
		ratelimit.New(outboundLimit, m.cfg.RateLimitWindow, now),
	); err != nil {
		return err
	}

	m.log.Info("initialized manager",
		log.Stringer("owner", owner),
		log.Uint64("outboundLimit", outboundLimit),
		log.String("mode", m.cfg.Mode.String()),
	)
	return m.db.Commit()
}

// OutboundCapacity returns the outbound rate limit capacity available now.
func (m *Manager) OutboundCapacity() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limiter, err := m.state.GetOutboundLimiter()
	if err != nil {
		return 0, err
	}
	return limiter.CapacityAt(m.clock.Time()), nil
}

// InboundCapacity returns the inbound rate limit capacity available now for
// transfers arriving from [chain].
func (m *Manager) InboundCapacity(chain types.ChainID) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limiter, err := m.state.GetInboundLimiter(chain)
	if err != nil {
		return 0, err
	}
	return limiter.CapacityAt(m.clock.Time()), nil
}
