// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package state manages persistent state for the token transfer manager:
// the mutable status singleton, peer and transceiver registries, outbox and
// inbox records, and the rate limiter buckets.
package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luxfi/database"
	"github.com/luxfi/database/prefixdb"
	"github.com/luxfi/ids"

	"github.com/luxfi/ntt/ratelimit"
	"github.com/luxfi/ntt/types"
)

var (
	ErrNotInitialized           = errors.New("manager state not initialized")
	ErrPeerNotRegistered        = errors.New("no peer registered for chain")
	ErrTransceiverNotRegistered = errors.New("transceiver not registered")
	ErrOutboxItemNotFound       = errors.New("outbox item not found")
	ErrInboxItemNotFound        = errors.New("inbox item not found")

	statusPrefix      = []byte("status")
	peerPrefix        = []byte("peer")
	transceiverPrefix = []byte("transceiver")
	outboxPrefix      = []byte("outbox")
	inboxPrefix       = []byte("inbox")
	limiterPrefix     = []byte("limiter")

	statusKey          = []byte("singleton")
	outboundLimiterKey = []byte("outbound")
	inboundLimiterTag  = byte('i')
)

// State provides typed access to the manager's records. All methods are safe
// for concurrent use; each individual get/put is atomic with respect to the
// others.
type State struct {
	mu sync.RWMutex

	statusDB      database.Database
	peerDB        database.Database
	transceiverDB database.Database
	outboxDB      database.Database
	inboxDB       database.Database
	limiterDB     database.Database

	// refill window applied to every limiter reconstructed from disk
	window time.Duration
}

// New creates a state manager over [db]. [window] is the rate limiter refill
// window of this deployment.
func New(db database.Database, window time.Duration) *State {
	return &State{
		statusDB:      prefixdb.New(statusPrefix, db),
		peerDB:        prefixdb.New(peerPrefix, db),
		transceiverDB: prefixdb.New(transceiverPrefix, db),
		outboxDB:      prefixdb.New(outboxPrefix, db),
		inboxDB:       prefixdb.New(inboxPrefix, db),
		limiterDB:     prefixdb.New(limiterPrefix, db),
		window:        window,
	}
}

// GetStatus returns the mutable status singleton. Fails with
// ErrNotInitialized before the first PutStatus.
func (s *State) GetStatus() (*Status, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.statusDB.Get(statusKey)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotInitialized
		}
		return nil, err
	}
	status := &Status{}
	if _, err := recordCodec.Unmarshal(data, status); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return status, nil
}

// PutStatus persists the status singleton.
func (s *State) PutStatus(status *Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := recordCodec.Marshal(codecVersion, status)
	if err != nil {
		return err
	}
	return s.statusDB.Put(statusKey, data)
}

// GetPeer returns the trusted manager registered for [chain]. Fails with
// ErrPeerNotRegistered if none is.
func (s *State) GetPeer(chain types.ChainID) (*Peer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.peerDB.Get(chainKey(chain))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPeerNotRegistered, chain)
		}
		return nil, err
	}
	peer := &Peer{}
	if _, err := recordCodec.Unmarshal(data, peer); err != nil {
		return nil, fmt.Errorf("failed to decode peer: %w", err)
	}
	return peer, nil
}

// PutPeer registers [peer] as the trusted manager for [chain], replacing any
// previous registration.
func (s *State) PutPeer(chain types.ChainID, peer *Peer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := recordCodec.Marshal(codecVersion, peer)
	if err != nil {
		return err
	}
	return s.peerDB.Put(chainKey(chain), data)
}

// GetTransceiver returns the registration record for the transceiver at
// [addr]. Fails with ErrTransceiverNotRegistered if there is none.
func (s *State) GetTransceiver(addr ids.ID) (*Transceiver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.transceiverDB.Get(addr[:])
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTransceiverNotRegistered, addr)
		}
		return nil, err
	}
	t := &Transceiver{}
	if _, err := recordCodec.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to decode transceiver: %w", err)
	}
	return t, nil
}

// PutTransceiver persists a transceiver registration, keyed by both address
// and ID.
func (s *State) PutTransceiver(t *Transceiver) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := recordCodec.Marshal(codecVersion, t)
	if err != nil {
		return err
	}
	if err := s.transceiverDB.Put(t.Address[:], data); err != nil {
		return err
	}
	return s.transceiverDB.Put([]byte{'i', t.ID}, data)
}

// GetTransceiverByID returns the registration record for transceiver [id].
func (s *State) GetTransceiverByID(id uint8) (*Transceiver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.transceiverDB.Get([]byte{'i', id})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrTransceiverNotRegistered, id)
		}
		return nil, err
	}
	t := &Transceiver{}
	if _, err := recordCodec.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to decode transceiver: %w", err)
	}
	return t, nil
}

// GetOutboxItem returns the staged outbound transfer with [id].
func (s *State) GetOutboxItem(id ids.ID) (*OutboxItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.outboxDB.Get(id[:])
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrOutboxItemNotFound, id)
		}
		return nil, err
	}
	item := &OutboxItem{}
	if _, err := recordCodec.Unmarshal(data, item); err != nil {
		return nil, fmt.Errorf("failed to decode outbox item: %w", err)
	}
	return item, nil
}

// PutOutboxItem persists a staged outbound transfer.
func (s *State) PutOutboxItem(id ids.ID, item *OutboxItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := recordCodec.Marshal(codecVersion, item)
	if err != nil {
		return err
	}
	return s.outboxDB.Put(id[:], data)
}

// GetInboxItem returns the inbound transfer record keyed by [digest].
func (s *State) GetInboxItem(digest ids.ID) (*InboxItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.inboxDB.Get(digest[:])
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInboxItemNotFound, digest)
		}
		return nil, err
	}
	item := &InboxItem{}
	if _, err := recordCodec.Unmarshal(data, item); err != nil {
		return nil, fmt.Errorf("failed to decode inbox item: %w", err)
	}
	return item, nil
}

// UpsertInboxItem persists [item] under [digest] and reports whether the
// record was newly created. Creation is first-writer-wins: concurrent
// attestation paths racing to create the same record converge on identical
// state.
func (s *State) UpsertInboxItem(digest ids.ID, item *InboxItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existed, err := s.inboxDB.Has(digest[:])
	if err != nil {
		return false, err
	}
	data, err := recordCodec.Marshal(codecVersion, item)
	if err != nil {
		return false, err
	}
	return !existed, s.inboxDB.Put(digest[:], data)
}

// PutInboxItem persists an inbound transfer record.
func (s *State) PutInboxItem(digest ids.ID, item *InboxItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := recordCodec.Marshal(codecVersion, item)
	if err != nil {
		return err
	}
	return s.inboxDB.Put(digest[:], data)
}

// GetOutboundLimiter returns the manager-wide outbound rate limiter. A
// deployment that has never persisted one gets a zero-limit limiter.
func (s *State) GetOutboundLimiter() (*ratelimit.RateLimiter, error) {
	return s.getLimiter(outboundLimiterKey)
}

// PutOutboundLimiter persists the manager-wide outbound rate limiter.
func (s *State) PutOutboundLimiter(l *ratelimit.RateLimiter) error {
	return s.putLimiter(outboundLimiterKey, l)
}

// GetInboundLimiter returns the inbound rate limiter for [chain]. A chain
// whose limit has never been set gets a zero-limit limiter.
func (s *State) GetInboundLimiter(chain types.ChainID) (*ratelimit.RateLimiter, error) {
	return s.getLimiter(inboundLimiterKey(chain))
}

// PutInboundLimiter persists the inbound rate limiter for [chain].
func (s *State) PutInboundLimiter(chain types.ChainID, l *ratelimit.RateLimiter) error {
	return s.putLimiter(inboundLimiterKey(chain), l)
}

func (s *State) getLimiter(key []byte) (*ratelimit.RateLimiter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.limiterDB.Get(key)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ratelimit.New(0, s.window, time.Unix(0, 0)), nil
		}
		return nil, err
	}
	rec := &limiterRecord{}
	if _, err := recordCodec.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to decode rate limiter: %w", err)
	}
	return ratelimit.NewWithState(rec.Limit, rec.Capacity, time.Unix(rec.LastTxTimestamp, 0), s.window), nil
}

func (s *State) putLimiter(key []byte, l *ratelimit.RateLimiter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := recordCodec.Marshal(codecVersion, &limiterRecord{
		Limit:           l.Limit(),
		Capacity:        l.Capacity(),
		LastTxTimestamp: l.LastTxTimestamp().Unix(),
	})
	if err != nil {
		return err
	}
	return s.limiterDB.Put(key, data)
}

func chainKey(chain types.ChainID) []byte {
	key := make([]byte, 2)
	binary.BigEndian.PutUint16(key, uint16(chain))
	return key
}

func inboundLimiterKey(chain types.ChainID) []byte {
	return append([]byte{inboundLimiterTag}, chainKey(chain)...)
}
