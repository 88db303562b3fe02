// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"time"

	"github.com/luxfi/ids"
	"github.com/luxfi/math/set"

	"github.com/luxfi/ntt/types"
)

// Status is the mutable singleton record of a manager deployment. The
// immutable deployment parameters live in the config package.
type Status struct {
	Owner        ids.ID `serialize:"true" json:"owner"`
	PendingOwner ids.ID `serialize:"true" json:"pendingOwner"`
	Paused       bool   `serialize:"true" json:"paused"`

	// Minimum number of distinct transceiver attestations required before an
	// inbound transfer may be released. Invariant:
	// 1 <= Threshold <= popcount(EnabledTransceivers) whenever any
	// transceiver is enabled.
	Threshold uint8 `serialize:"true" json:"threshold"`

	// Bitmap of enabled transceiver IDs
	EnabledTransceivers []byte `serialize:"true" json:"enabledTransceivers"`

	// Next transceiver ID to allocate. IDs are never reused, so this only
	// grows.
	NextTransceiverID uint8 `serialize:"true" json:"nextTransceiverId"`

	// Sequence number of the next outbound message
	Sequence uint64 `serialize:"true" json:"sequence"`
}

// Enabled returns the enabled-transceiver bitmap.
func (s *Status) Enabled() set.Bits {
	return set.BitsFromBytes(s.EnabledTransceivers)
}

// SetEnabled overwrites the enabled-transceiver bitmap.
func (s *Status) SetEnabled(bits set.Bits) {
	s.EnabledTransceivers = bits.Bytes()
}

// Peer is the trusted manager on a remote chain. Inbound messages claiming
// to come from that chain must originate from this address, and outbound
// amounts are trimmed to its decimal precision.
type Peer struct {
	Address  ids.ID `serialize:"true" json:"address"`
	Decimals uint8  `serialize:"true" json:"decimals"`
}

// Transceiver assigns a registered transceiver program its stable small
// integer identity, used as the index into all attestation bitmaps.
type Transceiver struct {
	ID      uint8  `serialize:"true" json:"id"`
	Address ids.ID `serialize:"true" json:"address"`
}

// OutboxItem stages one outbound transfer until its release timestamp has
// passed, then records which transceivers have relayed it. Items are never
// deleted; cleanup is an external concern.
type OutboxItem struct {
	Amount           types.TrimmedAmount `serialize:"true" json:"amount"`
	Sender           ids.ID              `serialize:"true" json:"sender"`
	RecipientChain   types.ChainID       `serialize:"true" json:"recipientChain"`
	RecipientManager ids.ID              `serialize:"true" json:"recipientManager"`
	RecipientAddress ids.ID              `serialize:"true" json:"recipientAddress"`

	// Unix seconds after which transceivers may relay this item
	ReleaseTimestamp int64 `serialize:"true" json:"releaseTimestamp"`

	// Bitmap of transceiver IDs that have already relayed this item
	ReleasedBitmap []byte `serialize:"true" json:"released"`
}

// Released reports whether the transceiver with [id] has relayed this item.
func (o *OutboxItem) Released(id uint8) bool {
	return set.BitsFromBytes(o.ReleasedBitmap).Contains(int(id))
}

// MarkReleased records that the transceiver with [id] has relayed this item.
func (o *OutboxItem) MarkReleased(id uint8) {
	bits := set.BitsFromBytes(o.ReleasedBitmap)
	bits.Add(int(id))
	o.ReleasedBitmap = bits.Bytes()
}

// ReleasableAt reports whether the item may be relayed at [now].
func (o *OutboxItem) ReleasableAt(now time.Time) bool {
	return now.Unix() >= o.ReleaseTimestamp
}

// ReleaseStatus is the terminal-state tracker of an inbox item.
type ReleaseStatus uint8

const (
	// ReleaseStatusNone: attested (possibly below quorum), release not yet
	// attempted
	ReleaseStatusNone ReleaseStatus = iota
	// ReleaseStatusReleaseAfter: release scheduled at ReleaseTimestamp
	ReleaseStatusReleaseAfter
	// ReleaseStatusReleased: tokens credited; terminal
	ReleaseStatusReleased
)

func (s ReleaseStatus) String() string {
	switch s {
	case ReleaseStatusNone:
		return "none"
	case ReleaseStatusReleaseAfter:
		return "releaseAfter"
	case ReleaseStatusReleased:
		return "released"
	default:
		return "unknown"
	}
}

// InboxItem tracks one inbound transfer, keyed by the digest of its manager
// message. It is created on first attestation and accumulates attestations
// until quorum; release is a one-way transition performed at most once.
type InboxItem struct {
	SourceChain types.ChainID       `serialize:"true" json:"sourceChain"`
	Amount      types.TrimmedAmount `serialize:"true" json:"amount"`
	Recipient   ids.ID              `serialize:"true" json:"recipient"`

	// Bitmap of transceiver IDs that have attested this message
	VotesBitmap []byte `serialize:"true" json:"votes"`

	Status ReleaseStatus `serialize:"true" json:"status"`

	// Unix seconds of the scheduled release; meaningful only while Status is
	// ReleaseStatusReleaseAfter
	ReleaseTimestamp int64 `serialize:"true" json:"releaseTimestamp"`
}

// Votes returns the attestation bitmap.
func (i *InboxItem) Votes() set.Bits {
	return set.BitsFromBytes(i.VotesBitmap)
}

// Voted reports whether the transceiver with [id] has attested this message.
func (i *InboxItem) Voted(id uint8) bool {
	return i.Votes().Contains(int(id))
}

// AddVote records an attestation by the transceiver with [id].
func (i *InboxItem) AddVote(id uint8) {
	bits := i.Votes()
	bits.Add(int(id))
	i.VotesBitmap = bits.Bytes()
}

// limiterRecord is the persisted form of a rate limiter. The refill window
// is a deployment parameter and is not persisted per limiter.
type limiterRecord struct {
	Limit           uint64 `serialize:"true"`
	Capacity        uint64 `serialize:"true"`
	LastTxTimestamp int64  `serialize:"true"`
}
