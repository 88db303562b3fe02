// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/luxfi/crypto/hash"
	"github.com/luxfi/ids"

	"github.com/luxfi/ntt/utils/wrappers"
)

const (
	prefixLen = 4

	// maxPayloadLen bounds the variable-length payload fields. Lengths are
	// carried as u16 on the wire.
	maxPayloadLen = 0xffff
)

var (
	// NativeTokenTransferPrefix tags a serialized NativeTokenTransfer.
	NativeTokenTransferPrefix = [prefixLen]byte{0x99, 'N', 'T', 'T'}

	ErrInvalidPrefix   = errors.New("invalid payload prefix")
	ErrPayloadTooLarge = errors.New("payload exceeds maximum length")
	ErrTrailingBytes   = errors.New("trailing bytes after payload")
)

// NativeTokenTransfer is the inner payload of a manager message: the amount
// being transferred, the token it refers to on the source chain, and where
// it is going.
type NativeTokenTransfer struct {
	Amount            TrimmedAmount
	SourceToken       ids.ID
	ToChain           ChainID
	To                ids.ID
	AdditionalPayload []byte
}

// Bytes returns the canonical wire form of the transfer.
func (t *NativeTokenTransfer) Bytes() ([]byte, error) {
	if len(t.AdditionalPayload) > maxPayloadLen {
		return nil, ErrPayloadTooLarge
	}
	p := &wrappers.Packer{MaxSize: maxPayloadLen + 128}
	p.PackFixedBytes(NativeTokenTransferPrefix[:])
	t.Amount.Pack(p)
	p.PackFixedBytes(t.SourceToken[:])
	p.PackShort(uint16(t.ToChain))
	p.PackFixedBytes(t.To[:])
	p.PackShort(uint16(len(t.AdditionalPayload)))
	p.PackFixedBytes(t.AdditionalPayload)
	return p.Bytes, p.Err
}

// ParseNativeTokenTransfer parses the canonical wire form of a transfer.
func ParseNativeTokenTransfer(b []byte) (*NativeTokenTransfer, error) {
	p := &wrappers.Packer{Bytes: b}
	prefix := p.UnpackFixedBytes(prefixLen)
	if p.Errored() {
		return nil, p.Err
	}
	if [prefixLen]byte(prefix) != NativeTokenTransferPrefix {
		return nil, fmt.Errorf("%w: %x", ErrInvalidPrefix, prefix)
	}

	t := &NativeTokenTransfer{
		Amount: UnpackTrimmedAmount(p),
	}
	copy(t.SourceToken[:], p.UnpackFixedBytes(ids.IDLen))
	t.ToChain = ChainID(p.UnpackShort())
	copy(t.To[:], p.UnpackFixedBytes(ids.IDLen))
	payloadLen := p.UnpackShort()
	t.AdditionalPayload = p.UnpackFixedBytes(int(payloadLen))
	if p.Errored() {
		return nil, p.Err
	}
	if p.Offset != len(b) {
		return nil, ErrTrailingBytes
	}
	if len(t.AdditionalPayload) == 0 {
		t.AdditionalPayload = nil
	}
	return t, nil
}

// ManagerMessage is the payload a manager emits for a single transfer. The
// ID is unique per source manager and is what the destination chain keys
// replay protection on.
type ManagerMessage struct {
	ID      ids.ID
	Sender  ids.ID
	Payload NativeTokenTransfer
}

// Bytes returns the canonical wire form of the message: id, sender, then the
// u16-length-prefixed transfer payload.
func (m *ManagerMessage) Bytes() ([]byte, error) {
	payload, err := m.Payload.Bytes()
	if err != nil {
		return nil, err
	}
	if len(payload) > maxPayloadLen {
		return nil, ErrPayloadTooLarge
	}
	p := &wrappers.Packer{MaxSize: maxPayloadLen + 2*ids.IDLen + wrappers.ShortLen}
	p.PackFixedBytes(m.ID[:])
	p.PackFixedBytes(m.Sender[:])
	p.PackShort(uint16(len(payload)))
	p.PackFixedBytes(payload)
	return p.Bytes, p.Err
}

// ParseManagerMessage parses the canonical wire form of a manager message.
func ParseManagerMessage(b []byte) (*ManagerMessage, error) {
	p := &wrappers.Packer{Bytes: b}
	m := &ManagerMessage{}
	copy(m.ID[:], p.UnpackFixedBytes(ids.IDLen))
	copy(m.Sender[:], p.UnpackFixedBytes(ids.IDLen))
	payloadLen := p.UnpackShort()
	payload := p.UnpackFixedBytes(int(payloadLen))
	if p.Errored() {
		return nil, p.Err
	}
	if p.Offset != len(b) {
		return nil, ErrTrailingBytes
	}
	transfer, err := ParseNativeTokenTransfer(payload)
	if err != nil {
		return nil, err
	}
	m.Payload = *transfer
	return m, nil
}

// Digest uniquely identifies a manager message network-wide: the sha256 of
// the source chain id concatenated with the serialized message. Replay
// protection on the destination chain keys inbox records on this digest.
func (m *ManagerMessage) Digest(sourceChain ChainID) (ids.ID, error) {
	msgBytes, err := m.Bytes()
	if err != nil {
		return ids.Empty, err
	}
	buf := make([]byte, wrappers.ShortLen, wrappers.ShortLen+len(msgBytes))
	binary.BigEndian.PutUint16(buf, uint16(sourceChain))
	buf = append(buf, msgBytes...)
	return hash.ComputeHash256Array(buf), nil
}
