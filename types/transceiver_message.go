// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"fmt"

	"github.com/luxfi/ids"

	"github.com/luxfi/ntt/utils/wrappers"
)

// TransceiverMessagePrefix tags a serialized TransceiverMessage.
var TransceiverMessagePrefix = [prefixLen]byte{0x99, 'T', 'R', 'X'}

// TransceiverMessage is the envelope a transceiver wraps around a manager
// message before handing it to the attested-message transport. The source
// and recipient manager addresses let the destination chain verify the
// message came from the registered peer and is addressed to it.
type TransceiverMessage struct {
	SourceManager      ids.ID
	RecipientManager   ids.ID
	ManagerPayload     ManagerMessage
	TransceiverPayload []byte
}

// Bytes returns the canonical wire form of the envelope.
func (m *TransceiverMessage) Bytes() ([]byte, error) {
	payload, err := m.ManagerPayload.Bytes()
	if err != nil {
		return nil, err
	}
	if len(payload) > maxPayloadLen || len(m.TransceiverPayload) > maxPayloadLen {
		return nil, ErrPayloadTooLarge
	}
	p := &wrappers.Packer{MaxSize: 2*maxPayloadLen + 128}
	p.PackFixedBytes(TransceiverMessagePrefix[:])
	p.PackFixedBytes(m.SourceManager[:])
	p.PackFixedBytes(m.RecipientManager[:])
	p.PackShort(uint16(len(payload)))
	p.PackFixedBytes(payload)
	p.PackShort(uint16(len(m.TransceiverPayload)))
	p.PackFixedBytes(m.TransceiverPayload)
	return p.Bytes, p.Err
}

// ParseTransceiverMessage parses the canonical wire form of an envelope.
func ParseTransceiverMessage(b []byte) (*TransceiverMessage, error) {
	p := &wrappers.Packer{Bytes: b}
	prefix := p.UnpackFixedBytes(prefixLen)
	if p.Errored() {
		return nil, p.Err
	}
	if [prefixLen]byte(prefix) != TransceiverMessagePrefix {
		return nil, fmt.Errorf("%w: %x", ErrInvalidPrefix, prefix)
	}

	m := &TransceiverMessage{}
	copy(m.SourceManager[:], p.UnpackFixedBytes(ids.IDLen))
	copy(m.RecipientManager[:], p.UnpackFixedBytes(ids.IDLen))
	payloadLen := p.UnpackShort()
	payload := p.UnpackFixedBytes(int(payloadLen))
	transceiverPayloadLen := p.UnpackShort()
	transceiverPayload := p.UnpackFixedBytes(int(transceiverPayloadLen))
	if p.Errored() {
		return nil, p.Err
	}
	if p.Offset != len(b) {
		return nil, ErrTrailingBytes
	}

	managerMsg, err := ParseManagerMessage(payload)
	if err != nil {
		return nil, err
	}
	m.ManagerPayload = *managerMsg
	if len(transceiverPayload) > 0 {
		m.TransceiverPayload = transceiverPayload
	}
	return m, nil
}
