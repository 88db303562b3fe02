// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"errors"
	"math"

	"github.com/luxfi/codec"
	"github.com/luxfi/codec/linearcodec"
)

const codecVersion = 0

// recordCodec serializes the records this package persists. The cross-chain
// wire formats do NOT go through this codec; they are packed byte-exact in
// the types package.
var recordCodec codec.Manager

func init() {
	recordCodec = codec.NewManager(math.MaxInt)
	lc := linearcodec.NewDefault()

	err := errors.Join(
		lc.RegisterType(&Status{}),
		lc.RegisterType(&Peer{}),
		lc.RegisterType(&Transceiver{}),
		lc.RegisterType(&OutboxItem{}),
		lc.RegisterType(&InboxItem{}),
		lc.RegisterType(&limiterRecord{}),
		recordCodec.RegisterCodec(codecVersion, lc),
	)
	if err != nil {
		panic(err)
	}
}
