// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"errors"
	"fmt"

	safemath "github.com/luxfi/math"

	"github.com/luxfi/ntt/utils/wrappers"
)

// TrimmingDecimals is the maximum decimal precision carried across chains.
// Amounts are always trimmed to min(sourceDecimals, TrimmingDecimals) before
// they leave the chain.
const TrimmingDecimals uint8 = 8

// TrimmedAmountLen is the packed length of a TrimmedAmount: u64 amount
// followed by u8 decimals.
const TrimmedAmountLen = wrappers.LongLen + wrappers.ByteLen

var (
	ErrAmountTooLarge   = errors.New("amount overflows u64 after scaling")
	errDecimalsMismatch = errors.New("trimmed amount decimals mismatch")
)

// TrimmedAmount is a token quantity normalized to a canonical decimal
// precision for cross-chain transport. Trimming floor-divides; the discarded
// low-order digits are lost permanently and are never recovered.
type TrimmedAmount struct {
	Amount   uint64 `serialize:"true" json:"amount"`
	Decimals uint8  `serialize:"true" json:"decimals"`
}

// TrimTarget returns the decimal precision a transfer between a mint with
// [fromDecimals] and a peer with [toDecimals] is trimmed to.
func TrimTarget(fromDecimals, toDecimals uint8) uint8 {
	return min(fromDecimals, toDecimals, TrimmingDecimals)
}

// Trim scales [amount] from [fromDecimals] down to
// TrimTarget(fromDecimals, toDecimals), discarding the remainder.
func Trim(amount uint64, fromDecimals, toDecimals uint8) TrimmedAmount {
	target := TrimTarget(fromDecimals, toDecimals)
	divisor, err := pow10(fromDecimals - target)
	if err != nil {
		// The divisor exceeds u64, so any u64 amount trims to zero.
		return TrimmedAmount{Decimals: target}
	}
	return TrimmedAmount{
		Amount:   amount / divisor,
		Decimals: target,
	}
}

// Untrim scales the amount back up to [toDecimals] for local use. Trimming
// always reduces or preserves precision, so untrimming only ever multiplies.
// Fails with ErrAmountTooLarge if the scaled amount overflows a u64.
func (a TrimmedAmount) Untrim(toDecimals uint8) (uint64, error) {
	if toDecimals < a.Decimals {
		return 0, fmt.Errorf("%w: cannot untrim %d decimals to %d", errDecimalsMismatch, a.Decimals, toDecimals)
	}
	factor, err := pow10(toDecimals - a.Decimals)
	if err != nil {
		if a.Amount == 0 {
			return 0, nil
		}
		return 0, ErrAmountTooLarge
	}
	amount, err := safemath.Mul(a.Amount, factor)
	if err != nil {
		return 0, ErrAmountTooLarge
	}
	return amount, nil
}

// Pack appends the wire form of the amount: u64 amount, u8 decimals.
func (a TrimmedAmount) Pack(p *wrappers.Packer) {
	p.PackLong(a.Amount)
	p.PackByte(a.Decimals)
}

// UnpackTrimmedAmount reads the wire form of a trimmed amount.
func UnpackTrimmedAmount(p *wrappers.Packer) TrimmedAmount {
	return TrimmedAmount{
		Amount:   p.UnpackLong(),
		Decimals: p.UnpackByte(),
	}
}

func (a TrimmedAmount) String() string {
	return fmt.Sprintf("%d@%d", a.Amount, a.Decimals)
}

// pow10 returns 10^[exp], or ErrAmountTooLarge if the result does not fit a
// u64. Token decimal counts up to 38 are valid configuration, so exponents
// past 19 are reachable and must not wrap.
func pow10(exp uint8) (uint64, error) {
	result := uint64(1)
	for i := uint8(0); i < exp; i++ {
		var err error
		if result, err = safemath.Mul(result, 10); err != nil {
			return 0, ErrAmountTooLarge
		}
	}
	return result, nil
}
