// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/ntt/utils/wrappers"
)

func TestTrimTarget(t *testing.T) {
	tests := []struct {
		from, to, want uint8
	}{
		{from: 18, to: 18, want: 8},
		{from: 18, to: 6, want: 6},
		{from: 6, to: 18, want: 6},
		{from: 8, to: 8, want: 8},
		{from: 0, to: 8, want: 0},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, TrimTarget(tt.from, tt.to))
	}
}

func TestTrim(t *testing.T) {
	tests := []struct {
		name     string
		amount   uint64
		from, to uint8
		want     TrimmedAmount
	}{
		{
			name:   "truncates to canonical precision",
			amount: 123_456_789_123_456_789,
			from:   18,
			to:     18,
			want:   TrimmedAmount{Amount: 12_345_678, Decimals: 8},
		},
		{
			name:   "truncates to peer precision",
			amount: 100_500,
			from:   5,
			to:     2,
			want:   TrimmedAmount{Amount: 100, Decimals: 2},
		},
		{
			name:   "no-op below canonical precision",
			amount: 100_500,
			from:   5,
			to:     8,
			want:   TrimmedAmount{Amount: 100_500, Decimals: 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Trim(tt.amount, tt.from, tt.to))
		})
	}
}

func TestUntrim(t *testing.T) {
	require := require.New(t)

	a := TrimmedAmount{Amount: 12_345_678, Decimals: 8}
	got, err := a.Untrim(18)
	require.NoError(err)
	require.Equal(uint64(123_456_780_000_000_000), got)

	// Scaling up past u64 is rejected.
	big := TrimmedAmount{Amount: math.MaxUint64 / 10, Decimals: 8}
	_, err = big.Untrim(18)
	require.ErrorIs(err, ErrAmountTooLarge)

	// Untrimming below the trimmed precision is not a thing.
	_, err = a.Untrim(6)
	require.Error(err)
}

func TestUntrimHighDecimals(t *testing.T) {
	require := require.New(t)

	// Scaling from 8 up to 38 decimals needs a 10^30 factor, which does not
	// fit a u64; any non-zero amount must overflow rather than wrap.
	a := TrimmedAmount{Amount: 1, Decimals: 8}
	_, err := a.Untrim(38)
	require.ErrorIs(err, ErrAmountTooLarge)

	// A zero amount scales to zero at any precision.
	zero := TrimmedAmount{Amount: 0, Decimals: 8}
	got, err := zero.Untrim(38)
	require.NoError(err)
	require.Zero(got)

	// 10^19 is the largest power of ten in a u64.
	one := TrimmedAmount{Amount: 1, Decimals: 0}
	got, err = one.Untrim(19)
	require.NoError(err)
	require.Equal(uint64(10_000_000_000_000_000_000), got)
	_, err = one.Untrim(20)
	require.ErrorIs(err, ErrAmountTooLarge)
}

func TestTrimHighDecimals(t *testing.T) {
	// The divisor from 38 down to 8 decimals exceeds u64, so every u64
	// amount trims to zero.
	require.Equal(t,
		TrimmedAmount{Amount: 0, Decimals: 8},
		Trim(math.MaxUint64, 38, 8),
	)
}

func TestTrimUntrimTruncates(t *testing.T) {
	require := require.New(t)

	// untrim(trim(x)) floors, never rounds up.
	for _, amount := range []uint64{0, 1, 999_999_999, 1_000_000_000, 123_456_789_987} {
		trimmed := Trim(amount, 18, 18)
		back, err := trimmed.Untrim(18)
		require.NoError(err)
		require.LessOrEqual(back, amount)
		require.Zero(back % 10_000_000_000) // only low-order digits were lost
	}
}

func TestTrimmedAmountWire(t *testing.T) {
	require := require.New(t)

	a := TrimmedAmount{Amount: 0x0102030405060708, Decimals: 9}
	p := &wrappers.Packer{MaxSize: TrimmedAmountLen}
	a.Pack(p)
	require.NoError(p.Err)
	require.Equal([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9}, p.Bytes)

	back := UnpackTrimmedAmount(&wrappers.Packer{Bytes: p.Bytes})
	require.Equal(a, back)
}
