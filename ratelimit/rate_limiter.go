// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ratelimit implements the decaying-capacity limiter that gates
// transfers in each direction for each remote chain. Capacity refills
// linearly toward the configured limit over a fixed window; consuming and
// replenishing snapshot the accrued capacity at the time of the call.
package ratelimit

import (
	"errors"
	"math/bits"
	"time"
)

// DefaultWindow is the time it takes a fully drained limiter to refill.
const DefaultWindow = 24 * time.Hour

var ErrInsufficientCapacity = errors.New("insufficient rate limit capacity")

// RateLimiter tracks a capacity value that grows linearly from its last
// observed value toward the limit at a rate of limit/window per second.
// It is not safe for concurrent use; callers serialize access per record.
type RateLimiter struct {
	limit           uint64
	capacity        uint64
	lastTxTimestamp time.Time
	window          time.Duration
}

// New returns a limiter starting at full capacity.
func New(limit uint64, window time.Duration, now time.Time) *RateLimiter {
	return &RateLimiter{
		limit:           limit,
		capacity:        limit,
		lastTxTimestamp: now,
		window:          window,
	}
}

// NewWithState restores a limiter from persisted state.
func NewWithState(limit, capacity uint64, lastTx time.Time, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:           limit,
		capacity:        capacity,
		lastTxTimestamp: lastTx,
		window:          window,
	}
}

func (r *RateLimiter) Limit() uint64 {
	return r.limit
}

// Capacity returns the capacity recorded at the last mutation, before any
// refill since then. Use CapacityAt for the current value.
func (r *RateLimiter) Capacity() uint64 {
	return r.capacity
}

func (r *RateLimiter) LastTxTimestamp() time.Time {
	return r.lastTxTimestamp
}

func (r *RateLimiter) Window() time.Duration {
	return r.window
}

// CapacityAt returns the capacity available at [now]. It is pure: absent
// mutations it is monotonically non-decreasing in [now] and never exceeds
// the limit.
func (r *RateLimiter) CapacityAt(now time.Time) uint64 {
	elapsed := now.Sub(r.lastTxTimestamp)
	if elapsed <= 0 {
		return min(r.capacity, r.limit)
	}
	if elapsed >= r.window {
		return r.limit
	}

	// limit * elapsedSeconds / windowSeconds in 128-bit intermediate
	// arithmetic. elapsed < window guarantees hi < windowSeconds, so the
	// division cannot trap.
	windowSeconds := uint64(r.window / time.Second)
	if windowSeconds == 0 {
		return r.limit
	}
	hi, lo := bits.Mul64(r.limit, uint64(elapsed/time.Second))
	accrued, _ := bits.Div64(hi, lo, windowSeconds)

	capacity := r.capacity + accrued
	if capacity < r.capacity { // saturate on overflow
		capacity = r.limit
	}
	return min(capacity, r.limit)
}

// Consume removes [amount] from the capacity available at [now]. Fails with
// ErrInsufficientCapacity, leaving the limiter untouched, if the accrued
// capacity is smaller than [amount].
func (r *RateLimiter) Consume(now time.Time, amount uint64) error {
	capacity := r.CapacityAt(now)
	if capacity < amount {
		return ErrInsufficientCapacity
	}
	r.capacity = capacity - amount
	r.lastTxTimestamp = now
	return nil
}

// Replenish adds back up to [amount] of capacity at [now], clamped so the
// result never exceeds the limit.
func (r *RateLimiter) Replenish(now time.Time, amount uint64) {
	capacity := r.CapacityAt(now) + amount
	if capacity < amount { // saturate on overflow
		capacity = r.limit
	}
	r.capacity = min(capacity, r.limit)
	r.lastTxTimestamp = now
}

// SetLimit changes the limit at [now]. The capacity accrued so far is
// preserved: raising the limit does not grant instantaneous capacity beyond
// what has organically accrued, and lowering it immediately caps the
// capacity at the new limit.
func (r *RateLimiter) SetLimit(now time.Time, limit uint64) {
	capacity := r.CapacityAt(now)
	r.limit = limit
	r.capacity = min(capacity, limit)
	r.lastTxTimestamp = now
}
