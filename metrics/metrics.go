// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metrics

import (
	"github.com/luxfi/metric"
)

var (
	_ Metrics = (*metricsImpl)(nil)
	_ Metrics = noopMetrics{}
)

type Metrics interface {
	// MarkTransferInitiated updates metrics for an outbound transfer staged
	// with capacity consumed up front.
	MarkTransferInitiated()
	// MarkTransferQueued updates metrics for an outbound transfer staged on
	// the delayed path.
	MarkTransferQueued()
	// MarkTransferRateLimited updates metrics for an outbound transfer
	// rejected by the rate limiter.
	MarkTransferRateLimited()
	// MarkOutboundReleased updates metrics for an outbox item relayed by one
	// transceiver.
	MarkOutboundReleased()
	// MarkAttestation updates metrics for a recorded inbound attestation.
	MarkAttestation()
	// MarkInboundReleased updates metrics for an inbound transfer credited
	// to its recipient.
	MarkInboundReleased()
	// MarkInboundDelayed updates metrics for an inbound transfer deferred by
	// the inbound rate limiter.
	MarkInboundDelayed()
}

type metricsImpl struct {
	numTransfersInitiated,
	numTransfersQueued,
	numTransfersRateLimited,
	numOutboundReleases,
	numAttestations,
	numInboundReleases,
	numInboundDelays metric.Counter
}

func New(registerer metric.Registerer) (Metrics, error) {
	m := &metricsImpl{
		numTransfersInitiated: metric.NewCounter(metric.CounterOpts{
			Name: "transfers_initiated",
			Help: "Number of outbound transfers staged with capacity consumed",
		}),
		numTransfersQueued: metric.NewCounter(metric.CounterOpts{
			Name: "transfers_queued",
			Help: "Number of outbound transfers staged on the delayed path",
		}),
		numTransfersRateLimited: metric.NewCounter(metric.CounterOpts{
			Name: "transfers_rate_limited",
			Help: "Number of outbound transfers rejected by the rate limiter",
		}),
		numOutboundReleases: metric.NewCounter(metric.CounterOpts{
			Name: "outbound_releases",
			Help: "Number of outbox item relays, one per transceiver",
		}),
		numAttestations: metric.NewCounter(metric.CounterOpts{
			Name: "attestations",
			Help: "Number of recorded inbound attestations",
		}),
		numInboundReleases: metric.NewCounter(metric.CounterOpts{
			Name: "inbound_releases",
			Help: "Number of inbound transfers credited to recipients",
		}),
		numInboundDelays: metric.NewCounter(metric.CounterOpts{
			Name: "inbound_delays",
			Help: "Number of inbound transfers deferred by the rate limiter",
		}),
	}
	// Counters are self-registering when created with NewCounter.
	_ = registerer
	return m, nil
}

func (m *metricsImpl) MarkTransferInitiated()   { m.numTransfersInitiated.Inc() }
func (m *metricsImpl) MarkTransferQueued()      { m.numTransfersQueued.Inc() }
func (m *metricsImpl) MarkTransferRateLimited() { m.numTransfersRateLimited.Inc() }
func (m *metricsImpl) MarkOutboundReleased()    { m.numOutboundReleases.Inc() }
func (m *metricsImpl) MarkAttestation()         { m.numAttestations.Inc() }
func (m *metricsImpl) MarkInboundReleased()     { m.numInboundReleases.Inc() }
func (m *metricsImpl) MarkInboundDelayed()      { m.numInboundDelays.Inc() }

type noopMetrics struct{}

// NewNoop returns metrics that discard every observation. Used in tests.
func NewNoop() Metrics {
	return noopMetrics{}
}

func (noopMetrics) MarkTransferInitiated()   {}
func (noopMetrics) MarkTransferQueued()      {}
func (noopMetrics) MarkTransferRateLimited() {}
func (noopMetrics) MarkOutboundReleased()    {}
func (noopMetrics) MarkAttestation()         {}
func (noopMetrics) MarkInboundReleased()     {}
func (noopMetrics) MarkInboundDelayed()      {}
