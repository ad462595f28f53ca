package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Bid outcome labels.
const (
	BidResultAccepted = "accepted"
	BidResultRejected = "rejected"
)

// AuctionMetrics tracks bid admission, lifecycle transitions and settlements.
type AuctionMetrics struct {
	bids        *prometheus.CounterVec
	bidLatency  prometheus.Histogram
	transitions *prometheus.CounterVec
	settlements *prometheus.CounterVec
}

// NewAuctionMetrics registers the auction metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewAuctionMetrics(reg prometheus.Registerer) *AuctionMetrics {
	if reg == nil {
		return &AuctionMetrics{}
	}
	bids := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_bids_total",
		Help: "Bid submissions by result and rejection reason.",
	}, []string{"result", "reason"})
	bidLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "auction_bid_duration_seconds",
		Help:    "Time spent inside the per-auction serialization point.",
		Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_status_transitions_total",
		Help: "Auction status transitions by target status and trigger.",
	}, []string{"to", "trigger"})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_settlements_total",
		Help: "Settlement outcomes recorded for ended auctions.",
	}, []string{"outcome"})
	reg.MustRegister(bids, bidLatency, transitions, settlements)
	return &AuctionMetrics{
		bids:        bids,
		bidLatency:  bidLatency,
		transitions: transitions,
		settlements: settlements,
	}
}

// ObserveBid records one bid submission. reason is empty for accepted bids.
func (m *AuctionMetrics) ObserveBid(result, reason string, duration time.Duration) {
	if m == nil || m.bids == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.bids.WithLabelValues(result, reason).Inc()
	m.bidLatency.Observe(duration.Seconds())
}

// IncTransition counts a committed status change.
func (m *AuctionMetrics) IncTransition(to, trigger string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(to), normalizeLabel(trigger)).Inc()
}

// IncSettlement counts a recorded settlement outcome.
func (m *AuctionMetrics) IncSettlement(outcome string) {
	if m == nil || m.settlements == nil {
		return
	}
	m.settlements.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// HubMetrics tracks notification fan-out health.
type HubMetrics struct {
	published   prometheus.Counter
	dropped     *prometheus.CounterVec
	subscribers prometheus.Gauge
}

// NewHubMetrics registers the notification hub metrics.
func NewHubMetrics(reg prometheus.Registerer) *HubMetrics {
	if reg == nil {
		return &HubMetrics{}
	}
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auction_hub_events_published_total",
		Help: "Events accepted by the notification hub.",
	})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auction_hub_events_dropped_total",
		Help: "Events the hub could not deliver, by reason.",
	}, []string{"reason"})
	subscribers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "auction_hub_subscribers",
		Help: "Currently attached stream subscribers.",
	})
	reg.MustRegister(published, dropped, subscribers)
	return &HubMetrics{published: published, dropped: dropped, subscribers: subscribers}
}

// IncPublished counts an event accepted by the hub.
func (m *HubMetrics) IncPublished() {
	if m == nil || m.published == nil {
		return
	}
	m.published.Inc()
}

// IncDropped counts an event that was not delivered.
func (m *HubMetrics) IncDropped(reason string) {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.WithLabelValues(normalizeLabel(reason)).Inc()
}

// AddSubscribers adjusts the live subscriber gauge.
func (m *HubMetrics) AddSubscribers(delta int) {
	if m == nil || m.subscribers == nil {
		return
	}
	m.subscribers.Add(float64(delta))
}
