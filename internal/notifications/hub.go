package notifications

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/auction-engine/pkg/logger"
	"github.com/angelmondragon/auction-engine/pkg/metrics"
)

const (
	defaultQueueSize        = 1024
	defaultSubscriberBuffer = 64
	defaultBridgeRetryBase  = 500 * time.Millisecond
	maxBridgeRetryDelay     = 30 * time.Second

	dropReasonQueueFull    = "queue_full"
	dropReasonSlowConsumer = "slow_subscriber"
)

// ErrHubClosed is returned by Subscribe once the dispatcher has stopped.
var ErrHubClosed = errors.New("notifications hub closed")

// Bridge relays events between hub instances. Publish ships an event out and
// Run delivers events received from peers (including our own) until ctx ends.
// Run calls ready once its subscription is live.
type Bridge interface {
	Publish(ctx context.Context, event Event) error
	Run(ctx context.Context, ready func(), deliver func(Event)) error
}

type Options struct {
	QueueSize        int
	SubscriberBuffer int
	Bridge           Bridge
	// BridgeRetryBase is the first delay before the bridge receive loop is
	// restarted; later delays grow exponentially.
	BridgeRetryBase time.Duration
	Logger          *logger.Logger
	Metrics         *metrics.HubMetrics
}

// Hub fans auction events out to per-auction subscribers. Publish never
// blocks the caller; delivery is best effort.
type Hub struct {
	queue     chan Event
	subBuffer int
	bridge    Bridge
	retryBase time.Duration
	logg      *logger.Logger
	metrics   *metrics.HubMetrics

	// linkUp is set while the bridge receive loop is subscribed.
	linkUp atomic.Bool

	mu     sync.Mutex
	subs   map[uuid.UUID]map[*Subscription]struct{}
	closed bool
}

func NewHub(opts Options) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = defaultSubscriberBuffer
	}
	if opts.BridgeRetryBase <= 0 {
		opts.BridgeRetryBase = defaultBridgeRetryBase
	}
	return &Hub{
		queue:     make(chan Event, opts.QueueSize),
		subBuffer: opts.SubscriberBuffer,
		bridge:    opts.Bridge,
		retryBase: opts.BridgeRetryBase,
		logg:      opts.Logger,
		metrics:   opts.Metrics,
		subs:      map[uuid.UUID]map[*Subscription]struct{}{},
	}
}

// Publish enqueues the event for dispatch. A full queue drops the event.
func (h *Hub) Publish(event Event) {
	select {
	case h.queue <- event:
		h.metrics.IncPublished()
	default:
		h.metrics.IncDropped(dropReasonQueueFull)
		h.warn(event.AuctionID, "notifications hub queue full; event dropped")
	}
}

// Run dispatches queued events until ctx is cancelled, then closes every
// open subscription.
func (h *Hub) Run(ctx context.Context) error {
	defer h.shutdown()

	if h.bridge != nil {
		go h.runBridge(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event := <-h.queue:
			h.dispatch(ctx, event)
		}
	}
}

// runBridge keeps the bridge receive loop alive until ctx ends, restarting it
// with capped exponential backoff. The backoff resets after a run that got
// its subscription up.
func (h *Hub) runBridge(ctx context.Context) {
	backoff := h.bridgeBackoff()
	for {
		err := h.bridge.Run(ctx, func() { h.linkUp.Store(true) }, h.deliver)
		wasUp := h.linkUp.Swap(false)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = errors.New("bridge receive loop exited")
		}
		if wasUp {
			backoff = h.bridgeBackoff()
		}
		delay, _ := backoff.Next()
		if h.logg != nil {
			h.logg.Error(h.logg.WithField(ctx, "retry_in", delay.String()), "notifications bridge down; delivering locally", err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (h *Hub) bridgeBackoff() retry.Backoff {
	return retry.WithCappedDuration(maxBridgeRetryDelay, retry.WithJitterPercent(20, retry.NewExponential(h.retryBase)))
}

func (h *Hub) dispatch(ctx context.Context, event Event) {
	if h.bridge == nil {
		h.deliver(event)
		return
	}
	if err := h.bridge.Publish(ctx, event); err != nil {
		if h.logg != nil {
			h.logg.Error(h.logg.WithAuctionID(ctx, event.AuctionID.String()), "bridge publish failed; delivering locally", err)
		}
		h.deliver(event)
		return
	}
	if !h.linkUp.Load() {
		// peers still get it; our own echo will not come back
		h.deliver(event)
	}
}

// deliver hands the event to local subscribers of its auction. Subscribers
// whose buffer is full are evicted.
func (h *Hub) deliver(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[event.AuctionID] {
		select {
		case sub.ch <- event:
		default:
			h.metrics.IncDropped(dropReasonSlowConsumer)
			h.removeLocked(sub)
			h.warn(event.AuctionID, "evicted slow notifications subscriber")
		}
	}
}

// Subscribe registers a stream for one auction. The subscription ends when
// ctx is cancelled, Close is called, or the hub evicts it.
func (h *Hub) Subscribe(ctx context.Context, auctionID uuid.UUID) (*Subscription, error) {
	if auctionID == uuid.Nil {
		return nil, errors.New("auction id required")
	}

	sub := &Subscription{
		hub:       h,
		auctionID: auctionID,
		ch:        make(chan Event, h.subBuffer),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	set, ok := h.subs[auctionID]
	if !ok {
		set = map[*Subscription]struct{}{}
		h.subs[auctionID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	h.metrics.AddSubscribers(1)

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// SubscriberCount reports live subscribers for an auction.
func (h *Hub) SubscriberCount(auctionID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[auctionID])
}

func (h *Hub) removeLocked(sub *Subscription) {
	set, ok := h.subs[sub.auctionID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.auctionID)
	}
	close(sub.ch)
	close(sub.done)
	h.metrics.AddSubscribers(-1)
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for _, set := range h.subs {
		for sub := range set {
			h.removeLocked(sub)
		}
	}
}

func (h *Hub) warn(auctionID uuid.UUID, msg string) {
	if h.logg == nil {
		return
	}
	h.logg.Warn(h.logg.WithAuctionID(context.Background(), auctionID.String()), msg)
}

// Subscription is a live per-auction event stream.
type Subscription struct {
	hub       *Hub
	auctionID uuid.UUID
	ch        chan Event
	done      chan struct{}
}

// Events yields events until the subscription ends, then is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

func (s *Subscription) AuctionID() uuid.UUID {
	return s.auctionID
}

// Close detaches the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.removeLocked(s)
}
