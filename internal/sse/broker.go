// Package sse streams fetch and trust events to Server-Sent Events clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/gopher-mcp/internal/models"
)

// Event types.
const (
	TypeFetchDone   = "fetch.done"
	TypeFetchFailed = "fetch.failed"
	TypeTrust       = "trust.checked"
	TypeStats       = "stats.updated"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Stats are running totals since the broker started.
type Stats struct {
	Fetches    int            `json:"fetches"`
	Errors     int            `json:"errors"`
	CacheHits  int            `json:"cacheHits"`
	Mismatches int            `json:"mismatches"`
	ByProtocol map[string]int `json:"byProtocol"`
}

func (s Stats) clone() Stats {
	c := s
	c.ByProtocol = make(map[string]int, len(s.ByProtocol))
	for k, v := range s.ByProtocol {
		c.ByProtocol[k] = v
	}
	return c
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop goroutine owns the client set, the running stats and
// the stats throttle timestamp. Public methods talk to it over channels.
type Broker struct {
	statsMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	fetchCh       chan models.FetchEvent
	trustCh       chan models.TrustEvent
	countReqCh    chan chan int
	statsReqCh    chan chan Stats

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

var _ models.Notifier = (*Broker)(nil)

// NewBroker creates a broker that emits at most one stats event per
// statsThrottle.
func NewBroker(statsThrottle time.Duration) *Broker {
	if statsThrottle <= 0 {
		statsThrottle = 2 * time.Second
	}

	b := &Broker{
		statsMin:      statsThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		fetchCh:       make(chan models.FetchEvent, 256),
		trustCh:       make(chan models.TrustEvent, 256),
		countReqCh:    make(chan chan int),
		statsReqCh:    make(chan chan Stats),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	stats := Stats{ByProtocol: map[string]int{}}
	var lastStats time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than block the loop.
			}
		}
	}

	throttledStats := func() {
		now := time.Now()
		if now.Sub(lastStats) >= b.statsMin {
			lastStats = now
			broadcast(Event{Type: TypeStats, Data: stats.clone()})
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case ev := <-b.fetchCh:
			stats.Fetches++
			stats.ByProtocol[ev.Protocol]++
			if ev.Cached {
				stats.CacheHits++
			}
			typ := TypeFetchDone
			if ev.Code != "" {
				stats.Errors++
				typ = TypeFetchFailed
			}
			broadcast(Event{Type: typ, Data: ev})
			throttledStats()

		case ev := <-b.trustCh:
			if ev.Outcome == "mismatch" {
				stats.Mismatches++
			}
			broadcast(Event{Type: TypeTrust, Data: ev})
			throttledStats()

		case resp := <-b.countReqCh:
			resp <- len(clients)

		case resp := <-b.statsReqCh:
			resp <- stats.clone()
		}
	}
}

// Close stops the event loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Stats returns a snapshot of the running totals.
func (b *Broker) Stats() Stats {
	if b.closed.Load() {
		return Stats{}
	}

	resp := make(chan Stats, 1)
	select {
	case b.statsReqCh <- resp:
	case <-b.stopped:
		return Stats{}
	}

	select {
	case s := <-resp:
		return s
	case <-b.stopped:
		return Stats{}
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// NotifyFetch publishes a fetch outcome and a throttled stats event.
func (b *Broker) NotifyFetch(ev models.FetchEvent) {
	if b.closed.Load() {
		return
	}
	select {
	case b.fetchCh <- ev:
	case <-b.stopped:
	}
}

// NotifyTrust publishes a trust check outcome.
func (b *Broker) NotifyTrust(ev models.TrustEvent) {
	if b.closed.Load() {
		return
	}
	select {
	case b.trustCh <- ev:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
