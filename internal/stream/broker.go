// Package stream fans out journal events of in-flight runs to live
// subscribers such as SSE clients.
package stream

import (
	"encoding/json"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// bufferSize is the channel buffer for each subscriber. Events are dropped
// for a subscriber that falls this far behind.
const bufferSize = 256

var droppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "cadence_stream_dropped_total",
	Help: "Events dropped because a stream subscriber was too slow.",
})

func init() {
	prometheus.MustRegister(droppedTotal)
}

// Event is one journal entry published for a run.
type Event struct {
	Seq  int             `json:"seq"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Broker manages per-run event streams. It is safe for concurrent use.
//
// Finished runs keep a closed marker so a subscriber arriving after the
// run ends gets a closed channel instead of blocking forever.
type Broker struct {
	mu   sync.Mutex
	runs map[string]*topic
}

type topic struct {
	subs   map[int]chan Event
	nextID int
	closed bool
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{runs: make(map[string]*topic)}
}

func (b *Broker) topicLocked(runID string) *topic {
	t, ok := b.runs[runID]
	if !ok {
		t = &topic{subs: make(map[int]chan Event)}
		b.runs[runID] = t
	}
	return t
}

// Subscribe returns a channel of events for runID and a function that
// detaches it. The channel is already closed if the run has finished.
func (b *Broker) Subscribe(runID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topicLocked(runID)
	ch := make(chan Event, bufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish delivers ev to every subscriber of runID without blocking.
func (b *Broker) Publish(runID string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.runs[runID]
	if !ok || t.closed {
		return
	}
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
			droppedTotal.Inc()
		}
	}
}

// Close ends the stream for runID. Current subscriber channels are closed
// and later subscribers receive a closed channel.
func (b *Broker) Close(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.topicLocked(runID)
	if t.closed {
		return
	}
	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}

// Subscribers returns the number of live subscribers for runID.
func (b *Broker) Subscribers(runID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t, ok := b.runs[runID]; ok {
		return len(t.subs)
	}
	return 0
}
