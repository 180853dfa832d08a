// Package sse streams vault changes to browsers and editors as
// Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/study/internal/notes"
)

// Event types.
const (
	TypeNoteChanged  = "note.changed"
	TypeVaultUpdated = "vault.updated"
)

const (
	clientBuffer      = 64
	defaultThrottle   = 2 * time.Second
	heartbeatInterval = 25 * time.Second
)

// Event is one message broadcast to every client.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NoteChange is the payload of a note.changed event.
type NoteChange struct {
	Change string `json:"change"`
	Path   string `json:"path"`
	Kind   string `json:"kind,omitempty"`
}

// Broker fans events out to SSE clients.
//
// A single loop goroutine owns the client set and the vault.updated
// throttle; the public methods talk to it over channels.
type Broker struct {
	throttle time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan NoteChange
	countCh       chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker. At most one vault.updated event is sent per
// throttle interval; a non-positive interval means two seconds.
func NewBroker(throttle time.Duration) *Broker {
	if throttle <= 0 {
		throttle = defaultThrottle
	}
	b := &Broker{
		throttle:      throttle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan NoteChange, 256),
		countCh:       make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.loop()
	return b
}

// encode renders an event in the text/event-stream wire format.
func encode(ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", ev.Type, payload), nil
}

func (b *Broker) loop() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastVault time.Time

	send := func(ev Event) {
		msg, err := encode(ev)
		if err != nil {
			return
		}
		for ch := range clients {
			select {
			case ch <- msg:
			default:
				// Slow client; drop rather than stall everyone.
			}
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

		case ev := <-b.publishCh:
			send(ev)

		case c := <-b.changeCh:
			send(Event{Type: TypeNoteChanged, Data: c})
			if now := time.Now(); now.Sub(lastVault) >= b.throttle {
				lastVault = now
				send(Event{Type: TypeVaultUpdated, Data: struct{}{}})
			}

		case resp := <-b.countCh:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes every client channel. It is safe to call
// more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client. The returned channel is closed by
// Unsubscribe or Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
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
	case b.countCh <- resp:
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

// Publish broadcasts ev as is.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- ev:
	case <-b.stopped:
	}
}

// NoteChanged broadcasts a note.changed event for path, followed by a
// throttled vault.updated event. Its signature matches index.EventCallback.
func (b *Broker) NoteChanged(change, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- NoteChange{Change: change, Path: path, Kind: notes.KindForPath(path)}:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client until it disconnects. A comment
// line is written periodically to keep proxies from closing idle streams.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
