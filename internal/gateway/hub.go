// Package gateway streams committed indicator rows to WebSocket clients.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

const backlogLimit = 500

// Envelope is the message pushed to clients for every committed row.
type Envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Seq     int64           `json:"seq"`
	Data    json.RawMessage `json:"data"`
}

// Hub fans committed rows out to connected clients. It implements
// model.RowSink so it can be registered on a store.Fanout.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	// per-series state, keyed by model.SeriesKey
	seqs   map[string]int64
	latest map[string][]byte
	replay map[string]*backlog

	// OnDrop is called when a slow client misses a message.
	OnDrop func()
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		seqs:    make(map[string]int64),
		latest:  make(map[string][]byte),
		replay:  make(map[string]*backlog),
	}
}

// PublishRow sends row to every client whose filter matches. Slow clients
// lose the message rather than blocking the caller.
func (h *Hub) PublishRow(_ context.Context, row model.IndicatorRow) error {
	channel := model.SeriesKey(row.Instrument, row.Timeframe)

	h.mu.Lock()
	h.seqs[channel]++
	seq := h.seqs[channel]
	msg, err := json.Marshal(Envelope{Type: "row", Channel: channel, Seq: seq, Data: row.JSON()})
	if err != nil {
		h.mu.Unlock()
		return err
	}
	h.latest[channel] = msg
	bl, ok := h.replay[channel]
	if !ok {
		bl = newBacklog(backlogLimit)
		h.replay[channel] = bl
	}
	bl.push(seq, row.Time, msg)

	for c := range h.clients {
		if !c.filter.matches(row.Instrument, row.Timeframe) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			if h.OnDrop != nil {
				h.OnDrop()
			}
			slog.Debug("ws client slow, dropping row", "channel", channel, "seq", seq)
		}
	}
	h.mu.Unlock()
	return nil
}

// Latest returns the last envelope of every series.
func (h *Hub) Latest() map[string]json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()
	cp := make(map[string]json.RawMessage, len(h.latest))
	for k, v := range h.latest {
		cp[k] = v
	}
	return cp
}

// Missed returns buffered envelopes of channel with seq in [from, to].
func (h *Hub) Missed(channel string, from, to int64) [][]byte {
	if bl := h.backlogFor(channel); bl != nil {
		return bl.seqRange(from, to)
	}
	return nil
}

// Since returns buffered envelopes of channel for rows opening after t.
func (h *Hub) Since(channel string, t time.Time) [][]byte {
	if bl := h.backlogFor(channel); bl != nil {
		return bl.after(t)
	}
	return nil
}

func (h *Hub) backlogFor(channel string) *backlog {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.replay[channel]
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	// initial state: newest row of every matching series
	for channel, msg := range h.latest {
		if c.filter.matchesKey(channel) {
			select {
			case c.send <- msg:
			default:
			}
		}
	}
	n := len(h.clients)
	h.mu.Unlock()
	slog.Info("ws client connected", "clients", n, "instrument", c.filter.Instrument, "timeframe", c.filter.Timeframe)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
