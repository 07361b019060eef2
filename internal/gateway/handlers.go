package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Register mounts the WebSocket and REST endpoints on mux.
//
//	GET /ws?instrument=BTC/USDT&timeframe=1h
//	GET /api/latest
//	GET /api/missed?channel=1h:BTC/USDT&from=10&to=20
//	GET /api/missed?channel=1h:BTC/USDT&since=2024-01-01T10:00:00Z
func (h *Hub) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/api/latest", h.serveLatest)
	mux.HandleFunc("/api/missed", h.serveMissed)
}

// ServeWS upgrades the request and registers a filtered client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	var f Filter
	q := r.URL.Query()
	if s := q.Get("timeframe"); s != "" {
		tf, err := model.ParseTimeframe(s)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.Timeframe = tf
	}
	f.Instrument = model.Instrument(q.Get("instrument"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}

	c := &Client{conn: conn, send: make(chan []byte, 256), hub: h, filter: f}
	h.register(c)
	go c.writePump()
	go c.readPump()
}

func (h *Hub) serveLatest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Latest())
}

func (h *Hub) serveMissed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	channel := q.Get("channel")
	if channel == "" {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return
	}

	var msgs [][]byte
	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "since must be RFC3339", http.StatusBadRequest)
			return
		}
		msgs = h.Since(channel, since)
	} else {
		from, err1 := strconv.ParseInt(q.Get("from"), 10, 64)
		to, err2 := strconv.ParseInt(q.Get("to"), 10, 64)
		if err1 != nil || err2 != nil || from > to {
			http.Error(w, "from and to (or since) are required", http.StatusBadRequest)
			return
		}
		msgs = h.Missed(channel, from, to)
	}
	out := make([]json.RawMessage, len(msgs))
	for i, m := range msgs {
		out[i] = m
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}
