package gateway

import (
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/saidmurad/cryptobot-sub000/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Filter restricts a client to one instrument and/or timeframe.
// Zero values match everything.
type Filter struct {
	Instrument model.Instrument
	Timeframe  model.Timeframe
}

func (f Filter) matches(inst model.Instrument, tf model.Timeframe) bool {
	if f.Instrument != "" && !strings.EqualFold(string(f.Instrument), string(inst)) {
		return false
	}
	return f.Timeframe == 0 || f.Timeframe == tf
}

// matchesKey accepts a model.SeriesKey ("1h:BTC/USDT").
func (f Filter) matchesKey(key string) bool {
	tfStr, inst, ok := strings.Cut(key, ":")
	if !ok {
		return false
	}
	tf, err := model.ParseTimeframe(tfStr)
	if err != nil {
		return false
	}
	return f.matches(model.Instrument(inst), tf)
}

// Client is a single WebSocket peer.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	filter Filter
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only services control frames; clients do not send commands.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
