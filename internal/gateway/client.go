package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"trendfilter/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1024

	// maxReplayInterval caps the per-record pacing a client may request.
	maxReplayInterval = 5000 * time.Millisecond
)

// Client streams one stored run to a websocket consumer. Records are
// replayed on demand; control messages select the start index and pace.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	sum     model.RunSummary
	records []model.FilterRecord

	replayMu     sync.Mutex
	replayCancel context.CancelFunc
	replayDone   chan struct{}
}

// controlMessage is the client-to-server frame. Ping is a pointer so a
// bare {"ping":0} still gets a pong.
type controlMessage struct {
	Type       string `json:"type"`
	FromIndex  int    `json:"from_index"`
	IntervalMS int    `json:"interval_ms"`
	Ping       *int64 `json:"ping"`
}

func (c *Client) sendHello() {
	msg, err := json.Marshal(map[string]any{
		"type":    "run",
		"summary": c.sum,
		"records": len(c.records),
	})
	if err != nil {
		return
	}
	c.trySend(msg)
}

// trySend queues a control frame without blocking. Records never go
// through here; they block in replay so a slow consumer paces the
// stream instead of losing data.
func (c *Client) trySend(msg []byte) {
	select {
	case c.send <- msg:
	default:
		if c.hub.OnDrop != nil {
			c.hub.OnDrop()
		}
	}
}

func errorFrame(text string) []byte {
	msg, _ := json.Marshal(map[string]string{"type": "error", "error": text})
	return msg
}

// startReplay stops any replay in flight and starts a new one at from,
// pacing one record per interval when interval > 0.
func (c *Client) startReplay(from, intervalMS int) {
	c.stopReplay()

	if from < 0 {
		from = 0
	}
	if from > len(c.records) {
		from = len(c.records)
	}
	interval := time.Duration(intervalMS) * time.Millisecond
	if interval < 0 {
		interval = 0
	}
	if interval > maxReplayInterval {
		interval = maxReplayInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.replayMu.Lock()
	c.replayCancel = cancel
	c.replayDone = done
	c.replayMu.Unlock()

	go c.replay(ctx, done, from, interval)
}

// stopReplay cancels the running replay, if any, and waits for its
// goroutine to exit so no record send can race the channel close.
func (c *Client) stopReplay() {
	c.replayMu.Lock()
	cancel, done := c.replayCancel, c.replayDone
	c.replayCancel, c.replayDone = nil, nil
	c.replayMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (c *Client) replay(ctx context.Context, done chan struct{}, from int, interval time.Duration) {
	defer close(done)

	var tick *time.Ticker
	if interval > 0 {
		tick = time.NewTicker(interval)
		defer tick.Stop()
	}

	for i := from; i < len(c.records); i++ {
		if tick != nil {
			select {
			case <-tick.C:
			case <-ctx.Done():
				return
			}
		}
		msg, err := json.Marshal(map[string]any{
			"type": "record",
			"data": c.records[i],
		})
		if err != nil {
			return
		}
		select {
		case c.send <- msg:
			if c.hub.OnRecordSent != nil {
				c.hub.OnRecordSent()
			}
		case <-ctx.Done():
			return
		}
	}

	msg, err := json.Marshal(map[string]any{
		"type":    "complete",
		"records": len(c.records),
	})
	if err != nil {
		return
	}
	select {
	case c.send <- msg:
	case <-ctx.Done():
	}
}

// readPump handles control frames until the connection drops. Replay is
// stopped before the client is removed so the send queue is quiet when
// the hub closes it.
func (c *Client) readPump() {
	defer func() {
		c.stopReplay()
		c.hub.RemoveClient(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("run_id", c.sum.RunID).Msg("ws replay read error")
			}
			return
		}

		var msg controlMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.trySend(errorFrame("bad message"))
			continue
		}
		switch {
		case msg.Ping != nil:
			pong, _ := json.Marshal(map[string]any{
				"pong":      *msg.Ping,
				"server_ts": time.Now().UnixMilli(),
			})
			c.trySend(pong)
		case msg.Type == "play":
			c.startReplay(msg.FromIndex, msg.IntervalMS)
		case msg.Type == "pause":
			c.stopReplay()
		default:
			c.trySend(errorFrame("unknown message type"))
		}
	}
}

// writePump drains the send queue, coalescing queued frames into one
// websocket message, and keeps the connection alive with pings.
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
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
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
