package gateway

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"trendfilter/internal/model"
)

// Hub tracks connected replay clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	// OnClientCount is called with the new client total on connect and
	// disconnect (optional).
	OnClientCount func(n int)
	// OnRecordSent is called for every record streamed to a client
	// (optional).
	OnRecordSent func()
	// OnDrop is called when a control message is dropped because a
	// client's send queue is full (optional).
	OnDrop func()
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

// ServeRun registers a replay client for a completed run and starts its
// pumps. The records must be the run's full ordered record set.
func (h *Hub) ServeRun(conn *websocket.Conn, sum model.RunSummary, records []model.FilterRecord) {
	client := &Client{
		conn:    conn,
		send:    make(chan []byte, 256),
		hub:     h,
		sum:     sum,
		records: records,
	}
	conn.EnableWriteCompression(true)

	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}
	log.Info().Str("run_id", sum.RunID).Int("clients", count).Msg("ws replay client connected")

	client.sendHello()
	go client.writePump()
	go client.readPump()
}

// RemoveClient unregisters a client and closes its send queue.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	close(c.send)
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}
	log.Info().Str("run_id", c.sum.RunID).Int("clients", count).Msg("ws replay client disconnected")
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
