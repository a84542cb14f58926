package render

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/eventpca/internal/monitoring"
	"github.com/banshee-data/eventpca/internal/pca"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Message is the JSON frame sent to websocket clients.
type Message struct {
	Type        string     `json:"type"` // "summary" or "done"
	Index       int        `json:"index"`
	Time        float64    `json:"time_us"`
	CentroidX   float64    `json:"centroid_x"`
	CentroidY   float64    `json:"centroid_y"`
	Count       int        `json:"count"`
	Eigenvalues [2]float64 `json:"eigenvalues"`
	Principal   [2]float64 `json:"principal"`
	Minor       [2]float64 `json:"minor"`
	Orientation float64    `json:"orientation_deg"`
	Degenerate  bool       `json:"degenerate,omitempty"`
	Clamped     bool       `json:"clamped,omitempty"`
	Batches     int        `json:"batches,omitempty"`
	Samples     int        `json:"samples,omitempty"`
}

// SummaryMessage converts a batch summary to its wire form.
func SummaryMessage(index int, sum pca.BatchSummary) Message {
	return Message{
		Type:        "summary",
		Index:       index,
		Time:        sum.MedianTimestamp,
		CentroidX:   sum.CentroidX,
		CentroidY:   sum.CentroidY,
		Count:       sum.Count,
		Eigenvalues: sum.Values,
		Principal:   [2]float64{sum.Vectors[0].X, sum.Vectors[0].Y},
		Minor:       [2]float64{sum.Vectors[1].X, sum.Vectors[1].Y},
		Orientation: Orientation(sum.Vectors[0]),
		Degenerate:  sum.Degenerate,
		Clamped:     sum.Clamped,
	}
}

type client struct {
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// Hub fans batch summaries out to connected websocket clients. Publishing
// never blocks: a client whose buffer is full misses the frame.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uint64]*client
	nextID     uint64
	bufferSize int
	dropped    atomic.Uint64
}

// NewHub creates a hub with per-client buffers of bufferSize frames.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Hub{clients: make(map[uint64]*client), bufferSize: bufferSize}
}

// Publish sends one summary to every client. Its signature matches
// series.Observer.
func (h *Hub) Publish(index int, sum pca.BatchSummary) {
	h.broadcast(SummaryMessage(index, sum))
}

// PublishDone tells clients the run has finished.
func (h *Hub) PublishDone(batches, samples int) {
	h.broadcast(Message{Type: "done", Index: batches, Batches: batches, Samples: samples})
}

func (h *Hub) broadcast(m Message) {
	frame, err := json.Marshal(m)
	if err != nil {
		// NaN eigen output cannot be encoded as JSON.
		monitoring.Debugf("live: skip frame %d: %v", m.Index, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- frame:
		default:
			h.dropped.Add(1)
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns the number of frames discarded for slow clients.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
}

func (h *Hub) register() (uint64, *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	c := &client{send: make(chan []byte, h.bufferSize), done: make(chan struct{})}
	h.clients[h.nextID] = c
	return h.nextID, c
}

func (h *Hub) unregister(id uint64) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// Handler upgrades requests to websocket connections and streams frames
// until the client goes away or the hub is closed. Client messages are
// read and discarded.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			monitoring.Logf("live: upgrade failed: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		id, c := h.register()
		defer h.unregister(id)
		monitoring.Debugf("live: client %d connected from %s", id, r.RemoteAddr)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "hub closed"))
				return
			case frame := <-c.send:
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					return
				}
			}
		}
	}
}
