package progress

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/pipeline"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
	// finishedKept bounds how many final results are replayed to late
	// subscribers.
	finishedKept = 256
)

// Message is what subscribers receive.
type Message struct {
	Type     string                `json:"type"`
	Progress *pipeline.Progress    `json:"progress,omitempty"`
	Result   *pipeline.BatchResult `json:"result,omitempty"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// Hub fans batch events out to the websocket connections watching that
// batch. A slow subscriber loses events rather than stalling the batch.
type Hub struct {
	mu       sync.Mutex
	subs     map[string]map[*subscriber]struct{}
	finished map[string][]byte
	order    []string
	upgrader websocket.Upgrader
	logger   logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		subs:     make(map[string]map[*subscriber]struct{}),
		finished: make(map[string][]byte),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.ForComponent(log, "progress-hub"),
	}
}

func (h *Hub) OnProgress(ctx context.Context, ev pipeline.Progress) {
	h.broadcast(ev.BatchID, Message{Type: "progress", Progress: &ev}, false)
}

// OnBatchComplete sends the result and closes the batch's subscriptions.
func (h *Hub) OnBatchComplete(ctx context.Context, result *pipeline.BatchResult) {
	h.broadcast(result.BatchID, Message{Type: "result", Result: result}, true)
}

func (h *Hub) Subscribers(batchID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[batchID])
}

func (h *Hub) broadcast(batchID string, msg Message, final bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Warn("event not encoded", map[string]interface{}{"batchId": batchID, "error": err})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[batchID] {
		select {
		case sub.send <- data:
		default:
			h.logger.Warn("subscriber too slow, event dropped", map[string]interface{}{"batchId": batchID})
		}
		if final {
			sub.close()
		}
	}
	if final {
		delete(h.subs, batchID)
		h.remember(batchID, data)
	}
}

// remember keeps the final message of a batch; the caller holds mu.
func (h *Hub) remember(batchID string, data []byte) {
	if _, ok := h.finished[batchID]; !ok {
		h.order = append(h.order, batchID)
	}
	h.finished[batchID] = data
	for len(h.order) > finishedKept {
		delete(h.finished, h.order[0])
		h.order = h.order[1:]
	}
}

// Serve upgrades the request and streams the events of batchID until the
// batch finishes or the client goes away. A batch that already finished gets
// its result and an immediate close.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, batchID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", map[string]interface{}{"batchId": batchID, "error": err})
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if data, ok := h.finished[batchID]; ok {
		h.mu.Unlock()
		sub.send <- data
		sub.close()
		h.writeLoop(sub)
		return
	}
	if h.subs[batchID] == nil {
		h.subs[batchID] = make(map[*subscriber]struct{})
	}
	h.subs[batchID][sub] = struct{}{}
	h.mu.Unlock()

	go h.readLoop(batchID, sub)
	h.writeLoop(sub)
}

func (h *Hub) writeLoop(sub *subscriber) {
	defer sub.conn.Close()
	for data := range sub.send {
		_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = sub.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "batch finished"))
}

// readLoop only watches for the client going away.
func (h *Hub) readLoop(batchID string, sub *subscriber) {
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			break
		}
	}
	h.mu.Lock()
	if set, ok := h.subs[batchID]; ok {
		if _, ok := set[sub]; ok {
			delete(set, sub)
			sub.close()
		}
		if len(set) == 0 {
			delete(h.subs, batchID)
		}
	}
	h.mu.Unlock()
}
