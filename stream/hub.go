// Package stream pushes dashboard updates to browsers and terminal clients
// over websocket, with server-sent events as a fallback.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"flyer-vessel-viz/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Heartbeat keeps idle event streams open through proxies.
	heartbeat = 15 * time.Second

	defaultSendBuffer = 16
)

// Message is one frame sent to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type client struct {
	id   string
	kind string
	send chan []byte
}

// Hub fans frames out to every connected client. A client whose buffer is
// full is disconnected rather than allowed to hold up the others.
type Hub struct {
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	initial  func() Message
	upgrader websocket.Upgrader

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	clients    map[*client]struct{}
	done       chan struct{}
	count      atomic.Int64
	sendBuffer int
}

// NewHub returns a hub. initial supplies the frame each client receives on
// connect; it may be nil.
func NewHub(logger zerolog.Logger, m *metrics.Metrics, initial func() Message) *Hub {
	return &Hub{
		logger:  logger,
		metrics: m,
		initial: initial,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[*client]struct{}),
		done:       make(chan struct{}),
		sendBuffer: defaultSendBuffer,
	}
}

// Run serves registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	defer func() {
		close(h.done)
		for c := range h.clients {
			close(c.send)
			delete(h.clients, c)
		}
		h.setCount()
	}()

	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
			// Queued here, ahead of any later broadcast, so no snapshot
			// published after registration is missed.
			if frame := h.initialFrame(); frame != nil {
				select {
				case c.send <- frame:
				default:
				}
			}
			h.setCount()
			h.logger.Debug().Str("client", c.id).Str("kind", c.kind).Msg("client connected")

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.setCount()
				h.logger.Debug().Str("client", c.id).Msg("client disconnected")
			}

		case frame := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- frame:
				default:
					delete(h.clients, c)
					close(c.send)
					h.logger.Warn().Str("client", c.id).Msg("client too slow, dropping")
				}
			}
			h.setCount()

		case <-ctx.Done():
			return nil
		}
	}
}

func (h *Hub) setCount() {
	h.count.Store(int64(len(h.clients)))
	h.metrics.SetStreamClients(len(h.clients))
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Broadcast queues msg for every client. It never blocks; when the queue is
// full the frame is dropped.
func (h *Hub) Broadcast(msg Message) {
	frame, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msg.Type).Msg("encode frame")
		return
	}
	select {
	case h.broadcast <- frame:
	default:
		h.logger.Warn().Str("type", msg.Type).Msg("broadcast queue full, dropping frame")
	}
}

func (h *Hub) newClient(kind string) *client {
	return &client{id: uuid.NewString(), kind: kind, send: make(chan []byte, h.sendBuffer)}
}

func (h *Hub) initialFrame() []byte {
	if h.initial == nil {
		return nil
	}
	frame, err := json.Marshal(h.initial())
	if err != nil {
		h.logger.Error().Err(err).Msg("encode initial frame")
		return nil
	}
	return frame
}

// join registers c unless ctx ends first.
func (h *Hub) join(ctx context.Context, c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-ctx.Done():
		return false
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *client) {
	go func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()
}

// ServeWS upgrades the request to a websocket and streams frames to it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade")
		return
	}

	c := h.newClient("ws")
	if !h.join(r.Context(), c) {
		conn.Close()
		return
	}

	go h.readPump(conn, c)
	h.writePump(conn, c)
}

// readPump discards inbound messages and notices when the peer goes away.
func (h *Hub) readPump(conn *websocket.Conn, c *client) {
	defer h.leave(c)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.leave(c)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.leave(c)
				return
			}
		}
	}
}

// ServeSSE streams frames as server-sent events.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	c := h.newClient("sse")
	if !h.join(ctx, c) {
		return
	}
	defer h.leave(c)
	flusher.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}
