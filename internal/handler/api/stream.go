package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"SignalDesk/internal/domain/models"
	xlogger "SignalDesk/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// streamClient pairs a connection with its outbound queue. All writes to the
// connection happen on the writePump goroutine; the hub only enqueues.
type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// StreamHub maintains the set of connected dashboard clients and pushes
// lifecycle events to them. It is the websocket downstream of the event
// pipeline; a browser that connects mid-lifecycle catches up via GET /api/state.
type StreamHub struct {
	logger    *xlogger.Logger
	upgrader  websocket.Upgrader
	clientsMu sync.Mutex
	clients   map[*streamClient]bool
}

func NewStreamHub(logger *xlogger.Logger) *StreamHub {
	return &StreamHub{
		logger:  logger,
		clients: make(map[*streamClient]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Deliver broadcasts a lifecycle event to every connected client.
func (h *StreamHub) Deliver(_ context.Context, ev models.LifecycleEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.broadcast(data)
	return nil
}

// Handle upgrades the request and holds the connection until the peer leaves.
// Incoming frames are not processed; the read loop only detects disconnects.
func (h *StreamHub) Handle(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}

	cl := &streamClient{conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(cl)
	go h.writePump(cl)
	defer func() {
		h.drop(cl)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	return nil
}

// ClientCount reports the number of connected clients.
func (h *StreamHub) ClientCount() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}

// writePump is the sole writer for one connection: queued events plus the
// keepalive pings. It exits when the send queue is closed or a write fails.
func (h *StreamHub) writePump(cl *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := cl.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *StreamHub) register(cl *streamClient) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	h.clients[cl] = true
	h.logger.Debug("stream client connected", xlogger.Int("clients", len(h.clients)))
}

// drop removes a client; whoever removes it from the map closes its queue,
// so the queue is closed exactly once.
func (h *StreamHub) drop(cl *streamClient) {
	h.clientsMu.Lock()
	_, ok := h.clients[cl]
	delete(h.clients, cl)
	n := len(h.clients)
	h.clientsMu.Unlock()
	if ok {
		close(cl.send)
		h.logger.Debug("stream client disconnected", xlogger.Int("clients", n))
	}
}

// broadcast enqueues without ever blocking on a peer: the lock is held only
// for channel sends, and a client whose queue is full is dropped rather than
// stalling the rest.
func (h *StreamHub) broadcast(data []byte) {
	var slow []*streamClient
	h.clientsMu.Lock()
	for cl := range h.clients {
		select {
		case cl.send <- data:
		default:
			slow = append(slow, cl)
		}
	}
	for _, cl := range slow {
		delete(h.clients, cl)
	}
	h.clientsMu.Unlock()
	for _, cl := range slow {
		close(cl.send)
		h.logger.Warn("dropping slow stream client")
	}
}
