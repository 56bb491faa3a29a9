package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ringleader-project/ringleader/internal/events"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongWait     = 60 * time.Second
	wsSendBuffer   = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsEnvelope is one streamed event as seen by a dashboard.
type wsEnvelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan wsEnvelope
}

// EventHub fans bus events out to websocket subscribers on /events.
// Clients that cannot keep up are dropped rather than allowed to stall
// the bus.
type EventHub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewEventHub creates a hub with no subscribers.
func NewEventHub() *EventHub {
	return &EventHub{
		clients: make(map[*wsClient]struct{}),
	}
}

// Attach subscribes the hub to every event type worth streaming.
func (h *EventHub) Attach(bus *events.EventBus) {
	streamed := []events.EventType{
		events.EventClientRegistered,
		events.EventClientExpired,
		events.EventGameCreated,
		events.EventGameActivated,
		events.EventGameExpired,
		events.EventGameEnded,
		events.EventRelayReady,
		events.EventRelayStats,
		events.EventHealthAlert,
	}
	for _, t := range streamed {
		bus.Subscribe(t, "ws-hub", h.onEvent)
	}
}

func (h *EventHub) onEvent(_ context.Context, ev events.Event) error {
	h.broadcast(wsEnvelope{Type: string(ev.Type), Payload: ev.Payload})
	return nil
}

// broadcast queues the envelope on every client. All channel sends and
// the eventual close happen under mu, so a dropped client can never
// race a send.
func (h *EventHub) broadcast(env wsEnvelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for cl := range h.clients {
		select {
		case cl.send <- env:
		default:
			log.Warn().
				Str("remote", cl.conn.RemoteAddr().String()).
				Msg("dropping slow websocket client")
			h.dropLocked(cl)
		}
	}
}

// Handle upgrades the request and streams events until the client
// disconnects.
func (h *EventHub) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	cl := &wsClient{
		conn: conn,
		send: make(chan wsEnvelope, wsSendBuffer),
	}

	h.mu.Lock()
	h.clients[cl] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	log.Debug().
		Str("remote", conn.RemoteAddr().String()).
		Int("clients", total).
		Msg("websocket client connected")

	go h.writeLoop(cl)
	h.readLoop(cl)
}

// CloseAll disconnects every streaming client.
func (h *EventHub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for cl := range h.clients {
		h.dropLocked(cl)
	}
}

// ClientCount reports the number of connected stream subscribers.
func (h *EventHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *EventHub) drop(cl *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(cl)
}

func (h *EventHub) dropLocked(cl *wsClient) {
	if _, ok := h.clients[cl]; !ok {
		return
	}
	delete(h.clients, cl)
	close(cl.send)
	cl.conn.Close()
}

// readLoop discards inbound frames; the stream is one-way. It exists
// to run the pong handler and notice disconnects.
func (h *EventHub) readLoop(cl *wsClient) {
	defer h.drop(cl)

	cl.conn.SetReadLimit(512)
	cl.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventHub) writeLoop(cl *wsClient) {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		h.drop(cl)
	}()

	for {
		select {
		case env, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
