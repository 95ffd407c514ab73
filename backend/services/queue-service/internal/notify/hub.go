package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chargequeue/backend/services/queue-service/internal/models"
)

// Hub pushes events to the websocket connections of the requester they address.
type Hub struct {
	mu           sync.RWMutex
	connections  map[string]map[*Connection]struct{}
	pingInterval time.Duration
	writeTimeout time.Duration
	identify     func(*http.Request) (string, bool)
	logger       *zap.Logger
	upgrader     websocket.Upgrader

	baseCtx context.Context
}

// NewHub builds the push hub. identify resolves the requester of an upgrade request.
func NewHub(pingInterval, writeTimeout time.Duration, identify func(*http.Request) (string, bool), logger *zap.Logger) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 15 * time.Second
	}
	return &Hub{
		connections:  make(map[string]map[*Connection]struct{}),
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		identify:     identify,
		logger:       logger,
		baseCtx:      context.Background(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Name returns sink name.
func (h *Hub) Name() string { return "websocket" }

// Add registers new connection.
func (h *Hub) Add(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.connections[conn.RequesterID()]
	if !ok {
		set = make(map[*Connection]struct{})
		h.connections[conn.RequesterID()] = set
	}
	set[conn] = struct{}{}
}

// Remove removes connection.
func (h *Hub) Remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.connections[conn.RequesterID()]
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.RequesterID())
	}
}

// Connected returns how many connections the requester holds.
func (h *Hub) Connected(requesterID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[requesterID])
}

// Deliver sends event to every connection of its requester. Requesters without a live
// connection simply miss it.
func (h *Hub) Deliver(_ context.Context, event models.Event) error {
	h.mu.RLock()
	targets := make([]*Connection, 0, len(h.connections[event.RequesterID]))
	for conn := range h.connections[event.RequesterID] {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	for _, conn := range targets {
		conn.Send(data)
	}
	return nil
}

// Start runs the ping loop until ctx is done. Connections opened afterwards close with ctx.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	h.baseCtx = ctx
	h.mu.Unlock()

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.mu.RLock()
			var conns []*Connection
			for _, set := range h.connections {
				for conn := range set {
					conns = append(conns, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range conns {
				if err := conn.Ping(); err != nil {
					h.logger.Debug("ping failed", zap.String("requester_id", conn.RequesterID()), zap.Error(err))
				}
			}
		}
	}
}

// HandleWS is HTTP handler for the /ws endpoint.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := h.identify(r)
	if !ok || requesterID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	ctx := h.baseCtx
	h.mu.RUnlock()

	conn := NewConnection(requesterID, ws, h.writeTimeout, h.logger, func(c *Connection) {
		h.Remove(c)
		h.logger.Info("requester disconnected", zap.String("requester_id", c.RequesterID()))
	})
	h.Add(conn)

	go conn.Start(ctx)
	h.logger.Info("requester connected", zap.String("requester_id", requesterID))
}
