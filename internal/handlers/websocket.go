package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/geoscope/internal/common"
	"github.com/ternarybob/geoscope/internal/interfaces"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WSMessage is the envelope for all WebSocket frames
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocketHandler streams audit job events to connected clients so the
// UI can show live progress without polling GET /api/audit/{job_id}.
type WebSocketHandler struct {
	logger            arbor.ILogger
	eventService      interfaces.EventService
	clients           map[*websocket.Conn]bool
	clientMutex       map[*websocket.Conn]*sync.Mutex
	mu                sync.RWMutex
	progressThrottler *rate.Limiter // Rate limiter for audit_progress events
	serverInstanceID  string        // Unique ID generated on startup - clients use to detect server restart
}

func NewWebSocketHandler(eventService interfaces.EventService, logger arbor.ILogger, config *common.WebSocketConfig) *WebSocketHandler {
	h := &WebSocketHandler{
		logger:           logger,
		eventService:     eventService,
		clients:          make(map[*websocket.Conn]bool),
		clientMutex:      make(map[*websocket.Conn]*sync.Mutex),
		serverInstanceID: uuid.New().String(),
	}

	// Throttle only if explicitly configured. Nil throttler = no throttling.
	if config != nil {
		if intervalStr, ok := config.ThrottleIntervals["audit_progress"]; ok {
			if duration, err := time.ParseDuration(intervalStr); err == nil {
				h.progressThrottler = rate.NewLimiter(rate.Every(duration), 1)
				logger.Debug().
					Str("event_type", "audit_progress").
					Str("interval", intervalStr).
					Msg("Throttler initialized for audit_progress events")
			} else {
				logger.Warn().
					Err(err).
					Str("interval", intervalStr).
					Msg("Failed to parse audit_progress throttle interval - throttler disabled")
			}
		}
	}

	if eventService != nil {
		h.subscribeToAuditEvents()
	}

	return h
}

// subscribeToAuditEvents wires engine events to the WebSocket broadcast.
// audit_progress is throttled; terminal events always go through.
func (h *WebSocketHandler) subscribeToAuditEvents() {
	forward := func(eventType interfaces.EventType) interfaces.EventHandler {
		return func(ctx context.Context, event interfaces.Event) error {
			h.Broadcast(string(eventType), event.Payload)
			return nil
		}
	}

	h.eventService.Subscribe(interfaces.EventJobCreated, forward(interfaces.EventJobCreated))
	h.eventService.Subscribe(interfaces.EventPageAudited, forward(interfaces.EventPageAudited))
	h.eventService.Subscribe(interfaces.EventJobCompleted, forward(interfaces.EventJobCompleted))
	h.eventService.Subscribe(interfaces.EventJobFailed, forward(interfaces.EventJobFailed))
	h.eventService.Subscribe(interfaces.EventDraftsEvicted, forward(interfaces.EventDraftsEvicted))

	h.eventService.Subscribe(interfaces.EventAuditProgress, func(ctx context.Context, event interfaces.Event) error {
		if h.progressThrottler != nil && !h.progressThrottler.Allow() {
			return nil
		}
		h.Broadcast(string(interfaces.EventAuditProgress), event.Payload)
		return nil
	})
}

// HandleWebSocket handles WebSocket connections
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.clientMutex[conn] = &sync.Mutex{}
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Msgf("WebSocket client connected (total: %d)", clientCount)

	h.sendHello(conn)

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		delete(h.clientMutex, conn)
		remaining := len(h.clients)
		h.mu.Unlock()

		conn.Close()
		h.logger.Debug().Msgf("WebSocket client disconnected (remaining: %d)", remaining)
	}()

	// Read messages from client (keep connection alive)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn().Err(err).Msg("WebSocket error")
			}
			break
		}
	}
}

// Broadcast sends a typed message to all connected clients
func (h *WebSocketHandler) Broadcast(msgType string, payload interface{}) {
	msg := WSMessage{
		Type:    msgType,
		Payload: payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("Failed to marshal WebSocket message")
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn := range h.clients {
		clients = append(clients, conn)
		mutexes = append(mutexes, h.clientMutex[conn])
	}
	h.mu.RUnlock()

	for i, conn := range clients {
		mutex := mutexes[i]
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Str("type", msgType).Msg("Failed to send message to client")
		}
	}
}

// sendHello sends the server instance ID to a newly connected client.
// Clients compare it against the last seen ID to detect server restarts
// and clear stale job state.
func (h *WebSocketHandler) sendHello(conn *websocket.Conn) {
	msg := WSMessage{
		Type: "hello",
		Payload: map[string]string{
			"server_instance_id": h.serverInstanceID,
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to marshal hello message")
		return
	}

	h.mu.RLock()
	mutex := h.clientMutex[conn]
	h.mu.RUnlock()

	if mutex != nil {
		mutex.Lock()
		err := conn.WriteMessage(websocket.TextMessage, data)
		mutex.Unlock()

		if err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send hello message")
		}
	}
}
