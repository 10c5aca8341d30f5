package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prepview/backend/internal/models"
)

const (
	// PingInterval and PongWait are used for the connection heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// FacialFrameHandler ingests a facial sample for a session and returns the
// updated running metrics. ok is false when the session has no live engine.
type FacialFrameHandler func(sessionID uuid.UUID, sample models.FacialSample) (metrics models.RunningMetrics, ok bool)

// EventHook observes events arriving over the Redis bridge (e.g. voice_result
// published by a standalone worker) so the hosting instance can ingest them.
type EventHook func(sessionID uuid.UUID, event string, payload []byte)

// Hub maintains session_id -> set of connections and broadcasts telemetry
// events. Uses Redis pub/sub so events reach clients on any instance.
type Hub struct {
	// sessionID -> map[clientID]*Client
	sessions map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per session
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
	onFrame  FacialFrameHandler
	onEvent  EventHook
}

// RedisPublisher publishes session events for cross-instance delivery.
type RedisPublisher interface {
	PublishSessionEvent(sessionID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to session channels and invokes handler for
// incoming events.
type RedisSubscriber interface {
	SubscribeSession(sessionID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a telemetry hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		sessions: make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// SetFacialFrameHandler sets the callback that routes facial frames into the
// session engine's telemetry aggregator.
func (h *Hub) SetFacialFrameHandler(fn FacialFrameHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onFrame = fn
}

// SetEventHook sets the observer for events received over the Redis bridge.
func (h *Hub) SetEventHook(fn EventHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onEvent = fn
}

// Register adds a client to a session room. Starts the Redis subscription for
// this session on first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.sessions[c.SessionID] == nil {
		h.sessions[c.SessionID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeSession(c.SessionID, func(event string, payload []byte) {
				h.mu.RLock()
				hook := h.onEvent
				h.mu.RUnlock()
				if hook != nil {
					hook(c.SessionID, event, payload)
				}
				h.BroadcastToSession(c.SessionID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.SessionID] = cancel
			}
		}
	}
	h.sessions[c.SessionID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("client joined session",
		zap.String("client_id", c.ID), zap.String("session_id", c.SessionID.String()))
}

// Unregister removes a client from a session room. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.sessions[c.SessionID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.sessions, c.SessionID)
			if cancel, ok := h.subs[c.SessionID]; ok {
				cancel()
				delete(h.subs, c.SessionID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("client left session",
		zap.String("client_id", c.ID), zap.String("session_id", c.SessionID.String()))
}

// HandleFacialFrame routes a frame to the session engine and returns the
// updated running metrics.
func (h *Hub) HandleFacialFrame(sessionID uuid.UUID, sample models.FacialSample) (models.RunningMetrics, bool) {
	h.mu.RLock()
	fn := h.onFrame
	h.mu.RUnlock()
	if fn == nil {
		return models.RunningMetrics{}, false
	}
	return fn(sessionID, sample)
}

// BroadcastToSession sends a message to all clients in a session (local only).
func (h *Hub) BroadcastToSession(sessionID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.sessions[sessionID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastAndPublish sends to local clients and publishes to Redis for other
// instances.
func (h *Hub) BroadcastAndPublish(sessionID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.BroadcastToSession(sessionID, event, data)
	if h.redis != nil {
		_ = h.redis.PublishSessionEvent(sessionID, event, data)
	}
}

// PublishOnly publishes to Redis only; the subscriber callback performs the
// broadcast once per instance. Used by the standalone voice worker so results
// also reach the instance hosting the engine.
func (h *Hub) PublishOnly(sessionID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if h.redis != nil {
		_ = h.redis.PublishSessionEvent(sessionID, event, data)
		return
	}
	h.BroadcastToSession(sessionID, event, data)
}

// ParticipantCount returns the number of connected clients in a session.
func (h *Hub) ParticipantCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// CloseSession disconnects all clients of an ended session and drops its
// subscription. Client pumps unregister themselves as connections close.
func (h *Hub) CloseSession(sessionID uuid.UUID) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.sessions[sessionID]))
	for _, c := range h.sessions[sessionID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.Close()
	}
	h.logger.Debug("session room closed", zap.String("session_id", sessionID.String()))
}
