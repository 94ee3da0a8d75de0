// ABOUTME: In-memory fan-out hub for chat session events
// ABOUTME: Pushes bot_response and status frames to subscribed websocket sessions

package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Hub provides in-memory pub/sub keyed by chat session ID. The server
// publishes events as queries resolve; each websocket connection
// subscribes to the sessions it serves.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan *Event // sessionID -> subID -> ch
	logger      *slog.Logger
}

// NewHub creates a hub. Pass nil logger for default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[string]map[string]chan *Event),
		logger:      logger.With("component", "hub"),
	}
}

// Subscribe registers a subscriber for a session's events. Returns a
// receive channel and a subscription ID for later unsubscription. The
// subscription is cleaned up automatically when ctx is cancelled.
func (h *Hub) Subscribe(ctx context.Context, sessionID string) (<-chan *Event, string) {
	subID := uuid.New().String()
	ch := make(chan *Event, subscriberBufferSize)

	h.mu.Lock()
	if _, ok := h.subscribers[sessionID]; !ok {
		h.subscribers[sessionID] = make(map[string]chan *Event)
	}
	h.subscribers[sessionID][subID] = ch
	h.mu.Unlock()

	h.logger.Debug("subscriber added", "session_id", sessionID, "sub_id", subID)

	go func() {
		<-ctx.Done()
		h.Unsubscribe(sessionID, subID)
	}()

	return ch, subID
}

// Publish sends an event to all subscribers of the session.
// Non-blocking: events are dropped for subscribers whose channels are full.
// The read lock is held across the sends so a channel cannot be closed by
// Unsubscribe or Close mid-send; the default case keeps this from stalling.
func (h *Hub) Publish(sessionID string, event *Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subscribers[sessionID] {
		select {
		case ch <- event:
		default:
			h.logger.Debug("dropped event for slow subscriber",
				"session_id", sessionID, "event", event.Event)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (h *Hub) Unsubscribe(sessionID, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[sessionID]
	if !ok {
		return
	}

	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)

	if len(subs) == 0 {
		delete(h.subscribers, sessionID)
	}

	h.logger.Debug("subscriber removed", "session_id", sessionID, "sub_id", subID)
}

// Close shuts down the hub and closes all subscriber channels.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sessionID, subs := range h.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(h.subscribers, sessionID)
	}

	h.logger.Debug("hub closed")
}
