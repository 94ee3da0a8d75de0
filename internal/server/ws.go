// ABOUTME: Websocket chat endpoint: upgrades, reads user_message frames, pushes responses
// ABOUTME: Fans resolver output through the hub and persists session transcripts

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skyarc/portalbot/internal/chat"
	"github.com/skyarc/portalbot/internal/store"
)

// maxMessageBytes caps the text of a single user_message frame.
const maxMessageBytes = 4096

const connectedMsg = "Connected to the portal help bot"

// wsFrame is the envelope read off the wire; the payload stays raw until
// the event name is known.
type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s.logger.Info("chat client connected", "remote", conn.RemoteAddr())

	var writeMu sync.Mutex
	send := func(ev *chat.Event) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(ev); err != nil {
			s.logger.Debug("websocket write failed", "error", err)
		}
	}

	send(&chat.Event{Event: chat.EventStatus, Data: chat.Status{Msg: connectedMsg}})

	// One forwarder per session seen on this connection.
	subscribed := make(map[string]bool)
	subscribe := func(sessionID string) {
		if subscribed[sessionID] {
			return
		}
		subscribed[sessionID] = true

		ch, _ := s.hub.Subscribe(ctx, sessionID)
		go func() {
			for ev := range ch {
				send(ev)
			}
		}()
	}

	for {
		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			s.logger.Info("chat client disconnected", "remote", conn.RemoteAddr())
			return
		}

		if frame.Event != chat.EventUserMessage {
			continue
		}

		var msg chat.UserMessage
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			send(&chat.Event{Event: chat.EventStatus, Data: chat.Status{Msg: "malformed user_message"}})
			continue
		}

		if strings.TrimSpace(msg.Message) == "" {
			continue
		}
		if msg.SessionID == "" {
			msg.SessionID = "default"
		}
		if len(msg.Message) > maxMessageBytes {
			send(&chat.Event{Event: chat.EventStatus, Data: chat.Status{Msg: "message too large"}})
			continue
		}

		subscribe(msg.SessionID)
		go s.processUserMessage(ctx, msg)
	}
}

// processUserMessage persists the user turn, resolves it, publishes the
// bot_response, and persists the bot turn. Processing is bounded by the
// configured response timeout so a stuck query cannot pin the session.
func (s *Server) processUserMessage(ctx context.Context, msg chat.UserMessage) {
	if timeout := s.cfg.Chat.ResponseTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s.persistMessage(ctx, msg.SessionID, "user", msg.Message, 0)

	resp := s.resolver.Process(ctx, msg.Message, msg.SessionID)

	bot := &chat.BotResponse{
		Message:        resp.Answer,
		Confidence:     resp.Confidence,
		Sources:        resp.Sources,
		Suggestions:    resp.Suggestions,
		GeospatialData: resp.Geospatial,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
	s.hub.Publish(msg.SessionID, &chat.Event{Event: chat.EventBotResponse, Data: bot})

	s.persistMessage(ctx, msg.SessionID, "bot", resp.Answer, resp.Confidence)
}

func (s *Server) persistMessage(ctx context.Context, sessionID, sender, content string, confidence float64) {
	err := s.store.AppendChatMessage(ctx, &store.ChatMessage{
		ID:         uuid.New().String(),
		SessionID:  sessionID,
		Sender:     sender,
		Content:    content,
		Confidence: confidence,
	})
	if err != nil {
		s.logger.Error("failed to persist chat message",
			"session_id", sessionID, "sender", sender, "error", err)
	}
}
