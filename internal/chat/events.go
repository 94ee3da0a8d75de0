// ABOUTME: Wire-level chat event types shared by server and clients
// ABOUTME: Defines the websocket frame envelope and its payloads

package chat

import (
	"github.com/skyarc/portalbot/internal/geo"
	"github.com/skyarc/portalbot/internal/resolver"
)

// Event names carried in the websocket frame envelope.
const (
	EventUserMessage = "user_message"
	EventBotResponse = "bot_response"
	EventStatus      = "status"
)

// Event is one websocket frame: an event name plus its payload.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// UserMessage is the payload of a user_message frame.
type UserMessage struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// BotResponse is the payload of a bot_response frame.
type BotResponse struct {
	Message        string            `json:"message"`
	Confidence     float64           `json:"confidence"`
	Sources        []resolver.Source `json:"sources,omitempty"`
	Suggestions    []string          `json:"suggestions,omitempty"`
	GeospatialData *geo.Result       `json:"geospatial_data,omitempty"`
	Timestamp      string            `json:"timestamp"`
}

// Status is the payload of a status frame.
type Status struct {
	Msg string `json:"msg"`
}
