// ABOUTME: Chat session controller managing the websocket lifecycle and transcript
// ABOUTME: Handles reconnect backoff, response timeouts, and confidence bands

package chatctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yuin/goldmark"

	"github.com/skyarc/portalbot/internal/chat"
	"github.com/skyarc/portalbot/internal/dedupe"
	"github.com/skyarc/portalbot/internal/geo"
	"github.com/skyarc/portalbot/internal/resolver"
)

// Connection status values reported through OnStatus.
const (
	StatusConnecting   = "connecting"
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// Confidence bands attached to bot entries.
const (
	BandHigh   = "high"
	BandMedium = "medium"
	BandLow    = "low"
)

// Reconnect backoff bounds.
const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// inflightTTL bounds how long a query blocks identical resends when no
// answer ever arrives.
const inflightTTL = 2 * time.Minute

var (
	// ErrNotConnected is returned by Send while the socket is down.
	ErrNotConnected = errors.New("not connected")
	// ErrAwaitingResponse is returned by Send while a response is pending.
	ErrAwaitingResponse = errors.New("awaiting response")
	// ErrDuplicateQuery is returned when the same query is already in flight.
	ErrDuplicateQuery = errors.New("duplicate query in flight")
	// ErrEmptyMessage is returned when the trimmed message is empty.
	ErrEmptyMessage = errors.New("empty message")
)

// Entry is one transcript line: a user query, a bot answer, or a
// connection status note.
type Entry struct {
	Sender      string // "user", "bot", or "system"
	Text        string // rendered HTML for bot entries, plain text otherwise
	Raw         string // original markdown or message text
	Band        string // confidence band, bot entries only
	Confidence  float64
	Sources     []resolver.Source
	Suggestions []string
	Geospatial  *geo.Result
	Timestamp   time.Time
}

// Options configures a Controller.
type Options struct {
	// URL of the websocket chat endpoint, e.g. ws://host/ws/chat.
	URL string
	// ResponseTimeout bounds how long a query waits for a bot_response
	// before a local "no response" note is added. Defaults to 30s.
	ResponseTimeout time.Duration
	// OnStatus is called on every connection status change.
	OnStatus func(status string)
	// OnUpdate is called whenever the transcript changes.
	OnUpdate func()
	// Dialer overrides the websocket dialer, mainly for tests.
	Dialer *websocket.Dialer
}

// Controller drives one chat session against the portal bot.
type Controller struct {
	opts      Options
	sessionID string
	inflight  *dedupe.Cache
	logger    *slog.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	status     string
	waiting    bool
	pendingKey string
	pending    *time.Timer
	transcript []Entry
	lastBot    *botEntry
}

// botEntry keeps the structured payload of the most recent answer so
// suggestion chips can be resubmitted.
type botEntry struct {
	response chat.BotResponse
	index    int
}

// New creates a controller with a fresh session ID. Connect must be
// called before Send.
func New(opts Options) *Controller {
	if opts.ResponseTimeout <= 0 {
		opts.ResponseTimeout = 30 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Controller{
		opts:      opts,
		sessionID: fmt.Sprintf("%s-%d", uuid.New().String(), time.Now().UnixNano()),
		status:    StatusDisconnected,
		inflight:  dedupe.New(inflightTTL, 64),
		logger:    slog.Default().With("component", "chatctl"),
	}
}

// SessionID returns the controller's session identifier.
func (c *Controller) SessionID() string {
	return c.sessionID
}

// Status returns the current connection status.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Waiting reports whether a query is awaiting its response.
func (c *Controller) Waiting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting
}

// Transcript returns a copy of the transcript, oldest first.
func (c *Controller) Transcript() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// Band maps a confidence score to its display band.
func Band(confidence float64) string {
	switch {
	case confidence >= 0.8:
		return BandHigh
	case confidence >= 0.5:
		return BandMedium
	default:
		return BandLow
	}
}

// Connect dials the chat endpoint and keeps the connection alive until
// ctx is cancelled, reconnecting with capped jittered backoff.
func (c *Controller) Connect(ctx context.Context) {
	go c.run(ctx)
}

func (c *Controller) run(ctx context.Context) {
	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			c.setStatus(StatusDisconnected)
			return
		}

		c.setStatus(StatusConnecting)

		conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, nil)
		if err != nil {
			c.setStatus(StatusDisconnected)
			c.logger.Warn("dial failed", "url", c.opts.URL, "error", err)
			if !sleepCtx(ctx, jitter(backoff)) {
				return
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = initialBackoff
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.setStatus(StatusConnected)

		c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
		c.connectionLost()
		c.setStatus(StatusDisconnected)

		if !sleepCtx(ctx, jitter(backoff)) {
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// jitter spreads a backoff delay over [d/2, d) to avoid reconnect herds.
func jitter(d time.Duration) time.Duration {
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)))
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func (c *Controller) setStatus(status string) {
	c.mu.Lock()
	changed := c.status != status
	c.status = status
	c.mu.Unlock()
	if changed && c.opts.OnStatus != nil {
		c.opts.OnStatus(status)
	}
}

func (c *Controller) appendEntry(e Entry) {
	c.mu.Lock()
	c.transcript = append(c.transcript, e)
	c.mu.Unlock()
	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate()
	}
}

// connectionLost clears any in-flight query state after the read loop
// exits so Send is usable as soon as a reconnect succeeds, instead of
// blocking behind a response that can no longer arrive.
func (c *Controller) connectionLost() {
	c.mu.Lock()
	wasWaiting := c.waiting
	c.waiting = false
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	if c.pendingKey != "" {
		c.inflight.Forget(c.pendingKey)
		c.pendingKey = ""
	}
	c.mu.Unlock()

	if wasWaiting && c.opts.OnUpdate != nil {
		c.opts.OnUpdate()
	}
}

// wireFrame mirrors the server's event envelope with the payload kept raw.
type wireFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (c *Controller) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var frame wireFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("connection lost", "error", err)
			}
			return
		}

		switch frame.Event {
		case chat.EventStatus:
			var status chat.Status
			if err := json.Unmarshal(frame.Data, &status); err == nil {
				c.appendEntry(Entry{
					Sender:    "system",
					Text:      status.Msg,
					Raw:       status.Msg,
					Timestamp: time.Now(),
				})
			}
		case chat.EventBotResponse:
			var resp chat.BotResponse
			if err := json.Unmarshal(frame.Data, &resp); err != nil {
				c.logger.Warn("malformed bot_response", "error", err)
				continue
			}
			c.handleBotResponse(resp)
		}
	}
}

func (c *Controller) handleBotResponse(resp chat.BotResponse) {
	c.mu.Lock()
	c.waiting = false
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	if c.pendingKey != "" {
		c.inflight.Forget(c.pendingKey)
		c.pendingKey = ""
	}

	entry := Entry{
		Sender:      "bot",
		Text:        renderMarkdown(resp.Message),
		Raw:         resp.Message,
		Band:        Band(resp.Confidence),
		Confidence:  resp.Confidence,
		Sources:     resp.Sources,
		Suggestions: resp.Suggestions,
		Geospatial:  resp.GeospatialData,
		Timestamp:   time.Now(),
	}
	c.transcript = append(c.transcript, entry)
	c.lastBot = &botEntry{response: resp, index: len(c.transcript) - 1}
	c.mu.Unlock()

	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate()
	}
}

// renderMarkdown converts a markdown answer to HTML, falling back to the
// raw text when conversion fails.
func renderMarkdown(md string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return md
	}
	return strings.TrimSpace(buf.String())
}

// Send submits a user query. It refuses empty input, input while a
// response is pending, and duplicates of an in-flight query.
func (c *Controller) Send(message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	if c.waiting {
		c.mu.Unlock()
		return ErrAwaitingResponse
	}

	key := dedupe.Key(message)
	if c.inflight.CheckAndMark(key) {
		c.mu.Unlock()
		return ErrDuplicateQuery
	}

	frame := chat.Event{
		Event: chat.EventUserMessage,
		Data:  chat.UserMessage{Message: message, SessionID: c.sessionID},
	}
	if err := c.conn.WriteJSON(frame); err != nil {
		c.inflight.Forget(key)
		c.mu.Unlock()
		return fmt.Errorf("sending message: %w", err)
	}

	c.waiting = true
	c.pendingKey = key
	c.transcript = append(c.transcript, Entry{
		Sender:    "user",
		Text:      message,
		Raw:       message,
		Timestamp: time.Now(),
	})
	c.pending = time.AfterFunc(c.opts.ResponseTimeout, func() {
		c.responseTimedOut(key)
	})
	c.mu.Unlock()

	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate()
	}
	return nil
}

// responseTimedOut clears the waiting state and records a local note
// when no bot_response arrived within the response window.
func (c *Controller) responseTimedOut(key string) {
	c.mu.Lock()
	if !c.waiting || c.pendingKey != key {
		c.mu.Unlock()
		return
	}
	c.waiting = false
	c.pending = nil
	c.pendingKey = ""
	c.inflight.Forget(key)
	c.transcript = append(c.transcript, Entry{
		Sender:    "system",
		Text:      "No response received. Please try again.",
		Raw:       "No response received. Please try again.",
		Timestamp: time.Now(),
	})
	c.mu.Unlock()

	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate()
	}
}

// UseSuggestion resubmits suggestion i of the most recent answer.
func (c *Controller) UseSuggestion(i int) error {
	c.mu.Lock()
	if c.lastBot == nil {
		c.mu.Unlock()
		return errors.New("no suggestions available")
	}
	suggestions := c.lastBot.response.Suggestions
	if i < 0 || i >= len(suggestions) {
		c.mu.Unlock()
		return fmt.Errorf("suggestion index %d out of range", i)
	}
	suggestion := suggestions[i]
	c.mu.Unlock()

	return c.Send(suggestion)
}

// Close releases the controller's resources.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.pending != nil {
		c.pending.Stop()
	}
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
	c.inflight.Close()
}
