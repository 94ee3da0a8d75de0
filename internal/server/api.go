// ABOUTME: REST handlers for stats, search, portal ingestion, and activity logs
// ABOUTME: JSON envelope follows the status/message convention of the chat API

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/skyarc/portalbot/internal/index"
	"github.com/skyarc/portalbot/internal/kg"
	"github.com/skyarc/portalbot/internal/store"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
	defaultLogsLimit   = 50
)

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Status  string         `json:"status"`
	Results []index.Result `json:"results"`
}

type scrapeRequest struct {
	URL string `json:"url"`
}

type scrapeResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	ContentCount int    `json:"content_count"`
}

type logEntryJSON struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	PageType     string `json:"page_type"`
	ContentCount int    `json:"content_count"`
	Status       string `json:"status"`
	Message      string `json:"message"`
	CreatedAt    string `json:"created_at"`
}

type logsResponse struct {
	Status string         `json:"status"`
	Logs   []logEntryJSON `json:"logs"`
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendError writes the status/message error envelope.
func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, map[string]string{
		"status":  "error",
		"message": message,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.CountEntities(r.Context()); err != nil {
		s.logger.Error("readiness check failed", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.graph.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats computation failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to compute statistics")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		s.sendError(w, http.StatusBadRequest, "query is required")
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	results, err := s.searcher.Search(r.Context(), req.Query, limit)
	if err != nil {
		s.logger.Error("search failed", "query", req.Query, "error", err)
		s.sendError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if results == nil {
		results = []index.Result{}
	}

	s.writeJSON(w, http.StatusOK, searchResponse{Status: "success", Results: results})
}

func (s *Server) handleScrapePortal(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.sendError(w, http.StatusBadRequest, "url is required")
		return
	}

	ctx := r.Context()

	pages, err := s.scraper.Crawl(ctx, req.URL)
	if err != nil {
		s.logger.Error("crawl failed", "url", req.URL, "error", err)
		s.appendLog(ctx, &store.IngestLogEntry{
			URL:     req.URL,
			Status:  "error",
			Message: err.Error(),
		})
		s.sendError(w, http.StatusInternalServerError, "crawl failed: "+err.Error())
		return
	}

	processed := s.processor.Process(pages)

	items := make([]kg.ContentItem, 0, len(processed))
	for _, p := range processed {
		items = append(items, kg.ContentItem{
			URL:         p.URL,
			Title:       p.Title,
			Description: p.Description,
			Content:     p.Content,
			PageType:    p.PageType,
			Keywords:    p.Keywords,
		})
	}

	added, err := s.graph.UpdateFromContent(ctx, items)
	if err != nil {
		s.logger.Error("graph update failed", "url", req.URL, "error", err)
		s.appendLog(ctx, &store.IngestLogEntry{
			URL:     req.URL,
			Status:  "error",
			Message: err.Error(),
		})
		s.sendError(w, http.StatusInternalServerError, "knowledge graph update failed")
		return
	}

	for _, p := range processed {
		s.appendLog(ctx, &store.IngestLogEntry{
			URL:      p.URL,
			Title:    p.Title,
			PageType: p.PageType,
			Status:   "ok",
		})
	}
	s.appendLog(ctx, &store.IngestLogEntry{
		URL:          req.URL,
		ContentCount: added,
		Status:       "completed",
		Message:      fmt.Sprintf("Successfully processed %d content items", added),
	})

	s.writeJSON(w, http.StatusOK, scrapeResponse{
		Status:       "success",
		Message:      fmt.Sprintf("Successfully processed %d content items", added),
		ContentCount: added,
	})
}

func (s *Server) appendLog(ctx context.Context, entry *store.IngestLogEntry) {
	entry.ID = uuid.New().String()
	if err := s.store.AppendIngestLog(ctx, entry); err != nil {
		s.logger.Error("failed to append ingest log", "url", entry.URL, "error", err)
	}
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.sendError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.store.ListIngestLog(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing ingest log failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to list logs")
		return
	}

	logs := make([]logEntryJSON, 0, len(entries))
	for _, e := range entries {
		logs = append(logs, logEntryJSON{
			URL:          e.URL,
			Title:        e.Title,
			PageType:     e.PageType,
			ContentCount: e.ContentCount,
			Status:       e.Status,
			Message:      e.Message,
			CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	s.writeJSON(w, http.StatusOK, logsResponse{Status: "success", Logs: logs})
}

type chatMessageJSON struct {
	Sender     string  `json:"sender"`
	Content    string  `json:"content"`
	Confidence float64 `json:"confidence"`
	CreatedAt  string  `json:"created_at"`
}

type chatHistoryResponse struct {
	Status    string            `json:"status"`
	SessionID string            `json:"session_id"`
	Messages  []chatMessageJSON `json:"messages"`
}

// handleChatHistory returns a session's recent transcript, bounded by the
// configured history limit.
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		s.sendError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	limit := s.cfg.Chat.HistoryLimit
	if limit <= 0 {
		limit = defaultLogsLimit
	}

	entries, err := s.store.ListChatMessages(r.Context(), sessionID, limit)
	if err != nil {
		s.logger.Error("listing chat history failed", "session_id", sessionID, "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to list chat history")
		return
	}

	messages := make([]chatMessageJSON, 0, len(entries))
	for _, m := range entries {
		messages = append(messages, chatMessageJSON{
			Sender:     m.Sender,
			Content:    m.Content,
			Confidence: m.Confidence,
			CreatedAt:  m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	s.writeJSON(w, http.StatusOK, chatHistoryResponse{
		Status:    "success",
		SessionID: sessionID,
		Messages:  messages,
	})
}

// requireAuth validates a JWT bearer token on mutating endpoints when a
// secret is configured. With no secret the endpoints are open.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := s.cfg.Auth.JWTSecret
		if secret == "" {
			next(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.sendError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil {
			s.sendError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next(w, r)
	}
}
