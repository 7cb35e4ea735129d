// ABOUTME: REST endpoints: health, providers, conversations, export
// ABOUTME: Read-mostly surface next to the WebSocket chat endpoint

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentgaia/gaia-gateway/internal/chat"
	"github.com/agentgaia/gaia-gateway/internal/store"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":              "healthy",
		"connected_providers": s.registry.ConnectedProviders(),
	})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"providers":    s.router.Providers(),
		"models":       s.models,
		"backup_chain": s.chain,
		"connected":    s.registry.ConnectedProviders(),
	})
}

// handleExport returns the live conversation log as a downloadable
// markdown or plain-text file.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := chat.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = chat.ExportMarkdown
	}

	content, filename, ok := s.pipeline.Export(format, time.Now())
	if !ok {
		s.sendJSONError(w, http.StatusNotFound, "no conversation to export")
		return
	}

	mediaType := "text/markdown"
	if format != chat.ExportMarkdown {
		mediaType = "text/plain"
	}
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(content))
}

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.sendJSONError(w, http.StatusNotImplemented, "persistence is not configured")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	convs, err := s.repo.ListConversations(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("conversation list failed", "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.sendJSONError(w, http.StatusNotImplemented, "persistence is not configured")
		return
	}

	id := chi.URLParam(r, "id")
	conv, err := s.repo.GetConversation(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.logger.Error("conversation fetch failed", "conversation_id", id, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "failed to fetch conversation")
		return
	}
	s.writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		s.sendJSONError(w, http.StatusNotImplemented, "persistence is not configured")
		return
	}

	id := chi.URLParam(r, "id")
	err := s.repo.DeleteConversation(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		s.logger.Error("conversation delete failed", "conversation_id", id, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
