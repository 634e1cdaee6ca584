package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

type Server struct {
	repo *Repository
}

func NewServer(repo *Repository) *Server { return &Server{repo: repo} }

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/library", s.handleList)
	mux.HandleFunc("POST /api/library/{id}/token", s.handleToken)
	return mux
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}
	items, err := s.repo.ListByUser(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("list library")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	for i := range items {
		items[i].Size = humanize.Bytes(uint64(items[i].SizeBytes))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id must be > 0"})
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}
	token, err := s.repo.IssueToken(r.Context(), id, userID)
	if errors.Is(err, ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not in your library"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("issue token")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
