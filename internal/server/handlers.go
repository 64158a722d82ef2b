package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/sw33tLie/archerlookup/internal/utils"
	"github.com/sw33tLie/archerlookup/pkg/archer"
	"github.com/sw33tLie/archerlookup/pkg/entity"
	"github.com/sw33tLie/archerlookup/pkg/storage"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		utils.Log.WithError(err).Warn("Could not write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// upstreamStatus maps connector errors to the status reported to the UI.
func upstreamStatus(err error) int {
	switch {
	case errors.Is(err, archer.ErrInvalidEntity):
		return http.StatusBadRequest
	case errors.Is(err, archer.ErrAuthFailure),
		errors.Is(err, archer.ErrUnexpectedStatus),
		errors.Is(err, archer.ErrTransport),
		errors.Is(err, archer.ErrDetailFieldsLookup):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type LookupRequest struct {
	Entities []entity.Entity `json:"entities"`
	// Values are classified server side; unrecognized values are skipped.
	Values []string `json:"values"`
}

type LookupResponse struct {
	Results []archer.LookupResult `json:"results"`
	Skipped []string              `json:"skipped,omitempty"`
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	entities := req.Entities
	parsed, skipped := entity.ParseAll(req.Values)
	entities = append(entities, parsed...)

	results, err := s.Integration.DoLookup(r.Context(), entities, s.Options)
	if err != nil {
		utils.Log.WithFields(logrus.Fields{"entities": len(entities), "error": err}).Error("Lookup failed")
		writeError(w, upstreamStatus(err), err)
		return
	}

	writeJSON(w, http.StatusOK, LookupResponse{Results: results, Skipped: skipped})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg archer.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	reply, err := s.Integration.OnMessage(r.Context(), msg, s.Options)
	if err != nil {
		var detailErr *archer.DetailFieldsError
		if errors.As(err, &detailErr) {
			writeJSON(w, upstreamStatus(detailErr.Err), detailErr)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, archer.ValidateOptions(s.Options))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "history is disabled", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	opts := storage.ListOptions{
		Value:    q.Get("value"),
		Type:     q.Get("type"),
		OnlyHits: q.Get("hits") == "true",
	}
	if l := q.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		opts.Limit = limit
	}

	entries, err := s.DB.ListHistory(r.Context(), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "history is disabled", http.StatusNotFound)
		return
	}

	stats, err := s.DB.GetStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
