package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ryosukesatoh/vibecheck/internal/runner"
)

const maxBodyBytes = 1 << 20

const (
	msgMissingQuery     = "Missing query"
	msgSummaryFailed    = "AI summarization failed"
	msgMethodNotAllowed = "Method not allowed"
)

// VibecheckRequest is the body of POST /api/vibecheck.
type VibecheckRequest struct {
	Query *string `json:"query"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleVibecheck(w http.ResponseWriter, r *http.Request) {
	var req VibecheckRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, msgMissingQuery)
		return
	}
	if req.Query == nil || strings.TrimSpace(*req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, msgMissingQuery)
		return
	}

	digest, err := s.pipeline.Run(r.Context(), *req.Query)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"kind":       string(runner.KindOf(err)),
		}).WithError(err).Error("Vibecheck failed")

		if runner.IsInvalidInput(err) {
			s.respondError(w, http.StatusBadRequest, msgMissingQuery)
			return
		}
		s.respondError(w, http.StatusInternalServerError, msgSummaryFailed)
		return
	}

	s.respondJSON(w, http.StatusOK, digest)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.respondError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.WithError(err).Error("Failed to encode JSON response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
