package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/broadway-labs/styleflow/internal/models"
)

// chatRequest is the transport payload for one turn.
type chatRequest struct {
	SessionID   string `json:"session_id"`
	Message     string `json:"message"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// feedbackRequest is the transport payload for explicit feedback submission.
type feedbackRequest struct {
	SessionID string `json:"session_id"`
	Rating    *int   `json:"rating,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

// chatHandler delivers one (session_id, message, optional image) turn to the engine.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Debug("Server.chatHandler: invalid request body", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid request body"))
		return
	}

	var image []byte
	if req.ImageBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid image encoding"))
			return
		}
		image = decoded
	}

	reply, err := s.engine.HandleMessage(r.Context(), req.SessionID, req.Message, image)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrEmptySessionID),
			errors.Is(err, models.ErrEmptyMessage),
			errors.Is(err, models.ErrMessageTooLong):
			writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		default:
			slog.Error("Server.chatHandler: engine failed", "error", err, "sessionID", req.SessionID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("internal server error"))
		}
		return
	}

	writeJSONResponse(w, http.StatusOK, models.Success(reply))
}

// sessionHandler closes a session: DELETE /sessions/{id}.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/sessions/")
	if id == "" || strings.Contains(id, "/") {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid session id"))
		return
	}
	s.engine.CloseSession(id)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("session closed", nil))
}

// feedbackHandler records explicit feedback (POST) and lists records (GET).
func (s *Server) feedbackHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req feedbackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid request body"))
			return
		}
		if req.SessionID == "" {
			writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrEmptySessionID.Error()))
			return
		}
		record := s.recorder.Record(r.Context(), req.SessionID, req.Rating, req.Comment)
		writeJSONResponse(w, http.StatusOK, models.Recorded(record))

	case http.MethodGet:
		records, err := s.store.ListFeedback()
		if err != nil {
			slog.Error("Server.feedbackHandler: list failed", "error", err)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to list feedback"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(records))

	default:
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
	}
}

// feedbackStatsHandler reports aggregate feedback counts.
func (s *Server) feedbackStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}
	stats, err := s.store.FeedbackStats()
	if err != nil {
		slog.Error("Server.feedbackStatsHandler: stats failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to aggregate feedback"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}
