package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/reframe/reframe/backend-go/internal/ai"
	"github.com/reframe/reframe/backend-go/internal/auth"
	"github.com/reframe/reframe/backend-go/internal/camera"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	AssetID     string `json:"assetId"`
	ImageWidth  int    `json:"imageWidth"`
	ImageHeight int    `json:"imageHeight"`
}

type generateRequest struct {
	LiveState *camera.State `json:"liveState"`
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.AssetID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "assetId is required"})
		return
	}
	if req.ImageWidth <= 0 || req.ImageHeight <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "imageWidth and imageHeight must be positive"})
		return
	}

	sess, err := h.service.Create(r.Context(), userID, req.AssetID, req.ImageWidth, req.ImageHeight)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	sessionID := mux.Vars(r)["sessionId"]

	sess, err := h.service.Get(r.Context(), sessionID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	sessions, err := h.service.List(r.Context(), userID)
	if err != nil {
		slog.Error("list sessions failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, sessions)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	sessionID := mux.Vars(r)["sessionId"]

	if err := h.service.Delete(r.Context(), sessionID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GeneratePrompts handles POST /sessions/{sessionId}/prompts. The body may
// carry an unsaved live state to generate from.
func (h *Handler) GeneratePrompts(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	sessionID := mux.Vars(r)["sessionId"]

	var req generateRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	prompts, err := h.service.GeneratePrompts(r.Context(), sessionID, userID, req.LiveState)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, prompts)
}

func (h *Handler) ListPrompts(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	sessionID := mux.Vars(r)["sessionId"]

	prompts, err := h.service.ListPrompts(r.Context(), sessionID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, prompts)
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, ErrSuperseded):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "superseded by a newer upload"})
	case errors.Is(err, ai.ErrCredential):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "AI API key missing or rejected"})
	default:
		slog.Error("session service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
