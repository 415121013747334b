package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/geotone-app/geotone/internal/catalog"
	"github.com/geotone-app/geotone/internal/models"
	"github.com/geotone-app/geotone/internal/orchestrator"
	"github.com/geotone-app/geotone/internal/progress"
)

// GenerationService is the service surface the handlers need.
type GenerationService interface {
	Create(ctx context.Context, req *models.CreateSoundscapeRequest) (*models.SoundscapeResponse, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Generation, error)
	List(ctx context.Context, limit int) ([]*models.Generation, error)
	ArtifactPath(ctx context.Context, id uuid.UUID) (string, error)
}

// Handler contains all HTTP handlers
type Handler struct {
	generations GenerationService
	catalog     *catalog.Catalog
	broker      *progress.Broker
}

// NewHandler creates a new handler
func NewHandler(generations GenerationService, cat *catalog.Catalog, broker *progress.Broker) *Handler {
	return &Handler{
		generations: generations,
		catalog:     cat,
		broker:      broker,
	}
}

// CreateSoundscape handles POST /v1/soundscapes
func (h *Handler) CreateSoundscape(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSoundscapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.generations.Create(r.Context(), &req)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create soundscape")
		if errors.Is(err, orchestrator.ErrAllProvidersFailed) {
			writeJSONError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// GetSoundscape handles GET /v1/soundscapes/{id}
func (h *Handler) GetSoundscape(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid soundscape id")
		return
	}

	gen, err := h.generations.Get(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("generation_id", id.String()).Msg("Failed to get soundscape")
		writeJSONError(w, http.StatusInternalServerError, "failed to get soundscape")
		return
	}
	if gen == nil {
		writeJSONError(w, http.StatusNotFound, "soundscape not found")
		return
	}

	writeJSON(w, http.StatusOK, &models.SoundscapeResponse{Generation: gen})
}

// ListSoundscapes handles GET /v1/soundscapes
func (h *Handler) ListSoundscapes(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	gens, err := h.generations.List(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list soundscapes")
		writeJSONError(w, http.StatusInternalServerError, "failed to list soundscapes")
		return
	}
	if gens == nil {
		gens = []*models.Generation{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"soundscapes": gens,
		"total":       len(gens),
	})
}

// GetSoundscapeAudio handles GET /v1/soundscapes/{id}/audio
func (h *Handler) GetSoundscapeAudio(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid soundscape id")
		return
	}

	path, err := h.generations.ArtifactPath(r.Context(), id)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	http.ServeFile(w, r, path)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
