package handlers

import (
	"net/http"

	"github.com/geotone-app/geotone/internal/models"
)

// ListLandmarks handles GET /v1/landmarks
func (h *Handler) ListLandmarks(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil || h.catalog.Len() == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{"landmarks": []models.Landmark{}, "total": 0})
		return
	}

	query := r.URL.Query().Get("q")
	var results []models.Landmark
	if query == "" {
		results = h.catalog.All()
	} else {
		results = h.catalog.Search(query)
	}
	if results == nil {
		results = []models.Landmark{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"landmarks": results,
		"total":     len(results),
	})
}
