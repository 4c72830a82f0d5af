package handlers

import (
	"net/http"

	"github.com/salescast/salescast/internal/artifact"
	"github.com/salescast/salescast/internal/contracts"
)

// ModelHandler exposes metadata about the currently loaded artifact.
type ModelHandler struct {
	bundle *artifact.Bundle
}

// NewModelHandler creates a model metadata handler.
func NewModelHandler(bundle *artifact.Bundle) *ModelHandler {
	return &ModelHandler{bundle: bundle}
}

// Info handles GET /api/model.
func (h *ModelHandler) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"model":       h.bundle.Model.Name(),
		"trained_at":  h.bundle.TrainedAt,
		"cutoff":      contracts.FormatPeriod(h.bundle.Cutoff),
		"features":    h.bundle.Schema.Len(),
		"entities":    len(h.bundle.History.Entities()),
		"exogenous":   h.bundle.ExogColumns,
		"event_flags": h.bundle.FlagColumns,
	})
}
