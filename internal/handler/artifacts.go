package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/corpus-generator/internal/middleware"
	"github.com/capitalize-ai/corpus-generator/internal/model"
	"github.com/capitalize-ai/corpus-generator/pkg/logger"
)

// ArtifactLister reads published artifact events of a run.
type ArtifactLister interface {
	Artifacts(ctx context.Context, runID string, afterSequence uint64, limit int) ([]model.ArtifactEvent, uint64, bool, error)
}

// ListArtifactsResponse is the body of GET /api/v1/runs/{runID}/artifacts.
type ListArtifactsResponse struct {
	Artifacts    []model.ArtifactEvent `json:"artifacts"`
	LastSequence uint64                `json:"last_sequence"`
	HasMore      bool                  `json:"has_more"`
}

// ArtifactHandler lists artifacts recorded in the event stream.
type ArtifactHandler struct {
	lister ArtifactLister
	logger *logger.Logger
}

// NewArtifactHandler creates a new artifact handler.
func NewArtifactHandler(lister ArtifactLister, log *logger.Logger) *ArtifactHandler {
	return &ArtifactHandler{
		lister: lister,
		logger: log,
	}
}

// List handles GET /api/v1/runs/{runID}/artifacts
// Supports ?after_sequence=N and ?limit=N for paging.
func (h *ArtifactHandler) List(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := middleware.ValidateRunID(runID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	afterSequence, err := middleware.ParseSequence(r.URL.Query().Get("after_sequence"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := middleware.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, last, more, err := h.lister.Artifacts(r.Context(), runID, afterSequence, limit)
	if err != nil {
		h.logger.Error("failed to list artifacts", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list artifacts")
		return
	}
	if events == nil {
		events = []model.ArtifactEvent{}
	}

	writeJSON(w, http.StatusOK, &ListArtifactsResponse{
		Artifacts:    events,
		LastSequence: last,
		HasMore:      more,
	})
}
