package handler

import (
	"net/http"
	"time"

	"github.com/capitalize-ai/corpus-generator/internal/stats"
	"github.com/capitalize-ai/corpus-generator/pkg/logger"
)

// ProgressSource reports the artifacts produced so far.
type ProgressSource interface {
	Progress() int
}

// Run describes the generation run the status server reports on.
type Run struct {
	ID        string
	Target    int
	StartedAt time.Time
	// Done is closed when the scheduler returns.
	Done <-chan struct{}
}

func (r Run) complete() bool {
	if r.Done == nil {
		return false
	}
	select {
	case <-r.Done:
		return true
	default:
		return false
	}
}

// ProgressResponse is the body of GET /api/v1/progress.
type ProgressResponse struct {
	RunID          string         `json:"run_id"`
	Target         int            `json:"target"`
	Artifacts      int            `json:"artifacts"`
	Percent        float64        `json:"percent"`
	Complete       bool           `json:"complete"`
	StartedAt      time.Time      `json:"started_at"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
	Stats          stats.Snapshot `json:"stats"`
}

// ProgressHandler serves run progress.
type ProgressHandler struct {
	run      Run
	progress ProgressSource
	stats    *stats.Aggregator
	logger   *logger.Logger
	now      func() time.Time
}

// NewProgressHandler creates a new progress handler.
func NewProgressHandler(run Run, progress ProgressSource, agg *stats.Aggregator, log *logger.Logger) *ProgressHandler {
	return &ProgressHandler{
		run:      run,
		progress: progress,
		stats:    agg,
		logger:   log,
		now:      time.Now,
	}
}

// Get handles GET /api/v1/progress
func (h *ProgressHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot())
}

func (h *ProgressHandler) snapshot() ProgressResponse {
	artifacts := h.progress.Progress()
	resp := ProgressResponse{
		RunID:     h.run.ID,
		Target:    h.run.Target,
		Artifacts: artifacts,
		Complete:  h.run.complete(),
		StartedAt: h.run.StartedAt,
		Stats:     h.stats.Snapshot(),
	}
	if !h.run.StartedAt.IsZero() {
		resp.ElapsedSeconds = h.now().Sub(h.run.StartedAt).Seconds()
	}
	if h.run.Target > 0 {
		resp.Percent = float64(artifacts) * 100 / float64(h.run.Target)
		if resp.Percent > 100 {
			resp.Percent = 100
		}
	}
	return resp
}
