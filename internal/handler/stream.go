package handler

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/corpus-generator/pkg/logger"
	"github.com/capitalize-ai/corpus-generator/pkg/metrics"
)

const (
	defaultStreamInterval = time.Second
	heartbeatInterval     = 30 * time.Second
)

// StreamHandler pushes run progress over server-sent events.
type StreamHandler struct {
	progress *ProgressHandler
	interval time.Duration
	logger   *logger.Logger
}

// NewStreamHandler creates a new stream handler. interval controls how often
// progress is sampled; zero uses one second.
func NewStreamHandler(progress *ProgressHandler, interval time.Duration, log *logger.Logger) *StreamHandler {
	if interval <= 0 {
		interval = defaultStreamInterval
	}
	return &StreamHandler{
		progress: progress,
		interval: interval,
		logger:   log,
	}
}

// HeartbeatEvent keeps idle connections open.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// Stream handles GET /api/v1/progress/stream
// A progress event is sent whenever the artifact count changes. The stream
// ends with a complete event once the run finishes.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	run := h.progress.run
	if err := sendSSEEvent(w, flusher, "connected", map[string]string{"run_id": run.ID}); err != nil {
		return
	}

	last := -1
	push := func() error {
		snap := h.progress.snapshot()
		if snap.Artifacts == last && !snap.Complete {
			return nil
		}
		last = snap.Artifacts
		return sendSSEEvent(w, flusher, "progress", snap)
	}
	if err := push(); err != nil {
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("progress stream client disconnected", zap.String("run_id", run.ID))
			return

		case <-run.Done:
			if err := push(); err != nil {
				return
			}
			_ = sendSSEEvent(w, flusher, "complete", map[string]int{"artifacts": last})
			return

		case <-ticker.C:
			if err := push(); err != nil {
				h.logger.Debug("progress stream write failed", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			if err := sendSSEEvent(w, flusher, "heartbeat", &HeartbeatEvent{Timestamp: time.Now().UTC()}); err != nil {
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
