package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/fkhayef/chaikhata/internal/metrics"
	"github.com/fkhayef/chaikhata/internal/realtime"
	"github.com/fkhayef/chaikhata/internal/user"
	"github.com/fkhayef/chaikhata/pkg/response"
)

const keepAliveEvery = 25 * time.Second

// Handler serves workspace streams
type Handler struct {
	hub    *realtime.Hub
	source Source
	loc    *time.Location
	logger *slog.Logger
}

// NewHandler creates a new session handler
func NewHandler(hub *realtime.Hub, source Source, loc *time.Location, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{hub: hub, source: source, loc: loc, logger: logger}
}

// Stream handles GET /stream
// @Summary      Live workspace stream
// @Description  Server-Sent Events. Each "state" event carries the full workspace after a change. The stream follows the caller's active group.
// @Tags         session
// @Produce      text/event-stream
// @Security     BearerAuth
// @Success      200 {object} StateResponse
// @Router       /stream [get]
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	actor, ok := user.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalError(w, "Streaming unsupported")
		return
	}

	ctx := r.Context()
	ws := NewWorkspace(h.hub, h.source, h.loc, h.logger)
	done := make(chan error, 1)
	go func() { done <- ws.Run(ctx, actor.ID) }()

	metrics.StreamSubscribers.Inc()
	defer metrics.StreamSubscribers.Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveEvery)
	defer keepAlive.Stop()

	for {
		select {
		case state := <-ws.Updates():
			data, err := json.Marshal(state.ToResponse())
			if err != nil {
				h.logger.ErrorContext(ctx, "Failed to encode workspace state", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", state.Version, data); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case err := <-done:
			if err != nil && !errors.Is(err, ctx.Err()) {
				h.logger.WarnContext(ctx, "Workspace stream ended", "user_id", actor.ID, "error", err)
				fmt.Fprintf(w, "event: error\ndata: %q\n\n", err.Error())
				flusher.Flush()
			}
			return
		}
	}
}
