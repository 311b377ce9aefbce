package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/smartdom/crm-api/internal/realtime"
	"go.uber.org/zap"
)

// EventSource hands out subscriptions to entity change events
type EventSource interface {
	Subscribe() (<-chan realtime.Event, func())
}

// EventsHandler streams change events to browsers as server-sent events
type EventsHandler struct {
	source    EventSource
	keepAlive time.Duration
	logger    *zap.Logger
}

func NewEventsHandler(source EventSource, keepAlive time.Duration, logger *zap.Logger) *EventsHandler {
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	return &EventsHandler{source: source, keepAlive: keepAlive, logger: logger}
}

// Stream godoc
// @Summary Subscribe to change events
// @Description Server-sent event stream. Each event names an entity and id that changed so the client can refetch it.
// @Tags Events
// @Produce text/event-stream
// @Success 200 {object} realtime.Event
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /events [get]
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	events, unsubscribe := h.source.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("failed to encode event", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Entity, payload)
			flusher.Flush()
		}
	}
}
