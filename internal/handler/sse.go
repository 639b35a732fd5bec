package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/usedplus/core/internal/realtime"
)

// SSEHandler streams events.Notification broadcasts to one authenticated
// farm's connection, adapted from the teacher's auction-keyed sse.go: the
// subscription key is now the caller's FarmId instead of an auction id.
type SSEHandler struct {
	Broker            *realtime.Broker
	KeepaliveInterval time.Duration
}

// Stream handles GET /api/v1/stream.
func (h *SSEHandler) Stream(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := &realtime.Subscriber{
		ID:       uuid.New().String(),
		FarmID:   farmID,
		Messages: make(chan []byte, 32),
		Done:     make(chan struct{}),
	}
	h.Broker.Subscribe(sub)
	defer h.Broker.Unsubscribe(sub)

	keepalive := h.KeepaliveInterval
	if keepalive <= 0 {
		keepalive = 30 * time.Second
	}
	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-sub.Messages:
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
