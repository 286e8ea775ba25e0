package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// keepaliveInterval is how often idle SSE connections get a comment line.
var keepaliveInterval = 10 * time.Second

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// handleHealth reports liveness. A reconnecting stream is expected and does
// not make the process unhealthy, so the status code is always 200.
func handleHealth(state StateFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]string{"status": "ok"}
		if state != nil {
			resp["stream"] = state()
		}
		writeJSON(w, resp, http.StatusOK)
	})
}

// handleStreamBuys streams buy events to the client as Server-Sent Events.
func handleStreamBuys(broadcaster *Broadcaster, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		events, unsubscribe := broadcaster.Subscribe()
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		logger.DebugContext(r.Context(), "SSE client connected", "remote_addr", r.RemoteAddr)

		fmt.Fprintf(w, "event: connected\ndata: {\"message\":\"streaming buys\"}\n\n")
		flusher.Flush()

		keepalive := time.NewTicker(keepaliveInterval)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprintf(w, ": keepalive\n\n")
				flusher.Flush()

			case event, ok := <-events:
				if !ok {
					// Broadcaster closed.
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					logger.WarnContext(r.Context(), "failed to marshal buy event", "error", err)
					continue
				}
				fmt.Fprintf(w, "event: buy\ndata: %s\n\n", data)
				flusher.Flush()

			case <-r.Context().Done():
				logger.DebugContext(r.Context(), "SSE client disconnected", "remote_addr", r.RemoteAddr)
				return
			}
		}
	})
}
