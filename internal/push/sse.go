package push

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"whalewatch/internal/fanout"
	"whalewatch/internal/observability"
)

const sseHeartbeat = 15 * time.Second

// SSEHandler streams event envelopes as server-sent events. Each
// request gets its own bus subscription; the stream ends when the
// client disconnects.
func SSEHandler(bus *fanout.Bus, logger *log.Logger) http.HandlerFunc {
	var connected atomic.Int64

	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		events, cancel := bus.Subscribe()
		defer cancel()

		observability.SetPushClients("sse", int(connected.Add(1)))
		defer func() {
			observability.SetPushClients("sse", int(connected.Add(-1)))
		}()

		heartbeat := time.NewTicker(sseHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-heartbeat.C:
				fmt.Fprint(w, ": keepalive\n\n")
				flusher.Flush()
			case ev, ok := <-events:
				if !ok {
					return
				}
				payload, err := json.Marshal(ev)
				if err != nil {
					logger.Printf("marshal sse event %s: %v", ev.Type, err)
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
				flusher.Flush()
			}
		}
	}
}
