package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	eventBufferSize = 100
	heartbeatPeriod = 30 * time.Second
)

// ServeSSE writes SSE headers, then runs turn (which forwards events by
// calling the Sink it's handed) to completion while relaying every event
// to w as it arrives, grounded on the teacher's events_stream.go
// per-connection buffered channel + heartbeat-ticker pattern.
//
// turn is expected to call its Sink synchronously and return once the
// whole turn (chat or report) has emitted its final/error event; this
// function does not itself decide when the stream ends.
func ServeSSE(w http.ResponseWriter, r *http.Request, log zerolog.Logger, turn func(ctx context.Context, emit Sink)) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	eventChan := make(chan Event, eventBufferSize)
	done := make(chan struct{})

	go func() {
		defer close(done)
		turn(r.Context(), func(ev Event) {
			select {
			case eventChan <- ev:
			default:
				log.Warn().Str("event_type", string(ev.Type)).Msg("stream: event channel full, dropping event")
			}
		})
	}()

	heartbeat := time.NewTicker(heartbeatPeriod)
	defer heartbeat.Stop()

	ctxDone := r.Context().Done()
	for {
		select {
		case <-ctxDone:
			log.Info().Msg("stream: client disconnected")
			return

		case ev := <-eventChan:
			writeEvent(w, flusher, ev)

		case <-done:
			// Drain whatever the turn already queued before returning.
			for {
				select {
				case ev := <-eventChan:
					writeEvent(w, flusher, ev)
				default:
					return
				}
			}

		case <-heartbeat.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		fmt.Fprintf(w, "data: %s\n\n", `{"type":"error","message":"failed to encode event"}`)
	} else {
		fmt.Fprintf(w, "data: %s\n\n", data)
	}
	flusher.Flush()
}
