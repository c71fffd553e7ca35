package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"phdhunt-engine/internal/events"
)

const pingType events.Type = "ping"

type EventsHandler struct {
	Hub          *events.Hub
	PingInterval time.Duration
}

// ServeSSE streams run events. Each SSE event is named after the event type
// so browsers can addEventListener("run.finished", ...). A ping goes out on
// connect and then every PingInterval to keep proxies from closing the stream.
func (h EventsHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, http.StatusInternalServerError, "stream_unsupported", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.Hub.Subscribe()
	defer h.Hub.Unsubscribe(ch)

	every := h.PingInterval
	if every <= 0 {
		every = 25 * time.Second
	}
	tick := time.NewTicker(every)
	defer tick.Stop()

	var id int
	send := func(e events.Event) {
		id++
		fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", id, e.Type, e.JSON())
		flusher.Flush()
	}

	send(events.New("", pingType, nil))
	for {
		select {
		case <-r.Context().Done():
			return
		case <-tick.C:
			send(events.New("", pingType, nil))
		case e, ok := <-ch:
			if !ok {
				return
			}
			send(e)
		}
	}
}
