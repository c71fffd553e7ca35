package httpapi

import (
	"net/http"
	"time"

	"phdhunt-engine/internal/events"
)

type HealthHandler struct {
	Hub *events.Hub
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339),
	}
	if h.Hub != nil {
		out["sse_clients"] = h.Hub.Subscribers()
		out["sse_dropped"] = h.Hub.Dropped()
	}
	WriteJSON(w, http.StatusOK, out)
}
