package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"phdhunt-engine/internal/poll"
)

type ScrapeHandler struct {
	Runner  ScrapeRunner
	NextRun func() string

	// BaseCtx bounds runs started over HTTP; cancel it on shutdown.
	BaseCtx context.Context
}

func (h ScrapeHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.Runner.Status()
	out := map[string]any{"status": st}
	if h.NextRun != nil {
		out["next_run_at"] = h.NextRun()
	}
	WriteJSON(w, http.StatusOK, out)
}

// Run starts a collection in the background. An optional JSON body narrows
// it: {"sources": ["euraxess"], "max_pages": 1}.
func (h ScrapeHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req poll.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	// the run outlives this request but not the server
	base := h.BaseCtx
	if base == nil {
		base = context.WithoutCancel(r.Context())
	}
	err := h.Runner.Start(base, req)
	if errors.Is(err, poll.ErrRunInProgress) {
		WriteError(w, r, http.StatusConflict, "already_running", err.Error())
		return
	}
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "start_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}
