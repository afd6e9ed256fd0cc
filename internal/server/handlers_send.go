package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"smsblast/internal/dispatch"
	"smsblast/pkg/logx"
)

// startSend launches a campaign over the enabled contacts. The body may
// override the configured dry-run flag:
//
//	{"dry_run": true}
//
// 409 means the slot is taken or the daily quota is spent; the reason is in
// the error field.
func (h *Handlers) startSend(w http.ResponseWriter, r *http.Request) {
	cfg := h.Manager.Get()
	if cfg == nil {
		writeError(w, http.StatusServiceUnavailable, "config not loaded")
		return
	}
	pol := cfg.RuntimePolicy()

	if r.ContentLength != 0 {
		var req struct {
			DryRun *bool `json:"dry_run"`
		}
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request: %v", err)
			return
		}
		if req.DryRun != nil {
			pol.DryRun = *req.DryRun
		}
	}

	list, err := h.Contacts.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load contacts: %v", err)
		return
	}

	switch err := h.Dispatch.Start(r.Context(), list, pol); {
	case errors.Is(err, dispatch.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "a run is already in progress")
	case errors.Is(err, dispatch.ErrQuotaExceeded):
		writeError(w, http.StatusConflict, "%s", h.Dispatch.Status().Error)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "start failed: %v", err)
	default:
		rec := h.Dispatch.Status()
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"run_id":  rec.ID,
			"total":   rec.Total,
			"dry_run": rec.DryRun,
		})
	}
}

func (h *Handlers) stopSend(w http.ResponseWriter, r *http.Request) {
	stopped := h.Dispatch.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stopped": stopped})
}

func (h *Handlers) sendStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Dispatch.Status())
}

const heartbeatEvery = time.Second

// streamResults serves the live result feed as server-sent events. Each
// per-contact result arrives as one data frame; when nothing happens for a
// second the client gets {"ping": true} so it can tell idle from dead.
func (h *Handlers) streamResults(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub, unsub := h.Stream.Subscribe(32)
	defer unsub()

	for {
		ev, ok := sub.Next(heartbeatEvery, r.Context().Done())
		if !ok {
			return
		}

		var payload []byte
		if ev.Heartbeat {
			payload = []byte(`{"ping": true}`)
		} else {
			b, err := json.Marshal(ev.Entry)
			if err != nil {
				h.Log.Warn("stream entry not serializable", logx.Err(err))
				continue
			}
			payload = b
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return
		}
		flusher.Flush()
	}
}
