package server

import (
	"errors"
	"net/http"
	"strconv"

	"smsblast/internal/storage"
	"smsblast/pkg/logx"
)

func (h *Handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit %q", q)
			return
		}
		limit = n
	}

	runs, err := h.Archive.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list runs: %v", err)
		return
	}
	if runs == nil {
		runs = []storage.RunSummary{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// getRun returns the archived record exactly as it was persisted, full
// per-contact results included.
func (h *Handlers) getRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	run, err := h.Archive.GetRun(r.Context(), id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "run %s not found", id)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "load run: %v", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(run.Record)
}

func (h *Handlers) deleteRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	switch err := h.Archive.DeleteRun(r.Context(), id); {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "run %s not found", id)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "delete run: %v", err)
	default:
		writeOK(w)
	}
}

func (h *Handlers) clearRuns(w http.ResponseWriter, r *http.Request) {
	n, err := h.Archive.PurgeRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "clear runs: %v", err)
		return
	}
	h.Log.Info("run archive cleared", logx.Int("deleted", n))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": n})
}
