package server

import (
	"net/http"
	"time"
)

// getQuota reports today's quota usage. The projection rolls the date over in
// memory, so a stale counter from yesterday reads as zero.
func (h *Handlers) getQuota(w http.ResponseWriter, r *http.Request) {
	cfg := h.Manager.Get()
	if cfg == nil {
		writeError(w, http.StatusServiceUnavailable, "config not loaded")
		return
	}

	st, err := h.Ledger.Projection(r.Context(), time.Now())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "quota state: %v", err)
		return
	}

	limit := cfg.Policy.DailyQuota
	out := map[string]any{
		"date":      st.Date,
		"sent":      st.Sent,
		"limit":     limit,
		"unlimited": limit <= 0,
	}
	if limit > 0 {
		remaining := limit - st.Sent
		if remaining < 0 {
			remaining = 0
		}
		out["remaining"] = remaining
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) resetQuota(w http.ResponseWriter, r *http.Request) {
	if err := h.Ledger.Reset(r.Context(), time.Now()); err != nil {
		writeError(w, http.StatusInternalServerError, "quota reset: %v", err)
		return
	}
	h.Log.Info("daily quota reset by operator")
	writeOK(w)
}
