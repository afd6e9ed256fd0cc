package server

import (
	"net/http"

	"smsblast/internal/config"
)

const tokenMask = "********"

// getConfig returns the live configuration. The notifier token is masked; the
// dashboard never needs to read it back.
func (h *Handlers) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.Manager.Get()
	if cfg == nil {
		writeError(w, http.StatusServiceUnavailable, "config not loaded")
		return
	}
	out := *cfg
	if out.Notifier != nil && out.Notifier.Token != "" {
		n := *out.Notifier
		n.Token = tokenMask
		out.Notifier = &n
	}
	writeJSON(w, http.StatusOK, &out)
}

// putConfig replaces the configuration. The new document is validated and
// written to disk before it takes effect; a masked token means "keep the
// current one".
func (h *Handlers) putConfig(w http.ResponseWriter, r *http.Request) {
	var cfg config.Config
	if err := readJSON(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid config: %v", err)
		return
	}

	if cfg.Notifier != nil && cfg.Notifier.Token == tokenMask {
		if cur := h.Manager.Get(); cur != nil && cur.Notifier != nil {
			cfg.Notifier.Token = cur.Notifier.Token
		}
	}

	if err := h.Manager.Save(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "config rejected: %v", err)
		return
	}
	writeOK(w)
}
