package server

import (
	"encoding/base64"
	"net/http"
)

func (h *Handlers) checkDevice(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Device.Check(r.Context()))
}

// testTap issues a single tap, used to verify the configured send button
// coordinates before a real campaign.
func (h *Handlers) testTap(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: %v", err)
		return
	}
	if ok, errText := h.Device.Tap(r.Context(), req.X, req.Y); !ok {
		writeError(w, http.StatusBadGateway, "tap failed: %s", errText)
		return
	}
	writeOK(w)
}

func (h *Handlers) screenSize(w http.ResponseWriter, r *http.Request) {
	size, err := h.Device.Size(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, size)
}

// screenshot returns the current screen as a data URI, ready for an <img>
// src attribute.
func (h *Handlers) screenshot(w http.ResponseWriter, r *http.Request) {
	png, err := h.Device.Screenshot(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"image": "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}
