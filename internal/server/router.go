package server

import "net/http"

func (h *Handlers) mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Configuration
	mux.HandleFunc("GET /api/config", h.getConfig)
	mux.HandleFunc("PUT /api/config", h.putConfig)

	// Contacts
	mux.HandleFunc("GET /api/contacts", h.listContacts)
	mux.HandleFunc("POST /api/contacts", h.addContact)
	mux.HandleFunc("PUT /api/contacts/{id}", h.updateContact)
	mux.HandleFunc("DELETE /api/contacts/{id}", h.deleteContact)
	mux.HandleFunc("POST /api/contacts/bulk", h.bulkContacts)
	mux.HandleFunc("POST /api/contacts/import", h.importContacts)
	mux.HandleFunc("GET /api/contacts/export", h.exportContacts)

	// Campaign control
	mux.HandleFunc("POST /api/send/start", h.startSend)
	mux.HandleFunc("POST /api/send/stop", h.stopSend)
	mux.HandleFunc("GET /api/send/status", h.sendStatus)
	mux.HandleFunc("GET /api/send/stream", h.streamResults)

	// Quota
	mux.HandleFunc("GET /api/quota", h.getQuota)
	mux.HandleFunc("POST /api/quota/reset", h.resetQuota)

	// Run archive
	mux.HandleFunc("GET /api/runs", h.listRuns)
	mux.HandleFunc("GET /api/runs/{id}", h.getRun)
	mux.HandleFunc("DELETE /api/runs/{id}", h.deleteRun)
	mux.HandleFunc("POST /api/runs/clear", h.clearRuns)

	// Device utilities
	mux.HandleFunc("GET /api/device/check", h.checkDevice)
	mux.HandleFunc("POST /api/device/tap", h.testTap)
	mux.HandleFunc("GET /api/device/screen/size", h.screenSize)
	mux.HandleFunc("GET /api/device/screenshot", h.screenshot)

	return mux
}
