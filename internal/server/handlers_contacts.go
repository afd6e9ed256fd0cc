package server

import (
	"errors"
	"net/http"
	"strconv"

	"smsblast/internal/contacts"
	"smsblast/pkg/logx"
)

func (h *Handlers) listContacts(w http.ResponseWriter, r *http.Request) {
	all, err := h.Contacts.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load contacts: %v", err)
		return
	}
	if all == nil {
		all = []contacts.Contact{}
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *Handlers) addContact(w http.ResponseWriter, r *http.Request) {
	var c contacts.Contact
	if err := readJSON(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid contact: %v", err)
		return
	}
	if c.Phone == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}
	added, err := h.Contacts.Add(c)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "save contacts: %v", err)
		return
	}
	writeJSON(w, http.StatusCreated, added)
}

func (h *Handlers) updateContact(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contact id")
		return
	}
	var c contacts.Contact
	if err := readJSON(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid contact: %v", err)
		return
	}
	if c.Phone == "" {
		writeError(w, http.StatusBadRequest, "phone is required")
		return
	}
	switch err := h.Contacts.Update(id, c); {
	case errors.Is(err, contacts.ErrNotFound):
		writeError(w, http.StatusNotFound, "contact %d not found", id)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "save contacts: %v", err)
	default:
		writeOK(w)
	}
}

func (h *Handlers) deleteContact(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid contact id")
		return
	}
	switch err := h.Contacts.Delete(id); {
	case errors.Is(err, contacts.ErrNotFound):
		writeError(w, http.StatusNotFound, "contact %d not found", id)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "save contacts: %v", err)
	default:
		writeOK(w)
	}
}

func (h *Handlers) bulkContacts(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
		IDs    []int  `json:"ids"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: %v", err)
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "no ids given")
		return
	}
	if err := h.Contacts.Bulk(req.Action, req.IDs); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	writeOK(w)
}

// importContacts accepts a multipart upload under the "file" field and
// appends its rows to the contact list.
func (h *Handlers) importContacts(w http.ResponseWriter, r *http.Request) {
	f, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file upload: %v", err)
		return
	}
	defer f.Close()

	n, err := h.Contacts.Import(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "import failed: %v", err)
		return
	}
	h.Log.Info("contacts imported", logx.Int("count", n))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "imported": n})
}

func (h *Handlers) exportContacts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="contacts.csv"`)
	if err := h.Contacts.Export(w); err != nil {
		h.Log.Error("contacts export failed", logx.Err(err))
	}
}
