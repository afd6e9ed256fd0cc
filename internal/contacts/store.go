package contacts

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"smsblast/pkg/logx"
)

var ErrNotFound = errors.New("contacts: not found")

// Contact is one recipient. Message, when non-empty, overrides the policy's
// default message for this contact.
type Contact struct {
	ID      int    `json:"id"`
	Phone   string `json:"phone"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Enabled bool   `json:"enabled"`
}

// Bulk actions accepted by Store.Bulk.
const (
	BulkEnable  = "enable"
	BulkDisable = "disable"
	BulkDelete  = "delete"
)

var csvHeader = []string{"phone", "name", "message", "enabled"}

type Store struct {
	mu   sync.Mutex
	path string
	log  logx.Logger
}

func NewStore(path string, log logx.Logger) *Store {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Store{path: path, log: log}
}

// SetPath repoints the store at a new file (hot reload).
func (s *Store) SetPath(path string) {
	s.mu.Lock()
	s.path = path
	s.mu.Unlock()
}

// List returns all contacts in file order.
func (s *Store) List() ([]Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Enabled returns an immutable snapshot of the enabled contacts, in order.
// This is the list a campaign run consumes.
func (s *Store) Enabled() ([]Contact, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	out := make([]Contact, 0, len(all))
	for _, c := range all {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) Add(c Contact) (Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return Contact{}, err
	}
	c.ID = len(all)
	all = append(all, c)
	if err := s.save(all); err != nil {
		return Contact{}, err
	}
	return c, nil
}

func (s *Store) Update(id int, upd Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	if id < 0 || id >= len(all) {
		return ErrNotFound
	}
	upd.ID = id
	all[id] = upd
	return s.save(all)
}

func (s *Store) Delete(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}
	if id < 0 || id >= len(all) {
		return ErrNotFound
	}
	all = append(all[:id], all[id+1:]...)
	return s.save(reindex(all))
}

// Bulk applies action to every contact whose id is in ids. Unknown ids are
// ignored, matching the dashboard's select-then-act flow.
func (s *Store) Bulk(action string, ids []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return err
	}

	want := make(map[int]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	switch action {
	case BulkEnable, BulkDisable:
		for i := range all {
			if want[all[i].ID] {
				all[i].Enabled = action == BulkEnable
			}
		}
	case BulkDelete:
		kept := all[:0]
		for _, c := range all {
			if !want[c.ID] {
				kept = append(kept, c)
			}
		}
		all = reindex(kept)
	default:
		return fmt.Errorf("contacts: unknown bulk action %q", action)
	}
	return s.save(all)
}

// Import appends rows from r. Rows without a phone are skipped. Returns the
// number of contacts added.
func (s *Store) Import(r io.Reader) (int, error) {
	imported, err := parseCSV(r)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range imported {
		if c.Phone == "" {
			continue
		}
		c.ID = len(all)
		all = append(all, c)
		n++
	}
	if n > 0 {
		if err := s.save(all); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// Export writes the full contact list as CSV.
func (s *Store) Export(w io.Writer) error {
	all, err := s.List()
	if err != nil {
		return err
	}
	return writeCSV(w, all)
}

// load reads the file; a missing file is an empty list.
// Call with s.mu held.
func (s *Store) load() ([]Contact, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("contacts: open %s: %w", s.path, err)
	}
	defer f.Close()
	return parseCSV(f)
}

// save rewrites the whole file via temp + rename.
// Call with s.mu held.
func (s *Store) save(all []Contact) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".contacts-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if err := writeCSV(tmp, all); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, s.path)
}

func parseCSV(r io.Reader) ([]Contact, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	// Drop comment lines before CSV parsing; the original file format allows
	// # comments above the header.
	var kept []string
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		kept = append(kept, line)
	}

	cr := csv.NewReader(strings.NewReader(strings.Join(kept, "\n")))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("contacts: parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	col := map[string]int{}
	for i, name := range records[0] {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []Contact
	for _, rec := range records[1:] {
		if len(rec) == 0 {
			continue
		}
		enabled := field(rec, "enabled")
		out = append(out, Contact{
			ID:      len(out),
			Phone:   field(rec, "phone"),
			Name:    field(rec, "name"),
			Message: field(rec, "message"),
			Enabled: enabled == "" || enabled == "1",
		})
	}
	return out, nil
}

func writeCSV(w io.Writer, all []Contact) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, c := range all {
		enabled := "0"
		if c.Enabled {
			enabled = "1"
		}
		if err := cw.Write([]string{c.Phone, c.Name, c.Message, enabled}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func reindex(all []Contact) []Contact {
	for i := range all {
		all[i].ID = i
	}
	return all
}
