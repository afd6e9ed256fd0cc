package contacts

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"smsblast/pkg/logx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "contacts.csv"), logx.Nop())
}

func TestMissingFileIsEmptyList(t *testing.T) {
	s := newTestStore(t)
	all, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("contacts = %d, want 0", len(all))
	}
}

func TestAddAssignsSequentialIDs(t *testing.T) {
	s := newTestStore(t)
	for i, phone := range []string{"+111", "+222", "+333"} {
		c, err := s.Add(Contact{Phone: phone, Enabled: true})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if c.ID != i {
			t.Fatalf("id = %d, want %d", c.ID, i)
		}
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s := newTestStore(t)
	for _, phone := range []string{"+111", "+222", "+333"} {
		if _, err := s.Add(Contact{Phone: phone, Enabled: true}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	if err := s.Update(1, Contact{Phone: "+999", Name: "renamed", Enabled: false}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	all, _ := s.List()
	if all[1].Phone != "+999" || all[1].Enabled {
		t.Fatalf("updated contact = %+v", all[1])
	}

	if err := s.Update(7, Contact{Phone: "+000"}); err != ErrNotFound {
		t.Fatalf("Update out of range = %v, want ErrNotFound", err)
	}

	// Deleting the middle contact reindexes the tail.
	if err := s.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	all, _ = s.List()
	if len(all) != 2 {
		t.Fatalf("contacts = %d, want 2", len(all))
	}
	if all[1].Phone != "+333" || all[1].ID != 1 {
		t.Fatalf("tail not reindexed: %+v", all[1])
	}

	if err := s.Delete(5); err != ErrNotFound {
		t.Fatalf("Delete out of range = %v, want ErrNotFound", err)
	}
}

func TestBulkActions(t *testing.T) {
	s := newTestStore(t)
	for _, phone := range []string{"+111", "+222", "+333", "+444"} {
		if _, err := s.Add(Contact{Phone: phone, Enabled: true}); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	if err := s.Bulk(BulkDisable, []int{0, 2}); err != nil {
		t.Fatalf("Bulk disable: %v", err)
	}
	enabled, _ := s.Enabled()
	if len(enabled) != 2 {
		t.Fatalf("enabled = %d, want 2", len(enabled))
	}

	if err := s.Bulk(BulkDelete, []int{1, 3, 99}); err != nil {
		t.Fatalf("Bulk delete: %v", err)
	}
	all, _ := s.List()
	if len(all) != 2 {
		t.Fatalf("contacts = %d, want 2", len(all))
	}
	for i, c := range all {
		if c.ID != i {
			t.Fatalf("ids not reindexed: %+v", all)
		}
	}

	if err := s.Bulk("explode", []int{0}); err == nil {
		t.Fatal("unknown bulk action accepted")
	}
}

func TestParseSkipsCommentsAndBlankPhones(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "contacts.csv")
	raw := strings.Join([]string{
		"# exported 2024-03-10",
		"phone,name,message,enabled",
		"+111,Ana,,1",
		"+222,Ben,custom hello,0",
		"+333,Cal,,",
	}, "\n")
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := NewStore(path, logx.Nop())
	all, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("contacts = %d, want 3", len(all))
	}
	if !all[0].Enabled || all[1].Enabled || !all[2].Enabled {
		t.Fatalf("enabled flags = %v %v %v", all[0].Enabled, all[1].Enabled, all[2].Enabled)
	}
	if all[1].Message != "custom hello" {
		t.Fatalf("message = %q", all[1].Message)
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Add(Contact{Phone: "+111", Name: "Ana", Enabled: true}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	in := "phone,name,message,enabled\n+222,Ben,,1\n,NoPhone,,1\n+333,Cal,hi,0\n"
	n, err := s.Import(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 2 {
		t.Fatalf("imported = %d, want 2 (blank phone skipped)", n)
	}

	var buf bytes.Buffer
	if err := s.Export(&buf); err != nil {
		t.Fatalf("Export: %v", err)
	}

	other := newTestStore(t)
	if _, err := other.Import(&buf); err != nil {
		t.Fatalf("re-import: %v", err)
	}
	all, _ := other.List()
	if len(all) != 3 {
		t.Fatalf("round trip = %d contacts, want 3", len(all))
	}
	if all[2].Phone != "+333" || all[2].Enabled || all[2].Message != "hi" {
		t.Fatalf("round trip lost fields: %+v", all[2])
	}
}
