package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "sessions")
	m, err := Open(root)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if m.Root() != root {
		t.Fatalf("Root() = %q, want %q", m.Root(), root)
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("workspace root not created: %v", err)
	}
}

func TestSessionDirLayout(t *testing.T) {
	m, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	dir, err := m.SessionDir("ses_abc123")
	if err != nil {
		t.Fatalf("SessionDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "screens")); err != nil {
		t.Fatalf("screens dir not created: %v", err)
	}
}

func TestUpsertAndGet(t *testing.T) {
	m, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := m.Upsert(SessionRecord{ID: "ses_1", Title: "first"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	rec, ok := m.Get("ses_1")
	if !ok {
		t.Fatal("Get() after Upsert returned false")
	}
	if rec.Title != "first" {
		t.Fatalf("Title = %q, want %q", rec.Title, "first")
	}
	if rec.CreatedAt.IsZero() || rec.UpdatedAt.IsZero() {
		t.Fatal("timestamps not initialized")
	}

	// Re-upsert keeps CreatedAt and Favorite, refreshes Title.
	created := rec.CreatedAt
	if _, err := m.ToggleFavorite("ses_1"); err != nil {
		t.Fatalf("ToggleFavorite() error = %v", err)
	}
	if err := m.Upsert(SessionRecord{ID: "ses_1", Title: "renamed"}); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	rec, _ = m.Get("ses_1")
	if rec.Title != "renamed" {
		t.Fatalf("Title after update = %q, want %q", rec.Title, "renamed")
	}
	if !rec.CreatedAt.Equal(created) {
		t.Fatal("Upsert changed CreatedAt")
	}
	if !rec.Favorite {
		t.Fatal("Upsert cleared Favorite flag")
	}
}

func TestCatalogSurvivesReopen(t *testing.T) {
	root := t.TempDir()
	m, err := Open(root)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := m.Upsert(SessionRecord{ID: "ses_b", Title: "bravo"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := m.Upsert(SessionRecord{ID: "ses_a", Title: "alpha"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	again, err := Open(root)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	if got := len(again.List()); got != 2 {
		t.Fatalf("List() after reopen = %d records, want 2", got)
	}
	if _, ok := again.Get("ses_a"); !ok {
		t.Fatal("ses_a missing after reopen")
	}
}

func TestListOrdersFavoritesFirst(t *testing.T) {
	m, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	old := time.Now().Add(-time.Hour)
	if err := m.Upsert(SessionRecord{ID: "ses_old", CreatedAt: old}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := m.Upsert(SessionRecord{ID: "ses_new"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := m.ToggleFavorite("ses_old"); err != nil {
		t.Fatalf("ToggleFavorite() error = %v", err)
	}

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("List() = %d records, want 2", len(list))
	}
	if list[0].ID != "ses_old" {
		t.Fatalf("List()[0].ID = %q, want favorite first", list[0].ID)
	}
}

func TestDeleteRemovesDirAndRecord(t *testing.T) {
	m, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	dir, err := m.SessionDir("ses_gone")
	if err != nil {
		t.Fatalf("SessionDir() error = %v", err)
	}
	if err := m.Upsert(SessionRecord{ID: "ses_gone"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	if err := m.Delete("ses_gone"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := m.Get("ses_gone"); ok {
		t.Fatal("record still in catalog after Delete")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("session dir still exists after Delete: err = %v", err)
	}
}

func TestScreensListing(t *testing.T) {
	m, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	screens, err := m.ScreensDir("ses_scr")
	if err != nil {
		t.Fatalf("ScreensDir() error = %v", err)
	}
	for _, name := range []string{"b.html", "a.html", ".hidden"} {
		if err := os.WriteFile(filepath.Join(screens, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write screen: %v", err)
		}
	}

	names, err := m.Screens("ses_scr")
	if err != nil {
		t.Fatalf("Screens() error = %v", err)
	}
	if len(names) != 2 || names[0] != "a.html" || names[1] != "b.html" {
		t.Fatalf("Screens() = %v, want [a.html b.html]", names)
	}

	// Unknown session lists empty, not error.
	none, err := m.Screens("ses_never")
	if err != nil {
		t.Fatalf("Screens() unknown session error = %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("Screens() unknown session = %v, want empty", none)
	}
}

func TestSanitize(t *testing.T) {
	if got := sanitize("ses/../../etc"); got != "ses_.._.._etc" {
		t.Fatalf("sanitize() = %q", got)
	}
	if got := sanitize("ses_OK-1.2"); got != "ses_OK-1.2" {
		t.Fatalf("sanitize() mangled safe id: %q", got)
	}
}
