package corpus

import (
	"os"
	"path/filepath"
	"testing"
)

func writeKeepNote(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestLoadKeepDir(t *testing.T) {
	dir := t.TempDir()
	writeKeepNote(t, dir, "older.json",
		`{"textContent":"older note","createdTimestampUsec":1600000000000000,"userEditedTimestampUsec":1600000000000001}`)
	writeKeepNote(t, dir, "newer.json",
		`{"textContent":"newer  note","createdTimestampUsec":1700000000000000}`)
	writeKeepNote(t, dir, "trashed.json",
		`{"textContent":"gone","createdTimestampUsec":1,"isTrashed":true}`)
	writeKeepNote(t, dir, "empty.json", `{"textContent":"  ","createdTimestampUsec":2}`)
	writeKeepNote(t, dir, "broken.json", `{not json`)
	writeKeepNote(t, dir, "ignored.txt", `not a note`)

	notes, err := LoadKeepDir(dir)
	if err != nil {
		t.Fatalf("LoadKeepDir: %v", err)
	}

	if len(notes) != 2 {
		t.Fatalf("got %d notes, want 2", len(notes))
	}
	// Newest first.
	if notes[0].Text != "newer note" {
		t.Errorf("notes[0].Text = %q, want %q", notes[0].Text, "newer note")
	}
	if notes[1].Text != "older note" {
		t.Errorf("notes[1].Text = %q, want %q", notes[1].Text, "older note")
	}
	if notes[0].ID != "note-0000" || notes[1].ID != "note-0001" {
		t.Errorf("ids = %q, %q; want note-0000, note-0001", notes[0].ID, notes[1].ID)
	}
	if notes[1].ModifiedAt != 1600000000000001 {
		t.Errorf("ModifiedAt = %d, want 1600000000000001", notes[1].ModifiedAt)
	}
}

func TestLoadKeepDir_MissingDir(t *testing.T) {
	if _, err := LoadKeepDir(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
