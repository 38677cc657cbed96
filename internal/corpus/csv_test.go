package corpus

import (
	"strings"
	"testing"
)

func TestLoadCSV_NormalizesAndDropsEmpty(t *testing.T) {
	in := strings.NewReader("text,created_at\n" +
		"\"  hello\n\tworld  \",1650000000000000\n" +
		"\"   \",1650000000000001\n" +
		"plain note,\n")

	notes, err := LoadCSV(in)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}

	if len(notes) != 2 {
		t.Fatalf("got %d notes, want 2", len(notes))
	}
	if notes[0].Text != "hello world" {
		t.Errorf("Text = %q, want %q", notes[0].Text, "hello world")
	}
	if notes[0].CreatedAt != 1650000000000000 {
		t.Errorf("CreatedAt = %d, want 1650000000000000", notes[0].CreatedAt)
	}
	if notes[1].CreatedAt != 0 {
		t.Errorf("CreatedAt = %d, want 0 for empty column", notes[1].CreatedAt)
	}
}

func TestLoadCSV_SkipsMalformedRows(t *testing.T) {
	// Second row has an unterminated quote; it must be skipped, not fatal.
	in := strings.NewReader("text\nfine note\n\"broken\nanother fine note\n")

	notes, err := LoadCSV(in)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(notes) == 0 {
		t.Fatal("expected at least the first valid note")
	}
	if notes[0].Text != "fine note" {
		t.Errorf("Text = %q, want %q", notes[0].Text, "fine note")
	}
}

func TestLoadCSV_StableIDsByRowPosition(t *testing.T) {
	in := strings.NewReader("text\nfirst\n\nsecond\n")

	notes, err := LoadCSV(in)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("got %d notes, want 2", len(notes))
	}
	// Row 1 is empty and dropped, so ids reflect file position, not slice position.
	if notes[0].ID != "note-0000" || notes[1].ID != "note-0002" {
		t.Errorf("ids = %q, %q; want note-0000, note-0002", notes[0].ID, notes[1].ID)
	}
}

func TestLoadCSV_MissingTextColumn(t *testing.T) {
	if _, err := LoadCSV(strings.NewReader("title,body\na,b\n")); err == nil {
		t.Fatal("expected error for missing text column")
	}
}

func TestLoadCSV_UnparsableTimestampDegrades(t *testing.T) {
	in := strings.NewReader("text,created_at\nsome note,not-a-number\n")

	notes, err := LoadCSV(in)
	if err != nil {
		t.Fatalf("LoadCSV: %v", err)
	}
	if len(notes) != 1 {
		t.Fatalf("got %d notes, want 1 (bad timestamp must not drop the row)", len(notes))
	}
	if notes[0].CreatedAt != 0 {
		t.Errorf("CreatedAt = %d, want 0", notes[0].CreatedAt)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  a  b  ", "a b"},
		{"line\nbreaks\tand\ttabs", "line breaks and tabs"},
		{"\n\t ", ""},
		{"already clean", "already clean"},
	}
	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTimeFromUsec(t *testing.T) {
	got := TimeFromUsec(1650000000000000)
	if got.Year() != 2022 {
		t.Errorf("year = %d, want 2022", got.Year())
	}
	if !TimeFromUsec(0).IsZero() {
		t.Error("zero timestamp should yield zero time")
	}
	// Plain seconds are accepted too.
	if TimeFromUsec(1650000000).Year() != 2022 {
		t.Error("seconds-resolution timestamp should be handled")
	}
}
