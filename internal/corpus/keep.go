package corpus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// keepNote mirrors the fields of a Google Keep Takeout JSON export.
type keepNote struct {
	TextContent             string `json:"textContent"`
	CreatedTimestampUsec    int64  `json:"createdTimestampUsec"`
	UserEditedTimestampUsec int64  `json:"userEditedTimestampUsec"`
	IsTrashed               bool   `json:"isTrashed"`
}

// LoadKeepDir converts a directory of Google Keep Takeout JSON files into
// notes, newest first. Files that fail to parse or hold no text are skipped
// with a warning. Trashed notes are dropped.
func LoadKeepDir(dir string) ([]Note, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading Keep export directory: %w", err)
	}

	var notes []Note
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping unreadable Keep note", "file", entry.Name(), "error", err)
			continue
		}

		var kn keepNote
		if err := json.Unmarshal(data, &kn); err != nil {
			slog.Warn("skipping malformed Keep note", "file", entry.Name(), "error", err)
			continue
		}
		if kn.IsTrashed {
			continue
		}

		text := NormalizeText(kn.TextContent)
		if text == "" {
			slog.Warn("skipping empty Keep note", "file", entry.Name())
			continue
		}

		notes = append(notes, Note{
			Text:       text,
			CreatedAt:  kn.CreatedTimestampUsec,
			ModifiedAt: kn.UserEditedTimestampUsec,
		})
	}

	// Newest first, then assign stable ids by final order.
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].CreatedAt > notes[j].CreatedAt
	})
	for i := range notes {
		notes[i].ID = noteID(i)
	}

	return notes, nil
}
