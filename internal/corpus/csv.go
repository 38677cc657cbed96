package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
)

// LoadCSVFile reads notes from a CSV file on disk.
func LoadCSVFile(path string) ([]Note, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus file: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// LoadCSV reads notes from CSV data. The header must contain a "text"
// column; "created_at" and "modified_at" columns (microsecond epoch
// timestamps) are optional. Rows that fail to parse are skipped with a
// warning, never fatal. Empty or whitespace-only notes are dropped.
func LoadCSV(r io.Reader) ([]Note, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	textCol, ok := cols["text"]
	if !ok {
		return nil, errors.New("corpus CSV must contain a \"text\" column")
	}
	createdCol, hasCreated := cols["created_at"]
	modifiedCol, hasModified := cols["modified_at"]

	var notes []Note
	for row := 0; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Warn("skipping malformed corpus row", "row", row, "error", err)
			continue
		}
		if textCol >= len(record) {
			slog.Warn("skipping corpus row with missing text column", "row", row)
			continue
		}

		text := NormalizeText(record[textCol])
		if text == "" {
			continue
		}

		n := Note{ID: noteID(row), Text: text}
		if hasCreated {
			n.CreatedAt = parseTimestamp(record, createdCol, row, "created_at")
		}
		if hasModified {
			n.ModifiedAt = parseTimestamp(record, modifiedCol, row, "modified_at")
		}
		notes = append(notes, n)
	}

	return notes, nil
}

// parseTimestamp reads an optional integer timestamp column. A value that
// fails to parse degrades to zero with a warning rather than dropping the row.
func parseTimestamp(record []string, col, row int, name string) int64 {
	if col >= len(record) || record[col] == "" {
		return 0
	}
	ts, err := strconv.ParseInt(record[col], 10, 64)
	if err != nil {
		slog.Warn("ignoring unparsable timestamp", "row", row, "column", name, "value", record[col])
		return 0
	}
	return ts
}
