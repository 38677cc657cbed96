package corpus

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Note is the source-of-truth unit of the corpus. Text is stored
// whitespace-normalized; notes are immutable once loaded.
type Note struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	CreatedAt  int64  `json:"created_at,omitempty"`  // microseconds since epoch
	ModifiedAt int64  `json:"modified_at,omitempty"` // microseconds since epoch
}

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeText collapses all whitespace runs to single spaces and trims
// leading/trailing whitespace.
func NormalizeText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// TimeFromUsec converts a microsecond epoch timestamp to time.Time.
// Values that already look like seconds (pre-1973 in microseconds) are
// treated as seconds. Returns the zero time for ts <= 0.
func TimeFromUsec(ts int64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	if ts > 1e12 {
		return time.UnixMicro(ts)
	}
	return time.Unix(ts, 0)
}

func noteID(ordinal int) string {
	return fmt.Sprintf("note-%04d", ordinal)
}
