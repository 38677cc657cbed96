package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Turn is one completed question/answer exchange: the query as typed, the
// mode it ran under, the fully composed prompt, and the model's answer.
type Turn struct {
	ID        string
	CreatedAt time.Time
	Query     string
	Mode      string
	Prompt    string
	Model     string
	Answer    string
	Status    string // "completed" or "failed"
	ChunkIDs  string // JSON array stored as text
}
