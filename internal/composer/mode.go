package composer

import "fmt"

// Mode selects the instructional template applied to retrieved context.
// Retrieval behavior is identical across modes; only the prompt wording
// changes.
type Mode string

const (
	ModeAnalysis Mode = "analysis"
	ModeSummary  Mode = "summary"
	ModePatterns Mode = "patterns"
)

// Modes lists every recognized mode.
func Modes() []Mode {
	return []Mode{ModeAnalysis, ModeSummary, ModePatterns}
}

// ParseMode validates a mode name. Unrecognized names are an error so callers
// can warn and keep their current mode.
func ParseMode(name string) (Mode, error) {
	switch Mode(name) {
	case ModeAnalysis, ModeSummary, ModePatterns:
		return Mode(name), nil
	}
	return "", fmt.Errorf("unknown mode %q (valid: analysis, summary, patterns)", name)
}
