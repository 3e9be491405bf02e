package domain

import (
	"time"

	"github.com/Pharbi/arachnid/internal/vector"
)

// PatternType classifies a web memory entry. Only Failure is
// produced by the core today; the type stays open per the glossary.
type PatternType string

const (
	PatternFailure PatternType = "failure"
)

// WebMemoryEntry records a failure pattern used to warn newly spawned agents
// with resembling tuning.
type WebMemoryEntry struct {
	WebID     string        `yaml:"web_id"`
	Type      PatternType   `yaml:"type"`
	Purpose   string        `yaml:"purpose"`
	Tuning    vector.Vector `yaml:"tuning"`
	Summary   string        `yaml:"summary"`
	CreatedAt time.Time     `yaml:"created_at"`
}

// NewFailureEntry constructs a Failure-pattern web memory entry.
func NewFailureEntry(webID, purpose string, tuning vector.Vector, summary string) WebMemoryEntry {
	return WebMemoryEntry{
		WebID:     webID,
		Type:      PatternFailure,
		Purpose:   purpose,
		Tuning:    tuning,
		Summary:   summary,
		CreatedAt: time.Now(),
	}
}
