package domain

import "time"

// Judgment is the outcome of a validation call.
type Judgment int

const (
	Confirm Judgment = iota
	Challenge
	Uncertain
)

func (j Judgment) String() string {
	switch j {
	case Confirm:
		return "confirm"
	case Challenge:
		return "challenge"
	default:
		return "uncertain"
	}
}

// ValidationRecord is immutable once written.
type ValidationRecord struct {
	ID          string
	TargetAgentID string
	WebID       string
	ContentHash string
	Judgment    Judgment
	Confidence  float64
	Reason      string
	CreatedAt   time.Time
}

// NewValidationRecord constructs an immutable validation record.
func NewValidationRecord(targetAgentID, webID, contentHash string, judgment Judgment, confidence float64, reason string) ValidationRecord {
	return ValidationRecord{
		ID:            NewID(),
		TargetAgentID: targetAgentID,
		WebID:         webID,
		ContentHash:   contentHash,
		Judgment:      judgment,
		Confidence:    confidence,
		Reason:        reason,
		CreatedAt:     time.Now(),
	}
}
