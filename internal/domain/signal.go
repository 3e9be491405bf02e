package domain

import (
	"time"

	"github.com/Pharbi/arachnid/internal/vector"
)

// Direction is the lineage direction a signal propagates along.
type Direction int

const (
	Upward Direction = iota
	Downward
)

func (d Direction) String() string {
	if d == Upward {
		return "upward"
	}
	return "downward"
}

// Signal is a message in flight along strict lineage edges.
type Signal struct {
	ID            string
	WebID         string
	OriginAgentID string
	Frequency     vector.Vector
	Content       string
	Amplitude     float64
	Direction     Direction
	HopCount      int
	Payload       any
	Suspect       bool
	Processed     bool
	CreatedAt     time.Time

	// Delivered tracks which agents have already consumed this signal so a
	// processed signal is never re-delivered to the same recipient.
	Delivered map[string]bool
}

// NewSignal constructs a signal at hop 0 with full amplitude, matching the
// shape emitted by an origin agent or by root-injection of the initial task.
func NewSignal(webID, originAgentID string, frequency vector.Vector, content string, amplitude float64, direction Direction) *Signal {
	return &Signal{
		ID:            NewID(),
		WebID:         webID,
		OriginAgentID: originAgentID,
		Frequency:     frequency,
		Content:       content,
		Amplitude:     amplitude,
		Direction:     direction,
		HopCount:      0,
		CreatedAt:     time.Now(),
		Delivered:     map[string]bool{},
	}
}

// MarkDelivered records recipientID as having consumed this signal.
func (s *Signal) MarkDelivered(recipientID string) {
	if s.Delivered == nil {
		s.Delivered = map[string]bool{}
	}
	s.Delivered[recipientID] = true
}

// AlreadyDelivered reports whether recipientID already consumed this signal.
func (s *Signal) AlreadyDelivered(recipientID string) bool {
	return s.Delivered != nil && s.Delivered[recipientID]
}
