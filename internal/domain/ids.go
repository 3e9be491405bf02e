package domain

import "github.com/google/uuid"

// NewID returns a fresh random identifier. Webs, agents, signals, and
// validation records all use this to construct their id fields.
func NewID() string {
	return uuid.NewString()
}
