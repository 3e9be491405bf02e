// Package memory implements the per-web failure-pattern store: an append-only log of Failure entries a
// web accumulates so newly spawned agents with resembling tuning inherit a
// warning instead of repeating the same mistake.
package memory

import (
	"context"

	"gopkg.in/yaml.v3"

	"github.com/Pharbi/arachnid/internal/domain"
	"github.com/Pharbi/arachnid/internal/ports"
	"github.com/Pharbi/arachnid/internal/vector"
)

// Store fronts a ports.Store's memory-entry CRUD with the cosine-filtered
// lookup the spawn protocol and lifecycle manager need.
type Store struct {
	backend ports.Store
}

// New constructs a memory.Store over backend.
func New(backend ports.Store) *Store {
	return &Store{backend: backend}
}

// Record appends a pattern to webID's memory.
func (s *Store) Record(ctx context.Context, entry domain.WebMemoryEntry) error {
	return s.backend.SaveMemoryEntry(ctx, entry)
}

// SimilarFailures returns webID's Failure entries whose tuning cosine
// similarity to v is at least threshold, most similar first.
func (s *Store) SimilarFailures(ctx context.Context, webID string, v vector.Vector, threshold float64) ([]domain.WebMemoryEntry, error) {
	all, err := s.backend.ListMemoryEntries(ctx, webID)
	if err != nil {
		return nil, err
	}
	type scored struct {
		entry domain.WebMemoryEntry
		sim   float64
	}
	var matches []scored
	for _, e := range all {
		if e.Type != domain.PatternFailure {
			continue
		}
		if sim := vector.Cosine(e.Tuning, v); sim >= threshold {
			matches = append(matches, scored{e, sim})
		}
	}
	for i := 1; i < len(matches); i++ {
		for j := i; j > 0 && matches[j].sim > matches[j-1].sim; j-- {
			matches[j], matches[j-1] = matches[j-1], matches[j]
		}
	}
	out := make([]domain.WebMemoryEntry, len(matches))
	for i, m := range matches {
		out[i] = m.entry
	}
	return out, nil
}

// snapshot is the YAML-serializable shape of Export/Import.
type snapshot struct {
	WebID   string                  `yaml:"web_id"`
	Entries []domain.WebMemoryEntry `yaml:"entries"`
}

// Export marshals webID's full memory to YAML, so it can be persisted
// alongside a backend that does not itself durably store memory entries.
func (s *Store) Export(ctx context.Context, webID string) ([]byte, error) {
	entries, err := s.backend.ListMemoryEntries(ctx, webID)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(snapshot{WebID: webID, Entries: entries})
}

// Import restores memory entries from a document produced by Export,
// re-recording each one through the backend.
func (s *Store) Import(ctx context.Context, data []byte) error {
	var snap snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return err
	}
	for _, e := range snap.Entries {
		if err := s.backend.SaveMemoryEntry(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
