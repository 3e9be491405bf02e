package ports

import (
	"context"

	"github.com/Pharbi/arachnid/internal/domain"
	"github.com/Pharbi/arachnid/internal/vector"
)

// Store is the abstract CRUD + lineage query contract. The core
// does not assume durability; a durable implementation must satisfy the
// recovery contract: on restart, resume any web in Running from its stored
// signals/agents.
type Store interface {
	SaveWeb(ctx context.Context, w *domain.Web) error
	GetWeb(ctx context.Context, id string) (*domain.Web, error)
	ListRunningWebs(ctx context.Context) ([]*domain.Web, error)

	SaveAgent(ctx context.Context, a *domain.Agent) error
	GetAgent(ctx context.Context, id string) (*domain.Agent, error)
	ListAgents(ctx context.Context, webID string) ([]*domain.Agent, error)
	// Reparent moves agentID's child edge from its current parent to
	// newParentID, preserving the DAG's children index.
	Reparent(ctx context.Context, agentID, newParentID string) error

	SaveSignal(ctx context.Context, s *domain.Signal) error
	PendingSignals(ctx context.Context, webID string) ([]*domain.Signal, error)

	SaveValidation(ctx context.Context, v domain.ValidationRecord) error
	ListValidations(ctx context.Context, agentID string) ([]domain.ValidationRecord, error)

	SaveMemoryEntry(ctx context.Context, e domain.WebMemoryEntry) error
	ListMemoryEntries(ctx context.Context, webID string) ([]domain.WebMemoryEntry, error)

	// Lineage queries, structural traversals over the agent arena.
	Ancestors(ctx context.Context, agentID string) ([]*domain.Agent, error)
	Descendants(ctx context.Context, agentID string) ([]*domain.Agent, error)
	Children(ctx context.Context, agentID string) ([]*domain.Agent, error)
	NearestByTuning(ctx context.Context, webID string, v vector.Vector, topK int) ([]*domain.Agent, error)
}
