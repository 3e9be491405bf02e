// Package ports declares the collaborator contracts the coordination core
// depends on but never implements itself: capabilities, the
// embedding/LLM providers, the store, and the event sink. Concrete adapters
// live outside the core (internal/capability, internal/embedding,
// internal/store, internal/httpapi).
package ports

import (
	"context"

	"github.com/Pharbi/arachnid/internal/domain"
	"github.com/Pharbi/arachnid/internal/vector"
)

// ExecutionStatus is a capability's outcome tag. There are no
// sentinel exceptions in the core: every fallible operation returns one of
// these.
type ExecutionStatus int

const (
	StatusComplete ExecutionStatus = iota
	StatusNeedsMore
	StatusFailed
)

// Need describes a capability's request to spawn or route work to a new or
// existing lineage member.
type Need struct {
	Description         string
	SuggestedCapability string
}

// ExecutionResult is what a Capability call returns.
type ExecutionResult struct {
	Status              ExecutionStatus
	Reason              string // populated for NeedsMore/Failed
	Output              string
	Artifacts           map[string]string
	Signals             []*domain.Signal
	Needs               []Need
	DeclaredImpact      float64 // in [0,1], used by the validation scheduler
	DeclaredUncertainty float64 // in [0,1], defaults to 0.5 if unset
}

// Trigger is the signal that caused an agent's activation, passed to its
// capability along with the accumulated context.
type Trigger struct {
	Signal *domain.Signal
	// MaxPromptTokens bounds the prompt a capability builds from agentCtx and
	// Signal, sourced from the web's RuntimeConfig. Zero means the capability
	// should fall back to its own default budget.
	MaxPromptTokens int
}

// Providers bundles the process-wide collaborators a capability may call
// into: LLM, embedding, and (optionally) search. Injected explicitly per
// (avoid implicit globals).
type Providers struct {
	LLM       LLMProvider
	Embedding EmbeddingProvider
	Search    SearchProvider
}

// Capability is a pure dispatch-table entry: (context, trigger, providers) ->
// ExecutionResult. Implementations must honor ctx
// cancellation at their own suspension points.
type Capability func(ctx context.Context, agentCtx domain.Context, trigger Trigger, providers Providers) (ExecutionResult, error)

// EmbeddingProvider turns text into a fixed-dimension vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) (vector.Vector, error)
}

// LLMProvider is used by capabilities and by the validation scheduler
//.
type LLMProvider interface {
	Complete(ctx context.Context, prompt, systemPrompt string, temperature float64) (string, error)
	Validate(ctx context.Context, output string, agentCtx domain.Context) (domain.Judgment, float64, string, error)
}

// SearchProvider is an optional collaborator some capabilities call into; the
// core never depends on it directly.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]string, error)
}
