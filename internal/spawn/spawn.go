// Package spawn implements the protocol invoked when an executing agent
// emits a Need: reuse a resonating lineage member if one exists,
// otherwise create a child, seeded with inherited failure warnings and
// kicked off with an initial signal.
package spawn

import (
	"context"
	"fmt"

	"github.com/Pharbi/arachnid/internal/config"
	"github.com/Pharbi/arachnid/internal/domain"
	coreerrors "github.com/Pharbi/arachnid/internal/errors"
	"github.com/Pharbi/arachnid/internal/memory"
	"github.com/Pharbi/arachnid/internal/ports"
	"github.com/Pharbi/arachnid/internal/resonance"
	"github.com/Pharbi/arachnid/internal/vector"
)

// Outcome reports how a Need was resolved.
type Outcome struct {
	Reused  bool // routed to an existing lineage member instead of spawning
	Routed  *domain.Signal
	Child   *domain.Agent
	Kick    *domain.Signal
	Refused bool // web limits would be exceeded; a Failed need was recorded
}

// Protocol runs the spawn protocol against a store, memory, and embedding
// provider.
type Protocol struct {
	store    ports.Store
	memory   *memory.Store
	embedder ports.EmbeddingProvider
}

// New constructs a Protocol.
func New(store ports.Store, mem *memory.Store, embedder ports.EmbeddingProvider) *Protocol {
	return &Protocol{store: store, memory: mem, embedder: embedder}
}

// Handle resolves need on behalf of requesterID six steps.
func (p *Protocol) Handle(ctx context.Context, requesterID string, need ports.Need, cfg config.RuntimeConfig) (Outcome, error) {
	requester, err := p.store.GetAgent(ctx, requesterID)
	if err != nil {
		return Outcome{}, err
	}

	embedding, err := p.embedder.Embed(ctx, need.Description)
	if err != nil {
		return Outcome{}, coreerrors.NewCapabilityFailure("embedding need description", err)
	}

	if reused, err := p.tryReuse(ctx, requester, need, embedding); err != nil {
		return Outcome{}, err
	} else if reused.Reused {
		return reused, nil
	}

	living, err := p.livingCount(ctx, requester.WebID)
	if err != nil {
		return Outcome{}, err
	}
	depth, err := p.depthOf(ctx, requester.ID)
	if err != nil {
		return Outcome{}, err
	}
	if living+1 > cfg.MaxAgents || depth+1 > cfg.MaxDepth-1 {
		refusal := domain.NewFailureEntry(requester.WebID, need.Description, embedding,
			fmt.Sprintf("spawn refused: web limits exceeded (living=%d max=%d depth=%d max_depth=%d)", living, cfg.MaxAgents, depth, cfg.MaxDepth))
		if err := p.memory.Record(ctx, refusal); err != nil {
			return Outcome{}, err
		}
		return Outcome{Refused: true}, nil
	}

	warnings, err := p.inheritedWarnings(ctx, requester.WebID, embedding, cfg.LineageReuseCosine)
	if err != nil {
		return Outcome{}, err
	}

	child := &domain.Agent{
		ID:                  domain.NewID(),
		WebID:               requester.WebID,
		ParentID:            requester.ID,
		Purpose:             need.Description,
		Tuning:              embedding,
		Capability:          need.SuggestedCapability,
		State:               domain.StateListening,
		Health:              1.0,
		ActivationThreshold: cfg.DefaultThreshold,
		ProbationRemaining:  cfg.ProbationPeriod,
		Context: domain.Context{
			Purpose:  need.Description,
			Warnings: warnings,
		},
		DriftWindow: vector.NewWindow(cfg.TuningDriftWindow),
	}
	child.Context.AppendKnowledge(requester.Purpose)

	if err := p.store.SaveAgent(ctx, child); err != nil {
		return Outcome{}, err
	}

	kick := domain.NewSignal(requester.WebID, requester.ID, embedding, need.Description, 1.0, domain.Downward)

	return Outcome{Child: child, Kick: kick}, nil
}

// tryReuse routes to the highest-eff resonating
// non-Terminated ancestor or descendant instead of spawning.
func (p *Protocol) tryReuse(ctx context.Context, requester *domain.Agent, need ports.Need, embedding vector.Vector) (Outcome, error) {
	ancestors, err := p.store.Ancestors(ctx, requester.ID)
	if err != nil {
		return Outcome{}, err
	}
	descendants, err := p.store.Descendants(ctx, requester.ID)
	if err != nil {
		return Outcome{}, err
	}

	probe := domain.NewSignal(requester.WebID, requester.ID, embedding, need.Description, 1.0, domain.Downward)

	type candidate struct {
		agent     *domain.Agent
		direction domain.Direction
		eff       float64
	}
	var best *candidate
	consider := func(a *domain.Agent, dir domain.Direction) {
		if a.State.Terminal() {
			return
		}
		v := resonance.Evaluate(a, probe)
		if !v.Resonant {
			return
		}
		if best == nil || v.Eff > best.eff {
			best = &candidate{agent: a, direction: dir, eff: v.Eff}
		}
	}
	for _, a := range descendants {
		consider(a, domain.Downward)
	}
	for _, a := range ancestors {
		consider(a, domain.Upward)
	}

	if best == nil {
		return Outcome{}, nil
	}

	routed := domain.NewSignal(requester.WebID, requester.ID, embedding, need.Description, 1.0, best.direction)
	return Outcome{Reused: true, Routed: routed}, nil
}

func (p *Protocol) livingCount(ctx context.Context, webID string) (int, error) {
	agents, err := p.store.ListAgents(ctx, webID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range agents {
		if !a.State.Terminal() {
			n++
		}
	}
	return n, nil
}

func (p *Protocol) depthOf(ctx context.Context, agentID string) (int, error) {
	ancestors, err := p.store.Ancestors(ctx, agentID)
	if err != nil {
		return 0, err
	}
	return len(ancestors), nil
}

// inheritedWarnings carries forward failure context from a prior lineage member.
func (p *Protocol) inheritedWarnings(ctx context.Context, webID string, embedding vector.Vector, threshold float64) ([]string, error) {
	entries, err := p.memory.SimilarFailures(ctx, webID, embedding, threshold)
	if err != nil {
		return nil, err
	}
	warnings := make([]string, 0, len(entries))
	for _, e := range entries {
		warnings = append(warnings, e.Summary)
	}
	return warnings, nil
}
