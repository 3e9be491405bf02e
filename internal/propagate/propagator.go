// Package propagate implements the depth-first lineage walk that delivers a
// signal to eligible agents, attenuating amplitude per hop.
// Propagation is pure in-memory arithmetic plus Store lineage lookups; it
// never performs provider I/O and so can never itself fail.
package propagate

import (
	"context"
	"math"

	"github.com/Pharbi/arachnid/internal/config"
	"github.com/Pharbi/arachnid/internal/domain"
	"github.com/Pharbi/arachnid/internal/ports"
	"github.com/Pharbi/arachnid/internal/resonance"
)

// Delivery is one resonance-evaluator run against a visited agent, recorded
// for the caller to act on (activate for execution) and to publish as a
// SignalDelivered event.
type Delivery struct {
	Agent     *domain.Agent
	Verdict   resonance.Verdict
	Activated bool
	// Signal is the snapshot of s as delivered to Agent (amplitude/hop count
	// at this point in the walk), used as the capability trigger when
	// Activated is true.
	Signal *domain.Signal
}

// Result summarizes one Propagate call.
type Result struct {
	Deliveries []Delivery
	Unheard    bool // amplitude reached the floor without any activation
}

// Propagator walks a signal along strict lineage edges.
type Propagator struct {
	store ports.Store
}

// New constructs a Propagator over store.
func New(store ports.Store) *Propagator {
	return &Propagator{store: store}
}

// Propagate delivers s starting from its origin agent:
// Upward visits ancestors, Downward visits descendants, depth-first, each
// agent visited at most once, amplitude decays by cfg.AttenuationFactor per
// hop and the walk halts once amplitude drops below cfg.MinAmplitude or
// cfg.MaxDepth hops have been traversed. Amplitude and hop count at depth n
// are the same for every agent at that depth, regardless of which branch of
// the lineage they sit in.
func (p *Propagator) Propagate(ctx context.Context, s *domain.Signal, cfg config.RuntimeConfig) (Result, error) {
	origin, err := p.store.GetAgent(ctx, s.OriginAgentID)
	if err != nil {
		// Origin already terminated/missing: nothing to walk from.
		return Result{Unheard: true}, nil
	}

	if origin.State == domain.StateQuarantine {
		s.Suspect = true
	}

	var result Result
	activatedAny := false

	if s.Direction == domain.Upward {
		chain, err := p.store.Ancestors(ctx, origin.ID)
		if err != nil {
			return Result{Unheard: true}, nil
		}
		amplitude := s.Amplitude
		hop := s.HopCount
		for i, agent := range chain {
			if i >= cfg.MaxDepth {
				break
			}
			amplitude *= cfg.AttenuationFactor
			hop++
			if amplitude < cfg.MinAmplitude {
				break
			}
			deliverTo(s, agent, amplitude, hop, &result, &activatedAny)
		}
		s.Amplitude = amplitude
		s.HopCount = hop
	} else {
		seen := map[string]bool{origin.ID: true}
		final := finalState{amplitude: s.Amplitude, hop: s.HopCount}
		if err := p.walkDescendants(ctx, origin.ID, 0, s, cfg, seen, &result, &activatedAny, &final); err != nil {
			return Result{Unheard: true}, nil
		}
		s.Amplitude = final.amplitude
		s.HopCount = final.hop
	}

	s.Processed = true
	result.Unheard = !activatedAny
	return result, nil
}

// finalState carries the amplitude/hop of the deepest lineage depth the walk
// actually reached, so Propagate can stamp it back onto s once recursion
// finishes.
type finalState struct {
	amplitude float64
	hop       int
}

// walkDescendants visits parentID's children (lineage depth parentDepth+1),
// then recurses into each child's own children. Every agent is visited at
// most once across the whole walk via seen, and amplitude/hop at a given
// depth is computed once from that depth alone so siblings and cousins at
// the same lineage depth always get the same attenuation, never from their
// position in a flattened traversal order.
func (p *Propagator) walkDescendants(ctx context.Context, parentID string, parentDepth int, s *domain.Signal, cfg config.RuntimeConfig, seen map[string]bool, result *Result, activatedAny *bool, final *finalState) error {
	depth := parentDepth + 1
	if depth > cfg.MaxDepth {
		return nil
	}
	amplitude := s.Amplitude * math.Pow(cfg.AttenuationFactor, float64(depth))
	if amplitude < cfg.MinAmplitude {
		return nil // every agent at this depth or deeper falls below the floor
	}
	hop := s.HopCount + depth

	children, err := p.store.Children(ctx, parentID)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		final.amplitude = amplitude
		final.hop = hop
	}
	for _, child := range children {
		if seen[child.ID] {
			continue
		}
		seen[child.ID] = true
		deliverTo(s, child, amplitude, hop, result, activatedAny)
		if err := p.walkDescendants(ctx, child.ID, depth, s, cfg, seen, result, activatedAny, final); err != nil {
			return err
		}
	}
	return nil
}

// deliverTo evaluates the resonance verdict for agent against a snapshot of
// s at the given amplitude/hop, recording a Delivery and activating agent
// if it resonates and is eligible. Terminal agents and agents the signal
// has already reached are skipped without halting the walk past them.
func deliverTo(s *domain.Signal, agent *domain.Agent, amplitude float64, hop int, result *Result, activatedAny *bool) {
	if agent.State.Terminal() || s.AlreadyDelivered(agent.ID) {
		return
	}

	probe := *s
	probe.Amplitude = amplitude
	probe.HopCount = hop
	verdict := resonance.Evaluate(agent, &probe)
	s.MarkDelivered(agent.ID)

	activated := false
	if verdict.Resonant && (agent.State == domain.StateListening || agent.State == domain.StateDormant) {
		activated = true
		*activatedAny = true
		agent.State = domain.StateActive
		agent.DormantSince = nil
	}
	result.Deliveries = append(result.Deliveries, Delivery{Agent: agent, Verdict: verdict, Activated: activated, Signal: &probe})
}
