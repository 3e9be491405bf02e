// Package lifecycle implements the agent state machine and wind-down
// cascade: timer-driven Dormant/Terminated sweeps and
// health-driven Quarantine/Isolated/WindingDown transitions, applied once
// per tick after health updates.
package lifecycle

import (
	"context"
	"time"

	"github.com/Pharbi/arachnid/internal/config"
	"github.com/Pharbi/arachnid/internal/domain"
	"github.com/Pharbi/arachnid/internal/memory"
	"github.com/Pharbi/arachnid/internal/ports"
)

// Manager applies the lifecycle state machine over a web's agents.
type Manager struct {
	store  ports.Store
	memory *memory.Store
}

// New constructs a Manager.
func New(store ports.Store, mem *memory.Store) *Manager {
	return &Manager{store: store, memory: mem}
}

// Sweep implements the coordination loop's step 1: Listening
// agents idle past idle_timeout become Dormant, and Dormant agents past
// dormant_ttl are terminated outright (no cascade — a dormant agent has no
// in-flight work to unwind).
func (m *Manager) Sweep(ctx context.Context, webID string, cfg config.RuntimeConfig, now time.Time) error {
	agents, err := m.store.ListAgents(ctx, webID)
	if err != nil {
		return err
	}
	for _, a := range agents {
		switch a.State {
		case domain.StateListening:
			if now.Sub(a.LastActiveAt) >= cfg.IdleTimeout {
				a.State = domain.StateDormant
				t := now
				a.DormantSince = &t
				if err := m.store.SaveAgent(ctx, a); err != nil {
					return err
				}
			}
		case domain.StateDormant:
			if a.DormantSince != nil && now.Sub(*a.DormantSince) >= cfg.DormantTTL {
				a.State = domain.StateTerminated
				if err := m.store.SaveAgent(ctx, a); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// ApplyHealthTransitions moves each non-terminal agent at most one step
// along the health-driven state machine, cascading WindingDown agents to
// Terminated immediately since that transition has no further health
// dependency.
func (m *Manager) ApplyHealthTransitions(ctx context.Context, webID string, cfg config.RuntimeConfig) error {
	agents, err := m.store.ListAgents(ctx, webID)
	if err != nil {
		return err
	}
	for _, a := range agents {
		if a.State.Terminal() || a.State == domain.StateWindingDown {
			continue
		}
		next := nextState(a, cfg)
		if next == a.State {
			continue
		}
		if a.State != domain.StateQuarantine && a.State != domain.StateIsolated && next == domain.StateQuarantine {
			a.PreviousNonPenaltyState = a.State
		}
		if next == domain.StateWindingDown {
			if err := m.windDown(ctx, a, cfg); err != nil {
				return err
			}
			continue
		}
		a.State = next
		if err := m.store.SaveAgent(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// nextState computes the single next hop of the state machine described in
// the state diagram; recovery is checked before further degradation.
func nextState(a *domain.Agent, cfg config.RuntimeConfig) domain.AgentState {
	switch a.State {
	case domain.StateQuarantine:
		if a.Health >= cfg.RecoveryThreshold {
			return a.PreviousNonPenaltyState
		}
		if a.Health < cfg.IsolationThreshold {
			return domain.StateIsolated
		}
		return a.State
	case domain.StateIsolated:
		if a.Health >= cfg.RecoveryThreshold {
			return a.PreviousNonPenaltyState
		}
		if a.Health < cfg.WinddownThreshold {
			return domain.StateWindingDown
		}
		return a.State
	default:
		if a.Health < cfg.QuarantineThreshold {
			return domain.StateQuarantine
		}
		return a.State
	}
}

// ForceWindDown runs the wind-down cascade on a directly, regardless of its
// current health. Used by web-level cancellation, which must wind
// every non-terminal agent down without waiting for a health-driven
// transition.
func (m *Manager) ForceWindDown(ctx context.Context, a *domain.Agent, cfg config.RuntimeConfig) error {
	return m.windDown(ctx, a, cfg)
}

// windDown runs the five-step cascade for an agent
// entering WindingDown, ending in Terminated.
func (m *Manager) windDown(ctx context.Context, a *domain.Agent, cfg config.RuntimeConfig) error {
	a.State = domain.StateWindingDown
	if err := m.store.SaveAgent(ctx, a); err != nil {
		return err
	}

	if a.ParentID != "" {
		failure := domain.NewSignal(a.WebID, a.ID, a.Tuning, "wind_down: "+a.Purpose, 1.0, domain.Upward)
		if err := m.store.SaveSignal(ctx, failure); err != nil {
			return err
		}
	}

	children, err := m.store.Children(ctx, a.ID)
	if err != nil {
		return err
	}
	grandparentDepth := 0
	if a.ParentID != "" {
		ancestors, err := m.store.Ancestors(ctx, a.ParentID)
		if err != nil {
			return err
		}
		grandparentDepth = len(ancestors) + 1
	}
	for _, child := range children {
		if child.State.Terminal() {
			continue
		}
		if child.Health >= cfg.QuarantineThreshold && grandparentDepth+1 <= cfg.MaxDepth {
			if err := m.store.Reparent(ctx, child.ID, a.ParentID); err != nil {
				return err
			}
			continue
		}
		if err := m.windDown(ctx, child, cfg); err != nil {
			return err
		}
	}

	entry := domain.NewFailureEntry(a.WebID, a.Purpose, a.Tuning, "wind-down: "+a.Purpose)
	if err := m.memory.Record(ctx, entry); err != nil {
		return err
	}

	a.State = domain.StateTerminated
	return m.store.SaveAgent(ctx, a)
}
