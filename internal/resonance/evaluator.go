// Package resonance implements the pure (agent, signal) -> activation
// verdict function. It performs no I/O and holds no
// state.
package resonance

import (
	"github.com/Pharbi/arachnid/internal/domain"
	"github.com/Pharbi/arachnid/internal/vector"
)

// IsolatedDamping is the multiplier applied to eff when the agent is
// Isolated.
const IsolatedDamping = 0.3

// Verdict carries the resonance evaluator's full result, including the
// intermediate quantities used for lineage-reuse ranking.
type Verdict struct {
	Sim      float64
	Eff      float64
	Resonant bool
}

// Evaluate computes whether signal s resonates with agent a: sim =
// cosine(a.Tuning, s.Frequency), eff = sim * s.Amplitude, resonant iff eff
// strictly exceeds a.ActivationThreshold. Agents in Terminated or
// WindingDown are never resonant. Isolated agents have eff damped by
// IsolatedDamping before the comparison. Equality is a tie, which is
// non-activation.
func Evaluate(a *domain.Agent, s *domain.Signal) Verdict {
	if a == nil || s == nil || !a.IsResonanceEligible() {
		return Verdict{}
	}

	sim := vector.Cosine(a.Tuning, s.Frequency)
	eff := sim * s.Amplitude
	if a.State == domain.StateIsolated {
		eff *= IsolatedDamping
	}

	return Verdict{
		Sim:      sim,
		Eff:      eff,
		Resonant: eff > a.ActivationThreshold,
	}
}
