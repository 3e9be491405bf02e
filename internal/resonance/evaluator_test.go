package resonance

import (
	"testing"

	"github.com/Pharbi/arachnid/internal/domain"
	"github.com/Pharbi/arachnid/internal/vector"
	"github.com/stretchr/testify/assert"
)

func agentWith(state domain.AgentState, threshold float64, tuning vector.Vector) *domain.Agent {
	return &domain.Agent{State: state, ActivationThreshold: threshold, Tuning: tuning}
}

func TestSingleHopResonance(t *testing.T) {
	a := agentWith(domain.StateListening, 0.5, vector.Vector{1, 0, 0})
	s := domain.NewSignal("web-1", "origin", vector.Vector{1, 0, 0}, "task", 1.0, domain.Downward)

	v := Evaluate(a, s)
	assert.InDelta(t, 1.0, v.Eff, 1e-9)
	assert.True(t, v.Resonant)
}

func TestTieBreakIsNonActivation(t *testing.T) {
	a := agentWith(domain.StateListening, 0.5, vector.Vector{1, 0})
	s := domain.NewSignal("web-1", "origin", vector.Vector{1, 0}, "x", 0.5, domain.Downward)

	v := Evaluate(a, s)
	assert.InDelta(t, 0.5, v.Eff, 1e-9)
	assert.False(t, v.Resonant)
}

func TestTerminatedNeverResonant(t *testing.T) {
	a := agentWith(domain.StateTerminated, 0.1, vector.Vector{1, 0})
	s := domain.NewSignal("web-1", "origin", vector.Vector{1, 0}, "x", 1.0, domain.Downward)
	assert.False(t, Evaluate(a, s).Resonant)
}

func TestWindingDownNeverResonant(t *testing.T) {
	a := agentWith(domain.StateWindingDown, 0.1, vector.Vector{1, 0})
	s := domain.NewSignal("web-1", "origin", vector.Vector{1, 0}, "x", 1.0, domain.Downward)
	assert.False(t, Evaluate(a, s).Resonant)
}

func TestIsolatedDampsEff(t *testing.T) {
	a := agentWith(domain.StateIsolated, 0.5, vector.Vector{1, 0})
	s := domain.NewSignal("web-1", "origin", vector.Vector{1, 0}, "x", 1.0, domain.Downward)

	v := Evaluate(a, s)
	assert.InDelta(t, IsolatedDamping, v.Eff, 1e-9)
	assert.False(t, v.Resonant)
}

func TestZeroVectorYieldsNoResonance(t *testing.T) {
	a := agentWith(domain.StateListening, 0.1, vector.Vector{0, 0, 0})
	s := domain.NewSignal("web-1", "origin", vector.Vector{1, 0, 0}, "x", 1.0, domain.Downward)

	v := Evaluate(a, s)
	assert.Equal(t, 0.0, v.Sim)
	assert.False(t, v.Resonant)
}
