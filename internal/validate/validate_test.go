package validate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pharbi/arachnid/internal/config"
	"github.com/Pharbi/arachnid/internal/domain"
	"github.com/Pharbi/arachnid/internal/store"
)

type stubLLM struct {
	judgment domain.Judgment
	err      error
}

func (s stubLLM) Complete(context.Context, string, string, float64) (string, error) {
	return "", nil
}

func (s stubLLM) Validate(context.Context, string, domain.Context) (domain.Judgment, float64, string, error) {
	if s.err != nil {
		return domain.Uncertain, 0, "", s.err
	}
	return s.judgment, 0.8, "stub reason", nil
}

func TestBudgetRoundsUp(t *testing.T) {
	assert.Equal(t, 3, Budget(5, 2))
	assert.Equal(t, 1, Budget(1, 5))
	assert.Equal(t, 0, Budget(0, 5))
	assert.Equal(t, 5, Budget(5, 0)) // non-positive divisor treated as 1
}

func TestRunValidatesHighestPriorityFirstWithinBudget(t *testing.T) {
	ms := store.NewMemStore()
	cfg := config.Defaults()

	low := &domain.Agent{ID: "low", WebID: "w1", Health: 0.9, State: domain.StateListening}
	high := &domain.Agent{ID: "high", WebID: "w1", Health: 0.2, State: domain.StateListening}
	require.NoError(t, ms.SaveAgent(context.Background(), low))
	require.NoError(t, ms.SaveAgent(context.Background(), high))

	sched := New(ms, stubLLM{judgment: domain.Confirm})
	pending := []PendingResult{
		{AgentID: "low", WebID: "w1", Output: "a", Impact: 0.5, Uncertainty: 0.5, CreatedAt: time.Now()},
		{AgentID: "high", WebID: "w1", Output: "b", Impact: 0.9, Uncertainty: 0.9, CreatedAt: time.Now()},
	}

	records, err := sched.Run(context.Background(), pending, cfg, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "high", records[0].TargetAgentID)

	updated, err := ms.GetAgent(context.Background(), "high")
	require.NoError(t, err)
	assert.Greater(t, updated.Health, 0.2)
}

func TestRunFallsBackToUncertainOnProviderError(t *testing.T) {
	ms := store.NewMemStore()
	cfg := config.Defaults()
	agent := &domain.Agent{ID: "a1", WebID: "w1", Health: 0.5, State: domain.StateListening}
	require.NoError(t, ms.SaveAgent(context.Background(), agent))

	sched := New(ms, stubLLM{err: assertErr{}})
	pending := []PendingResult{{AgentID: "a1", WebID: "w1", Output: "x", Impact: 0.5, Uncertainty: 0.5, CreatedAt: time.Now()}}

	records, err := sched.Run(context.Background(), pending, cfg, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.Uncertain, records[0].Judgment)

	updated, err := ms.GetAgent(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, 0.5, updated.Health) // Uncertain is a no-op on health
}

type assertErr struct{}

func (assertErr) Error() string { return "provider unavailable" }

func TestParseJudgmentRepairsMalformedJSON(t *testing.T) {
	judgment, confidence, reason, err := ParseJudgment(`{judgment: "confirm", confidence: 0.75, reason: "looks right"`)
	require.NoError(t, err)
	assert.Equal(t, domain.Confirm, judgment)
	assert.InDelta(t, 0.75, confidence, 1e-9)
	assert.Equal(t, "looks right", reason)
}

func TestParseJudgmentDefaultsUnknownJudgmentToUncertain(t *testing.T) {
	judgment, _, _, err := ParseJudgment(`{"judgment": "who knows", "confidence": 0.1, "reason": "n/a"}`)
	require.NoError(t, err)
	assert.Equal(t, domain.Uncertain, judgment)
}
