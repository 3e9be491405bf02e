package health

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Pharbi/arachnid/internal/config"
	"github.com/Pharbi/arachnid/internal/domain"
	"github.com/Pharbi/arachnid/internal/vector"
)

func TestApplyJudgmentConfirmBoosts(t *testing.T) {
	cfg := config.Defaults()
	a := &domain.Agent{Health: 0.5}
	ApplyJudgment(a, domain.Confirm, "output", cfg)
	assert.InDelta(t, 0.5+cfg.HealthBoostConfirm, a.Health, 1e-9)
}

func TestApplyJudgmentChallengeHalvedDuringProbation(t *testing.T) {
	cfg := config.Defaults()
	a := &domain.Agent{Health: 0.5, ProbationRemaining: 3}
	ApplyJudgment(a, domain.Challenge, "output", cfg)
	assert.InDelta(t, 0.5-cfg.HealthPenaltyChallenge/2, a.Health, 1e-9)
	assert.Equal(t, 2, a.ProbationRemaining)
}

func TestApplyJudgmentChallengeFullPenaltyOutsideProbation(t *testing.T) {
	cfg := config.Defaults()
	a := &domain.Agent{Health: 0.5}
	ApplyJudgment(a, domain.Challenge, "output", cfg)
	assert.InDelta(t, 0.5-cfg.HealthPenaltyChallenge, a.Health, 1e-9)
}

func TestApplyJudgmentChallengeDuplicateAddsPenalty(t *testing.T) {
	cfg := config.Defaults()
	a := &domain.Agent{Health: 0.9, LastChallengedOutput: "the exact same output text"}
	ApplyJudgment(a, domain.Challenge, "the exact same output text", cfg)
	assert.InDelta(t, 0.9-cfg.HealthPenaltyChallenge-0.05, a.Health, 1e-9)
}

func TestApplyJudgmentUncertainNoChange(t *testing.T) {
	cfg := config.Defaults()
	a := &domain.Agent{Health: 0.5, ProbationRemaining: 1}
	ApplyJudgment(a, domain.Uncertain, "output", cfg)
	assert.Equal(t, 0.5, a.Health)
	assert.Equal(t, 0, a.ProbationRemaining)
}

func TestApplyJudgmentClampsHealth(t *testing.T) {
	cfg := config.Defaults()
	a := &domain.Agent{Health: 0.02}
	ApplyJudgment(a, domain.Challenge, "output", cfg)
	assert.Equal(t, 0.0, a.Health)

	b := &domain.Agent{Health: 0.98}
	ApplyJudgment(b, domain.Confirm, "output", cfg)
	assert.LessOrEqual(t, b.Health, 1.0)
}

func TestApplyDriftMixesTowardWindowMean(t *testing.T) {
	cfg := config.Defaults()
	a := &domain.Agent{Tuning: vector.Vector{1, 0}}
	ApplyDrift(a, vector.Vector{0, 1}, cfg)
	assert.NotEqual(t, vector.Vector{1, 0}, a.Tuning)
	assert.InDelta(t, 1.0, a.Tuning.Norm(), 1e-6)
}

func TestSimilarityIdentical(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("same text", "same text"))
}

func TestSimilarityDivergent(t *testing.T) {
	s := Similarity("hello world", "completely unrelated content here")
	assert.Less(t, s, 0.6)
}
