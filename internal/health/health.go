// Package health applies validation judgments to agent health and drifts
// tuning vectors toward the signals that keep triggering an agent.
// Near-duplicate output detection reuses diffmatchpatch's Levenshtein
// distance the way a diff generator would, rather than exact
// content-hash equality.
package health

import (
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Pharbi/arachnid/internal/config"
	"github.com/Pharbi/arachnid/internal/domain"
	"github.com/Pharbi/arachnid/internal/vector"
)

// Similarity returns a's likeness to b in [0,1] via normalized Levenshtein
// distance over their diff, 1.0 for identical strings.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)
	dist := dmp.DiffLevenshtein(diffs)
	return 1.0 - float64(dist)/float64(maxLen)
}

// ApplyJudgment applies one validation judgment to a:
// Confirm boosts, Challenge penalizes (plus an extra 0.05 if the output
// matches a prior challenged output's class), Uncertain is a no-op. Penalties are
// halved during probation; boosts are not. Probation decrements on every
// validated execution regardless of judgment. output is the just-validated
// execution's text, used only for the Challenge duplicate check.
func ApplyJudgment(a *domain.Agent, judgment domain.Judgment, output string, cfg config.RuntimeConfig) {
	switch judgment {
	case domain.Confirm:
		a.Health += cfg.HealthBoostConfirm
	case domain.Challenge:
		penalty := cfg.HealthPenaltyChallenge
		if a.ProbationRemaining > 0 {
			penalty /= 2
		}
		if a.LastChallengedOutput != "" && Similarity(a.LastChallengedOutput, output) >= cfg.DedupSimilarityRatio {
			dup := 0.05
			if a.ProbationRemaining > 0 {
				dup /= 2
			}
			penalty += dup
		}
		a.Health -= penalty
		a.LastChallengedOutput = output
	case domain.Uncertain:
		// no change
	}
	a.ClampHealth()
	if a.ProbationRemaining > 0 {
		a.ProbationRemaining--
	}
}

// ApplyDrift implements tuning drift: after a successful
// execution, the triggering signal's frequency is pushed into the agent's
// bounded window and the tuning is mixed toward the window's mean.
func ApplyDrift(a *domain.Agent, triggerFrequency vector.Vector, cfg config.RuntimeConfig) {
	if a.DriftWindow == nil {
		a.DriftWindow = vector.NewWindow(cfg.TuningDriftWindow)
	}
	a.DriftWindow.Push(triggerFrequency)
	if a.DriftWindow.Len() == 0 {
		return
	}
	a.Tuning = vector.Drift(a.Tuning, a.DriftWindow.Items(), cfg.TuningDriftAlpha)
}
