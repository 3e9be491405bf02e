// Package validate implements the validation scheduler: ranks
// pending execution results by priority, validates up to a per-tick budget
// through the LLM collaborator, and applies the resulting health update.
package validate

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/Pharbi/arachnid/internal/config"
	"github.com/Pharbi/arachnid/internal/domain"
	"github.com/Pharbi/arachnid/internal/health"
	"github.com/Pharbi/arachnid/internal/ports"
)

// PendingResult is one just-completed execution awaiting validation. The
// coordination loop accumulates these across a tick's activations and hands
// the batch to Scheduler.Run.
type PendingResult struct {
	AgentID     string
	WebID       string
	Output      string
	Impact      float64
	Uncertainty float64
	CreatedAt   time.Time
}

// priority ranks a pending result by impact * (1 - agent_health) * uncertainty.
func priority(p PendingResult, agentHealth float64) float64 {
	return p.Impact * (1 - agentHealth) * p.Uncertainty
}

// Scheduler runs validation against a store and an LLM collaborator.
type Scheduler struct {
	store ports.Store
	llm   ports.LLMProvider
}

// New constructs a Scheduler.
func New(store ports.Store, llm ports.LLMProvider) *Scheduler {
	return &Scheduler{store: store, llm: llm}
}

// Budget returns the per-tick validation budget for a web with the given
// number of active agents: ceil(active/divisor).
func Budget(activeAgents, divisor int) int {
	if divisor <= 0 {
		divisor = 1
	}
	return int(math.Ceil(float64(activeAgents) / float64(divisor)))
}

// Run validates up to budget of pending, ranked by descending priority
//, persists each ValidationRecord, and applies the resulting
// health update to the target agent. Results left unvalidated by the budget
// are the caller's responsibility to treat as Uncertain.
func (s *Scheduler) Run(ctx context.Context, pending []PendingResult, cfg config.RuntimeConfig, budget int) ([]domain.ValidationRecord, error) {
	ranked, err := s.rank(ctx, pending)
	if err != nil {
		return nil, err
	}
	if budget > len(ranked) {
		budget = len(ranked)
	}
	records := make([]domain.ValidationRecord, 0, budget)
	for _, p := range ranked[:budget] {
		record, err := s.validateOne(ctx, p, cfg)
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
	return records, nil
}

type rankedResult struct {
	result   PendingResult
	priority float64
}

func (s *Scheduler) rank(ctx context.Context, pending []PendingResult) ([]PendingResult, error) {
	scored := make([]rankedResult, 0, len(pending))
	for _, p := range pending {
		agent, err := s.store.GetAgent(ctx, p.AgentID)
		if err != nil {
			continue // agent gone since the execution completed; skip
		}
		scored = append(scored, rankedResult{result: p, priority: priority(p, agent.Health)})
	}
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && scored[j].priority > scored[j-1].priority; j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}
	out := make([]PendingResult, len(scored))
	for i, r := range scored {
		out[i] = r.result
	}
	return out, nil
}

func (s *Scheduler) validateOne(ctx context.Context, p PendingResult, cfg config.RuntimeConfig) (domain.ValidationRecord, error) {
	agent, err := s.store.GetAgent(ctx, p.AgentID)
	if err != nil {
		return domain.ValidationRecord{}, nil
	}

	judgment, confidence, reason, err := s.llm.Validate(ctx, p.Output, agent.Context)
	if err != nil {
		judgment, confidence, reason = domain.Uncertain, 0.5, "validation_unavailable: "+err.Error()
	}

	record := domain.NewValidationRecord(agent.ID, agent.WebID, contentHash(p.Output), judgment, confidence, reason)
	if err := s.store.SaveValidation(ctx, record); err != nil {
		return record, err
	}

	health.ApplyJudgment(agent, judgment, p.Output, cfg)
	return record, s.store.SaveAgent(ctx, agent)
}

// contentHash is a cheap FNV-1a fingerprint for the ValidationRecord's audit
// trail; the near-duplicate test used for health penalties is Similarity in
// internal/health, not hash equality.
func contentHash(output string) string {
	var h uint64 = 1469598103934665603
	for i := 0; i < len(output); i++ {
		h ^= uint64(output[i])
		h *= 1099511628211
	}
	return strconv.FormatUint(h, 16)
}

// judgmentPayload is the shape an LLM provider's raw validate() completion
// is expected to decode into, once repaired.
type judgmentPayload struct {
	Judgment   string  `json:"judgment"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// ParseJudgment repairs raw (possibly slightly malformed) JSON from an LLM
// provider's validate() completion and decodes it, the same way tool-call
// argument parsing repairs malformed JSON before decoding. Concrete
// ports.LLMProvider adapters use this to implement Validate.
func ParseJudgment(raw string) (domain.Judgment, float64, string, error) {
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return domain.Uncertain, 0.5, "", err
	}
	var payload judgmentPayload
	if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
		return domain.Uncertain, 0.5, "", err
	}
	var judgment domain.Judgment
	switch payload.Judgment {
	case "confirm":
		judgment = domain.Confirm
	case "challenge":
		judgment = domain.Challenge
	default:
		judgment = domain.Uncertain
	}
	return judgment, payload.Confidence, payload.Reason, nil
}
