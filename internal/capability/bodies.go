package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/Pharbi/arachnid/internal/domain"
	"github.com/Pharbi/arachnid/internal/ports"
	"github.com/Pharbi/arachnid/internal/tokens"
)

// DefaultMaxPromptTokens bounds promptFor's output when trigger.MaxPromptTokens
// is unset, which happens when a capability is invoked through a path that
// doesn't thread a RuntimeConfig through (tests, ad-hoc callers). The
// coordination loop always passes the web's configured cfg.MaxPromptTokens
// on trigger.MaxPromptTokens instead.
const DefaultMaxPromptTokens = 4096

// promptFor renders a capability's LLM prompt from the agent's accumulated
// context and the signal that triggered it, truncated from the front so the
// freshest warnings and knowledge survive. Bounded by trigger.MaxPromptTokens,
// falling back to DefaultMaxPromptTokens when that's unset.
func promptFor(agentCtx domain.Context, trigger ports.Trigger) string {
	maxTokens := trigger.MaxPromptTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxPromptTokens
	}

	var b strings.Builder
	b.WriteString("purpose: ")
	b.WriteString(agentCtx.Purpose)
	if trigger.Signal != nil {
		b.WriteString("\ntrigger: ")
		b.WriteString(trigger.Signal.Content)
	}
	for _, w := range agentCtx.Warnings {
		b.WriteString("\nwarning: ")
		b.WriteString(w)
	}
	for _, k := range agentCtx.Knowledge {
		b.WriteString("\nknown: ")
		b.WriteString(k)
	}
	return tokens.TruncateTo(b.String(), maxTokens)
}

// General delegates straight to the LLM provider's completion endpoint.
// Declared impact is mid-range: general work is neither throwaway
// summarization nor high-stakes code execution.
func General(ctx context.Context, agentCtx domain.Context, trigger ports.Trigger, providers ports.Providers) (ports.ExecutionResult, error) {
	if providers.LLM == nil {
		return ports.ExecutionResult{}, unknownCapability("general: no LLM provider")
	}
	out, err := providers.LLM.Complete(ctx, promptFor(agentCtx, trigger), "You are a focused worker agent.", 0.4)
	if err != nil {
		err = fmtErr("general", err)
		return ports.ExecutionResult{Status: ports.StatusFailed, Reason: err.Error()}, err
	}
	return ports.ExecutionResult{
		Status:              ports.StatusComplete,
		Output:              out,
		DeclaredImpact:      0.5,
		DeclaredUncertainty: 0.5,
	}, nil
}

// Research delegates to the search collaborator before completing, per
// the "optional collaborator" pattern; declared impact is low
// since a bad research step is cheap to correct downstream.
func Research(ctx context.Context, agentCtx domain.Context, trigger ports.Trigger, providers ports.Providers) (ports.ExecutionResult, error) {
	if providers.Search == nil || providers.LLM == nil {
		return ports.ExecutionResult{}, unknownCapability("research: missing search or LLM provider")
	}
	query := agentCtx.Purpose
	if trigger.Signal != nil && trigger.Signal.Content != "" {
		query = trigger.Signal.Content
	}
	hits, err := providers.Search.Search(ctx, query)
	if err != nil {
		err = fmtErr("research", err)
		return ports.ExecutionResult{Status: ports.StatusFailed, Reason: err.Error()}, err
	}
	prompt := promptFor(agentCtx, trigger) + "\nsearch results:\n" + strings.Join(hits, "\n")
	out, err := providers.LLM.Complete(ctx, prompt, "You are a research agent. Summarize findings.", 0.3)
	if err != nil {
		err = fmtErr("research", err)
		return ports.ExecutionResult{Status: ports.StatusFailed, Reason: err.Error()}, err
	}
	return ports.ExecutionResult{
		Status:              ports.StatusComplete,
		Output:              out,
		DeclaredImpact:      0.4,
		DeclaredUncertainty: 0.5,
	}, nil
}

// Code declares a high impact (a bad code change is expensive to unwind)
// and derives uncertainty from a naive heuristic on output length: very
// short or very long outputs are treated as less certain than a
// middling-length, plausible-looking change.
func Code(ctx context.Context, agentCtx domain.Context, trigger ports.Trigger, providers ports.Providers) (ports.ExecutionResult, error) {
	if providers.LLM == nil {
		return ports.ExecutionResult{}, unknownCapability("code: no LLM provider")
	}
	out, err := providers.LLM.Complete(ctx, promptFor(agentCtx, trigger), "You are a code-writing agent. Respond with the patch only.", 0.2)
	if err != nil {
		err = fmtErr("code", err)
		return ports.ExecutionResult{Status: ports.StatusFailed, Reason: err.Error()}, err
	}
	return ports.ExecutionResult{
		Status:              ports.StatusComplete,
		Output:              out,
		Artifacts:           map[string]string{"patch": out},
		DeclaredImpact:      0.9,
		DeclaredUncertainty: codeUncertainty(out),
	}, nil
}

func codeUncertainty(out string) float64 {
	n := len(out)
	switch {
	case n < 20:
		return 0.8
	case n > 4000:
		return 0.7
	default:
		return 0.35
	}
}

// Summarize is low-impact, low-uncertainty reference work: collapsing
// already-validated context into a final report.
func Summarize(ctx context.Context, agentCtx domain.Context, trigger ports.Trigger, providers ports.Providers) (ports.ExecutionResult, error) {
	if providers.LLM == nil {
		return ports.ExecutionResult{}, unknownCapability("summarize: no LLM provider")
	}
	out, err := providers.LLM.Complete(ctx, promptFor(agentCtx, trigger), "Summarize the accumulated context concisely.", 0.2)
	if err != nil {
		err = fmtErr("summarize", err)
		return ports.ExecutionResult{Status: ports.StatusFailed, Reason: err.Error()}, err
	}
	return ports.ExecutionResult{
		Status:              ports.StatusComplete,
		Output:              out,
		DeclaredImpact:      0.2,
		DeclaredUncertainty: 0.3,
	}, nil
}

// fmtErr wraps a provider error with the capability tag that produced it, so
// a failure surfaced in logs or traces further up the coordination loop
// names its origin instead of reading as a bare provider error.
func fmtErr(tag string, err error) error {
	return fmt.Errorf("capability %s: %w", tag, err)
}
