// Package providers supplies minimal, dependency-free ports.LLMProvider and
// ports.EmbeddingProvider implementations so the CLI and test fixtures can
// run a web end to end without a configured network backend. Real deployments
// are expected to supply their own adapters over the same two interfaces
// — nothing in
// internal/coordination depends on these concrete types.
package providers

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/Pharbi/arachnid/internal/domain"
	"github.com/Pharbi/arachnid/internal/vector"
)

// Echo is a deterministic, local-only LLMProvider: Complete echoes the
// prompt back summarized to its first line, and Validate always confirms
// with fixed confidence. It exists so `resonanced run` produces a complete,
// reproducible web without any external API key.
type Echo struct{}

func (Echo) Complete(_ context.Context, prompt, systemPrompt string, _ float64) (string, error) {
	first := prompt
	if idx := strings.IndexByte(prompt, '\n'); idx >= 0 {
		first = prompt[:idx]
	}
	return fmt.Sprintf("[%s] %s", strings.TrimSpace(systemPrompt), first), nil
}

func (Echo) Validate(_ context.Context, output string, _ domain.Context) (domain.Judgment, float64, string, error) {
	if strings.TrimSpace(output) == "" {
		return domain.Challenge, 0.6, "empty output", nil
	}
	return domain.Confirm, 0.7, "echo provider: non-empty output accepted", nil
}

// HashEmbedding turns text into a deterministic pseudo-embedding by hashing
// each lower-cased word into a bucket of a fixed-dimension vector — no model call, no
// network, but stable and distinguishing enough for local tuning-based
// activation and lineage-reuse to exercise meaningfully.
type HashEmbedding struct {
	Dim int
}

func (h HashEmbedding) Embed(_ context.Context, text string) (vector.Vector, error) {
	dim := h.Dim
	if dim <= 0 {
		dim = 16
	}
	v := make(vector.Vector, dim)
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		words = []string{text}
	}
	for _, w := range words {
		hsh := fnv.New32a()
		_, _ = hsh.Write([]byte(w))
		idx := int(hsh.Sum32()) % dim
		if idx < 0 {
			idx += dim
		}
		v[idx]++
	}
	if v.Norm() < vector.ZeroNormEpsilon {
		v[0] = 1
	}
	return v, nil
}
