package spawn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pharbi/arachnid/internal/config"
	"github.com/Pharbi/arachnid/internal/domain"
	"github.com/Pharbi/arachnid/internal/memory"
	"github.com/Pharbi/arachnid/internal/ports"
	"github.com/Pharbi/arachnid/internal/store"
	"github.com/Pharbi/arachnid/internal/vector"
)

type stubEmbedder struct {
	v vector.Vector
}

func (s stubEmbedder) Embed(context.Context, string) (vector.Vector, error) {
	return s.v, nil
}

func TestHandleCreatesChildWhenNoReuseCandidate(t *testing.T) {
	ms := store.NewMemStore()
	ctx := context.Background()
	root := &domain.Agent{ID: "root", WebID: "w1", Tuning: vector.Vector{0, 1}, State: domain.StateActive}
	require.NoError(t, ms.SaveAgent(ctx, root))

	p := New(ms, memory.New(ms), stubEmbedder{v: vector.Vector{1, 0}})
	cfg := config.Defaults()

	out, err := p.Handle(ctx, "root", ports.Need{Description: "parse the invoice"}, cfg)
	require.NoError(t, err)
	require.NotNil(t, out.Child)
	assert.False(t, out.Reused)
	assert.False(t, out.Refused)
	assert.Equal(t, "root", out.Child.ParentID)
	assert.Equal(t, domain.StateListening, out.Child.State)
	assert.Equal(t, 1.0, out.Child.Health)
	assert.Equal(t, cfg.ProbationPeriod, out.Child.ProbationRemaining)
	require.NotNil(t, out.Kick)
	assert.Equal(t, domain.Downward, out.Kick.Direction)
}

func TestHandleReusesResonatingDescendant(t *testing.T) {
	ms := store.NewMemStore()
	ctx := context.Background()
	root := &domain.Agent{ID: "root", WebID: "w1", Tuning: vector.Vector{1, 0}, State: domain.StateActive}
	child := &domain.Agent{ID: "child", WebID: "w1", ParentID: "root", Tuning: vector.Vector{1, 0}, ActivationThreshold: 0.1, State: domain.StateListening}
	require.NoError(t, ms.SaveAgent(ctx, root))
	require.NoError(t, ms.SaveAgent(ctx, child))

	p := New(ms, memory.New(ms), stubEmbedder{v: vector.Vector{1, 0}})
	out, err := p.Handle(ctx, "root", ports.Need{Description: "same thing again"}, config.Defaults())
	require.NoError(t, err)
	assert.True(t, out.Reused)
	assert.Nil(t, out.Child)
	require.NotNil(t, out.Routed)
	assert.Equal(t, domain.Downward, out.Routed.Direction)
}

func TestHandleRefusesWhenMaxAgentsReached(t *testing.T) {
	ms := store.NewMemStore()
	ctx := context.Background()
	root := &domain.Agent{ID: "root", WebID: "w1", Tuning: vector.Vector{0, 1}, State: domain.StateActive}
	require.NoError(t, ms.SaveAgent(ctx, root))

	p := New(ms, memory.New(ms), stubEmbedder{v: vector.Vector{1, 0}})
	cfg := config.Defaults()
	cfg.MaxAgents = 1

	out, err := p.Handle(ctx, "root", ports.Need{Description: "more work"}, cfg)
	require.NoError(t, err)
	assert.True(t, out.Refused)
	assert.Nil(t, out.Child)

	entries, err := memory.New(ms).SimilarFailures(ctx, "w1", vector.Vector{1, 0}, 0.0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestHandleInheritsFailureWarnings(t *testing.T) {
	ms := store.NewMemStore()
	ctx := context.Background()
	root := &domain.Agent{ID: "root", WebID: "w1", Tuning: vector.Vector{0, 1}, State: domain.StateActive}
	require.NoError(t, ms.SaveAgent(ctx, root))
	mem := memory.New(ms)
	require.NoError(t, mem.Record(ctx, domain.NewFailureEntry("w1", "prior attempt", vector.Vector{1, 0}, "ran out of context")))

	p := New(ms, mem, stubEmbedder{v: vector.Vector{1, 0}})
	out, err := p.Handle(ctx, "root", ports.Need{Description: "similar work"}, config.Defaults())
	require.NoError(t, err)
	require.NotNil(t, out.Child)
	require.Len(t, out.Child.Context.Warnings, 1)
	assert.Equal(t, "ran out of context", out.Child.Context.Warnings[0])
}
