package coordination

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pharbi/arachnid/internal/capability"
	"github.com/Pharbi/arachnid/internal/config"
	"github.com/Pharbi/arachnid/internal/domain"
	"github.com/Pharbi/arachnid/internal/ports"
	"github.com/Pharbi/arachnid/internal/store"
	"github.com/Pharbi/arachnid/internal/vector"
)

// fakeEmbedder deterministically maps text to a fixed-dimension vector so
// lineage-reuse checks and tests are reproducible.
type fakeEmbedder struct{ dim int }

func (f fakeEmbedder) Embed(_ context.Context, text string) (vector.Vector, error) {
	v := make(vector.Vector, f.dim)
	for i, c := range text {
		v[i%f.dim] += float64(c)
	}
	if v.Norm() < vector.ZeroNormEpsilon {
		v[0] = 1
	}
	return v, nil
}

// fakeLLM always confirms and completes with a fixed output.
type fakeLLM struct{}

func (f fakeLLM) Complete(_ context.Context, prompt, _ string, _ float64) (string, error) {
	return "done: " + prompt, nil
}

func (f fakeLLM) Validate(_ context.Context, _ string, _ domain.Context) (domain.Judgment, float64, string, error) {
	return domain.Confirm, 0.9, "looks fine", nil
}

func testLoop(t *testing.T) (*Loop, ports.Store) {
	t.Helper()
	st := store.NewMemStore()
	providers := ports.Providers{
		LLM:       fakeLLM{},
		Embedding: fakeEmbedder{dim: 16},
	}
	registry := capability.NewRegistry()
	registry.Register("general", capability.General)
	metrics := MustNewMetrics(prometheus.NewRegistry())
	loop := New(st, providers, registry, nil).WithMetrics(metrics)
	return loop, st
}

func TestCreateWebSeedsActiveRoot(t *testing.T) {
	loop, st := testLoop(t)
	cfg := config.Defaults()
	cfg.TuningDimension = 16

	web, err := loop.CreateWeb(context.Background(), "build a thing", cfg, "general")
	require.NoError(t, err)
	assert.Equal(t, domain.Running, web.State)

	root, err := st.GetAgent(context.Background(), web.RootID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, root.State)
	assert.Equal(t, 1.0, root.Health)
}

func TestSingleAgentWebConvergesAfterOneTick(t *testing.T) {
	loop, st := testLoop(t)
	cfg := config.Defaults()
	cfg.TuningDimension = 16

	web, err := loop.CreateWeb(context.Background(), "summarize the repo", cfg, "general")
	require.NoError(t, err)

	final, err := loop.Tick(context.Background(), web.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Converged, final.State)

	root, err := st.GetAgent(context.Background(), web.RootID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateListening, root.State)
	assert.True(t, root.HasOutput)
}

func TestTickRunsValidationAndBoostsHealth(t *testing.T) {
	loop, st := testLoop(t)
	cfg := config.Defaults()
	cfg.TuningDimension = 16

	web, err := loop.CreateWeb(context.Background(), "write some code", cfg, "general")
	require.NoError(t, err)

	root, err := st.GetAgent(context.Background(), web.RootID)
	require.NoError(t, err)
	root.Health = 0.9
	require.NoError(t, st.SaveAgent(context.Background(), root))

	_, err = loop.Tick(context.Background(), web.ID)
	require.NoError(t, err)

	root, err = st.GetAgent(context.Background(), web.RootID)
	require.NoError(t, err)
	assert.InDelta(t, 0.95, root.Health, 1e-9)
}

func TestCancelTerminatesWeb(t *testing.T) {
	loop, st := testLoop(t)
	cfg := config.Defaults()
	cfg.TuningDimension = 16

	web, err := loop.CreateWeb(context.Background(), "long running task", cfg, "general")
	require.NoError(t, err)

	require.NoError(t, loop.Cancel(context.Background(), web.ID))

	w, err := st.GetWeb(context.Background(), web.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Terminated, w.State)

	root, err := st.GetAgent(context.Background(), web.RootID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateTerminated, root.State)
}
