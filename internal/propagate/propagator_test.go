package propagate

import (
	"context"
	"math"
	"strconv"
	"testing"

	"github.com/Pharbi/arachnid/internal/config"
	"github.com/Pharbi/arachnid/internal/domain"
	"github.com/Pharbi/arachnid/internal/store"
	"github.com/Pharbi/arachnid/internal/vector"
	"github.com/stretchr/testify/require"

	"github.com/stretchr/testify/assert"
)

func mustSaveAgent(t *testing.T, s *store.MemStore, a *domain.Agent) {
	t.Helper()
	require.NoError(t, s.SaveAgent(context.Background(), a))
}

func TestPropagateAttenuationDeath(t *testing.T) {
	// Amplitude 1.0, attenuation 0.8, min 0.1: dies after the 11th hop, so a
	// straight-line descendant chain 20 deep should only ever deliver to the
	// first 10.
	ms := store.NewMemStore()
	cfg := config.Defaults()
	cfg.MaxDepth = 20

	root := &domain.Agent{ID: "a0", WebID: "w1", Tuning: vector.Vector{1, 0}, State: domain.StateActive}
	mustSaveAgent(t, ms, root)
	parentID := root.ID
	for i := 1; i <= 20; i++ {
		id := "a" + strconv.Itoa(i)
		a := &domain.Agent{ID: id, WebID: "w1", ParentID: parentID, Tuning: vector.Vector{1, 0}, ActivationThreshold: 0.1, State: domain.StateListening}
		mustSaveAgent(t, ms, a)
		parentID = id
	}

	sig := domain.NewSignal("w1", "a0", vector.Vector{1, 0}, "need", 1.0, domain.Downward)
	res, err := New(ms).Propagate(context.Background(), sig, cfg)
	require.NoError(t, err)
	require.Len(t, res.Deliveries, 10)
	assert.Equal(t, "a10", res.Deliveries[9].Agent.ID)
	assert.InDelta(t, math.Pow(0.8, 10), res.Deliveries[9].Signal.Amplitude, 1e-9)
}

func TestPropagateBranchingTreeAttenuatesByDepthNotEnumeration(t *testing.T) {
	ms := store.NewMemStore()
	cfg := config.Defaults()
	cfg.MaxDepth = 5

	root := &domain.Agent{ID: "root", WebID: "w1", Tuning: vector.Vector{1, 0}, State: domain.StateActive}
	mustSaveAgent(t, ms, root)

	var children []*domain.Agent
	var grandchildren []*domain.Agent
	for i := 0; i < 3; i++ {
		c := &domain.Agent{ID: "c" + strconv.Itoa(i), WebID: "w1", ParentID: "root", Tuning: vector.Vector{1, 0}, ActivationThreshold: 0.1, State: domain.StateListening}
		mustSaveAgent(t, ms, c)
		children = append(children, c)

		gc := &domain.Agent{ID: "gc" + strconv.Itoa(i), WebID: "w1", ParentID: c.ID, Tuning: vector.Vector{1, 0}, ActivationThreshold: 0.1, State: domain.StateListening}
		mustSaveAgent(t, ms, gc)
		grandchildren = append(grandchildren, gc)
	}

	sig := domain.NewSignal("w1", "root", vector.Vector{1, 0}, "need", 1.0, domain.Downward)
	res, err := New(ms).Propagate(context.Background(), sig, cfg)
	require.NoError(t, err)
	require.Len(t, res.Deliveries, 6)

	byID := map[string]Delivery{}
	for _, d := range res.Deliveries {
		byID[d.Agent.ID] = d
	}

	for _, c := range children {
		d, ok := byID[c.ID]
		require.True(t, ok, "missing delivery for %s", c.ID)
		assert.InDelta(t, 0.8, d.Signal.Amplitude, 1e-9, "depth-1 agent %s should attenuate by factor^1", c.ID)
		assert.Equal(t, 1, d.Signal.HopCount)
	}
	for _, gc := range grandchildren {
		d, ok := byID[gc.ID]
		require.True(t, ok, "missing delivery for %s", gc.ID)
		assert.InDelta(t, 0.64, d.Signal.Amplitude, 1e-9, "depth-2 agent %s should attenuate by factor^2, not by flattened enumeration order", gc.ID)
		assert.Equal(t, 2, d.Signal.HopCount)
	}
}

func TestPropagateDownwardActivatesListeningChild(t *testing.T) {
	ms := store.NewMemStore()
	cfg := config.Defaults()
	root := &domain.Agent{ID: "root", WebID: "w1", Tuning: vector.Vector{1, 0}, ActivationThreshold: 0.5, State: domain.StateActive}
	child := &domain.Agent{ID: "child", WebID: "w1", ParentID: "root", Tuning: vector.Vector{1, 0}, ActivationThreshold: 0.5, State: domain.StateListening}
	mustSaveAgent(t, ms, root)
	mustSaveAgent(t, ms, child)

	sig := domain.NewSignal("w1", "root", vector.Vector{1, 0}, "need", 1.0, domain.Downward)
	p := New(ms)
	res, err := p.Propagate(context.Background(), sig, cfg)
	require.NoError(t, err)
	require.Len(t, res.Deliveries, 1)
	assert.True(t, res.Deliveries[0].Activated)
	assert.Equal(t, "child", res.Deliveries[0].Agent.ID)
	assert.False(t, res.Unheard)
}

func TestPropagateSkipsTerminatedAgents(t *testing.T) {
	ms := store.NewMemStore()
	cfg := config.Defaults()
	root := &domain.Agent{ID: "root", WebID: "w1", Tuning: vector.Vector{1, 0}, State: domain.StateActive}
	dead := &domain.Agent{ID: "dead", WebID: "w1", ParentID: "root", Tuning: vector.Vector{1, 0}, State: domain.StateTerminated}
	mustSaveAgent(t, ms, root)
	mustSaveAgent(t, ms, dead)

	sig := domain.NewSignal("w1", "root", vector.Vector{1, 0}, "need", 1.0, domain.Downward)
	res, err := New(ms).Propagate(context.Background(), sig, cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Deliveries)
	assert.True(t, res.Unheard)
}

func TestPropagateUpwardVisitsAncestors(t *testing.T) {
	ms := store.NewMemStore()
	cfg := config.Defaults()
	grandparent := &domain.Agent{ID: "gp", WebID: "w1", Tuning: vector.Vector{1, 0}, ActivationThreshold: 0.5, State: domain.StateListening}
	parent := &domain.Agent{ID: "p", WebID: "w1", ParentID: "gp", Tuning: vector.Vector{1, 0}, ActivationThreshold: 0.5, State: domain.StateListening}
	child := &domain.Agent{ID: "c", WebID: "w1", ParentID: "p", Tuning: vector.Vector{1, 0}, State: domain.StateActive}
	mustSaveAgent(t, ms, grandparent)
	mustSaveAgent(t, ms, parent)
	mustSaveAgent(t, ms, child)

	sig := domain.NewSignal("w1", "c", vector.Vector{1, 0}, "escalate", 1.0, domain.Upward)
	res, err := New(ms).Propagate(context.Background(), sig, cfg)
	require.NoError(t, err)
	require.Len(t, res.Deliveries, 2)
	assert.Equal(t, "p", res.Deliveries[0].Agent.ID)
	assert.Equal(t, "gp", res.Deliveries[1].Agent.ID)
}

func TestPropagateMarksSuspectFromQuarantinedOrigin(t *testing.T) {
	ms := store.NewMemStore()
	cfg := config.Defaults()
	root := &domain.Agent{ID: "root", WebID: "w1", Tuning: vector.Vector{1, 0}, State: domain.StateQuarantine}
	child := &domain.Agent{ID: "child", WebID: "w1", ParentID: "root", Tuning: vector.Vector{1, 0}, ActivationThreshold: 0.1, State: domain.StateListening}
	mustSaveAgent(t, ms, root)
	mustSaveAgent(t, ms, child)

	sig := domain.NewSignal("w1", "root", vector.Vector{1, 0}, "need", 1.0, domain.Downward)
	_, err := New(ms).Propagate(context.Background(), sig, cfg)
	require.NoError(t, err)
	assert.True(t, sig.Suspect)
}

func TestPropagateHaltsAtMaxDepth(t *testing.T) {
	ms := store.NewMemStore()
	cfg := config.Defaults()
	cfg.MaxDepth = 1
	root := &domain.Agent{ID: "root", WebID: "w1", Tuning: vector.Vector{1, 0}, State: domain.StateActive}
	a := &domain.Agent{ID: "a", WebID: "w1", ParentID: "root", Tuning: vector.Vector{1, 0}, ActivationThreshold: 0.1, State: domain.StateListening}
	b := &domain.Agent{ID: "b", WebID: "w1", ParentID: "a", Tuning: vector.Vector{1, 0}, ActivationThreshold: 0.1, State: domain.StateListening}
	mustSaveAgent(t, ms, root)
	mustSaveAgent(t, ms, a)
	mustSaveAgent(t, ms, b)

	sig := domain.NewSignal("w1", "root", vector.Vector{1, 0}, "need", 1.0, domain.Downward)
	res, err := New(ms).Propagate(context.Background(), sig, cfg)
	require.NoError(t, err)
	assert.Len(t, res.Deliveries, 1)
}
