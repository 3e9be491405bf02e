// Package store provides the reference Store implementation: an
// in-memory arena of webs/agents/signals/validations/memory entries keyed by
// id, with a chromem-go backed vector index for nearest_by_tuning lookups.
// Lineage queries are structural traversals over the arena, never
// direct pointer chases, so the DAG's edges stay simple id fields.
package store

import (
	"context"
	"sync"

	"github.com/Pharbi/arachnid/internal/domain"
	coreerrors "github.com/Pharbi/arachnid/internal/errors"
	"github.com/Pharbi/arachnid/internal/vector"
)

// MemStore is an in-process, non-durable Store. It satisfies the recovery
// contract trivially: nothing to resume, since nothing survives a restart.
type MemStore struct {
	mu sync.RWMutex

	webs       map[string]*domain.Web
	agents     map[string]*domain.Agent
	children   map[string][]string // parentID -> childIDs, insertion order
	signals    map[string][]*domain.Signal
	validations map[string][]domain.ValidationRecord
	memory     map[string][]domain.WebMemoryEntry

	index *VectorIndex
}

// NewMemStore constructs an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		webs:        map[string]*domain.Web{},
		agents:      map[string]*domain.Agent{},
		children:    map[string][]string{},
		signals:     map[string][]*domain.Signal{},
		validations: map[string][]domain.ValidationRecord{},
		memory:      map[string][]domain.WebMemoryEntry{},
		index:       NewVectorIndex(),
	}
}

func (m *MemStore) SaveWeb(_ context.Context, w *domain.Web) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.webs[w.ID] = &cp
	return nil
}

func (m *MemStore) GetWeb(_ context.Context, id string) (*domain.Web, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.webs[id]
	if !ok {
		return nil, coreerrors.NewStoreUnavailable("web not found: "+id, nil)
	}
	cp := *w
	return &cp, nil
}

func (m *MemStore) ListRunningWebs(_ context.Context) ([]*domain.Web, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Web
	for _, w := range m.webs {
		if w.State == domain.Running {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemStore) SaveAgent(_ context.Context, a *domain.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, existed := m.agents[a.ID]; !existed && a.ParentID != "" {
		m.children[a.ParentID] = append(m.children[a.ParentID], a.ID)
	}
	cp := *a
	m.agents[a.ID] = &cp
	if a.State != domain.StateTerminated {
		m.index.Upsert(a.WebID, a.ID, a.Tuning)
	} else {
		m.index.Remove(a.WebID, a.ID)
	}
	return nil
}

func (m *MemStore) Reparent(_ context.Context, agentID, newParentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[agentID]
	if !ok {
		return coreerrors.NewStoreUnavailable("agent not found: "+agentID, nil)
	}
	oldParentID := a.ParentID
	siblings := m.children[oldParentID]
	for i, id := range siblings {
		if id == agentID {
			m.children[oldParentID] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	a.ParentID = newParentID
	m.children[newParentID] = append(m.children[newParentID], agentID)
	return nil
}

func (m *MemStore) GetAgent(_ context.Context, id string) (*domain.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, coreerrors.NewStoreUnavailable("agent not found: "+id, nil)
	}
	cp := *a
	return &cp, nil
}

func (m *MemStore) ListAgents(_ context.Context, webID string) ([]*domain.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Agent
	for _, a := range m.agents {
		if a.WebID == webID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemStore) SaveSignal(_ context.Context, s *domain.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.signals[s.WebID]
	for i, existing := range list {
		if existing.ID == s.ID {
			list[i] = s
			return nil
		}
	}
	m.signals[s.WebID] = append(list, s)
	return nil
}

func (m *MemStore) PendingSignals(_ context.Context, webID string) ([]*domain.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Signal
	for _, s := range m.signals[webID] {
		if !s.Processed {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemStore) SaveValidation(_ context.Context, v domain.ValidationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.validations[v.TargetAgentID] = append(m.validations[v.TargetAgentID], v)
	return nil
}

func (m *MemStore) ListValidations(_ context.Context, agentID string) ([]domain.ValidationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ValidationRecord, len(m.validations[agentID]))
	copy(out, m.validations[agentID])
	return out, nil
}

func (m *MemStore) SaveMemoryEntry(_ context.Context, e domain.WebMemoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memory[e.WebID] = append(m.memory[e.WebID], e)
	return nil
}

func (m *MemStore) ListMemoryEntries(_ context.Context, webID string) ([]domain.WebMemoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.WebMemoryEntry, len(m.memory[webID]))
	copy(out, m.memory[webID])
	return out, nil
}

// Ancestors walks parent_id links from agentID up to (and excluding) the
// root's non-existent parent, closest ancestor first.
func (m *MemStore) Ancestors(_ context.Context, agentID string) ([]*domain.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Agent
	cur, ok := m.agents[agentID]
	if !ok {
		return nil, coreerrors.NewStoreUnavailable("agent not found: "+agentID, nil)
	}
	seen := map[string]bool{agentID: true}
	for cur.ParentID != "" {
		parent, ok := m.agents[cur.ParentID]
		if !ok || seen[parent.ID] {
			break // missing/terminated ancestor or a cycle guard, never expected but never trusted
		}
		seen[parent.ID] = true
		cp := *parent
		out = append(out, &cp)
		cur = parent
	}
	return out, nil
}

// Descendants performs a BFS over child edges, each agent visited once.
func (m *MemStore) Descendants(_ context.Context, agentID string) ([]*domain.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Agent
	visited := map[string]bool{agentID: true}
	queue := append([]string{}, m.children[agentID]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if visited[id] {
			continue
		}
		visited[id] = true
		a, ok := m.agents[id]
		if !ok {
			continue
		}
		cp := *a
		out = append(out, &cp)
		queue = append(queue, m.children[id]...)
	}
	return out, nil
}

func (m *MemStore) Children(_ context.Context, agentID string) ([]*domain.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Agent
	for _, id := range m.children[agentID] {
		if a, ok := m.agents[id]; ok {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemStore) NearestByTuning(_ context.Context, webID string, v vector.Vector, topK int) ([]*domain.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.index.Query(webID, v, topK)
	out := make([]*domain.Agent, 0, len(ids))
	for _, id := range ids {
		if a, ok := m.agents[id]; ok {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}
