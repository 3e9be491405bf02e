package domain

import (
	"time"

	"github.com/Pharbi/arachnid/internal/config"
)

// WebState is the task-scoped execution scope's lifecycle state.
type WebState int

const (
	Initializing WebState = iota
	Running
	Converged
	Failed
	Terminated
)

func (s WebState) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Converged:
		return "converged"
	case Failed:
		return "failed"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Web is a task-scoped execution scope: exactly one root, whose
// living agents form a DAG, bounded by the snapshotted config's max_agents
// and max_depth.
type Web struct {
	ID        string
	RootID    string
	Task      string
	State     WebState
	CreatedAt time.Time
	Config    config.RuntimeConfig
}

// NewWeb constructs a Web in the Initializing state. RootID is filled in
// once the root agent is created (the spawn protocol's atomicity guarantee
// means these two constructions happen together at the call site).
func NewWeb(task string, cfg config.RuntimeConfig) *Web {
	return &Web{
		ID:        NewID(),
		Task:      task,
		State:     Initializing,
		CreatedAt: time.Now(),
		Config:    cfg,
	}
}

// Age returns how long the web has existed.
func (w *Web) Age() time.Duration {
	return time.Since(w.CreatedAt)
}
