package domain

import (
	"time"

	"github.com/Pharbi/arachnid/internal/vector"
)

// AgentState is the lifecycle state machine an agent moves through.
type AgentState int

const (
	StateActive AgentState = iota
	StateListening
	StateDormant
	StateQuarantine
	StateIsolated
	StateWindingDown
	StateTerminated
)

func (s AgentState) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateListening:
		return "listening"
	case StateDormant:
		return "dormant"
	case StateQuarantine:
		return "quarantine"
	case StateIsolated:
		return "isolated"
	case StateWindingDown:
		return "winding_down"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is Terminated; the lifecycle manager
// never re-awakens an agent past this point.
func (s AgentState) Terminal() bool { return s == StateTerminated }

// Context is an agent's accumulated working memory: its purpose,
// a bounded FIFO of recent knowledge items, and inherited failure warnings.
type Context struct {
	Purpose   string
	Knowledge []string
	Warnings  []string
}

// MaxKnowledgeItems bounds Context.Knowledge.
const MaxKnowledgeItems = 10

// AppendKnowledge appends item, evicting the oldest entry once the cap is
// exceeded.
func (c *Context) AppendKnowledge(item string) {
	c.Knowledge = append(c.Knowledge, item)
	if len(c.Knowledge) > MaxKnowledgeItems {
		c.Knowledge = c.Knowledge[len(c.Knowledge)-MaxKnowledgeItems:]
	}
}

// Agent is a node in a web's DAG.
type Agent struct {
	ID       string
	WebID    string
	ParentID string // "" for the root

	Purpose    string
	Tuning     vector.Vector
	Capability string

	State               AgentState
	Health              float64
	ActivationThreshold float64
	ProbationRemaining  int

	CreatedAt    time.Time
	LastActiveAt time.Time
	DormantSince *time.Time

	Context Context

	// PreviousNonPenaltyState remembers the state to restore on recovery from
	// Quarantine/Isolated.
	PreviousNonPenaltyState AgentState

	// DriftWindow accumulates triggering-signal frequencies for tuning drift
	//. Capacity is set at spawn time from the web's config.
	DriftWindow *vector.Window

	// HasOutput reports whether this agent has produced at least one
	// completed execution output (used by convergence detection for the
	// root).
	HasOutput bool

	// LastChallengedOutput backs the "matches a prior challenged output"
	// rule.
	LastChallengedOutput string
}

// IsResonanceEligible reports whether the agent can ever be resonant: never
// true for Terminated or WindingDown.
func (a *Agent) IsResonanceEligible() bool {
	return a.State != StateTerminated && a.State != StateWindingDown
}

// ClampHealth restores the [0,1] invariant after an update.
func (a *Agent) ClampHealth() {
	if a.Health < 0 {
		a.Health = 0
	}
	if a.Health > 1 {
		a.Health = 1
	}
}
