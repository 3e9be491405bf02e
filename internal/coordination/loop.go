// Package coordination implements the top-level tick:
// timer sweep, signal delivery, concurrent capability execution, spawn /
// drift post-processing, validation scheduling, lifecycle transitions, and
// convergence detection. It is the only package that owns a web's forward
// progress; every other core package is pure or store-driven and is only
// ever called from here (or from tests exercising it directly).
package coordination

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Pharbi/arachnid/internal/capability"
	"github.com/Pharbi/arachnid/internal/config"
	"github.com/Pharbi/arachnid/internal/domain"
	coreerrors "github.com/Pharbi/arachnid/internal/errors"
	"github.com/Pharbi/arachnid/internal/health"
	"github.com/Pharbi/arachnid/internal/lifecycle"
	"github.com/Pharbi/arachnid/internal/logging"
	"github.com/Pharbi/arachnid/internal/memory"
	"github.com/Pharbi/arachnid/internal/ports"
	"github.com/Pharbi/arachnid/internal/propagate"
	"github.com/Pharbi/arachnid/internal/spawn"
	"github.com/Pharbi/arachnid/internal/telemetry"
	"github.com/Pharbi/arachnid/internal/validate"
	"github.com/Pharbi/arachnid/internal/vector"
)

// Activation pairs an agent with the signal that triggers its next
// capability execution.
type Activation struct {
	AgentID string
	Trigger *domain.Signal
}

// Loop drives one or more webs' ticks. A single Loop instance is meant to be
// shared process-wide: it holds no per-web state beyond the small in-memory
// activation/buffer queues keyed by web/agent id, everything durable lives in
// the Store.
type Loop struct {
	store        ports.Store
	memory       *memory.Store
	propagator   *propagate.Propagator
	spawner      *spawn.Protocol
	lifecycle    *lifecycle.Manager
	validator    *validate.Scheduler
	capabilities *capability.Registry
	providers    ports.Providers
	sink         ports.EventSink
	metrics      *Metrics
	meter        *telemetry.MeterProvider
	tracer       trace.Tracer
	logger       logging.Logger

	mu        sync.Mutex
	pending   map[string][]Activation       // webID -> activations queued ahead of the next Tick
	buffered  map[string][]*domain.Signal    // agentID -> signals buffered while Active
	executing map[string]bool                // agentID -> true while a capability call is in flight
}

// New constructs a Loop over store, using capabilities to dispatch execution
// and sink to publish coordination events.
func New(store ports.Store, providers ports.Providers, capabilities *capability.Registry, sink ports.EventSink) *Loop {
	mem := memory.New(store)
	return &Loop{
		store:        store,
		memory:       mem,
		propagator:   propagate.New(store),
		spawner:      spawn.New(store, mem, providers.Embedding),
		lifecycle:    lifecycle.New(store, mem),
		validator:    validate.New(store, providers.LLM),
		capabilities: capabilities,
		providers:    providers,
		sink:         sink,
		metrics:      defaultMetrics(),
		meter:        &telemetry.MeterProvider{},
		tracer:       otel.Tracer("arachnid/coordination"),
		logger:       logging.NewComponent("coordination", slog.LevelInfo),
		pending:      map[string][]Activation{},
		buffered:     map[string][]*domain.Signal{},
		executing:    map[string]bool{},
	}
}

// WithMetrics overrides the Prometheus collectors (tests typically pass a
// fresh registry to avoid collisions with the process-wide default).
func (l *Loop) WithMetrics(m *Metrics) *Loop { l.metrics = m; return l }

// WithTracer overrides the OpenTelemetry tracer.
func (l *Loop) WithTracer(t trace.Tracer) *Loop { l.tracer = t; return l }

// WithMeter overrides the OpenTelemetry meter provider.
func (l *Loop) WithMeter(m *telemetry.MeterProvider) *Loop { l.meter = m; return l }

// WithLogger overrides the logger.
func (l *Loop) WithLogger(lg logging.Logger) *Loop { l.logger = logging.OrNop(lg); return l }

// CreateWeb creates a web and its root agent: the root
// starts Active and is queued for execution against the task itself as its
// trigger, seeded via the embedding provider (root-injection of the initial
// task).
func (l *Loop) CreateWeb(ctx context.Context, task string, cfg config.RuntimeConfig, rootCapability string) (*domain.Web, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	embedding, err := l.providers.Embedding.Embed(ctx, task)
	if err != nil {
		return nil, coreerrors.NewCapabilityFailure("embedding root task", err)
	}
	if embedding.Dim() != cfg.TuningDimension {
		return nil, coreerrors.NewConfigurationInvalid("embedding dimension does not match tuning_dimension")
	}

	now := time.Now()
	web := domain.NewWeb(task, cfg)
	root := &domain.Agent{
		ID:                  domain.NewID(),
		WebID:               web.ID,
		Purpose:             task,
		Tuning:              embedding,
		Capability:          rootCapability,
		State:               domain.StateActive,
		Health:              1.0,
		ActivationThreshold: cfg.DefaultThreshold,
		ProbationRemaining:  cfg.ProbationPeriod,
		CreatedAt:           now,
		LastActiveAt:        now,
		Context:             domain.Context{Purpose: task},
		DriftWindow:         vector.NewWindow(cfg.TuningDriftWindow),
	}
	web.RootID = root.ID
	web.State = domain.Running

	if err := l.store.SaveWeb(ctx, web); err != nil {
		return nil, err
	}
	if err := l.store.SaveAgent(ctx, root); err != nil {
		return nil, err
	}

	trigger := domain.NewSignal(web.ID, root.ID, embedding, task, 1.0, domain.Downward)
	trigger.Processed = true
	if err := l.store.SaveSignal(ctx, trigger); err != nil {
		return nil, err
	}

	l.publish(ports.Event{Kind: ports.EventWebCreated, WebID: web.ID, At: now})
	l.publish(ports.Event{Kind: ports.EventAgentSpawned, WebID: web.ID, AgentID: root.ID, At: now, Data: map[string]any{"purpose": task}})
	l.metrics.incAgentsSpawned()
	l.refreshWebsActive(ctx)

	l.queueActivation(web.ID, Activation{AgentID: root.ID, Trigger: trigger})
	return web, nil
}

func (l *Loop) queueActivation(webID string, a Activation) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending[webID] = append(l.pending[webID], a)
}

func (l *Loop) drainPending(webID string) []Activation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.pending[webID]
	delete(l.pending, webID)
	return out
}

func (l *Loop) publish(e ports.Event) {
	if l.sink == nil {
		return
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	l.sink.Publish(e)
}

// GetWeb returns webID's current snapshot without advancing its tick.
func (l *Loop) GetWeb(ctx context.Context, webID string) (*domain.Web, error) {
	return l.store.GetWeb(ctx, webID)
}

// refreshWebsActive recomputes the webs_active gauge from the store's
// running-web count. Called after any operation that can move a web into or
// out of Running; best-effort, a lookup failure just leaves the gauge stale
// rather than failing the caller's operation.
func (l *Loop) refreshWebsActive(ctx context.Context) {
	running, err := l.store.ListRunningWebs(ctx)
	if err != nil {
		return
	}
	l.metrics.setWebsActive(len(running))
}

// Tick runs one full pass of the seven coordination steps against webID and
// returns the web's state after the pass.
func (l *Loop) Tick(ctx context.Context, webID string) (*domain.Web, error) {
	ctx, span := l.tracer.Start(ctx, "coordination.tick", trace.WithAttributes(attribute.String("web_id", webID)))
	defer span.End()

	web, err := l.store.GetWeb(ctx, webID)
	if err != nil {
		return nil, err
	}
	cfg := web.Config
	now := time.Now()

	if err := l.timed("sweep", func() error { return l.lifecycle.Sweep(ctx, webID, cfg, now) }); err != nil {
		return web, err
	}

	var activations []Activation
	if err := l.timed("deliver", func() error {
		var derr error
		activations, derr = l.deliverSignals(ctx, webID, cfg)
		return derr
	}); err != nil {
		return web, err
	}
	activations = append(l.drainPending(webID), activations...)

	var results []execResult
	if err := l.timed("execute", func() error {
		var derr error
		results, derr = l.executeActivations(ctx, webID, cfg, activations)
		return derr
	}); err != nil {
		return web, err
	}

	var pendingValidation []validate.PendingResult
	if err := l.timed("post_execute", func() error {
		var derr error
		pendingValidation, derr = l.postExecute(ctx, webID, cfg, results)
		return derr
	}); err != nil {
		return web, err
	}

	if err := l.timed("validate", func() error {
		return l.runValidation(ctx, webID, cfg, pendingValidation, len(results))
	}); err != nil {
		return web, err
	}

	if err := l.timed("lifecycle", func() error {
		return l.lifecycle.ApplyHealthTransitions(ctx, webID, cfg)
	}); err != nil {
		return web, err
	}

	var final *domain.Web
	if err := l.timed("convergence", func() error {
		var derr error
		final, derr = l.checkConvergence(ctx, webID, cfg)
		return derr
	}); err != nil {
		return web, err
	}
	return final, nil
}

func (l *Loop) timed(phase string, fn func() error) error {
	start := time.Now()
	err := fn()
	if err != nil {
		l.metrics.incPhaseFailure(phase, "error")
		l.metrics.observePhase(phase, "error", time.Since(start))
		l.logger.Warn("coordination phase %s failed: %v", phase, err)
		return err
	}
	l.metrics.observePhase(phase, "ok", time.Since(start))
	return nil
}

// deliverSignals pops all unprocessed signals in FIFO order (creation time,
// then id) and runs the propagator over each.
func (l *Loop) deliverSignals(ctx context.Context, webID string, cfg config.RuntimeConfig) ([]Activation, error) {
	signals, err := l.store.PendingSignals(ctx, webID)
	if err != nil {
		return nil, err
	}
	sort.Slice(signals, func(i, j int) bool {
		if signals[i].CreatedAt.Equal(signals[j].CreatedAt) {
			return signals[i].ID < signals[j].ID
		}
		return signals[i].CreatedAt.Before(signals[j].CreatedAt)
	})

	var activations []Activation
	for _, sig := range signals {
		result, err := l.propagator.Propagate(ctx, sig, cfg)
		if err != nil {
			return activations, err
		}
		if err := l.store.SaveSignal(ctx, sig); err != nil {
			return activations, err
		}
		for _, d := range result.Deliveries {
			if err := l.store.SaveAgent(ctx, d.Agent); err != nil {
				return activations, err
			}
			l.publish(ports.Event{
				Kind: ports.EventSignalDelivered, WebID: webID, AgentID: d.Agent.ID,
				Data: map[string]any{"eff": d.Verdict.Eff, "sim": d.Verdict.Sim, "activated": d.Activated},
			})
			l.meter.RecordDelivery(ctx, webID, d.Verdict.Eff, d.Activated)
			if d.Activated {
				activations = append(activations, Activation{AgentID: d.Agent.ID, Trigger: d.Signal})
				l.meter.AgentActivated(ctx)
				l.publish(ports.Event{Kind: ports.EventAgentStateChanged, WebID: webID, AgentID: d.Agent.ID, Data: map[string]any{"state": d.Agent.State.String()}})
			} else if d.Verdict.Resonant && d.Agent.State == domain.StateActive {
				// already executing this tick: buffer the re-trigger for
				// delivery once the agent returns to Listening.
				l.mu.Lock()
				l.buffered[d.Agent.ID] = append(l.buffered[d.Agent.ID], d.Signal)
				l.mu.Unlock()
			}
		}
	}
	return activations, nil
}

// execResult is one capability call's outcome, carried from executeActivations
// into postExecute.
type execResult struct {
	AgentID string
	Trigger *domain.Signal
	Result  ports.ExecutionResult
	Err     error
	Timeout bool
	Skipped bool // buffered behind an in-flight execution; not actually run
}

// executeActivations enforces the at-most-one
// concurrent execution invariant: one goroutine per distinct activated
// agent, awaited together, capability failures absorbed into the result
// rather than aborting the group.
func (l *Loop) executeActivations(ctx context.Context, webID string, cfg config.RuntimeConfig, activations []Activation) ([]execResult, error) {
	unique := map[string]Activation{}
	var order []string
	for _, a := range activations {
		if _, ok := unique[a.AgentID]; ok {
			// second trigger for the same agent this tick: buffer it.
			l.mu.Lock()
			l.buffered[a.AgentID] = append(l.buffered[a.AgentID], a.Trigger)
			l.mu.Unlock()
			continue
		}
		unique[a.AgentID] = a
		order = append(order, a.AgentID)
	}

	results := make([]execResult, len(order))
	var g errgroup.Group
	for i, agentID := range order {
		i, agentID := i, agentID
		activation := unique[agentID]

		l.mu.Lock()
		alreadyRunning := l.executing[agentID]
		if !alreadyRunning {
			l.executing[agentID] = true
		}
		l.mu.Unlock()
		if alreadyRunning {
			l.mu.Lock()
			l.buffered[agentID] = append(l.buffered[agentID], activation.Trigger)
			l.mu.Unlock()
			results[i] = execResult{AgentID: agentID, Trigger: activation.Trigger, Skipped: true}
			continue
		}

		g.Go(func() error {
			defer func() {
				l.mu.Lock()
				delete(l.executing, agentID)
				l.mu.Unlock()
			}()
			results[i] = l.runOne(ctx, webID, cfg, activation)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (l *Loop) runOne(ctx context.Context, webID string, cfg config.RuntimeConfig, a Activation) execResult {
	agent, err := l.store.GetAgent(ctx, a.AgentID)
	if err != nil || agent.State.Terminal() {
		return execResult{AgentID: a.AgentID, Trigger: a.Trigger, Err: err}
	}

	execCtx, cancel := context.WithTimeout(ctx, cfg.ExecutionTimeout)
	defer cancel()
	execCtx, span := l.tracer.Start(execCtx, "coordination.execute",
		trace.WithAttributes(attribute.String("agent_id", agent.ID), attribute.String("capability", agent.Capability)))
	defer span.End()

	fn, ok := l.capabilities.Get(agent.Capability)
	if !ok {
		return execResult{
			AgentID: a.AgentID, Trigger: a.Trigger,
			Result: ports.ExecutionResult{Status: ports.StatusFailed, Reason: "no capability registered for tag " + agent.Capability},
		}
	}

	result, err := fn(execCtx, agent.Context, ports.Trigger{Signal: a.Trigger, MaxPromptTokens: cfg.MaxPromptTokens}, l.providers)
	if execCtx.Err() == context.DeadlineExceeded {
		return execResult{AgentID: a.AgentID, Trigger: a.Trigger, Timeout: true}
	}
	if err != nil {
		return execResult{AgentID: a.AgentID, Trigger: a.Trigger, Result: ports.ExecutionResult{Status: ports.StatusFailed, Reason: err.Error()}, Err: err}
	}
	return execResult{AgentID: a.AgentID, Trigger: a.Trigger, Result: result}
}

// postExecute appends context, enqueues emitted signals, resolves needs
// through the spawn protocol, applies tuning drift for successful
// executions, and returns the executor to Listening.
func (l *Loop) postExecute(ctx context.Context, webID string, cfg config.RuntimeConfig, results []execResult) ([]validate.PendingResult, error) {
	var pending []validate.PendingResult
	now := time.Now()

	rootID := webRoot(ctx, l.store, webID)

	for _, r := range results {
		if r.Skipped {
			continue
		}
		agent, err := l.store.GetAgent(ctx, r.AgentID)
		if err != nil {
			continue
		}

		if r.Timeout {
			agent.Health -= cfg.HealthPenaltyChallenge / 2
			agent.ClampHealth()
			agent.Context.Warnings = append(agent.Context.Warnings, "execution timeout: "+agent.Capability)
			agent.State = domain.StateListening
			agent.LastActiveAt = now
			if err := l.store.SaveAgent(ctx, agent); err != nil {
				return pending, err
			}
			continue
		}

		res := r.Result
		switch res.Status {
		case ports.StatusFailed:
			agent.Context.Warnings = append(agent.Context.Warnings, "execution failed: "+res.Reason)
		case ports.StatusComplete:
			agent.Context.AppendKnowledge(res.Output)
			if agent.ID == rootID {
				agent.HasOutput = true
			}
		case ports.StatusNeedsMore:
			agent.Context.AppendKnowledge(res.Output)
		}

		for _, sig := range res.Signals {
			sig.WebID = agent.WebID
			if sig.OriginAgentID == "" {
				sig.OriginAgentID = agent.ID
			}
			if err := l.store.SaveSignal(ctx, sig); err != nil {
				return pending, err
			}
			l.metrics.incSignalsEmitted()
			l.publish(ports.Event{Kind: ports.EventSignalEmitted, WebID: webID, AgentID: agent.ID})
		}

		for _, need := range res.Needs {
			if err := l.handleNeed(ctx, webID, agent, need, cfg); err != nil {
				return pending, err
			}
		}

		if res.Status != ports.StatusFailed && r.Trigger != nil {
			health.ApplyDrift(agent, r.Trigger.Frequency, cfg)
		}

		agent.State = domain.StateListening
		agent.LastActiveAt = now
		if err := l.store.SaveAgent(ctx, agent); err != nil {
			return pending, err
		}
		l.meter.AgentDeactivated(ctx)

		impact := res.DeclaredImpact
		if impact <= 0 {
			impact = 0.5
		}
		uncertainty := res.DeclaredUncertainty
		if uncertainty <= 0 {
			uncertainty = 0.5
		}
		if res.Status == ports.StatusFailed {
			uncertainty = 1.0
		}
		pending = append(pending, validate.PendingResult{
			AgentID: agent.ID, WebID: webID, Output: res.Output,
			Impact: impact, Uncertainty: uncertainty, CreatedAt: now,
		})

		l.redeliverBuffered(ctx, agent.ID, cfg)
	}
	return pending, nil
}

// redeliverBuffered re-queues any signals buffered while agentID was Active
//, turning the
// first one into a fresh pending activation for the next tick.
func (l *Loop) redeliverBuffered(ctx context.Context, agentID string, cfg config.RuntimeConfig) {
	l.mu.Lock()
	queued := l.buffered[agentID]
	if len(queued) == 0 {
		l.mu.Unlock()
		return
	}
	next := queued[0]
	l.buffered[agentID] = queued[1:]
	l.mu.Unlock()

	agent, err := l.store.GetAgent(ctx, agentID)
	if err != nil || agent.State.Terminal() {
		return
	}
	agent.State = domain.StateActive
	agent.DormantSince = nil
	_ = l.store.SaveAgent(ctx, agent)
	webID := agent.WebID
	l.queueActivation(webID, Activation{AgentID: agentID, Trigger: next})
}

func (l *Loop) handleNeed(ctx context.Context, webID string, requester *domain.Agent, need ports.Need, cfg config.RuntimeConfig) error {
	outcome, err := l.spawner.Handle(ctx, requester.ID, need, cfg)
	if err != nil {
		return err
	}
	switch {
	case outcome.Reused:
		if err := l.store.SaveSignal(ctx, outcome.Routed); err != nil {
			return err
		}
		l.publish(ports.Event{Kind: ports.EventSignalEmitted, WebID: webID, AgentID: requester.ID, Data: map[string]any{"reused": true}})
	case outcome.Refused:
		l.logger.Warn("spawn refused for agent %s: web limits exceeded", requester.ID)
	case outcome.Child != nil:
		if err := l.store.SaveSignal(ctx, outcome.Kick); err != nil {
			return err
		}
		l.metrics.incAgentsSpawned()
		l.publish(ports.Event{Kind: ports.EventAgentSpawned, WebID: webID, AgentID: outcome.Child.ID, Data: map[string]any{"parent_id": requester.ID}})
		l.publish(ports.Event{Kind: ports.EventSignalEmitted, WebID: webID, AgentID: requester.ID})
	}
	return nil
}

// runValidation ranks pending results by priority and validates up to the
// per-tick budget (ceil(executed/divisor)).
func (l *Loop) runValidation(ctx context.Context, webID string, cfg config.RuntimeConfig, pending []validate.PendingResult, executed int) error {
	if len(pending) == 0 {
		return nil
	}
	budget := validate.Budget(executed, cfg.ValidationBudgetDivisor)
	records, err := l.validator.Run(ctx, pending, cfg, budget)
	for _, rec := range records {
		l.publish(ports.Event{
			Kind: ports.EventValidationDone, WebID: webID, AgentID: rec.TargetAgentID,
			Data: map[string]any{"judgment": rec.Judgment.String(), "confidence": rec.Confidence},
		})
		l.meter.RecordValidation(ctx, rec.Judgment.String())
	}
	return err
}

// checkConvergence decides whether a web has converged, failed, or should keep running.
func (l *Loop) checkConvergence(ctx context.Context, webID string, cfg config.RuntimeConfig) (*domain.Web, error) {
	web, err := l.store.GetWeb(ctx, webID)
	if err != nil {
		return nil, err
	}
	if web.State != domain.Running {
		return web, nil
	}

	agents, err := l.store.ListAgents(ctx, webID)
	if err != nil {
		return web, err
	}
	activeCount := 0
	for _, a := range agents {
		if a.State == domain.StateActive {
			activeCount++
		}
	}
	pendingSignals, err := l.store.PendingSignals(ctx, webID)
	if err != nil {
		return web, err
	}
	root, err := l.store.GetAgent(ctx, web.RootID)
	if err != nil {
		return web, err
	}

	if activeCount == 0 && len(pendingSignals) == 0 && root.HasOutput {
		web.State = domain.Converged
		if err := l.store.SaveWeb(ctx, web); err != nil {
			return web, err
		}
		l.publish(ports.Event{Kind: ports.EventWebConverged, WebID: webID})
		l.refreshWebsActive(ctx)
		return web, nil
	}

	failed := root.Health < cfg.WinddownThreshold ||
		web.Age() > cfg.MaxDuration ||
		(activeCount == 0 && len(pendingSignals) == 0 && !root.HasOutput)
	if failed {
		web.State = domain.Failed
		if err := l.store.SaveWeb(ctx, web); err != nil {
			return web, err
		}
		l.publish(ports.Event{Kind: ports.EventWebFailed, WebID: webID})
		l.refreshWebsActive(ctx)
	}
	return web, nil
}

// Cancel drains pending signals, winds every non-terminal agent down, and
// marks the web Terminated.
func (l *Loop) Cancel(ctx context.Context, webID string) error {
	signals, err := l.store.PendingSignals(ctx, webID)
	if err != nil {
		return err
	}
	for _, s := range signals {
		s.Processed = true
		if err := l.store.SaveSignal(ctx, s); err != nil {
			return err
		}
	}

	web, err := l.store.GetWeb(ctx, webID)
	if err != nil {
		return err
	}
	cfg := web.Config
	agents, err := l.store.ListAgents(ctx, webID)
	if err != nil {
		return err
	}
	for _, a := range agents {
		if a.State.Terminal() || a.State == domain.StateWindingDown {
			continue
		}
		if err := l.lifecycle.ForceWindDown(ctx, a, cfg); err != nil {
			return err
		}
		l.metrics.incAgentsReaped()
	}

	web.State = domain.Terminated
	if err := l.store.SaveWeb(ctx, web); err != nil {
		return err
	}
	l.refreshWebsActive(ctx)
	return nil
}

func webRoot(ctx context.Context, store ports.Store, webID string) string {
	w, err := store.GetWeb(ctx, webID)
	if err != nil {
		return ""
	}
	return w.RootID
}
