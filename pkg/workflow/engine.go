// Package workflow implements the Workflow Engine (spec §4.4): planning,
// the full_build phase machine, the quality loop, the deployment retry
// loop, dynamic progress, and refinement hooks. Grounded on the teacher's
// pkg/architect state-machine idiom (explicit transition map, phase handler
// functions) generalized from a single architect-review cycle to the
// spec's multi-phase, multi-role graph.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"agentcore/pkg/a2a"
	"agentcore/pkg/agent"
	"agentcore/pkg/config"
	"agentcore/pkg/handoff"
	"agentcore/pkg/llmio"
	"agentcore/pkg/logx"
	"agentcore/pkg/notify"
	"agentcore/pkg/orcherrors"
	"agentcore/pkg/orchstate"
	"agentcore/pkg/proto"
	"agentcore/pkg/registry"
	"agentcore/pkg/resilience"
	"agentcore/pkg/telemetry"
	"agentcore/pkg/toolprovider"
)

// phaseFunc executes one phase's work against st (which the caller has just
// loaded from durable state) and returns the phase to transition to next.
// A phaseFunc must not itself call Engine.states.Save for the transition —
// Run does that once, centrally, immediately after the phaseFunc returns —
// but it may (and for multi-step phases, should) save intermediate field
// changes on st before triggering an external side effect.
type phaseFunc func(ctx context.Context, e *Engine, st *orchstate.State) (orchstate.Phase, error)

var phaseHandlers = map[orchstate.Phase]phaseFunc{
	orchstate.PhasePlanning:       runPlanning,
	orchstate.PhaseDesign:         runDesign,
	orchstate.PhaseBackend:        runBackend,
	orchstate.PhaseImplementation: runImplementation,
	orchstate.PhaseReview:         runReview,
	orchstate.PhaseDeployment:     runDeployment,
}

// Engine drives one user's workflow at a time to completion, suspension, or
// failure. Every dependency is injected by reference (spec §9 REDESIGN
// FLAG against module-level singletons); Engine itself holds no package
// state.
type Engine struct {
	states   *orchstate.Store
	handoffs *handoff.Store
	registry *registry.Registry
	bus      *a2a.Bus
	notifier *notify.Channel
	tools    toolprovider.Provider
	llm      llmio.LLMCaller
	tracer   *telemetry.Tracer
	log      *logx.Logger
	cfg      *config.Config

	breakersMu sync.Mutex
	breakers   map[registry.Role]*resilience.Breaker
}

// New builds an Engine and wires the Agent Registry's lifecycle callbacks
// (warning/critical/terminated; OnHandoff is left unset) to this Engine's
// notification, handoff and cleanup logic, so those fire wherever usage is
// recorded (sendAgentTask) without the caller having to remember to
// register them.
func New(
	states *orchstate.Store,
	handoffs *handoff.Store,
	reg *registry.Registry,
	bus *a2a.Bus,
	notifier *notify.Channel,
	tools toolprovider.Provider,
	llm llmio.LLMCaller,
	tracer *telemetry.Tracer,
	log *logx.Logger,
	cfg *config.Config,
) *Engine {
	e := &Engine{
		states: states, handoffs: handoffs, registry: reg, bus: bus,
		notifier: notifier, tools: tools, llm: llm, tracer: tracer, log: log, cfg: cfg,
		breakers: make(map[registry.Role]*resilience.Breaker),
	}
	reg.RegisterCallbacks(registry.Callbacks{
		OnWarning: func(userID string, inst *registry.Instance) {
			notifier.Notify(context.Background(), userID, fmt.Sprintf("Heads up: the %s agent is approaching its context budget.", inst.Role))
		},
		OnCritical: func(userID string, inst *registry.Instance) {
			if _, err := e.initiateHandoff(context.Background(), userID, inst, "context_critical"); err != nil {
				e.log.Error("workflow: handoff for %s/%s failed: %v", userID, inst.Role, err)
			}
		},
		OnTerminated: func(userID string, inst *registry.Instance) {
			bus.Unregister(inst.AgentID, proto.Role(inst.Role))
		},
	})
	return e
}

// StartWorkflow creates and persists the initial Orchestrator State for a
// new workflow, then runs it to completion or suspension. Callers that want
// fire-and-forget semantics should invoke this in a goroutine.
func (e *Engine) StartWorkflow(ctx context.Context, userID, platform, originalPrompt string) error {
	existing, err := e.states.Load(userID)
	if err == nil && existing.IsActive {
		return fmt.Errorf("workflow: %w", orcherrors.ErrAlreadyActive)
	}
	if err != nil && !orchstate.IsNotFound(err) {
		return fmt.Errorf("workflow: load existing state: %w", err)
	}

	p := plan(ctx, e.llm, originalPrompt)
	st := &orchstate.State{
		UserID:         userID,
		Platform:       platform,
		IsActive:       true,
		CurrentPhase:   orchstate.PhasePlanning,
		WorkflowType:   p.WorkflowType,
		OriginalPrompt: originalPrompt,
		StepsTotal:     p.EstimatedSteps,
	}
	if err := e.states.Save(st); err != nil {
		return fmt.Errorf("workflow: save initial state: %w", err)
	}
	if err := e.states.AppendAudit(userID, "workflow_started", p); err != nil {
		e.log.Warn("workflow: append_audit workflow_started for %s: %v", userID, err)
	}
	return e.Run(ctx, userID)
}

// Run drives userID's workflow from its current persisted phase to a
// terminal phase (completed/failed/cancelled), or until ctx is cancelled.
// State is reloaded at the top of every iteration rather than threaded
// purely in memory, so a concurrent Refine/Cancel call (which persists
// directly) is picked up before the next phase's side effect runs, and so a
// process restart can resume Run from exactly where it left off (spec §4.3
// Recovery).
func (e *Engine) Run(ctx context.Context, userID string) error {
	span := e.tracer.StartRoot(telemetry.SpanWorkflow)
	span.SetAttribute("user_id", userID)
	defer span.End()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		st, err := e.states.Load(userID)
		if err != nil {
			span.Fail(err)
			return fmt.Errorf("workflow: load state for %s: %w", userID, err)
		}
		if isTerminal(st.CurrentPhase) {
			return nil
		}

		fn, ok := phaseHandlers[st.CurrentPhase]
		if !ok {
			return fmt.Errorf("workflow: no handler for phase %s", st.CurrentPhase)
		}

		next, runErr := fn(ctx, e, st)
		if runErr != nil {
			st.CurrentPhase = orchstate.PhaseFailed
			st.IsActive = false
			if saveErr := e.states.Save(st); saveErr != nil {
				e.log.Error("workflow: save failed-phase state for %s: %v", userID, saveErr)
			}
			_ = e.states.AppendAudit(userID, "workflow_failed", map[string]string{"error": runErr.Error(), "phase": string(st.CurrentPhase)})
			e.notifier.Notify(ctx, userID, "The workflow failed: "+runErr.Error())
			span.Fail(runErr)
			return runErr
		}

		if !canTransition(st.CurrentPhase, next) {
			return fmt.Errorf("workflow: illegal phase transition %s -> %s", st.CurrentPhase, next)
		}
		prev := st.CurrentPhase
		st.CurrentPhase = next
		st.IsActive = !isTerminal(next)
		if err := e.states.Save(st); err != nil {
			return fmt.Errorf("workflow: persist transition %s -> %s: %w", prev, next, err)
		}
		_ = e.states.AppendAudit(userID, "phase_transition", map[string]string{"from": string(prev), "to": string(next)})

		if isTerminal(next) {
			e.registry.ReleaseAll(userID)
			if next == orchstate.PhaseCompleted {
				e.notifier.Notify(ctx, userID, "Your workflow completed successfully.")
			}
			return nil
		}
	}
}

// Cancel marks userID's workflow cancelled and releases every agent
// instance it holds (spec §4.1 cancel_active, §4.5 cleanup).
func (e *Engine) Cancel(ctx context.Context, userID string) error {
	st, err := e.states.Load(userID)
	if err != nil {
		return err
	}
	st.CurrentPhase = orchstate.PhaseCancelled
	st.IsActive = false
	if err := e.states.Save(st); err != nil {
		return fmt.Errorf("workflow: persist cancellation for %s: %w", userID, err)
	}
	_ = e.states.AppendAudit(userID, "workflow_cancelled", nil)
	e.registry.ReleaseAll(userID)
	return nil
}

// breakerFor returns role's circuit breaker, creating it lazily on first
// use (spec §4.8: "per-service circuit breaker" — one instance per agent
// role here, since each role is dispatched to over the same a2a.Bus
// mechanism but represents an independently-failing external integration).
func (e *Engine) breakerFor(role registry.Role) *resilience.Breaker {
	e.breakersMu.Lock()
	defer e.breakersMu.Unlock()
	b, ok := e.breakers[role]
	if !ok {
		b = resilience.NewBreaker(resilience.BreakerConfig{
			FailThreshold:  e.cfg.FailThreshold,
			BreakerTimeout: e.cfg.BreakerTimeout,
		})
		e.breakers[role] = b
	}
	return b
}

// acquireWorker acquires (or lazily creates) the active Instance for
// (userID, role) and ensures an agent.Worker is registered on the bus to
// answer tasks addressed to its AgentID (spec §4.5 acquire: "creation is
// lazy").
func (e *Engine) acquireWorker(userID string, role registry.Role) (*registry.Instance, error) {
	inst, err := e.registry.Acquire(userID, role)
	if err != nil {
		return nil, err
	}
	w := agent.New(proto.Role(role), e.llm, e.tools, e.log)
	e.bus.Register(inst.AgentID, proto.Role(role), w.Handle)
	return inst, nil
}
