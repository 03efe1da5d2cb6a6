package workflow

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentcore/pkg/a2a"
	"agentcore/pkg/config"
	"agentcore/pkg/handoff"
	"agentcore/pkg/llmio"
	fakellm "agentcore/pkg/llmio/fake"
	"agentcore/pkg/logx"
	"agentcore/pkg/notify"
	"agentcore/pkg/orcherrors"
	"agentcore/pkg/orchstate"
	"agentcore/pkg/persistence"
	"agentcore/pkg/proto"
	"agentcore/pkg/registry"
	"agentcore/pkg/resilience"
	"agentcore/pkg/telemetry"
	"agentcore/pkg/toolprovider"
	faketools "agentcore/pkg/toolprovider/fake"
)

// discardTransport drops every notification; tests assert on state, not on
// the notification channel's output.
type discardTransport struct{}

func (discardTransport) Deliver(ctx context.Context, userID, text string) error { return nil }

func newTestEngine(t *testing.T, llm llmio.LLMCaller, tools toolprovider.Provider) (*Engine, *orchstate.Store) {
	t.Helper()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	states := orchstate.New(db)
	handoffs := handoff.New(db)
	reg := registry.New(200000, 0.75, 0.90, false)
	tracer := telemetry.NewTracer(telemetry.NewMetrics(prometheus.NewRegistry()))
	bus := a2a.New(tracer)
	notifier := notify.New(discardTransport{}, 4096, 0, logx.NewLogger("test"))
	cfg := config.Default()
	cfg.MaxReviewIter = 3
	cfg.MinQuality = 8
	cfg.MaxBuildRetries = 3

	return New(states, handoffs, reg, bus, notifier, tools, llm, tracer, logx.NewLogger("test"), cfg), states
}

func approvedReview(score int) string {
	b, _ := json.Marshal(proto.Review{Approved: true, Score: score})
	return string(b)
}

func TestStartWorkflowRunsFullBuildToCompletion(t *testing.T) {
	caller := fakellm.New(llmio.CompletionResponse{Content: approvedReview(9)})
	planResp, _ := json.Marshal(Plan{WorkflowType: orchstate.WorkflowFullBuild, EstimatedSteps: 4})
	caller.Enqueue(llmio.CompletionResponse{Content: string(planResp)}) // planning
	caller.Enqueue(llmio.CompletionResponse{Content: "design spec"})    // design
	caller.Enqueue(llmio.CompletionResponse{Content: "backend code"})  // backend
	caller.Enqueue(llmio.CompletionResponse{Content: "impl code"})     // implementation
	caller.Enqueue(llmio.CompletionResponse{Content: approvedReview(9)}) // review: approved immediately

	tools := faketools.New()
	e, states := newTestEngine(t, caller, tools)

	err := e.StartWorkflow(context.Background(), "user-1", "slack", "build me a widget")
	require.NoError(t, err)

	st, err := states.Load("user-1")
	require.NoError(t, err)
	assert.Equal(t, orchstate.PhaseCompleted, st.CurrentPhase)
	assert.False(t, st.IsActive)
	assert.NotEmpty(t, st.ProjectID)
}

func TestStartWorkflowFailsWhenDeployNeverSucceeds(t *testing.T) {
	caller := fakellm.New(llmio.CompletionResponse{Content: approvedReview(9)})
	planResp, _ := json.Marshal(Plan{WorkflowType: orchstate.WorkflowFullBuild, EstimatedSteps: 4})
	caller.Enqueue(llmio.CompletionResponse{Content: string(planResp)})
	caller.Enqueue(llmio.CompletionResponse{Content: "design spec"})
	caller.Enqueue(llmio.CompletionResponse{Content: "backend code"})
	caller.Enqueue(llmio.CompletionResponse{Content: "impl code"})
	caller.Enqueue(llmio.CompletionResponse{Content: approvedReview(9)})

	tools := faketools.New()
	tools.DeployShouldFail = true
	tools.DeployBuildLog = `{"errors":[{"file":"main.go","line":3,"message":"syntax error"}]}`

	e, states := newTestEngine(t, caller, tools)
	err := e.StartWorkflow(context.Background(), "user-2", "slack", "build me a widget")
	require.Error(t, err)

	st, err := states.Load("user-2")
	require.NoError(t, err)
	assert.Equal(t, orchstate.PhaseFailed, st.CurrentPhase)
}

func TestStartWorkflowDesignOnlySkipsImplementation(t *testing.T) {
	caller := fakellm.New(llmio.CompletionResponse{})
	planResp, _ := json.Marshal(Plan{WorkflowType: orchstate.WorkflowDesignOnly, EstimatedSteps: 1})
	caller.Enqueue(llmio.CompletionResponse{Content: string(planResp)})
	caller.Enqueue(llmio.CompletionResponse{Content: "design spec only"})

	e, states := newTestEngine(t, caller, faketools.New())
	err := e.StartWorkflow(context.Background(), "user-3", "web", "just the design please")
	require.NoError(t, err)

	st, err := states.Load("user-3")
	require.NoError(t, err)
	assert.Equal(t, orchstate.PhaseCompleted, st.CurrentPhase)
	assert.Empty(t, st.ProjectID)
}

func TestStartWorkflowRejectsSecondActiveWorkflow(t *testing.T) {
	caller := fakellm.New(llmio.CompletionResponse{Content: approvedReview(9)})
	planResp, _ := json.Marshal(Plan{WorkflowType: orchstate.WorkflowDesignOnly, EstimatedSteps: 1})
	caller.Enqueue(llmio.CompletionResponse{Content: string(planResp)})
	// StartWorkflow finds the existing active row and rejects before
	// planning, so the queued plan response is never consumed.

	db, err := persistence.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	states := orchstate.New(db)
	require.NoError(t, states.Save(&orchstate.State{UserID: "user-4", IsActive: true, CurrentPhase: orchstate.PhaseImplementation}))

	handoffs := handoff.New(db)
	reg := registry.New(200000, 0.75, 0.90, false)
	tracer := telemetry.NewTracer(telemetry.NewMetrics(prometheus.NewRegistry()))
	bus := a2a.New(tracer)
	notifier := notify.New(discardTransport{}, 4096, 0, logx.NewLogger("test"))
	e := New(states, handoffs, reg, bus, notifier, faketools.New(), caller, tracer, logx.NewLogger("test"), config.Default())

	err = e.StartWorkflow(context.Background(), "user-4", "slack", "another request")
	assert.Error(t, err)
}

func TestCancelMarksWorkflowCancelled(t *testing.T) {
	db, err := persistence.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	states := orchstate.New(db)
	require.NoError(t, states.Save(&orchstate.State{UserID: "user-5", IsActive: true, CurrentPhase: orchstate.PhaseImplementation}))

	handoffs := handoff.New(db)
	reg := registry.New(200000, 0.75, 0.90, false)
	tracer := telemetry.NewTracer(telemetry.NewMetrics(prometheus.NewRegistry()))
	bus := a2a.New(tracer)
	notifier := notify.New(discardTransport{}, 4096, 0, logx.NewLogger("test"))
	e := New(states, handoffs, reg, bus, notifier, faketools.New(), fakellm.New(llmio.CompletionResponse{}), tracer, logx.NewLogger("test"), config.Default())

	require.NoError(t, e.Cancel(context.Background(), "user-5"))
	st, err := states.Load("user-5")
	require.NoError(t, err)
	assert.Equal(t, orchstate.PhaseCancelled, st.CurrentPhase)
}

func TestSendAgentTaskFailsFastWhenBreakerOpen(t *testing.T) {
	caller := fakellm.New(llmio.CompletionResponse{Content: "backend code"})
	e, states := newTestEngine(t, caller, faketools.New())

	require.NoError(t, states.Save(&orchstate.State{UserID: "user-6", IsActive: true, CurrentPhase: orchstate.PhaseBackend}))
	st, err := states.Load("user-6")
	require.NoError(t, err)

	breaker := e.breakerFor(registry.RoleBackend)
	for i := 0; i < e.cfg.FailThreshold; i++ {
		breaker.RecordFailure()
	}
	require.Equal(t, resilience.StateOpen, breaker.State())

	requestsBefore := len(caller.Requests)
	_, err = e.sendAgentTask(context.Background(), st, registry.RoleBackend, "do work")
	assert.ErrorIs(t, err, orcherrors.ErrCircuitOpen)
	assert.Equal(t, requestsBefore, len(caller.Requests), "breaker open must short-circuit before the LLM is ever called")
}

func TestProgressPercentGrowsStepsTotalAtCap(t *testing.T) {
	st := &orchstate.State{StepsTotal: 2}
	recordStepCompleted(st, 5, "a")
	recordStepCompleted(st, 5, "b")
	assert.Equal(t, 7, st.StepsTotal)
	assert.Equal(t, 2, len(st.StepsCompleted))
}
