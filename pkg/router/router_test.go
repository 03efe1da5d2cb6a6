package router

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

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
	"agentcore/pkg/orchstate"
	"agentcore/pkg/persistence"
	"agentcore/pkg/registry"
	"agentcore/pkg/resilience"
	"agentcore/pkg/session"
	"agentcore/pkg/telemetry"
	faketools "agentcore/pkg/toolprovider/fake"
	"agentcore/pkg/workflow"
)

type recordingTransport struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingTransport) Deliver(ctx context.Context, userID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return nil
}

func newTestRouter(t *testing.T, llm llmio.LLMCaller) (*Router, *orchstate.Store, *notify.Channel) {
	t.Helper()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	states := orchstate.New(db)
	handoffs := handoff.New(db)
	reg := registry.New(200000, 0.75, 0.90, false)
	tracer := telemetry.NewTracer(telemetry.NewMetrics(prometheus.NewRegistry()))
	bus := a2a.New(tracer)
	log := logx.NewLogger("test")
	notifier := notify.New(&recordingTransport{}, 4096, 0, log)
	cfg := config.Default()

	engine := workflow.New(states, handoffs, reg, bus, notifier, faketools.New(), llm, tracer, log, cfg)

	cache := resilience.NewClassifierCache(64, time.Minute)
	classifier := NewClassifier(llm, cache)
	webappIntent := NewWebappIntentClassifier(llm, cache)
	conversation := NewLLMConversationReplier(llm)
	sessions := session.New(time.Hour, 10, time.Hour)
	t.Cleanup(sessions.Close)

	r := New(sessions, states, classifier, webappIntent, engine, notifier, conversation, log)
	return r, states, notifier
}

func TestHandleMessageStartsWorkflowOnWorkflowIntent(t *testing.T) {
	caller := fakellm.New(llmio.CompletionResponse{})
	caller.Enqueue(llmio.CompletionResponse{Content: `{"intent":"workflow"}`})
	planResp, _ := json.Marshal(workflow.Plan{WorkflowType: orchstate.WorkflowDesignOnly, EstimatedSteps: 1})
	caller.Enqueue(llmio.CompletionResponse{Content: string(planResp)})
	caller.Enqueue(llmio.CompletionResponse{Content: "design spec"})

	r, states, _ := newTestRouter(t, caller)
	reply, err := r.HandleMessage(context.Background(), "u1", "slack", "build me a widget please")
	require.NoError(t, err)
	assert.Contains(t, reply, "Starting work")

	st, err := states.Load("u1")
	require.NoError(t, err)
	assert.Equal(t, orchstate.PhaseCompleted, st.CurrentPhase)
}

func TestHandleMessageConversationOnConversationIntent(t *testing.T) {
	caller := fakellm.New(llmio.CompletionResponse{})
	caller.Enqueue(llmio.CompletionResponse{Content: `{"intent":"conversation"}`})
	caller.Enqueue(llmio.CompletionResponse{Content: "Sure, happy to chat!"})

	r, _, _ := newTestRouter(t, caller)
	reply, err := r.HandleMessage(context.Background(), "u2", "slack", "how's it going?")
	require.NoError(t, err)
	assert.Equal(t, "Sure, happy to chat!", reply)
}

func TestHandleMessageRoutesStatusQueryWhileActive(t *testing.T) {
	caller := fakellm.New(llmio.CompletionResponse{})
	r, states, _ := newTestRouter(t, caller)
	require.NoError(t, states.Save(&orchstate.State{
		UserID: "u3", IsActive: true, CurrentPhase: orchstate.PhaseImplementation,
		StepsTotal: 4, StepsCompleted: []string{"design"},
	}))
	caller.Enqueue(llmio.CompletionResponse{Content: `{"class":"status_query"}`})

	reply, err := r.HandleMessage(context.Background(), "u3", "slack", "how far along are we?")
	require.NoError(t, err)
	assert.Contains(t, reply, "implementation")
}

func TestHandleMessageRejectsNewTaskWhileActive(t *testing.T) {
	caller := fakellm.New(llmio.CompletionResponse{})
	r, states, _ := newTestRouter(t, caller)
	require.NoError(t, states.Save(&orchstate.State{UserID: "u4", IsActive: true, CurrentPhase: orchstate.PhaseDesign}))
	caller.Enqueue(llmio.CompletionResponse{Content: `{"class":"new_task"}`})

	reply, err := r.HandleMessage(context.Background(), "u4", "slack", "build me something else entirely")
	require.NoError(t, err)
	assert.Contains(t, reply, "cancel it first")
}

func TestHandleMessageDegradesToConversationOnUnparseableClassifier(t *testing.T) {
	caller := fakellm.New(llmio.CompletionResponse{})
	r, states, _ := newTestRouter(t, caller)
	require.NoError(t, states.Save(&orchstate.State{UserID: "u5", IsActive: true, CurrentPhase: orchstate.PhaseDesign}))
	caller.Enqueue(llmio.CompletionResponse{Content: "not json at all"})
	caller.Enqueue(llmio.CompletionResponse{Content: "a friendly reply"})

	reply, err := r.HandleMessage(context.Background(), "u5", "slack", "random aside")
	require.NoError(t, err)
	assert.Equal(t, "a friendly reply", reply)
}

func TestResetSessionClearsHistoryNotState(t *testing.T) {
	caller := fakellm.New(llmio.CompletionResponse{})
	r, states, _ := newTestRouter(t, caller)
	require.NoError(t, states.Save(&orchstate.State{UserID: "u6", IsActive: true, CurrentPhase: orchstate.PhaseDesign}))

	r.sessions.Append("u6", "slack", session.RoleUser, "hello")
	r.ResetSession(context.Background(), "u6")

	st, err := states.Load("u6")
	require.NoError(t, err)
	assert.True(t, st.IsActive)
}

func TestCancelActiveCancelsWorkflow(t *testing.T) {
	caller := fakellm.New(llmio.CompletionResponse{})
	r, states, _ := newTestRouter(t, caller)
	require.NoError(t, states.Save(&orchstate.State{UserID: "u7", IsActive: true, CurrentPhase: orchstate.PhaseImplementation}))

	require.NoError(t, r.CancelActive(context.Background(), "u7"))
	st, err := states.Load("u7")
	require.NoError(t, err)
	assert.Equal(t, orchstate.PhaseCancelled, st.CurrentPhase)
}
