package orchstate

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentcore/pkg/persistence"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db)
}

func TestSaveAndLoadRoundTripsJSONFields(t *testing.T) {
	store := newTestStore(t)

	state := &State{
		UserID:                 "user-1",
		Platform:               "chat",
		IsActive:               true,
		CurrentPhase:           PhasePlanning,
		WorkflowType:           WorkflowFullBuild,
		OriginalPrompt:         "build a thing",
		AccumulatedRefinements: []string{"make it blue"},
		StepsCompleted:         []string{"step-1"},
		StepsTotal:             5,
		CurrentDesignSpec:      json.RawMessage(`{"title":"design"}`),
		ProjectMetadata:        json.RawMessage(`{"env":"prod"}`),
	}
	require.NoError(t, store.Save(state))

	loaded, err := store.Load("user-1")
	require.NoError(t, err)
	assert.Equal(t, PhasePlanning, loaded.CurrentPhase)
	assert.Equal(t, []string{"make it blue"}, loaded.AccumulatedRefinements)
	assert.Equal(t, []string{"step-1"}, loaded.StepsCompleted)
	assert.JSONEq(t, `{"title":"design"}`, string(loaded.CurrentDesignSpec))
	assert.JSONEq(t, `{"env":"prod"}`, string(loaded.ProjectMetadata))
}

func TestLoadMissingReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load("nobody")
	assert.True(t, IsNotFound(err))
}

func TestListActiveAndDelete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(&State{UserID: "a", Platform: "chat", IsActive: true, CurrentPhase: PhasePlanning, WorkflowType: WorkflowFullBuild}))
	require.NoError(t, store.Save(&State{UserID: "b", Platform: "chat", IsActive: false, CurrentPhase: PhasePlanning, WorkflowType: WorkflowFullBuild}))

	ids, err := store.ListActive()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)

	require.NoError(t, store.Delete("a"))
	_, err = store.Load("a")
	assert.True(t, IsNotFound(err))
}

func TestAppendAuditEncodesPayload(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.AppendAudit("user-1", "workflow_started", map[string]string{"phase": "planning"}))
}
