package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentcore/pkg/orcherrors"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSaveAndLoadOrchestratorStateRoundTrips(t *testing.T) {
	ops := openTestDB(t).Ops()

	row := &OrchestratorStateRow{
		UserID:         "user-1",
		Platform:       "slack",
		IsActive:       true,
		CurrentPhase:   "PLANNING",
		WorkflowType:   "feature",
		OriginalPrompt: "build a widget",
		StepsTotal:     3,
	}
	require.NoError(t, ops.SaveOrchestratorState(row))

	loaded, err := ops.LoadOrchestratorState("user-1")
	require.NoError(t, err)
	assert.Equal(t, "slack", loaded.Platform)
	assert.True(t, loaded.IsActive)
	assert.Equal(t, "PLANNING", loaded.CurrentPhase)
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestLoadOrchestratorStateMissingReturnsNotFound(t *testing.T) {
	ops := openTestDB(t).Ops()
	_, err := ops.LoadOrchestratorState("nobody")
	assert.ErrorIs(t, err, orcherrors.ErrNotFound)
}

func TestSaveOrchestratorStateUpsertsAndAdvancesUpdatedAt(t *testing.T) {
	ops := openTestDB(t).Ops()
	row := &OrchestratorStateRow{UserID: "user-1", Platform: "slack", CurrentPhase: "PLANNING", WorkflowType: "feature"}
	require.NoError(t, ops.SaveOrchestratorState(row))
	first, err := ops.LoadOrchestratorState("user-1")
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	row2 := &OrchestratorStateRow{UserID: "user-1", Platform: "slack", CurrentPhase: "EXECUTING", WorkflowType: "feature"}
	require.NoError(t, ops.SaveOrchestratorState(row2))

	second, err := ops.LoadOrchestratorState("user-1")
	require.NoError(t, err)
	assert.Equal(t, "EXECUTING", second.CurrentPhase)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt) || second.UpdatedAt.Equal(first.UpdatedAt))

	ids, err := ops.ListActiveUserIDs()
	require.NoError(t, err)
	assert.Len(t, ids, 0, "row is not is_active so must not appear")
}

func TestListActiveUserIDsOnlyReturnsActive(t *testing.T) {
	ops := openTestDB(t).Ops()
	require.NoError(t, ops.SaveOrchestratorState(&OrchestratorStateRow{UserID: "a", Platform: "x", IsActive: true, CurrentPhase: "P", WorkflowType: "t"}))
	require.NoError(t, ops.SaveOrchestratorState(&OrchestratorStateRow{UserID: "b", Platform: "x", IsActive: false, CurrentPhase: "P", WorkflowType: "t"}))

	ids, err := ops.ListActiveUserIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids)
}

func TestDeleteOrchestratorStateIsIdempotent(t *testing.T) {
	ops := openTestDB(t).Ops()
	require.NoError(t, ops.DeleteOrchestratorState("ghost"))
	require.NoError(t, ops.SaveOrchestratorState(&OrchestratorStateRow{UserID: "u", Platform: "x", CurrentPhase: "P", WorkflowType: "t"}))
	require.NoError(t, ops.DeleteOrchestratorState("u"))
	require.NoError(t, ops.DeleteOrchestratorState("u"))
	_, err := ops.LoadOrchestratorState("u")
	assert.ErrorIs(t, err, orcherrors.ErrNotFound)
}

func TestCleanupStaleRemovesOldRowsOnly(t *testing.T) {
	ops := openTestDB(t).Ops()
	require.NoError(t, ops.SaveOrchestratorState(&OrchestratorStateRow{UserID: "fresh", Platform: "x", CurrentPhase: "P", WorkflowType: "t"}))

	n, err := ops.CleanupStale(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = ops.CleanupStale(-time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAppendAuditInsertsRow(t *testing.T) {
	ops := openTestDB(t).Ops()
	require.NoError(t, ops.AppendAudit("user-1", "message_received", `{"foo":"bar"}`))
}

func TestHandoffSaveLoadActiveAndDeactivate(t *testing.T) {
	ops := openTestDB(t).Ops()

	first := &HandoffDocumentRow{
		HandoffID: "h1", TraceID: "trace-1", UserID: "user-1", Role: "coder",
		SourceAgent: "{}", TargetAgent: "{}", IsActive: true,
	}
	require.NoError(t, ops.SaveHandoffDocument(first))

	active, err := ops.LoadActiveHandoff("user-1", "coder")
	require.NoError(t, err)
	assert.Equal(t, "h1", active.HandoffID)

	require.NoError(t, ops.DeactivateHandoffsForRole("user-1", "coder", "h2"))
	second := &HandoffDocumentRow{
		HandoffID: "h2", TraceID: "trace-1", UserID: "user-1", Role: "coder",
		SourceAgent: "{}", TargetAgent: "{}", IsActive: true,
		PredecessorHandoffID: "h1",
	}
	require.NoError(t, ops.SaveHandoffDocument(second))

	active, err = ops.LoadActiveHandoff("user-1", "coder")
	require.NoError(t, err)
	assert.Equal(t, "h2", active.HandoffID)
	assert.Equal(t, "h1", active.PredecessorHandoffID)

	chain, err := ops.LoadHandoffChain("trace-1")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, "h1", chain[0].HandoffID)
	assert.Equal(t, "h2", chain[1].HandoffID)
}

func TestLoadActiveHandoffMissingReturnsNotFound(t *testing.T) {
	ops := openTestDB(t).Ops()
	_, err := ops.LoadActiveHandoff("nobody", "coder")
	assert.ErrorIs(t, err, orcherrors.ErrNotFound)
}
