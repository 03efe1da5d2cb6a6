package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"agentcore/pkg/orcherrors"
)

// DatabaseOperations is the SQL-facing surface pkg/orchstate and pkg/handoff
// call through; it is the only package in this module that writes a SQL
// statement. Bound to one *sql.DB connection obtained via (*DB).Ops.
type DatabaseOperations struct {
	conn *sql.DB
}

// SaveOrchestratorState upserts state, assigning the new updated_at itself so
// callers cannot regress monotonicity (spec invariant 6).
func (o *DatabaseOperations) SaveOrchestratorState(row *OrchestratorStateRow) error {
	now := time.Now().UTC()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	row.UpdatedAt = now

	_, err := o.conn.Exec(`
		INSERT INTO orchestrator_state (
			user_id, platform, is_active, current_phase, workflow_type, original_prompt,
			accumulated_refinements, current_design_spec, current_implementation,
			steps_completed, steps_total, current_agent_working, current_task_description,
			project_id, project_metadata, created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(user_id) DO UPDATE SET
			platform=excluded.platform,
			is_active=excluded.is_active,
			current_phase=excluded.current_phase,
			workflow_type=excluded.workflow_type,
			original_prompt=excluded.original_prompt,
			accumulated_refinements=excluded.accumulated_refinements,
			current_design_spec=excluded.current_design_spec,
			current_implementation=excluded.current_implementation,
			steps_completed=excluded.steps_completed,
			steps_total=excluded.steps_total,
			current_agent_working=excluded.current_agent_working,
			current_task_description=excluded.current_task_description,
			project_id=excluded.project_id,
			project_metadata=excluded.project_metadata,
			updated_at=excluded.updated_at
	`,
		row.UserID, row.Platform, row.IsActive, row.CurrentPhase, row.WorkflowType, row.OriginalPrompt,
		row.AccumulatedRefinements, row.CurrentDesignSpec, row.CurrentImplementation,
		row.StepsCompleted, row.StepsTotal, row.CurrentAgentWorking, row.CurrentTaskDescription,
		row.ProjectID, row.ProjectMetadata, row.CreatedAt.Format(time.RFC3339Nano), row.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return orcherrors.NewTransient("orchestrator_state_save", err)
	}
	return nil
}

// LoadOrchestratorState returns the row for userID, or orcherrors.ErrNotFound.
func (o *DatabaseOperations) LoadOrchestratorState(userID string) (*OrchestratorStateRow, error) {
	row := o.conn.QueryRow(`
		SELECT user_id, platform, is_active, current_phase, workflow_type, original_prompt,
			accumulated_refinements, current_design_spec, current_implementation,
			steps_completed, steps_total, current_agent_working, current_task_description,
			project_id, project_metadata, created_at, updated_at
		FROM orchestrator_state WHERE user_id = ?`, userID)

	var r OrchestratorStateRow
	var createdAt, updatedAt string
	var designSpec, impl, agentWorking, taskDesc, projectID sql.NullString
	err := row.Scan(&r.UserID, &r.Platform, &r.IsActive, &r.CurrentPhase, &r.WorkflowType, &r.OriginalPrompt,
		&r.AccumulatedRefinements, &designSpec, &impl,
		&r.StepsCompleted, &r.StepsTotal, &agentWorking, &taskDesc,
		&projectID, &r.ProjectMetadata, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orcherrors.ErrNotFound
	}
	if err != nil {
		return nil, orcherrors.NewTransient("orchestrator_state_load", err)
	}
	r.CurrentDesignSpec = designSpec.String
	r.CurrentImplementation = impl.String
	r.CurrentAgentWorking = agentWorking.String
	r.CurrentTaskDescription = taskDesc.String
	r.ProjectID = projectID.String
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &r, nil
}

// DeleteOrchestratorState removes the row for userID. Deleting an absent row
// is not an error (idempotent per the workflow's "delete on completion or
// cancellation" lifecycle, which may race a crash-recovery cleanup pass).
func (o *DatabaseOperations) DeleteOrchestratorState(userID string) error {
	if _, err := o.conn.Exec(`DELETE FROM orchestrator_state WHERE user_id = ?`, userID); err != nil {
		return orcherrors.NewTransient("orchestrator_state_delete", err)
	}
	return nil
}

// ListActiveUserIDs returns every user_id with is_active = true, used at
// startup for crash recovery (spec §4.3).
func (o *DatabaseOperations) ListActiveUserIDs() ([]string, error) {
	rows, err := o.conn.Query(`SELECT user_id FROM orchestrator_state WHERE is_active = 1`)
	if err != nil {
		return nil, orcherrors.NewTransient("orchestrator_state_list_active", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, orcherrors.NewTransient("orchestrator_state_list_active", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CleanupStale purges orchestrator_state rows whose updated_at is older than
// now - maxAge, and returns how many rows were removed.
func (o *DatabaseOperations) CleanupStale(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339Nano)
	res, err := o.conn.Exec(`DELETE FROM orchestrator_state WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, orcherrors.NewTransient("orchestrator_state_cleanup", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// AppendAudit inserts an append-only audit_event row.
func (o *DatabaseOperations) AppendAudit(userID, eventType, payload string) error {
	_, err := o.conn.Exec(
		`INSERT INTO audit_event (user_id, event_type, payload, timestamp) VALUES (?,?,?,?)`,
		userID, eventType, payload, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return orcherrors.NewTransient("audit_append", err)
	}
	return nil
}

// SaveHandoffDocument persists a handoff document. Callers are responsible
// for deactivating the previous active handoff for (user_id, role) first via
// DeactivateHandoffsForRole, inside the same logical operation.
func (o *DatabaseOperations) SaveHandoffDocument(row *HandoffDocumentRow) error {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	_, err := o.conn.Exec(`
		INSERT INTO handoff_document (
			handoff_id, trace_id, user_id, role, source_agent, target_agent,
			token_usage_snapshot, task_progress, original_request, task_description,
			decisions_made, rejected_alternatives, work_completed, current_wip,
			todo_list, tool_state, assumptions, dependencies, project_id,
			predecessor_handoff_id, is_active, continuation_prompt, created_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`,
		row.HandoffID, row.TraceID, row.UserID, row.Role, row.SourceAgent, row.TargetAgent,
		row.TokenUsageSnapshot, row.TaskProgress, row.OriginalRequest, row.TaskDescription,
		row.DecisionsMade, row.RejectedAlternatives, row.WorkCompleted, row.CurrentWIP,
		row.TodoList, row.ToolState, row.Assumptions, row.Dependencies, row.ProjectID,
		row.PredecessorHandoffID, row.IsActive, row.ContinuationPrompt, row.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return orcherrors.NewTransient("handoff_save", err)
	}
	return nil
}

// DeactivateHandoffsForRole flips is_active = false for every handoff of
// (user_id, role) except keepID (pass "" to deactivate all), preserving the
// invariant that at most one handoff per (user_id, role) is active.
func (o *DatabaseOperations) DeactivateHandoffsForRole(userID, role, keepID string) error {
	_, err := o.conn.Exec(
		`UPDATE handoff_document SET is_active = 0 WHERE user_id = ? AND role = ? AND handoff_id != ? AND is_active = 1`,
		userID, role, keepID,
	)
	if err != nil {
		return orcherrors.NewTransient("handoff_deactivate", err)
	}
	return nil
}

// LoadActiveHandoff returns the active handoff document for (user_id, role),
// or orcherrors.ErrNotFound if there is none.
func (o *DatabaseOperations) LoadActiveHandoff(userID, role string) (*HandoffDocumentRow, error) {
	row := o.conn.QueryRow(`
		SELECT handoff_id, trace_id, user_id, role, source_agent, target_agent,
			token_usage_snapshot, task_progress, original_request, task_description,
			decisions_made, rejected_alternatives, work_completed, current_wip,
			todo_list, tool_state, assumptions, dependencies, project_id,
			predecessor_handoff_id, is_active, continuation_prompt, created_at
		FROM handoff_document WHERE user_id = ? AND role = ? AND is_active = 1
		ORDER BY created_at DESC LIMIT 1`, userID, role)
	return scanHandoffRow(row)
}

// LoadHandoffChain returns every document sharing traceID, oldest first,
// enough to traverse the linear predecessor_handoff_id linked list.
func (o *DatabaseOperations) LoadHandoffChain(traceID string) ([]*HandoffDocumentRow, error) {
	rows, err := o.conn.Query(`
		SELECT handoff_id, trace_id, user_id, role, source_agent, target_agent,
			token_usage_snapshot, task_progress, original_request, task_description,
			decisions_made, rejected_alternatives, work_completed, current_wip,
			todo_list, tool_state, assumptions, dependencies, project_id,
			predecessor_handoff_id, is_active, continuation_prompt, created_at
		FROM handoff_document WHERE trace_id = ? ORDER BY created_at ASC`, traceID)
	if err != nil {
		return nil, orcherrors.NewTransient("handoff_chain_load", err)
	}
	defer rows.Close()

	var chain []*HandoffDocumentRow
	for rows.Next() {
		doc, err := scanHandoffRows(rows)
		if err != nil {
			return nil, err
		}
		chain = append(chain, doc)
	}
	return chain, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHandoffRow(row *sql.Row) (*HandoffDocumentRow, error) {
	doc, err := scanHandoffRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, orcherrors.ErrNotFound
	}
	return doc, err
}

func scanHandoffRows(s rowScanner) (*HandoffDocumentRow, error) {
	var d HandoffDocumentRow
	var createdAt string
	var projectID, predecessorID sql.NullString
	err := s.Scan(&d.HandoffID, &d.TraceID, &d.UserID, &d.Role, &d.SourceAgent, &d.TargetAgent,
		&d.TokenUsageSnapshot, &d.TaskProgress, &d.OriginalRequest, &d.TaskDescription,
		&d.DecisionsMade, &d.RejectedAlternatives, &d.WorkCompleted, &d.CurrentWIP,
		&d.TodoList, &d.ToolState, &d.Assumptions, &d.Dependencies, &projectID,
		&predecessorID, &d.IsActive, &d.ContinuationPrompt, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, orcherrors.NewTransient("handoff_scan", fmt.Errorf("scan row: %w", err))
	}
	d.ProjectID = projectID.String
	d.PredecessorHandoffID = predecessorID.String
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &d, nil
}
