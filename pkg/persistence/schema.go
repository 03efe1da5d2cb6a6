package persistence

import "database/sql"

// schemaStatements creates the three durable tables this module owns:
// orchestrator_state (one row per user, spec §3), audit_event (append-only),
// and handoff_document (spec §3/§4.6). Indexes mirror the ones spec §4.3 and
// §4.6 name explicitly.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS orchestrator_state (
		user_id                  TEXT PRIMARY KEY,
		platform                 TEXT NOT NULL,
		is_active                INTEGER NOT NULL,
		current_phase            TEXT NOT NULL,
		workflow_type            TEXT NOT NULL,
		original_prompt          TEXT NOT NULL,
		accumulated_refinements  TEXT NOT NULL DEFAULT '[]',
		current_design_spec      TEXT,
		current_implementation   TEXT,
		steps_completed          TEXT NOT NULL DEFAULT '[]',
		steps_total              INTEGER NOT NULL DEFAULT 0,
		current_agent_working    TEXT,
		current_task_description TEXT,
		project_id               TEXT,
		project_metadata         TEXT NOT NULL DEFAULT '{}',
		created_at               TEXT NOT NULL,
		updated_at               TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orchestrator_state_active ON orchestrator_state(is_active)`,
	`CREATE INDEX IF NOT EXISTS idx_orchestrator_state_updated_at ON orchestrator_state(updated_at)`,

	`CREATE TABLE IF NOT EXISTS audit_event (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload    TEXT NOT NULL DEFAULT '{}',
		timestamp  TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_event_user_time ON audit_event(user_id, timestamp)`,

	`CREATE TABLE IF NOT EXISTS handoff_document (
		handoff_id             TEXT PRIMARY KEY,
		trace_id               TEXT NOT NULL,
		user_id                TEXT NOT NULL,
		role                   TEXT NOT NULL,
		source_agent           TEXT NOT NULL,
		target_agent           TEXT NOT NULL,
		token_usage_snapshot   TEXT NOT NULL DEFAULT '{}',
		task_progress          TEXT NOT NULL DEFAULT '{}',
		original_request       TEXT NOT NULL DEFAULT '',
		task_description       TEXT NOT NULL DEFAULT '',
		decisions_made         TEXT NOT NULL DEFAULT '[]',
		rejected_alternatives  TEXT NOT NULL DEFAULT '[]',
		work_completed         TEXT NOT NULL DEFAULT '{}',
		current_wip            TEXT NOT NULL DEFAULT '',
		todo_list              TEXT NOT NULL DEFAULT '[]',
		tool_state             TEXT NOT NULL DEFAULT '{}',
		assumptions            TEXT NOT NULL DEFAULT '[]',
		dependencies           TEXT NOT NULL DEFAULT '{}',
		project_id             TEXT,
		predecessor_handoff_id TEXT,
		is_active              INTEGER NOT NULL,
		continuation_prompt    TEXT NOT NULL DEFAULT '',
		created_at             TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_handoff_user_role_created ON handoff_document(user_id, role, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_handoff_trace ON handoff_document(trace_id)`,
	`CREATE INDEX IF NOT EXISTS idx_handoff_project ON handoff_document(project_id)`,
}

func applySchema(conn *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := conn.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
