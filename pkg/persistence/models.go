package persistence

import "time"

// OrchestratorStateRow is the persisted form of the Orchestrator State entity
// (spec §3). JSON-typed fields (refinements, specs, implementation, steps,
// project metadata) are stored as opaque TEXT columns: this package never
// interprets their contents, only round-trips them.
type OrchestratorStateRow struct {
	UserID                 string
	Platform               string
	IsActive               bool
	CurrentPhase           string
	WorkflowType           string
	OriginalPrompt         string
	AccumulatedRefinements string // JSON array
	CurrentDesignSpec      string // opaque JSON blob
	CurrentImplementation  string // opaque JSON blob
	StepsCompleted         string // JSON array of step_seq identifiers
	StepsTotal             int
	CurrentAgentWorking    string
	CurrentTaskDescription string
	ProjectID              string
	ProjectMetadata        string // opaque JSON blob (§4.11 durable linkage)
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// AuditEventRow is one append-only audit log entry (spec §3).
type AuditEventRow struct {
	ID        int64
	UserID    string
	EventType string
	Payload   string // opaque JSON blob
	Timestamp time.Time
}

// HandoffDocumentRow is the persisted form of the Handoff Document entity
// (spec §3/§4.6).
type HandoffDocumentRow struct {
	HandoffID             string
	TraceID               string
	UserID                string
	Role                  string
	SourceAgent           string // opaque JSON: {id, role, version, termination_reason}
	TargetAgent           string // opaque JSON: {role, expected_version}
	TokenUsageSnapshot    string // opaque JSON
	TaskProgress          string // opaque JSON: {completion_percent, phase, status}
	OriginalRequest       string
	TaskDescription       string
	DecisionsMade         string // JSON array
	RejectedAlternatives  string // JSON array
	WorkCompleted         string // opaque JSON: {files_or_artifacts[], summary}
	CurrentWIP            string
	TodoList              string // JSON array
	ToolState             string // opaque JSON, no defined schema (spec §9 Open Question)
	Assumptions           string // JSON array
	Dependencies          string // opaque JSON map
	ProjectID             string
	PredecessorHandoffID  string
	IsActive              bool
	ContinuationPrompt    string
	CreatedAt             time.Time
}
