// Package handoff implements the Handoff Manager (spec §4.6): transferring
// an agent's accumulated knowledge to a fresh instance of the same role so
// work continues without re-deriving context. Grounded on the teacher's
// typed-payload discipline (pkg/proto) and its "persist before side effect"
// idiom used throughout pkg/persistence.
package handoff

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentcore/pkg/orcherrors"
	"agentcore/pkg/persistence"
)

// SourceAgent identifies the predecessor (source) side of a handoff.
type SourceAgent struct {
	ID                string `json:"id"`
	Role              string `json:"role"`
	Version           int    `json:"version"`
	TerminationReason string `json:"termination_reason"`
}

type TargetAgent struct {
	Role            string `json:"role"`
	ExpectedVersion int    `json:"expected_version"`
}

// TaskProgress summarizes how far along the predecessor got.
type TaskProgress struct {
	CompletionPercent int    `json:"completion_percent"`
	Phase             string `json:"phase"`
	Status            string `json:"status"`
}

// Decision is one recorded, non-revisitable choice.
type Decision struct {
	Decision  string    `json:"decision"`
	Reasoning string    `json:"reasoning"`
	Confidence float64  `json:"confidence"`
	Impact    string    `json:"impact"`
	Timestamp time.Time `json:"timestamp"`
}

// RejectedAlternative is one option considered and discarded.
type RejectedAlternative struct {
	Alternative string  `json:"alternative"`
	Reason      string  `json:"reason"`
	Confidence  float64 `json:"confidence"`
}

// WorkCompleted summarizes the predecessor's output.
type WorkCompleted struct {
	FilesOrArtifacts []string `json:"files_or_artifacts"`
	Summary          string   `json:"summary"`
}

// TodoItem is one outstanding piece of work for the successor.
type TodoItem struct {
	Task         string   `json:"task"`
	Priority     string   `json:"priority"`
	EstTime      string   `json:"est_time"`
	Dependencies []string `json:"dependencies"`
	Status       string   `json:"status"`
}

// Document is the in-memory Handoff Document entity (spec.md §3).
type Document struct {
	HandoffID             string
	TraceID               string
	UserID                string
	Role                  string
	SourceAgent           SourceAgent
	TargetAgent           TargetAgent
	TokenUsageSnapshot    json.RawMessage
	TaskProgress          TaskProgress
	OriginalRequest       string
	TaskDescription       string
	DecisionsMade         []Decision
	RejectedAlternatives  []RejectedAlternative
	WorkCompleted         WorkCompleted
	CurrentWIP            string
	TodoList              []TodoItem
	ToolState             json.RawMessage
	Assumptions           []string
	Dependencies          map[string]string
	ProjectID             string
	PredecessorHandoffID  string
	IsActive              bool
	ContinuationPrompt    string
	CreatedAt             time.Time
}

// ContinuationPrompt derives the text prepended to a successor's system
// context: TODOs, decisions not to revisit, alternatives not to retry, and a
// summary of completed work (spec §4.6 step 4).
func ContinuationPrompt(d *Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are continuing work previously done by %s (v%d) on role %q.\n", d.SourceAgent.ID, d.SourceAgent.Version, d.Role)
	if d.WorkCompleted.Summary != "" {
		fmt.Fprintf(&b, "\nWork completed so far:\n%s\n", d.WorkCompleted.Summary)
	}
	if d.CurrentWIP != "" {
		fmt.Fprintf(&b, "\nIn progress when handed off:\n%s\n", d.CurrentWIP)
	}
	if len(d.DecisionsMade) > 0 {
		b.WriteString("\nDecisions already made (do not revisit):\n")
		for _, dec := range d.DecisionsMade {
			fmt.Fprintf(&b, "- %s (%s)\n", dec.Decision, dec.Reasoning)
		}
	}
	if len(d.RejectedAlternatives) > 0 {
		b.WriteString("\nAlternatives already rejected (do not retry):\n")
		for _, alt := range d.RejectedAlternatives {
			fmt.Fprintf(&b, "- %s: %s\n", alt.Alternative, alt.Reason)
		}
	}
	if len(d.TodoList) > 0 {
		b.WriteString("\nRemaining TODOs:\n")
		for _, td := range d.TodoList {
			fmt.Fprintf(&b, "- [%s] %s\n", td.Priority, td.Task)
		}
	}
	if len(d.Assumptions) > 0 {
		b.WriteString("\nAssumptions carried forward:\n")
		for _, a := range d.Assumptions {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}
	return b.String()
}

// Skeleton builds the minimal handoff used when the source instance's
// self-report is malformed or fails to produce one (spec §4.6 step 2).
func Skeleton(userID, role string, source SourceAgent, target TargetAgent) *Document {
	return &Document{
		HandoffID:    uuid.NewString(),
		UserID:       userID,
		Role:         role,
		SourceAgent:  source,
		TargetAgent:  target,
		TaskProgress: TaskProgress{Status: "unknown"},
		CurrentWIP:   "unknown: source agent did not produce a usable handoff report",
		IsActive:     true,
	}
}

// Store is the typed façade over pkg/persistence implementing the Handoff
// Manager's durable store.
type Store struct {
	ops *persistence.DatabaseOperations
}

func New(db *persistence.DB) *Store {
	return &Store{ops: db.Ops()}
}

// Save persists doc as the new active handoff for (doc.UserID, doc.Role),
// first deactivating any previous active handoff for that role. The
// deactivation and the insert are two separate writes, not one transaction:
// if the insert fails, the earlier documents stay stored but inactive.
// If doc.HandoffID or doc.TraceID are empty they are generated.
func (s *Store) Save(doc *Document) error {
	if doc.HandoffID == "" {
		doc.HandoffID = uuid.NewString()
	}
	if doc.TraceID == "" {
		doc.TraceID = doc.HandoffID
	}
	doc.IsActive = true
	doc.ContinuationPrompt = ContinuationPrompt(doc)

	row, err := toRow(doc)
	if err != nil {
		return fmt.Errorf("handoff: encode document: %w", err)
	}

	if err := s.ops.DeactivateHandoffsForRole(doc.UserID, doc.Role, doc.HandoffID); err != nil {
		return fmt.Errorf("handoff: deactivate predecessor: %w", err)
	}
	if err := s.ops.SaveHandoffDocument(row); err != nil {
		return fmt.Errorf("handoff: save document: %w", err)
	}
	doc.CreatedAt = row.CreatedAt
	return nil
}

// ActiveFor returns the active handoff for (userID, role), or
// orcherrors.ErrNotFound if none exists.
func (s *Store) ActiveFor(userID, role string) (*Document, error) {
	row, err := s.ops.LoadActiveHandoff(userID, role)
	if err != nil {
		return nil, err
	}
	return fromRow(row)
}

// Chain returns the full handoff lineage for traceID, oldest first.
func (s *Store) Chain(traceID string) ([]*Document, error) {
	rows, err := s.ops.LoadHandoffChain(traceID)
	if err != nil {
		return nil, err
	}
	docs := make([]*Document, 0, len(rows))
	for _, row := range rows {
		doc, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// IsNotFound reports whether err means no active handoff exists.
func IsNotFound(err error) bool {
	return errors.Is(err, orcherrors.ErrNotFound)
}

func toRow(d *Document) (*persistence.HandoffDocumentRow, error) {
	source, err := json.Marshal(d.SourceAgent)
	if err != nil {
		return nil, err
	}
	target, err := json.Marshal(d.TargetAgent)
	if err != nil {
		return nil, err
	}
	progress, err := json.Marshal(d.TaskProgress)
	if err != nil {
		return nil, err
	}
	decisions, err := json.Marshal(d.DecisionsMade)
	if err != nil {
		return nil, err
	}
	rejected, err := json.Marshal(d.RejectedAlternatives)
	if err != nil {
		return nil, err
	}
	work, err := json.Marshal(d.WorkCompleted)
	if err != nil {
		return nil, err
	}
	todos, err := json.Marshal(d.TodoList)
	if err != nil {
		return nil, err
	}
	assumptions, err := json.Marshal(d.Assumptions)
	if err != nil {
		return nil, err
	}
	deps, err := json.Marshal(d.Dependencies)
	if err != nil {
		return nil, err
	}
	tokenSnapshot := d.TokenUsageSnapshot
	if tokenSnapshot == nil {
		tokenSnapshot = json.RawMessage("{}")
	}
	toolState := d.ToolState
	if toolState == nil {
		toolState = json.RawMessage("{}")
	}

	return &persistence.HandoffDocumentRow{
		HandoffID:            d.HandoffID,
		TraceID:              d.TraceID,
		UserID:               d.UserID,
		Role:                 d.Role,
		SourceAgent:          string(source),
		TargetAgent:          string(target),
		TokenUsageSnapshot:   string(tokenSnapshot),
		TaskProgress:         string(progress),
		OriginalRequest:      d.OriginalRequest,
		TaskDescription:      d.TaskDescription,
		DecisionsMade:        string(decisions),
		RejectedAlternatives: string(rejected),
		WorkCompleted:        string(work),
		CurrentWIP:           d.CurrentWIP,
		TodoList:             string(todos),
		ToolState:            string(toolState),
		Assumptions:          string(assumptions),
		Dependencies:         string(deps),
		ProjectID:            d.ProjectID,
		PredecessorHandoffID: d.PredecessorHandoffID,
		IsActive:             d.IsActive,
		ContinuationPrompt:   d.ContinuationPrompt,
		CreatedAt:            d.CreatedAt,
	}, nil
}

func fromRow(row *persistence.HandoffDocumentRow) (*Document, error) {
	d := &Document{
		HandoffID:            row.HandoffID,
		TraceID:              row.TraceID,
		UserID:               row.UserID,
		Role:                 row.Role,
		OriginalRequest:      row.OriginalRequest,
		TaskDescription:      row.TaskDescription,
		CurrentWIP:           row.CurrentWIP,
		ProjectID:            row.ProjectID,
		PredecessorHandoffID: row.PredecessorHandoffID,
		IsActive:             row.IsActive,
		ContinuationPrompt:   row.ContinuationPrompt,
		CreatedAt:            row.CreatedAt,
		TokenUsageSnapshot:   json.RawMessage(row.TokenUsageSnapshot),
		ToolState:            json.RawMessage(row.ToolState),
	}
	if err := json.Unmarshal([]byte(row.SourceAgent), &d.SourceAgent); err != nil {
		return nil, fmt.Errorf("handoff: decode source_agent: %w", err)
	}
	if err := json.Unmarshal([]byte(row.TargetAgent), &d.TargetAgent); err != nil {
		return nil, fmt.Errorf("handoff: decode target_agent: %w", err)
	}
	if err := json.Unmarshal([]byte(row.TaskProgress), &d.TaskProgress); err != nil {
		return nil, fmt.Errorf("handoff: decode task_progress: %w", err)
	}
	if row.DecisionsMade != "" {
		if err := json.Unmarshal([]byte(row.DecisionsMade), &d.DecisionsMade); err != nil {
			return nil, fmt.Errorf("handoff: decode decisions_made: %w", err)
		}
	}
	if row.RejectedAlternatives != "" {
		if err := json.Unmarshal([]byte(row.RejectedAlternatives), &d.RejectedAlternatives); err != nil {
			return nil, fmt.Errorf("handoff: decode rejected_alternatives: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(row.WorkCompleted), &d.WorkCompleted); err != nil {
		return nil, fmt.Errorf("handoff: decode work_completed: %w", err)
	}
	if row.TodoList != "" {
		if err := json.Unmarshal([]byte(row.TodoList), &d.TodoList); err != nil {
			return nil, fmt.Errorf("handoff: decode todo_list: %w", err)
		}
	}
	if row.Assumptions != "" {
		if err := json.Unmarshal([]byte(row.Assumptions), &d.Assumptions); err != nil {
			return nil, fmt.Errorf("handoff: decode assumptions: %w", err)
		}
	}
	if row.Dependencies != "" {
		if err := json.Unmarshal([]byte(row.Dependencies), &d.Dependencies); err != nil {
			return nil, fmt.Errorf("handoff: decode dependencies: %w", err)
		}
	}
	return d, nil
}
