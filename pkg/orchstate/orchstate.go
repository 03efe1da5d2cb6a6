// Package orchstate is the typed façade over pkg/persistence implementing
// the Orchestrator State Store (spec §4.3). It keeps raw SQL and JSON
// marshaling out of pkg/workflow, the way the teacher keeps persistence
// concerns behind pkg/persistence and lets callers work with Go values.
package orchstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agentcore/pkg/orcherrors"
	"agentcore/pkg/persistence"
)

// Phase is the workflow phase machine state (spec §4.4.2).
type Phase string

const (
	PhasePlanning      Phase = "planning"
	PhaseDesign        Phase = "design"
	PhaseBackend       Phase = "backend"
	PhaseImplementation Phase = "implementation"
	PhaseReview        Phase = "review"
	PhaseDeployment    Phase = "deployment"
	PhaseCompleted     Phase = "completed"
	PhaseFailed        Phase = "failed"
	PhaseCancelled     Phase = "cancelled"
)

// WorkflowType selects which phase graph a workflow follows (spec §4.4.1).
type WorkflowType string

const (
	WorkflowFullBuild  WorkflowType = "full_build"
	WorkflowBugFix     WorkflowType = "bug_fix"
	WorkflowRedeploy   WorkflowType = "redeploy"
	WorkflowDesignOnly WorkflowType = "design_only"
	WorkflowCustom     WorkflowType = "custom"
)

// State is the in-memory form of the Orchestrator State entity (spec.md §3).
type State struct {
	UserID                 string
	Platform               string
	IsActive               bool
	CurrentPhase           Phase
	WorkflowType           WorkflowType
	OriginalPrompt         string
	AccumulatedRefinements []string
	CurrentDesignSpec      json.RawMessage
	CurrentImplementation  json.RawMessage
	StepsCompleted         []string
	StepsTotal             int
	CurrentAgentWorking    string
	CurrentTaskDescription string
	ProjectID              string
	ProjectMetadata        json.RawMessage
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Store is the typed state store that pkg/workflow's Engine holds directly
// (as *orchstate.Store) and that satisfies pkg/router's StateStore interface.
type Store struct {
	ops *persistence.DatabaseOperations
}

// New wraps a *persistence.DB's operations in the typed façade.
func New(db *persistence.DB) *Store {
	return &Store{ops: db.Ops()}
}

// Save upserts state, per spec §4.3 with monotonic updated_at enforced by
// the underlying persistence layer.
func (s *Store) Save(state *State) error {
	row, err := toRow(state)
	if err != nil {
		return fmt.Errorf("orchstate: encode state for %s: %w", state.UserID, err)
	}
	if err := s.ops.SaveOrchestratorState(row); err != nil {
		return err
	}
	state.CreatedAt = row.CreatedAt
	state.UpdatedAt = row.UpdatedAt
	return nil
}

// Load returns the state for userID, or orcherrors.ErrNotFound.
func (s *Store) Load(userID string) (*State, error) {
	row, err := s.ops.LoadOrchestratorState(userID)
	if err != nil {
		return nil, err
	}
	return fromRow(row)
}

// Delete removes the state for userID (final completion or cancellation).
func (s *Store) Delete(userID string) error {
	return s.ops.DeleteOrchestratorState(userID)
}

// ListActive returns every user_id with an active orchestrator state, used
// at startup for crash recovery.
func (s *Store) ListActive() ([]string, error) {
	return s.ops.ListActiveUserIDs()
}

// AppendAudit records an append-only audit event for userID.
func (s *Store) AppendAudit(userID, eventType string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("orchstate: encode audit payload: %w", err)
	}
	return s.ops.AppendAudit(userID, eventType, string(encoded))
}

// CleanupStale purges records whose updated_at is older than maxAge.
func (s *Store) CleanupStale(maxAge time.Duration) (int64, error) {
	return s.ops.CleanupStale(maxAge)
}

func toRow(state *State) (*persistence.OrchestratorStateRow, error) {
	refinements, err := json.Marshal(state.AccumulatedRefinements)
	if err != nil {
		return nil, err
	}
	steps, err := json.Marshal(state.StepsCompleted)
	if err != nil {
		return nil, err
	}
	projectMeta := state.ProjectMetadata
	if projectMeta == nil {
		projectMeta = json.RawMessage("{}")
	}

	return &persistence.OrchestratorStateRow{
		UserID:                 state.UserID,
		Platform:               state.Platform,
		IsActive:               state.IsActive,
		CurrentPhase:           string(state.CurrentPhase),
		WorkflowType:           string(state.WorkflowType),
		OriginalPrompt:         state.OriginalPrompt,
		AccumulatedRefinements: string(refinements),
		CurrentDesignSpec:      string(state.CurrentDesignSpec),
		CurrentImplementation:  string(state.CurrentImplementation),
		StepsCompleted:         string(steps),
		StepsTotal:             state.StepsTotal,
		CurrentAgentWorking:    state.CurrentAgentWorking,
		CurrentTaskDescription: state.CurrentTaskDescription,
		ProjectID:              state.ProjectID,
		ProjectMetadata:        string(projectMeta),
		CreatedAt:              state.CreatedAt,
		UpdatedAt:              state.UpdatedAt,
	}, nil
}

func fromRow(row *persistence.OrchestratorStateRow) (*State, error) {
	var refinements []string
	if row.AccumulatedRefinements != "" {
		if err := json.Unmarshal([]byte(row.AccumulatedRefinements), &refinements); err != nil {
			return nil, fmt.Errorf("orchstate: decode refinements: %w", err)
		}
	}
	var steps []string
	if row.StepsCompleted != "" {
		if err := json.Unmarshal([]byte(row.StepsCompleted), &steps); err != nil {
			return nil, fmt.Errorf("orchstate: decode steps_completed: %w", err)
		}
	}

	state := &State{
		UserID:                 row.UserID,
		Platform:               row.Platform,
		IsActive:               row.IsActive,
		CurrentPhase:           Phase(row.CurrentPhase),
		WorkflowType:           WorkflowType(row.WorkflowType),
		OriginalPrompt:         row.OriginalPrompt,
		AccumulatedRefinements: refinements,
		StepsCompleted:         steps,
		StepsTotal:             row.StepsTotal,
		CurrentAgentWorking:    row.CurrentAgentWorking,
		CurrentTaskDescription: row.CurrentTaskDescription,
		ProjectID:              row.ProjectID,
		CreatedAt:              row.CreatedAt,
		UpdatedAt:              row.UpdatedAt,
	}
	if row.CurrentDesignSpec != "" {
		state.CurrentDesignSpec = json.RawMessage(row.CurrentDesignSpec)
	}
	if row.CurrentImplementation != "" {
		state.CurrentImplementation = json.RawMessage(row.CurrentImplementation)
	}
	if row.ProjectMetadata != "" {
		state.ProjectMetadata = json.RawMessage(row.ProjectMetadata)
	}
	return state, nil
}

// IsNotFound reports whether err is the not-found sentinel, re-exported so
// callers need not import pkg/orcherrors solely for this check.
func IsNotFound(err error) bool {
	return errors.Is(err, orcherrors.ErrNotFound)
}
