// Package orcherrors defines the sentinel error taxonomy of spec §7: one flat
// sentinel per error kind, checked with errors.Is/errors.As at the call sites
// named in the propagation policy. Grounded on the teacher's flat
// sentinel-error style (pkg/limiter's ErrRateLimit/ErrBudgetExceeded/ErrAgentLimit).
package orcherrors

import "errors"

var (
	// ErrTransientExternal marks a retryable failure of an external call
	// (network, rate-limit). Retried with backoff by pkg/resilience.Do;
	// surfaced as a workflow-step failure only once retries are exhausted.
	ErrTransientExternal = errors.New("orcherrors: transient external failure")

	// ErrContextExhausted names the CRITICAL context-budget condition. The
	// token tracker does not return it: it reports CRITICAL as UsageCritical,
	// and the Agent Registry's OnCritical callback starts the handoff.
	ErrContextExhausted = errors.New("orcherrors: agent context window exhausted")

	// ErrCircuitOpen is returned fail-fast while a circuit breaker is open.
	ErrCircuitOpen = errors.New("orcherrors: circuit open")

	// ErrClassificationFailed marks a classifier failure; the router degrades
	// to the conversation class rather than starting a workflow inadvertently.
	ErrClassificationFailed = errors.New("orcherrors: classification failed")

	// ErrPersistenceFailed marks a state-store write/read failure. On state
	// save, the workflow must not advance; the last durable checkpoint
	// remains canonical.
	ErrPersistenceFailed = errors.New("orcherrors: persistence failed")

	// ErrAgentInvalidOutput marks unparseable structured output from an agent
	// where structured output was required (handoff, review).
	ErrAgentInvalidOutput = errors.New("orcherrors: agent returned invalid structured output")

	// ErrCancelled marks a clean, user-initiated cancellation. Not a failure.
	ErrCancelled = errors.New("orcherrors: cancelled")

	// ErrUnrecoverable marks a workflow-ending failure after all applicable
	// retries; the Orchestrator State is deleted only after the failure has
	// been surfaced to the user.
	ErrUnrecoverable = errors.New("orcherrors: unrecoverable failure")

	// ErrTaskTimeout marks an A2A send_task/request_review call that expired
	// before the recipient replied.
	ErrTaskTimeout = errors.New("orcherrors: agent task timed out")

	// ErrNotFound marks a lookup miss (session, orchestrator state, handoff
	// document, agent instance) that the caller should treat as absent
	// rather than as a store failure.
	ErrNotFound = errors.New("orcherrors: not found")

	// ErrAlreadyActive marks an attempt to start a second active workflow,
	// handoff, or instance for a key that already has one (invariants 1-3 of
	// spec §8).
	ErrAlreadyActive = errors.New("orcherrors: already active")
)

// TransientError wraps an underlying error that pkg/resilience.Do should
// retry, attaching whatever the original external failure was.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	if e.Err == nil {
		return "orcherrors: transient failure in " + e.Op
	}
	return "orcherrors: transient failure in " + e.Op + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

// Is reports ErrTransientExternal for any *TransientError so callers can use
// errors.Is(err, ErrTransientExternal) without knowing the concrete type.
func (e *TransientError) Is(target error) bool { return target == ErrTransientExternal }

// NewTransient wraps err as a TransientError tagged with the failing operation.
func NewTransient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Op: op, Err: err}
}
