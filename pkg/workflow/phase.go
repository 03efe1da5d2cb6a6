package workflow

import "agentcore/pkg/orchstate"

// phaseTransitions names every legal phase-to-phase move of the full_build
// graph (spec §4.4.2), in the teacher's explicit transition-map FSM idiom
// (pkg/architect/architect_fsm.go's `var xTransitions = map[State][]State{...}`).
// It is consulted by Run (through canTransition) to catch a programming error (a handler
// returning a phase its own phase cannot legally reach) before it is ever
// persisted.
var phaseTransitions = map[orchstate.Phase][]orchstate.Phase{
	orchstate.PhasePlanning:       {orchstate.PhaseDesign, orchstate.PhaseCancelled, orchstate.PhaseFailed},
	orchstate.PhaseDesign:         {orchstate.PhaseBackend, orchstate.PhaseImplementation, orchstate.PhaseCompleted, orchstate.PhaseCancelled, orchstate.PhaseFailed},
	orchstate.PhaseBackend:        {orchstate.PhaseImplementation, orchstate.PhaseCancelled, orchstate.PhaseFailed},
	orchstate.PhaseImplementation: {orchstate.PhaseReview, orchstate.PhaseCancelled, orchstate.PhaseFailed},
	orchstate.PhaseReview:         {orchstate.PhaseImplementation, orchstate.PhaseDeployment, orchstate.PhaseCancelled, orchstate.PhaseFailed},
	orchstate.PhaseDeployment:     {orchstate.PhaseCompleted, orchstate.PhaseImplementation, orchstate.PhaseCancelled, orchstate.PhaseFailed},
	orchstate.PhaseCompleted:      {},
	orchstate.PhaseFailed:         {},
	orchstate.PhaseCancelled:      {},
}

// isTerminal reports whether p ends the Run loop.
func isTerminal(p orchstate.Phase) bool {
	return p == orchstate.PhaseCompleted || p == orchstate.PhaseFailed || p == orchstate.PhaseCancelled
}

// canTransition reports whether from -> to is a legal phase move.
func canTransition(from, to orchstate.Phase) bool {
	for _, s := range phaseTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
