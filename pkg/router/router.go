// Package router implements the Message Router (spec §4.1): the user-facing
// entry point that loads/creates a session, decides whether an active
// workflow owns the conversation, classifies the message accordingly, and
// dispatches to the Workflow Engine or a single-turn conversational reply.
// Grounded on the teacher's pkg/dispatch composition-of-small-services
// idiom (spec.md §9 REDESIGN FLAG): every dependency is a field set once at
// construction, never a package global.
package router

import (
	"context"
	"fmt"

	"agentcore/pkg/logx"
	"agentcore/pkg/orchstate"
	"agentcore/pkg/session"
	"agentcore/pkg/workflow"
)

// StateStore is the subset of *orchstate.Store the router needs.
type StateStore interface {
	Load(userID string) (*orchstate.State, error)
}

// Notifier delivers out-of-band confirmations for commands that have no
// synchronous reply channel (spec §4.9: fire-and-forget, errors logged by
// the implementation, never raised to the caller).
type Notifier interface {
	Notify(ctx context.Context, userID, text string)
}

// Router composes the Session Store, Orchestrator State Store, both
// classifiers, the Workflow Engine façade, the Notifier and the
// conversation replier (spec §4.1 added detail). The state store, Notifier
// and ConversationReplier are interface-typed; the session store,
// classifiers and engine are concrete pointers.
type Router struct {
	sessions     *session.Store
	states       StateStore
	classifier   *Classifier
	webappIntent *WebappIntentClassifier
	engine       *workflow.Engine
	notifier     Notifier
	conversation ConversationReplier
	log          *logx.Logger
}

// ConversationReplier answers a single-turn conversational message. A thin
// seam over the same LLMCaller every agent uses, kept separate so the
// router never depends on pkg/agent directly.
type ConversationReplier interface {
	Reply(ctx context.Context, userID, message string) (string, error)
}

// New builds a Router. Every argument is a concrete dependency constructed
// and owned by the caller's composition root; Router holds no globals.
func New(
	sessions *session.Store,
	states StateStore,
	classifier *Classifier,
	webappIntent *WebappIntentClassifier,
	engine *workflow.Engine,
	notifier Notifier,
	conversation ConversationReplier,
	log *logx.Logger,
) *Router {
	return &Router{
		sessions: sessions, states: states, classifier: classifier,
		webappIntent: webappIntent, engine: engine, notifier: notifier,
		conversation: conversation, log: log,
	}
}

// HandleMessage is the router's single entry point (spec §4.1
// handle_message): load/create the session, append the user turn, decide
// whether an active workflow owns this conversation, dispatch accordingly,
// append the assistant turn, and return the reply text.
func (r *Router) HandleMessage(ctx context.Context, userID, platform, text string) (string, error) {
	sess := r.sessions.Get(userID, platform)
	r.sessions.Append(userID, platform, session.RoleUser, text)

	reply, err := r.route(ctx, userID, platform, text, sess)
	if err != nil {
		// Session/state failures still produce a user-visible reply per
		// spec §4.1 Errors ("best effort" / "fail closed" messaging).
		r.sessions.Append(userID, platform, session.RoleAssistant, reply)
		return reply, err
	}
	r.sessions.Append(userID, platform, session.RoleAssistant, reply)
	return reply, nil
}

func (r *Router) route(ctx context.Context, userID, platform, text string, sess *session.Session) (string, error) {
	st, err := r.states.Load(userID)
	active := err == nil && st.IsActive
	if err != nil && !orchstate.IsNotFound(err) {
		// Orchestrator state store failure: fail closed for workflow start
		// (spec §4.1 Errors).
		return "Something went wrong checking your workflow status. Please try again shortly.", err
	}

	if active {
		return r.routeActive(ctx, userID, text, st)
	}
	return r.routeIdle(ctx, userID, platform, text)
}

func (r *Router) routeActive(ctx context.Context, userID, text string, st *orchstate.State) (string, error) {
	classifyCtx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()
	class, err := r.classifier.Classify(classifyCtx, text, workflowSummary(st), string(st.CurrentPhase))
	if err != nil {
		r.log.Warn("router: classify failed for %s, degrading to conversation: %v", userID, err)
	}

	switch class {
	case ClassRefinement:
		if err := r.engine.Refine(ctx, userID, text); err != nil {
			return "I couldn't record that refinement right now.", err
		}
		return "Got it — I'll fold that into the current work.", nil
	case ClassStatusQuery:
		snap, err := r.engine.Status(ctx, userID)
		if err != nil {
			return "I couldn't fetch your workflow status right now.", err
		}
		return formatStatus(snap), nil
	case ClassCancellation:
		if err := r.engine.Cancel(ctx, userID); err != nil {
			return "I couldn't cancel the workflow right now.", err
		}
		return "Cancelled. Let me know if you'd like to start something new.", nil
	case ClassNewTask:
		return "You already have an active task in progress; cancel it first if you'd like to start something new.", nil
	default: // conversation, or classifier failure
		return r.replyConversation(ctx, userID, text)
	}
}

func (r *Router) routeIdle(ctx context.Context, userID, platform, text string) (string, error) {
	classifyCtx, cancel := context.WithTimeout(ctx, classifyTimeout)
	defer cancel()
	intent, err := r.webappIntent.Classify(classifyCtx, text)
	if err != nil {
		r.log.Warn("router: webapp-intent classify failed for %s, degrading to conversation: %v", userID, err)
	}
	if intent == IntentWorkflow {
		if err := r.engine.StartWorkflow(ctx, userID, platform, text); err != nil {
			return "I couldn't start that workflow right now. Please try again shortly.", err
		}
		return "Starting work on that now — I'll keep you posted.", nil
	}
	return r.replyConversation(ctx, userID, text)
}

func (r *Router) replyConversation(ctx context.Context, userID, text string) (string, error) {
	reply, err := r.conversation.Reply(ctx, userID, text)
	if err != nil {
		return "Sorry, I couldn't come up with a reply right now.", err
	}
	return reply, nil
}

// ResetSession clears userID's conversation history without touching
// orchestrator state (spec §4.1 reset_session). Unlike HandleMessage this
// has no synchronous reply channel, so confirmation goes through the
// Notifier.
func (r *Router) ResetSession(ctx context.Context, userID string) {
	r.sessions.Clear(userID)
	r.notifier.Notify(ctx, userID, "Conversation history cleared.")
}

// CancelActive terminates any active workflow for userID (spec §4.1
// cancel_active). Like ResetSession, this is an out-of-band command with no
// synchronous reply channel.
func (r *Router) CancelActive(ctx context.Context, userID string) error {
	if err := r.engine.Cancel(ctx, userID); err != nil {
		return err
	}
	r.notifier.Notify(ctx, userID, "Active workflow cancelled.")
	return nil
}

func workflowSummary(st *orchstate.State) string {
	return fmt.Sprintf("type=%s phase=%s prompt=%s", st.WorkflowType, st.CurrentPhase, st.OriginalPrompt)
}

func formatStatus(s *workflow.StatusSnapshot) string {
	return fmt.Sprintf("Phase: %s (%d%% complete, %d/%d steps). Current agent: %s.",
		s.Phase, s.ProgressPercent, s.StepsCompleted, s.StepsTotal, s.CurrentAgent)
}
