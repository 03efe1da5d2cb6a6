// Package registry implements the Agent Registry & Lifecycle (spec §4.5):
// the set of live Agent Instances per user, context-budget enforcement via
// pkg/registry's TokenTracker, and the caching policy that decides whether a
// released instance is torn down or retained. Grounded on the teacher's
// per-story lease map (pkg/dispatch.Dispatcher.leases/leasesMutex), adapted
// from a single global map to one registry instance per running process
// (spec §9 REDESIGN FLAG against module-level singletons).
package registry

import (
	"container/list"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Role is an agent's functional identity (spec.md §3 Agent Instance).
type Role string

const (
	RoleDesigner      Role = "designer"
	RoleBackend       Role = "backend"
	RoleFrontend      Role = "frontend"
	RoleCodeReviewer  Role = "code-reviewer"
	RoleQA            Role = "qa"
	RoleDevOps        Role = "devops"
)

// State is an Agent Instance's lifecycle state.
type State string

const (
	StateInitializing  State = "initializing"
	StateActive        State = "active"
	StateWarning       State = "warning"
	StateCritical      State = "critical"
	StateHandoffPending State = "handoff_pending"
	StateHandoffComplete State = "handoff_complete"
	StateTerminated    State = "terminated"
)

// Instance is one live Agent Instance (spec.md §3).
type Instance struct {
	AgentID              string
	Role                 Role
	Version              int
	State                State
	Tokens               *TokenTracker
	SpawnTime            time.Time
	PredecessorHandoffID string

	mu sync.Mutex
}

func (i *Instance) setState(s State) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.State = s
}

func (i *Instance) getState() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.State
}

// Callbacks are the fire-and-forget hooks invoked on threshold and
// lifecycle events (spec §4.5 register_callbacks).
type Callbacks struct {
	OnWarning    func(userID string, inst *Instance)
	OnCritical   func(userID string, inst *Instance)
	OnHandoff    func(userID string, inst *Instance)
	OnTerminated func(userID string, inst *Instance)
}

// key identifies a (user, role) active slot.
type key struct {
	userID string
	role   Role
}

// Registry owns every live Agent Instance across all users, enforcing at
// most one active|warning|critical instance per (user_id, role).
type Registry struct {
	contextLimit int
	warnFraction float64
	critFraction float64
	cachingOn    bool

	mu        sync.Mutex
	active    map[key]*Instance
	cache     map[key]*list.List // per-role LRU of released instances, when caching is on
	callbacks Callbacks
}

// New builds a Registry. contextLimit/warnFraction/critFraction come from
// spec §6.7 (CONTEXT_LIMIT, WARN_FRACTION, CRIT_FRACTION); cachingOn mirrors
// AGENT_CACHING.
func New(contextLimit int, warnFraction, critFraction float64, cachingOn bool) *Registry {
	return &Registry{
		contextLimit: contextLimit,
		warnFraction: warnFraction,
		critFraction: critFraction,
		cachingOn:    cachingOn,
		active:       make(map[key]*Instance),
		cache:        make(map[key]*list.List),
	}
}

// RegisterCallbacks sets the fire-and-forget hooks for threshold and
// lifecycle transitions. Not safe to call concurrently with Acquire/Release.
func (r *Registry) RegisterCallbacks(cb Callbacks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks = cb
}

// Acquire returns the active instance for (userID, role), creating one
// lazily (with version 1) if none exists yet, or reviving a cached one if
// caching is enabled and one is available.
func (r *Registry) Acquire(userID string, role Role) (*Instance, error) {
	k := key{userID: userID, role: role}

	r.mu.Lock()
	var stale []*Instance
	inst, err := func() (*Instance, error) {
		if inst, ok := r.active[k]; ok {
			return inst, nil
		}

		if r.cachingOn {
			if lru, ok := r.cache[k]; ok {
				for elem := lru.Front(); elem != nil; {
					next := elem.Next()
					cached := elem.Value.(*Instance)
					lru.Remove(elem)
					// spec.md §9 open question: a cached instance may only
					// be reused below WARN_FRACTION; at or above it, it is
					// too close to its context limit to safely resume and
					// is torn down instead of reactivated.
					if cached.Tokens.UsageFraction() < r.warnFraction {
						cached.setState(StateActive)
						r.active[k] = cached
						return cached, nil
					}
					stale = append(stale, cached)
					elem = next
				}
			}
		}

		id, err := newAgentID(role, 1)
		if err != nil {
			return nil, fmt.Errorf("registry: generate agent id: %w", err)
		}
		fresh := &Instance{
			AgentID:   id,
			Role:      role,
			Version:   1,
			State:     StateActive,
			Tokens:    NewTokenTracker(r.contextLimit, r.warnFraction, r.critFraction),
			SpawnTime: time.Now(),
		}
		r.active[k] = fresh
		return fresh, nil
	}()
	r.mu.Unlock()

	for _, s := range stale {
		r.terminate(userID, s)
	}
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// Release ends the caller's use of (userID, role)'s active instance. When
// caching is off (default) the instance is terminated immediately; when on,
// it moves to a per-role LRU for possible reuse.
func (r *Registry) Release(userID string, role Role) {
	k := key{userID: userID, role: role}

	r.mu.Lock()
	inst, ok := r.active[k]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.active, k)

	if !r.cachingOn {
		r.mu.Unlock()
		r.terminate(userID, inst)
		return
	}

	inst.setState(StateInitializing)
	lru, ok := r.cache[k]
	if !ok {
		lru = list.New()
		r.cache[k] = lru
	}
	lru.PushFront(inst)
	r.mu.Unlock()
}

// RecordUsage updates inst's token tracker and, if usage crosses into
// CRITICAL for the first time, synchronously invokes OnCritical so the
// caller (the Handoff Manager) can complete the handoff before this call
// returns (spec §4.5 threshold policy).
func (r *Registry) RecordUsage(userID string, inst *Instance, opName string, input, output, cached int) UsageStatus {
	status, crossed := inst.Tokens.Record(opName, input, output, cached)
	if !crossed {
		return status
	}

	r.mu.Lock()
	cb := r.callbacks
	r.mu.Unlock()

	switch status {
	case UsageWarning:
		inst.setState(StateWarning)
		if cb.OnWarning != nil {
			go cb.OnWarning(userID, inst)
		}
	case UsageCritical:
		inst.setState(StateCritical)
		if cb.OnCritical != nil {
			cb.OnCritical(userID, inst)
		}
	}
	return status
}

// MarkHandoffPending flags inst so no further tasks are routed to it
// (spec §4.6 step 1), and fires OnHandoff.
func (r *Registry) MarkHandoffPending(userID string, inst *Instance) {
	inst.setState(StateHandoffPending)
	r.mu.Lock()
	cb := r.callbacks
	r.mu.Unlock()
	if cb.OnHandoff != nil {
		go cb.OnHandoff(userID, inst)
	}
}

// CompleteHandoff replaces the active instance for (userID, role) with
// successor, terminating the predecessor (spec §4.6 step 5-6).
func (r *Registry) CompleteHandoff(userID string, role Role, predecessor *Instance, successorHandoffID string) (*Instance, error) {
	id, err := newAgentID(role, predecessor.Version+1)
	if err != nil {
		return nil, fmt.Errorf("registry: generate successor id: %w", err)
	}
	successor := &Instance{
		AgentID:              id,
		Role:                 role,
		Version:              predecessor.Version + 1,
		State:                StateActive,
		Tokens:               NewTokenTracker(r.contextLimit, r.warnFraction, r.critFraction),
		SpawnTime:            time.Now(),
		PredecessorHandoffID: successorHandoffID,
	}

	r.mu.Lock()
	r.active[key{userID: userID, role: role}] = successor
	cb := r.callbacks
	r.mu.Unlock()

	predecessor.setState(StateHandoffComplete)
	predecessor.setState(StateTerminated)
	if cb.OnTerminated != nil {
		go cb.OnTerminated(userID, predecessor)
	}
	return successor, nil
}

// ReleaseAll terminates every active instance for userID across all roles,
// and discards anything cached for that user (spec §4.5 cleanup).
func (r *Registry) ReleaseAll(userID string) {
	r.mu.Lock()
	var toTerminate []*Instance
	for k, inst := range r.active {
		if k.userID == userID {
			toTerminate = append(toTerminate, inst)
			delete(r.active, k)
		}
	}
	for k := range r.cache {
		if k.userID == userID {
			delete(r.cache, k)
		}
	}
	r.mu.Unlock()

	for _, inst := range toTerminate {
		r.terminate(userID, inst)
	}
}

func (r *Registry) terminate(userID string, inst *Instance) {
	inst.setState(StateTerminated)
	r.mu.Lock()
	cb := r.callbacks
	r.mu.Unlock()
	if cb.OnTerminated != nil {
		go cb.OnTerminated(userID, inst)
	}
}

// ActiveState returns inst's current lifecycle state (safe for concurrent
// callers who only hold a reference to the Instance).
func ActiveState(inst *Instance) State {
	return inst.getState()
}

func newAgentID(role Role, version int) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_v%d_%s", role, version, hex.EncodeToString(buf)), nil
}
