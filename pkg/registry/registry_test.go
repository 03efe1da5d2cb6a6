package registry

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireCreatesInstanceLazily(t *testing.T) {
	r := New(1000, 0.75, 0.90, false)
	inst, err := r.Acquire("user-1", RoleBackend)
	require.NoError(t, err)
	assert.Equal(t, 1, inst.Version)
	assert.True(t, strings.HasPrefix(inst.AgentID, "backend_v1_"))
	assert.Equal(t, StateActive, ActiveState(inst))
}

func TestAcquireReturnsSameInstanceWhileActive(t *testing.T) {
	r := New(1000, 0.75, 0.90, false)
	a, err := r.Acquire("user-1", RoleBackend)
	require.NoError(t, err)
	b, err := r.Acquire("user-1", RoleBackend)
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestReleaseTerminatesWhenCachingOff(t *testing.T) {
	var terminated *Instance
	var mu sync.Mutex
	r := New(1000, 0.75, 0.90, false)
	r.RegisterCallbacks(Callbacks{OnTerminated: func(userID string, inst *Instance) {
		mu.Lock()
		terminated = inst
		mu.Unlock()
	}})

	inst, err := r.Acquire("user-1", RoleBackend)
	require.NoError(t, err)
	r.Release("user-1", RoleBackend)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return terminated == inst
	}, time.Second, 5*time.Millisecond)

	again, err := r.Acquire("user-1", RoleBackend)
	require.NoError(t, err)
	assert.NotSame(t, inst, again, "terminated instance must not be reused")
}

func TestReleaseCachesWhenCachingOn(t *testing.T) {
	r := New(1000, 0.75, 0.90, true)
	inst, err := r.Acquire("user-1", RoleBackend)
	require.NoError(t, err)
	r.Release("user-1", RoleBackend)

	again, err := r.Acquire("user-1", RoleBackend)
	require.NoError(t, err)
	assert.Same(t, inst, again, "cached instance should be reused")
}

func TestAcquireDiscardsCachedInstanceAtOrAboveWarnFraction(t *testing.T) {
	var terminated *Instance
	var mu sync.Mutex
	r := New(100, 0.5, 0.9, true)
	r.RegisterCallbacks(Callbacks{OnTerminated: func(userID string, inst *Instance) {
		mu.Lock()
		terminated = inst
		mu.Unlock()
	}})

	inst, err := r.Acquire("user-1", RoleBackend)
	require.NoError(t, err)
	r.RecordUsage("user-1", inst, "op", 60, 0, 0) // 60/100 >= WARN_FRACTION 0.5
	r.Release("user-1", RoleBackend)

	again, err := r.Acquire("user-1", RoleBackend)
	require.NoError(t, err)
	assert.NotSame(t, inst, again, "an instance at/above WARN_FRACTION must not be reused from cache")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return terminated == inst
	}, time.Second, 5*time.Millisecond)
}

func TestRecordUsageCrossesWarningThenCritical(t *testing.T) {
	r := New(100, 0.5, 0.9, false)
	inst, err := r.Acquire("user-1", RoleBackend)
	require.NoError(t, err)

	status := r.RecordUsage("user-1", inst, "op1", 40, 20, 0)
	assert.Equal(t, UsageWarning, status)
	assert.Equal(t, StateWarning, ActiveState(inst))

	status = r.RecordUsage("user-1", inst, "op2", 30, 10, 0)
	assert.Equal(t, UsageCritical, status)
	assert.Equal(t, StateCritical, ActiveState(inst))
}

func TestRecordUsageInvokesOnCriticalSynchronously(t *testing.T) {
	r := New(100, 0.5, 0.9, false)
	inst, err := r.Acquire("user-1", RoleBackend)
	require.NoError(t, err)

	var handedOff bool
	r.RegisterCallbacks(Callbacks{OnCritical: func(userID string, inst *Instance) {
		handedOff = true
	}})

	r.RecordUsage("user-1", inst, "op1", 95, 0, 0)
	assert.True(t, handedOff, "OnCritical must run before RecordUsage returns")
}

func TestCompleteHandoffReplacesActiveInstance(t *testing.T) {
	r := New(1000, 0.75, 0.90, false)
	predecessor, err := r.Acquire("user-1", RoleBackend)
	require.NoError(t, err)

	successor, err := r.CompleteHandoff("user-1", RoleBackend, predecessor, "handoff-1")
	require.NoError(t, err)
	assert.Equal(t, 2, successor.Version)
	assert.Equal(t, "handoff-1", successor.PredecessorHandoffID)

	active, err := r.Acquire("user-1", RoleBackend)
	require.NoError(t, err)
	assert.Same(t, successor, active)

	assert.Eventually(t, func() bool {
		return ActiveState(predecessor) == StateTerminated
	}, time.Second, 5*time.Millisecond)
}

func TestReleaseAllTerminatesEveryRoleForUser(t *testing.T) {
	r := New(1000, 0.75, 0.90, false)
	_, err := r.Acquire("user-1", RoleBackend)
	require.NoError(t, err)
	_, err = r.Acquire("user-1", RoleQA)
	require.NoError(t, err)
	_, err = r.Acquire("user-2", RoleQA)
	require.NoError(t, err)

	r.ReleaseAll("user-1")

	a, err := r.Acquire("user-1", RoleBackend)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Version, "new instance should be created, not one released from before")

	b, err := r.Acquire("user-2", RoleQA)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Version)
}
