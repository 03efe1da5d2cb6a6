package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracer(t *testing.T) *Tracer {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewTracer(NewMetrics(reg))
}

func TestStartRootHasNoParent(t *testing.T) {
	tr := newTestTracer(t)
	root := tr.StartRoot(SpanUserRequest)
	assert.Empty(t, root.ParentID)
	assert.NotEmpty(t, root.TraceID)
}

func TestStartChildInheritsTraceID(t *testing.T) {
	tr := newTestTracer(t)
	root := tr.StartRoot(SpanUserRequest)
	child := tr.StartChild(root, SpanWorkflow)

	assert.Equal(t, root.TraceID, child.TraceID)
	assert.Equal(t, root.ID, child.ParentID)
}

func TestEndIsIdempotent(t *testing.T) {
	tr := newTestTracer(t)
	span := tr.StartChild(tr.StartRoot(SpanUserRequest), SpanAgentTask)
	span.End()
	first := span.Duration()
	span.End()
	assert.Equal(t, first, span.Duration())
}

func TestSpanErrorsCounterIncrementsOnFail(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	tr := NewTracer(m)

	span := tr.StartChild(tr.StartRoot(SpanUserRequest), SpanLLMCall)
	span.Fail(assertErr())
	span.End()

	var out dto.Metric
	require.NoError(t, m.SpanErrors.WithLabelValues(SpanLLMCall).Write(&out))
	assert.Equal(t, float64(1), out.GetCounter().GetValue())
}

func assertErr() error { return errTest }

var errTest = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
