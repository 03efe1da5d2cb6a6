package orcherrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTransientNilIsNil(t *testing.T) {
	assert.Nil(t, NewTransient("llm_call", nil))
}

func TestNewTransientMatchesSentinelViaErrorsIs(t *testing.T) {
	base := errors.New("connection reset")
	wrapped := NewTransient("tool_call:deploy", base)

	assert.True(t, errors.Is(wrapped, ErrTransientExternal))
	assert.True(t, errors.Is(wrapped, base))
	assert.Contains(t, wrapped.Error(), "tool_call:deploy")
}

func TestTransientErrorUnwrap(t *testing.T) {
	base := errors.New("timeout")
	wrapped := &TransientError{Op: "state_save", Err: base}
	assert.Equal(t, base, errors.Unwrap(wrapped))
}
