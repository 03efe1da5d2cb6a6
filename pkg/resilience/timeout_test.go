package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"agentcore/pkg/orcherrors"
)

func TestWithTimeoutReturnsResultOnTime(t *testing.T) {
	err := WithTimeout(context.Background(), 50*time.Millisecond, func(ctx context.Context) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestWithTimeoutExpiresAsTaskTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, orcherrors.ErrTaskTimeout)
}

func TestWithTimeoutDistinguishesParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithTimeout(parent, time.Second, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, orcherrors.ErrTaskTimeout)
}

func TestWithTimeoutRecoversPanic(t *testing.T) {
	err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) error {
		panic(errors.New("agent exploded"))
	})
	assert.Error(t, err)
}
