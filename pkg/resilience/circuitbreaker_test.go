package resilience

import (
	"fmt"
	"testing"
	"time"

	"multiai-telebot/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBreaker(retry time.Duration) *CircuitBreaker {
	return NewCircuitBreaker(Config{
		Name:             "test",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		RetryTimeout:     retry,
	}, logger.New(logger.Config{Level: "error"}))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := newBreaker(time.Hour)
	failing := func() error { return fmt.Errorf("backend down") }

	for i := 0; i < 3; i++ {
		require.Error(t, cb.Execute(failing))
	}
	assert.Equal(t, StateOpen, cb.State())

	// Calls are shed without reaching the backend.
	err := cb.Execute(func() error {
		t.Fatal("must not be called while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := newBreaker(time.Millisecond)
	failing := func() error { return fmt.Errorf("backend down") }

	for i := 0; i < 3; i++ {
		cb.Execute(failing)
	}
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(5 * time.Millisecond)

	ok := func() error { return nil }
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	cb := newBreaker(time.Millisecond)
	failing := func() error { return fmt.Errorf("backend down") }

	for i := 0; i < 3; i++ {
		cb.Execute(failing)
	}
	time.Sleep(5 * time.Millisecond)

	require.Error(t, cb.Execute(failing))
	assert.Equal(t, StateOpen, cb.State())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := newBreaker(time.Hour)
	failing := func() error { return fmt.Errorf("flaky") }

	cb.Execute(failing)
	cb.Execute(failing)
	require.NoError(t, cb.Execute(func() error { return nil }))

	// Two more failures alone must not open the circuit.
	cb.Execute(failing)
	cb.Execute(failing)
	assert.Equal(t, StateClosed, cb.State())
}
