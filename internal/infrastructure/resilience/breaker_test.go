package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errLaunch = errors.New("chrome failed to start")

func attempt(b *Breaker, ok bool) error {
	return b.Do(context.Background(), func(context.Context) error {
		if ok {
			return nil
		}
		return errLaunch
	})
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		attempts      []bool // true = success, false = failure
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			settings:      Settings{Interval: time.Minute, Cooldown: time.Minute},
			attempts:      []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name:          "opens after consecutive failures",
			settings:      BrowserSettings(),
			attempts:      []bool{false, false, false},
			expectedState: StateOpen,
		},
		{
			name:          "success resets the failure streak",
			settings:      BrowserSettings(),
			attempts:      []bool{false, false, true, false, false},
			expectedState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker := New("browser", tt.settings)
			for _, ok := range tt.attempts {
				_ = attempt(breaker, ok)
			}
			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	breaker := New("browser", Settings{Interval: time.Minute, Cooldown: time.Minute})

	require.NoError(t, attempt(breaker, true))
	counts := breaker.Counts()
	assert.Equal(t, uint32(1), counts.Attempts)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.ConsecutiveSuccesses)

	assert.ErrorIs(t, attempt(breaker, false), errLaunch)
	counts = breaker.Counts()
	assert.Equal(t, uint32(2), counts.Attempts)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Equal(t, uint32(0), counts.ConsecutiveSuccesses)
}

func TestBreakerOpenRefusesAttempts(t *testing.T) {
	breaker := New("browser", BrowserSettings())
	for i := 0; i < 3; i++ {
		_ = attempt(breaker, false)
	}

	called := false
	err := breaker.Do(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenTrial(t *testing.T) {
	var transitions []string
	settings := BrowserSettings()
	settings.Cooldown = 20 * time.Millisecond
	settings.OnStateChange = func(_ string, from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}
	breaker := New("browser", settings)

	for i := 0; i < 3; i++ {
		_ = attempt(breaker, false)
	}
	require.Equal(t, StateOpen, breaker.State())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, breaker.State())

	require.NoError(t, attempt(breaker, true))
	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	settings := BrowserSettings()
	settings.Cooldown = 20 * time.Millisecond
	breaker := New("browser", settings)

	for i := 0; i < 3; i++ {
		_ = attempt(breaker, false)
	}
	time.Sleep(30 * time.Millisecond)

	assert.ErrorIs(t, attempt(breaker, false), errLaunch)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	breaker := New("browser", BrowserSettings())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for i := 0; i < 5; i++ {
		err := breaker.Do(ctx, func(ctx context.Context) error {
			cancel()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
	}

	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, uint32(0), breaker.Counts().TotalFailures)
}
