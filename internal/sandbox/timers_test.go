package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerDelay(t *testing.T) {
	tests := []struct {
		name string
		ms   int64
		want time.Duration
	}{
		{"negative", -5, time.Millisecond},
		{"zero", 0, time.Millisecond},
		{"regular", 250, 250 * time.Millisecond},
		{"largest", maxTimerDelay, maxTimerDelay * time.Millisecond},
		{"above largest", maxTimerDelay + 1, time.Millisecond},
		{"overflowing duration", 1e13, time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timerDelay(tt.ms))
		})
	}
}

func TestHugeTimeoutFiresImmediately(t *testing.T) {
	svc := newTestService(t, testConfig(t), nil)

	start := time.Now()
	result, err := svc.Execute(context.Background(), `
await new Promise(resolve => setTimeout(resolve, 1e13));
console.log('fired');
`, Options{})
	require.NoError(t, err)
	assert.Equal(t, "fired", result.Log)
	assert.Less(t, time.Since(start), 2*time.Second)
}
