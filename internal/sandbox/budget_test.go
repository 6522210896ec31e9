package sandbox

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBudgetSamplesEveryPollNearCeiling(t *testing.T) {
	runtime.GC()
	b := newBudget(context.Background(), Limits{MaxInstructions: 1 << 40, MaxMemory: 1 << 20})

	first := make([]byte, 800<<10)
	for i := 0; i < sampleEvery; i++ {
		b.spend()
	}
	assert.True(t, b.hot)

	// One poll past a sample point is enough once growth is over half the
	// ceiling.
	second := make([]byte, 400<<10)
	assert.False(t, b.spend())
	assert.ErrorIs(t, b.Err(), ErrMemoryLimit)

	runtime.KeepAlive(first)
	runtime.KeepAlive(second)
}

func TestBudgetInstructionLimit(t *testing.T) {
	b := newBudget(context.Background(), Limits{MaxInstructions: 3, MaxMemory: 1 << 30})
	for i := 0; i < 3; i++ {
		assert.True(t, b.spend())
	}
	assert.False(t, b.spend())
	assert.ErrorIs(t, b.Err(), ErrInstructionLimit)

	select {
	case <-b.Done():
	default:
		t.Fatal("done channel still open after the budget tripped")
	}
}
