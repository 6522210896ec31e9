package sandbox

import (
	"context"
	"runtime/metrics"
	"time"
)

// sampleEvery is how many polls pass between heap and parent checks while
// growth stays under half the ceiling. Past that point every poll samples, so
// the ceiling is overshot by at most one instruction's allocation.
const sampleEvery = 16

const heapMetric = "/memory/classes/heap/objects:bytes"

// budget is the context handed to the VM. Done is called once per executed
// instruction, which is what makes it an instruction counter. It is owned by
// a single LState and is not safe for concurrent use.
type budget struct {
	parent context.Context
	limits Limits
	done   chan struct{}
	err    error

	polls  int64
	base   uint64
	hot    bool
	sample []metrics.Sample
}

func newBudget(parent context.Context, limits Limits) *budget {
	b := &budget{
		parent: parent,
		limits: limits,
		done:   make(chan struct{}),
		sample: []metrics.Sample{{Name: heapMetric}},
	}
	b.base = b.heap()
	return b
}

func (b *budget) Deadline() (time.Time, bool) { return b.parent.Deadline() }
func (b *budget) Value(key any) any          { return b.parent.Value(key) }
func (b *budget) Err() error                 { return b.err }

func (b *budget) Done() <-chan struct{} {
	b.spend()
	return b.done
}

// spend charges one unit of work and reports whether the budget still holds.
// Library functions that loop in Go call it directly.
func (b *budget) spend() bool {
	if b.err != nil {
		return false
	}
	b.polls++
	if b.polls > b.limits.MaxInstructions {
		b.trip(ErrInstructionLimit)
		return false
	}
	if b.hot || b.polls%sampleEvery == 0 {
		if b.parent.Err() != nil {
			b.trip(ErrTimeout)
			return false
		}
		g := b.growth()
		if g > b.limits.MaxMemory {
			b.trip(ErrMemoryLimit)
			return false
		}
		b.hot = g > b.limits.MaxMemory/2
	}
	return true
}

func (b *budget) trip(kind error) {
	if b.err != nil {
		return
	}
	b.err = kind
	close(b.done)
}

// growth reports heap growth since the lowest level observed during the
// call. Measuring from the minimum keeps garbage that was live at start from
// hiding real growth once it is collected.
func (b *budget) growth() int64 {
	cur := b.heap()
	if cur < b.base {
		b.base = cur
		return 0
	}
	return int64(cur - b.base)
}

func (b *budget) heap() uint64 {
	metrics.Read(b.sample)
	if b.sample[0].Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return b.sample[0].Value.Uint64()
}
