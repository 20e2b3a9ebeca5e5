package metrics

import (
	"math"

	"github.com/san-kum/fwcbf/internal/dynamo"
)

// BarrierFunc evaluates a barrier value at a joint state.
type BarrierFunc interface {
	H(x dynamo.JointState) float64
}

// MinBarrier tracks the lowest barrier value seen. A negative value means
// the predicted closest approach broke the safety distance at some point.
type MinBarrier struct {
	barrier BarrierFunc
	min     float64
}

func NewMinBarrier(b BarrierFunc) *MinBarrier {
	return &MinBarrier{barrier: b, min: math.Inf(1)}
}

func (m *MinBarrier) Name() string { return "min_barrier" }

func (m *MinBarrier) Observe(x dynamo.JointState, u dynamo.JointAction, t float64) {
	m.min = math.Min(m.min, m.barrier.H(x))
}

func (m *MinBarrier) Value() float64 {
	if math.IsInf(m.min, 1) {
		return 0
	}
	return m.min
}

func (m *MinBarrier) Reset() { m.min = math.Inf(1) }
