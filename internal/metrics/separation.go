package metrics

import (
	"math"

	"github.com/san-kum/fwcbf/internal/dynamo"
)

// MinSeparation is the closest the two aircraft came in the episode.
type MinSeparation struct {
	min float64
}

func NewMinSeparation() *MinSeparation {
	return &MinSeparation{min: math.Inf(1)}
}

func (m *MinSeparation) Name() string { return "min_separation" }

func (m *MinSeparation) Observe(x dynamo.JointState, u dynamo.JointAction, t float64) {
	m.min = math.Min(m.min, x.Separation())
}

// Value is zero before any observation.
func (m *MinSeparation) Value() float64 {
	if math.IsInf(m.min, 1) {
		return 0
	}
	return m.min
}

func (m *MinSeparation) Reset() { m.min = math.Inf(1) }
