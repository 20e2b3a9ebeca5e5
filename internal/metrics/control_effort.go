package metrics

import (
	"math"

	"github.com/san-kum/fwcbf/internal/dynamo"
)

// ControlEffort is the mean ownship turn rate magnitude in deg/s. Level
// straight flight scores zero however fast it is flown.
type ControlEffort struct {
	turnDeg float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{}
}

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(x dynamo.JointState, u dynamo.JointAction, t float64) {
	c.turnDeg += math.Abs(dynamo.RadToDeg(u.A1.W))
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.turnDeg / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.turnDeg, c.samples = 0, 0
}
