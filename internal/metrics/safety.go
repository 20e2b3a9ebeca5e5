package metrics

import "github.com/san-kum/fwcbf/internal/dynamo"

// SafeFraction is the share of observed states with separation above the
// safety distance.
type SafeFraction struct {
	name       string
	safetyDist float64
	violations int
	samples    int
}

func NewSafeFraction(safetyDist float64) *SafeFraction {
	return &SafeFraction{
		name:       "safe_fraction",
		safetyDist: safetyDist,
	}
}

func (s *SafeFraction) Name() string {
	return s.name
}

func (s *SafeFraction) Observe(x dynamo.JointState, u dynamo.JointAction, t float64) {
	s.samples++
	if x.Separation() <= s.safetyDist {
		s.violations++
	}
}

func (s *SafeFraction) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *SafeFraction) Reset() {
	s.violations = 0
	s.samples = 0
}
