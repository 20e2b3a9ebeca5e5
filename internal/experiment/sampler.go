package experiment

import (
	"math/rand"

	"github.com/san-kum/fwcbf/internal/config"
	"github.com/san-kum/fwcbf/internal/dynamo"
)

// Start is what an episode begins from: both starting states and the goal
// each aircraft flies toward.
type Start struct {
	X1, X2       dynamo.SingleState
	Goal1, Goal2 dynamo.Point
}

// Sampler draws starting states uniformly per component within the
// configured reset limits. Goals without limits keep the given defaults.
type Sampler struct {
	limits       config.ResetLimits
	goal1, goal2 dynamo.Point
	rng          *rand.Rand
}

func NewSampler(limits config.ResetLimits, goal1, goal2 dynamo.Point, seed int64) *Sampler {
	return &Sampler{
		limits: limits,
		goal1:  goal1,
		goal2:  goal2,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (s *Sampler) Sample() Start {
	st := Start{
		X1:    s.pose(s.limits.Ownship).State(),
		X2:    s.pose(s.limits.Intruder).State(),
		Goal1: s.goal1,
		Goal2: s.goal2,
	}
	if r := s.limits.Goal1; r != nil {
		st.Goal1 = s.point(*r)
	}
	if r := s.limits.Goal2; r != nil {
		st.Goal2 = s.point(*r)
	}
	return st
}

func (s *Sampler) uniform(lo, hi float64) float64 { return lo + s.rng.Float64()*(hi-lo) }

func (s *Sampler) pose(r config.PoseRange) config.Pose {
	return config.Pose{
		X:          s.uniform(r.Low.X, r.High.X),
		Y:          s.uniform(r.Low.Y, r.High.Y),
		Z:          s.uniform(r.Low.Z, r.High.Z),
		HeadingDeg: s.uniform(r.Low.HeadingDeg, r.High.HeadingDeg),
	}
}

func (s *Sampler) point(r config.PointRange) dynamo.Point {
	return dynamo.Point{
		X: s.uniform(r.Low.X, r.High.X),
		Y: s.uniform(r.Low.Y, r.High.Y),
		Z: s.uniform(r.Low.Z, r.High.Z),
	}
}
