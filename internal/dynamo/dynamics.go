package dynamo

import (
	"fmt"
	"math"
)

// Step advances x by dt under a. Position moves along the heading held
// at the start of the step; the heading update lands afterwards.
//
// dt must be positive. Step does not check it; constructors that accept a
// timestep validate it with ValidateTimestep.
func Step(dt float64, a SingleAction, x SingleState) SingleState {
	x.P.X += a.V * math.Cos(x.Th) * dt
	x.P.Y += a.V * math.Sin(x.Th) * dt
	x.Th += a.W * dt
	x.P.Z += a.Dz * dt
	return x
}

// StepJoint advances both aircraft by one timestep.
func StepJoint(dt float64, u JointAction, x JointState) JointState {
	return JointState{
		X1: Step(dt, u.A1, x.X1),
		X2: Step(dt, u.A2, x.X2),
	}
}

func ValidateTimestep(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidTimestep, dt)
	}
	return nil
}

// ToInt rounds v and fails when v is not within 0.01 of an integer.
func ToInt(v float64) (int, error) {
	r := math.Round(v)
	if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v-r) > 0.01 {
		return 0, fmt.Errorf("%w: %v is not an integer", ErrParameterBounds, v)
	}
	return int(r), nil
}
