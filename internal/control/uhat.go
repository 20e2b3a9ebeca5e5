package control

import (
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/fwcbf/internal/actions"
	"github.com/san-kum/fwcbf/internal/dynamo"
)

var ErrInvalidConfig = errors.New("control: invalid configuration")

// Controller maps one aircraft state to one catalog action.
type Controller interface {
	Calc(x dynamo.SingleState) dynamo.SingleAction
}

// GoalSetter is a Controller whose goal can be moved between episodes.
type GoalSetter interface {
	Controller
	SetGoal(p dynamo.Point)
}

// Uhat steers toward a goal. The commanded velocity is the unit vector to
// the goal (shorter inside one unit of it), rotated into the body frame:
// the forward component becomes speed and the lateral component becomes
// turn rate. Both are snapped to the nearest catalog value and the
// altitude rate is always zero.
type Uhat struct {
	goal    dynamo.Point
	dt      float64
	catalog *actions.Catalog
	speeds  []float64
	turns   []float64
}

func NewUhat(goal dynamo.Point, dt float64, catalog *actions.Catalog) (*Uhat, error) {
	if err := dynamo.ValidateTimestep(dt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if catalog == nil {
		return nil, fmt.Errorf("%w: nil catalog", ErrInvalidConfig)
	}
	if !goal.IsValid() {
		return nil, fmt.Errorf("%w: goal %s is not finite", ErrInvalidConfig, goal)
	}
	if !catalog.Contains(dynamo.SingleAction{V: catalog.Speeds()[0], W: catalog.TurnRatesRad()[0], Dz: 0}) {
		return nil, fmt.Errorf("%w: altitude rate 0 not in %s", ErrInvalidConfig, catalog)
	}

	return &Uhat{
		goal:    goal,
		dt:      dt,
		catalog: catalog,
		speeds:  catalog.Speeds(),
		turns:   catalog.TurnRatesRad(),
	}, nil
}

func (u *Uhat) Goal() dynamo.Point { return u.goal }

// SetGoal retargets the controller, typically at episode reset.
func (u *Uhat) SetGoal(p dynamo.Point) { u.goal = p }

func (u *Uhat) Dt() float64               { return u.dt }
func (u *Uhat) Catalog() *actions.Catalog { return u.catalog }

func (u *Uhat) Calc(x dynamo.SingleState) dynamo.SingleAction {
	const lookahead = 1.0

	vx := u.goal.X - x.P.X
	vy := u.goal.Y - x.P.Y
	norm := math.Max(1, math.Hypot(vx, vy))
	vx /= norm
	vy /= norm

	sin, cos := math.Sincos(x.Th)
	v := cos*vx + sin*vy
	w := (-sin*vx + cos*vy) / lookahead

	return dynamo.SingleAction{
		V:  nearest(u.speeds, v),
		W:  nearest(u.turns, w),
		Dz: 0,
	}
}

func (u *Uhat) String() string {
	return fmt.Sprintf("Uhat(goal=%s,dt=%g)", u.goal, u.dt)
}

// nearest returns the value in vals closest to x, the earliest on ties.
func nearest(vals []float64, x float64) float64 {
	best := vals[0]
	bestDist := math.Abs(best - x)
	for _, v := range vals[1:] {
		if d := math.Abs(v - x); d < bestDist {
			best, bestDist = v, d
		}
	}
	return best
}
