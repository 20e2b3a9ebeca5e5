// Package barrier implements a discrete-time control barrier function over
// the joint state of two aircraft and the safety filter built on it.
//
// The barrier value is the closest separation the pair reaches while both
// fly a fixed reference maneuver, less the safety distance, capped at a
// ceiling:
//
//	h(x)     = min(maxVal, closest(x) - safetyDist)
//	dh(x, u) = h(step(x, u)) - h(x)
//
// A joint action u is safe at x when dh(x, u) + lambda*h(x) >= 0.
package barrier

import (
	"errors"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/san-kum/fwcbf/internal/actions"
	"github.com/san-kum/fwcbf/internal/dynamo"
)

var (
	ErrInvalidConfig = errors.New("barrier: invalid configuration")
	ErrBatchShape    = errors.New("barrier: invalid batch shape")
)

const (
	DefaultLambda = 0.99

	// straightHorizon bounds the straight-line look-ahead, in seconds.
	straightHorizon = 30
)

type Kind int

const (
	// Turn predicts both aircraft turning at the reference rate for one
	// full revolution.
	Turn Kind = iota
	// Straight predicts both aircraft flying straight at the reference
	// speed until separation stops shrinking.
	Straight
)

func (k Kind) String() string {
	switch k {
	case Turn:
		return "turn"
	case Straight:
		return "straight"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "turn", "":
		return Turn, nil
	case "straight":
		return Straight, nil
	}
	return 0, fmt.Errorf("%w: unknown barrier kind %q", ErrInvalidConfig, s)
}

type Barrier struct {
	kind       Kind
	dt         float64
	maxVal     float64
	v          float64
	wDeg       float64
	wRad       float64
	safetyDist float64
	lambda     float64
	selection  Selection
	cacheSize  int

	catalog    *actions.Catalog
	index      *actions.JointIndex
	candidates []dynamo.JointAction
	steps      int
	cache      *lru.Cache[dynamo.JointState, float64]
}

type Option func(*Barrier)

// WithLambda sets the decay rate in the safety constraint.
func WithLambda(lambda float64) Option {
	return func(b *Barrier) { b.lambda = lambda }
}

func WithSelection(s Selection) Option {
	return func(b *Barrier) { b.selection = s }
}

// WithCache memoizes h for up to size joint states.
func WithCache(size int) Option {
	return func(b *Barrier) { b.cacheSize = size }
}

// NewTurn builds a barrier whose reference maneuver is both aircraft flying
// (v, w, 0). The turn period 2*pi/w and 1/dt must both be whole numbers so
// the look-ahead covers exactly one revolution, and (v, w, 0) must be in
// the catalog.
func NewTurn(dt, maxVal, v, wDegPerSec, safetyDist float64, catalog *actions.Catalog, opts ...Option) (*Barrier, error) {
	b, err := newBarrier(Turn, dt, maxVal, v, safetyDist, catalog, opts)
	if err != nil {
		return nil, err
	}

	if !(wDegPerSec > 0) || math.IsInf(wDegPerSec, 0) {
		return nil, fmt.Errorf("%w: turn rate magnitude must be positive, got %v", ErrInvalidConfig, wDegPerSec)
	}
	b.wDeg = wDegPerSec
	b.wRad = dynamo.DegToRad(wDegPerSec)

	period, err := dynamo.ToInt(2 * math.Pi / b.wRad)
	if err != nil {
		return nil, fmt.Errorf("%w: turn period at %v deg/s: %v", ErrInvalidConfig, wDegPerSec, err)
	}
	perSecond, err := dynamo.ToInt(1 / dt)
	if err != nil {
		return nil, fmt.Errorf("%w: steps per second at dt=%v: %v", ErrInvalidConfig, dt, err)
	}
	b.steps = period * perSecond

	ref := dynamo.SingleAction{V: b.v, W: b.wRad, Dz: 0}
	if !catalog.Contains(ref) {
		return nil, fmt.Errorf("%w: reference action %s not in %s", ErrInvalidConfig, ref, catalog)
	}

	return b, nil
}

// NewStraight builds a barrier whose reference maneuver is both aircraft
// flying (v, 0, 0).
func NewStraight(dt, maxVal, v, safetyDist float64, catalog *actions.Catalog, opts ...Option) (*Barrier, error) {
	b, err := newBarrier(Straight, dt, maxVal, v, safetyDist, catalog, opts)
	if err != nil {
		return nil, err
	}

	perSecond, err := dynamo.ToInt(1 / dt)
	if err != nil {
		return nil, fmt.Errorf("%w: steps per second at dt=%v: %v", ErrInvalidConfig, dt, err)
	}
	b.steps = straightHorizon * perSecond

	ref := dynamo.SingleAction{V: b.v, W: 0, Dz: 0}
	if !catalog.Contains(ref) {
		return nil, fmt.Errorf("%w: reference action %s not in %s", ErrInvalidConfig, ref, catalog)
	}

	return b, nil
}

func newBarrier(kind Kind, dt, maxVal, v, safetyDist float64, catalog *actions.Catalog, opts []Option) (*Barrier, error) {
	if err := dynamo.ValidateTimestep(dt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !(maxVal > 0) || math.IsInf(maxVal, 0) {
		return nil, fmt.Errorf("%w: max value must be positive and finite, got %v", ErrInvalidConfig, maxVal)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: speed must be finite, got %v", ErrInvalidConfig, v)
	}
	if math.IsNaN(safetyDist) || math.IsInf(safetyDist, 0) {
		return nil, fmt.Errorf("%w: safety distance must be finite, got %v", ErrInvalidConfig, safetyDist)
	}
	if catalog == nil {
		return nil, fmt.Errorf("%w: nil catalog", ErrInvalidConfig)
	}

	b := &Barrier{
		kind:       kind,
		dt:         dt,
		maxVal:     maxVal,
		v:          v,
		safetyDist: safetyDist,
		lambda:     DefaultLambda,
		selection:  MaxMargin,
		catalog:    catalog,
		index:      actions.NewSymmetricJointIndex(catalog),
	}
	for _, opt := range opts {
		opt(b)
	}

	if !(b.lambda > 0 && b.lambda < 1) {
		return nil, fmt.Errorf("%w: lambda must be in (0, 1), got %v", ErrInvalidConfig, b.lambda)
	}
	if b.selection != MaxMargin && b.selection != NearestSafe {
		return nil, fmt.Errorf("%w: unknown selection %v", ErrInvalidConfig, b.selection)
	}
	if b.cacheSize > 0 {
		cache, err := lru.New[dynamo.JointState, float64](b.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		b.cache = cache
	}

	all := catalog.All()
	b.candidates = make([]dynamo.JointAction, 0, len(all)*len(all))
	for _, a1 := range all {
		for _, a2 := range all {
			b.candidates = append(b.candidates, dynamo.JointAction{A1: a1, A2: a2})
		}
	}

	return b, nil
}

// H is the barrier value at x: the closest approach of the evasive
// reference maneuver less the safety distance, capped at the ceiling. It is
// negative inside the violated set, where the aircraft are already closer
// than the safety distance or cannot avoid getting there.
func (b *Barrier) H(x dynamo.JointState) float64 {
	if b.cache != nil {
		if h, ok := b.cache.Get(x); ok {
			return h
		}
	}
	h := math.Min(b.maxVal, b.closest(x)-b.safetyDist)
	if b.cache != nil {
		b.cache.Add(x, h)
	}
	return h
}

// DH is the change in barrier value after one step of u from x, using the
// same dynamics as the simulation engine.
func (b *Barrier) DH(x dynamo.JointState, u dynamo.JointAction) float64 {
	return b.H(dynamo.StepJoint(b.dt, u, x)) - b.H(x)
}

// Constraint evaluates dh(x, u) + lambda*h given h = H(x).
func (b *Barrier) Constraint(h float64, x dynamo.JointState, u dynamo.JointAction) float64 {
	next := b.H(dynamo.StepJoint(b.dt, u, x))
	return (next - h) + b.lambda*h
}

func (b *Barrier) IsSafe(x dynamo.JointState, u dynamo.JointAction) bool {
	return b.Constraint(b.H(x), x, u) >= 0
}

// ReferenceAction is the maneuver used to predict closest approach.
func (b *Barrier) ReferenceAction() dynamo.SingleAction {
	return dynamo.SingleAction{V: b.v, W: b.wRad, Dz: 0}
}

func (b *Barrier) closest(x dynamo.JointState) float64 {
	ref := b.ReferenceAction()
	u := dynamo.JointAction{A1: ref, A2: ref}
	closest := x.Separation()

	for i := 0; i < b.steps; i++ {
		x = dynamo.StepJoint(b.dt, u, x)
		d := x.Separation()
		if d < closest {
			closest = d
		} else if b.kind == Straight {
			// straight paths have a single minimum
			break
		}
	}
	return closest
}

func (b *Barrier) Kind() Kind                 { return b.kind }
func (b *Barrier) Dt() float64                { return b.dt }
func (b *Barrier) MaxVal() float64            { return b.maxVal }
func (b *Barrier) V() float64                 { return b.v }
func (b *Barrier) WRadPerSec() float64        { return b.wRad }
func (b *Barrier) SafetyDist() float64        { return b.safetyDist }
func (b *Barrier) Lambda() float64            { return b.lambda }
func (b *Barrier) Selection() Selection       { return b.selection }
func (b *Barrier) Catalog() *actions.Catalog  { return b.catalog }
func (b *Barrier) Index() *actions.JointIndex { return b.index }
func (b *Barrier) LookaheadSteps() int        { return b.steps }

func (b *Barrier) String() string {
	switch b.kind {
	case Straight:
		return fmt.Sprintf("BarrierStraight(dt=%g,max_val=%g,v=%g,safety_dist=%g)",
			b.dt, b.maxVal, b.v, b.safetyDist)
	default:
		return fmt.Sprintf("BarrierTurn(dt=%g,max_val=%g,v=%g,w_deg_per_sec=%g,safety_dist=%g)",
			b.dt, b.maxVal, b.v, b.wDeg, b.safetyDist)
	}
}
