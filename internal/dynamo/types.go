package dynamo

import (
	"fmt"
	"math"
)

type Point struct {
	X float64 `json:"x" yaml:"x" msgpack:"x"`
	Y float64 `json:"y" yaml:"y" msgpack:"y"`
	Z float64 `json:"z" yaml:"z" msgpack:"z"`
}

func (p Point) Dist(q Point) float64 {
	dx, dy, dz := p.X-q.X, p.Y-q.Y, p.Z-q.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

func (p Point) Vector() [3]float64 { return [3]float64{p.X, p.Y, p.Z} }

func PointFromVector(v [3]float64) Point { return Point{X: v[0], Y: v[1], Z: v[2]} }

func (p Point) IsValid() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z)
}

func (p Point) String() string {
	return fmt.Sprintf("Point(x=%g,y=%g,z=%g)", p.X, p.Y, p.Z)
}

// SingleState is the kinematic state of one aircraft. Th is not normalized.
type SingleState struct {
	P  Point   `json:"p" yaml:"p" msgpack:"p"`
	Th float64 `json:"th" yaml:"th" msgpack:"th"`
}

// Vector lays the state out as x, y, th, z.
func (s SingleState) Vector() [4]float64 {
	return [4]float64{s.P.X, s.P.Y, s.Th, s.P.Z}
}

func SingleStateFromVector(v [4]float64) SingleState {
	return SingleState{P: Point{X: v[0], Y: v[1], Z: v[3]}, Th: v[2]}
}

func (s SingleState) IsValid() bool { return s.P.IsValid() && isFinite(s.Th) }

func (s SingleState) String() string {
	return fmt.Sprintf("SingleState(p=%s,th=%g)", s.P, s.Th)
}

type JointState struct {
	X1 SingleState `json:"x1" yaml:"x1" msgpack:"x1"`
	X2 SingleState `json:"x2" yaml:"x2" msgpack:"x2"`
}

// Vector lays the state out as x1, y1, th1, z1, x2, y2, th2, z2.
func (s JointState) Vector() [8]float64 {
	a, b := s.X1.Vector(), s.X2.Vector()
	return [8]float64{a[0], a[1], a[2], a[3], b[0], b[1], b[2], b[3]}
}

func JointStateFromVector(v [8]float64) JointState {
	return JointState{
		X1: SingleStateFromVector([4]float64{v[0], v[1], v[2], v[3]}),
		X2: SingleStateFromVector([4]float64{v[4], v[5], v[6], v[7]}),
	}
}

// Separation is the distance between the two aircraft.
func (s JointState) Separation() float64 { return s.X1.P.Dist(s.X2.P) }

func (s JointState) IsValid() bool { return s.X1.IsValid() && s.X2.IsValid() }

func (s JointState) String() string {
	return fmt.Sprintf("JointState(x1=%s,x2=%s)", s.X1, s.X2)
}

// SingleAction is one aircraft's control input. W is in rad/s.
type SingleAction struct {
	V  float64 `json:"v" yaml:"v" msgpack:"v"`
	W  float64 `json:"w" yaml:"w" msgpack:"w"`
	Dz float64 `json:"dz" yaml:"dz" msgpack:"dz"`
}

func (a SingleAction) DistSq(b SingleAction) float64 {
	dv, dw, ddz := a.V-b.V, a.W-b.W, a.Dz-b.Dz
	return dv*dv + dw*dw + ddz*ddz
}

func (a SingleAction) Dist(b SingleAction) float64 { return math.Sqrt(a.DistSq(b)) }

// Less orders actions lexicographically by V, W, Dz.
func (a SingleAction) Less(b SingleAction) bool {
	if a.V != b.V {
		return a.V < b.V
	}
	if a.W != b.W {
		return a.W < b.W
	}
	return a.Dz < b.Dz
}

func (a SingleAction) Vector() [3]float64 { return [3]float64{a.V, a.W, a.Dz} }

func SingleActionFromVector(v [3]float64) SingleAction {
	return SingleAction{V: v[0], W: v[1], Dz: v[2]}
}

func (a SingleAction) String() string {
	return fmt.Sprintf("SingleAction(v=%g,w=%g,dz=%g)", a.V, a.W, a.Dz)
}

type JointAction struct {
	A1 SingleAction `json:"a1" yaml:"a1" msgpack:"a1"`
	A2 SingleAction `json:"a2" yaml:"a2" msgpack:"a2"`
}

func (a JointAction) Dist(b JointAction) float64 {
	return math.Sqrt(a.A1.DistSq(b.A1) + a.A2.DistSq(b.A2))
}

func (a JointAction) String() string {
	return fmt.Sprintf("JointAction(a1=%s,a2=%s)", a.A1, a.A2)
}

// Metric accumulates a scalar over an episode.
type Metric interface {
	Name() string
	Observe(x JointState, u JointAction, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x JointState, u JointAction, t float64)
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// DegToRad converts degrees to radians the same way everywhere so that
// catalog lookups compare exactly.
func DegToRad(deg float64) float64 { return deg * math.Pi / 180.0 }

func RadToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }
