// Package env runs one two-aircraft episode at a time: both aircraft
// advance under the shared dynamics, distances are recomputed, and the
// episode terminates on collision, goal arrival, or timeout.
package env

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/san-kum/fwcbf/internal/dynamo"
)

var (
	ErrInvalidConfig = errors.New("env: invalid configuration")
	ErrNotReset      = errors.New("env: step before reset")
	ErrEpisodeDone   = errors.New("env: step after episode terminated")
)

type Config struct {
	Dt         float64      `json:"dt" yaml:"dt" msgpack:"dt"`
	MaxSimTime float64      `json:"max_sim_time" yaml:"max_sim_time" msgpack:"max_sim_time"`
	DoneDist   float64      `json:"done_dist" yaml:"done_dist" msgpack:"done_dist"`
	SafetyDist float64      `json:"safety_dist" yaml:"safety_dist" msgpack:"safety_dist"`
	Goal1      dynamo.Point `json:"goal1" yaml:"goal1" msgpack:"goal1"`
	Goal2      dynamo.Point `json:"goal2" yaml:"goal2" msgpack:"goal2"`

	// TimeWarp paces Step against the wall clock at TimeWarp times real
	// time. Zero or negative runs unthrottled.
	TimeWarp float64 `json:"time_warp" yaml:"time_warp" msgpack:"time_warp"`
}

func (c Config) Validate() error {
	if err := dynamo.ValidateTimestep(c.Dt); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !(c.MaxSimTime > 0) || math.IsInf(c.MaxSimTime, 0) {
		return fmt.Errorf("%w: max_sim_time must be positive and finite, got %v", ErrInvalidConfig, c.MaxSimTime)
	}
	for name, v := range map[string]float64{
		"done_dist":   c.DoneDist,
		"safety_dist": c.SafetyDist,
		"time_warp":   c.TimeWarp,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidConfig, name, v)
		}
	}
	if !c.Goal1.IsValid() || !c.Goal2.IsValid() {
		return fmt.Errorf("%w: goals must be finite, got %s and %s", ErrInvalidConfig, c.Goal1, c.Goal2)
	}
	return nil
}

// Stats describes the episode after the most recent Reset or Step.
type Stats struct {
	DistToGoal1   float64 `json:"dist_to_goal1" msgpack:"dist_to_goal1"`
	DistToGoal2   float64 `json:"dist_to_goal2" msgpack:"dist_to_goal2"`
	DistToVeh     float64 `json:"dist_to_veh" msgpack:"dist_to_veh"`
	DoneTime      bool    `json:"done_time" msgpack:"done_time"`
	DoneGoal      bool    `json:"done_goal" msgpack:"done_goal"`
	DoneCollision bool    `json:"done_collision" msgpack:"done_collision"`
}

func (s Stats) Done() bool { return s.DoneTime || s.DoneGoal || s.DoneCollision }

// Cause names the termination causes that hold, joined by '+', or "" when
// the episode is still running.
func (s Stats) Cause() string {
	var cause string
	add := func(ok bool, name string) {
		if !ok {
			return
		}
		if cause != "" {
			cause += "+"
		}
		cause += name
	}
	add(s.DoneCollision, "collision")
	add(s.DoneGoal, "goal")
	add(s.DoneTime, "time")
	return cause
}

func (s Stats) String() string {
	return "Stats(done_time=" + strconv.FormatBool(s.DoneTime) +
		",done_goal=" + strconv.FormatBool(s.DoneGoal) +
		",done_collision=" + strconv.FormatBool(s.DoneCollision) +
		",dist_to_goal1=" + strconv.FormatFloat(s.DistToGoal1, 'f', 6, 64) +
		",dist_to_goal2=" + strconv.FormatFloat(s.DistToGoal2, 'f', 6, 64) +
		",dist_to_veh=" + strconv.FormatFloat(s.DistToVeh, 'f', 6, 64) + ")"
}

// CollisionEnv owns the states of both aircraft for one episode. It is not
// safe for concurrent use.
type CollisionEnv struct {
	cfg   Config
	x1    dynamo.SingleState
	x2    dynamo.SingleState
	t     float64
	stats Stats
	ready bool
	steps int

	now        func() time.Time
	sleep      func(time.Duration)
	lastUpdate time.Time
}

type Option func(*CollisionEnv)

// WithClock replaces the wall clock used for pacing.
func WithClock(now func() time.Time, sleep func(time.Duration)) Option {
	return func(e *CollisionEnv) {
		e.now = now
		e.sleep = sleep
	}
}

func New(cfg Config, opts ...Option) (*CollisionEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &CollisionEnv{
		cfg:   cfg,
		now:   time.Now,
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Reset starts a new episode from x1 and x2 at time t. Distances are
// recomputed and every termination flag is cleared.
func (e *CollisionEnv) Reset(x1, x2 dynamo.SingleState, t float64) {
	e.x1 = x1
	e.x2 = x2
	e.t = t
	e.ready = true
	e.steps = 0
	e.lastUpdate = e.now()
	e.updateDistances()
	e.stats.DoneTime = false
	e.stats.DoneGoal = false
	e.stats.DoneCollision = false
}

// Step advances both aircraft by one timestep and reports whether the
// episode has terminated.
func (e *CollisionEnv) Step(a1, a2 dynamo.SingleAction) (bool, error) {
	if !e.ready {
		return false, ErrNotReset
	}
	if e.stats.Done() {
		return true, fmt.Errorf("%w: %s at t=%g", ErrEpisodeDone, e.stats.Cause(), e.t)
	}

	e.pace()

	e.x1 = dynamo.Step(e.cfg.Dt, a1, e.x1)
	e.x2 = dynamo.Step(e.cfg.Dt, a2, e.x2)
	e.t += e.cfg.Dt
	e.steps++

	e.updateDistances()
	e.stats.DoneCollision = e.stats.DistToVeh <= e.cfg.SafetyDist
	e.stats.DoneGoal = e.stats.DistToGoal1 <= e.cfg.DoneDist || e.stats.DistToGoal2 <= e.cfg.DoneDist
	e.stats.DoneTime = e.t >= e.cfg.MaxSimTime

	return e.stats.Done(), nil
}

// pace blocks until dt/TimeWarp of wall time has passed since the previous
// step. The first step after Reset never waits.
func (e *CollisionEnv) pace() {
	if e.cfg.TimeWarp <= 0 {
		return
	}
	if e.steps > 0 {
		period := time.Duration(float64(time.Second) * e.cfg.Dt / e.cfg.TimeWarp)
		if wait := e.lastUpdate.Add(period).Sub(e.now()); wait > 0 {
			e.sleep(wait)
		}
	}
	e.lastUpdate = e.now()
}

func (e *CollisionEnv) updateDistances() {
	e.stats.DistToGoal1 = e.x1.P.Dist(e.cfg.Goal1)
	e.stats.DistToGoal2 = e.x2.P.Dist(e.cfg.Goal2)
	e.stats.DistToVeh = e.x1.P.Dist(e.x2.P)
}

func (e *CollisionEnv) X1() dynamo.SingleState { return e.x1 }
func (e *CollisionEnv) X2() dynamo.SingleState { return e.x2 }

// State returns both aircraft as one joint state.
func (e *CollisionEnv) State() dynamo.JointState {
	return dynamo.JointState{X1: e.x1, X2: e.x2}
}

func (e *CollisionEnv) T() float64          { return e.t }
func (e *CollisionEnv) Steps() int          { return e.steps }
func (e *CollisionEnv) Stats() Stats        { return e.stats }
func (e *CollisionEnv) Done() bool          { return e.stats.Done() }
func (e *CollisionEnv) Config() Config      { return e.cfg }
func (e *CollisionEnv) Goal1() dynamo.Point { return e.cfg.Goal1 }
func (e *CollisionEnv) Goal2() dynamo.Point { return e.cfg.Goal2 }
func (e *CollisionEnv) Dt() float64         { return e.cfg.Dt }
func (e *CollisionEnv) SafetyDist() float64 { return e.cfg.SafetyDist }

// SetGoals retargets the episode. Distances refresh on the next Reset or
// Step.
func (e *CollisionEnv) SetGoals(g1, g2 dynamo.Point) error {
	if !g1.IsValid() || !g2.IsValid() {
		return fmt.Errorf("%w: goals must be finite, got %s and %s", ErrInvalidConfig, g1, g2)
	}
	e.cfg.Goal1 = g1
	e.cfg.Goal2 = g2
	return nil
}

func (e *CollisionEnv) String() string {
	return fmt.Sprintf("CollisionEnv(dt=%g,max_sim_time=%g,done_dist=%g,safety_dist=%g,goal1=%s,goal2=%s,time_warp=%g)",
		e.cfg.Dt, e.cfg.MaxSimTime, e.cfg.DoneDist, e.cfg.SafetyDist, e.cfg.Goal1, e.cfg.Goal2, e.cfg.TimeWarp)
}
