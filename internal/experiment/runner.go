package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/fwcbf/internal/barrier"
	"github.com/san-kum/fwcbf/internal/control"
	"github.com/san-kum/fwcbf/internal/dynamo"
	"github.com/san-kum/fwcbf/internal/env"
	"github.com/san-kum/fwcbf/internal/log"
)

// Step is one recorded transition. State and H are taken before the
// applied action.
type Step struct {
	T          float64            `json:"t" msgpack:"t"`
	State      dynamo.JointState  `json:"state" msgpack:"state"`
	Nominal    dynamo.JointAction `json:"nominal" msgpack:"nominal"`
	Applied    dynamo.JointAction `json:"applied" msgpack:"applied"`
	H          float64            `json:"h" msgpack:"h"`
	Overridden bool               `json:"overridden" msgpack:"overridden"`
}

type Episode struct {
	Index     int                `json:"index" msgpack:"index"`
	Start     dynamo.JointState  `json:"start" msgpack:"start"`
	Final     dynamo.JointState  `json:"final" msgpack:"final"`
	Goal1     dynamo.Point       `json:"goal1" msgpack:"goal1"`
	Goal2     dynamo.Point       `json:"goal2" msgpack:"goal2"`
	T         float64            `json:"t" msgpack:"t"`
	Stats     env.Stats          `json:"stats" msgpack:"stats"`
	Cause     string             `json:"cause" msgpack:"cause"`
	Overrides int                `json:"overrides" msgpack:"overrides"`
	Metrics   map[string]float64 `json:"metrics" msgpack:"metrics"`
	Wall      time.Duration      `json:"wall" msgpack:"wall"`
	Steps     []Step             `json:"-" msgpack:"steps"`
}

// OverrideObserver is an Observer that is also told about every step where
// the filter replaced the ownship's nominal action. OnOverride runs before
// OnStep for the same step.
type OverrideObserver interface {
	dynamo.Observer
	OnOverride(t, h float64, nominal, safe dynamo.SingleAction)
}

// Runner drives one CollisionEnv with a controller per aircraft. When a
// filter is set the ownship flies the filtered action and the intruder
// keeps its nominal action.
type Runner struct {
	env       *env.CollisionEnv
	own       control.Controller
	intruder  control.Controller
	filter    *barrier.Barrier
	metrics   []dynamo.Metric
	observers []dynamo.Observer
	logger    *log.Logger
	record    bool
}

func NewRunner(e *env.CollisionEnv, own, intruder control.Controller, filter *barrier.Barrier) *Runner {
	return &Runner{
		env:      e,
		own:      own,
		intruder: intruder,
		filter:   filter,
		record:   true,
	}
}

func (r *Runner) AddMetric(m dynamo.Metric)     { r.metrics = append(r.metrics, m) }
func (r *Runner) AddObserver(o dynamo.Observer) { r.observers = append(r.observers, o) }
func (r *Runner) SetLogger(l *log.Logger)       { r.logger = l }

// SetRecord controls whether episodes keep their per-step trajectory.
func (r *Runner) SetRecord(on bool) { r.record = on }

func (r *Runner) Env() *env.CollisionEnv   { return r.env }
func (r *Runner) Filter() *barrier.Barrier { return r.filter }

// SetGoals retargets the env and every controller that follows a goal.
func (r *Runner) SetGoals(g1, g2 dynamo.Point) error {
	if err := r.env.SetGoals(g1, g2); err != nil {
		return err
	}
	if gs, ok := r.own.(control.GoalSetter); ok {
		gs.SetGoal(g1)
	}
	if gs, ok := r.intruder.(control.GoalSetter); ok {
		gs.SetGoal(g2)
	}
	return nil
}

// Run plays one episode from st at t=0 until the env terminates.
func (r *Runner) Run(ctx context.Context, index int, st Start) (*Episode, error) {
	for _, m := range r.metrics {
		m.Reset()
	}
	if err := r.SetGoals(st.Goal1, st.Goal2); err != nil {
		return nil, err
	}

	start := time.Now()
	r.env.Reset(st.X1, st.X2, 0)
	ep := &Episode{
		Index:   index,
		Start:   r.env.State(),
		Goal1:   st.Goal1,
		Goal2:   st.Goal2,
		Metrics: make(map[string]float64, len(r.metrics)),
	}
	logger := r.logger.With(slog.Int("episode", index))
	logger.Info("episode started",
		slog.String("ownship", st.X1.String()),
		slog.String("intruder", st.X2.String()),
		slog.String("goal1", st.Goal1.String()),
		slog.String("goal2", st.Goal2.String()))

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ep, &dynamo.StepError{
				Step:    i,
				Time:    r.env.T(),
				State:   r.env.State(),
				Wrapped: fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, ctx.Err()),
			}
		default:
		}

		x := r.env.State()
		t := r.env.T()
		nominal := dynamo.JointAction{A1: r.own.Calc(x.X1), A2: r.intruder.Calc(x.X2)}
		applied := nominal
		h := 0.0
		if r.filter != nil {
			h = r.filter.H(x)
			applied.A1 = r.filter.ChooseU(x, nominal).A1
		}
		overridden := applied.A1 != nominal.A1
		if overridden {
			ep.Overrides++
			logger.Debug("safety override",
				slog.Float64("t", t),
				slog.Float64("h", h),
				slog.String("nominal", nominal.A1.String()),
				slog.String("safe", applied.A1.String()))
			for _, obs := range r.observers {
				if oo, ok := obs.(OverrideObserver); ok {
					oo.OnOverride(t, h, nominal.A1, applied.A1)
				}
			}
		}

		for _, m := range r.metrics {
			m.Observe(x, applied, t)
		}
		for _, obs := range r.observers {
			obs.OnStep(x, applied, t)
		}
		if r.record {
			ep.Steps = append(ep.Steps, Step{T: t, State: x, Nominal: nominal, Applied: applied, H: h, Overridden: overridden})
		}

		done, err := r.env.Step(applied.A1, applied.A2)
		if err != nil {
			return ep, &dynamo.StepError{Step: i, Time: t, State: x, Wrapped: err}
		}
		if !r.env.State().IsValid() {
			return ep, &dynamo.StepError{Step: i, Time: r.env.T(), State: r.env.State(), Wrapped: dynamo.ErrInvalidState}
		}
		if done {
			break
		}
	}

	ep.Final = r.env.State()
	ep.T = r.env.T()
	ep.Stats = r.env.Stats()
	ep.Cause = ep.Stats.Cause()
	ep.Wall = time.Since(start)
	for _, m := range r.metrics {
		ep.Metrics[m.Name()] = m.Value()
	}

	logger.Info("episode finished",
		slog.String("cause", ep.Cause),
		slog.Float64("t", ep.T),
		slog.Int("overrides", ep.Overrides),
		slog.Float64("dist_to_veh", ep.Stats.DistToVeh))
	return ep, nil
}
