// Package experiment assembles configured episodes: it builds the env,
// controllers and safety filter from a config.Config, plays episodes with
// a Runner, and summarizes the results.
package experiment

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"

	"github.com/san-kum/fwcbf/internal/config"
	"github.com/san-kum/fwcbf/internal/dynamo"
	"github.com/san-kum/fwcbf/internal/env"
	"github.com/san-kum/fwcbf/internal/log"
	"github.com/san-kum/fwcbf/internal/metrics"
	"golang.org/x/sync/errgroup"
)

type Summary struct {
	Episodes      int     `json:"episodes" msgpack:"episodes"`
	Collisions    int     `json:"collisions" msgpack:"collisions"`
	Goals         int     `json:"goals" msgpack:"goals"`
	Timeouts      int     `json:"timeouts" msgpack:"timeouts"`
	Overrides     int     `json:"overrides" msgpack:"overrides"`
	Steps         int     `json:"steps" msgpack:"steps"`
	MinSeparation float64 `json:"min_separation" msgpack:"min_separation"`
}

type Result struct {
	Config   *config.Config `json:"config" msgpack:"config"`
	Episodes []*Episode     `json:"episodes" msgpack:"episodes"`
	Summary  Summary        `json:"summary" msgpack:"summary"`
	Started  time.Time      `json:"started" msgpack:"started"`
	Wall     time.Duration  `json:"wall" msgpack:"wall"`
}

func Summarize(episodes []*Episode) Summary {
	s := Summary{Episodes: len(episodes), MinSeparation: math.Inf(1)}
	for _, ep := range episodes {
		if ep.Stats.DoneCollision {
			s.Collisions++
		}
		if ep.Stats.DoneGoal {
			s.Goals++
		}
		if ep.Stats.DoneTime {
			s.Timeouts++
		}
		s.Overrides += ep.Overrides
		s.Steps += len(ep.Steps)
		if d, ok := ep.Metrics["min_separation"]; ok {
			s.MinSeparation = math.Min(s.MinSeparation, d)
		}
	}
	if math.IsInf(s.MinSeparation, 1) {
		s.MinSeparation = 0
	}
	return s
}

type Experiment struct {
	cfg        *config.Config
	registry   *Registry
	logger     *log.Logger
	envOptions []env.Option
	observers  []func() dynamo.Observer
}

type Option func(*Experiment)

func WithLogger(l *log.Logger) Option {
	return func(e *Experiment) { e.logger = l }
}

func WithRegistry(r *Registry) Option {
	return func(e *Experiment) { e.registry = r }
}

// WithEnvOptions passes options to every env the experiment builds.
func WithEnvOptions(opts ...env.Option) Option {
	return func(e *Experiment) { e.envOptions = append(e.envOptions, opts...) }
}

// WithObserver attaches an observer to every runner. newObs is called once
// per runner.
func WithObserver(newObs func() dynamo.Observer) Option {
	return func(e *Experiment) { e.observers = append(e.observers, newObs) }
}

func New(cfg *config.Config, opts ...Option) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Experiment{
		cfg:      cfg.Clone(),
		registry: NewRegistry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Experiment) Config() *config.Config { return e.cfg }

// Build assembles a fresh Runner. Runners are not safe for concurrent use,
// so each goroutine needs its own.
func (e *Experiment) Build() (*Runner, error) {
	cat, err := e.cfg.Catalog()
	if err != nil {
		return nil, err
	}
	filter, err := e.cfg.BuildBarrier(cat)
	if err != nil {
		return nil, err
	}
	cenv, err := env.New(e.cfg.Env, e.envOptions...)
	if err != nil {
		return nil, err
	}
	own, err := e.registry.GetController(e.cfg.Ownship.Controller, e.cfg.Ownship, e.cfg.Env.Goal1, e.cfg.Env.Dt, cat)
	if err != nil {
		return nil, fmt.Errorf("ownship: %w", err)
	}
	intruder, err := e.registry.GetController(e.cfg.Intruder.Controller, e.cfg.Intruder, e.cfg.Env.Goal2, e.cfg.Env.Dt, cat)
	if err != nil {
		return nil, fmt.Errorf("intruder: %w", err)
	}

	r := NewRunner(cenv, own, intruder, filter)
	r.SetLogger(e.logger)
	var bf metrics.BarrierFunc
	if filter != nil {
		bf = filter
	}
	for _, m := range metrics.Default(e.cfg.Env.SafetyDist, bf) {
		r.AddMetric(m)
	}
	for _, newObs := range e.observers {
		r.AddObserver(newObs())
	}
	return r, nil
}

// StartState returns the start of episode i. With reset limits each
// episode samples from its own seed so results do not depend on the order
// episodes run in.
func (e *Experiment) StartState(i int) Start {
	if e.cfg.Reset == nil {
		return Start{
			X1:    e.cfg.Ownship.Start.State(),
			X2:    e.cfg.Intruder.Start.State(),
			Goal1: e.cfg.Env.Goal1,
			Goal2: e.cfg.Env.Goal2,
		}
	}
	return NewSampler(*e.cfg.Reset, e.cfg.Env.Goal1, e.cfg.Env.Goal2, e.cfg.Seed+int64(i)).Sample()
}

// Run plays every configured episode in order on one runner.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	res := &Result{Config: e.cfg, Started: time.Now()}
	r, err := e.Build()
	if err != nil {
		return nil, err
	}

	for i := 0; i < e.cfg.Episodes; i++ {
		ep, err := r.Run(ctx, i, e.StartState(i))
		if err != nil {
			e.logger.Error("episode failed", slog.Int("episode", i), slog.Any("error", err))
			return nil, fmt.Errorf("episode %d: %w", i, err)
		}
		res.Episodes = append(res.Episodes, ep)
	}

	res.Summary = Summarize(res.Episodes)
	res.Wall = time.Since(res.Started)
	return res, nil
}

// RunParallel plays the episodes on up to workers goroutines, each with its
// own runner. Episodes keep their index order in the result. workers <= 0
// uses GOMAXPROCS.
func (e *Experiment) RunParallel(ctx context.Context, workers int) (*Result, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	res := &Result{Config: e.cfg, Started: time.Now()}
	episodes := make([]*Episode, e.cfg.Episodes)

	g, ctx := errgroup.WithContext(ctx)
	next := make(chan int)
	g.Go(func() error {
		defer close(next)
		for i := range episodes {
			select {
			case next <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < min(workers, len(episodes)); w++ {
		g.Go(func() error {
			r, err := e.Build()
			if err != nil {
				return err
			}
			for i := range next {
				ep, err := r.Run(ctx, i, e.StartState(i))
				if err != nil {
					return fmt.Errorf("episode %d: %w", i, err)
				}
				episodes[i] = ep
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.Error("ensemble failed", slog.Any("error", err))
		return nil, err
	}

	res.Episodes = episodes
	res.Summary = Summarize(episodes)
	res.Wall = time.Since(res.Started)
	return res, nil
}
