// Package automation runs scripted batches of experiments described in YAML:
// scenarios (a list of configured runs) and single-parameter sweeps.
package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/san-kum/fwcbf/internal/config"
	"github.com/san-kum/fwcbf/internal/experiment"
	"github.com/san-kum/fwcbf/internal/log"
	"github.com/san-kum/fwcbf/internal/storage"
	"gopkg.in/yaml.v3"
)

var ErrInvalidScenario = errors.New("automation: invalid scenario")

// Scenario defines a scripted sequence of experiments.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
	Sweeps      []Sweep        `yaml:"sweeps"`

	dir string
}

// ScenarioStep is one experiment in a scenario. The base config comes from
// Preset or from the YAML file at Config (relative to the scenario file);
// the remaining fields override it when set.
type ScenarioStep struct {
	Name       string   `yaml:"name"`
	Preset     string   `yaml:"preset"`
	Config     string   `yaml:"config"`
	Episodes   int      `yaml:"episodes"`
	Seed       *int64   `yaml:"seed"`
	Barrier    string   `yaml:"barrier"`
	Selection  string   `yaml:"selection"`
	Lambda     float64  `yaml:"lambda"`
	SafetyDist *float64 `yaml:"safety_dist"`
	Workers    int      `yaml:"workers"`
	SaveAs     string   `yaml:"save_as"`
}

// Sweep runs a base preset once per value of a single parameter.
type Sweep struct {
	Name     string    `yaml:"name"`
	Preset   string    `yaml:"preset"`
	Param    string    `yaml:"param"`
	Values   []float64 `yaml:"values"`
	Episodes int       `yaml:"episodes"`
	Workers  int       `yaml:"workers"`
}

type StepResult struct {
	Name   string
	RunID  string
	Result *experiment.Result
}

type SweepResult struct {
	Param   string
	Value   float64
	Summary experiment.Summary
}

// Options carries the shared dependencies of a scenario run. Every field
// may be left zero.
type Options struct {
	Logger   *log.Logger
	Registry *experiment.Registry
	Store    *storage.Store
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidScenario, path, err)
	}
	scenario.dir = filepath.Dir(path)

	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	return &scenario, nil
}

func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 && len(s.Sweeps) == 0 {
		return fmt.Errorf("%w: no steps or sweeps", ErrInvalidScenario)
	}
	for i, step := range s.Steps {
		if (step.Preset == "") == (step.Config == "") {
			return fmt.Errorf("%w: step %d: exactly one of preset and config is required", ErrInvalidScenario, i+1)
		}
	}
	for i, sw := range s.Sweeps {
		if sw.Preset == "" || len(sw.Values) == 0 {
			return fmt.Errorf("%w: sweep %d: preset and values are required", ErrInvalidScenario, i+1)
		}
		if _, ok := sweepParams[sw.Param]; !ok {
			return fmt.Errorf("%w: sweep %d: unknown param %q", ErrInvalidScenario, i+1, sw.Param)
		}
	}
	return nil
}

// StepConfig resolves the config for step, overrides applied and validated.
func (s *Scenario) StepConfig(step ScenarioStep) (*config.Config, error) {
	var cfg *config.Config
	if step.Preset != "" {
		cfg = config.GetPreset(step.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("%w: unknown preset %q", ErrInvalidScenario, step.Preset)
		}
	} else {
		path := step.Config
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.dir, path)
		}
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if step.Episodes > 0 {
		cfg.Episodes = step.Episodes
	}
	if step.Seed != nil {
		cfg.Seed = *step.Seed
	}
	if step.Barrier != "" {
		cfg.Barrier.Kind = step.Barrier
	}
	if step.Selection != "" {
		cfg.Barrier.Selection = step.Selection
	}
	if step.Lambda != 0 {
		cfg.Barrier.Lambda = step.Lambda
	}
	if step.SafetyDist != nil {
		cfg.Env.SafetyDist = *step.SafetyDist
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RunScenario executes all steps in a scenario, saving each result whose
// step names save_as when a store is configured.
func RunScenario(ctx context.Context, scenario *Scenario, opts Options) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step%d", i+1)
		}
		opts.Logger.Info("running scenario step",
			slog.String("scenario", scenario.Name),
			slog.String("step", name),
			slog.Int("index", i+1),
			slog.Int("of", len(scenario.Steps)))

		cfg, err := scenario.StepConfig(step)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		res, err := run(ctx, cfg, step.Workers, opts)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		sr := StepResult{Name: name, Result: res}
		if step.SaveAs != "" && opts.Store != nil {
			if sr.RunID, err = opts.Store.Save(step.SaveAs, res); err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
		}
		results = append(results, sr)
	}

	return results, nil
}

func run(ctx context.Context, cfg *config.Config, workers int, opts Options) (*experiment.Result, error) {
	expOpts := []experiment.Option{experiment.WithLogger(opts.Logger)}
	if opts.Registry != nil {
		expOpts = append(expOpts, experiment.WithRegistry(opts.Registry))
	}
	exp, err := experiment.New(cfg, expOpts...)
	if err != nil {
		return nil, err
	}
	if workers > 1 {
		return exp.RunParallel(ctx, workers)
	}
	return exp.Run(ctx)
}

var sweepParams = map[string]func(*config.Config, float64){
	"lambda":        func(c *config.Config, v float64) { c.Barrier.Lambda = v },
	"safety_dist":   func(c *config.Config, v float64) { c.Env.SafetyDist = v },
	"max_val":       func(c *config.Config, v float64) { c.Barrier.MaxVal = v },
	"done_dist":     func(c *config.Config, v float64) { c.Env.DoneDist = v },
	"barrier_speed": func(c *config.Config, v float64) { c.Barrier.Speed = v },
}

// RunSweep executes a parameter sweep
func RunSweep(ctx context.Context, sweep Sweep, opts Options) ([]SweepResult, error) {
	set, ok := sweepParams[sweep.Param]
	if !ok {
		return nil, fmt.Errorf("%w: unknown sweep param %q", ErrInvalidScenario, sweep.Param)
	}
	base := config.GetPreset(sweep.Preset)
	if base == nil {
		return nil, fmt.Errorf("%w: unknown preset %q", ErrInvalidScenario, sweep.Preset)
	}
	if sweep.Episodes > 0 {
		base.Episodes = sweep.Episodes
	}

	results := make([]SweepResult, 0, len(sweep.Values))
	for i, v := range sweep.Values {
		cfg := base.Clone()
		set(cfg, v)

		res, err := run(ctx, cfg, sweep.Workers, opts)
		if err != nil {
			return results, fmt.Errorf("sweep %s=%v: %w", sweep.Param, v, err)
		}
		results = append(results, SweepResult{Param: sweep.Param, Value: v, Summary: res.Summary})

		opts.Logger.Info("sweep point done",
			slog.String("param", sweep.Param),
			slog.Float64("value", v),
			slog.Int("index", i+1),
			slog.Int("of", len(sweep.Values)),
			slog.Int("collisions", res.Summary.Collisions))
	}

	return results, nil
}

// RunAll runs the scenario's steps followed by its sweeps.
func RunAll(ctx context.Context, scenario *Scenario, opts Options) ([]StepResult, [][]SweepResult, error) {
	steps, err := RunScenario(ctx, scenario, opts)
	if err != nil {
		return steps, nil, err
	}
	sweeps := make([][]SweepResult, 0, len(scenario.Sweeps))
	for _, sw := range scenario.Sweeps {
		res, err := RunSweep(ctx, sw, opts)
		if err != nil {
			return steps, sweeps, err
		}
		sweeps = append(sweeps, res)
	}
	return steps, sweeps, nil
}

// CollisionCounts reports how many results ended with and without any
// collision.
func CollisionCounts(results []StepResult) (clean int, collided int) {
	for _, r := range results {
		if r.Result.Summary.Collisions > 0 {
			collided++
		} else {
			clean++
		}
	}
	return
}
