package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/brunoga/deep"
	"github.com/san-kum/fwcbf/internal/actions"
	"github.com/san-kum/fwcbf/internal/barrier"
	"github.com/san-kum/fwcbf/internal/dynamo"
	"github.com/san-kum/fwcbf/internal/env"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("config: invalid")

const (
	DefaultDt          = 0.1
	DefaultMaxSimTime  = 100.0
	DefaultDoneDist    = 75.0
	DefaultSafetyDist  = 5.0
	DefaultMaxVal      = 300.0
	DefaultSpeed       = 15.0
	DefaultTurnRateDeg = 12.0
	DefaultEpisodes    = 1
)

const (
	BarrierTurn     = "turn"
	BarrierStraight = "straight"
	BarrierNone     = "none"

	ControllerUhat = "uhat"
	ControllerHold = "hold"
)

type Config struct {
	Env      env.Config          `yaml:"env"`
	Actions  actions.CatalogSpec `yaml:"actions"`
	Barrier  BarrierConfig       `yaml:"barrier"`
	Ownship  AircraftConfig      `yaml:"ownship"`
	Intruder AircraftConfig      `yaml:"intruder"`
	Reset    *ResetLimits        `yaml:"reset,omitempty"`
	Episodes int                 `yaml:"episodes"`
	Seed     int64               `yaml:"seed"`
}

// BarrierConfig selects the safety filter protecting the ownship. The
// safety distance is shared with env.safety_dist.
type BarrierConfig struct {
	Kind        string  `yaml:"kind"`
	MaxVal      float64 `yaml:"max_val"`
	Speed       float64 `yaml:"speed"`
	TurnRateDeg float64 `yaml:"turn_rate_deg"`
	Lambda      float64 `yaml:"lambda"`
	Selection   string  `yaml:"selection"`
	CacheSize   int     `yaml:"cache_size"`
}

type AircraftConfig struct {
	Start      Pose       `yaml:"start"`
	Controller string     `yaml:"controller"`
	Hold       HoldConfig `yaml:"hold,omitempty"`
}

// Pose is a starting state with the heading in degrees.
type Pose struct {
	X          float64 `yaml:"x"`
	Y          float64 `yaml:"y"`
	Z          float64 `yaml:"z"`
	HeadingDeg float64 `yaml:"heading_deg"`
}

func (p Pose) State() dynamo.SingleState {
	return dynamo.SingleState{
		P:  dynamo.Point{X: p.X, Y: p.Y, Z: p.Z},
		Th: dynamo.DegToRad(p.HeadingDeg),
	}
}

// HoldConfig is the fixed action of a "hold" controller.
type HoldConfig struct {
	V           float64 `yaml:"v"`
	TurnRateDeg float64 `yaml:"turn_rate_deg"`
	Dz          float64 `yaml:"dz"`
}

func (h HoldConfig) Action() dynamo.SingleAction {
	return dynamo.SingleAction{V: h.V, W: dynamo.DegToRad(h.TurnRateDeg), Dz: h.Dz}
}

// ResetLimits replaces the fixed starting poses with poses drawn uniformly
// per component from [Low, High]. When Goal1 or Goal2 is set, that goal is
// drawn the same way every episode instead of taken from env.
type ResetLimits struct {
	Ownship  PoseRange   `yaml:"ownship"`
	Intruder PoseRange   `yaml:"intruder"`
	Goal1    *PointRange `yaml:"goal1,omitempty"`
	Goal2    *PointRange `yaml:"goal2,omitempty"`
}

type PoseRange struct {
	Low  Pose `yaml:"low"`
	High Pose `yaml:"high"`
}

type PointRange struct {
	Low  dynamo.Point `yaml:"low"`
	High dynamo.Point `yaml:"high"`
}

func DefaultConfig() *Config {
	return GetPreset("head_on")
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Clone() *Config {
	return deep.MustCopy(c)
}

// Catalog builds the action catalog shared by both aircraft.
func (c *Config) Catalog() (*actions.Catalog, error) {
	cat, err := actions.NewCatalogFromSpec(c.Actions)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return cat, nil
}

// BuildBarrier returns nil when the filter is disabled.
func (c *Config) BuildBarrier(cat *actions.Catalog) (*barrier.Barrier, error) {
	if c.Barrier.Kind == BarrierNone {
		return nil, nil
	}
	p := barrier.Params{
		Kind:       c.Barrier.Kind,
		Dt:         c.Env.Dt,
		MaxVal:     c.Barrier.MaxVal,
		V:          c.Barrier.Speed,
		WDegPerSec: c.Barrier.TurnRateDeg,
		SafetyDist: c.Env.SafetyDist,
		Lambda:     c.Barrier.Lambda,
		Selection:  c.Barrier.Selection,
		CacheSize:  c.Barrier.CacheSize,
		Catalog:    cat.Spec(),
	}
	b, err := barrier.New(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return b, nil
}

func (c *Config) Validate() error {
	if err := c.Env.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cat, err := c.Catalog()
	if err != nil {
		return err
	}
	if _, err := c.BuildBarrier(cat); err != nil {
		return err
	}
	if c.Episodes < 1 {
		return fmt.Errorf("%w: episodes must be at least 1, got %d", ErrInvalid, c.Episodes)
	}

	for _, ac := range []struct {
		name string
		cfg  AircraftConfig
	}{
		{"ownship", c.Ownship},
		{"intruder", c.Intruder},
	} {
		if !ac.cfg.Start.State().IsValid() {
			return fmt.Errorf("%w: %s start pose must be finite", ErrInvalid, ac.name)
		}
		switch ac.cfg.Controller {
		case ControllerUhat:
		case ControllerHold:
			if !cat.Contains(ac.cfg.Hold.Action()) {
				return fmt.Errorf("%w: %s hold action %s not in %s", ErrInvalid, ac.name, ac.cfg.Hold.Action(), cat)
			}
		default:
			return fmt.Errorf("%w: %s controller %q", ErrInvalid, ac.name, ac.cfg.Controller)
		}
	}

	if c.Reset != nil {
		for name, r := range map[string]PoseRange{"ownship": c.Reset.Ownship, "intruder": c.Reset.Intruder} {
			if err := r.validate(); err != nil {
				return fmt.Errorf("%w: reset.%s: %v", ErrInvalid, name, err)
			}
		}
		for name, r := range map[string]*PointRange{"goal1": c.Reset.Goal1, "goal2": c.Reset.Goal2} {
			if r == nil {
				continue
			}
			if err := r.validate(); err != nil {
				return fmt.Errorf("%w: reset.%s: %v", ErrInvalid, name, err)
			}
		}
	}
	return nil
}

func (r PoseRange) validate() error {
	lo, hi := r.Low, r.High
	return validateBounds([][2]float64{{lo.X, hi.X}, {lo.Y, hi.Y}, {lo.Z, hi.Z}, {lo.HeadingDeg, hi.HeadingDeg}})
}

func (r PointRange) validate() error {
	lo, hi := r.Low, r.High
	return validateBounds([][2]float64{{lo.X, hi.X}, {lo.Y, hi.Y}, {lo.Z, hi.Z}})
}

func validateBounds(bounds [][2]float64) error {
	for _, b := range bounds {
		if math.IsNaN(b[0]) || math.IsNaN(b[1]) || math.IsInf(b[0], 0) || math.IsInf(b[1], 0) {
			return fmt.Errorf("bounds must be finite")
		}
		if b[0] > b[1] {
			return fmt.Errorf("low %v above high %v", b[0], b[1])
		}
	}
	return nil
}
