package config

import (
	"maps"
	"slices"

	"github.com/brunoga/deep"
	"github.com/san-kum/fwcbf/internal/actions"
	"github.com/san-kum/fwcbf/internal/dynamo"
	"github.com/san-kum/fwcbf/internal/env"
)

func baseEnv(safetyDist float64) env.Config {
	return env.Config{
		Dt:         DefaultDt,
		MaxSimTime: DefaultMaxSimTime,
		DoneDist:   DefaultDoneDist,
		SafetyDist: safetyDist,
		Goal1:      dynamo.Point{X: 200},
		Goal2:      dynamo.Point{X: -200},
		TimeWarp:   -1,
	}
}

func baseActions(speeds ...float64) actions.CatalogSpec {
	return actions.CatalogSpec{
		Speeds:       speeds,
		TurnRatesDeg: []float64{-DefaultTurnRateDeg, 0, DefaultTurnRateDeg},
		AltRates:     []float64{0},
	}
}

func turnBarrier() BarrierConfig {
	return BarrierConfig{
		Kind:        BarrierTurn,
		MaxVal:      DefaultMaxVal,
		Speed:       DefaultSpeed,
		TurnRateDeg: DefaultTurnRateDeg,
		Selection:   "max_margin",
	}
}

func pursuer(x, y, headingDeg float64) AircraftConfig {
	return AircraftConfig{Start: Pose{X: x, Y: y, HeadingDeg: headingDeg}, Controller: ControllerUhat}
}

var Presets = map[string]*Config{
	// both aircraft fly straight at each other toward the opposite goal
	"head_on": {
		Env:      baseEnv(DefaultSafetyDist),
		Actions:  baseActions(15, 20, 25),
		Barrier:  turnBarrier(),
		Ownship:  pursuer(-200, 0, 0),
		Intruder: pursuer(200, 0, 180),
		Episodes: DefaultEpisodes,
	},
	"head_on_stationary": {
		Env:      baseEnv(-1),
		Actions:  baseActions(0),
		Barrier:  BarrierConfig{Kind: BarrierNone},
		Ownship:  pursuer(0, 50, 90),
		Intruder: pursuer(0, -50, -90),
		Episodes: DefaultEpisodes,
	},
	"collision": {
		Env:      baseEnv(DefaultSafetyDist),
		Actions:  baseActions(0),
		Barrier:  BarrierConfig{Kind: BarrierNone},
		Ownship:  pursuer(0, 1, 90),
		Intruder: pursuer(0, -1, -90),
		Episodes: DefaultEpisodes,
	},
	"crossing": {
		Env: func() env.Config {
			e := baseEnv(DefaultSafetyDist)
			e.Goal2 = dynamo.Point{Y: 200}
			return e
		}(),
		Actions:  baseActions(15, 20, 25),
		Barrier:  turnBarrier(),
		Ownship:  pursuer(-200, 0, 0),
		Intruder: pursuer(0, -200, 90),
		Episodes: DefaultEpisodes,
	},
	"random": {
		Env:      baseEnv(DefaultSafetyDist),
		Actions:  baseActions(15, 20, 25),
		Barrier:  turnBarrier(),
		Ownship:  pursuer(-200, 0, 0),
		Intruder: pursuer(200, 0, 180),
		Reset: &ResetLimits{
			Ownship: PoseRange{
				Low:  Pose{X: -250, Y: -50, HeadingDeg: -45},
				High: Pose{X: -150, Y: 50, HeadingDeg: 45},
			},
			Intruder: PoseRange{
				Low:  Pose{X: 150, Y: -50, HeadingDeg: 135},
				High: Pose{X: 250, Y: 50, HeadingDeg: 225},
			},
			Goal1: &PointRange{Low: dynamo.Point{X: 150, Y: -100}, High: dynamo.Point{X: 250, Y: 100}},
			Goal2: &PointRange{Low: dynamo.Point{X: -250, Y: -100}, High: dynamo.Point{X: -150, Y: 100}},
		},
		Episodes: 20,
		Seed:     1,
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return deep.MustCopy(cfg)
}

func ListPresets() []string {
	return slices.Sorted(maps.Keys(Presets))
}
