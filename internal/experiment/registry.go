package experiment

import (
	"fmt"
	"maps"
	"slices"

	"github.com/san-kum/fwcbf/internal/actions"
	"github.com/san-kum/fwcbf/internal/config"
	"github.com/san-kum/fwcbf/internal/control"
	"github.com/san-kum/fwcbf/internal/dynamo"
)

// ControllerFactory builds the controller for one aircraft flying toward
// goal.
type ControllerFactory func(ac config.AircraftConfig, goal dynamo.Point, dt float64, cat *actions.Catalog) (control.Controller, error)

type Registry struct {
	controllers map[string]ControllerFactory
}

func NewRegistry() *Registry {
	r := &Registry{
		controllers: make(map[string]ControllerFactory),
	}

	r.controllers[config.ControllerUhat] = func(_ config.AircraftConfig, goal dynamo.Point, dt float64, cat *actions.Catalog) (control.Controller, error) {
		return control.NewUhat(goal, dt, cat)
	}
	r.controllers[config.ControllerHold] = func(ac config.AircraftConfig, _ dynamo.Point, _ float64, cat *actions.Catalog) (control.Controller, error) {
		return control.NewHold(ac.Hold.Action(), cat)
	}

	return r
}

// Register adds or replaces a controller factory.
func (r *Registry) Register(name string, fn ControllerFactory) {
	r.controllers[name] = fn
}

func (r *Registry) GetController(name string, ac config.AircraftConfig, goal dynamo.Point, dt float64, cat *actions.Catalog) (control.Controller, error) {
	fn, ok := r.controllers[name]
	if !ok {
		return nil, fmt.Errorf("unknown controller: %s", name)
	}
	return fn(ac, goal, dt, cat)
}

func (r *Registry) ListControllers() []string {
	return slices.Sorted(maps.Keys(r.controllers))
}
