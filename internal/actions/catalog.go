// Package actions enumerates the discretized action grid available to an
// aircraft and indexes single and joint actions over it.
//
// Enumeration order is speed slowest, then turn rate, with altitude rate
// varying fastest. A joint index over catalogs of sizes N1 and N2 is
// i1*N2 + i2.
package actions

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/san-kum/fwcbf/internal/dynamo"
)

var (
	ErrInvalidCatalog  = errors.New("actions: invalid catalog")
	ErrActionNotFound  = errors.New("actions: action not in catalog")
	ErrIndexOutOfRange = errors.New("actions: index out of range")
)

// CatalogSpec is the serialized form of a Catalog. Turn rates are in
// degrees per second.
type CatalogSpec struct {
	Speeds       []float64 `json:"speeds" yaml:"speeds" msgpack:"speeds"`
	TurnRatesDeg []float64 `json:"turn_rates_deg" yaml:"turn_rates_deg" msgpack:"turn_rates_deg"`
	AltRates     []float64 `json:"alt_rates" yaml:"alt_rates" msgpack:"alt_rates"`
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	speeds   []float64
	turnDeg  []float64
	turnRad  []float64
	altRates []float64

	all   []dynamo.SingleAction
	index map[dynamo.SingleAction]int
}

func NewCatalog(speeds, turnRatesDeg, altRates []float64) (*Catalog, error) {
	for _, axis := range []struct {
		name string
		vals []float64
	}{
		{"speeds", speeds},
		{"turn rates", turnRatesDeg},
		{"altitude rates", altRates},
	} {
		if err := validateAxis(axis.name, axis.vals); err != nil {
			return nil, err
		}
	}

	c := &Catalog{
		speeds:   slices.Clone(speeds),
		turnDeg:  slices.Clone(turnRatesDeg),
		altRates: slices.Clone(altRates),
	}
	c.turnRad = make([]float64, len(turnRatesDeg))
	for i, w := range turnRatesDeg {
		c.turnRad[i] = dynamo.DegToRad(w)
	}

	n := len(speeds) * len(turnRatesDeg) * len(altRates)
	c.all = make([]dynamo.SingleAction, 0, n)
	c.index = make(map[dynamo.SingleAction]int, n)
	for _, v := range c.speeds {
		for _, w := range c.turnRad {
			for _, dz := range c.altRates {
				ac := dynamo.SingleAction{V: v, W: w, Dz: dz}
				c.index[ac] = len(c.all)
				c.all = append(c.all, ac)
			}
		}
	}
	if len(c.index) != n {
		return nil, fmt.Errorf("%w: turn rates collide after conversion to radians", ErrInvalidCatalog)
	}

	return c, nil
}

func NewCatalogFromSpec(s CatalogSpec) (*Catalog, error) {
	return NewCatalog(s.Speeds, s.TurnRatesDeg, s.AltRates)
}

func validateAxis(name string, vals []float64) error {
	if len(vals) == 0 {
		return fmt.Errorf("%w: no %s given", ErrInvalidCatalog, name)
	}
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s[%d] = %v is not finite", ErrInvalidCatalog, name, i, v)
		}
		for j := 0; j < i; j++ {
			if vals[j] == v {
				return fmt.Errorf("%w: duplicate %s value %v", ErrInvalidCatalog, name, v)
			}
		}
	}
	return nil
}

func (c *Catalog) Spec() CatalogSpec {
	return CatalogSpec{
		Speeds:       slices.Clone(c.speeds),
		TurnRatesDeg: slices.Clone(c.turnDeg),
		AltRates:     slices.Clone(c.altRates),
	}
}

// Len is the number of enumerated actions.
func (c *Catalog) Len() int { return len(c.all) }

func (c *Catalog) Speeds() []float64       { return slices.Clone(c.speeds) }
func (c *Catalog) TurnRatesDeg() []float64 { return slices.Clone(c.turnDeg) }
func (c *Catalog) TurnRatesRad() []float64 { return slices.Clone(c.turnRad) }
func (c *Catalog) AltRates() []float64     { return slices.Clone(c.altRates) }

// All returns every action in enumeration order.
func (c *Catalog) All() []dynamo.SingleAction { return slices.Clone(c.all) }

// Action returns the action at flat index i. Its turn rate is in rad/s.
func (c *Catalog) Action(i int) (dynamo.SingleAction, error) {
	if i < 0 || i >= len(c.all) {
		return dynamo.SingleAction{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, i, len(c.all))
	}
	return c.all[i], nil
}

// Index locates ac by exact match. Near misses are errors.
func (c *Catalog) Index(ac dynamo.SingleAction) (int, error) {
	i, ok := c.index[ac]
	if !ok {
		return 0, fmt.Errorf("%w: %s not in %s", ErrActionNotFound, ac, c)
	}
	return i, nil
}

func (c *Catalog) Contains(ac dynamo.SingleAction) bool {
	_, ok := c.index[ac]
	return ok
}

func (c *Catalog) String() string {
	join := func(vals []float64) string {
		parts := make([]string, len(vals))
		for i, v := range vals {
			parts[i] = fmt.Sprintf("%g", v)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprintf("Catalog(v=[%s],w=[%s],dz=[%s])",
		join(c.speeds), join(c.turnDeg), join(c.altRates))
}
