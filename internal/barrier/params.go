package barrier

import "github.com/san-kum/fwcbf/internal/actions"

// Params is the serialized form of a Barrier.
type Params struct {
	Kind       string              `json:"kind" yaml:"kind" msgpack:"kind"`
	Dt         float64             `json:"dt" yaml:"dt" msgpack:"dt"`
	MaxVal     float64             `json:"max_val" yaml:"max_val" msgpack:"max_val"`
	V          float64             `json:"v" yaml:"v" msgpack:"v"`
	WDegPerSec float64             `json:"w_deg_per_sec" yaml:"w_deg_per_sec" msgpack:"w_deg_per_sec"`
	SafetyDist float64             `json:"safety_dist" yaml:"safety_dist" msgpack:"safety_dist"`
	Lambda     float64             `json:"lambda" yaml:"lambda" msgpack:"lambda"`
	Selection  string              `json:"selection" yaml:"selection" msgpack:"selection"`
	CacheSize  int                 `json:"cache_size" yaml:"cache_size" msgpack:"cache_size"`
	Catalog    actions.CatalogSpec `json:"catalog" yaml:"catalog" msgpack:"catalog"`
}

func (b *Barrier) Params() Params {
	return Params{
		Kind:       b.kind.String(),
		Dt:         b.dt,
		MaxVal:     b.maxVal,
		V:          b.v,
		WDegPerSec: b.wDeg,
		SafetyDist: b.safetyDist,
		Lambda:     b.lambda,
		Selection:  b.selection.String(),
		CacheSize:  b.cacheSize,
		Catalog:    b.catalog.Spec(),
	}
}

// New rebuilds a Barrier from its serialized form.
func New(p Params) (*Barrier, error) {
	kind, err := ParseKind(p.Kind)
	if err != nil {
		return nil, err
	}
	sel, err := ParseSelection(p.Selection)
	if err != nil {
		return nil, err
	}
	catalog, err := actions.NewCatalogFromSpec(p.Catalog)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithSelection(sel), WithCache(p.CacheSize)}
	if p.Lambda != 0 {
		opts = append(opts, WithLambda(p.Lambda))
	}

	if kind == Straight {
		return NewStraight(p.Dt, p.MaxVal, p.V, p.SafetyDist, catalog, opts...)
	}
	return NewTurn(p.Dt, p.MaxVal, p.V, p.WDegPerSec, p.SafetyDist, catalog, opts...)
}
