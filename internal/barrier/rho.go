package barrier

import (
	"fmt"
	"math"

	"github.com/san-kum/fwcbf/internal/dynamo"
)

// Rho measures separation margin: zero at or inside SafetyDist, growing
// linearly with distance beyond it and saturating at MaxVal.
type Rho struct {
	SafetyDist float64 `json:"safety_dist" yaml:"safety_dist" msgpack:"safety_dist"`
	MaxVal     float64 `json:"max_val" yaml:"max_val" msgpack:"max_val"`
}

func (r Rho) Eval(x dynamo.JointState) float64 {
	return r.EvalDist(x.Separation())
}

func (r Rho) EvalDist(d float64) float64 {
	return math.Max(0, math.Min(r.MaxVal, d-r.SafetyDist))
}

func (r Rho) String() string {
	return fmt.Sprintf("Rho(safety_dist=%g,max_val=%g)", r.SafetyDist, r.MaxVal)
}
