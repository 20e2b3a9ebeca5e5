package barrier

import (
	"testing"

	"github.com/san-kum/fwcbf/internal/dynamo"
)

func TestRho_EvalDist(t *testing.T) {
	r := Rho{SafetyDist: 5, MaxVal: 300}
	tests := []struct {
		d    float64
		want float64
	}{
		{0, 0},
		{4, 0},
		{5, 0},
		{105, 100},
		{305, 300},
		{10000, 300},
	}

	for _, tt := range tests {
		if got := r.EvalDist(tt.d); got != tt.want {
			t.Errorf("EvalDist(%v) = %v, want %v", tt.d, got, tt.want)
		}
	}
}

func TestRho_SmallCeiling(t *testing.T) {
	r := Rho{SafetyDist: 5, MaxVal: 25}
	if got := r.EvalDist(300); got != 25 {
		t.Errorf("EvalDist(300) = %v, want 25", got)
	}
	if got := r.EvalDist(5); got != 0 {
		t.Errorf("EvalDist(5) = %v, want 0", got)
	}
}

func TestRho_Eval(t *testing.T) {
	r := Rho{SafetyDist: 5, MaxVal: 300}
	x := dynamo.JointState{
		X1: dynamo.SingleState{P: dynamo.Point{X: 0, Y: 0, Z: 0}},
		X2: dynamo.SingleState{P: dynamo.Point{X: 6, Y: 8, Z: 0}, Th: 1},
	}
	if got := r.Eval(x); got != 5 {
		t.Errorf("Eval = %v, want 5", got)
	}
	if got := r.String(); got != "Rho(safety_dist=5,max_val=300)" {
		t.Errorf("String = %q", got)
	}
}
