package barrier

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/onsi/gomega"
	"github.com/san-kum/fwcbf/internal/actions"
	"github.com/san-kum/fwcbf/internal/dynamo"
)

func testCatalog(t *testing.T) *actions.Catalog {
	t.Helper()
	c, err := actions.NewCatalog([]float64{15, 20, 25}, []float64{-12, 0, 12}, []float64{0})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return c
}

func testTurn(t *testing.T, safetyDist float64, opts ...Option) *Barrier {
	t.Helper()
	b, err := NewTurn(0.1, 300, 15, 12, safetyDist, testCatalog(t), opts...)
	if err != nil {
		t.Fatalf("NewTurn: %v", err)
	}
	return b
}

func state(x1, y1, th1, x2, y2, th2 float64) dynamo.JointState {
	return dynamo.JointState{
		X1: dynamo.SingleState{P: dynamo.Point{X: x1, Y: y1}, Th: th1},
		X2: dynamo.SingleState{P: dynamo.Point{X: x2, Y: y2}, Th: th2},
	}
}

func straightAt(v float64) dynamo.JointAction {
	a := dynamo.SingleAction{V: v}
	return dynamo.JointAction{A1: a, A2: a}
}

// headOn closes on the intruder fast enough that flying straight at top
// speed breaks the constraint while the reference turn still satisfies it.
func headOn() dynamo.JointState { return state(20, 0, math.Pi, -20, 0, 0) }

func TestNewTurn(t *testing.T) {
	b := testTurn(t, 5)
	if b.LookaheadSteps() != 300 {
		t.Errorf("LookaheadSteps = %d, want 300", b.LookaheadSteps())
	}
	if b.Lambda() != DefaultLambda || b.Selection() != MaxMargin || b.Kind() != Turn {
		t.Errorf("unexpected defaults: lambda=%v selection=%v kind=%v", b.Lambda(), b.Selection(), b.Kind())
	}
	if b.WRadPerSec() != dynamo.DegToRad(12) {
		t.Errorf("WRadPerSec = %v", b.WRadPerSec())
	}
	want := "BarrierTurn(dt=0.1,max_val=300,v=15,w_deg_per_sec=12,safety_dist=5)"
	if got := b.String(); got != want {
		t.Errorf("String = %q, want %q", got, want)
	}
}

func TestNewTurn_Invalid(t *testing.T) {
	c := testCatalog(t)
	tests := []struct {
		name                         string
		dt, maxVal, v, w, safetyDist float64
		catalog                      *actions.Catalog
		opts                         []Option
	}{
		{"zero dt", 0, 300, 15, 12, 5, c, nil},
		{"NaN dt", math.NaN(), 300, 15, 12, 5, c, nil},
		{"zero max", 0.1, 0, 15, 12, 5, c, nil},
		{"zero turn rate", 0.1, 300, 15, 0, 5, c, nil},
		{"negative turn rate", 0.1, 300, 15, -12, 5, c, nil},
		{"period not whole", 0.1, 300, 15, 7, 5, c, nil},
		{"dt not a whole fraction", 0.3, 300, 15, 12, 5, c, nil},
		{"reference speed missing", 0.1, 300, 17, 12, 5, c, nil},
		{"nil catalog", 0.1, 300, 15, 12, 5, nil, nil},
		{"lambda one", 0.1, 300, 15, 12, 5, c, []Option{WithLambda(1)}},
		{"lambda zero", 0.1, 300, 15, 12, 5, c, []Option{WithLambda(0)}},
		{"unknown selection", 0.1, 300, 15, 12, 5, c, []Option{WithSelection(Selection(7))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTurn(tt.dt, tt.maxVal, tt.v, tt.w, tt.safetyDist, tt.catalog, tt.opts...)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestTurn_FarApart(t *testing.T) {
	b := testTurn(t, 5)
	x := state(5000, 0, 0, -5000, 0, 0)

	if h := b.H(x); h != 300 {
		t.Errorf("H = %v, want ceiling 300", h)
	}
	if n := b.Index().Len(); n != 81 {
		t.Fatalf("joint actions = %d, want 81", n)
	}
	for i := 0; i < b.Index().Len(); i++ {
		u, err := b.Index().Action(i)
		if err != nil {
			t.Fatalf("Action(%d): %v", i, err)
		}
		if dh := b.DH(x, u); dh != 0 {
			t.Errorf("DH under %s = %v, want 0", u, dh)
		}
		got, err := b.ChooseUIndex(x, i)
		if err != nil {
			t.Fatalf("ChooseUIndex(%d): %v", i, err)
		}
		if got != i {
			t.Errorf("ChooseUIndex(%d) = %d, want nominal kept", i, got)
		}
		if b.ChooseU(x, u) != u {
			t.Errorf("ChooseU replaced nominal %s", u)
		}
	}
}

func TestTurn_HBelowSeparation(t *testing.T) {
	b := testTurn(t, 5)
	x := state(-50, 0, 0, 50, 0, math.Pi)
	if h := b.H(x); !(h < x.Separation()-5) {
		t.Errorf("H = %v, want below %v for converging aircraft", h, x.Separation()-5)
	}
}

func TestTurn_HNegativeInsideSafetyDist(t *testing.T) {
	b := testTurn(t, 5)
	x := state(1, 0, 0, -1, 0, math.Pi)
	if h := b.H(x); !(h <= x.Separation()-5) || h >= 0 {
		t.Errorf("H = %v, want at most %v", h, x.Separation()-5)
	}
}

func TestTurn_DHMatchesSimulation(t *testing.T) {
	b := testTurn(t, 5)
	all := b.Catalog().All()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 20; i++ {
		x := state(
			rng.Float64()*200-100, rng.Float64()*200-100, rng.Float64()*2*math.Pi,
			rng.Float64()*200-100, rng.Float64()*200-100, rng.Float64()*2*math.Pi,
		)
		u := dynamo.JointAction{A1: all[rng.Intn(len(all))], A2: all[rng.Intn(len(all))]}

		next := dynamo.JointState{
			X1: dynamo.Step(0.1, u.A1, x.X1),
			X2: dynamo.Step(0.1, u.A2, x.X2),
		}
		if got, want := b.DH(x, u), b.H(next)-b.H(x); got != want {
			t.Fatalf("DH = %v, want %v at %s under %s", got, want, x, u)
		}
	}
}

// The reference maneuver bounds the constraint over every joint action,
// and whatever nominal comes in, the chosen action satisfies it.
func TestTurn_ReferenceIsSupremum(t *testing.T) {
	tests := []struct {
		name       string
		safetyDist float64
		x          dynamo.JointState
	}{
		{"offset head-on", 5, state(21, -1, math.Pi, -21, 1, 0)},
		{"offset head-on tight", 4.5, state(21, -1, math.Pi, -21, 1, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testTurn(t, tt.safetyDist)
			x := tt.x
			h := b.H(x)
			if !(h < b.MaxVal()) {
				t.Fatalf("H = %v, want below ceiling", h)
			}

			ref := b.ReferenceAction()
			refVal := b.Constraint(h, x, dynamo.JointAction{A1: ref, A2: ref})
			if refVal < 0 {
				t.Fatalf("reference constraint = %v, want >= 0", refVal)
			}

			for i := 0; i < b.Index().Len(); i++ {
				u, err := b.Index().Action(i)
				if err != nil {
					t.Fatalf("Action(%d): %v", i, err)
				}
				if val := b.Constraint(h, x, u); val > refVal {
					t.Errorf("constraint under %s = %v, above reference %v", u, val, refVal)
				}

				safe, err := b.ChooseUIndex(x, i)
				if err != nil {
					t.Fatalf("ChooseUIndex(%d): %v", i, err)
				}
				su, err := b.Index().Action(safe)
				if err != nil {
					t.Fatalf("Action(%d): %v", safe, err)
				}
				if val := b.Constraint(h, x, su); val < 0 {
					t.Errorf("ChooseUIndex(%d) = %s with constraint %v, want >= 0", i, su, val)
				}
			}
		})
	}
}

func TestTurn_Override(t *testing.T) {
	g := gomega.NewWithT(t)
	b := testTurn(t, 4.5)
	x := headOn()
	nominal := straightAt(25)

	h := b.H(x)
	g.Expect(h).To(gomega.BeNumerically(">", 0))
	g.Expect(b.IsSafe(x, nominal)).To(gomega.BeFalse())

	ref := b.ReferenceAction()
	refVal := b.Constraint(h, x, dynamo.JointAction{A1: ref, A2: ref})
	g.Expect(refVal).To(gomega.BeNumerically("~", b.Lambda()*h, 1e-9))

	got := b.ChooseU(x, nominal)
	g.Expect(got).NotTo(gomega.Equal(nominal))
	g.Expect(b.Constraint(h, x, got)).To(gomega.BeNumerically(">=", refVal-1e-9))

	// the first maximizer in joint index order wins
	first := -1
	bestVal := math.Inf(-1)
	for i := 0; i < b.Index().Len(); i++ {
		u, err := b.Index().Action(i)
		g.Expect(err).NotTo(gomega.HaveOccurred())
		if val := b.Constraint(h, x, u); val > bestVal {
			first, bestVal = i, val
		}
	}
	idx, err := b.Index().Index(got)
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(idx).To(gomega.Equal(first))
}

func TestNearestSafe(t *testing.T) {
	g := gomega.NewWithT(t)
	b := testTurn(t, 4.5, WithSelection(NearestSafe))
	x := headOn()
	nominal := straightAt(25)
	h := b.H(x)

	got := b.ChooseU(x, nominal)
	g.Expect(b.Constraint(h, x, got)).To(gomega.BeNumerically(">=", 0))

	gotDist := got.A1.Dist(nominal.A1) + got.A2.Dist(nominal.A2)
	for i := 0; i < b.Index().Len(); i++ {
		u, _ := b.Index().Action(i)
		if b.Constraint(h, x, u) < 0 {
			continue
		}
		dist := u.A1.Dist(nominal.A1) + u.A2.Dist(nominal.A2)
		g.Expect(gotDist).To(gomega.BeNumerically("<=", dist), "safe candidate %s is closer than %s", u, got)
	}

	far := state(5000, 0, 0, -5000, 0, 0)
	g.Expect(b.ChooseU(far, nominal)).To(gomega.Equal(nominal))
}

func TestStraight(t *testing.T) {
	g := gomega.NewWithT(t)
	b, err := NewStraight(0.1, 300, 15, 5, testCatalog(t))
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(b.LookaheadSteps()).To(gomega.Equal(300))
	g.Expect(b.Kind()).To(gomega.Equal(Straight))
	g.Expect(b.String()).To(gomega.Equal("BarrierStraight(dt=0.1,max_val=300,v=15,safety_dist=5)"))

	// head-on at 30 m/s closing: minimum separation of 1 after 33 steps
	g.Expect(b.H(state(-50, 0, 0, 50, 0, math.Pi))).To(gomega.BeNumerically("~", -4, 1e-6))

	// parallel tracks never close
	g.Expect(b.H(state(0, 0, 0, 0, 10, 0))).To(gomega.Equal(5.0))

	_, err = NewStraight(0.1, 300, 17, 5, testCatalog(t))
	g.Expect(err).To(gomega.MatchError(ErrInvalidConfig))
}

func TestCache(t *testing.T) {
	plain := testTurn(t, 5)
	cached := testTurn(t, 5, WithCache(16))
	x := headOn()

	want := plain.H(x)
	for i := 0; i < 3; i++ {
		if got := cached.H(x); got != want {
			t.Fatalf("cached H = %v, want %v", got, want)
		}
	}
	if got, want := cached.ChooseU(x, straightAt(25)), plain.ChooseU(x, straightAt(25)); got != want {
		t.Errorf("cached ChooseU = %s, want %s", got, want)
	}
}

func TestChooseUBatch(t *testing.T) {
	g := gomega.NewWithT(t)
	b := testTurn(t, 4.5)
	nomIdx, err := b.Index().Index(straightAt(25))
	g.Expect(err).NotTo(gomega.HaveOccurred())

	states := []dynamo.JointState{
		headOn(),
		state(5000, 0, 0, -5000, 0, 0),
		state(-50, 0, 0, 50, 0, math.Pi),
		state(21, -1, math.Pi, -21, 1, 0),
		headOn(),
	}
	nominal := []int{nomIdx, nomIdx, 0, 40, 80}

	got, err := b.ChooseUBatch(states, nominal)
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(got).To(gomega.HaveLen(len(states)))
	for i := range states {
		want, err := b.ChooseUIndex(states[i], nominal[i])
		g.Expect(err).NotTo(gomega.HaveOccurred())
		g.Expect(got[i]).To(gomega.Equal(want), "entry %d", i)
	}

	rows := make([][]float64, len(states))
	for i, s := range states {
		v := s.Vector()
		rows[i] = v[:]
	}
	fromRows, err := b.ChooseURows(rows, nominal)
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(fromRows).To(gomega.Equal(got))
}

func TestChooseUBatch_Invalid(t *testing.T) {
	b := testTurn(t, 5)
	x := headOn()

	if _, err := b.ChooseUBatch([]dynamo.JointState{x}, []int{0, 1}); !errors.Is(err, ErrBatchShape) {
		t.Errorf("length mismatch err = %v, want ErrBatchShape", err)
	}
	if _, err := b.ChooseUBatch([]dynamo.JointState{x}, []int{81}); !errors.Is(err, actions.ErrIndexOutOfRange) {
		t.Errorf("bad index err = %v, want ErrIndexOutOfRange", err)
	}
	if _, err := b.ChooseUIndex(x, -1); !errors.Is(err, actions.ErrIndexOutOfRange) {
		t.Errorf("ChooseUIndex err = %v, want ErrIndexOutOfRange", err)
	}
	if _, err := b.ChooseURows([][]float64{{1, 2, 3}}, []int{0}); !errors.Is(err, ErrBatchShape) {
		t.Errorf("short row err = %v, want ErrBatchShape", err)
	}
}

func TestParams_RoundTrip(t *testing.T) {
	g := gomega.NewWithT(t)
	b := testTurn(t, 5, WithLambda(0.9), WithSelection(NearestSafe), WithCache(8))

	data, err := dynamo.Marshal(b.Params())
	g.Expect(err).NotTo(gomega.HaveOccurred())

	var p Params
	g.Expect(dynamo.Unmarshal(data, &p)).To(gomega.Succeed())
	g.Expect(p).To(gomega.Equal(b.Params()))

	b2, err := New(p)
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(b2.String()).To(gomega.Equal(b.String()))
	g.Expect(b2.Lambda()).To(gomega.Equal(0.9))
	g.Expect(b2.Selection()).To(gomega.Equal(NearestSafe))
	g.Expect(b2.LookaheadSteps()).To(gomega.Equal(b.LookaheadSteps()))
	g.Expect(b2.H(headOn())).To(gomega.Equal(b.H(headOn())))

	p.Kind = "spiral"
	_, err = New(p)
	g.Expect(err).To(gomega.MatchError(ErrInvalidConfig))
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		in   string
		want Selection
		ok   bool
	}{
		{"", MaxMargin, true},
		{"max_margin", MaxMargin, true},
		{"nearest_safe", NearestSafe, true},
		{"greedy", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseSelection(tt.in)
		if (err == nil) != tt.ok || (tt.ok && got != tt.want) {
			t.Errorf("ParseSelection(%q) = %v, %v", tt.in, got, err)
		}
		if tt.ok && got.String() != tt.in && tt.in != "" {
			t.Errorf("String() = %q, want %q", got.String(), tt.in)
		}
	}
}
