package viz

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/fwcbf/internal/config"
	"github.com/san-kum/fwcbf/internal/dynamo"
	"github.com/san-kum/fwcbf/internal/experiment"
)

func TestCanvas(t *testing.T) {
	c := NewCanvas(4, 2)
	c.Set(0, 0)
	c.Set(7, 7)
	c.Set(-1, 3)
	c.Set(8, 0)

	if !c.IsSet(0, 0) || !c.IsSet(7, 7) {
		t.Error("expected dots to be set")
	}
	if c.IsSet(1, 0) {
		t.Error("unexpected dot at (1, 0)")
	}
	if got := []rune(strings.Split(c.String(), "\n")[0])[0]; got != 0x2801 {
		t.Errorf("first cell = %U, want U+2801", got)
	}

	c.Clear()
	if c.IsSet(0, 0) {
		t.Error("expected clear canvas")
	}
}

func TestViewport(t *testing.T) {
	c := NewCanvas(10, 5) // 20x20 dots
	v := NewViewport(c, dynamo.Point{}, 10)

	tests := []struct {
		p      dynamo.Point
		wx, wy int
	}{
		{dynamo.Point{}, 10, 10},
		{dynamo.Point{X: 10}, 20, 10},
		{dynamo.Point{X: -10}, 0, 10},
		{dynamo.Point{Y: 10}, 10, 0},
	}
	for _, tt := range tests {
		if x, y := v.Dot(tt.p); x != tt.wx || y != tt.wy {
			t.Errorf("Dot(%v) = (%d, %d), want (%d, %d)", tt.p, x, y, tt.wx, tt.wy)
		}
	}

	v.Line(dynamo.Point{X: -5}, dynamo.Point{X: 5})
	for x := 5; x <= 15; x++ {
		if !c.IsSet(x, 10) {
			t.Errorf("line missing dot at x=%d", x)
		}
	}
}

func TestThemes(t *testing.T) {
	for _, name := range ThemeNames() {
		if _, err := GetTheme(name); err != nil {
			t.Errorf("GetTheme(%q): %v", name, err)
		}
	}
	if _, err := GetTheme("nope"); err == nil {
		t.Error("expected error for unknown theme")
	}
}

func TestStylesMargin(t *testing.T) {
	s := NewStyles(ThemeMinimal)
	tests := []struct {
		h    float64
		want lipgloss.Color
	}{
		{-1, ThemeMinimal.Alert},
		{0, ThemeMinimal.Alert},
		{10, ThemeMinimal.Warning},
		{200, ThemeMinimal.Safe},
	}
	for _, tt := range tests {
		if got := s.Margin(tt.h, 300).GetForeground(); got != tt.want {
			t.Errorf("Margin(%v) color = %v, want %v", tt.h, got, tt.want)
		}
	}
}

func TestReport(t *testing.T) {
	e, err := experiment.New(config.GetPreset("head_on"))
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	out := Report(res, NewStyles(ThemeRadar))
	for _, want := range []string{"RESULT", "collisions", "overrides", "episode 0: separation", "ownship"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestFeed(t *testing.T) {
	f := NewFeed(4)
	x := dynamo.JointState{X2: dynamo.SingleState{P: dynamo.Point{X: 30, Y: 40}}}
	nominal := dynamo.SingleAction{V: 25}
	safe := dynamo.SingleAction{V: 15, W: 0.2}

	f.OnOverride(0.1, 12, nominal, safe)
	f.OnStep(x, dynamo.JointAction{A1: safe}, 0.1)
	f.OnStep(x, dynamo.JointAction{A1: nominal}, 0.2)
	f.Finish(nil, errors.New("boom"))

	msg := f.wait()()
	fr, ok := msg.(FrameMsg)
	if !ok || !fr.Override || fr.H != 12 || fr.Nominal != nominal || fr.Applied.A1 != safe {
		t.Fatalf("first frame = %#v", msg)
	}
	msg = f.wait()()
	if fr, ok := msg.(FrameMsg); !ok || fr.Override || fr.T != 0.2 {
		t.Fatalf("second frame = %#v", msg)
	}
	if done, ok := f.wait()().(DoneMsg); !ok || done.Err == nil {
		t.Fatalf("expected DoneMsg with error")
	}
}

func TestFeedStopUnblocks(t *testing.T) {
	f := NewFeed(0)
	f.Stop()
	f.Stop()
	f.OnStep(dynamo.JointState{}, dynamo.JointAction{}, 0)
}

func TestLiveModel(t *testing.T) {
	f := NewFeed(1)
	m := NewLiveModel(f, LiveOptions{
		Goal1:      dynamo.Point{X: 200},
		Goal2:      dynamo.Point{X: -200},
		SafetyDist: 5,
		MaxVal:     300,
		MaxSimTime: 100,
		Theme:      ThemeNight,
	})

	x := dynamo.JointState{
		X1: dynamo.SingleState{P: dynamo.Point{X: -20}},
		X2: dynamo.SingleState{P: dynamo.Point{X: 20}, Th: 3.14},
	}
	next, cmd := m.Update(FrameMsg{T: 1, State: x, Override: true, H: 3, Nominal: dynamo.SingleAction{V: 25}})
	if cmd == nil {
		t.Fatal("expected a command waiting for the next frame")
	}
	lm := next.(LiveModel)
	if lm.overrides != 1 {
		t.Errorf("overrides = %d, want 1", lm.overrides)
	}
	view := lm.View()
	for _, want := range []string{"OVERRIDE", "40.0 m", "nominal"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	next, _ = lm.Update(DoneMsg{Err: errors.New("boom")})
	if !strings.Contains(next.View(), "ERROR: boom") {
		t.Error("expected error status")
	}
}
