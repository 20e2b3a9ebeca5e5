package viz

import (
	"fmt"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/fwcbf/internal/dynamo"
	"github.com/san-kum/fwcbf/internal/experiment"
)

const (
	canvasWidth     = 48
	canvasHeight    = 20
	historyCapacity = 600
)

// Frame is one step of a running episode as seen by the live view.
type Frame struct {
	T        float64
	State    dynamo.JointState
	Applied  dynamo.JointAction
	Nominal  dynamo.SingleAction
	H        float64
	Override bool
}

type FrameMsg Frame

type DoneMsg struct {
	Result *experiment.Result
	Err    error
}

// Feed carries frames from a runner goroutine to the live view. It is an
// experiment.OverrideObserver; attach it to a single runner.
type Feed struct {
	frames chan Frame
	stop   chan struct{}
	once   sync.Once

	pending *Frame
	done    DoneMsg
}

func NewFeed(buffer int) *Feed {
	return &Feed{
		frames: make(chan Frame, buffer),
		stop:   make(chan struct{}),
	}
}

func (f *Feed) OnOverride(t, h float64, nominal, safe dynamo.SingleAction) {
	f.pending = &Frame{H: h, Nominal: nominal, Override: true}
}

// OnStep blocks while the buffer is full until the view reads or stops.
func (f *Feed) OnStep(x dynamo.JointState, u dynamo.JointAction, t float64) {
	fr := Frame{T: t, State: x, Applied: u, Nominal: u.A1}
	if f.pending != nil {
		fr.H, fr.Nominal, fr.Override = f.pending.H, f.pending.Nominal, true
		f.pending = nil
	}
	select {
	case f.frames <- fr:
	case <-f.stop:
	}
}

// Finish delivers the outcome of the run. No OnStep may follow it.
func (f *Feed) Finish(res *experiment.Result, err error) {
	f.done = DoneMsg{Result: res, Err: err}
	close(f.frames)
}

// Stop releases a runner blocked in OnStep once the view has gone.
func (f *Feed) Stop() {
	f.once.Do(func() { close(f.stop) })
}

// Stopped is closed when the view quits.
func (f *Feed) Stopped() <-chan struct{} { return f.stop }

func (f *Feed) wait() tea.Cmd {
	return func() tea.Msg {
		fr, ok := <-f.frames
		if !ok {
			return f.done
		}
		return FrameMsg(fr)
	}
}

// LiveModel is the bubbletea model of a paced episode: a plan view of both
// aircraft with the protected zone around the ownship, and a panel of the
// current separation, barrier value and actions.
type LiveModel struct {
	feed       *Feed
	styles     Styles
	canvas     *Canvas
	goal1      dynamo.Point
	goal2      dynamo.Point
	safetyDist float64
	maxVal     float64
	maxT       float64

	last      Frame
	started   bool
	trail1    []dynamo.Point
	trail2    []dynamo.Point
	sepHist   []float64
	overrides int
	done      *DoneMsg
}

type LiveOptions struct {
	Goal1, Goal2 dynamo.Point
	SafetyDist   float64
	MaxVal       float64
	MaxSimTime   float64
	Theme        Theme
}

func NewLiveModel(feed *Feed, opts LiveOptions) LiveModel {
	return LiveModel{
		feed:       feed,
		styles:     NewStyles(opts.Theme),
		canvas:     NewCanvas(canvasWidth, canvasHeight),
		goal1:      opts.Goal1,
		goal2:      opts.Goal2,
		safetyDist: opts.SafetyDist,
		maxVal:     opts.MaxVal,
		maxT:       opts.MaxSimTime,
		trail1:     make([]dynamo.Point, 0, historyCapacity),
		trail2:     make([]dynamo.Point, 0, historyCapacity),
		sepHist:    make([]float64, 0, historyCapacity),
	}
}

func (m LiveModel) Init() tea.Cmd {
	return m.feed.wait()
}

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.feed.Stop()
			return m, tea.Quit
		}
	case FrameMsg:
		m.push(Frame(msg))
		return m, m.feed.wait()
	case DoneMsg:
		m.done = &msg
	}
	return m, nil
}

func (m *LiveModel) push(fr Frame) {
	m.last, m.started = fr, true
	if fr.Override {
		m.overrides++
	}
	m.trail1 = appendCapped(m.trail1, fr.State.X1.P)
	m.trail2 = appendCapped(m.trail2, fr.State.X2.P)
	m.sepHist = appendCapped(m.sepHist, fr.State.Separation())
}

func appendCapped[T any](s []T, v T) []T {
	s = append(s, v)
	if len(s) > historyCapacity {
		s = s[1:]
	}
	return s
}

func (m LiveModel) draw() string {
	m.canvas.Clear()
	pts := append([]dynamo.Point{m.goal1, m.goal2}, m.trail1...)
	pts = append(pts, m.trail2...)
	center, radius := bounds(pts)
	v := NewViewport(m.canvas, center, radius*1.1)

	for i := 1; i < len(m.trail1); i++ {
		v.Line(m.trail1[i-1], m.trail1[i])
		v.Line(m.trail2[i-1], m.trail2[i])
	}
	v.Circle(m.goal1, radius/30)
	v.Circle(m.goal2, radius/30)
	if m.started {
		if m.safetyDist > 0 {
			v.Circle(m.last.State.X1.P, m.safetyDist)
		}
		v.Aircraft(m.last.State.X1, radius/15)
		v.Aircraft(m.last.State.X2, radius/15)
	}
	return m.styles.Graph.Render(m.canvas.String())
}

func (m LiveModel) View() string {
	s := m.styles
	var b strings.Builder

	status := s.Safe.Render("RUNNING")
	switch {
	case m.done != nil && m.done.Err != nil:
		status = s.Alert.Render("ERROR: " + m.done.Err.Error())
	case m.done != nil:
		cause := "done"
		if res := m.done.Result; res != nil && len(res.Episodes) > 0 {
			cause = res.Episodes[len(res.Episodes)-1].Cause
		}
		status = s.Warning.Render("DONE (" + cause + ")")
	case m.last.Override:
		status = s.Alert.Render("OVERRIDE")
	}
	b.WriteString(s.Header.Render("FWCBF LIVE") + "\n")
	b.WriteString(status + "\n\n")

	fr := m.last
	progress := 0.0
	if m.maxT > 0 {
		progress = fr.T / m.maxT
	}
	b.WriteString(s.Row("time", fmt.Sprintf("%.1fs", fr.T)) + "\n")
	b.WriteString(s.Label.Render("") + s.ProgressBar(progress, 20) + "\n")
	b.WriteString(s.Row("separation", fmt.Sprintf("%.1f m", fr.State.Separation())) + "\n")
	if m.maxVal > 0 && fr.Override {
		b.WriteString(s.Label.Render("h") + s.Margin(fr.H, m.maxVal).Render(fmt.Sprintf("%.1f", fr.H)) + "\n")
	}
	b.WriteString(s.Label.Render("ownship") + s.Ownship.Render(fr.Applied.A1.String()) + "\n")
	if fr.Override {
		b.WriteString(s.Label.Render("  nominal") + s.Muted.Render(fr.Nominal.String()) + "\n")
	}
	b.WriteString(s.Label.Render("intruder") + s.Intruder.Render(fr.Applied.A2.String()) + "\n")
	b.WriteString(s.Row("overrides", fmt.Sprintf("%d", m.overrides)) + "\n\n")

	if len(m.sepHist) > 1 {
		chart := asciigraph.Plot(m.sepHist, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("separation"))
		b.WriteString(s.Graph.Render(chart) + "\n")
	}
	b.WriteString(s.Separator(34) + "\n")
	b.WriteString(s.Muted.Render("q: quit"))

	return lipgloss.JoinHorizontal(lipgloss.Top, m.draw(), s.Panel.Render(b.String()))
}
