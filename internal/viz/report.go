package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/fwcbf/internal/dynamo"
	"github.com/san-kum/fwcbf/internal/experiment"
)

// SummaryTable renders the ensemble counts of res.
func SummaryTable(res *experiment.Result, s Styles) string {
	sum := res.Summary
	var b strings.Builder
	b.WriteString(s.Header.Render("RESULT") + "\n")
	b.WriteString(s.Row("episodes", fmt.Sprintf("%d", sum.Episodes)) + "\n")

	coll := s.Safe
	if sum.Collisions > 0 {
		coll = s.Alert
	}
	b.WriteString(s.Label.Render("collisions") + coll.Render(fmt.Sprintf("%d", sum.Collisions)) + "\n")
	b.WriteString(s.Row("goals", fmt.Sprintf("%d", sum.Goals)) + "\n")
	b.WriteString(s.Row("timeouts", fmt.Sprintf("%d", sum.Timeouts)) + "\n")
	b.WriteString(s.Row("overrides", fmt.Sprintf("%d", sum.Overrides)) + "\n")
	b.WriteString(s.Row("min separation", fmt.Sprintf("%.2f m", sum.MinSeparation)) + "\n")
	b.WriteString(s.Row("wall", res.Wall.Round(time.Millisecond).String()))
	return s.Panel.Render(b.String())
}

// EpisodeTable renders one line per episode.
func EpisodeTable(episodes []*experiment.Episode, s Styles) string {
	var b strings.Builder
	b.WriteString(s.Muted.Render(fmt.Sprintf("%4s  %-16s %8s %9s %10s", "ep", "cause", "t", "overrides", "min sep")) + "\n")
	for _, ep := range episodes {
		style := s.Value
		if ep.Stats.DoneCollision {
			style = s.Alert
		}
		b.WriteString(style.Render(fmt.Sprintf("%4d  %-16s %8.1f %9d %10.2f",
			ep.Index, ep.Cause, ep.T, ep.Overrides, ep.Metrics["min_separation"])) + "\n")
	}
	return b.String()
}

// EpisodePlot charts separation and, when a filter ran, the barrier value
// over the recorded steps of ep.
func EpisodePlot(ep *experiment.Episode, width, height int) string {
	if len(ep.Steps) < 2 {
		return ""
	}
	sep := make([]float64, len(ep.Steps))
	h := make([]float64, len(ep.Steps))
	filtered := false
	for i, st := range ep.Steps {
		sep[i] = st.State.Separation()
		h[i] = st.H
		filtered = filtered || st.H != 0
	}

	series := [][]float64{sep}
	caption := fmt.Sprintf("episode %d: separation", ep.Index)
	colors := []asciigraph.AnsiColor{asciigraph.Green}
	if filtered {
		series = append(series, h)
		caption += " (green), h (yellow)"
		colors = append(colors, asciigraph.Yellow)
	}
	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(colors...))
}

// TrackMap draws both ground tracks of ep with the goals and the final
// positions.
func TrackMap(ep *experiment.Episode, goal1, goal2 dynamo.Point, width, height int, s Styles) string {
	c := NewCanvas(width, height)
	pts := []dynamo.Point{goal1, goal2, ep.Final.X1.P, ep.Final.X2.P}
	for _, st := range ep.Steps {
		pts = append(pts, st.State.X1.P, st.State.X2.P)
	}
	center, radius := bounds(pts)
	v := NewViewport(c, center, radius*1.1)

	for i := 1; i < len(ep.Steps); i++ {
		v.Line(ep.Steps[i-1].State.X1.P, ep.Steps[i].State.X1.P)
		v.Line(ep.Steps[i-1].State.X2.P, ep.Steps[i].State.X2.P)
	}
	v.Circle(goal1, radius/30)
	v.Circle(goal2, radius/30)
	v.Aircraft(ep.Final.X1, radius/15)
	v.Aircraft(ep.Final.X2, radius/15)

	legend := s.Ownship.Render("ownship") + s.Muted.Render(" / ") + s.Intruder.Render("intruder") +
		s.Muted.Render(fmt.Sprintf("  span %.0f m", 2*radius))
	return lipgloss.JoinVertical(lipgloss.Left, s.Graph.Render(c.String()), legend)
}

func bounds(pts []dynamo.Point) (dynamo.Point, float64) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	center := dynamo.Point{X: (minX + maxX) / 2, Y: (minY + maxY) / 2}
	radius := math.Max(maxX-minX, maxY-minY) / 2
	if radius < 1 {
		radius = 1
	}
	return center, radius
}

// Report is the full text report of a result: summary, episode table and
// plots of the first episode.
func Report(res *experiment.Result, s Styles) string {
	parts := []string{SummaryTable(res, s), EpisodeTable(res.Episodes, s)}
	if len(res.Episodes) > 0 {
		ep := res.Episodes[0]
		if plot := EpisodePlot(ep, 60, 10); plot != "" {
			parts = append(parts, plot)
		}
		parts = append(parts, TrackMap(ep, ep.Goal1, ep.Goal2, 40, 16, s))
	}
	return strings.Join(parts, "\n\n") + "\n"
}
