// Package export renders episodes as standalone SVG images.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/fwcbf/internal/dynamo"
	"github.com/san-kum/fwcbf/internal/experiment"
	"github.com/san-kum/fwcbf/internal/viz"
)

const (
	background    = "#0a0a0a"
	ownshipColor  = "#00ccff"
	intruderColor = "#ff00ff"
	overrideColor = "#ff4444"
	goalColor     = "#88ff88"
)

// CanvasToSVG converts a Braille canvas to SVG format
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}

	width := float64(canvas.Width) * scale * 2
	height := float64(canvas.Height) * scale * 4

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
<g fill="%s">
`, width, height, width, height, background, goalColor)

	dotRadius := scale * 0.4
	for y := 0; y < canvas.Height*4; y++ {
		for x := 0; x < canvas.Width*2; x++ {
			if canvas.IsSet(x, y) {
				fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
					float64(x)*scale+scale/2, float64(y)*scale+scale/2, dotRadius)
			}
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

// frame maps world coordinates into a width x height image with 10%
// padding, north up, at a uniform scale.
type frame struct {
	minX, minY float64
	scale      float64
	height     float64
}

func newFrame(pts []dynamo.Point, width, height int) frame {
	minX, maxX := pts[0].X, pts[0].X
	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}

	rangeX := math.Max(maxX-minX, 1)
	rangeY := math.Max(maxY-minY, 1)
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	return frame{
		minX:   minX,
		minY:   minY,
		scale:  math.Min(float64(width)/rangeX, float64(height)/rangeY),
		height: float64(height),
	}
}

func (f frame) xy(p dynamo.Point) (float64, float64) {
	return (p.X - f.minX) * f.scale, f.height - (p.Y-f.minY)*f.scale
}

func (f frame) path(sb *strings.Builder, pts []dynamo.Point, color string) {
	if len(pts) < 2 {
		return
	}
	fmt.Fprintf(sb, `<path fill="none" stroke="%s" stroke-width="1.5" d="M`, color)
	for i, p := range pts {
		x, y := f.xy(p)
		if i == 0 {
			fmt.Fprintf(sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(sb, " L%.1f,%.1f", x, y)
		}
	}
	sb.WriteString("\"/>\n")
}

// EpisodeSVG draws both ground tracks of ep, the goals, and a mark at every
// ownship position where the safety filter overrode the nominal action.
func EpisodeSVG(ep *experiment.Episode, goal1, goal2 dynamo.Point, width, height int) string {
	if len(ep.Steps) == 0 {
		return ""
	}

	track1 := make([]dynamo.Point, 0, len(ep.Steps)+1)
	track2 := make([]dynamo.Point, 0, len(ep.Steps)+1)
	for _, st := range ep.Steps {
		track1 = append(track1, st.State.X1.P)
		track2 = append(track2, st.State.X2.P)
	}
	track1 = append(track1, ep.Final.X1.P)
	track2 = append(track2, ep.Final.X2.P)

	all := append(append([]dynamo.Point{goal1, goal2}, track1...), track2...)
	f := newFrame(all, width, height)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background)

	f.path(&sb, track1, ownshipColor)
	f.path(&sb, track2, intruderColor)

	for _, st := range ep.Steps {
		if st.Overridden {
			x, y := f.xy(st.State.X1.P)
			fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"2\" fill=\"%s\"/>\n", x, y, overrideColor)
		}
	}
	for _, g := range []dynamo.Point{goal1, goal2} {
		x, y := f.xy(g)
		fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"5\" fill=\"none\" stroke=\"%s\"/>\n", x, y, goalColor)
	}
	fmt.Fprintf(&sb, "<text x=\"8\" y=\"16\" fill=\"%s\" font-family=\"monospace\" font-size=\"12\">episode %d: %s at t=%.1fs, %d overrides</text>\n",
		goalColor, ep.Index, ep.Cause, ep.T, ep.Overrides)

	sb.WriteString("</svg>")
	return sb.String()
}
