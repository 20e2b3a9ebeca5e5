package viz

import (
	"math"
	"strings"

	"github.com/san-kum/fwcbf/internal/dynamo"
)

// Braille cells hold 2x4 dots:
//
//	1 4
//	2 5
//	3 6
//	7 8
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

// Canvas is a Braille dot grid of Width x Height cells, so 2*Width by
// 4*Height addressable dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set turns on the dot at (x, y). Dots off the canvas are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&rune(pixelMap[y%4][x%2]) != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Viewport maps the horizontal plane onto a canvas with north up. The
// scale is uniform so circles stay round.
type Viewport struct {
	canvas *Canvas
	cx, cy float64
	scale  float64
}

// NewViewport centers the square world region of half-width radius on
// center.
func NewViewport(c *Canvas, center dynamo.Point, radius float64) *Viewport {
	w, h := float64(c.Width*2), float64(c.Height*4)
	return &Viewport{
		canvas: c,
		cx:     center.X,
		cy:     center.Y,
		scale:  math.Min(w, h) / (2 * radius),
	}
}

// Dot returns the canvas dot for world point p.
func (v *Viewport) Dot(p dynamo.Point) (int, int) {
	w, h := float64(v.canvas.Width*2), float64(v.canvas.Height*4)
	x := w/2 + (p.X-v.cx)*v.scale
	y := h/2 - (p.Y-v.cy)*v.scale
	return int(math.Round(x)), int(math.Round(y))
}

func (v *Viewport) Plot(p dynamo.Point) {
	v.canvas.Set(v.Dot(p))
}

func (v *Viewport) Line(a, b dynamo.Point) {
	x0, y0 := v.Dot(a)
	x1, y1 := v.Dot(b)
	v.canvas.DrawLine(x0, y0, x1, y1)
}

// Circle outlines a world circle, such as the protected zone around an
// aircraft.
func (v *Viewport) Circle(c dynamo.Point, r float64) {
	n := max(12, int(2*math.Pi*r*v.scale))
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		v.Plot(dynamo.Point{X: c.X + r*math.Cos(a), Y: c.Y + r*math.Sin(a)})
	}
}

// Aircraft draws a filled marker at s with a heading tick of length tick
// world units.
func (v *Viewport) Aircraft(s dynamo.SingleState, tick float64) {
	x, y := v.Dot(s.P)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			v.canvas.Set(x+dx, y+dy)
		}
	}
	v.Line(s.P, dynamo.Point{X: s.P.X + tick*math.Cos(s.Th), Y: s.P.Y + tick*math.Sin(s.Th)})
}
