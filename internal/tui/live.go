// Package tui renders simulations and tuning sessions in the terminal.
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/theSadeQ/dip-smc-pso/internal/dynamo"
)

const (
	width       = 70
	height      = 20
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// LiveRenderer draws the cart and both links as ASCII frames while a run
// is in progress. Plug its OnStep into the runner.
type LiveRenderer struct {
	frameRate int
	lastFrame time.Time
	canvas    [][]rune
	trail     []struct{ x, y int }
}

func NewLiveRenderer(frameRate int) *LiveRenderer {
	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = make([]rune, width)
	}
	return &LiveRenderer{
		frameRate: frameRate,
		canvas:    canvas,
		trail:     make([]struct{ x, y int }, 0, 50),
	}
}

func (r *LiveRenderer) OnStep(x dynamo.State, u dynamo.Control, t float64) {
	elapsed := time.Since(r.lastFrame)
	if elapsed < time.Second/time.Duration(r.frameRate) {
		return
	}
	r.lastFrame = time.Now()

	r.clear()
	r.draw(x)
	r.render(x, u, t)
}

func (r *LiveRenderer) clear() {
	for y := range r.canvas {
		for x := range r.canvas[y] {
			r.canvas[y][x] = ' '
		}
	}
}

func (r *LiveRenderer) set(x, y int, c rune) {
	if x >= 0 && x < width && y >= 0 && y < height {
		r.canvas[y][x] = c
	}
}

func (r *LiveRenderer) line(x1, y1, x2, y2 int, c rune) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx, sy := 1, 1
	if x1 > x2 {
		sx = -1
	}
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy
	for {
		r.set(x1, y1, c)
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

// draw renders the cart on its rail with both links above it. Angles are
// measured from upright, so theta=0 points straight up.
func (r *LiveRenderer) draw(x dynamo.State) {
	if len(x) < dynamo.StateDim {
		return
	}
	pos := x[dynamo.IdxCartPos]
	t1 := x[dynamo.IdxTheta1]
	t2 := x[dynamo.IdxTheta2]

	gy := height - 4
	cx := width/2 + int(pos*8)

	for i := 2; i < width-2; i++ {
		r.set(i, gy+1, '=')
	}
	for dx := -3; dx <= 3; dx++ {
		r.set(cx+dx, gy, '#')
	}

	l1, l2 := 7.0, 5.0
	b1x := cx - int(l1*math.Sin(t1))
	b1y := gy - 1 - int(l1*math.Cos(t1))
	b2x := b1x - int(l2*math.Sin(t2))
	b2y := b1y - int(l2*math.Cos(t2))

	r.trail = append(r.trail, struct{ x, y int }{b2x, b2y})
	if len(r.trail) > 50 {
		r.trail = r.trail[1:]
	}
	for _, pt := range r.trail {
		r.set(pt.x, pt.y, '.')
	}

	r.line(cx, gy-1, b1x, b1y, '|')
	r.set(b1x, b1y, 'o')
	r.line(b1x, b1y, b2x, b2y, '|')
	r.set(b2x, b2y, 'O')
}

func (r *LiveRenderer) render(x dynamo.State, u dynamo.Control, t float64) {
	var b strings.Builder
	b.WriteString(clearScreen)
	b.WriteString(fmt.Sprintf("  double pendulum  t=%.2fs  u=%+.2fN\n", t, u.Force()))
	b.WriteString("  " + strings.Repeat("-", width) + "\n")

	for _, row := range r.canvas {
		b.WriteString("  ")
		b.WriteString(string(row))
		b.WriteString("\n")
	}

	b.WriteString("  " + strings.Repeat("-", width) + "\n")
	b.WriteString(fmt.Sprintf("  x=%.2f xdot=%.2f th1=%.3f th2=%.3f\n",
		x[dynamo.IdxCartPos], x[dynamo.IdxCartVel], x[dynamo.IdxTheta1], x[dynamo.IdxTheta2]))

	fmt.Print(b.String())
}

func (r *LiveRenderer) Start() { fmt.Print(hideCursor) }
func (r *LiveRenderer) Stop()  { fmt.Print(showCursor) }

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
