// Command pathview draws a random obstacle field in the terminal and the A*
// path across it.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/gdamore/tcell/v2"

	"fireflies/astar"
)

const (
	densityStep = 0.05
	maxDensity  = 0.6
)

var (
	styleFree    = tcell.StyleDefault
	styleBlocked = tcell.StyleDefault.Foreground(tcell.ColorGray)
	stylePath    = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleEnd     = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleStatus  = tcell.StyleDefault.Reverse(true)
)

type viewer struct {
	screen  tcell.Screen
	rand    *rand.Rand
	cfg     astar.Config
	density float64

	grid     *astar.Grid
	start    astar.Cell
	goal     astar.Cell
	path     []astar.Cell
	expanded int
	err      error
}

func newViewer(screen tcell.Screen, r *rand.Rand, cfg astar.Config, density float64) *viewer {
	v := &viewer{screen: screen, rand: r, cfg: cfg, density: density}
	v.resize()
	return v
}

// resize rebuilds the grid to fill the screen above the status line.
func (v *viewer) resize() {
	w, h := v.screen.Size()
	if h > 1 {
		h--
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	grid, err := astar.NewGrid(w, h)
	if err != nil {
		v.err = err
		return
	}
	v.grid = grid
	v.start = astar.Cell{}
	v.goal = astar.Cell{X: w - 1, Y: h - 1}
	v.regenerate()
}

func (v *viewer) regenerate() {
	v.grid.Scatter(v.density, v.rand, v.start, v.goal)
	v.solve()
}

func (v *viewer) solve() {
	f := astar.NewFinder(v.grid, v.cfg)
	v.path, v.err = f.Find(v.start, v.goal)
	v.expanded = f.Expanded()
}

func (v *viewer) moveGoal(dx, dy int) {
	next := astar.Cell{X: v.goal.X + dx, Y: v.goal.Y + dy}
	if !v.grid.InBounds(next) {
		return
	}
	v.goal = next
	v.grid.SetBlocked(next, false)
	v.solve()
}

// statusLine summarizes the last search.
func statusLine(pathLen, expanded int, density float64, err error) string {
	var result string
	switch {
	case err == nil:
		result = fmt.Sprintf("path %d cells", pathLen)
	case errors.Is(err, astar.ErrNoPath):
		result = "no path"
	case errors.Is(err, astar.ErrIterationLimit):
		result = "gave up: iteration limit"
	default:
		result = err.Error()
	}
	return fmt.Sprintf(" %s | expanded %d | density %.2f | r: reroll  +/-: density  arrows: goal  q: quit ",
		result, expanded, density)
}

func (v *viewer) draw() {
	v.screen.Clear()
	if v.grid != nil {
		for y := 0; y < v.grid.Height(); y++ {
			for x := 0; x < v.grid.Width(); x++ {
				if v.grid.Blocked(astar.Cell{X: x, Y: y}) {
					v.screen.SetContent(x, y, '█', nil, styleBlocked)
				} else {
					v.screen.SetContent(x, y, '·', nil, styleFree)
				}
			}
		}
		for _, c := range v.path {
			v.screen.SetContent(c.X, c.Y, '●', nil, stylePath)
		}
		v.screen.SetContent(v.start.X, v.start.Y, 'S', nil, styleEnd)
		v.screen.SetContent(v.goal.X, v.goal.Y, 'G', nil, styleEnd)
	}

	w, h := v.screen.Size()
	status := []rune(statusLine(len(v.path), v.expanded, v.density, v.err))
	for x := 0; x < w; x++ {
		ch := ' '
		if x < len(status) {
			ch = status[x]
		}
		v.screen.SetContent(x, h-1, ch, nil, styleStatus)
	}
	v.screen.Show()
}

// handle applies one event and reports whether the viewer should exit.
func (v *viewer) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyUp:
			v.moveGoal(0, -1)
		case tcell.KeyDown:
			v.moveGoal(0, 1)
		case tcell.KeyLeft:
			v.moveGoal(-1, 0)
		case tcell.KeyRight:
			v.moveGoal(1, 0)
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return true
			case 'r':
				v.regenerate()
			case '+', '=':
				v.density = min(v.density+densityStep, maxDensity)
				v.regenerate()
			case '-':
				v.density = max(v.density-densityStep, 0)
				v.regenerate()
			}
		}
	case *tcell.EventResize:
		v.screen.Sync()
		v.resize()
	}
	return false
}

func main() {
	density := flag.Float64("density", 0.3, "obstacle density [0,0.6]")
	maxIter := flag.Int("max-iterations", astar.DefaultMaxIterations, "A* expansion cap (0 disables)")
	seed := flag.Int64("seed", 0, "random seed (0 uses the clock)")
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatalf("screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		log.Fatalf("screen init: %v", err)
	}
	defer screen.Fini()

	v := newViewer(screen, rand.New(rand.NewSource(*seed)), astar.Config{MaxIterations: *maxIter},
		min(max(*density, 0), maxDensity))
	for {
		v.draw()
		ev := screen.PollEvent()
		if ev == nil || v.handle(ev) {
			return
		}
	}
}
