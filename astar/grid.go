package astar

import (
	"errors"
	"fmt"
	"math/rand"
)

// ErrInvalidGrid is returned for grids with unusable dimensions or layout.
var ErrInvalidGrid = errors.New("astar: invalid grid")

// Cell is a grid coordinate.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Grid is a rectangular field of free and blocked cells.
type Grid struct {
	width, height int
	blocked       []bool
}

// NewGrid creates an obstacle-free grid.
func NewGrid(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidGrid, width, height)
	}
	return &Grid{
		width:   width,
		height:  height,
		blocked: make([]bool, width*height),
	}, nil
}

// ParseGrid builds a grid from rows of '#' (blocked) and '.' (free).
func ParseGrid(rows []string) (*Grid, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidGrid)
	}
	g, err := NewGrid(len(rows[0]), len(rows))
	if err != nil {
		return nil, err
	}
	for y, row := range rows {
		if len(row) != g.width {
			return nil, fmt.Errorf("%w: row %d has length %d, want %d", ErrInvalidGrid, y, len(row), g.width)
		}
		for x, ch := range []byte(row) {
			switch ch {
			case '#':
				g.blocked[g.index(Cell{x, y})] = true
			case '.':
			default:
				return nil, fmt.Errorf("%w: unexpected %q at %d,%d", ErrInvalidGrid, ch, x, y)
			}
		}
	}
	return g, nil
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

func (g *Grid) index(c Cell) int {
	return c.Y*g.width + c.X
}

// InBounds reports whether c lies on the grid.
func (g *Grid) InBounds(c Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.width && c.Y < g.height
}

// Blocked reports whether c is an obstacle. Cells off the grid count as blocked.
func (g *Grid) Blocked(c Cell) bool {
	if !g.InBounds(c) {
		return true
	}
	return g.blocked[g.index(c)]
}

// SetBlocked marks c as an obstacle or clears it. Off-grid cells are ignored.
func (g *Grid) SetBlocked(c Cell, blocked bool) {
	if g.InBounds(c) {
		g.blocked[g.index(c)] = blocked
	}
}

// Clear removes every obstacle.
func (g *Grid) Clear() {
	for i := range g.blocked {
		g.blocked[i] = false
	}
}

// Scatter blocks each cell independently with probability density, leaving
// the cells in keep free.
func (g *Grid) Scatter(density float64, r *rand.Rand, keep ...Cell) {
	for i := range g.blocked {
		g.blocked[i] = r.Float64() < density
	}
	for _, c := range keep {
		g.SetBlocked(c, false)
	}
}

// Free returns the number of unblocked cells.
func (g *Grid) Free() int {
	n := 0
	for _, b := range g.blocked {
		if !b {
			n++
		}
	}
	return n
}
