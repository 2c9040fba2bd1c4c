// Package astar finds shortest paths on a 4-connected obstacle grid.
//
// The frontier is a binary heap ordered by fScore, with ties broken by the
// order in which cells first entered the frontier.
package astar

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
)

// DefaultMaxIterations bounds the number of expansions per search.
const DefaultMaxIterations = 5000

var (
	ErrOutOfBounds    = errors.New("astar: cell out of bounds")
	ErrNoPath         = errors.New("astar: no path")
	ErrIterationLimit = errors.New("astar: iteration limit reached")
)

// Config tunes a Finder. MaxIterations <= 0 disables the expansion cap.
type Config struct {
	MaxIterations int
}

// DefaultConfig returns the configuration used by FindPath.
func DefaultConfig() Config {
	return Config{MaxIterations: DefaultMaxIterations}
}

// up, down, left, right
var neighborOffsets = [...]Cell{
	{X: 0, Y: -1},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
	{X: 1, Y: 0},
}

// Heuristic is the Manhattan distance between a and b, or +Inf when either
// cell is blocked.
func Heuristic(g *Grid, a, b Cell) float64 {
	if g.Blocked(a) || g.Blocked(b) {
		return math.Inf(1)
	}
	return math.Abs(float64(a.X-b.X)) + math.Abs(float64(a.Y-b.Y))
}

type openNode struct {
	cell  int
	f     float64
	seq   uint64
	index int
}

type openQueue []*openNode

func (pq openQueue) Len() int { return len(pq) }

func (pq openQueue) Less(i, j int) bool {
	if pq[i].f != pq[j].f {
		return pq[i].f < pq[j].f
	}
	return pq[i].seq < pq[j].seq
}

func (pq openQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *openQueue) Push(x any) {
	n := len(*pq)
	item := x.(*openNode)
	item.index = n
	*pq = append(*pq, item)
}

func (pq *openQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[:n-1]
	return item
}

// Finder runs searches over one grid. It keeps no state between searches
// other than the expansion count of the last one, and is not safe for
// concurrent use.
type Finder struct {
	grid     *Grid
	cfg      Config
	expanded int
}

func NewFinder(g *Grid, cfg Config) *Finder {
	return &Finder{grid: g, cfg: cfg}
}

// Expanded returns the number of cells expanded by the most recent Find.
func (f *Finder) Expanded() int { return f.expanded }

// Find returns the cells of a shortest path from start to goal, both
// included. Failures are ErrOutOfBounds, ErrNoPath or ErrIterationLimit.
func (f *Finder) Find(start, goal Cell) ([]Cell, error) {
	g := f.grid
	f.expanded = 0
	if !g.InBounds(start) {
		return nil, fmt.Errorf("%w: start %v", ErrOutOfBounds, start)
	}
	if !g.InBounds(goal) {
		return nil, fmt.Errorf("%w: goal %v", ErrOutOfBounds, goal)
	}

	startIdx := g.index(start)
	goalIdx := g.index(goal)

	var seq uint64
	open := &openQueue{}
	inOpen := make(map[int]*openNode)
	cameFrom := make(map[int]int)
	gScore := map[int]float64{startIdx: 0}

	push := func(cell int, fScore float64) {
		n := &openNode{cell: cell, f: fScore, seq: seq}
		seq++
		heap.Push(open, n)
		inOpen[cell] = n
	}
	push(startIdx, Heuristic(g, start, goal))

	for open.Len() > 0 {
		if f.cfg.MaxIterations > 0 && f.expanded >= f.cfg.MaxIterations {
			return nil, fmt.Errorf("%w: %d expansions", ErrIterationLimit, f.expanded)
		}
		current := heap.Pop(open).(*openNode)
		delete(inOpen, current.cell)
		f.expanded++

		if current.cell == goalIdx {
			return reconstructPath(g, cameFrom, current.cell, startIdx), nil
		}

		cx, cy := current.cell%g.width, current.cell/g.width
		for _, d := range neighborOffsets {
			next := Cell{X: cx + d.X, Y: cy + d.Y}
			if !g.InBounds(next) {
				continue
			}
			idx := g.index(next)
			tentative := gScore[current.cell] + 1
			if prev, ok := gScore[idx]; ok && tentative >= prev {
				continue
			}
			cameFrom[idx] = current.cell
			gScore[idx] = tentative
			fScore := tentative + Heuristic(g, next, goal)
			if n, ok := inOpen[idx]; ok {
				n.f = fScore
				heap.Fix(open, n.index)
				continue
			}
			if !math.IsInf(fScore, 1) {
				push(idx, fScore)
			}
		}
	}
	return nil, ErrNoPath
}

func reconstructPath(g *Grid, cameFrom map[int]int, end, start int) []Cell {
	path := []Cell{{X: end % g.width, Y: end / g.width}}
	for cur := end; cur != start; {
		cur = cameFrom[cur]
		path = append(path, Cell{X: cur % g.width, Y: cur / g.width})
	}
	for i := 0; i < len(path)/2; i++ {
		j := len(path) - 1 - i
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// FindPath runs a single search with DefaultConfig.
func FindPath(g *Grid, start, goal Cell) ([]Cell, error) {
	return NewFinder(g, DefaultConfig()).Find(start, goal)
}
