package quadtree

import (
	"errors"
	"fmt"
	"sync"
)

// MaxDepthLimit caps construction depth; node count grows as 4^depth.
const MaxDepthLimit = 10

// ErrInvalidConfig is returned by New for unusable construction parameters.
var ErrInvalidConfig = errors.New("quadtree: invalid config")

// Bounds represents a rectangular area in 2D space.
// Containment is half-open: min edges inclusive, max edges exclusive.
type Bounds struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

func (b Bounds) contains(x, y float64) bool {
	return x >= b.MinX && x < b.MaxX && y >= b.MinY && y < b.MaxY
}

// intersects reports whether b overlaps the closed square [minX,maxX]x[minY,maxY]
// (separating axis theorem)
func (b Bounds) intersects(minX, minY, maxX, maxY float64) bool {
	return !(maxX < b.MinX || minX >= b.MaxX || maxY < b.MinY || minY >= b.MaxY)
}

const noNode = -1

type node struct {
	bounds   Bounds
	parent   int
	children [4]int // top-left, top-right, bottom-left, bottom-right
	members  map[int]struct{}
}

func (n *node) leaf() bool { return n.children[0] == noNode }

func (n *node) has(i int) bool {
	_, ok := n.members[i]
	return ok
}

// Quadtree is a statically shaped region quadtree over caller-owned
// coordinate slices. Only membership changes after construction.
//
// Mutating methods must not run concurrently with each other or with Query.
type Quadtree struct {
	nodes    []node
	xs, ys   []float64
	maxDepth int
}

// New builds the full tree covering [x, x+width) x [y, y+height) down to
// maxDepth. xs and ys are read live on every mutation and are never copied.
func New(x, y, width, height float64, xs, ys []float64, maxDepth int) (*Quadtree, error) {
	switch {
	case width <= 0 || height <= 0:
		return nil, fmt.Errorf("%w: non-positive size %vx%v", ErrInvalidConfig, width, height)
	case maxDepth < 1:
		return nil, fmt.Errorf("%w: maxDepth %d < 1", ErrInvalidConfig, maxDepth)
	case maxDepth > MaxDepthLimit:
		return nil, fmt.Errorf("%w: maxDepth %d > %d", ErrInvalidConfig, maxDepth, MaxDepthLimit)
	case len(xs) != len(ys):
		return nil, fmt.Errorf("%w: coordinate slices differ in length (%d != %d)", ErrInvalidConfig, len(xs), len(ys))
	}

	total := 0
	for d, level := 0, 1; d <= maxDepth; d, level = d+1, level*4 {
		total += level
	}

	qt := &Quadtree{
		nodes:    make([]node, 0, total),
		xs:       xs,
		ys:       ys,
		maxDepth: maxDepth,
	}
	qt.build(Bounds{MinX: x, MinY: y, MaxX: x + width, MaxY: y + height}, noNode, 0)
	return qt, nil
}

func (qt *Quadtree) build(b Bounds, parent, depth int) int {
	idx := len(qt.nodes)
	qt.nodes = append(qt.nodes, node{
		bounds:   b,
		parent:   parent,
		children: [4]int{noNode, noNode, noNode, noNode},
		members:  make(map[int]struct{}),
	})
	if depth == qt.maxDepth {
		return idx
	}

	midX := b.MinX + (b.MaxX-b.MinX)/2
	midY := b.MinY + (b.MaxY-b.MinY)/2
	quads := [4]Bounds{
		{MinX: b.MinX, MinY: b.MinY, MaxX: midX, MaxY: midY},
		{MinX: midX, MinY: b.MinY, MaxX: b.MaxX, MaxY: midY},
		{MinX: b.MinX, MinY: midY, MaxX: midX, MaxY: b.MaxY},
		{MinX: midX, MinY: midY, MaxX: b.MaxX, MaxY: b.MaxY},
	}
	for q, qb := range quads {
		child := qt.build(qb, idx, depth+1)
		qt.nodes[idx].children[q] = child
	}
	return idx
}

// Bounds returns the region covered by the root.
func (qt *Quadtree) Bounds() Bounds { return qt.nodes[0].bounds }

// NodeCount returns the number of nodes in the arena.
func (qt *Quadtree) NodeCount() int { return len(qt.nodes) }

// Len returns the number of entities currently recorded.
func (qt *Quadtree) Len() int { return len(qt.nodes[0].members) }

// IsInside check if a point is inside the quadtree's bounds
func (qt *Quadtree) IsInside(x, y float64) bool {
	return qt.nodes[0].bounds.contains(x, y)
}

func (qt *Quadtree) valid(i int) bool {
	return i >= 0 && i < len(qt.xs)
}

func (qt *Quadtree) inside(n, i int) bool {
	return qt.nodes[n].bounds.contains(qt.xs[i], qt.ys[i])
}

// Insert records entity i along the path from the root to the leaf
// containing its current coordinates. It returns false if i is not a valid
// index or lies outside the tree.
func (qt *Quadtree) Insert(i int) bool {
	if !qt.valid(i) || !qt.inside(0, i) {
		return false
	}
	qt.insert(0, i)
	return true
}

func (qt *Quadtree) insert(n, i int) {
	for n != noNode {
		nd := &qt.nodes[n]
		nd.members[i] = struct{}{}
		next := noNode
		if !nd.leaf() {
			for _, c := range nd.children {
				if qt.inside(c, i) {
					next = c
					break
				}
			}
		}
		n = next
	}
}

// Remove drops entity i from every node recording it.
func (qt *Quadtree) Remove(i int) {
	qt.remove(0, i)
}

func (qt *Quadtree) remove(n, i int) {
	nd := &qt.nodes[n]
	if !nd.has(i) {
		return
	}
	delete(nd.members, i)
	if nd.leaf() {
		return
	}
	for _, c := range nd.children {
		if len(qt.nodes[c].members) > 0 {
			qt.remove(c, i)
		}
	}
}

// Update brings the membership of entity i in line with its current
// coordinates, touching only the nodes on its old and new paths.
func (qt *Quadtree) Update(i int) {
	if !qt.valid(i) {
		return
	}
	qt.update(0, i)
}

func (qt *Quadtree) update(n, i int) {
	nd := &qt.nodes[n]
	in := qt.inside(n, i)
	if !nd.has(i) {
		if in {
			qt.insert(n, i)
		}
		return
	}
	if !in {
		qt.remove(n, i)
		return
	}
	if nd.leaf() {
		return
	}
	for _, c := range nd.children {
		if qt.nodes[c].has(i) || qt.inside(c, i) {
			qt.update(c, i)
		}
	}
}

// Contains reports whether entity i is recorded in the tree.
func (qt *Quadtree) Contains(i int) bool {
	return qt.nodes[0].has(i)
}

// Leaf returns the bounds of the leaf recording entity i.
func (qt *Quadtree) Leaf(i int) (Bounds, bool) {
	n := 0
	if !qt.nodes[n].has(i) {
		return Bounds{}, false
	}
	for !qt.nodes[n].leaf() {
		next := noNode
		for _, c := range qt.nodes[n].children {
			if qt.nodes[c].has(i) {
				next = c
				break
			}
		}
		if next == noNode {
			return Bounds{}, false
		}
		n = next
	}
	return qt.nodes[n].bounds, true
}

// Query appends to results every entity held by a leaf that intersects the
// square of half-size radius centred on (x, y). Results are candidates; the
// caller filters by exact distance.
func (qt *Quadtree) Query(x, y, radius float64, results *[]int) {
	qt.query(0, x-radius, y-radius, x+radius, y+radius, results)
}

func (qt *Quadtree) query(n int, minX, minY, maxX, maxY float64, results *[]int) {
	nd := &qt.nodes[n]
	if len(nd.members) == 0 || !nd.bounds.intersects(minX, minY, maxX, maxY) {
		return
	}
	if nd.leaf() {
		for i := range nd.members {
			*results = append(*results, i)
		}
		return
	}
	for _, c := range nd.children {
		qt.query(c, minX, minY, maxX, maxY, results)
	}
}

var resultsPool = sync.Pool{
	New: func() interface{} {
		slice := make([]int, 0, 64)
		return &slice
	},
}

// QueryResults returns the candidates of Query in a freshly allocated slice
func (qt *Quadtree) QueryResults(x, y, radius float64) []int {
	// Get a pre-allocated slice from the pool
	resultsPtr := resultsPool.Get().(*[]int)
	results := (*resultsPtr)[:0]

	qt.Query(x, y, radius, &results)

	returnSlice := make([]int, len(results))
	copy(returnSlice, results)

	*resultsPtr = results
	resultsPool.Put(resultsPtr)

	return returnSlice
}
