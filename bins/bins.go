// Package bins implements a uniform grid spatial index rebuilt from scratch
// with a counting sort on every Fill.
package bins

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidConfig is returned by New for unusable grid parameters.
	ErrInvalidConfig = errors.New("bins: invalid config")
	// ErrShortInput is returned by Fill when the coordinate slices hold fewer
	// entries than the entity count given to New.
	ErrShortInput = errors.New("bins: coordinate slice shorter than entity count")
)

// Bins is a flat bucket-sorted grid of entity indices.
//
// Query and QueryWrap only read the structure and may run concurrently with
// each other. Fill must not overlap any other call, and query callbacks must
// not call Fill.
type Bins struct {
	widthDivisions  int
	heightDivisions int
	toBinX, toBinY  float64
	count           int

	size   []int
	offset []int
	cursor []int
	bins   []int
}

// New creates a grid covering [0,width) x [0,height) with square cells of
// cellSize for count entities.
func New(width, height, cellSize float64, count int) (*Bins, error) {
	switch {
	case !(cellSize > 0):
		return nil, fmt.Errorf("%w: cell size %v", ErrInvalidConfig, cellSize)
	case !(width > 0) || !(height > 0):
		return nil, fmt.Errorf("%w: domain %vx%v", ErrInvalidConfig, width, height)
	case count < 0:
		return nil, fmt.Errorf("%w: entity count %d", ErrInvalidConfig, count)
	}

	wd := int(math.Ceil(width / cellSize))
	hd := int(math.Ceil(height / cellSize))
	cells := wd * hd
	return &Bins{
		widthDivisions:  wd,
		heightDivisions: hd,
		toBinX:          1 / cellSize,
		toBinY:          1 / cellSize,
		count:           count,
		size:            make([]int, cells),
		offset:          make([]int, cells),
		cursor:          make([]int, cells),
		bins:            make([]int, count),
	}, nil
}

// Dims returns the number of cell columns and rows.
func (b *Bins) Dims() (int, int) { return b.widthDivisions, b.heightDivisions }

// Count returns the number of entities indexed by each Fill.
func (b *Bins) Count() int { return b.count }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Cell returns the flat cell index for a position, clamped to the grid edge.
func (b *Bins) Cell(x, y float64) int {
	cx := clampInt(int(math.Floor(x*b.toBinX)), 0, b.widthDivisions-1)
	cy := clampInt(int(math.Floor(y*b.toBinY)), 0, b.heightDivisions-1)
	return cy*b.widthDivisions + cx
}

// CellEntities returns a view of the entities sorted into cell c at the last Fill.
// The slice aliases internal storage and is valid until the next Fill.
func (b *Bins) CellEntities(c int) []int {
	if c < 0 || c >= len(b.size) {
		return nil
	}
	return b.bins[b.offset[c] : b.offset[c]+b.size[c]]
}

func (b *Bins) clear() {
	for i := range b.size {
		b.size[i] = 0
		b.cursor[i] = 0
	}
}

func (b *Bins) countCells(xs, ys []float64) {
	for i := 0; i < b.count; i++ {
		b.size[b.Cell(xs[i], ys[i])]++
	}
}

func (b *Bins) prefixSum() {
	sum := 0
	for c, n := range b.size {
		b.offset[c] = sum
		sum += n
	}
}

// Fill rebuilds the grid from the first Count entries of xs and ys.
func (b *Bins) Fill(xs, ys []float64) error {
	if len(xs) < b.count || len(ys) < b.count {
		return fmt.Errorf("%w: have %d/%d, need %d", ErrShortInput, len(xs), len(ys), b.count)
	}
	b.clear()
	b.countCells(xs, ys)
	b.prefixSum()
	for i := 0; i < b.count; i++ {
		c := b.Cell(xs[i], ys[i])
		b.bins[b.offset[c]+b.cursor[c]] = i
		b.cursor[c]++
	}
	return nil
}

// span returns the unclamped inclusive cell range covering [lo, hi].
func span(lo, hi, toBin float64) (int, int) {
	return int(math.Floor(lo * toBin)), int(math.Floor(hi * toBin))
}

// Query calls fn for every entity in the cells overlapping the square of
// half-size r centred on (x, y). Cells beyond the grid edge are skipped.
func (b *Bins) Query(x, y, r float64, fn func(i int)) {
	minCX, maxCX := span(x-r, x+r, b.toBinX)
	minCY, maxCY := span(y-r, y+r, b.toBinY)
	if maxCX < 0 || maxCY < 0 || minCX >= b.widthDivisions || minCY >= b.heightDivisions {
		return
	}
	minCX = clampInt(minCX, 0, b.widthDivisions-1)
	maxCX = clampInt(maxCX, 0, b.widthDivisions-1)
	minCY = clampInt(minCY, 0, b.heightDivisions-1)
	maxCY = clampInt(maxCY, 0, b.heightDivisions-1)

	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			for _, i := range b.CellEntities(cy*b.widthDivisions + cx) {
				fn(i)
			}
		}
	}
}

// QueryBuf appends the results of Query to buf and returns the extended slice
func (b *Bins) QueryBuf(x, y, r float64, buf []int) []int {
	b.Query(x, y, r, func(i int) {
		buf = append(buf, i)
	})
	return buf
}

func wrap(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

// QueryWrap is Query on a torus: cell coordinates past an edge continue
// from the opposite edge. Each cell is visited at most once.
func (b *Bins) QueryWrap(x, y, r float64, fn func(i int)) {
	minCX, maxCX := span(x-r, x+r, b.toBinX)
	minCY, maxCY := span(y-r, y+r, b.toBinY)
	if maxCX-minCX >= b.widthDivisions {
		maxCX = minCX + b.widthDivisions - 1
	}
	if maxCY-minCY >= b.heightDivisions {
		maxCY = minCY + b.heightDivisions - 1
	}

	for cy := minCY; cy <= maxCY; cy++ {
		row := wrap(cy, b.heightDivisions) * b.widthDivisions
		for cx := minCX; cx <= maxCX; cx++ {
			for _, i := range b.CellEntities(row + wrap(cx, b.widthDivisions)) {
				fn(i)
			}
		}
	}
}
