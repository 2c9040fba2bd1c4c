package main

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"fireflies/astar"
	"fireflies/bins"
	"fireflies/quadtree"
)

const (
	turnProbability = 0.05
	turnMaxAngle    = 0.4
	minFrequency    = 0.8 // flashes per second
	maxFrequency    = 1.2
)

// Swarm stores firefly state as parallel slices indexed by firefly ID.
type Swarm struct {
	X, Y    []float64
	Heading []float64
	Speed   []float64
	Freq    []float64
	Phase   []float64
	Flash   []bool
}

func newSwarm(n int, width, height, maxSpeed float64, r *rand.Rand) *Swarm {
	s := &Swarm{
		X:       make([]float64, n),
		Y:       make([]float64, n),
		Heading: make([]float64, n),
		Speed:   make([]float64, n),
		Freq:    make([]float64, n),
		Phase:   make([]float64, n),
		Flash:   make([]bool, n),
	}
	for i := 0; i < n; i++ {
		s.X[i] = r.Float64() * width
		s.Y[i] = r.Float64() * height
		s.Heading[i] = r.Float64() * 2 * math.Pi
		s.Speed[i] = maxSpeed * (0.25 + 0.75*r.Float64())
		s.Freq[i] = minFrequency + r.Float64()*(maxFrequency-minFrequency)
		s.Phase[i] = r.Float64()
	}
	return s
}

// Len returns the number of fireflies.
func (s *Swarm) Len() int { return len(s.X) }

// wrapCoord maps v into [0, size).
func wrapCoord(v, size float64) float64 {
	v = math.Mod(v, size)
	if v < 0 {
		v += size
	}
	if v >= size {
		v = 0
	}
	return v
}

// toroidalDistSq is the squared shortest distance on a size w x h torus.
func toroidalDistSq(x1, y1, x2, y2, w, h float64) float64 {
	dx := math.Abs(x2 - x1)
	dy := math.Abs(y2 - y1)
	if dx > w/2 {
		dx = w - dx
	}
	if dy > h/2 {
		dy = h - dy
	}
	return dx*dx + dy*dy
}

// SimulationStats tracks statistics about the simulation
type SimulationStats struct {
	Ticks            int           `json:"ticks" msgpack:"ticks"`
	Flashing         int           `json:"flashing" msgpack:"flashing"`
	AvgNeighbors     float64       `json:"avg_neighbors" msgpack:"avg_neighbors"`
	AvgStepTime      time.Duration `json:"avg_step_ns" msgpack:"avg_step_ns"`
	TotalQueries     int           `json:"total_queries" msgpack:"total_queries"`
	TotalFound       int           `json:"total_found" msgpack:"total_found"`
	AvgQueryTime     time.Duration `json:"avg_query_ns" msgpack:"avg_query_ns"`
	PathSearches     int           `json:"path_searches" msgpack:"path_searches"`
	PathFailures     int           `json:"path_failures" msgpack:"path_failures"`
	AvgPathExpansion float64       `json:"avg_path_expansion" msgpack:"avg_path_expansion"`
}

// Simulation owns a firefly swarm, the spatial indexes over it and an
// obstacle grid for path queries.
type Simulation struct {
	cfg   Config
	swarm *Swarm
	rand  *rand.Rand

	mu        sync.RWMutex // guards swarm, bins, tree, grid
	bins      *bins.Bins
	tree      *quadtree.Quadtree
	grid      *astar.Grid
	nextPhase []float64

	stats   SimulationStats
	statsMu sync.Mutex
}

// NewSimulation builds a swarm and its indexes from cfg.
func NewSimulation(cfg Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := rand.New(rand.NewSource(cfg.Seed))
	swarm := newSwarm(cfg.Fireflies, cfg.WorldWidth, cfg.WorldHeight, cfg.MaxSpeed, r)

	b, err := bins.New(cfg.WorldWidth, cfg.WorldHeight, cfg.CellSize, swarm.Len())
	if err != nil {
		return nil, fmt.Errorf("create bins: %w", err)
	}
	if err := b.Fill(swarm.X, swarm.Y); err != nil {
		return nil, fmt.Errorf("fill bins: %w", err)
	}

	tree, err := quadtree.New(0, 0, cfg.WorldWidth, cfg.WorldHeight, swarm.X, swarm.Y, cfg.TreeDepth)
	if err != nil {
		return nil, fmt.Errorf("create quadtree: %w", err)
	}
	for i := 0; i < swarm.Len(); i++ {
		tree.Insert(i)
	}

	grid, err := astar.NewGrid(cfg.PathCols, cfg.PathRows)
	if err != nil {
		return nil, fmt.Errorf("create path grid: %w", err)
	}
	grid.Scatter(cfg.ObstacleDensity, r, astar.Cell{}, astar.Cell{X: cfg.PathCols - 1, Y: cfg.PathRows - 1})

	return &Simulation{
		cfg:       cfg,
		swarm:     swarm,
		rand:      r,
		bins:      b,
		tree:      tree,
		grid:      grid,
		nextPhase: make([]float64, swarm.Len()),
	}, nil
}

// move advances firefly i by dt seconds on the torus.
func (s *Simulation) move(i int, dt float64) {
	sw := s.swarm
	if s.rand.Float64() < turnProbability {
		sw.Heading[i] += (s.rand.Float64()*2 - 1) * turnMaxAngle
	}
	sw.X[i] = wrapCoord(sw.X[i]+math.Cos(sw.Heading[i])*sw.Speed[i]*dt, s.cfg.WorldWidth)
	sw.Y[i] = wrapCoord(sw.Y[i]+math.Sin(sw.Heading[i])*sw.Speed[i]*dt, s.cfg.WorldHeight)
}

// Step advances the swarm by dt seconds: movement, index maintenance and
// pulse-coupled phase synchronisation.
func (s *Simulation) Step(dt float64) error {
	start := time.Now()

	s.mu.Lock()
	sw := s.swarm
	for i := 0; i < sw.Len(); i++ {
		s.move(i, dt)
		s.tree.Update(i)
	}
	if err := s.bins.Fill(sw.X, sw.Y); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("fill bins: %w", err)
	}

	radius := s.cfg.NeighborRadius
	radiusSq := radius * radius
	w, h := s.cfg.WorldWidth, s.cfg.WorldHeight
	neighbors, flashing := 0, 0
	for i := 0; i < sw.Len(); i++ {
		x, y := sw.X[i], sw.Y[i]
		nudges := 0
		s.bins.QueryWrap(x, y, radius, func(j int) {
			if j == i || toroidalDistSq(x, y, sw.X[j], sw.Y[j], w, h) > radiusSq {
				return
			}
			neighbors++
			if sw.Flash[j] {
				nudges++
			}
		})
		s.nextPhase[i] = sw.Phase[i] + dt*sw.Freq[i] + s.cfg.Coupling*float64(nudges)
	}
	for i, p := range s.nextPhase {
		sw.Flash[i] = p >= 1
		if sw.Flash[i] {
			p -= math.Floor(p)
			flashing++
		}
		sw.Phase[i] = p
	}
	n := sw.Len()
	s.mu.Unlock()

	elapsed := time.Since(start)
	s.statsMu.Lock()
	s.stats.Ticks++
	s.stats.Flashing = flashing
	if n > 0 {
		s.stats.AvgNeighbors = float64(neighbors) / float64(n)
	}
	s.stats.AvgStepTime = weightedAvg(s.stats.AvgStepTime, elapsed, s.stats.Ticks)
	s.statsMu.Unlock()
	return nil
}

// weightedAvg folds sample into avg; the first sample is taken as is.
func weightedAvg(avg, sample time.Duration, count int) time.Duration {
	if count <= 1 {
		return sample
	}
	const weight = 0.1 // Weight for new value
	return time.Duration(float64(avg)*(1-weight) + float64(sample)*weight)
}

// Nearby returns the fireflies within radius of (x, y), nearest first.
func (s *Simulation) Nearby(x, y, radius float64) []FireflyView {
	start := time.Now()

	s.mu.RLock()
	candidates := s.tree.QueryResults(x, y, radius)
	sw := s.swarm
	views := make([]FireflyView, 0, len(candidates))
	for _, i := range candidates {
		d := math.Hypot(sw.X[i]-x, sw.Y[i]-y)
		if d > radius {
			continue
		}
		views = append(views, FireflyView{
			ID:       i,
			X:        sw.X[i],
			Y:        sw.Y[i],
			Phase:    sw.Phase[i],
			Flashing: sw.Flash[i],
			Distance: d,
		})
	}
	s.mu.RUnlock()

	sort.Slice(views, func(a, b int) bool {
		if views[a].Distance != views[b].Distance {
			return views[a].Distance < views[b].Distance
		}
		return views[a].ID < views[b].ID
	})

	elapsed := time.Since(start)
	s.statsMu.Lock()
	s.stats.TotalQueries++
	s.stats.TotalFound += len(views)
	s.stats.AvgQueryTime = weightedAvg(s.stats.AvgQueryTime, elapsed, s.stats.TotalQueries)
	s.statsMu.Unlock()

	return views
}

// PathResult is the outcome of one search on the obstacle grid.
type PathResult struct {
	Path     []astar.Cell
	Expanded int
}

// Path searches the obstacle grid from start to goal with the configured cap.
func (s *Simulation) Path(start, goal astar.Cell) (PathResult, error) {
	s.mu.RLock()
	finder := astar.NewFinder(s.grid, astar.Config{MaxIterations: s.cfg.MaxIterations})
	path, err := finder.Find(start, goal)
	s.mu.RUnlock()

	res := PathResult{Path: path, Expanded: finder.Expanded()}
	s.statsMu.Lock()
	s.stats.PathSearches++
	if err != nil {
		s.stats.PathFailures++
	}
	s.stats.AvgPathExpansion += (float64(res.Expanded) - s.stats.AvgPathExpansion) / float64(s.stats.PathSearches)
	s.statsMu.Unlock()
	return res, err
}

// RegenerateObstacles rescatters the obstacle grid with the given density.
func (s *Simulation) RegenerateObstacles(density float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grid.Scatter(density, s.rand, astar.Cell{}, astar.Cell{X: s.cfg.PathCols - 1, Y: s.cfg.PathRows - 1})
}

// Stats returns a copy of the current statistics.
func (s *Simulation) Stats() SimulationStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// LogStats prints the current simulation statistics
func (s *Simulation) LogStats() {
	st := s.Stats()
	log.Printf("ticks=%d flashing=%d neighbors/firefly=%.2f step=%v queries=%d (%.2f found avg, %v) paths=%d failed=%d",
		st.Ticks, st.Flashing, st.AvgNeighbors, st.AvgStepTime, st.TotalQueries,
		avgFound(st), st.AvgQueryTime, st.PathSearches, st.PathFailures)
}

func avgFound(st SimulationStats) float64 {
	if st.TotalQueries == 0 {
		return 0
	}
	return float64(st.TotalFound) / float64(st.TotalQueries)
}
