package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"fireflies/astar"
)

const (
	// World is a torus of these dimensions
	defaultWorldWidth  = 1000.0
	defaultWorldHeight = 1000.0

	// Swarm parameters
	defaultFireflies      = 2000
	defaultNeighborRadius = 40.0
	defaultCellSize       = 40.0 // one cell per neighbor radius keeps QueryWrap at 3x3 cells
	defaultTreeDepth      = 5
	defaultMaxSpeed       = 30.0 // world units per second
	defaultCoupling       = 0.08 // phase nudge per flashing neighbor

	// Path finding grid
	defaultPathCols        = 100
	defaultPathRows        = 100
	defaultObstacleDensity = 0.25

	// Loop settings
	defaultTickInterval      = 33 * time.Millisecond
	defaultBroadcastInterval = 100 * time.Millisecond
	defaultStatsInterval     = 5 * time.Second

	defaultAddr = ":8080"
)

// Config holds everything the server needs to build its simulation.
type Config struct {
	Addr string

	WorldWidth, WorldHeight float64
	Fireflies               int
	NeighborRadius          float64
	CellSize                float64
	TreeDepth               int
	MaxSpeed                float64
	Coupling                float64

	PathCols, PathRows int
	ObstacleDensity    float64
	MaxIterations      int

	TickInterval      time.Duration
	BroadcastInterval time.Duration
	StatsInterval     time.Duration

	Seed int64
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		Addr:              defaultAddr,
		WorldWidth:        defaultWorldWidth,
		WorldHeight:       defaultWorldHeight,
		Fireflies:         defaultFireflies,
		NeighborRadius:    defaultNeighborRadius,
		CellSize:          defaultCellSize,
		TreeDepth:         defaultTreeDepth,
		MaxSpeed:          defaultMaxSpeed,
		Coupling:          defaultCoupling,
		PathCols:          defaultPathCols,
		PathRows:          defaultPathRows,
		ObstacleDensity:   defaultObstacleDensity,
		MaxIterations:     astar.DefaultMaxIterations,
		TickInterval:      defaultTickInterval,
		BroadcastInterval: defaultBroadcastInterval,
		StatsInterval:     defaultStatsInterval,
	}
}

// ParseFlags fills a Config from command line arguments. FIREFLIES_ADDR
// overrides the default listen address; an explicit -addr wins over both.
func ParseFlags(args []string) (Config, error) {
	cfg := DefaultConfig()
	if addr := os.Getenv("FIREFLIES_ADDR"); addr != "" {
		cfg.Addr = addr
	}

	fs := flag.NewFlagSet("fireflies", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.Float64Var(&cfg.WorldWidth, "width", cfg.WorldWidth, "world width")
	fs.Float64Var(&cfg.WorldHeight, "height", cfg.WorldHeight, "world height")
	fs.IntVar(&cfg.Fireflies, "fireflies", cfg.Fireflies, "number of fireflies")
	fs.Float64Var(&cfg.NeighborRadius, "radius", cfg.NeighborRadius, "neighbor radius")
	fs.Float64Var(&cfg.CellSize, "cell", cfg.CellSize, "bin cell size")
	fs.IntVar(&cfg.TreeDepth, "depth", cfg.TreeDepth, "quadtree depth")
	fs.Float64Var(&cfg.MaxSpeed, "speed", cfg.MaxSpeed, "max firefly speed")
	fs.Float64Var(&cfg.Coupling, "coupling", cfg.Coupling, "phase coupling strength")
	fs.IntVar(&cfg.PathCols, "path-cols", cfg.PathCols, "path grid columns")
	fs.IntVar(&cfg.PathRows, "path-rows", cfg.PathRows, "path grid rows")
	fs.Float64Var(&cfg.ObstacleDensity, "density", cfg.ObstacleDensity, "obstacle density [0,1)")
	fs.IntVar(&cfg.MaxIterations, "max-iterations", cfg.MaxIterations, "A* expansion cap (0 disables)")
	fs.DurationVar(&cfg.TickInterval, "tick", cfg.TickInterval, "simulation tick interval")
	fs.DurationVar(&cfg.BroadcastInterval, "broadcast", cfg.BroadcastInterval, "websocket broadcast interval")
	fs.DurationVar(&cfg.StatsInterval, "stats", cfg.StatsInterval, "stats log interval")
	fs.Int64Var(&cfg.Seed, "seed", 0, "random seed (0 uses the clock)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return cfg, cfg.Validate()
}

var errInvalidConfig = errors.New("invalid config")

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.WorldWidth <= 0 || c.WorldHeight <= 0:
		return fmt.Errorf("%w: world %vx%v", errInvalidConfig, c.WorldWidth, c.WorldHeight)
	case c.Fireflies < 0:
		return fmt.Errorf("%w: fireflies %d", errInvalidConfig, c.Fireflies)
	case c.NeighborRadius <= 0:
		return fmt.Errorf("%w: radius %v", errInvalidConfig, c.NeighborRadius)
	case c.CellSize <= 0:
		return fmt.Errorf("%w: cell size %v", errInvalidConfig, c.CellSize)
	case c.PathCols <= 0 || c.PathRows <= 0:
		return fmt.Errorf("%w: path grid %dx%d", errInvalidConfig, c.PathCols, c.PathRows)
	case c.ObstacleDensity < 0 || c.ObstacleDensity >= 1:
		return fmt.Errorf("%w: density %v", errInvalidConfig, c.ObstacleDensity)
	case c.TickInterval <= 0 || c.BroadcastInterval <= 0 || c.StatsInterval <= 0:
		return fmt.Errorf("%w: intervals must be positive", errInvalidConfig)
	}
	return nil
}
