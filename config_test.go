package main

import (
	"errors"
	"testing"
	"time"
)

func TestParseFlagsDefaults(t *testing.T) {
	t.Setenv("FIREFLIES_ADDR", "")
	cfg, err := ParseFlags(nil)
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.Addr != defaultAddr || cfg.Fireflies != defaultFireflies || cfg.MaxIterations != 5000 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Seed == 0 {
		t.Error("expected a clock seed")
	}
}

func TestParseFlagsOverrides(t *testing.T) {
	t.Setenv("FIREFLIES_ADDR", ":9000")
	cfg, err := ParseFlags([]string{"-fireflies=10", "-tick=5ms", "-max-iterations=0", "-seed=3"})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Errorf("env addr not applied: %q", cfg.Addr)
	}
	if cfg.Fireflies != 10 || cfg.TickInterval != 5*time.Millisecond || cfg.MaxIterations != 0 || cfg.Seed != 3 {
		t.Errorf("flags not applied: %+v", cfg)
	}

	cfg, err = ParseFlags([]string{"-addr=:7000"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":7000" {
		t.Errorf("flag should win over env, got %q", cfg.Addr)
	}
}

func TestValidate(t *testing.T) {
	bad := []func(*Config){
		func(c *Config) { c.WorldWidth = 0 },
		func(c *Config) { c.Fireflies = -1 },
		func(c *Config) { c.NeighborRadius = 0 },
		func(c *Config) { c.CellSize = -1 },
		func(c *Config) { c.PathRows = 0 },
		func(c *Config) { c.ObstacleDensity = 1 },
		func(c *Config) { c.TickInterval = 0 },
	}
	for i, mutate := range bad {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, errInvalidConfig) {
			t.Errorf("case %d: expected errInvalidConfig, got %v", i, err)
		}
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}
