package main

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"fireflies/astar"
)

func newTestViewer(t *testing.T, density float64) *viewer {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen init: %v", err)
	}
	t.Cleanup(screen.Fini)
	screen.SetSize(30, 12)
	return newViewer(screen, rand.New(rand.NewSource(1)), astar.Config{}, density)
}

func TestViewerFillsScreenAboveStatus(t *testing.T) {
	v := newTestViewer(t, 0)
	if v.grid.Width() != 30 || v.grid.Height() != 11 {
		t.Fatalf("grid %dx%d, want 30x11", v.grid.Width(), v.grid.Height())
	}
	if v.err != nil {
		t.Fatalf("open grid should be solvable: %v", v.err)
	}
	if want := 29 + 10 + 1; len(v.path) != want {
		t.Errorf("path length %d, want %d", len(v.path), want)
	}
	v.draw()
}

func TestViewerKeys(t *testing.T) {
	v := newTestViewer(t, 0)

	v.handle(tcell.NewEventKey(tcell.KeyRune, '+', tcell.ModNone))
	if v.density != densityStep {
		t.Errorf("density %v after '+', want %v", v.density, densityStep)
	}
	v.handle(tcell.NewEventKey(tcell.KeyRune, '-', tcell.ModNone))
	if v.density != 0 {
		t.Errorf("density %v after '-', want 0", v.density)
	}

	goal := v.goal
	v.handle(tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone))
	if v.goal != (astar.Cell{X: goal.X - 1, Y: goal.Y}) {
		t.Errorf("goal %v after left, want one column left of %v", v.goal, goal)
	}
	v.handle(tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone))
	v.handle(tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone))
	if v.goal != goal {
		t.Errorf("goal moved off the grid: %v", v.goal)
	}

	if !v.handle(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)) {
		t.Error("q should quit")
	}
	if !v.handle(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) {
		t.Error("escape should quit")
	}
}

func TestStatusLine(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "path 7 cells"},
		{fmt.Errorf("wrapped: %w", astar.ErrNoPath), "no path"},
		{astar.ErrIterationLimit, "gave up: iteration limit"},
	}
	for _, tc := range cases {
		got := statusLine(7, 12, 0.3, tc.err)
		if !strings.Contains(got, tc.want) || !strings.Contains(got, "expanded 12") {
			t.Errorf("statusLine(%v) = %q, want it to mention %q", tc.err, got, tc.want)
		}
	}
}
