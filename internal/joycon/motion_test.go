package joycon

import "testing"

func TestWrapDelta(t *testing.T) {
	tests := []struct {
		name string
		cur  uint16
		prev uint16
		want int32
	}{
		{"zero", 100, 100, 0},
		{"forward", 1100, 100, 1000},
		{"backward", 100, 1100, -1000},
		{"threshold forward", 15000, 0, 15000},
		{"threshold backward", 0, 15000, -15000},
		{"wrap forward", 5, 65530, 11},
		{"wrap backward", 65530, 5, -11},
		{"wrap at zero", 0, 65535, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wrapDelta(tt.cur, tt.prev); got != tt.want {
				t.Errorf("wrapDelta(%d, %d) = %d, want %d", tt.cur, tt.prev, got, tt.want)
			}
		})
	}
}

func TestIntegratorBaseline(t *testing.T) {
	g := NewIntegrator()
	dx, dy := g.Update(40000, 20000)
	if dx != 0 || dy != 0 {
		t.Fatalf("first update produced delta (%d, %d)", dx, dy)
	}
	x, y := g.Position()
	if x != 0 || y != 0 {
		t.Fatalf("position after baseline = (%d, %d)", x, y)
	}
}

func TestIntegratorAccumulates(t *testing.T) {
	g := NewIntegrator()
	g.Update(65000, 100)

	// Crosses the X wrap boundary twice, the Y boundary once backwards.
	updates := [][2]uint16{
		{65500, 50},  // dx +500, dy -50
		{400, 65535}, // dx +436 (wraps), dy -51 (wraps)
		{900, 65000}, // dx +500, dy -535
	}
	var sumX, sumY int64
	for _, u := range updates {
		dx, dy := g.Update(u[0], u[1])
		sumX += int64(dx)
		sumY += int64(dy)
	}
	x, y := g.Position()
	if x != sumX || y != sumY {
		t.Fatalf("position (%d, %d) != sum of deltas (%d, %d)", x, y, sumX, sumY)
	}
	if x != 1436 || y != -636 {
		t.Fatalf("position (%d, %d), want (1436, -636)", x, y)
	}
}

func TestIntegratorReset(t *testing.T) {
	g := NewIntegrator()
	g.Update(10, 10)
	g.Update(500, 500)
	g.Reset()

	if x, y := g.Position(); x != 0 || y != 0 {
		t.Fatalf("position after reset = (%d, %d)", x, y)
	}
	// The counter baseline must come from the first post-reset report, not
	// from stale pre-reset values.
	if dx, dy := g.Update(30000, 30000); dx != 0 || dy != 0 {
		t.Fatalf("first update after reset produced delta (%d, %d)", dx, dy)
	}
	if dx, dy := g.Update(30010, 29990); dx != 10 || dy != -10 {
		t.Fatalf("second update after reset = (%d, %d), want (10, -10)", dx, dy)
	}
}
