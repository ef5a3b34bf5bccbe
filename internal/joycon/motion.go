package joycon

// wrapThreshold decides when a naive counter delta is treated as a wrap
// around the 16-bit boundary. The value is an empirical heuristic carried
// over from captured traffic, stricter than the 32768 midpoint an exact
// modular-distance formula would use. It assumes true per-report motion
// stays under ~15000 counts, which holds at realistic polling rates.
const wrapThreshold = 15000

// Integrator reconstructs unbounded 2D pointer motion from one side's
// wrapping 16-bit counters. It owns the raw counter baseline and the
// accumulated position; both live only while the side is connected and are
// recreated on every new connection via Reset.
type Integrator struct {
	primed bool
	lastX  uint16
	lastY  uint16
	accX   int64
	accY   int64
}

func NewIntegrator() *Integrator {
	return &Integrator{}
}

// Reset discards all state. The next Update establishes a fresh baseline
// and reports a zero delta, so the first report after a reconnect never
// produces a spurious jump relative to stale counters.
func (g *Integrator) Reset() {
	g.primed = false
	g.lastX = 0
	g.lastY = 0
	g.accX = 0
	g.accY = 0
}

// Update consumes the raw counter pair of one report and returns the
// wrap-corrected per-axis delta, after adding it to the accumulated
// position. The first call after a Reset only records the baseline.
func (g *Integrator) Update(rawX, rawY uint16) (dx, dy int32) {
	if !g.primed {
		g.primed = true
		g.lastX = rawX
		g.lastY = rawY
		return 0, 0
	}
	dx = wrapDelta(rawX, g.lastX)
	dy = wrapDelta(rawY, g.lastY)
	g.lastX = rawX
	g.lastY = rawY
	g.accX += int64(dx)
	g.accY += int64(dy)
	return dx, dy
}

// Position returns the running sum of corrected deltas since the last Reset.
func (g *Integrator) Position() (x, y int64) {
	return g.accX, g.accY
}

func wrapDelta(cur, prev uint16) int32 {
	d := int32(cur) - int32(prev)
	switch {
	case d > wrapThreshold:
		d -= 65536
	case d < -wrapThreshold:
		d += 65536
	}
	return d
}
