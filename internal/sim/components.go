// Package sim is the demo domain for the schedsim binary: a handful of
// components, a YAML scenario loader, and the systems wired into the example
// schedule.
package sim

// Position is a 2D location.
type Position struct {
	X float64
	Y float64
}

// Velocity is movement per tick.
type Velocity struct {
	X float64
	Y float64
}

// Health tracks hit points.
type Health struct {
	HP  int
	Max int
}

// Poison deals Damage per tick for Ticks ticks, then expires.
type Poison struct {
	Damage int
	Ticks  int
}

// TickStats is an external resource aggregated once per tick.
type TickStats struct {
	Tick     int
	Entities int
	TotalHP  int
	Spawned  int
}
