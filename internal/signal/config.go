package signal

import "time"

// Config carries the engine tunables. All values are fixed at startup; the
// engine never mutates them. Zero values are not usable — start from
// DefaultConfig and override fields as needed.
type Config struct {
	// CycleOrder is the round-robin sequence of green phases.
	CycleOrder []Lane

	// SimRefreshInterval is how often the simulated lanes regenerate.
	SimRefreshInterval time.Duration

	// MaxSimulatedVehicles bounds the simulated per-lane count: draws are
	// uniform over [0, MaxSimulatedVehicles].
	MaxSimulatedVehicles int

	// MedCount and HighCount are the fuzzy membership breakpoints: Low falls
	// to zero at MedCount, Medium peaks at MedCount and falls to zero at
	// HighCount, High saturates at HighCount.
	MedCount  int
	HighCount int

	// Green-phase durations in seconds. Short, Medium and Long are the rule
	// outputs blended by the fuzzy timer; Min and Max clamp the result.
	MinDuration    int
	ShortDuration  int
	MediumDuration int
	LongDuration   int
	MaxDuration    int
}

// DefaultConfig returns the standard tuning for the junction.
func DefaultConfig() Config {
	return Config{
		CycleOrder:           DefaultCycleOrder,
		SimRefreshInterval:   10 * time.Second,
		MaxSimulatedVehicles: 20,
		MedCount:             10,
		HighCount:            20,
		MinDuration:          10,
		ShortDuration:        15,
		MediumDuration:       30,
		LongDuration:         60,
		MaxDuration:          90,
	}
}
