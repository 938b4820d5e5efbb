package signal

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// TrafficFeed is the single source of truth for per-lane vehicle counts. The
// real lane holds whatever the vision pipeline pushed last; the simulated
// lanes are redrawn from a uniform distribution whenever the refresh interval
// has elapsed. If the pipeline goes quiet the real count simply freezes at
// its last value, which is fine — the cycle keeps running on stale data.
//
// TrafficFeed is not safe for concurrent use on its own; the Engine
// serialises every access.
type TrafficFeed struct {
	counts      map[Lane]int
	dist        distuv.Uniform
	interval    time.Duration
	maxVehicles int
	lastRefresh time.Time
}

// NewTrafficFeed creates a feed with all counts at zero. src seeds the
// simulated draw; a nil src uses the process-global random source.
func NewTrafficFeed(cfg Config, src rand.Source) *TrafficFeed {
	counts := make(map[Lane]int, len(cfg.CycleOrder))
	for _, lane := range cfg.CycleOrder {
		counts[lane] = 0
	}
	return &TrafficFeed{
		counts: counts,
		// Max is exclusive in Uniform, so +1 makes the integer draw cover
		// [0, MaxSimulatedVehicles] inclusive.
		dist:        distuv.Uniform{Min: 0, Max: float64(cfg.MaxSimulatedVehicles) + 1, Src: src},
		interval:    cfg.SimRefreshInterval,
		maxVehicles: cfg.MaxSimulatedVehicles,
	}
}

// SetRealCount records the latest vision-pipeline count for the real lane.
// Last write wins. Negative counts are detector noise and clamp to zero.
func (f *TrafficFeed) SetRealCount(n int) {
	if n < 0 {
		n = 0
	}
	f.counts[RealLane] = n
}

// RefreshSimulated redraws the simulated lanes if the refresh interval has
// elapsed since the last regeneration, and reports whether it did. Calling it
// more often than the interval is a no-op, so any path may refresh freely.
func (f *TrafficFeed) RefreshSimulated(now time.Time) bool {
	if now.Sub(f.lastRefresh) < f.interval {
		return false
	}
	for lane := range f.counts {
		if lane.IsReal() {
			continue
		}
		n := int(f.dist.Rand())
		if n > f.maxVehicles {
			n = f.maxVehicles
		}
		f.counts[lane] = n
	}
	f.lastRefresh = now
	return true
}

// LastRefresh returns when the simulated lanes were last regenerated. The
// zero time means never, which forces the first RefreshSimulated to run.
func (f *TrafficFeed) LastRefresh() time.Time {
	return f.lastRefresh
}

// Count returns the current count for a lane. Unknown lanes read as zero.
func (f *TrafficFeed) Count(lane Lane) int {
	n := f.counts[lane]
	if n < 0 {
		return 0
	}
	return n
}

// Snapshot returns a copy of the current per-lane counts.
func (f *TrafficFeed) Snapshot() map[Lane]int {
	out := make(map[Lane]int, len(f.counts))
	for lane, n := range f.counts {
		out[lane] = n
	}
	return out
}
