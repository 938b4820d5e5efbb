package signal

import "math"

// Congestion tier names, as reported to API consumers.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// FuzzyTimer maps a vehicle count to a green-phase duration by blending three
// overlapping congestion tiers (Low, Medium, High) with triangular
// memberships, so two nearly-equal counts near a tier boundary do not produce
// a discontinuous jump in timing.
type FuzzyTimer struct {
	medCount  float64
	highCount float64
	short     float64
	medium    float64
	long      float64
	min       int
	max       int
}

// NewFuzzyTimer builds a timer from the configured breakpoints and rule
// durations.
func NewFuzzyTimer(cfg Config) *FuzzyTimer {
	return &FuzzyTimer{
		medCount:  float64(cfg.MedCount),
		highCount: float64(cfg.HighCount),
		short:     float64(cfg.ShortDuration),
		medium:    float64(cfg.MediumDuration),
		long:      float64(cfg.LongDuration),
		min:       cfg.MinDuration,
		max:       cfg.MaxDuration,
	}
}

// memberships returns the Low/Medium/High membership degrees for a count.
// Low is 1 at zero and falls to 0 at medCount; Medium peaks at medCount and
// falls to 0 at highCount; High saturates at 1 from highCount upward.
func (f *FuzzyTimer) memberships(count float64) (low, med, high float64) {
	if count < f.medCount {
		low = (f.medCount - count) / f.medCount
	}
	switch {
	case count <= f.medCount:
		med = count / f.medCount
	case count < f.highCount:
		med = (f.highCount - count) / (f.highCount - f.medCount)
	}
	switch {
	case count >= f.highCount:
		high = 1
	case count > f.medCount:
		high = (count - f.medCount) / (f.highCount - f.medCount)
	}
	return low, med, high
}

// GreenDuration returns the green-phase duration in seconds for a vehicle
// count: the membership-weighted average of the short/medium/long rule
// durations, rounded and clamped to [min, max]. Negative counts are treated
// as zero. The result is non-decreasing in count.
func (f *FuzzyTimer) GreenDuration(count int) int {
	if count < 0 {
		count = 0
	}
	low, med, high := f.memberships(float64(count))
	sum := low + med + high
	if sum == 0 {
		// Degenerate breakpoints; fall back to the Medium rule.
		med, sum = 1, 1
	}
	d := (low*f.short + med*f.medium + high*f.long) / sum
	secs := int(math.Round(d))
	if secs < f.min {
		secs = f.min
	}
	if secs > f.max {
		secs = f.max
	}
	return secs
}

// Level classifies a count into its dominant congestion tier. Ties resolve
// toward the busier tier.
func (f *FuzzyTimer) Level(count int) string {
	if count < 0 {
		count = 0
	}
	low, med, high := f.memberships(float64(count))
	switch {
	case high >= med && high >= low:
		return LevelHigh
	case med >= low:
		return LevelMedium
	default:
		return LevelLow
	}
}
