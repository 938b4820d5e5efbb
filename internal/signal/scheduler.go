package signal

import "time"

// IntersectionState is the canonical signal state for the junction. Outside a
// transition exactly one lane is green; during an emergency override the
// forced lane is green and the rest are red.
type IntersectionState struct {
	LaneStates     map[Lane]LaneState
	CurrentGreen   Lane
	GreenRemaining int
	EmergencyMode  bool
	EmergencyLane  Lane // empty unless EmergencyMode
}

// clone returns a deep copy so callers can hold the state without aliasing
// the scheduler's map.
func (s IntersectionState) clone() IntersectionState {
	states := make(map[Lane]LaneState, len(s.LaneStates))
	for lane, state := range s.LaneStates {
		states[lane] = state
	}
	s.LaneStates = states
	return s
}

// CycleScheduler advances the round-robin green phase. It holds no timer of
// its own: an external driver calls Tick once per simulated second, which
// keeps the scheduler synchronous and trivially testable. Tick never blocks
// and never fails.
type CycleScheduler struct {
	order []Lane
	feed  *TrafficFeed
	timer *FuzzyTimer
	state IntersectionState
}

// NewCycleScheduler starts the cycle on the first lane of the configured
// order with a fuzzy-computed startup duration.
func NewCycleScheduler(cfg Config, feed *TrafficFeed, timer *FuzzyTimer, now time.Time) *CycleScheduler {
	s := &CycleScheduler{
		order: append([]Lane(nil), cfg.CycleOrder...),
		feed:  feed,
		timer: timer,
	}
	s.advance(s.order[0], now)
	return s
}

// next returns the lane after l in the cycle order, wrapping around. A lane
// missing from the order restarts the cycle.
func (s *CycleScheduler) next(l Lane) Lane {
	for i, lane := range s.order {
		if lane == l {
			return s.order[(i+1)%len(s.order)]
		}
	}
	return s.order[0]
}

// setGreen switches right-of-way to lane for the given duration. The switch
// replaces the whole lane-state map, so concurrent readers holding an old
// snapshot never see a half-applied transition.
func (s *CycleScheduler) setGreen(lane Lane, duration int) {
	states := make(map[Lane]LaneState, len(s.order))
	for _, l := range s.order {
		states[l] = StateRed
	}
	states[lane] = StateGreen
	s.state.LaneStates = states
	s.state.CurrentGreen = lane
	s.state.GreenRemaining = duration
}

// advance gives lane a fresh green phase sized from its latest count. The
// simulated feed is refreshed first so the count is at most one refresh
// interval old.
func (s *CycleScheduler) advance(lane Lane, now time.Time) {
	s.feed.RefreshSimulated(now)
	s.setGreen(lane, s.timer.GreenDuration(s.feed.Count(lane)))
}

// Tick burns one second of the current green phase. When the phase expires
// the next lane in the cycle order gets right-of-way with a fuzzy-computed
// duration.
func (s *CycleScheduler) Tick(now time.Time) {
	if s.state.GreenRemaining > 0 {
		s.state.GreenRemaining--
	}
	if s.state.GreenRemaining > 0 {
		return
	}
	s.advance(s.next(s.state.CurrentGreen), now)
}

// TickN applies n ticks at the same timestamp. Used by the manual demo
// endpoint to fast-forward the cycle.
func (s *CycleScheduler) TickN(n int, now time.Time) {
	for i := 0; i < n; i++ {
		s.Tick(now)
	}
}

// AdvanceFrom resumes normal cycling at the lane after the given one. The
// override controller uses this when an emergency clears: the pre-override
// phase is stale by then, so the cycle restarts with fresh data instead.
func (s *CycleScheduler) AdvanceFrom(lane Lane, now time.Time) {
	s.advance(s.next(lane), now)
}

// forceEmergency freezes the cycle with lane green and everything else red.
func (s *CycleScheduler) forceEmergency(lane Lane) {
	s.setGreen(lane, 0)
	s.state.EmergencyMode = true
	s.state.EmergencyLane = lane
}

// clearEmergency drops the override flags; the caller is expected to
// AdvanceFrom immediately after.
func (s *CycleScheduler) clearEmergency() {
	s.state.EmergencyMode = false
	s.state.EmergencyLane = ""
}

// State returns a deep copy of the current intersection state.
func (s *CycleScheduler) State() IntersectionState {
	return s.state.clone()
}
