package signal

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "signal")

// LaneSnapshot is the per-lane view published to API consumers.
type LaneSnapshot struct {
	State        LaneState `json:"state"`
	VehicleCount int       `json:"vehicle_count"`
	IsReal       bool      `json:"is_real"`
	TrafficLevel string    `json:"traffic_level"`
}

// EpisodeView is the audit-facing record of an emergency override.
type EpisodeView struct {
	ID        string     `json:"id"`
	Lane      Lane       `json:"lane"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Snapshot is a consistent read of the whole junction. Snapshots are
// immutable once published; every mutation swaps in a new one.
type Snapshot struct {
	Lanes          map[Lane]LaneSnapshot `json:"lanes"`
	CurrentGreen   Lane                  `json:"current_green"`
	GreenRemaining int                   `json:"green_remaining"`
	EmergencyMode  bool                  `json:"emergency_mode"`
	EmergencyLane  Lane                  `json:"emergency_lane,omitempty"`
	LastEmergency  *EpisodeView          `json:"last_emergency,omitempty"`
	LastSimRefresh time.Time             `json:"last_sim_refresh"`
}

// clone copies the snapshot deeply enough that callers can hold or mutate it
// without touching the published copy.
func (s Snapshot) clone() Snapshot {
	lanes := make(map[Lane]LaneSnapshot, len(s.Lanes))
	for lane, ls := range s.Lanes {
		lanes[lane] = ls
	}
	s.Lanes = lanes
	if s.LastEmergency != nil {
		ep := *s.LastEmergency
		if ep.EndedAt != nil {
			t := *ep.EndedAt
			ep.EndedAt = &t
		}
		s.LastEmergency = &ep
	}
	return s
}

// Engine owns one junction. All mutations — ticks, count pushes, emergency
// triggers — serialise through a single lock; each is O(1) and never touches
// I/O, so hold times are negligible. Reads load an atomically swapped
// snapshot and never contend with the write path, which matters under
// dashboard poll rates.
//
// Engine is a constructible instance, not a process global: run one per
// junction.
type Engine struct {
	cfg   Config
	clock Clock

	mu       sync.Mutex
	feed     *TrafficFeed
	timer    *FuzzyTimer
	sched    *CycleScheduler
	override *OverrideController

	snap atomic.Pointer[Snapshot]
}

// Clock is the subset of timeutil.Clock the engine needs. Declared locally so
// the package accepts any compatible clock.
type Clock interface {
	Now() time.Time
}

// NewEngine wires a junction from its parts. src seeds the simulated feed; a
// nil src draws from the process-global source. The junction starts with the
// first lane of the cycle order green.
func NewEngine(cfg Config, clock Clock, src rand.Source) *Engine {
	e := &Engine{cfg: cfg, clock: clock}
	now := clock.Now()
	e.feed = NewTrafficFeed(cfg, src)
	e.timer = NewFuzzyTimer(cfg)
	e.sched = NewCycleScheduler(cfg, e.feed, e.timer, now)
	e.override = NewOverrideController(e.sched, clock)
	e.publishLocked()
	return e
}

// Tick advances the junction by one simulated second. Called at 1 Hz by the
// external driver; a no-op while an emergency override is active.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.override.Tick(e.clock.Now())
	e.publishLocked()
}

// TickN applies n ticks in one critical section, for the manual demo path.
func (e *Engine) TickN(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()
	for i := 0; i < n; i++ {
		e.override.Tick(now)
	}
	e.publishLocked()
}

// SetRealCount records the latest vision-pipeline count for the real lane.
func (e *Engine) SetRealCount(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.feed.SetRealCount(n)
	e.publishLocked()
}

// Trigger activates the emergency override for lane. Returns ErrInvalidLane
// (and changes nothing) for an unrecognised lane.
func (e *Engine) Trigger(lane Lane) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.override.Trigger(lane); err != nil {
		return err
	}
	log.WithField("lane", lane).Warn("emergency override active")
	e.publishLocked()
	return nil
}

// Deactivate clears the emergency override and resumes the normal cycle.
// No-op when no override is active.
func (e *Engine) Deactivate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.override.Active() {
		log.Info("emergency override cleared, resuming cycle")
	}
	e.override.Deactivate()
	e.publishLocked()
}

// GreenDuration exposes the fuzzy computation for read-only consumers.
func (e *Engine) GreenDuration(count int) int {
	return e.timer.GreenDuration(count)
}

// TrafficLevel exposes the congestion classification for read-only consumers.
func (e *Engine) TrafficLevel(count int) string {
	return e.timer.Level(count)
}

// LastEpisode returns the most recent emergency episode, which may still be
// open.
func (e *Engine) LastEpisode() (Episode, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.override.LastEpisode()
}

// Snapshot returns the latest published state. If the simulated feed is due
// for a refresh it regenerates first, so dashboard readers see reasonably
// fresh counts even between phase changes; between refreshes this is a pure
// atomic load.
func (e *Engine) Snapshot() Snapshot {
	now := e.clock.Now()
	if snap := e.snap.Load(); now.Sub(snap.LastSimRefresh) < e.cfg.SimRefreshInterval {
		return snap.clone()
	}
	e.mu.Lock()
	if e.feed.RefreshSimulated(now) {
		e.publishLocked()
	}
	e.mu.Unlock()
	return e.snap.Load().clone()
}

// publishLocked assembles and swaps in a new snapshot. Callers hold e.mu
// (NewEngine publishes before the engine escapes its constructor).
func (e *Engine) publishLocked() {
	st := e.sched.State()
	counts := e.feed.Snapshot()

	lanes := make(map[Lane]LaneSnapshot, len(st.LaneStates))
	for lane, state := range st.LaneStates {
		n := counts[lane]
		lanes[lane] = LaneSnapshot{
			State:        state,
			VehicleCount: n,
			IsReal:       lane.IsReal(),
			TrafficLevel: e.timer.Level(n),
		}
	}

	snap := &Snapshot{
		Lanes:          lanes,
		CurrentGreen:   st.CurrentGreen,
		GreenRemaining: st.GreenRemaining,
		EmergencyMode:  st.EmergencyMode,
		EmergencyLane:  st.EmergencyLane,
		LastSimRefresh: e.feed.LastRefresh(),
	}
	if ep, ok := e.override.LastEpisode(); ok {
		view := &EpisodeView{
			ID:        ep.ID.String(),
			Lane:      ep.Lane,
			StartedAt: ep.StartedAt,
		}
		if !ep.EndedAt.IsZero() {
			t := ep.EndedAt
			view.EndedAt = &t
		}
		snap.LastEmergency = view
	}
	e.snap.Store(snap)
}
