package signal

import (
	"time"

	"github.com/google/uuid"
)

// Episode records one emergency override: when it started, when it ended,
// and which lane was cleared. EndedAt stays zero while the override is
// active.
type Episode struct {
	ID        uuid.UUID
	Lane      Lane
	StartedAt time.Time
	EndedAt   time.Time
}

// OverrideController wraps the scheduler with emergency preemption. While an
// override is active ticks are swallowed and the junction stays frozen with
// the emergency lane green; deactivating resumes the normal cycle at the
// lane after the emergency lane rather than restoring the interrupted phase.
type OverrideController struct {
	clock Clock
	sched *CycleScheduler

	active      bool
	stateBefore IntersectionState
	episode     *Episode
}

// NewOverrideController wraps sched. The clock stamps episode boundaries.
func NewOverrideController(sched *CycleScheduler, clock Clock) *OverrideController {
	return &OverrideController{clock: clock, sched: sched}
}

// Tick forwards to the scheduler unless an override is active, in which case
// the frozen emergency state is left untouched.
func (c *OverrideController) Tick(now time.Time) {
	if c.active {
		return
	}
	c.sched.Tick(now)
}

// Trigger activates (or redirects) the emergency override for lane.
// Triggering the already-active lane is a no-op; triggering a different lane
// while active swaps the forced lane in place — last trigger wins, on the
// theory that the most recently detected emergency vehicle is the one still
// waiting. An unrecognised lane returns ErrInvalidLane with no state change.
func (c *OverrideController) Trigger(lane Lane) error {
	lane, err := ParseLane(string(lane))
	if err != nil {
		return err
	}
	if c.active {
		if c.episode.Lane == lane {
			return nil
		}
		c.sched.forceEmergency(lane)
		c.episode.Lane = lane
		return nil
	}
	c.active = true
	c.stateBefore = c.sched.State()
	c.sched.forceEmergency(lane)
	c.episode = &Episode{
		ID:        uuid.New(),
		Lane:      lane,
		StartedAt: c.clock.Now(),
	}
	return nil
}

// Deactivate ends the override and resumes normal cycling at the lane after
// the emergency lane with a freshly computed duration. No-op when no
// override is active.
func (c *OverrideController) Deactivate() {
	if !c.active {
		return
	}
	now := c.clock.Now()
	lane := c.episode.Lane
	c.episode.EndedAt = now
	c.active = false
	c.sched.clearEmergency()
	c.sched.AdvanceFrom(lane, now)
}

// Active reports whether an emergency override is in effect.
func (c *OverrideController) Active() bool {
	return c.active
}

// LastEpisode returns the most recent emergency episode, which may still be
// open (zero EndedAt). The second return is false before the first trigger.
func (c *OverrideController) LastEpisode() (Episode, bool) {
	if c.episode == nil {
		return Episode{}, false
	}
	return *c.episode, true
}

// StateBefore returns the intersection state captured when the current or
// most recent override began. Kept for diagnostics; the controller itself
// never replays it.
func (c *OverrideController) StateBefore() (IntersectionState, bool) {
	if c.episode == nil {
		return IntersectionState{}, false
	}
	return c.stateBefore.clone(), true
}
