package signal

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crossway-systems/signalctl/internal/timeutil"
)

func newTestEngine(t *testing.T) (*Engine, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	return NewEngine(DefaultConfig(), clock, rand.NewPCG(1, 1)), clock
}

func TestEngineInitialSnapshot(t *testing.T) {
	e, _ := newTestEngine(t)
	snap := e.Snapshot()

	assert.Equal(t, LaneNorth, snap.CurrentGreen)
	assert.Equal(t, 15, snap.GreenRemaining)
	assert.False(t, snap.EmergencyMode)
	assert.Len(t, snap.Lanes, 4)
	assert.True(t, snap.Lanes[LaneNorth].IsReal)
	assert.False(t, snap.Lanes[LaneEast].IsReal)
	assert.Equal(t, StateGreen, snap.Lanes[LaneNorth].State)

	greens := 0
	for _, ls := range snap.Lanes {
		if ls.State == StateGreen {
			greens++
		}
	}
	assert.Equal(t, 1, greens, "exactly one lane green")
}

func TestEngineTick(t *testing.T) {
	e, clock := newTestEngine(t)

	clock.Advance(time.Second)
	e.Tick()

	snap := e.Snapshot()
	assert.Equal(t, 14, snap.GreenRemaining)
	assert.Equal(t, LaneNorth, snap.CurrentGreen)
}

func TestEngineSetRealCountVisibleInSnapshot(t *testing.T) {
	e, _ := newTestEngine(t)

	e.SetRealCount(18)

	snap := e.Snapshot()
	assert.Equal(t, 18, snap.Lanes[LaneNorth].VehicleCount)
	assert.Equal(t, LevelHigh, snap.Lanes[LaneNorth].TrafficLevel)
}

func TestEngineEmergencyFlow(t *testing.T) {
	e, clock := newTestEngine(t)

	require.NoError(t, e.Trigger(LaneEast))
	snap := e.Snapshot()
	assert.True(t, snap.EmergencyMode)
	assert.Equal(t, LaneEast, snap.EmergencyLane)
	assert.Equal(t, StateGreen, snap.Lanes[LaneEast].State)
	require.NotNil(t, snap.LastEmergency)
	assert.Equal(t, LaneEast, snap.LastEmergency.Lane)
	assert.Nil(t, snap.LastEmergency.EndedAt, "open episode has no end timestamp")

	// ticks are swallowed while the override is active
	clock.Advance(time.Second)
	e.Tick()
	assert.Equal(t, LaneEast, e.Snapshot().CurrentGreen)

	e.Deactivate()
	snap = e.Snapshot()
	assert.False(t, snap.EmergencyMode)
	assert.Equal(t, LaneSouth, snap.CurrentGreen)
	require.NotNil(t, snap.LastEmergency)
	require.NotNil(t, snap.LastEmergency.EndedAt)
}

func TestEngineTriggerInvalidLane(t *testing.T) {
	e, _ := newTestEngine(t)
	before := e.Snapshot()

	err := e.Trigger(Lane("sideways"))
	require.ErrorIs(t, err, ErrInvalidLane)

	after := e.Snapshot()
	assert.Equal(t, before.CurrentGreen, after.CurrentGreen)
	assert.False(t, after.EmergencyMode)
	assert.Nil(t, after.LastEmergency)
}

func TestEngineSnapshotIsolation(t *testing.T) {
	e, _ := newTestEngine(t)

	snap := e.Snapshot()
	snap.Lanes[LaneNorth] = LaneSnapshot{State: StateRed}

	assert.Equal(t, StateGreen, e.Snapshot().Lanes[LaneNorth].State,
		"mutating a returned snapshot must not affect the engine")
}

// The read path regenerates the simulated feed when it goes stale, so
// dashboard pollers see fresh counts even between phase changes.
func TestEngineSnapshotRefreshesStaleFeed(t *testing.T) {
	e, clock := newTestEngine(t)
	first := e.Snapshot()

	clock.Advance(11 * time.Second)
	second := e.Snapshot()

	assert.True(t, second.LastSimRefresh.After(first.LastSimRefresh),
		"stale snapshot read should refresh the simulated feed")
}

func TestEngineSnapshotNoRefreshWithinInterval(t *testing.T) {
	e, clock := newTestEngine(t)
	first := e.Snapshot()

	clock.Advance(3 * time.Second)
	second := e.Snapshot()

	assert.Equal(t, first.LastSimRefresh, second.LastSimRefresh)
}

func TestEngineTickN(t *testing.T) {
	e, clock := newTestEngine(t)

	clock.Advance(time.Second)
	e.TickN(15)

	snap := e.Snapshot()
	assert.Equal(t, LaneEast, snap.CurrentGreen)
}

// Concurrent pollers, pipeline pushes and ticks must never observe a
// half-applied transition. Run with -race.
func TestEngineConcurrentAccess(t *testing.T) {
	e, _ := newTestEngine(t)

	var wg sync.WaitGroup
	stopped := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			e.Tick()
		}
		close(stopped)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stopped:
				return
			default:
				e.SetRealCount(i % 30)
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stopped:
				return
			default:
				snap := e.Snapshot()
				greens := 0
				for _, ls := range snap.Lanes {
					if ls.State == StateGreen {
						greens++
					}
				}
				if greens != 1 {
					t.Errorf("observed %d green lanes, want 1", greens)
					return
				}
			}
		}
	}()

	wg.Wait()
}
