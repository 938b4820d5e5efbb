// Package signal implements the adaptive control engine for a four-way
// junction: a round-robin cycle whose green-phase durations are computed by
// fuzzy inference over per-lane vehicle counts, with emergency preemption.
//
// One approach (north) is fed real counts by an external vision pipeline; the
// other three run on a periodically regenerated simulated feed. All lane
// states are logical signals consumed by a display layer; nothing here talks
// to hardware.
package signal

import (
	"errors"
	"fmt"
	"strings"
)

// Lane identifies one approach of the junction.
type Lane string

const (
	LaneNorth Lane = "north"
	LaneSouth Lane = "south"
	LaneEast  Lane = "east"
	LaneWest  Lane = "west"
)

// RealLane is the approach observed by the camera. The remaining three
// approaches are not instrumented and run on simulated counts.
const RealLane = LaneNorth

// DefaultCycleOrder is the round-robin sequence of green phases used unless
// the configuration overrides it.
var DefaultCycleOrder = []Lane{LaneNorth, LaneEast, LaneSouth, LaneWest}

// ErrInvalidLane is returned when a caller names a lane the junction does not
// have. Matches with errors.Is.
var ErrInvalidLane = errors.New("invalid lane")

// ParseLane converts an external lane identifier (case-insensitive) into a
// Lane, or returns ErrInvalidLane.
func ParseLane(s string) (Lane, error) {
	switch l := Lane(strings.ToLower(s)); l {
	case LaneNorth, LaneSouth, LaneEast, LaneWest:
		return l, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLane, s)
	}
}

// IsReal reports whether the lane's counts come from the vision pipeline
// rather than the simulated feed.
func (l Lane) IsReal() bool {
	return l == RealLane
}

// LaneState is the logical colour shown for a lane.
type LaneState string

const (
	StateRed   LaneState = "red"
	StateGreen LaneState = "green"
)
