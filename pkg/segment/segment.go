// Package segment splits a recorded dual-arm trajectory into contiguous
// segments at every gripper open/close transition.
package segment

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gwillem/demoreplay/pkg/resample"
)

// ErrInvalidArgument reports mismatched or malformed inputs.
var ErrInvalidArgument = errors.New("segment: invalid argument")

// GripperState is the binarized state of a gripper.
type GripperState int

const (
	Closed GripperState = iota
	Open
)

func (s GripperState) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Default gripper constants, in gripper encoder angle units.
const (
	DefaultThreshold   = 0.04
	DefaultOpenAngle   = 0.08
	DefaultClosedAngle = 0
)

// Config holds the open/close threshold and the angles a binarized state
// maps back to.
type Config struct {
	Threshold   float64 `json:"threshold"`
	OpenAngle   float64 `json:"open_angle"`
	ClosedAngle float64 `json:"closed_angle"`
}

// DefaultConfig returns the stock gripper configuration.
func DefaultConfig() Config {
	return Config{
		Threshold:   DefaultThreshold,
		OpenAngle:   DefaultOpenAngle,
		ClosedAngle: DefaultClosedAngle,
	}
}

// Segment is a maximal timestep range [Start, End) during which neither
// gripper changes state. LeftArm and RightArm hold copies of the arm rows in
// that range.
type Segment struct {
	Start     int
	End       int
	LeftArm   resample.Signal
	RightArm  resample.Signal
	LeftGrip  GripperState
	RightGrip GripperState
}

// Len returns the number of timesteps in the segment.
func (s Segment) Len() int { return s.End - s.Start }

// Binarize maps a gripper angle to Open when it is at or above the threshold
// and to Closed otherwise. The comparison matches Transitions, so every
// timestep of a segment binarizes to the segment's state.
func (c Config) Binarize(angle float64) GripperState {
	if angle >= c.Threshold {
		return Open
	}
	return Closed
}

// Angle returns the fixed angle for a binarized state.
func (c Config) Angle(s GripperState) float64 {
	if s == Open {
		return c.OpenAngle
	}
	return c.ClosedAngle
}

// Transitions returns the indices i at which grip crosses threshold between
// timestep i and i+1, split by direction.
func Transitions(grip []float64, threshold float64) (openings, closings []int) {
	for i := 0; i+1 < len(grip); i++ {
		before, after := grip[i] >= threshold, grip[i+1] >= threshold
		switch {
		case !before && after:
			openings = append(openings, i)
		case before && !after:
			closings = append(closings, i)
		}
	}
	return openings, closings
}

// Split segments a trajectory with the default configuration.
func Split(larm, rarm resample.Signal, lgrip, rgrip []float64) ([]Segment, error) {
	return DefaultConfig().Split(larm, rarm, lgrip, rgrip)
}

// Split partitions [0, T) at every opening or closing of either gripper and
// returns the segments in chronological order. All four inputs must have the
// same length T >= 1.
func (c Config) Split(larm, rarm resample.Signal, lgrip, rgrip []float64) ([]Segment, error) {
	n := len(larm)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty trajectory", ErrInvalidArgument)
	}
	if len(rarm) != n || len(lgrip) != n || len(rgrip) != n {
		return nil, fmt.Errorf("%w: lengths larm=%d rarm=%d lgrip=%d rgrip=%d",
			ErrInvalidArgument, n, len(rarm), len(lgrip), len(rgrip))
	}
	if err := checkRows("larm", larm); err != nil {
		return nil, err
	}
	if err := checkRows("rarm", rarm); err != nil {
		return nil, err
	}

	bounds := c.boundaries(lgrip, rgrip)
	starts := append([]int{0}, bounds...)
	ends := append(bounds[:len(bounds):len(bounds)], n)

	segments := make([]Segment, len(starts))
	for i, start := range starts {
		end := ends[i]
		segments[i] = Segment{
			Start:     start,
			End:       end,
			LeftArm:   resample.Signal(larm[start:end]).Clone(),
			RightArm:  resample.Signal(rarm[start:end]).Clone(),
			LeftGrip:  c.Binarize(lgrip[start]),
			RightGrip: c.Binarize(rgrip[start]),
		}
	}
	return segments, nil
}

// boundaries returns the sorted, unique first indices after every transition.
func (c Config) boundaries(lgrip, rgrip []float64) []int {
	seen := make(map[int]struct{})
	for _, grip := range [][]float64{lgrip, rgrip} {
		openings, closings := Transitions(grip, c.Threshold)
		for _, i := range append(openings, closings...) {
			seen[i+1] = struct{}{}
		}
	}
	bounds := make([]int, 0, len(seen))
	for b := range seen {
		bounds = append(bounds, b)
	}
	sort.Ints(bounds)
	return bounds
}

func checkRows(name string, s resample.Signal) error {
	if len(s) == 0 {
		return nil
	}
	k := len(s[0])
	for i, row := range s {
		if len(row) != k {
			return fmt.Errorf("%w: %s row %d has %d joints, want %d", ErrInvalidArgument, name, i, len(row), k)
		}
	}
	return nil
}
