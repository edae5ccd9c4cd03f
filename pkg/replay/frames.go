package replay

import (
	"errors"
	"fmt"

	"github.com/gwillem/demoreplay/pkg/plan"
	"github.com/gwillem/demoreplay/pkg/resample"
)

// Frame is one control tick of playback.
type Frame struct {
	Step      int
	Time      float64 // recording timestep
	Left      []float64
	Right     []float64
	LeftGrip  float64
	RightGrip float64
}

// Frames samples p into one frame per control tick at hz. Speed scales
// playback relative to the recording rate. The last waypoint of every step is
// always emitted so each step ends exactly on its final waypoint.
func Frames(p *plan.Plan, hz int, speed float64) ([]Frame, error) {
	if p == nil || len(p.Steps) == 0 {
		return nil, errors.New("empty plan")
	}
	if hz <= 0 || p.Hz <= 0 {
		return nil, fmt.Errorf("invalid rate: playback %d Hz, recording %d Hz", hz, p.Hz)
	}
	if !(speed > 0) {
		return nil, fmt.Errorf("invalid speed %v", speed)
	}
	stride := float64(p.Hz) * speed / float64(hz)

	var frames []Frame
	for i, step := range p.Steps {
		if len(step.Times) == 0 {
			return nil, fmt.Errorf("step %d has no waypoints", i)
		}
		lgrip := p.Gripper.Angle(step.LeftGrip)
		rgrip := p.Gripper.Angle(step.RightGrip)

		ts := sampleTimes(step.Times[0], step.Times[len(step.Times)-1], stride)
		left := resample.Interp2D(ts, step.Times, step.Left)
		right := resample.Interp2D(ts, step.Times, step.Right)
		for j, t := range ts {
			frames = append(frames, Frame{
				Step:      i,
				Time:      t,
				Left:      left[j],
				Right:     right[j],
				LeftGrip:  lgrip,
				RightGrip: rgrip,
			})
		}
	}
	return frames, nil
}

func sampleTimes(start, end, stride float64) []float64 {
	var ts []float64
	for k := 0; ; k++ {
		t := start + float64(k)*stride
		if t >= end {
			break
		}
		ts = append(ts, t)
	}
	return append(ts, end)
}
