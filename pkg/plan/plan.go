// Package plan turns a recorded demonstration into a replay plan: one step
// per gripper segment, each reduced to a small set of arm waypoints.
package plan

import (
	"context"
	"fmt"

	"github.com/gwillem/demoreplay/pkg/resample"
	"github.com/gwillem/demoreplay/pkg/segment"
	"github.com/gwillem/demoreplay/pkg/trajectory"
)

// Options configures Build.
type Options struct {
	Resample resample.Options
	Gripper  segment.Config

	// Kinematics, when set, retargets every step's waypoints through
	// forward and inverse kinematics before replay.
	Kinematics Kinematics
	Cost       JointCost
}

// DefaultOptions returns the stock replay settings: 0.025 tolerance and 0.1
// maximum change per waypoint on every joint.
func DefaultOptions() Options {
	return Options{
		Resample: resample.Options{
			Tol:       []float64{0.025},
			MaxChange: []float64{0.1},
			MinSteps:  resample.DefaultMinSteps,
		},
		Gripper: segment.DefaultConfig(),
	}
}

// Step is one gripper segment of a plan. Times are recording timesteps
// (fractional) of each waypoint, so Times[i]/Hz is the waypoint's offset in
// seconds from the start of the recording.
type Step struct {
	Start     int
	End       int
	Times     []float64
	Left      resample.Signal
	Right     resample.Signal
	LeftGrip  segment.GripperState
	RightGrip segment.GripperState
}

// Plan is an ordered list of steps for one recording.
type Plan struct {
	Name    string
	Hz      int
	Gripper segment.Config
	Steps   []Step
}

// Waypoints returns the total number of waypoints across all steps.
func (p *Plan) Waypoints() int {
	n := 0
	for _, s := range p.Steps {
		n += len(s.Times)
	}
	return n
}

// Timesteps returns the number of recorded timesteps the plan covers.
func (p *Plan) Timesteps() int {
	if len(p.Steps) == 0 {
		return 0
	}
	return p.Steps[len(p.Steps)-1].End
}

// Build segments rec at gripper transitions and resamples the joined arm
// trajectory of every segment. Duplicate rows are dropped before resampling.
// A step that fails to resample fails the whole build.
func Build(ctx context.Context, rec *trajectory.Recording, opts Options) (*Plan, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	segs, err := opts.Gripper.Split(rec.LeftArm, rec.RightArm, rec.LeftGrip, rec.RightGrip)
	if err != nil {
		return nil, fmt.Errorf("segment %q: %w", rec.Name, err)
	}

	p := &Plan{
		Name:    rec.Name,
		Hz:      rec.Hz,
		Gripper: opts.Gripper,
		Steps:   make([]Step, 0, len(segs)),
	}
	for i, seg := range segs {
		step, err := buildStep(seg, opts)
		if err != nil {
			return nil, fmt.Errorf("step %d [%d,%d): %w", i, seg.Start, seg.End, err)
		}
		if opts.Kinematics != nil {
			if step.Left, err = Retarget(ctx, opts.Kinematics, Left, step.Left, opts.Cost); err != nil {
				return nil, fmt.Errorf("step %d left arm: %w", i, err)
			}
			if step.Right, err = Retarget(ctx, opts.Kinematics, Right, step.Right, opts.Cost); err != nil {
				return nil, fmt.Errorf("step %d right arm: %w", i, err)
			}
		}
		p.Steps = append(p.Steps, step)
	}
	return p, nil
}

func buildStep(seg segment.Segment, opts Options) (Step, error) {
	joined, err := trajectory.Concat(seg.LeftArm, seg.RightArm)
	if err != nil {
		return Step{}, err
	}
	keep := trajectory.UniqueRowIndices(joined)
	unique := make(resample.Signal, len(keep))
	dedup := make([]float64, len(keep))
	orig := make([]float64, len(keep))
	for i, k := range keep {
		unique[i] = joined[k]
		dedup[i] = float64(i)
		orig[i] = float64(seg.Start + k)
	}

	times, values, err := resample.Resample(unique, opts.Resample)
	if err != nil {
		return Step{}, err
	}

	left, right := trajectory.SplitColumns(values, seg.LeftArm.Width())
	return Step{
		Start:     seg.Start,
		End:       seg.End,
		Times:     resample.Interp(times, dedup, orig),
		Left:      left,
		Right:     right,
		LeftGrip:  seg.LeftGrip,
		RightGrip: seg.RightGrip,
	}, nil
}

// Deviation returns, per joint, the largest difference between rec and the
// step's waypoints interpolated at every timestep the step covers.
func (s Step) Deviation(rec *trajectory.Recording) (left, right []float64) {
	local := make([]float64, len(s.Times))
	for i, t := range s.Times {
		local[i] = t - float64(s.Start)
	}
	left = resample.MaxDeviation(rec.LeftArm[s.Start:s.End], local, s.Left)
	right = resample.MaxDeviation(rec.RightArm[s.Start:s.End], local, s.Right)
	return left, right
}
