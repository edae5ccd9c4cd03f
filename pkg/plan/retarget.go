package plan

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"

	"github.com/gwillem/demoreplay/pkg/resample"
)

// ErrNoSolution is returned when inverse kinematics finds no solution for
// any waypoint of a trajectory.
var ErrNoSolution = errors.New("plan: no IK solution")

// Side selects an arm.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// Pose is an end-effector pose.
type Pose struct {
	Position    r3.Vector
	Orientation quat.Number
}

// Solution is one joint-space IK candidate with the solver's own cost
// (collision penalty, limits, ...).
type Solution struct {
	Joints []float64
	Cost   float64
}

// Kinematics is implemented by the robot model. Inverse may return no
// solutions for an unreachable pose; that is not an error.
type Kinematics interface {
	Forward(side Side, joints []float64) (Pose, error)
	Inverse(ctx context.Context, side Side, target Pose, seed []float64) ([]Solution, error)
}

// JointCost scores joint-space candidates. Joints listed in Wrap are
// continuous and compared modulo 2π.
type JointCost struct {
	Wrap []int

	// Posture weights the distance from the recorded joints in the node cost.
	// Zero means 1.
	Posture float64
}

// Diff returns the per-joint absolute difference between a and b, wrapped
// into [0, π] for continuous joints.
func (c JointCost) Diff(a, b []float64) []float64 {
	d := make([]float64, len(a))
	for i := range a {
		d[i] = math.Abs(a[i] - b[i])
	}
	for _, i := range c.Wrap {
		if i < 0 || i >= len(d) {
			continue
		}
		d[i] = math.Mod(d[i], 2*math.Pi)
		if d[i] > math.Pi {
			d[i] = 2*math.Pi - d[i]
		}
	}
	return d
}

// Distance returns the Euclidean norm of Diff.
func (c JointCost) Distance(a, b []float64) float64 {
	return math.Sqrt(c.SquaredDistance(a, b))
}

// SquaredDistance returns the squared Euclidean norm of Diff.
func (c JointCost) SquaredDistance(a, b []float64) float64 {
	sum := 0.0
	for _, v := range c.Diff(a, b) {
		sum += v * v
	}
	return sum
}

func (c JointCost) posture() float64 {
	if c.Posture == 0 {
		return 1
	}
	return c.Posture
}

// Retarget maps a joint trajectory through forward kinematics to poses and
// back through inverse kinematics, choosing the candidate path with the
// lowest total cost. The node cost is the solver cost plus the posture
// distance to the recorded joints; the edge cost is the squared distance
// between consecutive candidates. Waypoints without any solution are filled
// by linear interpolation between solved neighbours.
func Retarget(ctx context.Context, kin Kinematics, side Side, joints resample.Signal, cost JointCost) (resample.Signal, error) {
	type layer struct {
		step  int
		cands []Solution
		total []float64
		prev  []int
	}

	var layers []layer
	for i, seed := range joints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pose, err := kin.Forward(side, seed)
		if err != nil {
			return nil, fmt.Errorf("forward kinematics at %d: %w", i, err)
		}
		cands, err := kin.Inverse(ctx, side, pose, seed)
		if err != nil {
			return nil, fmt.Errorf("inverse kinematics at %d: %w", i, err)
		}
		if len(cands) == 0 {
			continue
		}

		l := layer{
			step:  i,
			cands: cands,
			total: make([]float64, len(cands)),
			prev:  make([]int, len(cands)),
		}
		for j, cand := range cands {
			node := cand.Cost + cost.posture()*cost.Distance(cand.Joints, seed)
			l.prev[j] = -1
			if len(layers) == 0 {
				l.total[j] = node
				continue
			}
			last := layers[len(layers)-1]
			best := math.Inf(1)
			for p, pc := range last.cands {
				if v := last.total[p] + cost.SquaredDistance(pc.Joints, cand.Joints); v < best {
					best, l.prev[j] = v, p
				}
			}
			l.total[j] = best + node
		}
		layers = append(layers, l)
	}

	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: %s arm, %d waypoints", ErrNoSolution, side, len(joints))
	}

	// Backtrack from the cheapest final candidate.
	pick := 0
	final := layers[len(layers)-1]
	for j := range final.total {
		if final.total[j] < final.total[pick] {
			pick = j
		}
	}
	solved := make([]float64, len(layers))
	path := make(resample.Signal, len(layers))
	for i := len(layers) - 1; i >= 0; i-- {
		solved[i] = float64(layers[i].step)
		path[i] = append([]float64(nil), layers[i].cands[pick].Joints...)
		pick = layers[i].prev[pick]
	}

	if len(layers) == len(joints) {
		return path, nil
	}
	all := make([]float64, len(joints))
	for i := range all {
		all[i] = float64(i)
	}
	return resample.Interp2D(all, solved, path), nil
}
