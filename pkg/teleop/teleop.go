// Package teleop provides teleoperation control for robot arm pairs and
// records the leader motion as a demonstration.
package teleop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gwillem/demoreplay/pkg/plan"
	"github.com/gwillem/demoreplay/pkg/robot"
	"github.com/gwillem/demoreplay/pkg/trajectory"
)

// State represents the current state of teleoperation.
type State struct {
	Left      map[robot.MotorName]float64
	Right     map[robot.MotorName]float64
	Step      int
	Timestamp time.Time
	Error     error
}

// Leader is the hand-moved side of a pair.
type Leader interface {
	ReadPositions(ctx context.Context) (map[robot.MotorName]float64, error)
	Disable(ctx context.Context) error
}

// Follower mirrors a leader.
type Follower interface {
	WritePositions(ctx context.Context, positions map[robot.MotorName]float64) error
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
}

// Pair is one leader/follower pair. Follower may be nil to record without
// mirroring.
type Pair struct {
	Leader   Leader
	Follower Follower
}

// Controller manages the teleoperation control loop.
type Controller struct {
	pairs  [2]*Pair // indexed by plan.Side; nil when the side is absent
	hz     int
	mirror bool

	mu        sync.RWMutex
	running   bool
	recording trajectory.Recording
	stateCh   chan State
	logCh     chan string
}

// Config holds configuration for the controller.
type Config struct {
	Name   string
	Left   *Pair
	Right  *Pair
	Hz     int
	Mirror bool // Invert positions for shoulder_pan (servo 1) and wrist_roll (servo 5)
}

// NewController creates a new teleoperation controller. At least one side
// must have a leader.
func NewController(cfg Config) (*Controller, error) {
	if (cfg.Left == nil || cfg.Left.Leader == nil) && (cfg.Right == nil || cfg.Right.Leader == nil) {
		return nil, errors.New("no leader arm configured")
	}
	if cfg.Hz <= 0 {
		cfg.Hz = 30
	}

	return &Controller{
		pairs:     [2]*Pair{cfg.Left, cfg.Right},
		hz:        cfg.Hz,
		mirror:    cfg.Mirror,
		recording: trajectory.Recording{Name: cfg.Name, Hz: cfg.Hz},
		stateCh:   make(chan State, 1),
		logCh:     make(chan string, 10),
	}, nil
}

// OpenPair connects to both arms of a configured pair.
func OpenPair(cfg robot.ArmPair) (*Pair, func() error, error) {
	leader, err := robot.OpenArm(cfg.Leader)
	if err != nil {
		return nil, nil, fmt.Errorf("leader: %w", err)
	}
	follower, err := robot.OpenArm(cfg.Follower)
	if err != nil {
		leader.Close()
		return nil, nil, fmt.Errorf("follower: %w", err)
	}
	closer := func() error {
		return errors.Join(leader.Close(), follower.Close())
	}
	return &Pair{Leader: leader, Follower: follower}, closer, nil
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log messages.
func (c *Controller) Logs() <-chan string {
	return c.logCh
}

// Hz returns the control frequency.
func (c *Controller) Hz() int {
	return c.hz
}

// Recording returns a copy of everything recorded so far.
func (c *Controller) Recording() *trajectory.Recording {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec := trajectory.Recording{Name: c.recording.Name, Hz: c.recording.Hz}
	for i := range c.recording.Len() {
		rec.Append(c.recording.LeftArm[i], c.recording.RightArm[i], c.recording.LeftGrip[i], c.recording.RightGrip[i])
	}
	return &rec
}

func (c *Controller) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case c.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Start begins the teleoperation control loop and records until ctx is
// canceled.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("already running")
	}
	c.running = true
	c.mu.Unlock()

	for side, p := range c.pairs {
		if p == nil {
			continue
		}
		name := plan.Side(side)
		if err := p.Leader.Disable(ctx); err != nil {
			c.log("Warning: failed to disable %s leader: %v", name, err)
		} else {
			c.log("%s leader: torque disabled (passive mode)", name)
		}
		if p.Follower == nil {
			continue
		}
		if err := p.Follower.Enable(ctx); err != nil {
			c.log("Warning: failed to enable %s follower: %v", name, err)
		} else {
			c.log("%s follower: torque enabled", name)
		}
	}

	c.log("Recording at %d Hz", c.hz)

	ticker := time.NewTicker(time.Second / time.Duration(c.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case <-ticker.C:
			c.step(ctx)
		}
	}
}

func (c *Controller) step(ctx context.Context) {
	var positions [2]map[robot.MotorName]float64
	for side, p := range c.pairs {
		if p == nil || p.Leader == nil {
			continue
		}
		pos, err := p.Leader.ReadPositions(ctx)
		if err != nil {
			c.log("Read error (%s): %v", plan.Side(side), err)
			c.sendState(State{Error: err, Timestamp: time.Now()})
			return
		}
		positions[side] = pos

		if p.Follower == nil {
			continue
		}
		if err := p.Follower.WritePositions(ctx, c.mirrored(pos)); err != nil {
			c.log("Write error (%s): %v", plan.Side(side), err)
		}
	}

	left, lgrip := sample(positions[plan.Left])
	right, rgrip := sample(positions[plan.Right])

	c.mu.Lock()
	c.recording.Append(left, right, lgrip, rgrip)
	n := c.recording.Len()
	c.mu.Unlock()

	c.sendState(State{
		Left:      positions[plan.Left],
		Right:     positions[plan.Right],
		Step:      n,
		Timestamp: time.Now(),
	})
}

// mirrored inverts shoulder_pan and wrist_roll when mirroring is enabled.
func (c *Controller) mirrored(positions map[robot.MotorName]float64) map[robot.MotorName]float64 {
	if !c.mirror {
		return positions
	}
	out := make(map[robot.MotorName]float64, len(positions))
	for name, pos := range positions {
		if name == robot.ShoulderPan || name == robot.WristRoll {
			out[name] = -pos
		} else {
			out[name] = pos
		}
	}
	return out
}

// sample converts leader positions to recorded joints and gripper opening.
// An absent side records a closed gripper at the zero pose.
func sample(positions map[robot.MotorName]float64) ([]float64, float64) {
	if positions == nil {
		return make([]float64, len(robot.ArmJoints())), 0
	}
	return robot.Joints(positions), robot.GripperOpening(positions[robot.Gripper])
}

func (c *Controller) sendState(s State) {
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		c.stateCh <- s
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.running = false
	n := c.recording.Len()
	c.mu.Unlock()

	ctx := context.Background()
	for side, p := range c.pairs {
		if p == nil || p.Follower == nil {
			continue
		}
		if err := p.Follower.Disable(ctx); err != nil {
			c.log("Warning: failed to disable %s follower: %v", plan.Side(side), err)
		} else {
			c.log("%s follower: torque disabled", plan.Side(side))
		}
	}
	c.log("Recording stopped after %d steps", n)
}
