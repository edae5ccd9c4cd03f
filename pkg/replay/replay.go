// Package replay plays a plan back on a pair of follower arms.
package replay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gwillem/demoreplay/pkg/plan"
	"github.com/gwillem/demoreplay/pkg/robot"
)

// Executor moves one arm to a joint target with the gripper at the given
// opening.
type Executor interface {
	Move(ctx context.Context, side plan.Side, joints []float64, grip float64) error
}

// Torquer is implemented by executors that hold their arms under torque only
// while playing.
type Torquer interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
}

// ArmExecutor drives follower arms over the servo bus. A nil arm ignores
// moves for its side.
type ArmExecutor struct {
	Left  *robot.Arm
	Right *robot.Arm
}

func (e ArmExecutor) arm(side plan.Side) *robot.Arm {
	if side == plan.Right {
		return e.Right
	}
	return e.Left
}

// Move implements Executor.
func (e ArmExecutor) Move(ctx context.Context, side plan.Side, joints []float64, grip float64) error {
	arm := e.arm(side)
	if arm == nil {
		return nil
	}
	return arm.WriteJoints(ctx, joints, grip)
}

// Enable enables torque on every connected arm.
func (e ArmExecutor) Enable(ctx context.Context) error {
	return e.each(func(a *robot.Arm) error { return a.Enable(ctx) })
}

// Disable disables torque on every connected arm.
func (e ArmExecutor) Disable(ctx context.Context) error {
	return e.each(func(a *robot.Arm) error { return a.Disable(ctx) })
}

func (e ArmExecutor) each(fn func(*robot.Arm) error) error {
	var errs []error
	for _, a := range []*robot.Arm{e.Left, e.Right} {
		if a == nil {
			continue
		}
		if err := fn(a); err != nil {
			errs = append(errs, fmt.Errorf("arm %s: %w", a.Port(), err))
		}
	}
	return errors.Join(errs...)
}

// State represents the current state of playback.
type State struct {
	Frame     Frame
	Index     int
	Frames    int
	Steps     int
	Timestamp time.Time
	Done      bool
	Error     error
}

// Config holds configuration for the player.
type Config struct {
	Hz    int
	Speed float64 // 1 plays at recording speed
}

// Player streams a plan's frames to an executor at a fixed rate.
type Player struct {
	exec   Executor
	name   string
	steps  int
	frames []Frame
	hz     int

	mu      sync.RWMutex
	running bool
	stateCh chan State
	logCh   chan string
}

// NewPlayer samples p for playback on exec.
func NewPlayer(exec Executor, p *plan.Plan, cfg Config) (*Player, error) {
	if exec == nil {
		return nil, errors.New("no executor")
	}
	if cfg.Hz <= 0 {
		cfg.Hz = 30
	}
	if cfg.Speed == 0 {
		cfg.Speed = 1
	}
	frames, err := Frames(p, cfg.Hz, cfg.Speed)
	if err != nil {
		return nil, fmt.Errorf("sample plan: %w", err)
	}
	return &Player{
		exec:    exec,
		name:    p.Name,
		steps:   len(p.Steps),
		frames:  frames,
		hz:      cfg.Hz,
		stateCh: make(chan State, 1),
		logCh:   make(chan string, 10),
	}, nil
}

// States returns a channel that receives state updates.
func (p *Player) States() <-chan State {
	return p.stateCh
}

// Logs returns a channel that receives log messages.
func (p *Player) Logs() <-chan string {
	return p.logCh
}

// Hz returns the playback frequency.
func (p *Player) Hz() int {
	return p.hz
}

// Frames returns the number of frames to play.
func (p *Player) Frames() int {
	return len(p.frames)
}

// Duration returns the playback time.
func (p *Player) Duration() time.Duration {
	return time.Duration(len(p.frames)) * time.Second / time.Duration(p.hz)
}

func (p *Player) log(format string, args ...any) {
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case p.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Play sends every frame to the executor, one per tick. It stops at the
// first failed move or when ctx is canceled.
func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("already running")
	}
	p.running = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	if t, ok := p.exec.(Torquer); ok {
		if err := t.Enable(ctx); err != nil {
			return fmt.Errorf("enable torque: %w", err)
		}
		p.log("Torque enabled")
		defer func() {
			if err := t.Disable(context.Background()); err != nil {
				p.log("Warning: failed to disable torque: %v", err)
			} else {
				p.log("Torque disabled")
			}
		}()
	}

	p.log("Playing %q: %d steps, %d frames at %d Hz", p.name, p.steps, len(p.frames), p.hz)

	ticker := time.NewTicker(time.Second / time.Duration(p.hz))
	defer ticker.Stop()

	step := -1
	for i, f := range p.frames {
		select {
		case <-ctx.Done():
			p.log("Stopped at frame %d/%d", i, len(p.frames))
			return ctx.Err()
		case <-ticker.C:
		}

		if f.Step != step {
			step = f.Step
			p.log("Step %d/%d: grippers left=%.3f right=%.3f", step+1, p.steps, f.LeftGrip, f.RightGrip)
		}
		if err := p.move(ctx, f); err != nil {
			p.log("Move error: %v", err)
			p.sendState(State{Frame: f, Index: i, Frames: len(p.frames), Steps: p.steps, Timestamp: time.Now(), Error: err})
			return err
		}
		p.sendState(State{Frame: f, Index: i, Frames: len(p.frames), Steps: p.steps, Timestamp: time.Now()})
	}

	p.log("Playback finished")
	p.sendState(State{Index: len(p.frames), Frames: len(p.frames), Steps: p.steps, Timestamp: time.Now(), Done: true})
	return nil
}

func (p *Player) move(ctx context.Context, f Frame) error {
	if err := p.exec.Move(ctx, plan.Left, f.Left, f.LeftGrip); err != nil {
		return fmt.Errorf("move left arm: %w", err)
	}
	if err := p.exec.Move(ctx, plan.Right, f.Right, f.RightGrip); err != nil {
		return fmt.Errorf("move right arm: %w", err)
	}
	return nil
}

func (p *Player) sendState(s State) {
	select {
	case p.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-p.stateCh:
		default:
		}
		p.stateCh <- s
	}
}
