package replay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/demoreplay/pkg/plan"
	"github.com/gwillem/demoreplay/pkg/resample"
	"github.com/gwillem/demoreplay/pkg/segment"
)

func twoStepPlan() *plan.Plan {
	return &plan.Plan{
		Name:    "pick",
		Hz:      10,
		Gripper: segment.DefaultConfig(),
		Steps: []plan.Step{
			{
				Start: 0, End: 5,
				Times:    []float64{0, 4},
				Left:     resample.Signal{{0}, {4}},
				Right:    resample.Signal{{0}, {-4}},
				LeftGrip: segment.Closed, RightGrip: segment.Closed,
			},
			{
				Start: 5, End: 8,
				Times:    []float64{5, 6, 7},
				Left:     resample.Signal{{5}, {6}, {7}},
				Right:    resample.Signal{{-5}, {-6}, {-7}},
				LeftGrip: segment.Open, RightGrip: segment.Closed,
			},
		},
	}
}

func TestFrames(t *testing.T) {
	frames, err := Frames(twoStepPlan(), 10, 1)
	require.NoError(t, err)
	require.Len(t, frames, 8)

	wantTimes := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	for i, f := range frames {
		assert.InDelta(t, wantTimes[i], f.Time, 1e-12, "frame %d", i)
		assert.InDelta(t, wantTimes[i], f.Left[0], 1e-12, "frame %d", i)
		assert.InDelta(t, -wantTimes[i], f.Right[0], 1e-12, "frame %d", i)
	}
	assert.Equal(t, 0, frames[4].Step)
	assert.Equal(t, 1, frames[5].Step)
	assert.Equal(t, segment.DefaultClosedAngle, frames[0].LeftGrip)
	assert.Equal(t, segment.DefaultOpenAngle, frames[5].LeftGrip)
	assert.Equal(t, segment.DefaultClosedAngle, frames[5].RightGrip)
}

func TestFrames_Speed(t *testing.T) {
	frames, err := Frames(twoStepPlan(), 10, 3)
	require.NoError(t, err)

	// Step 0 covers 4 timesteps in strides of 3, step 1 covers 2.
	times := make([]float64, len(frames))
	for i, f := range frames {
		times[i] = f.Time
	}
	assert.Equal(t, []float64{0, 3, 4, 5, 7}, times)
}

func TestFrames_SingleWaypoint(t *testing.T) {
	p := &plan.Plan{Hz: 30, Gripper: segment.DefaultConfig(), Steps: []plan.Step{{
		Start: 0, End: 1,
		Times: []float64{0},
		Left:  resample.Signal{{1, 2}},
		Right: resample.Signal{{3, 4}},
	}}}
	frames, err := Frames(p, 30, 1)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []float64{1, 2}, frames[0].Left)
}

func TestFrames_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		p     *plan.Plan
		hz    int
		speed float64
	}{
		{"nil plan", nil, 30, 1},
		{"no steps", &plan.Plan{Hz: 30}, 30, 1},
		{"zero hz", twoStepPlan(), 0, 1},
		{"negative speed", twoStepPlan(), 30, -1},
		{"no waypoints", &plan.Plan{Hz: 30, Steps: []plan.Step{{}}}, 30, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Frames(tt.p, tt.hz, tt.speed)
			assert.Error(t, err)
		})
	}
}

type move struct {
	side   plan.Side
	joints []float64
	grip   float64
}

type fakeExecutor struct {
	mu      sync.Mutex
	moves   []move
	failAt  int
	enabled bool
	toggles int
}

func (e *fakeExecutor) Move(_ context.Context, side plan.Side, joints []float64, grip float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failAt > 0 && len(e.moves) == e.failAt {
		return errors.New("servo overload")
	}
	e.moves = append(e.moves, move{side, joints, grip})
	return nil
}

func (e *fakeExecutor) Enable(context.Context) error {
	e.enabled = true
	e.toggles++
	return nil
}

func (e *fakeExecutor) Disable(context.Context) error {
	e.enabled = false
	e.toggles++
	return nil
}

func TestPlayer_Play(t *testing.T) {
	exec := &fakeExecutor{}
	player, err := NewPlayer(exec, twoStepPlan(), Config{Hz: 200, Speed: 20})
	require.NoError(t, err)
	assert.Equal(t, 8, player.Frames())

	require.NoError(t, player.Play(context.Background()))

	require.Len(t, exec.moves, 16)
	assert.Equal(t, plan.Left, exec.moves[0].side)
	assert.Equal(t, plan.Right, exec.moves[1].side)
	assert.Equal(t, []float64{7}, exec.moves[14].joints)
	assert.Equal(t, segment.DefaultOpenAngle, exec.moves[14].grip)
	assert.False(t, exec.enabled)
	assert.Equal(t, 2, exec.toggles)

	s := <-player.States()
	assert.True(t, s.Done)
	assert.Equal(t, 8, s.Index)
}

func TestPlayer_MoveErrorStops(t *testing.T) {
	exec := &fakeExecutor{failAt: 3}
	player, err := NewPlayer(exec, twoStepPlan(), Config{Hz: 200, Speed: 20})
	require.NoError(t, err)

	err = player.Play(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "move right arm")
	assert.Len(t, exec.moves, 3)
	assert.False(t, exec.enabled, "torque released after failure")
}

func TestPlayer_Canceled(t *testing.T) {
	exec := &fakeExecutor{}
	player, err := NewPlayer(exec, twoStepPlan(), Config{Hz: 1, Speed: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, player.Frames(), "one recording second per tick")
	assert.Equal(t, 4*time.Second, player.Duration())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, player.Play(ctx), context.DeadlineExceeded)
	assert.Empty(t, exec.moves)
}

func TestNewPlayer_Invalid(t *testing.T) {
	_, err := NewPlayer(nil, twoStepPlan(), Config{})
	assert.Error(t, err)

	_, err = NewPlayer(&fakeExecutor{}, &plan.Plan{}, Config{})
	assert.Error(t, err)
}
