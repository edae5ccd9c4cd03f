package teleop

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/demoreplay/pkg/robot"
)

type fakeArm struct {
	mu       sync.Mutex
	pos      map[robot.MotorName]float64
	readErr  error
	written  []map[robot.MotorName]float64
	enabled  bool
	disabled int
}

func (a *fakeArm) ReadPositions(context.Context) (map[robot.MotorName]float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.readErr != nil {
		return nil, a.readErr
	}
	out := make(map[robot.MotorName]float64, len(a.pos))
	for k, v := range a.pos {
		out[k] = v
	}
	return out, nil
}

func (a *fakeArm) WritePositions(_ context.Context, p map[robot.MotorName]float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.written = append(a.written, p)
	return nil
}

func (a *fakeArm) Enable(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = true
	return nil
}

func (a *fakeArm) Disable(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = false
	a.disabled++
	return nil
}

func run(t *testing.T, c *Controller, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	err := c.Start(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewController_RequiresLeader(t *testing.T) {
	_, err := NewController(Config{})
	assert.Error(t, err)

	_, err = NewController(Config{Left: &Pair{Follower: &fakeArm{}}})
	assert.Error(t, err)

	c, err := NewController(Config{Right: &Pair{Leader: &fakeArm{}}})
	require.NoError(t, err)
	assert.Equal(t, 30, c.Hz())
}

func TestController_RecordsAndMirrors(t *testing.T) {
	leader := &fakeArm{pos: map[robot.MotorName]float64{
		robot.ShoulderPan: 50,
		robot.ElbowFlex:   -25,
		robot.WristRoll:   10,
		robot.Gripper:     100,
	}}
	follower := &fakeArm{}

	c, err := NewController(Config{
		Name:   "pick",
		Left:   &Pair{Leader: leader, Follower: follower},
		Hz:     200,
		Mirror: true,
	})
	require.NoError(t, err)

	run(t, c, 100*time.Millisecond)

	rec := c.Recording()
	require.Greater(t, rec.Len(), 0)
	require.NoError(t, rec.Validate())
	assert.Equal(t, "pick", rec.Name)
	assert.Equal(t, 200, rec.Hz)

	assert.InDelta(t, math.Pi/2, rec.LeftArm[0][0], 1e-12)
	assert.InDelta(t, -math.Pi/4, rec.LeftArm[0][2], 1e-12)
	assert.InDelta(t, robot.MaxGripperOpening, rec.LeftGrip[0], 1e-12)
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, rec.RightArm[0], "absent side records zeros")
	assert.Equal(t, 0.0, rec.RightGrip[0])

	follower.mu.Lock()
	defer follower.mu.Unlock()
	require.NotEmpty(t, follower.written)
	assert.Equal(t, -50.0, follower.written[0][robot.ShoulderPan])
	assert.Equal(t, -10.0, follower.written[0][robot.WristRoll])
	assert.Equal(t, -25.0, follower.written[0][robot.ElbowFlex])
	assert.False(t, follower.enabled, "follower torque released on stop")
	assert.Equal(t, 1, leader.disabled)
}

func TestController_ReadErrorSkipsStep(t *testing.T) {
	leader := &fakeArm{readErr: errors.New("bus timeout")}
	c, err := NewController(Config{Left: &Pair{Leader: leader}, Hz: 200})
	require.NoError(t, err)

	run(t, c, 50*time.Millisecond)

	assert.Equal(t, 0, c.Recording().Len())
	select {
	case s := <-c.States():
		assert.Error(t, s.Error)
	default:
		t.Fatal("no state published")
	}
}

func TestController_AlreadyRunning(t *testing.T) {
	c, err := NewController(Config{Left: &Pair{Leader: &fakeArm{}}, Hz: 200})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return c.Recording().Len() > 0 }, time.Second, 5*time.Millisecond)
	assert.Error(t, c.Start(context.Background()))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRecording_IsCopy(t *testing.T) {
	c, err := NewController(Config{Left: &Pair{Leader: &fakeArm{}}})
	require.NoError(t, err)
	c.step(context.Background())

	rec := c.Recording()
	rec.LeftArm[0][0] = 42
	assert.Equal(t, 0.0, c.Recording().LeftArm[0][0])
}
