package segment_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/demoreplay/pkg/resample"
	"github.com/gwillem/demoreplay/pkg/segment"
)

// arm returns n rows of 7 joints, row i filled with base+i.
func arm(n int, base float64) resample.Signal {
	s := make(resample.Signal, n)
	for i := range s {
		s[i] = make([]float64, 7)
		for j := range s[i] {
			s[i][j] = base + float64(i)
		}
	}
	return s
}

type span struct {
	start, end  int
	left, right segment.GripperState
}

func spans(segs []segment.Segment) []span {
	out := make([]span, len(segs))
	for i, s := range segs {
		out[i] = span{s.Start, s.End, s.LeftGrip, s.RightGrip}
	}
	return out
}

// assertCoverage checks that segments are ordered, contiguous and cover [0, n).
func assertCoverage(t *testing.T, segs []segment.Segment, n int) {
	t.Helper()
	require.NotEmpty(t, segs)
	assert.Equal(t, 0, segs[0].Start, "first segment starts at 0")
	assert.Equal(t, n, segs[len(segs)-1].End, "last segment ends at T")
	for i, s := range segs {
		assert.Less(t, s.Start, s.End, "segment %d is non-empty", i)
		assert.Len(t, s.LeftArm, s.Len(), "segment %d left rows", i)
		assert.Len(t, s.RightArm, s.Len(), "segment %d right rows", i)
		if i > 0 {
			assert.Equal(t, segs[i-1].End, s.Start, "segment %d is contiguous", i)
		}
	}
}

func TestSplit_OneOpening(t *testing.T) {
	lgrip := []float64{0, 0, 0.08, 0.08, 0, 0}
	rgrip := []float64{0, 0, 0, 0, 0, 0}

	segs, err := segment.Split(arm(6, 0), arm(6, 100), lgrip, rgrip)
	require.NoError(t, err)
	assertCoverage(t, segs, 6)

	assert.Equal(t, []span{
		{0, 2, segment.Closed, segment.Closed},
		{2, 4, segment.Open, segment.Closed},
		{4, 6, segment.Closed, segment.Closed},
	}, spans(segs))

	assert.Equal(t, resample.Signal(arm(6, 0)[2:4]), segs[1].LeftArm)
	assert.Equal(t, resample.Signal(arm(6, 100)[4:6]), segs[2].RightArm)
}

func TestSplit_NoTransitions(t *testing.T) {
	grip := []float64{0.01, 0.02, 0.01, 0.03}

	segs, err := segment.Split(arm(4, 0), arm(4, 0), grip, grip)
	require.NoError(t, err)
	assert.Equal(t, []span{{0, 4, segment.Closed, segment.Closed}}, spans(segs))
}

func TestSplit_SingleTimestep(t *testing.T) {
	segs, err := segment.Split(arm(1, 0), arm(1, 0), []float64{0.1}, []float64{0})
	require.NoError(t, err)
	assert.Equal(t, []span{{0, 1, segment.Open, segment.Closed}}, spans(segs))
}

func TestSplit_TransitionAtEdges(t *testing.T) {
	// Left opens between 0 and 1, right closes between 3 and 4.
	lgrip := []float64{0, 0.08, 0.08, 0.08, 0.08}
	rgrip := []float64{0.08, 0.08, 0.08, 0.08, 0}

	segs, err := segment.Split(arm(5, 0), arm(5, 0), lgrip, rgrip)
	require.NoError(t, err)
	assertCoverage(t, segs, 5)
	assert.Equal(t, []span{
		{0, 1, segment.Closed, segment.Open},
		{1, 4, segment.Open, segment.Open},
		{4, 5, segment.Open, segment.Closed},
	}, spans(segs))
}

func TestSplit_SimultaneousTransitions(t *testing.T) {
	lgrip := []float64{0, 0, 0.08, 0.08}
	rgrip := []float64{0.08, 0.08, 0, 0}

	segs, err := segment.Split(arm(4, 0), arm(4, 0), lgrip, rgrip)
	require.NoError(t, err)
	assert.Equal(t, []span{
		{0, 2, segment.Closed, segment.Open},
		{2, 4, segment.Open, segment.Closed},
	}, spans(segs))
}

func TestSplit_ThresholdBoundary(t *testing.T) {
	grip := []float64{0.04, 0.05, 0.039, 0.04}
	closed := []float64{0, 0, 0, 0}

	segs, err := segment.Split(arm(4, 0), arm(4, 0), grip, closed)
	require.NoError(t, err)
	assert.Equal(t, []span{
		{0, 2, segment.Open, segment.Closed},
		{2, 3, segment.Closed, segment.Closed},
		{3, 4, segment.Open, segment.Closed},
	}, spans(segs))
}

func TestSplit_RandomProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cfg := segment.DefaultConfig()

	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(60)
		lgrip := make([]float64, n)
		rgrip := make([]float64, n)
		for i := range n {
			lgrip[i] = rng.Float64() * 0.1
			rgrip[i] = rng.Float64() * 0.1
		}

		segs, err := cfg.Split(arm(n, 0), arm(n, 1), lgrip, rgrip)
		require.NoError(t, err)
		assertCoverage(t, segs, n)

		for _, s := range segs {
			for i := s.Start; i < s.End; i++ {
				assert.Equal(t, s.LeftGrip, cfg.Binarize(lgrip[i]), "trial %d left at %d", trial, i)
				assert.Equal(t, s.RightGrip, cfg.Binarize(rgrip[i]), "trial %d right at %d", trial, i)
			}
		}
	}
}

func TestSplit_CopiesArms(t *testing.T) {
	larm := arm(3, 0)
	segs, err := segment.Split(larm, arm(3, 0), []float64{0, 0, 0}, []float64{0, 0, 0})
	require.NoError(t, err)

	segs[0].LeftArm[0][0] = -1
	assert.Equal(t, 0.0, larm[0][0])
}

func TestSplit_InvalidArgument(t *testing.T) {
	tests := []struct {
		name         string
		larm, rarm   resample.Signal
		lgrip, rgrip []float64
	}{
		{"empty", nil, nil, nil, nil},
		{"rarm length", arm(3, 0), arm(2, 0), make([]float64, 3), make([]float64, 3)},
		{"lgrip length", arm(3, 0), arm(3, 0), make([]float64, 4), make([]float64, 3)},
		{"rgrip length", arm(3, 0), arm(3, 0), make([]float64, 3), make([]float64, 2)},
		{"ragged arm", resample.Signal{{1, 2}, {1}}, arm(2, 0), make([]float64, 2), make([]float64, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs, err := segment.Split(tt.larm, tt.rarm, tt.lgrip, tt.rgrip)
			assert.ErrorIs(t, err, segment.ErrInvalidArgument)
			assert.Nil(t, segs)
		})
	}
}

func TestTransitions(t *testing.T) {
	openings, closings := segment.Transitions([]float64{0, 0.05, 0.05, 0, 0.04, 0.01}, 0.04)
	assert.Equal(t, []int{0, 3}, openings)
	assert.Equal(t, []int{2, 4}, closings)
}

func TestConfig_Angle(t *testing.T) {
	cfg := segment.DefaultConfig()
	assert.Equal(t, 0.08, cfg.Angle(segment.Open))
	assert.Equal(t, 0.0, cfg.Angle(segment.Closed))
	assert.Equal(t, "open", segment.Open.String())
}
