// Package resample reduces a dense multi-channel time series to a small set
// of waypoints that reconstruct it, by linear interpolation, within a
// per-channel tolerance.
package resample

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// MaxIterations bounds the number of refinement rounds.
const MaxIterations = 20

// DefaultMinSteps is used when Options.MinSteps is zero.
const DefaultMinSteps = 3

var (
	// ErrInvalidArgument reports malformed input or options.
	ErrInvalidArgument = errors.New("resample: invalid argument")

	// ErrDidNotConverge reports that refinement hit MaxIterations. The input
	// likely has discontinuities that are sharp relative to the tolerance, or
	// MaxChange is too small to represent its transitions.
	ErrDidNotConverge = errors.New("resample: did not converge")
)

// Signal is an ordered sequence of samples, one row per timestep and one
// column per channel.
type Signal [][]float64

// Len returns the number of timesteps.
func (s Signal) Len() int { return len(s) }

// Width returns the number of channels, or 0 for an empty signal.
func (s Signal) Width() int {
	if len(s) == 0 {
		return 0
	}
	return len(s[0])
}

// Clone returns a deep copy of s.
func (s Signal) Clone() Signal {
	out := make(Signal, len(s))
	for i, row := range s {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Column returns a copy of channel k.
func (s Signal) Column(k int) []float64 {
	col := make([]float64, len(s))
	for i, row := range s {
		col[i] = row[k]
	}
	return col
}

// Validate checks that s has at least one row, at least one channel, a
// constant width and no NaN values.
func (s Signal) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: signal has no rows", ErrInvalidArgument)
	}
	k := len(s[0])
	if k == 0 {
		return fmt.Errorf("%w: signal has no channels", ErrInvalidArgument)
	}
	for i, row := range s {
		if len(row) != k {
			return fmt.Errorf("%w: row %d has %d channels, want %d", ErrInvalidArgument, i, len(row), k)
		}
		if floats.HasNaN(row) {
			return fmt.Errorf("%w: row %d contains NaN", ErrInvalidArgument, i)
		}
	}
	return nil
}

// Options configures Resample.
//
// Tol and MaxChange take either one value, applied to every channel, or one
// value per channel. A nil MaxChange leaves steps unbounded.
type Options struct {
	Tol       []float64
	MaxChange []float64
	MinSteps  int
}

// Resample picks a strictly increasing set of index times in [0, T-1] such
// that linearly interpolating the returned values at every original timestep
// stays within Tol of x on every channel, and adjacent returned samples differ
// by at most MaxChange.
//
// Candidates live on the cumulative L1 arc length of x. They start as
// MinSteps evenly spaced positions and every interval that causes a violation
// is bisected until none remain or MaxIterations is reached.
//
// A single-row signal yields one sample. x is never modified.
func Resample(x Signal, opts Options) (times []float64, values Signal, err error) {
	if err := x.Validate(); err != nil {
		return nil, nil, err
	}
	k := x.Width()
	tol, err := broadcast("tol", opts.Tol, k, math.NaN(), false)
	if err != nil {
		return nil, nil, err
	}
	maxChange, err := broadcast("max_change", opts.MaxChange, k, math.Inf(1), true)
	if err != nil {
		return nil, nil, err
	}
	minSteps := opts.MinSteps
	if minSteps == 0 {
		minSteps = DefaultMinSteps
	}
	if minSteps < 2 {
		return nil, nil, fmt.Errorf("%w: min_steps %d < 2", ErrInvalidArgument, minSteps)
	}

	n := x.Len()
	if n == 1 {
		return []float64{0}, x.Clone(), nil
	}

	index := make([]float64, n)
	for i := range index {
		index[i] = float64(i)
	}

	l := ArcLength(x)
	total := l[n-1]
	if total == 0 {
		// Every row is identical: any evenly spaced subset is exact.
		times = floats.Span(make([]float64, minSteps), 0, float64(n-1))
		values = make(Signal, minSteps)
		for i := range values {
			values[i] = append([]float64(nil), x[0]...)
		}
		return times, values, nil
	}

	l1 := floats.Span(make([]float64, minSteps), 0, total)
	for range MaxIterations {
		x1 := Interp2D(l1, l, x)
		t1 := Interp(l1, l, index)
		// Leading duplicate rows share arc length 0; pin the start to index 0.
		t1[0] = 0

		bad := violations(x, index, t1, x1, tol, maxChange)
		if len(bad) == 0 {
			return t1, x1, nil
		}
		for _, j := range bad {
			l1 = append(l1, (l1[j]+l1[j+1])/2)
		}
		l1 = uniqueSorted(l1)
	}

	return nil, nil, fmt.Errorf("%w after %d rounds (%d candidates)", ErrDidNotConverge, MaxIterations, len(l1))
}

// violations returns the sorted, unique indices j of candidate intervals
// [j, j+1] that either reconstruct some original timestep outside tol or
// change by more than maxChange.
func violations(x Signal, index, t1 []float64, x1 Signal, tol, maxChange []float64) []int {
	last := len(t1) - 2
	seen := make(map[int]struct{})

	recon := Interp2D(index, t1, x1)
	for i, row := range x {
		if !within(recon[i], row, tol) {
			// Interval containing timestep i: t1[j] < i <= t1[j+1].
			j := sort.SearchFloat64s(t1, index[i]) - 1
			seen[clamp(j, 0, last)] = struct{}{}
		}
	}
	for j := 0; j < len(x1)-1; j++ {
		if !within(x1[j+1], x1[j], maxChange) {
			seen[j] = struct{}{}
		}
	}

	bad := make([]int, 0, len(seen))
	for j := range seen {
		bad = append(bad, j)
	}
	sort.Ints(bad)
	return bad
}

// within reports whether |a[c]-b[c]| <= bound[c] on every channel.
func within(a, b, bound []float64) bool {
	for c := range a {
		if math.Abs(a[c]-b[c]) > bound[c] {
			return false
		}
	}
	return true
}

// broadcast expands v to k channels. An empty v yields def.
func broadcast(name string, v []float64, k int, def float64, positive bool) ([]float64, error) {
	out := make([]float64, k)
	switch len(v) {
	case 0:
		if math.IsNaN(def) {
			return nil, fmt.Errorf("%w: %s is required", ErrInvalidArgument, name)
		}
		for i := range out {
			out[i] = def
		}
		return out, nil
	case 1:
		for i := range out {
			out[i] = v[0]
		}
	case k:
		copy(out, v)
	default:
		return nil, fmt.Errorf("%w: %s has %d values, want 1 or %d", ErrInvalidArgument, name, len(v), k)
	}
	for i, b := range out {
		switch {
		case math.IsNaN(b):
			return nil, fmt.Errorf("%w: %s[%d] is NaN", ErrInvalidArgument, name, i)
		case positive && b <= 0:
			return nil, fmt.Errorf("%w: %s[%d] = %g, must be > 0", ErrInvalidArgument, name, i, b)
		case b < 0:
			return nil, fmt.Errorf("%w: %s[%d] = %g, must be >= 0", ErrInvalidArgument, name, i, b)
		}
	}
	return out, nil
}

func uniqueSorted(s []float64) []float64 {
	sort.Float64s(s)
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
