package resample

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Interp evaluates the piecewise linear function through (xp, fp) at every
// point of xq. xp must be non-decreasing. Points outside [xp[0], xp[n-1]]
// take the nearest end value. Where xp repeats a value the right-most sample
// wins, so flat runs never divide by zero.
func Interp(xq, xp, fp []float64) []float64 {
	out := make([]float64, len(xq))
	for i, v := range xq {
		out[i] = interp1(v, xp, fp)
	}
	return out
}

func interp1(v float64, xp, fp []float64) float64 {
	n := len(xp)
	// Largest j with xp[j] <= v.
	j := sort.Search(n, func(i int) bool { return xp[i] > v }) - 1
	switch {
	case j < 0:
		return fp[0]
	case j >= n-1:
		return fp[n-1]
	}
	w := (v - xp[j]) / (xp[j+1] - xp[j])
	return fp[j] + w*(fp[j+1]-fp[j])
}

// Interp2D applies Interp to every channel of fp.
func Interp2D(xq, xp []float64, fp Signal) Signal {
	k := fp.Width()
	out := make(Signal, len(xq))
	for i := range out {
		out[i] = make([]float64, k)
	}
	for c := range k {
		col := Interp(xq, xp, fp.Column(c))
		for i, v := range col {
			out[i][c] = v
		}
	}
	return out
}

// ArcLength returns the cumulative L1 distance along x, starting at 0.
func ArcLength(x Signal) []float64 {
	d := make([]float64, len(x))
	for i := 1; i < len(x); i++ {
		d[i] = floats.Distance(x[i], x[i-1], 1)
	}
	return floats.CumSum(d, d)
}

// Reconstruct evaluates a resampling at the integer index times 0..n-1.
func Reconstruct(times []float64, values Signal, n int) Signal {
	index := make([]float64, n)
	for i := range index {
		index[i] = float64(i)
	}
	return Interp2D(index, times, values)
}

// MaxDeviation returns, per channel, the largest absolute difference between
// x and the reconstruction of (times, values) at x's timesteps.
func MaxDeviation(x Signal, times []float64, values Signal) []float64 {
	dev := make([]float64, x.Width())
	for i, row := range Reconstruct(times, values, x.Len()) {
		for c, v := range row {
			dev[c] = math.Max(dev[c], math.Abs(v-x[i][c]))
		}
	}
	return dev
}

// MaxStep returns, per channel, the largest absolute change between
// consecutive rows of s.
func MaxStep(s Signal) []float64 {
	step := make([]float64, s.Width())
	for i := 1; i < len(s); i++ {
		for c := range s[i] {
			step[c] = math.Max(step[c], math.Abs(s[i][c]-s[i-1][c]))
		}
	}
	return step
}
