// Package trajectory holds recorded dual-arm demonstrations: per-timestep
// arm joints and gripper openings for the left and right arm.
package trajectory

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/gwillem/demoreplay/pkg/resample"
)

// Recording is one demonstration sampled at a fixed rate.
type Recording struct {
	Name      string          `json:"name"`
	Hz        int             `json:"hz"`
	LeftArm   resample.Signal `json:"left_arm"`
	RightArm  resample.Signal `json:"right_arm"`
	LeftGrip  []float64       `json:"left_grip"`
	RightGrip []float64       `json:"right_grip"`
}

// Len returns the number of recorded timesteps.
func (r *Recording) Len() int {
	return len(r.LeftArm)
}

// Append adds one timestep.
func (r *Recording) Append(left, right []float64, lgrip, rgrip float64) {
	r.LeftArm = append(r.LeftArm, slices.Clone(left))
	r.RightArm = append(r.RightArm, slices.Clone(right))
	r.LeftGrip = append(r.LeftGrip, lgrip)
	r.RightGrip = append(r.RightGrip, rgrip)
}

// Validate checks that the recording is non-empty and that all four series
// have the same length.
func (r *Recording) Validate() error {
	n := r.Len()
	if n == 0 {
		return fmt.Errorf("recording %q is empty", r.Name)
	}
	if len(r.RightArm) != n || len(r.LeftGrip) != n || len(r.RightGrip) != n {
		return fmt.Errorf("recording %q: mismatched lengths left_arm=%d right_arm=%d left_grip=%d right_grip=%d",
			r.Name, n, len(r.RightArm), len(r.LeftGrip), len(r.RightGrip))
	}
	if err := r.LeftArm.Validate(); err != nil {
		return fmt.Errorf("recording %q left arm: %w", r.Name, err)
	}
	if err := r.RightArm.Validate(); err != nil {
		return fmt.Errorf("recording %q right arm: %w", r.Name, err)
	}
	if r.Hz <= 0 {
		return fmt.Errorf("recording %q: hz must be positive, got %d", r.Name, r.Hz)
	}
	return nil
}

// Duration returns the recording length in seconds.
func (r *Recording) Duration() float64 {
	if r.Hz <= 0 || r.Len() == 0 {
		return 0
	}
	return float64(r.Len()-1) / float64(r.Hz)
}

// Load reads a recording from a JSON file.
func Load(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse recording JSON: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save writes the recording to a JSON file.
func (r *Recording) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RemoveDuplicateRows drops every row equal to the row before it. The first
// row is always kept.
func RemoveDuplicateRows(x resample.Signal) resample.Signal {
	keep := UniqueRowIndices(x)
	out := make(resample.Signal, len(keep))
	for i, k := range keep {
		out[i] = slices.Clone(x[k])
	}
	return out
}

// UniqueRowIndices returns the indices of the rows RemoveDuplicateRows keeps.
func UniqueRowIndices(x resample.Signal) []int {
	keep := make([]int, 0, len(x))
	for i, row := range x {
		if i > 0 && slices.Equal(row, x[i-1]) {
			continue
		}
		keep = append(keep, i)
	}
	return keep
}

// Concat joins a and b column-wise. Both must have the same number of rows.
func Concat(a, b resample.Signal) (resample.Signal, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("concat: %d rows vs %d rows", len(a), len(b))
	}
	out := make(resample.Signal, len(a))
	for i := range a {
		row := make([]float64, 0, len(a[i])+len(b[i]))
		out[i] = append(append(row, a[i]...), b[i]...)
	}
	return out, nil
}

// SplitColumns is the inverse of Concat: the first k columns go to left, the
// rest to right.
func SplitColumns(x resample.Signal, k int) (left, right resample.Signal) {
	left = make(resample.Signal, len(x))
	right = make(resample.Signal, len(x))
	for i, row := range x {
		left[i] = slices.Clone(row[:k])
		right[i] = slices.Clone(row[k:])
	}
	return left, right
}
