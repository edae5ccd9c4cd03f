// Package robot provides abstractions for controlling robot arms.
package robot

import "math"

// MotorName identifies a motor in the arm.
type MotorName string

// Motor names for the SO-101 arm.
const (
	ShoulderPan  MotorName = "shoulder_pan"
	ShoulderLift MotorName = "shoulder_lift"
	ElbowFlex    MotorName = "elbow_flex"
	WristFlex    MotorName = "wrist_flex"
	WristRoll    MotorName = "wrist_roll"
	Gripper      MotorName = "gripper"
)

// AllMotors returns all motor names in order (matching servo IDs 1-6).
func AllMotors() []MotorName {
	return append(ArmJoints(), Gripper)
}

// ArmJoints returns the motors that make up the arm's joint vector, in
// servo ID order. The gripper is tracked separately.
func ArmJoints() []MotorName {
	return []MotorName{
		ShoulderPan,
		ShoulderLift,
		ElbowFlex,
		WristFlex,
		WristRoll,
	}
}

// RadiansPerUnit converts normalized positions ([-100, 100]) to joint angles.
const RadiansPerUnit = math.Pi / 100

// MaxGripperOpening is the gripper opening reported at normalized position
// 100. The fully closed gripper (-100) reports 0.
const MaxGripperOpening = 0.1

// GripperOpening maps a normalized gripper position to an opening in
// [0, MaxGripperOpening].
func GripperOpening(norm float64) float64 {
	return (clampNorm(norm) + 100) / 200 * MaxGripperOpening
}

// GripperNorm is the inverse of GripperOpening.
func GripperNorm(opening float64) float64 {
	return clampNorm(opening/MaxGripperOpening*200 - 100)
}

// Joints converts normalized positions to a joint vector in radians, ordered
// as ArmJoints. Missing motors read as 0.
func Joints(positions map[MotorName]float64) []float64 {
	names := ArmJoints()
	joints := make([]float64, len(names))
	for i, name := range names {
		joints[i] = positions[name] * RadiansPerUnit
	}
	return joints
}

// Positions is the inverse of Joints, with the gripper set from an opening.
func Positions(joints []float64, opening float64) map[MotorName]float64 {
	positions := make(map[MotorName]float64, len(joints)+1)
	for i, name := range ArmJoints() {
		if i >= len(joints) {
			break
		}
		positions[name] = clampNorm(joints[i] / RadiansPerUnit)
	}
	positions[Gripper] = GripperNorm(opening)
	return positions
}

func clampNorm(v float64) float64 {
	return math.Max(-100, math.Min(100, v))
}
