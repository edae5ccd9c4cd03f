// Package demoreplay records and replays demonstrations on pairs of SO-101
// robot arms.
//
// A demonstration is recorded by teleoperation: leader arms are moved by hand
// while their followers mirror them. The recording is split into segments
// wherever a gripper opens or closes, and each segment's arm trajectory is
// reduced to a few waypoints that reproduce it within a tolerance. Replay
// streams those waypoints to the follower arms.
//
// # Installation
//
//	go install github.com/gwillem/demoreplay/cmd/lerobot@latest
//
// # Usage
//
// First, run setup to detect and calibrate your robot arms:
//
//	lerobot setup
//
// Then record, inspect and replay a demonstration:
//
//	lerobot record --name pick-cup
//	lerobot inspect pick-cup
//	lerobot replay pick-cup
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/lerobot: CLI with setup, record, inspect, replay and demo store commands
//   - pkg/resample: Adaptive waypoint selection for multi-channel signals
//   - pkg/segment: Gripper-transition segmentation of dual-arm recordings
//   - pkg/trajectory: Recorded demonstrations
//   - pkg/plan: Replay plans and kinematic retargeting
//   - pkg/replay: Plan playback on follower arms
//   - pkg/demostore: SQLite storage for demonstrations
//   - pkg/robot: Arm control, calibration, and configuration
//   - pkg/teleop: Teleoperation and recording controller
//   - pkg/logger, pkg/envconfig: CLI logging and environment settings
package demoreplay
