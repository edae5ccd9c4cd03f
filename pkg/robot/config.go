package robot

import (
	"encoding/json"
	"os"

	"github.com/gwillem/demoreplay/pkg/segment"
)

const DefaultConfigFile = "lerobot.json"

// Config holds the robot configuration: a leader/follower pair per side and
// the replay settings.
type Config struct {
	Left   ArmPair      `json:"left"`
	Right  ArmPair      `json:"right"`
	Replay ReplayConfig `json:"replay"`
}

// ArmPair is a leader arm moved by hand and the follower that mirrors it.
type ArmPair struct {
	Leader   ArmConfig `json:"leader"`
	Follower ArmConfig `json:"follower"`
}

// ArmConfig holds configuration for a single arm
type ArmConfig struct {
	Port        string      `json:"port"`
	Calibration Calibration `json:"calibration,omitempty"`
}

// ReplayConfig holds the resampling and gripper settings used to turn a
// recording into a replay plan.
type ReplayConfig struct {
	Tol         float64 `json:"tol"`
	MaxChange   float64 `json:"max_change,omitempty"` // 0 means unbounded
	MinSteps    int     `json:"min_steps"`
	Hz          int     `json:"hz"`
	Threshold   float64 `json:"gripper_threshold"`
	OpenAngle   float64 `json:"open_angle"`
	ClosedAngle float64 `json:"closed_angle"`
}

// DefaultReplayConfig returns the stock replay settings: about 1.4 degrees of
// tolerance and at most 5.7 degrees of change between waypoints.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Tol:         0.025,
		MaxChange:   0.1,
		MinSteps:    3,
		Hz:          30,
		Threshold:   segment.DefaultThreshold,
		OpenAngle:   segment.DefaultOpenAngle,
		ClosedAngle: segment.DefaultClosedAngle,
	}
}

// Gripper returns the segmenter configuration.
func (r ReplayConfig) Gripper() segment.Config {
	return segment.Config{
		Threshold:   r.Threshold,
		OpenAngle:   r.OpenAngle,
		ClosedAngle: r.ClosedAngle,
	}
}

// IsCalibrated returns true if the arm has calibration data
func (a *ArmConfig) IsCalibrated() bool {
	return len(a.Calibration) > 0
}

// IsConfigured returns true if both arms of the pair have a port.
func (p *ArmPair) IsConfigured() bool {
	return p.Leader.Port != "" && p.Follower.Port != ""
}

// IsCalibrated returns true if both arms of the pair are calibrated.
func (p *ArmPair) IsCalibrated() bool {
	return p.Leader.IsCalibrated() && p.Follower.IsCalibrated()
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file. Replay settings
// missing from the file keep their defaults.
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Config{Replay: DefaultReplayConfig()}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the config file exists
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
