package robot

import (
	"context"
	"fmt"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// Arm represents a robot arm with multiple servos.
type Arm struct {
	port        string
	bus         *feetech.Bus
	group       *feetech.ServoGroup
	calibration Calibration
}

// NewArm creates and initializes an arm connection.
func NewArm(port string, cal Calibration) (*Arm, error) {
	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus %s: %w", port, err)
	}

	group := feetech.NewServoGroupByIDs(bus, cal.MotorIDs()...)

	return &Arm{
		port:        port,
		bus:         bus,
		group:       group,
		calibration: cal,
	}, nil
}

// OpenArm connects to a configured, calibrated arm.
func OpenArm(cfg ArmConfig) (*Arm, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("arm has no port")
	}
	if !cfg.IsCalibrated() {
		return nil, fmt.Errorf("arm on %s is not calibrated", cfg.Port)
	}
	if err := cfg.Calibration.Validate(); err != nil {
		return nil, fmt.Errorf("arm on %s: %w", cfg.Port, err)
	}
	return NewArm(cfg.Port, cfg.Calibration)
}

// Port returns the serial port the arm is connected on.
func (a *Arm) Port() string {
	return a.port
}

// Close closes the arm's bus connection.
func (a *Arm) Close() error {
	return a.bus.Close()
}

// Enable enables torque on all servos.
func (a *Arm) Enable(ctx context.Context) error {
	return a.group.EnableAll(ctx)
}

// Disable disables torque on all servos.
func (a *Arm) Disable(ctx context.Context) error {
	return a.group.DisableAll(ctx)
}

// ReadPositions reads current positions from all motors.
// Returns normalized positions in the range [-100, 100].
func (a *Arm) ReadPositions(ctx context.Context) (map[MotorName]float64, error) {
	rawPositions, err := a.group.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	positions := make(map[MotorName]float64, len(rawPositions))
	for id, raw := range rawPositions {
		name, cal, ok := a.calibration.ByID(id)
		if !ok {
			continue
		}
		positions[name] = cal.Normalize(raw)
	}

	return positions, nil
}

// WritePositions writes target positions to all motors.
// Takes normalized positions in the range [-100, 100].
func (a *Arm) WritePositions(ctx context.Context, positions map[MotorName]float64) error {
	rawPositions := make(feetech.PositionMap, len(positions))
	for name, norm := range positions {
		cal, ok := a.calibration[name]
		if !ok {
			continue
		}
		rawPositions[cal.ID] = cal.Denormalize(norm)
	}

	if err := a.group.SetPositions(ctx, rawPositions); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}

	return nil
}

// ReadJoints reads the joint vector in radians and the gripper opening.
func (a *Arm) ReadJoints(ctx context.Context) (joints []float64, opening float64, err error) {
	positions, err := a.ReadPositions(ctx)
	if err != nil {
		return nil, 0, err
	}
	return Joints(positions), GripperOpening(positions[Gripper]), nil
}

// WriteJoints moves the arm to a joint vector in radians and sets the gripper
// opening.
func (a *Arm) WriteJoints(ctx context.Context, joints []float64, opening float64) error {
	return a.WritePositions(ctx, Positions(joints, opening))
}
