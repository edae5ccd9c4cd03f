package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/demoreplay/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const servoCount = 6

var errAborted = errors.New("setup aborted")

type SetupCommand struct {
	Recalibrate    bool   `long:"recalibrate" description:"Keep assigned ports and only redo calibration"`
	CalibrationDir string `long:"calibration-dir" description:"Read calibrations from <dir>/<side>_<role>.json instead of recording them"`
}

// armSlot is one of the four arm positions in the config.
type armSlot struct {
	label string
	arm   *robot.ArmConfig
}

// file is the calibration file name for the slot, e.g. left_leader.json.
func (s armSlot) file() string {
	return strings.ReplaceAll(s.label, " ", "_") + ".json"
}

func armSlots(cfg *robot.Config) []armSlot {
	return []armSlot{
		{"left leader", &cfg.Left.Leader},
		{"left follower", &cfg.Left.Follower},
		{"right leader", &cfg.Right.Leader},
		{"right follower", &cfg.Right.Follower},
	}
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("LeRobot Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━"))
	fmt.Println()

	path := configPath()
	cfg := &robot.Config{Replay: robot.DefaultReplayConfig()}
	if robot.ConfigExists(path) {
		existing, err := robot.LoadConfigFrom(path)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
		cfg.Replay = existing.Replay
		if c.Recalibrate {
			cfg = existing
		}
	}

	// Step 1: Scan for arms and assign them to slots
	if !c.Recalibrate {
		if err := assignArms(cfg); err != nil {
			return err
		}
	}
	if !cfg.Left.IsConfigured() {
		return errors.New("the left leader and follower are required")
	}

	// Step 2: Calibrate every assigned arm, saving after each
	for _, slot := range armSlots(cfg) {
		if slot.arm.Port == "" {
			continue
		}
		fmt.Println()
		fmt.Println(subHeaderStyle.Render(fmt.Sprintf("━━━ Calibrating %s arm ━━━", capitalize(slot.label))))
		fmt.Println()
		if c.CalibrationDir != "" {
			if err := importCalibration(slot, c.CalibrationDir); err != nil {
				return err
			}
		} else if err := calibrateArm(slot); err != nil {
			return err
		}
		if err := cfg.SaveTo(path); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", path)
	if !cfg.Right.IsConfigured() {
		fmt.Println(dimStyle.Render("Right pair not configured: recordings hold the right arm at rest."))
	}
	fmt.Println()
	fmt.Println("Record a demonstration with: " + headerStyle.Render("lerobot record --name <name>"))

	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func assignArms(cfg *robot.Config) error {
	fmt.Println("Scanning for robot arms...")
	fmt.Println()

	arms := findArms()
	if len(arms) == 0 {
		fmt.Println("Make sure your arms are connected and powered on.")
		return errors.New("no SO-101 arms found")
	}

	fmt.Printf("Found %d arm(s). Let's identify them...\n\n", len(arms))

	slots := armSlots(cfg)
	for _, slot := range slots {
		*slot.arm = robot.ArmConfig{}
	}

	for _, arm := range arms {
		var open []armSlot
		for _, slot := range slots {
			if slot.arm.Port == "" {
				open = append(open, slot)
			}
		}
		if len(open) == 0 {
			arm.bus.Close()
			continue
		}

		slot, err := identifyArmWithWiggle(arm, open)
		if err != nil {
			return err
		}
		if slot != nil {
			slot.arm.Port = arm.port
		}
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Arms identified:"))
	for _, slot := range slots {
		port := slot.arm.Port
		if port == "" {
			port = dimStyle.Render("(none)")
		}
		fmt.Printf("  %-15s %s\n", slot.label+":", port)
	}
	return nil
}

type armInfo struct {
	port   string
	servos []feetech.FoundServo
	bus    *feetech.Bus
}

func findArms() []armInfo {
	ports, err := serial.GetPortsList()
	if err != nil {
		log.Error("list serial ports", slog.Any("err", err))
		return nil
	}

	var arms []armInfo
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		bus, servos, err := connectToArm(port)
		if err != nil {
			log.Debug("skip port", slog.String("port", port), slog.Any("err", err))
			continue
		}
		fmt.Printf("  Found SO-101 arm on %s\n", port)
		arms = append(arms, armInfo{port: port, servos: servos, bus: bus})
	}
	return arms
}

// isSOArm reports whether servos are exactly IDs 1-6.
func isSOArm(servos []feetech.FoundServo) bool {
	if len(servos) != servoCount {
		return false
	}
	ids := make(map[int]bool, len(servos))
	for _, s := range servos {
		ids[s.ID] = true
	}
	for i := 1; i <= servoCount; i++ {
		if !ids[i] {
			return false
		}
	}
	return true
}

// identifyArmWithWiggle moves the shoulder of arm and asks which of the open
// slots it belongs to. A nil slot means the user skipped the arm.
func identifyArmWithWiggle(arm armInfo, open []armSlot) (*armSlot, error) {
	defer arm.bus.Close()

	ctx := context.Background()

	var servo *feetech.Servo
	for _, s := range arm.servos {
		if s.ID == 1 {
			servo = feetech.NewServo(arm.bus, s.ID, s.Model)
			break
		}
	}
	if servo == nil {
		return nil, nil
	}

	if err := wiggle(ctx, servo); err != nil {
		fmt.Println(warnStyle.Render(fmt.Sprintf("  Could not wiggle arm on %s: %v", arm.port, err)))
	}

	options := make([]huh.Option[int], 0, len(open)+1)
	for i, slot := range open {
		options = append(options, huh.NewOption(capitalize(slot.label), i))
	}
	options = append(options, huh.NewOption("Skip this arm", -1))

	choice := -1
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title(fmt.Sprintf("Which arm is on %s?", arm.port)).
				Description("The arm that just wiggled. Leaders are moved by hand, followers copy them.").
				Options(options...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return nil, errAborted
	}

	if choice < 0 {
		return nil, nil
	}
	return &open[choice], nil
}

// wiggle makes one slow back-and-forth move on servo and releases it.
func wiggle(ctx context.Context, servo *feetech.Servo) error {
	const (
		amount   = 30
		moveTime = 500 * time.Millisecond
	)

	origin, err := servo.Position(ctx)
	if err != nil {
		return fmt.Errorf("read position: %w", err)
	}
	if err := servo.Enable(ctx); err != nil {
		return fmt.Errorf("enable servo: %w", err)
	}
	defer servo.Disable(ctx)

	for _, target := range []int{origin + amount, origin - amount, origin} {
		servo.SetPositionWithTime(ctx, target, int(moveTime.Milliseconds()))
		time.Sleep(moveTime + 100*time.Millisecond)
	}
	return nil
}

func connectToArm(port string) (*feetech.Bus, []feetech.FoundServo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}

	servos, err := bus.Scan(ctx, 1, servoCount)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}

	if !isSOArm(servos) {
		bus.Close()
		return nil, nil, fmt.Errorf("not an SO-101 arm (expected 6 servos with IDs 1-6)")
	}

	return bus, servos, nil
}

func calibrateArm(slot armSlot) error {
	fmt.Printf("Calibrating %s arm on %s\n", slot.label, slot.arm.Port)
	fmt.Println()

	bus, servos, err := connectToArm(slot.arm.Port)
	if err != nil {
		return fmt.Errorf("connect %s: %w", slot.label, err)
	}
	defer bus.Close()

	ctx := context.Background()
	servoMap := make(map[int]*feetech.Servo, len(servos))
	for _, s := range servos {
		servo := feetech.NewServo(bus, s.ID, s.Model)
		// Free the arm so it can be moved by hand
		if err := servo.Disable(ctx); err != nil {
			log.Warn("disable servo", slog.Int("id", s.ID), slog.Any("err", err))
		}
		servoMap[s.ID] = servo
	}

	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Move each joint to its minimum AND maximum positions.")
	fmt.Println("Explore the full range of motion for all joints.")
	fmt.Println()

	model := newCalibrationModel(servoMap)
	finalModel, err := tea.NewProgram(model).Run()
	if err != nil {
		return fmt.Errorf("run calibration: %w", err)
	}
	cm := finalModel.(calibrationModel)
	if cm.aborted {
		return errAborted
	}

	cal := cm.calibration()
	if err := cal.Validate(); err != nil {
		return fmt.Errorf("%s: %w (move every joint through its full range)", slot.label, err)
	}
	slot.arm.Calibration = cal
	fmt.Println()
	fmt.Printf("%s arm calibrated.\n", capitalize(slot.label))
	return nil
}

func importCalibration(slot armSlot, dir string) error {
	path := filepath.Join(dir, slot.file())
	cal, err := robot.LoadCalibration(path)
	if err != nil {
		return fmt.Errorf("%s: %w", slot.label, err)
	}
	if err := cal.Validate(); err != nil {
		return fmt.Errorf("%s: %s: %w", slot.label, path, err)
	}
	slot.arm.Calibration = cal
	fmt.Printf("%s calibration read from %s\n", capitalize(slot.label), path)
	return nil
}

// motorRange tracks the observed raw positions of one motor.
type motorRange struct {
	id            int
	cur, min, max int
	seen          bool
}

func (r *motorRange) observe(pos int) {
	r.cur = pos
	if !r.seen {
		r.min, r.max, r.seen = pos, pos, true
		return
	}
	r.min = min(r.min, pos)
	r.max = max(r.max, pos)
}

func (r *motorRange) span() int {
	return r.max - r.min
}

// Calibration TUI model
type calibrationModel struct {
	motors   []robot.MotorName
	servoMap map[int]*feetech.Servo
	ranges   map[robot.MotorName]*motorRange
	quitting bool
	aborted  bool
}

type tickMsg time.Time

func newCalibrationModel(servoMap map[int]*feetech.Servo) calibrationModel {
	motors := robot.AllMotors()
	ranges := make(map[robot.MotorName]*motorRange, len(motors))
	for i, name := range motors {
		ranges[name] = &motorRange{id: i + 1}
	}
	m := calibrationModel{motors: motors, servoMap: servoMap, ranges: ranges}
	m.poll()
	return m
}

func (m calibrationModel) poll() {
	ctx := context.Background()
	for _, name := range m.motors {
		r := m.ranges[name]
		servo, ok := m.servoMap[r.id]
		if !ok {
			continue
		}
		pos, err := servo.Position(ctx)
		if err != nil {
			continue
		}
		r.observe(pos)
	}
}

func (m calibrationModel) calibration() robot.Calibration {
	cal := make(robot.Calibration, len(m.motors))
	for _, name := range m.motors {
		r := m.ranges[name]
		cal[name] = robot.MotorCalibration{ID: r.id, RangeMin: r.min, RangeMax: r.max}
	}
	return cal
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m calibrationModel) Init() tea.Cmd {
	return tick()
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q":
			m.quitting = true
			return m, tea.Quit
		case "ctrl+c":
			m.quitting = true
			m.aborted = true
			return m, tea.Quit
		}

	case tickMsg:
		m.poll()
		return m, tick()
	}

	return m, nil
}

func (m calibrationModel) View() string {
	if m.quitting {
		return ""
	}

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableMotorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(m.motors))
	spans := make([]int, 0, len(m.motors))
	for _, name := range m.motors {
		r := m.ranges[name]
		spans = append(spans, r.span())
		rows = append(rows, []string{
			string(name),
			fmt.Sprintf("%d", r.cur),
			fmt.Sprintf("%d", r.min),
			fmt.Sprintf("%d", r.max),
			fmt.Sprintf("%d", r.span()),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Motor", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableMotorStyle
			case 1:
				return tableCurrentStyle
			case 4:
				if row >= 0 && row < len(spans) && spans[row] > 500 {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	return t.Render() + "\n\n" + dimStyle.Render("Press Enter when done, ctrl+c to abort")
}
