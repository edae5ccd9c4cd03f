package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gwillem/demoreplay/pkg/plan"
	"github.com/gwillem/demoreplay/pkg/teleop"
)

type RecordCommand struct {
	Name   string `long:"name" short:"n" required:"true" description:"Demonstration name"`
	Hz     int    `long:"hz" default:"30" description:"Recording frequency"`
	Mirror bool   `long:"mirror" description:"Mirror mode: invert shoulder_pan and wrist_roll positions"`
	Chart  string `long:"chart" default:"left" choice:"left" choice:"right" description:"Leader arm to chart"`
	Out    string `long:"out" short:"o" description:"Also write the recording to this JSON file"`
}

type recordModel struct {
	ctrl     *teleop.Controller
	chart    *motorChart
	side     plan.Side
	steps    int
	started  time.Time
	quitting bool
}

// Messages from the controller
type stateMsg teleop.State
type logMsg string

func waitForState(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(logs <-chan string) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-logs)
	}
}

func (m recordModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl.Logs()),
	)
}

func (m recordModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.chart.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "enter":
			m.quitting = true
			return m, tea.Quit
		}

	case stateMsg:
		state := teleop.State(msg)
		if state.Error == nil {
			m.steps = state.Step
			if m.side == plan.Right {
				m.chart.push(state.Right)
			} else {
				m.chart.push(state.Left)
			}
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.chart.addLog(string(msg))
		return m, waitForLog(m.ctrl.Logs())
	}

	return m, nil
}

func (m recordModel) View() string {
	if m.quitting {
		return "Recording stopped.\n"
	}
	header := titleStyle.Render("LeRobot Record") +
		fmt.Sprintf(" - %d Hz - %s leader", m.ctrl.Hz(), m.side) +
		statusStyle.Render(fmt.Sprintf("  [%d steps, %s]", m.steps, time.Since(m.started).Truncate(time.Second)))
	return m.chart.render(header, "Press 'q' or Enter to stop recording")
}

func (c *RecordCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Left.IsConfigured() || !cfg.Left.IsCalibrated() {
		return errors.New("left arms not configured or calibrated, run 'lerobot setup' first")
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	if _, err := store.GetByName(c.Name); err == nil {
		return fmt.Errorf("demo %q already exists", c.Name)
	}

	left, closeLeft, err := teleop.OpenPair(cfg.Left)
	if err != nil {
		return fmt.Errorf("open left pair: %w", err)
	}
	defer closeLeft()

	var right *teleop.Pair
	if cfg.Right.IsConfigured() && cfg.Right.IsCalibrated() {
		pair, closeRight, err := teleop.OpenPair(cfg.Right)
		if err != nil {
			return fmt.Errorf("open right pair: %w", err)
		}
		defer closeRight()
		right = pair
	} else {
		log.Info("right pair not configured, recording left arm only")
	}

	ctrl, err := teleop.NewController(teleop.Config{
		Name:   c.Name,
		Left:   left,
		Right:  right,
		Hz:     c.Hz,
		Mirror: c.Mirror,
	})
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}

	side := plan.Left
	if c.Chart == "right" {
		side = plan.Right
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Start(ctx) }()

	p := tea.NewProgram(recordModel{ctrl: ctrl, chart: newMotorChart(), side: side, started: time.Now()}, tea.WithAltScreen())
	_, runErr := p.Run()
	cancel()
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		log.Error("controller stopped", slog.Any("err", err))
	}
	if runErr != nil {
		return fmt.Errorf("run program: %w", runErr)
	}

	rec := ctrl.Recording()
	if rec.Len() == 0 {
		return errors.New("nothing recorded")
	}

	demo, err := store.Put(rec)
	if err != nil {
		return fmt.Errorf("store recording: %w", err)
	}
	if c.Out != "" {
		if err := rec.Save(c.Out); err != nil {
			return fmt.Errorf("write %s: %w", c.Out, err)
		}
	}

	segs, err := cfg.Replay.Gripper().Split(rec.LeftArm, rec.RightArm, rec.LeftGrip, rec.RightGrip)
	if err != nil {
		return err
	}
	log.Info("recorded demonstration",
		slog.String("name", demo.Name),
		slog.String("id", demo.ID),
		slog.Int("steps", demo.Steps),
		slog.Float64("seconds", rec.Duration()),
		slog.Int("segments", len(segs)),
	)
	fmt.Println(successStyle.Render(fmt.Sprintf("Saved %q: %d steps, %d segments", demo.Name, demo.Steps, len(segs))))
	fmt.Println("Inspect it with: " + headerStyle.Render("lerobot inspect "+demo.Name))
	return nil
}
