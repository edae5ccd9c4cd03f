package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gwillem/demoreplay/pkg/envconfig"
	"github.com/gwillem/demoreplay/pkg/plan"
	"github.com/gwillem/demoreplay/pkg/replay"
	"github.com/gwillem/demoreplay/pkg/robot"
)

type ReplayCommand struct {
	PlanFlags
	Hz     int     `long:"hz" description:"Playback frequency (default $LEROBOT_REPLAY_HZ or the config's hz)"`
	Speed  float64 `long:"speed" description:"Playback speed relative to the recording (default $LEROBOT_REPLAY_SPEED or 1)"`
	Chart  string  `long:"chart" default:"left" choice:"left" choice:"right" description:"Follower arm to chart"`
	DryRun bool    `long:"dry-run" description:"Print the plan without moving the arms"`
	Args   demoArg `positional-args:"yes" required:"yes"`
}

type replayModel struct {
	player   *replay.Player
	chart    *motorChart
	side     plan.Side
	state    replay.State
	err      error
	quitting bool
}

type playStateMsg replay.State

func waitForPlayState(p *replay.Player) tea.Cmd {
	return func() tea.Msg {
		return playStateMsg(<-p.States())
	}
}

func (m replayModel) Init() tea.Cmd {
	return tea.Batch(
		waitForPlayState(m.player),
		waitForLog(m.player.Logs()),
	)
}

func (m replayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.chart.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case playStateMsg:
		m.state = replay.State(msg)
		if m.state.Error != nil {
			m.err = m.state.Error
			return m, tea.Quit
		}
		if m.state.Done {
			m.quitting = true
			return m, tea.Quit
		}
		f := m.state.Frame
		if m.side == plan.Right {
			m.chart.push(robot.Positions(f.Right, f.RightGrip))
		} else {
			m.chart.push(robot.Positions(f.Left, f.LeftGrip))
		}
		return m, waitForPlayState(m.player)

	case logMsg:
		m.chart.addLog(string(msg))
		return m, waitForLog(m.player.Logs())
	}

	return m, nil
}

func (m replayModel) View() string {
	if m.quitting {
		return "Replay stopped.\n"
	}
	header := titleStyle.Render("LeRobot Replay") +
		fmt.Sprintf(" - %d Hz - %s follower", m.player.Hz(), m.side) +
		statusStyle.Render(fmt.Sprintf("  [step %d/%d, frame %d/%d]",
			m.state.Frame.Step+1, m.state.Steps, m.state.Index+1, m.player.Frames()))
	return m.chart.render(header, "Press 'q' to stop")
}

func (c *ReplayCommand) Execute(args []string) error {
	rec, err := loadRecording(c.Args.Demo)
	if err != nil {
		return err
	}
	settings := c.apply(replayConfig())

	p, err := plan.Build(context.Background(), rec, planOptions(settings))
	if err != nil {
		return fmt.Errorf("plan %q: %w", rec.Name, err)
	}

	hz := c.Hz
	if hz <= 0 {
		hz = envconfig.GetEnvInt(envconfig.ReplayHz, settings.Hz)
	}
	speed := c.Speed
	if speed <= 0 {
		speed = envconfig.GetEnvFloat(envconfig.ReplaySpeed, 1)
	}

	if c.DryRun {
		frames, err := replay.Frames(p, hz, speed)
		if err != nil {
			return err
		}
		fmt.Println(headerStyle.Render(fmt.Sprintf("Plan for %q (dry run)", rec.Name)))
		fmt.Println(segmentTable(p, rec).Render())
		fmt.Printf("%d waypoints, %d frames at %d Hz (%.1fs at %.2gx)\n",
			p.Waypoints(), len(frames), hz, float64(len(frames))/float64(hz), speed)
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	exec, closeArms, err := openFollowers(cfg)
	if err != nil {
		return err
	}
	defer closeArms()

	player, err := replay.NewPlayer(exec, p, replay.Config{Hz: hz, Speed: speed})
	if err != nil {
		return err
	}
	log.Info("replaying",
		slog.String("name", rec.Name),
		slog.Int("segments", len(p.Steps)),
		slog.Int("waypoints", p.Waypoints()),
		slog.Duration("duration", player.Duration()),
	)

	side := plan.Left
	if c.Chart == "right" {
		side = plan.Right
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- player.Play(ctx) }()

	final, runErr := tea.NewProgram(replayModel{player: player, chart: newMotorChart(), side: side}, tea.WithAltScreen()).Run()
	cancel()
	playErr := <-done
	if runErr != nil {
		return fmt.Errorf("run program: %w", runErr)
	}
	if m, ok := final.(replayModel); ok && m.err != nil {
		return m.err
	}
	if playErr != nil && !errors.Is(playErr, context.Canceled) {
		return playErr
	}
	return nil
}

// openFollowers connects the follower arms. The right follower is optional.
func openFollowers(cfg *robot.Config) (replay.ArmExecutor, func(), error) {
	var exec replay.ArmExecutor

	left, err := robot.OpenArm(cfg.Left.Follower)
	if err != nil {
		return exec, nil, fmt.Errorf("open left follower: %w", err)
	}
	exec.Left = left

	if cfg.Right.Follower.Port != "" {
		right, err := robot.OpenArm(cfg.Right.Follower)
		if err != nil {
			left.Close()
			return exec, nil, fmt.Errorf("open right follower: %w", err)
		}
		exec.Right = right
	} else {
		log.Info("right follower not configured, replaying left arm only")
	}

	closer := func() {
		for _, a := range []*robot.Arm{exec.Left, exec.Right} {
			if a == nil {
				continue
			}
			if err := a.Close(); err != nil {
				log.Warn("close arm", slog.String("port", a.Port()), slog.Any("err", err))
			}
		}
	}
	return exec, closer, nil
}
