package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"

	"github.com/gwillem/demoreplay/pkg/demostore"
	"github.com/gwillem/demoreplay/pkg/envconfig"
	"github.com/gwillem/demoreplay/pkg/logger"
	"github.com/gwillem/demoreplay/pkg/plan"
	"github.com/gwillem/demoreplay/pkg/resample"
	"github.com/gwillem/demoreplay/pkg/robot"
	"github.com/gwillem/demoreplay/pkg/trajectory"
)

type Options struct {
	Config    string `long:"config" description:"Robot configuration file (default $LEROBOT_CONFIG or lerobot.json)"`
	DB        string `long:"db" description:"Demo database (default $LEROBOT_DB or demos.db)"`
	LogLevel  string `long:"log-level" description:"Log level: debug, info, warn, error"`
	LogFormat string `long:"log-format" description:"Log format: text or json"`

	Setup   SetupCommand   `command:"setup" description:"Scan for arms and calibrate them"`
	Record  RecordCommand  `command:"record" alias:"teleop" description:"Teleoperate and record a demonstration"`
	Inspect InspectCommand `command:"inspect" description:"Show how a demonstration is segmented and resampled"`
	Replay  ReplayCommand  `command:"replay" description:"Replay a demonstration on the follower arms"`
	List    ListCommand    `command:"list" alias:"ls" description:"List stored demonstrations"`
	Export  ExportCommand  `command:"export" description:"Write a stored demonstration to a JSON file"`
	Import  ImportCommand  `command:"import" description:"Store a demonstration from a JSON file"`
	Delete  DeleteCommand  `command:"delete" alias:"rm" description:"Delete a stored demonstration"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

// log is configured from the global options before any command runs.
var log = slog.Default()

func main() {
	parser.LongDescription = "LeRobot - record and replay demonstrations on SO-101 arm pairs"

	// A missing .env is fine
	_ = envconfig.Load()

	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		log = logger.New(
			orEnv(opts.LogLevel, envconfig.LogLevel, "info"),
			orEnv(opts.LogFormat, envconfig.LogFormat, "text"),
		)
		slog.SetDefault(log)
		return cmd.Execute(args)
	}

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

func orEnv(flag, key, fallback string) string {
	if flag != "" {
		return flag
	}
	return envconfig.GetEnv(key, fallback)
}

func configPath() string {
	return orEnv(opts.Config, envconfig.ConfigPath, robot.DefaultConfigFile)
}

func loadConfig() (*robot.Config, error) {
	path := configPath()
	cfg, err := robot.LoadConfigFrom(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no configuration found at %s, run 'lerobot setup' first", path)
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	log.Debug("loaded configuration", slog.String("path", path))
	return cfg, nil
}

// replayConfig returns the replay settings from the config file, or the
// defaults when there is none.
func replayConfig() robot.ReplayConfig {
	cfg, err := robot.LoadConfigFrom(configPath())
	if err != nil {
		return robot.DefaultReplayConfig()
	}
	return cfg.Replay
}

func openStore() (*demostore.Store, error) {
	path := orEnv(opts.DB, envconfig.DBPath, demostore.DefaultPath)
	store, err := demostore.Open(path)
	if err != nil {
		return nil, err
	}
	log.Debug("opened demo store", slog.String("path", path))
	return store, nil
}

// loadRecording resolves ref as a JSON file, then as a stored demo name,
// then as a stored demo ID.
func loadRecording(ref string) (*trajectory.Recording, error) {
	if filepath.Ext(ref) == ".json" {
		if _, err := os.Stat(ref); err == nil {
			return trajectory.Load(ref)
		}
	}

	store, err := openStore()
	if err != nil {
		return nil, err
	}
	defer store.Close()

	demo, err := store.GetByName(ref)
	if errors.Is(err, demostore.ErrNotFound) {
		demo, err = store.Get(ref)
	}
	if err != nil {
		return nil, fmt.Errorf("demo %q: %w", ref, err)
	}
	return demo.Recording, nil
}

// planOptions builds plan options from replay settings.
func planOptions(r robot.ReplayConfig) plan.Options {
	o := resample.Options{Tol: []float64{r.Tol}, MinSteps: r.MinSteps}
	if r.MaxChange > 0 {
		o.MaxChange = []float64{r.MaxChange}
	}
	return plan.Options{Resample: o, Gripper: r.Gripper()}
}
