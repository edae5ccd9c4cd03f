// Package envconfig reads settings from the environment and an optional .env
// file.
package envconfig

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables read by the command line tools.
const (
	ConfigPath = "LEROBOT_CONFIG"
	DBPath     = "LEROBOT_DB"
	LogLevel   = "LEROBOT_LOG_LEVEL"
	LogFormat  = "LEROBOT_LOG_FORMAT"

	ReplayHz    = "LEROBOT_REPLAY_HZ"
	ReplaySpeed = "LEROBOT_REPLAY_SPEED"
)

// Load reads the .env file from the current working directory and sets
// environment variables that are not already set. With no paths, ".env" is
// used. A missing file is an error the caller may ignore.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvFloat is GetEnvInt for floating point values.
func GetEnvFloat(key string, fallback float64) float64 {
	if s := os.Getenv(key); s != "" {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return fallback
}
