// Package config loads taskgate's runtime configuration.
//
// Configuration is layered: an optional TOML file (ambient concerns -
// logging, task history retention) overlaid by the environment variables
// spec.md §6 names for the orchestrator's core knobs. Environment variables
// always win over file values, mirroring cmd/iter-service's ITER_* override
// behavior in the teacher.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// MockTruthy is the pinned, case-insensitive truthiness set for AGENT_MOCK.
var MockTruthy = map[string]bool{
	"1": true, "true": true, "yes": true, "on": true,
}

// Logging holds ambient diagnostic-logging configuration.
type Logging struct {
	Level      string   `toml:"level"`
	Format     string   `toml:"format"` // "json" (default) or "text"
	Output     []string `toml:"output"` // subset of {"console","file"}; console always implied
	Dir        string   `toml:"dir"`
	TimeFormat string   `toml:"time_format"`
	MaxSizeMB  int      `toml:"max_size_mb"`
	MaxBackups int      `toml:"max_backups"`
}

// Config is the fully resolved taskgate configuration.
type Config struct {
	Logging Logging `toml:"logging"`

	// AgentCLIPath is the absolute or PATH-resolvable path to the coding
	// agent CLI binary the Process Supervisor spawns.
	AgentCLIPath string `toml:"agent_cli_path"`

	// AgentMock, when true, short-circuits the Supervisor into synthetic
	// mock-mode execution (see internal/supervisor/mock.go); no child
	// process is spawned.
	AgentMock bool `toml:"agent_mock"`

	// MaxConcurrency bounds the number of tasks the Scheduler admits to
	// RUNNING simultaneously.
	MaxConcurrency int `toml:"max_concurrency"`

	// BufferBytes is the per-stream, per-task ring buffer capacity for
	// captured stdout/stderr.
	BufferBytes int `toml:"buffer_bytes"`

	// GracePeriodMS is how long a soft cancel (SIGTERM) is given to take
	// effect before a hard kill (SIGKILL).
	GracePeriodMS int `toml:"grace_period_ms"`

	// TaskHistoryLimit bounds the Task Registry; oldest terminal tasks are
	// evicted once the cap is reached. Non-terminal tasks are never evicted.
	TaskHistoryLimit int `toml:"task_history_limit"`
}

// Defaults returns the baseline configuration before file/env overlay.
func Defaults() *Config {
	return &Config{
		Logging: Logging{
			Level:      "info",
			Format:     "json",
			Output:     []string{"console"},
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		AgentCLIPath:     "",
		AgentMock:        false,
		MaxConcurrency:   4,
		BufferBytes:      1 << 20,
		GracePeriodMS:    5000,
		TaskHistoryLimit: 10000,
	}
}

// Load resolves configuration: defaults, overlaid by an optional TOML file
// at path (ignored if empty or missing), overlaid by environment variables.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("config: decode %s: %w", path, err)
			}
		}
	}

	applyEnv(cfg)

	if cfg.MaxConcurrency < 1 {
		return nil, fmt.Errorf("config: max_concurrency must be >= 1, got %d", cfg.MaxConcurrency)
	}
	if cfg.BufferBytes < 1 {
		return nil, fmt.Errorf("config: buffer_bytes must be >= 1, got %d", cfg.BufferBytes)
	}
	if cfg.GracePeriodMS < 0 {
		return nil, fmt.Errorf("config: grace_period_ms must be >= 0, got %d", cfg.GracePeriodMS)
	}
	for _, out := range cfg.Logging.Output {
		if out == "stdout" {
			return nil, fmt.Errorf("config: logging output %q is forbidden - stdout is protocol-only", out)
		}
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("AGENT_CLI_PATH"); ok {
		cfg.AgentCLIPath = v
	}
	if v, ok := os.LookupEnv("AGENT_MOCK"); ok {
		cfg.AgentMock = MockTruthy[strings.ToLower(strings.TrimSpace(v))]
	}
	if v, ok := os.LookupEnv("MAX_CONCURRENCY"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrency = n
		}
	}
	if v, ok := os.LookupEnv("BUFFER_BYTES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BufferBytes = n
		}
	}
	if v, ok := os.LookupEnv("GRACE_PERIOD_MS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GracePeriodMS = n
		}
	}
	if v, ok := os.LookupEnv("TASK_HISTORY_LIMIT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TaskHistoryLimit = n
		}
	}
	if v, ok := os.LookupEnv("TASKGATE_LOG_LEVEL"); ok {
		cfg.Logging.Level = v
	}
}
