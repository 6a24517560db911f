// Package config loads and validates whiterabbit configuration.
// Defaults are defined in code, overlaid by an optional YAML file,
// then by environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all whiterabbit configuration.
type Config struct {
	ADB      ADBConfig      `yaml:"adb"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Emulator EmulatorConfig `yaml:"emulator"`
	Fusion   FusionConfig   `yaml:"fusion"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ADBConfig configures the device bridge.
type ADBConfig struct {
	Path           string `yaml:"path"`
	Serial         string `yaml:"serial"`          // optional -s target
	CommandTimeout string `yaml:"command_timeout"` // per adb invocation

	parsedTimeout time.Duration
}

// AnalysisConfig configures the dynamic monitoring pipeline.
type AnalysisConfig struct {
	Duration      string   `yaml:"duration"`    // per-stage observation window
	OutputRoot    string   `yaml:"output_root"` // one timestamped dir per run underneath
	MonitorDir    string   `yaml:"monitor_dir"` // on-device directory watched for file changes
	DeviceToolDir string   `yaml:"device_tool_dir"`
	HostTools     []string `yaml:"host_tools"`
	DeviceTools   []string `yaml:"device_tools"`
	ToolSourceDir string   `yaml:"tool_source_dir"` // host dir holding device tool binaries
	RuntimeLib    string   `yaml:"runtime_lib"`     // optional libc++_shared.so pushed before tools

	parsedDuration time.Duration
}

// EmulatorConfig configures emulator startup.
type EmulatorConfig struct {
	Dir          string `yaml:"dir"`
	Command      string `yaml:"command"`
	BootTimeout  string `yaml:"boot_timeout"`
	PollInterval string `yaml:"poll_interval"`

	parsedBootTimeout  time.Duration
	parsedPollInterval time.Duration
}

// FusionConfig configures score fusion weights.
type FusionConfig struct {
	DynamicWeight float64 `yaml:"dynamic_weight"`
	StaticWeight  float64 `yaml:"static_weight"`
}

// StorageConfig configures run persistence.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"` // Master toggle - false = no log files
	Level      string          `yaml:"level"`      // debug, info, warn, error
	Categories map[string]bool `yaml:"categories"` // Per-category toggles
}

// Default returns the default configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		ADB: ADBConfig{
			Path:           "adb",
			CommandTimeout: "30s",
		},
		Analysis: AnalysisConfig{
			Duration:      "30s",
			OutputRoot:    filepath.Join(home, "whiterabbit", "runs"),
			MonitorDir:    "/sdcard",
			DeviceToolDir: "/data/local/tmp",
			HostTools:     []string{"adb", "tshark"},
			DeviceTools:   []string{"strace", "inotifywait", "tcpdump"},
		},
		Emulator: EmulatorConfig{
			BootTimeout:  "120s",
			PollInterval: "5s",
		},
		Fusion: FusionConfig{
			DynamicWeight: 0.60,
			StaticWeight:  0.40,
		},
		Storage: StorageConfig{
			DatabasePath: filepath.Join(home, "whiterabbit", "whiterabbit.db"),
		},
		Logging: LoggingConfig{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// when the file does not exist, then applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides overrides config values from environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("WHITERABBIT_ADB_PATH"); v != "" {
		c.ADB.Path = v
	}
	if v := os.Getenv("WHITERABBIT_ADB_SERIAL"); v != "" {
		c.ADB.Serial = v
	}
	if v := os.Getenv("WHITERABBIT_OUTPUT_ROOT"); v != "" {
		c.Analysis.OutputRoot = v
	}
	if v := os.Getenv("WHITERABBIT_DB_PATH"); v != "" {
		c.Storage.DatabasePath = v
	}
	if v := os.Getenv("WHITERABBIT_DURATION"); v != "" {
		c.Analysis.Duration = v
	}
}

// Validate checks the configuration and parses duration strings.
func (c *Config) Validate() error {
	var err error

	if c.ADB.Path == "" {
		return fmt.Errorf("adb.path must not be empty")
	}
	if c.ADB.parsedTimeout, err = parseDuration(c.ADB.CommandTimeout, 30*time.Second); err != nil {
		return fmt.Errorf("adb.command_timeout: %w", err)
	}
	if c.Analysis.parsedDuration, err = parseDuration(c.Analysis.Duration, 30*time.Second); err != nil {
		return fmt.Errorf("analysis.duration: %w", err)
	}
	if c.Analysis.parsedDuration <= 0 {
		return fmt.Errorf("analysis.duration must be positive, got %s", c.Analysis.Duration)
	}
	if c.Emulator.parsedBootTimeout, err = parseDuration(c.Emulator.BootTimeout, 120*time.Second); err != nil {
		return fmt.Errorf("emulator.boot_timeout: %w", err)
	}
	if c.Emulator.parsedPollInterval, err = parseDuration(c.Emulator.PollInterval, 5*time.Second); err != nil {
		return fmt.Errorf("emulator.poll_interval: %w", err)
	}

	sum := c.Fusion.DynamicWeight + c.Fusion.StaticWeight
	if c.Fusion.DynamicWeight < 0 || c.Fusion.StaticWeight < 0 || math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("fusion weights must be non-negative and sum to 1.0, got %v + %v", c.Fusion.DynamicWeight, c.Fusion.StaticWeight)
	}
	return nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// CommandTimeout returns the parsed adb command timeout.
func (c *ADBConfig) Timeout() time.Duration {
	if c.parsedTimeout == 0 {
		return 30 * time.Second
	}
	return c.parsedTimeout
}

// StageDuration returns the parsed per-stage observation window.
func (c *AnalysisConfig) StageDuration() time.Duration {
	if c.parsedDuration == 0 {
		return 30 * time.Second
	}
	return c.parsedDuration
}

// BootTimeoutDuration returns the parsed emulator boot timeout.
func (c *EmulatorConfig) BootTimeoutDuration() time.Duration {
	if c.parsedBootTimeout == 0 {
		return 120 * time.Second
	}
	return c.parsedBootTimeout
}

// PollIntervalDuration returns the parsed boot poll interval.
func (c *EmulatorConfig) PollIntervalDuration() time.Duration {
	if c.parsedPollInterval == 0 {
		return 5 * time.Second
	}
	return c.parsedPollInterval
}
