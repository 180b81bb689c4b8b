// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/tombee/lumen/internal/bus"
	"github.com/tombee/lumen/internal/calib"
	lumenerrors "github.com/tombee/lumen/pkg/errors"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config represents the complete lumend configuration.
type Config struct {
	Sensor    SensorConfig    `yaml:"sensor"`
	Backlight BacklightConfig `yaml:"backlight"`
	Daytime   DaytimeConfig   `yaml:"daytime"`
	Journal   JournalConfig   `yaml:"journal"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
	Daemon    DaemonConfig    `yaml:"daemon"`
}

// SensorConfig configures ambient light captures.
type SensorConfig struct {
	// Device is the sensor to capture from. Empty lets the hardware
	// service pick the first available sensor.
	// Environment: LUMEND_SENSOR_DEVICE
	Device string `yaml:"device,omitempty" env:"LUMEND_SENSOR_DEVICE"`

	// Captures is the number of frames averaged per reading.
	// Environment: LUMEND_SENSOR_CAPTURES
	// Default: 5
	Captures int `yaml:"captures,omitempty" env:"LUMEND_SENSOR_CAPTURES"`

	// Settings is an opaque settings string passed to the hardware
	// service (e.g. camera crop or gain parameters).
	// Environment: LUMEND_SENSOR_SETTINGS
	Settings string `yaml:"settings,omitempty" env:"LUMEND_SENSOR_SETTINGS"`

	// ShutterThreshold is the ambient level below which the sensor is
	// treated as covered: the reading is logged but the backlight is
	// left alone. 0 disables the check.
	// Environment: LUMEND_SENSOR_SHUTTER_THRESHOLD
	// Default: 0.0
	ShutterThreshold float64 `yaml:"shutter_threshold,omitempty" env:"LUMEND_SENSOR_SHUTTER_THRESHOLD"`
}

// BacklightConfig configures automatic backlight calibration.
type BacklightConfig struct {
	// Selector restricts actuation to matching backlight devices.
	// Empty matches every device the hardware service knows.
	// Environment: LUMEND_BACKLIGHT_SELECTOR
	Selector string `yaml:"selector,omitempty" env:"LUMEND_BACKLIGHT_SELECTOR"`

	// Timeouts is the capture interval table, keyed by power source
	// and daytime bucket.
	Timeouts TimeoutsConfig `yaml:"timeouts"`

	// Curves holds the per-power-source calibration points. Index i
	// is the backlight level for ambient bucket i; levels between
	// points come from a fitted polynomial.
	Curves CurvesConfig `yaml:"curves"`

	// Smoothing configures gradual backlight transitions.
	Smoothing SmoothingConfig `yaml:"smoothing"`

	// NoAutoCalib starts the daemon with automatic calibration
	// disabled. Captures still work when requested explicitly.
	// Environment: LUMEND_NO_AUTO_CALIB
	// Default: false
	NoAutoCalib bool `yaml:"no_auto_calib" env:"LUMEND_NO_AUTO_CALIB"`

	// PauseOnLidClosed suspends automatic calibration while the lid
	// is closed. Useful when the sensor sits above the keyboard.
	// Environment: LUMEND_PAUSE_ON_LID_CLOSED
	// Default: false
	PauseOnLidClosed bool `yaml:"pause_on_lid_closed" env:"LUMEND_PAUSE_ON_LID_CLOSED"`

	// ScreenContribution is the fraction of the reading attributed to
	// the screen's own glow, subtracted before mapping. Must stay
	// below 1.
	// Environment: LUMEND_SCREEN_CONTRIBUTION
	// Default: 0.0
	ScreenContribution float64 `yaml:"screen_contribution,omitempty" env:"LUMEND_SCREEN_CONTRIBUTION"`
}

// TimeoutsConfig is the capture interval table. A zero entry disables
// the periodic capture for that combination.
type TimeoutsConfig struct {
	AC      TimeoutSet `yaml:"ac"`
	Battery TimeoutSet `yaml:"battery"`
}

// TimeoutSet holds the capture intervals for one power source.
type TimeoutSet struct {
	// Day is the interval while full daylight.
	// Default: 10m (ac), 20m (battery)
	Day time.Duration `yaml:"day"`

	// Night is the interval after sunset.
	// Default: 45m (ac), 90m (battery)
	Night time.Duration `yaml:"night"`

	// Event is the interval around sunrise and sunset, where ambient
	// light changes fastest.
	// Default: 5m (ac), 10m (battery)
	Event time.Duration `yaml:"event"`
}

// For returns the interval for one power source and daytime bucket.
func (t *TimeoutsConfig) For(source bus.PowerSource, bucket bus.DaytimeBucket) time.Duration {
	set := t.AC
	if source == bus.PowerBattery {
		set = t.Battery
	}
	switch bucket {
	case bus.BucketNight:
		return set.Night
	case bus.BucketEvent:
		return set.Event
	default:
		return set.Day
	}
}

// CurvesConfig holds calibration points per power source. Empty slices
// fall back to the built-in curve.
type CurvesConfig struct {
	AC      []float64 `yaml:"ac,omitempty"`
	Battery []float64 `yaml:"battery,omitempty"`
}

// For returns the configured points for one power source.
func (c *CurvesConfig) For(source bus.PowerSource) []float64 {
	if source == bus.PowerBattery {
		return c.Battery
	}
	return c.AC
}

// SmoothingConfig configures gradual backlight transitions.
type SmoothingConfig struct {
	// Enabled turns smoothing on. When off, levels jump instantly.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Step is the per-tick level change in [0, 1].
	// Default: 0.05
	Step float64 `yaml:"step,omitempty"`

	// Delay is the pause between steps.
	// Default: 30ms
	Delay time.Duration `yaml:"delay,omitempty"`
}

// DaytimeConfig configures the fixed solar schedule that drives the
// capture interval table.
type DaytimeConfig struct {
	// Sunrise is the local sunrise time in HH:MM.
	// Environment: LUMEND_SUNRISE
	// Default: 07:00
	Sunrise string `yaml:"sunrise,omitempty" env:"LUMEND_SUNRISE"`

	// Sunset is the local sunset time in HH:MM.
	// Environment: LUMEND_SUNSET
	// Default: 19:00
	Sunset string `yaml:"sunset,omitempty" env:"LUMEND_SUNSET"`

	// EventDuration is how long before and after each solar event the
	// shorter event interval applies.
	// Environment: LUMEND_EVENT_DURATION
	// Default: 30m
	EventDuration time.Duration `yaml:"event_duration,omitempty" env:"LUMEND_EVENT_DURATION"`
}

// SunriseOffset returns sunrise as an offset from local midnight. The
// schedule must have been validated first.
func (d *DaytimeConfig) SunriseOffset() time.Duration {
	off, _ := ParseClock(d.Sunrise)
	return off
}

// SunsetOffset returns sunset as an offset from local midnight.
func (d *DaytimeConfig) SunsetOffset() time.Duration {
	off, _ := ParseClock(d.Sunset)
	return off
}

// JournalConfig configures the readings journal.
type JournalConfig struct {
	// Enabled turns journaling of readings on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database path. Empty means
	// <data_dir>/journal.db.
	// Environment: LUMEND_JOURNAL_PATH
	Path string `yaml:"path,omitempty" env:"LUMEND_JOURNAL_PATH"`

	// RetentionDays is how long readings are kept.
	// Default: 30
	RetentionDays int `yaml:"retention_days,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint on the control
// socket.
type MetricsConfig struct {
	// Enabled serves /metrics on the control socket.
	// Default: true
	Enabled bool `yaml:"enabled"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	// Level sets the minimum log level (debug, info, warn, error).
	// Environment: LUMEND_LOG_LEVEL
	// Default: info
	Level string `yaml:"level" env:"LUMEND_LOG_LEVEL"`

	// Format sets the output format (json, text).
	// Environment: LUMEND_LOG_FORMAT
	// Default: text
	Format string `yaml:"format" env:"LUMEND_LOG_FORMAT"`

	// AddSource adds source file and line information to logs.
	// Environment: LUMEND_LOG_SOURCE
	// Default: false
	AddSource bool `yaml:"add_source" env:"LUMEND_LOG_SOURCE"`
}

// DaemonConfig configures daemon plumbing.
type DaemonConfig struct {
	// SocketPath is the Unix socket for the control API.
	// Environment: LUMEND_SOCKET
	// Default: $XDG_RUNTIME_DIR/lumen/lumend.sock (or ~/.lumen/lumend.sock)
	SocketPath string `yaml:"socket_path,omitempty" env:"LUMEND_SOCKET"`

	// PIDFile is the path to the PID file. Empty means no PID file.
	// Environment: LUMEND_PID_FILE
	PIDFile string `yaml:"pid_file,omitempty" env:"LUMEND_PID_FILE"`

	// DataDir is the directory for daemon data (state snapshot,
	// journal).
	// Environment: LUMEND_DATA_DIR
	// Default: $XDG_DATA_HOME/lumen (or ~/.lumen/data)
	DataDir string `yaml:"data_dir,omitempty" env:"LUMEND_DATA_DIR"`

	// ShutdownTimeout is the maximum duration to wait for graceful
	// shutdown.
	// Environment: LUMEND_SHUTDOWN_TIMEOUT
	// Default: 5s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" env:"LUMEND_SHUTDOWN_TIMEOUT"`

	// CaptureRate limits control-plane capture requests per second.
	// Default: 1
	CaptureRate float64 `yaml:"capture_rate,omitempty"`

	// CaptureBurst is the burst size for the capture rate limit.
	// Default: 3
	CaptureBurst int `yaml:"capture_burst,omitempty"`

	// RestoreState reapplies the persisted backlight level at startup.
	// Default: true
	RestoreState bool `yaml:"restore_state"`
}

// StateFile returns the state snapshot path.
func (c *DaemonConfig) StateFile() string {
	return filepath.Join(c.DataDir, "state.json")
}

// JournalPath returns the journal database path, honoring an explicit
// override.
func (c *Config) JournalPath() string {
	if c.Journal.Path != "" {
		return c.Journal.Path
	}
	return filepath.Join(c.Daemon.DataDir, "journal.db")
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Sensor: SensorConfig{
			Captures:         5,
			ShutterThreshold: 0.0,
		},
		Backlight: BacklightConfig{
			Timeouts: TimeoutsConfig{
				AC: TimeoutSet{
					Day:   10 * time.Minute,
					Night: 45 * time.Minute,
					Event: 5 * time.Minute,
				},
				Battery: TimeoutSet{
					Day:   20 * time.Minute,
					Night: 90 * time.Minute,
					Event: 10 * time.Minute,
				},
			},
			Curves: CurvesConfig{
				AC:      append([]float64(nil), calib.DefaultPoints...),
				Battery: append([]float64(nil), calib.DefaultPoints...),
			},
			Smoothing: SmoothingConfig{
				Enabled: true,
				Step:    0.05,
				Delay:   30 * time.Millisecond,
			},
		},
		Daytime: DaytimeConfig{
			Sunrise:       "07:00",
			Sunset:        "19:00",
			EventDuration: 30 * time.Minute,
		},
		Journal: JournalConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level:     "info",
			Format:    "text",
			AddSource: false,
		},
		Daemon: DaemonConfig{
			SocketPath:      defaultSocketPath(),
			DataDir:         defaultDataDir(),
			ShutdownTimeout: 5 * time.Second,
			CaptureRate:     1,
			CaptureBurst:    3,
			RestoreState:    true,
		},
	}
}

// Load loads configuration from a YAML file and environment variables.
// Environment variables take precedence over file-based configuration.
// If configPath is empty, only defaults and environment are used.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &lumenerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	// Fill zero values so minimal configs work.
	cfg.applyDefaults()

	if err := cfg.loadFromEnv(); err != nil {
		return nil, &lumenerrors.ConfigError{
			Key:    "environment",
			Reason: "failed to parse environment overrides",
			Cause:  err,
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &lumenerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// applyDefaults fills in zero values with sensible defaults. This
// allows minimal configs (e.g., just a sensor device) to work without
// specifying all fields explicitly.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Sensor.Captures == 0 {
		c.Sensor.Captures = defaults.Sensor.Captures
	}

	if c.Backlight.Timeouts.AC.Day == 0 {
		c.Backlight.Timeouts.AC.Day = defaults.Backlight.Timeouts.AC.Day
	}
	if c.Backlight.Timeouts.AC.Night == 0 {
		c.Backlight.Timeouts.AC.Night = defaults.Backlight.Timeouts.AC.Night
	}
	if c.Backlight.Timeouts.AC.Event == 0 {
		c.Backlight.Timeouts.AC.Event = defaults.Backlight.Timeouts.AC.Event
	}
	if c.Backlight.Timeouts.Battery.Day == 0 {
		c.Backlight.Timeouts.Battery.Day = defaults.Backlight.Timeouts.Battery.Day
	}
	if c.Backlight.Timeouts.Battery.Night == 0 {
		c.Backlight.Timeouts.Battery.Night = defaults.Backlight.Timeouts.Battery.Night
	}
	if c.Backlight.Timeouts.Battery.Event == 0 {
		c.Backlight.Timeouts.Battery.Event = defaults.Backlight.Timeouts.Battery.Event
	}
	if len(c.Backlight.Curves.AC) == 0 {
		c.Backlight.Curves.AC = append([]float64(nil), defaults.Backlight.Curves.AC...)
	}
	if len(c.Backlight.Curves.Battery) == 0 {
		c.Backlight.Curves.Battery = append([]float64(nil), defaults.Backlight.Curves.Battery...)
	}
	if c.Backlight.Smoothing.Step == 0 {
		c.Backlight.Smoothing.Step = defaults.Backlight.Smoothing.Step
	}
	if c.Backlight.Smoothing.Delay == 0 {
		c.Backlight.Smoothing.Delay = defaults.Backlight.Smoothing.Delay
	}

	if c.Daytime.Sunrise == "" {
		c.Daytime.Sunrise = defaults.Daytime.Sunrise
	}
	if c.Daytime.Sunset == "" {
		c.Daytime.Sunset = defaults.Daytime.Sunset
	}
	if c.Daytime.EventDuration == 0 {
		c.Daytime.EventDuration = defaults.Daytime.EventDuration
	}

	if c.Journal.RetentionDays == 0 {
		c.Journal.RetentionDays = defaults.Journal.RetentionDays
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}

	if c.Daemon.SocketPath == "" {
		c.Daemon.SocketPath = defaults.Daemon.SocketPath
	}
	if c.Daemon.DataDir == "" {
		c.Daemon.DataDir = defaults.Daemon.DataDir
	}
	if c.Daemon.ShutdownTimeout == 0 {
		c.Daemon.ShutdownTimeout = defaults.Daemon.ShutdownTimeout
	}
	if c.Daemon.CaptureRate == 0 {
		c.Daemon.CaptureRate = defaults.Daemon.CaptureRate
	}
	if c.Daemon.CaptureBurst == 0 {
		c.Daemon.CaptureBurst = defaults.Daemon.CaptureBurst
	}
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	// Expand home directory if present
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv overrides configuration from environment variables.
func (c *Config) loadFromEnv() error {
	return env.Parse(c)
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	// Validate sensor configuration
	if c.Sensor.Captures < 1 || c.Sensor.Captures > 20 {
		errs = append(errs, fmt.Sprintf("sensor.captures must be between 1 and 20, got %d", c.Sensor.Captures))
	}
	if c.Sensor.ShutterThreshold < 0 || c.Sensor.ShutterThreshold >= 1 {
		errs = append(errs, fmt.Sprintf("sensor.shutter_threshold must be in [0, 1), got %v", c.Sensor.ShutterThreshold))
	}

	// Validate backlight configuration
	for _, tc := range []struct {
		key string
		d   time.Duration
	}{
		{"backlight.timeouts.ac.day", c.Backlight.Timeouts.AC.Day},
		{"backlight.timeouts.ac.night", c.Backlight.Timeouts.AC.Night},
		{"backlight.timeouts.ac.event", c.Backlight.Timeouts.AC.Event},
		{"backlight.timeouts.battery.day", c.Backlight.Timeouts.Battery.Day},
		{"backlight.timeouts.battery.night", c.Backlight.Timeouts.Battery.Night},
		{"backlight.timeouts.battery.event", c.Backlight.Timeouts.Battery.Event},
	} {
		if tc.d < 0 {
			errs = append(errs, fmt.Sprintf("%s must be non-negative, got %v", tc.key, tc.d))
		}
	}
	if err := calib.ValidatePoints(c.Backlight.Curves.AC); err != nil {
		errs = append(errs, fmt.Sprintf("backlight.curves.ac: %v", err))
	}
	if err := calib.ValidatePoints(c.Backlight.Curves.Battery); err != nil {
		errs = append(errs, fmt.Sprintf("backlight.curves.battery: %v", err))
	}
	if c.Backlight.Smoothing.Step <= 0 || c.Backlight.Smoothing.Step > 1 {
		errs = append(errs, fmt.Sprintf("backlight.smoothing.step must be in (0, 1], got %v", c.Backlight.Smoothing.Step))
	}
	if c.Backlight.Smoothing.Delay <= 0 {
		errs = append(errs, fmt.Sprintf("backlight.smoothing.delay must be positive, got %v", c.Backlight.Smoothing.Delay))
	}
	if c.Backlight.ScreenContribution < 0 || c.Backlight.ScreenContribution >= 1 {
		errs = append(errs, fmt.Sprintf("backlight.screen_contribution must be in [0, 1), got %v", c.Backlight.ScreenContribution))
	}

	// Validate daytime configuration
	sunrise, sunriseErr := ParseClock(c.Daytime.Sunrise)
	if sunriseErr != nil {
		errs = append(errs, fmt.Sprintf("daytime.sunrise: %v", sunriseErr))
	}
	sunset, sunsetErr := ParseClock(c.Daytime.Sunset)
	if sunsetErr != nil {
		errs = append(errs, fmt.Sprintf("daytime.sunset: %v", sunsetErr))
	}
	if sunriseErr == nil && sunsetErr == nil && sunset <= sunrise {
		errs = append(errs, fmt.Sprintf("daytime.sunset %s must be after daytime.sunrise %s", c.Daytime.Sunset, c.Daytime.Sunrise))
	}
	if c.Daytime.EventDuration <= 0 || c.Daytime.EventDuration > 6*time.Hour {
		errs = append(errs, fmt.Sprintf("daytime.event_duration must be in (0, 6h], got %v", c.Daytime.EventDuration))
	}

	// Validate journal configuration
	if c.Journal.RetentionDays < 1 {
		errs = append(errs, fmt.Sprintf("journal.retention_days must be positive, got %d", c.Journal.RetentionDays))
	}

	// Validate log configuration
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, warning, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Log.Format)] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	// Validate daemon configuration
	if c.Daemon.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("daemon.shutdown_timeout must be positive, got %v", c.Daemon.ShutdownTimeout))
	}
	if c.Daemon.CaptureRate <= 0 {
		errs = append(errs, fmt.Sprintf("daemon.capture_rate must be positive, got %v", c.Daemon.CaptureRate))
	}
	if c.Daemon.CaptureBurst < 1 {
		errs = append(errs, fmt.Sprintf("daemon.capture_burst must be at least 1, got %d", c.Daemon.CaptureBurst))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}

	return nil
}

// ParseClock parses an HH:MM wall clock time into an offset from local
// midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q, expected HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// defaultSocketPath returns the default Unix socket path.
func defaultSocketPath() string {
	// Use XDG_RUNTIME_DIR if available (Linux)
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "lumen", "lumend.sock")
	}

	// Fall back to ~/.lumen/lumend.sock
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/lumend.sock"
	}

	return filepath.Join(homeDir, ".lumen", "lumend.sock")
}

// defaultDataDir returns the default data directory.
func defaultDataDir() string {
	// Use XDG_DATA_HOME if available
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "lumen")
	}

	// Fall back to ~/.lumen/data
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/lumen-data"
	}

	return filepath.Join(homeDir, ".lumen", "data")
}
