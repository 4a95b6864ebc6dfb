package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical simulation defaults
// file. This is the single source of truth for all default values.
const DefaultConfigPath = "config/sim.defaults.json"

// SimConfig represents the root configuration for the simulation. The
// schema matches the /api/config endpoint so the same JSON can be used
// for both startup configuration and runtime updates. All fields are
// pointers so a partial JSON document only overrides what it names.
type SimConfig struct {
	// Generator params
	Mode       *string `json:"mode,omitempty"` // demo, random or replay
	RandomSeed *int64  `json:"random_seed,omitempty"`

	// Tracker params
	SmoothingAlpha         *float64 `json:"smoothing_alpha,omitempty"`
	Gravity                *float64 `json:"gravity,omitempty"`
	DriftDecayFactor       *float64 `json:"drift_decay_factor,omitempty"`
	DriftDecayEverySamples *int     `json:"drift_decay_every_samples,omitempty"`
	MaxTrajectoryPoints    *int     `json:"max_trajectory_points,omitempty"`
	MinTimestampDelta      *float64 `json:"min_timestamp_delta,omitempty"`

	// Session params
	TickInterval     *string  `json:"tick_interval,omitempty"` // duration string like "20ms"
	Speed            *float64 `json:"speed,omitempty"`
	SubscriberBuffer *int     `json:"subscriber_buffer,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptySimConfig returns a SimConfig with all fields set to nil.
// Use LoadSimConfig to load actual values from the defaults file.
func EmptySimConfig() *SimConfig {
	return &SimConfig{}
}

// LoadSimConfig loads a SimConfig from a JSON file. The file must have
// a .json extension and stay under the max file size. Fields omitted
// from the JSON retain their defaults, so partial configs are safe.
func LoadSimConfig(path string) (*SimConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySimConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from
// DefaultConfigPath, searching upward from the current directory.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *SimConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath, // from internal/config/
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadSimConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that set values are in range.
func (c *SimConfig) Validate() error {
	if c.Mode != nil {
		switch *c.Mode {
		case "demo", "random", "replay":
		default:
			return fmt.Errorf("mode must be demo, random or replay, got %q", *c.Mode)
		}
	}
	if c.SmoothingAlpha != nil {
		if *c.SmoothingAlpha <= 0 || *c.SmoothingAlpha > 1 {
			return fmt.Errorf("smoothing_alpha must be in (0, 1], got %f", *c.SmoothingAlpha)
		}
	}
	if c.Gravity != nil && *c.Gravity <= 0 {
		return fmt.Errorf("gravity must be positive, got %f", *c.Gravity)
	}
	if c.DriftDecayFactor != nil {
		if *c.DriftDecayFactor <= 0 || *c.DriftDecayFactor >= 1 {
			return fmt.Errorf("drift_decay_factor must be in (0, 1), got %f", *c.DriftDecayFactor)
		}
	}
	if c.DriftDecayEverySamples != nil && *c.DriftDecayEverySamples <= 0 {
		return fmt.Errorf("drift_decay_every_samples must be positive, got %d", *c.DriftDecayEverySamples)
	}
	if c.MaxTrajectoryPoints != nil && *c.MaxTrajectoryPoints <= 0 {
		return fmt.Errorf("max_trajectory_points must be positive, got %d", *c.MaxTrajectoryPoints)
	}
	if c.MinTimestampDelta != nil && *c.MinTimestampDelta <= 0 {
		return fmt.Errorf("min_timestamp_delta must be positive, got %f", *c.MinTimestampDelta)
	}
	if c.TickInterval != nil && *c.TickInterval != "" {
		d, err := time.ParseDuration(*c.TickInterval)
		if err != nil {
			return fmt.Errorf("invalid tick_interval '%s': %w", *c.TickInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("tick_interval must be positive, got %v", d)
		}
	}
	if c.Speed != nil && *c.Speed <= 0 {
		return fmt.Errorf("speed must be positive, got %f", *c.Speed)
	}
	if c.SubscriberBuffer != nil && *c.SubscriberBuffer <= 0 {
		return fmt.Errorf("subscriber_buffer must be positive, got %d", *c.SubscriberBuffer)
	}
	return nil
}

// Merge overlays set fields from other onto c. Used by the runtime
// config endpoint so clients can PATCH individual parameters.
func (c *SimConfig) Merge(other *SimConfig) {
	if other == nil {
		return
	}
	if other.Mode != nil {
		c.Mode = other.Mode
	}
	if other.RandomSeed != nil {
		c.RandomSeed = other.RandomSeed
	}
	if other.SmoothingAlpha != nil {
		c.SmoothingAlpha = other.SmoothingAlpha
	}
	if other.Gravity != nil {
		c.Gravity = other.Gravity
	}
	if other.DriftDecayFactor != nil {
		c.DriftDecayFactor = other.DriftDecayFactor
	}
	if other.DriftDecayEverySamples != nil {
		c.DriftDecayEverySamples = other.DriftDecayEverySamples
	}
	if other.MaxTrajectoryPoints != nil {
		c.MaxTrajectoryPoints = other.MaxTrajectoryPoints
	}
	if other.MinTimestampDelta != nil {
		c.MinTimestampDelta = other.MinTimestampDelta
	}
	if other.TickInterval != nil {
		c.TickInterval = other.TickInterval
	}
	if other.Speed != nil {
		c.Speed = other.Speed
	}
	if other.SubscriberBuffer != nil {
		c.SubscriberBuffer = other.SubscriberBuffer
	}
}

// GetMode returns the mode value or the default.
func (c *SimConfig) GetMode() string {
	if c.Mode == nil {
		return "demo"
	}
	return *c.Mode
}

// GetRandomSeed returns the random_seed value or the default.
func (c *SimConfig) GetRandomSeed() int64 {
	if c.RandomSeed == nil {
		return 1
	}
	return *c.RandomSeed
}

// GetSmoothingAlpha returns the smoothing_alpha value or the default.
func (c *SimConfig) GetSmoothingAlpha() float64 {
	if c.SmoothingAlpha == nil {
		return 0.35
	}
	return *c.SmoothingAlpha
}

// GetGravity returns the gravity value or the default.
func (c *SimConfig) GetGravity() float64 {
	if c.Gravity == nil {
		return 9.80665
	}
	return *c.Gravity
}

// GetDriftDecayFactor returns the drift_decay_factor value or the default.
func (c *SimConfig) GetDriftDecayFactor() float64 {
	if c.DriftDecayFactor == nil {
		return 0.92
	}
	return *c.DriftDecayFactor
}

// GetDriftDecayEverySamples returns the drift_decay_every_samples value or the default.
func (c *SimConfig) GetDriftDecayEverySamples() int {
	if c.DriftDecayEverySamples == nil {
		return 50
	}
	return *c.DriftDecayEverySamples
}

// GetMaxTrajectoryPoints returns the max_trajectory_points value or the default.
func (c *SimConfig) GetMaxTrajectoryPoints() int {
	if c.MaxTrajectoryPoints == nil {
		return 2000
	}
	return *c.MaxTrajectoryPoints
}

// GetMinTimestampDelta returns the min_timestamp_delta value or the default.
func (c *SimConfig) GetMinTimestampDelta() float64 {
	if c.MinTimestampDelta == nil {
		return 1e-4
	}
	return *c.MinTimestampDelta
}

// GetTickInterval parses and returns the tick_interval as a time.Duration.
func (c *SimConfig) GetTickInterval() time.Duration {
	if c.TickInterval == nil || *c.TickInterval == "" {
		return 20 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.TickInterval)
	if err != nil {
		return 20 * time.Millisecond // default on parse error
	}
	return d
}

// GetSpeed returns the speed value or the default.
func (c *SimConfig) GetSpeed() float64 {
	if c.Speed == nil {
		return 1.0
	}
	return *c.Speed
}

// GetSubscriberBuffer returns the subscriber_buffer value or the default.
func (c *SimConfig) GetSubscriberBuffer() int {
	if c.SubscriberBuffer == nil {
		return 64
	}
	return *c.SubscriberBuffer
}
