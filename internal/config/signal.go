// Package config loads the junction tuning file. Fields omitted from the
// JSON retain their defaults, so partial configs are safe and the engine
// runs with no file at all.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/samber/lo"

	"github.com/crossway-systems/signalctl/internal/signal"
)

// SignalConfig is the root configuration for the signal engine. The whole
// surface is fixed at startup; nothing here is runtime-mutable.
type SignalConfig struct {
	// Server params
	Listen       *string `json:"listen,omitempty"`
	TickInterval *string `json:"tick_interval,omitempty"` // duration string like "1s"

	// Feed params
	SimRefreshInterval   *string `json:"sim_refresh_interval,omitempty"` // duration string like "10s"
	MaxSimulatedVehicles *int    `json:"max_simulated_vehicles,omitempty"`

	// Fuzzy params
	MedCount  *int `json:"med_count,omitempty"`
	HighCount *int `json:"high_count,omitempty"`

	// Green-phase durations (seconds)
	MinDurationSeconds    *int `json:"min_duration_seconds,omitempty"`
	ShortDurationSeconds  *int `json:"short_duration_seconds,omitempty"`
	MediumDurationSeconds *int `json:"medium_duration_seconds,omitempty"`
	LongDurationSeconds   *int `json:"long_duration_seconds,omitempty"`
	MaxDurationSeconds    *int `json:"max_duration_seconds,omitempty"`

	// CycleOrder overrides the round-robin sequence. Must name each of the
	// four lanes exactly once.
	CycleOrder []string `json:"cycle_order,omitempty"`
}

// EmptySignalConfig returns a SignalConfig with all fields unset.
func EmptySignalConfig() *SignalConfig {
	return &SignalConfig{}
}

// LoadSignalConfig loads a SignalConfig from a JSON file.
func LoadSignalConfig(path string) (*SignalConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySignalConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are internally consistent.
func (c *SignalConfig) Validate() error {
	if c.TickInterval != nil && *c.TickInterval != "" {
		if d, err := time.ParseDuration(*c.TickInterval); err != nil || d <= 0 {
			return fmt.Errorf("invalid tick_interval %q", *c.TickInterval)
		}
	}
	if c.SimRefreshInterval != nil && *c.SimRefreshInterval != "" {
		if d, err := time.ParseDuration(*c.SimRefreshInterval); err != nil || d <= 0 {
			return fmt.Errorf("invalid sim_refresh_interval %q", *c.SimRefreshInterval)
		}
	}
	if c.MaxSimulatedVehicles != nil && *c.MaxSimulatedVehicles < 0 {
		return fmt.Errorf("max_simulated_vehicles must be non-negative, got %d", *c.MaxSimulatedVehicles)
	}

	med := c.GetMedCount()
	high := c.GetHighCount()
	if med <= 0 || high <= med {
		return fmt.Errorf("fuzzy breakpoints must satisfy 0 < med_count < high_count, got %d and %d", med, high)
	}

	durations := []int{
		c.GetMinDuration(),
		c.GetShortDuration(),
		c.GetMediumDuration(),
		c.GetLongDuration(),
		c.GetMaxDuration(),
	}
	for i := 1; i < len(durations); i++ {
		if durations[i] < durations[i-1] {
			return fmt.Errorf("durations must be ordered min <= short <= medium <= long <= max, got %v", durations)
		}
	}
	if durations[0] <= 0 {
		return fmt.Errorf("min_duration_seconds must be positive, got %d", durations[0])
	}

	if len(c.CycleOrder) > 0 {
		if _, err := c.parseCycleOrder(); err != nil {
			return err
		}
	}

	return nil
}

func (c *SignalConfig) parseCycleOrder() ([]signal.Lane, error) {
	lanes := make([]signal.Lane, 0, len(c.CycleOrder))
	for _, s := range c.CycleOrder {
		lane, err := signal.ParseLane(s)
		if err != nil {
			return nil, fmt.Errorf("invalid cycle_order entry: %w", err)
		}
		lanes = append(lanes, lane)
	}
	if len(lanes) != len(signal.DefaultCycleOrder) || len(lo.Uniq(lanes)) != len(lanes) {
		return nil, fmt.Errorf("cycle_order must name each of the four lanes exactly once, got %v", c.CycleOrder)
	}
	return lanes, nil
}

// GetListen returns the HTTP listen address or the default.
func (c *SignalConfig) GetListen() string {
	if c.Listen == nil || *c.Listen == "" {
		return ":8080"
	}
	return *c.Listen
}

// GetTickInterval parses and returns the tick interval as a time.Duration.
func (c *SignalConfig) GetTickInterval() time.Duration {
	if c.TickInterval == nil || *c.TickInterval == "" {
		return time.Second
	}
	d, err := time.ParseDuration(*c.TickInterval)
	if err != nil {
		return time.Second
	}
	return d
}

// GetSimRefreshInterval parses and returns the simulated-feed refresh
// interval as a time.Duration.
func (c *SignalConfig) GetSimRefreshInterval() time.Duration {
	if c.SimRefreshInterval == nil || *c.SimRefreshInterval == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(*c.SimRefreshInterval)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetMaxSimulatedVehicles returns the simulated count ceiling or the default.
func (c *SignalConfig) GetMaxSimulatedVehicles() int {
	if c.MaxSimulatedVehicles == nil {
		return 20
	}
	return *c.MaxSimulatedVehicles
}

// GetMedCount returns the medium-congestion breakpoint or the default.
func (c *SignalConfig) GetMedCount() int {
	if c.MedCount == nil {
		return 10
	}
	return *c.MedCount
}

// GetHighCount returns the high-congestion breakpoint or the default.
func (c *SignalConfig) GetHighCount() int {
	if c.HighCount == nil {
		return 20
	}
	return *c.HighCount
}

// GetMinDuration returns the green-phase floor in seconds or the default.
func (c *SignalConfig) GetMinDuration() int {
	if c.MinDurationSeconds == nil {
		return 10
	}
	return *c.MinDurationSeconds
}

// GetShortDuration returns the Low-rule duration in seconds or the default.
func (c *SignalConfig) GetShortDuration() int {
	if c.ShortDurationSeconds == nil {
		return 15
	}
	return *c.ShortDurationSeconds
}

// GetMediumDuration returns the Medium-rule duration in seconds or the default.
func (c *SignalConfig) GetMediumDuration() int {
	if c.MediumDurationSeconds == nil {
		return 30
	}
	return *c.MediumDurationSeconds
}

// GetLongDuration returns the High-rule duration in seconds or the default.
func (c *SignalConfig) GetLongDuration() int {
	if c.LongDurationSeconds == nil {
		return 60
	}
	return *c.LongDurationSeconds
}

// GetMaxDuration returns the green-phase ceiling in seconds or the default.
func (c *SignalConfig) GetMaxDuration() int {
	if c.MaxDurationSeconds == nil {
		return 90
	}
	return *c.MaxDurationSeconds
}

// GetCycleOrder returns the configured cycle order, falling back to the
// default north-east-south-west rotation.
func (c *SignalConfig) GetCycleOrder() []signal.Lane {
	if len(c.CycleOrder) == 0 {
		return signal.DefaultCycleOrder
	}
	lanes, err := c.parseCycleOrder()
	if err != nil {
		return signal.DefaultCycleOrder
	}
	return lanes
}

// EngineConfig converts the file layer into the engine's tuning struct.
func (c *SignalConfig) EngineConfig() signal.Config {
	return signal.Config{
		CycleOrder:           c.GetCycleOrder(),
		SimRefreshInterval:   c.GetSimRefreshInterval(),
		MaxSimulatedVehicles: c.GetMaxSimulatedVehicles(),
		MedCount:             c.GetMedCount(),
		HighCount:            c.GetHighCount(),
		MinDuration:          c.GetMinDuration(),
		ShortDuration:        c.GetShortDuration(),
		MediumDuration:       c.GetMediumDuration(),
		LongDuration:         c.GetLongDuration(),
		MaxDuration:          c.GetMaxDuration(),
	}
}
