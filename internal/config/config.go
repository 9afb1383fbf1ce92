// Package config holds the engine's tunable knobs and the command-line
// flag wiring for cmd/csvscope: a package-level Config struct plus a
// validateAndNormalizeConfig-style Validate method. Environment variables
// are not read.
package config

import (
	"flag"
	"fmt"
	"time"
)

// Config collects every adjustable knob: the sparse index stride,
// downsampling target and ratio, tail-follow polling interval,
// prefix-sample sizing, and the diagnostics/stats toggles.
type Config struct {
	// index
	SparseIndexStride int

	// downsampling
	MaxDisplayPoints int
	MinMaxRatio      float64

	// tail follower
	PollInterval time.Duration
	Follow       bool

	// schema sampling
	SampleRowsMin int
	SampleRowRate float64

	// diagnostics
	DiagnosticsTopK   int
	DiagnosticsWindow time.Duration

	// runtime stats
	StatsEnabled bool
	StatsWindow  int
}

// Default returns the engine's out-of-the-box configuration.
func Default() Config {
	return Config{
		SparseIndexStride: 1000,

		MaxDisplayPoints: 2000,
		MinMaxRatio:      4.0,

		PollInterval: 5 * time.Second,
		Follow:       false,

		SampleRowsMin: 64,
		SampleRowRate: 0.01,

		DiagnosticsTopK:   16,
		DiagnosticsWindow: time.Minute,

		StatsEnabled: false,
		StatsWindow:  256,
	}
}

// RegisterFlags wires every knob to a CLI flag using the
// "flag.XVar(&config.Field, name, config.Field, usage)" pattern so the
// struct's current values (normally those from Default) become the flag
// defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.SparseIndexStride, "index-stride", c.SparseIndexStride, "Rows between sparse x-index samples")
	fs.IntVar(&c.MaxDisplayPoints, "max-points", c.MaxDisplayPoints, "Maximum points per trace after downsampling")
	fs.Float64Var(&c.MinMaxRatio, "minmax-ratio", c.MinMaxRatio, "Candidate-to-output point ratio for the min-max preselection phase")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "Tail-follow polling interval")
	fs.BoolVar(&c.Follow, "follow", c.Follow, "Start with tail-follow enabled")
	fs.IntVar(&c.SampleRowsMin, "sample-rows-min", c.SampleRowsMin, "Minimum prefix sample size for schema inference")
	fs.Float64Var(&c.SampleRowRate, "sample-row-rate", c.SampleRowRate, "Prefix sample size as a fraction of total rows")
	fs.IntVar(&c.DiagnosticsTopK, "diagnostics-top-k", c.DiagnosticsTopK, "How many malformed-value offenders to track (all columns pooled)")
	fs.DurationVar(&c.DiagnosticsWindow, "diagnostics-window", c.DiagnosticsWindow, "Sliding window over which malformed-value frequency decays")
	fs.BoolVar(&c.StatsEnabled, "stats", c.StatsEnabled, "Show runtime performance stats")
	fs.IntVar(&c.StatsWindow, "stats-window", c.StatsWindow, "Number of recent fetch-latency samples kept")
}

// Validate rejects nonsensical values before anything opens a file.
func (c *Config) Validate() error {
	if c.SparseIndexStride < 1 {
		return fmt.Errorf("-index-stride must be >= 1")
	}
	if c.MaxDisplayPoints < 2 {
		return fmt.Errorf("-max-points must be >= 2")
	}
	if c.MinMaxRatio <= 0 {
		return fmt.Errorf("-minmax-ratio must be > 0")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("-poll-interval must be > 0")
	}
	if c.SampleRowsMin < 1 {
		return fmt.Errorf("-sample-rows-min must be >= 1")
	}
	if c.SampleRowRate < 0 || c.SampleRowRate > 1 {
		return fmt.Errorf("-sample-row-rate must be in [0,1]")
	}
	if c.DiagnosticsTopK < 1 {
		return fmt.Errorf("-diagnostics-top-k must be >= 1")
	}
	if c.StatsWindow < 1 {
		c.StatsWindow = 1
	}
	return nil
}
