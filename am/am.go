// Package am loads the dirjobs configuration ("I am").
package am

import "time"

// Config represents the dirjobs configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database" toml:"database" yaml:"database" json:"database"`
	Pulse    PulseConfig    `mapstructure:"pulse" toml:"pulse" yaml:"pulse" json:"pulse"`
	Log      LogConfig      `mapstructure:"log" toml:"log" yaml:"log" json:"log"`
}

// DatabaseConfig configures the SQLite job history database
type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path" yaml:"path" json:"path"`
}

// PulseConfig configures the job scheduler
type PulseConfig struct {
	// Worker concurrency: at most this many jobs run at once (0 = admit nothing)
	Workers int `mapstructure:"workers" toml:"workers" yaml:"workers" json:"workers"`

	// How often pending jobs are re-evaluated for admission when no job finishes
	PollIntervalMS int `mapstructure:"poll_interval_ms" toml:"poll_interval_ms" yaml:"poll_interval_ms" json:"poll_interval_ms"`

	// Global admission throttle: 0 = unlimited
	AdmissionsPerSecond float64 `mapstructure:"admissions_per_second" toml:"admissions_per_second" yaml:"admissions_per_second" json:"admissions_per_second"`
	AdmissionBurst      int     `mapstructure:"admission_burst" toml:"admission_burst" yaml:"admission_burst" json:"admission_burst"`

	// Panic on suspend/resume imbalance instead of clamping
	StrictInvariants bool `mapstructure:"strict_invariants" toml:"strict_invariants" yaml:"strict_invariants" json:"strict_invariants"`

	// Record finished jobs in the history database
	HistoryEnabled bool `mapstructure:"history_enabled" toml:"history_enabled" yaml:"history_enabled" json:"history_enabled"`

	// How long Stop waits for running jobs to unwind
	StopTimeoutSeconds int `mapstructure:"stop_timeout_seconds" toml:"stop_timeout_seconds" yaml:"stop_timeout_seconds" json:"stop_timeout_seconds"`
}

// LogConfig configures logging output
type LogConfig struct {
	JSON bool `mapstructure:"json" toml:"json" yaml:"json" json:"json"`
}

// PollInterval returns the admission poll interval as a duration
func (p PulseConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalMS) * time.Millisecond
}

// StopTimeout returns the shutdown wait as a duration
func (p PulseConfig) StopTimeout() time.Duration {
	return time.Duration(p.StopTimeoutSeconds) * time.Second
}
