// Package config turns an optional on-disk settings file into a typed
// Config, the way runsc/config turns flags into a typed Config. Missing
// file, missing fields, and a wrong type for a field all fall back to the
// compiled-in default; only curriculum load failure is ever fatal (see
// spec §7, StartupFatal).
package config

import (
	"errors"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Budget is the default ResourceBudget applied to a submission when the
// Engine does not override it.
type Budget struct {
	MemoryBytes    int64   `toml:"memory_bytes"`
	CPUSeconds     float64 `toml:"cpu_seconds"`
	MaxOperations  int64   `toml:"max_operations"`
	RecursionDepth int     `toml:"recursion_depth"`
}

// DefaultBudget matches the concrete numbers in spec §4.4 step 2.
func DefaultBudget() Budget {
	return Budget{
		MemoryBytes:    100 << 20, // 100 MiB
		CPUSeconds:     5,
		MaxOperations:  2_000_000,
		RecursionDepth: 500,
	}
}

// Config is codequest's settings-file shape.
type Config struct {
	Budget             Budget `toml:"budget"`
	WallClockSeconds   int    `toml:"wall_clock_seconds"`
	CurriculumRoot     string `toml:"curriculum_root"`
	ProgressPath       string `toml:"progress_path"`
	Locale             string `toml:"locale"`
	LogLevel           string `toml:"log_level"`
}

// Default returns codequest's compiled-in settings.
func Default() Config {
	return Config{
		Budget:           DefaultBudget(),
		WallClockSeconds: 5,
		CurriculumRoot:   "curriculum",
		ProgressPath:     "progress.json",
		Locale:           "en",
		LogLevel:         "info",
	}
}

// WallClock returns the configured watchdog deadline as a time.Duration.
func (c Config) WallClock() time.Duration {
	return time.Duration(c.WallClockSeconds) * time.Second
}

// Load reads path (a TOML file) over the defaults. A missing file is not an
// error: Default() is returned unchanged. A malformed file returns an error
// so the caller (cmd/codequest) can decide whether that is fatal; codequest
// itself treats it as a warning and continues with defaults, since only
// curriculum load is StartupFatal per spec §7.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Default(), err
	}
	// Fields absent from the file already retain cfg's (== Default()'s)
	// values, since DecodeFile only overwrites keys it finds; zero-valued
	// overrides from a partially-specified budget table are coerced back to
	// the default so one missing sub-field doesn't zero the whole budget.
	if cfg.Budget.MemoryBytes <= 0 {
		cfg.Budget.MemoryBytes = DefaultBudget().MemoryBytes
	}
	if cfg.Budget.CPUSeconds <= 0 {
		cfg.Budget.CPUSeconds = DefaultBudget().CPUSeconds
	}
	if cfg.Budget.MaxOperations <= 0 {
		cfg.Budget.MaxOperations = DefaultBudget().MaxOperations
	}
	if cfg.Budget.RecursionDepth <= 0 {
		cfg.Budget.RecursionDepth = DefaultBudget().RecursionDepth
	}
	if cfg.WallClockSeconds <= 0 {
		cfg.WallClockSeconds = Default().WallClockSeconds
	}
	if cfg.CurriculumRoot == "" {
		cfg.CurriculumRoot = Default().CurriculumRoot
	}
	if cfg.ProgressPath == "" {
		cfg.ProgressPath = Default().ProgressPath
	}
	if cfg.Locale == "" {
		cfg.Locale = Default().Locale
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = Default().LogLevel
	}
	return cfg, nil
}
