// Package config loads the runtime's own settings: scheduler tuning and
// the unit-domain table, from a TOML file. This is
// configuration for the engine itself, not a program representation —
// the compiler's input is always an already-built Transformation list,
// never anything parsed from this file.
package config

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"mech/internal/compile"
	"mech/internal/core"
	"mech/internal/ops"
)

// Config is the top-level TOML document: [scheduler] and [[units]].
type Config struct {
	Scheduler Scheduler `toml:"scheduler"`
	Units     []Unit    `toml:"units"`
}

// Scheduler maps [scheduler]: the fixed-point loop's tuning knobs
// plus the optional data-parallel backend's enable switch and
// threshold, read straight into an ops.Parallel-shaped value.
type Scheduler struct {
	MaxTicks          int  `toml:"max_ticks"`
	ParallelEnabled   bool `toml:"parallel_enabled"`
	ParallelThreshold int  `toml:"parallel_threshold"`
	ParallelWorkers   int  `toml:"parallel_workers"`
}

// Parallel builds an ops.Parallel value from these settings. Nothing in
// the runtime passes it on: the compiled executors and element access
// call the primitives with a zero (serial) ops.Parallel.
func (s Scheduler) Parallel() ops.Parallel {
	return ops.Parallel{
		Enabled:   s.ParallelEnabled,
		Threshold: s.ParallelThreshold,
		Workers:   s.ParallelWorkers,
	}
}

// Unit maps one [[units]] entry: a named unit recognized by the
// compiler's Constant lowering, along with the quantity domain and
// decimal exponent it resolves to.
type Unit struct {
	Name     string `toml:"name"`
	Domain   string `toml:"domain"`
	Exponent int    `toml:"exponent"`
}

// defaultMaxTicks bounds a Scheduler.Run call when the file omits
// max_ticks or config is loaded as zero-value (the fixed-point loop
// must still terminate against a runaway, oscillating block graph).
const defaultMaxTicks = 10000

// Load reads and validates path as a Config document.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads TOML content from r and returns the validated Config.
func Parse(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode error: %w", err)
	}
	if cfg.Scheduler.MaxTicks == 0 {
		cfg.Scheduler.MaxTicks = defaultMaxTicks
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.ApplyUnits()
	return &cfg, nil
}

// ApplyUnits installs every [[units]] entry into the compiler's unit
// table. Called once by Parse/Load; exposed separately so a caller
// building Config by hand can apply it, or re-apply it after mutating
// Units.
func (c *Config) ApplyUnits() {
	for _, u := range c.Units {
		compile.RegisterUnit(u.Name, int32(u.Exponent), domainFor(u.Domain))
	}
}

// domainFor resolves a TOML domain name to the quantity domain it
// selects. Only "mass" is defined today; any other name, including
// empty, falls back to DomainNone so the unit still gets a scale
// without pretending to a domain the runtime can't check mismatches
// against.
func domainFor(name string) uint8 {
	if name == "mass" {
		return core.DomainMass
	}
	return core.DomainNone
}

func (c *Config) validate() error {
	if c.Scheduler.MaxTicks < 0 {
		return fmt.Errorf("config: scheduler.max_ticks must be non-negative, got %d", c.Scheduler.MaxTicks)
	}
	if c.Scheduler.ParallelThreshold < 0 {
		return fmt.Errorf("config: scheduler.parallel_threshold must be non-negative, got %d", c.Scheduler.ParallelThreshold)
	}
	seen := make(map[string]bool, len(c.Units))
	for _, u := range c.Units {
		if u.Name == "" {
			return fmt.Errorf("config: unit entry missing name")
		}
		if seen[u.Name] {
			return fmt.Errorf("config: duplicate unit %q", u.Name)
		}
		seen[u.Name] = true
	}
	return nil
}
