// Package config loads the configuration of the curry tool from a TOML
// file.
//
//	[optimize]
//	no_tail_calls = false
//	no_inline = false
//	no_share = false
//
//	[machine]
//	max_steps = 0
//	max_call_stack_depth = 0
package config

import (
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mna/curry/lang/closure"
	"github.com/mna/curry/lang/machine"
	"tlog.app/go/errors"
)

// Config is the configuration of the compilation and execution of
// programs.
type Config struct {
	Optimize Optimize `toml:"optimize"`
	Machine  Machine  `toml:"machine"`
}

// Optimize disables optimizations of the generated code.
type Optimize struct {
	NoTailCalls bool `toml:"no_tail_calls"`
	NoInline    bool `toml:"no_inline"`
	NoShare     bool `toml:"no_share"`
}

// Machine limits the execution of programs. A value <= 0 means no limit.
type Machine struct {
	MaxSteps          int `toml:"max_steps"`
	MaxCallStackDepth int `toml:"max_call_stack_depth"`
}

// Default returns the default configuration, with all optimizations
// enabled and no limits.
func Default() *Config {
	return &Config{}
}

// Load decodes the TOML file at path over the default configuration. Keys
// that are not part of the configuration are an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "%s: failed to parse TOML", path)
	}
	if keys := meta.Undecoded(); len(keys) > 0 {
		names := make([]string, 0, len(keys))
		for _, k := range keys {
			names = append(names, k.String())
		}
		sort.Strings(names)
		return nil, errors.New("%s: unknown configuration keys: %s", path, strings.Join(names, ", "))
	}
	if cfg.Machine.MaxSteps < 0 || cfg.Machine.MaxCallStackDepth < 0 {
		return nil, errors.New("%s: [machine] limits must not be negative", path)
	}
	return cfg, nil
}

// Options returns the options of the closure conversion.
func (c *Config) Options() closure.Options {
	return closure.Options{
		NoTailCalls: c.Optimize.NoTailCalls,
		NoInline:    c.Optimize.NoInline,
		NoShare:     c.Optimize.NoShare,
	}
}

// Thread returns a machine thread configured with the limits.
func (c *Config) Thread() *machine.Thread {
	return &machine.Thread{
		MaxSteps:          c.Machine.MaxSteps,
		MaxCallStackDepth: c.Machine.MaxCallStackDepth,
	}
}
