// Package config loads and saves interpreter options from TOML. The
// file format mirrors the option names the public surface accepts, so
// a hosting environment can persist a learner's settings verbatim.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/m68kschool/interpreter/interp"
	"github.com/m68kschool/interpreter/machine"
)

// Options is the full set of tunables an embedder can persist.
type Options struct {
	// Memory settings
	Memory struct {
		Size int `toml:"size"`
	} `toml:"memory"`

	// History settings
	History struct {
		Keep bool `toml:"keep"`
		Size int  `toml:"size"`
	} `toml:"history"`
}

// DefaultOptions returns options with every field at its documented
// default: full 24-bit memory and a bounded undo history.
func DefaultOptions() *Options {
	opts := &Options{}
	opts.Memory.Size = machine.DefaultMemorySize
	opts.History.Keep = true
	opts.History.Size = interp.DefaultHistorySize
	return opts
}

// Load reads options from a TOML file, filling unset fields with
// defaults. A missing file is not an error: the defaults apply.
func Load(path string) (*Options, error) {
	opts := DefaultOptions()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return opts, nil
	}
	if _, err := toml.DecodeFile(path, opts); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// LoadString parses options from TOML text, for embedders that manage
// their own storage.
func LoadString(text string) (*Options, error) {
	opts := DefaultOptions()
	if _, err := toml.Decode(text, opts); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Save writes the options to a TOML file.
func Save(path string, opts *Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: creating %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(opts); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// Validate rejects option values the interpreter cannot honor.
func (o *Options) Validate() error {
	if o.Memory.Size <= 0 {
		return fmt.Errorf("config: memory size must be positive, got %d", o.Memory.Size)
	}
	if o.History.Size < 0 {
		return fmt.Errorf("config: history size must not be negative, got %d", o.History.Size)
	}
	return nil
}

// Interp converts the persisted options to the interpreter's own
// option struct.
func (o *Options) Interp() interp.Options {
	return interp.Options{
		KeepHistory: o.History.Keep,
		HistorySize: o.History.Size,
	}
}
