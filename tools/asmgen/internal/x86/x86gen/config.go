// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86gen

import (
	"errors"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"

	"firefly-os.dev/tools/asmgen/internal/x86"
)

// ErrConfigFrozen is returned when a
// config is changed after generation
// has started.
var ErrConfigFrozen = errors.New("config cannot be changed once template generation has started")

// Config controls template generation.
//
// The toggles can only be enabled, and
// only before the config is passed to
// NewCreator or Generate.
type Config struct {
	addressWidth          x86.Width
	support16BitAddresses bool
	support16BitOffsets   bool
	redundantTemplates    bool
	frozen                bool
}

// NewConfig returns a config for a target
// with the given address width, which
// must be 32 or 64.
func NewConfig(addressWidth x86.Width) (*Config, error) {
	switch addressWidth {
	case x86.Bits32, x86.Bits64:
	default:
		return nil, fmt.Errorf("invalid address width %d: must be 32 or 64", addressWidth)
	}

	return &Config{addressWidth: addressWidth}, nil
}

// AddressWidth returns the target
// address width.
func (c *Config) AddressWidth() x86.Width { return c.addressWidth }

func (c *Config) enable(b *bool) error {
	if c.frozen {
		return ErrConfigFrozen
	}

	*b = true
	return nil
}

// Support16BitAddresses enables templates
// using the address size prefix.
func (c *Config) Support16BitAddresses() error { return c.enable(&c.support16BitAddresses) }

// Support16BitOffsets enables jumps with
// 16-bit relative offsets.
func (c *Config) Support16BitOffsets() error { return c.enable(&c.support16BitOffsets) }

// AllowRedundantTemplates keeps templates
// that are redundant with an earlier one,
// marking them as redundant.
func (c *Config) AllowRedundantTemplates() error { return c.enable(&c.redundantTemplates) }

// freeze stops further changes to c and
// returns a copy for the generator.
func (c *Config) freeze() Config {
	c.frozen = true
	return *c
}

func (c *Config) String() string {
	return fmt.Sprintf("address width %d, 16-bit addresses %v, 16-bit offsets %v, redundant templates %v",
		c.addressWidth, c.support16BitAddresses, c.support16BitOffsets, c.redundantTemplates)
}

// configFile is the TOML form of Config.
type configFile struct {
	AddressWidth          int  `toml:"address-width"`
	Support16BitAddresses bool `toml:"support-16-bit-addresses"`
	Support16BitOffsets   bool `toml:"support-16-bit-offsets"`
	RedundantTemplates    bool `toml:"redundant-templates"`
}

// LoadConfig reads a config in TOML form.
// The address width defaults to 64.
func LoadConfig(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %v", err)
	}

	var file configFile
	err = toml.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	if file.AddressWidth == 0 {
		file.AddressWidth = 64
	}

	if file.AddressWidth != 32 && file.AddressWidth != 64 {
		return nil, fmt.Errorf("invalid config: address width %d must be 32 or 64", file.AddressWidth)
	}

	c, _ := NewConfig(x86.Width(file.AddressWidth))
	c.support16BitAddresses = file.Support16BitAddresses
	c.support16BitOffsets = file.Support16BitOffsets
	c.redundantTemplates = file.RedundantTemplates

	return c, nil
}
