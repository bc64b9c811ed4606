// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package cli contains the options shared by the
// asmgen subcommands.
package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"firefly-os.dev/tools/asmgen/internal/x86"
	"firefly-os.dev/tools/asmgen/internal/x86/desc"
	"firefly-os.dev/tools/asmgen/internal/x86/tables"
	"firefly-os.dev/tools/asmgen/internal/x86/x86gen"
)

// Options selects the configuration and
// descriptions to generate from.
type Options struct {
	ConfigFile string
	TableFile  string
	Bits32     bool
	Redundant  bool
	Addr16     bool
	Offset16   bool
	Verbose    bool
}

// Register adds the options as flags
// of cmd.
func (o *Options) Register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&o.ConfigFile, "config", "", "Read the generator config from a TOML `file`.")
	flags.StringVar(&o.TableFile, "table", "", "Read descriptions from a YAML `file` instead of the built-in tables.")
	flags.BoolVar(&o.Bits32, "32", false, "Generate for a 32-bit target.")
	flags.BoolVar(&o.Redundant, "redundant", false, "Keep redundant templates.")
	flags.BoolVar(&o.Addr16, "16bit-addresses", false, "Generate templates using the address size prefix.")
	flags.BoolVar(&o.Offset16, "16bit-offsets", false, "Generate jumps with 16-bit offsets.")
	flags.BoolVarP(&o.Verbose, "verbose", "v", false, "Log the templates generated for each description.")
}

// Config returns the generator config.
func (o *Options) Config() (*x86gen.Config, error) {
	if o.ConfigFile != "" && o.Bits32 {
		return nil, fmt.Errorf("--32 cannot be used with --config: set address-width in %s instead", o.ConfigFile)
	}

	var cfg *x86gen.Config
	if o.ConfigFile != "" {
		f, err := os.Open(o.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open config: %v", err)
		}

		defer f.Close()
		cfg, err = x86gen.LoadConfig(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", o.ConfigFile, err)
		}
	} else {
		width := x86.Bits64
		if o.Bits32 {
			width = x86.Bits32
		}

		var err error
		cfg, err = x86gen.NewConfig(width)
		if err != nil {
			return nil, err
		}
	}

	toggles := []struct {
		on     bool
		enable func() error
	}{
		{o.Redundant, cfg.AllowRedundantTemplates},
		{o.Addr16, cfg.Support16BitAddresses},
		{o.Offset16, cfg.Support16BitOffsets},
	}

	for _, toggle := range toggles {
		if !toggle.on {
			continue
		}

		if err := toggle.enable(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Descriptions returns the descriptions
// to generate from.
func (o *Options) Descriptions(addressWidth x86.Width) ([]*desc.Description, error) {
	if o.TableFile == "" {
		return tables.All(addressWidth), nil
	}

	f, err := os.Open(o.TableFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open description table: %v", err)
	}

	defer f.Close()
	table, err := desc.LoadYAML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", o.TableFile, err)
	}

	return table.Descriptions, nil
}

// Generate creates the templates selected
// by the options.
func (o *Options) Generate(ctx context.Context) (*x86gen.Config, []*x86gen.Template, error) {
	cfg, err := o.Config()
	if err != nil {
		return nil, nil, err
	}

	descs, err := o.Descriptions(cfg.AddressWidth())
	if err != nil {
		return nil, nil, err
	}

	var logger *log.Logger
	if o.Verbose {
		logger = log.Default()
	}

	templates, err := x86gen.Generate(ctx, cfg, descs, logger)
	if err != nil {
		return nil, nil, err
	}

	return cfg, templates, nil
}

// ParseArgument parses a command-line
// argument for parameter p.
func ParseArgument(p *x86gen.Parameter, s string) (x86.Argument, error) {
	if p.Kind == x86gen.KindEnumerable {
		arg, ok := p.Class.Lookup(s)
		if !ok {
			return nil, fmt.Errorf("%q is not a %s", s, p.Class.Name)
		}

		return arg, nil
	}

	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", s)
	}

	return x86.Immediate(n), nil
}
