// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package assemble implements the asmgen assemble
// subcommand, which encodes a single instruction.
package assemble

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"firefly-os.dev/tools/asmgen/internal/cli"
	"firefly-os.dev/tools/asmgen/internal/x86"
	"firefly-os.dev/tools/asmgen/internal/x86/x86gen"
)

// NewCommand returns the assemble
// subcommand.
func NewCommand() *cobra.Command {
	var opts cli.Options
	cmd := &cobra.Command{
		Use:   "assemble METHOD [ARG...]",
		Short: "Encode one instruction",
		Long: "Assemble encodes an instruction using the first template with\n" +
			"the given method name whose parameters accept the arguments.\n\n" +
			"Registers are given by name, scales as 1, 2, 4, or 8, and\n" +
			"numbers in Go syntax.",
		Example: "  asmgen assemble add ecx edx\n  asmgen assemble m_add 0x1000 eax",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, templates, err := opts.Generate(cmd.Context())
			if err != nil {
				return err
			}

			t, code, err := Assemble(templates, cfg.AddressWidth(), args[0], args[1:])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "% x\t%s\n", code, t)

			return nil
		},
	}

	opts.Register(cmd)

	return cmd
}

// Assemble encodes the instruction with the
// given method name and arguments, using the
// first template that accepts them.
func Assemble(templates []*x86gen.Template, addressWidth x86.Width, method string, args []string) (*x86gen.Template, []byte, error) {
	var problems []string
	found := false
	for _, t := range templates {
		if t.MethodName() != method || len(t.Parameters) != len(args) {
			continue
		}

		found = true
		values := make([]x86.Argument, len(args))
		var err error
		for i, p := range t.Parameters {
			values[i], err = cli.ParseArgument(p, args[i])
			if err != nil {
				break
			}
		}

		if err == nil {
			var code []byte
			code, err = x86gen.NewAssembler(t, addressWidth).Assemble(values...)
			if err == nil {
				return t, code, nil
			}

			if !errors.Is(err, x86gen.ErrNotEncodable) {
				return nil, nil, err
			}
		}

		problems = append(problems, fmt.Sprintf("\t%s: %v", t, err))
	}

	if !found {
		return nil, nil, fmt.Errorf("no template %s with %d parameters", method, len(args))
	}

	return nil, nil, fmt.Errorf("no template %s accepts %s:\n%s", method, strings.Join(args, ", "), strings.Join(problems, "\n"))
}
