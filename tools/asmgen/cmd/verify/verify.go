// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package verify implements the asmgen verify
// subcommand, which decodes sample encodings of
// every template.
package verify

import (
	"fmt"

	"github.com/spf13/cobra"

	"firefly-os.dev/tools/asmgen/internal/cli"
	"firefly-os.dev/tools/asmgen/internal/x86/verify"
)

// NewCommand returns the verify
// subcommand.
func NewCommand() *cobra.Command {
	var opts cli.Options
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Decode sample encodings of every template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, templates, err := opts.Generate(cmd.Context())
			if err != nil {
				return err
			}

			report, err := verify.Check(templates, cfg.AddressWidth())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, f := range report.Failures {
				fmt.Fprintln(w, f)
			}

			fmt.Fprintf(w, "%d templates, %d encodings, %d not encodable, %d failures\n",
				report.Templates, report.Encoded, report.NotEncodable, len(report.Failures))
			if len(report.Failures) != 0 {
				return fmt.Errorf("%d encodings failed to decode", len(report.Failures))
			}

			return nil
		},
	}

	opts.Register(cmd)

	return cmd
}
