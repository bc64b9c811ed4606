// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package generate implements the asmgen generate
// subcommand, which lists the instruction templates.
package generate

import (
	"bufio"
	"os"

	"github.com/spf13/cobra"

	"firefly-os.dev/tools/asmgen/internal/cli"
	"firefly-os.dev/tools/asmgen/internal/x86/x86gen"
)

// NewCommand returns the generate
// subcommand.
func NewCommand() *cobra.Command {
	var (
		opts    cli.Options
		useJSON bool
		output  string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "List the instruction templates",
		Long: "Generate enumerates every encoding variant of the\n" +
			"instruction descriptions and prints one template per line.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, templates, err := opts.Generate(cmd.Context())
			if err != nil {
				return err
			}

			out := os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}

				defer f.Close()
				out = f
			}

			w := bufio.NewWriter(out)
			if useJSON {
				err = x86gen.WriteJSON(w, templates)
			} else {
				err = x86gen.WriteListing(w, templates)
			}

			if err != nil {
				return err
			}

			if err := w.Flush(); err != nil {
				return err
			}

			if out != os.Stdout {
				return out.Close()
			}

			return nil
		},
	}

	opts.Register(cmd)
	cmd.Flags().BoolVar(&useJSON, "json", false, "Print the templates as JSON, one object per line.")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the listing to `file` instead of standard output.")

	return cmd
}
