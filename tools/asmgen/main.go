// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Command asmgen generates x86 instruction templates
// from instruction descriptions, and uses them to
// encode instructions.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"firefly-os.dev/tools/asmgen/cmd/assemble"
	"firefly-os.dev/tools/asmgen/cmd/generate"
	"firefly-os.dev/tools/asmgen/cmd/verify"
)

const program = "asmgen"

func init() {
	log.SetFlags(0)
	log.SetPrefix(program + ": ")
}

func main() {
	root := &cobra.Command{
		Use:           program,
		Short:         "Generate and use x86 instruction templates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.CompletionOptions.DisableDefaultCmd = true
	root.AddCommand(
		generate.NewCommand(),
		assemble.NewCommand(),
		verify.NewCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := root.ExecuteContext(ctx)
	if err != nil {
		stop()
		log.Fatal(err)
	}
}
