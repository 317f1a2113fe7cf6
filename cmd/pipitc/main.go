// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

// Command pipitc is the Pipit compiler driver: it resolves CLI flags,
// loads a resolved program, runs the core phases, and writes the
// generated C++ translation unit.
//
// Lexing, parsing, name resolution, and type checking -- the front end
// that turns `.pdl` source into a *thir.ThirContext -- are out of this
// module's scope (spec §1's "OUT OF SCOPE"). loadThirContext below is
// that integration seam.
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/colorstring"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pipit-lang/pipit/internal/config"
	"github.com/pipit-lang/pipit/internal/diagfmt"
	"github.com/pipit-lang/pipit/internal/pipit"
	"github.com/pipit-lang/pipit/internal/thir"
)

func main() {
	os.Exit(run(os.Args[1:], afero.NewOsFs()))
}

func run(args []string, fs afero.Fs) int {
	opts := config.Default()

	cmd := &cobra.Command{
		Use:           "pipitc [source.pdl]",
		Short:         "Compile a Pipit dataflow program to standalone C++",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
	}
	opts.RegisterFlags(cmd.Flags())

	exitCode := 0
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		log := hclog.New(&hclog.LoggerOptions{
			Name:  "pipitc",
			Level: hclog.LevelFromString(opts.LogLevel),
		})

		ctx, err := loadThirContext(fs, args[0])
		if err != nil {
			return err
		}

		log.Debug("running core phases", "source", args[0])
		result := pipit.Compile(ctx, pipit.Options{
			Codegen: opts.CodegenOptions(),
		})

		if len(result.Diagnostics) > 0 {
			color := &colorstring.Colorize{Colors: colorstring.DefaultColors, Disable: true}
			fmt.Fprint(os.Stderr, diagfmt.Diagnostics(result.Diagnostics, nil, color, 80))
		}
		if result.Diagnostics.HasErrors() {
			exitCode = 1
			return nil
		}

		if opts.OutputPath == "-" {
			fmt.Fprint(os.Stdout, result.Source)
			return nil
		}
		return afero.WriteFile(fs, opts.OutputPath, []byte(result.Source), 0o644)
	}
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}

// loadThirContext is the front-end integration seam: given a `.pdl`
// source path, produce the resolved program the core phases consume. No
// `.pdl` lexer/parser ships with this module, so this always fails until
// a front end is wired in.
func loadThirContext(fs afero.Fs, path string) (*thir.ThirContext, error) {
	if exists, _ := afero.Exists(fs, path); !exists {
		return nil, fmt.Errorf("%s: no such file", path)
	}
	return nil, fmt.Errorf("%s: no .pdl front end wired into this build", path)
}
