// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

// Package config resolves the handful of settings that govern a pipitc
// invocation -- the generated C++'s build profile, its include search
// path, and a memory-pool setting -- from CLI flags.
package config

import (
	"github.com/spf13/pflag"

	"github.com/pipit-lang/pipit/internal/codegen"
)

// DefaultMemoryPoolBytes mirrors spec §4.3.1's default `mem` directive
// value, used when a program never sets its own memory pool bound.
const DefaultMemoryPoolBytes uint64 = 64 * 1024 * 1024

// Options is the resolved set of flags a pipitc invocation was given.
type Options struct {
	OutputPath      string
	Release         bool
	IncludePaths    []string
	MemoryPoolBytes uint64
	LogLevel        string
}

// Default returns the flag defaults a bare `pipitc` invocation uses.
func Default() Options {
	return Options{
		OutputPath:      "-",
		Release:         true,
		MemoryPoolBytes: DefaultMemoryPoolBytes,
		LogLevel:        "warn",
	}
}

// RegisterFlags binds o's fields to fs, in the same flag-then-defaults
// pattern the teacher's CLI layer uses for its own persistent flag sets.
func (o *Options) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.OutputPath, "output", "o", o.OutputPath, "write generated C++ to this path (\"-\" for stdout)")
	fs.BoolVar(&o.Release, "release", o.Release, "build probe instrumentation out of the generated source")
	fs.StringSliceVar(&o.IncludePaths, "include", o.IncludePaths, "additional header to #include in the generated source")
	fs.Uint64Var(&o.MemoryPoolBytes, "mem-pool", o.MemoryPoolBytes, "inter-task memory pool bound, in bytes (not passed to the compiler phases, which take the bound from the program's `set mem` directive)")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "compiler diagnostic log level (trace, debug, info, warn, error)")
}

// CodegenOptions translates the resolved flags into codegen's own option
// type.
func (o Options) CodegenOptions() codegen.Options {
	return codegen.Options{
		Release:      o.Release,
		IncludePaths: o.IncludePaths,
	}
}
