// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

// Package pipit orchestrates the compiler's core phases (spec §1): graph
// construction, static analysis, scheduling, LIR construction, and C++
// code generation. It is the thin glue the driver CLI calls into; the
// front end (lexing, parsing, name resolution, type checking) that
// produces a *thir.ThirContext is out of this module's scope.
package pipit

import (
	"fmt"

	"github.com/pipit-lang/pipit/internal/analyze"
	"github.com/pipit-lang/pipit/internal/codegen"
	"github.com/pipit-lang/pipit/internal/diag"
	"github.com/pipit-lang/pipit/internal/lir"
	"github.com/pipit-lang/pipit/internal/pgraph"
	"github.com/pipit-lang/pipit/internal/sched"
	"github.com/pipit-lang/pipit/internal/thir"
)

// Result is everything a single Compile call produces: the diagnostics
// every phase accumulated, and, if analysis found no errors, the
// generated C++ source plus the LIR postcondition certificate.
type Result struct {
	Diagnostics diag.Diagnostics
	Source      string
	Cert        lir.LirCert
}

// Options configures the phases Compile is free to choose a default
// implementation for (spec §1 treats scheduling policy as external).
type Options struct {
	Scheduler sched.Scheduler
	Codegen   codegen.Options
}

// DefaultOptions returns the reference scheduler and release-mode codegen
// defaults, the configuration a bare `pipitc` invocation uses.
func DefaultOptions() Options {
	return Options{
		Scheduler: sched.Reference{},
		Codegen:   codegen.Options{Release: true},
	}
}

// Compile runs every phase in order, short-circuiting before LIR
// construction and codegen once graph construction or analysis has
// accumulated any error-severity diagnostic -- a partial artifact from a
// broken program is never useful, and LIR/codegen assume an
// analysis-clean input.
func Compile(ctx *thir.ThirContext, opts Options) Result {
	var diags diag.Diagnostics

	pg, d := pgraph.Build(ctx)
	diags = diags.AppendAll(d)
	if diags.HasErrors() {
		return Result{Diagnostics: diags}
	}

	an, d := analyze.Analyze(ctx, pg)
	diags = diags.AppendAll(d)
	if diags.HasErrors() {
		return Result{Diagnostics: diags}
	}

	scheduler := opts.Scheduler
	if scheduler == nil {
		scheduler = sched.Reference{}
	}
	scheduled, err := scheduler.Schedule(ctx, pg, an)
	if err != nil {
		diags = diags.Append(diag.Sourceless(diag.Error, "scheduling failed", err.Error()))
		return Result{Diagnostics: diags}
	}

	prog, cert := lir.Build(ctx, pg, an, scheduled)
	if !cert.OK {
		diags = diags.Append(diag.Sourceless(diag.Error, "internal error: LIR certificate failed",
			fmt.Sprintf("%v", cert.Failures)))
		return Result{Diagnostics: diags, Cert: cert}
	}

	source := codegen.Generate(prog, opts.Codegen)
	return Result{Diagnostics: diags, Source: source, Cert: cert}
}
