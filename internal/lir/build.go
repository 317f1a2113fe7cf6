// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package lir

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/pipit-lang/pipit/internal/analyze"
	"github.com/pipit-lang/pipit/internal/collections"
	"github.com/pipit-lang/pipit/internal/pgraph"
	"github.com/pipit-lang/pipit/internal/sched"
	"github.com/pipit-lang/pipit/internal/thir"
)

// defaultMemBytes/defaultTimerSpinNs are spec §4.3.1's directive defaults.
const (
	defaultMemBytes    uint64 = 64 * 1024 * 1024
	defaultTimerSpinNs uint64 = 10000
)

// builder carries the read-only inputs every construction step needs.
type builder struct {
	ctx       *thir.ThirContext
	pg        *pgraph.ProgramGraph
	an        *analyze.AnalyzedProgram
	scheduled *sched.ScheduledProgram
}

// Build is spec §4.3: a pure function from (ThirContext, ProgramGraph,
// AnalyzedProgram, ScheduledProgram) to (LirProgram, LirCert). It never
// produces diagnostics.
func Build(ctx *thir.ThirContext, pg *pgraph.ProgramGraph, an *analyze.AnalyzedProgram, scheduled *sched.ScheduledProgram) (*LirProgram, LirCert) {
	b := &builder{ctx: ctx, pg: pg, an: an, scheduled: scheduled}

	prog := &LirProgram{
		Consts:     b.buildConsts(),
		Params:     b.buildParams(),
		Directives: b.buildDirectives(),
		Buffers:    b.buildInterTaskBuffers(),
		Probes:     b.collectProbeNames(),
	}
	prog.TotalMemory = an.TotalMemory

	for _, name := range scheduled.TaskOrder {
		prog.Tasks = append(prog.Tasks, b.buildTask(name))
	}

	return prog, certify(scheduled, prog)
}

// buildConsts is spec §4.3.1's direct translation of every top-level
// `const` into its C++ storage form, literals pre-formatted.
func (b *builder) buildConsts() []LirConst {
	var out []LirConst
	for _, name := range collections.SortedKeys(b.ctx.Resolved.Consts) {
		decl := b.ctx.Resolved.Consts[name]
		if decl.Value.CanIterateElements() {
			out = append(out, LirConst{
				Name:     name,
				Kind:     LirConstArray,
				ElemType: thir.WireFloat,
				Elements: CppArrayLiteral(decl.Value, thir.WireFloat),
			})
			continue
		}
		t := constScalarType(decl.Value)
		out = append(out, LirConst{
			Name:     name,
			Kind:     LirConstScalar,
			ElemType: t,
			Scalar:   CppLiteral(decl.Value, t),
		})
	}
	return out
}

// constScalarType infers a wire type from a scalar const's own cty value
// type, since a top-level const has no actor-port context to borrow one
// from. Absent a consuming actor's declared span element type, array
// consts (the common `coeff` idiom feeding a span parameter) default to
// float, matching the §4.3.7 span/array-length auto-fill rule.
func constScalarType(v cty.Value) thir.WireType {
	switch {
	case v.Type() == cty.Bool:
		return thir.WireBool
	case v.Type() == cty.String:
		return thir.WireUnknown
	default:
		return thir.WireFloat
	}
}
