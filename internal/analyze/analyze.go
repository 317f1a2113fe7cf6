// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package analyze

import (
	"github.com/pipit-lang/pipit/internal/diag"
	"github.com/pipit-lang/pipit/internal/pgraph"
	"github.com/pipit-lang/pipit/internal/thir"
)

// DefaultMemoryPoolBytes is spec §4.2.9's 64 MiB default, overridable by
// the resolved AST's `set mem = ...` directive (ResolvedProgram.MemBytes).
const DefaultMemoryPoolBytes uint64 = 64 * 1024 * 1024

// analyzer carries the shared read-only inputs and the AnalyzedProgram
// being built across every sub-phase; sub-phases are methods on it so they
// share diagnostics accumulation without threading extra parameters.
type analyzer struct {
	ctx      *thir.ThirContext
	pg       *pgraph.ProgramGraph
	out      *AnalyzedProgram
	memLimit uint64
	diagAccumulator
}

// Analyze runs spec §4.2's sub-phases in their fixed order, each depending
// on the results of the ones before it, and returns the accumulated
// AnalyzedProgram plus every diagnostic raised along the way (the
// accumulate-don't-short-circuit model of spec §7: a later sub-phase still
// runs even if an earlier one reported errors, so a single compile surfaces
// as many problems as possible).
func Analyze(ctx *thir.ThirContext, pg *pgraph.ProgramGraph) (*AnalyzedProgram, diag.Diagnostics) {
	memLimit := ctx.Resolved.MemBytes
	if memLimit == 0 {
		memLimit = DefaultMemoryPoolBytes
	}

	a := &analyzer{ctx: ctx, pg: pg, out: newAnalyzedProgram(), memLimit: memLimit}

	a.typeCheckEdges()         // 4.2.1, E0303
	a.recordSpanDerivedDims()  // 4.2.2
	a.inferShapes()            // 4.2.3, 4.2.4 (E0300-E0302, W0300)
	a.precomputePortRates()    // 4.2.5
	a.solveBalance()           // 4.2.6, E0304
	a.verifyFeedbackDelays()   // 4.2.7, E0305
	a.checkCrossClockRates()   // 4.2.8, E0306
	a.sizeBuffers()            // 4.2.9, E0307
	a.inferBindContracts()     // 4.2.10, E0311/E0312
	a.validateShmEndpoints()   // 4.2.11, E0720-E0726
	a.validateParamCtrlTypes() // 4.2.12, E0308-E0310

	return a.out, a.diags
}

// forEachSubgraph visits every (task, label, *Subgraph) triple in
// deterministic declaration order.
func (a *analyzer) forEachSubgraph(fn func(task, label string, sg *pgraph.Subgraph)) {
	for _, task := range a.pg.TaskOrder {
		tg := a.pg.Tasks[task]
		for _, label := range tg.Labels() {
			sg, _ := tg.SubgraphByLabel(label)
			fn(task, label, sg)
		}
	}
}
