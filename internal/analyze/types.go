// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

// Package analyze implements spec §4.2: the fixed-order static-analysis
// sub-phases that turn a ProgramGraph into an AnalyzedProgram (resolved
// shapes, port rates, repetition vectors, buffer sizes, bind contracts)
// plus diagnostics. Later sub-phases depend on earlier ones, so Analyze
// runs them in the order spec §4.2 lists them.
package analyze

import (
	"github.com/pipit-lang/pipit/internal/diag"
	"github.com/pipit-lang/pipit/internal/ids"
	"github.com/pipit-lang/pipit/internal/thir"
)

// DimSource ranks where a resolved shape dimension came from, in the
// precedence order spec §4.2.3 defines. Carried per-dimension (not just
// per-node) so a conflict diagnostic (E0302) can name which two sources
// disagreed, per original_source/analyze.rs (SPEC_FULL §3.2).
type DimSource int

const (
	DimUnresolved DimSource = iota
	DimDeclaredLiteral
	DimEdgeInferred
	DimSpanDerived
	DimExplicitShape
	DimExplicitArg
)

func (s DimSource) String() string {
	switch s {
	case DimDeclaredLiteral:
		return "declared literal"
	case DimEdgeInferred:
		return "edge-inferred"
	case DimSpanDerived:
		return "span-derived"
	case DimExplicitShape:
		return "explicit shape constraint"
	case DimExplicitArg:
		return "explicit call argument"
	default:
		return "unresolved"
	}
}

// ResolvedDim is one dimension's resolved value plus the provenance used
// for conflict reporting.
type ResolvedDim struct {
	Value    uint32
	Source   DimSource
	HasValue bool
}

// NodeShapes holds the resolved input/output port shapes for one node,
// dimension by dimension, with provenance.
type NodeShapes struct {
	In  [][]ResolvedDim
	Out [][]ResolvedDim
}

// NodePortRates is spec §3.2's per-node rate pair.
type NodePortRates struct {
	InRate  uint32
	OutRate uint32
}

// SubgraphKey identifies one subgraph within the whole program for keying
// per-subgraph analysis results (spec §4.2.6): task name plus a label that
// is "pipeline", "control", or a mode name.
type SubgraphKey struct {
	Task  string
	Label string
}

// BindDirection is spec §3.2's bind direction.
type BindDirection int

const (
	BindIn BindDirection = iota
	BindOut
)

func (d BindDirection) String() string {
	if d == BindOut {
		return "out"
	}
	return "in"
}

// BindContract is spec §3.2's per-external-binding inferred contract.
type BindContract struct {
	Direction BindDirection
	DType     thir.WireType
	Shape     []uint32
	RateHz    float64
	StableID  string
}

// AnalyzedProgram is the output of spec §4.2: every sub-phase's results,
// keyed the way downstream LIR construction needs them.
type AnalyzedProgram struct {
	RepetitionVectors map[SubgraphKey]map[ids.NodeId]uint32
	InterTaskBufBytes map[int]uint64 // index into ProgramGraph.InterTaskEdges
	TotalMemory       uint64
	Shapes            map[ids.NodeId]NodeShapes
	SpanDerivedDims   map[ids.NodeId]map[string]uint32
	PortRates         map[ids.NodeId]NodePortRates
	Binds             map[string]BindContract
}

func newAnalyzedProgram() *AnalyzedProgram {
	return &AnalyzedProgram{
		RepetitionVectors: map[SubgraphKey]map[ids.NodeId]uint32{},
		InterTaskBufBytes: map[int]uint64{},
		Shapes:            map[ids.NodeId]NodeShapes{},
		SpanDerivedDims:   map[ids.NodeId]map[string]uint32{},
		PortRates:         map[ids.NodeId]NodePortRates{},
		Binds:             map[string]BindContract{},
	}
}

// wireSizeBytes is sizeof(wire type) in the generated C++ (spec §4.2.9).
func wireSizeBytes(t thir.WireType) uint64 {
	switch t {
	case thir.WireFloat, thir.WireInt32, thir.WireBool:
		return 4
	case thir.WireDouble:
		return 8
	case thir.WireCFloat:
		return 8
	default:
		return 4
	}
}

// diagAccumulator is the small shared helper every sub-phase file appends
// findings to; Analyze flattens them all at the end.
type diagAccumulator struct {
	diags diag.Diagnostics
}

func (a *diagAccumulator) add(d diag.Diagnostic) { a.diags = a.diags.Append(d) }
