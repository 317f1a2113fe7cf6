// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package analyze

import (
	"fmt"

	"github.com/pipit-lang/pipit/internal/diag"
	"github.com/pipit-lang/pipit/internal/ids"
	"github.com/pipit-lang/pipit/internal/pgraph"
	"github.com/pipit-lang/pipit/internal/thir"
)

// conversionHints is a small fixed table of suggested conversion actors
// keyed by (from,to) wire-type pairs, carried forward from
// original_source/analyze.rs (SPEC_FULL §3 supplement 1): a type-mismatch
// diagnostic names a concrete fix when one is known.
var conversionHints = map[[2]thir.WireType]string{
	{thir.WireFloat, thir.WireCFloat}: "f32_to_cf32",
	{thir.WireCFloat, thir.WireFloat}: "cf32_to_f32",
	{thir.WireInt32, thir.WireFloat}:  "i32_to_f32",
	{thir.WireFloat, thir.WireInt32}:  "f32_to_i32",
	{thir.WireInt32, thir.WireDouble}: "i32_to_f64",
	{thir.WireFloat, thir.WireDouble}: "f32_to_f64",
	{thir.WireDouble, thir.WireFloat}: "f64_to_f32",
}

// typeCheckEdges is spec §4.2.1. For every edge in every subgraph it
// resolves the producer and consumer wire types and reports a mismatch
// (E0303), `void` being wildcard-compatible with anything.
func (a *analyzer) typeCheckEdges() {
	a.forEachSubgraph(func(task, label string, sg *pgraph.Subgraph) {
		memo := map[ids.NodeId]thir.WireType{}
		for _, e := range sg.Edges {
			outT := a.outType(sg, e.Src, memo)
			inT := a.inType(sg, e.Tgt, memo)
			if outT.CompatibleWith(inT) {
				continue
			}
			rng := e.SrcRange
			detail := fmt.Sprintf("producer type %q is not compatible with consumer type %q", outT, inT)
			if hint, ok := conversionHints[[2]thir.WireType{outT, inT}]; ok {
				detail += fmt.Sprintf(" (consider inserting %q)", hint)
			}
			a.add(diag.Errorf(diag.CodeEdgeTypeMismatch, &rng,
				"type mismatch across edge", "%s", detail))
		}
	})
}

// outType resolves the wire type a node emits, tracing backward through
// passthrough node kinds (Fork, Probe, BufferWrite has no output so it is
// never a source) to the nearest Actor, per spec §4.2.1.
func (a *analyzer) outType(sg *pgraph.Subgraph, id ids.NodeId, memo map[ids.NodeId]thir.WireType) thir.WireType {
	if t, ok := memo[id]; ok {
		return t
	}
	n, ok := sg.NodeByID(id)
	if !ok {
		return thir.WireVoid
	}
	var t thir.WireType
	switch n.Kind {
	case pgraph.NodeActor:
		if meta, ok := a.ctx.ActorMetaForCall(thir.Call{ID: n.CallID, Target: n.ActorName}); ok && len(meta.OutPorts) > 0 {
			t = meta.OutPorts[0].Type
		} else {
			t = thir.WireVoid
		}
	case pgraph.NodeFork, pgraph.NodeProbe, pgraph.NodeBufferWrite:
		t = thir.WireVoid
		if in := sg.Incoming(id); len(in) > 0 {
			t = a.outType(sg, in[0].Src, memo)
		}
	case pgraph.NodeBufferRead:
		t = a.bufferWriterType(n.BufferName)
	default:
		t = thir.WireVoid
	}
	memo[id] = t
	return t
}

// inType resolves the wire type a node consumes.
func (a *analyzer) inType(sg *pgraph.Subgraph, id ids.NodeId, memo map[ids.NodeId]thir.WireType) thir.WireType {
	n, ok := sg.NodeByID(id)
	if !ok {
		return thir.WireVoid
	}
	switch n.Kind {
	case pgraph.NodeActor:
		if meta, ok := a.ctx.ActorMetaForCall(thir.Call{ID: n.CallID, Target: n.ActorName}); ok && len(meta.InPorts) > 0 {
			return meta.InPorts[0].Type
		}
		return thir.WireVoid
	case pgraph.NodeFork, pgraph.NodeProbe, pgraph.NodeBufferWrite:
		// Passthrough consumers inherit whatever flows in; their own
		// "consumed type" is whatever their upstream produces.
		if in := sg.Incoming(id); len(in) > 0 {
			return a.outType(sg, in[0].Src, memo)
		}
		return thir.WireVoid
	default:
		return thir.WireVoid
	}
}

// bufferWriterType finds the wire type written to a named inter-task
// buffer by tracing into the writer task's BufferWrite node (spec §4.2.1:
// "trace into the writer task").
func (a *analyzer) bufferWriterType(name string) thir.WireType {
	decl, ok := a.ctx.Resolved.Buffers[name]
	if !ok {
		return thir.WireVoid
	}
	wtg, ok := a.pg.Tasks[decl.WriterTask]
	if !ok {
		return thir.WireVoid
	}
	for _, label := range wtg.Labels() {
		wsg, _ := wtg.SubgraphByLabel(label)
		for _, n := range wsg.Nodes {
			if n.Kind == pgraph.NodeBufferWrite && n.BufferName == name {
				memo := map[ids.NodeId]thir.WireType{}
				return a.outType(wsg, n.ID, memo)
			}
		}
	}
	return thir.WireVoid
}
