// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package lir

import (
	"fmt"
	"slices"

	"github.com/zclconf/go-cty/cty"

	"github.com/pipit-lang/pipit/internal/collections"
	"github.com/pipit-lang/pipit/internal/ids"
	"github.com/pipit-lang/pipit/internal/pgraph"
	"github.com/pipit-lang/pipit/internal/sched"
	"github.com/pipit-lang/pipit/internal/thir"
)

func wireSizeBytes(t thir.WireType) uint64 {
	switch t {
	case thir.WireFloat, thir.WireInt32, thir.WireBool:
		return 4
	case thir.WireDouble, thir.WireCFloat:
		return 8
	default:
		return 4
	}
}

// buildInterTaskBuffers is spec §4.3.2: for each named inter-task buffer,
// trace its wire type from the writer, convert its analyzed byte size
// back to a token capacity, list readers in sorted order, and flag
// skip_writes when there are none.
func (b *builder) buildInterTaskBuffers() []LirInterTaskBuffer {
	var out []LirInterTaskBuffer
	for _, name := range collections.SortedKeys(b.ctx.Resolved.Buffers) {
		decl := b.ctx.Resolved.Buffers[name]
		wt := b.writerWireType(name)

		var bytes uint64
		for i, e := range b.pg.InterTaskEdges {
			if e.BufferName == name {
				bytes = b.an.InterTaskBufBytes[i]
				break
			}
		}
		capacity := bytes / wireSizeBytes(wt)
		if capacity == 0 {
			capacity = 1
		}

		readers := append([]string(nil), decl.ReaderTask...)
		slices.Sort(readers)

		out = append(out, LirInterTaskBuffer{
			Name:           name,
			CppType:        wt.CppType(),
			CapacityTokens: capacity,
			ReaderCount:    len(readers),
			ReaderTasks:    readers,
			SkipWrites:     len(readers) == 0,
		})
	}
	return out
}

// writerWireType traces a named buffer's wire type from its writer task's
// BufferWrite node backward to the nearest Actor, the same passthrough
// rule internal/analyze's typecheck.go uses.
func (b *builder) writerWireType(name string) thir.WireType {
	decl, ok := b.ctx.Resolved.Buffers[name]
	if !ok {
		return thir.WireVoid
	}
	tg, ok := b.pg.Tasks[decl.WriterTask]
	if !ok {
		return thir.WireVoid
	}
	for _, label := range tg.Labels() {
		sg, _ := tg.SubgraphByLabel(label)
		for _, n := range sg.Nodes {
			if n.Kind == pgraph.NodeBufferWrite && n.BufferName == name {
				return b.traceOutType(sg, n.ID, map[ids.NodeId]thir.WireType{})
			}
		}
	}
	return thir.WireVoid
}

func (b *builder) traceOutType(sg *pgraph.Subgraph, id ids.NodeId, memo map[ids.NodeId]thir.WireType) thir.WireType {
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
		if meta, ok := b.ctx.ActorMetaForCall(thir.Call{ID: n.CallID, Target: n.ActorName}); ok && len(meta.OutPorts) > 0 {
			t = meta.OutPorts[0].Type
		}
	case pgraph.NodeFork, pgraph.NodeProbe, pgraph.NodeBufferWrite:
		if in := sg.Incoming(id); len(in) > 0 {
			t = b.traceOutType(sg, in[0].Src, memo)
		}
	}
	memo[id] = t
	return t
}

// edgeBuffers is spec §4.3.4: name every edge's buffer variable in
// (src,tgt) declaration order, resolving Fork/Probe passthrough aliasing
// transitively and flagging back edges from the schedule's back-edge set.
func (b *builder) edgeBuffers(sg *pgraph.Subgraph, sub sched.SubgraphSchedule) []LirEdgeBuffer {
	ordered := append([]pgraph.Edge(nil), sg.Edges...)
	slices.SortFunc(ordered, func(x, y pgraph.Edge) int {
		if x.Src != y.Src {
			return int(x.Src) - int(y.Src)
		}
		return int(x.Tgt) - int(y.Tgt)
	})

	memo := map[ids.EdgeId]string{}
	out := make([]LirEdgeBuffer, 0, len(ordered))
	for _, e := range ordered {
		back := sub.BackEdges[sched.EdgeKey{Src: e.Src, Tgt: e.Tgt}]
		natural := naturalEdgeName(e, back)
		resolved := b.resolveEdgeVar(sg, e, sub, memo)

		eb := LirEdgeBuffer{
			Src: e.Src, Tgt: e.Tgt,
			VarName: resolved,
			CppType: b.traceOutType(sg, e.Src, map[ids.NodeId]thir.WireType{}).CppType(),
			IsBack:  back,
		}
		if resolved != natural {
			eb.IsAlias = true
			eb.AliasOf = resolved
			eb.VarName = natural
		}
		out = append(out, eb)
	}
	return out
}

func naturalEdgeName(e pgraph.Edge, back bool) string {
	if back {
		return fmt.Sprintf("_fb_%s_%s", e.Src, e.Tgt)
	}
	return fmt.Sprintf("_e%s_%s", e.Src, e.Tgt)
}

// resolveEdgeVar is spec §4.3.4 step 2: when e's source is a Fork/Probe
// node with exactly one incoming edge, e aliases that incoming edge's own
// (possibly itself aliased) buffer, resolved transitively. A back edge
// never aliases -- it owns persistent storage across K-loop iterations.
func (b *builder) resolveEdgeVar(sg *pgraph.Subgraph, e pgraph.Edge, sub sched.SubgraphSchedule, memo map[ids.EdgeId]string) string {
	if v, ok := memo[e.ID]; ok {
		return v
	}
	back := sub.BackEdges[sched.EdgeKey{Src: e.Src, Tgt: e.Tgt}]
	natural := naturalEdgeName(e, back)

	if !back {
		if srcNode, ok := sg.NodeByID(e.Src); ok && (srcNode.Kind == pgraph.NodeFork || srcNode.Kind == pgraph.NodeProbe) {
			if in := sg.Incoming(e.Src); len(in) == 1 {
				v := b.resolveEdgeVar(sg, in[0], sub, memo)
				memo[e.ID] = v
				return v
			}
		}
	}
	memo[e.ID] = natural
	return natural
}

// feedbackBuffers is spec §4.3.6: one persistent buffer per back edge,
// sized to the scheduled edge token count (the Open Question resolution
// in SPEC_FULL §5, not the placeholder length of 1), with its init value
// taken from the producing delay actor's second constructor argument.
func (b *builder) feedbackBuffers(sg *pgraph.Subgraph, sub sched.SubgraphSchedule) []LirFeedbackBuffer {
	var out []LirFeedbackBuffer
	for key := range sub.BackEdges {
		length := sub.EdgeTokens[key]
		if length == 0 {
			length = 1
		}
		wt := b.traceOutType(sg, key.Src, map[ids.NodeId]thir.WireType{})
		out = append(out, LirFeedbackBuffer{
			Src: key.Src, Tgt: key.Tgt,
			VarName:     naturalEdgeName(pgraph.Edge{Src: key.Src, Tgt: key.Tgt}, true),
			CppType:     wt.CppType(),
			Length:      length,
			InitLiteral: b.delayInitLiteral(sg, key.Src, wt),
		})
	}
	slices.SortFunc(out, func(x, y LirFeedbackBuffer) int {
		if x.Src != y.Src {
			return int(x.Src) - int(y.Src)
		}
		return int(x.Tgt) - int(y.Tgt)
	})
	return out
}

// delayInitLiteral reads the second constructor argument of the delay
// actor producing this back edge's value, defaulting to 0 when absent.
func (b *builder) delayInitLiteral(sg *pgraph.Subgraph, id ids.NodeId, wt thir.WireType) string {
	n, ok := sg.NodeByID(id)
	if !ok || n.Kind != pgraph.NodeActor || n.ActorName != "delay" || len(n.Args) < 2 {
		return CppLiteral(cty.NumberIntVal(0), wt)
	}
	arg := n.Args[1]
	if arg.Kind != thir.ArgValue {
		return CppLiteral(cty.NumberIntVal(0), wt)
	}
	return CppLiteral(arg.Value, wt)
}
