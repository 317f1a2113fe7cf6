// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package analyze

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/pipit-lang/pipit/internal/diag"
	"github.com/pipit-lang/pipit/internal/pgraph"
	"github.com/pipit-lang/pipit/internal/thir"
)

// recordSpanDerivedDims is spec §4.2.2. For each actor call whose
// constructor binds a `std::span<const T>` parameter to a constant array
// literal, the array's length authoritatively resolves any symbolic port
// dimension sharing the parameter's name. Recorded once, up front, so
// later phases (§4.2.3) never overwrite it.
func (a *analyzer) recordSpanDerivedDims() {
	a.forEachSubgraph(func(task, label string, sg *pgraph.Subgraph) {
		for _, n := range sg.Nodes {
			if n.Kind != pgraph.NodeActor {
				continue
			}
			meta, ok := a.ctx.ActorMetaForCall(thir.Call{ID: n.CallID, Target: n.ActorName})
			if !ok {
				continue
			}
			for i, p := range meta.Params {
				if p.Kind != thir.ParamSpan || i >= len(n.Args) {
					continue
				}
				arg := n.Args[i]
				if arg.Kind != thir.ArgValue || !arg.Value.CanIterateElements() {
					continue
				}
				l := arrayLiteralLen(arg.Value)
				if l < 0 {
					continue
				}
				if a.out.SpanDerivedDims[n.ID] == nil {
					a.out.SpanDerivedDims[n.ID] = map[string]uint32{}
				}
				a.out.SpanDerivedDims[n.ID][p.Name] = uint32(l)
			}
		}
	})
}

func arrayLiteralLen(v cty.Value) int {
	if v.IsNull() || !v.IsKnown() {
		return -1
	}
	ty := v.Type()
	if !ty.IsListType() && !ty.IsTupleType() && !ty.IsSetType() {
		return -1
	}
	return v.LengthInt()
}

// inferShapes is spec §4.2.3/§4.2.4: resolve every symbolic port dimension
// in precedence order (explicit call argument, explicit shape constraint,
// span-derived, edge-inferred), and flag unresolved dims and conflicts.
func (a *analyzer) inferShapes() {
	a.forEachSubgraph(func(task, label string, sg *pgraph.Subgraph) {
		for _, n := range sg.Nodes {
			if n.Kind != pgraph.NodeActor {
				continue
			}
			a.initNodeShapes(n)
		}
		for _, n := range sg.Nodes {
			if n.Kind == pgraph.NodeActor {
				a.resolveExplicitAndSpanDims(n)
			}
		}
		a.propagateEdgeInference(sg)
		for _, n := range sg.Nodes {
			if n.Kind == pgraph.NodeActor {
				a.checkUnresolvedAndOrdering(n)
			}
		}
	})
}

func (a *analyzer) initNodeShapes(n pgraph.Node) {
	meta, ok := a.ctx.ActorMetaForCall(thir.Call{ID: n.CallID, Target: n.ActorName})
	if !ok {
		return
	}
	shapes := NodeShapes{
		In:  make([][]ResolvedDim, len(meta.InPorts)),
		Out: make([][]ResolvedDim, len(meta.OutPorts)),
	}
	fill := func(ports []thir.PortShape) [][]ResolvedDim {
		out := make([][]ResolvedDim, len(ports))
		for pi, port := range ports {
			dims := make([]ResolvedDim, len(port.Dims))
			for di, d := range port.Dims {
				if d.Kind == thir.DimLiteral {
					dims[di] = ResolvedDim{Value: d.Literal, Source: DimDeclaredLiteral, HasValue: true}
				}
			}
			out[pi] = dims
		}
		return out
	}
	shapes.In = fill(meta.InPorts)
	shapes.Out = fill(meta.OutPorts)
	a.out.Shapes[n.ID] = shapes
}

// resolveDim applies the precedence/conflict rule of spec §4.2.4 (E0302):
// a dim already resolved to a different value from another source is a
// conflict, reported once, with the higher-precedence source's value kept.
func (a *analyzer) resolveDim(rng diag.SourceRange, slot *ResolvedDim, value uint32, source DimSource) {
	if !slot.HasValue {
		*slot = ResolvedDim{Value: value, Source: source, HasValue: true}
		return
	}
	if slot.Value == value {
		if source > slot.Source {
			slot.Source = source
		}
		return
	}
	a.add(diag.Errorf(diag.CodeShapeConflictSrc, &rng,
		"conflicting shape dimension resolution",
		"%s resolved this dimension to %d, but %s resolves it to %d", slot.Source, slot.Value, source, value))
	if source > slot.Source {
		*slot = ResolvedDim{Value: value, Source: source, HasValue: true}
	}
}

// resolveExplicitAndSpanDims resolves symbolic (ConstRef) port dims from
// the three highest-precedence sources: a PARAM(int,X) constructor argument
// bound to a literal at this call site, the node's own explicit shape
// constraint (its Shape field, applied to the output port), and the
// span-derived dims recorded for the node.
func (a *analyzer) resolveExplicitAndSpanDims(n pgraph.Node) {
	meta, ok := a.ctx.ActorMetaForCall(thir.Call{ID: n.CallID, Target: n.ActorName})
	if !ok {
		return
	}
	shapes := a.out.Shapes[n.ID]

	dimArgs := map[string]uint32{}
	for i, p := range meta.Params {
		if p.Kind != thir.ParamDim || i >= len(n.Args) {
			continue
		}
		arg := n.Args[i]
		if arg.Kind == thir.ArgValue && arg.Value.Type() == cty.Number {
			v, _ := arg.Value.AsBigFloat().Int64()
			dimArgs[p.DimName] = uint32(v)
		}
	}

	applyToPorts := func(ports []thir.PortShape, resolved [][]ResolvedDim, isOutput bool) {
		for pi, port := range ports {
			for di, d := range port.Dims {
				if d.Kind != thir.DimConstRef {
					continue
				}
				if v, ok := dimArgs[d.Ident]; ok {
					a.resolveDim(n.SrcRange, &resolved[pi][di], v, DimExplicitArg)
				}
				// The call-site shape constraint, when present, describes the
				// actor's (single) output port.
				if isOutput && pi == len(ports)-1 && len(n.Shape) == len(port.Dims) {
					if sd := n.Shape[di]; sd.Kind == thir.DimLiteral {
						a.resolveDim(n.SrcRange, &resolved[pi][di], sd.Literal, DimExplicitShape)
					}
				}
				if spans, ok := a.out.SpanDerivedDims[n.ID]; ok {
					if v, ok := spans[d.Ident]; ok {
						a.resolveDim(n.SrcRange, &resolved[pi][di], v, DimSpanDerived)
					}
				}
			}
		}
	}
	applyToPorts(meta.InPorts, shapes.In, false)
	applyToPorts(meta.OutPorts, shapes.Out, true)
	a.out.Shapes[n.ID] = shapes
}

// propagateEdgeInference is the worklist of spec §4.2.3: fill unresolved
// symbolic dims across edges, forward and backward, until a fixed point.
// Declaration-order edge iteration each round keeps results deterministic
// regardless of subgraph size (spec's "dense fixed-point" vs. "true
// worklist" distinction is a performance concern, not a semantic one: both
// must converge to the same fixed point).
func (a *analyzer) propagateEdgeInference(sg *pgraph.Subgraph) {
	maxRounds := len(sg.Nodes) + 1
	for round := 0; round < maxRounds; round++ {
		changed := false
		for _, e := range sg.Edges {
			if a.propagateOneEdge(sg, e) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

func (a *analyzer) propagateOneEdge(sg *pgraph.Subgraph, e pgraph.Edge) bool {
	srcN, ok := sg.NodeByID(e.Src)
	if !ok || srcN.Kind != pgraph.NodeActor {
		return false
	}
	tgtN, ok := sg.NodeByID(e.Tgt)
	if !ok || tgtN.Kind != pgraph.NodeActor {
		return false
	}
	srcShapes := a.out.Shapes[srcN.ID]
	tgtShapes := a.out.Shapes[tgtN.ID]
	if len(srcShapes.Out) == 0 || len(tgtShapes.In) == 0 {
		return false
	}
	srcDims := srcShapes.Out[len(srcShapes.Out)-1]
	tgtDims := tgtShapes.In[0]

	changed := false
	// Forward: fully-resolved producer shape fills unresolved consumer dims.
	if allResolved(srcDims) && len(srcDims) == len(tgtDims) {
		for i := range tgtDims {
			if !tgtDims[i].HasValue {
				tgtDims[i] = ResolvedDim{Value: srcDims[i].Value, Source: DimEdgeInferred, HasValue: true}
				changed = true
			}
		}
	}
	// Backward: skip when the consumer's declared shape is fully literal
	// (a fixed contract, not a frame dimension to borrow from upstream).
	if !allDeclaredLiteral(tgtDims) && allResolved(tgtDims) && len(srcDims) == len(tgtDims) {
		for i := range srcDims {
			if !srcDims[i].HasValue {
				srcDims[i] = ResolvedDim{Value: tgtDims[i].Value, Source: DimEdgeInferred, HasValue: true}
				changed = true
			}
		}
	}
	return changed
}

func allResolved(dims []ResolvedDim) bool {
	for _, d := range dims {
		if !d.HasValue {
			return false
		}
	}
	return true
}

func allDeclaredLiteral(dims []ResolvedDim) bool {
	for _, d := range dims {
		if d.Source != DimDeclaredLiteral {
			return false
		}
	}
	return len(dims) > 0
}

// checkUnresolvedAndOrdering emits E0300 for any symbolic dim that never
// resolved, and W0300 for a dim-parameter ordering style violation.
func (a *analyzer) checkUnresolvedAndOrdering(n pgraph.Node) {
	meta, ok := a.ctx.ActorMetaForCall(thir.Call{ID: n.CallID, Target: n.ActorName})
	if !ok {
		return
	}
	shapes := a.out.Shapes[n.ID]
	check := func(ports []thir.PortShape, resolved [][]ResolvedDim) {
		for pi, port := range ports {
			for di, d := range port.Dims {
				if d.Kind == thir.DimConstRef && !resolved[pi][di].HasValue {
					rng := n.SrcRange
					a.add(diag.Errorf(diag.CodeUnresolvedDim, &rng,
						"unresolved symbolic dimension",
						"actor %q has no value for dimension %q on port %d", n.ActorName, d.Ident, pi))
				}
			}
		}
	}
	check(meta.InPorts, shapes.In)
	check(meta.OutPorts, shapes.Out)

	seenNonDim := false
	for _, p := range meta.Params {
		if p.Kind != thir.ParamDim {
			seenNonDim = true
			continue
		}
		if seenNonDim {
			rng := n.SrcRange
			a.add(diag.Warnf(diag.CodeDimParamOrdering, &rng,
				"dimension parameter after non-dimension parameters",
				"actor %q declares dimension parameter %q after earlier non-dimension parameters", n.ActorName, p.Name))
			break
		}
	}
}
