// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package lir

import (
	"github.com/pipit-lang/pipit/internal/analyze"
	"github.com/pipit-lang/pipit/internal/ids"
	"github.com/pipit-lang/pipit/internal/pgraph"
	"github.com/pipit-lang/pipit/internal/sched"
	"github.com/pipit-lang/pipit/internal/thir"
)

// resolveArgs is spec §4.3.7: materialize every constructor parameter
// slot of n into a LirActorArg. A tap-ref argument never materializes
// here -- graph construction already turned it into an extra Fork edge,
// so the value arrives over the wire, not through the constructor.
func (b *builder) resolveArgs(n pgraph.Node, meta thir.ActorMeta, sg *pgraph.Subgraph, sub sched.SubgraphSchedule) []LirActorArg {
	var out []LirActorArg
	var lastArrayConst string
	for i, formal := range meta.Params {
		if i < len(n.Args) {
			arg := n.Args[i]
			switch arg.Kind {
			case thir.ArgParamRef:
				out = append(out, LirActorArg{Kind: LirArgParamRef, Name: arg.Name})
				lastArrayConst = ""
			case thir.ArgConstRef:
				decl, ok := b.ctx.Resolved.Consts[arg.Name]
				if ok && decl.Value.CanIterateElements() {
					out = append(out, LirActorArg{Kind: LirArgConstSpan, Name: arg.Name})
					lastArrayConst = arg.Name
				} else {
					out = append(out, LirActorArg{Kind: LirArgConstScalar, Name: arg.Name})
					lastArrayConst = ""
				}
			case thir.ArgValue:
				out = append(out, LirActorArg{Kind: LirArgLiteral, Literal: CppLiteral(arg.Value, wireTypeForCpp(formal.CppType))})
				lastArrayConst = ""
			case thir.ArgTapRef:
				lastArrayConst = ""
			}
			continue
		}

		if formal.Kind != thir.ParamDim {
			continue
		}
		// Following a const-array argument that resolved an int count, the
		// auto-fill idiom (`fir(coeff)`) binds this dim straight to that
		// array's length rather than re-deriving it.
		if lastArrayConst != "" {
			if decl, ok := b.ctx.Resolved.Consts[lastArrayConst]; ok && decl.Value.CanIterateElements() {
				out = append(out, LirActorArg{Kind: LirArgConstArrayLen, Name: lastArrayConst})
				continue
			}
		}
		out = append(out, LirActorArg{Kind: LirArgDimValue, IntValue: int64(b.resolveDimValue(n, meta, formal, sg, sub))})
	}
	return out
}

// resolveDimValue applies §4.2.3's precedence order to find this node's
// value for a symbolic dimension named by a PARAM(int,X) slot that had no
// explicit call-site argument, falling back to §4.3.8's schedule-derived
// override when analysis never resolved it (both endpoints of an edge
// agreeing on tokens/repetition).
func (b *builder) resolveDimValue(n pgraph.Node, meta thir.ActorMeta, formal thir.ActorParam, sg *pgraph.Subgraph, sub sched.SubgraphSchedule) uint32 {
	shapes := b.an.Shapes[n.ID]
	if v, ok := namedDim(meta.OutPorts, shapes.Out, formal.DimName); ok {
		return v
	}
	if v, ok := namedDim(meta.InPorts, shapes.In, formal.DimName); ok {
		return v
	}
	if spans, ok := b.an.SpanDerivedDims[n.ID]; ok {
		if v, ok := spans[formal.DimName]; ok {
			return v
		}
	}
	if v, ok := b.scheduleDerivedDim(n.ID, sg, sub); ok {
		return v
	}
	return 0
}

// namedDim finds the resolved value of the dimension bound to ident among
// a port list's declared ShapeConstraints, matching the declared
// PortShape.Dims entry (by DimConstRef identifier) to its resolved
// counterpart at the same port/dim index.
func namedDim(ports []thir.PortShape, resolved [][]analyze.ResolvedDim, ident string) (uint32, bool) {
	for pi, port := range ports {
		if pi >= len(resolved) {
			continue
		}
		for di, d := range port.Dims {
			if !d.IsSymbolic() || d.Ident != ident || di >= len(resolved[pi]) {
				continue
			}
			if rd := resolved[pi][di]; rd.HasValue {
				return rd.Value, true
			}
		}
	}
	return 0, false
}

// scheduleDerivedDim is spec §4.3.8: when every edge touching id's ports
// agrees on edge_tokens / firing_repetition, take that quotient as the
// dim's value -- the last-resort source for a symbolic dim that neither
// shape inference nor span derivation ever pinned down.
func (b *builder) scheduleDerivedDim(id ids.NodeId, sg *pgraph.Subgraph, sub sched.SubgraphSchedule) (uint32, bool) {
	rep := uint32(0)
	for _, f := range sub.Firings {
		if f.NodeID == id {
			rep = f.RepetitionCount
			break
		}
	}
	if rep == 0 {
		return 0, false
	}

	var value uint32
	found := false
	consider := func(tokens uint32) bool {
		if tokens%rep != 0 {
			return false
		}
		v := tokens / rep
		if !found {
			value, found = v, true
			return true
		}
		return v == value
	}

	for _, e := range sg.Incoming(id) {
		tokens, ok := sub.EdgeTokens[sched.EdgeKey{Src: e.Src, Tgt: e.Tgt}]
		if !ok || !consider(tokens) {
			return 0, false
		}
	}
	for _, e := range sg.Outgoing(id) {
		tokens, ok := sub.EdgeTokens[sched.EdgeKey{Src: e.Src, Tgt: e.Tgt}]
		if !ok || !consider(tokens) {
			return 0, false
		}
	}
	return value, found
}

// wireTypeForCpp is the literal-formatting counterpart of cppTypeToWireType,
// used when an ArgValue's target slot is described by a formal parameter's
// declared C++ type rather than a port's wire type.
func wireTypeForCpp(cppType string) thir.WireType {
	return cppTypeToWireType(cppType)
}
