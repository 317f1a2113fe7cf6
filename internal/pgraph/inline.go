// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package pgraph

import (
	"slices"

	"github.com/pipit-lang/pipit/internal/diag"
	"github.com/pipit-lang/pipit/internal/ids"
	"github.com/pipit-lang/pipit/internal/thir"
)

// inlineDefine recursively expands a call to a user-defined subgraph macro
// (spec §4.1.1). cur is the chain predecessor at the call site; the
// define's first element is wired to it exactly as a plain actor call
// would be, so the expansion is transparent to the surrounding chain.
// Formal parameters are substituted with the call's actual arguments on
// every sub-node; every inlined node gets a fresh NodeId (allocated from
// the same program-wide allocator as everything else). Taps declared
// inside the expansion are lexically scoped to it (spec §4.1.2: "must not
// leak to the outer scope") by swapping in a fresh tap scope for the
// duration of the expansion and restoring the caller's scope afterward.
func (sb *subBuilder) inlineDefine(cur chainRef, call thir.Call) chainRef {
	def, ok := sb.ctx.Resolved.Defines[call.Target]
	if !ok {
		// Structural guarantee from a well-formed resolved AST (spec §4.1.5
		// note: "everything else in this phase is structural").
		panic("pgraph: IsDefine reported a define that Defines does not contain: " + call.Target)
	}

	if slices.Contains(sb.inlineStack, call.Target) {
		sb.diags = sb.diags.Append(diag.Errorf(
			diag.CodeInlineRecursive, &call.SrcRange,
			"recursive define expansion",
			"define %q calls itself, directly or indirectly, via %v", call.Target, append(slices.Clone(sb.inlineStack), call.Target),
		))
		return sb.placeholderNode(cur, call)
	}
	if len(sb.inlineStack) >= maxInlineDepth {
		sb.diags = sb.diags.Append(diag.Errorf(
			diag.CodeInlineDepthExceeded, &call.SrcRange,
			"define inlining depth exceeded",
			"expanding %q would exceed the maximum inlining depth of %d", call.Target, maxInlineDepth,
		))
		return sb.placeholderNode(cur, call)
	}

	elements := substituteFormals(def, call.Args)

	outerTapDecl, outerPending := sb.tapDecl, sb.pendingTaps
	sb.tapDecl = map[string]ids.NodeId{}
	sb.pendingTaps = map[string][]pendingTapUse{}
	sb.inlineStack = append(sb.inlineStack, call.Target)

	for _, el := range elements {
		cur = sb.lowerElement(cur, el)
	}

	for name, uses := range sb.pendingTaps {
		for _, u := range uses {
			sb.diags = sb.diags.Append(diag.Errorf(
				diag.CodeUnresolvedTap, &u.srcRange,
				"unresolved tap reference",
				"tap %q inside define %q was never resolved", name, call.Target,
			))
		}
	}

	sb.tapDecl, sb.pendingTaps = outerTapDecl, outerPending
	sb.inlineStack = sb.inlineStack[:len(sb.inlineStack)-1]

	return cur
}

func substituteFormals(def thir.DefineDecl, actuals []thir.Arg) []thir.PipeElement {
	bind := map[string]thir.Arg{}
	for i, formal := range def.Formals {
		if i < len(actuals) {
			bind[formal] = actuals[i]
		}
	}
	out := make([]thir.PipeElement, len(def.Elements))
	for i, el := range def.Elements {
		out[i] = el
		if el.Kind == thir.ElementActorCall {
			out[i].Call.Args = substituteArgs(el.Call.Args, bind)
		}
	}
	return out
}

func substituteArgs(args []thir.Arg, bind map[string]thir.Arg) []thir.Arg {
	out := make([]thir.Arg, len(args))
	for i, a := range args {
		if a.Kind == thir.ArgConstRef {
			if actual, ok := bind[a.Name]; ok {
				out[i] = actual
				continue
			}
		}
		out[i] = a
	}
	return out
}

// placeholderNode is emitted in place of a define call that failed to
// inline (depth/recursion error), so the rest of the subgraph can still be
// built and report further diagnostics rather than aborting the whole
// phase (spec §7: accumulate, don't short-circuit). It is wired into the
// chain exactly like a successfully-lowered call would be.
func (sb *subBuilder) placeholderNode(cur chainRef, call thir.Call) chainRef {
	id := sb.ids.Nodes.New()
	sb.sg.addNode(Node{ID: id, Kind: NodeActor, ActorName: call.Target, CallID: call.ID, SrcRange: call.SrcRange})
	sb.connectChainTo(cur, id, call.SrcRange)
	return concreteRef(id)
}
