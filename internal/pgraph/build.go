// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package pgraph

import (
	"fmt"

	"github.com/pipit-lang/pipit/internal/diag"
	"github.com/pipit-lang/pipit/internal/ids"
	"github.com/pipit-lang/pipit/internal/thir"
)

// maxInlineDepth is the hard define-inlining recursion limit (spec §4.1.1).
const maxInlineDepth = 16

// Build lowers a resolved AST to a ProgramGraph: per-task subgraphs, taps
// expanded to Fork nodes, inter-task edges wired, and feedback cycles
// detected. It is the entry point for spec §4.1.
func Build(ctx *thir.ThirContext) (*ProgramGraph, diag.Diagnostics) {
	b := &builder{ctx: ctx}
	pg := &ProgramGraph{Tasks: map[string]*TaskGraph{}}

	for _, task := range ctx.Resolved.Tasks {
		tg := b.lowerTask(task)
		pg.Tasks[task.Name] = tg
		pg.TaskOrder = append(pg.TaskOrder, task.Name)
	}

	pg.InterTaskEdges = wireInterTaskEdges(ctx, pg)
	pg.Cycles = detectAllCycles(pg)

	return pg, b.diags
}

// builder carries the shared id allocator and accumulated diagnostics
// across every task's lowering; spec §9 models ids as allocated by a single
// per-program IdAllocator so NodeId/EdgeId stay dense and unique across
// subgraph boundaries.
type builder struct {
	ctx   *thir.ThirContext
	ids   ids.IdAllocator
	diags diag.Diagnostics
}

func (b *builder) lowerTask(task thir.TaskDecl) *TaskGraph {
	switch task.Kind {
	case thir.TaskModal:
		tg := &TaskGraph{Kind: TaskGraphModal, Switch: task.Switch}
		tg.Control = b.lowerSubgraph(task.Control)
		for _, mode := range task.Modes {
			tg.Modes = append(tg.Modes, ModeSubgraph{
				Name:     mode.Name,
				Subgraph: b.lowerSubgraph(mode.Body),
			})
		}
		return tg
	default:
		tg := &TaskGraph{Kind: TaskGraphPipeline}
		tg.Pipeline = b.lowerSubgraph(task.Body)
		return tg
	}
}

// chainRef is the predecessor a chain edge should originate from: either a
// concrete, already-materialized node, a tap name whose Fork node has not
// been declared yet (forward reference, spec §4.1.2), or "none" (a call
// used as a pipe source has no predecessor edge at all).
type chainRefKind int

const (
	refNone chainRefKind = iota
	refConcrete
	refPendingTap
)

type chainRef struct {
	kind    chainRefKind
	node    ids.NodeId
	pending string // valid when kind == refPendingTap
}

func concreteRef(n ids.NodeId) chainRef { return chainRef{kind: refConcrete, node: n} }
func pendingRef(name string) chainRef   { return chainRef{kind: refPendingTap, pending: name} }

// subBuilder lowers one subgraph (a pipeline body, a control block, or one
// mode block). Tap scope is lexically bounded to the subgraph: a fresh
// subBuilder's tap tables never see another subgraph's taps.
type subBuilder struct {
	*builder
	sg          Subgraph
	tapDecl     map[string]ids.NodeId
	pendingTaps map[string][]pendingTapUse
	inlineStack []string // active define names, for recursion detection
}

type pendingTapUse struct {
	consumer ids.NodeId
	srcRange diag.SourceRange
}

func (b *builder) lowerSubgraph(exprs []thir.PipeExpr) Subgraph {
	sb := &subBuilder{
		builder:     b,
		tapDecl:     map[string]ids.NodeId{},
		pendingTaps: map[string][]pendingTapUse{},
	}
	for _, expr := range exprs {
		sb.lowerPipeExpr(expr)
	}
	sb.resolveRemainingTaps()
	return sb.sg
}

func (sb *subBuilder) resolveRemainingTaps() {
	for name, uses := range sb.pendingTaps {
		for _, u := range uses {
			sb.diags = sb.diags.Append(diag.Errorf(
				diag.CodeUnresolvedTap, &u.srcRange,
				"unresolved tap reference",
				"tap %q is referenced but never declared in this subgraph", name,
			))
		}
	}
}

func (sb *subBuilder) lowerPipeExpr(expr thir.PipeExpr) {
	cur := sb.lowerSource(expr.Source)
	for _, el := range expr.Elements {
		cur = sb.lowerElement(cur, el)
	}
	if expr.Sink != "" {
		writeID := sb.ids.Nodes.New()
		sb.connectTo(cur, Node{
			ID: writeID, Kind: NodeBufferWrite, BufferName: expr.Sink, SrcRange: expr.SrcRange,
		}, expr.SrcRange)
	}
}

func (sb *subBuilder) lowerSource(src thir.PipeSource) chainRef {
	switch src.Kind {
	case thir.SourceActorCall:
		// A call as a pipe source has no predecessor of its own.
		return sb.lowerCallAsNode(chainRef{kind: refNone}, src.Call)
	case thir.SourceBufferRead:
		id := sb.ids.Nodes.New()
		sb.sg.addNode(Node{ID: id, Kind: NodeBufferRead, BufferName: src.Name})
		return concreteRef(id)
	case thir.SourceTapRef:
		return sb.refTap(src.Name)
	default:
		panic(fmt.Sprintf("pgraph: unknown pipe source kind %d", src.Kind))
	}
}

func (sb *subBuilder) lowerElement(cur chainRef, el thir.PipeElement) chainRef {
	switch el.Kind {
	case thir.ElementActorCall:
		return sb.lowerCallAsNode(cur, el.Call)
	case thir.ElementTap:
		forkID := sb.ids.Nodes.New()
		sb.sg.addNode(Node{ID: forkID, Kind: NodeFork, Name: el.Name})
		sb.connectChainTo(cur, forkID, diag.SourceRange{})
		sb.declareTap(el.Name, forkID)
		return concreteRef(forkID)
	case thir.ElementProbe:
		probeID := sb.ids.Nodes.New()
		sb.sg.addNode(Node{ID: probeID, Kind: NodeProbe, Name: el.Name})
		sb.connectChainTo(cur, probeID, diag.SourceRange{})
		return concreteRef(probeID)
	default:
		panic(fmt.Sprintf("pgraph: unknown pipe element kind %d", el.Kind))
	}
}

// lowerCallAsNode creates a node for a single actor or define call, wiring
// cur (the chain's current predecessor, if any) to it, or -- for defines --
// recursively inlines the define's body with cur as the entry predecessor
// and returns the chainRef of its exit node. Tap-ref arguments on an actor
// call are wired as extra incoming edges from the referenced Fork.
func (sb *subBuilder) lowerCallAsNode(cur chainRef, call thir.Call) chainRef {
	if sb.ctx.IsDefine(call.Target) {
		return sb.inlineDefine(cur, call)
	}

	id := sb.ids.Nodes.New()
	sb.sg.addNode(Node{
		ID: id, Kind: NodeActor, ActorName: call.Target, CallID: call.ID,
		Args: call.Args, Shape: call.Shape, SrcRange: call.SrcRange,
	})
	sb.connectChainTo(cur, id, call.SrcRange)
	sb.wireTapArgs(id, call.Args)
	return concreteRef(id)
}

func (sb *subBuilder) wireTapArgs(consumer ids.NodeId, args []thir.Arg) {
	for _, a := range args {
		if a.Kind != thir.ArgTapRef {
			continue
		}
		var rng diag.SourceRange
		if a.SrcRange != nil {
			rng = *a.SrcRange
		}
		sb.addTapEdge(a.Name, consumer, rng)
	}
}

// connectChainTo wires cur (whatever precedes the current chain position)
// to tgt: a concrete predecessor gets a direct edge, a pending tap name is
// queued as a forward reference (spec §4.1.2), and "no predecessor" -- a
// pipe source, or the entry of an inlined define fed by the call site's own
// predecessor, which lowerCallAsNode already wired separately -- is a no-op.
func (sb *subBuilder) connectChainTo(cur chainRef, tgt ids.NodeId, rng diag.SourceRange) {
	switch cur.kind {
	case refNone:
		return
	case refPendingTap:
		sb.addTapEdge(cur.pending, tgt, rng)
	default:
		sb.addEdge(cur.node, tgt, rng)
	}
}

// connectTo is used for the final `-> buffer` sink, which both creates the
// BufferWrite node and connects it in one step.
func (sb *subBuilder) connectTo(cur chainRef, n Node, rng diag.SourceRange) {
	sb.sg.addNode(n)
	sb.connectChainTo(cur, n.ID, rng)
}

func (sb *subBuilder) addEdge(src, tgt ids.NodeId, rng diag.SourceRange) {
	sb.sg.addEdge(Edge{ID: sb.ids.Edges.New(), Src: src, Tgt: tgt, SrcRange: rng})
}

// refTap resolves a tap reference (as a pipe source, or via addTapEdge for
// an actor argument): if the tap was already declared, return a concrete
// reference; otherwise the reference is queued as a forward reference
// (spec §4.1.2) and resolved once the tap is declared later in the same
// subgraph.
func (sb *subBuilder) refTap(name string) chainRef {
	if id, ok := sb.tapDecl[name]; ok {
		return concreteRef(id)
	}
	return pendingRef(name)
}

func (sb *subBuilder) addTapEdge(name string, consumer ids.NodeId, rng diag.SourceRange) {
	if forkID, ok := sb.tapDecl[name]; ok {
		sb.addEdge(forkID, consumer, rng)
		return
	}
	sb.pendingTaps[name] = append(sb.pendingTaps[name], pendingTapUse{consumer: consumer, srcRange: rng})
}

func (sb *subBuilder) declareTap(name string, forkID ids.NodeId) {
	sb.tapDecl[name] = forkID
	for _, use := range sb.pendingTaps[name] {
		sb.addEdge(forkID, use.consumer, use.srcRange)
	}
	delete(sb.pendingTaps, name)
}
