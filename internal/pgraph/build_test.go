// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package pgraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipit-lang/pipit/internal/diag"
	"github.com/pipit-lang/pipit/internal/ids"
	"github.com/pipit-lang/pipit/internal/pgraph"
	"github.com/pipit-lang/pipit/internal/thir"
)

func call(target string, id uint32) thir.Call {
	return thir.Call{ID: ids.CallId(id), Target: target}
}

func actorSource(target string, id uint32) thir.PipeSource {
	return thir.PipeSource{Kind: thir.SourceActorCall, Call: call(target, id)}
}

func actorElement(target string, id uint32) thir.PipeElement {
	return thir.PipeElement{Kind: thir.ElementActorCall, Call: call(target, id)}
}

func tapElement(name string) thir.PipeElement {
	return thir.PipeElement{Kind: thir.ElementTap, Name: name}
}

func tapSource(name string) thir.PipeSource {
	return thir.PipeSource{Kind: thir.SourceTapRef, Name: name}
}

func blankCtx(tasks ...thir.TaskDecl) *thir.ThirContext {
	return &thir.ThirContext{
		Resolved: &thir.ResolvedProgram{
			Buffers: map[string]thir.BufferDecl{},
			Defines: map[string]thir.DefineDecl{},
			Tasks:   tasks,
		},
		Registry: thir.NewRegistry(),
		Typed:    &thir.TypedProgram{ByCall: map[ids.CallId]thir.ActorMeta{}},
	}
}

func TestBuildLinearChain(t *testing.T) {
	task := thir.TaskDecl{
		Name: "proc",
		Body: []thir.PipeExpr{
			{Source: actorSource("src", 1), Elements: []thir.PipeElement{actorElement("gain", 2)}, Sink: "out"},
		},
	}
	pg, diags := pgraph.Build(blankCtx(task))
	require.Empty(t, diags)

	tg := pg.Tasks["proc"]
	require.Len(t, tg.Pipeline.Nodes, 3) // src actor, gain actor, buffer write
	require.Len(t, tg.Pipeline.Edges, 2)

	assert.Equal(t, tg.Pipeline.Nodes[0].ID, tg.Pipeline.Edges[0].Src)
	assert.Equal(t, tg.Pipeline.Nodes[1].ID, tg.Pipeline.Edges[0].Tgt)
	assert.Equal(t, tg.Pipeline.Nodes[1].ID, tg.Pipeline.Edges[1].Src)
	assert.Equal(t, tg.Pipeline.Nodes[2].ID, tg.Pipeline.Edges[1].Tgt)
	assert.Equal(t, pgraph.NodeBufferWrite, tg.Pipeline.Nodes[2].Kind)
}

func TestBuildForwardTapReference(t *testing.T) {
	// tap referenced as a pipe source before its declaring Tap element
	// appears later in the same subgraph (spec §4.1.2).
	task := thir.TaskDecl{
		Name: "proc",
		Body: []thir.PipeExpr{
			{Source: tapSource("fb"), Elements: []thir.PipeElement{actorElement("mix", 1)}, Sink: "mixed"},
			{Source: actorSource("src", 2), Elements: []thir.PipeElement{tapElement("fb")}, Sink: "raw"},
		},
	}
	pg, diags := pgraph.Build(blankCtx(task))
	require.Empty(t, diags)

	tg := pg.Tasks["proc"]
	var forkID ids.NodeId
	for _, n := range tg.Pipeline.Nodes {
		if n.Kind == pgraph.NodeFork {
			forkID = n.ID
		}
	}
	require.NotZero(t, forkID)

	var sawForkToMix bool
	for _, e := range tg.Pipeline.Edges {
		if e.Src == forkID {
			sawForkToMix = true
		}
	}
	assert.True(t, sawForkToMix, "the fork must gain an edge to the earlier consumer once declared")
}

func TestBuildUnresolvedTapIsError(t *testing.T) {
	task := thir.TaskDecl{
		Name: "proc",
		Body: []thir.PipeExpr{
			{Source: tapSource("ghost"), Elements: nil, Sink: "out"},
		},
	}
	_, diags := pgraph.Build(blankCtx(task))
	require.NotEmpty(t, diags)
	assert.Equal(t, diag.CodeUnresolvedTap, diags[0].Code)
}

func TestBuildDefineInlineIsTransparent(t *testing.T) {
	ctx := blankCtx(thir.TaskDecl{
		Name: "proc",
		Body: []thir.PipeExpr{
			{Source: actorSource("src", 1), Elements: []thir.PipeElement{actorElement("amp", 2)}, Sink: "out"},
		},
	})
	ctx.Resolved.Defines["amp"] = thir.DefineDecl{
		Name:    "amp",
		Formals: []string{},
		Elements: []thir.PipeElement{
			actorElement("gain_stage", 3),
			actorElement("clip", 4),
		},
	}

	pg, diags := pgraph.Build(ctx)
	require.Empty(t, diags)

	tg := pg.Tasks["proc"]
	// src -> gain_stage -> clip -> bufferwrite: 4 nodes, 3 edges, no gap at
	// the inline boundary.
	require.Len(t, tg.Pipeline.Nodes, 4)
	require.Len(t, tg.Pipeline.Edges, 3)
	for i, e := range tg.Pipeline.Edges {
		assert.Equal(t, tg.Pipeline.Nodes[i].ID, e.Src)
		assert.Equal(t, tg.Pipeline.Nodes[i+1].ID, e.Tgt)
	}
}

func TestBuildRecursiveDefineIsError(t *testing.T) {
	ctx := blankCtx(thir.TaskDecl{
		Name: "proc",
		Body: []thir.PipeExpr{
			{Source: actorSource("loopy", 1)},
		},
	})
	ctx.Resolved.Defines["loopy"] = thir.DefineDecl{
		Name:     "loopy",
		Elements: []thir.PipeElement{actorElement("loopy", 2)},
	}

	_, diags := pgraph.Build(ctx)
	require.NotEmpty(t, diags)
	assert.Equal(t, diag.CodeInlineRecursive, diags[0].Code)
}

func TestWireInterTaskEdges(t *testing.T) {
	producer := thir.TaskDecl{
		Name: "producer",
		Body: []thir.PipeExpr{
			{Source: actorSource("src", 1), Sink: "shared"},
		},
	}
	consumer := thir.TaskDecl{
		Name: "consumer",
		Body: []thir.PipeExpr{
			{Source: thir.PipeSource{Kind: thir.SourceBufferRead, Name: "shared"}, Sink: "out"},
		},
	}
	ctx := blankCtx(producer, consumer)
	ctx.Resolved.Buffers["shared"] = thir.BufferDecl{
		Name: "shared", WriterTask: "producer", ReaderTask: []string{"consumer"},
	}

	pg, diags := pgraph.Build(ctx)
	require.Empty(t, diags)
	require.Len(t, pg.InterTaskEdges, 1)
	assert.Equal(t, "shared", pg.InterTaskEdges[0].BufferName)
	assert.Equal(t, "producer", pg.InterTaskEdges[0].WriterTask)
	assert.Equal(t, "consumer", pg.InterTaskEdges[0].ReaderTask)
}

func TestDetectSelfFeedbackCycle(t *testing.T) {
	task := thir.TaskDecl{
		Name: "fb",
		Body: []thir.PipeExpr{
			{Source: tapSource("loop"), Elements: []thir.PipeElement{actorElement("delay", 1), tapElement("loop")}},
		},
	}
	pg, diags := pgraph.Build(blankCtx(task))
	require.Empty(t, diags)
	require.Len(t, pg.Cycles, 1)
	assert.Equal(t, "fb", pg.Cycles[0].Task)
	assert.Equal(t, "pipeline", pg.Cycles[0].Label)
}
