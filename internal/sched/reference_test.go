// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package sched_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipit-lang/pipit/internal/analyze"
	"github.com/pipit-lang/pipit/internal/ids"
	"github.com/pipit-lang/pipit/internal/pgraph"
	"github.com/pipit-lang/pipit/internal/sched"
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

func registry(names ...string) *thir.Registry {
	r := thir.NewRegistry()
	for _, name := range names {
		r.Register(thir.ActorMeta{
			Name:     name,
			CppName:  "Actor_" + name + "<float>",
			InPorts:  []thir.PortShape{{Type: thir.WireFloat}},
			OutPorts: []thir.PortShape{{Type: thir.WireFloat}},
		})
	}
	return r
}

func ctx(r *thir.Registry, tasks ...thir.TaskDecl) *thir.ThirContext {
	return &thir.ThirContext{
		Resolved: &thir.ResolvedProgram{
			Buffers: map[string]thir.BufferDecl{},
			Defines: map[string]thir.DefineDecl{},
			Tasks:   tasks,
		},
		Registry: r,
		Typed:    &thir.TypedProgram{ByCall: map[ids.CallId]thir.ActorMeta{}},
	}
}

func TestReferenceScheduleLinearChain(t *testing.T) {
	task := thir.TaskDecl{
		Name:   "proc",
		FreqHz: 48000,
		Body: []thir.PipeExpr{
			{Source: actorSource("src", 1), Elements: []thir.PipeElement{actorElement("gain", 2)}, Sink: "out"},
		},
	}
	c := ctx(registry("src", "gain"), task)

	pg, diags := pgraph.Build(c)
	require.Empty(t, diags)
	an, diags := analyze.Analyze(c, pg)
	require.Empty(t, diags)

	out, err := sched.Reference{}.Schedule(c, pg, an)
	require.NoError(t, err)

	meta := out.Tasks["proc"]
	require.Len(t, meta.Schedule.Pipeline.Firings, 3) // src, gain, bufferwrite
	assert.Empty(t, meta.Schedule.Pipeline.BackEdges)

	order := make([]ids.NodeId, len(meta.Schedule.Pipeline.Firings))
	for i, f := range meta.Schedule.Pipeline.Firings {
		order[i] = f.NodeID
	}
	assert.Equal(t, pg.Tasks["proc"].Pipeline.Nodes[0].ID, order[0])
	assert.Equal(t, pg.Tasks["proc"].Pipeline.Nodes[1].ID, order[1])
	assert.Equal(t, pg.Tasks["proc"].Pipeline.Nodes[2].ID, order[2])
}

func TestReferenceScheduleMarksBackEdge(t *testing.T) {
	task := thir.TaskDecl{
		Name:   "fb",
		FreqHz: 100,
		Body: []thir.PipeExpr{
			{Source: tapSource("loop"), Elements: []thir.PipeElement{actorElement("delay", 1), tapElement("loop")}},
		},
	}
	c := ctx(registry("delay"), task)

	pg, diags := pgraph.Build(c)
	require.Empty(t, diags)
	an, diags := analyze.Analyze(c, pg)
	require.Empty(t, diags)

	out, err := sched.Reference{}.Schedule(c, pg, an)
	require.NoError(t, err)

	meta := out.Tasks["fb"]
	assert.NotEmpty(t, meta.Schedule.Pipeline.BackEdges)
}

func TestKFactorAmortizesFastTasks(t *testing.T) {
	fast := thir.TaskDecl{
		Name:   "fast",
		FreqHz: 48000,
		Body:   []thir.PipeExpr{{Source: actorSource("src", 1), Sink: "out"}},
	}
	slow := thir.TaskDecl{
		Name:   "slow",
		FreqHz: 100,
		Body:   []thir.PipeExpr{{Source: actorSource("src", 2), Sink: "out2"}},
	}
	c := ctx(registry("src"), fast, slow)

	pg, diags := pgraph.Build(c)
	require.Empty(t, diags)
	an, diags := analyze.Analyze(c, pg)
	require.Empty(t, diags)

	out, err := sched.Reference{}.Schedule(c, pg, an)
	require.NoError(t, err)

	assert.Greater(t, out.Tasks["fast"].KFactor, uint32(1))
	assert.Equal(t, uint32(1), out.Tasks["slow"].KFactor)
}
