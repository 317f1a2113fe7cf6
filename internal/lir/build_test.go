// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package lir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipit-lang/pipit/internal/analyze"
	"github.com/pipit-lang/pipit/internal/codegen"
	"github.com/pipit-lang/pipit/internal/ids"
	"github.com/pipit-lang/pipit/internal/lir"
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

func buildPipeline(t *testing.T, c *thir.ThirContext) (*pgraph.ProgramGraph, *analyze.AnalyzedProgram, *sched.ScheduledProgram) {
	t.Helper()
	pg, diags := pgraph.Build(c)
	require.Empty(t, diags)
	an, diags := analyze.Analyze(c, pg)
	require.Empty(t, diags)
	out, err := sched.Reference{}.Schedule(c, pg, an)
	require.NoError(t, err)
	return pg, an, out
}

func TestBuildLirLinearChain(t *testing.T) {
	task := thir.TaskDecl{
		Name:   "proc",
		FreqHz: 48000,
		Body: []thir.PipeExpr{
			{Source: actorSource("src", 1), Elements: []thir.PipeElement{actorElement("gain", 2)}, Sink: "out"},
		},
	}
	c := ctx(registry("src", "gain"), task)
	c.Resolved.Buffers["out"] = thir.BufferDecl{Name: "out", WriterTask: "proc", ReaderTask: nil}

	pg, an, scheduled := buildPipeline(t, c)

	prog, cert := lir.Build(c, pg, an, scheduled)
	require.True(t, cert.OK, cert.Failures)
	require.Len(t, prog.Tasks, 1)

	task0 := prog.Tasks[0]
	assert.Equal(t, "proc", task0.Name)
	require.Equal(t, lir.LirBodyPipeline, task0.Body.Kind)

	var sawSrc, sawGain, sawWrite bool
	for _, group := range task0.Body.Pipeline.Firings {
		require.Equal(t, lir.LirGroupSingle, group.Kind)
		switch group.Single.Kind {
		case lir.LirFireActor:
			switch group.Single.Name {
			case "src":
				sawSrc = true
			case "gain":
				sawGain = true
				assert.Equal(t, "Actor_gain<float>", group.Single.CppName)
			}
		case lir.LirFireBufferWrite:
			sawWrite = true
			assert.Equal(t, "out", group.Single.BufferName)
		}
	}
	assert.True(t, sawSrc)
	assert.True(t, sawGain)
	assert.True(t, sawWrite)

	require.Len(t, prog.Buffers, 1)
	assert.True(t, prog.Buffers[0].SkipWrites, "buffer has no reader so writes are skipped")
}

func TestLirFeedsCodegenWithoutPanicking(t *testing.T) {
	task := thir.TaskDecl{
		Name:   "proc",
		FreqHz: 48000,
		Body: []thir.PipeExpr{
			{Source: actorSource("src", 1), Sink: "out"},
		},
	}
	c := ctx(registry("src"), task)
	c.Resolved.Buffers["out"] = thir.BufferDecl{Name: "out", WriterTask: "proc"}

	pg, an, scheduled := buildPipeline(t, c)
	prog, cert := lir.Build(c, pg, an, scheduled)
	require.True(t, cert.OK, cert.Failures)

	source := codegen.Generate(prog, codegen.Options{Release: true})
	assert.Contains(t, source, "task_proc")
	assert.Contains(t, source, "int main(")
}
