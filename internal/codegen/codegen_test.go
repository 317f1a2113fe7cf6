// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package codegen_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

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
			InPorts:  []thir.PortShape{{Type: thir.WireFloat, Dims: thir.ShapeConstraint{thir.LiteralDim(1)}}},
			OutPorts: []thir.PortShape{{Type: thir.WireFloat, Dims: thir.ShapeConstraint{thir.LiteralDim(1)}}},
		})
	}
	return r
}

func ctx(r *thir.Registry, tasks ...thir.TaskDecl) *thir.ThirContext {
	return &thir.ThirContext{
		Resolved: &thir.ResolvedProgram{
			Buffers: map[string]thir.BufferDecl{},
			Params:  map[string]thir.ParamDecl{},
			Defines: map[string]thir.DefineDecl{},
			Tasks:   tasks,
		},
		Registry: r,
		Typed:    &thir.TypedProgram{ByCall: map[ids.CallId]thir.ActorMeta{}},
	}
}

func buildLir(t *testing.T, c *thir.ThirContext) *lir.LirProgram {
	t.Helper()
	pg, diags := pgraph.Build(c)
	require.Empty(t, diags)
	an, diags := analyze.Analyze(c, pg)
	require.Empty(t, diags)
	scheduled, err := sched.Reference{}.Schedule(c, pg, an)
	require.NoError(t, err)
	prog, cert := lir.Build(c, pg, an, scheduled)
	require.True(t, cert.OK, cert.Failures)
	return prog
}

// TestGainScenarioProducesParamAtomicAndSnapshot exercises spec §8.3.1: a
// param-bound actor gets a std::atomic declaration and a once-per-iteration
// snapshot load.
func TestGainScenarioProducesParamAtomicAndSnapshot(t *testing.T) {
	task := thir.TaskDecl{
		Name:   "t",
		FreqHz: 1000,
		Body: []thir.PipeExpr{
			{
				Source: actorSource("constant", 1),
				Elements: []thir.PipeElement{
					{Kind: thir.ElementActorCall, Call: thir.Call{ID: 2, Target: "mul", Args: []thir.Arg{
						{Kind: thir.ArgParamRef, Name: "gain"},
					}}},
					actorElement("stdout", 3),
				},
			},
		},
	}
	r := registry("constant", "stdout")
	r.Register(thir.ActorMeta{
		Name:     "mul",
		CppName:  "Actor_mul<float>",
		InPorts:  []thir.PortShape{{Type: thir.WireFloat, Dims: thir.ShapeConstraint{thir.LiteralDim(1)}}},
		OutPorts: []thir.PortShape{{Type: thir.WireFloat, Dims: thir.ShapeConstraint{thir.LiteralDim(1)}}},
		Params:   []thir.ActorParam{{Name: "gain", Kind: thir.ParamScalar, CppType: "float"}},
	})
	c := ctx(r, task)
	c.Resolved.Params["gain"] = thir.ParamDecl{Name: "gain", Default: cty.NumberFloatVal(1.0)}

	prog := buildLir(t, c)
	source := codegen.Generate(prog, codegen.Options{Release: true})

	assert.Contains(t, source, "std::atomic<float> _param_gain(")
	assert.Contains(t, source, "_param_gain_val = _param_gain.load(")
	assert.Contains(t, source, "task_t")
	assert.Contains(t, source, "int main(")
}

// TestReleaseOmitsProbeInstrumentation exercises spec §6.2/§4.4 item 9:
// probes are debug-only; a release build must not reference probe flags.
func TestReleaseOmitsProbeInstrumentation(t *testing.T) {
	task := thir.TaskDecl{
		Name:   "t",
		FreqHz: 1000,
		Body: []thir.PipeExpr{
			{Source: actorSource("constant", 1), Elements: []thir.PipeElement{
				{Kind: thir.ElementProbe, Name: "tap1"},
				actorElement("stdout", 2),
			}},
		},
	}
	c := ctx(registry("constant", "stdout"), task)
	prog := buildLir(t, c)

	release := codegen.Generate(prog, codegen.Options{Release: true})
	assert.NotContains(t, release, "_probe_tap1_enabled")

	debug := codegen.Generate(prog, codegen.Options{Release: false})
	assert.Contains(t, debug, "_probe_tap1_enabled")
}

// TestDecimationFiringSitsInsideRepetitionLoop exercises spec §8.3.2: a
// firing with NeedsLoop wraps in a `for (_r = 0; _r < rep; ++_r)` C++ loop.
func TestDecimationFiringSitsInsideRepetitionLoop(t *testing.T) {
	r := thir.NewRegistry()
	r.Register(thir.ActorMeta{
		Name: "constant", CppName: "Actor_constant<float>",
		OutPorts: []thir.PortShape{{Type: thir.WireFloat, Dims: thir.ShapeConstraint{thir.LiteralDim(1)}}},
	})
	r.Register(thir.ActorMeta{
		Name: "fft", CppName: "Actor_fft<float>",
		InPorts:  []thir.PortShape{{Type: thir.WireFloat, Dims: thir.ShapeConstraint{thir.LiteralDim(256)}}},
		OutPorts: []thir.PortShape{{Type: thir.WireCFloat, Dims: thir.ShapeConstraint{thir.LiteralDim(256)}}},
	})
	r.Register(thir.ActorMeta{
		Name: "c2r", CppName: "Actor_c2r<float>",
		InPorts:  []thir.PortShape{{Type: thir.WireCFloat, Dims: thir.ShapeConstraint{thir.LiteralDim(256)}}},
		OutPorts: []thir.PortShape{{Type: thir.WireFloat, Dims: thir.ShapeConstraint{thir.LiteralDim(256)}}},
	})
	r.Register(thir.ActorMeta{
		Name: "stdout", CppName: "Actor_stdout<float>",
		InPorts: []thir.PortShape{{Type: thir.WireFloat, Dims: thir.ShapeConstraint{thir.LiteralDim(1)}}},
	})

	task := thir.TaskDecl{
		Name:   "t",
		FreqHz: 1000,
		Body: []thir.PipeExpr{
			{
				Source: actorSource("constant", 1),
				Elements: []thir.PipeElement{
					actorElement("fft", 2),
					actorElement("c2r", 3),
					actorElement("stdout", 4),
				},
			},
		},
	}
	c := ctx(r, task)
	prog := buildLir(t, c)

	source := codegen.Generate(prog, codegen.Options{Release: true})
	assert.Contains(t, source, "for (uint32_t _r = 0; _r < 256; ++_r)")
}
