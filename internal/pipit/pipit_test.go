// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package pipit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipit-lang/pipit/internal/ids"
	"github.com/pipit-lang/pipit/internal/pipit"
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
			Defines: map[string]thir.DefineDecl{},
			Tasks:   tasks,
		},
		Registry: r,
		Typed:    &thir.TypedProgram{ByCall: map[ids.CallId]thir.ActorMeta{}},
	}
}

// TestCompileEndToEndProducesCppSource runs every core phase in sequence on
// a minimal well-formed program and checks the artifact is usable.
func TestCompileEndToEndProducesCppSource(t *testing.T) {
	task := thir.TaskDecl{
		Name:   "t",
		FreqHz: 1000,
		Body: []thir.PipeExpr{
			{Source: actorSource("constant", 1), Elements: []thir.PipeElement{actorElement("stdout", 2)}},
		},
	}
	c := ctx(registry("constant", "stdout"), task)

	result := pipit.Compile(c, pipit.DefaultOptions())

	require.False(t, result.Diagnostics.HasErrors(), "%v", result.Diagnostics)
	assert.True(t, result.Cert.OK, result.Cert.Failures)
	assert.Contains(t, result.Source, "task_t")
	assert.Contains(t, result.Source, "int main(")
}

// TestCompileShortCircuitsBeforeLirOnUnresolvedTap exercises spec §4.3's
// "LIR construction and codegen must not run if analysis reported errors"
// policy: an unresolved tap reference is a graph-construction error, so
// Compile must return with no LIR certificate and no generated source.
func TestCompileShortCircuitsBeforeLirOnUnresolvedTap(t *testing.T) {
	task := thir.TaskDecl{
		Name:   "t",
		FreqHz: 1000,
		Body: []thir.PipeExpr{
			{Source: thir.PipeSource{Kind: thir.SourceTapRef, Name: "ghost"}, Elements: []thir.PipeElement{actorElement("stdout", 1)}},
		},
	}
	c := ctx(registry("stdout"), task)

	result := pipit.Compile(c, pipit.DefaultOptions())

	assert.True(t, result.Diagnostics.HasErrors())
	assert.Empty(t, result.Source)
	assert.False(t, result.Cert.OK)
}

// TestCompileShortCircuitsOnAnalysisError exercises the same policy for an
// analysis-layer error (a feedback cycle with no delay actor): LIR and
// codegen must not run even though graph construction succeeded.
func TestCompileShortCircuitsOnAnalysisError(t *testing.T) {
	task := thir.TaskDecl{
		Name:   "t",
		FreqHz: 1000,
		Body: []thir.PipeExpr{
			{
				Source: actorSource("constant", 1),
				Elements: []thir.PipeElement{
					{Kind: thir.ElementActorCall, Call: thir.Call{ID: 2, Target: "add", Args: []thir.Arg{{Kind: thir.ArgTapRef, Name: "fb"}}}},
					{Kind: thir.ElementTap, Name: "out"},
					actorElement("stdout", 3),
				},
			},
			{
				Source: thir.PipeSource{Kind: thir.SourceTapRef, Name: "out"},
				Elements: []thir.PipeElement{
					actorElement("nodelay", 4),
					{Kind: thir.ElementTap, Name: "fb"},
				},
			},
		},
	}
	c := ctx(registry("constant", "add", "stdout", "nodelay"), task)

	result := pipit.Compile(c, pipit.DefaultOptions())

	assert.True(t, result.Diagnostics.HasErrors())
	assert.Empty(t, result.Source)
}
