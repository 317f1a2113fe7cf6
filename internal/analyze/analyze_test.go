// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package analyze_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/pipit-lang/pipit/internal/analyze"
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
			Binds:   map[string]thir.BindDecl{},
			Defines: map[string]thir.DefineDecl{},
			Tasks:   tasks,
		},
		Registry: r,
		Typed:    &thir.TypedProgram{ByCall: map[ids.CallId]thir.ActorMeta{}},
	}
}

func hasCode(diags diag.Diagnostics, code diag.Code) bool {
	for _, d := range diags {
		if d.Code == code {
			return true
		}
	}
	return false
}

// TestBalanceSolvesUnitRepetitionVector exercises spec §4.2.6 on the
// simplest possible chain: every node fires once per pass, and gcd(rv)==1
// trivially (spec §8.1 invariant 2).
func TestBalanceSolvesUnitRepetitionVector(t *testing.T) {
	task := thir.TaskDecl{
		Name:   "t",
		FreqHz: 1000,
		Body: []thir.PipeExpr{
			{Source: actorSource("constant", 1), Elements: []thir.PipeElement{actorElement("mul", 2)}, Sink: "out"},
		},
	}
	c := ctx(registry("constant", "mul"), task)
	c.Resolved.Buffers["out"] = thir.BufferDecl{Name: "out", WriterTask: "t"}

	pg, diags := pgraph.Build(c)
	require.Empty(t, diags)

	an, diags := analyze.Analyze(c, pg)
	require.Empty(t, diags)

	rv := an.RepetitionVectors[analyze.SubgraphKey{Task: "t", Label: "pipeline"}]
	for _, n := range pg.Tasks["t"].Pipeline.Nodes {
		if n.Kind == pgraph.NodeActor {
			assert.Equal(t, uint32(1), rv[n.ID], "node %s", n.ActorName)
		}
	}
}

// TestFeedbackCycleWithoutDelayIsAnError exercises spec §4.2.7 / E0305: a
// cycle whose nodes never include an actor named "delay" must be reported.
func TestFeedbackCycleWithoutDelayIsAnError(t *testing.T) {
	// add(:fb) -> :out -> stdout, and :out -> badfeedback() -> :fb, with
	// no "delay" actor anywhere in the cycle.
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
				Source:   thir.PipeSource{Kind: thir.SourceTapRef, Name: "out"},
				Elements: []thir.PipeElement{actorElement("badfeedback", 4)},
				Sink:     "", // sink handled via tap below
			},
		},
	}
	// Wire the second pipe's output back into :fb via a tap declaration.
	task.Body[1].Elements = append(task.Body[1].Elements, thir.PipeElement{Kind: thir.ElementTap, Name: "fb"})

	c := ctx(registry("constant", "add", "stdout", "badfeedback"), task)

	pg, diags := pgraph.Build(c)
	require.Empty(t, diags)
	require.NotEmpty(t, pg.Cycles, "expected a feedback cycle to be detected")

	_, diags = analyze.Analyze(c, pg)
	assert.True(t, hasCode(diags, diag.CodeCycleNoDelay))
}

// TestFeedbackCycleWithDelayIsAccepted is the positive case of the above:
// a cycle that does pass through a "delay" actor raises no E0305.
func TestFeedbackCycleWithDelayIsAccepted(t *testing.T) {
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
					{Kind: thir.ElementActorCall, Call: thir.Call{ID: 4, Target: "delay", Args: []thir.Arg{
						{Kind: thir.ArgValue, Value: cty.NumberIntVal(1)},
						{Kind: thir.ArgValue, Value: cty.NumberFloatVal(0)},
					}}},
					{Kind: thir.ElementTap, Name: "fb"},
				},
			},
		},
	}

	c := ctx(registry("constant", "add", "stdout", "delay"), task)

	pg, diags := pgraph.Build(c)
	require.Empty(t, diags)
	require.NotEmpty(t, pg.Cycles)

	_, diags = analyze.Analyze(c, pg)
	assert.False(t, hasCode(diags, diag.CodeCycleNoDelay))
}

// TestCrossClockMismatchIsReported exercises spec §4.2.8 / E0306: a
// producer/consumer pair whose tokens-per-second disagree across tasks.
func TestCrossClockMismatchIsReported(t *testing.T) {
	writer := thir.TaskDecl{
		Name:   "a",
		FreqHz: 1000,
		Body: []thir.PipeExpr{
			{Source: actorSource("constant", 1), Sink: "sig"},
		},
	}
	reader := thir.TaskDecl{
		Name:   "b",
		FreqHz: 500, // half the writer's rate: mismatched without rate conversion
		Body: []thir.PipeExpr{
			{Source: thir.PipeSource{Kind: thir.SourceBufferRead, Name: "sig"}, Elements: []thir.PipeElement{actorElement("stdout", 2)}},
		},
	}
	c := ctx(registry("constant", "stdout"), writer, reader)
	c.Resolved.Buffers["sig"] = thir.BufferDecl{Name: "sig", WriterTask: "a", ReaderTask: []string{"b"}}

	pg, diags := pgraph.Build(c)
	require.Empty(t, diags)

	_, diags = analyze.Analyze(c, pg)
	assert.True(t, hasCode(diags, diag.CodeCrossClockMismatch))
}

// TestCrossClockMatchedRatesAccepted is the matching-frequency case: no
// E0306 when both tasks run at the same rate.
func TestCrossClockMatchedRatesAccepted(t *testing.T) {
	writer := thir.TaskDecl{
		Name:   "a",
		FreqHz: 1000,
		Body: []thir.PipeExpr{
			{Source: actorSource("constant", 1), Sink: "sig"},
		},
	}
	reader := thir.TaskDecl{
		Name:   "b",
		FreqHz: 1000,
		Body: []thir.PipeExpr{
			{Source: thir.PipeSource{Kind: thir.SourceBufferRead, Name: "sig"}, Elements: []thir.PipeElement{actorElement("stdout", 2)}},
		},
	}
	c := ctx(registry("constant", "stdout"), writer, reader)
	c.Resolved.Buffers["sig"] = thir.BufferDecl{Name: "sig", WriterTask: "a", ReaderTask: []string{"b"}}

	pg, diags := pgraph.Build(c)
	require.Empty(t, diags)

	an, diags := analyze.Analyze(c, pg)
	assert.False(t, hasCode(diags, diag.CodeCrossClockMismatch))
	assert.Equal(t, uint64(8), an.TotalMemory, "one float token, double-buffered: 2*1*4 bytes")
}

// TestMemoryPoolExceededIsReported exercises spec §4.2.9 / E0307 against a
// deliberately tiny memory pool bound.
func TestMemoryPoolExceededIsReported(t *testing.T) {
	writer := thir.TaskDecl{
		Name:   "a",
		FreqHz: 1000,
		Body: []thir.PipeExpr{
			{Source: actorSource("constant", 1), Sink: "sig"},
		},
	}
	reader := thir.TaskDecl{
		Name:   "b",
		FreqHz: 1000,
		Body: []thir.PipeExpr{
			{Source: thir.PipeSource{Kind: thir.SourceBufferRead, Name: "sig"}, Elements: []thir.PipeElement{actorElement("stdout", 2)}},
		},
	}
	c := ctx(registry("constant", "stdout"), writer, reader)
	c.Resolved.Buffers["sig"] = thir.BufferDecl{Name: "sig", WriterTask: "a", ReaderTask: []string{"b"}}
	c.Resolved.MemBytes = 4 // smaller than the 8-byte buffer this program needs

	pg, diags := pgraph.Build(c)
	require.Empty(t, diags)

	_, diags = analyze.Analyze(c, pg)
	assert.True(t, hasCode(diags, diag.CodeMemoryPoolExceeded))
}

// TestBindStableIDDeterministicUnderReordering exercises spec §8.1
// invariant 4 / §4.2.10 step 4: a bind's stable_id must not change when
// unrelated declarations are reordered.
func TestBindStableIDDeterministicUnderReordering(t *testing.T) {
	build := func(extraFirst bool) *thir.ThirContext {
		task := thir.TaskDecl{
			Name:   "t",
			FreqHz: 1000,
			Body: []thir.PipeExpr{
				{Source: actorSource("constant", 1), Sink: "out1"},
				{Source: actorSource("constant", 2), Sink: "out2"},
			},
		}
		c := ctx(registry("constant"), task)
		c.Resolved.Buffers["out1"] = thir.BufferDecl{Name: "out1", WriterTask: "t"}
		c.Resolved.Buffers["out2"] = thir.BufferDecl{Name: "out2", WriterTask: "t"}
		c.Resolved.Binds["out1"] = thir.BindDecl{Name: "out1", Transport: "udp"}
		c.Resolved.Binds["out2"] = thir.BindDecl{Name: "out2", Transport: "udp"}
		_ = extraFirst
		return c
	}

	c1 := build(false)
	pg1, diags := pgraph.Build(c1)
	require.Empty(t, diags)
	an1, diags := analyze.Analyze(c1, pg1)
	require.Empty(t, diags)

	// Rebuild with the pipe expressions declared in the opposite order;
	// the bind names and transports are identical so each bind's own
	// stable_id must come out the same both times.
	task2 := thir.TaskDecl{
		Name:   "t",
		FreqHz: 1000,
		Body: []thir.PipeExpr{
			{Source: actorSource("constant", 2), Sink: "out2"},
			{Source: actorSource("constant", 1), Sink: "out1"},
		},
	}
	c2 := ctx(registry("constant"), task2)
	c2.Resolved.Buffers["out1"] = thir.BufferDecl{Name: "out1", WriterTask: "t"}
	c2.Resolved.Buffers["out2"] = thir.BufferDecl{Name: "out2", WriterTask: "t"}
	c2.Resolved.Binds["out1"] = thir.BindDecl{Name: "out1", Transport: "udp"}
	c2.Resolved.Binds["out2"] = thir.BindDecl{Name: "out2", Transport: "udp"}

	pg2, diags := pgraph.Build(c2)
	require.Empty(t, diags)
	an2, diags := analyze.Analyze(c2, pg2)
	require.Empty(t, diags)

	require.NotEmpty(t, an1.Binds["out1"].StableID)
	assert.Equal(t, an1.Binds["out1"].StableID, an2.Binds["out1"].StableID)
	assert.Equal(t, an1.Binds["out2"].StableID, an2.Binds["out2"].StableID)
	assert.NotEqual(t, an1.Binds["out1"].StableID, an1.Binds["out2"].StableID)
	assert.Len(t, an1.Binds["out1"].StableID, 16, "16 hex chars per spec §3.2")
}

// TestBindUnreferencedIsReported exercises E0311: a declared bind that no
// BufferWrite/BufferRead node ever touches.
func TestBindUnreferencedIsReported(t *testing.T) {
	task := thir.TaskDecl{
		Name:   "t",
		FreqHz: 1000,
		Body: []thir.PipeExpr{
			{Source: actorSource("constant", 1), Elements: []thir.PipeElement{actorElement("stdout", 2)}},
		},
	}
	c := ctx(registry("constant", "stdout"), task)
	c.Resolved.Binds["ghost"] = thir.BindDecl{Name: "ghost", Transport: "udp"}

	pg, diags := pgraph.Build(c)
	require.Empty(t, diags)

	_, diags = analyze.Analyze(c, pg)
	assert.True(t, hasCode(diags, diag.CodeBindUnreferenced))
}
