// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

// Package lir implements spec §4.3: lowering ThirContext + ProgramGraph +
// AnalyzedProgram + ScheduledProgram into LirProgram, the self-contained
// codegen-ready representation. LIR construction is pure: it never
// produces diagnostics (spec §4.3's header), so every function in this
// package returns plain values, never diag.Diagnostics.
package lir

import (
	"github.com/pipit-lang/pipit/internal/ids"
	"github.com/pipit-lang/pipit/internal/thir"
)

// LirConstKind distinguishes a scalar constant from an array constant.
type LirConstKind int

const (
	LirConstScalar LirConstKind = iota
	LirConstArray
)

// LirConst is spec §3.4: a top-level `const` translated to its C++
// storage form, with the literal(s) already formatted.
type LirConst struct {
	Name     string
	Kind     LirConstKind
	ElemType thir.WireType
	Scalar   string   // formatted C++ literal; valid when Kind == LirConstScalar
	Elements []string // formatted C++ literals; valid when Kind == LirConstArray
}

// LirParam is spec §3.4: a runtime param's C++ storage plus how main()
// parses a `--param name=value` override for it.
type LirParam struct {
	Name           string
	CppType        string
	DefaultLiteral string
	CliConverter   string // e.g. "std::stof", "std::stoi", "pipit::parse_bool"
}

// LirDirectives is spec §3.4/§4.3.1: the resolved (default-filled) set of
// program-wide directives.
type LirDirectives struct {
	MemBytes      uint64
	OverrunPolicy thir.OverrunPolicy
	TimerSpin     thir.TimerSpin
}

// LirInterTaskBuffer is spec §3.4/§4.3.2.
type LirInterTaskBuffer struct {
	Name           string
	CppType        string
	CapacityTokens uint64
	ReaderCount    int
	ReaderTasks    []string // sorted
	SkipWrites     bool
}

// LirCtrlSourceKind is spec §4.3.3's three ways a modal task picks its
// active mode.
type LirCtrlSourceKind int

const (
	LirCtrlParam LirCtrlSourceKind = iota
	LirCtrlEdgeBuffer
	LirCtrlRingBuffer
)

// LirCtrlSource is spec §3.4's `Param{name} | EdgeBuffer{var_name} |
// RingBuffer{name, reader_idx}`.
type LirCtrlSource struct {
	Kind      LirCtrlSourceKind
	Name      string // valid when Kind == LirCtrlParam or LirCtrlRingBuffer
	VarName   string // valid when Kind == LirCtrlEdgeBuffer
	ReaderIdx int    // valid when Kind == LirCtrlRingBuffer
}

// LirEdgeBuffer is spec §4.3.4: one edge's buffer variable, its C++ type,
// and, for a Fork/Probe passthrough, the alias it resolves to instead of
// owning its own storage.
type LirEdgeBuffer struct {
	Src, Tgt ids.NodeId
	VarName  string
	CppType  string
	IsBack   bool
	IsAlias  bool
	AliasOf  string // valid when IsAlias: the buffer variable this one shares storage with
}

// LirFiringKind is spec §3.4's Actor/Fork/Probe/BufferRead/BufferWrite
// firing-kind union.
type LirFiringKind int

const (
	LirFireActor LirFiringKind = iota
	LirFireFork
	LirFireProbe
	LirFireBufferRead
	LirFireBufferWrite
)

// LirFiring carries everything codegen needs to emit one node's firing:
// the buffer variable names on each side, peer node IDs for retry-variable
// naming (§4.4 item 8), and, for actors, the resolved call arguments.
type LirFiring struct {
	Kind       LirFiringKind
	NodeID     ids.NodeId
	Name       string // actor name (un-instantiated) or tap/probe name
	CppName    string // concrete C++ instantiation name; valid when Kind == LirFireActor
	Args       []LirActorArg
	InEdges    []string
	OutEdges   []string
	BufferName string // valid when Kind is BufferRead/BufferWrite
	PeerSrc    ids.NodeId
	PeerTgt    ids.NodeId
	Repetition uint32
	NeedsLoop  bool
}

// LirFiringGroupKind distinguishes a standalone firing from a fused chain.
type LirFiringGroupKind int

const (
	LirGroupSingle LirFiringGroupKind = iota
	LirGroupFused
)

// LirFusedChain is spec §4.3.5's collapsed repetition loop: every member
// shares one `for (i = 0; i < r; ++i)`, and actors whose constructor
// arguments are all loop-invariant are hoisted before the loop.
type LirFusedChain struct {
	Repetition    uint32
	HoistedActors []LirFiring
	Body          []LirFiring
}

// LirFiringGroup is one element of a subgraph's emission order.
type LirFiringGroup struct {
	Kind   LirFiringGroupKind
	Single LirFiring
	Fused  LirFusedChain
}

// LirSubgraph is spec §3.4: sorted edge buffer declarations plus the
// firing-group emission order.
type LirSubgraph struct {
	EdgeBuffers []LirEdgeBuffer
	Firings     []LirFiringGroup
}

// LirFeedbackBuffer is spec §4.3.6: one back edge's persistent buffer,
// sized to the scheduled edge token count (per the Open Question
// resolution in SPEC_FULL §5, not the placeholder value of 1 the spec's
// §9 mentions as an open question).
type LirFeedbackBuffer struct {
	Src, Tgt    ids.NodeId
	VarName     string
	CppType     string
	Length      uint32
	InitLiteral string
}

// LirModeFeedbackReset names the feedback buffers that must be reset to
// their init values when a modal task switches into Mode.
type LirModeFeedbackReset struct {
	Mode    string
	Buffers []string
}

// LirTaskBodyKind distinguishes a Pipeline task body from a Modal one.
type LirTaskBodyKind int

const (
	LirBodyPipeline LirTaskBodyKind = iota
	LirBodyModal
)

// LirModeBody pairs a mode name with its lowered subgraph.
type LirModeBody struct {
	Name     string
	Subgraph LirSubgraph
}

// LirTaskBody is spec §3.4's `Pipeline(LirSubgraph) | Modal{...}`.
type LirTaskBody struct {
	Kind     LirTaskBodyKind
	Pipeline LirSubgraph // valid when Kind == LirBodyPipeline

	Control            LirSubgraph // valid when Kind == LirBodyModal
	CtrlSource         LirCtrlSource
	Modes              []LirModeBody
	ModeFeedbackResets []LirModeFeedbackReset
}

// LirTask is spec §3.4: one task's schedule-derived body plus the runtime
// params it reads and the feedback buffers its body needs.
type LirTask struct {
	Name            string
	FreqHz          float64
	KFactor         uint32
	Body            LirTaskBody
	UsedParams      []string // sorted, deduplicated
	FeedbackBuffers []LirFeedbackBuffer
}

// LirActorArgKind is spec §4.3.7's resolved-argument union.
type LirActorArgKind int

const (
	LirArgParamRef LirActorArgKind = iota
	LirArgLiteral
	LirArgConstScalar
	LirArgConstSpan
	LirArgConstArrayLen
	LirArgDimValue
)

// LirActorArg is one materialized constructor argument slot.
type LirActorArg struct {
	Kind     LirActorArgKind
	Name     string // valid when Kind is ParamRef, ConstScalar, ConstSpan, or ConstArrayLen: the referenced name
	Literal  string // formatted C++ literal; valid when Kind == LirArgLiteral
	IntValue int64  // valid when Kind == LirArgDimValue
}

// LirProgram is spec §3.4's self-contained codegen input.
type LirProgram struct {
	Consts      []LirConst
	Params      []LirParam
	Directives  LirDirectives
	Buffers     []LirInterTaskBuffer
	Tasks       []LirTask
	Probes      []string
	TotalMemory uint64
}

// LirCert is spec §4.3.9's postcondition certificate: R1 (every scheduled
// task has a matching LirTask) and R2 (every actor firing names a concrete
// C++ type). A failing certificate is a builder bug, not a user error --
// callers may treat it as an internal-error panic or surface it as a
// diagnostic, per the spec's own framing.
type LirCert struct {
	OK       bool
	Failures []string
}
