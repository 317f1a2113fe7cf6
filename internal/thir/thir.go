// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

// Package thir models the immutable inputs the front end hands to the core
// phases (spec §6.1): the resolved AST, the HIR, the actor registry, the
// monomorphized (typed/lowered) program, and a ThirContext convenience
// facade re-exporting all of them with a handful of helper methods.
//
// Everything in this package is produced by an external collaborator (the
// lexer, parser, name resolver, and type checker, per spec §1's
// "OUT OF SCOPE"). The core phases only ever read these types; nothing here
// is mutated once constructed.
package thir

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/pipit-lang/pipit/internal/diag"
	"github.com/pipit-lang/pipit/internal/ids"
)

// WireType names the element type flowing on a particular edge, e.g.
// "float", "cfloat", "int32" (glossary: Wire type).
type WireType string

const (
	WireVoid    WireType = "void"
	WireFloat   WireType = "float"
	WireCFloat  WireType = "cfloat"
	WireInt32   WireType = "int32"
	WireDouble  WireType = "double"
	WireBool    WireType = "bool"
	WireUnknown WireType = ""
)

// CompatibleWith reports type compatibility at an edge endpoint (spec
// §4.2.1): void is wildcard-compatible with anything.
func (w WireType) CompatibleWith(other WireType) bool {
	if w == WireVoid || other == WireVoid {
		return true
	}
	return w == other
}

// CppType returns the C++ spelling of a wire type, used throughout codegen.
func (w WireType) CppType() string {
	switch w {
	case WireFloat:
		return "float"
	case WireCFloat:
		return "std::complex<float>"
	case WireInt32:
		return "int32_t"
	case WireDouble:
		return "double"
	case WireBool:
		return "bool"
	case WireVoid:
		return "void"
	default:
		return "void"
	}
}

// ShapeDimKind distinguishes a literal dimension from a symbolic one bound
// to a named constant.
type ShapeDimKind int

const (
	DimLiteral ShapeDimKind = iota
	DimConstRef
)

// ShapeDim is one dimension of a ShapeConstraint (spec §3.2): either a
// literal extent or a reference to a named symbolic dimension/const that
// analysis must resolve.
type ShapeDim struct {
	Kind    ShapeDimKind
	Literal uint32
	Ident   string // valid when Kind == DimConstRef
}

func LiteralDim(n uint32) ShapeDim   { return ShapeDim{Kind: DimLiteral, Literal: n} }
func ConstRefDim(id string) ShapeDim { return ShapeDim{Kind: DimConstRef, Ident: id} }

func (d ShapeDim) IsSymbolic() bool { return d.Kind == DimConstRef }

// ShapeConstraint is an ordered list of ShapeDim, attached to an actor node
// either explicitly at the call site or inferred by analysis (spec §3.2).
type ShapeConstraint []ShapeDim

// PortShape is the declared or resolved shape of one actor port (input or
// output), used by both span-derived dimension recording (§4.2.2) and edge
// shape inference (§4.2.3).
type PortShape struct {
	Type WireType
	Dims ShapeConstraint
}

// Rank returns the number of dimensions.
func (p PortShape) Rank() int { return len(p.Dims) }

// ParamKind distinguishes the handful of actor constructor-argument shapes
// codegen and LIR argument resolution need to tell apart (spec §3.4,
// LirActorArg).
type ParamKind int

const (
	ParamScalar ParamKind = iota
	ParamSpan
	ParamDim // PARAM(int, X) bound to a symbolic shape dimension
)

// ActorParam describes one formal parameter of a registered actor
// constructor, as supplied by the registry (spec §6.1).
type ActorParam struct {
	Name    string
	Kind    ParamKind
	CppType string // e.g. "float", "std::span<const float>", "int"
	DimName string // valid when Kind == ParamDim: the symbolic dim it binds
}

// ActorMeta is the per-call-site monomorphized metadata the registry and
// typed/lowered program jointly provide: concrete wire types and port
// shapes for one concrete instantiation of a (possibly polymorphic) actor.
type ActorMeta struct {
	Name       string
	CppName    string // concrete C++ template instantiation name, e.g. "Actor_fir<float>"
	InPorts    []PortShape
	OutPorts   []PortShape
	Params     []ActorParam
	VoidOutput bool
}

// Arg is one actor call-site argument as the front end resolved it: either a
// literal/constant value, a reference to a runtime param, or a tap
// reference (which graph construction turns into an extra Fork edge rather
// than a value).
type ArgKind int

const (
	ArgValue ArgKind = iota
	ArgParamRef
	ArgConstRef
	ArgTapRef
)

type Arg struct {
	Kind     ArgKind
	Value    cty.Value // valid when Kind == ArgValue
	Name     string    // valid when Kind == ArgParamRef, ArgConstRef, or ArgTapRef
	SrcRange *diag.SourceRange
}

// Named returns arg with Name set to key, for the keyword-argument form a
// bind's transport args use (e.g. shm's `slots = 4`); a zero Name marks a
// positional argument.
func Named(key string, arg Arg) Arg {
	arg.Name = key
	return arg
}

// Call is one syntactic actor/define call site from the resolved AST.
type Call struct {
	ID       ids.CallId
	Target   string // registered actor name, or define name
	Args     []Arg
	Shape    ShapeConstraint // explicit call-site shape constraint, if any
	SrcRange diag.SourceRange
}

// ConstDecl is a top-level `const name = ...` declaration.
type ConstDecl struct {
	Name     string
	Value    cty.Value
	SrcRange diag.SourceRange
}

// ParamDecl is a top-level `param name = default` declaration (a runtime,
// CLI-overridable value).
type ParamDecl struct {
	Name     string
	Default  cty.Value
	SrcRange diag.SourceRange
}

// Registry exposes actor metadata keyed by name (spec §6.1). A given actor
// name may have more than one concrete ActorMeta across different call
// sites if it is polymorphic; those are looked up by CallId via
// TypedProgram instead.
type Registry struct {
	actors map[string]ActorMeta
}

func NewRegistry() *Registry { return &Registry{actors: map[string]ActorMeta{}} }

func (r *Registry) Register(m ActorMeta) { r.actors[m.Name] = m }

func (r *Registry) Lookup(name string) (ActorMeta, bool) {
	m, ok := r.actors[name]
	return m, ok
}

// TypedProgram holds concrete instantiations of (possibly polymorphic)
// actors, keyed by call-site id (spec §2, §6.1).
type TypedProgram struct {
	ByCall map[ids.CallId]ActorMeta
}

func (t *TypedProgram) MetaFor(call ids.CallId) (ActorMeta, bool) {
	m, ok := t.ByCall[call]
	return m, ok
}

// BufferDecl records the writer/reader mapping for one named inter-task
// buffer, as resolved by the front end (spec §4.1.3).
type BufferDecl struct {
	Name       string
	WriterTask string
	ReaderTask []string
}

// BindDecl records a declared external bind name and, for shm binds, its
// raw args for §4.2.11 validation.
type BindDecl struct {
	Name      string
	Transport string // "udp", "shm", ...
	Args      []Arg
	SrcRange  diag.SourceRange
}

// OverrunPolicy is spec §4.3.1/§4.4's `set overrun = ...` directive,
// naming how a task's main loop reacts to a missed timer deadline.
type OverrunPolicy int

const (
	OverrunUnset OverrunPolicy = iota
	OverrunDrop
	OverrunSlip
	OverrunBacklog
)

// TimerSpinKind distinguishes a fixed busy-wait spin duration from the
// adaptive policy (spec §4.3.1's `set timer_spin = ...`).
type TimerSpinKind int

const (
	TimerSpinUnset TimerSpinKind = iota
	TimerSpinFixed
	TimerSpinAdaptive
)

// TimerSpin is `set timer_spin = ...`'s resolved value: either a fixed
// nanosecond spin budget or the Adaptive policy (serialized by codegen as
// sentinel -1).
type TimerSpin struct {
	Kind TimerSpinKind
	Ns   uint64 // valid when Kind == TimerSpinFixed
}

// ResolvedProgram is the identifier-resolved AST: constants, params,
// defines (by name, for inlining), buffer and bind tables, task entries.
type ResolvedProgram struct {
	Consts    map[string]ConstDecl
	Params    map[string]ParamDecl
	Defines   map[string]DefineDecl
	Buffers   map[string]BufferDecl
	Binds     map[string]BindDecl
	Tasks     []TaskDecl
	MemBytes  uint64        // from `set mem = ...`; 0 means "use the default"
	Overrun   OverrunPolicy // from `set overrun = ...`; OverrunUnset means "use the default"
	TimerSpin TimerSpin     // from `set timer_spin = ...`; TimerSpinUnset means "use the default"
}

// DefineDecl is a user-defined subgraph macro: `define name(params...) { ... }`.
//
// A define's body is a single chain segment (zero or more elements between
// an implicit entry, fed by whatever flows into the call site, and an
// implicit exit, fed to whatever consumes the call site's output) -- by the
// time a resolved AST reaches the core, the front end has already reduced
// a define body down to this normal form.
type DefineDecl struct {
	Name     string
	Formals  []string
	Elements []PipeElement
	SrcRange diag.SourceRange
}

// SourceKind / ElementKind / pipe expression shapes (spec §4.1.1).
type SourceKind int

const (
	SourceActorCall SourceKind = iota
	SourceBufferRead
	SourceTapRef
)

type PipeSource struct {
	Kind SourceKind
	Call Call   // valid when Kind == SourceActorCall
	Name string // buffer or tap name, when Kind != SourceActorCall
}

type ElementKind int

const (
	ElementActorCall ElementKind = iota
	ElementTap
	ElementProbe
)

type PipeElement struct {
	Kind ElementKind
	Call Call   // valid when Kind == ElementActorCall
	Name string // tap/probe name otherwise
}

// PipeExpr is one `src | elem | elem -> sink` line.
type PipeExpr struct {
	Source   PipeSource
	Elements []PipeElement
	Sink     string // buffer name, empty if none
	SrcRange diag.SourceRange
}

// TaskKind distinguishes a plain Pipeline task body from a Modal one (spec §3.1).
type TaskKind int

const (
	TaskPipeline TaskKind = iota
	TaskModal
)

// ModeDecl is one named mode subgraph of a modal task.
type ModeDecl struct {
	Name string
	Body []PipeExpr
}

// CtrlSwitchKind names how a modal task's active mode is chosen (spec §4.3.3).
type CtrlSwitchKind int

const (
	CtrlSwitchParam CtrlSwitchKind = iota
	CtrlSwitchBuffer
)

type CtrlSwitch struct {
	Kind       CtrlSwitchKind
	ParamName  string // valid when Kind == CtrlSwitchParam
	BufferName string // valid when Kind == CtrlSwitchBuffer
	ModeOrder  []string
}

// TaskDecl is one `clock <freq> name { ... }` (pipeline) or
// `clock <freq> name { control {...} mode a {...} mode b {...} }` (modal)
// declaration.
type TaskDecl struct {
	ID       ids.TaskId
	Name     string
	Kind     TaskKind
	FreqHz   float64
	Body     []PipeExpr // valid when Kind == TaskPipeline
	Control  []PipeExpr // valid when Kind == TaskModal
	Modes    []ModeDecl // valid when Kind == TaskModal
	Switch   CtrlSwitch // valid when Kind == TaskModal
	SrcRange diag.SourceRange
}

// ThirContext is the convenience facade described in spec §2: it
// re-exports the resolved AST, registry, and typed program with a few
// helper lookups the graph builder and analyzer both need repeatedly.
type ThirContext struct {
	Resolved *ResolvedProgram
	Registry *Registry
	Typed    *TypedProgram
}

// ActorMetaForCall resolves a call site to its concrete monomorphized
// metadata, falling back to the registry's un-monomorphized entry if the
// call was never polymorphic.
func (c *ThirContext) ActorMetaForCall(call Call) (ActorMeta, bool) {
	if m, ok := c.Typed.MetaFor(call.ID); ok {
		return m, true
	}
	return c.Registry.Lookup(call.Target)
}

// IsDefine reports whether name refers to a user-defined subgraph rather
// than a registered actor.
func (c *ThirContext) IsDefine(name string) bool {
	_, ok := c.Resolved.Defines[name]
	return ok
}
