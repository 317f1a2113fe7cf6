// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

// Package codegen implements spec §4.4: a string-accumulating walk from
// LirProgram to a single C++ translation unit. It consults nothing but
// the LirProgram it is given -- no earlier phase's data structures -- so
// that the same LirProgram always yields byte-identical output.
package codegen

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pipit-lang/pipit/internal/lir"
	"github.com/pipit-lang/pipit/internal/thir"
)

// Options is spec §4.4's CodegenOptions.
type Options struct {
	Release      bool
	IncludePaths []string
}

const retryLimit = 1000000

// maxBacklogCatchUp bounds the overrun_policy=backlog catch-up loop (spec
// §4.4.6 / SPEC_FULL §3 supplement 4) so sustained overrun can't stall a
// task indefinitely trying to drain missed ticks.
const maxBacklogCatchUp = 8

// timerSpinNs is spec §4.3.1/§6.3: Fixed(ns) passes its literal nanosecond
// budget, Adaptive serializes as the sentinel -1.
func timerSpinNs(spin thir.TimerSpin) int64 {
	if spin.Kind == thir.TimerSpinAdaptive {
		return -1
	}
	return int64(spin.Ns)
}

// cppFloatLiteral formats a task frequency as a valid C++ float literal,
// same rule as lir.CppLiteral for thir.WireFloat: whole numbers need a
// forced decimal point before the trailing `f` suffix (`%g` alone would
// otherwise emit the illegal literal "1000f").
func cppFloatLiteral(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s + "f"
}

// Generate lowers prog into a single C++ translation unit.
func Generate(prog *lir.LirProgram, opts Options) string {
	var b strings.Builder
	g := &gen{b: &b, prog: prog, opts: opts}

	g.preamble()
	g.consts()
	g.params()
	g.buffers()
	g.controlFlags()
	for _, task := range prog.Tasks {
		g.task(task)
	}
	g.mainFunc()

	return b.String()
}

type gen struct {
	b    *strings.Builder
	prog *lir.LirProgram
	opts Options
}

func (g *gen) printf(format string, args ...any) {
	fmt.Fprintf(g.b, format, args...)
}

// preamble is spec §4.4 item 1.
func (g *gen) preamble() {
	g.printf("#include <pipit.h>\n")
	for _, h := range []string{"atomic", "chrono", "cstdint", "cstdio", "cstring", "csignal", "thread", "vector"} {
		g.printf("#include <%s>\n", h)
	}
	for _, p := range g.opts.IncludePaths {
		g.printf("#include %q\n", p)
	}
	g.printf("\n")
}

// consts is spec §4.4 item 2.
func (g *gen) consts() {
	for _, c := range g.prog.Consts {
		switch c.Kind {
		case lir.LirConstScalar:
			g.printf("static constexpr auto _const_%s = %s;\n", c.Name, c.Scalar)
		case lir.LirConstArray:
			g.printf("static constexpr %s _const_%s[] = {%s};\n",
				c.ElemType.CppType(), c.Name, strings.Join(c.Elements, ", "))
		}
	}
	if len(g.prog.Consts) > 0 {
		g.printf("\n")
	}
}

// params is spec §4.4 item 3.
func (g *gen) params() {
	for _, p := range g.prog.Params {
		g.printf("static std::atomic<%s> _param_%s(%s);\n", p.CppType, p.Name, p.DefaultLiteral)
	}
	if len(g.prog.Params) > 0 {
		g.printf("\n")
	}
}

// buffers is spec §4.4 item 4.
func (g *gen) buffers() {
	for _, buf := range g.prog.Buffers {
		g.printf("static pipit::RingBuffer<%s, %d, %d> _ringbuf_%s;\n",
			buf.CppType, buf.CapacityTokens, buf.ReaderCount, buf.Name)
	}
	if len(g.prog.Buffers) > 0 {
		g.printf("\n")
	}
}

// controlFlags is spec §4.4 item 5.
func (g *gen) controlFlags() {
	g.printf("static std::atomic<bool> _stop(false);\n")
	g.printf("static std::atomic<int> _exit_code(0);\n")
	g.printf("static std::atomic<bool> _start(false);\n")
	g.printf("static std::atomic<bool> _stats(false);\n")
	for _, task := range g.prog.Tasks {
		g.printf("static pipit::TaskStats _stats_%s;\n", task.Name)
	}
	if !g.opts.Release {
		for _, name := range g.prog.Probes {
			g.printf("static std::atomic<bool> _probe_%s_enabled(false);\n", name)
		}
	}
	g.printf("\n")
}

// task is spec §4.4 item 6: one task_{name}() per task.
func (g *gen) task(task lir.LirTask) {
	g.printf("static void task_%s() {\n", task.Name)
	g.printf("  while (!_start.load(std::memory_order_acquire)) { std::this_thread::yield(); }\n")
	g.printf("  pipit::Timer _timer(%s, _stats.load(std::memory_order_relaxed), %d);\n",
		cppFloatLiteral(task.FreqHz), timerSpinNs(g.prog.Directives.TimerSpin))
	g.printf("  pipit::set_task_context(%q, %s);\n", task.Name, cppFloatLiteral(task.FreqHz))

	g.declareFeedbackBuffers(task.FeedbackBuffers)
	if task.Body.Kind == lir.LirBodyModal {
		g.printf("  int _active_mode = -1;\n")
	}

	g.printf("  while (!_stop.load(std::memory_order_acquire)) {\n")
	g.printf("    _timer.wait();\n")

	backlog := g.prog.Directives.OverrunPolicy == thir.OverrunBacklog
	switch g.prog.Directives.OverrunPolicy {
	case thir.OverrunSlip:
		g.printf("    if (_timer.overrun()) { _timer.reset_phase(); }\n")
	case thir.OverrunBacklog:
		g.printf("    uint32_t _backlog = 1;\n")
		g.printf("    if (_timer.overrun()) {\n")
		g.printf("      _backlog = static_cast<uint32_t>(_timer.missed_count()) + 1;\n")
		g.printf("      if (_backlog > %d) { _backlog = %d; _stats_%s.missed++; }\n",
			maxBacklogCatchUp, maxBacklogCatchUp, task.Name)
		g.printf("    }\n")
		g.printf("    for (uint32_t _catchup = 0; _catchup < _backlog; ++_catchup) {\n")
	default: // drop
		g.printf("    if (_timer.overrun()) { continue; }\n")
	}

	if task.KFactor > 1 {
		g.printf("    for (uint32_t _k = 0; _k < %d; ++_k) {\n", task.KFactor)
	}

	for _, name := range task.UsedParams {
		g.printf("    auto _param_%s_val = _param_%s.load(std::memory_order_acquire);\n", name, name)
	}

	switch task.Body.Kind {
	case lir.LirBodyPipeline:
		g.subgraph(task.Body.Pipeline)
	case lir.LirBodyModal:
		g.modalBody(task)
	}

	if task.KFactor > 1 {
		g.printf("    }\n")
	}
	if backlog {
		g.printf("    }\n")
	}
	g.printf("    if (_stats.load(std::memory_order_relaxed)) { _stats_%s.ticks++; }\n", task.Name)
	g.printf("  }\n")
	g.printf("}\n\n")
}

func (g *gen) declareFeedbackBuffers(fbs []lir.LirFeedbackBuffer) {
	for _, fb := range fbs {
		g.printf("  static %s %s[%d] = {%s};\n", fb.CppType, fb.VarName, fb.Length, fb.InitLiteral)
	}
}

// modalBody resolves the ctrl source, switches on it, and resets feedback
// buffers named for the newly-entered mode.
func (g *gen) modalBody(task lir.LirTask) {
	g.subgraph(task.Body.Control)

	switch task.Body.CtrlSource.Kind {
	case lir.LirCtrlParam:
		g.printf("    int _ctrl = static_cast<int>(_param_%s.load(std::memory_order_acquire));\n", task.Body.CtrlSource.Name)
	case lir.LirCtrlEdgeBuffer:
		g.printf("    int _ctrl = static_cast<int>(%s);\n", task.Body.CtrlSource.VarName)
	case lir.LirCtrlRingBuffer:
		g.printf("    int32_t _ctrl = 0;\n")
		g.printf("    _ringbuf_%s.read(%d, &_ctrl, 1);\n", task.Body.CtrlSource.Name, task.Body.CtrlSource.ReaderIdx)
	}

	g.printf("    if (_active_mode != _ctrl) {\n")
	for _, reset := range task.Body.ModeFeedbackResets {
		idx := modeIndex(task.Body.Modes, reset.Mode)
		g.printf("      if (_ctrl == %d) {\n", idx)
		for _, name := range reset.Buffers {
			init := "0"
			for _, fb := range task.FeedbackBuffers {
				if fb.VarName == name {
					init = fb.InitLiteral
				}
			}
			g.printf("        for (auto& _v : %s) { _v = %s; }\n", name, init)
		}
		g.printf("      }\n")
	}
	g.printf("      _active_mode = _ctrl;\n")
	g.printf("    }\n")

	g.printf("    switch (_ctrl) {\n")
	for i, mode := range task.Body.Modes {
		g.printf("      case %d: {\n", i)
		g.subgraph(mode.Subgraph)
		g.printf("        break;\n")
		g.printf("      }\n")
	}
	g.printf("      default: break;\n")
	g.printf("    }\n")
}

func modeIndex(modes []lir.LirModeBody, name string) int {
	for i, m := range modes {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// subgraph emits every edge-buffer declaration then walks the firing
// groups in emission order (spec §4.4 item 7).
func (g *gen) subgraph(sg lir.LirSubgraph) {
	for _, eb := range sg.EdgeBuffers {
		if eb.IsAlias {
			continue
		}
		g.printf("    static %s %s;\n", eb.CppType, eb.VarName)
	}
	for _, group := range sg.Firings {
		switch group.Kind {
		case lir.LirGroupSingle:
			g.firing(group.Single)
		case lir.LirGroupFused:
			g.fused(group.Fused)
		}
	}
}

func (g *gen) fused(fc lir.LirFusedChain) {
	for _, actor := range fc.HoistedActors {
		g.printf("    %s _actor_%s(%s);\n", actor.CppName, actor.NodeID, g.argList(actor.Args))
	}
	g.printf("    for (uint32_t _r = 0; _r < %d; ++_r) {\n", fc.Repetition)
	for _, f := range fc.Body {
		g.firingBody(f, true)
	}
	g.printf("    }\n")
}

func (g *gen) firing(f lir.LirFiring) {
	if f.NeedsLoop {
		if f.Kind == lir.LirFireActor {
			g.printf("    %s _actor_%s(%s);\n", f.CppName, f.NodeID, g.argList(f.Args))
		}
		g.printf("    for (uint32_t _r = 0; _r < %d; ++_r) {\n", f.Repetition)
		g.firingBody(f, true)
		g.printf("    }\n")
		return
	}
	g.firingBody(f, false)
}

func (g *gen) firingBody(f lir.LirFiring, hoisted bool) {
	indent := "    "
	if hoisted {
		indent = "      "
	}
	switch f.Kind {
	case lir.LirFireActor:
		in := g.inputExpr(f)
		out := "nullptr"
		if len(f.OutEdges) > 0 {
			out = "&" + f.OutEdges[0]
		}
		call := fmt.Sprintf("_actor_%s.operator()(%s, %s)", f.NodeID, in, out)
		if hoisted {
			// hoisted actor is pre-constructed; reuse it across iterations.
		} else {
			call = fmt.Sprintf("%s{%s}(%s, %s)", f.CppName, g.argList(f.Args), in, out)
		}
		g.printf("%sif (!%s) { _exit_code.store(1); _stop.store(true); return; }\n", indent, call)
	case lir.LirFireFork:
		for _, out := range f.OutEdges {
			if len(f.InEdges) == 0 {
				continue
			}
			g.printf("%s%s = %s;\n", indent, out, f.InEdges[0])
		}
	case lir.LirFireProbe:
		if !g.opts.Release {
			g.printf("%sif (_probe_%s_enabled.load(std::memory_order_relaxed)) { pipit::write_probe(%q, %s); }\n",
				indent, f.Name, f.Name, firstOr(f.InEdges, "0"))
		}
	case lir.LirFireBufferRead:
		g.bufferRead(f, indent)
	case lir.LirFireBufferWrite:
		g.bufferWrite(f, indent)
	}
}

func (g *gen) argList(args []lir.LirActorArg) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		switch a.Kind {
		case lir.LirArgParamRef:
			parts = append(parts, "_param_"+a.Name+"_val")
		case lir.LirArgLiteral:
			parts = append(parts, a.Literal)
		case lir.LirArgConstScalar:
			parts = append(parts, "_const_"+a.Name)
		case lir.LirArgConstSpan:
			parts = append(parts, fmt.Sprintf("std::span(_const_%s)", a.Name))
		case lir.LirArgConstArrayLen:
			parts = append(parts, fmt.Sprintf("static_cast<int32_t>(std::size(_const_%s))", a.Name))
		case lir.LirArgDimValue:
			parts = append(parts, fmt.Sprintf("%d", a.IntValue))
		}
	}
	return strings.Join(parts, ", ")
}

// inputExpr is spec §4.4's "Multi-input actors" rule: concatenate
// per-edge slices into a local buffer for more than one incoming edge,
// otherwise pass the single edge buffer directly.
func (g *gen) inputExpr(f lir.LirFiring) string {
	if len(f.InEdges) == 0 {
		return "nullptr"
	}
	if len(f.InEdges) == 1 {
		return "&" + f.InEdges[0]
	}

	local := fmt.Sprintf("_in_%s", f.NodeID)
	g.printf("    auto %s = pipit::concat(%s);\n", local, strings.Join(f.InEdges, ", "))
	return local + ".data()"
}

func (g *gen) bufferRead(f lir.LirFiring, indent string) {
	retry := fmt.Sprintf("_rb_retry_%s_%s", f.PeerSrc, f.PeerTgt)
	out := "nullptr"
	if len(f.OutEdges) > 0 {
		out = "&" + f.OutEdges[0]
	}
	g.printf("%suint32_t %s = 0;\n", indent, retry)
	g.printf("%swhile (!_ringbuf_%s.read(0, %s, 1)) {\n", indent, f.BufferName, out)
	g.printf("%s  if (++%s > %d) { _exit_code.store(1); _stop.store(true); return; }\n", indent, retry, retryLimit)
	g.printf("%s  std::this_thread::yield();\n", indent)
	g.printf("%s}\n", indent)
}

func (g *gen) bufferWrite(f lir.LirFiring, indent string) {
	for _, buf := range g.prog.Buffers {
		if buf.Name == f.BufferName && buf.SkipWrites {
			return
		}
	}
	retry := fmt.Sprintf("_rb_retry_%s_%s", f.PeerSrc, f.PeerTgt)
	in := "nullptr"
	if len(f.InEdges) > 0 {
		in = "&" + f.InEdges[0]
	}
	g.printf("%suint32_t %s = 0;\n", indent, retry)
	g.printf("%swhile (!_ringbuf_%s.write(%s, 1)) {\n", indent, f.BufferName, in)
	g.printf("%s  if (++%s > %d) { _exit_code.store(1); _stop.store(true); return; }\n", indent, retry, retryLimit)
	g.printf("%s  std::this_thread::yield();\n", indent)
	g.printf("%s}\n", indent)
}

// mainFunc is spec §4.4 item 10.
func (g *gen) mainFunc() {
	names := make([]string, len(g.prog.Tasks))
	for i, t := range g.prog.Tasks {
		names[i] = t.Name
	}
	sort.Strings(names)

	g.printf("int main(int argc, char** argv) {\n")
	g.printf("  pipit::CliOptions _opts = pipit::parse_cli(argc, argv);\n")
	g.printf("  for (auto& kv : _opts.params) {\n")
	for _, p := range g.prog.Params {
		g.printf("    if (kv.first == %q) { _param_%s.store(%s(kv.second)); }\n", p.Name, p.Name, p.CliConverter)
	}
	g.printf("  }\n")
	if !g.opts.Release {
		for _, name := range g.prog.Probes {
			g.printf("  if (_opts.probes.count(%q)) { _probe_%s_enabled.store(true); }\n", name, name)
		}
	}
	g.printf("  _stats.store(_opts.stats);\n")
	g.printf("  std::signal(SIGINT, [](int) { _stop.store(true); });\n\n")

	g.printf("  std::vector<std::thread> _threads;\n")
	for _, name := range names {
		g.printf("  _threads.emplace_back(task_%s);\n", name)
	}
	g.printf("  _start.store(true, std::memory_order_release);\n")
	g.printf("  if (_opts.duration_ms > 0) {\n")
	g.printf("    std::this_thread::sleep_for(std::chrono::milliseconds(_opts.duration_ms));\n")
	g.printf("    _stop.store(true);\n")
	g.printf("  }\n")
	g.printf("  for (auto& t : _threads) { t.join(); }\n\n")

	g.printf("  if (_opts.stats) {\n")
	for _, name := range names {
		g.printf("    pipit::print_stats(%q, _stats_%s);\n", name, name)
	}
	g.printf("  }\n")
	g.printf("  return _exit_code.load();\n")
	g.printf("}\n")
}

func firstOr(items []string, fallback string) string {
	if len(items) > 0 {
		return items[0]
	}
	return fallback
}
