// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package lir

import (
	"strings"

	"github.com/pipit-lang/pipit/internal/collections"
	"github.com/pipit-lang/pipit/internal/pgraph"
	"github.com/pipit-lang/pipit/internal/thir"
)

// buildDirectives is spec §4.3.1: fill in whichever directives the front
// end left unset with their documented defaults.
func (b *builder) buildDirectives() LirDirectives {
	d := LirDirectives{
		MemBytes:      b.ctx.Resolved.MemBytes,
		OverrunPolicy: b.ctx.Resolved.Overrun,
		TimerSpin:     b.ctx.Resolved.TimerSpin,
	}
	if d.MemBytes == 0 {
		d.MemBytes = defaultMemBytes
	}
	if d.OverrunPolicy == thir.OverrunUnset {
		d.OverrunPolicy = thir.OverrunDrop
	}
	if d.TimerSpin.Kind == thir.TimerSpinUnset {
		d.TimerSpin = thir.TimerSpin{Kind: thir.TimerSpinFixed, Ns: defaultTimerSpinNs}
	}
	return d
}

// buildParams is spec §4.3.1: a runtime param's C++ type is the declared
// type of the first actor-constructor parameter slot it is ever bound to
// across every call site, scanned in deterministic subgraph/node order.
func (b *builder) buildParams() []LirParam {
	firstUse := map[string]thir.ActorParam{}
	b.forEachActorNode(func(n pgraph.Node) {
		meta, ok := b.ctx.ActorMetaForCall(thir.Call{ID: n.CallID, Target: n.ActorName})
		if !ok {
			return
		}
		for i, arg := range n.Args {
			if arg.Kind != thir.ArgParamRef || i >= len(meta.Params) {
				continue
			}
			if _, seen := firstUse[arg.Name]; !seen {
				firstUse[arg.Name] = meta.Params[i]
			}
		}
	})

	var out []LirParam
	for _, name := range collections.SortedKeys(b.ctx.Resolved.Params) {
		decl := b.ctx.Resolved.Params[name]
		cppType := "double"
		if formal, ok := firstUse[name]; ok && formal.CppType != "" {
			cppType = formal.CppType
		}
		out = append(out, LirParam{
			Name:           name,
			CppType:        cppType,
			DefaultLiteral: CppLiteral(decl.Default, cppTypeToWireType(cppType)),
			CliConverter:   cppParamConverter(cppType),
		})
	}
	return out
}

// forEachActorNode visits every Actor node across every task/subgraph in
// deterministic declaration order.
func (b *builder) forEachActorNode(fn func(pgraph.Node)) {
	for _, task := range b.pg.TaskOrder {
		tg := b.pg.Tasks[task]
		for _, label := range tg.Labels() {
			sg, _ := tg.SubgraphByLabel(label)
			for _, n := range sg.Nodes {
				if n.Kind == pgraph.NodeActor {
					fn(n)
				}
			}
		}
	}
}

// cppTypeToWireType maps a declared C++ parameter type to the wire type
// CppLiteral needs to format a matching default-value literal.
func cppTypeToWireType(cppType string) thir.WireType {
	switch strings.TrimSpace(cppType) {
	case "float":
		return thir.WireFloat
	case "double":
		return thir.WireDouble
	case "int", "int32_t":
		return thir.WireInt32
	case "bool":
		return thir.WireBool
	default:
		return thir.WireDouble
	}
}

// collectProbeNames gathers every Probe node's name across the whole
// program, in declaration order, for the probe enable-flag declarations
// (§4.4 item 5) and probe emission blocks (§4.4 item 9).
func (b *builder) collectProbeNames() []string {
	var out []string
	seen := map[string]bool{}
	for _, task := range b.pg.TaskOrder {
		tg := b.pg.Tasks[task]
		for _, label := range tg.Labels() {
			sg, _ := tg.SubgraphByLabel(label)
			for _, n := range sg.Nodes {
				if n.Kind == pgraph.NodeProbe && !seen[n.Name] {
					seen[n.Name] = true
					out = append(out, n.Name)
				}
			}
		}
	}
	return out
}
