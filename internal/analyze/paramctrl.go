// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package analyze

import (
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/pipit-lang/pipit/internal/diag"
	"github.com/pipit-lang/pipit/internal/pgraph"
	"github.com/pipit-lang/pipit/internal/thir"
)

// validateParamCtrlTypes is spec §4.2.12: runtime-param types must match
// the actor parameter they're bound to at every call site (E0308), and a
// modal task's switch source must resolve to int32 (E0309/E0310).
func (a *analyzer) validateParamCtrlTypes() {
	a.checkParamArgTypes()
	a.checkModalSwitchTypes()
}

func (a *analyzer) checkParamArgTypes() {
	a.forEachSubgraph(func(task, label string, sg *pgraph.Subgraph) {
		for _, n := range sg.Nodes {
			if n.Kind != pgraph.NodeActor {
				continue
			}
			meta, ok := a.ctx.ActorMetaForCall(thir.Call{ID: n.CallID, Target: n.ActorName})
			if !ok {
				continue
			}
			for i, arg := range n.Args {
				if arg.Kind != thir.ArgParamRef || i >= len(meta.Params) {
					continue
				}
				param, ok := a.ctx.Resolved.Params[arg.Name]
				if !ok {
					continue
				}
				formal := meta.Params[i]
				if cppTypeCategory(formal.CppType) != valueCategory(param.Default) {
					rng := n.SrcRange
					a.add(diag.Errorf(diag.CodeParamTypeMismatch, &rng,
						"runtime param type mismatch",
						"param %q (default type %s) is bound to actor %q's parameter %q, declared as %q",
						arg.Name, valueCategory(param.Default), n.ActorName, formal.Name, formal.CppType))
				}
			}
		}
	})
}

func (a *analyzer) checkModalSwitchTypes() {
	for _, task := range a.ctx.Resolved.Tasks {
		if task.Kind != thir.TaskModal {
			continue
		}
		switch task.Switch.Kind {
		case thir.CtrlSwitchParam:
			param, ok := a.ctx.Resolved.Params[task.Switch.ParamName]
			if !ok {
				continue
			}
			if !isInt32Literal(param.Default) {
				a.add(diag.Errorf(diag.CodeCtrlNotParamInt32, &task.SrcRange,
					"modal switch param is not int32",
					"task %q switches modes on param %q, which must resolve to int32", task.Name, task.Switch.ParamName))
			}
		case thir.CtrlSwitchBuffer:
			wt := a.bufferWriterType(task.Switch.BufferName)
			if wt != thir.WireInt32 {
				a.add(diag.Errorf(diag.CodeCtrlNotBufInt32, &task.SrcRange,
					"modal switch buffer is not int32",
					"task %q switches modes on buffer %q, which resolves to wire type %q, not int32",
					task.Name, task.Switch.BufferName, wt))
			}
		}
	}
}

// cppTypeCategory buckets an ActorParam's declared C++ type into the
// coarse categories a runtime param's literal default can be checked
// against: spans and dim params are excluded (never bound to a runtime
// param reference).
func cppTypeCategory(cppType string) string {
	t := strings.TrimSpace(cppType)
	switch {
	case t == "bool":
		return "bool"
	case t == "std::string" || t == "const char*":
		return "string"
	case strings.Contains(t, "span"):
		return "span"
	default:
		return "numeric"
	}
}

func valueCategory(v cty.Value) string {
	if v.IsNull() || !v.IsKnown() {
		return "unknown"
	}
	switch {
	case v.Type() == cty.Bool:
		return "bool"
	case v.Type() == cty.String:
		return "string"
	case v.Type() == cty.Number:
		return "numeric"
	default:
		return "unknown"
	}
}

func isInt32Literal(v cty.Value) bool {
	if v.IsNull() || !v.IsKnown() || v.Type() != cty.Number {
		return false
	}
	_, acc := v.AsBigFloat().Int64()
	return acc == 0
}
