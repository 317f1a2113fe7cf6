// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package lir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/pipit-lang/pipit/internal/thir"
)

// CppLiteral formats a resolved constant value as valid C++ source text
// for the given wire type, used by both const/param storage (§4.3.1) and
// actor argument literals (§4.3.7). Exported so internal/codegen never
// needs to re-derive formatting rules from a raw cty.Value.
func CppLiteral(v cty.Value, wt thir.WireType) string {
	if v.IsNull() || !v.IsKnown() {
		return "{}"
	}
	switch wt {
	case thir.WireBool:
		if v.Type() == cty.Bool {
			if v.True() {
				return "true"
			}
			return "false"
		}
		return "false"
	case thir.WireInt32:
		return strconv.FormatInt(numberToInt64(v), 10)
	case thir.WireFloat:
		return formatFloatLiteral(v) + "f"
	case thir.WireDouble, thir.WireCFloat:
		return formatFloatLiteral(v)
	default:
		if v.Type() == cty.String {
			return strconv.Quote(v.AsString())
		}
		return formatFloatLiteral(v)
	}
}

func numberToInt64(v cty.Value) int64 {
	if v.Type() != cty.Number {
		return 0
	}
	n, _ := v.AsBigFloat().Int64()
	return n
}

func formatFloatLiteral(v cty.Value) string {
	if v.Type() != cty.Number {
		return "0.0"
	}
	f, _ := v.AsBigFloat().Float64()
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// CppArrayLiteral formats an array/list/tuple/set cty.Value into its
// per-element formatted literals, in element order.
func CppArrayLiteral(v cty.Value, elemType thir.WireType) []string {
	if v.IsNull() || !v.IsKnown() || !v.CanIterateElements() {
		return nil
	}
	out := make([]string, 0, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		out = append(out, CppLiteral(ev, elemType))
	}
	return out
}

// cppParamConverter names the std:: conversion function main()'s
// `--param name=value` parsing uses for a given C++ type (§4.4 item 10).
func cppParamConverter(cppType string) string {
	switch strings.TrimSpace(cppType) {
	case "int32_t", "int":
		return "std::stoi"
	case "double":
		return "std::stod"
	case "float":
		return "std::stof"
	case "bool":
		return "pipit::parse_bool"
	default:
		return fmt.Sprintf("pipit::parse<%s>", cppType)
	}
}
