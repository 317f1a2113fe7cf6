// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package analyze

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/pipit-lang/pipit/internal/collections"
	"github.com/pipit-lang/pipit/internal/diag"
	"github.com/pipit-lang/pipit/internal/thir"
)

// validateShmEndpoints is spec §4.2.11: shm(...) bindings require named
// args slots and slot_bytes (positive integer literals, slot_bytes a
// multiple of 8) plus a positional name string.
func (a *analyzer) validateShmEndpoints() {
	for _, name := range collections.SortedKeys(a.ctx.Resolved.Binds) {
		decl := a.ctx.Resolved.Binds[name]
		if decl.Transport != "shm" {
			continue
		}
		a.validateShmArgs(name, decl)
	}
}

func (a *analyzer) validateShmArgs(bindName string, decl thir.BindDecl) {
	named := map[string]thir.Arg{}
	var positional []thir.Arg
	for _, arg := range decl.Args {
		if arg.Name != "" {
			named[arg.Name] = arg
			continue
		}
		positional = append(positional, arg)
	}

	a.checkShmPositiveInt(bindName, named, "slots", diag.CodeShmMissingSlots, diag.CodeShmInvalidSlots, decl.SrcRange)

	slotBytesArg, ok := named["slot_bytes"]
	if !ok {
		a.add(diag.Errorf(diag.CodeShmMissingSlotBytes, &decl.SrcRange,
			"shm binding missing slot_bytes",
			"bind %q (shm) requires a named argument \"slot_bytes\"", bindName))
	} else if v, ok := positiveIntLiteral(slotBytesArg); !ok {
		a.add(diag.Errorf(diag.CodeShmInvalidSlotBytes, argRange(slotBytesArg, decl.SrcRange),
			"shm binding has invalid slot_bytes",
			"bind %q (shm): \"slot_bytes\" must be a positive integer literal", bindName))
	} else if v%8 != 0 {
		a.add(diag.Errorf(diag.CodeShmSlotBytesNotMul8, argRange(slotBytesArg, decl.SrcRange),
			"shm binding slot_bytes not a multiple of 8",
			"bind %q (shm): \"slot_bytes\" = %d is not a multiple of 8", bindName, v))
	}

	if len(positional) == 0 {
		a.add(diag.Errorf(diag.CodeShmMissingName, &decl.SrcRange,
			"shm binding missing endpoint name",
			"bind %q (shm) requires a positional name string argument", bindName))
		return
	}
	nameArg := positional[0]
	if nameArg.Kind != thir.ArgValue || nameArg.Value.IsNull() || !nameArg.Value.IsKnown() || nameArg.Value.Type() != cty.String {
		a.add(diag.Errorf(diag.CodeShmInvalidName, argRange(nameArg, decl.SrcRange),
			"shm binding has invalid endpoint name",
			"bind %q (shm): the positional endpoint name must be a string literal", bindName))
	}
}

func (a *analyzer) checkShmPositiveInt(bindName string, named map[string]thir.Arg, key string, missing, invalid diag.Code, fallback diag.SourceRange) {
	arg, ok := named[key]
	if !ok {
		a.add(diag.Errorf(missing, &fallback,
			"shm binding missing "+key,
			"bind %q (shm) requires a named argument %q", bindName, key))
		return
	}
	if _, ok := positiveIntLiteral(arg); !ok {
		a.add(diag.Errorf(invalid, argRange(arg, fallback),
			"shm binding has invalid "+key,
			"bind %q (shm): %q must be a positive integer literal", bindName, key))
	}
}

func positiveIntLiteral(arg thir.Arg) (int64, bool) {
	if arg.Kind != thir.ArgValue || arg.Value.IsNull() || !arg.Value.IsKnown() || arg.Value.Type() != cty.Number {
		return 0, false
	}
	v, acc := arg.Value.AsBigFloat().Int64()
	if acc != 0 || v <= 0 {
		return 0, false
	}
	return v, true
}

func argRange(arg thir.Arg, fallback diag.SourceRange) *diag.SourceRange {
	if arg.SrcRange != nil {
		return arg.SrcRange
	}
	return &fallback
}
