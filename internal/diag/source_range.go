// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package diag

import "github.com/hashicorp/hcl/v2"

// SourceRange is a thin value wrapper around hcl.Range, reused here for the
// positions of .pdl source text the same way the teacher reuses it for .tf
// source text: the front end (lexer/parser) that owns the raw bytes is out
// of scope for this module, but still needs a position type to hand the
// core phases, and hcl.Range is already a dependency of every phase that
// deals with the resolved AST.
type SourceRange struct {
	Filename   string
	Start, End hcl.Pos
}

// NewSourceRange adapts an hcl.Range into a SourceRange.
func NewSourceRange(rng hcl.Range) SourceRange {
	return SourceRange{Filename: rng.Filename, Start: rng.Start, End: rng.End}
}

// ToHCL converts back to hcl.Range for interop with hcl-aware rendering.
func (r SourceRange) ToHCL() hcl.Range {
	return hcl.Range{Filename: r.Filename, Start: r.Start, End: r.End}
}

// StartString renders "filename:line:column", used in plain-text diagnostic
// summaries and in cycle-path messages (spec §4.2.7).
func (r SourceRange) StartString() string {
	return r.ToHCL().String()
}
