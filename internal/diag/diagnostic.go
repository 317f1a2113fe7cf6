// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

// Package diag implements the accumulate-don't-short-circuit diagnostics
// model used by every core phase (spec §7). Its shape mirrors the teacher
// pack's tfdiags.Diagnostics as used throughout internal/lang/grapheval and
// internal/lang/eval/internal/configgraph — the real tfdiags package source
// was not present in the retrieved corpus (only its tests were), so this
// package is rebuilt from those call sites rather than copied.
package diag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Code is one of the namespaced error/warning codes in spec §7: E0300-E0312,
// E0720-E0726, W0300. A Diagnostic without a Code is an internal/structural
// message that doesn't correspond to a numbered rule (e.g. resolver-level
// bugs surfaced via Sourceless).
type Code string

const (
	// Graph construction errors (spec §4.1.5).
	CodeInlineDepthExceeded Code = "E0200"
	CodeInlineRecursive     Code = "E0201"
	CodeUnresolvedTap       Code = "E0202"

	// Shape errors.
	CodeUnresolvedDim     Code = "E0300"
	CodeShapeConflictProp Code = "E0301"
	CodeShapeConflictSrc  Code = "E0302"

	// Type errors.
	CodeEdgeTypeMismatch Code = "E0303"

	// Rate errors.
	CodeBalanceUnsolvable Code = "E0304"

	// Topology errors.
	CodeCycleNoDelay Code = "E0305"

	// Rate errors (cross-clock).
	CodeCrossClockMismatch Code = "E0306"

	// Resource errors.
	CodeMemoryPoolExceeded Code = "E0307"

	// Type/ctrl errors.
	CodeParamTypeMismatch Code = "E0308"
	CodeCtrlNotParamInt32 Code = "E0309"
	CodeCtrlNotBufInt32   Code = "E0310"

	// Binding errors.
	CodeBindUnreferenced Code = "E0311"
	CodeBindDivergent    Code = "E0312"

	// SHM endpoint validation (spec §4.2.11), E0720-E0726.
	CodeShmMissingSlots     Code = "E0720"
	CodeShmInvalidSlots     Code = "E0721"
	CodeShmMissingSlotBytes Code = "E0722"
	CodeShmInvalidSlotBytes Code = "E0723"
	CodeShmSlotBytesNotMul8 Code = "E0724"
	CodeShmMissingName      Code = "E0725"
	CodeShmInvalidName      Code = "E0726"

	// Warnings.
	CodeDimParamOrdering Code = "W0300"
)

// Diagnostic is one accumulated message: an error or warning, with an
// optional source span, an optional hint (e.g. a suggested conversion
// actor, spec Supplement §3.1), and an optional stable Code.
type Diagnostic struct {
	Severity Severity
	Summary  string
	Detail   string
	Subject  *SourceRange
	Hint     string
	Code     Code
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.Code != "" {
		fmt.Fprintf(&b, "[%s] ", d.Code)
	}
	b.WriteString(NewSeverity(d.Severity).String())
	b.WriteString(": ")
	b.WriteString(d.Summary)
	if d.Subject != nil {
		fmt.Fprintf(&b, " (%s)", d.Subject.StartString())
	}
	if d.Detail != "" {
		b.WriteString(": ")
		b.WriteString(d.Detail)
	}
	if d.Hint != "" {
		fmt.Fprintf(&b, " (hint: %s)", d.Hint)
	}
	return b.String()
}

// Diagnostics is an ordered collection of Diagnostic, accumulated across a
// whole phase run. Phases never discard earlier diagnostics to report a
// later one: spec §7 requires the driver to see "as many diagnostics as
// possible per run".
type Diagnostics []Diagnostic

// Append adds one Diagnostic and returns the (possibly reallocated) slice,
// following the same "diags = diags.Append(...)" idiom the teacher pack
// uses for tfdiags.Diagnostics.
func (ds Diagnostics) Append(d Diagnostic) Diagnostics {
	d.Severity = NewSeverity(d.Severity)
	return append(ds, d)
}

// AppendAll appends every diagnostic from other, in order.
func (ds Diagnostics) AppendAll(other Diagnostics) Diagnostics {
	if len(other) == 0 {
		return ds
	}
	return append(ds, other...)
}

// Sourceless builds a Diagnostic with no source span, for internal-error or
// purely structural messages (e.g. the LirCert postcondition failures in
// spec §4.3.9, or a workgraph-style cycle error with no single offending
// span).
func Sourceless(severity Severity, summary, detail string) Diagnostic {
	return Diagnostic{Severity: NewSeverity(severity), Summary: summary, Detail: detail}
}

// Errorf builds an Error-severity Diagnostic with a numbered Code, a span,
// and a formatted detail message -- the common case for every E03xx/E07xx
// rule in spec §4.2 and §7.
func Errorf(code Code, subject *SourceRange, summary, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: Error,
		Code:     code,
		Subject:  subject,
		Summary:  summary,
		Detail:   fmt.Sprintf(format, args...),
	}
}

// Warnf builds a Warning-severity Diagnostic with a numbered Code.
func Warnf(code Code, subject *SourceRange, summary, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: Warning,
		Code:     code,
		Subject:  subject,
		Summary:  summary,
		Detail:   fmt.Sprintf(format, args...),
	}
}

// HasErrors reports whether any accumulated diagnostic is at Error severity.
// The driver uses this to decide whether to abort before LIR/codegen (spec
// §7: "LIR construction and codegen must not run if analysis reported
// errors").
func (ds Diagnostics) HasErrors() bool {
	for _, d := range ds {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Errors returns only the Error-severity diagnostics, in original order.
func (ds Diagnostics) Errors() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == Error {
			out = append(out, d)
		}
	}
	return out
}

// Warnings returns only the Warning-severity diagnostics, in original order.
func (ds Diagnostics) Warnings() Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Severity == Warning {
			out = append(out, d)
		}
	}
	return out
}

// Err aggregates all Error-severity diagnostics into a single error value
// via hashicorp/go-multierror, for callers that want a plain `error` rather
// than a Diagnostics slice (e.g. an internal API boundary that must satisfy
// the standard error interface). Returns nil if there are no errors.
func (ds Diagnostics) Err() error {
	errs := ds.Errors()
	if len(errs) == 0 {
		return nil
	}
	var merr *multierror.Error
	for _, d := range errs {
		merr = multierror.Append(merr, fmt.Errorf("%s", d.String()))
	}
	return merr
}

// ConsolidateWarnings folds together adjacent (after sorting by Summary)
// warnings that share the same Summary and Code into a single Diagnostic
// whose Detail lists every affected source range, rather than repeating the
// same warning once per occurrence. Errors are never consolidated, matching
// the teacher's consolidate_warnings_test.go contract that only warnings
// are subject to folding.
func (ds Diagnostics) ConsolidateWarnings() Diagnostics {
	var errs Diagnostics
	groups := map[string]*consolidatedGroup{}
	var order []string
	for _, d := range ds {
		if d.Severity != Warning {
			errs = append(errs, d)
			continue
		}
		key := string(d.Code) + "\x00" + d.Summary
		g, ok := groups[key]
		if !ok {
			g = &consolidatedGroup{first: d}
			groups[key] = g
			order = append(order, key)
		}
		if d.Subject != nil {
			g.ranges = append(g.ranges, d.Subject.StartString())
		}
		g.count++
	}
	sort.Strings(order)

	out := make(Diagnostics, 0, len(errs)+len(order))
	out = append(out, errs...)
	for _, key := range order {
		g := groups[key]
		d := g.first
		if g.count > 1 {
			d.Detail = fmt.Sprintf("%s (and %d more at: %s)", d.Detail, g.count-1, strings.Join(g.ranges, ", "))
		}
		out = append(out, d)
	}
	return out
}

type consolidatedGroup struct {
	first  Diagnostic
	count  int
	ranges []string
}
