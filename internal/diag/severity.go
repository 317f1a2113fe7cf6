// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package diag

import "github.com/hashicorp/hcl/v2"

// Severity distinguishes an Error, which prevents codegen from running, from
// a Warning, which is reported but does not stop compilation (see spec §7:
// "accumulate, do not short-circuit").
type Severity int

const (
	Warning Severity = iota
	Error
)

// PedanticMode promotes every Warning to an Error. It exists for test
// harnesses and CI configurations that want to fail fast on anything the
// compiler considers worth mentioning, mirroring the teacher pack's
// PedanticMode switch over SeverityLevel.
var PedanticMode = false

// NewSeverity applies PedanticMode and returns the effective severity to
// store on a Diagnostic.
func NewSeverity(s Severity) Severity {
	if PedanticMode && s == Warning {
		return Error
	}
	return s
}

// ToHCL converts to the severity enum used by the hcl package, so
// diagnostics can be rendered with hcl-aware tooling if desired.
func (s Severity) ToHCL() hcl.DiagnosticSeverity {
	switch NewSeverity(s) {
	case Error:
		return hcl.DiagError
	case Warning:
		return hcl.DiagWarning
	default:
		return hcl.DiagInvalid
	}
}

func (s Severity) String() string {
	switch s {
	case Error:
		return "Error"
	case Warning:
		return "Warning"
	default:
		return "Invalid"
	}
}
