// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

// Package diagfmt renders diag.Diagnostics for human consumption, grounded
// on internal/command/format/diagnostic.go and
// internal/command/jsonentities/diagnostic.go from the teacher pack: the
// same left-rule-prefixed, color-striped layout, built from the same
// mitchellh/colorstring + mitchellh/go-wordwrap combination. Unlike the
// teacher's renderer (which pulls source snippets from live *hcl.File
// objects owned by the HCL parser), Pipit's renderer takes plain source
// text keyed by filename, since the lexer/parser that owns .pdl bytes is an
// external collaborator (spec §1) and the core only carries spans, not
// parsed files.
package diagfmt

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/mitchellh/colorstring"
	wordwrap "github.com/mitchellh/go-wordwrap"

	"github.com/pipit-lang/pipit/internal/diag"
)

var disabledColorize = &colorstring.Colorize{
	Colors:  colorstring.DefaultColors,
	Disable: true,
}

// Diagnostic formats a single diagnostic message in color, wrapping detail
// text at the given terminal width (0 disables wrapping).
func Diagnostic(d diag.Diagnostic, sources map[string]string, color *colorstring.Colorize, width int) string {
	var buf bytes.Buffer

	var leftRuleLine, leftRuleStart, leftRuleEnd string
	var leftRuleWidth int

	switch d.Severity {
	case diag.Error:
		buf.WriteString(color.Color("[bold][red]Error: [reset]"))
		leftRuleLine = color.Color("[red]│[reset] ")
		leftRuleStart = color.Color("[red]╷[reset]")
		leftRuleEnd = color.Color("[red]╵[reset]")
		leftRuleWidth = 2
	case diag.Warning:
		buf.WriteString(color.Color("[bold][yellow]Warning: [reset]"))
		leftRuleLine = color.Color("[yellow]│[reset] ")
		leftRuleStart = color.Color("[yellow]╷[reset]")
		leftRuleEnd = color.Color("[yellow]╵[reset]")
		leftRuleWidth = 2
	default:
		buf.WriteString(color.Color("\n[reset]"))
	}

	summary := d.Summary
	if d.Code != "" {
		summary = fmt.Sprintf("[%s] %s", d.Code, summary)
	}
	fmt.Fprintf(&buf, color.Color("[bold]%s[reset]\n\n"), summary)

	appendSourceSnippet(&buf, d, sources, color)

	if d.Detail != "" {
		paraWidth := width - leftRuleWidth - 1
		writeWrapped(&buf, d.Detail, paraWidth)
	}
	if d.Hint != "" {
		fmt.Fprintf(&buf, color.Color("\n[bold]Hint:[reset] %s\n"), d.Hint)
	}

	var ruleBuf strings.Builder
	sc := bufio.NewScanner(&buf)
	ruleBuf.WriteString(leftRuleStart)
	ruleBuf.WriteByte('\n')
	for sc.Scan() {
		line := sc.Text()
		prefix := leftRuleLine
		if line == "" {
			prefix = strings.TrimSpace(prefix)
		}
		ruleBuf.WriteString(prefix)
		ruleBuf.WriteString(line)
		ruleBuf.WriteByte('\n')
	}
	ruleBuf.WriteString(leftRuleEnd)
	ruleBuf.WriteByte('\n')
	return ruleBuf.String()
}

// DiagnosticPlain is the --no-color / automation-friendly variant.
func DiagnosticPlain(d diag.Diagnostic, sources map[string]string, width int) string {
	var buf bytes.Buffer

	switch d.Severity {
	case diag.Error:
		buf.WriteString("\nError: ")
	case diag.Warning:
		buf.WriteString("\nWarning: ")
	default:
		buf.WriteString("\n")
	}

	summary := d.Summary
	if d.Code != "" {
		summary = fmt.Sprintf("[%s] %s", d.Code, summary)
	}
	fmt.Fprintf(&buf, "%s\n\n", summary)

	appendSourceSnippet(&buf, d, sources, disabledColorize)

	if d.Detail != "" {
		writeWrapped(&buf, d.Detail, width-1)
	}
	if d.Hint != "" {
		fmt.Fprintf(&buf, "\nHint: %s\n", d.Hint)
	}
	return buf.String()
}

func writeWrapped(buf *bytes.Buffer, text string, paraWidth int) {
	if paraWidth <= 0 {
		fmt.Fprintf(buf, "%s\n", text)
		return
	}
	for _, line := range strings.Split(text, "\n") {
		if !strings.HasPrefix(line, " ") {
			line = wordwrap.WrapString(line, uint(paraWidth))
		}
		fmt.Fprintf(buf, "%s\n", line)
	}
}

func appendSourceSnippet(buf *bytes.Buffer, d diag.Diagnostic, sources map[string]string, color *colorstring.Colorize) {
	if d.Subject == nil {
		return
	}
	fmt.Fprintf(buf, color.Color("  [bold]on %s[reset]\n"), d.Subject.StartString())
	src, ok := sources[d.Subject.Filename]
	if !ok {
		return
	}
	lines := strings.Split(src, "\n")
	lineNo := d.Subject.Start.Line
	if lineNo < 1 || lineNo > len(lines) {
		return
	}
	fmt.Fprintf(buf, color.Color("  [dark_gray]%4d |[reset] %s\n"), lineNo, lines[lineNo-1])
}

// Diagnostics renders a whole Diagnostics slice, one block per entry.
func Diagnostics(ds diag.Diagnostics, sources map[string]string, color *colorstring.Colorize, width int) string {
	var b strings.Builder
	for _, d := range ds {
		b.WriteString(Diagnostic(d, sources, color, width))
		b.WriteByte('\n')
	}
	return b.String()
}
