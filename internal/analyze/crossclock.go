// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package analyze

import (
	"math"

	"github.com/pipit-lang/pipit/internal/diag"
)

// rateEpsilon is spec §4.2.8's tolerance for the writer/reader tokens-per-
// second ratio.
const rateEpsilon = 1e-6

// checkCrossClockRates is spec §4.2.8: for every inter-task edge, the
// writer's tokens/second must match the reader's within rateEpsilon.
func (a *analyzer) checkCrossClockRates() {
	for i, e := range a.pg.InterTaskEdges {
		writerFreq := a.taskFreq(e.WriterTask)
		readerFreq := a.taskFreq(e.ReaderTask)
		writerRate := a.out.PortRates[e.WriterNode]
		readerRate := a.out.PortRates[e.ReaderNode]

		writerTokensPerSec := float64(writerRate.OutRate) * writerFreq
		readerTokensPerSec := float64(readerRate.InRate) * readerFreq
		if readerTokensPerSec == 0 {
			continue
		}
		ratio := writerTokensPerSec / readerTokensPerSec
		if math.Abs(ratio-1) > rateEpsilon {
			a.add(diag.Errorf(diag.CodeCrossClockMismatch, nil,
				"cross-clock rate mismatch",
				"inter-task buffer %q (edge #%d): writer %q produces %.6f tokens/s, reader %q consumes %.6f tokens/s",
				e.BufferName, i, e.WriterTask, writerTokensPerSec, e.ReaderTask, readerTokensPerSec))
		}
	}
}

func (a *analyzer) taskFreq(task string) float64 {
	for _, t := range a.ctx.Resolved.Tasks {
		if t.Name == task {
			return t.FreqHz
		}
	}
	return 0
}
