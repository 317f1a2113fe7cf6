// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package analyze

import (
	"github.com/pipit-lang/pipit/internal/diag"
)

// sizeBuffers is spec §4.2.9: each inter-task buffer double-buffers
// (capacity = 2 x repetition count x sizeof(wire type)); the sum across
// every buffer must not exceed the configured memory pool bound.
func (a *analyzer) sizeBuffers() {
	var total uint64
	for i, e := range a.pg.InterTaskEdges {
		rv := uint32(1)
		for key, vec := range a.out.RepetitionVectors {
			if r, ok := vec[e.WriterNode]; ok && key.Task == e.WriterTask {
				rv = r
			}
		}
		wt := a.bufferWriterType(e.BufferName)
		bytes := 2 * uint64(rv) * wireSizeBytes(wt)
		a.out.InterTaskBufBytes[i] = bytes
		total += bytes
	}
	a.out.TotalMemory = total

	if total > a.memLimit {
		a.add(diag.Errorf(diag.CodeMemoryPoolExceeded, nil,
			"memory pool exceeded",
			"inter-task buffers require %d bytes, exceeding the configured pool of %d bytes",
			total, a.memLimit))
	}
}
