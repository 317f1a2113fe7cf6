// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package pgraph

import (
	"github.com/pipit-lang/pipit/internal/thir"
)

// wireInterTaskEdges pairs every BufferWrite node with the BufferRead nodes
// that share its buffer name in other tasks (spec §4.1.3). Task order and
// within-task subgraph/node order are both deterministic (declaration
// order, per spec §9), so the resulting slice's order is reproducible
// across runs.
func wireInterTaskEdges(ctx *thir.ThirContext, pg *ProgramGraph) []InterTaskEdge {
	var out []InterTaskEdge

	for _, writerTask := range pg.TaskOrder {
		wtg := pg.Tasks[writerTask]
		for _, wlabel := range wtg.Labels() {
			wsg, _ := wtg.SubgraphByLabel(wlabel)
			for _, wn := range wsg.Nodes {
				if wn.Kind != NodeBufferWrite {
					continue
				}
				decl, ok := ctx.Resolved.Buffers[wn.BufferName]
				if !ok {
					continue
				}
				for _, readerTask := range decl.ReaderTask {
					if readerTask == writerTask {
						continue
					}
					rtg, ok := pg.Tasks[readerTask]
					if !ok {
						continue
					}
					for _, rlabel := range rtg.Labels() {
						rsg, _ := rtg.SubgraphByLabel(rlabel)
						for _, rn := range rsg.Nodes {
							if rn.Kind != NodeBufferRead || rn.BufferName != wn.BufferName {
								continue
							}
							out = append(out, InterTaskEdge{
								BufferName: wn.BufferName,
								WriterTask: writerTask,
								WriterNode: wn.ID,
								ReaderTask: readerTask,
								ReaderNode: rn.ID,
							})
						}
					}
				}
			}
		}
	}

	return out
}

// taskLabel names one subgraph within the whole program, for keying cycle
// detection results (spec §4.1.4).
type taskLabel struct {
	task  string
	label string
	sg    *Subgraph
}

func allSubgraphs(pg *ProgramGraph) []taskLabel {
	var out []taskLabel
	for _, task := range pg.TaskOrder {
		tg := pg.Tasks[task]
		for _, label := range tg.Labels() {
			sg, _ := tg.SubgraphByLabel(label)
			out = append(out, taskLabel{task: task, label: label, sg: sg})
		}
	}
	return out
}
