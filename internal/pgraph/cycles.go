// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package pgraph

import (
	"github.com/pipit-lang/pipit/internal/ids"
)

// nodeColor is the standard white/gray/black DFS coloring (spec §4.1.4).
type nodeColor int

const (
	colorWhite nodeColor = iota
	colorGray
	colorBlack
)

// detectAllCycles runs DFS coloring independently on every subgraph in the
// program (a pipeline body, a modal control block, or one mode block never
// shares nodes with another, so cycles never cross subgraph boundaries).
// DFS starts from each node in declaration order, so results are
// deterministic across runs (spec §9).
func detectAllCycles(pg *ProgramGraph) []Cycle {
	var out []Cycle
	for _, tl := range allSubgraphs(pg) {
		out = append(out, detectCyclesIn(tl.task, tl.label, tl.sg)...)
	}
	return out
}

func detectCyclesIn(task, label string, sg *Subgraph) []Cycle {
	colors := make(map[ids.NodeId]nodeColor, len(sg.Nodes))
	for _, n := range sg.Nodes {
		colors[n.ID] = colorWhite
	}

	var cycles []Cycle
	var path []ids.NodeId

	var visit func(id ids.NodeId)
	visit = func(id ids.NodeId) {
		colors[id] = colorGray
		path = append(path, id)

		for _, e := range sg.Outgoing(id) {
			switch colors[e.Tgt] {
			case colorWhite:
				visit(e.Tgt)
			case colorGray:
				// Found a back edge into an ancestor: the cycle is the
				// portion of the current DFS path from that ancestor to
				// here, stored verbatim in traversal order.
				start := 0
				for i, p := range path {
					if p == e.Tgt {
						start = i
						break
					}
				}
				cycle := make([]ids.NodeId, len(path)-start)
				copy(cycle, path[start:])
				cycles = append(cycles, Cycle{Task: task, Label: label, Nodes: cycle})
			case colorBlack:
				// already fully explored, not part of any new cycle from here
			}
		}

		path = path[:len(path)-1]
		colors[id] = colorBlack
	}

	for _, n := range sg.Nodes {
		if colors[n.ID] == colorWhite {
			visit(n.ID)
		}
	}

	return cycles
}
