// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package analyze

import (
	"github.com/pipit-lang/pipit/internal/collections"
	"github.com/pipit-lang/pipit/internal/diag"
	"github.com/pipit-lang/pipit/internal/ids"
	"github.com/pipit-lang/pipit/internal/pgraph"
)

// solveBalance is spec §4.2.6: BFS-assign rational repetition counts over
// each subgraph's rate graph, normalize to positive integers, then verify
// every edge balances.
func (a *analyzer) solveBalance() {
	a.forEachSubgraph(func(task, label string, sg *pgraph.Subgraph) {
		key := SubgraphKey{Task: task, Label: label}
		rv := a.solveSubgraphBalance(sg)
		a.out.RepetitionVectors[key] = rv
		a.verifyBalance(task, label, sg, rv)
	})
}

func (a *analyzer) solveSubgraphBalance(sg *pgraph.Subgraph) map[ids.NodeId]uint32 {
	if len(sg.Nodes) == 0 {
		return map[ids.NodeId]uint32{}
	}

	inDegree := map[ids.NodeId]int{}
	for _, e := range sg.Edges {
		inDegree[e.Tgt]++
	}

	// adjacency[n] lists the edges touching n, each annotated with the
	// neighbor on the other end and whether n is the producer or consumer.
	type adj struct {
		neighbor ids.NodeId
		p, c     uint32
		nIsSrc   bool
	}
	adjacency := map[ids.NodeId][]adj{}
	addAdj := func(u, v ids.NodeId, p, c uint32, uIsSrc bool) {
		adjacency[u] = append(adjacency[u], adj{neighbor: v, p: p, c: c, nIsSrc: uIsSrc})
	}
	for _, e := range sg.Edges {
		srcRate := a.out.PortRates[e.Src].OutRate
		tgtRate := a.out.PortRates[e.Tgt].InRate
		k := inDegree[e.Tgt]
		if k == 0 {
			k = 1
		}
		c := tgtRate / uint32(k)
		if c == 0 {
			c = 1
		}
		addAdj(e.Src, e.Tgt, srcRate, c, true)
		addAdj(e.Tgt, e.Src, srcRate, c, false)
	}

	ratRV := map[ids.NodeId]rational{}
	visited := collections.NewSet[ids.NodeId]()

	for _, n := range sg.Nodes { // declaration order: deterministic BFS roots
		if visited.Has(n.ID) {
			continue
		}
		ratRV[n.ID] = newRational(1, 1)
		visited.Add(n.ID)
		queue := []ids.NodeId{n.ID}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			curR := ratRV[cur]
			for _, nb := range adjacency[cur] {
				if visited.Has(nb.neighbor) {
					continue
				}
				var next rational
				if nb.nIsSrc {
					// cur is the producer (forward edge cur -> neighbor).
					next = curR.mul(newRational(int64(nb.p), int64(nb.c)))
				} else {
					// cur is the consumer (reverse edge neighbor -> cur).
					next = curR.mul(newRational(int64(nb.c), int64(nb.p)))
				}
				ratRV[nb.neighbor] = next
				visited.Add(nb.neighbor)
				queue = append(queue, nb.neighbor)
			}
		}
	}

	return normalizeRepetitionVector(sg, ratRV)
}

// normalizeRepetitionVector folds the LCM of every denominator into the
// numerators, then divides out the GCD across all values, yielding a
// positive-integer repetition vector (spec §4.2.6 step 3).
func normalizeRepetitionVector(sg *pgraph.Subgraph, rv map[ids.NodeId]rational) map[ids.NodeId]uint32 {
	var lcmDen int64 = 1
	for _, n := range sg.Nodes {
		if r, ok := rv[n.ID]; ok {
			lcmDen = lcmInt64(lcmDen, r.den)
		}
	}
	ints := map[ids.NodeId]int64{}
	var gcdNum int64
	for _, n := range sg.Nodes {
		r, ok := rv[n.ID]
		if !ok {
			continue
		}
		v := r.num * (lcmDen / r.den)
		ints[n.ID] = v
		if gcdNum == 0 {
			gcdNum = absInt64(v)
		} else {
			gcdNum = gcdInt64(gcdNum, v)
		}
	}
	if gcdNum == 0 {
		gcdNum = 1
	}
	out := make(map[ids.NodeId]uint32, len(ints))
	for id, v := range ints {
		out[id] = uint32(v / gcdNum)
	}
	return out
}

// verifyBalance is spec §4.2.6 step 4: every edge must satisfy
// rv[src]·p = rv[tgt]·c, where c is the edge's equal share of the
// target's total consumption rate.
func (a *analyzer) verifyBalance(task, label string, sg *pgraph.Subgraph, rv map[ids.NodeId]uint32) {
	inDegree := map[ids.NodeId]int{}
	for _, e := range sg.Edges {
		inDegree[e.Tgt]++
	}
	for _, e := range sg.Edges {
		p := a.out.PortRates[e.Src].OutRate
		k := inDegree[e.Tgt]
		if k == 0 {
			k = 1
		}
		c := a.out.PortRates[e.Tgt].InRate / uint32(k)
		if c == 0 {
			c = 1
		}
		produced := uint64(rv[e.Src]) * uint64(p)
		consumed := uint64(rv[e.Tgt]) * uint64(c)
		if produced != consumed {
			rng := e.SrcRange
			a.add(diag.Errorf(diag.CodeBalanceUnsolvable, &rng,
				"SDF balance equation unsolvable",
				"in task %q subgraph %q: rv[src]=%d x rate=%d = %d, but rv[tgt]=%d x rate=%d = %d",
				task, label, rv[e.Src], p, produced, rv[e.Tgt], c, consumed))
		}
	}
}
