// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package analyze

import (
	"github.com/pipit-lang/pipit/internal/pgraph"
)

// precomputePortRates is spec §4.2.5: for every node, in_rate is the
// product of resolved input dims and out_rate the product of resolved
// output dims; GatherRead/ScatterWrite use their element count; everything
// else defaults to 1.
func (a *analyzer) precomputePortRates() {
	a.forEachSubgraph(func(task, label string, sg *pgraph.Subgraph) {
		for _, n := range sg.Nodes {
			a.out.PortRates[n.ID] = a.nodePortRates(n)
		}
	})
}

func (a *analyzer) nodePortRates(n pgraph.Node) NodePortRates {
	switch n.Kind {
	case pgraph.NodeGatherRead, pgraph.NodeScatterWrite:
		c := uint32(n.ElementCount)
		if c == 0 {
			c = 1
		}
		return NodePortRates{InRate: c, OutRate: c}
	case pgraph.NodeActor:
		shapes := a.out.Shapes[n.ID]
		return NodePortRates{
			InRate:  productOfPorts(shapes.In),
			OutRate: productOfPorts(shapes.Out),
		}
	default:
		return NodePortRates{InRate: 1, OutRate: 1}
	}
}

// productOfPorts multiplies every resolved dim across every port; an
// actor with no ports (void in/out) has rate 1, not 0.
func productOfPorts(ports [][]ResolvedDim) uint32 {
	total := uint32(1)
	any := false
	for _, dims := range ports {
		for _, d := range dims {
			if !d.HasValue {
				continue
			}
			any = true
			total *= d.Value
		}
	}
	if !any {
		return 1
	}
	return total
}
