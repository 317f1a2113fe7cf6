// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package lir

import (
	"github.com/pipit-lang/pipit/internal/pgraph"
	"github.com/pipit-lang/pipit/internal/sched"
	"github.com/pipit-lang/pipit/internal/thir"
)

// planFirings is spec §4.3.5: collapse runs of fusion-eligible actors
// (plus any Fork/Probe passing the repetition through transparently) into
// one LirFusedChain sharing a single `for (i = 0; i < r; ++i)` loop, with
// every actor in the chain hoisted before the loop since a no-tap-ref
// argument list is loop-invariant by construction.
func planFirings(sg *pgraph.Subgraph, sub sched.SubgraphSchedule, firings []LirFiring) []LirFiringGroup {
	var out []LirFiringGroup
	for i := 0; i < len(firings); {
		f := firings[i]
		if f.Kind == LirFireActor && f.Repetition > 1 && fusionEligible(sg, sub, f) {
			r := f.Repetition
			chain := []LirFiring{f}
			j := i + 1
			for j < len(firings) {
				g := firings[j]
				if g.Kind == LirFireFork || g.Kind == LirFireProbe {
					chain = append(chain, g)
					j++
					continue
				}
				if g.Kind == LirFireActor && g.Repetition == r && fusionEligible(sg, sub, g) {
					chain = append(chain, g)
					j++
					continue
				}
				break
			}
			if len(chain) > 1 {
				var hoisted []LirFiring
				for _, m := range chain {
					if m.Kind == LirFireActor {
						hoisted = append(hoisted, m)
					}
				}
				out = append(out, LirFiringGroup{
					Kind: LirGroupFused,
					Fused: LirFusedChain{
						Repetition:    r,
						HoistedActors: hoisted,
						Body:          chain,
					},
				})
				i = j
				continue
			}
		}
		out = append(out, LirFiringGroup{Kind: LirGroupSingle, Single: f})
		i++
	}
	return out
}

// fusionEligible is spec §4.3.5: no tap-ref argument, at most one incoming
// edge, exactly one outgoing edge, and not touched by any back edge.
func fusionEligible(sg *pgraph.Subgraph, sub sched.SubgraphSchedule, f LirFiring) bool {
	if len(f.InEdges) > 1 || len(f.OutEdges) != 1 {
		return false
	}
	for key := range sub.BackEdges {
		if key.Src == f.NodeID || key.Tgt == f.NodeID {
			return false
		}
	}
	n, ok := sg.NodeByID(f.NodeID)
	if !ok {
		return false
	}
	for _, arg := range n.Args {
		if arg.Kind == thir.ArgTapRef {
			return false
		}
	}
	return true
}
