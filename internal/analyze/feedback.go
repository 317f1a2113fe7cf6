// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package analyze

import (
	"strings"

	"github.com/pipit-lang/pipit/internal/diag"
	"github.com/pipit-lang/pipit/internal/pgraph"
)

// verifyFeedbackDelays is spec §4.2.7: every detected cycle must contain at
// least one Actor node named "delay"; otherwise it is an unbuffered
// feedback loop and a fatal error.
func (a *analyzer) verifyFeedbackDelays() {
	for _, cyc := range a.pg.Cycles {
		tg, ok := a.pg.Tasks[cyc.Task]
		if !ok {
			continue
		}
		sg, ok := tg.SubgraphByLabel(cyc.Label)
		if !ok {
			continue
		}
		if cycleHasDelay(sg, cyc) {
			continue
		}
		var rng *diag.SourceRange
		if len(cyc.Nodes) > 0 {
			if n, ok := sg.NodeByID(cyc.Nodes[0]); ok {
				r := n.SrcRange
				rng = &r
			}
		}
		a.add(diag.Errorf(diag.CodeCycleNoDelay, rng,
			"feedback cycle without a delay",
			"%s", cycleWithoutDelayDetail(cyc)))
	}
}

func cycleHasDelay(sg *pgraph.Subgraph, cyc pgraph.Cycle) bool {
	for _, id := range cyc.Nodes {
		n, ok := sg.NodeByID(id)
		if ok && n.Kind == pgraph.NodeActor && n.ActorName == "delay" {
			return true
		}
	}
	return false
}

func cycleWithoutDelayDetail(cyc pgraph.Cycle) string {
	names := make([]string, len(cyc.Nodes))
	for i, id := range cyc.Nodes {
		names[i] = id.String()
	}
	return "task \"" + cyc.Task + "\" subgraph \"" + cyc.Label +
		"\" has a feedback cycle with no \"delay\" actor: " + strings.Join(names, " -> ")
}
