// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package sched

import (
	"github.com/pipit-lang/pipit/internal/analyze"
	"github.com/pipit-lang/pipit/internal/ids"
	"github.com/pipit-lang/pipit/internal/pgraph"
	"github.com/pipit-lang/pipit/internal/thir"
)

// Scheduler turns an AnalyzedProgram into a ScheduledProgram. §1 treats the
// concrete policy as external; Reference below is the package's own
// default implementation.
type Scheduler interface {
	Schedule(ctx *thir.ThirContext, pg *pgraph.ProgramGraph, an *analyze.AnalyzedProgram) (*ScheduledProgram, error)
}

// kFactorTickCeilingHz is the reference heuristic's target upper bound on
// raw timer-tick frequency; a task clocked faster than this amortizes
// several logical iterations per tick via its K-factor.
const kFactorTickCeilingHz = 1000.0

// Reference is the default Scheduler: a topological firing order per
// subgraph (back edges excluded, so a cycle's delay actor breaks the
// ordering dependency the same way it breaks the feedback loop at
// runtime), per-edge token counts derived from the repetition vector, and
// a simple K-factor chosen to keep each task's raw tick rate under
// kFactorTickCeilingHz.
type Reference struct{}

func (Reference) Schedule(ctx *thir.ThirContext, pg *pgraph.ProgramGraph, an *analyze.AnalyzedProgram) (*ScheduledProgram, error) {
	out := &ScheduledProgram{Tasks: map[string]TaskMeta{}, TaskOrder: append([]string(nil), pg.TaskOrder...)}

	for _, taskName := range pg.TaskOrder {
		tg := pg.Tasks[taskName]
		task := findTask(ctx, taskName)
		freq := task.FreqHz

		meta := TaskMeta{FreqHz: freq, KFactor: kFactorFor(freq)}

		switch tg.Kind {
		case pgraph.TaskGraphPipeline:
			meta.Schedule = TaskSchedule{
				Kind:     TaskSchedulePipeline,
				Pipeline: scheduleSubgraph(an, pg, taskName, "pipeline", &tg.Pipeline),
			}
		case pgraph.TaskGraphModal:
			modes := make([]ModeSchedule, len(tg.Modes))
			for i, m := range tg.Modes {
				modes[i] = ModeSchedule{Name: m.Name, Schedule: scheduleSubgraph(an, pg, taskName, m.Name, &m.Subgraph)}
			}
			meta.Schedule = TaskSchedule{
				Kind:    TaskScheduleModal,
				Control: scheduleSubgraph(an, pg, taskName, "control", &tg.Control),
				Modes:   modes,
			}
		}

		out.Tasks[taskName] = meta
	}

	return out, nil
}

func findTask(ctx *thir.ThirContext, name string) thir.TaskDecl {
	for _, t := range ctx.Resolved.Tasks {
		if t.Name == name {
			return t
		}
	}
	return thir.TaskDecl{}
}

func kFactorFor(freqHz float64) uint32 {
	if freqHz <= kFactorTickCeilingHz || freqHz <= 0 {
		return 1
	}
	k := uint32(freqHz / kFactorTickCeilingHz)
	if k < 1 {
		k = 1
	}
	return k
}

// scheduleSubgraph computes the back-edge set from cycle analysis, a
// topological firing order over the remaining (acyclic) edges, and
// per-edge token counts.
func scheduleSubgraph(an *analyze.AnalyzedProgram, pg *pgraph.ProgramGraph, task, label string, sg *pgraph.Subgraph) SubgraphSchedule {
	back := backEdges(pg, task, label)
	rv := an.RepetitionVectors[analyze.SubgraphKey{Task: task, Label: label}]

	order := topoOrder(sg, back)
	firings := make([]FiringEntry, len(order))
	for i, id := range order {
		firings[i] = FiringEntry{NodeID: id, RepetitionCount: rv[id]}
	}

	tokens := map[EdgeKey]uint32{}
	for _, e := range sg.Edges {
		tokens[EdgeKey{Src: e.Src, Tgt: e.Tgt}] = rv[e.Src] * an.PortRates[e.Src].OutRate
	}

	return SubgraphSchedule{Firings: firings, EdgeTokens: tokens, BackEdges: back}
}

// backEdges derives the feedback-edge set from pg.Cycles: the edge that
// closes a cycle runs from the last node in its recorded path back to the
// first (cycles.go appends the path from the gray ancestor to the current
// node, and the back edge is current -> ancestor).
func backEdges(pg *pgraph.ProgramGraph, task, label string) map[EdgeKey]bool {
	out := map[EdgeKey]bool{}
	for _, cyc := range pg.Cycles {
		if cyc.Task != task || cyc.Label != label || len(cyc.Nodes) == 0 {
			continue
		}
		out[EdgeKey{Src: cyc.Nodes[len(cyc.Nodes)-1], Tgt: cyc.Nodes[0]}] = true
	}
	return out
}

// topoOrder is a deterministic Kahn's-algorithm topological sort: ties
// break by declaration order (the order nodes appear in sg.Nodes), since
// every downstream phase depends on stable iteration (spec §9).
func topoOrder(sg *pgraph.Subgraph, back map[EdgeKey]bool) []ids.NodeId {
	indeg := map[ids.NodeId]int{}
	for _, n := range sg.Nodes {
		indeg[n.ID] = 0
	}
	adj := map[ids.NodeId][]ids.NodeId{}
	for _, e := range sg.Edges {
		if back[EdgeKey{Src: e.Src, Tgt: e.Tgt}] {
			continue
		}
		adj[e.Src] = append(adj[e.Src], e.Tgt)
		indeg[e.Tgt]++
	}

	var ready []ids.NodeId
	for _, n := range sg.Nodes {
		if indeg[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}

	var out []ids.NodeId
	visited := map[ids.NodeId]bool{}
	for len(out) < len(sg.Nodes) {
		if len(ready) == 0 {
			// A cycle slipped through (shouldn't happen once back edges are
			// excluded); fall back to remaining nodes in declaration order
			// rather than stalling, so later phases still get something.
			for _, n := range sg.Nodes {
				if !visited[n.ID] {
					ready = append(ready, n.ID)
				}
			}
			if len(ready) == 0 {
				break
			}
		}
		next := ready[0]
		ready = ready[1:]
		if visited[next] {
			continue
		}
		visited[next] = true
		out = append(out, next)

		for _, dst := range adj[next] {
			indeg[dst]--
			if indeg[dst] == 0 {
				ready = append(ready, dst)
			}
		}
		// Keep the ready queue in declaration order among newly-freed nodes
		// so output is deterministic regardless of map iteration.
		ready = reorderByDeclaration(sg, ready)
	}

	return out
}

func reorderByDeclaration(sg *pgraph.Subgraph, nodes []ids.NodeId) []ids.NodeId {
	pos := make(map[ids.NodeId]int, len(sg.Nodes))
	for i, n := range sg.Nodes {
		pos[n.ID] = i
	}
	out := append([]ids.NodeId(nil), nodes...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && pos[out[j]] < pos[out[j-1]]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
