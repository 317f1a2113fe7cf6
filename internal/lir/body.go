// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package lir

import (
	"slices"

	"github.com/pipit-lang/pipit/internal/collections"
	"github.com/pipit-lang/pipit/internal/ids"
	"github.com/pipit-lang/pipit/internal/pgraph"
	"github.com/pipit-lang/pipit/internal/sched"
	"github.com/pipit-lang/pipit/internal/thir"
)

// buildTask is spec §4.3.3: lower one task's scheduled body -- Pipeline or
// Modal -- plus the runtime params it reads and its feedback buffers.
func (b *builder) buildTask(name string) LirTask {
	tg := b.pg.Tasks[name]
	meta := b.scheduled.Tasks[name]

	task := LirTask{
		Name:    name,
		FreqHz:  meta.FreqHz,
		KFactor: meta.KFactor,
	}

	switch tg.Kind {
	case pgraph.TaskGraphPipeline:
		task.Body = LirTaskBody{
			Kind:     LirBodyPipeline,
			Pipeline: b.buildSubgraph(&tg.Pipeline, meta.Schedule.Pipeline),
		}
		task.FeedbackBuffers = b.feedbackBuffers(&tg.Pipeline, meta.Schedule.Pipeline)
	case pgraph.TaskGraphModal:
		body := LirTaskBody{
			Kind:       LirBodyModal,
			Control:    b.buildSubgraph(&tg.Control, meta.Schedule.Control),
			CtrlSource: b.resolveCtrlSource(name, tg),
		}
		var fb []LirFeedbackBuffer
		for i, ms := range tg.Modes {
			modeSched := meta.Schedule.Modes[i].Schedule
			body.Modes = append(body.Modes, LirModeBody{
				Name:     ms.Name,
				Subgraph: b.buildSubgraph(&ms.Subgraph, modeSched),
			})
			reset := b.feedbackBuffers(&ms.Subgraph, modeSched)
			if len(reset) > 0 {
				names := make([]string, len(reset))
				for i, f := range reset {
					names[i] = f.VarName
				}
				body.ModeFeedbackResets = append(body.ModeFeedbackResets, LirModeFeedbackReset{
					Mode:    ms.Name,
					Buffers: names,
				})
				fb = append(fb, reset...)
			}
		}
		fb = append(fb, b.feedbackBuffers(&tg.Control, meta.Schedule.Control)...)
		task.FeedbackBuffers = dedupFeedbackBuffers(fb)
		task.Body = body
	}

	task.UsedParams = b.usedParams(tg)
	return task
}

// buildSubgraph is spec §4.3.4/§4.3.5: edge-buffer declarations plus the
// fusion-planned firing-group emission order, in the schedule's firing
// order.
func (b *builder) buildSubgraph(sg *pgraph.Subgraph, sub sched.SubgraphSchedule) LirSubgraph {
	edgeBufs := b.edgeBuffers(sg, sub)
	storage := map[sched.EdgeKey]string{}
	for _, eb := range edgeBufs {
		v := eb.VarName
		if eb.IsAlias {
			v = eb.AliasOf
		}
		storage[sched.EdgeKey{Src: eb.Src, Tgt: eb.Tgt}] = v
	}

	firings := make([]LirFiring, 0, len(sub.Firings))
	for _, entry := range sub.Firings {
		firings = append(firings, b.buildFiring(sg, sub, storage, entry))
	}

	return LirSubgraph{
		EdgeBuffers: edgeBufs,
		Firings:     planFirings(sg, sub, firings),
	}
}

func (b *builder) buildFiring(sg *pgraph.Subgraph, sub sched.SubgraphSchedule, storage map[sched.EdgeKey]string, entry sched.FiringEntry) LirFiring {
	n, _ := sg.NodeByID(entry.NodeID)
	f := LirFiring{
		NodeID:     entry.NodeID,
		Repetition: entry.RepetitionCount,
		NeedsLoop:  entry.RepetitionCount > 1,
	}

	for _, e := range sg.Incoming(entry.NodeID) {
		f.InEdges = append(f.InEdges, storage[sched.EdgeKey{Src: e.Src, Tgt: e.Tgt}])
		f.PeerSrc = e.Src
	}
	for _, e := range sg.Outgoing(entry.NodeID) {
		f.OutEdges = append(f.OutEdges, storage[sched.EdgeKey{Src: e.Src, Tgt: e.Tgt}])
		f.PeerTgt = e.Tgt
	}

	switch n.Kind {
	case pgraph.NodeActor:
		f.Kind = LirFireActor
		f.Name = n.ActorName
		if meta, ok := b.ctx.ActorMetaForCall(thir.Call{ID: n.CallID, Target: n.ActorName}); ok {
			f.CppName = meta.CppName
			f.Args = b.resolveArgs(*n, meta, sg, sub)
		}
	case pgraph.NodeFork:
		f.Kind = LirFireFork
		f.Name = n.Name
	case pgraph.NodeProbe:
		f.Kind = LirFireProbe
		f.Name = n.Name
	case pgraph.NodeBufferRead, pgraph.NodeGatherRead:
		f.Kind = LirFireBufferRead
		f.BufferName = n.BufferName
	case pgraph.NodeBufferWrite, pgraph.NodeScatterWrite:
		f.Kind = LirFireBufferWrite
		f.BufferName = n.BufferName
	}
	return f
}

// resolveCtrlSource is spec §4.3.3's three-way ctrl source resolution.
func (b *builder) resolveCtrlSource(taskName string, tg *pgraph.TaskGraph) LirCtrlSource {
	sw := tg.Switch
	if sw.Kind == thir.CtrlSwitchParam {
		return LirCtrlSource{Kind: LirCtrlParam, Name: sw.ParamName}
	}

	for _, n := range tg.Control.Nodes {
		if n.Kind == pgraph.NodeBufferWrite && n.BufferName == sw.BufferName {
			if in := tg.Control.Incoming(n.ID); len(in) > 0 {
				e := in[0]
				return LirCtrlSource{
					Kind:    LirCtrlEdgeBuffer,
					VarName: naturalEdgeName(e, false) + "[0]",
				}
			}
		}
	}

	idx := 0
	if decl, ok := b.ctx.Resolved.Buffers[sw.BufferName]; ok {
		readers := append([]string(nil), decl.ReaderTask...)
		slices.Sort(readers)
		idx = slices.Index(readers, taskName)
		if idx < 0 {
			idx = 0
		}
	}
	return LirCtrlSource{Kind: LirCtrlRingBuffer, Name: sw.BufferName, ReaderIdx: idx}
}

// usedParams is every runtime param this task's actor calls reference,
// sorted and deduplicated.
func (b *builder) usedParams(tg *pgraph.TaskGraph) []string {
	seen := map[string]bool{}
	visit := func(sg *pgraph.Subgraph) {
		for _, n := range sg.Nodes {
			if n.Kind != pgraph.NodeActor {
				continue
			}
			for _, arg := range n.Args {
				if arg.Kind == thir.ArgParamRef {
					seen[arg.Name] = true
				}
			}
		}
	}
	switch tg.Kind {
	case pgraph.TaskGraphPipeline:
		visit(&tg.Pipeline)
	case pgraph.TaskGraphModal:
		visit(&tg.Control)
		for i := range tg.Modes {
			visit(&tg.Modes[i].Subgraph)
		}
	}
	return collections.SortedKeys(seen)
}

func dedupFeedbackBuffers(in []LirFeedbackBuffer) []LirFeedbackBuffer {
	seen := map[ids.NodeId]bool{}
	var out []LirFeedbackBuffer
	for _, f := range in {
		if seen[f.Src] {
			continue
		}
		seen[f.Src] = true
		out = append(out, f)
	}
	slices.SortFunc(out, func(x, y LirFeedbackBuffer) int {
		if x.Src != y.Src {
			return int(x.Src) - int(y.Src)
		}
		return int(x.Tgt) - int(y.Tgt)
	})
	return out
}
