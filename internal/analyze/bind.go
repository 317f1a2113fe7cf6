// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package analyze

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/pipit-lang/pipit/internal/collections"
	"github.com/pipit-lang/pipit/internal/diag"
	"github.com/pipit-lang/pipit/internal/ids"
	"github.com/pipit-lang/pipit/internal/pgraph"
	"github.com/pipit-lang/pipit/internal/thir"
)

// bindSite is one BufferWrite/BufferRead node matching a bind name,
// together with the task/subgraph it was found in and the adjacent actor
// node supplying (Out) or consuming (In) the bound value.
type bindSite struct {
	task, label string
	sg          *pgraph.Subgraph
	node        pgraph.Node
	actor       *pgraph.Node
}

// inferBindContracts is spec §4.2.10: for each declared external bind,
// determine its direction from which side references it, derive dtype /
// shape / rate from the adjacent actor(s), and compute its stable_id.
func (a *analyzer) inferBindContracts() {
	for _, name := range collections.SortedKeys(a.ctx.Resolved.Binds) {
		decl := a.ctx.Resolved.Binds[name]
		writers, readers := a.findBindSites(name)

		switch {
		case len(writers) > 0:
			a.inferOutBind(name, decl, writers)
		case len(readers) > 0:
			a.inferInBind(name, decl, readers)
		default:
			a.add(diag.Errorf(diag.CodeBindUnreferenced, &decl.SrcRange,
				"unreferenced bind",
				"bind %q is declared but never written or read by any task", name))
		}
	}
}

func (a *analyzer) findBindSites(name string) (writers, readers []bindSite) {
	a.forEachSubgraph(func(task, label string, sg *pgraph.Subgraph) {
		for _, n := range sg.Nodes {
			switch n.Kind {
			case pgraph.NodeBufferWrite:
				if n.BufferName != name {
					continue
				}
				site := bindSite{task: task, label: label, sg: sg, node: n}
				if in := sg.Incoming(n.ID); len(in) > 0 {
					if actor, ok := sg.NodeByID(in[0].Src); ok {
						site.actor = actor
					}
				}
				writers = append(writers, site)
			case pgraph.NodeBufferRead:
				if n.BufferName != name {
					continue
				}
				site := bindSite{task: task, label: label, sg: sg, node: n}
				if out := sg.Outgoing(n.ID); len(out) > 0 {
					if actor, ok := sg.NodeByID(out[0].Tgt); ok {
						site.actor = actor
					}
				}
				readers = append(readers, site)
			}
		}
	})
	return writers, readers
}

// inferOutBind handles the Out direction (spec step 2): dtype from the
// writer actor's output type, shape from its resolved output dims, rate
// from rv[write_node] x writer_freq. Spec guarantees a single writer.
func (a *analyzer) inferOutBind(name string, decl thir.BindDecl, writers []bindSite) {
	w := writers[0]
	var dtype thir.WireType
	var shape []uint32
	if w.actor != nil {
		memo := map[ids.NodeId]thir.WireType{}
		dtype = a.outType(w.sg, w.node.ID, memo)
		shape = a.lastPortShape(w.actor.ID, true)
	}
	rv := a.out.RepetitionVectors[SubgraphKey{Task: w.task, Label: w.label}]
	freq := a.taskFreq(w.task)
	rate := float64(rv[w.node.ID]) * freq

	callIDs := []string{w.actorCallID()}
	stableID := computeStableID(BindOut, callIDs, decl.Transport)

	a.out.Binds[name] = BindContract{
		Direction: BindOut,
		DType:     dtype,
		Shape:     shape,
		RateHz:    rate,
		StableID:  stableID,
	}
}

// inferInBind handles the In direction (spec step 3): every reader site
// must agree on type/shape/rate; disagreement is E0312.
func (a *analyzer) inferInBind(name string, decl thir.BindDecl, readers []bindSite) {
	var first *BindContract
	var callIDs []string
	for _, r := range readers {
		var dtype thir.WireType
		var shape []uint32
		if r.actor != nil {
			memo := map[ids.NodeId]thir.WireType{}
			dtype = a.inType(r.sg, r.actor.ID, memo)
			shape = a.lastPortShape(r.actor.ID, false)
			callIDs = append(callIDs, r.actor.CallID.String())
		}
		rv := a.out.RepetitionVectors[SubgraphKey{Task: r.task, Label: r.label}]
		freq := a.taskFreq(r.task)
		rate := float64(rv[r.node.ID]) * freq

		cur := BindContract{Direction: BindIn, DType: dtype, Shape: shape, RateHz: rate}
		if first == nil {
			first = &cur
			continue
		}
		if cur.DType != first.DType || !shapesEqual(cur.Shape, first.Shape) || !ratesEqual(cur.RateHz, first.RateHz) {
			rng := r.node.SrcRange
			a.add(diag.Errorf(diag.CodeBindDivergent, &rng,
				"bind readers disagree",
				"bind %q: reader in task %q resolves to type %q shape %v rate %.6f, but an earlier reader resolved to type %q shape %v rate %.6f",
				name, r.task, cur.DType, cur.Shape, cur.RateHz, first.DType, first.Shape, first.RateHz))
		}
	}
	if first == nil {
		first = &BindContract{Direction: BindIn}
	}

	sort.Strings(callIDs)
	first.Direction = BindIn
	first.StableID = computeStableID(BindIn, callIDs, decl.Transport)
	a.out.Binds[name] = *first
}

func (s *bindSite) actorCallID() string {
	if s.actor == nil {
		return ""
	}
	return s.actor.CallID.String()
}

// lastPortShape reads the resolved dims of a node's last output (out=true)
// or first input (out=false) port, the same port convention
// propagateOneEdge uses for cross-edge inference.
func (a *analyzer) lastPortShape(id ids.NodeId, out bool) []uint32 {
	shapes, ok := a.out.Shapes[id]
	if !ok {
		return nil
	}
	var dims []ResolvedDim
	if out {
		if len(shapes.Out) == 0 {
			return nil
		}
		dims = shapes.Out[len(shapes.Out)-1]
	} else {
		if len(shapes.In) == 0 {
			return nil
		}
		dims = shapes.In[0]
	}
	vals := make([]uint32, len(dims))
	for i, d := range dims {
		vals[i] = d.Value
	}
	return vals
}

func shapesEqual(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func ratesEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < rateEpsilon
}

// computeStableID is spec §4.2.10 step 4: SHA-256 over
// "direction\0callIDs joined by \0\0transport", truncated to the first 8
// bytes (16 hex chars). callIDs must already be sorted for In binds; Out
// binds carry exactly one.
func computeStableID(dir BindDirection, callIDs []string, transport string) string {
	h := sha256.New()
	h.Write([]byte(dir.String()))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(callIDs, "\x00")))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(transport))))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:8])
}
