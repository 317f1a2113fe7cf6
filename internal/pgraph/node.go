// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

// Package pgraph implements spec §4.1: lowering the resolved AST to
// per-task directed dataflow graphs, inlining user-defined subgraphs,
// expanding taps into fork nodes, wiring shared inter-task buffers, and
// detecting feedback cycles.
//
// This phase is single-threaded and purely structural: given a
// well-formed resolved AST it should not fail except for the two
// conditions in spec §4.1.5 (define-inlining depth/recursion, unresolved
// tap reference).
package pgraph

import (
	"github.com/pipit-lang/pipit/internal/diag"
	"github.com/pipit-lang/pipit/internal/ids"
	"github.com/pipit-lang/pipit/internal/thir"
)

// NodeKind tags the union described in spec §3.1.
type NodeKind int

const (
	NodeActor NodeKind = iota
	NodeFork
	NodeProbe
	NodeBufferRead
	NodeBufferWrite
	NodeGatherRead
	NodeScatterWrite
)

// Node is the tagged union over the six node kinds in spec §3.1. Only the
// fields relevant to Kind are populated; the rest are zero.
type Node struct {
	ID   ids.NodeId
	Kind NodeKind

	// NodeActor
	ActorName string
	CallID    ids.CallId
	Args      []thir.Arg
	Shape     thir.ShapeConstraint // explicit call-site shape constraint, if any

	// NodeFork / NodeProbe
	Name string // tap_name or probe_name

	// NodeBufferRead / NodeBufferWrite / NodeGatherRead / NodeScatterWrite
	BufferName string

	// NodeGatherRead / NodeScatterWrite
	ElementCount int

	SrcRange diag.SourceRange
}

// Edge is a directed connection between two nodes, carrying the source span
// of the syntax that created it (spec §3.1).
type Edge struct {
	ID       ids.EdgeId
	Src, Tgt ids.NodeId
	SrcRange diag.SourceRange
}

// Subgraph is the ordered node/edge list for one pipeline body, one modal
// control block, or one mode block. Iteration order is canonical
// declaration order and must be preserved verbatim by every downstream
// phase (spec §3.1 invariant 2).
type Subgraph struct {
	Nodes []Node
	Edges []Edge
}

func (s *Subgraph) addNode(n Node) ids.NodeId {
	s.Nodes = append(s.Nodes, n)
	return n.ID
}

func (s *Subgraph) addEdge(e Edge) ids.EdgeId {
	s.Edges = append(s.Edges, e)
	return e.ID
}

// NodeByID is a linear lookup; small subgraphs don't warrant an index and
// per spec §9 any indices a phase needs are built on demand, never
// persisted across phases.
func (s *Subgraph) NodeByID(id ids.NodeId) (*Node, bool) {
	for i := range s.Nodes {
		if s.Nodes[i].ID == id {
			return &s.Nodes[i], true
		}
	}
	return nil, false
}

// Incoming returns the edges whose target is id, in subgraph edge order.
func (s *Subgraph) Incoming(id ids.NodeId) []Edge {
	var out []Edge
	for _, e := range s.Edges {
		if e.Tgt == id {
			out = append(out, e)
		}
	}
	return out
}

// Outgoing returns the edges whose source is id, in subgraph edge order.
func (s *Subgraph) Outgoing(id ids.NodeId) []Edge {
	var out []Edge
	for _, e := range s.Edges {
		if e.Src == id {
			out = append(out, e)
		}
	}
	return out
}

// TaskGraphKind distinguishes Pipeline from Modal task bodies (spec §3.1).
type TaskGraphKind int

const (
	TaskGraphPipeline TaskGraphKind = iota
	TaskGraphModal
)

// ModeSubgraph pairs a mode name with its lowered subgraph.
type ModeSubgraph struct {
	Name     string
	Subgraph Subgraph
}

// TaskGraph is either a single Pipeline subgraph or a Modal task with a
// control subgraph plus one subgraph per mode (spec §3.1).
type TaskGraph struct {
	Kind TaskGraphKind

	Pipeline Subgraph // valid when Kind == TaskGraphPipeline

	Control Subgraph       // valid when Kind == TaskGraphModal
	Modes   []ModeSubgraph // valid when Kind == TaskGraphModal
	Switch  thir.CtrlSwitch
}

// SubgraphLabel names a subgraph within a task for keying repetition
// vectors and other per-subgraph analysis results (spec §4.2.6):
// "pipeline", "control", or a mode name.
func (t *TaskGraph) Labels() []string {
	switch t.Kind {
	case TaskGraphPipeline:
		return []string{"pipeline"}
	case TaskGraphModal:
		labels := make([]string, 0, len(t.Modes)+1)
		labels = append(labels, "control")
		for _, m := range t.Modes {
			labels = append(labels, m.Name)
		}
		return labels
	default:
		return nil
	}
}

// SubgraphByLabel looks up one of this task's subgraphs by label.
func (t *TaskGraph) SubgraphByLabel(label string) (*Subgraph, bool) {
	switch {
	case t.Kind == TaskGraphPipeline && label == "pipeline":
		return &t.Pipeline, true
	case t.Kind == TaskGraphModal && label == "control":
		return &t.Control, true
	case t.Kind == TaskGraphModal:
		for i := range t.Modes {
			if t.Modes[i].Name == label {
				return &t.Modes[i].Subgraph, true
			}
		}
	}
	return nil, false
}

// InterTaskEdge is a triple (buffer_name, writer, reader) (spec §3.1). One
// buffer may have multiple readers, each contributing a separate
// InterTaskEdge.
type InterTaskEdge struct {
	BufferName string
	WriterTask string
	WriterNode ids.NodeId
	ReaderTask string
	ReaderNode ids.NodeId
}

// Cycle is a cyclic sequence of NodeIds in DFS traversal order (spec §4.1.4).
type Cycle struct {
	Task  string
	Label string
	Nodes []ids.NodeId
}

// ProgramGraph is the output of graph construction (spec §3.1): a mapping
// from task name to TaskGraph, the inter-task edges, and the detected
// feedback cycles.
type ProgramGraph struct {
	Tasks          map[string]*TaskGraph
	TaskOrder      []string // declaration order, since map iteration isn't stable
	InterTaskEdges []InterTaskEdge
	Cycles         []Cycle
}
