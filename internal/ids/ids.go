// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

// Package ids defines the dense integer identifier types used across every
// phase of the compiler. NodeId and EdgeId are unique within a whole program,
// not merely within one subgraph, so that downstream phases can key maps by
// id without carrying subgraph context alongside them.
package ids

import "fmt"

// NodeId identifies a single graph node, unique across the entire program.
type NodeId uint32

func (id NodeId) String() string { return fmt.Sprintf("n%d", uint32(id)) }

// EdgeId identifies a single graph edge, unique across the entire program.
type EdgeId uint32

func (id EdgeId) String() string { return fmt.Sprintf("e%d", uint32(id)) }

// CallId identifies one syntactic call site in the source program. The
// front end assigns these; the core treats them as opaque keys into the
// monomorphization table (TypedProgram).
type CallId uint32

func (id CallId) String() string { return fmt.Sprintf("call%d", uint32(id)) }

// DefId identifies one `define` declaration in the source program.
type DefId uint32

func (id DefId) String() string { return fmt.Sprintf("def%d", uint32(id)) }

// TaskId identifies one task declaration.
type TaskId uint32

func (id TaskId) String() string { return fmt.Sprintf("task%d", uint32(id)) }

// Allocator hands out densely increasing ids of a single kind, starting at
// zero. It is not safe for concurrent use: graph construction is
// single-threaded (see package pgraph doc).
type Allocator[T ~uint32] struct {
	next T
}

// New returns the next id in the sequence.
func (a *Allocator[T]) New() T {
	id := a.next
	a.next++
	return id
}

// Len reports how many ids have been allocated so far.
func (a *Allocator[T]) Len() int {
	return int(a.next)
}

// IdAllocator is the per-program allocator bundle handed to graph
// construction: one counter per id kind, so that NodeId and EdgeId stay
// dense and globally unique across every task's subgraph.
type IdAllocator struct {
	Nodes Allocator[NodeId]
	Edges Allocator[EdgeId]
	Calls Allocator[CallId]
	Defs  Allocator[DefId]
	Tasks Allocator[TaskId]
}
