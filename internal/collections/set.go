// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

// Package collections provides small generic containers shared across every
// phase. Set[T] is grounded on the teacher pack's internal/collections.Set,
// extended with Add/Delete and a cmp.Ordered-constrained sorted-slice view:
// spec §9 treats "deterministic iteration" as a contract, not a nicety, so
// every map-like structure that feeds LIR construction or codegen needs a
// cheap way to produce a stably ordered view of its members (dense id sets
// for cycle-detection coloring, "seen" sets for the shape-inference
// worklist, node/edge maps for firing and buffer emission).
package collections

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Set is a container that holds each item at most once with O(1) lookup.
//
//	var validKeyLengths = collections.NewSet(16, 24, 32)
type Set[T comparable] map[T]struct{}

// NewSet constructs a new set from the given members.
func NewSet[T comparable](members ...T) Set[T] {
	s := make(Set[T], len(members))
	for _, m := range members {
		s[m] = struct{}{}
	}
	return s
}

// Has returns true if value is a member of the set.
func (s Set[T]) Has(value T) bool {
	_, ok := s[value]
	return ok
}

// Add inserts value into the set, returning whether it was newly added.
func (s Set[T]) Add(value T) bool {
	if s.Has(value) {
		return false
	}
	s[value] = struct{}{}
	return true
}

// Delete removes value from the set.
func (s Set[T]) Delete(value T) {
	delete(s, value)
}

func (s Set[T]) String() string {
	parts := make([]string, 0, len(s))
	for v := range s {
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	slices.Sort(parts)
	return strings.Join(parts, ", ")
}

// SortedKeys returns the keys of m in ascending order. Used throughout
// analysis, LIR construction, and codegen to turn a Go map (whose iteration
// order is intentionally randomized) into the stable order the spec
// requires before any textual or hash-sensitive step.
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SortedBy returns the members of s in ascending order.
func SortedBy[T cmp.Ordered](s Set[T]) []T {
	out := make([]T, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}
