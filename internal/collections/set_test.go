// Copyright (c) The Pipit Authors
// SPDX-License-Identifier: MPL-2.0

package collections_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pipit-lang/pipit/internal/collections"
)

func TestSetHasAddDelete(t *testing.T) {
	s := collections.NewSet[int](1, 54, 284)
	assert.True(t, s.Has(54))
	assert.False(t, s.Has(9))

	assert.True(t, s.Add(9))
	assert.True(t, s.Has(9))
	assert.False(t, s.Add(9), "re-adding an existing member reports no change")

	s.Delete(54)
	assert.False(t, s.Has(54))
}

func TestSetString(t *testing.T) {
	s := collections.NewSet[int](3, 1, 2)
	assert.Equal(t, "1, 2, 3", s.String())
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"c": 3, "a": 1, "b": 2}
	assert.Equal(t, []string{"a", "b", "c"}, collections.SortedKeys(m))
}

func TestSortedBy(t *testing.T) {
	s := collections.NewSet[int](5, 1, 3)
	assert.Equal(t, []int{1, 3, 5}, collections.SortedBy(s))
}
