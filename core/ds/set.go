// Package ds provides small generic data structures.
package ds

import (
	"cmp"
	"fmt"
	"slices"
)

// Set is an ordered set: O(1) membership with insertion order preserved, so
// iteration is deterministic.
type Set[T comparable] struct {
	items map[T]struct{}
	order []T
}

func (s *Set[T]) String() string {
	return fmt.Sprintf("%v", s.order)
}

// Add adds v and reports whether it was new. (mutates)
func (s *Set[T]) Add(v T) bool {
	if s.Contains(v) {
		return false
	}
	s.items[v] = struct{}{}
	s.order = append(s.order, v)
	return true
}

func (s *Set[T]) Contains(v T) bool {
	_, ok := s.items[v]
	return ok
}

func (s *Set[T]) Len() int      { return len(s.order) }
func (s *Set[T]) IsEmpty() bool { return len(s.order) == 0 }

// ForEach calls fn for every element in insertion order.
func (s *Set[T]) ForEach(fn func(T)) {
	for _, v := range s.order {
		fn(v)
	}
}

// Values returns a copy of the elements in insertion order.
func (s *Set[T]) Values() []T {
	return slices.Clone(s.order)
}

// Clear removes all elements. (mutates)
func (s *Set[T]) Clear() {
	clear(s.items)
	s.order = s.order[:0]
}

// Sorted returns the elements of s in ascending order.
func Sorted[T cmp.Ordered](s *Set[T]) []T {
	out := s.Values()
	slices.Sort(out)
	return out
}

// NewSet creates a new set with the given items.
func NewSet[T comparable](items ...T) *Set[T] {
	set := &Set[T]{items: make(map[T]struct{}, len(items)), order: make([]T, 0, len(items))}
	for _, item := range items {
		set.Add(item)
	}
	return set
}
