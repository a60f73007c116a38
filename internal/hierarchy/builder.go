// Package hierarchy rebuilds tree-shaped views from flat, self-referencing
// rows. Children are pre-indexed by parent id, so building is linear in the
// number of nodes, and a visited count converts parent-pointer cycles into a
// detectable error instead of unbounded recursion.
package hierarchy

import "errors"

// ErrCycle is returned when the input contains nodes unreachable from any
// root, which can only happen when parent pointers loop.
var ErrCycle = errors.New("hierarchy contains a cycle")

// Tree is one node of the rebuilt forest
type Tree[T any] struct {
	Value    T
	Children []*Tree[T]
}

// Forest builds trees from rows already filtered to one tenant/project.
// Roots are nodes with a nil parent pointer; nodes whose parent is absent
// from the input set are also treated as roots so no row silently vanishes.
// Sibling order follows input order.
func Forest[T any](items []T, id func(T) uint, parentID func(T) *uint) ([]*Tree[T], error) {
	present := make(map[uint]bool, len(items))
	for _, it := range items {
		present[id(it)] = true
	}

	children := make(map[uint][]int)
	var rootIdx []int
	for i, it := range items {
		p := parentID(it)
		if p == nil || !present[*p] {
			rootIdx = append(rootIdx, i)
			continue
		}
		children[*p] = append(children[*p], i)
	}

	visited := 0
	var build func(idx int) *Tree[T]
	build = func(idx int) *Tree[T] {
		visited++
		node := &Tree[T]{Value: items[idx]}
		for _, ci := range children[id(items[idx])] {
			node.Children = append(node.Children, build(ci))
		}
		return node
	}

	var roots []*Tree[T]
	for _, i := range rootIdx {
		roots = append(roots, build(i))
	}
	if visited != len(items) {
		return nil, ErrCycle
	}
	return roots, nil
}

// Flatten returns the pre-order traversal of a forest
func Flatten[T any](forest []*Tree[T]) []T {
	var out []T
	var walk func(nodes []*Tree[T])
	walk = func(nodes []*Tree[T]) {
		for _, n := range nodes {
			out = append(out, n.Value)
			walk(n.Children)
		}
	}
	walk(forest)
	return out
}
