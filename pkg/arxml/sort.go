// ABOUTME: Canonical ordering of element content
// ABOUTME: Children follow schema order, identifiables of one kind sort by name

package arxml

import (
	"cmp"
	"slices"

	"github.com/nainya/arxmlstore/pkg/spec"
)

// Sort puts the subtree into canonical schema order
func (e Element) Sort() {
	if e.IsValid() {
		e.model.sortSubtree(e.id)
	}
}

func (m *Model) sortKey(parent spec.ElementType, id nodeID) (int, string) {
	n := m.node(id)
	sub, _ := subSpecFor(parent, n.name, n.etype)
	name, _ := m.itemName(id)
	return sub.Index, name
}

func (m *Model) sortSubtree(id nodeID) {
	n := m.node(id)
	if n == nil {
		return
	}
	mode := n.etype.ContentMode()
	if mode != spec.Mixed && mode != spec.Characters && !n.etype.IsOrdered() {
		etype := n.etype
		slices.SortStableFunc(n.content, func(a, b contentItem) int {
			ai, an := m.sortKey(etype, a.child)
			bi, bn := m.sortKey(etype, b.child)
			if c := cmp.Compare(ai, bi); c != 0 {
				return c
			}
			return cmp.Compare(an, bn)
		})
	}
	for _, child := range m.children(id) {
		m.sortSubtree(child)
	}
}
