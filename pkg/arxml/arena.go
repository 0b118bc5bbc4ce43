// ABOUTME: Node arena backing the element tree
// ABOUTME: Slots are recycled through a free list; generations invalidate stale handles

package arxml

import (
	"github.com/nainya/arxmlstore/pkg/chardata"
	"github.com/nainya/arxmlstore/pkg/pathindex"
	"github.com/nainya/arxmlstore/pkg/spec"
)

// nodeID addresses an arena slot. Slot 0 is never used, so the zero value means "none".
type nodeID struct {
	idx uint32
	gen uint32
}

func (id nodeID) valid() bool {
	return id.idx != 0
}

func (id nodeID) handle() pathindex.Handle {
	return pathindex.Handle(uint64(id.gen)<<32 | uint64(id.idx))
}

func idFromHandle(h pathindex.Handle) nodeID {
	return nodeID{idx: uint32(h), gen: uint32(h >> 32)}
}

// contentItem is either a child element or a run of character data
type contentItem struct {
	child  nodeID
	text   chardata.CharacterData
	isText bool
}

type attribute struct {
	name  string
	value chardata.CharacterData
}

type node struct {
	gen     uint32
	live    bool
	name    string
	etype   spec.ElementType
	parent  nodeID
	content []contentItem
	attrs   []attribute // schema declaration order
	files   []*File     // nil inherits the parent's membership
	comment *string
}

// freeChunkCap is the number of slots per free list chunk
const freeChunkCap = 128

type freeChunk struct {
	next  *freeChunk
	slots [freeChunkCap]uint32
}

// freeList is an unrolled linked list of recyclable slots.
// Items are pushed at the tail and popped at the head.
type freeList struct {
	head    *freeChunk
	tail    *freeChunk
	headSeq uint64
	tailSeq uint64
	spare   *freeChunk
}

// Total returns the number of items in the free list
func (fl *freeList) Total() int {
	return int(fl.tailSeq - fl.headSeq)
}

// PushTail adds a slot to the tail of the list
func (fl *freeList) PushTail(slot uint32) {
	idx := fl.tailSeq % freeChunkCap
	if fl.tail == nil || idx == 0 {
		chunk := fl.spare
		fl.spare = nil
		if chunk == nil {
			chunk = &freeChunk{}
		}
		chunk.next = nil
		if fl.tail == nil {
			fl.head = chunk
		} else {
			fl.tail.next = chunk
		}
		fl.tail = chunk
	}
	fl.tail.slots[idx] = slot
	fl.tailSeq++
}

// PopHead removes and returns a slot from the head of the list
func (fl *freeList) PopHead() (uint32, bool) {
	if fl.headSeq >= fl.tailSeq {
		return 0, false
	}
	slot := fl.head.slots[fl.headSeq%freeChunkCap]
	fl.headSeq++

	// Move to the next chunk once the current one is exhausted
	if fl.headSeq%freeChunkCap == 0 || fl.headSeq == fl.tailSeq {
		if fl.headSeq == fl.tailSeq {
			// empty: keep one chunk around for reuse
			fl.spare = fl.head
			fl.head, fl.tail = nil, nil
		} else {
			old := fl.head
			fl.head = old.next
			old.next = nil
			fl.spare = old
		}
	}
	return slot, true
}

// alloc returns a fresh node slot
func (m *Model) alloc(name string, etype spec.ElementType, parent nodeID) nodeID {
	if slot, ok := m.free.PopHead(); ok {
		n := &m.nodes[slot]
		gen := n.gen
		*n = node{gen: gen, live: true, name: name, etype: etype, parent: parent}
		return nodeID{idx: slot, gen: gen}
	}
	m.nodes = append(m.nodes, node{gen: 1, live: true, name: name, etype: etype, parent: parent})
	return nodeID{idx: uint32(len(m.nodes) - 1), gen: 1}
}

// release frees the slot of id and every slot below it
func (m *Model) release(id nodeID) {
	n := m.node(id)
	if n == nil {
		return
	}
	for _, item := range n.content {
		if !item.isText {
			m.release(item.child)
		}
	}
	gen := n.gen + 1
	if gen == 0 {
		gen = 1
	}
	*n = node{gen: gen}
	m.free.PushTail(id.idx)
}

// node resolves id, returning nil for stale or empty handles
func (m *Model) node(id nodeID) *node {
	if m == nil || !id.valid() || int(id.idx) >= len(m.nodes) {
		return nil
	}
	n := &m.nodes[id.idx]
	if !n.live || n.gen != id.gen {
		return nil
	}
	return n
}

// children returns the element children of id in content order
func (m *Model) children(id nodeID) []nodeID {
	n := m.node(id)
	if n == nil {
		return nil
	}
	out := make([]nodeID, 0, len(n.content))
	for _, item := range n.content {
		if !item.isText {
			out = append(out, item.child)
		}
	}
	return out
}

// contentPos returns the position of child within the content of parent
func (m *Model) contentPos(parent, child nodeID) int {
	n := m.node(parent)
	if n == nil {
		return -1
	}
	for i, item := range n.content {
		if !item.isText && item.child == child {
			return i
		}
	}
	return -1
}
