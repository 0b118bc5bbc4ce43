// ABOUTME: B+Tree node structure and manipulation functions
// ABOUTME: Leaf nodes hold values, internal nodes hold children keyed by their first key

package btree

import (
	"bytes"
	"sort"
)

const (
	MaxKeys = 32          // a node holding more keys is split
	minFill = MaxKeys / 4 // below this a node tries to merge with a sibling
)

// node is either a leaf (keys+vals) or internal (keys+kids).
// For internal nodes keys[i] is the first key of kids[i].
type node[V any] struct {
	leaf bool
	keys [][]byte
	vals []V
	kids []*node[V]
}

func (n *node[V]) nkeys() int {
	return len(n.keys)
}

// nodeLookupLE returns the last position whose key is <= key.
// The first key of a node is always <= any searched key because the
// leftmost leaf carries the empty sentinel key.
func nodeLookupLE[V any](n *node[V], key []byte) int {
	idx := sort.Search(len(n.keys), func(i int) bool {
		return bytes.Compare(n.keys[i], key) > 0
	})
	if idx == 0 {
		return 0
	}
	return idx - 1
}

// leafInsert adds a new key at position idx
func leafInsert[V any](n *node[V], idx int, key []byte, val V) {
	n.keys = append(n.keys, nil)
	copy(n.keys[idx+1:], n.keys[idx:])
	n.keys[idx] = key

	var zero V
	n.vals = append(n.vals, zero)
	copy(n.vals[idx+1:], n.vals[idx:])
	n.vals[idx] = val
}

// leafUpdate replaces the value at position idx
func leafUpdate[V any](n *node[V], idx int, val V) {
	n.vals[idx] = val
}

// leafDelete removes the key at position idx
func leafDelete[V any](n *node[V], idx int) {
	n.keys = append(n.keys[:idx], n.keys[idx+1:]...)
	n.vals = append(n.vals[:idx], n.vals[idx+1:]...)
}

// nodeReplaceKidN replaces the link at idx with one or more links
func nodeReplaceKidN[V any](n *node[V], idx int, kids ...*node[V]) {
	keys := make([][]byte, 0, len(n.keys)+len(kids)-1)
	links := make([]*node[V], 0, len(n.kids)+len(kids)-1)

	keys = append(keys, n.keys[:idx]...)
	links = append(links, n.kids[:idx]...)
	for _, kid := range kids {
		keys = append(keys, kid.keys[0])
		links = append(links, kid)
	}
	keys = append(keys, n.keys[idx+1:]...)
	links = append(links, n.kids[idx+1:]...)

	n.keys = keys
	n.kids = links
}

// nodeRemoveKid drops the link at idx
func nodeRemoveKid[V any](n *node[V], idx int) {
	n.keys = append(n.keys[:idx], n.keys[idx+1:]...)
	n.kids = append(n.kids[:idx], n.kids[idx+1:]...)
}

// nodeSplit splits an oversized node into two halves.
// A node within capacity is returned unchanged.
func nodeSplit[V any](old *node[V]) []*node[V] {
	if old.nkeys() <= MaxKeys {
		return []*node[V]{old}
	}

	nleft := old.nkeys() / 2
	right := &node[V]{leaf: old.leaf}
	right.keys = append(right.keys, old.keys[nleft:]...)
	if old.leaf {
		right.vals = append(right.vals, old.vals[nleft:]...)
		old.vals = old.vals[:nleft:nleft]
	} else {
		right.kids = append(right.kids, old.kids[nleft:]...)
		old.kids = old.kids[:nleft:nleft]
	}
	old.keys = old.keys[:nleft:nleft]

	return []*node[V]{old, right}
}

// shouldMerge checks whether updated should be folded into a sibling.
// Returns -1 for the left sibling, +1 for the right one, 0 for no merge.
func shouldMerge[V any](n *node[V], idx int, updated *node[V]) (int, *node[V]) {
	if updated.nkeys() > minFill {
		return 0, nil
	}

	if idx > 0 {
		sibling := n.kids[idx-1]
		if sibling.nkeys()+updated.nkeys() <= MaxKeys {
			return -1, sibling
		}
	}

	if idx+1 < n.nkeys() {
		sibling := n.kids[idx+1]
		if sibling.nkeys()+updated.nkeys() <= MaxKeys {
			return +1, sibling
		}
	}

	return 0, nil
}

// nodeMerge appends the content of right to left
func nodeMerge[V any](left *node[V], right *node[V]) {
	left.keys = append(left.keys, right.keys...)
	if left.leaf {
		left.vals = append(left.vals, right.vals...)
	} else {
		left.kids = append(left.kids, right.kids...)
	}
}
