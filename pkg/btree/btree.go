// ABOUTME: B+Tree core structure and high-level operations
// ABOUTME: Implements Insert, Get, Delete over in-memory nodes with ordered byte keys

package btree

import (
	"bytes"
)

// BTree is an ordered map from byte keys to values of type V.
// The empty key is reserved as the sentinel of the leftmost leaf.
type BTree[V any] struct {
	root *node[V]
	size int
}

// New creates an empty tree
func New[V any]() *BTree[V] {
	return &BTree[V]{}
}

// Len returns the number of stored keys
func (tree *BTree[V]) Len() int {
	return tree.size
}

// Get retrieves a value by key
func (tree *BTree[V]) Get(key []byte) (V, bool) {
	var zero V
	if tree.root == nil || len(key) == 0 {
		return zero, false
	}
	return treeGet(tree.root, key)
}

// treeGet recursively searches for a key
func treeGet[V any](n *node[V], key []byte) (V, bool) {
	idx := nodeLookupLE(n, key)

	if n.leaf {
		if bytes.Equal(key, n.keys[idx]) {
			return n.vals[idx], true
		}
		var zero V
		return zero, false
	}
	return treeGet(n.kids[idx], key)
}

// Insert inserts or updates a key-value pair.
// Returns true when the key was not present before.
func (tree *BTree[V]) Insert(key []byte, val V) bool {
	if len(key) == 0 {
		panic("btree: empty key is reserved")
	}
	key = bytes.Clone(key)

	if tree.root == nil {
		// Sentinel key (empty) covers the whole key space
		var zero V
		tree.root = &node[V]{
			leaf: true,
			keys: [][]byte{nil, key},
			vals: []V{zero, val},
		}
		tree.size = 1
		return true
	}

	added := treeInsert(tree.root, key, val)
	if added {
		tree.size++
	}

	if split := nodeSplit(tree.root); len(split) > 1 {
		// Root was split, add new level
		root := &node[V]{}
		for _, kid := range split {
			root.keys = append(root.keys, kid.keys[0])
			root.kids = append(root.kids, kid)
		}
		tree.root = root
	}
	return added
}

// treeInsert inserts a KV below n, which may leave n oversized
func treeInsert[V any](n *node[V], key []byte, val V) bool {
	idx := nodeLookupLE(n, key)

	if n.leaf {
		if bytes.Equal(key, n.keys[idx]) {
			leafUpdate(n, idx, val)
			return false
		}
		leafInsert(n, idx+1, key, val)
		return true
	}
	return nodeInsert(n, idx, key, val)
}

// nodeInsert handles insertion into the kid at idx
func nodeInsert[V any](n *node[V], idx int, key []byte, val V) bool {
	kid := n.kids[idx]
	added := treeInsert(kid, key, val)
	nodeReplaceKidN(n, idx, nodeSplit(kid)...)
	return added
}

// Delete deletes a key from the tree
func (tree *BTree[V]) Delete(key []byte) bool {
	if tree.root == nil || len(key) == 0 {
		return false
	}

	if !treeDelete(tree.root, key) {
		return false
	}
	tree.size--

	// Remove a level if root has only 1 child
	for !tree.root.leaf && tree.root.nkeys() == 1 {
		tree.root = tree.root.kids[0]
	}
	return true
}

// treeDelete deletes a key below n
func treeDelete[V any](n *node[V], key []byte) bool {
	idx := nodeLookupLE(n, key)

	if n.leaf {
		if !bytes.Equal(key, n.keys[idx]) {
			return false
		}
		leafDelete(n, idx)
		return true
	}
	return nodeDelete(n, idx, key)
}

// nodeDelete deletes a key from the kid at idx and rebalances
func nodeDelete[V any](n *node[V], idx int, key []byte) bool {
	kid := n.kids[idx]
	if !treeDelete(kid, key) {
		return false
	}

	mergeDir, sibling := shouldMerge(n, idx, kid)
	switch {
	case mergeDir < 0: // merge with left
		nodeMerge(sibling, kid)
		nodeRemoveKid(n, idx)
	case mergeDir > 0: // merge with right
		nodeMerge(kid, sibling)
		nodeRemoveKid(n, idx+1)
		n.keys[idx] = kid.keys[0]
	case kid.nkeys() == 0:
		// Empty child with no sibling to absorb it
		nodeRemoveKid(n, idx)
	default:
		n.keys[idx] = kid.keys[0]
	}
	return true
}
