// ABOUTME: B+Tree iterator for range scans
// ABOUTME: Implements SeekLE and Next for forward iteration

package btree

import "bytes"

// BIter represents an iterator over the B+Tree
type BIter[V any] struct {
	tree *BTree[V]
	path []*node[V] // Stack of nodes from root to current leaf
	pos  []int      // Stack of positions at each level
}

// NewIterator creates a new iterator for the tree
func (tree *BTree[V]) NewIterator() *BIter[V] {
	return &BIter[V]{
		tree: tree,
		path: make([]*node[V], 0, 8),
		pos:  make([]int, 0, 8),
	}
}

// SeekLE positions the iterator at the last key <= the given key.
// Returns false if the tree is empty.
func (iter *BIter[V]) SeekLE(key []byte) bool {
	iter.path = iter.path[:0]
	iter.pos = iter.pos[:0]

	if iter.tree.root == nil {
		return false
	}

	// Navigate from root to leaf
	n := iter.tree.root
	for {
		iter.path = append(iter.path, n)
		idx := nodeLookupLE(n, key)
		iter.pos = append(iter.pos, idx)

		if n.leaf {
			break
		}
		n = n.kids[idx]
	}

	return true
}

// Valid returns true if the iterator is positioned at a key
func (iter *BIter[V]) Valid() bool {
	if len(iter.path) == 0 {
		return false
	}

	leaf := iter.path[len(iter.path)-1]
	pos := iter.pos[len(iter.pos)-1]
	return pos < leaf.nkeys()
}

// Key returns the current key
func (iter *BIter[V]) Key() []byte {
	if !iter.Valid() {
		return nil
	}

	leaf := iter.path[len(iter.path)-1]
	return leaf.keys[iter.pos[len(iter.pos)-1]]
}

// Val returns the current value
func (iter *BIter[V]) Val() V {
	if !iter.Valid() {
		var zero V
		return zero
	}

	leaf := iter.path[len(iter.path)-1]
	return leaf.vals[iter.pos[len(iter.pos)-1]]
}

// Next advances the iterator to the next key.
// Returns false if there are no more keys.
func (iter *BIter[V]) Next() bool {
	if len(iter.path) == 0 {
		return false
	}

	// Try to advance within current leaf
	leafIdx := len(iter.pos) - 1
	iter.pos[leafIdx]++
	if iter.pos[leafIdx] < iter.path[leafIdx].nkeys() {
		return true
	}

	// Pop the leaf level and backtrack to a parent with more children
	iter.path = iter.path[:leafIdx]
	iter.pos = iter.pos[:leafIdx]

	for len(iter.pos) > 0 {
		parentIdx := len(iter.pos) - 1
		iter.pos[parentIdx]++

		if iter.pos[parentIdx] < iter.path[parentIdx].nkeys() {
			return iter.descendToLeftmost()
		}

		iter.path = iter.path[:parentIdx]
		iter.pos = iter.pos[:parentIdx]
	}

	return false
}

// descendToLeftmost descends from the current position to the leftmost leaf
func (iter *BIter[V]) descendToLeftmost() bool {
	for {
		parentIdx := len(iter.path) - 1
		child := iter.path[parentIdx].kids[iter.pos[parentIdx]]

		iter.path = append(iter.path, child)
		iter.pos = append(iter.pos, 0)

		if child.leaf {
			return true
		}
	}
}

// Scan executes a range scan from the given start key.
// Calls the callback for each key-value pair until it returns false.
// The sentinel key is never reported.
func (tree *BTree[V]) Scan(start []byte, callback func(key []byte, val V) bool) {
	iter := tree.NewIterator()
	if !iter.SeekLE(start) {
		return
	}

	// If seeked key is less than start, advance to next
	if len(iter.Key()) == 0 || bytes.Compare(iter.Key(), start) < 0 {
		if !iter.Next() {
			return
		}
	}

	for iter.Valid() {
		if !callback(iter.Key(), iter.Val()) {
			return
		}
		if !iter.Next() {
			return
		}
	}
}

// ScanPrefix calls the callback for every key starting with prefix
func (tree *BTree[V]) ScanPrefix(prefix []byte, callback func(key []byte, val V) bool) {
	tree.Scan(prefix, func(key []byte, val V) bool {
		if !bytes.HasPrefix(key, prefix) {
			return false
		}
		return callback(key, val)
	})
}
