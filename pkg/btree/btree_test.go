// ABOUTME: Integration tests for B+Tree operations
// ABOUTME: Tests Insert, Get, Delete against a reference map

package btree

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
)

// TestContext pairs a tree with reference data
type TestContext struct {
	tree *BTree[string]
	ref  map[string]string
}

func newTestContext() *TestContext {
	return &TestContext{
		tree: New[string](),
		ref:  map[string]string{},
	}
}

func (c *TestContext) add(key string, val string) {
	c.tree.Insert([]byte(key), val)
	c.ref[key] = val
}

func (c *TestContext) del(key string) bool {
	delete(c.ref, key)
	return c.tree.Delete([]byte(key))
}

// verify checks content, order and the first-key invariant of internal nodes
func (c *TestContext) verify(t *testing.T) {
	t.Helper()

	if c.tree.Len() != len(c.ref) {
		t.Fatalf("Len() = %d, want %d", c.tree.Len(), len(c.ref))
	}

	keys := make([]string, 0, len(c.ref))
	for k := range c.ref {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var scanned []string
	c.tree.Scan([]byte{0}, func(key []byte, val string) bool {
		if c.ref[string(key)] != val {
			t.Errorf("Key %s: expected %s, got %s", key, c.ref[string(key)], val)
		}
		scanned = append(scanned, string(key))
		return true
	})
	if len(scanned) != len(keys) {
		t.Fatalf("Scan returned %d keys, want %d", len(scanned), len(keys))
	}
	for i := range keys {
		if scanned[i] != keys[i] {
			t.Fatalf("Scan order mismatch at %d: %s != %s", i, scanned[i], keys[i])
		}
	}

	if c.tree.root != nil {
		checkNode(t, c.tree.root)
	}
}

func checkNode(t *testing.T, n *node[string]) {
	t.Helper()
	if n.nkeys() > MaxKeys {
		t.Fatalf("node exceeds capacity: %d keys", n.nkeys())
	}
	if n.leaf {
		return
	}
	for i, kid := range n.kids {
		if string(n.keys[i]) != string(kid.keys[0]) {
			t.Fatalf("internal key %q does not match first kid key %q", n.keys[i], kid.keys[0])
		}
		checkNode(t, kid)
	}
}

func TestBTreeBasicInsertGet(t *testing.T) {
	c := newTestContext()

	c.add("key1", "val1")
	c.add("key2", "val2")
	c.add("key3", "val3")

	val, ok := c.tree.Get([]byte("key2"))
	if !ok {
		t.Fatal("key2 not found")
	}
	if val != "val2" {
		t.Errorf("Expected val2, got %s", val)
	}

	if _, ok := c.tree.Get([]byte("key4")); ok {
		t.Error("Expected key4 to not exist")
	}
	c.verify(t)
}

func TestBTreeUpdate(t *testing.T) {
	c := newTestContext()

	c.add("key1", "val1")
	if c.tree.Insert([]byte("key1"), "val1_updated") {
		t.Error("Insert of existing key must report an update")
	}
	c.ref["key1"] = "val1_updated"

	val, ok := c.tree.Get([]byte("key1"))
	if !ok {
		t.Fatal("key1 not found")
	}
	if val != "val1_updated" {
		t.Errorf("Expected val1_updated, got %s", val)
	}
	c.verify(t)
}

func TestBTreeDelete(t *testing.T) {
	c := newTestContext()

	c.add("key1", "val1")
	c.add("key2", "val2")
	c.add("key3", "val3")

	if !c.del("key2") {
		t.Error("Expected successful delete")
	}
	if _, ok := c.tree.Get([]byte("key2")); ok {
		t.Error("key2 should be deleted")
	}
	if val, ok := c.tree.Get([]byte("key1")); !ok || val != "val1" {
		t.Error("key1 should still exist")
	}
	c.verify(t)
}

func TestBTreeNonExistentDelete(t *testing.T) {
	c := newTestContext()
	c.add("key1", "val1")

	if c.tree.Delete([]byte("key2")) {
		t.Error("Expected delete to fail for non-existent key")
	}
	if c.tree.Delete(nil) {
		t.Error("Expected delete of the sentinel to fail")
	}
	if New[int]().Delete([]byte("x")) {
		t.Error("Expected delete on empty tree to fail")
	}
}

func TestBTree1000Insertions(t *testing.T) {
	c := newTestContext()

	for i := 0; i < 1500; i++ {
		c.add(fmt.Sprintf("key%05d", i), fmt.Sprintf("value%05d", i))
	}
	c.verify(t)

	for i := 0; i < 1500; i++ {
		key := fmt.Sprintf("key%05d", i)
		val, ok := c.tree.Get([]byte(key))
		if !ok {
			t.Errorf("Key %s not found", key)
			continue
		}
		if val != fmt.Sprintf("value%05d", i) {
			t.Errorf("Key %s: got %s", key, val)
		}
	}
}

func TestBTreeInsertDeleteMixed(t *testing.T) {
	c := newTestContext()

	for i := 0; i < 500; i++ {
		c.add(fmt.Sprintf("key%03d", i), fmt.Sprintf("val%03d", i))
	}
	// Delete every other key
	for i := 0; i < 500; i += 2 {
		c.del(fmt.Sprintf("key%03d", i))
	}
	c.verify(t)

	for i := 0; i < 500; i += 2 {
		if _, ok := c.tree.Get([]byte(fmt.Sprintf("key%03d", i))); ok {
			t.Errorf("Key %d should be deleted", i)
		}
	}
}

func TestBTreeRandomized(t *testing.T) {
	c := newTestContext()
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 5000; i++ {
		key := fmt.Sprintf("/pkg%d/elem%d", rng.Intn(40), rng.Intn(60))
		if rng.Intn(3) == 0 {
			c.del(key)
		} else {
			c.add(key, fmt.Sprintf("v%d", i))
		}
	}
	c.verify(t)

	// Drain completely
	for key := range c.ref {
		if !c.del(key) {
			t.Fatalf("Failed to delete %s", key)
		}
	}
	c.verify(t)
	if c.tree.Len() != 0 {
		t.Errorf("Expected empty tree, got %d keys", c.tree.Len())
	}
}

func TestBTreeEmptyKeyRejected(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for empty key")
		}
	}()
	New[int]().Insert(nil, 1)
}
