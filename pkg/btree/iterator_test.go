// ABOUTME: Tests for B+Tree iterator and range scans
// ABOUTME: Verifies SeekLE, Next, Scan and ScanPrefix operations

package btree

import (
	"fmt"
	"testing"
)

func TestIteratorEmpty(t *testing.T) {
	c := newTestContext()
	iter := c.tree.NewIterator()

	if iter.SeekLE([]byte("key1")) {
		t.Error("Expected SeekLE to fail on empty tree")
	}
	if iter.Valid() {
		t.Error("Iterator should not be valid on empty tree")
	}
}

func TestIteratorSeekLE(t *testing.T) {
	c := newTestContext()
	c.add("key1", "val1")
	c.add("key3", "val3")
	c.add("key5", "val5")

	iter := c.tree.NewIterator()

	if !iter.SeekLE([]byte("key3")) {
		t.Fatal("SeekLE failed")
	}
	if string(iter.Key()) != "key3" || iter.Val() != "val3" {
		t.Errorf("Expected key3/val3, got %s/%s", iter.Key(), iter.Val())
	}

	// Seek to key that doesn't exist (should find previous)
	iter.SeekLE([]byte("key4"))
	if string(iter.Key()) != "key3" {
		t.Errorf("Expected key3, got %s", iter.Key())
	}

	// Seek before all keys lands on the sentinel
	iter.SeekLE([]byte("key0"))
	if len(iter.Key()) != 0 {
		t.Errorf("Expected sentinel, got %s", iter.Key())
	}
	if !iter.Next() || string(iter.Key()) != "key1" {
		t.Errorf("Expected key1 after sentinel, got %s", iter.Key())
	}
}

func TestIteratorNextAcrossLeaves(t *testing.T) {
	c := newTestContext()
	for i := 0; i < 300; i++ {
		c.add(fmt.Sprintf("key%03d", i), fmt.Sprintf("val%03d", i))
	}

	iter := c.tree.NewIterator()
	iter.SeekLE([]byte("key100"))

	count := 0
	for iter.Valid() {
		want := fmt.Sprintf("key%03d", 100+count)
		if string(iter.Key()) != want {
			t.Fatalf("Expected %s, got %s", want, iter.Key())
		}
		count++
		if !iter.Next() {
			break
		}
	}
	if count != 200 {
		t.Errorf("Expected 200 keys, got %d", count)
	}
}

func TestScanStopsOnCallback(t *testing.T) {
	c := newTestContext()
	for i := 0; i < 50; i++ {
		c.add(fmt.Sprintf("key%02d", i), "v")
	}

	var seen []string
	c.tree.Scan([]byte("key10"), func(key []byte, val string) bool {
		seen = append(seen, string(key))
		return len(seen) < 5
	})
	if len(seen) != 5 || seen[0] != "key10" || seen[4] != "key14" {
		t.Errorf("Unexpected scan result %v", seen)
	}
}

func TestScanPrefix(t *testing.T) {
	c := newTestContext()
	c.add("/A", "a")
	c.add("/A/B", "ab")
	c.add("/A/B/C", "abc")
	c.add("/AB", "AB")
	c.add("/B", "b")

	var seen []string
	c.tree.ScanPrefix([]byte("/A/"), func(key []byte, val string) bool {
		seen = append(seen, string(key))
		return true
	})
	if len(seen) != 2 || seen[0] != "/A/B" || seen[1] != "/A/B/C" {
		t.Errorf("Unexpected prefix scan result %v", seen)
	}
}
