// ABOUTME: Tests for the path index
// ABOUTME: Covers identifiable registration, prefix renames and reverse references

package pathindex

import (
	"bytes"
	"errors"
	"testing"
)

func TestAddLookupRemove(t *testing.T) {
	idx := New()

	if err := idx.AddIdentifiable("/Pkg", 1); err != nil {
		t.Fatalf("AddIdentifiable failed: %v", err)
	}
	if err := idx.AddIdentifiable("/Pkg", 1); err != nil {
		t.Errorf("Re-adding the same handle must succeed: %v", err)
	}
	if err := idx.AddIdentifiable("/Pkg", 2); !errors.Is(err, ErrDuplicatePath) {
		t.Errorf("Expected ErrDuplicatePath, got %v", err)
	}

	h, ok := idx.Lookup("/Pkg")
	if !ok || h != 1 {
		t.Errorf("Lookup = %d, %v", h, ok)
	}

	if idx.RemoveIdentifiable("/Pkg", 2) {
		t.Error("Remove with a foreign handle must fail")
	}
	if !idx.RemoveIdentifiable("/Pkg", 1) {
		t.Error("Remove failed")
	}
	if idx.Contains("/Pkg") {
		t.Error("Path should be gone")
	}
}

func TestIdentifiablesSorted(t *testing.T) {
	idx := New()
	for i, p := range []string{"/B", "/A/X", "/A", "/AB"} {
		if err := idx.AddIdentifiable(p, Handle(i+1)); err != nil {
			t.Fatal(err)
		}
	}

	entries := idx.Identifiables()
	want := []string{"/A", "/A/X", "/AB", "/B"}
	if len(entries) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(entries))
	}
	for i, w := range want {
		if entries[i].Path != w {
			t.Errorf("entry %d = %s, want %s", i, entries[i].Path, w)
		}
	}

	desc := idx.Descendants("/A")
	if len(desc) != 1 || desc[0].Path != "/A/X" {
		t.Errorf("Descendants(/A) = %v", desc)
	}
}

func TestRenamePrefix(t *testing.T) {
	idx := New()
	idx.AddIdentifiable("/Pkg1", 1)
	idx.AddIdentifiable("/Pkg1/System", 2)
	idx.AddIdentifiable("/Pkg1/System/Sub", 3)
	idx.AddIdentifiable("/Pkg10", 4)
	idx.AddIdentifiable("/Other", 5)

	moved, err := idx.RenamePrefix("/Pkg1", "/NewName")
	if err != nil {
		t.Fatalf("RenamePrefix failed: %v", err)
	}
	if len(moved) != 3 {
		t.Fatalf("Expected 3 renamed entries, got %d", len(moved))
	}
	if h, ok := idx.Lookup("/NewName/System/Sub"); !ok || h != 3 {
		t.Error("Descendant was not re-keyed")
	}
	if _, ok := idx.Lookup("/Pkg1/System"); ok {
		t.Error("Old path still present")
	}
	if h, ok := idx.Lookup("/Pkg10"); !ok || h != 4 {
		t.Error("Sibling with common string prefix must not move")
	}

	// Collision leaves the index untouched
	if _, err := idx.RenamePrefix("/NewName", "/Other"); !errors.Is(err, ErrDuplicatePath) {
		t.Errorf("Expected ErrDuplicatePath, got %v", err)
	}
	if !idx.Contains("/NewName/System") {
		t.Error("Failed rename must not modify the index")
	}
}

func TestReferences(t *testing.T) {
	idx := New()
	idx.AddReference("/Pkg2/CanCluster", 10)
	idx.AddReference("/Pkg2/CanCluster", 7)
	idx.AddReference("/Pkg2/CanClusterX", 8)
	idx.AddReference("/Pkg2", 9)

	refs := idx.ReferencesTo("/Pkg2/CanCluster")
	if len(refs) != 2 || refs[0] != 7 || refs[1] != 10 {
		t.Errorf("ReferencesTo = %v", refs)
	}

	under := idx.ReferencesUnder("/Pkg2")
	if len(under) != 4 {
		t.Errorf("ReferencesUnder(/Pkg2) = %v", under)
	}
	under = idx.ReferencesUnder("/Pkg2/CanCluster")
	if len(under) != 2 {
		t.Errorf("ReferencesUnder(/Pkg2/CanCluster) = %v", under)
	}

	// Retargeting a handle replaces its old entry
	idx.AddReference("/Elsewhere", 10)
	if refs := idx.ReferencesTo("/Pkg2/CanCluster"); len(refs) != 1 {
		t.Errorf("Expected 1 reference after retarget, got %v", refs)
	}
	if target, ok := idx.Target(10); !ok || target != "/Elsewhere" {
		t.Errorf("Target(10) = %s, %v", target, ok)
	}

	if _, ok := idx.RemoveReference(7); !ok {
		t.Error("RemoveReference failed")
	}
	if idx.ReferenceCount() != 3 {
		t.Errorf("Expected 3 references, got %d", idx.ReferenceCount())
	}
}

func TestRetargetPrefix(t *testing.T) {
	idx := New()
	for path, h := range map[string]Handle{"/Renamed": 10, "/Renamed/Sys": 11, "/Renamed/Sys/Inner": 12} {
		if err := idx.AddIdentifiable(path, h); err != nil {
			t.Fatalf("AddIdentifiable failed: %v", err)
		}
	}
	idx.AddReference("/Pkg/Sys", 1)
	idx.AddReference("/Pkg/Sys/Inner", 2)
	idx.AddReference("/PkgOther", 3)
	idx.AddReference("/Pkg/Gone", 4)

	changed := idx.RetargetPrefix("/Pkg", "/Renamed")
	if len(changed) != 2 {
		t.Fatalf("Expected 2 changed references, got %v", changed)
	}
	if target, _ := idx.Target(2); target != "/Renamed/Sys/Inner" {
		t.Errorf("Unexpected target %s", target)
	}
	if target, _ := idx.Target(3); target != "/PkgOther" {
		t.Errorf("Unrelated reference changed to %s", target)
	}
	if target, _ := idx.Target(4); target != "/Pkg/Gone" {
		t.Errorf("Dangling reference changed to %s", target)
	}
}

func TestRefKeyEncoding(t *testing.T) {
	target := "/a\x00b\xffc"
	key := encodeRefKey(target, 0x0102)

	if !bytes.HasPrefix(key, refKeyPrefix(target)) {
		t.Error("Key must start with its target prefix")
	}
	gotTarget, gotHandle, err := decodeRefKey(key)
	if err != nil {
		t.Fatalf("decodeRefKey failed: %v", err)
	}
	if gotTarget != target || gotHandle != 0x0102 {
		t.Errorf("Decoded %q/%d", gotTarget, gotHandle)
	}

	// Ordering follows the target first, then the handle
	a := encodeRefKey("/A", 99)
	b := encodeRefKey("/A/B", 1)
	if bytes.Compare(a, b) >= 0 {
		t.Error("Shorter target must sort first")
	}
	if _, _, err := decodeRefKey([]byte{1, 2}); err == nil {
		t.Error("Expected error for short key")
	}
}
