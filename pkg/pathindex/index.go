// ABOUTME: Path index for identifiable elements and reverse references
// ABOUTME: Two B+Trees: path -> handle, and (target path, handle) -> present

// Package pathindex maintains the mapping from AUTOSAR short-name paths to
// element handles, plus the reverse mapping from a referenced path to every
// reference element pointing at it.
package pathindex

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nainya/arxmlstore/pkg/btree"
)

var (
	// ErrDuplicatePath indicates a path that is already taken by another handle
	ErrDuplicatePath = errors.New("pathindex: duplicate path")

	// ErrPathNotFound indicates a path without an entry
	ErrPathNotFound = errors.New("pathindex: path not found")
)

// Handle is an opaque element identifier chosen by the caller
type Handle uint64

// Entry is one identifiable element
type Entry struct {
	Path   string
	Handle Handle
}

// Reference is one reference element and the path it points to
type Reference struct {
	Target string
	Handle Handle
}

// Renamed describes one identifiable moved by RenamePrefix
type Renamed struct {
	OldPath string
	NewPath string
	Handle  Handle
}

// Index is not safe for concurrent use
type Index struct {
	idents  *btree.BTree[Handle]
	refs    *btree.BTree[struct{}]
	targets map[Handle]string
}

// New creates an empty index
func New() *Index {
	return &Index{
		idents:  btree.New[Handle](),
		refs:    btree.New[struct{}](),
		targets: make(map[Handle]string),
	}
}

// AddIdentifiable registers path for h
func (idx *Index) AddIdentifiable(path string, h Handle) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrPathNotFound)
	}
	if cur, ok := idx.idents.Get([]byte(path)); ok && cur != h {
		return fmt.Errorf("%w: %s", ErrDuplicatePath, path)
	}
	idx.idents.Insert([]byte(path), h)
	return nil
}

// RemoveIdentifiable drops path if it is owned by h
func (idx *Index) RemoveIdentifiable(path string, h Handle) bool {
	cur, ok := idx.idents.Get([]byte(path))
	if !ok || cur != h {
		return false
	}
	return idx.idents.Delete([]byte(path))
}

// Lookup returns the handle registered for path
func (idx *Index) Lookup(path string) (Handle, bool) {
	if path == "" {
		return 0, false
	}
	return idx.idents.Get([]byte(path))
}

// Contains reports whether path is registered
func (idx *Index) Contains(path string) bool {
	_, ok := idx.Lookup(path)
	return ok
}

// IdentifiableCount returns the number of registered paths
func (idx *Index) IdentifiableCount() int {
	return idx.idents.Len()
}

// Identifiables lists every entry in path order
func (idx *Index) Identifiables() []Entry {
	out := make([]Entry, 0, idx.idents.Len())
	idx.idents.Scan([]byte{0}, func(key []byte, h Handle) bool {
		out = append(out, Entry{Path: string(key), Handle: h})
		return true
	})
	return out
}

// Descendants lists the entries strictly below path
func (idx *Index) Descendants(path string) []Entry {
	var out []Entry
	idx.idents.ScanPrefix([]byte(path+"/"), func(key []byte, h Handle) bool {
		out = append(out, Entry{Path: string(key), Handle: h})
		return true
	})
	return out
}

// RenamePrefix re-keys oldPath and every path below it to newPath.
// Nothing changes if any of the new paths is already taken.
func (idx *Index) RenamePrefix(oldPath, newPath string) ([]Renamed, error) {
	if oldPath == newPath {
		return nil, nil
	}

	var moved []Renamed
	if h, ok := idx.Lookup(oldPath); ok {
		moved = append(moved, Renamed{OldPath: oldPath, NewPath: newPath, Handle: h})
	}
	for _, e := range idx.Descendants(oldPath) {
		moved = append(moved, Renamed{
			OldPath: e.Path,
			NewPath: newPath + strings.TrimPrefix(e.Path, oldPath),
			Handle:  e.Handle,
		})
	}

	movedHandles := make(map[Handle]bool, len(moved))
	for _, m := range moved {
		movedHandles[m.Handle] = true
	}
	for _, m := range moved {
		if cur, ok := idx.Lookup(m.NewPath); ok && !movedHandles[cur] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePath, m.NewPath)
		}
	}

	for _, m := range moved {
		idx.idents.Delete([]byte(m.OldPath))
	}
	for _, m := range moved {
		idx.idents.Insert([]byte(m.NewPath), m.Handle)
	}
	return moved, nil
}

// AddReference records that h points at target, replacing any previous target of h
func (idx *Index) AddReference(target string, h Handle) {
	idx.RemoveReference(h)
	if target == "" {
		return
	}
	idx.refs.Insert(encodeRefKey(target, h), struct{}{})
	idx.targets[h] = target
}

// RemoveReference forgets the target of h
func (idx *Index) RemoveReference(h Handle) (string, bool) {
	target, ok := idx.targets[h]
	if !ok {
		return "", false
	}
	idx.refs.Delete(encodeRefKey(target, h))
	delete(idx.targets, h)
	return target, true
}

// Target returns the recorded target of h
func (idx *Index) Target(h Handle) (string, bool) {
	target, ok := idx.targets[h]
	return target, ok
}

// ReferenceCount returns the number of recorded references
func (idx *Index) ReferenceCount() int {
	return idx.refs.Len()
}

// ReferencesTo lists every handle pointing at exactly target, ordered by handle
func (idx *Index) ReferencesTo(target string) []Handle {
	var out []Handle
	idx.refs.ScanPrefix(refKeyPrefix(target), func(key []byte, _ struct{}) bool {
		if _, h, err := decodeRefKey(key); err == nil {
			out = append(out, h)
		}
		return true
	})
	return out
}

// ReferencesUnder lists references whose target is path or lies below it
func (idx *Index) ReferencesUnder(path string) []Reference {
	var out []Reference
	prefix := escapeString([]byte(path))
	idx.refs.ScanPrefix(prefix, func(key []byte, _ struct{}) bool {
		target, h, err := decodeRefKey(key)
		if err != nil {
			return true
		}
		if target == path || strings.HasPrefix(target, path+"/") {
			out = append(out, Reference{Target: target, Handle: h})
		}
		return true
	})
	return out
}

// References lists every recorded reference ordered by target
func (idx *Index) References() []Reference {
	out := make([]Reference, 0, idx.refs.Len())
	idx.refs.Scan([]byte{1}, func(key []byte, _ struct{}) bool {
		if target, h, err := decodeRefKey(key); err == nil {
			out = append(out, Reference{Target: target, Handle: h})
		}
		return true
	})
	return out
}

// RetargetPrefix rewrites every reference under oldPath to point below newPath.
// It runs after the identifiables were renamed; references whose new target
// is not an identifiable were dangling before and keep their old target.
// The returned slice carries the new targets so the caller can update the
// stored reference text.
func (idx *Index) RetargetPrefix(oldPath, newPath string) []Reference {
	affected := idx.ReferencesUnder(oldPath)
	out := make([]Reference, 0, len(affected))
	for _, r := range affected {
		target := newPath + strings.TrimPrefix(r.Target, oldPath)
		if !idx.Contains(target) {
			continue
		}
		idx.AddReference(target, r.Handle)
		out = append(out, Reference{Target: target, Handle: r.Handle})
	}
	return out
}

// Clear drops all entries
func (idx *Index) Clear() {
	idx.idents = btree.New[Handle]()
	idx.refs = btree.New[struct{}]()
	idx.targets = make(map[Handle]string)
}
