// ABOUTME: File membership of elements in a multi-file model
// ABOUTME: Only children of splittable elements can be split between files

package arxml

import (
	"fmt"
	"slices"

	"github.com/nainya/arxmlstore/pkg/version"
)

func containsFile(files []*File, f *File) bool {
	return slices.Contains(files, f)
}

// FileMembership returns the files the element belongs to. local is true when
// the element carries its own set instead of inheriting the parent's.
func (e Element) FileMembership() (local bool, files []*File) {
	n := e.get()
	if n == nil {
		return false, nil
	}
	return n.files != nil, slices.Clone(e.model.effectiveFiles(e.id))
}

func (m *Model) checkFile(f *File) error {
	if f == nil || f.model != m {
		return newError(KindInvalidFile, "file is not part of this model")
	}
	return nil
}

// canSplit reports whether the children of p may belong to different files in v.
// The root's children always can.
func canSplit(p *node, v version.Version) bool {
	return !p.parent.valid() || p.etype.SplittableIn(v)
}

func (m *Model) splitError(id nodeID, p *node, f *File) error {
	return &Error{
		Kind:    KindSchemaViolation,
		Msg:     fmt.Sprintf("%s cannot be split between files in %s", p.name, f.version),
		Element: m.xmlPath(id),
	}
}

// AddToFile makes the element and its subtree part of f. Ancestors missing
// from f are added as containers only; each of them must sit below a parent
// that is splittable in f's version.
func (e Element) AddToFile(f *File) error {
	if _, err := e.live(); err != nil {
		return err
	}
	m := e.model
	if err := m.checkFile(f); err != nil {
		return err
	}
	for cur := e.id; ; {
		n := m.node(cur)
		if !n.parent.valid() || containsFile(m.effectiveFiles(cur), f) {
			break
		}
		p := m.node(n.parent)
		if !canSplit(p, f.version) {
			return m.splitError(cur, p, f)
		}
		cur = n.parent
	}
	m.addToFile(e.id, f, false)
	return nil
}

// addToFile adds f to id. For a container only the path down to the
// requested element joins f; its other children keep their files.
func (m *Model) addToFile(id nodeID, f *File, container bool) {
	old := m.effectiveFiles(id)
	if containsFile(old, f) {
		return
	}
	old = slices.Clone(old)
	if parent := m.node(id).parent; parent.valid() {
		m.addToFile(parent, f, true)
	}
	if container {
		for _, child := range m.children(id) {
			if cn := m.node(child); cn.files == nil {
				cn.files = slices.Clone(old)
			}
		}
	}
	m.node(id).files = append(old, f)
}

// RemoveFromFile takes the element out of f. An element without any remaining
// file is removed from the model.
func (e Element) RemoveFromFile(f *File) error {
	n, err := e.live()
	if err != nil {
		return err
	}
	m := e.model
	if err := m.checkFile(f); err != nil {
		return err
	}
	old := m.effectiveFiles(e.id)
	if !containsFile(old, f) {
		return nil
	}
	p := m.node(n.parent)
	if p == nil {
		return newError(KindSchemaViolation, "the AUTOSAR root element belongs to every file")
	}
	if !canSplit(p, f.version) {
		return m.splitError(e.id, p, f)
	}

	remaining := slices.DeleteFunc(slices.Clone(old), func(x *File) bool { return x == f })
	if len(remaining) == 0 {
		m.detach(e.id)
		return nil
	}
	n.files = remaining
	for _, child := range m.children(e.id) {
		m.stripFile(child, f)
	}
	return nil
}

// stripFile removes f from explicit sets below id; elements left without a
// file are removed
func (m *Model) stripFile(id nodeID, f *File) {
	n := m.node(id)
	if n == nil {
		return
	}
	if n.files != nil {
		if !containsFile(n.files, f) {
			return
		}
		n.files = slices.DeleteFunc(slices.Clone(n.files), func(x *File) bool { return x == f })
		if len(n.files) == 0 {
			m.detach(id)
			return
		}
	}
	for _, child := range m.children(id) {
		m.stripFile(child, f)
	}
}
