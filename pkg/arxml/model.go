// ABOUTME: AutosarModel: one element tree shared by any number of files
// ABOUTME: Owns the node arena, the file list and the path index

// Package arxml implements the schema-validated ARXML element tree: elements,
// the multi-file model, parsing, serialization, reference tracking and
// version compatibility checks.
package arxml

import (
	"fmt"
	"iter"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nainya/arxmlstore/pkg/chardata"
	"github.com/nainya/arxmlstore/pkg/pathindex"
	"github.com/nainya/arxmlstore/pkg/spec"
	"github.com/nainya/arxmlstore/pkg/version"
)

const (
	autosarNamespace = "http://autosar.org/schema/r4.0"
	xsiNamespace     = "http://www.w3.org/2001/XMLSchema-instance"
)

// Model is one ARXML element tree plus the files composing it.
// A Model is not safe for concurrent use; callers serialize access.
type Model struct {
	nodes []node
	free  freeList
	root  nodeID
	files []*File
	index *pathindex.Index
	log   zerolog.Logger
}

// Option configures a Model
type Option func(*Model)

// WithLogger sets the logger used for load, merge and write events
func WithLogger(l zerolog.Logger) Option {
	return func(m *Model) {
		m.log = l
	}
}

// NewModel creates an empty model holding only the AUTOSAR root element
func NewModel(opts ...Option) *Model {
	m := &Model{
		nodes: make([]node, 1, 64),
		index: pathindex.New(),
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.root = m.alloc("AUTOSAR", spec.Root(), nodeID{})
	m.resetRootAttributes()
	return m
}

func (m *Model) resetRootAttributes() {
	root := m.node(m.root)
	root.attrs = []attribute{
		{name: "xsi:schemaLocation", value: chardata.NewString(version.Latest.SchemaLocation())},
		{name: "xmlns", value: chardata.NewString(autosarNamespace)},
		{name: "xmlns:xsi", value: chardata.NewString(xsiNamespace)},
	}
}

func (m *Model) String() string {
	names := make([]string, len(m.files))
	for i, f := range m.files {
		names[i] = f.filename
	}
	return fmt.Sprintf("AutosarModel{files: [%s], identifiables: %d}", strings.Join(names, ", "), m.index.IdentifiableCount())
}

// RootElement returns the AUTOSAR element
func (m *Model) RootElement() Element {
	return Element{model: m, id: m.root}
}

// Files lists the files of the model in creation order
func (m *Model) Files() []*File {
	return slices.Clone(m.files)
}

// FileByName returns the file called filename
func (m *Model) FileByName(filename string) (*File, bool) {
	for _, f := range m.files {
		if f.filename == filename {
			return f, true
		}
	}
	return nil, false
}

// CreateFile adds an empty file. Existing elements become part of it.
func (m *Model) CreateFile(filename string, v version.Version) (*File, error) {
	if !v.Valid() {
		return nil, newError(KindInvalidFile, "unknown version %d", v)
	}
	if _, exists := m.FileByName(filename); exists {
		return nil, newError(KindFile, "a file named %q already exists", filename)
	}
	f := &File{model: m, filename: filename, version: v}
	m.files = append(m.files, f)
	m.log.Debug().Str("file", filename).Str("version", v.Name()).Msg("file created")
	return f, nil
}

// RemoveFile drops f from the model. Elements that belonged only to f are
// removed; removing the last file clears the tree.
func (m *Model) RemoveFile(f *File) error {
	pos := slices.Index(m.files, f)
	if f == nil || pos < 0 {
		return newError(KindInvalidFile, "file is not part of this model")
	}

	start := time.Now()
	if len(m.files) == 1 {
		for _, child := range m.children(m.root) {
			m.detach(child)
		}
		m.node(m.root).files = nil
		m.node(m.root).comment = nil
		m.resetRootAttributes()
	} else {
		m.stripFile(m.root, f)
	}

	m.files = slices.Delete(m.files, pos, pos+1)
	f.model = nil
	m.log.Debug().
		Str("file", f.filename).
		Dur("duration", time.Since(start)).
		Int("remaining_files", len(m.files)).
		Msg("file removed")
	return nil
}

// ElementsDFS walks the whole tree depth-first, yielding (depth, element)
func (m *Model) ElementsDFS() iter.Seq2[int, Element] {
	return m.RootElement().ElementsDFS()
}

// Sort puts the whole tree into canonical schema order
func (m *Model) Sort() {
	m.sortSubtree(m.root)
}

// CheckVersionCompatibility checks the whole tree against target
func (m *Model) CheckVersionCompatibility(target version.Version) ([]CompatibilityError, version.Mask) {
	return m.checkCompat(m.root, nil, target)
}

// Stats summarizes the size of the model
type Stats struct {
	Files         int
	Elements      int
	Identifiables int
	References    int
}

// Stats counts live elements, paths and references
func (m *Model) Stats() Stats {
	live := len(m.nodes) - 1 - m.free.Total()
	return Stats{
		Files:         len(m.files),
		Elements:      live,
		Identifiables: m.index.IdentifiableCount(),
		References:    m.index.ReferenceCount(),
	}
}

// SerializeFiles renders every file without touching the disk
func (m *Model) SerializeFiles() map[string]string {
	out := make(map[string]string, len(m.files))
	for _, f := range m.files {
		out[f.filename] = m.serializeFile(f)
	}
	return out
}

// Write stores every file at its filename
func (m *Model) Write() error {
	start := time.Now()
	for _, f := range m.files {
		text := m.serializeFile(f)
		if err := os.WriteFile(f.filename, []byte(text), 0o644); err != nil {
			return wrapError(KindFile, err, "write %s", f.filename)
		}
	}
	m.log.Debug().Int("files", len(m.files)).Dur("duration", time.Since(start)).Msg("model written")
	return nil
}

// Duplicate creates an independent deep copy of the model and its files
func (m *Model) Duplicate() (*Model, error) {
	dup := &Model{
		nodes: make([]node, len(m.nodes)),
		root:  m.root,
		index: pathindex.New(),
		log:   m.log,
	}

	fileMap := make(map[*File]*File, len(m.files))
	for _, f := range m.files {
		nf := &File{model: dup, filename: f.filename, version: f.version}
		if f.standalone != nil {
			v := *f.standalone
			nf.standalone = &v
		}
		fileMap[f] = nf
		dup.files = append(dup.files, nf)
	}

	for i := range m.nodes {
		src := &m.nodes[i]
		dst := &dup.nodes[i]
		*dst = *src
		dst.content = slices.Clone(src.content)
		dst.attrs = slices.Clone(src.attrs)
		if src.comment != nil {
			c := *src.comment
			dst.comment = &c
		}
		if src.files != nil {
			dst.files = make([]*File, 0, len(src.files))
			for _, f := range src.files {
				dst.files = append(dst.files, fileMap[f])
			}
		}
		if i > 0 && !src.live {
			dup.free.PushTail(uint32(i))
		}
	}

	if err := dup.indexSubtree(dup.root); err != nil {
		return nil, err
	}
	return dup, nil
}

// effectiveFiles resolves inherited membership. The root inherits all files.
func (m *Model) effectiveFiles(id nodeID) []*File {
	for cur := id; ; {
		n := m.node(cur)
		if n == nil {
			return nil
		}
		if n.files != nil {
			return n.files
		}
		if !n.parent.valid() {
			return m.files
		}
		cur = n.parent
	}
}

// versionFor is the lowest version among the files of id, or Latest
func (m *Model) versionFor(id nodeID) version.Version {
	files := m.effectiveFiles(id)
	if len(files) == 0 {
		return version.Latest
	}
	v := files[0].version
	for _, f := range files[1:] {
		if f.version < v {
			v = f.version
		}
	}
	return v
}

// itemName returns the SHORT-NAME text of a named element
func (m *Model) itemName(id nodeID) (string, bool) {
	n := m.node(id)
	if n == nil || !n.etype.IsNamed() {
		return "", false
	}
	for _, item := range n.content {
		if item.isText {
			continue
		}
		c := m.node(item.child)
		if c != nil && c.name == "SHORT-NAME" {
			if len(c.content) == 1 && c.content[0].isText {
				return c.content[0].text.Format(), true
			}
			return "", false
		}
	}
	return "", false
}

// scopePath returns the path of the nearest named ancestor-or-self, "" at top level
func (m *Model) scopePath(id nodeID) (string, error) {
	var names []string
	for cur := id; cur.valid(); {
		n := m.node(cur)
		if n == nil {
			return "", newError(KindElementRemoved, "element was removed")
		}
		if n.etype.IsNamed() {
			name, ok := m.itemName(cur)
			if !ok || name == "" {
				return "", newError(KindNotIdentifiable, "element %s has no SHORT-NAME", m.xmlPath(cur))
			}
			names = append(names, name)
		}
		cur = n.parent
	}
	if len(names) == 0 {
		return "", nil
	}
	slices.Reverse(names)
	return "/" + strings.Join(names, "/"), nil
}

// path returns the short-name path of a named element
func (m *Model) path(id nodeID) (string, error) {
	n := m.node(id)
	if n == nil {
		return "", newError(KindElementRemoved, "element was removed")
	}
	if !n.etype.IsNamed() {
		return "", newError(KindNotIdentifiable, "%s is not identifiable", m.xmlPath(id))
	}
	return m.scopePath(id)
}

func (m *Model) xmlPath(id nodeID) string {
	var parts []string
	for cur := id; cur.valid(); {
		n := m.node(cur)
		if n == nil {
			break
		}
		if name, ok := m.itemName(cur); ok {
			parts = append(parts, name)
		} else {
			parts = append(parts, "<"+n.name+">")
		}
		cur = n.parent
	}
	slices.Reverse(parts)
	return "/" + strings.Join(parts, "/")
}

// walkPaths visits id and its subtree, passing the scope path of each element
func (m *Model) walkPaths(id nodeID, scope string, fn func(id nodeID, n *node, path string)) {
	n := m.node(id)
	if n == nil {
		return
	}
	p := scope
	if n.etype.IsNamed() {
		if name, ok := m.itemName(id); ok && name != "" {
			p = scope + "/" + name
		}
	}
	fn(id, n, p)
	for _, child := range m.children(id) {
		m.walkPaths(child, p, fn)
	}
}

// refTarget returns the stored path of a reference element
func (m *Model) refTarget(n *node) (string, bool) {
	if !n.etype.IsRef() || len(n.content) != 1 || !n.content[0].isText {
		return "", false
	}
	return n.content[0].text.Format(), true
}

// indexSubtree registers the paths and references of id and everything below it
func (m *Model) indexSubtree(id nodeID) error {
	n := m.node(id)
	if n == nil {
		return nil
	}
	scope := ""
	if n.parent.valid() {
		var err error
		if scope, err = m.scopePath(n.parent); err != nil {
			return err
		}
	}
	var firstErr error
	m.walkPaths(id, scope, func(cur nodeID, cn *node, p string) {
		if cn.etype.IsNamed() && p != scope {
			if err := m.index.AddIdentifiable(p, cur.handle()); err != nil && firstErr == nil {
				firstErr = wrapError(KindDuplicateName, err, "path %s is already in use", p)
			}
		}
		if target, ok := m.refTarget(cn); ok {
			m.index.AddReference(target, cur.handle())
		}
	})
	return firstErr
}

// unindexSubtree forgets the paths and references of id and everything below it
func (m *Model) unindexSubtree(id nodeID) {
	n := m.node(id)
	if n == nil {
		return
	}
	scope := ""
	if n.parent.valid() {
		scope, _ = m.scopePath(n.parent)
	}
	m.walkPaths(id, scope, func(cur nodeID, cn *node, p string) {
		if cn.etype.IsNamed() {
			m.index.RemoveIdentifiable(p, cur.handle())
		}
		if cn.etype.IsRef() {
			m.index.RemoveReference(cur.handle())
		}
	})
}

// detach unlinks id from its parent and frees its subtree
func (m *Model) detach(id nodeID) {
	n := m.node(id)
	if n == nil {
		return
	}
	m.unindexSubtree(id)
	if p := m.node(n.parent); p != nil {
		if pos := m.contentPos(n.parent, id); pos >= 0 {
			p.content = slices.Delete(p.content, pos, pos+1)
		}
	}
	m.release(id)
}

// isAncestor reports whether anc is id or lies above it
func (m *Model) isAncestor(anc, id nodeID) bool {
	for cur := id; cur.valid(); {
		if cur == anc {
			return true
		}
		n := m.node(cur)
		if n == nil {
			return false
		}
		cur = n.parent
	}
	return false
}
