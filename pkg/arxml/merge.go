// ABOUTME: Merges a parsed file into the shared tree of a model
// ABOUTME: Planning checks every conflict before the tree is changed

package arxml

import (
	"fmt"
	"slices"
	"time"

	"github.com/nainya/arxmlstore/pkg/chardata"
	"github.com/nainya/arxmlstore/pkg/spec"
	"github.com/nainya/arxmlstore/pkg/version"
)

// LoadBufferWithOptions parses buf and merges it into the model as a new
// file. Identifiable elements that already exist gain the new file instead
// of being duplicated. The model is unchanged when an error is returned.
func (m *Model) LoadBufferWithOptions(buf []byte, filename string, opts ParseOptions) (*File, []Warning, error) {
	start := time.Now()
	if _, exists := m.FileByName(filename); exists {
		return nil, nil, newError(KindFile, "a file named %q already exists", filename)
	}
	parsed, err := parseBuffer(buf, filename, opts)
	if err != nil {
		return nil, nil, err
	}

	f := &File{model: m, filename: filename, version: parsed.version, standalone: parsed.standalone}
	plan := mergePlan{model: m, file: f, claimed: make(map[string]bool), hadFiles: len(m.files) > 0}
	if err := plan.match(m.root, parsed.root, true); err != nil {
		return nil, nil, err
	}
	plan.apply(parsed.root)

	m.log.Debug().
		Str("file", filename).
		Str("version", f.version.Name()).
		Int("merged", len(plan.joins)).
		Int("inserted", len(plan.inserts)).
		Int("warnings", len(parsed.warnings)).
		Dur("duration", time.Since(start)).
		Msg("file loaded")
	return f, parsed.warnings, nil
}

// mergePin fixes the membership of an element that inherited it so far
type mergePin struct {
	id    nodeID
	files []*File
}

type mergeInsert struct {
	parent   nodeID
	snap     *snapshot
	explicit bool
}

// mergePlan collects the changes needed to merge one parsed file
type mergePlan struct {
	model    *Model
	file     *File
	hadFiles bool
	pins     []mergePin
	joins    []nodeID
	inserts  []mergeInsert
	claimed  map[string]bool
}

// splitContext reports whether the children of id carry their own membership
func (p *mergePlan) splitContext(id nodeID) bool {
	m := p.model
	n := m.node(id)
	if !n.parent.valid() || n.etype.SplittableIn(p.file.version) {
		return true
	}
	for _, child := range m.children(id) {
		if m.node(child).files != nil {
			return true
		}
	}
	return false
}

// match pairs the children of the existing element id with the children of
// the incoming element s
func (p *mergePlan) match(id nodeID, s *snapshot, isRoot bool) error {
	m := p.model
	n := m.node(id)

	if n.etype.ContentMode() == spec.Characters || n.etype.ContentMode() == spec.Mixed {
		if !isRoot && !p.sameContent(id, s) {
			return p.conflict(id, "holds different content")
		}
		return nil
	}

	split := p.splitContext(id)
	// outside a split context both files must describe the same children,
	// apart from splittable ones that may exist in one file only
	strict := !split && !isRoot && p.hadFiles
	if strict && !sameAttrs(n.attrs, s.attrs) {
		return p.conflict(id, "has different attributes")
	}
	existing := m.children(id)
	if split && p.hadFiles {
		for _, child := range existing {
			if m.node(child).files == nil {
				old := append([]*File(nil), m.effectiveFiles(child)...)
				p.pins = append(p.pins, mergePin{id: child, files: old})
			}
		}
	}
	seen := make(map[string]int)
	matched := make(map[nodeID]bool)
	for _, item := range s.content {
		if item.isText {
			continue
		}
		c := item.child
		occurrence := seen[c.name]
		seen[c.name]++

		target, ok := p.find(existing, c, occurrence)
		if !ok {
			if strict && !c.etype.SplittableIn(p.file.version) {
				return p.conflict(id, "has an extra "+c.name)
			}
			if err := p.planInsert(id, c, split || strict); err != nil {
				return err
			}
			continue
		}
		if tn := m.node(target); tn.etype != c.etype {
			return p.conflict(target, "has a different structure")
		}
		matched[target] = true
		if split {
			p.joins = append(p.joins, target)
		}
		if err := p.match(target, c, false); err != nil {
			return err
		}
	}
	if strict {
		for _, child := range existing {
			if matched[child] {
				continue
			}
			cn := m.node(child)
			if !cn.etype.SplittableIn(p.file.version) {
				return p.conflict(id, "is missing "+cn.name)
			}
			if cn.files == nil {
				old := append([]*File(nil), m.effectiveFiles(child)...)
				p.pins = append(p.pins, mergePin{id: child, files: old})
			}
		}
	}
	return nil
}

func (p *mergePlan) conflict(id nodeID, what string) error {
	return &Error{
		Kind:    KindDuplicateName,
		Msg:     fmt.Sprintf("%s %s in %s", p.model.node(id).name, what, p.file.filename),
		Element: p.model.xmlPath(id),
	}
}

// find looks for the existing counterpart of c: same name and item name for
// identifiables, same name and occurrence otherwise
func (p *mergePlan) find(existing []nodeID, c *snapshot, occurrence int) (nodeID, bool) {
	m := p.model
	item := c.itemName()
	k := 0
	for _, id := range existing {
		n := m.node(id)
		if n.name != c.name {
			continue
		}
		if c.etype.IsNamed() {
			if name, ok := m.itemName(id); ok && name == item {
				return id, true
			}
			continue
		}
		if k == occurrence {
			return id, true
		}
		k++
	}
	return nodeID{}, false
}

func (p *mergePlan) planInsert(parent nodeID, s *snapshot, split bool) error {
	m := p.model
	scope, err := m.scopePath(parent)
	if err != nil {
		return err
	}
	var collision string
	var walk func(s *snapshot, scope string)
	walk = func(s *snapshot, scope string) {
		if name := s.itemName(); name != "" {
			scope = scope + "/" + name
			if m.index.Contains(scope) || p.claimed[scope] {
				if collision == "" {
					collision = scope
				}
			}
			p.claimed[scope] = true
		}
		for _, item := range s.content {
			if !item.isText {
				walk(item.child, scope)
			}
		}
	}
	walk(s, scope)
	if collision != "" {
		return newError(KindDuplicateName, "%s in %s overlaps with existing data", collision, p.file.filename)
	}
	p.inserts = append(p.inserts, mergeInsert{parent: parent, snap: s, explicit: split && p.hadFiles})
	return nil
}

func (p *mergePlan) sameContent(id nodeID, s *snapshot) bool {
	n := p.model.node(id)
	if n.name != s.name || !sameAttrs(n.attrs, s.attrs) || len(n.content) != len(s.content) {
		return false
	}
	for i, item := range n.content {
		other := s.content[i]
		if item.isText != other.isText {
			return false
		}
		if item.isText {
			if item.text.Format() != other.text.Format() {
				return false
			}
			continue
		}
		if !p.sameContent(item.child, other.child) {
			return false
		}
	}
	return true
}

func sameAttrs(a, b []attribute) bool {
	return slices.EqualFunc(a, b, func(x, y attribute) bool {
		return x.name == y.name && x.value.Format() == y.value.Format()
	})
}

// apply performs the planned changes; it cannot fail
func (p *mergePlan) apply(root *snapshot) {
	m := p.model
	f := p.file

	if !p.hadFiles {
		m.node(m.root).attrs = append([]attribute(nil), root.attrs...)
		m.setRootVersionAttr(f.version)
		if root.comment != nil {
			c := *root.comment
			m.node(m.root).comment = &c
		}
	}
	for _, pin := range p.pins {
		m.node(pin.id).files = pin.files
	}
	m.files = append(m.files, f)

	for _, id := range p.joins {
		p.join(id)
	}
	for _, ins := range p.inserts {
		id := m.instantiate(ins.snap, ins.parent)
		pn := m.node(ins.parent)
		m.insertContent(ins.parent, m.mergePosition(ins.parent, pn.etype, m.node(id)), id)
		if ins.explicit {
			m.node(id).files = []*File{f}
		}
		if err := m.indexSubtree(id); err != nil {
			m.log.Warn().Err(err).Str("file", f.filename).Msg("index conflict after merge")
		}
	}
}

// join adds the file to an existing element
func (p *mergePlan) join(id nodeID) {
	m := p.model
	old := m.effectiveFiles(id)
	if containsFile(old, p.file) {
		return
	}
	m.node(id).files = append(append([]*File(nil), old...), p.file)
}

// mergePosition places a merged child after its schema predecessors
func (m *Model) mergePosition(parent nodeID, etype spec.ElementType, child *node) int {
	pn := m.node(parent)
	if etype.ContentMode() != spec.Sequence {
		return len(pn.content)
	}
	sub, _ := subSpecFor(etype, child.name, child.etype)
	pos := 0
	for i, item := range pn.content {
		if item.isText {
			continue
		}
		cn := m.node(item.child)
		if cn == child {
			continue
		}
		cs, _ := subSpecFor(etype, cn.name, cn.etype)
		if cs.Index <= sub.Index {
			pos = i + 1
		}
	}
	return pos
}

// setRootVersionAttr points the stored schemaLocation at v
func (m *Model) setRootVersionAttr(v version.Version) {
	m.node(m.root).setAttr("xsi:schemaLocation", chardata.NewString(v.SchemaLocation()))
}
