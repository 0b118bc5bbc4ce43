// ABOUTME: Structural mutation: create, copy, move and remove sub-elements
// ABOUTME: Every operation validates fully before it touches the tree

package arxml

import (
	"fmt"
	"slices"

	"github.com/nainya/arxmlstore/pkg/chardata"
	"github.com/nainya/arxmlstore/pkg/spec"
	"github.com/nainya/arxmlstore/pkg/version"
)

// ValidSubElementInfo describes one schema child of an element
type ValidSubElementInfo struct {
	Name      string
	IsNamed   bool
	IsAllowed bool
}

func (v ValidSubElementInfo) String() string {
	return fmt.Sprintf("ValidSubElementInfo{%s, named=%t, allowed=%t}", v.Name, v.IsNamed, v.IsAllowed)
}

// subSpecFor finds the schema entry describing an existing child
func subSpecFor(parent spec.ElementType, name string, etype spec.ElementType) (spec.SubElementSpec, bool) {
	var fallback spec.SubElementSpec
	found := false
	for _, sub := range parent.SubElements() {
		if sub.Name != name {
			continue
		}
		if sub.Type == etype {
			return sub, true
		}
		if !found {
			fallback, found = sub, true
		}
	}
	return fallback, found
}

// checkNewChild validates adding a child called name below parent and returns
// the allowed position range. exclude is left out of all counts, which lets a
// move reorder an element within its current parent.
func (m *Model) checkNewChild(parent nodeID, name string, exclude nodeID) (spec.SubElementSpec, int, int, error) {
	pn := m.node(parent)
	if pn == nil {
		return spec.SubElementSpec{}, 0, 0, newError(KindElementRemoved, "element was removed")
	}
	ver := m.versionFor(parent)
	sub, ok := pn.etype.FindSubElement(name, ver.Mask())
	if !ok {
		return sub, 0, 0, &Error{
			Kind:    KindSchemaViolation,
			Msg:     fmt.Sprintf("%s is not a valid sub element in %s", name, ver),
			Element: m.xmlPath(parent),
		}
	}

	items := make([]contentItem, 0, len(pn.content))
	for _, item := range pn.content {
		if item.isText || item.child != exclude {
			items = append(items, item)
		}
	}

	count := 0
	for _, item := range items {
		if item.isText {
			continue
		}
		cn := m.node(item.child)
		if cn.name == name {
			count++
		} else if pn.etype.ContentMode() == spec.Choice {
			return sub, 0, 0, &Error{
				Kind:    KindSchemaViolation,
				Msg:     fmt.Sprintf("%s cannot be combined with the existing %s", name, cn.name),
				Element: m.xmlPath(parent),
			}
		}
	}
	if sub.Max > 0 && count >= sub.Max {
		return sub, 0, 0, &Error{
			Kind:    KindSchemaViolation,
			Msg:     fmt.Sprintf("%s may occur at most %d times", name, sub.Max),
			Element: m.xmlPath(parent),
		}
	}

	lo, hi := 0, len(items)
	if pn.etype.ContentMode() == spec.Sequence {
		hi = -1
		for i, item := range items {
			cn := m.node(item.child)
			cs, _ := subSpecFor(pn.etype, cn.name, cn.etype)
			if cs.Index < sub.Index {
				lo = i + 1
			} else if cs.Index > sub.Index && hi < 0 {
				hi = i
			}
		}
		if hi < 0 {
			hi = len(items)
		}
		// content that is out of schema order leaves a single slot
		if hi < lo {
			hi = lo
		}
	}
	return sub, lo, hi, nil
}

func resolvePos(pos, lo, hi int) (int, error) {
	if pos < 0 {
		return hi, nil
	}
	if pos < lo || pos > hi {
		return 0, newError(KindInvalidPosition, "position %d is outside the allowed range %d..%d", pos, lo, hi)
	}
	return pos, nil
}

func (m *Model) insertContent(parent nodeID, pos int, child nodeID) {
	pn := m.node(parent)
	pn.content = slices.Insert(pn.content, pos, contentItem{child: child})
}

// CreateSubElement appends a new child at the first valid position
func (e Element) CreateSubElement(name string) (Element, error) {
	return e.createSubElement(name, -1)
}

// CreateSubElementAt inserts a new child at pos
func (e Element) CreateSubElementAt(name string, pos int) (Element, error) {
	if pos < 0 {
		return Element{}, newError(KindInvalidPosition, "negative position %d", pos)
	}
	return e.createSubElement(name, pos)
}

func (e Element) createSubElement(name string, pos int) (Element, error) {
	if _, err := e.live(); err != nil {
		return Element{}, err
	}
	m := e.model
	sub, lo, hi, err := m.checkNewChild(e.id, name, nodeID{})
	if err != nil {
		return Element{}, err
	}
	if sub.Type.IsNamed() {
		return Element{}, newError(KindSchemaViolation, "%s is identifiable and needs an item name", name)
	}
	if pos, err = resolvePos(pos, lo, hi); err != nil {
		return Element{}, err
	}

	id := m.alloc(name, sub.Type, e.id)
	m.insertContent(e.id, pos, id)
	return Element{model: m, id: id}, nil
}

// CreateNamedSubElement appends a new identifiable child with a SHORT-NAME
func (e Element) CreateNamedSubElement(name, itemName string) (Element, error) {
	return e.createNamedSubElement(name, itemName, -1)
}

// CreateNamedSubElementAt inserts a new identifiable child at pos
func (e Element) CreateNamedSubElementAt(name, itemName string, pos int) (Element, error) {
	if pos < 0 {
		return Element{}, newError(KindInvalidPosition, "negative position %d", pos)
	}
	return e.createNamedSubElement(name, itemName, pos)
}

func (e Element) createNamedSubElement(name, itemName string, pos int) (Element, error) {
	if _, err := e.live(); err != nil {
		return Element{}, err
	}
	m := e.model
	sub, lo, hi, err := m.checkNewChild(e.id, name, nodeID{})
	if err != nil {
		return Element{}, err
	}
	if !sub.Type.IsNamed() {
		return Element{}, newError(KindSchemaViolation, "%s is not identifiable", name)
	}
	snSpec, ok := sub.Type.FindSubElement("SHORT-NAME", version.AllVersions)
	if !ok {
		return Element{}, newError(KindSchemaViolation, "%s has no SHORT-NAME", name)
	}
	value, err := chardata.Parse(snSpec.Type.ChardataSpec(), itemName)
	if err != nil {
		return Element{}, wrapError(KindIncorrectContentType, err, "invalid item name")
	}
	scope, err := m.scopePath(e.id)
	if err != nil {
		return Element{}, err
	}
	path := scope + "/" + value.Format()
	if m.index.Contains(path) {
		return Element{}, newError(KindDuplicateName, "path %s is already in use", path)
	}
	if pos, err = resolvePos(pos, lo, hi); err != nil {
		return Element{}, err
	}

	id := m.alloc(name, sub.Type, e.id)
	sn := m.alloc("SHORT-NAME", snSpec.Type, id)
	m.node(sn).content = []contentItem{{text: value, isText: true}}
	m.node(id).content = []contentItem{{child: sn}}
	m.insertContent(e.id, pos, id)
	if err := m.index.AddIdentifiable(path, id.handle()); err != nil {
		return Element{}, wrapError(KindDuplicateName, err, "register %s", path)
	}
	return Element{model: m, id: id}, nil
}

// GetOrCreateSubElement returns the first child called name, creating it if needed
func (e Element) GetOrCreateSubElement(name string) (Element, error) {
	if child, ok := e.GetSubElement(name); ok {
		return child, nil
	}
	return e.CreateSubElement(name)
}

// GetOrCreateNamedSubElement returns the child called name with the given
// item name, creating it if needed
func (e Element) GetOrCreateNamedSubElement(name, itemName string) (Element, error) {
	for _, child := range e.SubElements() {
		if child.ElementName() != name {
			continue
		}
		if item, ok := child.ItemName(); ok && item == itemName {
			return child, nil
		}
	}
	return e.CreateNamedSubElement(name, itemName)
}

// ListValidSubElements lists the schema children valid in the element's
// version, marking those that can be added given the current content
func (e Element) ListValidSubElements() []ValidSubElementInfo {
	n := e.get()
	if n == nil {
		return nil
	}
	ver := e.model.versionFor(e.id)
	seen := make(map[string]bool)
	var out []ValidSubElementInfo
	for _, sub := range n.etype.SubElements() {
		if !sub.Versions.Contains(ver) || seen[sub.Name] {
			continue
		}
		seen[sub.Name] = true
		_, _, _, err := e.model.checkNewChild(e.id, sub.Name, nodeID{})
		out = append(out, ValidSubElementInfo{
			Name:      sub.Name,
			IsNamed:   sub.Type.IsNamed(),
			IsAllowed: err == nil,
		})
	}
	return out
}

// snapshot is a detached copy of a subtree
type snapshot struct {
	name    string
	etype   spec.ElementType
	attrs   []attribute
	comment *string
	content []snapshotItem
}

type snapshotItem struct {
	child  *snapshot
	text   chardata.CharacterData
	isText bool
}

func (m *Model) snapshot(id nodeID) *snapshot {
	n := m.node(id)
	s := &snapshot{name: n.name, etype: n.etype, attrs: slices.Clone(n.attrs)}
	if n.comment != nil {
		c := *n.comment
		s.comment = &c
	}
	for _, item := range n.content {
		if item.isText {
			s.content = append(s.content, snapshotItem{text: item.text, isText: true})
		} else {
			s.content = append(s.content, snapshotItem{child: m.snapshot(item.child)})
		}
	}
	return s
}

func (s *snapshot) shortName() *snapshot {
	if !s.etype.IsNamed() {
		return nil
	}
	for _, item := range s.content {
		if !item.isText && item.child.name == "SHORT-NAME" {
			return item.child
		}
	}
	return nil
}

func (s *snapshot) itemName() string {
	sn := s.shortName()
	if sn == nil || len(sn.content) != 1 || !sn.content[0].isText {
		return ""
	}
	return sn.content[0].text.Format()
}

// uniquify renames identifiables in s whose path is taken, appending _1, _2, ...
func (m *Model) uniquify(s *snapshot, scope string, claimed map[string]bool) {
	p := scope
	if name := s.itemName(); name != "" {
		p = scope + "/" + name
		for k := 1; m.index.Contains(p) || claimed[p]; k++ {
			candidate := fmt.Sprintf("%s_%d", name, k)
			p = scope + "/" + candidate
			if !m.index.Contains(p) && !claimed[p] {
				s.shortName().content = []snapshotItem{{text: chardata.NewString(candidate), isText: true}}
			}
		}
		claimed[p] = true
	}
	for _, item := range s.content {
		if !item.isText {
			m.uniquify(item.child, p, claimed)
		}
	}
}

// instantiate allocates nodes for s below parent without linking or indexing
func (m *Model) instantiate(s *snapshot, parent nodeID) nodeID {
	id := m.alloc(s.name, s.etype, parent)
	content := make([]contentItem, 0, len(s.content))
	for _, item := range s.content {
		if item.isText {
			content = append(content, contentItem{text: item.text, isText: true})
		} else {
			content = append(content, contentItem{child: m.instantiate(item.child, id)})
		}
	}
	n := m.node(id)
	n.content = content
	n.attrs = slices.Clone(s.attrs)
	if s.comment != nil {
		c := *s.comment
		n.comment = &c
	}
	return id
}

// CreateCopiedSubElement deep-copies other, which may belong to another
// model, and appends the copy. Colliding identifiables are renamed.
func (e Element) CreateCopiedSubElement(other Element) (Element, error) {
	return e.copyHere(other, -1)
}

// CreateCopiedSubElementAt deep-copies other and inserts the copy at pos
func (e Element) CreateCopiedSubElementAt(other Element, pos int) (Element, error) {
	if pos < 0 {
		return Element{}, newError(KindInvalidPosition, "negative position %d", pos)
	}
	return e.copyHere(other, pos)
}

func (e Element) copyHere(other Element, pos int) (Element, error) {
	if _, err := e.live(); err != nil {
		return Element{}, err
	}
	src, err := other.live()
	if err != nil {
		return Element{}, err
	}
	if !src.parent.valid() {
		return Element{}, newError(KindSchemaViolation, "the AUTOSAR root element cannot be copied")
	}
	m := e.model
	sub, lo, hi, err := m.checkNewChild(e.id, src.name, nodeID{})
	if err != nil {
		return Element{}, err
	}
	if sub.Type != src.etype {
		return Element{}, newError(KindSchemaViolation, "%s has a different type at the destination", src.name)
	}
	if pos, err = resolvePos(pos, lo, hi); err != nil {
		return Element{}, err
	}
	scope, err := m.scopePath(e.id)
	if err != nil {
		return Element{}, err
	}

	snap := other.model.snapshot(other.id)
	m.uniquify(snap, scope, make(map[string]bool))

	id := m.instantiate(snap, e.id)
	m.insertContent(e.id, pos, id)
	if err := m.indexSubtree(id); err != nil {
		return Element{}, err
	}
	return Element{model: m, id: id}, nil
}

// MoveElementHere moves other, with its subtree, below this element.
// Within one parent this reorders; across models it copies and removes.
func (e Element) MoveElementHere(other Element) (Element, error) {
	return e.moveHere(other, -1)
}

// MoveElementHereAt moves other below this element at pos
func (e Element) MoveElementHereAt(other Element, pos int) (Element, error) {
	if pos < 0 {
		return Element{}, newError(KindInvalidPosition, "negative position %d", pos)
	}
	return e.moveHere(other, pos)
}

type moveRename struct {
	id      nodeID
	oldPath string
	newPath string
	newName string
}

func (e Element) moveHere(other Element, pos int) (Element, error) {
	if _, err := e.live(); err != nil {
		return Element{}, err
	}
	on, err := other.live()
	if err != nil {
		return Element{}, err
	}
	if other.model != e.model {
		moved, err := e.copyHere(other, pos)
		if err != nil {
			return Element{}, err
		}
		other.model.detach(other.id)
		return moved, nil
	}

	m := e.model
	if !on.parent.valid() {
		return Element{}, newError(KindSchemaViolation, "the AUTOSAR root element cannot be moved")
	}
	if m.isAncestor(other.id, e.id) {
		return Element{}, &Error{Kind: KindCycle, Msg: "cannot move an element below itself", Element: m.xmlPath(other.id)}
	}
	sub, lo, hi, err := m.checkNewChild(e.id, on.name, other.id)
	if err != nil {
		return Element{}, err
	}
	if sub.Type != on.etype {
		return Element{}, newError(KindSchemaViolation, "%s has a different type at the destination", on.name)
	}
	if pos, err = resolvePos(pos, lo, hi); err != nil {
		return Element{}, err
	}

	oldScope, err := m.scopePath(on.parent)
	if err != nil {
		return Element{}, err
	}
	newScope, err := m.scopePath(e.id)
	if err != nil {
		return Element{}, err
	}

	renames := m.planMoveRenames(other.id, oldScope, newScope)

	m.unindexSubtree(other.id)
	oldParent := m.node(on.parent)
	if p := m.contentPos(on.parent, other.id); p >= 0 {
		oldParent.content = slices.Delete(oldParent.content, p, p+1)
	}
	m.node(other.id).parent = e.id
	m.insertContent(e.id, pos, other.id)

	for _, r := range renames {
		if r.newName != "" {
			m.setShortName(r.id, r.newName)
		}
	}
	m.clearMembership(other.id)
	if err := m.indexSubtree(other.id); err != nil {
		return Element{}, err
	}
	for _, r := range renames {
		m.retarget(r.oldPath, r.newPath)
	}
	return other, nil
}

// planMoveRenames computes the new paths of the top-level identifiables of a
// moved subtree, choosing a suffixed name where the destination path is taken
func (m *Model) planMoveRenames(id nodeID, oldScope, newScope string) []moveRename {
	if oldScope == newScope {
		return nil
	}
	moved := make(map[uint64]bool)
	m.walkPaths(id, oldScope, func(cur nodeID, _ *node, _ string) {
		moved[uint64(cur.handle())] = true
	})
	taken := func(p string) bool {
		h, ok := m.index.Lookup(p)
		return ok && !moved[uint64(h)]
	}

	var out []moveRename
	claimed := make(map[string]bool)
	var visit func(cur nodeID)
	visit = func(cur nodeID) {
		name, ok := m.itemName(cur)
		if !ok {
			for _, child := range m.children(cur) {
				visit(child)
			}
			return
		}
		r := moveRename{id: cur, oldPath: oldScope + "/" + name, newPath: newScope + "/" + name}
		for k := 1; taken(r.newPath) || claimed[r.newPath]; k++ {
			r.newName = fmt.Sprintf("%s_%d", name, k)
			r.newPath = newScope + "/" + r.newName
		}
		claimed[r.newPath] = true
		out = append(out, r)
	}
	visit(id)
	return out
}

func (m *Model) setShortName(id nodeID, name string) {
	for _, child := range m.children(id) {
		if cn := m.node(child); cn.name == "SHORT-NAME" {
			cn.content = []contentItem{{text: chardata.NewString(name), isText: true}}
			return
		}
	}
}

// clearMembership makes id and its subtree inherit membership from the new parent
func (m *Model) clearMembership(id nodeID) {
	m.node(id).files = nil
	for _, child := range m.children(id) {
		m.clearMembership(child)
	}
}

// retarget rewrites references below oldPath to point below newPath
func (m *Model) retarget(oldPath, newPath string) {
	if oldPath == newPath {
		return
	}
	for _, r := range m.index.RetargetPrefix(oldPath, newPath) {
		if rn := m.node(idFromHandle(r.Handle)); rn != nil {
			rn.content = []contentItem{{text: chardata.NewString(r.Target), isText: true}}
		}
	}
}

// rename changes the SHORT-NAME of an identifiable element
func (m *Model) rename(id nodeID, name string) error {
	n := m.node(id)
	if !n.etype.IsNamed() {
		return newError(KindNotIdentifiable, "%s is not identifiable", m.xmlPath(id))
	}
	snSpec, ok := n.etype.FindSubElement("SHORT-NAME", version.AllVersions)
	if !ok {
		return newError(KindNotIdentifiable, "%s has no SHORT-NAME", n.name)
	}
	value, err := chardata.Parse(snSpec.Type.ChardataSpec(), name)
	if err != nil {
		return wrapError(KindIncorrectContentType, err, "invalid item name")
	}
	oldPath, err := m.path(id)
	if err != nil {
		return err
	}
	scope, err := m.scopePath(n.parent)
	if err != nil {
		return err
	}
	newPath := scope + "/" + value.Format()
	if newPath == oldPath {
		return nil
	}
	if h, ok := m.index.Lookup(newPath); ok && h != id.handle() {
		return newError(KindDuplicateName, "path %s is already in use", newPath)
	}
	if _, err := m.index.RenamePrefix(oldPath, newPath); err != nil {
		return wrapError(KindDuplicateName, err, "rename %s", oldPath)
	}
	m.setShortName(id, value.Format())
	m.retarget(oldPath, newPath)
	return nil
}

// RemoveSubElement removes child and its subtree. References pointing into
// the removed subtree are left dangling.
func (e Element) RemoveSubElement(child Element) error {
	n, err := e.live()
	if err != nil {
		return err
	}
	cn, err := child.live()
	if err != nil {
		return err
	}
	if child.model != e.model || cn.parent != e.id {
		return newError(KindSchemaViolation, "%s is not a sub element of %s", child.XMLPath(), e.XMLPath())
	}
	if cn.name == "SHORT-NAME" && n.etype.IsNamed() {
		return newError(KindSchemaViolation, "the SHORT-NAME of an identifiable element cannot be removed")
	}
	e.model.detach(child.id)
	return nil
}

// RemoveSubElementKind removes the first child called name
func (e Element) RemoveSubElementKind(name string) error {
	child, ok := e.GetSubElement(name)
	if !ok {
		return newError(KindSchemaViolation, "%s has no %s sub element", e.XMLPath(), name)
	}
	return e.RemoveSubElement(child)
}
