// ABOUTME: Element handle: identity, navigation and traversal
// ABOUTME: A handle is a (model, slot, generation) triple and never owns the node

package arxml

import (
	"iter"
	"strings"

	"github.com/nainya/arxmlstore/pkg/spec"
	"github.com/nainya/arxmlstore/pkg/version"
)

// Element is a comparable handle to one node of a Model. Handles of removed
// elements stay comparable but every accessor reports the removal.
type Element struct {
	model *Model
	id    nodeID
}

func (e Element) get() *node {
	return e.model.node(e.id)
}

func (e Element) live() (*node, error) {
	n := e.get()
	if n == nil {
		return nil, newError(KindElementRemoved, "element was removed")
	}
	return n, nil
}

// IsValid reports whether the element still exists
func (e Element) IsValid() bool {
	return e.get() != nil
}

func (e Element) String() string {
	if !e.IsValid() {
		return "Element{removed}"
	}
	return "Element{" + e.XMLPath() + "}"
}

// Model returns the model containing the element
func (e Element) Model() (*Model, error) {
	if _, err := e.live(); err != nil {
		return nil, err
	}
	return e.model, nil
}

// Parent returns the parent element; the root has none
func (e Element) Parent() (Element, bool) {
	n := e.get()
	if n == nil || !n.parent.valid() {
		return Element{}, false
	}
	return Element{model: e.model, id: n.parent}, true
}

// NamedParent returns the nearest identifiable ancestor
func (e Element) NamedParent() (Element, bool) {
	for p, ok := e.Parent(); ok; p, ok = p.Parent() {
		if p.IsIdentifiable() {
			return p, true
		}
	}
	return Element{}, false
}

// ElementName returns the XML tag of the element
func (e Element) ElementName() string {
	if n := e.get(); n != nil {
		return n.name
	}
	return ""
}

// ElementType returns the schema type of the element
func (e Element) ElementType() spec.ElementType {
	if n := e.get(); n != nil {
		return n.etype
	}
	return 0
}

// ItemName returns the SHORT-NAME of an identifiable element
func (e Element) ItemName() (string, bool) {
	return e.model.itemName(e.id)
}

// SetItemName renames the element. Paths of all descendants and every
// reference pointing into the renamed subtree are updated.
func (e Element) SetItemName(name string) error {
	if _, err := e.live(); err != nil {
		return err
	}
	return e.model.rename(e.id, name)
}

// IsIdentifiable reports whether the element has a SHORT-NAME
func (e Element) IsIdentifiable() bool {
	return e.ElementType().IsNamed()
}

// IsReference reports whether the element holds a reference path
func (e Element) IsReference() bool {
	return e.ElementType().IsRef()
}

// Path returns the short-name path; only identifiable elements have one
func (e Element) Path() (string, error) {
	return e.model.path(e.id)
}

// XMLPath returns a tag-based diagnostic path that exists for every element
func (e Element) XMLPath() string {
	if !e.IsValid() {
		return ""
	}
	return e.model.xmlPath(e.id)
}

// ContentType returns the content model of the element
func (e Element) ContentType() spec.ContentType {
	return e.ElementType().ContentType()
}

// Position returns the index of the element within its parent's content
func (e Element) Position() (int, bool) {
	n := e.get()
	if n == nil || !n.parent.valid() {
		return 0, false
	}
	pos := e.model.contentPos(n.parent, e.id)
	return pos, pos >= 0
}

// SubElements lists the child elements in content order
func (e Element) SubElements() []Element {
	ids := e.model.children(e.id)
	out := make([]Element, len(ids))
	for i, id := range ids {
		out[i] = Element{model: e.model, id: id}
	}
	return out
}

// GetSubElement returns the first child called name
func (e Element) GetSubElement(name string) (Element, bool) {
	for _, id := range e.model.children(e.id) {
		if e.model.node(id).name == name {
			return Element{model: e.model, id: id}, true
		}
	}
	return Element{}, false
}

// GetSubElementAt returns the child element at a content position
func (e Element) GetSubElementAt(pos int) (Element, bool) {
	n := e.get()
	if n == nil || pos < 0 || pos >= len(n.content) || n.content[pos].isText {
		return Element{}, false
	}
	return Element{model: e.model, id: n.content[pos].child}, true
}

// GetNamedSubElement returns the identifiable child whose SHORT-NAME is item
func (e Element) GetNamedSubElement(item string) (Element, bool) {
	for _, id := range e.model.children(e.id) {
		if name, ok := e.model.itemName(id); ok && name == item {
			return Element{model: e.model, id: id}, true
		}
	}
	return Element{}, false
}

// GetBswSubElement returns the child whose DEFINITION-REF is definitionRef,
// given either as the full path or as its last segment
func (e Element) GetBswSubElement(definitionRef string) (Element, bool) {
	for _, sub := range e.SubElements() {
		ref, ok := sub.GetSubElement("DEFINITION-REF")
		if !ok {
			continue
		}
		cdata, ok := ref.CharacterData()
		if !ok {
			continue
		}
		value, ok := cdata.StringValue()
		if !ok {
			continue
		}
		if value == definitionRef || value[strings.LastIndex(value, "/")+1:] == definitionRef {
			return sub, true
		}
	}
	return Element{}, false
}

// ElementsDFS walks the subtree depth-first, starting with the element itself at depth 0
func (e Element) ElementsDFS() iter.Seq2[int, Element] {
	return e.ElementsDFSWithMaxDepth(-1)
}

// ElementsDFSWithMaxDepth walks the subtree down to maxDepth; a negative limit means unlimited
func (e Element) ElementsDFSWithMaxDepth(maxDepth int) iter.Seq2[int, Element] {
	return func(yield func(int, Element) bool) {
		if e.IsValid() {
			e.model.dfs(e.id, 0, maxDepth, nil, yield)
		}
	}
}

// dfs yields id and its subtree; with a file filter only members of f are visited
func (m *Model) dfs(id nodeID, depth, maxDepth int, f *File, yield func(int, Element) bool) bool {
	if f != nil && !containsFile(m.effectiveFiles(id), f) {
		return true
	}
	if !yield(depth, Element{model: m, id: id}) {
		return false
	}
	if maxDepth >= 0 && depth >= maxDepth {
		return true
	}
	for _, child := range m.children(id) {
		if !m.dfs(child, depth+1, maxDepth, f, yield) {
			return false
		}
	}
	return true
}

// MinVersion returns the lowest version among the files containing the element
func (e Element) MinVersion() (version.Version, error) {
	if _, err := e.live(); err != nil {
		return 0, err
	}
	if len(e.model.effectiveFiles(e.id)) == 0 {
		return 0, newError(KindInvalidFile, "element is not part of any file")
	}
	return e.model.versionFor(e.id), nil
}

// Comment returns the XML comment attached to the element
func (e Element) Comment() (string, bool) {
	n := e.get()
	if n == nil || n.comment == nil {
		return "", false
	}
	return *n.comment, true
}

// SetComment attaches an XML comment that is written before the element
func (e Element) SetComment(text string) {
	if n := e.get(); n != nil {
		text = strings.ReplaceAll(text, "--", "- -")
		n.comment = &text
	}
}

// RemoveComment drops the comment of the element
func (e Element) RemoveComment() {
	if n := e.get(); n != nil {
		n.comment = nil
	}
}
