// ABOUTME: Character data, mixed content, attributes and references of an element
// ABOUTME: Values are validated against the schema grammar before they are stored

package arxml

import (
	"fmt"
	"slices"

	"github.com/nainya/arxmlstore/pkg/chardata"
	"github.com/nainya/arxmlstore/pkg/spec"
)

// ContentItem is one entry of an element's content: a child element or text
type ContentItem struct {
	Element         Element
	CharacterData   chardata.CharacterData
	IsCharacterData bool
}

// Attribute is a name/value pair of an element
type Attribute struct {
	Name  string
	Value chardata.CharacterData
}

func (a Attribute) String() string {
	return fmt.Sprintf("%s=%q", a.Name, a.Value.Format())
}

// CharacterData returns the value of a character-data element
func (e Element) CharacterData() (chardata.CharacterData, bool) {
	n := e.get()
	if n == nil || n.etype.ContentMode() != spec.Characters || len(n.content) != 1 || !n.content[0].isText {
		return chardata.CharacterData{}, false
	}
	return n.content[0].text, true
}

// isShortNameOfIdentifiable reports whether n is the SHORT-NAME that names its parent
func (m *Model) isShortNameOfIdentifiable(n *node) bool {
	if n.name != "SHORT-NAME" {
		return false
	}
	p := m.node(n.parent)
	return p != nil && p.etype.IsNamed()
}

// SetCharacterData stores value after checking it against the element's
// grammar. Setting a SHORT-NAME renames the parent; setting a reference
// updates the reverse index.
func (e Element) SetCharacterData(value chardata.CharacterData) error {
	n, err := e.live()
	if err != nil {
		return err
	}
	if n.etype.ContentMode() != spec.Characters {
		return &Error{Kind: KindIncorrectContentType, Msg: "element does not hold character data", Element: e.XMLPath()}
	}
	checked, err := chardata.Check(n.etype.ChardataSpec(), value)
	if err != nil {
		return &Error{Kind: KindIncorrectContentType, Msg: "invalid character data", Element: e.XMLPath(), Err: err}
	}

	m := e.model
	if m.isShortNameOfIdentifiable(n) {
		return m.rename(n.parent, checked.Format())
	}
	n.content = []contentItem{{text: checked, isText: true}}
	if n.etype.IsRef() {
		m.index.AddReference(checked.Format(), e.id.handle())
	}
	return nil
}

// RemoveCharacterData clears the value of a character-data element
func (e Element) RemoveCharacterData() error {
	n, err := e.live()
	if err != nil {
		return err
	}
	if n.etype.ContentMode() != spec.Characters {
		return &Error{Kind: KindIncorrectContentType, Msg: "element does not hold character data", Element: e.XMLPath()}
	}
	if e.model.isShortNameOfIdentifiable(n) {
		return newError(KindSchemaViolation, "the SHORT-NAME of an identifiable element cannot be cleared")
	}
	n.content = nil
	if n.etype.IsRef() {
		e.model.index.RemoveReference(e.id.handle())
	}
	return nil
}

// InsertCharacterContentItem inserts a run of text into mixed content
func (e Element) InsertCharacterContentItem(text string, pos int) error {
	n, err := e.live()
	if err != nil {
		return err
	}
	if n.etype.ContentMode() != spec.Mixed {
		return &Error{Kind: KindIncorrectContentType, Msg: "element does not have mixed content", Element: e.XMLPath()}
	}
	if pos < 0 || pos > len(n.content) {
		return newError(KindInvalidPosition, "position %d is outside the allowed range 0..%d", pos, len(n.content))
	}
	n.content = slices.Insert(n.content, pos, contentItem{text: chardata.NewString(text), isText: true})
	return nil
}

// RemoveCharacterContentItem removes the text item at pos from mixed content
func (e Element) RemoveCharacterContentItem(pos int) error {
	n, err := e.live()
	if err != nil {
		return err
	}
	if n.etype.ContentMode() != spec.Mixed {
		return &Error{Kind: KindIncorrectContentType, Msg: "element does not have mixed content", Element: e.XMLPath()}
	}
	if pos < 0 || pos >= len(n.content) || !n.content[pos].isText {
		return newError(KindInvalidPosition, "no character content at position %d", pos)
	}
	n.content = slices.Delete(n.content, pos, pos+1)
	return nil
}

// ContentItemCount returns the number of content items, text and elements
func (e Element) ContentItemCount() int {
	if n := e.get(); n != nil {
		return len(n.content)
	}
	return 0
}

// Content lists every content item in order
func (e Element) Content() []ContentItem {
	n := e.get()
	if n == nil {
		return nil
	}
	out := make([]ContentItem, len(n.content))
	for i, item := range n.content {
		if item.isText {
			out[i] = ContentItem{CharacterData: item.text, IsCharacterData: true}
		} else {
			out[i] = ContentItem{Element: Element{model: e.model, id: item.child}}
		}
	}
	return out
}

// Attributes lists the attributes in schema order
func (e Element) Attributes() []Attribute {
	n := e.get()
	if n == nil {
		return nil
	}
	out := make([]Attribute, len(n.attrs))
	for i, a := range n.attrs {
		out[i] = Attribute{Name: a.name, Value: a.value}
	}
	return out
}

// AttributeValue returns the value of the attribute called name
func (e Element) AttributeValue(name string) (chardata.CharacterData, bool) {
	n := e.get()
	if n == nil {
		return chardata.CharacterData{}, false
	}
	for _, a := range n.attrs {
		if a.name == name {
			return a.value, true
		}
	}
	return chardata.CharacterData{}, false
}

// SetAttribute stores a typed value. A string is converted when the
// attribute holds an enumeration or a number.
func (e Element) SetAttribute(name string, value chardata.CharacterData) error {
	return e.setAttribute(name, func(s *spec.CharacterDataSpec) (chardata.CharacterData, error) {
		return chardata.Check(s, value)
	})
}

// SetAttributeString parses text according to the attribute grammar and stores it
func (e Element) SetAttributeString(name, text string) error {
	return e.setAttribute(name, func(s *spec.CharacterDataSpec) (chardata.CharacterData, error) {
		return chardata.Parse(s, text)
	})
}

func (e Element) setAttribute(name string, convert func(*spec.CharacterDataSpec) (chardata.CharacterData, error)) error {
	n, err := e.live()
	if err != nil {
		return err
	}
	attrSpec, ok := n.etype.FindAttributeSpec(name)
	if !ok {
		return &Error{Kind: KindSchemaViolation, Msg: fmt.Sprintf("%s has no attribute %s", n.name, name), Element: e.XMLPath()}
	}
	ver := e.model.versionFor(e.id)
	if !attrSpec.Versions.Contains(ver) {
		return &Error{Kind: KindSchemaViolation, Msg: fmt.Sprintf("attribute %s is not valid in %s", name, ver), Element: e.XMLPath()}
	}
	value, err := convert(attrSpec.Spec)
	if err != nil {
		return &Error{Kind: KindIncorrectContentType, Msg: "invalid value for attribute " + name, Element: e.XMLPath(), Err: err}
	}
	n.setAttr(name, value)
	return nil
}

// setAttr replaces or inserts an attribute, keeping schema declaration order
func (n *node) setAttr(name string, value chardata.CharacterData) {
	n.attrs = putAttr(n.etype, n.attrs, name, value)
}

func putAttr(etype spec.ElementType, attrs []attribute, name string, value chardata.CharacterData) []attribute {
	for i := range attrs {
		if attrs[i].name == name {
			attrs[i].value = value
			return attrs
		}
	}
	idx := etype.AttributeIndex(name)
	pos := len(attrs)
	for i, a := range attrs {
		if etype.AttributeIndex(a.name) > idx {
			pos = i
			break
		}
	}
	return slices.Insert(attrs, pos, attribute{name: name, value: value})
}

// RemoveAttribute drops an optional attribute; required attributes stay
func (e Element) RemoveAttribute(name string) bool {
	n := e.get()
	if n == nil {
		return false
	}
	if attrSpec, ok := n.etype.FindAttributeSpec(name); ok && attrSpec.Required {
		return false
	}
	for i, a := range n.attrs {
		if a.name == name {
			n.attrs = slices.Delete(n.attrs, i, i+1)
			return true
		}
	}
	return false
}
