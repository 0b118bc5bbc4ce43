// ABOUTME: Path lookups and reference resolution over the path index
// ABOUTME: References are stored as text and resolved lazily

package arxml

import (
	"fmt"

	"github.com/nainya/arxmlstore/pkg/chardata"
)

// GetElementByPath resolves an AUTOSAR short-name path
func (m *Model) GetElementByPath(path string) (Element, bool) {
	h, ok := m.index.Lookup(path)
	if !ok {
		return Element{}, false
	}
	id := idFromHandle(h)
	if m.node(id) == nil {
		return Element{}, false
	}
	return Element{model: m, id: id}, true
}

// IdentifiableElements lists the paths of all identifiable elements, sorted
func (m *Model) IdentifiableElements() []string {
	entries := m.index.Identifiables()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

// GetReferencesTo returns every reference element whose target is path
func (m *Model) GetReferencesTo(path string) []Element {
	handles := m.index.ReferencesTo(path)
	out := make([]Element, 0, len(handles))
	for _, h := range handles {
		if id := idFromHandle(h); m.node(id) != nil {
			out = append(out, Element{model: m, id: id})
		}
	}
	return out
}

// CheckReferences returns the reference elements whose target path does not
// resolve. It never fails.
func (m *Model) CheckReferences() []Element {
	var out []Element
	for _, ref := range m.index.References() {
		if m.index.Contains(ref.Target) {
			continue
		}
		if id := idFromHandle(ref.Handle); m.node(id) != nil {
			out = append(out, Element{model: m, id: id})
		}
	}
	return out
}

// SetReferenceTarget points a reference element at target, writing both the
// path and the matching DEST attribute
func (e Element) SetReferenceTarget(target Element) error {
	n, err := e.live()
	if err != nil {
		return err
	}
	if !n.etype.IsRef() {
		return &Error{Kind: KindInvalidReference, Msg: "element is not a reference", Element: e.XMLPath()}
	}
	tn, err := target.live()
	if err != nil {
		return err
	}
	if target.model != e.model {
		return newError(KindInvalidReference, "reference target belongs to another model")
	}
	if !tn.etype.IsNamed() {
		return newError(KindNotIdentifiable, "%s is not identifiable", target.XMLPath())
	}
	dest, ok := n.etype.ReferenceDestValue(tn.etype)
	if !ok {
		return &Error{
			Kind:    KindInvalidReference,
			Msg:     fmt.Sprintf("%s cannot refer to %s", n.name, tn.name),
			Element: e.XMLPath(),
		}
	}
	path, err := target.Path()
	if err != nil {
		return err
	}
	value, err := chardata.Parse(n.etype.ChardataSpec(), path)
	if err != nil {
		return &Error{Kind: KindIncorrectContentType, Msg: "invalid reference path", Element: e.XMLPath(), Err: err}
	}
	destSpec, _ := n.etype.FindAttributeSpec("DEST")
	destValue, err := chardata.Parse(destSpec.Spec, dest)
	if err != nil {
		return &Error{Kind: KindIncorrectContentType, Msg: "invalid DEST value", Element: e.XMLPath(), Err: err}
	}

	n.content = []contentItem{{text: value, isText: true}}
	n.setAttr("DEST", destValue)
	e.model.index.AddReference(path, e.id.handle())
	return nil
}

// GetReferenceTarget resolves the stored path of a reference element
func (e Element) GetReferenceTarget() (Element, error) {
	n, err := e.live()
	if err != nil {
		return Element{}, err
	}
	if !n.etype.IsRef() {
		return Element{}, &Error{Kind: KindInvalidReference, Msg: "element is not a reference", Element: e.XMLPath()}
	}
	path, ok := e.model.refTarget(n)
	if !ok {
		return Element{}, &Error{Kind: KindInvalidReference, Msg: "reference has no target path", Element: e.XMLPath()}
	}
	target, ok := e.model.GetElementByPath(path)
	if !ok {
		return Element{}, &Error{Kind: KindReferenceResolution, Msg: "no element at " + path, Element: e.XMLPath()}
	}
	if dest, ok := e.AttributeValue("DEST"); ok {
		if !target.ElementType().VerifyReferenceDest(dest.Format()) {
			return Element{}, &Error{
				Kind:    KindInvalidReference,
				Msg:     fmt.Sprintf("DEST %s does not match the %s at %s", dest.Format(), target.ElementName(), path),
				Element: e.XMLPath(),
			}
		}
	}
	return target, nil
}
