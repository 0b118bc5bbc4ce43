// ABOUTME: Version compatibility check of a model or a single file
// ABOUTME: Reports elements, attributes and enum values unknown in a target version

package arxml

import (
	"fmt"

	"github.com/nainya/arxmlstore/pkg/chardata"
	"github.com/nainya/arxmlstore/pkg/spec"
	"github.com/nainya/arxmlstore/pkg/version"
)

// CompatKind classifies a CompatibilityError
type CompatKind int

const (
	IncompatibleElement CompatKind = iota + 1
	IncompatibleAttribute
	IncompatibleAttributeValue
)

func (k CompatKind) String() string {
	switch k {
	case IncompatibleElement:
		return "IncompatibleElement"
	case IncompatibleAttribute:
		return "IncompatibleAttribute"
	case IncompatibleAttributeValue:
		return "IncompatibleAttributeValue"
	}
	return fmt.Sprintf("CompatKind(%d)", int(k))
}

// CompatibilityError is one item that is not valid in the target version.
// Attribute is empty when an enumeration value of character data is reported.
type CompatibilityError struct {
	Kind      CompatKind
	Element   Element
	Attribute string
	Value     string
	Versions  version.Mask
}

func (e CompatibilityError) Error() string {
	where := e.Element.XMLPath()
	switch e.Kind {
	case IncompatibleElement:
		return fmt.Sprintf("element %s is only valid in %s", where, e.Versions)
	case IncompatibleAttribute:
		return fmt.Sprintf("attribute %s of %s is only valid in %s", e.Attribute, where, e.Versions)
	default:
		if e.Attribute == "" {
			return fmt.Sprintf("value %q of %s is only valid in %s", e.Value, where, e.Versions)
		}
		return fmt.Sprintf("value %q of attribute %s of %s is only valid in %s", e.Value, e.Attribute, where, e.Versions)
	}
}

// checkCompat walks the subtree at id. With a file filter only members of f
// are checked. The returned mask holds the versions every checked item is valid in.
func (m *Model) checkCompat(id nodeID, f *File, target version.Version) ([]CompatibilityError, version.Mask) {
	c := compatChecker{model: m, file: f, target: target, mask: version.AllVersions}
	c.visit(id)
	return c.errs, c.mask
}

type compatChecker struct {
	model  *Model
	file   *File
	target version.Version
	mask   version.Mask
	errs   []CompatibilityError
}

func (c *compatChecker) visit(id nodeID) {
	m := c.model
	n := m.node(id)
	if n == nil {
		return
	}
	if c.file != nil && !containsFile(m.effectiveFiles(id), c.file) {
		return
	}
	elem := Element{model: m, id: id}

	if p := m.node(n.parent); p != nil {
		sub, ok := subSpecFor(p.etype, n.name, n.etype)
		valid := version.Mask(0)
		if ok {
			valid = sub.Versions
		}
		c.mask &= valid
		if !valid.Contains(c.target) {
			c.errs = append(c.errs, CompatibilityError{Kind: IncompatibleElement, Element: elem, Versions: valid})
			return
		}
	}

	for _, a := range n.attrs {
		as, ok := n.etype.FindAttributeSpec(a.name)
		if !ok {
			continue
		}
		c.mask &= as.Versions
		if !as.Versions.Contains(c.target) {
			c.errs = append(c.errs, CompatibilityError{
				Kind:      IncompatibleAttribute,
				Element:   elem,
				Attribute: a.name,
				Versions:  as.Versions,
			})
			continue
		}
		c.checkValue(elem, a.name, as.Spec, a.value)
	}

	if n.etype.ContentMode() == spec.Characters && len(n.content) == 1 && n.content[0].isText {
		c.checkValue(elem, "", n.etype.ChardataSpec(), n.content[0].text)
	}

	for _, child := range m.children(id) {
		c.visit(child)
	}
}

func (c *compatChecker) checkValue(elem Element, attr string, s *spec.CharacterDataSpec, value chardata.CharacterData) {
	valid := chardata.Versions(s, value)
	c.mask &= valid
	if !valid.Contains(c.target) {
		c.errs = append(c.errs, CompatibilityError{
			Kind:      IncompatibleAttributeValue,
			Element:   elem,
			Attribute: attr,
			Value:     value.Format(),
			Versions:  valid,
		})
	}
}
