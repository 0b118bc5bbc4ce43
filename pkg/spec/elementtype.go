// ABOUTME: ElementType queries against the schema registry
// ABOUTME: Pure functions of (type, version mask); absence is never an error

// Package spec is the read-only AUTOSAR schema oracle: element types, their
// allowed children per version, attribute specs and character data grammars.
package spec

import (
	"sort"

	"github.com/nainya/arxmlstore/pkg/version"
)

// ElementType identifies an entry in the schema registry. The zero value is invalid.
type ElementType uint16

// Root returns the type of the AUTOSAR document element
func Root() ElementType {
	return schema().root
}

// TypeByName looks up an element type by its registry name
func TypeByName(name string) (ElementType, bool) {
	t, ok := schema().byName[name]
	return t, ok
}

// IsKnownElementName reports whether name is used anywhere in the schema
func IsKnownElementName(name string) bool {
	return schema().elementNames[name]
}

// IsKnownAttributeName reports whether name is used anywhere in the schema
func IsKnownAttributeName(name string) bool {
	return schema().attributeNames[name]
}

// CharacterDataSpecByName returns a named grammar from the registry
func CharacterDataSpecByName(name string) (*CharacterDataSpec, bool) {
	s, ok := schema().chardata[name]
	return s, ok
}

func (t ElementType) def() *typeDef {
	r := schema()
	if t == 0 || int(t) >= len(r.types) {
		return &r.types[0]
	}
	return &r.types[t]
}

// Valid reports whether t refers to a registry entry
func (t ElementType) Valid() bool {
	return t != 0 && int(t) < len(schema().types)
}

// Name returns the registry name of the type
func (t ElementType) Name() string {
	return t.def().name
}

func (t ElementType) String() string {
	if !t.Valid() {
		return "ElementType(invalid)"
	}
	return "ElementType(" + t.Name() + ")"
}

// IsNamed reports whether elements of this type carry a SHORT-NAME
func (t ElementType) IsNamed() bool {
	return t.def().named
}

// IsRef reports whether elements of this type hold a reference path
func (t ElementType) IsRef() bool {
	return t.def().ref
}

// IsOrdered reports whether the order of children is significant
func (t ElementType) IsOrdered() bool {
	return t.def().ordered
}

// Splittable returns the versions in which the children of this type may
// be distributed over several files
func (t ElementType) Splittable() version.Mask {
	return t.def().splittable
}

// SplittableIn reports whether this type is splittable in v
func (t ElementType) SplittableIn(v version.Version) bool {
	return t.def().splittable.Contains(v)
}

// StdRestriction returns the platform restriction of the type
func (t ElementType) StdRestriction() StdRestriction {
	return t.def().restriction
}

// ContentMode returns the arrangement of the children
func (t ElementType) ContentMode() ContentMode {
	return t.def().mode
}

// ContentType returns the content model of the type
func (t ElementType) ContentType() ContentType {
	switch t.def().mode {
	case Characters:
		return ContentCharacterData
	case Mixed:
		return ContentMixed
	}
	return ContentElements
}

// ChardataSpec returns the grammar of the element text, nil if there is none
func (t ElementType) ChardataSpec() *CharacterDataSpec {
	return t.def().chardata
}

// SubElements lists every declared child in declaration order
func (t ElementType) SubElements() []SubElementSpec {
	return t.def().children
}

// FindSubElement returns the child called name whose validity intersects mask.
// One name may be declared more than once with disjoint version ranges.
func (t ElementType) FindSubElement(name string, mask version.Mask) (SubElementSpec, bool) {
	for _, c := range t.def().children {
		if c.Name == name && c.Versions.Intersects(mask) {
			return c, true
		}
	}
	return SubElementSpec{}, false
}

// FindSubElementAnyVersion returns the child called name in any version
func (t ElementType) FindSubElementAnyVersion(name string) (SubElementSpec, bool) {
	return t.FindSubElement(name, version.AllVersions)
}

// Attributes lists the attribute specs in declaration order
func (t ElementType) Attributes() []AttributeSpec {
	return t.def().attributes
}

// FindAttributeSpec returns the spec of the attribute called name
func (t ElementType) FindAttributeSpec(name string) (AttributeSpec, bool) {
	for _, a := range t.def().attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeSpec{}, false
}

// AttributeIndex returns the declaration position of an attribute, -1 if unknown
func (t ElementType) AttributeIndex(name string) int {
	for i, a := range t.def().attributes {
		if a.Name == name {
			return i
		}
	}
	return -1
}

// DestValue returns the DEST token used by references pointing at this type
func (t ElementType) DestValue() string {
	return t.def().dest
}

// ReferenceDestValue returns the DEST value a reference of type t must carry
// to point at an element of type target
func (t ElementType) ReferenceDestValue(target ElementType) (string, bool) {
	if !t.IsRef() {
		return "", false
	}
	dest := target.DestValue()
	if dest == "" {
		return "", false
	}
	attr, ok := t.FindAttributeSpec("DEST")
	if !ok || attr.Spec.Kind != KindEnum {
		return "", false
	}
	if _, ok := attr.Spec.FindItem(dest); !ok {
		return "", false
	}
	return dest, true
}

// VerifyReferenceDest reports whether dest is the DEST token of this type
func (t ElementType) VerifyReferenceDest(dest string) bool {
	return dest != "" && t.def().dest == dest
}

// RefDestinations lists the DEST tokens a reference type accepts
func (t ElementType) RefDestinations() []string {
	if !t.IsRef() {
		return nil
	}
	attr, ok := t.FindAttributeSpec("DEST")
	if !ok || attr.Spec.Kind != KindEnum {
		return nil
	}
	out := make([]string, len(attr.Spec.Items))
	for i, item := range attr.Spec.Items {
		out[i] = item.Item
	}
	return out
}

// TypesWithDest returns the element types whose DEST token is dest
func TypesWithDest(dest string) []ElementType {
	r := schema()
	var out []ElementType
	for i := 1; i < len(r.types); i++ {
		if r.types[i].dest == dest {
			out = append(out, ElementType(i))
		}
	}
	return out
}

// ElementNames returns every element name used in the schema, sorted
func ElementNames() []string {
	r := schema()
	out := make([]string, 0, len(r.elementNames))
	for name := range r.elementNames {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
