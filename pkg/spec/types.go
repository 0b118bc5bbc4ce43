// ABOUTME: Schema registry data types
// ABOUTME: Element types, content modes, attribute and character data specs

package spec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nainya/arxmlstore/pkg/version"
)

// ContentMode describes how the children of an element are arranged
type ContentMode uint8

const (
	// Sequence children follow the declared order
	Sequence ContentMode = iota
	// Choice allows children of a single kind only
	Choice
	// Bag allows children in any order
	Bag
	// Characters holds a single character data value
	Characters
	// Mixed interleaves text and child elements
	Mixed
)

func (m ContentMode) String() string {
	switch m {
	case Sequence:
		return "Sequence"
	case Choice:
		return "Choice"
	case Bag:
		return "Bag"
	case Characters:
		return "Characters"
	case Mixed:
		return "Mixed"
	}
	return fmt.Sprintf("ContentMode(%d)", uint8(m))
}

// ContentType is the externally visible content model of an element
type ContentType uint8

const (
	ContentElements ContentType = iota
	ContentCharacterData
	ContentMixed
)

func (c ContentType) String() string {
	switch c {
	case ContentElements:
		return "Elements"
	case ContentCharacterData:
		return "CharacterData"
	case ContentMixed:
		return "Mixed"
	}
	return fmt.Sprintf("ContentType(%d)", uint8(c))
}

// StdRestriction marks element types that belong to one platform only
type StdRestriction uint8

const (
	NotRestricted StdRestriction = iota
	ClassicPlatform
	AdaptivePlatform
)

func (r StdRestriction) String() string {
	switch r {
	case ClassicPlatform:
		return "ClassicPlatform"
	case AdaptivePlatform:
		return "AdaptivePlatform"
	}
	return "NotRestricted"
}

// CharacterDataKind selects the value grammar of a CharacterDataSpec
type CharacterDataKind uint8

const (
	KindEnum CharacterDataKind = iota + 1
	KindPattern
	KindString
	KindUnsignedInteger
	KindDouble
)

func (k CharacterDataKind) String() string {
	switch k {
	case KindEnum:
		return "Enum"
	case KindPattern:
		return "Pattern"
	case KindString:
		return "String"
	case KindUnsignedInteger:
		return "UnsignedInteger"
	case KindDouble:
		return "Double"
	}
	return fmt.Sprintf("CharacterDataKind(%d)", uint8(k))
}

// EnumItemSpec is one allowed token of an enumeration
type EnumItemSpec struct {
	Item     string
	Versions version.Mask
}

// CharacterDataSpec is the grammar of an element's text or an attribute value
type CharacterDataSpec struct {
	Name               string
	Kind               CharacterDataKind
	Items              []EnumItemSpec // KindEnum
	Regex              string         // KindPattern
	MaxLength          int            // KindPattern, KindString; 0 means no limit
	PreserveWhitespace bool           // KindString

	re *regexp.Regexp
}

// MatchPattern checks text against the anchored pattern of a KindPattern spec
func (s *CharacterDataSpec) MatchPattern(text string) bool {
	if s.re == nil {
		return false
	}
	return s.re.MatchString(text)
}

// FindItem returns the enumeration entry for token
func (s *CharacterDataSpec) FindItem(token string) (EnumItemSpec, bool) {
	for _, item := range s.Items {
		if item.Item == token {
			return item, true
		}
	}
	return EnumItemSpec{}, false
}

func (s *CharacterDataSpec) String() string {
	switch s.Kind {
	case KindEnum:
		items := make([]string, len(s.Items))
		for i, item := range s.Items {
			items[i] = item.Item
		}
		return "Enum[" + strings.Join(items, ", ") + "]"
	case KindPattern:
		if s.MaxLength > 0 {
			return fmt.Sprintf("Pattern(%s, max %d)", s.Regex, s.MaxLength)
		}
		return fmt.Sprintf("Pattern(%s)", s.Regex)
	case KindString:
		return fmt.Sprintf("String(preserve_whitespace=%t, max %d)", s.PreserveWhitespace, s.MaxLength)
	}
	return s.Kind.String()
}

// AttributeSpec describes one attribute of an element type
type AttributeSpec struct {
	Name     string
	Spec     *CharacterDataSpec
	Required bool
	Versions version.Mask
}

func (a AttributeSpec) String() string {
	return fmt.Sprintf("AttributeSpec{%s: %s, required=%t}", a.Name, a.Spec, a.Required)
}

// SubElementSpec describes one allowed child of an element type
type SubElementSpec struct {
	Name     string
	Type     ElementType
	Index    int // declaration position, used for sequence checks and sorting
	Min      int
	Max      int // 0 means unbounded
	Versions version.Mask
}

// Unbounded reports whether any number of this child may appear
func (s SubElementSpec) Unbounded() bool {
	return s.Max == 0
}

// typeDef is the resolved registry entry behind an ElementType
type typeDef struct {
	name        string
	mode        ContentMode
	named       bool
	ref         bool
	ordered     bool
	splittable  version.Mask
	restriction StdRestriction
	chardata    *CharacterDataSpec
	dest        string
	attributes  []AttributeSpec
	children    []SubElementSpec
}
