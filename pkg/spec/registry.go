// ABOUTME: Loads the embedded schema tables into an immutable registry
// ABOUTME: Decoded once on first use; all lookups are read-only afterwards

package spec

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/nainya/arxmlstore/pkg/version"
)

//go:embed schema.yaml
var schemaYAML []byte

type registry struct {
	types          []typeDef // index 0 is the invalid type
	byName         map[string]ElementType
	chardata       map[string]*CharacterDataSpec
	root           ElementType
	elementNames   map[string]bool
	attributeNames map[string]bool
}

var (
	regOnce sync.Once
	reg     *registry
)

// schema returns the process-wide registry, loading it on first use
func schema() *registry {
	regOnce.Do(func() {
		r, err := loadRegistry(schemaYAML)
		if err != nil {
			panic(fmt.Sprintf("spec: invalid embedded schema: %v", err))
		}
		reg = r
	})
	return reg
}

// yaml document layout

type schemaFile struct {
	Root          string                    `yaml:"root"`
	CharacterData map[string]chardataDef    `yaml:"chardata"`
	AttributeSets map[string][]attributeDef `yaml:"attribute_sets"`
	Groups        map[string][]childDef     `yaml:"groups"`
	Types         map[string]typeYAML       `yaml:"types"`
}

type chardataDef struct {
	Kind               string        `yaml:"kind"`
	Items              []enumItemDef `yaml:"items"`
	Regex              string        `yaml:"regex"`
	MaxLength          int           `yaml:"max_length"`
	PreserveWhitespace bool          `yaml:"preserve_whitespace"`
}

type versionRange struct {
	Since string `yaml:"since"`
	Until string `yaml:"until"`
}

type enumItemDef struct {
	Item         string `yaml:"item"`
	versionRange `yaml:",inline"`
}

// UnmarshalYAML accepts either a bare token or a mapping with version limits
func (d *enumItemDef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		d.Item = value.Value
		return nil
	}
	type plain enumItemDef
	return value.Decode((*plain)(d))
}

type attributeDef struct {
	Name         string `yaml:"name"`
	Spec         string `yaml:"spec"`
	Required     bool   `yaml:"required"`
	versionRange `yaml:",inline"`
}

type childDef struct {
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	Group        string `yaml:"group"`
	Min          int    `yaml:"min"`
	Max          int    `yaml:"max"`
	Many         bool   `yaml:"many"`
	versionRange `yaml:",inline"`
}

type typeYAML struct {
	Mode          string         `yaml:"mode"`
	Named         bool           `yaml:"named"`
	Ref           bool           `yaml:"ref"`
	Ordered       bool           `yaml:"ordered"`
	Splittable    *versionRange  `yaml:"splittable"`
	Restriction   string         `yaml:"restriction"`
	CharacterData string         `yaml:"chardata"`
	Dest          string         `yaml:"dest"`
	AttributeSets []string       `yaml:"attribute_sets"`
	Attributes    []attributeDef `yaml:"attributes"`
	Children      []childDef     `yaml:"children"`
}

func (r versionRange) mask() (version.Mask, error) {
	first, last := version.AUTOSAR_4_0_1, version.Latest
	var err error
	if r.Since != "" {
		if first, err = version.Parse(r.Since); err != nil {
			return 0, err
		}
	}
	if r.Until != "" {
		if last, err = version.Parse(r.Until); err != nil {
			return 0, err
		}
	}
	m := version.Range(first, last)
	if m.Empty() {
		return 0, fmt.Errorf("empty version range %s..%s", r.Since, r.Until)
	}
	return m, nil
}

var contentModes = map[string]ContentMode{
	"sequence":   Sequence,
	"choice":     Choice,
	"bag":        Bag,
	"characters": Characters,
	"mixed":      Mixed,
}

var chardataKinds = map[string]CharacterDataKind{
	"enum":             KindEnum,
	"pattern":          KindPattern,
	"string":           KindString,
	"unsigned_integer": KindUnsignedInteger,
	"double":           KindDouble,
}

var restrictions = map[string]StdRestriction{
	"":         NotRestricted,
	"classic":  ClassicPlatform,
	"adaptive": AdaptivePlatform,
}

// loadRegistry decodes and cross-checks the schema document
func loadRegistry(data []byte) (*registry, error) {
	var doc schemaFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	r := &registry{
		byName:         make(map[string]ElementType, len(doc.Types)),
		chardata:       make(map[string]*CharacterDataSpec, len(doc.CharacterData)),
		elementNames:   make(map[string]bool),
		attributeNames: make(map[string]bool),
	}

	for name, def := range doc.CharacterData {
		spec, err := buildCharacterDataSpec(name, def)
		if err != nil {
			return nil, err
		}
		r.chardata[name] = spec
	}

	// Deterministic type ids
	names := make([]string, 0, len(doc.Types))
	for name := range doc.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	r.types = make([]typeDef, len(names)+1)
	for i, name := range names {
		r.byName[name] = ElementType(i + 1)
	}

	for i, name := range names {
		def, err := r.buildType(name, doc.Types[name], &doc)
		if err != nil {
			return nil, err
		}
		r.types[i+1] = def
	}

	root, ok := r.byName[doc.Root]
	if !ok {
		return nil, fmt.Errorf("root type %q is not defined", doc.Root)
	}
	r.root = root
	r.elementNames[doc.Root] = true
	return r, nil
}

func buildCharacterDataSpec(name string, def chardataDef) (*CharacterDataSpec, error) {
	kind, ok := chardataKinds[def.Kind]
	if !ok {
		return nil, fmt.Errorf("chardata %s: unknown kind %q", name, def.Kind)
	}

	spec := &CharacterDataSpec{
		Name:               name,
		Kind:               kind,
		Regex:              def.Regex,
		MaxLength:          def.MaxLength,
		PreserveWhitespace: def.PreserveWhitespace,
	}

	switch kind {
	case KindEnum:
		if len(def.Items) == 0 {
			return nil, fmt.Errorf("chardata %s: enum without items", name)
		}
		for _, item := range def.Items {
			mask, err := item.mask()
			if err != nil {
				return nil, fmt.Errorf("chardata %s item %s: %w", name, item.Item, err)
			}
			spec.Items = append(spec.Items, EnumItemSpec{Item: item.Item, Versions: mask})
		}
	case KindPattern:
		re, err := regexp.Compile("^(?:" + def.Regex + ")$")
		if err != nil {
			return nil, fmt.Errorf("chardata %s: %w", name, err)
		}
		spec.re = re
	}
	return spec, nil
}

func (r *registry) buildType(name string, def typeYAML, doc *schemaFile) (typeDef, error) {
	mode, ok := contentModes[def.Mode]
	if !ok {
		return typeDef{}, fmt.Errorf("type %s: unknown mode %q", name, def.Mode)
	}
	restriction, ok := restrictions[def.Restriction]
	if !ok {
		return typeDef{}, fmt.Errorf("type %s: unknown restriction %q", name, def.Restriction)
	}

	td := typeDef{
		name:        name,
		mode:        mode,
		named:       def.Named,
		ref:         def.Ref,
		ordered:     def.Ordered,
		restriction: restriction,
		dest:        def.Dest,
	}

	if def.Splittable != nil {
		mask, err := def.Splittable.mask()
		if err != nil {
			return typeDef{}, fmt.Errorf("type %s splittable: %w", name, err)
		}
		td.splittable = mask
	}

	if def.CharacterData != "" {
		spec, ok := r.chardata[def.CharacterData]
		if !ok {
			return typeDef{}, fmt.Errorf("type %s: unknown chardata %q", name, def.CharacterData)
		}
		td.chardata = spec
	}
	if mode == Characters && td.chardata == nil {
		return typeDef{}, fmt.Errorf("type %s: character content without chardata spec", name)
	}

	attrs := make([]attributeDef, 0, len(def.Attributes))
	for _, set := range def.AttributeSets {
		group, ok := doc.AttributeSets[set]
		if !ok {
			return typeDef{}, fmt.Errorf("type %s: unknown attribute set %q", name, set)
		}
		attrs = append(attrs, group...)
	}
	attrs = append(attrs, def.Attributes...)
	for _, a := range attrs {
		spec, ok := r.chardata[a.Spec]
		if !ok {
			return typeDef{}, fmt.Errorf("type %s attribute %s: unknown chardata %q", name, a.Name, a.Spec)
		}
		mask, err := a.mask()
		if err != nil {
			return typeDef{}, fmt.Errorf("type %s attribute %s: %w", name, a.Name, err)
		}
		td.attributes = append(td.attributes, AttributeSpec{Name: a.Name, Spec: spec, Required: a.Required, Versions: mask})
		r.attributeNames[a.Name] = true
	}

	children, err := expandGroups(def.Children, doc.Groups, 0)
	if err != nil {
		return typeDef{}, fmt.Errorf("type %s: %w", name, err)
	}
	if len(children) > 0 && mode == Characters {
		return typeDef{}, fmt.Errorf("type %s: character content cannot have children", name)
	}
	for i, c := range children {
		typeName := c.Type
		if typeName == "" {
			typeName = c.Name
		}
		et, ok := r.byName[typeName]
		if !ok {
			return typeDef{}, fmt.Errorf("type %s child %s: unknown type %q", name, c.Name, typeName)
		}
		mask, err := c.mask()
		if err != nil {
			return typeDef{}, fmt.Errorf("type %s child %s: %w", name, c.Name, err)
		}
		maxCount := c.Max
		if c.Many {
			maxCount = 0
		} else if maxCount == 0 {
			maxCount = 1
		}
		td.children = append(td.children, SubElementSpec{
			Name:     c.Name,
			Type:     et,
			Index:    i,
			Min:      c.Min,
			Max:      maxCount,
			Versions: mask,
		})
		r.elementNames[c.Name] = true
	}

	if td.named && (len(td.children) == 0 || td.children[0].Name != "SHORT-NAME") {
		return typeDef{}, fmt.Errorf("type %s: named types must start with SHORT-NAME", name)
	}
	return td, nil
}

// expandGroups inlines group references in declaration order
func expandGroups(defs []childDef, groups map[string][]childDef, depth int) ([]childDef, error) {
	if depth > 8 {
		return nil, fmt.Errorf("group nesting too deep")
	}
	var out []childDef
	for _, d := range defs {
		if d.Group == "" {
			out = append(out, d)
			continue
		}
		group, ok := groups[d.Group]
		if !ok {
			return nil, fmt.Errorf("unknown group %q", d.Group)
		}
		expanded, err := expandGroups(group, groups, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return out, nil
}
