package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/arxmlstore/pkg/version"
)

func TestRootType(t *testing.T) {
	root := Root()
	require.True(t, root.Valid())
	assert.Equal(t, "AUTOSAR", root.Name())
	assert.Equal(t, ContentElements, root.ContentType())

	attr, ok := root.FindAttributeSpec("xsi:schemaLocation")
	require.True(t, ok)
	assert.True(t, attr.Required)

	sub, ok := root.FindSubElement("AR-PACKAGES", version.AllVersions)
	require.True(t, ok)
	assert.Equal(t, 1, sub.Max)
	assert.True(t, sub.Type.SplittableIn(version.AUTOSAR_4_0_1))
}

func TestZeroTypeIsInvalid(t *testing.T) {
	var et ElementType
	assert.False(t, et.Valid())
	assert.Equal(t, "", et.Name())
	assert.Empty(t, et.SubElements())
	_, ok := et.FindSubElement("SHORT-NAME", version.AllVersions)
	assert.False(t, ok)
}

func TestPackageStructure(t *testing.T) {
	pkg, ok := TypeByName("AR-PACKAGE")
	require.True(t, ok)
	assert.True(t, pkg.IsNamed())
	assert.False(t, pkg.IsRef())

	subs := pkg.SubElements()
	require.NotEmpty(t, subs)
	assert.Equal(t, "SHORT-NAME", subs[0].Name)
	assert.Equal(t, 1, subs[0].Min)

	elements, ok := pkg.FindSubElement("ELEMENTS", version.AllVersions)
	require.True(t, ok)
	assert.Equal(t, Bag, elements.Type.ContentMode())

	nested, ok := pkg.FindSubElement("AR-PACKAGES", version.AllVersions)
	require.True(t, ok)
	assert.Greater(t, nested.Index, elements.Index)
}

func TestVersionDependentChildren(t *testing.T) {
	elements, ok := TypeByName("ELEMENTS")
	require.True(t, ok)

	_, ok = elements.FindSubElement("ADAPTIVE-APPLICATION-SW-COMPONENT-TYPE", version.AUTOSAR_4_3_0.Mask())
	assert.False(t, ok)
	sub, ok := elements.FindSubElement("ADAPTIVE-APPLICATION-SW-COMPONENT-TYPE", version.AUTOSAR_00046.Mask())
	require.True(t, ok)
	assert.Equal(t, AdaptivePlatform, sub.Type.StdRestriction())

	tolerance, ok := TypeByName("MULTIDIMENSIONAL-TIME")
	require.True(t, ok)
	_, ok = tolerance.FindSubElement("CSE-CODE", version.AUTOSAR_4_0_1.Mask())
	assert.True(t, ok)
	_, ok = tolerance.FindSubElement("CSE-CODE", version.AUTOSAR_4_0_2.Mask())
	assert.False(t, ok)
}

func TestSameNameDifferentTypes(t *testing.T) {
	base, ok := TypeByName("SW-BASE-TYPE")
	require.True(t, ok)

	old, ok := base.FindSubElement("BASE-TYPE-ENCODING", version.AUTOSAR_4_0_3.Mask())
	require.True(t, ok)
	recent, ok := base.FindSubElement("BASE-TYPE-ENCODING", version.AUTOSAR_00050.Mask())
	require.True(t, ok)

	assert.NotEqual(t, old.Type, recent.Type)
	assert.Equal(t, KindString, old.Type.ChardataSpec().Kind)
	assert.Equal(t, KindPattern, recent.Type.ChardataSpec().Kind)
}

func TestReferenceDestValue(t *testing.T) {
	ref, ok := TypeByName("FIBEX-ELEMENT-REF")
	require.True(t, ok)
	require.True(t, ref.IsRef())

	cluster, ok := TypeByName("CAN-CLUSTER")
	require.True(t, ok)
	dest, ok := ref.ReferenceDestValue(cluster)
	require.True(t, ok)
	assert.Equal(t, "CAN-CLUSTER", dest)
	assert.True(t, cluster.VerifyReferenceDest(dest))

	pkg, _ := TypeByName("AR-PACKAGE")
	_, ok = ref.ReferenceDestValue(pkg)
	assert.False(t, ok)

	_, ok = cluster.ReferenceDestValue(cluster)
	assert.False(t, ok, "non-reference types have no DEST")

	assert.Contains(t, ref.RefDestinations(), "I-SIGNAL")
	assert.Equal(t, []ElementType{cluster}, TypesWithDest("CAN-CLUSTER"))
}

func TestEnumItemVersions(t *testing.T) {
	ref, ok := TypeByName("DERIVED-FROM-BLUEPRINT-REF")
	require.True(t, ok)
	dest, ok := ref.FindAttributeSpec("DEST")
	require.True(t, ok)

	item, ok := dest.Spec.FindItem("ABSTRACT-IMPLEMENTATION-DATA-TYPE")
	require.True(t, ok)
	assert.False(t, item.Versions.Contains(version.AUTOSAR_00043))
	assert.True(t, item.Versions.Contains(version.AUTOSAR_00044))

	_, ok = dest.Spec.FindItem("NOT-A-TYPE")
	assert.False(t, ok)
}

func TestAttributeOrderAndVersions(t *testing.T) {
	sn, ok := TypeByName("SHORT-NAME")
	require.True(t, ok)
	assert.Equal(t, 0, sn.AttributeIndex("S"))
	assert.Equal(t, 1, sn.AttributeIndex("T"))
	assert.Equal(t, -1, sn.AttributeIndex("UUID"))

	bp, ok := sn.FindAttributeSpec("BLUEPRINT-VALUE")
	require.True(t, ok)
	assert.False(t, bp.Versions.Contains(version.AUTOSAR_4_3_0))
	assert.True(t, bp.Versions.Contains(version.Latest))
}

func TestCharacterDataPatterns(t *testing.T) {
	sn, _ := TypeByName("SHORT-NAME")
	cd := sn.ChardataSpec()
	require.NotNil(t, cd)
	assert.Equal(t, 128, cd.MaxLength)
	assert.True(t, cd.MatchPattern("Pkg_1"))
	assert.False(t, cd.MatchPattern("1Pkg"))
	assert.False(t, cd.MatchPattern("Pkg 1"), "pattern is anchored")

	path, ok := CharacterDataSpecByName("ref-path")
	require.True(t, ok)
	assert.True(t, path.MatchPattern("/Pkg/Sub/Elem"))
	assert.False(t, path.MatchPattern("/Pkg//Elem"))
}

func TestContentModes(t *testing.T) {
	cases := map[string]ContentType{
		"L-2":              ContentMixed,
		"SHORT-NAME":       ContentCharacterData,
		"ELEMENTS":         ContentElements,
		"BR":               ContentElements,
		"COMM-CONTROLLERS": ContentElements,
	}
	for name, want := range cases {
		et, ok := TypeByName(name)
		require.True(t, ok, name)
		assert.Equal(t, want, et.ContentType(), name)
	}

	cc, _ := TypeByName("COMM-CONTROLLERS")
	assert.Equal(t, Choice, cc.ContentMode())

	args, _ := TypeByName("ARGUMENTS")
	assert.True(t, args.IsOrdered())
}

func TestKnownNames(t *testing.T) {
	assert.True(t, IsKnownElementName("AUTOSAR"))
	assert.True(t, IsKnownElementName("SHORT-NAME"))
	assert.False(t, IsKnownElementName("NOT-AN-ELEMENT"))
	assert.True(t, IsKnownAttributeName("DEST"))
	assert.False(t, IsKnownAttributeName("BOGUS"))
	assert.Contains(t, ElementNames(), "FIBEX-ELEMENT-REF")
}

func TestLoadRegistryErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "types: ["},
		{"missing root", "root: X\ntypes:\n  A: {mode: sequence}\n"},
		{"unknown mode", "root: A\ntypes:\n  A: {mode: tree}\n"},
		{"unknown child type", "root: A\ntypes:\n  A:\n    mode: sequence\n    children: [{name: B}]\n"},
		{"unknown chardata", "root: A\ntypes:\n  A: {mode: characters, chardata: nope}\n"},
		{"bad regex", "root: A\nchardata:\n  p: {kind: pattern, regex: '('}\ntypes:\n  A: {mode: sequence}\n"},
		{"bad version", "root: A\ntypes:\n  A:\n    mode: sequence\n    children: [{name: A, since: AUTOSAR_9}]\n"},
		{"named without short name", "root: A\ntypes:\n  A: {mode: sequence, named: true}\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadRegistry([]byte(tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadRegistryGroupsAndSets(t *testing.T) {
	doc := `
root: A
chardata:
  s: {kind: string}
attribute_sets:
  base:
    - {name: X, spec: s}
groups:
  head:
    - {name: B}
types:
  A:
    mode: sequence
    attribute_sets: [base]
    attributes:
      - {name: Y, spec: s, required: true}
    children:
      - {group: head}
      - {name: C, type: B, many: true}
  B: {mode: characters, chardata: s}
`
	r, err := loadRegistry([]byte(doc))
	require.NoError(t, err)
	a := r.types[r.root]
	require.Len(t, a.attributes, 2)
	assert.Equal(t, "X", a.attributes[0].Name)
	assert.True(t, a.attributes[1].Required)
	require.Len(t, a.children, 2)
	assert.Equal(t, 1, a.children[0].Max)
	assert.Equal(t, 0, a.children[1].Max)
	assert.Equal(t, a.children[0].Type, a.children[1].Type)
}
