package arxml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/arxmlstore/pkg/version"
)

func newTwoFileModel(t *testing.T) (*Model, *File, *File) {
	t.Helper()
	m := NewModel()
	a, err := m.CreateFile("a.arxml", version.AUTOSAR_00050)
	require.NoError(t, err)
	b, err := m.CreateFile("b.arxml", version.AUTOSAR_00050)
	require.NoError(t, err)
	return m, a, b
}

func itemNames(f *File) []string {
	var names []string
	for _, e := range f.ElementsDFS() {
		if name, ok := e.ItemName(); ok {
			names = append(names, name)
		}
	}
	return names
}

func TestFileMembership(t *testing.T) {
	m, a, b := newTwoFileModel(t)
	pkg := newPackage(t, m, "Pkg")
	sig := newSignal(t, pkg, "Sig")

	local, files := sig.FileMembership()
	assert.False(t, local)
	assert.Equal(t, []*File{a, b}, files)

	require.NoError(t, sig.RemoveFromFile(b))
	local, files = sig.FileMembership()
	assert.True(t, local)
	assert.Equal(t, []*File{a}, files)
	assert.Equal(t, []string{"Pkg"}, itemNames(b))

	textA, err := a.Serialize()
	require.NoError(t, err)
	assert.Contains(t, textA, "<SHORT-NAME>Sig</SHORT-NAME>")
	textB, err := b.Serialize()
	require.NoError(t, err)
	assert.NotContains(t, textB, "<SHORT-NAME>Sig</SHORT-NAME>")

	require.NoError(t, sig.AddToFile(b))
	_, files = sig.FileMembership()
	assert.Equal(t, []*File{a, b}, files)
	assert.Equal(t, []string{"Pkg", "Sig"}, itemNames(b))

	// the last file takes the element with it
	require.NoError(t, sig.RemoveFromFile(a))
	require.NoError(t, sig.RemoveFromFile(b))
	assert.False(t, sig.IsValid())
	_, ok := m.GetElementByPath("/Pkg/Sig")
	assert.False(t, ok)
}

func TestMembershipNeedsSplittableParent(t *testing.T) {
	m, a, b := newTwoFileModel(t)
	pkg := newPackage(t, m, "Pkg")
	sig := newSignal(t, pkg, "Sig")

	shortName, ok := pkg.GetSubElement("SHORT-NAME")
	require.True(t, ok)
	requireKind(t, shortName.RemoveFromFile(a), KindSchemaViolation)
	requireKind(t, m.RootElement().RemoveFromFile(a), KindSchemaViolation)

	require.NoError(t, pkg.RemoveFromFile(b))
	assert.Empty(t, itemNames(b))

	// ELEMENTS cannot join b on its own
	requireKind(t, sig.AddToFile(b), KindSchemaViolation)

	require.NoError(t, pkg.AddToFile(b))
	assert.Equal(t, []string{"Pkg", "Sig"}, itemNames(b))
}

func TestAddToFileAddsContainers(t *testing.T) {
	m, a, b := newTwoFileModel(t)
	pkg := newPackage(t, m, "Pkg")
	newSignal(t, pkg, "Sig")
	other := newPackage(t, m, "Other")

	pkgs, ok := m.RootElement().GetSubElement("AR-PACKAGES")
	require.True(t, ok)
	require.NoError(t, pkgs.RemoveFromFile(b))
	assert.Empty(t, itemNames(b))

	require.NoError(t, pkg.AddToFile(b))
	assert.Equal(t, []string{"Pkg", "Sig"}, itemNames(b))

	local, files := other.FileMembership()
	assert.True(t, local)
	assert.Equal(t, []*File{a}, files)
	_, files = pkgs.FileMembership()
	assert.Equal(t, []*File{a, b}, files)
}

func TestMembershipForeignFile(t *testing.T) {
	m, _, _ := newTwoFileModel(t)
	pkg := newPackage(t, m, "Pkg")

	other := NewModel()
	foreign, err := other.CreateFile("foreign.arxml", version.AUTOSAR_00050)
	require.NoError(t, err)
	requireKind(t, pkg.AddToFile(foreign), KindInvalidFile)
	requireKind(t, pkg.RemoveFromFile(foreign), KindInvalidFile)
	requireKind(t, pkg.AddToFile(nil), KindInvalidFile)
}
