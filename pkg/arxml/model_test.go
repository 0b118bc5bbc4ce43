package arxml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/arxmlstore/pkg/version"
)

func TestCreateFile(t *testing.T) {
	m, f := newTestModel(t, version.AUTOSAR_00050)

	_, err := m.CreateFile("test.arxml", version.AUTOSAR_00046)
	requireKind(t, err, KindFile)
	_, err = m.CreateFile("other.arxml", version.Version(200))
	requireKind(t, err, KindInvalidFile)

	g, err := m.CreateFile("other.arxml", version.AUTOSAR_00046)
	require.NoError(t, err)
	assert.Equal(t, []*File{f, g}, m.Files())
	found, ok := m.FileByName("other.arxml")
	require.True(t, ok)
	assert.Same(t, g, found)
	assert.Contains(t, m.String(), "test.arxml, other.arxml")
	assert.Equal(t, "ArxmlFile{other.arxml, AUTOSAR 00046}", g.String())
}

func TestSetFilename(t *testing.T) {
	_, a, b := newTwoFileModel(t)

	requireKind(t, a.SetFilename("b.arxml"), KindFile)
	require.NoError(t, a.SetFilename("c.arxml"))
	require.NoError(t, b.SetFilename("b.arxml"))
	assert.Equal(t, "c.arxml", a.Filename())
}

func TestRemoveLastFile(t *testing.T) {
	m, f := newTestModel(t, version.AUTOSAR_00050)
	pkg := newPackage(t, m, "Pkg")
	newSignal(t, pkg, "Sig")
	m.RootElement().SetComment("generated")

	require.NoError(t, m.RemoveFile(f))
	assert.Empty(t, m.Files())
	assert.Empty(t, m.RootElement().SubElements())
	assert.False(t, pkg.IsValid())
	_, ok := m.RootElement().Comment()
	assert.False(t, ok)

	stats := m.Stats()
	assert.Equal(t, 1, stats.Elements)
	assert.Equal(t, 0, stats.Identifiables)

	_, err := f.Model()
	requireKind(t, err, KindInvalidFile)
	requireKind(t, m.RemoveFile(f), KindInvalidFile)
	_, err = f.Serialize()
	requireKind(t, err, KindInvalidFile)
}

func TestDuplicateModel(t *testing.T) {
	m, _ := newTestModel(t, version.AUTOSAR_00050)
	pkg := newPackage(t, m, "Pkg")
	elements, err := pkg.CreateSubElement("ELEMENTS")
	require.NoError(t, err)
	pdu, err := elements.CreateNamedSubElement("I-SIGNAL-I-PDU", "Pdu")
	require.NoError(t, err)
	ref := newPduRef(t, pkg)
	require.NoError(t, ref.SetReferenceTarget(pdu))

	dup, err := m.Duplicate()
	require.NoError(t, err)
	assert.Equal(t, m.Stats(), dup.Stats())
	assert.Equal(t, m.SerializeFiles(), dup.SerializeFiles())

	dupPkg, ok := dup.GetElementByPath("/Pkg")
	require.True(t, ok)
	require.NoError(t, dupPkg.SetItemName("Copy"))
	assert.Equal(t, []string{"/Copy", "/Copy/Frame", "/Copy/Frame/Mapping", "/Copy/Pdu"}, dup.IdentifiableElements())
	assert.Equal(t, []string{"/Pkg", "/Pkg/Frame", "/Pkg/Frame/Mapping", "/Pkg/Pdu"}, m.IdentifiableElements())

	files := dup.Files()
	require.Len(t, files, 1)
	owner, err := files[0].Model()
	require.NoError(t, err)
	assert.Same(t, dup, owner)
}

func TestSortModel(t *testing.T) {
	m, _ := newTestModel(t, version.AUTOSAR_00050)
	second := newPackage(t, m, "Pkg2")
	first := newPackage(t, m, "Pkg1")
	newSignal(t, first, "Zeta")
	newSignal(t, first, "Alpha")
	elements, ok := first.GetSubElement("ELEMENTS")
	require.True(t, ok)
	_, err := elements.CreateNamedSubElement("CAN-FRAME", "Frame")
	require.NoError(t, err)

	m.Sort()

	pkgs, ok := m.RootElement().GetSubElement("AR-PACKAGES")
	require.True(t, ok)
	assert.Equal(t, []Element{first, second}, pkgs.SubElements())

	var names []string
	for _, e := range elements.SubElements() {
		name, _ := e.ItemName()
		names = append(names, name)
	}
	// CAN-FRAME precedes I-SIGNAL in the schema
	assert.Equal(t, []string{"Frame", "Alpha", "Zeta"}, names)
}

func TestStaleElementHandle(t *testing.T) {
	m, _ := newTestModel(t, version.AUTOSAR_00050)
	pkg := newPackage(t, m, "Pkg")
	old := newSignal(t, pkg, "Old")
	elements, ok := pkg.GetSubElement("ELEMENTS")
	require.True(t, ok)

	before := m.Stats().Elements
	require.NoError(t, elements.RemoveSubElement(old))
	assert.False(t, old.IsValid())
	assert.Equal(t, before-2, m.Stats().Elements)

	// the freed slots are reused by the next element
	fresh := newSignal(t, pkg, "Fresh")
	assert.Equal(t, before, m.Stats().Elements)
	assert.True(t, fresh.IsValid())
	assert.False(t, old.IsValid())
	assert.NotEqual(t, old, fresh)

	_, err := old.Path()
	requireKind(t, err, KindElementRemoved)
	assert.Equal(t, "", old.ElementName())
}

func TestFreeList(t *testing.T) {
	var fl freeList
	_, ok := fl.PopHead()
	assert.False(t, ok)

	const n = freeChunkCap*2 + 7
	for i := range uint32(n) {
		fl.PushTail(i)
	}
	assert.Equal(t, n, fl.Total())
	for i := range uint32(n) {
		slot, ok := fl.PopHead()
		require.True(t, ok)
		require.Equal(t, i, slot)
	}
	assert.Equal(t, 0, fl.Total())
	_, ok = fl.PopHead()
	assert.False(t, ok)

	// the list is usable again after draining
	fl.PushTail(42)
	slot, ok := fl.PopHead()
	require.True(t, ok)
	assert.Equal(t, uint32(42), slot)
}
