// ABOUTME: AUTOSAR schema release identifiers and version masks
// ABOUTME: Versions are totally ordered; masks hold one bit per version

package version

// Version identifies one standardized AUTOSAR schema release.
type Version uint8

const (
	AUTOSAR_4_0_1 Version = iota
	AUTOSAR_4_0_2
	AUTOSAR_4_0_3
	AUTOSAR_4_1_1
	AUTOSAR_4_1_2
	AUTOSAR_4_1_3
	AUTOSAR_4_2_1
	AUTOSAR_4_2_2
	AUTOSAR_4_3_0
	AUTOSAR_00042
	AUTOSAR_00043
	AUTOSAR_00044
	AUTOSAR_00045
	AUTOSAR_00046
	AUTOSAR_00047
	AUTOSAR_00048
	AUTOSAR_00049
	AUTOSAR_00050
	AUTOSAR_00051
	AUTOSAR_00052

	// Latest is the newest supported release
	Latest = AUTOSAR_00052
)

// Count is the number of known releases
const Count = int(AUTOSAR_00052) + 1

type versionInfo struct {
	name    string // AUTOSAR_4_0_1
	xsd     string // AUTOSAR_4-0-1.xsd
	display string // AUTOSAR 4.0.1
}

var versionTable = [Count]versionInfo{
	{"AUTOSAR_4_0_1", "AUTOSAR_4-0-1.xsd", "AUTOSAR 4.0.1"},
	{"AUTOSAR_4_0_2", "AUTOSAR_4-0-2.xsd", "AUTOSAR 4.0.2"},
	{"AUTOSAR_4_0_3", "AUTOSAR_4-0-3.xsd", "AUTOSAR 4.0.3"},
	{"AUTOSAR_4_1_1", "AUTOSAR_4-1-1.xsd", "AUTOSAR 4.1.1"},
	{"AUTOSAR_4_1_2", "AUTOSAR_4-1-2.xsd", "AUTOSAR 4.1.2"},
	{"AUTOSAR_4_1_3", "AUTOSAR_4-1-3.xsd", "AUTOSAR 4.1.3"},
	{"AUTOSAR_4_2_1", "AUTOSAR_4-2-1.xsd", "AUTOSAR 4.2.1"},
	{"AUTOSAR_4_2_2", "AUTOSAR_4-2-2.xsd", "AUTOSAR 4.2.2"},
	{"AUTOSAR_4_3_0", "AUTOSAR_4-3-0.xsd", "AUTOSAR 4.3.0"},
	{"AUTOSAR_00042", "AUTOSAR_00042.xsd", "AUTOSAR 00042"},
	{"AUTOSAR_00043", "AUTOSAR_00043.xsd", "AUTOSAR 00043"},
	{"AUTOSAR_00044", "AUTOSAR_00044.xsd", "AUTOSAR 00044"},
	{"AUTOSAR_00045", "AUTOSAR_00045.xsd", "AUTOSAR 00045"},
	{"AUTOSAR_00046", "AUTOSAR_00046.xsd", "AUTOSAR 00046"},
	{"AUTOSAR_00047", "AUTOSAR_00047.xsd", "AUTOSAR 00047"},
	{"AUTOSAR_00048", "AUTOSAR_00048.xsd", "AUTOSAR 00048"},
	{"AUTOSAR_00049", "AUTOSAR_00049.xsd", "AUTOSAR 00049"},
	{"AUTOSAR_00050", "AUTOSAR_00050.xsd", "AUTOSAR 00050"},
	{"AUTOSAR_00051", "AUTOSAR_00051.xsd", "AUTOSAR 00051"},
	{"AUTOSAR_00052", "AUTOSAR_00052.xsd", "AUTOSAR 00052"},
}

// Mask is a set of versions, bit i standing for Version(i).
type Mask uint32

// AllVersions contains every known release
const AllVersions Mask = 1<<Count - 1
