// ABOUTME: Parsing, formatting and mask arithmetic for AUTOSAR versions
// ABOUTME: Accepts enum names, xsd file names and display names

package version

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
)

// ErrUnknownVersion is returned when a string names no known release
var ErrUnknownVersion = errors.New("version: unknown AUTOSAR version")

// Parse converts an enum name (AUTOSAR_00050), an xsd file name
// (AUTOSAR_4-0-1.xsd) or a display name (AUTOSAR 4.0.1) into a Version.
// "LATEST" maps to Latest.
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "LATEST") {
		return Latest, nil
	}
	// schemaLocation values may carry a directory
	if idx := strings.LastIndexAny(s, "/\\"); idx >= 0 {
		s = s[idx+1:]
	}
	for i, info := range versionTable {
		if s == info.name || s == info.xsd || s == info.display {
			return Version(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVersion, s)
}

// FromSchemaLocation extracts the version from an xsi:schemaLocation value,
// which holds the namespace followed by the xsd file name.
func FromSchemaLocation(loc string) (Version, error) {
	fields := strings.Fields(loc)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty schema location", ErrUnknownVersion)
	}
	return Parse(fields[len(fields)-1])
}

// Valid reports whether v is a known release
func (v Version) Valid() bool {
	return int(v) < Count
}

// String returns the display name, e.g. "AUTOSAR 4.3.0"
func (v Version) String() string {
	if !v.Valid() {
		return fmt.Sprintf("Version(%d)", uint8(v))
	}
	return versionTable[v].display
}

// Name returns the enum-style name, e.g. "AUTOSAR_00050"
func (v Version) Name() string {
	if !v.Valid() {
		return v.String()
	}
	return versionTable[v].name
}

// XSD returns the schema file name used in xsi:schemaLocation
func (v Version) XSD() string {
	if !v.Valid() {
		return ""
	}
	return versionTable[v].xsd
}

// SchemaLocation returns the full xsi:schemaLocation attribute value
func (v Version) SchemaLocation() string {
	return "http://autosar.org/schema/r4.0 " + v.XSD()
}

// Mask returns the single-bit mask for v
func (v Version) Mask() Mask {
	return Mask(1) << v
}

// All returns every known version in release order
func All() []Version {
	out := make([]Version, Count)
	for i := range out {
		out[i] = Version(i)
	}
	return out
}

// MaskOf builds a mask from the given versions
func MaskOf(vs ...Version) Mask {
	var m Mask
	for _, v := range vs {
		m |= v.Mask()
	}
	return m
}

// Range returns the mask of all versions from first to last inclusive
func Range(first, last Version) Mask {
	if first > last {
		return 0
	}
	return (Mask(1)<<(last+1) - 1) &^ (Mask(1)<<first - 1)
}

// Since returns the mask of first and every later version
func Since(first Version) Mask {
	return Range(first, Latest)
}

// Contains reports whether v is in the mask
func (m Mask) Contains(v Version) bool {
	return m&v.Mask() != 0
}

// Intersects reports whether the masks share a version
func (m Mask) Intersects(o Mask) bool {
	return m&o != 0
}

// Empty reports whether the mask holds no version
func (m Mask) Empty() bool {
	return m&AllVersions == 0
}

// First returns the oldest version in the mask
func (m Mask) First() (Version, bool) {
	m &= AllVersions
	if m == 0 {
		return 0, false
	}
	return Version(bits.TrailingZeros32(uint32(m))), true
}

// Last returns the newest version in the mask
func (m Mask) Last() (Version, bool) {
	m &= AllVersions
	if m == 0 {
		return 0, false
	}
	return Version(31 - bits.LeadingZeros32(uint32(m))), true
}

// Expand lists the versions in the mask in release order
func (m Mask) Expand() []Version {
	var out []Version
	for v := Version(0); int(v) < Count; v++ {
		if m.Contains(v) {
			out = append(out, v)
		}
	}
	return out
}

// String renders the mask as a list of version names
func (m Mask) String() string {
	vs := m.Expand()
	if len(vs) == 0 {
		return "[]"
	}
	names := make([]string, len(vs))
	for i, v := range vs {
		names[i] = v.Name()
	}
	return "[" + strings.Join(names, " ") + "]"
}
