// ABOUTME: ArxmlFile: a named, versioned view onto the shared element tree
// ABOUTME: Membership decides which elements a file serializes

package arxml

import (
	"fmt"
	"iter"
	"os"
	"time"

	"github.com/nainya/arxmlstore/pkg/version"
)

// File is one logical ARXML document of a Model
type File struct {
	model      *Model
	filename   string
	version    version.Version
	standalone *bool
}

func (f *File) String() string {
	return fmt.Sprintf("ArxmlFile{%s, %s}", f.filename, f.version)
}

// Filename returns the name the file is written to
func (f *File) Filename() string {
	return f.filename
}

// SetFilename renames the file; names are unique within a model
func (f *File) SetFilename(name string) error {
	m, err := f.Model()
	if err != nil {
		return err
	}
	if other, ok := m.FileByName(name); ok && other != f {
		return newError(KindFile, "a file named %q already exists", name)
	}
	f.filename = name
	return nil
}

// Version returns the AUTOSAR version of the file
func (f *File) Version() version.Version {
	return f.version
}

// SetVersion changes the version if the file content is valid in it
func (f *File) SetVersion(v version.Version) error {
	m, err := f.Model()
	if err != nil {
		return err
	}
	if !v.Valid() {
		return newError(KindInvalidFile, "unknown version %d", v)
	}
	if errs, _ := m.checkCompat(m.root, f, v); len(errs) > 0 {
		return &Error{
			Kind: KindSchemaViolation,
			Msg:  fmt.Sprintf("%d incompatibilities with %s", len(errs), v),
			Err:  errs[0],
		}
	}
	f.version = v
	return nil
}

// Model returns the owning model; it fails once the file was removed
func (f *File) Model() (*Model, error) {
	if f == nil || f.model == nil {
		return nil, newError(KindInvalidFile, "file is not part of a model")
	}
	return f.model, nil
}

// XMLStandalone returns the standalone flag of the XML declaration, if any
func (f *File) XMLStandalone() (standalone bool, present bool) {
	if f.standalone == nil {
		return false, false
	}
	return *f.standalone, true
}

// ElementsDFS walks the elements that belong to this file
func (f *File) ElementsDFS() iter.Seq2[int, Element] {
	return func(yield func(int, Element) bool) {
		if f.model == nil {
			return
		}
		f.model.dfs(f.model.root, 0, -1, f, yield)
	}
}

// Serialize renders the file as ARXML text
func (f *File) Serialize() (string, error) {
	m, err := f.Model()
	if err != nil {
		return "", err
	}
	return m.serializeFile(f), nil
}

// CheckVersionCompatibility lists the content of the file that is not valid
// in target, plus the versions in which every checked item is valid
func (f *File) CheckVersionCompatibility(target version.Version) ([]CompatibilityError, version.Mask) {
	if f.model == nil {
		return nil, 0
	}
	return f.model.checkCompat(f.model.root, f, target)
}

// LoadFile reads and merges an ARXML file from disk
func (m *Model) LoadFile(path string, strict bool) (*File, []Warning, error) {
	return m.LoadFileWithOptions(path, ParseOptions{Strict: strict})
}

// LoadFileWithOptions reads and merges an ARXML file using an explicit policy
func (m *Model) LoadFileWithOptions(path string, opts ParseOptions) (*File, []Warning, error) {
	start := time.Now()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, wrapError(KindFile, err, "read %s", path)
	}
	f, warnings, err := m.LoadBufferWithOptions(data, path, opts)
	if err == nil {
		m.log.Debug().Str("file", path).Int("bytes", len(data)).Dur("duration", time.Since(start)).Msg("file loaded from disk")
	}
	return f, warnings, err
}
