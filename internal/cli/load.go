package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/nainya/arxmlstore/pkg/arxml"
)

// expandInputs resolves glob patterns (including **) to a sorted list of
// distinct files. A pattern without meta characters must name a file.
func expandInputs(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no input files given")
	}
	seen := make(map[string]bool)
	var files []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			if _, err := os.Stat(p); err != nil {
				return nil, fmt.Errorf("no files match %q", p)
			}
			matches = []string{p}
		}
		for _, m := range matches {
			clean := filepath.Clean(m)
			if !seen[clean] {
				seen[clean] = true
				files = append(files, clean)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// loadResult is a model built from files on disk
type loadResult struct {
	model    *arxml.Model
	files    []*arxml.File
	warnings []arxml.Warning
}

// loadModel merges every input into one model with the configured parse
// policy. The first failing file aborts the load.
func (a *app) loadModel(patterns []string, opts arxml.ParseOptions) (*loadResult, error) {
	paths, err := expandInputs(patterns)
	if err != nil {
		return nil, err
	}
	log := a.log.ModelLogger("load")
	res := &loadResult{model: arxml.NewModel(arxml.WithLogger(*log.GetZerolog()))}
	start := time.Now()
	for _, p := range paths {
		f, warnings, err := res.model.LoadFileWithOptions(p, opts)
		if err != nil {
			log.LogModelOperation("load", time.Since(start), res.model.Stats().Elements, err)
			return nil, err
		}
		res.files = append(res.files, f)
		res.warnings = append(res.warnings, warnings...)
	}
	log.LogModelOperation("load", time.Since(start), res.model.Stats().Elements, nil)
	return res, nil
}

// writeReport renders v as JSON or YAML, or calls text for the text format
func (a *app) writeReport(w io.Writer, v any, text func(io.Writer)) error {
	switch a.format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(w)
		return nil
	}
}

// warningEntry is the report form of a parse warning
type warningEntry struct {
	Kind string `json:"kind" yaml:"kind"`
	File string `json:"file" yaml:"file"`
	Line int    `json:"line" yaml:"line"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	Msg  string `json:"message" yaml:"message"`
}

func warningEntries(warnings []arxml.Warning) []warningEntry {
	out := make([]warningEntry, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, warningEntry{
			Kind: w.Kind.String(),
			File: w.Filename,
			Line: w.Line,
			Path: w.Path,
			Msg:  w.Msg,
		})
	}
	return out
}

func errInvalidPattern(p string) error {
	return fmt.Errorf("invalid pattern %q", p)
}
