package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nainya/arxmlstore/pkg/version"
)

type compatEntry struct {
	Kind      string `json:"kind" yaml:"kind"`
	XMLPath   string `json:"xml_path" yaml:"xml_path"`
	Attribute string `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Value     string `json:"value,omitempty" yaml:"value,omitempty"`
	Versions  string `json:"versions" yaml:"versions"`
	Msg       string `json:"message" yaml:"message"`
}

type compatFile struct {
	Name               string        `json:"name" yaml:"name"`
	Version            string        `json:"version" yaml:"version"`
	Compatible         bool          `json:"compatible" yaml:"compatible"`
	CompatibleVersions string        `json:"compatible_versions" yaml:"compatible_versions"`
	Errors             []compatEntry `json:"errors" yaml:"errors"`
}

type compatReport struct {
	Target string       `json:"target" yaml:"target"`
	Files  []compatFile `json:"files" yaml:"files"`
}

func newCompatCmd(a *app) *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "compat --target <version> <file|glob>...",
		Short: "Check whether file content is valid in another AUTOSAR version",
		Long: `Check every element, attribute and enumeration value of each file against
the target version. Versions are accepted as AUTOSAR_4_3_0, AUTOSAR_00046,
an xsd name or LATEST.

Exits with an error when any file is incompatible.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := version.Parse(target)
			if err != nil {
				return err
			}
			res, err := a.loadModel(args, a.cfg.ParseOptions())
			if err != nil {
				return err
			}
			report := compatReport{Target: v.String()}
			failed := false
			for _, f := range res.files {
				errs, mask := f.CheckVersionCompatibility(v)
				cf := compatFile{
					Name:               f.Filename(),
					Version:            f.Version().String(),
					Compatible:         len(errs) == 0,
					CompatibleVersions: mask.String(),
					Errors:             []compatEntry{},
				}
				for _, ce := range errs {
					cf.Errors = append(cf.Errors, compatEntry{
						Kind:      ce.Kind.String(),
						XMLPath:   ce.Element.XMLPath(),
						Attribute: ce.Attribute,
						Value:     ce.Value,
						Versions:  ce.Versions.String(),
						Msg:       ce.Error(),
					})
				}
				failed = failed || !cf.Compatible
				report.Files = append(report.Files, cf)
			}
			if err := a.writeReport(cmd.OutOrStdout(), report, report.text); err != nil {
				return err
			}
			if failed {
				return errFindings
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&target, "target", "t", "", "target AUTOSAR version (required)")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func (r compatReport) text(w io.Writer) {
	for _, f := range r.Files {
		state := "compatible"
		if !f.Compatible {
			state = fmt.Sprintf("incompatible (%s)", plural(len(f.Errors), "error"))
		}
		printf(w, "%s (%s): %s with %s", f.Name, f.Version, state, r.Target)
		for _, e := range f.Errors {
			printf(w, "  %s", e.Msg)
		}
		printf(w, "  valid in: %s", f.CompatibleVersions)
	}
}
