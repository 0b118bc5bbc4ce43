package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/nainya/arxmlstore/pkg/arxml"
)

type fileEntry struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

type danglingEntry struct {
	XMLPath string `json:"xml_path" yaml:"xml_path"`
	Target  string `json:"target" yaml:"target"`
}

type checkReport struct {
	Files         []fileEntry     `json:"files" yaml:"files"`
	Elements      int             `json:"elements" yaml:"elements"`
	Identifiables int             `json:"identifiables" yaml:"identifiables"`
	Warnings      []warningEntry  `json:"warnings" yaml:"warnings"`
	Dangling      []danglingEntry `json:"dangling_references" yaml:"dangling_references"`
}

func newCheckCmd(a *app) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "check <file|glob>...",
		Short: "Load files and report parse warnings and dangling references",
		Long: `Load every input into one model and report what the load tolerated
plus all references whose target does not exist.

Exits with an error when a dangling reference is found. With --strict any
schema deviation fails the load.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.cfg.ParseOptions()
			if strict {
				opts.Strict = true
			}
			return a.runCheck(cmd.OutOrStdout(), args, opts)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on any schema deviation")
	return cmd
}

// runCheck loads the inputs and writes the report to w
func (a *app) runCheck(w io.Writer, args []string, opts arxml.ParseOptions) error {
	res, err := a.loadModel(args, opts)
	if err != nil {
		return err
	}
	report := buildCheckReport(res)
	if err := a.writeReport(w, report, report.text); err != nil {
		return err
	}
	if len(report.Dangling) > 0 {
		return errFindings
	}
	return nil
}

func buildCheckReport(res *loadResult) *checkReport {
	st := res.model.Stats()
	report := &checkReport{
		Elements:      st.Elements,
		Identifiables: st.Identifiables,
		Warnings:      warningEntries(res.warnings),
		Dangling:      []danglingEntry{},
	}
	for _, f := range res.files {
		report.Files = append(report.Files, fileEntry{Name: f.Filename(), Version: f.Version().String()})
	}
	for _, ref := range res.model.CheckReferences() {
		report.Dangling = append(report.Dangling, danglingEntry{XMLPath: ref.XMLPath(), Target: referenceText(ref)})
	}
	return report
}

func referenceText(ref arxml.Element) string {
	if text, ok := ref.CharacterData(); ok {
		return text.Format()
	}
	return ""
}

func (r *checkReport) text(w io.Writer) {
	for _, f := range r.Files {
		printf(w, "loaded %s (%s)", f.Name, f.Version)
	}
	for _, warn := range r.Warnings {
		printf(w, "warning: %s:%d: %s [%s]", warn.File, warn.Line, warn.Msg, warn.Kind)
	}
	for _, d := range r.Dangling {
		printf(w, "dangling reference: %s -> %s", d.XMLPath, d.Target)
	}
	printf(w, "%s, %s, %s, %s",
		plural(r.Elements, "element"),
		plural(len(r.Warnings), "warning"),
		plural(len(r.Dangling), "dangling reference"),
		plural(r.Identifiables, "identifiable"))
}
