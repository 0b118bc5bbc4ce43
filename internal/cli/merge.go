package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/nainya/arxmlstore/pkg/arxml"
	"github.com/nainya/arxmlstore/pkg/version"
)

func newMergeCmd(a *app) *cobra.Command {
	var (
		out    string
		target string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "merge <file|glob>...",
		Short: "Merge several files into a single file",
		Long: `Load the inputs into one model and write their combined content as a
single file. The output uses the newest input version unless --version is
given; content that is not valid in that version aborts the merge unless
--force is set. Without --out the result is printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.loadModel(args, a.cfg.ParseOptions())
			if err != nil {
				return err
			}

			v := newestVersion(res.files)
			if target != "" {
				if v, err = version.Parse(target); err != nil {
					return err
				}
			}
			name := out
			if name == "" {
				name = "merged.arxml"
			}
			merged, err := mergeFiles(res.model, name, v)
			if err != nil {
				return err
			}

			if errs, _ := merged.CheckVersionCompatibility(v); len(errs) > 0 {
				for _, ce := range errs {
					a.log.Warn("Incompatible content").Str("file", name).Str("detail", ce.Error()).Send()
				}
				if !force {
					return fmt.Errorf("merged content is not valid in %s: %s", v, plural(len(errs), "error"))
				}
			}

			if out == "" {
				text, err := merged.Serialize()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write([]byte(text))
				return err
			}
			if err := res.model.Write(); err != nil {
				return err
			}
			a.log.Info("Files merged").Int("inputs", len(res.files)).Str("out", out).Str("version", v.String()).Send()
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: print to stdout)")
	cmd.Flags().StringVar(&target, "version", "", "AUTOSAR version of the output file")
	cmd.Flags().BoolVar(&force, "force", false, "write even if content is not valid in the output version")
	return cmd
}

func newestVersion(files []*arxml.File) version.Version {
	var newest version.Version
	for _, f := range files {
		if f.Version() > newest {
			newest = f.Version()
		}
	}
	return newest
}

// mergeFiles replaces every file of m with a single file holding all content
func mergeFiles(m *arxml.Model, name string, v version.Version) (*arxml.File, error) {
	inputs := m.Files()
	merged, err := m.CreateFile(name, v)
	if err != nil {
		return nil, err
	}
	// elements inheriting from the root already belong to the new file
	for _, e := range m.ElementsDFS() {
		local, files := e.FileMembership()
		if !local || slices.Contains(files, merged) {
			continue
		}
		if err := e.AddToFile(merged); err != nil {
			return nil, err
		}
	}
	for _, f := range inputs {
		if err := m.RemoveFile(f); err != nil {
			return nil, err
		}
	}
	return merged, nil
}
