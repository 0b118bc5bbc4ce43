package cli

import (
	"sort"

	"github.com/spf13/cobra"
)

func newSortCmd(a *app) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "sort <file|glob>...",
		Short: "Put files into canonical schema order",
		Long: `Load the inputs, sort every element into schema order (identifiable
siblings of the same kind by name) and print the result. With --write each
file is replaced in place.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.loadModel(args, a.cfg.ParseOptions())
			if err != nil {
				return err
			}
			res.model.Sort()
			if write {
				if err := res.model.Write(); err != nil {
					return err
				}
				a.log.Info("Files sorted").Int("files", len(res.files)).Send()
				return nil
			}
			return printFiles(cmd, res.model.SerializeFiles())
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the result back to the input files")
	return cmd
}

// printFiles writes serialized files to stdout, with a header per file when
// there is more than one
func printFiles(cmd *cobra.Command, files map[string]string) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	w := cmd.OutOrStdout()
	for _, name := range names {
		if len(names) > 1 {
			printf(w, "==> %s <==", name)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			return err
		}
	}
	return nil
}
