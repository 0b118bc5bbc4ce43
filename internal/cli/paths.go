package cli

import (
	"io"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
)

type pathsReport struct {
	Paths []string `json:"paths" yaml:"paths"`
}

func newPathsCmd(a *app) *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "paths <file|glob>...",
		Short: "List the autosar path of every identifiable element",
		Long: `List the autosar path of every identifiable element in the merged model,
in sorted order. --match keeps only paths matching a glob such as
"/Can/**" or "/*/Frame*".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if filter != "" && !doublestar.ValidatePattern(filter) {
				return errInvalidPattern(filter)
			}
			res, err := a.loadModel(args, a.cfg.ParseOptions())
			if err != nil {
				return err
			}
			report := pathsReport{Paths: []string{}}
			for _, p := range res.model.IdentifiableElements() {
				if filter != "" {
					// paths start with "/" like an absolute pattern
					if ok, _ := doublestar.Match(filter, p); !ok {
						continue
					}
				}
				report.Paths = append(report.Paths, p)
			}
			return a.writeReport(cmd.OutOrStdout(), report, func(w io.Writer) {
				for _, p := range report.Paths {
					printf(w, "%s", p)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&filter, "match", "m", "", "only list paths matching this glob")
	return cmd
}
