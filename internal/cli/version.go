package cli

import (
	"github.com/spf13/cobra"

	"github.com/nainya/arxmlstore/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the tool version and supported AUTOSAR versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			printf(w, "arxmltool %s (latest AUTOSAR version: %s)", Version, version.Latest)
			if list {
				for _, v := range version.All() {
					printf(w, "  %-16s %-24s %s", v.Name(), v.XSD(), v)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list every supported AUTOSAR version")
	return cmd
}
