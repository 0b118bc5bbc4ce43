// Package cli provides the arxmltool command-line interface
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nainya/arxmlstore/internal/config"
	"github.com/nainya/arxmlstore/internal/logger"
)

// Version is set at build time
var Version = "dev"

// app carries global flags and the state set up before each command
type app struct {
	cfgFile string
	format  string
	verbose bool

	cfg *config.Config
	log *logger.Logger
}

// errFindings is returned when a command ran but found problems to report
var errFindings = errors.New("problems found")

// IsFindings reports whether err only signals that a report listed problems
func IsFindings(err error) bool {
	return errors.Is(err, errFindings)
}

// NewRootCommand builds the complete command tree
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "arxmltool",
		Short: "Load, check and rewrite AUTOSAR ARXML files",
		Long: `arxmltool loads one or more ARXML files into a single schema-validated
element tree and works on the result.

Example:
  arxmltool check system/*.arxml          # Report parse deviations and dangling references
  arxmltool compat --target AUTOSAR_4_3_0 ecu.arxml
  arxmltool paths "**/*.arxml"            # List every identifiable path
  arxmltool merge --out all.arxml a.arxml b.arxml
  arxmltool serve                         # Run the gRPC model service`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default: arxmltool.yaml)")
	root.PersistentFlags().StringVarP(&a.format, "format", "f", "text", "report format: text, json, yaml")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newCheckCmd(a),
		newCompatCmd(a),
		newPathsCmd(a),
		newSortCmd(a),
		newMergeCmd(a),
		newServeCmd(a),
		newWatchCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree with os.Args
func Execute() error {
	return NewRootCommand().Execute()
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	switch a.format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unsupported format %q, must be one of: text, json, yaml", a.format)
	}

	lc := cfg.LoggerConfig()
	if a.verbose {
		lc.Level = "debug"
	}
	lc.Output = cmd.ErrOrStderr()
	logger.InitGlobalLogger(lc)
	a.cfg = cfg
	a.log = logger.GetGlobalLogger().WithFields(map[string]any{"command": cmd.Name()})
	return nil
}

// printf writes a line to the command output
func printf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
