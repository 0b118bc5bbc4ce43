// arxmltool loads, checks and serves AUTOSAR ARXML models
package main

import (
	"fmt"
	"os"

	"github.com/nainya/arxmlstore/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if !cli.IsFindings(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
