// Command vizedit edits visualizations of query results from the terminal.
package main

import (
	"os"

	"github.com/kilupskalvis/vizedit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
