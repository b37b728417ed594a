// Command respnoctl administers respondent numbers from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
