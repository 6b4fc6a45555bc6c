// Command axis compiles certification programs and evaluates their
// checklists.
package main

import (
	"fmt"
	"os"

	"github.com/axisenergy/checklist/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "axis:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
