// Command stmctl is a small inspection/demo tool for a persistent TVar
// store. It is optional tooling: the stm library itself has no CLI
// dependency (spec.md §6 Non-goal).
package main

import (
	"fmt"
	"os"

	"github.com/tvarstm/stm/internal/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
