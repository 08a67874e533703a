// Command loregate compiles, runs and inspects rule libraries.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/loregate/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
