// Command tinybuild loads a build description file and runs its stale
// tasks under a bounded job budget.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aappleby/tinybuild"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags, err := tinybuild.ParseArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	app := tinybuild.NewApp(flags)
	root, err := tinybuild.LoadRoot(app)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	_ = root

	if err := tinybuild.RunAll(context.Background(), app); err != nil {
		if !flags.Quiet {
			total, pass, fail, skip, cancel := app.Counters()
			fmt.Fprintf(os.Stderr, "tinybuild: %d/%d tasks failed (pass=%d skip=%d cancel=%d)\n", fail, total, pass, skip, cancel)
		}
		return 1
	}
	return 0
}
