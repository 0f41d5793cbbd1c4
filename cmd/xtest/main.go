package main

import (
	"fmt"
	"os"

	"github.com/Netflix/x-test/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "xtest:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
