package main

import (
	"fmt"
	"os"

	"github.com/saasforge/modlife/cmd/modlife/cmd"

	_ "modernc.org/sqlite"
)

func main() {
	rootCmd := cmd.NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
