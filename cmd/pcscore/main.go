package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "2.0.0"

func main() {
	root := &cobra.Command{
		Use:           "pcscore",
		Short:         "Score website privacy compliance from a cookie analysis document",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(newScoreCmd())
	root.AddCommand(newProfilesCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
