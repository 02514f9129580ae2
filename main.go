package main

import (
	"os"

	"github.com/cottand/qinfer/cmd"
	_ "github.com/cottand/qinfer/hardcoded"
	"github.com/spf13/cobra"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "qinfer [subcommand]",
	Short:        "qinfer generates qualifier inference constraints for Go programs",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(cmd.GenCmd)
	rootCmd.AddCommand(cmd.SystemsCmd)
}
