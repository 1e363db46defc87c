package cmd

import (
	"fmt"
	"os"

	"github.com/promptlabs/evalharness/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "evalharness",
	Short: "Single-shot evaluation harness for LLM programs",
	Long: `evalharness loads a JavaScript-defined LLM program, binds a configured
language model to it, runs it against a batch of labeled examples, and
writes a structured evaluation report.

It is designed to be invoked once per request: one JSON request in on
stdin, one JSON response out on stdout.`,
}

func init() {
	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("evalharness %s\n", version.String()))
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
