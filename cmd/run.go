package cmd

import (
	"encoding/json"
	"io"

	"github.com/promptlabs/evalharness/internal/harness"
	"github.com/promptlabs/evalharness/internal/render"
	"github.com/spf13/cobra"
)

var inputFile string
var showSummary bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate a program against a batch of examples",
	Long: `Run reads a single evaluation request (JSON on stdin, or a JSON/YAML file
via --input), evaluates the program against every example, and writes the
report as one JSON document on stdout.

The exit code is 0 whenever a response of either shape was emitted,
including load failures; it is non-zero only when the request itself could
not be parsed.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		req, err := readRequest(cmd)
		if err != nil {
			// Request-level failure: emit the envelope, then exit non-zero.
			emit(out, harness.NewFailure(err))
			return err
		}

		report, err := harness.Execute(cmd.Context(), req, cmd.ErrOrStderr())
		if err != nil {
			// Load-level failure: the request was understood but could not
			// be serviced. The envelope is the response; exit 0.
			failure := harness.NewFailure(err)
			if showSummary {
				render.FailureNotice(cmd.ErrOrStderr(), failure)
			}
			return emit(out, failure)
		}

		if err := emit(out, report); err != nil {
			return err
		}
		if showSummary {
			render.Summary(cmd.ErrOrStderr(), report)
		}
		return nil
	},
}

func readRequest(cmd *cobra.Command) (*harness.Request, error) {
	if inputFile != "" {
		return harness.DecodeRequestFile(inputFile)
	}
	return harness.DecodeRequest(cmd.InOrStdin())
}

func emit(w io.Writer, response any) error {
	return json.NewEncoder(w).Encode(response)
}

func init() {
	runCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Read the request from a JSON or YAML file instead of stdin")
	runCmd.Flags().BoolVar(&showSummary, "summary", false, "Render a human-readable summary to stderr")

	rootCmd.AddCommand(runCmd)
}
