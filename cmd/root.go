// Package cmd wires the CLI surface spec §1 treats as an external
// collaborator: argument parsing and command dispatch onto the
// orchestrator flows in internal/xfer/orchestrator.
//
// Grounded on the teacher's cmd/root.go (a bare cobra root command
// registering subcommands in init), extended to propagate a real exit
// code instead of the teacher's slog.Error-then-os.Exit(1) pattern.
package cmd

import (
	"fmt"
	"os"

	"github.com/cedarlane/phrasedrop/cmd/recv"
	"github.com/cedarlane/phrasedrop/cmd/send"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "phrasedrop",
	Short:         "Pair two hosts with a code phrase and send files between them",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit code
// (spec §4.7: "Exit codes: 0 success; 1 any failure").
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func init() {
	rootCmd.AddCommand(send.Cmd)
	rootCmd.AddCommand(recv.Cmd)
}
