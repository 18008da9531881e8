// Package send implements the "send" subcommand.
//
// Grounded on the teacher's cmd/send/send.go (flag-driven RunE
// building a FileSender, wiring utils.WaitForSignal to Cancel), but
// RunE now returns the error instead of the teacher's
// slog.Error(...); return nil, so the process exit code the spec's
// external contract requires actually reflects failure.
package send

import (
	"context"
	"fmt"
	"time"

	"github.com/cedarlane/phrasedrop/internal/alias"
	"github.com/cedarlane/phrasedrop/internal/sigwait"
	"github.com/cedarlane/phrasedrop/internal/xfer/orchestrator"
	"github.com/spf13/cobra"
)

var (
	port    int
	timeout int
	devName string
)

// Cmd is the "send" subcommand.
var Cmd = &cobra.Command{
	Use:   "send <path>...",
	Short: "Offer one or more files or directories over the local network",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := devName
		if name == "" {
			name = alias.Generate()
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		go func() {
			<-sigwait.Wait()
			cancel()
		}()

		return orchestrator.Send(ctx, orchestrator.SendConfig{
			Paths:   args,
			Alias:   name,
			Port:    port,
			Timeout: time.Duration(timeout) * time.Second,
			OnReady: func(phrase string, boundPort int) {
				fmt.Printf("Code phrase: %s\n", phrase)
				fmt.Printf("Listening on port %d. Waiting for a receiver...\n", boundPort)
			},
		})
	},
}

func init() {
	Cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (0 selects an available port automatically)")
	Cmd.Flags().IntVarP(&timeout, "timeout", "t", 300, "seconds to wait for a receiver to connect and finish")
	Cmd.Flags().StringVarP(&devName, "name", "n", "", "device alias advertised to the receiver")
}
