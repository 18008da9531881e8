// Package recv implements the receiving subcommand, taking the code
// phrase as its sole positional argument.
//
// Grounded on the teacher's cmd/recv/recv.go (flag-driven Run wiring a
// FileReceiver and utils.WaitForSignal), narrowed to the plain HTTPS
// pull flow this spec defines (the teacher's WebRTC signaling path is
// out of scope here; see DESIGN.md).
package recv

import (
	"fmt"
	"os"
	"time"

	"github.com/cedarlane/phrasedrop/internal/alias"
	"github.com/cedarlane/phrasedrop/internal/beacon"
	"github.com/cedarlane/phrasedrop/internal/catalog"
	"github.com/cedarlane/phrasedrop/internal/xfer/client"
	"github.com/cedarlane/phrasedrop/internal/xfer/orchestrator"
	"github.com/spf13/cobra"
)

var (
	outDir     string
	autoAccept bool
	timeout    int
	devName    string
)

// Cmd is the receiving subcommand.
var Cmd = &cobra.Command{
	Use:   "recv <code-phrase>",
	Short: "Receive files offered under a code phrase",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := devName
		if name == "" {
			name = alias.Generate()
		}

		return orchestrator.Receive(orchestrator.ReceiveConfig{
			CodePhrase: args[0],
			Alias:      name,
			DestDir:    outDir,
			Timeout:    time.Duration(timeout) * time.Second,
			AutoAccept: autoAccept,
			Prompter:   client.NewTerminalPrompter(os.Stdin, os.Stdout),
			OnDevice: func(dev beacon.Device) {
				fmt.Printf("Found %s at %s, connecting...\n", dev.Alias, dev.Addr)
			},
			OnManifest: func(files map[string]catalog.Descriptor) {
				fmt.Printf("Offered %d file(s):\n", len(files))
				for _, d := range files {
					fmt.Printf("  %s (%d bytes)\n", d.Name, d.Size)
				}
			},
		})
	},
}

func init() {
	Cmd.Flags().StringVarP(&outDir, "output", "o", ".", "destination directory for received files")
	Cmd.Flags().BoolVarP(&autoAccept, "yes", "y", false, "accept the transfer without prompting")
	Cmd.Flags().IntVarP(&timeout, "timeout", "t", 300, "seconds to wait for a sender to appear")
	Cmd.Flags().StringVarP(&devName, "name", "n", "", "device alias advertised to the sender")
}
