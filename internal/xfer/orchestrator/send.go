// Package orchestrator wires CodePhrase, Identity, FileCatalog,
// Beacon, and the TransferServer/TransferClient into the two
// end-to-end flows the CLI drives: Send and Receive (spec §4.7).
//
// Grounded on the teacher's cmd/send/send.go and cmd/recv/recv.go
// RunE bodies (stat/AddDir/AddFile loop, then Start(), with a signal
// goroutine wired to Cancel()), generalized to compose this repo's
// own Identity/Beacon/TransferServer instead of the teacher's
// PIN-only FileSender, and extended with the two barriers and the
// single "discover + connect" deadline spec §5 requires.
package orchestrator

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/cedarlane/phrasedrop/internal/beacon"
	"github.com/cedarlane/phrasedrop/internal/catalog"
	"github.com/cedarlane/phrasedrop/internal/identity"
	"github.com/cedarlane/phrasedrop/internal/phrase"
	"github.com/cedarlane/phrasedrop/internal/xfer/server"
	"github.com/cedarlane/phrasedrop/internal/xfer/xerr"
	"github.com/google/uuid"
)

// portRangeStart and portRangeEnd bound the sender's port probe (spec
// §4.7: "an available TCP port in [53317, 53417)").
const (
	portRangeStart = 53317
	portRangeEnd   = 53417
)

// SendConfig parameterizes a Send run.
type SendConfig struct {
	Paths      []string
	Alias      string
	Port       int // 0 selects an available port automatically
	Timeout    time.Duration
	WordLists  phrase.WordLists
	OnReady    func(codePhrase string, port int)
	OnProgress func(delivered, total int)
}

// Send scans Paths, stands up an Identity and TransferServer, starts
// broadcasting a beacon, and blocks until either a receiver completes
// the whole transfer or Timeout elapses waiting for the first
// connection (spec §4.7 Send flow).
func Send(ctx context.Context, cfg SendConfig) error {
	cat, err := catalog.Scan(cfg.Paths)
	if err != nil {
		return xerr.Wrap(xerr.Config, "scan input paths", err)
	}

	id, err := identity.New()
	if err != nil {
		return xerr.Wrap(xerr.TLS, "generate ephemeral identity", err)
	}

	codePhrase, err := phrase.Generate(cfg.WordLists)
	if err != nil {
		return xerr.Wrap(xerr.Config, "generate code phrase", err)
	}

	port := cfg.Port
	if port == 0 {
		port, err = findPort(portRangeStart, portRangeEnd)
		if err != nil {
			return xerr.Wrap(xerr.Config, "find an available port", err)
		}
	}

	srv := server.New(server.Config{
		Identity:   id,
		Catalog:    cat,
		CodePhrase: codePhrase,
		Alias:      cfg.Alias,
	})

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- srv.Serve(fmt.Sprintf("0.0.0.0:%d", port))
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	sessionID := uuid.NewString()
	bcast, err := beacon.NewBroadcaster(beacon.BroadcasterConfig{
		CanonicalPhrase: codePhrase,
		Identity:        id,
		Alias:           cfg.Alias,
		Port:            port,
		UseHTTPS:        true,
		CliSessionID:    sessionID,
	})
	if err != nil {
		return xerr.Wrap(xerr.Discovery, "start beacon broadcaster", err)
	}

	bcastCtx, cancelBcast := context.WithCancel(ctx)
	defer cancelBcast()
	go bcast.Run(bcastCtx)
	defer bcast.Stop()

	if cfg.OnReady != nil {
		cfg.OnReady(codePhrase, port)
	}

	select {
	case err := <-serveErrCh:
		if err != nil {
			return xerr.Wrap(xerr.Transfer, "transfer server exited early", err)
		}
		return xerr.New(xerr.Transfer, "transfer server stopped unexpectedly")
	case <-time.After(cfg.Timeout):
		return xerr.New(xerr.Discovery, "timed out waiting for a receiver to connect")
	case <-srv.Connected():
	}

	// A receiver connected; stop advertising and wait for delivery to
	// finish, or for the same deadline to expire waiting on it.
	cancelBcast()

	select {
	case <-srv.Complete():
		return nil
	case err := <-serveErrCh:
		if err != nil {
			return xerr.Wrap(xerr.Transfer, "transfer server exited early", err)
		}
		return xerr.New(xerr.Transfer, "transfer server stopped unexpectedly")
	case <-time.After(cfg.Timeout):
		return xerr.New(xerr.Transfer, "timed out waiting for the transfer to complete")
	}
}

// findPort probes each port in [start, end) by binding and
// immediately closing it, then returns the first one found free (spec
// §4.7: "bind-and-close probe"). This is inherently racy against a
// concurrent bind, but matches the spec's literal mechanism rather
// than holding the listener open across the whole flow.
func findPort(start, end int) (int, error) {
	for p := start; p < end; p++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", p))
		if err != nil {
			continue
		}
		ln.Close()
		return p, nil
	}
	return 0, fmt.Errorf("no available port in [%d, %d)", start, end)
}
