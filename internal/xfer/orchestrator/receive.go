package orchestrator

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cedarlane/phrasedrop/internal/beacon"
	"github.com/cedarlane/phrasedrop/internal/catalog"
	"github.com/cedarlane/phrasedrop/internal/phrase"
	"github.com/cedarlane/phrasedrop/internal/xfer/client"
	"github.com/cedarlane/phrasedrop/internal/xfer/xerr"
)

// ReceiveConfig parameterizes a Receive run.
type ReceiveConfig struct {
	CodePhrase string
	Alias      string
	DestDir    string
	Timeout    time.Duration
	AutoAccept bool
	Prompter   client.Prompter
	OnDevice   func(beacon.Device)
	OnManifest func(map[string]catalog.Descriptor)
}

// Receive validates the code phrase, listens for a verified beacon
// matching it, and runs the full TransferClient flow against the
// first device found (spec §4.7 Receive flow).
func Receive(cfg ReceiveConfig) error {
	if !phrase.Validate(cfg.CodePhrase) {
		return xerr.New(xerr.Config, "code phrase must be of the form <adjective>-<noun>")
	}
	canonical := phrase.Normalize(cfg.CodePhrase)

	listener, err := beacon.NewListener(canonical)
	if err != nil {
		return xerr.Wrap(xerr.Discovery, "start beacon listener", err)
	}
	defer listener.Stop()
	go listener.Run()

	var dev beacon.Device
	select {
	case d, ok := <-listener.Devices():
		if !ok {
			return xerr.New(xerr.Discovery, "beacon listener stopped before finding a peer")
		}
		dev = d
	case <-time.After(cfg.Timeout):
		return xerr.New(xerr.Discovery, "timed out waiting for a sender to appear")
	}
	if cfg.OnDevice != nil {
		cfg.OnDevice(dev)
	}
	if dev.Scheme != "https" {
		return xerr.New(xerr.Config, "sender did not advertise an https endpoint")
	}

	c, err := client.New(client.Config{
		CodePhrase: canonical,
		Alias:      cfg.Alias,
		DestDir:    cfg.DestDir,
		AutoAccept: cfg.AutoAccept,
		Prompter:   cfg.Prompter,
		PeerAddr:   net.JoinHostPort(dev.Addr, strconv.Itoa(dev.Port)),
		PeerFP:     dev.Fingerprint,
	})
	if err != nil {
		return err
	}

	sessionID, files, err := c.Handshake()
	if err != nil {
		return err
	}
	if cfg.OnManifest != nil {
		cfg.OnManifest(files)
	}

	if !cfg.AutoAccept {
		if !cfg.Prompter.Confirm(fmt.Sprintf("Accept %d file(s) from %s?", len(files), dev.Alias)) {
			return xerr.New(xerr.User, "declined the incoming transfer")
		}
	}

	return c.DownloadAll(sessionID, files)
}
