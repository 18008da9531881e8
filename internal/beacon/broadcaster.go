package beacon

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/cedarlane/phrasedrop/internal/identity"
	"github.com/cedarlane/phrasedrop/internal/phrase"
)

// Group and Port identify the multicast discovery channel (spec §4.4).
const (
	Group    = "224.0.0.167"
	Port     = 53317
	Interval = 500 * time.Millisecond
)

var groupAddr = &net.UDPAddr{IP: net.ParseIP(Group), Port: Port}

// BroadcasterConfig parameterizes the beacon a sender emits.
type BroadcasterConfig struct {
	CanonicalPhrase string
	Identity        *identity.Identity
	Alias           string
	Port            int
	UseHTTPS        bool
	CliSessionID    string
}

// Broadcaster emits one signed BeaconMessage on the multicast group
// every Interval until Stop is called.
//
// Grounded on the teacher's internal/localsend/scan.go Discoverier.advertise,
// generalized from a raw JSON announcement to an HMAC-signed one and
// from a self-owned multicast socket to a plain UDP send socket (a
// broadcaster never needs to receive).
type Broadcaster struct {
	cfg     BroadcasterConfig
	conn    *net.UDPConn
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewBroadcaster binds an ephemeral UDP socket for sending beacons.
func NewBroadcaster(cfg BroadcasterConfig) (*Broadcaster, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
	if err != nil {
		return nil, err
	}
	return &Broadcaster{
		cfg:     cfg,
		conn:    conn,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}, nil
}

// Run emits beacons every Interval until ctx is done or Stop is
// called. It always returns nil; send failures are logged and retried
// on the next tick.
func (b *Broadcaster) Run(ctx context.Context) error {
	defer close(b.stopped)

	if err := b.send(); err != nil {
		slog.Warn("beacon: failed to send announcement", "error", err)
	}

	ticker := time.NewTicker(Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.stop:
			return nil
		case <-ticker.C:
			if err := b.send(); err != nil {
				slog.Warn("beacon: failed to send announcement", "error", err)
			}
		}
	}
}

func (b *Broadcaster) send() error {
	scheme := "http"
	if b.cfg.UseHTTPS {
		scheme = "https"
	}

	payload := Payload{
		Alias:        b.cfg.Alias,
		Version:      ProtocolVersion,
		DeviceModel:  "LocalSend CLI",
		DeviceType:   "headless",
		Fingerprint:  b.cfg.Identity.Fingerprint,
		Port:         b.cfg.Port,
		Protocol:     scheme,
		Announce:     true,
		CodeHash:     phrase.Hash(b.cfg.CanonicalPhrase),
		CliSessionID: b.cfg.CliSessionID,
		CliMode:      true,
	}

	env, err := Sign(payload, b.cfg.CanonicalPhrase)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}

	_, err = b.conn.WriteToUDP(raw, groupAddr)
	return err
}

// Stop cancels the broadcast loop and closes the socket. It is safe
// to call more than once.
func (b *Broadcaster) Stop() {
	b.once.Do(func() {
		close(b.stop)
		<-b.stopped
		b.conn.Close()
	})
}
