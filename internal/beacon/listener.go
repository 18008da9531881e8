package beacon

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Device is a peer resolved from a verified beacon.
type Device struct {
	Addr        string
	Port        int
	Scheme      string
	Fingerprint string
	Alias       string
}

// Listener joins the multicast discovery group and verifies incoming
// beacons against a canonical code phrase, delivering one Device per
// accepted beacon.
//
// Grounded on the teacher's internal/localsend/scan.go
// Discoverier.readAndRegister, generalized to verify the HMAC envelope
// (spec §4.4) instead of trusting a bare announcement, and to surface
// a clear error when the multicast port is already bound.
type Listener struct {
	canonicalPhrase string
	conn            *net.UDPConn
	devices         chan Device
	stop            chan struct{}
	closeOnce       sync.Once
}

// NewListener binds the multicast discovery port and joins the group.
// It returns an error if another socket already holds the port.
func NewListener(canonicalPhrase string) (*Listener, error) {
	// ListenMulticastUDP enables address reuse, so a second listener on
	// the same port would bind silently; a plain bind without reuse
	// fails while any other socket holds the port.
	probe, err := net.ListenUDP("udp4", &net.UDPAddr{Port: Port})
	if err != nil {
		return nil, fmt.Errorf("beacon: multicast port %d unavailable (another instance may already be listening): %w", Port, err)
	}
	probe.Close()

	conn, err := net.ListenMulticastUDP("udp4", nil, groupAddr)
	if err != nil {
		return nil, fmt.Errorf("beacon: multicast port %d unavailable (another instance may already be listening): %w", Port, err)
	}
	conn.SetReadBuffer(4096)

	return &Listener{
		canonicalPhrase: canonicalPhrase,
		conn:            conn,
		devices:         make(chan Device, 8),
		stop:            make(chan struct{}),
	}, nil
}

// Devices returns the channel of verified peers. It is closed when the
// listener stops.
func (l *Listener) Devices() <-chan Device {
	return l.devices
}

// Run reads and verifies datagrams until Stop is called. Malformed
// datagrams are silently discarded; HMAC mismatches log a spoofing
// warning and are otherwise ignored.
func (l *Listener) Run() {
	buf := make([]byte, 4096)

	for {
		l.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, raddr, err := l.conn.ReadFromUDP(buf)

		select {
		case <-l.stop:
			return
		default:
		}

		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(buf[:n], &env); err != nil {
			continue
		}

		payload, err := Verify(env, l.canonicalPhrase)
		if err != nil {
			if errors.Is(err, ErrSpoofed) {
				slog.Warn("beacon: hmac mismatch, possible spoofing", "remote", raddr.IP.String())
			}
			continue
		}

		dev := Device{
			Addr:        raddr.IP.String(),
			Port:        payload.Port,
			Scheme:      payload.Protocol,
			Fingerprint: payload.Fingerprint,
			Alias:       payload.Alias,
		}

		select {
		case l.devices <- dev:
		case <-l.stop:
			return
		default:
			// a slow consumer drops stale discoveries rather than
			// blocking the read loop
		}
	}
}

// Stop leaves the multicast group and closes the socket and the
// devices channel. Safe to call more than once.
func (l *Listener) Stop() {
	l.closeOnce.Do(func() {
		close(l.stop)
		l.conn.Close()
		close(l.devices)
	})
}
