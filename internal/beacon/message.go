// Package beacon implements the authenticated multicast discovery
// protocol: a sender-side Broadcaster and a receiver-side Listener,
// sharing a JSON envelope whose HMAC binds every announcement to the
// canonical code phrase (spec §4.4).
//
// Grounded on the teacher's internal/localsend/scan.go Discoverier
// (multicast group join, timer-driven advertise loop, per-datagram
// read/register), generalized from an open Announcement to an
// HMAC-signed Envelope so a passive observer can't forge a valid
// beacon without the shared phrase.
package beacon

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"

	"github.com/cedarlane/phrasedrop/internal/phrase"
)

// ProtocolVersion is advertised in every beacon's inner payload.
const ProtocolVersion = "2.1"

// ErrSpoofed indicates the envelope's hmac did not match its data
// under the expected key — either corruption or an active spoofing
// attempt (spec §7: "emit a Warning: line").
var ErrSpoofed = errors.New("beacon: hmac mismatch")

// ErrMalformed indicates the envelope was structurally incomplete;
// per spec §7 these are silently discarded, never warned about.
var ErrMalformed = errors.New("beacon: envelope missing data or hmac")

// Payload is the inner announcement JSON, whose exact serialized bytes
// are what the envelope's hmac is computed over.
type Payload struct {
	Alias        string `json:"alias"`
	Version      string `json:"version"`
	DeviceModel  string `json:"deviceModel"`
	DeviceType   string `json:"deviceType"`
	Fingerprint  string `json:"fingerprint"`
	Port         int    `json:"port"`
	Protocol     string `json:"protocol"`
	Announce     bool   `json:"announce"`
	CodeHash     string `json:"codeHash"`
	CliSessionID string `json:"cliSessionId"`
	CliMode      bool   `json:"cliMode"`
}

// Envelope is the on-the-wire JSON: the raw inner payload string plus
// its HMAC. Verify checks the hmac against the raw Data string, never
// against a reserialization of the parsed Payload.
type Envelope struct {
	Data string `json:"data"`
	HMAC string `json:"hmac"`
}

func computeHMAC(canonicalPhrase string, msg []byte) string {
	h := hmac.New(sha256.New, []byte(canonicalPhrase))
	h.Write(msg)
	return hex.EncodeToString(h.Sum(nil))
}

func constantTimeEqualHex(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Sign marshals payload and wraps it in an Envelope whose hmac is
// keyed by canonicalPhrase.
func Sign(payload Payload, canonicalPhrase string) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Data: string(data),
		HMAC: computeHMAC(canonicalPhrase, data),
	}, nil
}

// Verify checks env's structural completeness, its hmac against
// canonicalPhrase in constant time, and the inner payload's cliMode
// and codeHash fields, then returns the parsed Payload.
func Verify(env Envelope, canonicalPhrase string) (Payload, error) {
	if env.Data == "" || env.HMAC == "" {
		return Payload{}, ErrMalformed
	}

	expected := computeHMAC(canonicalPhrase, []byte(env.Data))
	if !constantTimeEqualHex(expected, env.HMAC) {
		return Payload{}, ErrSpoofed
	}

	var p Payload
	if err := json.Unmarshal([]byte(env.Data), &p); err != nil {
		return Payload{}, ErrMalformed
	}

	if !p.CliMode {
		return Payload{}, errors.New("beacon: cliMode is false")
	}
	if !constantTimeEqualHex(p.CodeHash, phrase.Hash(canonicalPhrase)) {
		return Payload{}, errors.New("beacon: codeHash mismatch")
	}

	return p, nil
}
