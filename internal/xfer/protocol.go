// Package xfer holds the wire types shared between the TransferServer
// and TransferClient: the /info response, the cliAuth proof, and the
// /prepare-upload request/response bodies (spec §4.5/§4.6/§6).
//
// Grounded on the teacher's internal/models package (DeviceInfo,
// PreUploadReq/PreUploadResp structs), generalized to add the
// authenticated cliAuth proof the spec requires in place of the
// teacher's PIN-only pairing flow.
package xfer

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/cedarlane/phrasedrop/internal/catalog"
)

// ProtocolVersion is advertised in Info and must match between peers.
const ProtocolVersion = "2.1"

// HTTP paths the TransferServer exposes, under the shared API prefix
// (spec §6).
const (
	APIPrefix     = "/api/localsend/v2"
	PathInfo      = APIPrefix + "/info"
	PathPrepareUp = APIPrefix + "/prepare-upload"
	PathDownload  = APIPrefix + "/download"
)

// AuthWindow bounds how stale a cliAuth timestamp may be before the
// server rejects it as expired (spec §6: "±5 minutes").
const AuthWindow = 5 * time.Minute

// ErrAuthExpired and ErrAuthMismatch distinguish a stale timestamp from
// a bad proof so the server can log and respond with a clearer cause.
var (
	ErrAuthExpired  = errors.New("xfer: auth timestamp outside window")
	ErrAuthMissing  = errors.New("xfer: cliAuth missing")
	ErrAuthMismatch = errors.New("xfer: auth proof mismatch")
)

// Info is the body of a GET PathInfo response: a peer's identity
// announcement, unauthenticated since it carries no session secrets.
type Info struct {
	Alias       string `json:"alias"`
	Version     string `json:"version"`
	DeviceModel string `json:"deviceModel"`
	DeviceType  string `json:"deviceType"`
	Fingerprint string `json:"fingerprint"`
	Download    bool   `json:"download"`
}

// CliAuth is the authentication proof sent with every prepare-upload
// request: a decimal unix-millisecond timestamp string and an HMAC
// over "<timestamp>:<server_fingerprint>" keyed by the code phrase.
type CliAuth struct {
	Timestamp string `json:"timestamp"`
	Proof     string `json:"proof"`
}

// ComputeProof derives the hex HMAC-SHA256 proof (spec §6: "HMAC binding").
func ComputeProof(codePhrase, timestamp, serverFingerprint string) string {
	h := hmac.New(sha256.New, []byte(codePhrase))
	h.Write([]byte(timestamp))
	h.Write([]byte(":"))
	h.Write([]byte(serverFingerprint))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyProof checks a CliAuth's proof against codePhrase and
// serverFingerprint, and its timestamp against AuthWindow. The proof
// comparison is constant-time (spec §9).
func VerifyProof(auth CliAuth, codePhrase, serverFingerprint string, now time.Time) error {
	if auth.Timestamp == "" || auth.Proof == "" {
		return ErrAuthMissing
	}
	if !TimestampWithinWindow(auth.Timestamp, now) {
		return ErrAuthExpired
	}
	expected := ComputeProof(codePhrase, auth.Timestamp, serverFingerprint)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(auth.Proof)) != 1 {
		return ErrAuthMismatch
	}
	return nil
}

// TimestampWithinWindow reports whether ts (decimal unix milliseconds)
// is within AuthWindow of now, in either direction, tolerating modest
// clock skew between peers. An unparsable timestamp is never within
// the window.
func TimestampWithinWindow(ts string, now time.Time) bool {
	ms, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return false
	}
	t := time.UnixMilli(ms)
	delta := now.Sub(t)
	if delta < 0 {
		delta = -delta
	}
	return delta <= AuthWindow
}

// PrepareUploadRequest announces the sender's identity and the files
// it intends to upload, keyed by catalog.Descriptor id. The client
// sends an empty Files map; the server ignores Info.Download on
// request.
type PrepareUploadRequest struct {
	Info    Info                          `json:"info"`
	Files   map[string]catalog.Descriptor `json:"files"`
	CliAuth CliAuth                       `json:"cliAuth"`
}

// PrepareUploadResponse carries the session id and the full manifest
// of files on offer, keyed by catalog.Descriptor id.
type PrepareUploadResponse struct {
	SessionID string                        `json:"sessionId"`
	Files     map[string]catalog.Descriptor `json:"files"`
}
