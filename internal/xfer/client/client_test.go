package client

import (
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cedarlane/phrasedrop/internal/catalog"
	"github.com/cedarlane/phrasedrop/internal/identity"
	"github.com/cedarlane/phrasedrop/internal/xfer"
	"github.com/stretchr/testify/require"
)

// fakeServer stands in for the real fiber-based TransferServer in
// tests that only exercise the client's handshake/download logic
// against the documented wire contract (spec §6), not the server's
// own handler implementation (covered in package server).
func newFakeServer(t *testing.T, phrase string, id *identity.Identity, fileBody []byte) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc(xfer.PathPrepareUp, func(w http.ResponseWriter, r *http.Request) {
		var req xfer.PrepareUploadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if err := xfer.VerifyProof(req.CliAuth, phrase, id.Fingerprint, time.Now()); err != nil {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		resp := xfer.PrepareUploadResponse{
			SessionID: "sess-1",
			Files: map[string]catalog.Descriptor{
				"file-1": {ID: "file-1", Name: "doc.pdf", Size: uint64(len(fileBody)), FileType: catalog.FileTypePDF},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc(xfer.PathDownload, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sessionId") != "sess-1" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write(fileBody)
	})

	// Serve id's certificate, so the fingerprint the proof is checked
	// against is the one the client pins and proves over.
	srv := httptest.NewUnstartedServer(mux)
	cert, err := id.TLSCertificate()
	require.NoError(t, err)
	srv.TLS = &tls.Config{Certificates: []tls.Certificate{cert}}
	srv.StartTLS()
	t.Cleanup(srv.Close)

	return srv
}

func TestHandshakeAndDownload(t *testing.T) {
	const phrase = "swift-ocean"
	id, err := identity.New()
	require.NoError(t, err)

	fileBody := []byte("hello from the sender")
	srv := newFakeServer(t, phrase, id, fileBody)

	// Pin against the fingerprint of the certificate the fake server
	// actually presents (id's), so the client's TLS verifier accepts
	// the handshake.
	fp := identity.Fingerprint(srv.Certificate().Raw)

	dir := t.TempDir()
	c, err := New(Config{
		CodePhrase: phrase,
		Alias:      "Test Receiver",
		DestDir:    dir,
		Prompter:   &scriptedPrompter{},
		PeerAddr:   srv.Listener.Addr().String(),
		PeerFP:     fp,
	})
	require.NoError(t, err)

	sessionID, files, err := c.Handshake()
	require.NoError(t, err)
	require.Equal(t, "sess-1", sessionID)
	require.Len(t, files, 1)

	require.NoError(t, c.DownloadAll(sessionID, files))
}

func TestHandshakeRejectsBadProof(t *testing.T) {
	id, err := identity.New()
	require.NoError(t, err)

	srv := newFakeServer(t, "swift-ocean", id, []byte("x"))
	fp := identity.Fingerprint(srv.Certificate().Raw)

	dir := t.TempDir()
	c, err := New(Config{
		CodePhrase: "wrong-phrase",
		Alias:      "Test Receiver",
		DestDir:    dir,
		Prompter:   &scriptedPrompter{},
		PeerAddr:   srv.Listener.Addr().String(),
		PeerFP:     fp,
	})
	require.NoError(t, err)

	_, _, err = c.Handshake()
	require.Error(t, err)
}

func TestHandshakeRejectsFingerprintMismatch(t *testing.T) {
	id, err := identity.New()
	require.NoError(t, err)

	srv := newFakeServer(t, "swift-ocean", id, []byte("x"))

	dir := t.TempDir()
	c, err := New(Config{
		CodePhrase: "swift-ocean",
		Alias:      "Test Receiver",
		DestDir:    dir,
		Prompter:   &scriptedPrompter{},
		PeerAddr:   srv.Listener.Addr().String(),
		PeerFP:     "0000000000000000000000000000000000000000000000000000000000000000",
	})
	require.NoError(t, err)

	_, _, err = c.Handshake()
	require.Error(t, err)
}
