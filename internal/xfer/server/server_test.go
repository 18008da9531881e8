package server

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cedarlane/phrasedrop/internal/catalog"
	"github.com/cedarlane/phrasedrop/internal/identity"
	"github.com/cedarlane/phrasedrop/internal/xfer"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, phrase string) (*Server, *identity.Identity, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	cat, err := catalog.Scan([]string{path})
	require.NoError(t, err)

	id, err := identity.New()
	require.NoError(t, err)

	srv := New(Config{
		Identity:   id,
		Catalog:    cat,
		CodePhrase: phrase,
		Alias:      "Test Sender",
	})

	ln, err := tls.Listen("tcp", "127.0.0.1:0", must(id.ServerTLSConfig()))
	require.NoError(t, err)

	addr := ln.Addr().String()
	go srv.app.Listener(ln)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	return srv, id, addr
}

func must(cfg *tls.Config, err error) *tls.Config {
	if err != nil {
		panic(err)
	}
	return cfg
}

func pinnedClient(fingerprint string) *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: identity.ClientTLSConfig(fingerprint),
		},
	}
}

func TestInfoHandlerUnauthenticated(t *testing.T) {
	_, id, addr := newTestServer(t, "swift-ocean")
	client := pinnedClient(id.Fingerprint)

	resp, err := client.Get(fmt.Sprintf("https://%s%s", addr, xfer.PathInfo))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var info xfer.Info
	require.NoError(t, decodeJSON(resp.Body, &info))
	require.Equal(t, "Test Sender", info.Alias)
	require.True(t, info.Download)
	require.Equal(t, id.Fingerprint, info.Fingerprint)
}

func TestPrepareUploadRejectsMissingAuth(t *testing.T) {
	_, id, addr := newTestServer(t, "swift-ocean")
	client := pinnedClient(id.Fingerprint)

	body := prepareUploadBody(t, "", "")
	resp, err := client.Post(fmt.Sprintf("https://%s%s", addr, xfer.PathPrepareUp), "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPrepareUploadRejectsBadProof(t *testing.T) {
	_, id, addr := newTestServer(t, "swift-ocean")
	client := pinnedClient(id.Fingerprint)

	body := prepareUploadBody(t, "not-the-right-proof", nowTS())
	resp, err := client.Post(fmt.Sprintf("https://%s%s", addr, xfer.PathPrepareUp), "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPrepareUploadRejectsExpiredTimestamp(t *testing.T) {
	const phrase = "swift-ocean"
	_, id, addr := newTestServer(t, phrase)
	client := pinnedClient(id.Fingerprint)

	staleTS := fmt.Sprintf("%d", time.Now().Add(-10*time.Minute).UnixMilli())
	proof := xfer.ComputeProof(phrase, staleTS, id.Fingerprint)
	body := prepareUploadBody(t, proof, staleTS)

	resp, err := client.Post(fmt.Sprintf("https://%s%s", addr, xfer.PathPrepareUp), "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPrepareUploadAndDownloadHappyPath(t *testing.T) {
	const phrase = "swift-ocean"
	srv, id, addr := newTestServer(t, phrase)
	client := pinnedClient(id.Fingerprint)

	ts := nowTS()
	proof := xfer.ComputeProof(phrase, ts, id.Fingerprint)
	body := prepareUploadBody(t, proof, ts)

	resp, err := client.Post(fmt.Sprintf("https://%s%s", addr, xfer.PathPrepareUp), "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var upResp xfer.PrepareUploadResponse
	require.NoError(t, decodeJSON(resp.Body, &upResp))
	require.NotEmpty(t, upResp.SessionID)
	require.Len(t, upResp.Files, 1)

	select {
	case <-srv.Connected():
	case <-time.After(time.Second):
		t.Fatal("connected barrier did not fire")
	}

	var fileID string
	for id := range upResp.Files {
		fileID = id
	}

	dlURL := fmt.Sprintf("https://%s%s?sessionId=%s&fileId=%s", addr, xfer.PathDownload, upResp.SessionID, fileID)
	dlResp, err := client.Get(dlURL)
	require.NoError(t, err)
	defer dlResp.Body.Close()
	require.Equal(t, http.StatusOK, dlResp.StatusCode)

	content, err := io.ReadAll(dlResp.Body)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(content))

	select {
	case <-srv.Complete():
	case <-time.After(2 * time.Second):
		t.Fatal("completion barrier did not fire")
	}
}

func TestDownloadRejectsUnknownSession(t *testing.T) {
	_, id, addr := newTestServer(t, "swift-ocean")
	client := pinnedClient(id.Fingerprint)

	dlURL := fmt.Sprintf("https://%s%s?sessionId=bogus&fileId=bogus", addr, xfer.PathDownload)
	resp, err := client.Get(dlURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUnknownRouteIs404(t *testing.T) {
	_, id, addr := newTestServer(t, "swift-ocean")
	client := pinnedClient(id.Fingerprint)

	resp, err := client.Get(fmt.Sprintf("https://%s/nonexistent", addr))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func nowTS() string {
	return fmt.Sprintf("%d", time.Now().UnixMilli())
}

func prepareUploadBody(t *testing.T, proof, ts string) io.Reader {
	t.Helper()
	req := xfer.PrepareUploadRequest{
		Info: xfer.Info{
			Alias:       "Test Receiver",
			Version:     xfer.ProtocolVersion,
			DeviceModel: "LocalSend CLI",
			DeviceType:  "headless",
		},
		Files:   map[string]catalog.Descriptor{},
		CliAuth: xfer.CliAuth{Timestamp: ts, Proof: proof},
	}
	raw, err := json.Marshal(req)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}
