package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cedarlane/phrasedrop/internal/catalog"
	"github.com/cedarlane/phrasedrop/internal/identity"
	"github.com/cedarlane/phrasedrop/internal/xfer"
	"github.com/cedarlane/phrasedrop/internal/xfer/xerr"
)

// Config parameterizes a Client.
type Config struct {
	CodePhrase  string
	Alias       string
	DestDir     string
	AutoAccept  bool
	Prompter    Prompter
	PeerAddr    string // host:port
	PeerFP      string // expected certificate fingerprint
}

// Client is the receiver-side TransferClient (C6): a pinned-TLS HTTP
// client driving the handshake and per-file downloads, and the Sink
// that lands bytes on disk.
//
// Uses net/http rather than fiber's fasthttp.Agent (the teacher's own
// HTTP client in ForwardSender) because a download response body must
// stream into the sink under MaxFileSize's running cap; fasthttp's
// Agent buffers a full response into memory before returning it,
// defeating that cap.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sink       *Sink
}

// New builds a Client whose TLS transport is pinned to cfg.PeerFP.
func New(cfg Config) (*Client, error) {
	sink, err := NewSink(cfg.DestDir, cfg.Prompter)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		TLSClientConfig: identity.ClientTLSConfig(cfg.PeerFP),
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   0, // no deadline on handshake or download requests; downloads may be long
			Transport: transport,
		},
		sink: sink,
	}, nil
}

func (c *Client) url(path string) string {
	return fmt.Sprintf("https://%s%s", c.cfg.PeerAddr, path)
}

// Handshake performs the authenticated POST /prepare-upload exchange
// (spec §4.6 step 3) and returns the session id and file manifest.
func (c *Client) Handshake() (string, map[string]catalog.Descriptor, error) {
	ts := fmt.Sprintf("%d", time.Now().UnixMilli())
	proof := xfer.ComputeProof(c.cfg.CodePhrase, ts, c.cfg.PeerFP)

	req := xfer.PrepareUploadRequest{
		Info: xfer.Info{
			Alias:       c.cfg.Alias,
			Version:     xfer.ProtocolVersion,
			DeviceModel: "LocalSend CLI",
			DeviceType:  "headless",
			Fingerprint: c.cfg.PeerFP,
		},
		Files:   map[string]catalog.Descriptor{},
		CliAuth: xfer.CliAuth{Timestamp: ts, Proof: proof},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", nil, xerr.Wrap(xerr.Protocol, "encode prepare-upload request", err)
	}

	resp, err := c.httpClient.Post(c.url(xfer.PathPrepareUp), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", nil, classifyNetError(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return "", nil, xerr.New(xerr.Auth, "authentication expired or missing")
	case http.StatusForbidden:
		return "", nil, xerr.New(xerr.Auth, "authentication proof rejected by peer")
	case http.StatusTooManyRequests:
		return "", nil, xerr.New(xerr.Protocol, "peer rate-limited this request")
	default:
		return "", nil, xerr.New(xerr.Protocol, fmt.Sprintf("unexpected status %d from prepare-upload", resp.StatusCode))
	}

	var upResp xfer.PrepareUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&upResp); err != nil {
		return "", nil, xerr.Wrap(xerr.Protocol, "decode prepare-upload response", err)
	}
	if upResp.SessionID == "" {
		return "", nil, xerr.New(xerr.Protocol, "prepare-upload response missing sessionId")
	}

	return upResp.SessionID, upResp.Files, nil
}

// DownloadAll streams every file in files, in deterministic order
// sorted by file id, into the sink (spec §4.6 step 5). It returns on
// the first error; files already written remain on disk.
func (c *Client) DownloadAll(sessionID string, files map[string]catalog.Descriptor) error {
	ids := make([]string, 0, len(files))
	for fileID := range files {
		ids = append(ids, fileID)
	}
	sort.Strings(ids)

	for _, fileID := range ids {
		desc := files[fileID]
		if err := c.downloadOne(sessionID, fileID, desc); err != nil {
			return err
		}
		slog.Info("received file", "name", desc.Name, "size", desc.Size)
	}
	return nil
}

func (c *Client) downloadOne(sessionID, fileID string, desc catalog.Descriptor) error {
	url := fmt.Sprintf("%s?sessionId=%s&fileId=%s", c.url(xfer.PathDownload), sessionID, fileID)

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return classifyNetError(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return xerr.New(xerr.Protocol, "session rejected by peer")
	case http.StatusNotFound:
		return xerr.New(xerr.Protocol, fmt.Sprintf("peer no longer has file %q", desc.Name))
	case http.StatusTooManyRequests:
		return xerr.New(xerr.Protocol, "peer rate-limited this request")
	default:
		return xerr.New(xerr.Protocol, fmt.Sprintf("unexpected status %d downloading %q", resp.StatusCode, desc.Name))
	}

	_, err = c.sink.Receive(desc.Name, int64(desc.Size), resp.Body)
	return err
}

// classifyNetError distinguishes a TLS fingerprint-verification
// failure (identity.ClientTLSConfig's VerifyPeerCertificate hook,
// surfaced by crypto/tls as a handshake error wrapping our message)
// from any other transport failure.
func classifyNetError(err error) error {
	if strings.Contains(err.Error(), "identity:") {
		return xerr.Wrap(xerr.TLS, "certificate fingerprint verification failed", err)
	}
	return xerr.Wrap(xerr.Transfer, "network request failed", err)
}
