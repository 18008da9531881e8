// Package server implements the sender-side TransferServer (C5): TLS
// termination over the sender's ephemeral Identity, the /info,
// /prepare-upload, and /download routes, per-IP rate limiting, and the
// one-shot "receiver connected"/"transfer complete" barriers the
// orchestrator awaits.
//
// Grounded on the teacher's internal/localsend/recv package
// (FileReceiver: a fiber.App wired to preUploadHandler/uploadHandler/
// infoHandler, served over ListenTLSWithCertificate), restructured
// from a receive-side upload server into a send-side download server
// since this spec has the sender host the files, and extended with
// the authenticated cliAuth handshake, rate limiting, and the
// completion barrier the teacher's flow does not have.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/cedarlane/phrasedrop/internal/catalog"
	"github.com/cedarlane/phrasedrop/internal/identity"
	"github.com/cedarlane/phrasedrop/internal/xfer"
	"github.com/cedarlane/phrasedrop/internal/xfer/xerr"
	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
)

// CompletionGrace is the network-buffer flush delay between the
// delivered-file counter reaching the catalog size and the completion
// barrier firing (spec §4.5: "500 ms network-buffer flush grace").
const CompletionGrace = 500 * time.Millisecond

// Config parameterizes a Server.
type Config struct {
	Identity   *identity.Identity
	Catalog    *catalog.Catalog
	CodePhrase string
	Alias      string
}

// Server is the sender's TLS HTTP transfer endpoint.
type Server struct {
	cfg      Config
	app      *fiber.App
	tracker  *sessionTracker
	limiter  *rateLimiter
	listener net.Listener
}

// New builds a Server. Call Serve to start accepting connections.
func New(cfg Config) *Server {
	s := &Server{
		cfg:     cfg,
		tracker: newSessionTracker(cfg.Catalog),
		limiter: newRateLimiter(),
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	app.Get(xfer.PathInfo, s.infoHandler)
	app.Post(xfer.PathPrepareUp, s.rateLimited(s.prepareUploadHandler))
	app.Get(xfer.PathDownload, s.rateLimited(s.downloadHandler))
	s.app = app

	return s
}

// Connected returns the channel that closes once a receiver completes
// /prepare-upload successfully.
func (s *Server) Connected() <-chan struct{} {
	return s.tracker.Connected()
}

// Complete returns the channel that closes once the completion barrier
// fires.
func (s *Server) Complete() <-chan struct{} {
	return s.tracker.Complete()
}

// Serve binds addr (already probed available by the orchestrator) and
// blocks accepting TLS connections until Shutdown is called.
func (s *Server) Serve(addr string) error {
	tlsCfg, err := s.cfg.Identity.ServerTLSConfig()
	if err != nil {
		return xerr.Wrap(xerr.TLS, "build server tls config", err)
	}

	ln, err := tls.Listen("tcp", addr, tlsCfg)
	if err != nil {
		return xerr.Wrap(xerr.Config, fmt.Sprintf("listen on %s", addr), err)
	}
	s.listener = ln

	if err := s.app.Listener(ln); err != nil {
		return xerr.Wrap(xerr.Transfer, "serve", err)
	}
	return nil
}

// Shutdown gracefully stops the fiber app, waiting up to ctx's
// deadline for in-flight requests to complete.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	// fiber reports an unmatched route as a *fiber.Error (404); keep its
	// status rather than turning it into a 500.
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.SendStatus(fe.Code)
	}
	slog.Error("xfer: handler error", "path", c.Path(), "error", err)
	if c.Response().StatusCode() == fiber.StatusOK {
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return nil
}

// rateLimited wraps handler with the per-IP sliding-window check (spec
// §4.5 step 1, §3 RateBucket).
func (s *Server) rateLimited(handler fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := fiberutils.CopyString(c.IP())
		if !s.limiter.allow(ip, time.Now()) {
			slog.Warn("xfer: rate limit exceeded", "remote", ip)
			return c.SendStatus(fiber.StatusTooManyRequests)
		}
		return handler(c)
	}
}

func (s *Server) infoHandler(c *fiber.Ctx) error {
	return c.JSON(xfer.Info{
		Alias:       s.cfg.Alias,
		Version:     xfer.ProtocolVersion,
		DeviceModel: "LocalSend CLI",
		DeviceType:  "headless",
		Fingerprint: s.cfg.Identity.Fingerprint,
		Download:    true,
	})
}

func (s *Server) prepareUploadHandler(c *fiber.Ctx) error {
	var req xfer.PrepareUploadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	if req.CliAuth.Timestamp == "" || req.CliAuth.Proof == "" {
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	if err := xfer.VerifyProof(req.CliAuth, s.cfg.CodePhrase, s.cfg.Identity.Fingerprint, time.Now()); err != nil {
		switch err {
		case xfer.ErrAuthExpired:
			slog.Warn("xfer: expired cliAuth timestamp", "remote", c.IP())
			return c.SendStatus(fiber.StatusUnauthorized)
		case xfer.ErrAuthMismatch:
			slog.Warn("xfer: cliAuth proof mismatch, possible spoofing", "remote", c.IP())
			return c.SendStatus(fiber.StatusForbidden)
		default:
			return c.SendStatus(fiber.StatusUnauthorized)
		}
	}

	sess := s.tracker.ensureSession(req.Info.Alias, uuid.NewString)

	slog.Info("xfer: accepting receiver", "remote", fiberutils.CopyString(c.IP()), "session", sess.id, "alias", sess.peerAlias)

	return c.JSON(xfer.PrepareUploadResponse{
		SessionID: sess.id,
		Files:     s.cfg.Catalog.Descriptors(),
	})
}

func (s *Server) downloadHandler(c *fiber.Ctx) error {
	sessionID := c.Query("sessionId")
	fileID := c.Query("fileId")
	if sessionID == "" || fileID == "" {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	if !s.tracker.validSession(sessionID) {
		return c.SendStatus(fiber.StatusForbidden)
	}

	f, desc, err := s.cfg.Catalog.Open(fileID)
	if err != nil {
		return c.SendStatus(fiber.StatusNotFound)
	}
	// f is not closed here: SendStream hands fasthttp the *os.File as a
	// body stream that it reads and closes after downloadHandler
	// returns, when the response is actually serialized.

	c.Set(fiber.HeaderContentType, "application/octet-stream")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, desc.Name))
	c.Set(fiber.HeaderContentLength, fmt.Sprintf("%d", desc.Size))

	if err := c.SendStream(f, int(desc.Size)); err != nil {
		slog.Warn("xfer: download stream interrupted", "session", sessionID, "file", fileID, "error", err)
		return err
	}

	complete, ok := s.tracker.markDelivered(sessionID, fileID)
	if ok && complete {
		go func() {
			time.Sleep(CompletionGrace)
			s.tracker.fireComplete()
		}()
	}

	return nil
}
