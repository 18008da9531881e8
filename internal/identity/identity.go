// Package identity creates the ephemeral RSA key and self-signed X.509
// certificate each sender uses for a single session, and derives the
// TLS configs both sides of a transfer build on top of it.
//
// Grounded on the teacher's internal/localsend/common.go genTLScert and
// internal/localsend/utils/utils.go GenTLScert, generalized to compute
// and expose the certificate fingerprint (spec §3 Identity) and to
// provide a fingerprint-pinning client verifier instead of the
// teacher's InsecureSkipVerify.
package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/subtle"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// CommonName is the subject CN every ephemeral certificate carries.
const CommonName = "LocalSend CLI"

// Validity bounds how long an ephemeral certificate remains valid.
// Sessions never outlive a single process, so one day is ample slack
// for clock skew between the two peers.
const Validity = 24 * time.Hour

// Identity is the per-session key/certificate/fingerprint tuple. It is
// created when a sender starts and is never persisted to disk.
type Identity struct {
	PrivateKey  *rsa.PrivateKey
	CertDER     []byte
	CertPEM     []byte
	KeyPEM      []byte
	Fingerprint string
}

// New generates a fresh RSA-2048 key pair and a self-signed certificate
// valid for Validity, and computes its fingerprint.
func New() (*Identity, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("identity: generate serial: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName: CommonName,
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(Validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  false,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return nil, fmt.Errorf("identity: create certificate: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyBytes, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("identity: marshal private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyBytes})

	return &Identity{
		PrivateKey:  priv,
		CertDER:     der,
		CertPEM:     certPEM,
		KeyPEM:      keyPEM,
		Fingerprint: Fingerprint(der),
	}, nil
}

// Fingerprint returns the lowercase hex SHA-256 of a certificate's DER
// encoding.
func Fingerprint(der []byte) string {
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:])
}

// TLSCertificate builds a tls.Certificate suitable for
// tls.Config.Certificates from the identity's PEM-encoded key pair.
func (id *Identity) TLSCertificate() (tls.Certificate, error) {
	return tls.X509KeyPair(id.CertPEM, id.KeyPEM)
}

// ServerTLSConfig returns the TLS server configuration for the
// TransferServer (C5), presenting this identity's certificate.
func (id *Identity) ServerTLSConfig() (*tls.Config, error) {
	cert, err := id.TLSCertificate()
	if err != nil {
		return nil, fmt.Errorf("identity: build server tls config: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ClientTLSConfig returns a tls.Config that accepts a peer certificate
// if and only if its SHA-256(DER) fingerprint equals expectedFingerprint,
// comparing in constant time. Every other certificate — including a
// mismatched fingerprint or a certificate chaining to a real CA — is
// rejected. This replaces Go's usual chain validation entirely, since
// ephemeral self-signed certificates have no CA to validate against.
func ClientTLSConfig(expectedFingerprint string) *tls.Config {
	want := strings.ToLower(expectedFingerprint)
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		// Chain validation is meaningless for a self-signed,
		// per-session certificate; VerifyPeerCertificate below is
		// the real check.
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return fmt.Errorf("identity: peer presented no certificate")
			}
			got := Fingerprint(rawCerts[0])
			if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
				return fmt.Errorf("identity: certificate fingerprint mismatch")
			}
			return nil
		},
	}
}
