package identity

import (
	"crypto/tls"
	"crypto/x509"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducesValidCertAndFingerprint(t *testing.T) {
	id, err := New()
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(id.CertDER)
	require.NoError(t, err)
	assert.Equal(t, CommonName, cert.Subject.CommonName)

	assert.Len(t, id.Fingerprint, 64)
	assert.Equal(t, Fingerprint(id.CertDER), id.Fingerprint)
}

func TestTwoIdentitiesDiffer(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	b, err := New()
	require.NoError(t, err)

	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
}

func TestClientTLSConfigPinsFingerprint(t *testing.T) {
	server, err := New()
	require.NoError(t, err)
	impostor, err := New()
	require.NoError(t, err)

	serverCfg, err := server.ServerTLSConfig()
	require.NoError(t, err)

	ln, err := tls.Listen("tcp", "127.0.0.1:0", serverCfg)
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.(*tls.Conn).Handshake()
	}()

	// correct fingerprint succeeds
	goodCfg := ClientTLSConfig(server.Fingerprint)
	conn, err := tls.Dial("tcp", ln.Addr().String(), goodCfg)
	require.NoError(t, err)
	conn.Close()

	ln2, err := tls.Listen("tcp", "127.0.0.1:0", serverCfg)
	require.NoError(t, err)
	defer ln2.Close()
	go func() {
		conn, err := ln2.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.(*tls.Conn).Handshake()
	}()

	// impostor's fingerprint must be rejected
	badCfg := ClientTLSConfig(impostor.Fingerprint)
	_, err = tls.Dial("tcp", ln2.Addr().String(), badCfg)
	assert.Error(t, err)
}

func TestClientTLSConfigRejectsNoCertificate(t *testing.T) {
	cfg := ClientTLSConfig("deadbeef")
	err := cfg.VerifyPeerCertificate(nil, nil)
	assert.Error(t, err)
}
