package tlsutil

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourcePaths(t *testing.T) {
	cert, key := Source{CertFile: "a.crt", KeyFile: "a.key", Dir: "/tmp"}.Paths()
	assert.Equal(t, "a.crt", cert)
	assert.Equal(t, "a.key", key)

	cert, key = Source{CertFile: "a.crt", Dir: "/certs"}.Paths()
	assert.Equal(t, filepath.Join("/certs", certName), cert)
	assert.Equal(t, filepath.Join("/certs", keyName), key)
}

func TestLoadGeneratesOnce(t *testing.T) {
	dir := t.TempDir()
	src := Source{Dir: dir, Generate: true, Hosts: []string{"mock.local", "10.1.2.3"}}

	first, err := src.Load(nil)
	require.NoError(t, err)
	require.NotNil(t, first)

	certPath, keyPath := src.Paths()
	assert.FileExists(t, certPath)
	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// A second load reads the stored pair instead of generating a new one.
	second, err := Source{Dir: dir}.Load(nil)
	require.NoError(t, err)
	assert.Equal(t, first.Certificate[0], second.Certificate[0])

	leaf, err := x509.ParseCertificate(second.Certificate[0])
	require.NoError(t, err)
	assert.Contains(t, leaf.DNSNames, "localhost")
	assert.Contains(t, leaf.DNSNames, "mock.local")
	assert.NoError(t, leaf.VerifyHostname("10.1.2.3"))
	assert.NoError(t, leaf.VerifyHostname("127.0.0.1"))
	assert.Equal(t, []string{"go-mockapi"}, leaf.Subject.Organization)
}

func TestLoadWithoutGeneration(t *testing.T) {
	_, err := Source{Dir: t.TempDir()}.Load(nil)
	assert.ErrorIs(t, err, ErrNoCertificate)
}

func TestLoadExplicitFiles(t *testing.T) {
	_, err := Source{CertFile: "/missing/a.crt", KeyFile: "/missing/a.key", Generate: true}.Load(nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoCertificate)

	dir := t.TempDir()
	certPEM, keyPEM, err := selfSigned(nil, time.Now())
	require.NoError(t, err)
	certPath := filepath.Join(dir, "x.crt")
	keyPath := filepath.Join(dir, "x.key")
	require.NoError(t, os.WriteFile(certPath, certPEM, 0o644))
	require.NoError(t, os.WriteFile(keyPath, keyPEM, 0o600))

	cert, err := Source{CertFile: certPath, KeyFile: keyPath}.Load(nil)
	require.NoError(t, err)
	assert.NotEmpty(t, cert.Certificate)
}

func TestSelfSignedValidity(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	certPEM, _, err := selfSigned(nil, now)
	require.NoError(t, err)

	pool := x509.NewCertPool()
	require.True(t, pool.AppendCertsFromPEM(certPEM))
	cert, _, err := parsePEM(certPEM)
	require.NoError(t, err)
	assert.True(t, cert.NotAfter.Equal(now.Add(validFor)))

	_, err = cert.Verify(x509.VerifyOptions{Roots: pool, DNSName: "localhost", CurrentTime: now.Add(time.Hour)})
	assert.NoError(t, err)
}
