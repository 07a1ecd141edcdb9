// Package tlsutil provides the mock server's TLS certificate and a listener
// that serves HTTP and HTTPS on one port.
package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	certName = "mockapi.crt"
	keyName  = "mockapi.key"

	validFor = 365 * 24 * time.Hour
)

// ErrNoCertificate is returned when no certificate exists and generation is off.
var ErrNoCertificate = errors.New("no TLS certificate found and generation is disabled")

// Source says where the server certificate comes from. An explicit
// CertFile/KeyFile pair wins; otherwise the pair is read from Dir and,
// when Generate is set, created there on first use.
type Source struct {
	CertFile string
	KeyFile  string
	Dir      string
	Generate bool
	// Hosts are extra DNS names or IPs for a generated certificate.
	Hosts []string
}

// Paths returns the certificate and key files the source reads.
func (s Source) Paths() (cert, key string) {
	if s.CertFile != "" && s.KeyFile != "" {
		return s.CertFile, s.KeyFile
	}
	return filepath.Join(s.Dir, certName), filepath.Join(s.Dir, keyName)
}

// Load returns the server certificate.
func (s Source) Load(logger *slog.Logger) (*tls.Certificate, error) {
	if logger == nil {
		logger = slog.Default()
	}
	certPath, keyPath := s.Paths()

	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err == nil {
		logger.Info("loaded TLS certificate", "cert", certPath)
		return &cert, nil
	}
	if s.CertFile != "" && s.KeyFile != "" {
		return nil, fmt.Errorf("load certificate %s: %w", certPath, err)
	}
	if !s.Generate {
		return nil, ErrNoCertificate
	}

	certPEM, keyPEM, err := selfSigned(s.Hosts, time.Now())
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create certificate directory: %w", err)
	}
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return nil, fmt.Errorf("write certificate: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return nil, fmt.Errorf("write private key: %w", err)
	}
	logger.Info("generated self-signed TLS certificate", "cert", certPath, "key", keyPath)

	cert, err = tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse generated certificate: %w", err)
	}
	return &cert, nil
}

// ServerConfig wraps cert in a TLS 1.2+ server configuration.
func ServerConfig(cert *tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
	}
}

// selfSigned creates a PEM encoded ECDSA certificate and key valid for
// localhost, the loopback addresses, every local interface address and hosts.
func selfSigned(hosts []string, now time.Time) (certPEM, keyPEM []byte, err error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate private key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, fmt.Errorf("generate serial number: %w", err)
	}

	tmpl := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{"go-mockapi"},
			CommonName:   "go-mockapi self-signed",
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			tmpl.IPAddresses = append(tmpl.IPAddresses, ip)
		} else if h != "" {
			tmpl.DNSNames = append(tmpl.DNSNames, h)
		}
	}
	tmpl.IPAddresses = append(tmpl.IPAddresses, interfaceIPs()...)

	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal private key: %w", err)
	}
	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	return certPEM, keyPEM, nil
}

func interfaceIPs() []net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	var ips []net.IP
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
			ips = append(ips, ipnet.IP)
		}
	}
	return ips
}
