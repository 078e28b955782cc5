// Package cert bootstraps a private CA and a server certificate for the
// bridge's gRPC health listener on hosts that have no PKI of their own.
package cert

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
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
	caValidity     = 10 * 365 * 24 * time.Hour
	serverValidity = 365 * 24 * time.Hour
	organization   = "BlinkUp Bridge"
)

type Paths struct {
	CACert     string
	CAKey      string
	ServerCert string
	ServerKey  string
}

// Ensure creates whichever of the CA and server key pairs are missing.
// Existing files are left alone; a new server certificate is signed by the
// CA on disk. hosts may mix DNS names and IP literals.
func Ensure(paths Paths, hosts []string) error {
	if len(hosts) == 0 {
		hosts = []string{"localhost", "127.0.0.1", "::1"}
	}

	var (
		caCert *x509.Certificate
		caKey  crypto.Signer
		err    error
	)

	if fileExists(paths.CACert) && fileExists(paths.CAKey) {
		slog.Debug("Using existing CA certificate", "cert_path", paths.CACert)
		caCert, caKey, err = loadCA(paths.CACert, paths.CAKey)
		if err != nil {
			return fmt.Errorf("failed to load existing CA certificate: %w", err)
		}
	} else {
		slog.Info("CA certificate not found, generating new CA", "cert_path", paths.CACert)
		caCert, caKey, err = generateCA()
		if err != nil {
			return fmt.Errorf("failed to generate CA certificate: %w", err)
		}
		if err := writePair(caCert, caKey, paths.CACert, paths.CAKey); err != nil {
			return err
		}
	}

	if fileExists(paths.ServerCert) && fileExists(paths.ServerKey) {
		slog.Debug("Using existing server certificate", "cert_path", paths.ServerCert)
		return nil
	}

	slog.Info("Server certificate not found, generating new server certificate",
		"cert_path", paths.ServerCert,
		"hosts", hosts)

	serverCert, serverKey, err := generateServerCert(caCert, caKey, hosts)
	if err != nil {
		return fmt.Errorf("failed to generate server certificate: %w", err)
	}
	return writePair(serverCert, serverKey, paths.ServerCert, paths.ServerKey)
}

func generateCA() (*x509.Certificate, crypto.Signer, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate CA key: %w", err)
	}

	serial, err := serialNumber()
	if err != nil {
		return nil, nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{organization},
			CommonName:   organization + " Root CA",
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(caValidity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
	}

	return sign(template, template, key, key)
}

func generateServerCert(caCert *x509.Certificate, caKey crypto.Signer, hosts []string) (*x509.Certificate, crypto.Signer, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate server key: %w", err)
	}

	serial, err := serialNumber()
	if err != nil {
		return nil, nil, err
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			Organization: []string{organization},
			CommonName:   hosts[0],
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(serverValidity),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	return sign(template, caCert, key, caKey)
}

func sign(template, parent *x509.Certificate, key *ecdsa.PrivateKey, signer crypto.Signer) (*x509.Certificate, crypto.Signer, error) {
	der, err := x509.CreateCertificate(rand.Reader, template, parent, &key.PublicKey, signer)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, key, nil
}

func serialNumber() (*big.Int, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}
	return serial, nil
}

func loadCA(certPath, keyPath string) (*x509.Certificate, crypto.Signer, error) {
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil {
		return nil, nil, errors.New("failed to decode CA certificate PEM")
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CA certificate: %w", err)
	}

	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CA key: %w", err)
	}
	block, _ = pem.Decode(keyPEM)
	if block == nil {
		return nil, nil, errors.New("failed to decode CA key PEM")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse CA key: %w", err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, nil, fmt.Errorf("CA key of type %T cannot sign", key)
	}

	return cert, signer, nil
}

func writePair(cert *x509.Certificate, key crypto.Signer, certPath, keyPath string) error {
	keyBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return fmt.Errorf("failed to marshal key: %w", err)
	}

	if err := writePEM(certPath, "CERTIFICATE", cert.Raw, 0o644); err != nil {
		return err
	}
	if err := writePEM(keyPath, "PRIVATE KEY", keyBytes, 0o600); err != nil {
		return err
	}

	slog.Info("Wrote certificate", "cert_path", certPath, "key_path", keyPath)
	return nil
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
