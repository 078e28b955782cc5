package tls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"google.golang.org/grpc/credentials"
)

type Config struct {
	Enabled    bool   `mapstructure:"enabled"`
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	CAFile     string `mapstructure:"ca_file"`
	CAKeyFile  string `mapstructure:"ca_key_file"`
	ClientAuth string `mapstructure:"client_auth"`

	// AutoGenerate issues a private CA (kept at CAFile/CAKeyFile) and a
	// server pair for Hosts when the files are missing.
	AutoGenerate bool   `mapstructure:"auto_generate"`
	Hosts        string `mapstructure:"hosts"`
}

// ServerCredentials builds transport credentials for the bridge's gRPC
// listener. Client certificates are only checked against CAFile when
// ClientAuth asks for them.
func ServerCredentials(cfg Config) (credentials.TransportCredentials, error) {
	clientAuth, err := ParseClientAuthType(cfg.ClientAuth)
	if err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   clientAuth,
		MinVersion:   tls.VersionTLS12,
	}

	if clientAuth != tls.NoClientCert {
		pool, err := loadCAPool(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tlsCfg.ClientCAs = pool
	}

	return credentials.NewTLS(tlsCfg), nil
}

// ClientCredentials builds credentials for probing the bridge. The client
// certificate is optional; without one only the server is verified.
func ClientCredentials(certFile, keyFile, caFile, serverName string) (credentials.TransportCredentials, error) {
	pool, err := loadCAPool(caFile)
	if err != nil {
		return nil, err
	}

	tlsCfg := &tls.Config{
		RootCAs:    pool,
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}

	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return credentials.NewTLS(tlsCfg), nil
}

func ParseClientAuthType(authType string) (tls.ClientAuthType, error) {
	switch authType {
	case "", "none":
		return tls.NoClientCert, nil
	case "request":
		return tls.RequestClientCert, nil
	case "require":
		return tls.RequireAndVerifyClientCert, nil
	default:
		return tls.NoClientCert, fmt.Errorf("invalid client auth type: %s (valid: none, request, require)", authType)
	}
}

func loadCAPool(caFile string) (*x509.CertPool, error) {
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("failed to append CA certificate")
	}
	return pool, nil
}
