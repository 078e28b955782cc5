package tls

import (
	"crypto/tls"
	"path/filepath"
	"testing"

	"github.com/EternisAI/blinkup-bridge/internal/cert"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientAuthType(t *testing.T) {
	tests := []struct {
		in      string
		want    tls.ClientAuthType
		wantErr bool
	}{
		{"", tls.NoClientCert, false},
		{"none", tls.NoClientCert, false},
		{"request", tls.RequestClientCert, false},
		{"require", tls.RequireAndVerifyClientCert, false},
		{"always", tls.NoClientCert, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClientAuthType(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServerCredentials_MissingFiles(t *testing.T) {
	dir := t.TempDir()

	_, err := ServerCredentials(Config{
		CertFile: filepath.Join(dir, "server.crt"),
		KeyFile:  filepath.Join(dir, "server.key"),
	})
	assert.ErrorContains(t, err, "failed to load server certificate")

	_, err = ServerCredentials(Config{ClientAuth: "sometimes"})
	assert.ErrorContains(t, err, "invalid client auth type")
}

func TestClientCredentials_MissingCA(t *testing.T) {
	_, err := ClientCredentials("", "", filepath.Join(t.TempDir(), "ca.crt"), "")
	assert.ErrorContains(t, err, "failed to read CA certificate")
}

func TestServerCredentials_GeneratedFiles(t *testing.T) {
	dir := t.TempDir()
	paths := cert.Paths{
		CACert:     filepath.Join(dir, "ca.crt"),
		CAKey:      filepath.Join(dir, "ca.key"),
		ServerCert: filepath.Join(dir, "server.crt"),
		ServerKey:  filepath.Join(dir, "server.key"),
	}
	require.NoError(t, cert.Ensure(paths, nil))

	creds, err := ServerCredentials(Config{
		CertFile:   paths.ServerCert,
		KeyFile:    paths.ServerKey,
		CAFile:     paths.CACert,
		ClientAuth: "require",
	})
	require.NoError(t, err)
	assert.Equal(t, "tls", creds.Info().SecurityProtocol)

	_, err = ClientCredentials("", "", paths.CACert, "localhost")
	assert.NoError(t, err)
}
