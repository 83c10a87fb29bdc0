package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTLSConfig(t *testing.T) {
	tests := []struct {
		name    string
		tls     TLSConfig
		wantErr string
	}{
		{
			name: "disabled",
			tls:  TLSConfig{Mode: "disabled"},
		},
		{
			name:    "disabled still checks version",
			tls:     TLSConfig{Mode: "disabled", MinVersion: "1.0"},
			wantErr: "invalid TLS minVersion: 1.0",
		},
		{
			name:    "unknown mode",
			tls:     TLSConfig{Mode: "tlsv2"},
			wantErr: "invalid TLS mode: tlsv2",
		},
		{
			name: "server mode with certificate files",
			tls: TLSConfig{
				Mode:     "server",
				CertFile: "testdata/server.crt",
				KeyFile:  "testdata/server.key",
			},
		},
		{
			name: "server mode with inline PEM",
			tls: TLSConfig{
				Mode:        "server",
				CertContent: "cert-pem",
				KeyContent:  "key-pem",
			},
		},
		{
			name: "file and inline sources may be mixed across fields",
			tls: TLSConfig{
				Mode:       "server",
				CertFile:   "testdata/server.crt",
				KeyContent: "key-pem",
			},
		},
		{
			name:    "server mode without certificate",
			tls:     TLSConfig{Mode: "server", KeyFile: "testdata/server.key"},
			wantErr: "TLS certificate and key are required for server mode",
		},
		{
			name:    "server mode without key",
			tls:     TLSConfig{Mode: "server", CertFile: "testdata/server.crt"},
			wantErr: "TLS certificate and key are required for server mode",
		},
		{
			name: "certificate from two sources",
			tls: TLSConfig{
				Mode:        "server",
				CertFile:    "testdata/server.crt",
				CertContent: "cert-pem",
				KeyFile:     "testdata/server.key",
			},
			wantErr: "cannot specify both certFile and certContent",
		},
		{
			name: "key from two sources",
			tls: TLSConfig{
				Mode:       "server",
				CertFile:   "testdata/server.crt",
				KeyFile:    "testdata/server.key",
				KeyContent: "key-pem",
			},
			wantErr: "cannot specify both keyFile and keyContent",
		},
		{
			name: "mutual mode with certificate files",
			tls: TLSConfig{
				Mode:     "mutual",
				CertFile: "testdata/server.crt",
				KeyFile:  "testdata/server.key",
				CAFile:   "testdata/ca.crt",
			},
		},
		{
			name: "mutual mode with inline PEM",
			tls: TLSConfig{
				Mode:        "mutual",
				CertContent: "cert-pem",
				KeyContent:  "key-pem",
				CAContent:   "ca-pem",
			},
		},
		{
			name: "mutual mode without certificate",
			tls: TLSConfig{
				Mode:   "mutual",
				CAFile: "testdata/ca.crt",
			},
			wantErr: "TLS certificate and key are required for mutual mode",
		},
		{
			name: "mutual mode without CA",
			tls: TLSConfig{
				Mode:     "mutual",
				CertFile: "testdata/server.crt",
				KeyFile:  "testdata/server.key",
			},
			wantErr: "CA certificate is required for mutual TLS mode",
		},
		{
			name: "CA from two sources",
			tls: TLSConfig{
				Mode:      "mutual",
				CertFile:  "testdata/server.crt",
				KeyFile:   "testdata/server.key",
				CAFile:    "testdata/ca.crt",
				CAContent: "ca-pem",
			},
			wantErr: "cannot specify both caFile and caContent",
		},
		{
			name: "mutual mode rejects unknown auth policy",
			tls: TLSConfig{
				Mode:             "mutual",
				CertContent:      "cert-pem",
				KeyContent:       "key-pem",
				CAContent:        "ca-pem",
				ClientAuthPolicy: "maybe",
			},
			wantErr: "invalid clientAuthPolicy: maybe",
		},
		{
			name: "minimum version 1.3",
			tls: TLSConfig{
				Mode:        "server",
				CertContent: "cert-pem",
				KeyContent:  "key-pem",
				MinVersion:  "1.3",
			},
		},
		{
			name: "minimum version below the floor",
			tls: TLSConfig{
				Mode:        "server",
				CertContent: "cert-pem",
				KeyContent:  "key-pem",
				MinVersion:  "1.1",
			},
			wantErr: "invalid TLS minVersion: 1.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{Server: ServerConfig{TLS: tt.tls}}

			err := cfg.ValidateTLSConfig()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClientAuthPolicies(t *testing.T) {
	for _, policy := range []string{"", "require", "request", "verify"} {
		tls := TLSConfig{
			Mode:             "mutual",
			CertContent:      "cert-pem",
			KeyContent:       "key-pem",
			CAContent:        "ca-pem",
			ClientAuthPolicy: policy,
		}
		cfg := Config{Server: ServerConfig{TLS: tls}}

		assert.NoError(t, cfg.ValidateTLSConfig(), "policy %q should be accepted", policy)
	}
}

func TestMinimumTLSVersions(t *testing.T) {
	tests := []struct {
		version string
		ok      bool
	}{
		{version: "", ok: true},
		{version: "1.2", ok: true},
		{version: "1.3", ok: true},
		{version: "1.0", ok: false},
		{version: "1.1", ok: false},
		{version: "ssl3", ok: false},
	}

	for _, tt := range tests {
		tls := TLSConfig{Mode: "disabled", MinVersion: tt.version}
		cfg := Config{Server: ServerConfig{TLS: tls}}

		err := cfg.ValidateTLSConfig()
		if tt.ok {
			assert.NoError(t, err, "version %q should be accepted", tt.version)
		} else {
			assert.Error(t, err, "version %q should be rejected", tt.version)
		}
	}
}
