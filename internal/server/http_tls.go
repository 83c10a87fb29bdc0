package server

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"resumatch/internal/config"
	"resumatch/internal/observability"
)

// configureTLS applies the configured TLS mode to the HTTP server.
func (s *Server) configureTLS(srv *http.Server, vaultClient VaultSecretReader, om *observability.Manager) error {
	switch s.TLSConfig.Mode {
	case "disabled":
		fmt.Printf("Listening on http://%s (TLS disabled)\n", srv.Addr)
		return nil
	case "server":
		fmt.Printf("Listening on https://%s (server-only TLS)\n", srv.Addr)
	case "mutual":
		fmt.Printf("Listening on https://%s (mutual TLS, client certificates required)\n", srv.Addr)
	default:
		return fmt.Errorf("unsupported TLS mode %q (want disabled, server, or mutual)", s.TLSConfig.Mode)
	}

	if s.TLSConfig.AutoReload.Enabled {
		if err := s.startCertManager(vaultClient, om); err != nil {
			return err
		}
	}

	tc, err := s.buildTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to build the TLS configuration: %w", err)
	}
	srv.TLSConfig = tc
	return nil
}

// startCertManager brings up certificate auto-reload.
func (s *Server) startCertManager(vaultClient VaultSecretReader, om *observability.Manager) error {
	cm := NewCertificateManager(&s.TLSConfig, &s.TLSConfig.AutoReload, vaultClient, om, s.Logger)
	cm.AddReloadCallback(func(ok bool, err error) {
		if ok {
			s.Logger.Info("TLS certificates reloaded")
		} else {
			s.Logger.LogError(err, "TLS certificate reload failed")
		}
	})

	if err := cm.Start(); err != nil {
		return fmt.Errorf("failed to start certificate auto-reload: %w", err)
	}
	s.CertificateManager = cm

	fmt.Println("TLS auto-reload: enabled")
	if s.TLSConfig.AutoReload.FileWatcher.Enabled {
		fmt.Println("  - watching certificate files")
	}
	if s.TLSConfig.AutoReload.VaultWatcher.Enabled {
		fmt.Println("  - polling Vault for certificate changes")
	}
	return nil
}

// newVaultClient builds a Vault client when the Vault watcher needs one.
func (s *Server) newVaultClient() (VaultSecretReader, error) {
	if !s.TLSConfig.AutoReload.VaultWatcher.Enabled {
		return nil, nil
	}

	client, err := config.NewVaultClient(s.AppConfig.Vault, s.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client for TLS auto-reload: %w", err)
	}
	if client == nil {
		// Vault is disabled in the app config; return an untyped nil so the
		// interface compares equal to nil downstream.
		return nil, nil
	}
	return client, nil
}

// buildTLSConfig assembles the tls.Config for the active mode.
func (s *Server) buildTLSConfig() (*tls.Config, error) {
	tc := &tls.Config{
		MinVersion: minTLSVersion(s.TLSConfig.MinVersion),
	}

	if s.CertificateManager != nil {
		tc.GetCertificate = s.CertificateManager.GetServerCertificate
		if s.TLSConfig.Mode == "mutual" {
			tc.VerifyPeerCertificate = s.CertificateManager.VerifyPeerCertificate
		}
	} else {
		cert, _, err := loadKeyPair(s.TLSConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load server certificate: %w", err)
		}
		if cert == nil {
			return nil, fmt.Errorf("TLS certificate and key are required (provide either files or content)")
		}
		tc.Certificates = []tls.Certificate{*cert}
	}

	if suites := cipherSuiteIDs(s.TLSConfig.CipherSuites); len(suites) > 0 {
		tc.CipherSuites = suites
	}

	if err := s.configureClientAuth(tc); err != nil {
		return nil, err
	}

	if s.TLSConfig.InsecureSkipVerify {
		tc.InsecureSkipVerify = true
		fmt.Println("WARNING: TLS peer verification is disabled (insecureSkipVerify=true)")
	}
	if s.TLSConfig.ServerName != "" {
		tc.ServerName = s.TLSConfig.ServerName
	}

	return tc, nil
}

// minTLSVersion maps the configured version string, defaulting to TLS 1.2.
func minTLSVersion(v string) uint16 {
	if v == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

// configureClientAuth wires client certificate verification for mutual TLS.
func (s *Server) configureClientAuth(tc *tls.Config) error {
	if s.TLSConfig.Mode != "mutual" {
		tc.ClientAuth = tls.NoClientCert
		return nil
	}

	pool, err := loadCAPool(s.TLSConfig)
	if err != nil {
		return err
	}
	if pool == nil {
		return fmt.Errorf("mutual TLS needs a CA certificate to verify client certificates")
	}
	tc.ClientCAs = pool

	switch s.TLSConfig.ClientAuthPolicy {
	case "request":
		tc.ClientAuth = tls.RequestClientCert
	case "verify":
		tc.ClientAuth = tls.VerifyClientCertIfGiven
	default:
		tc.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return nil
}

var cipherSuitesByName = map[string]uint16{
	"TLS_AES_128_GCM_SHA256":                  tls.TLS_AES_128_GCM_SHA256,
	"TLS_AES_256_GCM_SHA384":                  tls.TLS_AES_256_GCM_SHA384,
	"TLS_CHACHA20_POLY1305_SHA256":            tls.TLS_CHACHA20_POLY1305_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256": tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384": tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256":   tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
	"TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384":   tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	"TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305":  tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	"TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305":    tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
}

// cipherSuiteIDs maps configured cipher suite names to their IDs, ignoring
// names Go does not recognize.
func cipherSuiteIDs(names []string) []uint16 {
	ids := make([]uint16, 0, len(names))
	for _, name := range names {
		if id, ok := cipherSuitesByName[name]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
