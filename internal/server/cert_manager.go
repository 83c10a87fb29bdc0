package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"resumatch/internal/config"
	"resumatch/internal/errors"
	"resumatch/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CertificateManager serves the TLS certificate for handshakes and swaps it
// out when the underlying files or Vault secrets change.
type CertificateManager struct {
	mu sync.RWMutex

	serverCert       *tls.Certificate
	serverCertExpiry time.Time
	caCertPool       *x509.CertPool

	fileWatcher  *CertWatcher
	vaultWatcher *VaultWatcher

	tlsCfg    *config.TLSConfig
	reloadCfg *config.AutoReloadConfig
	vault     VaultSecretReader

	onReload []ReloadCallback
	logger   *errors.Logger
	om       *observability.Manager

	reloads  reloadStats
	done     chan struct{}
	stopOnce sync.Once
}

// reloadStats tallies reload attempts under the manager's mutex.
type reloadStats struct {
	total    int64
	ok       int64
	failed   int64
	lastTime time.Time
	lastOK   bool
	lastErr  string
}

func (s *reloadStats) record(err error) {
	s.total++
	s.lastTime = time.Now()
	s.lastOK = err == nil
	if err == nil {
		s.ok++
		s.lastErr = ""
	} else {
		s.failed++
		s.lastErr = err.Error()
	}
}

// ReloadCallback is called after every certificate reload attempt.
type ReloadCallback func(ok bool, err error)

// CertificateMetrics is a point-in-time snapshot of the reload counters.
type CertificateMetrics struct {
	ReloadCount        int64
	ReloadSuccessCount int64
	ReloadFailureCount int64
	LastReloadTime     time.Time
	LastReloadSuccess  bool
	LastReloadError    string
}

// NewCertificateManager wires a manager to its certificate sources. Call
// Start to load material and begin watching.
func NewCertificateManager(tlsConfig *config.TLSConfig, autoReloadConfig *config.AutoReloadConfig, vaultClient VaultSecretReader, om *observability.Manager, logger *errors.Logger) *CertificateManager {
	if logger == nil {
		logger = errors.Discard()
	}
	return &CertificateManager{
		tlsCfg:    tlsConfig,
		reloadCfg: autoReloadConfig,
		vault:     vaultClient,
		logger:    logger,
		om:        om,
		done:      make(chan struct{}),
	}
}

// Start loads the initial certificates and brings up the configured watchers.
func (c *CertificateManager) Start() error {
	if err := c.reload(); err != nil {
		return fmt.Errorf("initial certificate load failed: %w", err)
	}

	c.startExpiryTicker()

	if err := c.startFileWatcher(); err != nil {
		return err
	}
	return c.startVaultWatcher()
}

// startFileWatcher watches certificate files when file-based material is in use.
func (c *CertificateManager) startFileWatcher() error {
	if c.reloadCfg == nil || !c.reloadCfg.FileWatcher.Enabled {
		return nil
	}
	if c.tlsCfg.CertFile == "" && c.tlsCfg.KeyFile == "" && c.tlsCfg.CAFile == "" {
		return nil
	}

	watcher, err := NewCertWatcher(c.tlsCfg.CertFile, c.tlsCfg.KeyFile, c.tlsCfg.CAFile,
		c.reloadCfg.FileWatcher.DebounceDelay, c.triggerReload, c.logger)
	if err != nil {
		return fmt.Errorf("failed to create certificate file watcher: %w", err)
	}
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to start certificate file watcher: %w", err)
	}
	c.fileWatcher = watcher

	c.logger.Info("Watching certificate files for changes",
		"cert_file", c.tlsCfg.CertFile, "key_file", c.tlsCfg.KeyFile, "ca_file", c.tlsCfg.CAFile)
	return nil
}

// startVaultWatcher polls Vault when the certificate material came from there.
func (c *CertificateManager) startVaultWatcher() error {
	if c.reloadCfg == nil || !c.reloadCfg.VaultWatcher.Enabled {
		return nil
	}
	if c.tlsCfg.CertContent == "" && c.tlsCfg.KeyContent == "" && c.tlsCfg.CAContent == "" {
		return nil
	}
	if c.vault == nil {
		c.logger.Warn("Vault watcher is enabled but no Vault client was supplied")
		return nil
	}

	watcher := NewVaultWatcher(c.vault, c.reloadCfg.VaultWatcher.SecretPath,
		c.reloadCfg.VaultWatcher.PollInterval, c.applyVaultUpdate, c.logger)
	if err := watcher.Start(); err != nil {
		return fmt.Errorf("failed to start Vault certificate watcher: %w", err)
	}
	c.vaultWatcher = watcher

	c.logger.Info("Watching Vault for certificate changes",
		"secret_path", c.reloadCfg.VaultWatcher.SecretPath,
		"poll_interval", c.reloadCfg.VaultWatcher.PollInterval)
	return nil
}

// applyVaultUpdate stores fresh certificate material from Vault and reloads.
func (c *CertificateManager) applyVaultUpdate(data *CertMaterial, err error) {
	if err != nil {
		c.logger.LogError(err, "Failed to fetch certificate data from Vault")
		return
	}

	c.mu.Lock()
	overlayPEM(&c.tlsCfg.CertContent, data.CertContent)
	overlayPEM(&c.tlsCfg.KeyContent, data.KeyContent)
	overlayPEM(&c.tlsCfg.CAContent, data.CAContent)
	c.mu.Unlock()

	c.triggerReload()
}

// overlayPEM replaces *dst only when the update actually carries content.
func overlayPEM(dst *string, content string) {
	if content != "" {
		*dst = content
	}
}

// Stop shuts down the watchers and the expiry ticker.
func (c *CertificateManager) Stop() error {
	c.stopOnce.Do(func() { close(c.done) })

	if c.fileWatcher != nil {
		if err := c.fileWatcher.Stop(); err != nil {
			return fmt.Errorf("failed to stop certificate file watcher: %w", err)
		}
	}
	if c.vaultWatcher != nil {
		if err := c.vaultWatcher.Stop(); err != nil {
			return fmt.Errorf("failed to stop Vault certificate watcher: %w", err)
		}
	}

	c.logger.Info("Certificate manager shut down")
	return nil
}

// GetServerCertificate hands the current certificate to TLS handshakes. An
// expired certificate is refused rather than served.
func (c *CertificateManager) GetServerCertificate(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
	c.mu.RLock()
	cert := c.serverCert
	expiry := c.serverCertExpiry
	c.mu.RUnlock()

	if cert == nil {
		return nil, fmt.Errorf("no server certificate loaded")
	}
	if time.Now().After(expiry) {
		c.logger.LogError(fmt.Errorf("server certificate has expired"),
			"Refusing handshake with expired certificate", "expiry", expiry, "server_name", hello.ServerName)
		return nil, fmt.Errorf("server certificate has expired")
	}

	if c.reloadCfg != nil && c.reloadCfg.PreemptiveRenewal > 0 && time.Now().After(expiry.Add(-c.reloadCfg.PreemptiveRenewal)) {
		go func() {
			c.logger.Info("Certificate approaching expiry, reloading ahead of time")
			_ = c.reload()
		}()
	}

	return cert, nil
}

// VerifyPeerCertificate checks a client certificate against the current CA
// pool, so rotated CAs take effect without a restart.
func (c *CertificateManager) VerifyPeerCertificate(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return fmt.Errorf("client presented no certificate")
	}

	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("failed to parse client certificate: %w", err)
	}

	c.mu.RLock()
	pool := c.caCertPool
	c.mu.RUnlock()
	if pool == nil {
		return fmt.Errorf("no CA pool loaded")
	}

	if _, err := cert.Verify(x509.VerifyOptions{Roots: pool}); err != nil {
		return fmt.Errorf("client certificate failed verification: %w", err)
	}
	return nil
}

// AddReloadCallback registers a callback invoked after each reload attempt.
func (c *CertificateManager) AddReloadCallback(callback ReloadCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReload = append(c.onReload, callback)
}

// CheckExpiry returns the time remaining until the certificate expires.
func (c *CertificateManager) CheckExpiry() (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.serverCertExpiry.IsZero() {
		return 0, fmt.Errorf("no certificate loaded yet")
	}
	return time.Until(c.serverCertExpiry), nil
}

// GetMetrics snapshots the reload counters.
func (c *CertificateManager) GetMetrics() *CertificateMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return &CertificateMetrics{
		ReloadCount:        c.reloads.total,
		ReloadSuccessCount: c.reloads.ok,
		ReloadFailureCount: c.reloads.failed,
		LastReloadTime:     c.reloads.lastTime,
		LastReloadSuccess:  c.reloads.lastOK,
		LastReloadError:    c.reloads.lastErr,
	}
}

// triggerReload is the entry point for watcher-driven reloads.
func (c *CertificateManager) triggerReload() {
	c.logger.Info("Certificate reload triggered by watcher")
	if err := c.reload(); err != nil {
		c.logger.LogError(err, "Certificate reload failed")
	}
}

// reload loads certificates, records the outcome and notifies callbacks.
func (c *CertificateManager) reload() error {
	err := c.loadCertificates()

	c.mu.Lock()
	c.reloads.record(err)
	callbacks := slices.Clone(c.onReload)
	c.mu.Unlock()

	c.emitReloadMetric(err)

	for _, cb := range callbacks {
		go cb(err == nil, err)
	}
	return err
}

// loadCertificates reads certificate material and swaps it in atomically.
// File and PEM parsing happen outside the lock.
func (c *CertificateManager) loadCertificates() error {
	c.mu.RLock()
	tlsCfg := *c.tlsCfg
	c.mu.RUnlock()

	cert, expiry, err := loadKeyPair(tlsCfg)
	if err != nil {
		return err
	}
	pool, err := loadCAPool(tlsCfg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.serverCert = cert
	c.serverCertExpiry = expiry
	c.caCertPool = pool
	c.mu.Unlock()

	c.logger.Info("Certificates loaded", "server_cert_expiry", expiry)
	return nil
}

// loadKeyPair loads the server certificate pair, preferring inline PEM
// content over file paths, and extracts the leaf expiry.
func loadKeyPair(cfg config.TLSConfig) (*tls.Certificate, time.Time, error) {
	var (
		cert tls.Certificate
		err  error
	)
	switch {
	case cfg.CertContent != "" && cfg.KeyContent != "":
		cert, err = tls.X509KeyPair([]byte(cfg.CertContent), []byte(cfg.KeyContent))
	case cfg.CertFile != "" && cfg.KeyFile != "":
		cert, err = tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	default:
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}

	var expiry time.Time
	if len(cert.Certificate) > 0 {
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to parse server certificate: %w", err)
		}
		expiry = leaf.NotAfter
	}
	return &cert, expiry, nil
}

// loadCAPool builds the client CA pool for mutual TLS.
func loadCAPool(cfg config.TLSConfig) (*x509.CertPool, error) {
	if cfg.Mode != "mutual" {
		return nil, nil
	}

	var pem []byte
	switch {
	case cfg.CAContent != "":
		pem = []byte(cfg.CAContent)
	case cfg.CAFile != "":
		b, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file %s: %w", cfg.CAFile, err)
		}
		pem = b
	default:
		return nil, nil
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}
	return pool, nil
}

// emitReloadMetric records the reload outcome to OpenTelemetry.
func (c *CertificateManager) emitReloadMetric(reloadErr error) {
	if c.om == nil {
		return
	}
	m := c.om.GetMetrics()
	if m == nil || m.CertReloadCount == nil {
		return
	}

	status := "success"
	attrs := []attribute.KeyValue{attribute.String("cert_type", "server")}
	if reloadErr != nil {
		status = "failure"
		attrs = append(attrs, attribute.String("error", reloadErr.Error()))
	}
	attrs = append(attrs, attribute.String("status", status))
	m.CertReloadCount.Add(context.Background(), 1, metric.WithAttributes(attrs...))

	c.emitExpiryMetric()
}

// emitExpiryMetric publishes the seconds remaining until expiry.
func (c *CertificateManager) emitExpiryMetric() {
	if c.om == nil {
		return
	}
	m := c.om.GetMetrics()
	if m == nil || m.CertExpiryTime == nil {
		return
	}

	c.mu.RLock()
	expiry := c.serverCertExpiry
	c.mu.RUnlock()
	if expiry.IsZero() {
		return
	}

	m.CertExpiryTime.Record(context.Background(), time.Until(expiry).Seconds(),
		metric.WithAttributes(attribute.String("cert_type", "server")))
}

// startExpiryTicker refreshes the expiry gauge once a minute until Stop.
func (c *CertificateManager) startExpiryTicker() {
	if c.om == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				c.emitExpiryMetric()
			}
		}
	}()
}
