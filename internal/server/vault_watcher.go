package server

import (
	"fmt"
	"sync"
	"time"

	"resumatch/internal/config"
	"resumatch/internal/errors"
)

// VaultSecretReader is the slice of the Vault client the server needs.
// Tests substitute a stub.
type VaultSecretReader interface {
	GetSecretV2(path string) (*config.VaultSecret, error)
	GetStringSecret(path, key string) (string, error)
	GetStringSliceSecret(path, key string) ([]string, error)
}

// CertMaterial carries PEM material read from a Vault secret.
type CertMaterial struct {
	CertContent string
	KeyContent  string
	CAContent   string
}

// CertMaterialFunc receives fresh certificate material, or the error
// that prevented reading it. It runs on the poll goroutine.
type CertMaterialFunc func(data *CertMaterial, err error)

// VaultWatcher polls a KVv2 secret and fires a callback whenever the
// secret version moves. Vault offers no change notification for KV
// secrets, so polling is the only mechanism available.
type VaultWatcher struct {
	vault    VaultSecretReader
	path     string
	interval time.Duration
	onReload CertMaterialFunc
	logger   *errors.Logger

	mu          sync.RWMutex
	active      bool
	seenVersion int64
	stop        chan struct{}
}

// NewVaultWatcher builds a watcher for the TLS secret at secretPath. The
// callback must tolerate running concurrently with the rest of the server.
func NewVaultWatcher(client VaultSecretReader, secretPath string, pollInterval time.Duration, reloadCallback CertMaterialFunc, logger *errors.Logger) *VaultWatcher {
	if logger == nil {
		logger = errors.Discard()
	}
	return &VaultWatcher{
		vault:    client,
		path:     secretPath,
		interval: pollInterval,
		onReload: reloadCallback,
		logger:   logger,
	}
}

// Start launches the poll loop. Starting a running watcher is an error.
func (vw *VaultWatcher) Start() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if vw.active {
		return fmt.Errorf("vault watcher already started")
	}
	vw.stop = make(chan struct{})
	vw.active = true
	go vw.pollLoop(vw.stop)
	vw.logger.Info("Watching vault secret", "secret_path", vw.path, "poll_interval", vw.interval)
	return nil
}

// Stop terminates the poll loop. Stopping a watcher that never started is
// a no-op.
func (vw *VaultWatcher) Stop() error {
	vw.mu.Lock()
	defer vw.mu.Unlock()
	if !vw.active {
		return nil
	}
	close(vw.stop)
	vw.active = false
	vw.logger.Info("Vault secret watcher stopped")
	return nil
}

// pollLoop drives poll on a ticker until the stop channel closes. The
// channel is passed in rather than read from the struct so a loop from an
// earlier Start can never latch onto a newer channel.
func (vw *VaultWatcher) pollLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(vw.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			data, changed, err := vw.poll()
			switch {
			case err != nil:
				vw.logger.LogError(err, "Vault certificate poll failed")
				vw.onReload(nil, err)
			case changed:
				vw.logger.Info("Vault secret version moved, delivering new certificate data", "secret_path", vw.path)
				vw.onReload(data, nil)
			}
		}
	}
}

// poll reads the secret once and reports whether its version moved since
// the previous poll. On a change the returned data holds the new PEM
// material. Versions are compared for inequality rather than ordering so
// a secret whose metadata was deleted and recreated still registers.
func (vw *VaultWatcher) poll() (*CertMaterial, bool, error) {
	secret, err := vw.vault.GetSecretV2(vw.path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to poll vault secret %s: %w", vw.path, err)
	}
	if secret == nil {
		return nil, false, fmt.Errorf("no secret data at %s", vw.path)
	}

	vw.mu.Lock()
	changed := secret.Version != vw.seenVersion
	vw.seenVersion = secret.Version
	vw.mu.Unlock()

	if !changed {
		return nil, false, nil
	}
	return pemFromSecret(secret), true, nil
}

// pemFromSecret pulls the well-known cert, key and ca fields out of a KVv2
// payload. Fields absent from the secret stay empty, which the certificate
// manager treats as "keep the current value".
func pemFromSecret(secret *config.VaultSecret) *CertMaterial {
	str := func(field string) string {
		s, _ := secret.Data[field].(string)
		return s
	}
	return &CertMaterial{
		CertContent: str("cert"),
		KeyContent:  str("key"),
		CAContent:   str("ca"),
	}
}

// Status reports watcher state for the health endpoint.
func (vw *VaultWatcher) Status() map[string]any {
	vw.mu.RLock()
	defer vw.mu.RUnlock()
	return map[string]any{
		"running":       vw.active,
		"poll_interval": vw.interval.String(),
		"secret_path":   vw.path,
		"last_version":  vw.seenVersion,
	}
}
