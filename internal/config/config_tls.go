package config

import "fmt"

// tlsSlot pairs the two possible sources for one piece of certificate
// material: a file path and inline PEM content.
type tlsSlot struct {
	fileKey   string
	file      string
	inlineKey string
	inline    string
}

func (s tlsSlot) provided() bool { return s.file != "" || s.inline != "" }

func (s tlsSlot) ambiguous() bool { return s.file != "" && s.inline != "" }

// ValidateTLSConfig checks the server TLS section: mode, minimum protocol
// version, and that certificate material is complete with a single source
// per slot.
func (c *Config) ValidateTLSConfig() error {
	section := c.Server.TLS

	if err := checkTLSMode(section); err != nil {
		return err
	}

	return checkTLSVersion(section.MinVersion)
}

func checkTLSMode(section TLSConfig) error {
	switch section.Mode {
	case "disabled":
		return nil
	case "server":
		return checkCertSlots(section, "server mode")
	case "mutual":
		if err := checkCertSlots(section, "mutual mode"); err != nil {
			return err
		}
		ca := tlsSlot{fileKey: "caFile", file: section.CAFile, inlineKey: "caContent", inline: section.CAContent}
		if !ca.provided() {
			return fmt.Errorf("CA certificate is required for mutual TLS mode (set caFile or caContent)")
		}
		if ca.ambiguous() {
			return fmt.Errorf("cannot specify both %s and %s, only one source is allowed", ca.fileKey, ca.inlineKey)
		}
		return checkClientAuthPolicy(section.ClientAuthPolicy)
	default:
		return fmt.Errorf("invalid TLS mode: %s (expected disabled, server, or mutual)", section.Mode)
	}
}

// checkCertSlots verifies the server certificate and key for the given mode.
// Each may come from a file or inline content, but not both at once.
func checkCertSlots(section TLSConfig, mode string) error {
	cert := tlsSlot{fileKey: "certFile", file: section.CertFile, inlineKey: "certContent", inline: section.CertContent}
	key := tlsSlot{fileKey: "keyFile", file: section.KeyFile, inlineKey: "keyContent", inline: section.KeyContent}

	if !cert.provided() || !key.provided() {
		return fmt.Errorf("TLS certificate and key are required for %s (set the file paths or the inline PEM)", mode)
	}
	for _, slot := range []tlsSlot{cert, key} {
		if slot.ambiguous() {
			return fmt.Errorf("cannot specify both %s and %s, only one source is allowed", slot.fileKey, slot.inlineKey)
		}
	}
	return nil
}

func checkClientAuthPolicy(policy string) error {
	switch policy {
	// An empty policy falls back to require.
	case "", "require", "request", "verify":
		return nil
	}
	return fmt.Errorf("invalid clientAuthPolicy: %s (expected require, request, or verify)", policy)
}

func checkTLSVersion(version string) error {
	switch version {
	// An empty version falls back to 1.2.
	case "", "1.2", "1.3":
		return nil
	}
	return fmt.Errorf("invalid TLS minVersion: %s (supported values are 1.2 and 1.3)", version)
}
