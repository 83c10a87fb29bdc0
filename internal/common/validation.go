package common

import (
	"fmt"
	"slices"
	"strings"
)

// ValidateOutputFormat rejects formats outside the configured set. An
// empty set means no restriction.
func ValidateOutputFormat(format string, supportedFormats []string) error {
	if len(supportedFormats) == 0 || slices.Contains(supportedFormats, format) {
		return nil
	}
	return fmt.Errorf("unsupported output format %q (choose one of: %s)",
		format, strings.Join(supportedFormats, ", "))
}

// ResolveOutputFormat picks the effective output format: an explicit flag
// value wins, otherwise the configured default
func ResolveOutputFormat(flagValue, defaultFormat string) string {
	if flagValue != "" {
		return flagValue
	}
	return defaultFormat
}
