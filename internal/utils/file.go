package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Extensions treated as plain text input. Anything else is assumed to be
// a PDF and goes through extraction.
var textExtensions = []string{".txt", ".md", ".markdown", ".text"}

// ValidateInputFile checks that a path names an existing regular file.
// Readability is not probed here; opening the file reports that.
func ValidateInputFile(filename string) error {
	if filename == "" {
		return fmt.Errorf("no input file given")
	}

	info, err := os.Stat(filename)
	switch {
	case err != nil && os.IsNotExist(err):
		return fmt.Errorf("%s does not exist", filename)
	case err != nil:
		return fmt.Errorf("stat %s: %w", filename, err)
	case info.IsDir():
		return fmt.Errorf("%s is a directory, not a file", filename)
	}
	return nil
}

// ValidateOutputFile ensures the parent directory of an output path
// exists, creating it when necessary. An empty path means stdout.
func ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil
	}

	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// IsTextFile reports whether the file has a plain-text extension.
func IsTextFile(filename string) bool {
	return slices.Contains(textExtensions, strings.ToLower(filepath.Ext(filename)))
}

// FormatFileSize renders a byte count with a binary-unit suffix, one
// decimal place above KB.
func FormatFileSize(size int64) string {
	if size < 1024 {
		return fmt.Sprintf("%d B", size)
	}
	value := float64(size)
	for _, unit := range []string{"KB", "MB", "GB", "TB", "PB"} {
		value /= 1024
		if value < 1024 {
			return fmt.Sprintf("%.1f %s", value, unit)
		}
	}
	return fmt.Sprintf("%.1f EB", value/1024)
}
