package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "resume.txt")
	if err := os.WriteFile(existing, []byte("text"), 0o600); err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}

	if err := ValidateInputFile(existing); err != nil {
		t.Errorf("existing file should validate, got %v", err)
	}
	if err := ValidateInputFile(""); err == nil {
		t.Error("empty path should be rejected")
	}
	if err := ValidateInputFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("missing file should be rejected")
	}
	if err := ValidateInputFile(dir); err == nil {
		t.Error("a directory should be rejected")
	}
}

func TestValidateOutputFileCreatesParent(t *testing.T) {
	target := filepath.Join(t.TempDir(), "reports", "out.json")

	if err := ValidateOutputFile(target); err != nil {
		t.Fatalf("ValidateOutputFile failed: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Errorf("parent directory was not created: %v", err)
	}

	if err := ValidateOutputFile(""); err != nil {
		t.Errorf("empty path means stdout and should pass, got %v", err)
	}
}

func TestIsTextFile(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"resume.txt", true},
		{"notes.MD", true},
		{"readme.markdown", true},
		{"resume.pdf", false},
		{"archive.tar.gz", false},
		{"no-extension", false},
	}

	for _, tt := range tests {
		if got := IsTextFile(tt.filename); got != tt.want {
			t.Errorf("IsTextFile(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{10 * 1024 * 1024, "10.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}

	for _, tt := range tests {
		if got := FormatFileSize(tt.size); got != tt.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", tt.size, got, tt.want)
		}
	}
}
