package common

import (
	"strings"
	"testing"
)

func TestValidateOutputFormat(t *testing.T) {
	supported := []string{"json", "text", "markdown"}

	tests := []struct {
		name    string
		format  string
		formats []string
		wantErr string
	}{
		{name: "known format", format: "json", formats: supported},
		{name: "last of the set", format: "markdown", formats: supported},
		{name: "unknown format", format: "xml", formats: supported,
			wantErr: `unsupported output format "xml"`},
		{name: "matching is case sensitive", format: "JSON", formats: supported,
			wantErr: `unsupported output format "JSON"`},
		{name: "empty format string", format: "", formats: supported,
			wantErr: `unsupported output format ""`},
		{name: "no restriction configured", format: "anything", formats: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutputFormat(tt.format, tt.formats)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected an error for format %q", tt.format)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateOutputFormatListsChoices(t *testing.T) {
	err := ValidateOutputFormat("yaml", []string{"json", "text"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "json, text") {
		t.Errorf("error should list the supported formats, got %q", err)
	}
}

func TestResolveOutputFormat(t *testing.T) {
	if got := ResolveOutputFormat("markdown", "json"); got != "markdown" {
		t.Errorf("explicit flag should win, got %q", got)
	}
	if got := ResolveOutputFormat("", "json"); got != "json" {
		t.Errorf("empty flag should fall back to the default, got %q", got)
	}
	if got := ResolveOutputFormat("", ""); got != "" {
		t.Errorf("both empty should resolve to empty, got %q", got)
	}
}
