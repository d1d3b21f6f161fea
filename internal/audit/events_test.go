package audit

import (
	"strings"
	"testing"
)

func TestHashPayload(t *testing.T) {
	h1 := HashPayload(`{"text":"hello"}`)
	h2 := HashPayload(`{"text":"hello"}`)
	h3 := HashPayload(`{"text":"world"}`)

	if h1 != h2 {
		t.Errorf("hash not deterministic: %s vs %s", h1, h2)
	}
	if h1 == h3 {
		t.Errorf("distinct payloads share hash %s", h1)
	}
	if len(h1) != 16 {
		t.Errorf("expected 16 hex chars, got %q", h1)
	}
	if strings.Contains(h1, "hello") {
		t.Errorf("hash contains payload text")
	}
}

func TestSanitizePreview(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "click the button", "click the button"},
		{"control chars replaced", "line1\nline2\rdone", "line1 line2 done"},
		{"tab preserved", "a\tb", "a\tb"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizePreview(tt.in); got != tt.want {
				t.Errorf("SanitizePreview(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizePreview_TruncatesByRunes(t *testing.T) {
	long := strings.Repeat("é", PreviewLength+50)
	got := SanitizePreview(long)
	runes := []rune(got)
	if len(runes) != PreviewLength {
		t.Errorf("expected %d runes, got %d", PreviewLength, len(runes))
	}
	for _, r := range runes {
		if r != 'é' {
			t.Fatalf("multi-byte character split during truncation")
		}
	}
}
