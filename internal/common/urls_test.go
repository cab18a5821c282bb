package common

import (
	"testing"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases scheme and host",
			input:    "HTTPS://Example.COM/About",
			expected: "https://example.com/About",
		},
		{
			name:     "strips fragment",
			input:    "https://example.com/page#section-2",
			expected: "https://example.com/page",
		},
		{
			name:     "strips trailing slash on non-root path",
			input:    "https://example.com/services/",
			expected: "https://example.com/services",
		},
		{
			name:     "keeps root slash",
			input:    "https://example.com/",
			expected: "https://example.com/",
		},
		{
			name:     "preserves query string",
			input:    "https://example.com/p?id=42",
			expected: "https://example.com/p?id=42",
		},
		{
			name:     "defaults to https when scheme missing",
			input:    "example.com/about",
			expected: "https://example.com/about",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.input)
			if err != nil {
				t.Fatalf("NormalizeURL(%q) returned error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestValidateAuditURL(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		allowTestURLs bool
		wantErr       bool
	}{
		{name: "valid https", input: "https://example.com/about", allowTestURLs: false, wantErr: false},
		{name: "valid http", input: "http://example.com", allowTestURLs: false, wantErr: false},
		{name: "ftp rejected", input: "ftp://example.com/file", allowTestURLs: false, wantErr: true},
		{name: "missing host", input: "https://", allowTestURLs: false, wantErr: true},
		{name: "localhost rejected in production", input: "http://localhost:8080/page", allowTestURLs: false, wantErr: true},
		{name: "localhost allowed in development", input: "http://localhost:8080/page", allowTestURLs: true, wantErr: false},
		{name: "loopback IP rejected in production", input: "http://127.0.0.1/page", allowTestURLs: false, wantErr: true},
		{name: "private IP rejected in production", input: "http://192.168.1.10/admin", allowTestURLs: false, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAuditURL(tt.input, tt.allowTestURLs)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAuditURL(%q, %v) error = %v, wantErr %v", tt.input, tt.allowTestURLs, err, tt.wantErr)
			}
		})
	}
}

func TestSameOrigin(t *testing.T) {
	tests := []struct {
		name     string
		a        string
		b        string
		expected bool
	}{
		{name: "same host and scheme", a: "https://example.com/a", b: "https://example.com/b", expected: true},
		{name: "different host", a: "https://example.com/a", b: "https://other.com/a", expected: false},
		{name: "different scheme", a: "http://example.com/a", b: "https://example.com/a", expected: false},
		{name: "case insensitive host", a: "https://Example.com/a", b: "https://example.COM/b", expected: true},
		{name: "subdomain is different origin", a: "https://example.com", b: "https://www.example.com", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SameOrigin(tt.a, tt.b); got != tt.expected {
				t.Errorf("SameOrigin(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}
