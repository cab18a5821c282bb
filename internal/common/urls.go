package common

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a page URL for dedupe and storage keys:
// lowercases scheme and host, strips the fragment, and removes a
// trailing slash from non-root paths. Query strings are preserved
// because many CMSes route on them.
func NormalizeURL(raw string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	if parsed.Path != "/" {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String(), nil
}

// ValidateAuditURL checks whether a URL is acceptable as an audit target.
// allowTestURLs permits localhost and private addresses (development mode).
func ValidateAuditURL(raw string, allowTestURLs bool) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q (must be http or https)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL %q has no host", raw)
	}

	if allowTestURLs {
		return nil
	}

	host := parsed.Hostname()
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return fmt.Errorf("test URL %q not allowed in production", raw)
	}
	if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified()) {
		return fmt.Errorf("private address %q not allowed in production", raw)
	}

	return nil
}

// SameOrigin reports whether two URLs share scheme and host.
// Used to keep seed discovery on the submitted site.
func SameOrigin(a, b string) bool {
	ua, err := url.Parse(a)
	if err != nil {
		return false
	}
	ub, err := url.Parse(b)
	if err != nil {
		return false
	}
	return strings.EqualFold(ua.Scheme, ub.Scheme) && strings.EqualFold(ua.Host, ub.Host)
}
