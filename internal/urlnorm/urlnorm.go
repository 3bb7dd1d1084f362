// Package urlnorm turns raw hyperlinks into canonical absolute URLs.
// Two links refer to the same page exactly when their canonical forms are equal.
package urlnorm

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// ErrRejected is wrapped by every error returned for a link that cannot
// become a crawlable page identity. Callers drop such links silently.
var ErrRejected = errors.New("link rejected")

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// Normalize resolves raw against the absolute URL of the page it was found on
// and returns its canonical form. Fragments are removed, scheme and host are
// lowercased, default ports are dropped and dot segments are resolved. The
// query string is kept verbatim.
func Normalize(raw, base string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty link", ErrRejected)
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	if !baseURL.IsAbs() {
		return "", fmt.Errorf("base URL %q is not absolute", base)
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRejected, err)
	}

	// Reject mailto:, javascript:, tel: and friends before resolution
	if ref.Scheme != "" && !isWebScheme(ref.Scheme) {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrRejected, ref.Scheme)
	}

	return canonicalize(baseURL.ResolveReference(ref))
}

// Canonical returns the canonical form of an absolute http(s) URL.
func Canonical(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRejected, err)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("%w: %q is not an absolute URL", ErrRejected, raw)
	}
	if !isWebScheme(u.Scheme) {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrRejected, u.Scheme)
	}

	// Resolving a URL against itself removes dot segments
	return canonicalize(u.ResolveReference(u))
}

// Host returns the canonical host (with non-default port) of a canonical URL.
func Host(canonicalURL string) string {
	u, err := url.Parse(canonicalURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func canonicalize(u *url.URL) (string, error) {
	u.Scheme = strings.ToLower(u.Scheme)
	if !isWebScheme(u.Scheme) {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrRejected, u.Scheme)
	}

	host, err := canonicalHost(u.Hostname())
	if err != nil {
		return "", err
	}

	port := u.Port()
	if port == defaultPorts[u.Scheme] {
		port = ""
	}

	if port != "" {
		u.Host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		u.Host = "[" + host + "]"
	} else {
		u.Host = host
	}

	u.Fragment = ""
	u.RawFragment = ""
	if u.RawQuery == "" {
		u.ForceQuery = false
	}
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}

	return u.String(), nil
}

func canonicalHost(host string) (string, error) {
	if host == "" {
		return "", fmt.Errorf("%w: missing host", ErrRejected)
	}

	host = strings.ToLower(host)
	if net.ParseIP(host) != nil {
		return host, nil
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		// Hosts that are valid in DNS but not under IDNA rules (underscores) are kept as-is
		return host, nil
	}
	return ascii, nil
}

func isWebScheme(scheme string) bool {
	_, ok := defaultPorts[strings.ToLower(scheme)]
	return ok
}
