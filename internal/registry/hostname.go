package registry

import "strings"

const maxHostnameLen = 253

// Canonicalize lowercases hostname and validates it against the DNS-label
// constraints in spec §3: ASCII letters/digits/-/., 1-253 chars, no
// leading/trailing dot, and no label that starts or ends with a dash.
//
// Original casing is not preserved (spec §4.D "Hostnames are canonicalised
// to lowercase for uniqueness").
func Canonicalize(hostname string) (string, error) {
	if hostname == "" || len(hostname) > maxHostnameLen {
		return "", ErrMalformedHostname
	}
	if hostname[0] == '.' || hostname[len(hostname)-1] == '.' {
		return "", ErrMalformedHostname
	}

	lower := strings.ToLower(hostname)
	labels := strings.Split(lower, ".")
	for _, label := range labels {
		if !validLabel(label) {
			return "", ErrMalformedHostname
		}
	}
	return lower, nil
}

func validLabel(label string) bool {
	if label == "" {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for _, c := range label {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return false
		}
	}
	return true
}
