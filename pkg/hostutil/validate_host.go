// Package hostutil validates the host and host:port strings found in config.
package hostutil

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"unicode"
)

// ValidateHost accepts an IPv4 or IPv6 literal or an RFC 1123 hostname.
func ValidateHost(raw string) error {
	switch {
	case looksLikeIPv4(raw):
		if ip := net.ParseIP(raw); ip == nil || ip.To4() == nil {
			return fmt.Errorf("bad IP: '%s'", raw)
		}
	case strings.Contains(raw, ":"):
		if ip := net.ParseIP(strings.Trim(raw, "[]")); ip == nil || ip.To4() != nil {
			return fmt.Errorf("bad IPv6: '%s'", raw)
		}
	default:
		if !validHostname(raw) {
			return fmt.Errorf("bad hostname: '%s'", raw)
		}
	}
	return nil
}

// ValidateHostPort accepts "host:port" with a valid host and a port in
// 1..65535. IPv6 hosts must be bracketed.
func ValidateHostPort(raw string) error {
	host, port, err := net.SplitHostPort(raw)
	if err != nil {
		return fmt.Errorf("bad address: '%s': %w", raw, err)
	}
	if err := ValidatePort(port); err != nil {
		return err
	}
	return ValidateHost(host)
}

// ValidatePort accepts a decimal port in 1..65535.
func ValidatePort(raw string) error {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("bad port: '%s'", raw)
	}
	return nil
}

// looksLikeIPv4 checks if raw looks like a dotted quad
func looksLikeIPv4(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || strings.IndexFunc(p, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
			return false
		}
	}
	return true
}

// validHostname checks DNS label rules (RFC 1123)
func validHostname(raw string) bool {
	if raw == "" || len(raw) > 253 {
		return false
	}
	for _, label := range strings.Split(raw, ".") {
		if len(label) < 1 || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-') {
				return false
			}
		}
	}
	return true
}
