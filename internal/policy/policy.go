// Package policy validates scan targets against the private-network policy
// and redacts sensitive values before they reach logs or results.
package policy

import (
	"net"
	"strings"
)

// private RFC1918 ranges plus loopback, used for host/CIDR policy checks.
var privateBlocks = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
}

var privateNets []*net.IPNet

func init() {
	for _, b := range privateBlocks {
		_, n, err := net.ParseCIDR(b)
		if err == nil {
			privateNets = append(privateNets, n)
		}
	}
}

// LabInternalSuffix is the allowed internal lab hostname suffix.
const LabInternalSuffix = ".lab.internal"

// IsPrivateIP reports whether ip falls within RFC1918 space or loopback.
func IsPrivateIP(ip net.IP) bool {
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// IsLabInternalHost reports whether host is, or is a subdomain of, lab.internal.
func IsLabInternalHost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == "lab.internal" || strings.HasSuffix(host, LabInternalSuffix)
}

// IsAllowedHost reports whether host (a bare hostname, not an IP) is
// permitted by policy: only *.lab.internal names are accepted, since an
// arbitrary hostname cannot be proven private without a DNS lookup this
// engine deliberately never performs.
func IsAllowedHost(host string) bool {
	return IsLabInternalHost(host)
}

// IsAllowedIP reports whether ip is permitted by policy.
func IsAllowedIP(ip net.IP) bool {
	return IsPrivateIP(ip)
}

// CIDRHostCount returns the number of addresses covered by a CIDR prefix
// length for an IPv4 network, i.e. 2^(32-ones).
func CIDRHostCount(ones int) uint64 {
	if ones >= 32 {
		return 1
	}
	if ones < 0 {
		return 0
	}
	return uint64(1) << uint(32-ones)
}

// redactionPatterns are literal substrings and key=value style credentials
// that must never appear in logs or returned metadata.
var sensitiveKeyPrefixes = []string{"token", "password", "secret", "key", "authorization", "bearer"}

// RedactTarget returns a safe-to-log form of a target string: if it embeds
// userinfo (user:pass@host) the credentials are replaced with a placeholder.
func RedactTarget(target string) string {
	if idx := strings.Index(target, "@"); idx > 0 {
		schemeIdx := strings.Index(target, "://")
		start := 0
		if schemeIdx >= 0 && schemeIdx < idx {
			start = schemeIdx + 3
		}
		if colonIdx := strings.Index(target[start:idx], ":"); colonIdx >= 0 {
			return target[:start] + "[REDACTED]" + target[idx:]
		}
	}
	return target
}

// IsSensitiveKey reports whether a key name (as in key=value argument
// tokens) looks like it carries a credential, for scrubbing purposes.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, p := range sensitiveKeyPrefixes {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
