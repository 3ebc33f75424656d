package votes

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

const unknown = "unknown"

// Fingerprint is the hex sha256 of "ip:userAgent". Empty parts become
// "unknown".
func Fingerprint(ip, userAgent string) string {
	if ip == "" {
		ip = unknown
	}
	if userAgent == "" {
		userAgent = unknown
	}
	sum := sha256.Sum256([]byte(ip + ":" + userAgent))
	return hex.EncodeToString(sum[:])
}

// ClientIP resolves the voter address: remote (a host or host:port, e.g.
// gin's ClientIP), then the first X-Forwarded-For entry, then
// CF-Connecting-IP.
func ClientIP(remote string, h http.Header) string {
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	if remote = strings.TrimSpace(remote); remote != "" {
		return remote
	}
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if cf := strings.TrimSpace(h.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}
	return unknown
}
