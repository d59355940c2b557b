// Package privacy masks client addresses before they reach streak's logs.
package privacy

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

const (
	ipv4Bits = 24
	ipv6Bits = 48
)

// AnonymizeIP masks an address to its /24 (IPv4) or /48 (IPv6) network.
// Empty input yields "unknown"; anything unparseable yields "invalid".
func AnonymizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" || ip == "unknown" {
		return "unknown"
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap().WithZone("")
	bits := ipv6Bits
	if addr.Is4() {
		bits = ipv4Bits
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}

// AnonymizeRemoteAddr accepts an http.Request RemoteAddr ("host:port").
func AnonymizeRemoteAddr(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return AnonymizeIP(host)
	}
	return AnonymizeIP(addr)
}

// ClientIP returns the masked address of the end user. Requests reach streak
// through the platform proxy, so the first X-Forwarded-For hop wins over the
// socket address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if masked := AnonymizeIP(first); masked != "invalid" && masked != "unknown" {
			return masked
		}
	}
	return AnonymizeRemoteAddr(r.RemoteAddr)
}
