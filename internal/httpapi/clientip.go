// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package httpapi

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/samber/oops"
)

// ProxyTrust decides whose forwarding headers to believe. Forwarded
// headers are client-controlled unless the direct peer is a proxy we
// operate, so they are honored only when the peer matches the allowlist.
type ProxyTrust struct {
	prefixes []netip.Prefix
}

// NewProxyTrust builds a ProxyTrust from IP and CIDR entries. An empty
// list means no peer is trusted and the socket address is always used.
func NewProxyTrust(entries []string) (*ProxyTrust, error) {
	t := &ProxyTrust{}
	for _, entry := range entries {
		if addr, err := netip.ParseAddr(entry); err == nil {
			bits := addr.BitLen()
			t.prefixes = append(t.prefixes, netip.PrefixFrom(addr, bits))
			continue
		}
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return nil, oops.Code("PROXY_TRUST_INVALID").
				With("entry", entry).
				Errorf("trusted proxy entry %q is not an IP or CIDR", entry)
		}
		t.prefixes = append(t.prefixes, prefix)
	}
	return t, nil
}

// Trusted reports whether the address belongs to a trusted proxy.
func (t *ProxyTrust) Trusted(addr netip.Addr) bool {
	for _, p := range t.prefixes {
		if p.Contains(addr.Unmap()) {
			return true
		}
	}
	return false
}

// ClientIP extracts the client address for rate limiting. The socket peer
// is authoritative; X-Forwarded-For (left-most entry) and X-Real-IP are
// consulted only when the peer is a trusted proxy. Returns "" when no
// address can be determined.
func (t *ProxyTrust) ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil {
		return ""
	}

	if !t.Trusted(peer) {
		return peer.Unmap().String()
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.Unmap().String()
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		if addr, err := netip.ParseAddr(real); err == nil {
			return addr.Unmap().String()
		}
	}

	return peer.Unmap().String()
}
