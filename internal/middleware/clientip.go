package middleware

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// TrustedProxies lists the peers allowed to report the client address in
// X-Forwarded-For or X-Real-IP. A nil *TrustedProxies trusts nobody.
type TrustedProxies struct {
	prefixes []netip.Prefix
}

// ParseTrustedProxies parses a comma-separated list of CIDRs or single addresses.
func ParseTrustedProxies(list string) (*TrustedProxies, error) {
	p := &TrustedProxies{}

	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		if !strings.Contains(item, "/") {
			addr, err := netip.ParseAddr(item)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", item, err)
			}

			addr = addr.Unmap()
			p.prefixes = append(p.prefixes, netip.PrefixFrom(addr, addr.BitLen()))

			continue
		}

		prefix, err := netip.ParsePrefix(item)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", item, err)
		}

		p.prefixes = append(p.prefixes, prefix.Masked())
	}

	return p, nil
}

func (p *TrustedProxies) trusts(addr netip.Addr) bool {
	if p == nil {
		return false
	}

	for _, prefix := range p.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}

	return false
}

// ClientIP returns the client address. Forwarding headers are honoured only
// when the peer is a trusted proxy; X-Forwarded-For is walked from the right
// and the first hop that is not a trusted proxy is the client.
func (p *TrustedProxies) ClientIP(ctx huma.Context) string {
	peer, ok := remoteAddr(ctx.RemoteAddr())
	if !ok {
		return ctx.RemoteAddr()
	}

	if !p.trusts(peer) {
		return peer.String()
	}

	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		client := peer
		hops := strings.Split(xff, ",")

		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}

			client = hop.Unmap()
			if !p.trusts(client) {
				break
			}
		}

		return client.String()
	}

	if xri, err := netip.ParseAddr(strings.TrimSpace(ctx.Header("X-Real-IP"))); err == nil {
		return xri.Unmap().String()
	}

	return peer.String()
}

// ClientIP returns the peer address, ignoring forwarding headers.
func ClientIP(ctx huma.Context) string {
	return (*TrustedProxies)(nil).ClientIP(ctx)
}

func remoteAddr(raw string) (netip.Addr, bool) {
	host := raw
	if h, _, err := net.SplitHostPort(raw); err == nil {
		host = h
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}

	return addr.Unmap(), true
}
