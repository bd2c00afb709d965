// Package ssrf refuses outbound requests to loopback, private and
// link-local addresses.
package ssrf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

var (
	// ErrInvalidURL is returned for unparseable URLs, non-http(s) schemes and
	// empty hosts.
	ErrInvalidURL = errors.New("ssrf: invalid url")

	// ErrPrivateAddress is returned when the host is or resolves to a
	// non-public address.
	ErrPrivateAddress = errors.New("ssrf: private address refused")
)

// Resolver is the subset of *net.Resolver used for lookups.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Guard validates URLs before they are fetched.
type Guard struct {
	// AllowPrivate disables the address check. Only tests and local
	// development should set it.
	AllowPrivate bool
	Resolver     Resolver
}

// Check parses rawURL and, unless AllowPrivate is set, refuses hosts that
// are or resolve to private addresses.
func (g Guard) Check(ctx context.Context, rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q not allowed", ErrInvalidURL, u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("%w: empty host", ErrInvalidURL)
	}
	if g.AllowPrivate {
		return u, nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if IsPrivateIP(ip) {
			return nil, fmt.Errorf("%w: %s", ErrPrivateAddress, ip)
		}
		return u, nil
	}

	resolver := g.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", host, err)
	}
	for _, a := range addrs {
		if IsPrivateIP(a.IP) {
			return nil, fmt.Errorf("%w: %s resolves to %s", ErrPrivateAddress, host, a.IP)
		}
	}
	return u, nil
}

// Control is a net.Dialer Control hook. It checks the address actually
// being dialed, so a host that resolved to a public address during Check
// and to a private one at connect time is still refused.
func (g Guard) Control(network, address string, _ syscall.RawConn) error {
	if g.AllowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("%w: dial to unresolved host %q", ErrInvalidURL, host)
	}
	if IsPrivateIP(ip) {
		return fmt.Errorf("%w: %s dial to %s", ErrPrivateAddress, network, ip)
	}
	return nil
}

// IsPrivateIP reports loopback, RFC 1918 / RFC 4193, link-local and
// unspecified addresses.
func IsPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}
