// Package geo resolves the country a client connects from.
package geo

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/oschwald/geoip2-golang"
)

// Unknown is reported when an address cannot be resolved.
const Unknown = "Unknown"

// Locator maps an IP address to an ISO country code.
type Locator interface {
	Country(ip net.IP) string
}

// MaxMindLocator reads a MaxMind GeoIP2/GeoLite2 country database.
type MaxMindLocator struct {
	db *geoip2.Reader
}

func OpenMaxMind(path string) (*MaxMindLocator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	return &MaxMindLocator{db: db}, nil
}

func (l *MaxMindLocator) Country(ip net.IP) string {
	if !routable(ip) {
		return Unknown
	}
	record, err := l.db.Country(ip)
	if err != nil || record.Country.IsoCode == "" {
		return Unknown
	}
	return record.Country.IsoCode
}

func (l *MaxMindLocator) Close() error {
	return l.db.Close()
}

// NopLocator is used when no database is configured.
type NopLocator struct{}

func (NopLocator) Country(net.IP) string { return Unknown }

func routable(ip net.IP) bool {
	return ip != nil && !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() && !ip.IsLinkLocalUnicast()
}

// AddressResolver finds the address of the connecting client. Forwarding
// headers are honoured only when the peer is a trusted proxy.
type AddressResolver struct {
	trusted []*net.IPNet
}

// NewAddressResolver accepts proxy addresses as single IPs or CIDR blocks.
// With none, forwarding headers are ignored.
func NewAddressResolver(proxies []string) (*AddressResolver, error) {
	r := &AddressResolver{}
	for _, p := range proxies {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.Contains(p, "/") {
			ip := net.ParseIP(p)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", p)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			r.trusted = append(r.trusted, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, network, err := net.ParseCIDR(p)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", p, err)
		}
		r.trusted = append(r.trusted, network)
	}
	return r, nil
}

func (r *AddressResolver) isTrusted(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range r.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the peer address, or, when the peer is a trusted proxy,
// the nearest untrusted hop of X-Forwarded-For (then X-Real-IP).
func (r *AddressResolver) ClientIP(req *http.Request) net.IP {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	peer := net.ParseIP(host)
	if !r.isTrusted(peer) {
		return peer
	}

	if fwd := req.Header.Values("X-Forwarded-For"); len(fwd) > 0 {
		hops := strings.Split(strings.Join(fwd, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(strings.TrimSpace(hops[i]))
			if ip == nil {
				break
			}
			if !r.isTrusted(ip) {
				return ip
			}
		}
	}
	if xr := strings.TrimSpace(req.Header.Get("X-Real-IP")); xr != "" {
		if ip := net.ParseIP(xr); ip != nil {
			return ip
		}
	}
	return peer
}
