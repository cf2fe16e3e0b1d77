package geoip

import (
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Provider wraps the GeoIP2 database reader to provide country lookup functionality.
type Provider struct {
	db *geoip2.Reader
}

// Open initializes the GeoIP database reader from a specific file path.
func Open(path string) (*Provider, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}

	return &Provider{db: db}, nil
}

// Close closes the underlying GeoIP database reader.
func (p *Provider) Close() error {
	return p.db.Close()
}

// GetCountryCode looks up the ISO country code (e.g., "US", "DE") for an IP address.
// It returns an empty string for a nil provider, private addresses, or unknown locations.
func (p *Provider) GetCountryCode(ip net.IP) string {
	if p == nil || ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return ""
	}

	record, err := p.db.Country(ip)
	if err != nil {
		return ""
	}

	return record.Country.IsoCode
}

// Country opens the database at path, looks up ip and closes the database again.
// Errors are logged by the caller; an unusable database yields an empty code.
func Country(path string, ip net.IP) (string, error) {
	p, err := Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = p.Close() }()

	return p.GetCountryCode(ip), nil
}
