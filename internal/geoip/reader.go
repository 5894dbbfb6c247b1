package geoip

import (
	"net/netip"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"
)

// Provider wraps the GeoIP2 database reader to resolve a region label for an address.
type Provider struct {
	db *geoip2.Reader

	// misses logs only the first failed lookup.
	misses sync.Once
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

// Region returns the ISO country code (e.g. "US", "DE") for ip, used as the
// registry region label. It returns an empty string when the country is unknown.
func (p *Provider) Region(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}

	record, err := p.db.Country(addr.Unmap().AsSlice())
	if err != nil {
		p.misses.Do(func() {
			log.Warn().Err(err).Str("ip", ip).Msg("GeoIP lookup failed")
		})
		return ""
	}

	return record.Country.IsoCode
}
