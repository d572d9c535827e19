package security

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/rs/zerolog/log"
)

// GeoLocator resolves an IP to an ISO country code. An empty string means unknown.
type GeoLocator interface {
	Country(ip string) string
}

// NopLocator never knows the country
type NopLocator struct{}

func (NopLocator) Country(string) string { return "" }

// MaxMindLocator looks countries up in a GeoLite2/GeoIP2 country database
type MaxMindLocator struct {
	db *geoip2.Reader
}

// OpenMaxMind opens the mmdb file at path
func OpenMaxMind(path string) (*MaxMindLocator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}
	return &MaxMindLocator{db: db}, nil
}

func (l *MaxMindLocator) Country(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ""
	}
	record, err := l.db.Country(parsed)
	if err != nil {
		log.Debug().Err(err).Str("ip", ip).Msg("geoip lookup failed")
		return ""
	}
	return record.Country.IsoCode
}

// Close releases the database
func (l *MaxMindLocator) Close() error {
	return l.db.Close()
}
