// Package geoip fills in endpoint locations from a MaxMind City database
// for events that arrive with an IP address but no coordinates.
package geoip

import (
	"fmt"
	"io"
	"net"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oschwald/maxminddb-golang"

	"github.com/tinytelemetry/netglobe/internal/model"
)

// DefaultCacheSize is the number of IP lookups kept in memory.
const DefaultCacheSize = 4096

type cityRecord struct {
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

// Location is the resolved position of an address.
type Location struct {
	City        string
	CountryCode string
	Lat, Lng    float64
}

type lookuper interface {
	Lookup(ip net.IP, result interface{}) error
}

// Enricher resolves event endpoints. It is safe for concurrent use.
type Enricher struct {
	db     lookuper
	closer io.Closer
	cache  *lru.Cache[string, *Location]
}

// Open loads a GeoLite2/GeoIP2 City database from disk.
func Open(path string, cacheSize int) (*Enricher, error) {
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open %s: %w", path, err)
	}
	e, err := newEnricher(reader, cacheSize)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}
	e.closer = reader
	return e, nil
}

func newEnricher(db lookuper, cacheSize int) (*Enricher, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, *Location](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("geoip: cache: %w", err)
	}
	return &Enricher{db: db, cache: cache}, nil
}

// Enrich fills missing coordinates, city and country for both endpoints.
// Fields already set by the producer are kept.
func (e *Enricher) Enrich(ev *model.RawEvent) {
	if ev.SrcLat == 0 && ev.SrcLng == 0 {
		if loc := e.Locate(ev.SrcIP); loc != nil {
			ev.SrcLat, ev.SrcLng = loc.Lat, loc.Lng
			if ev.SrcCity == "" {
				ev.SrcCity = loc.City
			}
			if ev.SrcCountryCode == "" {
				ev.SrcCountryCode = loc.CountryCode
			}
		}
	}
	if ev.DstLat == 0 && ev.DstLng == 0 {
		if loc := e.Locate(ev.DstIP); loc != nil {
			ev.DstLat, ev.DstLng = loc.Lat, loc.Lng
			if ev.DstCity == "" {
				ev.DstCity = loc.City
			}
			if ev.DstCountryCode == "" {
				ev.DstCountryCode = loc.CountryCode
			}
		}
	}
}

// Locate resolves a single address. It returns nil for unparseable,
// private and unknown addresses. Misses are cached too.
func (e *Enricher) Locate(addr string) *Location {
	ip := net.ParseIP(addr)
	if ip == nil || ip.IsPrivate() || ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
		return nil
	}
	key := ip.String()
	if loc, ok := e.cache.Get(key); ok {
		return loc
	}

	var rec cityRecord
	var loc *Location
	if err := e.db.Lookup(ip, &rec); err == nil && (rec.Location.Latitude != 0 || rec.Location.Longitude != 0) {
		loc = &Location{
			City:        rec.City.Names["en"],
			CountryCode: rec.Country.ISOCode,
			Lat:         rec.Location.Latitude,
			Lng:         rec.Location.Longitude,
		}
	}
	e.cache.Add(key, loc)
	return loc
}

// Close releases the database.
func (e *Enricher) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}
