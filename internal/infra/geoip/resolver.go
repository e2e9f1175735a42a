package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/oschwald/geoip2-golang"
	"github.com/patrickmn/go-cache"
)

// ErrUnavailable is returned when the resolver is not initialized.
var ErrUnavailable = errors.New("geoip resolver unavailable")

const defaultCacheTTL = 30 * time.Minute

// CountryResolver resolves ISO country codes from IP addresses.
type CountryResolver interface {
	CountryCode(ip string) (string, error)
}

type countryReader interface {
	Country(ip net.IP) (*geoip2.Country, error)
	Close() error
}

// Resolver answers country lookups from a MaxMind database. Kiosk clients
// poll the job endpoint repeatedly, so answers are cached per address.
type Resolver struct {
	reader countryReader
	cache  *cache.Cache
}

// NewResolver opens the GeoIP database at the given path. When the path is
// empty, nil is returned and locale detection falls back to headers.
func NewResolver(path string, ttl time.Duration) (CountryResolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open database: %w", err)
	}
	return newResolver(reader, ttl), nil
}

func newResolver(reader countryReader, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Resolver{reader: reader, cache: cache.New(ttl, 2*ttl)}
}

// CountryCode returns the ISO country code for the provided IP. Unknown
// addresses yield an empty code and no error.
func (r *Resolver) CountryCode(ip string) (string, error) {
	if r == nil || r.reader == nil {
		return "", ErrUnavailable
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "", fmt.Errorf("geoip: invalid ip %q", ip)
	}
	key := parsed.String()
	if code, ok := r.cache.Get(key); ok {
		return code.(string), nil
	}
	record, err := r.reader.Country(parsed)
	if err != nil {
		return "", fmt.Errorf("geoip: lookup country: %w", err)
	}
	code := ""
	if record != nil {
		code = strings.ToUpper(record.Country.IsoCode)
	}
	r.cache.SetDefault(key, code)
	return code, nil
}

// Lookup adapts a resolver to the func shape the locale middleware takes.
// A nil resolver yields a nil lookup.
func Lookup(r CountryResolver) func(ip string) (string, error) {
	if r == nil {
		return nil
	}
	return r.CountryCode
}

// Close closes the underlying database reader.
func (r *Resolver) Close() error {
	if r == nil || r.reader == nil {
		return nil
	}
	r.cache.Flush()
	return r.reader.Close()
}
