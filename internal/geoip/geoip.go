package geoip

import (
	"log/slog"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

// Location is where a participant connected from. Both fields are empty when
// the address is private or no database is loaded.
type Location struct {
	Country string
	City    string
}

type Resolver struct {
	db *maxminddb.Reader
}

type geoResult struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
}

// New opens a MaxMind City database. A missing path or unreadable file gives
// a resolver that locates nothing.
func New(dbPath string) (*Resolver, error) {
	if dbPath == "" {
		return &Resolver{}, nil
	}
	db, err := maxminddb.Open(dbPath)
	if err != nil {
		slog.Warn("geoip: failed to open database, participant locations disabled", "path", dbPath, "error", err)
		return &Resolver{}, nil
	}
	slog.Info("geoip: loaded database", "path", dbPath)
	return &Resolver{db: db}, nil
}

func (r *Resolver) Locate(ipStr string) Location {
	if r == nil || r.db == nil || ipStr == "" {
		return Location{}
	}
	ip := net.ParseIP(ipStr)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() {
		return Location{}
	}
	var result geoResult
	if err := r.db.Lookup(ip, &result); err != nil {
		return Location{}
	}
	return Location{Country: result.Country.ISOCode, City: result.City.Names["en"]}
}

func (r *Resolver) Close() error {
	if r != nil && r.db != nil {
		return r.db.Close()
	}
	return nil
}
