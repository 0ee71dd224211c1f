package geo

import (
	"hash/fnv"

	"github.com/paywatch/paywatch/internal/domain"
)

// hubs are the display coordinates events are mapped onto. The set mirrors
// the dashboard's world-map markers.
var hubs = []domain.Location{
	{Lat: 37.7749, Lng: -122.4194, Country: "US"}, // San Francisco
	{Lat: 40.7128, Lng: -74.0060, Country: "US"},  // New York
	{Lat: 51.5074, Lng: -0.1278, Country: "UK"},   // London
	{Lat: 35.6762, Lng: 139.6503, Country: "JP"},  // Tokyo
	{Lat: 1.3521, Lng: 103.8198, Country: "SG"},   // Singapore
	{Lat: 52.5200, Lng: 13.4050, Country: "DE"},   // Berlin
	{Lat: 43.6532, Lng: -79.3832, Country: "CA"},  // Toronto
	{Lat: -33.8688, Lng: 151.2093, Country: "AU"}, // Sydney
}

// Locator derives a stable display location from an opaque key (payer
// address, falling back to the event id). It is pure: the same key always
// maps to the same coordinate, so map markers don't jump between reads.
type Locator struct{}

func NewLocator() *Locator {
	return &Locator{}
}

// Locate maps key onto one of the known hubs.
func (l *Locator) Locate(key string) domain.Location {
	h := fnv.New32a()
	h.Write([]byte(key))
	return hubs[h.Sum32()%uint32(len(hubs))]
}
