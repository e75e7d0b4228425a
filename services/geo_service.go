package services

import (
	"math"
	"strings"
)

// EarthRadiusKm is the mean Earth radius used by HaversineKm.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// DistanceKm returns the distance rounded to 0.1 km, or nil when either
// side is missing a coordinate.
func DistanceKm(lat1, lon1, lat2, lon2 *float64) *float64 {
	if lat1 == nil || lon1 == nil || lat2 == nil || lon2 == nil {
		return nil
	}
	d := math.Round(HaversineKm(*lat1, *lon1, *lat2, *lon2)*10) / 10
	return &d
}

// ProximityBucket is a named distance range for filtering open requests.
type ProximityBucket string

const (
	Within5Km  ProximityBucket = "0-5km"
	Within10Km ProximityBucket = "5-10km"
	Within20Km ProximityBucket = "10-20km"
	Beyond20Km ProximityBucket = "20km+"
)

var ProximityBuckets = []ProximityBucket{Within5Km, Within10Km, Within20Km, Beyond20Km}

// ParseBuckets reads a comma-separated list, dropping unknown names.
func ParseBuckets(raw string) []ProximityBucket {
	var out []ProximityBucket
	for _, part := range strings.Split(raw, ",") {
		b := ProximityBucket(strings.TrimSpace(part))
		for _, known := range ProximityBuckets {
			if b == known {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

// Contains reports whether distance d falls in the bucket. A nil distance
// only belongs to Beyond20Km.
func (b ProximityBucket) Contains(d *float64) bool {
	if d == nil {
		return b == Beyond20Km
	}
	switch b {
	case Within5Km:
		return *d <= 5
	case Within10Km:
		return *d > 5 && *d <= 10
	case Within20Km:
		return *d > 10 && *d <= 20
	case Beyond20Km:
		return *d > 20
	}
	return false
}

// InAnyBucket is true when buckets is empty or any bucket contains d.
func InAnyBucket(d *float64, buckets []ProximityBucket) bool {
	if len(buckets) == 0 {
		return true
	}
	for _, b := range buckets {
		if b.Contains(d) {
			return true
		}
	}
	return false
}
