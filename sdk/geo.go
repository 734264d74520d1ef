package sdk

import "strconv"

// Earth radius used to turn a distance into radians
const (
	EarthRadiusMi = 3956.6
	EarthRadiusKm = 6367.5
)

// GeoPoint is a latitude/longitude pair used by geo queries
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String returns "lat,lon", the encoding used in query arguments
func (p GeoPoint) String() string {
	return formatFloat(p.Lat) + "," + formatFloat(p.Lon)
}

// MilesToRadians converts a distance on the Earth's surface to radians
func MilesToRadians(mi float64) float64 { return mi / EarthRadiusMi }

// KilometersToRadians converts a distance on the Earth's surface to radians
func KilometersToRadians(km float64) float64 { return km / EarthRadiusKm }

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
