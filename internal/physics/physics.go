package physics

import (
	"math"
	"time"

	"github.com/skypies/geo"
	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

const (
	KMPerNM  = 1.852
	FeetToM  = 0.3048
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// NormalizeHeading maps deg into [0, 360)
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// InitialBearing returns the great-circle initial bearing in degrees
// [0, 360) from (lat1, lon1) towards (lat2, lon2).
func InitialBearing(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := lat1 * degToRad
	p2 := lat2 * degToRad
	dl := (lon2 - lon1) * degToRad

	y := math.Sin(dl) * math.Cos(p2)
	x := math.Cos(p1)*math.Sin(p2) - math.Sin(p1)*math.Cos(p2)*math.Cos(dl)
	return NormalizeHeading(math.Atan2(y, x) * radToDeg)
}

// DistanceNM returns the great-circle distance in nautical miles
func DistanceNM(lat1, lon1, lat2, lon2 float64) float64 {
	from := geo.Latlong{Lat: lat1, Long: lon1}
	return from.DistKM(geo.Latlong{Lat: lat2, Long: lon2}) / KMPerNM
}

// CalculateMagneticVariation calculates the magnetic declination for a given position and time
// Returns declination in degrees (+East, -West)
func CalculateMagneticVariation(lat, lon, altFt float64, date time.Time) float64 {
	loc := egm96.NewLocationGeodetic(lat, lon, altFt*FeetToM)

	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		// Outside the model's validity window
		return 0.0
	}
	return mag.D()
}

// MagneticToTrue converts a magnetic heading to a true heading at the
// given position
func MagneticToTrue(magHeading, lat, lon, altFt float64, date time.Time) float64 {
	return NormalizeHeading(magHeading + CalculateMagneticVariation(lat, lon, altFt, date))
}
