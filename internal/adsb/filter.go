package adsb

import (
	"slices"

	"github.com/yegors/co-radar/internal/websocket"
)

// Filter selects entities by classification, altitude and source. Zero
// values match everything.
type Filter struct {
	MilitaryOnly bool     `json:"military_only"`
	Sources      []string `json:"sources,omitempty"`
	AltitudeMin  *float64 `json:"altitude_min,omitempty"`
	AltitudeMax  *float64 `json:"altitude_max,omitempty"`
	OnGround     *bool    `json:"on_ground,omitempty"`
}

// Matches reports whether e passes the filter. Altitude bounds only
// apply to entities with a known barometric altitude; the ground
// sentinel counts as zero feet.
func (f Filter) Matches(e *Entity) bool {
	if f.MilitaryOnly && !e.Military {
		return false
	}
	if e.AltBaro != nil {
		alt := e.AltBaro.Value()
		if f.AltitudeMin != nil && alt < *f.AltitudeMin {
			return false
		}
		if f.AltitudeMax != nil && alt > *f.AltitudeMax {
			return false
		}
	}
	if len(f.Sources) > 0 && !slices.Contains(f.Sources, e.Source) {
		return false
	}
	if f.OnGround != nil && e.onGround() != *f.OnGround {
		return false
	}
	return true
}

// Bounds is an inclusive lat/lon box
type Bounds struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// Contains reports whether the entity has a position inside b
func (b Bounds) Contains(e *Entity) bool {
	if !e.HasPosition() {
		return false
	}
	lat, lon := *e.Lat, *e.Lon
	return lon >= b.MinLon && lon <= b.MaxLon && lat >= b.MinLat && lat <= b.MaxLat
}

// FilterFromClient converts websocket client filters
func FilterFromClient(f *websocket.ClientFilters) Filter {
	if f == nil {
		return Filter{}
	}
	return Filter{
		MilitaryOnly: f.MilitaryOnly,
		Sources:      f.Sources,
		AltitudeMin:  f.AltitudeMin,
		AltitudeMax:  f.AltitudeMax,
	}
}

// SubjectHex identifies the entity to websocket filtering
func (e *Entity) SubjectHex() string { return e.Hex }

// MatchesClientFilters applies websocket client filters to the entity
func (e *Entity) MatchesClientFilters(f *websocket.ClientFilters) bool {
	return FilterFromClient(f).Matches(e)
}
