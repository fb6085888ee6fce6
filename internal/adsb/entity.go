package adsb

import (
	"math"
	"strings"
	"time"

	"github.com/yegors/co-radar/internal/aircraftdb"
	"github.com/yegors/co-radar/internal/physics"
	"github.com/yegors/co-radar/internal/readsb"
)

const (
	// recentPositions is the size of the smoothing buffer
	recentPositions = 5
	// minTrackMove is the movement in degrees (either axis) needed to
	// extend the track history
	minTrackMove = 0.0001
)

// TypeLookup resolves ICAO type designators. *aircraftdb.TypeTable
// satisfies it.
type TypeLookup interface {
	Lookup(code string) (aircraftdb.TypeInfo, bool)
}

// Position is one stored track point
type Position struct {
	Lat      float64          `json:"lat"`
	Lon      float64          `json:"lon"`
	Altitude *readsb.Altitude `json:"altitude,omitempty"`
	Time     time.Time        `json:"time"`
}

// Entity is the merged, long-lived state of one aircraft. It is not safe
// for concurrent use; the Registry serialises access.
type Entity struct {
	Hex      string `json:"hex"`
	FakeHex  bool   `json:"fake_hex,omitempty"`
	AddrType string `json:"type,omitempty"`
	Source   string `json:"source,omitempty"`

	Callsign     string `json:"flight,omitempty"`
	Registration string `json:"registration,omitempty"`
	TypeCode     string `json:"icao_type,omitempty"`
	TypeDesc     string `json:"type_description,omitempty"`
	WTC          string `json:"wtc,omitempty"`
	TypeLong     string `json:"type_long,omitempty"`
	Operator     string `json:"operator,omitempty"`
	Year         string `json:"year,omitempty"`
	DBFlags      int    `json:"db_flags,omitempty"`

	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`

	AltBaro     *readsb.Altitude `json:"alt_baro,omitempty"`
	AltGeom     *float64         `json:"alt_geom,omitempty"`
	GS          *float64         `json:"gs,omitempty"`
	IAS         *float64         `json:"ias,omitempty"`
	TAS         *float64         `json:"tas,omitempty"`
	Mach        *float64         `json:"mach,omitempty"`
	Track       *float64         `json:"track,omitempty"`
	CalcTrack   *float64         `json:"calc_track,omitempty"`
	TrackRate   *float64         `json:"track_rate,omitempty"`
	Roll        *float64         `json:"roll,omitempty"`
	MagHeading  *float64         `json:"mag_heading,omitempty"`
	TrueHeading *float64         `json:"true_heading,omitempty"`
	BaroRate    *float64         `json:"baro_rate,omitempty"`
	GeomRate    *float64         `json:"geom_rate,omitempty"`

	WD  *float64 `json:"wd,omitempty"`
	WS  *float64 `json:"ws,omitempty"`
	OAT *float64 `json:"oat,omitempty"`
	TAT *float64 `json:"tat,omitempty"`

	NavQNH         *float64 `json:"nav_qnh,omitempty"`
	NavAltitudeMCP *float64 `json:"nav_altitude_mcp,omitempty"`
	NavAltitudeFMS *float64 `json:"nav_altitude_fms,omitempty"`
	NavHeading     *float64 `json:"nav_heading,omitempty"`
	NavModes       []string `json:"nav_modes,omitempty"`
	NavAltitudeSrc *int     `json:"nav_altitude_src,omitempty"`

	Squawk    string `json:"squawk,omitempty"`
	Emergency string `json:"emergency,omitempty"`
	Category  string `json:"category,omitempty"`

	Seen      *float64 `json:"seen,omitempty"`
	SeenPos   *float64 `json:"seen_pos,omitempty"`
	AirGround *int     `json:"airground,omitempty"`

	NIC         *int   `json:"nic,omitempty"`
	RC          *int   `json:"rc,omitempty"`
	Version     *int   `json:"version,omitempty"`
	ADSRVersion *int   `json:"adsr_version,omitempty"`
	TISBVersion *int   `json:"tisb_version,omitempty"`
	NICBaro     *int   `json:"nic_baro,omitempty"`
	NACP        *int   `json:"nac_p,omitempty"`
	NACV        *int   `json:"nac_v,omitempty"`
	SIL         *int   `json:"sil,omitempty"`
	SILType     string `json:"sil_type,omitempty"`
	GVA         *int   `json:"gva,omitempty"`
	SDA         *int   `json:"sda,omitempty"`
	NICA        *int   `json:"nic_a,omitempty"`
	NICC        *int   `json:"nic_c,omitempty"`
	Alert       *int   `json:"alert,omitempty"`
	SPI         *int   `json:"spi,omitempty"`

	MLAT          []string `json:"mlat,omitempty"`
	TISB          []string `json:"tisb,omitempty"`
	Messages      *int     `json:"messages,omitempty"`
	MessageRate   *float64 `json:"message_rate,omitempty"`
	RSSI          *float64 `json:"rssi,omitempty"`
	ReceiverCount *int     `json:"receiver_count,omitempty"`

	Military      bool `json:"military"`
	PIA           bool `json:"pia"`
	LADD          bool `json:"ladd"`
	GroundVehicle bool `json:"ground_vehicle"`
	OnGround      bool `json:"on_ground"`
	DBInfoLoaded  bool `json:"dbinfo_loaded"`

	DistanceNM *float64 `json:"distance_nm,omitempty"`
	Rotation   *float64 `json:"rotation,omitempty"`

	FirstSeen  time.Time `json:"first_seen"`
	LastUpdate time.Time `json:"last_update"`

	typeCache string
	recent    []Position
	history   [][]Position
}

// NewEntity creates the entity for a first sighting of hex
func NewEntity(hex string, now time.Time) *Entity {
	hex = strings.ToLower(strings.TrimSpace(hex))
	return &Entity{
		Hex:        hex,
		FakeHex:    strings.HasPrefix(hex, "~"),
		FirstSeen:  now,
		LastUpdate: now,
	}
}

func merge[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}

func mergeString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// Apply merges a decoded field set into the entity. Fields absent from
// ac leave the entity untouched.
func (e *Entity) Apply(ac *readsb.Aircraft, now time.Time, types TypeLookup) {
	if ac.Lat != nil && ac.Lon != nil {
		e.Lat, e.Lon = ac.Lat, ac.Lon
	}

	merge(&e.AltBaro, ac.AltBaro)
	merge(&e.AltGeom, ac.AltGeom)
	merge(&e.GS, ac.GS)
	merge(&e.IAS, ac.IAS)
	merge(&e.TAS, ac.TAS)
	merge(&e.Mach, ac.Mach)
	merge(&e.Track, ac.Track)
	merge(&e.CalcTrack, ac.CalcTrack)
	merge(&e.TrackRate, ac.TrackRate)
	merge(&e.Roll, ac.Roll)
	merge(&e.MagHeading, ac.MagHeading)
	merge(&e.TrueHeading, ac.TrueHeading)
	merge(&e.BaroRate, ac.BaroRate)
	merge(&e.GeomRate, ac.GeomRate)
	merge(&e.WD, ac.WD)
	merge(&e.WS, ac.WS)
	merge(&e.OAT, ac.OAT)
	merge(&e.TAT, ac.TAT)
	merge(&e.NavQNH, ac.NavQNH)
	merge(&e.NavAltitudeMCP, ac.NavAltitudeMCP)
	merge(&e.NavAltitudeFMS, ac.NavAltitudeFMS)
	merge(&e.NavHeading, ac.NavHeading)
	merge(&e.NavAltitudeSrc, ac.NavAltitudeSrc)
	if ac.NavModes != nil {
		e.NavModes = ac.NavModes
	}

	if ac.Flight != nil {
		e.Callsign = strings.TrimSpace(*ac.Flight)
	}
	mergeString(&e.Squawk, ac.Squawk)
	mergeString(&e.Emergency, ac.Emergency)
	mergeString(&e.Category, ac.Category)
	mergeString(&e.SILType, ac.SILType)
	mergeString(&e.AddrType, ac.Type)
	mergeString(&e.Source, ac.Source)

	merge(&e.Seen, ac.Seen)
	merge(&e.SeenPos, ac.SeenPos)
	merge(&e.NIC, ac.NIC)
	merge(&e.RC, ac.RC)
	merge(&e.Version, ac.Version)
	merge(&e.ADSRVersion, ac.ADSRVersion)
	merge(&e.TISBVersion, ac.TISBVersion)
	merge(&e.NICBaro, ac.NICBaro)
	merge(&e.NACP, ac.NACP)
	merge(&e.NACV, ac.NACV)
	merge(&e.SIL, ac.SIL)
	merge(&e.GVA, ac.GVA)
	merge(&e.SDA, ac.SDA)
	merge(&e.NICA, ac.NICA)
	merge(&e.NICC, ac.NICC)
	merge(&e.Alert, ac.Alert)
	merge(&e.SPI, ac.SPI)
	merge(&e.Messages, ac.Messages)
	merge(&e.MessageRate, ac.MessageRate)
	merge(&e.RSSI, ac.RSSI)
	merge(&e.ReceiverCount, ac.ReceiverCount)
	if ac.MLAT != nil {
		e.MLAT = ac.MLAT
	}
	if ac.TISB != nil {
		e.TISB = ac.TISB
	}
	if ac.DBFlags != nil {
		e.DBFlags = *ac.DBFlags
	}

	if ac.AirGround != nil {
		e.AirGround = ac.AirGround
		e.OnGround = *ac.AirGround == readsb.AirGroundGround
	}
	if ac.Registration != nil && e.Registration == "" {
		e.Registration = *ac.Registration
	}

	e.applyTypeFlagsReg(ac, types)
	e.applyInlineDB(ac, types)

	e.GroundVehicle = e.AltBaro != nil && e.AltBaro.Ground && readsb.IsGroundVehicleType(e.AddrType)

	if ac.CalcTrack != nil && e.Track == nil {
		e.Track = ac.CalcTrack
	}

	e.LastUpdate = now
}

func (e *Entity) applyTypeFlagsReg(ac *readsb.Aircraft, types TypeLookup) {
	if ac.TypeCode != nil && *ac.TypeCode != "" && *ac.TypeCode != e.TypeCode {
		e.TypeCode = *ac.TypeCode
	}
	e.applyTypeData(types)

	if ac.DBFlags != nil && *ac.DBFlags != 0 {
		flags := *ac.DBFlags
		e.Military = flags&readsb.DBFlagMilitary != 0
		e.PIA = flags&readsb.DBFlagPIA != 0
		e.LADD = flags&readsb.DBFlagLADD != 0
		if e.PIA {
			e.Registration = ""
		}
	}

	if ac.Registration != nil && *ac.Registration != "" {
		e.Registration = *ac.Registration
	}
}

// US Navy P-8 block without database entries
func isP8Block(hex string) bool {
	return hex >= "ae6620" && hex <= "ae6899"
}

func (e *Entity) applyInlineDB(ac *readsb.Aircraft, types TypeLookup) {
	if !e.DBInfoLoaded && isP8Block(e.Hex) {
		e.TypeCode = "P8 ?"
		e.applyTypeData(types)
	}

	if ac.Desc != nil && *ac.Desc != "" {
		e.TypeLong = *ac.Desc
	}
	if ac.OwnOp != nil && *ac.OwnOp != "" {
		e.Operator = *ac.OwnOp
	}
	if ac.Year != nil && *ac.Year != "" {
		e.Year = *ac.Year
	}
	if (ac.Registration != nil && *ac.Registration != "") || (ac.TypeCode != nil && *ac.TypeCode != "") {
		e.DBInfoLoaded = true
	}
}

// applyTypeData copies type-table details when the type code changed.
// A code the table does not know (or a table not loaded yet) is retried
// on the next merge.
func (e *Entity) applyTypeData(types TypeLookup) {
	if e.TypeCode == "" || e.TypeCode == e.typeCache || types == nil {
		return
	}
	info, ok := types.Lookup(e.TypeCode)
	if !ok {
		return
	}
	e.typeCache = e.TypeCode

	if info.Description != "" {
		e.TypeDesc = info.Description
	}
	if info.WTC != "" {
		e.WTC = info.WTC
	}
	if e.TypeLong == "" && info.TypeLong != "" {
		e.TypeLong = info.TypeLong
	}
}

// NeedsLookup reports whether the entity should be enriched from the
// aircraft database
func (e *Entity) NeedsLookup() bool {
	return !e.DBInfoLoaded && !e.FakeHex
}

// ApplyRecord merges a database lookup result. A nil record (miss or
// failed lookup) still marks the entity as enriched.
func (e *Entity) ApplyRecord(rec *aircraftdb.Record, types TypeLookup) {
	if rec != nil {
		if rec.Registration != "" {
			e.Registration = rec.Registration
		}
		if rec.TypeCode != "" {
			e.TypeCode = rec.TypeCode
		}
		if rec.Description != "" {
			e.TypeDesc = rec.Description
		}
		if rec.WTC != "" {
			e.WTC = rec.WTC
		}
		if rec.TypeLong != "" {
			e.TypeLong = rec.TypeLong
		}
		if rec.Operator != "" {
			e.Operator = rec.Operator
		}
		if rec.Year != "" {
			e.Year = rec.Year
		}
		e.applyTypeData(types)
	}
	e.DBInfoLoaded = true
}

// HasPosition reports whether lat/lon are known
func (e *Entity) HasPosition() bool {
	return e.Lat != nil && e.Lon != nil
}

func (e *Entity) onGround() bool {
	return e.OnGround || (e.AltBaro != nil && e.AltBaro.Ground)
}

// DisplayRotation returns the heading to draw the aircraft with. On the
// ground the bearing between the last two smoothing positions wins;
// otherwise true heading, magnetic heading, calculated track, track.
func (e *Entity) DisplayRotation() (float64, bool) {
	if e.onGround() && len(e.recent) >= 2 {
		a, b := e.recent[len(e.recent)-2], e.recent[len(e.recent)-1]
		brg := physics.InitialBearing(a.Lat, a.Lon, b.Lat, b.Lon)
		if !math.IsNaN(brg) {
			return brg, true
		}
	}
	for _, v := range []*float64{e.TrueHeading, e.MagHeading, e.CalcTrack, e.Track} {
		if v != nil {
			return *v, true
		}
	}
	return 0, false
}

// UpdateTrack records the current position. The smoothing buffer keeps
// the last five positions; the history grows only on real movement and
// is trimmed from the oldest point once it exceeds maxPoints.
func (e *Entity) UpdateTrack(maxPoints int, now time.Time) {
	if !e.HasPosition() {
		return
	}
	p := Position{Lat: *e.Lat, Lon: *e.Lon, Altitude: e.AltBaro, Time: now}

	e.recent = append(e.recent, p)
	if len(e.recent) > recentPositions {
		e.recent = e.recent[len(e.recent)-recentPositions:]
	}

	if len(e.history) == 0 {
		e.history = append(e.history, []Position{p})
		return
	}

	seg := e.history[len(e.history)-1]
	last := seg[len(seg)-1]
	if math.Abs(p.Lat-last.Lat) <= minTrackMove && math.Abs(p.Lon-last.Lon) <= minTrackMove {
		return
	}
	e.history[len(e.history)-1] = append(seg, p)

	if e.historySize() > maxPoints {
		if len(e.history[0]) > 1 {
			e.history[0] = e.history[0][1:]
		} else {
			e.history = e.history[1:]
		}
	}
}

func (e *Entity) historySize() int {
	n := 0
	for _, seg := range e.history {
		n += len(seg)
	}
	return n
}

// TrackSegments returns history segments of at least two points as
// [lon, lat] pairs
func (e *Entity) TrackSegments() [][][2]float64 {
	out := [][][2]float64{}
	for _, seg := range e.history {
		if len(seg) < 2 {
			continue
		}
		line := make([][2]float64, len(seg))
		for i, p := range seg {
			line[i] = [2]float64{p.Lon, p.Lat}
		}
		out = append(out, line)
	}
	return out
}

// ClearTrack drops the history and the smoothing buffer
func (e *Entity) ClearTrack() {
	e.history = nil
	e.recent = nil
}

// snapshot returns a copy safe to hand out of the registry, with the
// display rotation filled in
func (e *Entity) snapshot() *Entity {
	c := *e
	c.recent = nil
	c.history = nil
	if rot, ok := e.DisplayRotation(); ok {
		c.Rotation = &rot
	} else {
		c.Rotation = nil
	}
	return &c
}
