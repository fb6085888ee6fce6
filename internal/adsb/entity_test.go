package adsb

import (
	"math"
	"testing"
	"time"

	"github.com/yegors/co-radar/internal/aircraftdb"
	"github.com/yegors/co-radar/internal/readsb"
)

type mapTypes map[string]aircraftdb.TypeInfo

func (m mapTypes) Lookup(code string) (aircraftdb.TypeInfo, bool) {
	info, ok := m[aircraftdb.NormalizeTypeCode(code)]
	return info, ok
}

func ptr[T any](v T) *T { return &v }

func TestEntityApplySparseMerge(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	e := NewEntity("ABC123", now)

	alt := readsb.FeetAltitude(35000)
	e.Apply(&readsb.Aircraft{
		Hex:     "abc123",
		Flight:  ptr("UAL123  "),
		Lat:     ptr(40.0),
		Lon:     ptr(-74.0),
		AltBaro: &alt,
		Squawk:  ptr("1200"),
	}, now, nil)

	later := now.Add(time.Second)
	e.Apply(&readsb.Aircraft{Hex: "abc123", GS: ptr(450.0)}, later, nil)

	if e.Hex != "abc123" {
		t.Errorf("Hex = %q", e.Hex)
	}
	if e.Callsign != "UAL123" {
		t.Errorf("Callsign = %q, want trimmed", e.Callsign)
	}
	if e.Lat == nil || *e.Lat != 40 || e.Lon == nil || *e.Lon != -74 {
		t.Errorf("position lost after sparse update: %v %v", e.Lat, e.Lon)
	}
	if e.AltBaro == nil || e.AltBaro.Value() != 35000 {
		t.Errorf("AltBaro = %v", e.AltBaro)
	}
	if e.GS == nil || *e.GS != 450 {
		t.Errorf("GS = %v", e.GS)
	}
	if e.Squawk != "1200" {
		t.Errorf("Squawk = %q", e.Squawk)
	}
	if !e.LastUpdate.Equal(later) || !e.FirstSeen.Equal(now) {
		t.Errorf("FirstSeen = %v LastUpdate = %v", e.FirstSeen, e.LastUpdate)
	}
}

func TestEntityPositionIsAPair(t *testing.T) {
	now := time.Now()
	e := NewEntity("abc123", now)
	e.Apply(&readsb.Aircraft{Hex: "abc123", Lat: ptr(1.0), Lon: ptr(2.0)}, now, nil)
	e.Apply(&readsb.Aircraft{Hex: "abc123", Lat: ptr(5.0)}, now, nil)

	if *e.Lat != 1 || *e.Lon != 2 {
		t.Errorf("half position applied: %v, %v", *e.Lat, *e.Lon)
	}
}

func TestEntityDBFlags(t *testing.T) {
	tests := []struct {
		name     string
		flags    int
		military bool
		pia      bool
		ladd     bool
		reg      string
	}{
		{"military", readsb.DBFlagMilitary, true, false, false, "N1"},
		{"pia clears registration", readsb.DBFlagPIA, false, true, false, ""},
		{"ladd", readsb.DBFlagLADD, false, false, true, "N1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Now()
			e := NewEntity("abc123", now)
			e.Apply(&readsb.Aircraft{Hex: "abc123", Registration: ptr("N1")}, now, nil)
			e.Apply(&readsb.Aircraft{Hex: "abc123", DBFlags: ptr(tt.flags)}, now, nil)

			if e.Military != tt.military || e.PIA != tt.pia || e.LADD != tt.ladd {
				t.Errorf("flags = mil %v pia %v ladd %v", e.Military, e.PIA, e.LADD)
			}
			if e.Registration != tt.reg {
				t.Errorf("Registration = %q, want %q", e.Registration, tt.reg)
			}
		})
	}
}

func TestEntityTypeDataRetriedUntilKnown(t *testing.T) {
	now := time.Now()
	e := NewEntity("abc123", now)

	e.Apply(&readsb.Aircraft{Hex: "abc123", TypeCode: ptr("B738")}, now, mapTypes{})
	if e.TypeDesc != "" {
		t.Fatalf("TypeDesc = %q before table load", e.TypeDesc)
	}
	if !e.DBInfoLoaded {
		t.Error("inline type code should mark db info loaded")
	}

	types := mapTypes{"B738": {Description: "L2J", WTC: "M", TypeLong: "BOEING 737-800"}}
	e.Apply(&readsb.Aircraft{Hex: "abc123"}, now, types)
	if e.TypeDesc != "L2J" || e.WTC != "M" || e.TypeLong != "BOEING 737-800" {
		t.Errorf("type data = %q %q %q", e.TypeDesc, e.WTC, e.TypeLong)
	}
}

func TestEntityP8Block(t *testing.T) {
	now := time.Now()
	types := mapTypes{"P8": {Description: "L2J", WTC: "M"}}

	e := NewEntity("ae6700", now)
	e.Apply(&readsb.Aircraft{Hex: "ae6700"}, now, types)
	if e.TypeCode != "P8 ?" || e.TypeDesc != "L2J" {
		t.Errorf("P8 block: type %q desc %q", e.TypeCode, e.TypeDesc)
	}

	outside := NewEntity("ae6900", now)
	outside.Apply(&readsb.Aircraft{Hex: "ae6900"}, now, types)
	if outside.TypeCode != "" {
		t.Errorf("outside block: type %q", outside.TypeCode)
	}
}

func TestEntityGroundVehicle(t *testing.T) {
	now := time.Now()
	ground := readsb.GroundAltitude()

	e := NewEntity("abc123", now)
	e.Apply(&readsb.Aircraft{Hex: "abc123", Type: ptr(readsb.AddrADSBICAONT), AltBaro: &ground}, now, nil)
	if !e.GroundVehicle {
		t.Error("non-transponder on the ground should be a ground vehicle")
	}

	alt := readsb.FeetAltitude(1200)
	e.Apply(&readsb.Aircraft{Hex: "abc123", AltBaro: &alt}, now, nil)
	if e.GroundVehicle {
		t.Error("classification should follow the latest altitude")
	}
}

func TestEntityApplyRecord(t *testing.T) {
	now := time.Now()
	e := NewEntity("abc123", now)
	if !e.NeedsLookup() {
		t.Fatal("new entity should need a lookup")
	}

	e.ApplyRecord(nil, nil)
	if e.NeedsLookup() {
		t.Error("a miss should still mark the entity enriched")
	}

	e2 := NewEntity("abc124", now)
	e2.ApplyRecord(&aircraftdb.Record{Registration: "N2", TypeCode: "C172", Operator: "Club"}, mapTypes{"C172": {Description: "L1P", WTC: "L"}})
	if e2.Registration != "N2" || e2.TypeCode != "C172" || e2.Operator != "Club" || e2.TypeDesc != "L1P" {
		t.Errorf("record not applied: %+v", e2)
	}

	fake := NewEntity("~abc123", now)
	if fake.NeedsLookup() {
		t.Error("synthetic address should never be looked up")
	}
}

func TestEntityUpdateTrack(t *testing.T) {
	now := time.Now()
	e := NewEntity("abc123", now)

	move := func(lat, lon float64) {
		e.Apply(&readsb.Aircraft{Hex: "abc123", Lat: ptr(lat), Lon: ptr(lon)}, now, nil)
		e.UpdateTrack(3, now)
	}

	move(10, 10)
	move(10.00001, 10.00001)
	if got := e.historySize(); got != 1 {
		t.Fatalf("history after jitter = %d, want 1", got)
	}

	move(10.1, 10)
	move(10.2, 10)
	move(10.3, 10)
	move(10.4, 10)
	if got := e.historySize(); got != 3 {
		t.Fatalf("history = %d, want capped at 3", got)
	}

	segs := e.TrackSegments()
	if len(segs) != 1 || len(segs[0]) != 3 {
		t.Fatalf("segments = %v", segs)
	}
	if segs[0][0] != [2]float64{10, 10.2} {
		t.Errorf("oldest point = %v, want [10 10.2]", segs[0][0])
	}

	e.ClearTrack()
	if len(e.TrackSegments()) != 0 {
		t.Error("ClearTrack left history")
	}
}

func TestEntityDisplayRotation(t *testing.T) {
	now := time.Now()

	air := NewEntity("abc123", now)
	air.Apply(&readsb.Aircraft{Hex: "abc123", Track: ptr(80.0), TrueHeading: ptr(90.0)}, now, nil)
	if rot, ok := air.DisplayRotation(); !ok || rot != 90 {
		t.Errorf("airborne rotation = %v, %v; want true heading", rot, ok)
	}

	ground := readsb.GroundAltitude()
	taxi := NewEntity("abc124", now)
	taxi.Apply(&readsb.Aircraft{Hex: "abc124", AltBaro: &ground, TrueHeading: ptr(270.0), Lat: ptr(10.0), Lon: ptr(10.0)}, now, nil)
	taxi.UpdateTrack(50, now)
	taxi.Apply(&readsb.Aircraft{Hex: "abc124", Lat: ptr(10.01), Lon: ptr(10.0)}, now, nil)
	taxi.UpdateTrack(50, now)

	rot, ok := taxi.DisplayRotation()
	if !ok || (math.Abs(rot) > 1e-6 && math.Abs(rot-360) > 1e-6) {
		t.Errorf("ground rotation = %v, %v; want bearing 0", rot, ok)
	}

	none := NewEntity("abc125", now)
	if _, ok := none.DisplayRotation(); ok {
		t.Error("rotation without any heading")
	}
}
