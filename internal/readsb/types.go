package readsb

import "strings"

// Address type names as published by readsb in the "type" field.
const (
	AddrADSBICAO      = "adsb_icao"
	AddrADSBICAONT    = "adsb_icao_nt"
	AddrADSRICAO      = "adsr_icao"
	AddrTISBICAO      = "tisb_icao"
	AddrADSC          = "adsc"
	AddrMLAT          = "mlat"
	AddrOther         = "other"
	AddrModeS         = "mode_s"
	AddrADSBOther     = "adsb_other"
	AddrADSROther     = "adsr_other"
	AddrTISBTrackfile = "tisb_trackfile"
	AddrTISBOther     = "tisb_other"
	AddrModeAC        = "mode_ac"
	AddrUnknown       = "unknown"
)

var addressTypes = [...]string{
	AddrADSBICAO,
	AddrADSBICAONT,
	AddrADSRICAO,
	AddrTISBICAO,
	AddrADSC,
	AddrMLAT,
	AddrOther,
	AddrModeS,
	AddrADSBOther,
	AddrADSROther,
	AddrTISBTrackfile,
	AddrTISBOther,
	AddrModeAC,
}

// AddressTypeName maps the 4-bit wire code to its readsb name.
func AddressTypeName(code int) string {
	if code < 0 || code >= len(addressTypes) {
		return AddrUnknown
	}
	return addressTypes[code]
}

// Source buckets used for filtering.
const (
	SourceADSB  = "adsb"
	SourceADSR  = "adsr"
	SourceTISB  = "tisb"
	SourceModeS = "modeS"
	SourceMLAT  = "mlat"
	SourceADSC  = "adsc"
	SourceOther = "other"
)

// SourceBucket groups an address type name by family.
func SourceBucket(addrType string) string {
	switch {
	case strings.HasPrefix(addrType, "adsb"):
		return SourceADSB
	case strings.HasPrefix(addrType, "adsr"):
		return SourceADSR
	case strings.HasPrefix(addrType, "tisb"):
		return SourceTISB
	case addrType == AddrModeS:
		return SourceModeS
	case addrType == AddrMLAT:
		return SourceMLAT
	case addrType == AddrADSC:
		return SourceADSC
	default:
		return SourceOther
	}
}

// IsGroundVehicleType reports whether the address type is one used by
// surface vehicles and relayed non-transponder targets.
func IsGroundVehicleType(addrType string) bool {
	switch addrType {
	case AddrADSBICAONT, AddrTISBOther, AddrTISBTrackfile:
		return true
	}
	return false
}

var emergencyNames = [...]string{
	"none",
	"general",
	"lifeguard",
	"minfuel",
	"nordo",
	"unlawful",
	"downed",
	"reserved",
}

// EmergencyName maps the emergency/priority code to its readsb name.
func EmergencyName(code int) string {
	if code < 0 || code >= len(emergencyNames) {
		return "reserved"
	}
	return emergencyNames[code]
}

var silTypeNames = [...]string{"unknown", "perhour", "persample"}

// SILTypeName maps the SIL supplement code to its readsb name.
func SILTypeName(code int) string {
	if code < 0 || code >= len(silTypeNames) {
		return "unknown"
	}
	return silTypeNames[code]
}

// Database flag bits carried in dbFlags.
const (
	DBFlagMilitary    = 1 << 0
	DBFlagInteresting = 1 << 1
	DBFlagPIA         = 1 << 2
	DBFlagLADD        = 1 << 3
)

// Air/ground state codes.
const (
	AirGroundInvalid   = 0
	AirGroundGround    = 1
	AirGroundAirborne  = 2
	AirGroundUncertain = 3
)
