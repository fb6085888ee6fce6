package readsb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strconv"
	"strings"
)

// ErrShortFrame is returned when a buffer cannot hold the frame header
var ErrShortFrame = errors.New("binCraft frame shorter than header")

const (
	headerSize = 52

	// Versions at which the record layout changed.
	VersionWideSeen   = 20240218
	VersionLinearRSSI = 20250403

	headerFlagMessageRate = 1 << 0
)

// protocol is the decode strategy for a frame, resolved once from the
// header version.
type protocol struct {
	wideSeen   bool
	linearRSSI bool
}

func protocolFor(version uint32) protocol {
	return protocol{
		wideSeen:   version >= VersionWideSeen,
		linearRSSI: version >= VersionLinearRSSI,
	}
}

// minRecord is the smallest stride holding every field the layout reads
func (p protocol) minRecord() int {
	if p.wideSeen {
		return 112
	}
	return 107
}

func (p protocol) seen(r record) (seen, seenPos float64) {
	if p.wideSeen {
		return float64(r.i32(4)) / 10, float64(r.i32(108)) / 10
	}
	return float64(r.u16(6)) / 10, float64(r.u16(4)) / 10
}

func (p protocol) rssi(b byte) float64 {
	if p.linearRSSI {
		return float64(b)*(50.0/255.0) - 50
	}
	level := float64(b)*float64(b)/65025 + 1.125e-5
	return 10 * math.Log10(level)
}

// record is a little-endian view over one aircraft record
type record []byte

func (r record) u16(off int) uint16 { return binary.LittleEndian.Uint16(r[off:]) }
func (r record) i16(off int) int16  { return int16(r.u16(off)) }
func (r record) u32(off int) uint32 { return binary.LittleEndian.Uint32(r[off:]) }
func (r record) i32(off int) int32  { return int32(r.u32(off)) }

// cstring reads ASCII up to the first NUL or the field width
func (r record) cstring(off, width int) string {
	field := r[off : off+width]
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

// nibbles splits a packed byte
type nibbles byte

func (n nibbles) lo() int { return int(n & 0x0f) }
func (n nibbles) hi() int { return int(n >> 4) }

// accuracy is byte 72: SIL, GVA, SDA, NIC-A, NIC-C
type accuracy byte

func (a accuracy) sil() int  { return int(a & 0x03) }
func (a accuracy) gva() int  { return int(a&0x0c) >> 2 }
func (a accuracy) sda() int  { return int(a&0x30) >> 4 }
func (a accuracy) nicA() int { return int(a&0x40) >> 6 }
func (a accuracy) nicC() int { return int(a&0x80) >> 7 }

// validity is bytes 73..76 read as one little-endian word. The three low
// bits of byte 73 are values, the rest are presence bits.
type validity uint32

const (
	valNICBaroBit validity = 1 << iota
	valAlertBit
	valSPIBit
	valFlight
	valAltBaro
	valAltGeom
	valPosition
	valGS
	valIAS
	valTAS
	valMach
	valTrack
	valTrackRate
	valRoll
	valMagHeading
	valTrueHeading
	valBaroRate
	valGeomRate
	valNICA
	valNICC
	valNICBaro
	valNACP
	valNACV
	valSIL
	valGVA
	valSDA
	valNICBaroAlt
	valAlert
	valSPI
)

func (v validity) has(bit validity) bool { return v&bit != 0 }

func (v validity) nicBaro() bool { return v.has(valNICBaro) && v.has(valNICBaroAlt) }

func bit(v validity, b validity) int {
	if v.has(b) {
		return 1
	}
	return 0
}

// DecodeBinCraft decodes a binCraft frame. Records are read at stride
// steps after the header; a trailing partial record is ignored.
func DecodeBinCraft(buf []byte) (*Snapshot, error) {
	if len(buf) < headerSize {
		return nil, ErrShortFrame
	}
	h := record(buf)

	snap := &Snapshot{
		Now:             float64(h.u32(0))/1000 + float64(h.u32(4))*4294967.296,
		AircraftWithPos: int(h.u32(12)),
		GlobeIndex:      int(h.u32(16)),
		South:           int(h.i16(20)),
		West:            int(h.i16(22)),
		North:           int(h.i16(24)),
		East:            int(h.i16(26)),
		Messages:        int64(h.u32(28)),
		ReceiverLat:     float64(h.i32(32)) / 1e6,
		ReceiverLon:     float64(h.i32(36)) / 1e6,
		Version:         h.u32(40),
		MessageRate:     float64(h.u32(44)) / 10,
		Flags:           h.u32(48),
		Aircraft:        []Aircraft{},
	}

	stride := int(h.u32(8))
	proto := protocolFor(snap.Version)
	if stride == 0 || stride < proto.minRecord() {
		return snap, nil
	}
	useRate := snap.Flags&headerFlagMessageRate != 0

	for off := stride; off+stride <= len(buf); off += stride {
		snap.Aircraft = append(snap.Aircraft, decodeRecord(record(buf[off:off+stride]), proto, useRate))
	}
	return snap, nil
}

func decodeRecord(r record, proto protocol, useRate bool) Aircraft {
	var ac Aircraft

	raw := r.u32(0)
	ac.Hex = FormatHex(raw)

	seen, seenPos := proto.seen(r)
	ac.Seen = ptr(seen)

	valid := validity(r.u32(73))

	if valid.has(valPosition) {
		ac.Lon = ptr(float64(r.i32(8)) / 1e6)
		ac.Lat = ptr(float64(r.i32(12)) / 1e6)
		ac.SeenPos = ptr(seenPos)
	}

	ag := nibbles(r[68])
	ac.AirGround = ptr(ag.lo())
	ac.NavAltitudeSrc = ptr(ag.hi())

	if valid.has(valBaroRate) {
		ac.BaroRate = ptr(float64(r.i16(16)) * 8)
	}
	if valid.has(valGeomRate) {
		ac.GeomRate = ptr(float64(r.i16(18)) * 8)
	}
	if valid.has(valAltBaro) {
		alt := FeetAltitude(float64(r.i16(20)) * 25)
		ac.AltBaro = &alt
	}
	if ag.lo() == AirGroundGround {
		alt := GroundAltitude()
		ac.AltBaro = &alt
	}
	if valid.has(valAltGeom) {
		ac.AltGeom = ptr(float64(r.i16(22)) * 25)
	}

	ac.NavAltitudeMCP = ptr(float64(r.u16(24)) * 4)
	ac.NavAltitudeFMS = ptr(float64(r.u16(26)) * 4)
	ac.NavQNH = ptr(float64(r.i16(28)) / 10)
	ac.NavHeading = ptr(float64(r.i16(30)) / 90)

	ac.Squawk = ptr(DecodeSquawk(r.u16(32)))

	if valid.has(valGS) {
		ac.GS = ptr(float64(r.i16(34)) / 10)
	}
	if valid.has(valMach) {
		ac.Mach = ptr(float64(r.i16(36)) / 1000)
	}
	if valid.has(valRoll) {
		ac.Roll = ptr(float64(r.i16(38)) / 100)
	}
	if valid.has(valTrack) {
		ac.Track = ptr(float64(r.i16(40)) / 90)
	}
	if valid.has(valTrackRate) {
		ac.TrackRate = ptr(float64(r.i16(42)) / 100)
	}
	if valid.has(valMagHeading) {
		ac.MagHeading = ptr(float64(r.i16(44)) / 90)
	}
	if valid.has(valTrueHeading) {
		ac.TrueHeading = ptr(float64(r.i16(46)) / 90)
	}

	ac.WD = ptr(float64(r.i16(48)))
	ac.WS = ptr(float64(r.i16(50)))
	ac.OAT = ptr(float64(r.i16(52)))
	ac.TAT = ptr(float64(r.i16(54)))

	if valid.has(valTAS) {
		ac.TAS = ptr(float64(r.u16(56)))
	}
	if valid.has(valIAS) {
		ac.IAS = ptr(float64(r.u16(58)))
	}
	ac.RC = ptr(int(r.u16(60)))

	if useRate {
		ac.MessageRate = ptr(float64(r.u16(62)) / 10)
	} else {
		ac.Messages = ptr(int(r.u16(62)))
	}

	if r[64] != 0 {
		ac.Category = ptr(strings.ToUpper(strconv.FormatUint(uint64(r[64]), 16)))
	}
	ac.NIC = ptr(int(r[65]))

	et := nibbles(r[67])
	ac.Emergency = ptr(EmergencyName(et.lo()))
	addrType := AddressTypeName(et.hi())
	source := SourceBucket(addrType)
	ac.Type = &addrType
	ac.Source = &source

	ver := nibbles(r[69])
	ac.SILType = ptr(SILTypeName(ver.lo()))
	ac.Version = ptr(ver.hi())
	rv := nibbles(r[70])
	ac.ADSRVersion = ptr(rv.lo())
	ac.TISBVersion = ptr(rv.hi())

	nac := nibbles(r[71])
	if valid.has(valNACP) {
		ac.NACP = ptr(nac.lo())
	}
	if valid.has(valNACV) {
		ac.NACV = ptr(nac.hi())
	}

	acc := accuracy(r[72])
	if valid.has(valSIL) {
		ac.SIL = ptr(acc.sil())
	}
	if valid.has(valGVA) {
		ac.GVA = ptr(acc.gva())
	}
	if valid.has(valSDA) {
		ac.SDA = ptr(acc.sda())
	}
	if valid.has(valNICA) {
		ac.NICA = ptr(acc.nicA())
	}
	if valid.has(valNICC) {
		ac.NICC = ptr(acc.nicC())
	}
	if valid.nicBaro() {
		ac.NICBaro = ptr(bit(valid, valNICBaroBit))
	}
	if valid.has(valAlert) {
		ac.Alert = ptr(bit(valid, valAlertBit))
	}
	if valid.has(valSPI) {
		ac.SPI = ptr(bit(valid, valSPIBit))
	}

	if valid.has(valFlight) {
		ac.Flight = ptr(r.cstring(78, 8))
	}
	ac.DBFlags = ptr(int(r.u16(86)))
	if t := r.cstring(88, 4); t != "" {
		ac.TypeCode = &t
	}
	if reg := r.cstring(92, 12); reg != "" {
		ac.Registration = &reg
	}

	ac.ReceiverCount = ptr(int(r[104]))
	ac.RSSI = ptr(proto.rssi(r[105]))
	ac.ExtraFlags = ptr(int(r[106]))
	ac.NoGPS = ptr(r[106]&1 != 0)

	return ac
}

// FormatHex renders a 32-bit address word. Bit 24 marks a non-ICAO
// address and is shown as a leading '~'.
func FormatHex(word uint32) string {
	hex := strconv.FormatUint(uint64(word&0xffffff), 16)
	if n := len(hex); n < 6 {
		hex = strings.Repeat("0", 6-n) + hex
	}
	if word&(1<<24) != 0 {
		return "~" + hex
	}
	return hex
}

// DecodeSquawk renders the packed squawk nibbles. A leading nibble above
// 9 is written as its decimal value, so 0xA123 gives "10123" and not
// "1123". readsb's own binCraft reader does the same; keep it matching.
func DecodeSquawk(raw uint16) string {
	s := strconv.FormatUint(uint64(raw), 16)
	if n := len(s); n < 4 {
		s = strings.Repeat("0", 4-n) + s
	}
	if s[0] > '9' {
		lead, _ := strconv.ParseUint(s[:1], 16, 8)
		return strconv.FormatUint(lead, 10) + s[1:]
	}
	return s
}

func ptr[T any](v T) *T { return &v }
