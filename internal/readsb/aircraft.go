package readsb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Altitude is a barometric altitude which may be the "ground" sentinel
type Altitude struct {
	Ground bool
	Feet   float64
}

// GroundAltitude returns the on-ground sentinel
func GroundAltitude() Altitude {
	return Altitude{Ground: true}
}

// FeetAltitude returns a numeric altitude
func FeetAltitude(ft float64) Altitude {
	return Altitude{Feet: ft}
}

// Value returns the numeric altitude, zero when on ground
func (a Altitude) Value() float64 {
	if a.Ground {
		return 0
	}
	return a.Feet
}

func (a Altitude) String() string {
	if a.Ground {
		return "ground"
	}
	return strconv.FormatFloat(a.Feet, 'f', -1, 64)
}

// MarshalJSON renders "ground" or a number, matching readsb
func (a Altitude) MarshalJSON() ([]byte, error) {
	if a.Ground {
		return []byte(`"ground"`), nil
	}
	return json.Marshal(a.Feet)
}

// EncodeMsgpack renders the same values as MarshalJSON
func (a Altitude) EncodeMsgpack(enc *msgpack.Encoder) error {
	if a.Ground {
		return enc.EncodeString("ground")
	}
	return enc.EncodeFloat64(a.Feet)
}

// UnmarshalJSON accepts "ground", a number or a numeric string
func (a *Altitude) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.EqualFold(s, "ground") {
			*a = GroundAltitude()
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid altitude %q", s)
		}
		*a = FeetAltitude(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid altitude: %w", err)
	}
	*a = FeetAltitude(f)
	return nil
}

// Aircraft is one per-aircraft field set from a snapshot. A nil field was
// not present in the update and must leave the merged entity untouched.
type Aircraft struct {
	Hex string `json:"hex"`

	Type   *string `json:"type,omitempty"`   // Address type name
	Source *string `json:"source,omitempty"` // Derived source bucket
	Flight *string `json:"flight,omitempty"`

	Registration *string `json:"r,omitempty"`
	TypeCode     *string `json:"t,omitempty"`
	Desc         *string `json:"desc,omitempty"`
	OwnOp        *string `json:"ownOp,omitempty"`
	Year         *string `json:"year,omitempty"`
	DBFlags      *int    `json:"dbFlags,omitempty"`

	AltBaro     *Altitude `json:"alt_baro,omitempty"`
	AltGeom     *float64  `json:"alt_geom,omitempty"`
	GS          *float64  `json:"gs,omitempty"`
	IAS         *float64  `json:"ias,omitempty"`
	TAS         *float64  `json:"tas,omitempty"`
	Mach        *float64  `json:"mach,omitempty"`
	Track       *float64  `json:"track,omitempty"`
	CalcTrack   *float64  `json:"calc_track,omitempty"`
	TrackRate   *float64  `json:"track_rate,omitempty"`
	Roll        *float64  `json:"roll,omitempty"`
	MagHeading  *float64  `json:"mag_heading,omitempty"`
	TrueHeading *float64  `json:"true_heading,omitempty"`
	BaroRate    *float64  `json:"baro_rate,omitempty"`
	GeomRate    *float64  `json:"geom_rate,omitempty"`

	WD  *float64 `json:"wd,omitempty"`
	WS  *float64 `json:"ws,omitempty"`
	OAT *float64 `json:"oat,omitempty"`
	TAT *float64 `json:"tat,omitempty"`

	Squawk    *string `json:"squawk,omitempty"`
	Emergency *string `json:"emergency,omitempty"`
	Category  *string `json:"category,omitempty"`

	NavQNH         *float64 `json:"nav_qnh,omitempty"`
	NavAltitudeMCP *float64 `json:"nav_altitude_mcp,omitempty"`
	NavAltitudeFMS *float64 `json:"nav_altitude_fms,omitempty"`
	NavHeading     *float64 `json:"nav_heading,omitempty"`
	NavModes       []string `json:"nav_modes,omitempty"`
	NavAltitudeSrc *int     `json:"nav_altitude_src,omitempty"`

	Lat     *float64 `json:"lat,omitempty"`
	Lon     *float64 `json:"lon,omitempty"`
	Seen    *float64 `json:"seen,omitempty"`
	SeenPos *float64 `json:"seen_pos,omitempty"`

	AirGround   *int `json:"airground,omitempty"`
	NIC         *int `json:"nic,omitempty"`
	RC          *int `json:"rc,omitempty"`
	Version     *int `json:"version,omitempty"`
	ADSRVersion *int `json:"adsr_version,omitempty"`
	TISBVersion *int `json:"tisb_version,omitempty"`
	NICBaro     *int `json:"nic_baro,omitempty"`
	NACP        *int `json:"nac_p,omitempty"`
	NACV        *int `json:"nac_v,omitempty"`
	SIL         *int `json:"sil,omitempty"`
	GVA         *int `json:"gva,omitempty"`
	SDA         *int `json:"sda,omitempty"`
	NICA        *int `json:"nic_a,omitempty"`
	NICC        *int `json:"nic_c,omitempty"`
	Alert       *int `json:"alert,omitempty"`
	SPI         *int `json:"spi,omitempty"`

	SILType *string `json:"sil_type,omitempty"`

	MLAT []string `json:"mlat,omitempty"`
	TISB []string `json:"tisb,omitempty"`

	Messages      *int     `json:"messages,omitempty"`
	MessageRate   *float64 `json:"messageRate,omitempty"`
	RSSI          *float64 `json:"rssi,omitempty"`
	ReceiverCount *int     `json:"receiverCount,omitempty"`
	ExtraFlags    *int     `json:"extraFlags,omitempty"`
	NoGPS         *bool    `json:"nogps,omitempty"`
}

// Normalize lower-cases the address and fills the source bucket from the
// address type when the feed did not provide one.
func (a *Aircraft) Normalize() {
	a.Hex = strings.ToLower(strings.TrimSpace(a.Hex))
	if a.Source == nil && a.Type != nil {
		src := SourceBucket(*a.Type)
		a.Source = &src
	}
}

// HasPosition reports whether the field set carries a position
func (a *Aircraft) HasPosition() bool {
	return a.Lat != nil && a.Lon != nil
}

// Snapshot is a decoded live frame
type Snapshot struct {
	Now             float64    `json:"now"`
	Messages        int64      `json:"messages"`
	MessageRate     float64    `json:"messageRate,omitempty"`
	AircraftWithPos int        `json:"global_ac_count_withpos,omitempty"`
	GlobeIndex      int        `json:"globeIndex,omitempty"`
	South           int        `json:"south,omitempty"`
	West            int        `json:"west,omitempty"`
	North           int        `json:"north,omitempty"`
	East            int        `json:"east,omitempty"`
	ReceiverLat     float64    `json:"receiver_lat,omitempty"`
	ReceiverLon     float64    `json:"receiver_lon,omitempty"`
	Version         uint32     `json:"binCraftVersion,omitempty"`
	Flags           uint32     `json:"flags,omitempty"`
	Aircraft        []Aircraft `json:"aircraft"`
}

// DecodeJSON parses an aircraft.json document
func DecodeJSON(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode aircraft JSON: %w", err)
	}
	for i := range snap.Aircraft {
		snap.Aircraft[i].Normalize()
	}
	return &snap, nil
}
