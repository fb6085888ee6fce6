package adsb

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"time"
)

// ReceiverInfo is the receiver.json document published next to the
// aircraft feed
type ReceiverInfo struct {
	Refresh *FlexibleField `json:"refresh,omitempty"`
	History *FlexibleField `json:"history,omitempty"`
	Lat     *FlexibleField `json:"lat,omitempty"`
	Lon     *FlexibleField `json:"lon,omitempty"`
	Zstd    *FlexibleField `json:"zstd,omitempty"`

	BinCraft *FlexibleField `json:"binCraft,omitempty"`
	Globe    *FlexibleField `json:"globeIndexGrid,omitempty"`

	Version         *FlexibleField `json:"version,omitempty"`
	ReadsbVersion   *FlexibleField `json:"readsb_version,omitempty"`
	DecoderVersion  *FlexibleField `json:"decoderVersion,omitempty"`
	Dump1090Version *FlexibleField `json:"dump1090_version,omitempty"`

	Decoder    *FlexibleField `json:"decoder,omitempty"`
	Readsb     *FlexibleField `json:"readsb,omitempty"`
	Dump1090FA *FlexibleField `json:"dump1090fa,omitempty"`
	Dump1090Fa *FlexibleField `json:"dump1090_fa,omitempty"`
	Dump1090   *FlexibleField `json:"dump1090,omitempty"`
	Wingbits   *FlexibleField `json:"wingbits,omitempty"`
}

// ParseReceiverInfo decodes receiver.json
func ParseReceiverInfo(data []byte) (*ReceiverInfo, error) {
	var info ReceiverInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse receiver JSON: %w", err)
	}
	return &info, nil
}

// Position returns the receiver location when both coordinates parse
func (r *ReceiverInfo) Position() (lat, lon float64, ok bool) {
	if r == nil {
		return 0, 0, false
	}
	lat, okLat := r.Lat.Float64()
	lon, okLon := r.Lon.Float64()
	if !okLat || !okLon {
		return 0, 0, false
	}
	return lat, lon, true
}

// CompressionAdvertised reports whether the receiver serves zstd binCraft
func (r *ReceiverInfo) CompressionAdvertised() bool {
	return r != nil && r.Zstd.Truthy()
}

// ResolveRefreshInterval returns the receiver's polling interval rounded
// to whole milliseconds, or fallback when it is missing or not positive
func ResolveRefreshInterval(info *ReceiverInfo, fallback time.Duration) time.Duration {
	if info == nil {
		return fallback
	}
	ms, ok := info.Refresh.Float64()
	if !ok || ms <= 0 {
		return fallback
	}
	return time.Duration(math.Round(ms)) * time.Millisecond
}

// ReceiverMeta identifies the decoder behind the feed
type ReceiverMeta struct {
	Decoder        string `json:"decoder" msgpack:"decoder"`
	Version        string `json:"version" msgpack:"version"`
	Tar1090RepoURL string `json:"tar1090_repo_url" msgpack:"tar1090_repo_url"`
	DecoderRepoURL string `json:"decoder_repo_url,omitempty" msgpack:"decoder_repo_url,omitempty"`
}

const tar1090RepoURL = "https://github.com/wiedehopf/tar1090"

var (
	versionPattern = regexp.MustCompile(`\d+\.\d+\.\d+(?:\.\d+)?`)

	decoderRepos = map[string]string{
		"readsb":      "https://github.com/wiedehopf/readsb",
		"dump1090-fa": "https://github.com/flightaware/dump1090",
		"dump1090":    "https://github.com/antirez/dump1090",
		"wingbits":    "https://github.com/wingbits",
	}
)

// DefaultReceiverMeta is reported before receiver.json has been read
func DefaultReceiverMeta() ReceiverMeta {
	return ReceiverMeta{Decoder: "unknown", Version: "n/a", Tar1090RepoURL: tar1090RepoURL}
}

// DeriveReceiverMeta works out the decoder name and version
func DeriveReceiverMeta(info *ReceiverInfo) ReceiverMeta {
	meta := DefaultReceiverMeta()
	if info == nil {
		return meta
	}

	for _, f := range []*FlexibleField{info.Version, info.ReadsbVersion, info.DecoderVersion, info.Dump1090Version} {
		if s, ok := f.Str(); ok {
			if m := versionPattern.FindString(s); m != "" {
				meta.Version = m
			}
			break
		}
	}

	switch {
	case isString(info.Decoder):
		meta.Decoder, _ = info.Decoder.Str()
	case info.Readsb.Truthy():
		meta.Decoder = "readsb"
	case info.Dump1090FA.Truthy() || info.Dump1090Fa.Truthy():
		meta.Decoder = "dump1090-fa"
	case info.Dump1090.Truthy():
		meta.Decoder = "dump1090"
	case info.Wingbits.Truthy():
		meta.Decoder = "wingbits"
	}
	meta.DecoderRepoURL = decoderRepos[meta.Decoder]
	return meta
}

func isString(f *FlexibleField) bool {
	_, ok := f.Str()
	return ok
}
