package adsb

import (
	"testing"
	"time"
)

func TestResolveRefreshInterval(t *testing.T) {
	tests := []struct {
		name string
		json string
		want time.Duration
	}{
		{"number", `{"refresh":1000}`, time.Second},
		{"string", `{"refresh":"250"}`, 250 * time.Millisecond},
		{"rounded", `{"refresh":333.6}`, 334 * time.Millisecond},
		{"zero", `{"refresh":0}`, 5 * time.Second},
		{"negative", `{"refresh":-1}`, 5 * time.Second},
		{"garbage", `{"refresh":"fast"}`, 5 * time.Second},
		{"missing", `{}`, 5 * time.Second},
		{"null", `{"refresh":null}`, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ParseReceiverInfo([]byte(tt.json))
			if err != nil {
				t.Fatalf("ParseReceiverInfo: %v", err)
			}
			if got := ResolveRefreshInterval(info, 5*time.Second); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeriveReceiverMeta(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		decoder string
		version string
		repo    string
	}{
		{"readsb flag", `{"readsb":true,"version":"wiedehopf git: 3.14.1612 (20240101)"}`, "readsb", "3.14.1612", "https://github.com/wiedehopf/readsb"},
		{"explicit decoder wins", `{"decoder":"custom","readsb":true}`, "custom", "n/a", ""},
		{"dump1090-fa", `{"dump1090_fa":1,"dump1090_version":"9.0"}`, "dump1090-fa", "n/a", "https://github.com/flightaware/dump1090"},
		{"dump1090", `{"dump1090":"yes","readsb_version":"1.2.3.4"}`, "dump1090", "1.2.3.4", "https://github.com/antirez/dump1090"},
		{"wingbits", `{"wingbits":true}`, "wingbits", "n/a", "https://github.com/wingbits"},
		{"first string version only", `{"version":5,"readsb_version":"2.0.1"}`, "unknown", "2.0.1", ""},
		{"unknown", `{}`, "unknown", "n/a", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ParseReceiverInfo([]byte(tt.json))
			if err != nil {
				t.Fatalf("ParseReceiverInfo: %v", err)
			}
			meta := DeriveReceiverMeta(info)
			if meta.Decoder != tt.decoder || meta.Version != tt.version || meta.DecoderRepoURL != tt.repo {
				t.Errorf("meta = %+v", meta)
			}
			if meta.Tar1090RepoURL != "https://github.com/wiedehopf/tar1090" {
				t.Errorf("tar1090 repo = %q", meta.Tar1090RepoURL)
			}
		})
	}
}

func TestReceiverPosition(t *testing.T) {
	info, err := ParseReceiverInfo([]byte(`{"lat":"45.5","lon":null}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, ok := info.Position(); ok {
		t.Error("position with missing lon")
	}

	info, _ = ParseReceiverInfo([]byte(`{"lat":"45.5","lon":"-73.6","zstd":0}`))
	if lat, lon, ok := info.Position(); !ok || lat != 45.5 || lon != -73.6 {
		t.Errorf("Position = %v %v %v", lat, lon, ok)
	}
	if info.CompressionAdvertised() {
		t.Error("zstd 0 treated as advertised")
	}
}
