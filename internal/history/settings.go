package history

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Settings describes a heatmap request
type Settings struct {
	Enabled      bool      `json:"enabled"`
	Real         bool      `json:"real"`
	Max          int       `json:"max"`
	Duration     float64   `json:"duration"` // hours
	End          time.Time `json:"end"`
	Radius       float64   `json:"radius"`
	Alpha        *float64  `json:"alpha,omitempty"`
	Blur         float64   `json:"blur,omitempty"`
	Weight       float64   `json:"weight,omitempty"`
	ManualRedraw bool      `json:"manual_redraw"`
	Lines        bool      `json:"lines"`
	Filters      bool      `json:"filters"`
}

// DeriveSettings reads the tar1090 heatmap parameters. The "heatmap"
// parameter, when numeric and positive, sets the point cap; "realHeat"
// switches to the real heat defaults.
func DeriveSettings(params url.Values, now time.Time) Settings {
	_, hasHeatmap := params["heatmap"]
	realHeat := flag(params, "realHeat")
	if !hasHeatmap && !realHeat {
		return Settings{}
	}

	s := Settings{
		Enabled:      true,
		Max:          32000,
		Duration:     24,
		End:          now,
		Radius:       2.5,
		ManualRedraw: flag(params, "heatManualRedraw"),
		Lines:        flag(params, "heatLines"),
		Filters:      flag(params, "heatfilters") || flag(params, "heatFilters"),
	}

	if v, ok := number(params, "heatDuration"); ok {
		s.Duration = max(0.5, v)
	}
	if v, ok := number(params, "heatEnd"); ok {
		s.End = now.Add(-time.Duration(v * float64(time.Hour)))
	}
	if v, ok := number(params, "heatAlpha"); ok {
		s.Alpha = &v
	}

	if realHeat {
		s.Real = true
		s.Max = 50000
		s.Radius = 1.5
		s.Blur = 4
		s.Weight = 0.25
		if v, ok := number(params, "heatBlur"); ok {
			s.Blur = v
		}
		if v, ok := number(params, "heatWeight"); ok {
			s.Weight = v
		}
	}

	if v, ok := number(params, "heatRadius"); ok {
		s.Radius = v
	}
	if v, ok := number(params, "heatmap"); ok && int(v) > 0 {
		s.Max = int(v)
	}
	return s
}

// flag treats a present parameter as true unless it reads as false
func flag(params url.Values, key string) bool {
	vals, ok := params[key]
	if !ok {
		return false
	}
	if len(vals) == 0 {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(vals[0])) {
	case "0", "false", "no", "off":
		return false
	}
	return true
}

func number(params url.Values, key string) (float64, bool) {
	raw := strings.TrimSpace(params.Get(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
