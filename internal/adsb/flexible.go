package adsb

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// FlexibleField can hold a string, a number or a boolean. receiver.json
// producers disagree on the JSON type of most fields.
type FlexibleField struct {
	value any
}

// NewFlexibleField wraps v (string, float64 or bool)
func NewFlexibleField(v any) *FlexibleField {
	return &FlexibleField{value: v}
}

// UnmarshalJSON implements custom JSON unmarshaling for FlexibleField.
// Arrays and objects are kept as absent rather than failing the document.
func (f *FlexibleField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		f.value = num
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		f.value = str
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.value = b
		return nil
	}

	f.value = nil
	return nil
}

// MarshalJSON writes the held value back out
func (f FlexibleField) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.value)
}

// Float64 returns the value as a finite number. Strings are parsed.
func (f *FlexibleField) Float64() (float64, bool) {
	if f == nil {
		return 0, false
	}
	var v float64
	switch t := f.value.(type) {
	case float64:
		v = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		v = parsed
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Str returns the value only when it was a JSON string
func (f *FlexibleField) Str() (string, bool) {
	if f == nil {
		return "", false
	}
	s, ok := f.value.(string)
	return s, ok
}

// String returns the value as a string
func (f *FlexibleField) String() string {
	if f == nil {
		return ""
	}
	switch v := f.value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Truthy reports a set flag: true, a non-zero number or a non-empty string
func (f *FlexibleField) Truthy() bool {
	if f == nil {
		return false
	}
	switch v := f.value.(type) {
	case float64:
		return v != 0 && !math.IsNaN(v)
	case string:
		return v != ""
	case bool:
		return v
	default:
		return false
	}
}
