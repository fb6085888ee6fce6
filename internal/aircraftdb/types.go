package aircraftdb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// TypeInfo describes an ICAO type designator
type TypeInfo struct {
	TypeLong    string `json:"type_long,omitempty"`
	Description string `json:"description,omitempty"`
	WTC         string `json:"wtc,omitempty"`
}

// ParseTypes decodes a type table. Entries are either
// [typeLong, description, wtc] arrays or {"desc", "wtc"} objects.
func ParseTypes(data []byte) (map[string]TypeInfo, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode type table: %w", err)
	}

	types := make(map[string]TypeInfo, len(raw))
	for code, val := range raw {
		var arr []any
		if err := json.Unmarshal(val, &arr); err == nil {
			get := func(i int) string {
				if i < len(arr) {
					return stringOf(arr[i])
				}
				return ""
			}
			types[strings.ToUpper(code)] = TypeInfo{TypeLong: get(0), Description: get(1), WTC: get(2)}
			continue
		}
		var obj struct {
			Desc string `json:"desc"`
			WTC  string `json:"wtc"`
		}
		if err := json.Unmarshal(val, &obj); err == nil {
			types[strings.ToUpper(code)] = TypeInfo{Description: obj.Desc, WTC: obj.WTC}
		}
	}
	return types, nil
}

// NormalizeTypeCode uppercases code and maps the "P8 ?" placeholder to P8
func NormalizeTypeCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "P8 ?" {
		return "P8"
	}
	return code
}

// TypeTable is the process-wide type designator table. It is loaded at
// most once; concurrent loaders share one request and a failed load may
// be retried.
type TypeTable struct {
	source Source
	flight singleflight.Group

	mu    sync.RWMutex
	types map[string]TypeInfo
}

func NewTypeTable(source Source) *TypeTable {
	return &TypeTable{source: source}
}

// Load fetches the table unless it is already present
func (t *TypeTable) Load(ctx context.Context) error {
	if t.Loaded() {
		return nil
	}
	_, err, _ := t.flight.Do("types", func() (any, error) {
		if t.Loaded() {
			return nil, nil
		}
		types, err := t.source.FetchTypes(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load type table: %w", err)
		}
		t.mu.Lock()
		t.types = types
		t.mu.Unlock()
		return nil, nil
	})
	return err
}

func (t *TypeTable) Loaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.types != nil
}

// Lookup returns the entry for code. It reports false before the table
// is loaded.
func (t *TypeTable) Lookup(code string) (TypeInfo, bool) {
	code = NormalizeTypeCode(code)
	if code == "" {
		return TypeInfo{}, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	info, ok := t.types[code]
	return info, ok
}
