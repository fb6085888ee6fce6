// Package aircraftdb resolves ICAO addresses to registration and type
// metadata using the tar1090 prefix-tree database.
package aircraftdb

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
)

var (
	// ErrNotFound means the database has no entry for the address
	ErrNotFound = errors.New("aircraft not found")
	// ErrInvalidKey is returned for keys that are not 1-6 hex digits
	ErrInvalidKey = errors.New("invalid database key")
)

// Record is one aircraft entry. The database stores it as
// [registration, type, description, wtc, typeLong, operator, year].
type Record struct {
	Registration string `json:"registration,omitempty"`
	TypeCode     string `json:"type,omitempty"`
	Description  string `json:"description,omitempty"`
	WTC          string `json:"wtc,omitempty"`
	TypeLong     string `json:"type_long,omitempty"`
	Operator     string `json:"operator,omitempty"`
	Year         string `json:"year,omitempty"`
}

// Empty reports whether the record carries no usable data
func (r Record) Empty() bool {
	return r == Record{}
}

// Node is one file of the prefix tree: leaf records keyed by the
// remainder of the address, plus the prefixes of child files.
type Node struct {
	Children []string
	Records  map[string]Record
}

// HasChild reports whether key names a child file of this node
func (n *Node) HasChild(key string) bool {
	return slices.Contains(n.Children, key)
}

// ParseNode decodes a prefix-tree file
func ParseNode(data []byte) (*Node, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode database node: %w", err)
	}

	node := &Node{Records: make(map[string]Record, len(raw))}
	for key, val := range raw {
		if key == "children" {
			if err := json.Unmarshal(val, &node.Children); err != nil {
				return nil, fmt.Errorf("failed to decode node children: %w", err)
			}
			continue
		}
		var fields []any
		if err := json.Unmarshal(val, &fields); err != nil {
			// Unknown non-array keys are ignored
			continue
		}
		node.Records[key] = recordFromArray(fields)
	}
	return node, nil
}

func recordFromArray(fields []any) Record {
	get := func(i int) string {
		if i >= len(fields) {
			return ""
		}
		return stringOf(fields[i])
	}
	return Record{
		Registration: get(0),
		TypeCode:     get(1),
		Description:  get(2),
		WTC:          get(3),
		TypeLong:     get(4),
		Operator:     get(5),
		Year:         get(6),
	}
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}
