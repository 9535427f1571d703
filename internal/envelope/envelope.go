// Package envelope flattens the wrapped list payloads returned by the
// Synergy API into plain records.
package envelope

import (
	"encoding/json"
)

// Record is a single upstream entity after unwrapping.
type Record map[string]any

// Page is one response of a paged endpoint. Entries counts every entry the
// upstream sent, dropped ones included.
type Page struct {
	Records []Record
	Entries int
}

// Full reports whether the upstream filled the requested take.
func (p Page) Full(take int) bool {
	return take > 0 && p.Entries >= take
}

// Unwrap decodes raw JSON and returns its records in upstream order together
// with the number of entries that were dropped because they were not objects.
// Accepted shapes:
//
//	{"data": [{"data": {...}}, ...]}
//	{"data": [{...}, ...]}
//	{"items": [...]}
//	[...]
//	{"data": {"data": [...]}}
//
// Undecodable input yields no records and one dropped entry.
func Unwrap(raw []byte) ([]Record, int) {
	if len(raw) == 0 {
		return nil, 0
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, 1
	}
	return UnwrapValue(payload)
}

// UnwrapValue is Unwrap for an already decoded payload.
func UnwrapValue(payload any) ([]Record, int) {
	list, ok := listOf(payload)
	if !ok {
		if payload == nil {
			return nil, 0
		}
		return nil, 1
	}

	records := make([]Record, 0, len(list))
	dropped := 0
	for _, item := range list {
		rec, ok := entry(item)
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}
	return records, dropped
}

// listOf locates the entry list inside a payload.
func listOf(payload any) ([]any, bool) {
	switch v := payload.(type) {
	case []any:
		return v, true
	case map[string]any:
		if data, ok := v["data"]; ok {
			switch d := data.(type) {
			case []any:
				return d, true
			case map[string]any:
				// nested pagination wrapper
				if inner, ok := d["data"].([]any); ok {
					return inner, true
				}
				if inner, ok := d["items"].([]any); ok {
					return inner, true
				}
				return nil, false
			case nil:
				return []any{}, true
			}
			return nil, false
		}
		if items, ok := v["items"].([]any); ok {
			return items, true
		}
	}
	return nil, false
}

// entry unwraps one list element, following a single inner "data" object.
func entry(item any) (Record, bool) {
	m, ok := item.(map[string]any)
	if !ok {
		return nil, false
	}
	if inner, ok := m["data"]; ok {
		innerMap, ok := inner.(map[string]any)
		if !ok {
			return nil, false
		}
		return Record(innerMap), true
	}
	return Record(m), true
}
