package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissingID is returned by the ToX converters when an upstream record
// lacks its identity field.
var ErrMissingID = errors.New("record has no id")

// FlexString accepts a JSON string or number. Anything else decodes as empty.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*f = ""
			return nil
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		*f = ""
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// FlexInt accepts a JSON number, a numeric string or null.
type FlexInt struct {
	Value int
	Valid bool
}

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	*f = FlexInt{}
	s, ok := scalar(b)
	if !ok {
		return nil
	}
	if i, err := strconv.Atoi(s); err == nil {
		*f = FlexInt{Value: i, Valid: true}
		return nil
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		*f = FlexInt{Value: int(fl), Valid: true}
	}
	return nil
}

// Or returns the value, or def when it is missing.
func (f FlexInt) Or(def int) int {
	if !f.Valid {
		return def
	}
	return f.Value
}

// FlexFloat accepts a JSON number, a numeric string or null.
type FlexFloat struct {
	Value float64
	Valid bool
}

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	*f = FlexFloat{}
	s, ok := scalar(b)
	if !ok {
		return nil
	}
	if fl, err := strconv.ParseFloat(s, 64); err == nil {
		*f = FlexFloat{Value: fl, Valid: true}
	}
	return nil
}

// scalar returns the textual form of a JSON number or string literal.
func scalar(b []byte) (string, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return "", false
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	if b[0] == '{' || b[0] == '[' || b[0] == 't' || b[0] == 'f' {
		return "", false
	}
	return string(b), true
}

// Ref is an embedded {"id": ..., "name": ...} reference.
type Ref struct {
	ID       FlexString `json:"id"`
	Name     FlexString `json:"name"`
	FullName FlexString `json:"fullName"`
	Abbr     FlexString `json:"abbr"`
}

// UnmarshalJSON accepts either an object or a bare string, which is taken as
// the name.
func (r *Ref) UnmarshalJSON(b []byte) error {
	*r = Ref{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	if b[0] != '{' {
		var name FlexString
		_ = name.UnmarshalJSON(b)
		r.Name = name
		return nil
	}
	type plain Ref
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return nil
	}
	*r = Ref(p)
	return nil
}

// Label returns the most descriptive name available for the reference.
func (r *Ref) Label() string {
	if r == nil {
		return ""
	}
	switch {
	case r.FullName != "":
		return r.FullName.String()
	case r.Name != "":
		return r.Name.String()
	case r.Abbr != "":
		return r.Abbr.String()
	}
	return r.ID.String()
}

// RefID returns the reference id or empty when r is nil.
func (r *Ref) RefID() string {
	if r == nil {
		return ""
	}
	return r.ID.String()
}

// Decode converts a generic upstream record into a typed input struct.
func Decode(record map[string]any, dst any) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}

// firstNonEmpty returns the first non-empty value.
func firstNonEmpty(values ...FlexString) string {
	for _, v := range values {
		if v != "" {
			return v.String()
		}
	}
	return ""
}
