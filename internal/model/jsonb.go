package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// scanJSON decodes a JSONB column into dst. NULL leaves dst untouched.
func scanJSON(src any, dst any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dst)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}

// valueJSON encodes v as text; lib/pq would send []byte as bytea.
func valueJSON(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Attributes holds free-form customer fields used for segmentation.
type Attributes map[string]any

func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	return valueJSON(map[string]any(a))
}

func (a *Attributes) Scan(src any) error {
	m := map[string]any{}
	if err := scanJSON(src, &m); err != nil {
		return err
	}
	*a = m
	return nil
}

// Metadata is the vendor supplied payload attached to a receipt.
type Metadata map[string]any

func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return valueJSON(map[string]any(m))
}

func (m *Metadata) Scan(src any) error {
	if src == nil {
		*m = nil
		return nil
	}
	out := map[string]any{}
	if err := scanJSON(src, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// StatusCounts maps a message status to the number of logs in it.
type StatusCounts map[string]int

func (s StatusCounts) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	return valueJSON(map[string]int(s))
}

func (s *StatusCounts) Scan(src any) error {
	out := map[string]int{}
	if err := scanJSON(src, &out); err != nil {
		return err
	}
	*s = out
	return nil
}
