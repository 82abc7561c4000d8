package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Labels is a string-to-string tag map stored in a JSONB column. The same
// type backs memory metadata.
type Labels map[string]string

// Value implements driver.Valuer for storing Labels as JSONB.
func (l Labels) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner for reading Labels from JSONB.
func (l *Labels) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type for Labels: %T", value)
	}
	return json.Unmarshal(data, l)
}

// Matches reports whether every selector entry is present in l with the
// same value. An empty selector matches everything.
func (l Labels) Matches(selector map[string]string) bool {
	for k, v := range selector {
		if got, ok := l[k]; !ok || got != v {
			return false
		}
	}
	return true
}

// Clone returns a copy of l. A nil map clones to nil.
func (l Labels) Clone() Labels {
	if l == nil {
		return nil
	}
	out := make(Labels, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Merge returns l with the entries of updates applied on top. Keys present
// in both take the updated value; no keys are removed.
func (l Labels) Merge(updates map[string]string) Labels {
	out := make(Labels, len(l)+len(updates))
	for k, v := range l {
		out[k] = v
	}
	for k, v := range updates {
		out[k] = v
	}
	return out
}
