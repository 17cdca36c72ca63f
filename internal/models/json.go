package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// JSON is a free-form object stored as jsonb.
type JSON map[string]interface{}

// Value implements the driver.Valuer interface
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface
func (j *JSON) Scan(value interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		*j = nil
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON source %T", value)
	}
	return json.Unmarshal(bytes, j)
}

// MarshalJSON returns the JSON encoding
func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return json.Marshal(map[string]interface{}(j))
}

// UnmarshalJSON sets the JSON encoding
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return errors.New("nil pointer")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*j = m
	return nil
}

// String returns the value at key when it is a string.
func (j JSON) String(key string) string {
	if j == nil {
		return ""
	}
	s, _ := j[key].(string)
	return s
}

// Clone returns a shallow copy.
func (j JSON) Clone() JSON {
	if j == nil {
		return nil
	}
	out := make(JSON, len(j))
	for k, v := range j {
		out[k] = v
	}
	return out
}
