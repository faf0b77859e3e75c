package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONMap is a GORM-compatible JSON-valued column, used for the structured
// message content blob and the webhook envelope snapshot stored on
// WebhookLog, following the same Scan/Value pattern as the other
// GORM custom column types in this package.
type JSONMap map[string]interface{}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return errors.New("models: JSONMap scan source is not []byte or string")
		}
	}

	if len(bytes) == 0 {
		*m = JSONMap{}
		return nil
	}

	return json.Unmarshal(bytes, m)
}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	return json.Marshal(m)
}
