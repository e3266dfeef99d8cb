package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	domain "github.com/fluxionhq/fluxion/pkg/models"
)

// JSONBMap stores a generic object in a JSONB column.
type JSONBMap map[string]interface{}

// Value implements driver.Valuer.
func (j JSONBMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	data, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner.
func (j *JSONBMap) Scan(value interface{}) error {
	return scanJSON(value, j)
}

// NodeList stores workflow nodes in a JSONB column.
type NodeList []*domain.Node

func (l NodeList) Value() (driver.Value, error)  { return valueJSON(l) }
func (l *NodeList) Scan(value interface{}) error { return scanJSON(value, l) }

// EdgeList stores workflow edges in a JSONB column.
type EdgeList []*domain.Edge

func (l EdgeList) Value() (driver.Value, error)  { return valueJSON(l) }
func (l *EdgeList) Scan(value interface{}) error { return scanJSON(value, l) }

// NodeExecutionList stores persisted steps in a JSONB column.
type NodeExecutionList []domain.NodeExecution

func (l NodeExecutionList) Value() (driver.Value, error)  { return valueJSON(l) }
func (l *NodeExecutionList) Scan(value interface{}) error { return scanJSON(value, l) }

// MetricsJSON stores aggregate execution metrics in a JSONB column.
type MetricsJSON domain.ExecutionMetrics

func (m MetricsJSON) Value() (driver.Value, error)  { return valueJSON(m) }
func (m *MetricsJSON) Scan(value interface{}) error { return scanJSON(value, m) }

func valueJSON(v interface{}) (driver.Value, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func scanJSON(value, dest interface{}) error {
	if value == nil {
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported JSONB source type")
	}

	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}
