package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

type LogicType string

const (
	LogicAND LogicType = "AND"
	LogicOR  LogicType = "OR"
)

// Condition operators.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpStartsWith  = "starts_with"
	OpEndsWith    = "ends_with"
)

// Value types a condition can coerce its operands to. Anything else compares as strings.
const (
	ValueTypeNumber = "number"
	ValueTypeDate   = "date"
	ValueTypeString = "string"
)

// IsKnownOperator reports whether op is one of the supported condition operators.
func IsKnownOperator(op string) bool {
	switch op {
	case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan,
		OpContains, OpNotContains, OpStartsWith, OpEndsWith:
		return true
	}
	return false
}

type Condition struct {
	Field     string `json:"field"`
	Operator  string `json:"operator"`
	Value     any    `json:"value"`
	ValueType string `json:"type,omitempty"`
}

// UnmarshalJSON accepts both "type" and "valueType" for the coercion type.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Field     string `json:"field"`
		Operator  string `json:"operator"`
		Value     any    `json:"value"`
		Type      string `json:"type"`
		ValueType string `json:"valueType"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Field = raw.Field
	c.Operator = raw.Operator
	c.Value = raw.Value
	c.ValueType = raw.Type
	if c.ValueType == "" {
		c.ValueType = raw.ValueType
	}
	return nil
}

type Conditions []Condition

func (c Conditions) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	return valueJSON([]Condition(c))
}

func (c *Conditions) Scan(src any) error {
	out := []Condition{}
	if err := scanJSON(src, &out); err != nil {
		return err
	}
	*c = out
	return nil
}

type SegmentRule struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	Name      string     `db:"name" json:"name"`
	LogicType LogicType  `db:"logic_type" json:"logicType"`
	Rules     Conditions `db:"rules" json:"rules"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}
