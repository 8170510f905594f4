package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

type defaultState uint8

const (
	defaultNone defaultState = iota
	defaultNull
	defaultValue
)

// Default is a column default: absent, explicit NULL, or a literal value.
// The zero value is "no default clause".
type Default struct {
	state defaultState
	value string
}

// NoDefault returns the absent default.
func NoDefault() Default { return Default{} }

// NullDefault returns DEFAULT NULL.
func NullDefault() Default { return Default{state: defaultNull} }

// ValueDefault returns DEFAULT 'v'.
func ValueDefault(v string) Default { return Default{state: defaultValue, value: v} }

func (d Default) IsNone() bool  { return d.state == defaultNone }
func (d Default) IsNull() bool  { return d.state == defaultNull }
func (d Default) IsValue() bool { return d.state == defaultValue }

// IsZero reports whether the default is absent. It drives omitzero and
// yaml omitempty.
func (d Default) IsZero() bool { return d.state == defaultNone }

// Value returns the literal and whether one is set.
func (d Default) Value() (string, bool) {
	return d.value, d.state == defaultValue
}

// SQL renders the DEFAULT clause, or "" when absent.
func (d Default) SQL() string {
	switch d.state {
	case defaultNull:
		return "DEFAULT NULL"
	case defaultValue:
		return "DEFAULT " + QuoteString(d.value)
	}
	return ""
}

func (d Default) String() string {
	switch d.state {
	case defaultNull:
		return "NULL"
	case defaultValue:
		return QuoteString(d.value)
	}
	return "<none>"
}

// MarshalJSON encodes NULL as null and a value as a string.
func (d Default) MarshalJSON() ([]byte, error) {
	if d.state != defaultValue {
		return []byte("null"), nil
	}
	return json.Marshal(d.value)
}

// UnmarshalJSON is only invoked when the key is present, so null means
// DEFAULT NULL. Numbers and booleans are kept as their literal text.
func (d *Default) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = NullDefault()
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = ValueDefault(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*d = ValueDefault(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	if b {
		*d = ValueDefault("1")
	} else {
		*d = ValueDefault("0")
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Default) MarshalYAML() (any, error) {
	if d.state != defaultValue {
		return nil, nil
	}
	return d.value, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Default) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*d = NullDefault()
		return nil
	}
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("default must be a scalar, got %s at line %d", node.ShortTag(), node.Line)
	}
	*d = ValueDefault(node.Value)
	return nil
}
