package rotation

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Payload is a secret value in one of two shapes: a structured JSON object
// whose fields are addressable, or an opaque string that can only be
// replaced wholesale. Parsing picks the shape and Encode preserves it, so
// a plain-string secret never comes back JSON-wrapped.
type Payload struct {
	fields     map[string]interface{}
	raw        string
	structured bool
}

// ParsePayload classifies a raw secret value. Anything that is not a JSON
// object is opaque; arrays and bare scalars count as opaque too, since
// their parts cannot be addressed by field name.
func ParsePayload(raw string) *Payload {
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &fields); err == nil && fields != nil {
		return &Payload{fields: fields, structured: true}
	}
	return &Payload{raw: raw}
}

// NewStructuredPayload creates an empty structured payload.
func NewStructuredPayload() *Payload {
	return &Payload{fields: make(map[string]interface{}), structured: true}
}

// NewOpaquePayload creates an opaque payload carrying value as-is.
func NewOpaquePayload(value string) *Payload {
	return &Payload{raw: value}
}

// Structured reports whether fields are addressable.
func (p *Payload) Structured() bool {
	return p.structured
}

// Opaque returns the raw value of an opaque payload ("" when structured).
func (p *Payload) Opaque() string {
	return p.raw
}

// Encode serializes the payload back to its wire form.
func (p *Payload) Encode() (string, error) {
	if !p.structured {
		return p.raw, nil
	}
	b, err := json.Marshal(p.fields)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(b), nil
}

// Field returns the named field rendered as a string. Numeric and boolean
// JSON values are converted; absent fields, null values, and opaque
// payloads report ok=false.
func (p *Payload) Field(name string) (string, bool) {
	if !p.structured {
		return "", false
	}
	v, ok := p.fields[name]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case nil:
		return "", false
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

// FieldOr returns the named field or def when absent.
func (p *Payload) FieldOr(name, def string) string {
	if v, ok := p.Field(name); ok && v != "" {
		return v
	}
	return def
}

// Has reports whether a structured payload contains the field, regardless
// of its value.
func (p *Payload) Has(name string) bool {
	if !p.structured {
		return false
	}
	_, ok := p.fields[name]
	return ok
}

// SetField sets a string field on a structured payload. Other fields keep
// their original JSON types through re-serialization.
func (p *Payload) SetField(name, value string) error {
	if !p.structured {
		return fmt.Errorf("cannot set field %q on an opaque payload", name)
	}
	p.fields[name] = value
	return nil
}

// Clone returns a deep copy. Strategies build the pending payload on a
// clone so the current payload they were handed is never mutated.
func (p *Payload) Clone() *Payload {
	if !p.structured {
		return &Payload{raw: p.raw}
	}
	// A JSON round trip deep-copies nested containers.
	b, err := json.Marshal(p.fields)
	if err != nil {
		return NewStructuredPayload()
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(b, &fields); err != nil || fields == nil {
		return NewStructuredPayload()
	}
	return &Payload{fields: fields, structured: true}
}
