package domain

import "encoding/json"

// ChangePayload wraps a JSON snapshot of a record before or after a change.
// Callers unmarshal the raw bytes into typed structures as needed.
type ChangePayload struct {
	defined bool
	raw     json.RawMessage
}

// NewChangePayload builds a payload from raw JSON. The bytes are cloned so
// callers cannot mutate shared state. A nil slice yields a defined but empty
// payload; use UndefinedChangePayload for "not set".
func NewChangePayload(raw json.RawMessage) ChangePayload {
	p := ChangePayload{defined: true}
	if raw != nil {
		p.raw = cloneRaw(raw)
	}
	return p
}

// NewChangePayloadFromValue marshals a typed value into a ChangePayload.
func NewChangePayloadFromValue[T any](value T) (ChangePayload, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return ChangePayload{}, err
	}
	return NewChangePayload(raw), nil
}

// UndefinedChangePayload returns an uninitialized payload.
func UndefinedChangePayload() ChangePayload {
	return ChangePayload{}
}

// Defined reports whether the payload has been set.
func (p ChangePayload) Defined() bool { return p.defined }

// IsEmpty reports whether the payload carries no bytes.
func (p ChangePayload) IsEmpty() bool { return !p.defined || len(p.raw) == 0 }

// Raw returns a cloned copy of the underlying JSON, or nil when undefined or empty.
func (p ChangePayload) Raw() json.RawMessage {
	if p.IsEmpty() {
		return nil
	}
	return cloneRaw(p.raw)
}

// MarshalJSON encodes the payload as its raw JSON, or null when unset.
func (p ChangePayload) MarshalJSON() ([]byte, error) {
	if p.IsEmpty() {
		return []byte("null"), nil
	}
	return cloneRaw(p.raw), nil
}

// UnmarshalJSON restores a payload from raw JSON; null decodes as undefined.
func (p *ChangePayload) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = ChangePayload{}
		return nil
	}
	*p = NewChangePayload(data)
	return nil
}

// DecodePayload unmarshals a payload into a typed value. Decoding an
// undefined or empty payload yields the zero value.
func DecodePayload[T any](p ChangePayload) (T, error) {
	var out T
	raw := p.Raw()
	if raw == nil {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	cloned := make(json.RawMessage, len(raw))
	copy(cloned, raw)
	return cloned
}
