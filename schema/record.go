package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is a JSON object held in the state cache. Settings and tab state
// travel as records so that partial patches merge without a typed schema.
type Record map[string]any

// Clone returns a shallow copy of r. Nested values are shared.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge returns a new record with patch shallow-merged over r.
// Nested objects in patch replace the previous value wholesale.
func (r Record) Merge(patch Record) Record {
	out := make(Record, len(r)+len(patch))
	for k, v := range r {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Decode converts the record into a typed value through JSON.
func (r Record) Decode(out any) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// Equal reports whether two records have the same JSON encoding.
func (r Record) Equal(other Record) bool {
	a, errA := json.Marshal(r)
	b, errB := json.Marshal(other)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// ToRecord converts a typed value into a record through JSON.
func ToRecord(v any) (Record, error) {
	if rec, ok := v.(Record); ok {
		return rec.Clone(), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("value is not an object: %w", err)
	}
	return rec, nil
}

// MustRecord is ToRecord for values known to encode as objects.
func MustRecord(v any) Record {
	rec, err := ToRecord(v)
	if err != nil {
		panic(err)
	}
	return rec
}
