package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Encode serialises rec into the payload stored in both stores.
func Encode(rec Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s %s: %w", rec.RecordKind(), rec.RecordID(), err)
	}
	return data, nil
}

// Decode builds a record of kind from a stored payload.
func Decode(kind Kind, payload []byte) (Record, error) {
	spec, ok := Spec(kind)
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	rec := spec.New()
	if err := json.Unmarshal(payload, rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", kind, err)
	}
	return rec, nil
}

// Clone returns a deep copy of rec.
func Clone(rec Record) (Record, error) {
	data, err := Encode(rec)
	if err != nil {
		return nil, err
	}
	return Decode(rec.RecordKind(), data)
}

// Equal reports whether a and b serialise to the same payload.
func Equal(a, b Record) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.RecordKind() != b.RecordKind() {
		return false
	}
	da, errA := Encode(a)
	db, errB := Encode(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(da, db)
}

// ShallowMerge overlays remote onto local field by field. Every field the
// remote payload carries wins, including zero amounts; fields it omits, and
// unset strings and timestamps, keep the local value. The result carries the
// remote identifier.
func ShallowMerge(local, remote Record) (Record, error) {
	if local.RecordKind() != remote.RecordKind() {
		return nil, fmt.Errorf("cannot merge %s into %s", remote.RecordKind(), local.RecordKind())
	}
	base, err := toMap(local)
	if err != nil {
		return nil, err
	}
	over, err := toMap(remote)
	if err != nil {
		return nil, err
	}
	for k, v := range over {
		if unset(v) {
			continue
		}
		base[k] = v
	}
	base["id"] = remote.RecordID()

	data, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merged %s: %w", local.RecordKind(), err)
	}
	return Decode(local.RecordKind(), data)
}

func toMap(rec Record) (map[string]any, error) {
	data, err := Encode(rec)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode %s into map: %w", rec.RecordKind(), err)
	}
	return m, nil
}

var zeroTime = time.Time{}.Format(time.RFC3339Nano)

// unset reports whether a field present in a payload still holds no value.
// Optional fields use omitempty and are absent instead.
func unset(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == "" || x == zeroTime
	}
	return false
}
