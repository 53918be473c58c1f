package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	syncErrors "github.com/c0deZ3R0/go-listing-sync/errors"
)

// VersionField is the reserved snapshot key holding the optimistic version counter.
const VersionField = "version"

// Snapshot is a point-in-time field→value view of one entity from one source.
// Values are JSON-like: scalars, []any, map[string]any. A nil Snapshot is empty.
type Snapshot map[string]any

// Get returns the value for field and whether it is present and non-nil.
func (s Snapshot) Get(field string) (any, bool) {
	v, ok := s[field]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Version returns the snapshot's version. ok is false when no version is
// present; err is non-nil when a version is present but is not an integer.
func (s Snapshot) Version() (v int64, ok bool, err error) {
	raw, present := s.Get(VersionField)
	if !present {
		return 0, false, nil
	}
	v, err = toInt64(raw)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// Validate checks the reserved fields of the snapshot.
func (s Snapshot) Validate() error {
	if _, _, err := s.Version(); err != nil {
		return syncErrors.NewValidationError(syncErrors.OpDetect, err).WithMetadata("field", VersionField)
	}
	return nil
}

// Clone returns a shallow copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// SnapshotFrom converts a decoded document into a Snapshot. Anything other
// than a string-keyed map (or nil) is a validation failure.
func SnapshotFrom(v any) (Snapshot, error) {
	switch m := v.(type) {
	case nil:
		return Snapshot{}, nil
	case Snapshot:
		return m, nil
	case map[string]any:
		return Snapshot(m), nil
	default:
		return nil, syncErrors.NewValidationError(syncErrors.OpDetect,
			fmt.Errorf("snapshot must be an object, got %T", v))
	}
}

// ParseSnapshotJSON decodes a JSON object into a validated Snapshot.
// Numbers are kept as json.Number so integer versions survive intact.
func ParseSnapshotJSON(data []byte) (Snapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, syncErrors.NewValidationError(syncErrors.OpDetect, fmt.Errorf("decode snapshot: %w", err))
	}
	snap, err := SnapshotFrom(doc)
	if err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return uintToInt64(uint64(n))
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return uintToInt64(n)
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("version %q is not an integer", n.String())
		}
		return floatToInt64(f)
	default:
		return 0, fmt.Errorf("version must be an integer, got %T", v)
	}
}

func uintToInt64(u uint64) (int64, error) {
	if u > math.MaxInt64 {
		return 0, fmt.Errorf("version %d overflows int64", u)
	}
	return int64(u), nil
}

// floatToInt64 accepts floats with no fractional part, which is how generic
// JSON decoders hand over integers.
func floatToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("version %v is not an integer", f)
	}
	return int64(f), nil
}

// ValuesEqual reports deep equality of two snapshot values. Numbers compare
// by value regardless of their Go representation, so 100, int64(100),
// 100.0 and json.Number("100") are all equal. Two integral values compare
// exactly; float comparison is used only when one side has a fraction.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if an, am, ok := toInteger(a); ok {
		if bn, bm, ok := toInteger(b); ok {
			return an == bn && am == bm
		}
	}
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}

	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	switch av.Kind() {
	case reflect.Slice, reflect.Array:
		if bv.Kind() != reflect.Slice && bv.Kind() != reflect.Array {
			return false
		}
		if av.Len() != bv.Len() {
			return false
		}
		for i := 0; i < av.Len(); i++ {
			if !ValuesEqual(av.Index(i).Interface(), bv.Index(i).Interface()) {
				return false
			}
		}
		return true
	case reflect.Map:
		if bv.Kind() != reflect.Map || av.Len() != bv.Len() || av.Type().Key() != bv.Type().Key() {
			return false
		}
		iter := av.MapRange()
		for iter.Next() {
			other := bv.MapIndex(iter.Key())
			if !other.IsValid() || !ValuesEqual(iter.Value().Interface(), other.Interface()) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// toInteger returns sign and magnitude of an integral numeric value.
// Zero is never negative.
func toInteger(v any) (neg bool, mag uint64, ok bool) {
	switch n := v.(type) {
	case int:
		return fromInt64(int64(n))
	case int8:
		return fromInt64(int64(n))
	case int16:
		return fromInt64(int64(n))
	case int32:
		return fromInt64(int64(n))
	case int64:
		return fromInt64(n)
	case uint:
		return false, uint64(n), true
	case uint8:
		return false, uint64(n), true
	case uint16:
		return false, uint64(n), true
	case uint32:
		return false, uint64(n), true
	case uint64:
		return false, n, true
	case float32:
		return fromFloat(float64(n))
	case float64:
		return fromFloat(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return fromInt64(i)
		}
		if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
			return false, u, true
		}
	}
	return false, 0, false
}

func fromInt64(i int64) (bool, uint64, bool) {
	if i < 0 {
		return true, uint64(-(i + 1)) + 1, true
	}
	return false, uint64(i), true
}

// fromFloat accepts floats with no fractional part inside the int64 range.
func fromFloat(f float64) (bool, uint64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return false, 0, false
	}
	return fromInt64(int64(f))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
