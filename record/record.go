// Package record holds the document type shared by the store, the cache and
// the HTTP layer, plus the small value coercions they all agree on.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// IDField is the document field that carries the record identifier.
const IDField = "PassengerId"

var ErrInvalidID = errors.New("record: invalid identifier")

// Record is one stored document: field name -> scalar (string, number, bool or nil).
// The identifier lives inside the document under IDField.
type Record map[string]any

// ID returns the record identifier, if the document carries a usable one.
func (r Record) ID() (int64, bool) {
	v, ok := r[IDField]
	if !ok {
		return 0, false
	}
	id, err := ParseID(v)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Clone returns a shallow copy. Values are scalars, so this is a full copy.
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

// Normalize replaces float NaN values with nil in place and returns r.
// Stores and the HTTP layer only ever see native nulls.
func Normalize(r Record) Record {
	for k, v := range r {
		if IsNaN(v) {
			r[k] = nil
		}
	}
	return r
}

// IsNaN reports whether v is a floating point NaN.
func IsNaN(v any) bool {
	switch f := v.(type) {
	case float64:
		return math.IsNaN(f)
	case float32:
		return math.IsNaN(float64(f))
	}
	return false
}

// ParseID coerces v into a non-negative identifier. It accepts Go integers,
// integral floats, json.Number and decimal strings.
func ParseID(v any) (int64, error) {
	var id int64
	switch n := v.(type) {
	case int:
		id = int64(n)
	case int8:
		id = int64(n)
	case int16:
		id = int64(n)
	case int32:
		id = int64(n)
	case int64:
		id = n
	case uint8:
		id = int64(n)
	case uint16:
		id = int64(n)
	case uint32:
		id = int64(n)
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows", ErrInvalidID, n)
		}
		id = int64(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidID, n)
		}
		id = int64(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidID, n.String())
		}
		id = i
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidID, n)
		}
		id = i
	default:
		return 0, fmt.Errorf("%w: unsupported type %T", ErrInvalidID, v)
	}
	if id < 0 {
		return 0, fmt.Errorf("%w: %d is negative", ErrInvalidID, id)
	}
	return id, nil
}

// Float returns v as a float64 when it is numeric.
func Float(v any) (float64, bool) {
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
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		if math.IsNaN(float64(n)) {
			return 0, false
		}
		return float64(n), true
	case float64:
		if math.IsNaN(n) {
			return 0, false
		}
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Key is the string form of an identifier used by the cache layer.
func Key(id int64) string { return strconv.FormatInt(id, 10) }
