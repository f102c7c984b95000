package ir

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value is a sealed interface over the row value types a merge-diff compares.
// Only Null, String, Int and Bool implement it. Floats are not representable;
// decimal columns travel as their String rendering.
type Value interface {
	rowValue()
}

// Null is SQL NULL. Null equals Null.
type Null struct{}

// String is a text value.
type String string

// Int is an integer value.
type Int int64

// Bool is a boolean value.
type Bool bool

func (Null) rowValue()   {}
func (String) rowValue() {}
func (Int) rowValue()    {}
func (Bool) rowValue()   {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Row is one record of a stream keyed by column name.
// A missing column reads as Null.
type Row map[string]Value

// Get returns the value of col, or Null when absent.
func (r Row) Get(col string) Value {
	if v, ok := r[col]; ok && v != nil {
		return v
	}
	return Null{}
}

// Equal reports whether a and b hold the same value. Null equals Null.
// Values of different types are never equal.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	return a == b
}

// Compare orders two values for key comparison.
// Null sorts first, then Bool, Int, String. Within a type the natural order applies.
func Compare(a, b Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch av := a.(type) {
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		default:
			return 1
		}
	case Int:
		return cmpInt(int64(av), int64(b.(Int)))
	case String:
		bv := b.(String)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	}
	return 0
}

func rank(v Value) int64 {
	switch v.(type) {
	case Bool:
		return 1
	case Int:
		return 2
	case String:
		return 3
	default:
		return 0
	}
}

func cmpInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// CompareKeys compares two rows on the given key columns in order.
func CompareKeys(a, b Row, keys []string) int {
	for _, k := range keys {
		if c := Compare(a.Get(k), b.Get(k)); c != 0 {
			return c
		}
	}
	return 0
}

// FormatValue renders v for logs and golden output.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case String:
		return strconv.Quote(string(x))
	case Int:
		return strconv.FormatInt(int64(x), 10)
	case Bool:
		return strconv.FormatBool(bool(x))
	default:
		return "null"
	}
}

// FromAny converts a decoded JSON or YAML scalar into a Value.
// Integral floats are accepted as Int; fractional floats are rejected.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(x), nil
	case int64:
		return Int(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", x)
		}
		return Int(int64(x)), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("non-integral number %v: use a string", x)
		}
		return Int(int64(x)), nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integral number %s: use a string", x)
		}
		return Int(n), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// RowFromMap converts a decoded mapping into a Row.
func RowFromMap(m map[string]any) (Row, error) {
	row := make(Row, len(m))
	for k, v := range m {
		val, err := FromAny(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", k, err)
		}
		row[k] = val
	}
	return row, nil
}
