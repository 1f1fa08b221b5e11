package database

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
)

// Vector wraps a float64 embedding for storage in a vector column. It
// implements sql.Scanner and driver.Valuer using the text format
// "[1,2,3]", which is both the pgvector literal form and a plain JSON
// array, so the same type works against PostgreSQL vector columns and
// SQLite TEXT columns.
type Vector struct {
	floats []float64
}

// NewVector creates a Vector from a float64 slice. The input is copied so
// later mutations of the source slice have no effect.
func NewVector(floats []float64) Vector {
	cp := make([]float64, len(floats))
	copy(cp, floats)
	return Vector{floats: cp}
}

// Floats returns a copy of the underlying float64 slice. Returns nil if
// the vector was never initialized (e.g. scanned from NULL).
func (v Vector) Floats() []float64 {
	if v.floats == nil {
		return nil
	}
	cp := make([]float64, len(v.floats))
	copy(cp, v.floats)
	return cp
}

// Dimension returns the number of elements in the vector.
func (v Vector) Dimension() int {
	return len(v.floats)
}

// IsZero reports whether the vector holds no elements.
func (v Vector) IsZero() bool {
	return len(v.floats) == 0
}

// Scan implements sql.Scanner. It parses the "[1,2,3]" text format from
// either a string or []byte value.
func (v *Vector) Scan(value any) error {
	if value == nil {
		v.floats = nil
		return nil
	}

	var raw string
	switch val := value.(type) {
	case string:
		raw = val
	case []byte:
		raw = string(val)
	default:
		return fmt.Errorf("cannot scan %T into Vector", value)
	}

	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if raw == "" {
		v.floats = []float64{}
		return nil
	}

	floats := make([]float64, 0, strings.Count(raw, ",")+1)
	for i := 0; raw != ""; i++ {
		part, rest, _ := strings.Cut(raw, ",")
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return fmt.Errorf("parse element %d: %w", i, err)
		}
		floats = append(floats, f)
		raw = rest
	}

	v.floats = floats
	return nil
}

// Value implements driver.Valuer. It serializes the vector to the
// "[1,2,3]" text format.
func (v Vector) Value() (driver.Value, error) {
	return v.String(), nil
}

// String returns the vector literal "[1,2,3]".
func (v Vector) String() string {
	buf := make([]byte, 0, len(v.floats)*12+2)
	buf = append(buf, '[')
	for i, f := range v.floats {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendFloat(buf, f, 'f', -1, 64)
	}
	buf = append(buf, ']')
	return string(buf)
}
