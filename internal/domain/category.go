package domain

import "fmt"

// FloodCategory classifies a stage or flow value against a forecast point's
// category ladder. CategoryNull means "no data": the value being classified
// was missing, which is distinct from a present value below minor flood.
type FloodCategory int

const (
	CategoryNull     FloodCategory = -1
	CategoryNoFlood  FloodCategory = 0
	CategoryMinor    FloodCategory = 1
	CategoryModerate FloodCategory = 2
	CategoryMajor    FloodCategory = 3
	CategoryRecord   FloodCategory = 4
)

// categoryEpsilon absorbs floating round-off introduced upstream: a value
// within 1e-4 of a rung is treated as having reached it.
const categoryEpsilon = 1e-4

func (c FloodCategory) String() string {
	switch c {
	case CategoryNull:
		return "null"
	case CategoryNoFlood:
		return "no_flood"
	case CategoryMinor:
		return "minor"
	case CategoryModerate:
		return "moderate"
	case CategoryMajor:
		return "major"
	case CategoryRecord:
		return "record"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// SeverityCode maps a category onto the VTEC flood severity field.
// Record flooding carries the same severity code as major; "U" means the
// severity is not yet known.
func (c FloodCategory) SeverityCode() string {
	switch c {
	case CategoryNull:
		return "U"
	case CategoryNoFlood:
		return "0"
	case CategoryMinor:
		return "1"
	case CategoryModerate:
		return "2"
	case CategoryMajor, CategoryRecord:
		return "3"
	default:
		return "U"
	}
}

// CategoryLadder is the ordered flood-category threshold ladder
// [unused, minor, moderate, major, record]. Individual rungs may be absent.
type CategoryLadder [5]Value

// Validate checks that the present rungs are non-decreasing. A violation is a
// data-quality problem for the caller to log; the ladder stays usable.
func (l CategoryLadder) Validate() error {
	prev := Value{}
	for i := CategoryMinor; i <= CategoryRecord; i++ {
		rung := l[i]
		if !rung.Valid {
			continue
		}
		if prev.Valid && rung.Float64 < prev.Float64 {
			return fmt.Errorf("category ladder not non-decreasing: %s rung %.2f below %.2f",
				i, rung.Float64, prev.Float64)
		}
		prev = rung
	}
	return nil
}

// Category returns the highest rung the value reaches, or CategoryNull when
// the value is missing. Absent rungs are skipped, so a ladder with only a
// minor threshold still classifies minor flooding.
func (l CategoryLadder) Category(v Value) FloodCategory {
	if !v.Valid {
		return CategoryNull
	}
	cat := CategoryNoFlood
	for i := CategoryMinor; i <= CategoryRecord; i++ {
		rung := l[i]
		if !rung.Valid {
			continue
		}
		if v.Float64 >= rung.Float64-categoryEpsilon {
			cat = i
		}
	}
	return cat
}
