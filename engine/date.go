package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day (every availability entry is for exactly one date)
// =============================================================================

// BoundaryFormat is the date format at the session boundary: MM-DD-YYYY.
const BoundaryFormat = "01-02-2006"

// keyFormat is the storage and sort key form. Lexicographic order on keys
// equals chronological order.
const keyFormat = "2006-01-02"

// Date is a calendar day with no time-of-day component.
type Date struct {
	t time.Time
}

// NewDate builds a Date from calendar components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses the boundary MM-DD-YYYY form. Malformed input fails with
// ErrInvalidArgument.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(BoundaryFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: date %q is not MM-DD-YYYY", ErrInvalidArgument, s)
	}
	return Date{t: t}, nil
}

// ParseKey parses the storage key form, YYYY-MM-DD.
func ParseKey(s string) (Date, error) {
	t, err := time.Parse(keyFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: bad date key %q", ErrInvalidArgument, s)
	}
	return Date{t: t}, nil
}

// Key returns the YYYY-MM-DD storage key.
func (d Date) Key() string { return d.t.Format(keyFormat) }

// String returns the boundary MM-DD-YYYY form.
func (d Date) String() string { return d.t.Format(BoundaryFormat) }

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Equal reports whether two dates name the same calendar day.
func (d Date) Equal(other Date) bool { return d.Key() == other.Key() }

// Time returns the date at midnight UTC.
func (d Date) Time() time.Time { return d.t }
