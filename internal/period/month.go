package period

import (
	"errors"
	"fmt"
	"time"
)

// Month identifies one billing period as a calendar month, formatted YYYY-MM.
// It is stored as text and compared lexically, which preserves chronological
// ordering.
type Month string

var ErrInvalidMonth = errors.New("invalid_month")

const layout = "2006-01"

// Parse validates and normalizes a YYYY-MM string.
func Parse(value string) (Month, error) {
	t, err := time.Parse(layout, value)
	if err != nil {
		return "", ErrInvalidMonth
	}
	return Month(t.Format(layout)), nil
}

// Of returns the month containing the given instant.
func Of(at time.Time) Month {
	return Month(at.UTC().Format(layout))
}

// Start returns midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	t, err := time.Parse(layout, string(m))
	if err != nil {
		return time.Time{}
	}
	return t
}

// End returns the exclusive upper bound (start of the next month).
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, 0)
}

// Next returns the following month.
func (m Month) Next() Month {
	return Month(m.Start().AddDate(0, 1, 0).Format(layout))
}

func (m Month) String() string { return string(m) }

// Valid reports whether the month is well formed.
func (m Month) Valid() bool {
	_, err := time.Parse(layout, string(m))
	return err == nil
}

// DueDate computes the payment due date for a bill generated for this month:
// the configured number of days after the period closes.
func (m Month) DueDate(dueDays int) time.Time {
	if dueDays < 0 {
		dueDays = 0
	}
	return m.End().AddDate(0, 0, dueDays)
}

func (m Month) GoString() string { return fmt.Sprintf("period.Month(%q)", string(m)) }
