package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day (the ledger's key granularity)
// =============================================================================

// Date is a calendar day in UTC. The ledger, the rate calendar, and stay
// ranges all operate at day granularity; clock time only matters for
// cancellation deadlines, which use time.Time directly.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), t.Month(), t.Day())
}

func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return Date{Time: t}, nil
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return d.Before(other) || d.Equal(other) }
func (d Date) AfterOrEqual(other Date) bool  { return d.After(other) || d.Equal(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

func (d Date) IsZero() bool { return d.Time.IsZero() }

func (d Date) String() string { return d.Time.Format("2006-01-02") }

func DaysBetween(from, to Date) int { return int(to.Time.Sub(from.Time).Hours() / 24) }

// =============================================================================
// STAY RANGE - Half-open [CheckIn, CheckOut)
// =============================================================================

// StayRange is the half-open date interval [CheckIn, CheckOut). The checkout
// date itself is not occupied: a one-night stay checking in on the 10th
// occupies only the 10th. Every range the engine accepts is non-empty.
type StayRange struct {
	CheckIn  Date
	CheckOut Date
}

// NewStayRange validates CheckOut > CheckIn.
func NewStayRange(checkIn, checkOut Date) (StayRange, error) {
	if !checkOut.After(checkIn) {
		return StayRange{}, fmt.Errorf("%w: check-out %s must be after check-in %s",
			ErrInvalidStayRange, checkOut, checkIn)
	}
	return StayRange{CheckIn: checkIn, CheckOut: checkOut}, nil
}

// Nights returns the number of occupied nights.
func (r StayRange) Nights() int { return DaysBetween(r.CheckIn, r.CheckOut) }

// Dates returns every occupied date, check-in inclusive, check-out exclusive.
func (r StayRange) Dates() []Date {
	var dates []Date
	for d := r.CheckIn; d.Before(r.CheckOut); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// Contains reports whether the date is an occupied night of the stay.
func (r StayRange) Contains(d Date) bool {
	return d.AfterOrEqual(r.CheckIn) && d.Before(r.CheckOut)
}

// Overlaps reports whether two stays share at least one occupied night.
// Back-to-back stays (one checks out the day the other checks in) do not.
func (r StayRange) Overlaps(other StayRange) bool {
	return r.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(r.CheckOut)
}

func (r StayRange) String() string {
	return "[" + r.CheckIn.String() + ", " + r.CheckOut.String() + ")"
}
