package rates

import (
	"fmt"

	"github.com/warp/booking-engine/engine"
)

// =============================================================================
// RESTRICTIONS - Tagged rule variants
// =============================================================================

// RestrictionKind enumerates the closed set of rate restrictions. They are a
// tagged variant evaluated in one place (Calendar.checkRestrictions), not
// ad hoc booleans scattered across the booking path.
type RestrictionKind string

const (
	// MinStay requires the stay to span at least N nights; enforced by the
	// calendar entry on the arrival date.
	MinStay RestrictionKind = "min_stay"

	// ClosedToArrival forbids a stay from STARTING on the date. Stays
	// passing through the date are fine.
	ClosedToArrival RestrictionKind = "closed_to_arrival"

	// ClosedToDeparture forbids a stay from ENDING on the date.
	ClosedToDeparture RestrictionKind = "closed_to_departure"
)

// Restriction is one violated (or configured) rule.
type Restriction struct {
	Kind RestrictionKind

	// MinNights is set only for MinStay.
	MinNights int
}

// Describe renders the guest-facing message for a violation. Callers must
// surface this text, never internal error codes.
func (r Restriction) Describe() string {
	switch r.Kind {
	case MinStay:
		return fmt.Sprintf("minimum stay of %d nights required", r.MinNights)
	case ClosedToArrival:
		return "arrival is not possible on the selected check-in date"
	case ClosedToDeparture:
		return "departure is not possible on the selected check-out date"
	default:
		return string(r.Kind)
	}
}

// RestrictionViolationError reports which rule a stay violated and on which
// boundary date.
type RestrictionViolationError struct {
	UnitID      engine.UnitID
	Date        engine.Date
	Restriction Restriction
}

func (e *RestrictionViolationError) Error() string {
	return fmt.Sprintf("%s (unit %s, date %s)", e.Restriction.Describe(), e.UnitID, e.Date)
}

func (e *RestrictionViolationError) Unwrap() error { return engine.ErrRestrictionViolated }
