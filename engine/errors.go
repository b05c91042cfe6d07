/*
errors.go - Centralized error types for the booking engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages (rates, booking) add their own structured errors but
  wrap the sentinels defined here.

ERROR CATEGORIES:
  1. Business outcomes  - No availability, invalid booking state. Expected,
                          surfaced to the caller as typed results.
  2. Configuration      - Missing rates/defaults. Operator error, not guest
                          facing.
  3. Infrastructure     - Store failures, optimistic-concurrency conflicts.

USAGE:
  Callers classify rather than string-match:

    if engine.IsClientError(err) {
        // 4xx, show the error's message to the guest
    }

SEE ALSO:
  - ledger.go: Returns NoAvailabilityError
  - booking/coordinator.go: Returns InvalidStateError
  - api/handlers.go: Maps classes to HTTP status codes
*/
package engine

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnitNotFound is returned when a referenced inventory unit does not
	// exist or has been deactivated.
	ErrUnitNotFound = errors.New("inventory unit not found")

	// ErrBookingNotFound is returned when a referenced booking does not exist.
	ErrBookingNotFound = errors.New("booking not found")

	// ErrNoAvailability is returned when capacity is exhausted for one or
	// more dates in the requested range. This is an expected business
	// outcome, not a fault.
	ErrNoAvailability = errors.New("no availability")

	// ErrInvalidState is returned when an operation is attempted on a
	// booking whose current status forbids it.
	ErrInvalidState = errors.New("invalid booking state")

	// ErrRateNotConfigured is returned when neither a calendar entry nor a
	// unit default price exists for a date. Operator misconfiguration.
	ErrRateNotConfigured = errors.New("rate not configured")

	// ErrRestrictionViolated is returned when a stay violates a rate
	// calendar restriction (minimum stay, closed to arrival/departure).
	ErrRestrictionViolated = errors.New("rate restriction violated")

	// ErrInvalidStayRange is returned for empty or inverted date ranges.
	ErrInvalidStayRange = errors.New("invalid stay range")

	// ErrConcurrentModification is returned when the store's optimistic
	// version check detects a conflicting write to a ledger row.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrCapacityImmutable is returned when shrinking a unit's capacity
	// below what the ledger already holds for some date.
	ErrCapacityImmutable = errors.New("capacity change conflicts with existing reservations")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NoAvailabilityError lists the dates that constrained the reservation.
type NoAvailabilityError struct {
	UnitID   UnitID
	Stay     StayRange
	Quantity Quantity
	Dates    []Date // the dates with insufficient remaining capacity
}

func (e *NoAvailabilityError) Error() string {
	days := make([]string, len(e.Dates))
	for i, d := range e.Dates {
		days[i] = d.String()
	}
	return fmt.Sprintf("no availability for %s", strings.Join(days, ", "))
}

func (e *NoAvailabilityError) Unwrap() error { return ErrNoAvailability }

// InvalidStateError reports a forbidden booking status transition.
type InvalidStateError struct {
	BookingID BookingID
	Current   string
	Attempted string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("booking %s is %s; cannot %s", e.BookingID, e.Current, e.Attempted)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// ConfigurationError reports missing operator configuration.
type ConfigurationError struct {
	UnitID UnitID
	Date   Date
	Detail string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unit %s: %s (date %s)", e.UnitID, e.Detail, e.Date)
}

func (e *ConfigurationError) Unwrap() error { return ErrRateNotConfigured }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is a business outcome the caller
// should see (4xx), as opposed to an infrastructure fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNoAvailability) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrRestrictionViolated) ||
		errors.Is(err, ErrInvalidStayRange)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnitNotFound) ||
		errors.Is(err, ErrBookingNotFound)
}

// IsRetryable returns true if the caller may retry the operation. The
// coordinator never retries reserve internally; this is for callers.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
