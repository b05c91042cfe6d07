// Package booking implements the booking lifecycle on top of the engine:
// the transaction coordinator, the status state machine, cancellation
// policy snapshots, and refund evaluation.
package booking

import (
	"context"
	"time"

	"github.com/warp/booking-engine/engine"
	"github.com/warp/booking-engine/rates"
)

// =============================================================================
// STATUS - Closed state machine
// =============================================================================

// Status is the closed set of booking states. There is no persisted
// "pending": a reservation either commits as confirmed or is rejected
// synchronously and never stored. {completed, cancelled} are terminal and
// mutually exclusive.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCheckedIn Status = "checked_in"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// forward edges of the state machine
var transitions = map[Status][]Status{
	StatusConfirmed: {StatusCheckedIn, StatusCompleted, StatusCancelled},
	StatusCheckedIn: {StatusCompleted},
	StatusCompleted: {},
	StatusCancelled: {},
}

// CanTransition reports whether from -> to is a legal edge.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool { return len(transitions[s]) == 0 }

// =============================================================================
// BOOKING
// =============================================================================

// Booking is a confirmed reservation. The quote and the policy snapshot are
// captured at creation and never change afterwards; cancellation maths run
// against the snapshot, not live configuration.
type Booking struct {
	ID       engine.BookingID
	UnitID   engine.UnitID
	GuestRef engine.GuestRef
	Stay     engine.StayRange
	Quantity engine.Quantity

	Status Status

	QuotedTotal engine.Money
	PerNight    []rates.NightPrice

	PolicySnapshot PolicySnapshot

	CreatedAt   time.Time
	CancelledAt *time.Time
}

// =============================================================================
// EVENTS - Outbound status-change feed
// =============================================================================

// Event is an append-only status-change record consumed by external
// collaborators (notifications, payments). The engine only writes them.
type Event struct {
	ID        string
	BookingID engine.BookingID
	From      Status
	To        Status
	Reason    string
	At        time.Time
}

// =============================================================================
// STORE
// =============================================================================

// BookingStore persists bookings and their event feed.
type BookingStore interface {
	// SaveBooking inserts or updates the booking row.
	SaveBooking(ctx context.Context, b Booking) error

	// GetBooking returns the booking or nil when it does not exist.
	GetBooking(ctx context.Context, id engine.BookingID) (*Booking, error)

	// ListBookings returns bookings for a unit, newest first. Empty unit
	// ID lists everything.
	ListBookings(ctx context.Context, unitID engine.UnitID) ([]Booking, error)

	// ListOpenBookingsBefore returns confirmed and checked-in bookings
	// whose checkout date is on or before the cutoff. Used by the
	// checkout sweeper.
	ListOpenBookingsBefore(ctx context.Context, cutoff engine.Date) ([]Booking, error)

	// AppendEvent records a status change. Append-only.
	AppendEvent(ctx context.Context, e Event) error

	// ListEvents returns a booking's events, oldest first.
	ListEvents(ctx context.Context, id engine.BookingID) ([]Event, error)
}

// PlanStore resolves the rate plan whose cancellation terms get
// snapshotted onto new bookings.
type PlanStore interface {
	// GetPlan returns the plan or nil when it does not exist.
	GetPlan(ctx context.Context, id engine.PlanID) (*Plan, error)
	SavePlan(ctx context.Context, p Plan) error
	ListPlans(ctx context.Context) ([]Plan, error)
}
