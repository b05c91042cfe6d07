/*
policy.go - Cancellation policies and their booking-time snapshots

PURPOSE:
  A Plan bundles the cancellation terms a property sells under. At booking
  time the Coordinator resolves the unit's plan and freezes its terms into
  a PolicySnapshot on the booking. The snapshot is immutable from then on:
  a property editing its policy never retroactively changes the terms an
  existing guest booked under.

SNAPSHOT vs LIVE CONFIG:
  Plan:           live, editable, owned by property management
  PolicySnapshot: frozen copy + the concrete free-cancellation deadline
                  computed against THIS booking's check-in

SEE ALSO:
  - refund.go: Evaluates refunds strictly from the snapshot
  - coordinator.go: Captures the snapshot during CreateBooking
*/
package booking

import (
	"fmt"
	"time"

	"github.com/warp/booking-engine/engine"
)

// =============================================================================
// PLAN - Live cancellation terms
// =============================================================================

// Plan is the live cancellation configuration attached to inventory units.
type Plan struct {
	ID   engine.PlanID
	Name string

	// FreeCancelHoursBeforeCheckIn: cancellations at least this many hours
	// before check-in refund in full. 0 means no free window.
	FreeCancelHoursBeforeCheckIn int

	// PenaltyPercent (0-100) is withheld from the paid amount after the
	// free window closes. Ignored when NonRefundable.
	PenaltyPercent int

	// NonRefundable: no refund once the free window has closed.
	NonRefundable bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the plan's numeric bounds.
func (p Plan) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("plan id is required")
	}
	if p.FreeCancelHoursBeforeCheckIn < 0 {
		return fmt.Errorf("free cancellation window must not be negative")
	}
	if p.PenaltyPercent < 0 || p.PenaltyPercent > 100 {
		return fmt.Errorf("penalty percent must be within 0-100, got %d", p.PenaltyPercent)
	}
	return nil
}

// =============================================================================
// POLICY SNAPSHOT - Immutable booking-time copy
// =============================================================================

// PolicySnapshot is the frozen cancellation terms of one booking.
// Immutable once attached; EvaluateRefund consults nothing else.
type PolicySnapshot struct {
	PlanID engine.PlanID

	// FreeCancelUntil is the concrete deadline for a full refund, computed
	// at booking time from the plan's window and this stay's check-in.
	// The zero time means the plan offers no free window at all.
	FreeCancelUntil time.Time

	PenaltyPercent int
	NonRefundable  bool
}

// Snapshot freezes the plan's terms for a stay. checkIn is the moment the
// stay begins (midnight UTC of the check-in date). A plan with a zero-hour
// window snapshots a zero FreeCancelUntil: there is no free window, not a
// window that stays open until the guest arrives.
func (p Plan) Snapshot(checkIn time.Time) PolicySnapshot {
	snap := PolicySnapshot{
		PlanID:         p.ID,
		PenaltyPercent: p.PenaltyPercent,
		NonRefundable:  p.NonRefundable,
	}
	if p.FreeCancelHoursBeforeCheckIn > 0 {
		snap.FreeCancelUntil = checkIn.Add(-time.Duration(p.FreeCancelHoursBeforeCheckIn) * time.Hour)
	}
	return snap
}
