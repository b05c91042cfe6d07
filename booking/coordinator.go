/*
coordinator.go - Booking transaction coordinator

PURPOSE:
  Orchestrates create/cancel and the front-desk transitions as atomic units
  spanning the Rate Calendar (read) and the Availability Ledger (read+write).
  The coordinator is the ONLY writer of ledger capacity.

CREATE FLOW:
  1. Quote the stay. A restriction violation rejects immediately - the
     ledger is never touched.
  2. Reserve capacity. All-or-nothing across the stay; a capacity conflict
     rejects with the constraining dates.
  3. Persist the booking as confirmed, with the quote and a policy snapshot
     frozen from the unit's current plan.
  4. If persistence fails AFTER the reserve succeeded, the reservation is
     released again (compensating action). Without this, capacity leaks
     permanently. The coordinator never retries the reserve internally:
     retry without an idempotency key could double-reserve, so transient
     failures are surfaced for the caller to retry.

CANCEL FLOW:
  Load -> state check -> release -> persist cancelled -> evaluate refund
  from the snapshot. Ledger release is the point of no return: once
  capacity is back in the pool another guest may already hold it, so a
  failure persisting the status afterwards is logged and surfaced but the
  capacity is never re-reserved.

FRONT-DESK TRANSITIONS:
  CheckIn and Complete arrive from an external operations collaborator and
  must be accepted idempotently: repeating a transition that already
  happened is a no-op, not an error.

SEE ALSO:
  - engine/ledger.go: Reserve/Release semantics
  - refund.go: RefundResult computation
*/
package booking

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/booking-engine/engine"
	"github.com/warp/booking-engine/rates"
)

// =============================================================================
// COORDINATOR
// =============================================================================

type Coordinator struct {
	Ledger   engine.AvailabilityLedger
	Rates    *rates.Calendar
	Units    engine.UnitStore
	Bookings BookingStore
	Plans    PlanStore

	// Now is injectable for deterministic tests; defaults to time.Now.
	Now func() time.Time
}

func NewCoordinator(ledger engine.AvailabilityLedger, cal *rates.Calendar, units engine.UnitStore, bookings BookingStore, plans PlanStore) *Coordinator {
	return &Coordinator{
		Ledger:   ledger,
		Rates:    cal,
		Units:    units,
		Bookings: bookings,
		Plans:    plans,
		Now:      time.Now,
	}
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// CreateBookingInput is a guest/staff reservation request.
type CreateBookingInput struct {
	UnitID   engine.UnitID
	GuestRef engine.GuestRef
	Stay     engine.StayRange
	Quantity engine.Quantity
}

// CreateBooking runs the quote -> reserve -> persist sequence. Rejections
// (restriction violations, no availability) come back as typed errors and
// leave no durable trace; only confirmed bookings are ever persisted.
func (c *Coordinator) CreateBooking(ctx context.Context, in CreateBookingInput) (*Booking, error) {
	if in.GuestRef == "" {
		return nil, fmt.Errorf("guest reference is required")
	}
	qty := in.Quantity
	if qty < 1 {
		qty = 1
	}

	// Step 1: price and restriction-check. No ledger touch on rejection.
	quote, err := c.Rates.Quote(ctx, in.UnitID, in.Stay)
	if err != nil {
		return nil, err
	}

	// Step 2: all-or-nothing capacity reserve.
	ok, conflicts, err := c.Ledger.Reserve(ctx, in.UnitID, in.Stay, qty)
	if err != nil {
		return nil, fmt.Errorf("ledger reserve failed: %w", err)
	}
	if !ok {
		return nil, &engine.NoAvailabilityError{
			UnitID:   in.UnitID,
			Stay:     in.Stay,
			Quantity: qty,
			Dates:    conflicts,
		}
	}

	// Step 3: persist as confirmed with a frozen policy snapshot.
	snapshot, err := c.snapshotPolicy(ctx, in.UnitID, in.Stay)
	if err != nil {
		c.compensate(ctx, in.UnitID, in.Stay, qty, err)
		return nil, err
	}

	// The calendar quotes a single unit; the booking charges for qty of
	// them, so the persisted total and per-night lines are scaled here.
	total := quote.Total
	perNight := quote.PerNight
	if qty > 1 {
		factor := decimal.NewFromInt(int64(qty))
		total = engine.ZeroMoney(quote.Total.Currency)
		perNight = make([]rates.NightPrice, 0, len(quote.PerNight))
		for _, n := range quote.PerNight {
			line := n.Price.Mul(factor)
			perNight = append(perNight, rates.NightPrice{Date: n.Date, Price: line})
			total = total.Add(line)
		}
	}

	b := Booking{
		ID:             engine.BookingID(uuid.NewString()),
		UnitID:         in.UnitID,
		GuestRef:       in.GuestRef,
		Stay:           in.Stay,
		Quantity:       qty,
		Status:         StatusConfirmed,
		QuotedTotal:    total,
		PerNight:       perNight,
		PolicySnapshot: snapshot,
		CreatedAt:      c.now(),
	}

	if err := c.Bookings.SaveBooking(ctx, b); err != nil {
		// Step 4: compensating release. Capacity must not leak.
		c.compensate(ctx, in.UnitID, in.Stay, qty, err)
		return nil, fmt.Errorf("failed to persist booking: %w", err)
	}

	c.recordEvent(ctx, b.ID, "", StatusConfirmed, "booking created")
	return &b, nil
}

// compensate undoes a successful reserve after a later step failed.
func (c *Coordinator) compensate(ctx context.Context, unitID engine.UnitID, stay engine.StayRange, qty engine.Quantity, cause error) {
	if releaseErr := c.Ledger.Release(ctx, unitID, stay, qty); releaseErr != nil {
		// Both the persist and the compensation failed; capacity has
		// leaked and needs operator attention.
		log.Printf("[Coordinator] CRITICAL: compensating release failed for unit=%s stay=%s qty=%d after %v: %v",
			unitID, stay, qty, cause, releaseErr)
	}
}

func (c *Coordinator) snapshotPolicy(ctx context.Context, unitID engine.UnitID, stay engine.StayRange) (PolicySnapshot, error) {
	unit, err := c.Units.GetUnit(ctx, unitID)
	if err != nil {
		return PolicySnapshot{}, fmt.Errorf("failed to load unit %s: %w", unitID, err)
	}
	if unit == nil {
		return PolicySnapshot{}, fmt.Errorf("unit %s: %w", unitID, engine.ErrUnitNotFound)
	}
	plan, err := c.Plans.GetPlan(ctx, unit.PlanID)
	if err != nil {
		return PolicySnapshot{}, fmt.Errorf("failed to load plan %s: %w", unit.PlanID, err)
	}
	if plan == nil {
		return PolicySnapshot{}, &engine.ConfigurationError{
			UnitID: unitID,
			Date:   stay.CheckIn,
			Detail: fmt.Sprintf("rate plan %q not found", unit.PlanID),
		}
	}
	return plan.Snapshot(stay.CheckIn.Time), nil
}

// CancelBooking cancels a confirmed booking, releases its capacity, and
// computes the refund entitlement from the booking's immutable policy
// snapshot. Checked-in stays end via Complete, never cancel.
func (c *Coordinator) CancelBooking(ctx context.Context, id engine.BookingID) (*RefundResult, error) {
	b, err := c.Bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("booking %s: %w", id, engine.ErrBookingNotFound)
	}
	if !b.Status.CanTransition(StatusCancelled) {
		return nil, &engine.InvalidStateError{
			BookingID: id,
			Current:   string(b.Status),
			Attempted: "cancel",
		}
	}

	// Ledger release is the point of no return: once it succeeds the
	// capacity may already be resold, so every later failure is surfaced
	// but never compensated by re-reserving.
	if err := c.Ledger.Release(ctx, b.UnitID, b.Stay, b.Quantity); err != nil {
		return nil, fmt.Errorf("ledger release failed: %w", err)
	}

	now := c.now()
	prev := b.Status
	b.Status = StatusCancelled
	b.CancelledAt = &now
	if err := c.Bookings.SaveBooking(ctx, *b); err != nil {
		// Cancellation is effectively committed; do not undo the release.
		log.Printf("[Coordinator] cancellation of %s released capacity but status persist failed: %v", id, err)
		return nil, fmt.Errorf("capacity released but status update failed, retry cancel: %w", err)
	}
	c.recordEvent(ctx, id, prev, StatusCancelled, "booking cancelled")

	refund := EvaluateRefund(now, b.PolicySnapshot, id, b.QuotedTotal)
	return &refund, nil
}

// CheckIn marks the guest as arrived. Idempotent: checking in a booking
// that is already checked in is a no-op.
func (c *Coordinator) CheckIn(ctx context.Context, id engine.BookingID) (*Booking, error) {
	return c.advance(ctx, id, StatusCheckedIn, "guest checked in", nil)
}

// Complete marks the stay finished. Driven by the checkout collaborator
// (or the sweeper) once the checkout date has passed. Idempotent.
func (c *Coordinator) Complete(ctx context.Context, id engine.BookingID, today engine.Date) (*Booking, error) {
	guard := func(b *Booking) error {
		if today.Before(b.Stay.CheckOut) {
			return &engine.InvalidStateError{
				BookingID: id,
				Current:   string(b.Status),
				Attempted: fmt.Sprintf("complete before checkout date %s", b.Stay.CheckOut),
			}
		}
		return nil
	}
	return c.advance(ctx, id, StatusCompleted, "stay completed", guard)
}

func (c *Coordinator) advance(ctx context.Context, id engine.BookingID, to Status, reason string, guard func(*Booking) error) (*Booking, error) {
	b, err := c.Bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("booking %s: %w", id, engine.ErrBookingNotFound)
	}
	if b.Status == to {
		return b, nil // idempotent repeat
	}
	if guard != nil {
		if err := guard(b); err != nil {
			return nil, err
		}
	}
	if !b.Status.CanTransition(to) {
		return nil, &engine.InvalidStateError{
			BookingID: id,
			Current:   string(b.Status),
			Attempted: string(to),
		}
	}

	prev := b.Status
	b.Status = to
	if err := c.Bookings.SaveBooking(ctx, *b); err != nil {
		return nil, fmt.Errorf("failed to persist status change: %w", err)
	}
	c.recordEvent(ctx, id, prev, to, reason)
	return b, nil
}

func (c *Coordinator) recordEvent(ctx context.Context, id engine.BookingID, from, to Status, reason string) {
	err := c.Bookings.AppendEvent(ctx, Event{
		ID:        uuid.NewString(),
		BookingID: id,
		From:      from,
		To:        to,
		Reason:    reason,
		At:        c.now(),
	})
	if err != nil {
		// The event feed is advisory for collaborators; a failed write
		// must not fail the booking operation itself.
		log.Printf("[Coordinator] failed to record event for %s (%s -> %s): %v", id, from, to, err)
	}
}
