package engine

import "time"

// =============================================================================
// INVENTORY UNIT - A sellable, capacity-bearing entity
// =============================================================================

type UnitKind string

const (
	UnitRoomCategory UnitKind = "room_category"
	UnitTable        UnitKind = "table"
	UnitServiceSlot  UnitKind = "service_slot"
)

// InventoryUnit is a sellable unit with finite countable capacity per day:
// a room category with 12 rooms, a table, a spa slot.
//
// Units are deactivated, never deleted, once bookings reference them.
// Capacity is effectively immutable while the ledger holds reservations
// against it; reconciliation (explicit capacity change) must verify the
// ledger first (see Ledger.VerifyCapacity).
type InventoryUnit struct {
	ID         UnitID
	PropertyID PropertyID
	Name       string
	Kind       UnitKind

	// Capacity is the physical capacity per date. Must be >= 1.
	Capacity Quantity

	// OverbookBuffer is an intentional oversell allowance added on top of
	// physical capacity (revenue management). 0 means strict no-oversell.
	// The ledger invariant is enforced against SellableCapacity, never
	// relaxed inside the ledger itself.
	OverbookBuffer Quantity

	// PricingCurrency is the currency all of this unit's rates are
	// expressed in. Calendar entries in another currency are rejected.
	PricingCurrency Currency

	// DefaultPrice is the fallback nightly price when no rate calendar
	// entry exists for a date. Nil means no fallback: quoting a date with
	// no entry is a configuration error.
	DefaultPrice *Money

	// PlanID references the rate plan whose cancellation terms are
	// snapshotted onto new bookings.
	PlanID PlanID

	Active    bool
	CreatedAt time.Time
}

// SellableCapacity is the bound the ledger invariant is checked against:
// physical capacity plus any configured overbook buffer.
func (u *InventoryUnit) SellableCapacity() Quantity {
	return u.Capacity + u.OverbookBuffer
}

