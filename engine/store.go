/*
store.go - Persistence interfaces for the availability ledger

PURPOSE:
  Defines the interface between the ledger logic and the database. Different
  implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  LedgerStore: Per-(unit,date) ledger row reads and versioned writes
  UnitStore:   Inventory unit records
  TxStore:     Transactional operations (atomic multi-row writes)

OPTIMISTIC CONCURRENCY:
  Every ledger row carries a Version. UpsertRow must reject a write whose
  expected version no longer matches the stored row, returning
  ErrConcurrentModification. Last-write-wins is never acceptable here: it
  silently violates the capacity invariant.

ATOMIC RANGE WRITES:
  Reserving a 5-night stay touches 5 rows. The ledger performs all writes
  inside TxStore.WithTx so either every night is reserved or none is.
  A booking must never partially succeed.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite/PostgreSQL
  - engine/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: The only writer of ledger rows
  - store/sqlite/sqlite.go: Concrete implementation
*/
package engine

import "context"

// =============================================================================
// LEDGER ROW - One (unit, date) capacity record
// =============================================================================

// LedgerRow is the authoritative capacity record for one unit on one date.
// Rows are lazily created: a date with no row has zero reserved and zero
// blocked capacity.
//
// INVARIANT: Reserved + Blocked <= unit.SellableCapacity(), always.
type LedgerRow struct {
	UnitID   UnitID
	Date     Date
	Reserved Quantity
	Blocked  Quantity

	// Version increments on every write; the store's optimistic check
	// rejects writes against a stale version.
	Version int64
}

// Occupied is the capacity consumed on this date, by guests or maintenance.
func (r LedgerRow) Occupied() Quantity { return r.Reserved + r.Blocked }

// =============================================================================
// STORE INTERFACES
// =============================================================================

// LedgerStore persists ledger rows. The AvailabilityLedger is the ONLY
// component permitted to call UpsertRow; everything else reads.
type LedgerStore interface {
	// GetRows returns the existing rows for the unit in [stay.CheckIn,
	// stay.CheckOut). Dates without a row are simply absent.
	GetRows(ctx context.Context, unitID UnitID, stay StayRange) ([]LedgerRow, error)

	// UpsertRow writes a row, creating it when expectedVersion is 0.
	// The store owns the version counter: an accepted write always lands
	// at expectedVersion+1, whatever the caller put in row.Version.
	// Returns ErrConcurrentModification when the stored version differs
	// from expectedVersion.
	UpsertRow(ctx context.Context, row LedgerRow, expectedVersion int64) error
}

// TxStore wraps LedgerStore with transaction support. The ledger's
// check-and-reserve sequence runs entirely inside WithTx.
type TxStore interface {
	LedgerStore

	// WithTx executes fn within a transaction.
	// If fn returns error, the transaction is rolled back.
	WithTx(ctx context.Context, fn func(LedgerStore) error) error
}

// UnitStore persists inventory units.
type UnitStore interface {
	// GetUnit returns the unit or nil when it does not exist.
	GetUnit(ctx context.Context, id UnitID) (*InventoryUnit, error)

	SaveUnit(ctx context.Context, unit InventoryUnit) error
	ListUnits(ctx context.Context, propertyID PropertyID) ([]InventoryUnit, error)

	// DeactivateUnit marks the unit inactive. Units are never hard-deleted
	// once historical bookings reference them.
	DeactivateUnit(ctx context.Context, id UnitID) error
}
