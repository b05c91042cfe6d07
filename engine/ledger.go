/*
ledger.go - The availability ledger

PURPOSE:
  The Ledger is the single source of truth for remaining capacity per
  (unit, date). Every reservation, release, and maintenance block flows
  through it. No other component mutates ledger rows.

CRITICAL INVARIANTS:
  1. For all (unit, date) at all times:
       reserved + blocked <= capacity + overbook buffer
  2. Reserve is ALL-OR-NOTHING across the stay's dates. A 3-night booking
     where night 2 is full mutates nothing for nights 1 and 3.
  3. Release never drives a count below zero. A clamp is logged as an
     anomaly because it indicates a bookkeeping bug upstream (a release
     without a matching reserve).

CONCURRENCY:
  Concurrent Reserve calls for the same unit must be linearized - two
  racing requests for the last room must resolve to exactly one success.
  The ledger takes a per-unit mutex for the duration of check-and-reserve,
  keeping unrelated units independent, and performs the writes inside a
  store transaction. Stores additionally version rows so a misbehaving
  second writer is caught (ErrConcurrentModification) rather than silently
  overselling.

WHY RESERVE RETURNS ok, NOT AN ERROR:
  Capacity conflict is an expected business outcome - guests race for rooms
  every day. The conflicting dates are returned so the caller can tell the
  guest exactly which nights are full.

SEE ALSO:
  - store.go: LedgerStore / TxStore contracts
  - booking/coordinator.go: The only caller of Reserve/Release
*/
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
)

// =============================================================================
// AVAILABILITY LEDGER
// =============================================================================

// AvailabilityLedger answers and mutates per-(unit,date) capacity.
type AvailabilityLedger interface {
	// CheckAvailability is non-mutating. It reports whether qty units are
	// free for every night of the stay, with per-date remaining counts.
	CheckAvailability(ctx context.Context, unitID UnitID, stay StayRange, qty Quantity) (*Availability, error)

	// Reserve atomically consumes qty units for every night of the stay.
	// ok=false with the constraining dates on capacity conflict; the
	// ledger is untouched in that case. Must only be called by the
	// booking coordinator.
	Reserve(ctx context.Context, unitID UnitID, stay StayRange, qty Quantity) (ok bool, conflicts []Date, err error)

	// Release returns qty units for every night of the stay. Clamped at
	// zero with a logged anomaly if a count would have gone negative.
	Release(ctx context.Context, unitID UnitID, stay StayRange, qty Quantity) error

	// Block places a maintenance hold (counts against capacity like a
	// reservation). Same all-or-nothing semantics as Reserve.
	Block(ctx context.Context, unitID UnitID, stay StayRange, qty Quantity) (ok bool, conflicts []Date, err error)

	// Unblock releases a maintenance hold, clamped like Release.
	Unblock(ctx context.Context, unitID UnitID, stay StayRange, qty Quantity) error
}

// Availability is the non-mutating view of remaining capacity.
type Availability struct {
	UnitID          UnitID
	Stay            StayRange
	Available       bool
	RemainingByDate map[Date]Quantity
}

// =============================================================================
// DEFAULT LEDGER - Implementation over TxStore
// =============================================================================

type DefaultLedger struct {
	Store TxStore
	Units UnitStore

	// one mutex per unit so unrelated units never contend
	mu    sync.Mutex
	locks map[UnitID]*sync.Mutex
}

func NewLedger(store TxStore, units UnitStore) *DefaultLedger {
	return &DefaultLedger{
		Store: store,
		Units: units,
		locks: make(map[UnitID]*sync.Mutex),
	}
}

func (l *DefaultLedger) unitLock(id UnitID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[id] = lock
	}
	return lock
}

// activeUnit loads the unit and enforces existence + active flag.
func (l *DefaultLedger) activeUnit(ctx context.Context, id UnitID) (*InventoryUnit, error) {
	unit, err := l.Units.GetUnit(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load unit %s: %w", id, err)
	}
	if unit == nil || !unit.Active {
		return nil, fmt.Errorf("unit %s: %w", id, ErrUnitNotFound)
	}
	return unit, nil
}

// rowsByDate indexes existing rows; absent dates get a zero row.
func rowsByDate(rows []LedgerRow, unitID UnitID, stay StayRange) map[Date]LedgerRow {
	byDate := make(map[Date]LedgerRow, stay.Nights())
	for _, d := range stay.Dates() {
		byDate[d] = LedgerRow{UnitID: unitID, Date: d}
	}
	for _, r := range rows {
		byDate[r.Date] = r
	}
	return byDate
}

// CheckAvailability computes capacity - reserved - blocked per date.
func (l *DefaultLedger) CheckAvailability(ctx context.Context, unitID UnitID, stay StayRange, qty Quantity) (*Availability, error) {
	if qty < 1 {
		qty = 1
	}
	unit, err := l.activeUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}

	rows, err := l.Store.GetRows(ctx, unitID, stay)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger rows: %w", err)
	}

	avail := &Availability{
		UnitID:          unitID,
		Stay:            stay,
		Available:       true,
		RemainingByDate: make(map[Date]Quantity, stay.Nights()),
	}
	for date, row := range rowsByDate(rows, unitID, stay) {
		remaining := unit.SellableCapacity() - row.Occupied()
		avail.RemainingByDate[date] = remaining
		if remaining < qty {
			avail.Available = false
		}
	}
	return avail, nil
}

// Reserve implements the all-or-nothing check-and-reserve.
func (l *DefaultLedger) Reserve(ctx context.Context, unitID UnitID, stay StayRange, qty Quantity) (bool, []Date, error) {
	return l.occupy(ctx, unitID, stay, qty, func(row *LedgerRow) { row.Reserved += qty })
}

// Block is Reserve against the blocked column.
func (l *DefaultLedger) Block(ctx context.Context, unitID UnitID, stay StayRange, qty Quantity) (bool, []Date, error) {
	return l.occupy(ctx, unitID, stay, qty, func(row *LedgerRow) { row.Blocked += qty })
}

func (l *DefaultLedger) occupy(ctx context.Context, unitID UnitID, stay StayRange, qty Quantity, apply func(*LedgerRow)) (bool, []Date, error) {
	if qty < 1 {
		return false, nil, fmt.Errorf("quantity must be >= 1, got %d", qty)
	}
	unit, err := l.activeUnit(ctx, unitID)
	if err != nil {
		return false, nil, err
	}

	// Single writer per unit: the re-check inside the transaction and the
	// write happen under the same lock, so two racing reservations for the
	// last room resolve to exactly one success.
	lock := l.unitLock(unitID)
	lock.Lock()
	defer lock.Unlock()

	var conflicts []Date
	err = l.Store.WithTx(ctx, func(store LedgerStore) error {
		rows, err := store.GetRows(ctx, unitID, stay)
		if err != nil {
			return fmt.Errorf("failed to load ledger rows: %w", err)
		}
		byDate := rowsByDate(rows, unitID, stay)

		// Re-check every date before mutating any.
		for _, d := range stay.Dates() {
			if byDate[d].Occupied()+qty > unit.SellableCapacity() {
				conflicts = append(conflicts, d)
			}
		}
		if len(conflicts) > 0 {
			// Expected outcome: abort with no partial mutation. The error
			// return here only rolls back the (empty) transaction.
			return errCapacityConflict
		}

		for _, d := range stay.Dates() {
			row := byDate[d]
			apply(&row)
			if err := store.UpsertRow(ctx, row, row.Version); err != nil {
				return err
			}
		}
		return nil
	})

	if errors.Is(err, errCapacityConflict) {
		return false, conflicts, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, nil, nil
}

// errCapacityConflict is internal plumbing: it aborts the store transaction
// without surfacing as a fault.
var errCapacityConflict = errors.New("capacity conflict")

// Release decrements reserved counts, clamped at zero.
func (l *DefaultLedger) Release(ctx context.Context, unitID UnitID, stay StayRange, qty Quantity) error {
	return l.vacate(ctx, unitID, stay, qty, "reserved",
		func(row *LedgerRow) *Quantity { return &row.Reserved })
}

// Unblock decrements blocked counts, clamped at zero.
func (l *DefaultLedger) Unblock(ctx context.Context, unitID UnitID, stay StayRange, qty Quantity) error {
	return l.vacate(ctx, unitID, stay, qty, "blocked",
		func(row *LedgerRow) *Quantity { return &row.Blocked })
}

func (l *DefaultLedger) vacate(ctx context.Context, unitID UnitID, stay StayRange, qty Quantity, column string, field func(*LedgerRow) *Quantity) error {
	if qty < 1 {
		return fmt.Errorf("quantity must be >= 1, got %d", qty)
	}
	// Deliberately no active-unit check: releasing capacity on a
	// deactivated unit must still work (cancelling historical bookings).
	if _, err := l.Units.GetUnit(ctx, unitID); err != nil {
		return fmt.Errorf("failed to load unit %s: %w", unitID, err)
	}

	lock := l.unitLock(unitID)
	lock.Lock()
	defer lock.Unlock()

	return l.Store.WithTx(ctx, func(store LedgerStore) error {
		rows, err := store.GetRows(ctx, unitID, stay)
		if err != nil {
			return fmt.Errorf("failed to load ledger rows: %w", err)
		}
		byDate := rowsByDate(rows, unitID, stay)

		for _, d := range stay.Dates() {
			row := byDate[d]
			count := field(&row)
			next := *count - qty
			if next < 0 {
				// Bookkeeping bug upstream: a release without a matching
				// reserve. Clamp and keep going so capacity never reads
				// negative, but make noise.
				log.Printf("[Ledger] ANOMALY: release would take %s below zero (unit=%s date=%s %s=%d qty=%d); clamping",
					column, unitID, d, column, *count, qty)
				next = 0
			}
			*count = next
			if err := store.UpsertRow(ctx, row, row.Version); err != nil {
				return err
			}
		}
		return nil
	})
}

// VerifyCapacity reports whether the unit's capacity could be changed to
// newCapacity without violating the invariant for any date in the range.
// This is the explicit reconciliation gate for capacity changes.
func (l *DefaultLedger) VerifyCapacity(ctx context.Context, unitID UnitID, stay StayRange, newSellable Quantity) error {
	rows, err := l.Store.GetRows(ctx, unitID, stay)
	if err != nil {
		return fmt.Errorf("failed to load ledger rows: %w", err)
	}
	for _, row := range rows {
		if row.Occupied() > newSellable {
			return fmt.Errorf("date %s holds %d units: %w", row.Date, row.Occupied(), ErrCapacityImmutable)
		}
	}
	return nil
}
