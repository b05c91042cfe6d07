/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements all persistence interfaces (engine.LedgerStore, engine.TxStore,
  engine.UnitStore, rates.RateStore, booking.BookingStore, booking.PlanStore)
  using SQLite. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  units:               Inventory unit records (deactivated, never deleted)
  rate_calendar:       One row per (unit, date): price + restrictions
  availability_ledger: One row per (unit, date): reserved/blocked + version
  bookings:            Confirmed bookings with frozen quote + policy snapshot
  rate_plans:          Cancellation plan configs (JSON)
  booking_events:      Append-only status-change feed for collaborators

OPTIMISTIC CONCURRENCY:
  availability_ledger rows carry a version column. Updates are guarded by
  `WHERE version = ?`; zero rows affected means a conflicting write got
  there first and the caller receives ErrConcurrentModification. Inserts
  ride the (unit_id, date) primary key for the same purpose.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level row locking handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/bookings.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := engine.NewLedger(store, store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/engine"
	"github.com/warp/booking-engine/rates"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Inventory units (deactivated, never hard-deleted)
	CREATE TABLE IF NOT EXISTS units (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		capacity INTEGER NOT NULL CHECK (capacity >= 1),
		overbook_buffer INTEGER NOT NULL DEFAULT 0 CHECK (overbook_buffer >= 0),
		currency TEXT NOT NULL,
		default_price TEXT,
		plan_id TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_units_property ON units(property_id);

	-- Rate calendar: exactly one row per (unit, date)
	CREATE TABLE IF NOT EXISTS rate_calendar (
		unit_id TEXT NOT NULL,
		date TEXT NOT NULL,
		price TEXT NOT NULL,
		currency TEXT NOT NULL,
		min_stay_nights INTEGER NOT NULL DEFAULT 1 CHECK (min_stay_nights >= 1),
		closed_to_arrival BOOLEAN NOT NULL DEFAULT FALSE,
		closed_to_departure BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (unit_id, date)
	);

	-- Availability ledger: the capacity source of truth.
	-- CRITICAL: one row per (unit, date); version guards every update.
	CREATE TABLE IF NOT EXISTS availability_ledger (
		unit_id TEXT NOT NULL,
		date TEXT NOT NULL,
		reserved INTEGER NOT NULL DEFAULT 0 CHECK (reserved >= 0),
		blocked INTEGER NOT NULL DEFAULT 0 CHECK (blocked >= 0),
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (unit_id, date)
	);

	-- Bookings (only confirmed bookings are ever persisted)
	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		unit_id TEXT NOT NULL,
		guest_ref TEXT NOT NULL,
		check_in TEXT NOT NULL,
		check_out TEXT NOT NULL,
		quantity INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL,
		quoted_total TEXT NOT NULL,
		currency TEXT NOT NULL,
		per_night_json TEXT NOT NULL,
		policy_snapshot_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		cancelled_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_unit ON bookings(unit_id);
	CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status);
	-- For the checkout sweeper: open bookings past their checkout date
	CREATE INDEX IF NOT EXISTS idx_bookings_status_checkout
		ON bookings(status, check_out);

	-- Cancellation plans (config JSON, versioned by updated_at)
	CREATE TABLE IF NOT EXISTS rate_plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Outbound status-change feed (append-only)
	CREATE TABLE IF NOT EXISTS booking_events (
		id TEXT PRIMARY KEY,
		booking_id TEXT NOT NULL,
		from_status TEXT NOT NULL,
		to_status TEXT NOT NULL,
		reason TEXT,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_booking ON booking_events(booking_id, at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer abstracts *sql.DB and *sql.Tx so ledger reads and writes share one
// code path inside and outside transactions.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// =============================================================================
// LEDGER STORE (engine.LedgerStore interface)
// =============================================================================

// GetRows returns existing ledger rows for [stay.CheckIn, stay.CheckOut).
func (s *Store) GetRows(ctx context.Context, unitID engine.UnitID, stay engine.StayRange) ([]engine.LedgerRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getRows(ctx, s.db, unitID, stay)
}

func getRows(ctx context.Context, db execer, unitID engine.UnitID, stay engine.StayRange) ([]engine.LedgerRow, error) {
	query := `
		SELECT unit_id, date, reserved, blocked, version
		FROM availability_ledger
		WHERE unit_id = ? AND date >= ? AND date < ?
		ORDER BY date ASC
	`

	rows, err := db.QueryContext(ctx, query, unitID,
		stay.CheckIn.String(), stay.CheckOut.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger rows: %w", err)
	}
	defer rows.Close()

	var result []engine.LedgerRow
	for rows.Next() {
		var (
			row     engine.LedgerRow
			dateStr string
		)
		if err := rows.Scan(&row.UnitID, &dateStr, &row.Reserved, &row.Blocked, &row.Version); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		row.Date, err = engine.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt ledger date %q: %w", dateStr, err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// UpsertRow writes a ledger row with an optimistic version check.
func (s *Store) UpsertRow(ctx context.Context, row engine.LedgerRow, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertRow(ctx, s.db, row, expectedVersion)
}

func upsertRow(ctx context.Context, db execer, row engine.LedgerRow, expectedVersion int64) error {
	now := time.Now().UTC().Format(time.RFC3339)

	// The store owns the version counter: every accepted write lands at
	// expectedVersion+1 regardless of what the caller put in row.Version.
	version := expectedVersion + 1

	if expectedVersion == 0 {
		// Fresh row: the (unit_id, date) primary key catches a racing insert.
		_, err := db.ExecContext(ctx, `
			INSERT INTO availability_ledger (unit_id, date, reserved, blocked, version, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			row.UnitID, row.Date.String(), row.Reserved, row.Blocked, version, now,
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return engine.ErrConcurrentModification
			}
			return fmt.Errorf("failed to insert ledger row: %w", err)
		}
		return nil
	}

	res, err := db.ExecContext(ctx, `
		UPDATE availability_ledger
		SET reserved = ?, blocked = ?, version = ?, updated_at = ?
		WHERE unit_id = ? AND date = ? AND version = ?`,
		row.Reserved, row.Blocked, version, now,
		row.UnitID, row.Date.String(), expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update ledger row: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return engine.ErrConcurrentModification
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (engine.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction. Either every
// ledger write inside fn commits, or none do.
func (s *Store) WithTx(ctx context.Context, fn func(store engine.LedgerStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore runs ledger operations against an open transaction. It must not
// touch the store mutex - WithTx already holds it.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetRows(ctx context.Context, unitID engine.UnitID, stay engine.StayRange) ([]engine.LedgerRow, error) {
	return getRows(ctx, ts.tx, unitID, stay)
}

func (ts *txStore) UpsertRow(ctx context.Context, row engine.LedgerRow, expectedVersion int64) error {
	return upsertRow(ctx, ts.tx, row, expectedVersion)
}

// =============================================================================
// UNIT STORE (engine.UnitStore interface)
// =============================================================================

// SaveUnit inserts or updates a unit record.
func (s *Store) SaveUnit(ctx context.Context, unit engine.InventoryUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var defaultPrice *string
	if unit.DefaultPrice != nil {
		p := unit.DefaultPrice.Value.String()
		defaultPrice = &p
	}
	createdAt := unit.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO units (id, property_id, name, kind, capacity, overbook_buffer,
			currency, default_price, plan_id, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			property_id = excluded.property_id,
			name = excluded.name,
			kind = excluded.kind,
			capacity = excluded.capacity,
			overbook_buffer = excluded.overbook_buffer,
			currency = excluded.currency,
			default_price = excluded.default_price,
			plan_id = excluded.plan_id,
			active = excluded.active
	`

	_, err := s.db.ExecContext(ctx, query,
		unit.ID, unit.PropertyID, unit.Name, unit.Kind,
		unit.Capacity, unit.OverbookBuffer,
		unit.PricingCurrency, defaultPrice, unit.PlanID, unit.Active,
		createdAt.Format(time.RFC3339),
	)
	return err
}

// GetUnit retrieves a unit by ID. Returns nil when missing.
func (s *Store) GetUnit(ctx context.Context, id engine.UnitID) (*engine.InventoryUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, property_id, name, kind, capacity, overbook_buffer,
		       currency, default_price, plan_id, active, created_at
		FROM units WHERE id = ?
	`

	var (
		unit         engine.InventoryUnit
		defaultPrice sql.NullString
		createdAt    string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&unit.ID, &unit.PropertyID, &unit.Name, &unit.Kind,
		&unit.Capacity, &unit.OverbookBuffer,
		&unit.PricingCurrency, &defaultPrice, &unit.PlanID, &unit.Active, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if defaultPrice.Valid {
		m, err := engine.ParseMoney(defaultPrice.String, unit.PricingCurrency)
		if err != nil {
			return nil, fmt.Errorf("corrupt default price for unit %s: %w", unit.ID, err)
		}
		unit.DefaultPrice = &m
	}
	unit.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &unit, nil
}

// ListUnits returns units ordered by name. Empty property ID lists all
// properties.
func (s *Store) ListUnits(ctx context.Context, propertyID engine.PropertyID) ([]engine.InventoryUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, property_id, name, kind, capacity, overbook_buffer,
		       currency, default_price, plan_id, active, created_at
		FROM units
	`
	var args []any
	if propertyID != "" {
		query += " WHERE property_id = ?"
		args = append(args, propertyID)
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var units []engine.InventoryUnit
	for rows.Next() {
		var (
			unit         engine.InventoryUnit
			defaultPrice sql.NullString
			createdAt    string
		)
		if err := rows.Scan(
			&unit.ID, &unit.PropertyID, &unit.Name, &unit.Kind,
			&unit.Capacity, &unit.OverbookBuffer,
			&unit.PricingCurrency, &defaultPrice, &unit.PlanID, &unit.Active, &createdAt,
		); err != nil {
			return nil, err
		}
		if defaultPrice.Valid {
			m, err := engine.ParseMoney(defaultPrice.String, unit.PricingCurrency)
			if err != nil {
				return nil, fmt.Errorf("corrupt default price for unit %s: %w", unit.ID, err)
			}
			unit.DefaultPrice = &m
		}
		unit.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		units = append(units, unit)
	}
	return units, rows.Err()
}

// DeactivateUnit marks a unit inactive. Never deletes: historical bookings
// keep referring to the unit.
func (s *Store) DeactivateUnit(ctx context.Context, id engine.UnitID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE units SET active = FALSE WHERE id = ?", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return engine.ErrUnitNotFound
	}
	return nil
}

// =============================================================================
// RATE STORE (rates.RateStore interface)
// =============================================================================

// GetEntries returns calendar entries for [check-in, check-out] inclusive -
// the check-out date carries the closed-to-departure flag.
func (s *Store) GetEntries(ctx context.Context, unitID engine.UnitID, stay engine.StayRange) ([]rates.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT unit_id, date, price, currency, min_stay_nights,
		       closed_to_arrival, closed_to_departure
		FROM rate_calendar
		WHERE unit_id = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := s.db.QueryContext(ctx, query, unitID,
		stay.CheckIn.String(), stay.CheckOut.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query rate entries: %w", err)
	}
	defer rows.Close()

	var entries []rates.Entry
	for rows.Next() {
		var (
			e        rates.Entry
			dateStr  string
			priceStr string
			currency engine.Currency
		)
		if err := rows.Scan(&e.UnitID, &dateStr, &priceStr, &currency,
			&e.MinStayNights, &e.ClosedToArrival, &e.ClosedToDeparture); err != nil {
			return nil, fmt.Errorf("failed to scan rate entry: %w", err)
		}
		e.Date, err = engine.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt rate date %q: %w", dateStr, err)
		}
		e.Price, err = engine.ParseMoney(priceStr, currency)
		if err != nil {
			return nil, fmt.Errorf("corrupt rate price for %s on %s: %w", e.UnitID, e.Date, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertEntry writes the single entry for (unit, date). Idempotent: the
// last write wins.
func (s *Store) UpsertEntry(ctx context.Context, entry rates.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO rate_calendar (unit_id, date, price, currency, min_stay_nights,
			closed_to_arrival, closed_to_departure, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(unit_id, date) DO UPDATE SET
			price = excluded.price,
			currency = excluded.currency,
			min_stay_nights = excluded.min_stay_nights,
			closed_to_arrival = excluded.closed_to_arrival,
			closed_to_departure = excluded.closed_to_departure,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.UnitID, entry.Date.String(),
		entry.Price.Value.String(), entry.Price.Currency,
		entry.MinStayNights, entry.ClosedToArrival, entry.ClosedToDeparture,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// =============================================================================
// BOOKING STORE (booking.BookingStore interface)
// =============================================================================

// SaveBooking inserts or updates a booking row. The quote breakdown and
// policy snapshot are stored as JSON; both are frozen at creation and only
// status and cancelled_at change afterwards.
func (s *Store) SaveBooking(ctx context.Context, b booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	perNight, err := json.Marshal(perNightRecords(b.PerNight))
	if err != nil {
		return fmt.Errorf("failed to marshal per-night breakdown: %w", err)
	}
	snapshot, err := json.Marshal(snapshotRecord{
		PlanID:          string(b.PolicySnapshot.PlanID),
		FreeCancelUntil: b.PolicySnapshot.FreeCancelUntil.UTC().Format(time.RFC3339),
		PenaltyPercent:  b.PolicySnapshot.PenaltyPercent,
		NonRefundable:   b.PolicySnapshot.NonRefundable,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal policy snapshot: %w", err)
	}

	var cancelledAt *string
	if b.CancelledAt != nil {
		t := b.CancelledAt.UTC().Format(time.RFC3339)
		cancelledAt = &t
	}

	query := `
		INSERT INTO bookings (id, unit_id, guest_ref, check_in, check_out, quantity,
			status, quoted_total, currency, per_night_json, policy_snapshot_json,
			created_at, cancelled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			cancelled_at = excluded.cancelled_at
	`

	_, err = s.db.ExecContext(ctx, query,
		b.ID, b.UnitID, b.GuestRef,
		b.Stay.CheckIn.String(), b.Stay.CheckOut.String(),
		b.Quantity, b.Status,
		b.QuotedTotal.Value.String(), b.QuotedTotal.Currency,
		string(perNight), string(snapshot),
		b.CreatedAt.UTC().Format(time.RFC3339), cancelledAt,
	)
	return err
}

// GetBooking retrieves a booking by ID. Returns nil when missing.
func (s *Store) GetBooking(ctx context.Context, id engine.BookingID) (*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bookings, err := s.queryBookings(ctx, selectBookings+" WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return nil, nil
	}
	return &bookings[0], nil
}

// ListBookings returns bookings for a unit, newest first. Empty unit ID
// lists everything.
func (s *Store) ListBookings(ctx context.Context, unitID engine.UnitID) ([]booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if unitID == "" {
		return s.queryBookings(ctx, selectBookings+" ORDER BY created_at DESC")
	}
	return s.queryBookings(ctx, selectBookings+" WHERE unit_id = ? ORDER BY created_at DESC", unitID)
}

// ListOpenBookingsBefore returns confirmed and checked-in bookings whose
// checkout date is on or before the cutoff. Used by the checkout sweeper.
func (s *Store) ListOpenBookingsBefore(ctx context.Context, cutoff engine.Date) ([]booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := selectBookings + `
		WHERE status IN (?, ?) AND check_out <= ?
		ORDER BY check_out ASC
	`
	return s.queryBookings(ctx, query,
		booking.StatusConfirmed, booking.StatusCheckedIn,
		cutoff.String())
}

const selectBookings = `
	SELECT id, unit_id, guest_ref, check_in, check_out, quantity, status,
	       quoted_total, currency, per_night_json, policy_snapshot_json,
	       created_at, cancelled_at
	FROM bookings
`

func (s *Store) queryBookings(ctx context.Context, query string, args ...any) ([]booking.Booking, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []booking.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func scanBooking(rows *sql.Rows) (booking.Booking, error) {
	var (
		b            booking.Booking
		checkIn      string
		checkOut     string
		totalStr     string
		currency     engine.Currency
		perNightJSON string
		snapshotJSON string
		createdAt    string
		cancelledAt  sql.NullString
	)

	err := rows.Scan(
		&b.ID, &b.UnitID, &b.GuestRef, &checkIn, &checkOut, &b.Quantity, &b.Status,
		&totalStr, &currency, &perNightJSON, &snapshotJSON, &createdAt, &cancelledAt,
	)
	if err != nil {
		return b, fmt.Errorf("failed to scan booking: %w", err)
	}

	ci, err := engine.ParseDate(checkIn)
	if err != nil {
		return b, fmt.Errorf("corrupt check-in date %q: %w", checkIn, err)
	}
	co, err := engine.ParseDate(checkOut)
	if err != nil {
		return b, fmt.Errorf("corrupt check-out date %q: %w", checkOut, err)
	}
	b.Stay = engine.StayRange{CheckIn: ci, CheckOut: co}
	b.QuotedTotal, err = engine.ParseMoney(totalStr, currency)
	if err != nil {
		return b, fmt.Errorf("corrupt quoted total for %s: %w", b.ID, err)
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	if cancelledAt.Valid {
		t, _ := time.Parse(time.RFC3339, cancelledAt.String)
		b.CancelledAt = &t
	}

	var nights []perNightRecord
	if err := json.Unmarshal([]byte(perNightJSON), &nights); err != nil {
		return b, fmt.Errorf("corrupt per-night breakdown for %s: %w", b.ID, err)
	}
	for _, n := range nights {
		d, err := engine.ParseDate(n.Date)
		if err != nil {
			return b, fmt.Errorf("corrupt per-night date %q: %w", n.Date, err)
		}
		price, err := engine.ParseMoney(n.Price, currency)
		if err != nil {
			return b, fmt.Errorf("corrupt per-night price for %s: %w", b.ID, err)
		}
		b.PerNight = append(b.PerNight, rates.NightPrice{Date: d, Price: price})
	}

	var snap snapshotRecord
	if err := json.Unmarshal([]byte(snapshotJSON), &snap); err != nil {
		return b, fmt.Errorf("corrupt policy snapshot for %s: %w", b.ID, err)
	}
	until, _ := time.Parse(time.RFC3339, snap.FreeCancelUntil)
	b.PolicySnapshot = booking.PolicySnapshot{
		PlanID:          engine.PlanID(snap.PlanID),
		FreeCancelUntil: until,
		PenaltyPercent:  snap.PenaltyPercent,
		NonRefundable:   snap.NonRefundable,
	}

	return b, nil
}

// JSON shapes for the bookings table columns.

type perNightRecord struct {
	Date  string `json:"date"`
	Price string `json:"price"`
}

type snapshotRecord struct {
	PlanID          string `json:"plan_id"`
	FreeCancelUntil string `json:"free_cancel_until"`
	PenaltyPercent  int    `json:"penalty_percent"`
	NonRefundable   bool   `json:"non_refundable"`
}

func perNightRecords(nights []rates.NightPrice) []perNightRecord {
	records := make([]perNightRecord, len(nights))
	for i, n := range nights {
		records[i] = perNightRecord{
			Date:  n.Date.String(),
			Price: n.Price.Value.String(),
		}
	}
	return records
}

// =============================================================================
// EVENT STORE (booking.BookingStore interface, events part)
// =============================================================================

// AppendEvent records a status change. Append-only: no update, no delete.
func (s *Store) AppendEvent(ctx context.Context, e booking.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO booking_events (id, booking_id, from_status, to_status, reason, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.BookingID, e.From, e.To, e.Reason, e.At.UTC().Format(time.RFC3339),
	)
	return err
}

// ListEvents returns a booking's status-change events, oldest first.
func (s *Store) ListEvents(ctx context.Context, id engine.BookingID) ([]booking.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, booking_id, from_status, to_status, reason, at
		FROM booking_events
		WHERE booking_id = ?
		ORDER BY at ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []booking.Event
	for rows.Next() {
		var (
			e      booking.Event
			reason sql.NullString
			at     string
		)
		if err := rows.Scan(&e.ID, &e.BookingID, &e.From, &e.To, &reason, &at); err != nil {
			return nil, err
		}
		e.Reason = reason.String
		e.At, _ = time.Parse(time.RFC3339, at)
		events = append(events, e)
	}
	return events, rows.Err()
}

// =============================================================================
// PLAN STORE (booking.PlanStore interface)
// =============================================================================

// SavePlan inserts or updates a cancellation plan. Existing bookings are
// unaffected: they carry their own policy snapshot.
func (s *Store) SavePlan(ctx context.Context, p booking.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	config, err := json.Marshal(planRecord{
		FreeCancelHoursBefore: p.FreeCancelHoursBeforeCheckIn,
		PenaltyPercent:        p.PenaltyPercent,
		NonRefundable:         p.NonRefundable,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal plan config: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO rate_plans (id, name, config_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			updated_at = excluded.updated_at
	`

	_, err = s.db.ExecContext(ctx, query, p.ID, p.Name, string(config), now, now)
	return err
}

// GetPlan retrieves a plan by ID. Returns nil when missing.
func (s *Store) GetPlan(ctx context.Context, id engine.PlanID) (*booking.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		p          booking.Plan
		configJSON string
		createdAt  string
		updatedAt  string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, config_json, created_at, updated_at FROM rate_plans WHERE id = ?", id,
	).Scan(&p.ID, &p.Name, &configJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec planRecord
	if err := json.Unmarshal([]byte(configJSON), &rec); err != nil {
		return nil, fmt.Errorf("corrupt plan config for %s: %w", id, err)
	}
	p.FreeCancelHoursBeforeCheckIn = rec.FreeCancelHoursBefore
	p.PenaltyPercent = rec.PenaltyPercent
	p.NonRefundable = rec.NonRefundable
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

// ListPlans returns all plans ordered by name.
func (s *Store) ListPlans(ctx context.Context) ([]booking.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, config_json, created_at, updated_at FROM rate_plans ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []booking.Plan
	for rows.Next() {
		var (
			p          booking.Plan
			configJSON string
			createdAt  string
			updatedAt  string
		)
		if err := rows.Scan(&p.ID, &p.Name, &configJSON, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		var rec planRecord
		if err := json.Unmarshal([]byte(configJSON), &rec); err != nil {
			return nil, fmt.Errorf("corrupt plan config for %s: %w", p.ID, err)
		}
		p.FreeCancelHoursBeforeCheckIn = rec.FreeCancelHoursBefore
		p.PenaltyPercent = rec.PenaltyPercent
		p.NonRefundable = rec.NonRefundable
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

type planRecord struct {
	FreeCancelHoursBefore int  `json:"free_cancel_hours_before_check_in"`
	PenaltyPercent        int  `json:"penalty_percent"`
	NonRefundable         bool `json:"non_refundable"`
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"booking_events", "bookings", "availability_ledger", "rate_calendar", "units", "rate_plans"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
