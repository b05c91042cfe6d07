/*
sqlite_test.go - Tests for the SQLite persistence layer

Tests for:
- Versioned ledger row writes (optimistic concurrency)
- Atomic multi-row transactions (WithTx)
- Booking round-trips including snapshot and per-night JSON
- Open-booking queries for the checkout sweeper
*/
package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/engine"
	"github.com/warp/booking-engine/rates"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func day(t *testing.T, s string) engine.Date {
	t.Helper()
	d, err := engine.ParseDate(s)
	require.NoError(t, err)
	return d
}

func span(t *testing.T, checkIn, checkOut string) engine.StayRange {
	t.Helper()
	r, err := engine.NewStayRange(day(t, checkIn), day(t, checkOut))
	require.NoError(t, err)
	return r
}

// =============================================================================
// LEDGER ROWS
// =============================================================================

func TestUpsertRow_InsertThenVersionedUpdate(t *testing.T) {
	// GIVEN: A fresh row inserted at expectedVersion 0
	// THEN: The store assigns version 1 on insert and 2 on the next
	// accepted update; whatever the caller left in row.Version is ignored

	store := newStore(t)
	ctx := context.Background()

	row := engine.LedgerRow{UnitID: "room-a", Date: day(t, "2026-06-10"), Reserved: 1, Version: 42}
	require.NoError(t, store.UpsertRow(ctx, row, 0))

	rows, err := store.GetRows(ctx, "room-a", span(t, "2026-06-10", "2026-06-11"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, engine.Quantity(1), rows[0].Reserved)
	assert.Equal(t, int64(1), rows[0].Version)

	rows[0].Reserved = 2
	require.NoError(t, store.UpsertRow(ctx, rows[0], rows[0].Version))

	rows, err = store.GetRows(ctx, "room-a", span(t, "2026-06-10", "2026-06-11"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, engine.Quantity(2), rows[0].Reserved)
	assert.Equal(t, int64(2), rows[0].Version)
}

func TestUpsertRow_StaleVersion_Rejected(t *testing.T) {
	// GIVEN: A row already at version 1
	// WHEN: Writing with a stale expected version
	// THEN: ErrConcurrentModification, the stored row is untouched

	store := newStore(t)
	ctx := context.Background()

	row := engine.LedgerRow{UnitID: "room-a", Date: day(t, "2026-06-10"), Reserved: 1}
	require.NoError(t, store.UpsertRow(ctx, row, 0))

	row.Reserved = 5
	err := store.UpsertRow(ctx, row, 99)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrConcurrentModification)

	rows, err := store.GetRows(ctx, "room-a", span(t, "2026-06-10", "2026-06-11"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, engine.Quantity(1), rows[0].Reserved)
}

func TestUpsertRow_DuplicateInsert_Rejected(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	row := engine.LedgerRow{UnitID: "room-a", Date: day(t, "2026-06-10"), Reserved: 1}
	require.NoError(t, store.UpsertRow(ctx, row, 0))

	err := store.UpsertRow(ctx, row, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrConcurrentModification)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that writes one row then fails
	// THEN: Neither write survives

	store := newStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(tx engine.LedgerStore) error {
		row := engine.LedgerRow{UnitID: "room-a", Date: day(t, "2026-06-10"), Reserved: 1}
		if err := tx.UpsertRow(ctx, row, 0); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := store.GetRows(ctx, "room-a", span(t, "2026-06-10", "2026-06-11"))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWithTx_CommitsAllRows(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx engine.LedgerStore) error {
		for _, d := range []string{"2026-06-10", "2026-06-11", "2026-06-12"} {
			row := engine.LedgerRow{UnitID: "room-a", Date: day(t, d), Reserved: 1}
			if err := tx.UpsertRow(ctx, row, 0); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	rows, err := store.GetRows(ctx, "room-a", span(t, "2026-06-10", "2026-06-13"))
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

// =============================================================================
// BOOKINGS
// =============================================================================

func TestBooking_RoundTrip(t *testing.T) {
	// The snapshot and per-night breakdown survive a save/load cycle intact.

	store := newStore(t)
	ctx := context.Background()

	created := time.Date(2026, 6, 1, 10, 30, 0, 0, time.UTC)
	b := booking.Booking{
		ID:          "bk-1",
		UnitID:      "room-a",
		GuestRef:    "guest-7",
		Stay:        span(t, "2026-06-10", "2026-06-12"),
		Quantity:    1,
		Status:      booking.StatusConfirmed,
		QuotedTotal: engine.NewMoney("220.50", "EUR"),
		PerNight: []rates.NightPrice{
			{Date: day(t, "2026-06-10"), Price: engine.NewMoney("100.00", "EUR")},
			{Date: day(t, "2026-06-11"), Price: engine.NewMoney("120.50", "EUR")},
		},
		PolicySnapshot: booking.PolicySnapshot{
			PlanID:          "flexible",
			FreeCancelUntil: time.Date(2026, 6, 8, 0, 0, 0, 0, time.UTC),
			PenaltyPercent:  50,
		},
		CreatedAt: created,
	}
	require.NoError(t, store.SaveBooking(ctx, b))

	got, err := store.GetBooking(ctx, "bk-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, b.GuestRef, got.GuestRef)
	assert.Equal(t, "2026-06-10", got.Stay.CheckIn.String())
	assert.Equal(t, "2026-06-12", got.Stay.CheckOut.String())
	assert.True(t, got.QuotedTotal.Equal(b.QuotedTotal))
	require.Len(t, got.PerNight, 2)
	assert.True(t, got.PerNight[1].Price.Equal(engine.NewMoney("120.50", "EUR")))
	assert.Equal(t, engine.PlanID("flexible"), got.PolicySnapshot.PlanID)
	assert.True(t, got.PolicySnapshot.FreeCancelUntil.Equal(b.PolicySnapshot.FreeCancelUntil))
	assert.Equal(t, 50, got.PolicySnapshot.PenaltyPercent)
}

func TestBooking_GetMissing_ReturnsNil(t *testing.T) {
	store := newStore(t)

	got, err := store.GetBooking(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestListOpenBookingsBefore_FiltersStatusAndDate(t *testing.T) {
	// Only confirmed/checked-in bookings with checkout <= cutoff come back.

	store := newStore(t)
	ctx := context.Background()

	save := func(id string, status booking.Status, checkOut string) {
		b := booking.Booking{
			ID: engine.BookingID(id), UnitID: "room-a", GuestRef: "g",
			Stay:        span(t, "2026-06-01", checkOut),
			Quantity:    1,
			Status:      status,
			QuotedTotal: engine.NewMoney("100.00", "EUR"),
			CreatedAt:   time.Now().UTC(),
		}
		require.NoError(t, store.SaveBooking(ctx, b))
	}
	save("past-confirmed", booking.StatusConfirmed, "2026-06-05")
	save("past-checked-in", booking.StatusCheckedIn, "2026-06-06")
	save("past-cancelled", booking.StatusCancelled, "2026-06-05")
	save("past-completed", booking.StatusCompleted, "2026-06-05")
	save("future-confirmed", booking.StatusConfirmed, "2026-07-01")

	open, err := store.ListOpenBookingsBefore(ctx, day(t, "2026-06-06"))
	require.NoError(t, err)

	ids := make(map[engine.BookingID]bool)
	for _, b := range open {
		ids[b.ID] = true
	}
	assert.Len(t, open, 2)
	assert.True(t, ids["past-confirmed"])
	assert.True(t, ids["past-checked-in"])
}

// =============================================================================
// UNITS AND PLANS
// =============================================================================

func TestUnit_RoundTripWithDefaultPrice(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	price := engine.NewMoney("75.50", "EUR")
	unit := engine.InventoryUnit{
		ID: "room-a", PropertyID: "prop-1", Name: "Room A",
		Kind: engine.UnitRoomCategory, Capacity: 2, OverbookBuffer: 1,
		PricingCurrency: "EUR", DefaultPrice: &price, PlanID: "flexible",
		Active: true,
	}
	require.NoError(t, store.SaveUnit(ctx, unit))

	got, err := store.GetUnit(ctx, "room-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, engine.Quantity(2), got.Capacity)
	assert.Equal(t, engine.Quantity(1), got.OverbookBuffer)
	require.NotNil(t, got.DefaultPrice)
	assert.True(t, got.DefaultPrice.Equal(price))
	assert.False(t, got.CreatedAt.IsZero())
}

func TestUnit_CorruptStoredPrice_SurfacesError(t *testing.T) {
	// GIVEN: A unit whose stored default price is not a valid decimal
	// THEN: GetUnit reports corruption instead of silently reading 0.00

	store := newStore(t)
	ctx := context.Background()

	price := engine.NewMoney("75.50", "EUR")
	require.NoError(t, store.SaveUnit(ctx, engine.InventoryUnit{
		ID: "room-a", PropertyID: "prop-1", Name: "Room A",
		Kind: engine.UnitRoomCategory, Capacity: 2,
		PricingCurrency: "EUR", DefaultPrice: &price, PlanID: "flexible",
		Active: true,
	}))
	_, err := store.db.ExecContext(ctx,
		"UPDATE units SET default_price = 'garbage' WHERE id = ?", "room-a")
	require.NoError(t, err)

	got, err := store.GetUnit(ctx, "room-a")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "corrupt default price")
}

func TestRateEntries_CorruptStoredPrice_SurfacesError(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertEntry(ctx, rates.Entry{
		UnitID: "room-a", Date: day(t, "2026-06-10"),
		Price: engine.NewMoney("100.00", "EUR"), MinStayNights: 1,
	}))
	_, err := store.db.ExecContext(ctx,
		"UPDATE rate_calendar SET price = 'garbage' WHERE unit_id = ?", "room-a")
	require.NoError(t, err)

	entries, err := store.GetEntries(ctx, "room-a", span(t, "2026-06-10", "2026-06-11"))
	require.Error(t, err)
	assert.Nil(t, entries)
	assert.Contains(t, err.Error(), "corrupt rate price")
}

func TestPlan_RoundTrip(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	p := booking.Plan{
		ID: "saver", Name: "Saver",
		PenaltyPercent: 100, NonRefundable: true,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SavePlan(ctx, p))

	got, err := store.GetPlan(ctx, "saver")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.NonRefundable)
	assert.Equal(t, 100, got.PenaltyPercent)

	all, err := store.ListPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
