package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/booking-engine/engine"
	"github.com/warp/booking-engine/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestLedger(t *testing.T, capacity, buffer engine.Quantity) (*engine.DefaultLedger, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	unit := engine.InventoryUnit{
		ID:              "room-a",
		PropertyID:      "prop-1",
		Name:            "Room A",
		Kind:            engine.UnitRoomCategory,
		Capacity:        capacity,
		OverbookBuffer:  buffer,
		PricingCurrency: "EUR",
		PlanID:          "flexible",
		Active:          true,
	}
	require.NoError(t, mem.SaveUnit(context.Background(), unit))
	return engine.NewLedger(mem, mem), mem
}

func stay(t *testing.T, checkIn, checkOut string) engine.StayRange {
	t.Helper()
	ci, err := engine.ParseDate(checkIn)
	require.NoError(t, err)
	co, err := engine.ParseDate(checkOut)
	require.NoError(t, err)
	s, err := engine.NewStayRange(ci, co)
	require.NoError(t, err)
	return s
}

func remaining(t *testing.T, l *engine.DefaultLedger, s engine.StayRange, date string) engine.Quantity {
	t.Helper()
	avail, err := l.CheckAvailability(context.Background(), "room-a", s, 1)
	require.NoError(t, err)
	d, err := engine.ParseDate(date)
	require.NoError(t, err)
	q, ok := avail.RemainingByDate[d]
	require.True(t, ok, "no remaining entry for %s", date)
	return q
}

// =============================================================================
// RESERVE / RELEASE
// =============================================================================

func TestLedger_Reserve_ConsumesEveryNight(t *testing.T) {
	// GIVEN: A unit with capacity 2 and an empty ledger
	// WHEN: Reserving a 3-night stay
	// THEN: Every occupied night loses one unit; the checkout date is untouched

	ledger, _ := newTestLedger(t, 2, 0)
	ctx := context.Background()
	s := stay(t, "2026-06-10", "2026-06-13")

	ok, conflicts, err := ledger.Reserve(ctx, "room-a", s, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, conflicts)

	wide := stay(t, "2026-06-10", "2026-06-14")
	assert.Equal(t, engine.Quantity(1), remaining(t, ledger, wide, "2026-06-10"))
	assert.Equal(t, engine.Quantity(1), remaining(t, ledger, wide, "2026-06-11"))
	assert.Equal(t, engine.Quantity(1), remaining(t, ledger, wide, "2026-06-12"))
	// Half-open range: the checkout date is not occupied
	assert.Equal(t, engine.Quantity(2), remaining(t, ledger, wide, "2026-06-13"))
}

func TestLedger_Reserve_AllOrNothing(t *testing.T) {
	// GIVEN: Capacity 2, with the middle night already full
	// WHEN: Reserving a 3-night stay across it
	// THEN: The reserve fails on the full night and NO night is consumed

	ledger, _ := newTestLedger(t, 2, 0)
	ctx := context.Background()

	middle := stay(t, "2026-06-11", "2026-06-12")
	ok, _, err := ledger.Reserve(ctx, "room-a", middle, 2)
	require.NoError(t, err)
	require.True(t, ok)

	s := stay(t, "2026-06-10", "2026-06-13")
	ok, conflicts, err := ledger.Reserve(ctx, "room-a", s, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "2026-06-11", conflicts[0].String())

	// The surrounding nights were not touched
	assert.Equal(t, engine.Quantity(2), remaining(t, ledger, s, "2026-06-10"))
	assert.Equal(t, engine.Quantity(0), remaining(t, ledger, s, "2026-06-11"))
	assert.Equal(t, engine.Quantity(2), remaining(t, ledger, s, "2026-06-12"))
}

func TestLedger_ReserveRelease_RoundTrip(t *testing.T) {
	ledger, _ := newTestLedger(t, 2, 0)
	ctx := context.Background()
	s := stay(t, "2026-06-10", "2026-06-12")

	ok, _, err := ledger.Reserve(ctx, "room-a", s, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, engine.Quantity(0), remaining(t, ledger, s, "2026-06-10"))

	require.NoError(t, ledger.Release(ctx, "room-a", s, 2))
	assert.Equal(t, engine.Quantity(2), remaining(t, ledger, s, "2026-06-10"))
	assert.Equal(t, engine.Quantity(2), remaining(t, ledger, s, "2026-06-11"))
}

func TestLedger_Release_ClampsAtZero(t *testing.T) {
	// GIVEN: One unit reserved for one night
	// WHEN: Releasing more than was reserved
	// THEN: The count clamps at zero instead of going negative

	ledger, _ := newTestLedger(t, 2, 0)
	ctx := context.Background()
	s := stay(t, "2026-06-10", "2026-06-11")

	ok, _, err := ledger.Reserve(ctx, "room-a", s, 1)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, ledger.Release(ctx, "room-a", s, 2))
	assert.Equal(t, engine.Quantity(2), remaining(t, ledger, s, "2026-06-10"))
}

// =============================================================================
// BLOCKS
// =============================================================================

func TestLedger_Block_CountsAgainstCapacity(t *testing.T) {
	// GIVEN: Capacity 2 with one unit blocked for maintenance
	// WHEN: Reserving 2 units for the same night
	// THEN: The reserve fails; blocked capacity is not sellable

	ledger, _ := newTestLedger(t, 2, 0)
	ctx := context.Background()
	s := stay(t, "2026-06-10", "2026-06-11")

	ok, _, err := ledger.Block(ctx, "room-a", s, 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, conflicts, err := ledger.Reserve(ctx, "room-a", s, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, conflicts, 1)

	// One unit still fits
	ok, _, err = ledger.Reserve(ctx, "room-a", s, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// Unblock restores the unit
	require.NoError(t, ledger.Unblock(ctx, "room-a", s, 1))
	assert.Equal(t, engine.Quantity(1), remaining(t, ledger, s, "2026-06-10"))
}

// =============================================================================
// OVERBOOKING BUFFER
// =============================================================================

func TestLedger_OverbookBuffer_ExtendsSellableCapacity(t *testing.T) {
	// GIVEN: Physical capacity 3 with an overbook buffer of 1
	// WHEN: Reserving 4 units for one night
	// THEN: All 4 fit; the 5th does not

	ledger, _ := newTestLedger(t, 3, 1)
	ctx := context.Background()
	s := stay(t, "2026-06-10", "2026-06-11")

	ok, _, err := ledger.Reserve(ctx, "room-a", s, 4)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _, err = ledger.Reserve(ctx, "room-a", s, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

// =============================================================================
// UNIT LIFECYCLE
// =============================================================================

func TestLedger_Reserve_InactiveUnit_Rejected(t *testing.T) {
	ledger, mem := newTestLedger(t, 2, 0)
	ctx := context.Background()
	s := stay(t, "2026-06-10", "2026-06-11")

	require.NoError(t, mem.DeactivateUnit(ctx, "room-a"))

	_, _, err := ledger.Reserve(ctx, "room-a", s, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrUnitNotFound)
}

func TestLedger_Release_WorksOnInactiveUnit(t *testing.T) {
	// Cancelling a historical booking must release capacity even after the
	// unit has been deactivated.

	ledger, mem := newTestLedger(t, 2, 0)
	ctx := context.Background()
	s := stay(t, "2026-06-10", "2026-06-11")

	ok, _, err := ledger.Reserve(ctx, "room-a", s, 1)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, mem.DeactivateUnit(ctx, "room-a"))
	assert.NoError(t, ledger.Release(ctx, "room-a", s, 1))
}

func TestLedger_VerifyCapacity_RejectsShrinkBelowOccupied(t *testing.T) {
	ledger, _ := newTestLedger(t, 3, 0)
	ctx := context.Background()
	s := stay(t, "2026-06-10", "2026-06-12")

	ok, _, err := ledger.Reserve(ctx, "room-a", s, 2)
	require.NoError(t, err)
	require.True(t, ok)

	err = ledger.VerifyCapacity(ctx, "room-a", s, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrCapacityImmutable)

	assert.NoError(t, ledger.VerifyCapacity(ctx, "room-a", s, 2))
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestLedger_ConcurrentReserves_NeverOversell(t *testing.T) {
	// GIVEN: A single unit of capacity for one night
	// WHEN: 16 goroutines race to reserve it
	// THEN: Exactly one succeeds and the ledger never oversells

	ledger, _ := newTestLedger(t, 1, 0)
	ctx := context.Background()
	s := stay(t, "2026-06-10", "2026-06-11")

	const racers = 16
	var wg sync.WaitGroup
	results := make(chan bool, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := ledger.Reserve(ctx, "room-a", s, 1)
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, engine.Quantity(0), remaining(t, ledger, s, "2026-06-10"))
}

// =============================================================================
// STAY RANGE SEMANTICS
// =============================================================================

func TestStayRange_BackToBackStays_DoNotOverlap(t *testing.T) {
	first := stay(t, "2026-06-10", "2026-06-12")
	second := stay(t, "2026-06-12", "2026-06-14")

	assert.False(t, first.Overlaps(second))
	assert.Equal(t, 2, first.Nights())
}

func TestStayRange_EmptyOrInverted_Rejected(t *testing.T) {
	d := engine.NewDate(2026, time.June, 10)

	_, err := engine.NewStayRange(d, d)
	assert.ErrorIs(t, err, engine.ErrInvalidStayRange)

	_, err = engine.NewStayRange(d, d.AddDays(-1))
	assert.ErrorIs(t, err, engine.ErrInvalidStayRange)
}
