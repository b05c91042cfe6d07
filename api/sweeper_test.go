/*
sweeper_test.go - Tests for the checkout sweeper

Tests for:
- Completing open bookings past their checkout date
- Leaving future and cancelled bookings untouched
- Idempotency across overlapping sweeps
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/engine"
	"github.com/warp/booking-engine/rates"
)

// seedPastBooking creates a booking whose checkout date is in the past,
// seeding the rate calendar for the historical nights first.
func seedPastBooking(t *testing.T, h *Handler, nightsAgo int) *booking.Booking {
	t.Helper()
	ctx := context.Background()

	checkIn := engine.Today().AddDays(-nightsAgo)
	checkOut := checkIn.AddDays(1)
	for d := checkIn; d.Before(checkOut); d = d.AddDays(1) {
		require.NoError(t, h.Store.UpsertEntry(ctx, rates.Entry{
			UnitID: "std-double", Date: d,
			Price: engine.NewMoney("100.00", "EUR"), MinStayNights: 1,
		}))
	}
	stay, err := engine.NewStayRange(checkIn, checkOut)
	require.NoError(t, err)

	b, err := h.Coordinator.CreateBooking(ctx, booking.CreateBookingInput{
		UnitID: "std-double", GuestRef: "guest-past", Stay: stay, Quantity: 1,
	})
	require.NoError(t, err)
	return b
}

func TestSweeper_CompletesPastCheckouts(t *testing.T) {
	// GIVEN: One booking past its checkout and one still in the future
	// WHEN: Sweeping
	// THEN: Only the past booking flips to completed

	h, router := newTestServer(t)
	seedRoom(t, h)
	ctx := context.Background()

	past := seedPastBooking(t, h, 3)

	futureIn := engine.Today().AddDays(30)
	for d := futureIn; d.Before(futureIn.AddDays(2)); d = d.AddDays(1) {
		require.NoError(t, h.Store.UpsertEntry(ctx, rates.Entry{
			UnitID: "std-double", Date: d,
			Price: engine.NewMoney("100.00", "EUR"), MinStayNights: 1,
		}))
	}
	future := createBooking(t, router, futureIn.String(), futureIn.AddDays(2).String())

	sweeper := NewCheckoutSweeper(h.Store, h)
	sweeper.Sweep(ctx)

	got, err := h.Store.GetBooking(ctx, past.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, got.Status)

	rec := doJSON(t, router, http.MethodGet, "/api/bookings/"+future.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirmed", decode[BookingDTO](t, rec).Status)
}

func TestSweeper_SkipsCancelledBookings(t *testing.T) {
	h, _ := newTestServer(t)
	seedRoom(t, h)
	ctx := context.Background()

	past := seedPastBooking(t, h, 3)
	_, err := h.Coordinator.CancelBooking(ctx, past.ID)
	require.NoError(t, err)

	sweeper := NewCheckoutSweeper(h.Store, h)
	sweeper.Sweep(ctx)

	got, err := h.Store.GetBooking(ctx, past.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status)
}

func TestSweeper_RepeatSweep_IsIdempotent(t *testing.T) {
	h, _ := newTestServer(t)
	seedRoom(t, h)
	ctx := context.Background()

	past := seedPastBooking(t, h, 3)

	sweeper := NewCheckoutSweeper(h.Store, h)
	sweeper.Sweep(ctx)
	sweeper.Sweep(ctx)

	got, err := h.Store.GetBooking(ctx, past.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, got.Status)

	// One created event, one completed event, nothing duplicated.
	events, err := h.Store.ListEvents(ctx, past.ID)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
