/*
scenarios_test.go - Tests for demo scenario loading

Tests for:
- Scenario listing
- Loading a scenario end-to-end (units, plans, rates become bookable)
- Reset-before-load semantics
*/
package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/booking-engine/engine"
)

func TestScenarios_List(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	scenarios := decode[[]ScenarioDTO](t, rec)
	require.Len(t, scenarios, 4)

	ids := make(map[string]bool)
	for _, s := range scenarios {
		ids[s.ID] = true
	}
	for _, want := range []string{"city-hotel", "boutique", "non-refundable", "restaurant"} {
		assert.True(t, ids[want], "missing scenario %s", want)
	}
}

func TestScenarios_LoadCityHotel_IsBookable(t *testing.T) {
	// GIVEN: The city-hotel scenario loaded
	// THEN: Its units exist and a quote against the seeded rates succeeds

	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{
		ScenarioID: "city-hotel",
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/units", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	units := decode[[]UnitDTO](t, rec)
	require.Len(t, units, 2)

	// Rates are seeded from today, so a near-future stay quotes cleanly.
	checkIn := engine.Today().AddDays(2)
	rec = doJSON(t, router, http.MethodPost, "/api/quotes", QuoteRequest{
		UnitID:   units[0].ID,
		CheckIn:  checkIn.String(),
		CheckOut: checkIn.AddDays(2).String(),
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())
	quote := decode[QuoteDTO](t, rec)
	assert.Equal(t, "EUR", quote.Total.Currency)
}

func TestScenarios_Load_ResetsPreviousData(t *testing.T) {
	// Loading a scenario starts from a clean slate.

	h, router := newTestServer(t)
	seedRoom(t, h)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{
		ScenarioID: "boutique",
	})
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/units/std-double", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScenarios_Load_Unknown_400(t *testing.T) {
	_, router := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{
		ScenarioID: "moon-base",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
