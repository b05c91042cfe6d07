/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates plans, units, rate
	calendar entries, and sometimes bookings that demonstrate specific
	features.

AVAILABLE SCENARIOS:

	city-hotel:      Two room categories, seasonal rates, weekend min-stay
	boutique:        Single room category with overbooking buffer
	non-refundable:  Discounted non-refundable plan next to a flexible one
	restaurant:      Tables as inventory units with default pricing

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create cancellation plans via factory
 3. Create inventory units
 4. Write rate calendar entries (prices + restrictions)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "city-hotel"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - factory/plan.go: Plan JSON presets
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/booking-engine/engine"
	"github.com/warp/booking-engine/rates"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

var scenarios = []ScenarioDTO{
	{
		ID:          "city-hotel",
		Name:        "City Hotel",
		Description: "Two room categories, seasonal rates, weekend minimum stay",
	},
	{
		ID:          "boutique",
		Name:        "Boutique Hotel",
		Description: "Single room category selling one unit above capacity",
	},
	{
		ID:          "non-refundable",
		Name:        "Non-Refundable Rate",
		Description: "Discounted non-refundable plan next to a flexible one",
	},
	{
		ID:          "restaurant",
		Name:        "Restaurant Tables",
		Description: "Tables as inventory units priced by default rate",
	},
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario resets the database and loads the selected scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	loaders := map[string]func(context.Context, *Handler) error{
		"city-hotel":     loadCityHotelScenario,
		"boutique":       loadBoutiqueScenario,
		"non-refundable": loadNonRefundableScenario,
		"restaurant":     loadRestaurantScenario,
	}
	loader, ok := loaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown scenario %q", req.ScenarioID), nil)
		return
	}

	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := loader(ctx, h); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func seedPlan(ctx context.Context, h *Handler, jsonStr string) error {
	plan, err := h.PlanFactory.ParsePlan(jsonStr)
	if err != nil {
		return err
	}
	return h.Store.SavePlan(ctx, *plan)
}

func seedUnit(ctx context.Context, h *Handler, unit engine.InventoryUnit) error {
	unit.Active = true
	return h.Store.SaveUnit(ctx, unit)
}

func seedRates(ctx context.Context, h *Handler, unitID engine.UnitID, from engine.Date, days int, price string, currency engine.Currency) error {
	for i := 0; i < days; i++ {
		entry := rates.Entry{
			UnitID:        unitID,
			Date:          from.AddDays(i),
			Price:         engine.NewMoney(price, currency),
			MinStayNights: 1,
		}
		if err := h.Store.UpsertEntry(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func loadCityHotelScenario(ctx context.Context, h *Handler) error {
	if err := seedPlan(ctx, h, flexiblePlan()); err != nil {
		return err
	}

	standard := engine.InventoryUnit{
		ID:              "std-double",
		PropertyID:      "city-hotel",
		Name:            "Standard Double",
		Kind:            engine.UnitRoomCategory,
		Capacity:        12,
		PricingCurrency: "EUR",
		PlanID:          "flexible",
	}
	deluxe := engine.InventoryUnit{
		ID:              "deluxe-king",
		PropertyID:      "city-hotel",
		Name:            "Deluxe King",
		Kind:            engine.UnitRoomCategory,
		Capacity:        4,
		PricingCurrency: "EUR",
		PlanID:          "flexible",
	}
	for _, u := range []engine.InventoryUnit{standard, deluxe} {
		if err := seedUnit(ctx, h, u); err != nil {
			return err
		}
	}

	start := engine.Today()
	if err := seedRates(ctx, h, standard.ID, start, 60, "95.00", "EUR"); err != nil {
		return err
	}
	if err := seedRates(ctx, h, deluxe.ID, start, 60, "180.00", "EUR"); err != nil {
		return err
	}
	// Weekend pricing and minimum stay on the standard category
	for i := 0; i < 60; i++ {
		d := start.AddDays(i)
		wd := d.Time.Weekday()
		if wd != 5 && wd != 6 { // Friday, Saturday
			continue
		}
		entry := rates.Entry{
			UnitID:        standard.ID,
			Date:          d,
			Price:         engine.NewMoney("120.00", "EUR"),
			MinStayNights: 2,
		}
		if err := h.Store.UpsertEntry(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

func loadBoutiqueScenario(ctx context.Context, h *Handler) error {
	if err := seedPlan(ctx, h, flexiblePlan()); err != nil {
		return err
	}

	suite := engine.InventoryUnit{
		ID:              "garden-suite",
		PropertyID:      "boutique",
		Name:            "Garden Suite",
		Kind:            engine.UnitRoomCategory,
		Capacity:        3,
		OverbookBuffer:  1, // deliberately sells one above physical capacity
		PricingCurrency: "EUR",
		PlanID:          "flexible",
	}
	if err := seedUnit(ctx, h, suite); err != nil {
		return err
	}
	return seedRates(ctx, h, suite.ID, engine.Today(), 30, "210.00", "EUR")
}

func loadNonRefundableScenario(ctx context.Context, h *Handler) error {
	if err := seedPlan(ctx, h, flexiblePlan()); err != nil {
		return err
	}
	if err := seedPlan(ctx, h, nonRefundablePlan()); err != nil {
		return err
	}

	flexRoom := engine.InventoryUnit{
		ID:              "flex-room",
		PropertyID:      "city-hotel",
		Name:            "Flexible Room",
		Kind:            engine.UnitRoomCategory,
		Capacity:        6,
		PricingCurrency: "EUR",
		PlanID:          "flexible",
	}
	saverRoom := engine.InventoryUnit{
		ID:              "saver-room",
		PropertyID:      "city-hotel",
		Name:            "Saver Room",
		Kind:            engine.UnitRoomCategory,
		Capacity:        6,
		PricingCurrency: "EUR",
		PlanID:          "non-refundable",
	}
	for _, u := range []engine.InventoryUnit{flexRoom, saverRoom} {
		if err := seedUnit(ctx, h, u); err != nil {
			return err
		}
	}

	start := engine.Today()
	if err := seedRates(ctx, h, flexRoom.ID, start, 30, "110.00", "EUR"); err != nil {
		return err
	}
	// Same room, 20% cheaper, no refund
	return seedRates(ctx, h, saverRoom.ID, start, 30, "88.00", "EUR")
}

func loadRestaurantScenario(ctx context.Context, h *Handler) error {
	if err := seedPlan(ctx, h, flexiblePlan()); err != nil {
		return err
	}

	window := engine.NewMoney("25.00", "EUR")
	chefs := engine.NewMoney("60.00", "EUR")
	tables := []engine.InventoryUnit{
		{
			ID:              "window-table",
			PropertyID:      "bistro",
			Name:            "Window Table",
			Kind:            engine.UnitTable,
			Capacity:        5,
			PricingCurrency: "EUR",
			DefaultPrice:    &window,
			PlanID:          "flexible",
		},
		{
			ID:              "chefs-counter",
			PropertyID:      "bistro",
			Name:            "Chef's Counter",
			Kind:            engine.UnitTable,
			Capacity:        8,
			PricingCurrency: "EUR",
			DefaultPrice:    &chefs,
			PlanID:          "flexible",
		},
	}
	for _, u := range tables {
		if err := seedUnit(ctx, h, u); err != nil {
			return err
		}
	}
	// No calendar entries: the default price covers every date.
	return nil
}

// =============================================================================
// PLAN PRESETS
// =============================================================================

func flexiblePlan() string {
	return `{
		"id": "flexible",
		"name": "Flexible",
		"free_cancel_hours_before_check_in": 48,
		"penalty_percent": 50,
		"non_refundable": false
	}`
}

func nonRefundablePlan() string {
	return `{
		"id": "non-refundable",
		"name": "Non-Refundable Saver",
		"free_cancel_hours_before_check_in": 0,
		"penalty_percent": 100,
		"non_refundable": true
	}`
}
