/*
handlers.go - HTTP API handlers for the booking engine

PURPOSE:
  Exposes the availability, rates, and booking engine via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Units:
    GET    /api/units                      List units (?property_id=)
    POST   /api/units                      Create or update a unit
    GET    /api/units/{id}                 Get unit details
    DELETE /api/units/{id}                 Deactivate a unit
    GET    /api/units/{id}/availability    Remaining capacity for a stay
    GET    /api/units/{id}/rates           Rate calendar entries for a range
    POST   /api/units/{id}/rates           Upsert rate calendar entries
    POST   /api/units/{id}/blocks          Place a maintenance hold
    DELETE /api/units/{id}/blocks          Release a maintenance hold

  Quotes:
    POST   /api/quotes                     Price a stay (no ledger touch)

  Plans:
    GET    /api/plans                      List cancellation plans
    POST   /api/plans                      Create plan from JSON config
    GET    /api/plans/{id}                 Get plan details

  Bookings:
    POST   /api/bookings                   Create booking (quote+reserve)
    GET    /api/bookings                   List bookings (?unit_id=)
    GET    /api/bookings/{id}              Get booking details
    POST   /api/bookings/{id}/cancel       Cancel + refund entitlement
    POST   /api/bookings/{id}/check-in     Mark guest arrived
    POST   /api/bookings/{id}/check-out    Mark stay completed
    GET    /api/bookings/{id}/events       Status-change feed

ERROR HANDLING:
  Domain errors map to HTTP status via their sentinel chains:
  - 400: Bad input, invalid stay range, missing rate configuration
  - 404: Unit or booking not found
  - 409: No availability, invalid state transition, capacity conflict
  - 422: Rate restriction violated (min-stay, CTA, CTD)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/engine"
	"github.com/warp/booking-engine/factory"
	"github.com/warp/booking-engine/rates"
	"github.com/warp/booking-engine/store/sqlite"
)

// capacityHorizonDays bounds how far ahead the capacity-shrink check scans
// the ledger. Bookings past this horizon are not accepted anyway.
const capacityHorizonDays = 730

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	Ledger      *engine.DefaultLedger
	Rates       *rates.Calendar
	Coordinator *booking.Coordinator
	PlanFactory *factory.PlanFactory
}

// NewHandler creates a new handler wired against the given store.
func NewHandler(store *sqlite.Store) *Handler {
	ledger := engine.NewLedger(store, store)
	calendar := rates.NewCalendar(store, store)
	return &Handler{
		Store:       store,
		Ledger:      ledger,
		Rates:       calendar,
		Coordinator: booking.NewCoordinator(ledger, calendar, store, store, store),
		PlanFactory: factory.NewPlanFactory(),
	}
}

// =============================================================================
// UNIT HANDLERS
// =============================================================================

// ListUnits returns all units, optionally filtered by property.
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	propertyID := engine.PropertyID(r.URL.Query().Get("property_id"))

	units, err := h.Store.ListUnits(r.Context(), propertyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list units", err)
		return
	}

	dtos := make([]UnitDTO, len(units))
	for i, u := range units {
		dtos[i] = toUnitDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetUnit returns one unit.
func (h *Handler) GetUnit(w http.ResponseWriter, r *http.Request) {
	id := engine.UnitID(chi.URLParam(r, "id"))

	unit, err := h.Store.GetUnit(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get unit", err)
		return
	}
	if unit == nil {
		writeError(w, http.StatusNotFound, "Unit not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toUnitDTO(*unit))
}

// CreateUnit creates or updates a unit. Shrinking capacity below what the
// ledger already holds for any future date is rejected.
func (h *Handler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" || req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "id, name and plan_id are required", nil)
		return
	}
	if req.Capacity < 1 {
		writeError(w, http.StatusBadRequest, "capacity must be at least 1", nil)
		return
	}
	if req.OverbookBuffer < 0 {
		writeError(w, http.StatusBadRequest, "overbook_buffer must not be negative", nil)
		return
	}
	switch engine.UnitKind(req.Kind) {
	case engine.UnitRoomCategory, engine.UnitTable, engine.UnitServiceSlot:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown unit kind %q", req.Kind), nil)
		return
	}

	plan, err := h.Store.GetPlan(ctx, engine.PlanID(req.PlanID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load plan", err)
		return
	}
	if plan == nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Rate plan %q does not exist", req.PlanID), nil)
		return
	}

	unit := engine.InventoryUnit{
		ID:              engine.UnitID(req.ID),
		PropertyID:      engine.PropertyID(req.PropertyID),
		Name:            req.Name,
		Kind:            engine.UnitKind(req.Kind),
		Capacity:        engine.Quantity(req.Capacity),
		OverbookBuffer:  engine.Quantity(req.OverbookBuffer),
		PricingCurrency: engine.Currency(req.Currency),
		PlanID:          engine.PlanID(req.PlanID),
		Active:          true,
	}
	if req.DefaultPrice != nil {
		val, err := decimal.NewFromString(*req.DefaultPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "default_price must be a decimal string", err)
			return
		}
		if val.IsNegative() {
			writeError(w, http.StatusBadRequest, "default_price must not be negative", nil)
			return
		}
		price := engine.Money{Value: val, Currency: unit.PricingCurrency}
		unit.DefaultPrice = &price
	}

	// A capacity shrink must be reconciled against existing reservations.
	existing, err := h.Store.GetUnit(ctx, unit.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load unit", err)
		return
	}
	if existing != nil {
		unit.CreatedAt = existing.CreatedAt
		if unit.SellableCapacity() < existing.SellableCapacity() {
			today := engine.Today()
			horizon := engine.StayRange{CheckIn: today, CheckOut: today.AddDays(capacityHorizonDays)}
			if err := h.Ledger.VerifyCapacity(ctx, unit.ID, horizon, unit.SellableCapacity()); err != nil {
				writeDomainError(w, "Capacity change rejected", err)
				return
			}
		}
	}

	if err := h.Store.SaveUnit(ctx, unit); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save unit", err)
		return
	}

	saved, err := h.Store.GetUnit(ctx, unit.ID)
	if err != nil || saved == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload unit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUnitDTO(*saved))
}

// DeactivateUnit marks a unit inactive. Existing bookings are untouched.
func (h *Handler) DeactivateUnit(w http.ResponseWriter, r *http.Request) {
	id := engine.UnitID(chi.URLParam(r, "id"))

	if err := h.Store.DeactivateUnit(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to deactivate unit", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": string(id), "active": false})
}

// =============================================================================
// AVAILABILITY HANDLERS
// =============================================================================

// GetAvailability returns remaining capacity for a stay.
// GET /api/units/{id}/availability?check_in=...&check_out=...&quantity=N
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	id := engine.UnitID(chi.URLParam(r, "id"))

	stay, ok := parseStayQuery(w, r)
	if !ok {
		return
	}
	qty := engine.Quantity(1)
	if q := r.URL.Query().Get("quantity"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "quantity must be a positive integer", err)
			return
		}
		qty = engine.Quantity(n)
	}

	availability, err := h.Ledger.CheckAvailability(r.Context(), id, stay, qty)
	if err != nil {
		writeDomainError(w, "Failed to check availability", err)
		return
	}
	writeJSON(w, http.StatusOK, toAvailabilityDTO(availability, qty))
}

// PlaceBlock places a maintenance hold on a unit for a date range.
func (h *Handler) PlaceBlock(w http.ResponseWriter, r *http.Request) {
	id := engine.UnitID(chi.URLParam(r, "id"))

	stay, qty, ok := parseBlockBody(w, r)
	if !ok {
		return
	}

	blocked, conflicts, err := h.Ledger.Block(r.Context(), id, stay, qty)
	if err != nil {
		writeDomainError(w, "Failed to place block", err)
		return
	}
	if !blocked {
		writeError(w, http.StatusConflict, "Insufficient capacity to block", &engine.NoAvailabilityError{
			UnitID: id, Stay: stay, Quantity: qty, Dates: conflicts,
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"unit_id":   string(id),
		"check_in":  stay.CheckIn.String(),
		"check_out": stay.CheckOut.String(),
		"quantity":  int(qty),
	})
}

// ReleaseBlock releases a maintenance hold.
func (h *Handler) ReleaseBlock(w http.ResponseWriter, r *http.Request) {
	id := engine.UnitID(chi.URLParam(r, "id"))

	stay, qty, ok := parseBlockBody(w, r)
	if !ok {
		return
	}

	if err := h.Ledger.Unblock(r.Context(), id, stay, qty); err != nil {
		writeDomainError(w, "Failed to release block", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"unit_id":   string(id),
		"check_in":  stay.CheckIn.String(),
		"check_out": stay.CheckOut.String(),
		"quantity":  int(qty),
	})
}

func parseBlockBody(w http.ResponseWriter, r *http.Request) (engine.StayRange, engine.Quantity, bool) {
	var req BlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return engine.StayRange{}, 0, false
	}
	stay, ok := parseStay(w, req.CheckIn, req.CheckOut)
	if !ok {
		return engine.StayRange{}, 0, false
	}
	qty := engine.Quantity(req.Quantity)
	if qty < 1 {
		qty = 1
	}
	return stay, qty, true
}

// =============================================================================
// RATE HANDLERS
// =============================================================================

// GetRates returns calendar entries for a range.
// GET /api/units/{id}/rates?check_in=...&check_out=...
func (h *Handler) GetRates(w http.ResponseWriter, r *http.Request) {
	id := engine.UnitID(chi.URLParam(r, "id"))

	stay, ok := parseStayQuery(w, r)
	if !ok {
		return
	}

	entries, err := h.Store.GetEntries(r.Context(), id, stay)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get rates", err)
		return
	}

	dtos := make([]RateEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toRateEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertRates writes calendar entries for a unit. Each entry replaces the
// single row for its date.
func (h *Handler) UpsertRates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := engine.UnitID(chi.URLParam(r, "id"))

	var req UpsertRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Entries) == 0 {
		writeError(w, http.StatusBadRequest, "At least one entry is required", nil)
		return
	}

	unit, err := h.Store.GetUnit(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load unit", err)
		return
	}
	if unit == nil {
		writeError(w, http.StatusNotFound, "Unit not found", nil)
		return
	}

	for _, in := range req.Entries {
		date, err := engine.ParseDate(in.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid date: %s", in.Date), err)
			return
		}
		price, err := decimal.NewFromString(in.Price)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid price for %s", in.Date), err)
			return
		}
		entry := rates.Entry{
			UnitID:            id,
			Date:              date,
			Price:             engine.Money{Value: price, Currency: unit.PricingCurrency},
			MinStayNights:     in.MinStayNights,
			ClosedToArrival:   in.ClosedToArrival,
			ClosedToDeparture: in.ClosedToDeparture,
		}
		if err := h.Rates.Upsert(ctx, entry); err != nil {
			writeDomainError(w, fmt.Sprintf("Failed to upsert rate for %s", in.Date), err)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"unit_id": string(id), "entries": len(req.Entries)})
}

// =============================================================================
// QUOTE HANDLERS
// =============================================================================

// CreateQuote prices a stay without touching the ledger.
func (h *Handler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	stay, ok := parseStay(w, req.CheckIn, req.CheckOut)
	if !ok {
		return
	}

	quote, err := h.Rates.Quote(r.Context(), engine.UnitID(req.UnitID), stay)
	if err != nil {
		writeDomainError(w, "Failed to quote stay", err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteDTO(quote))
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns all cancellation plans.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.Store.ListPlans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list plans", err)
		return
	}

	dtos := make([]PlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = toPlanDTO(h.PlanFactory, p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPlan returns one plan.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := engine.PlanID(chi.URLParam(r, "id"))

	plan, err := h.Store.GetPlan(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get plan", err)
		return
	}
	if plan == nil {
		writeError(w, http.StatusNotFound, "Plan not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(h.PlanFactory, *plan))
}

// CreatePlan creates a plan from its JSON config. Existing bookings keep
// their snapshot; only future bookings see the new terms.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	plan, err := h.PlanFactory.FromJSON(req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan config", err)
		return
	}

	if err := h.Store.SavePlan(r.Context(), *plan); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save plan", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPlanDTO(h.PlanFactory, *plan))
}

func toPlanDTO(f *factory.PlanFactory, p booking.Plan) PlanDTO {
	dto := PlanDTO{Config: f.ToJSON(p)}
	if !p.CreatedAt.IsZero() {
		dto.CreatedAt = p.CreatedAt.Format(timeRFC3339)
	}
	if !p.UpdatedAt.IsZero() {
		dto.UpdatedAt = p.UpdatedAt.Format(timeRFC3339)
	}
	return dto
}

// =============================================================================
// BOOKING HANDLERS
// =============================================================================

// CreateBooking runs the quote -> reserve -> persist sequence.
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.GuestRef == "" {
		writeError(w, http.StatusBadRequest, "guest_ref is required", nil)
		return
	}
	stay, ok := parseStay(w, req.CheckIn, req.CheckOut)
	if !ok {
		return
	}

	b, err := h.Coordinator.CreateBooking(r.Context(), booking.CreateBookingInput{
		UnitID:   engine.UnitID(req.UnitID),
		GuestRef: engine.GuestRef(req.GuestRef),
		Stay:     stay,
		Quantity: engine.Quantity(req.Quantity),
	})
	if err != nil {
		writeDomainError(w, "Failed to create booking", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingDTO(*b))
}

// ListBookings returns bookings, optionally for one unit.
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	unitID := engine.UnitID(r.URL.Query().Get("unit_id"))

	bookings, err := h.Store.ListBookings(r.Context(), unitID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bookings", err)
		return
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, b := range bookings {
		dtos[i] = toBookingDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBooking returns one booking.
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id := engine.BookingID(chi.URLParam(r, "id"))

	b, err := h.Store.GetBooking(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get booking", err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "Booking not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(*b))
}

// CancelBooking cancels a booking and returns the refund entitlement.
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id := engine.BookingID(chi.URLParam(r, "id"))

	refund, err := h.Coordinator.CancelBooking(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to cancel booking", err)
		return
	}
	writeJSON(w, http.StatusOK, toRefundDTO(refund))
}

// CheckInBooking marks the guest as arrived. Idempotent.
func (h *Handler) CheckInBooking(w http.ResponseWriter, r *http.Request) {
	id := engine.BookingID(chi.URLParam(r, "id"))

	b, err := h.Coordinator.CheckIn(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to check in", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(*b))
}

// CheckOutBooking marks the stay completed. Idempotent.
func (h *Handler) CheckOutBooking(w http.ResponseWriter, r *http.Request) {
	id := engine.BookingID(chi.URLParam(r, "id"))

	b, err := h.Coordinator.Complete(r.Context(), id, engine.Today())
	if err != nil {
		writeDomainError(w, "Failed to check out", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDTO(*b))
}

// ListBookingEvents returns a booking's status-change feed.
func (h *Handler) ListBookingEvents(w http.ResponseWriter, r *http.Request) {
	id := engine.BookingID(chi.URLParam(r, "id"))

	events, err := h.Store.ListEvents(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events", err)
		return
	}

	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toEventDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ResetDatabase clears all data (dev/demo only).
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// HELPERS
// =============================================================================

const timeRFC3339 = "2006-01-02T15:04:05Z07:00"

func parseStay(w http.ResponseWriter, checkIn, checkOut string) (engine.StayRange, bool) {
	ci, err := engine.ParseDate(checkIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid check_in (use YYYY-MM-DD)", err)
		return engine.StayRange{}, false
	}
	co, err := engine.ParseDate(checkOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid check_out (use YYYY-MM-DD)", err)
		return engine.StayRange{}, false
	}
	stay, err := engine.NewStayRange(ci, co)
	if err != nil {
		writeError(w, http.StatusBadRequest, "check_out must be after check_in", err)
		return engine.StayRange{}, false
	}
	return stay, true
}

func parseStayQuery(w http.ResponseWriter, r *http.Request) (engine.StayRange, bool) {
	return parseStay(w, r.URL.Query().Get("check_in"), r.URL.Query().Get("check_out"))
}

// writeDomainError maps domain errors to HTTP status codes. Infrastructure
// faults stay 500; business outcomes become 4xx.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, engine.ErrRestrictionViolated):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case errors.Is(err, engine.ErrNoAvailability),
		errors.Is(err, engine.ErrInvalidState),
		errors.Is(err, engine.ErrCapacityImmutable),
		engine.IsRetryable(err):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, engine.ErrInvalidStayRange),
		errors.Is(err, engine.ErrRateNotConfigured):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
