/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND DATES:
  Money travels as a decimal string plus a currency code; floats never
  appear on the wire. Dates are YYYY-MM-DD strings, timestamps RFC3339.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON type
*/
package api

import (
	"time"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/engine"
	"github.com/warp/booking-engine/factory"
	"github.com/warp/booking-engine/rates"
)

// =============================================================================
// MONEY
// =============================================================================

// MoneyDTO carries an exact decimal amount.
type MoneyDTO struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func toMoneyDTO(m engine.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Value.String(), Currency: string(m.Currency)}
}

// =============================================================================
// UNITS
// =============================================================================

// UnitDTO represents an inventory unit in API responses.
type UnitDTO struct {
	ID             string    `json:"id"`
	PropertyID     string    `json:"property_id"`
	Name           string    `json:"name"`
	Kind           string    `json:"kind"`
	Capacity       int       `json:"capacity"`
	OverbookBuffer int       `json:"overbook_buffer"`
	Currency       string    `json:"currency"`
	DefaultPrice   *MoneyDTO `json:"default_price,omitempty"`
	PlanID         string    `json:"plan_id"`
	Active         bool      `json:"active"`
	CreatedAt      string    `json:"created_at,omitempty"`
}

// CreateUnitRequest is the request to create or update a unit.
type CreateUnitRequest struct {
	ID             string  `json:"id"`
	PropertyID     string  `json:"property_id"`
	Name           string  `json:"name"`
	Kind           string  `json:"kind"`
	Capacity       int     `json:"capacity"`
	OverbookBuffer int     `json:"overbook_buffer"`
	Currency       string  `json:"currency"`
	DefaultPrice   *string `json:"default_price,omitempty"`
	PlanID         string  `json:"plan_id"`
}

func toUnitDTO(u engine.InventoryUnit) UnitDTO {
	dto := UnitDTO{
		ID:             string(u.ID),
		PropertyID:     string(u.PropertyID),
		Name:           u.Name,
		Kind:           string(u.Kind),
		Capacity:       int(u.Capacity),
		OverbookBuffer: int(u.OverbookBuffer),
		Currency:       string(u.PricingCurrency),
		PlanID:         string(u.PlanID),
		Active:         u.Active,
		CreatedAt:      u.CreatedAt.Format(time.RFC3339),
	}
	if u.DefaultPrice != nil {
		m := toMoneyDTO(*u.DefaultPrice)
		dto.DefaultPrice = &m
	}
	return dto
}

// =============================================================================
// AVAILABILITY
// =============================================================================

// AvailabilityDTO is the non-mutating remaining-capacity view.
type AvailabilityDTO struct {
	UnitID    string         `json:"unit_id"`
	CheckIn   string         `json:"check_in"`
	CheckOut  string         `json:"check_out"`
	Quantity  int            `json:"quantity"`
	Available bool           `json:"available"`
	Remaining map[string]int `json:"remaining_by_date"`
}

func toAvailabilityDTO(a *engine.Availability, qty engine.Quantity) AvailabilityDTO {
	remaining := make(map[string]int, len(a.RemainingByDate))
	for d, q := range a.RemainingByDate {
		remaining[d.String()] = int(q)
	}
	return AvailabilityDTO{
		UnitID:    string(a.UnitID),
		CheckIn:   a.Stay.CheckIn.String(),
		CheckOut:  a.Stay.CheckOut.String(),
		Quantity:  int(qty),
		Available: a.Available,
		Remaining: remaining,
	}
}

// BlockRequest is a maintenance hold (or its release).
type BlockRequest struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Quantity int    `json:"quantity"`
}

// =============================================================================
// RATES
// =============================================================================

// RateEntryDTO represents a rate calendar row.
type RateEntryDTO struct {
	UnitID            string   `json:"unit_id"`
	Date              string   `json:"date"`
	Price             MoneyDTO `json:"price"`
	MinStayNights     int      `json:"min_stay_nights"`
	ClosedToArrival   bool     `json:"closed_to_arrival"`
	ClosedToDeparture bool     `json:"closed_to_departure"`
}

// UpsertRateRequest writes one or more calendar rows for a unit.
type UpsertRateRequest struct {
	Entries []RateEntryInput `json:"entries"`
}

// RateEntryInput is one calendar row in an upsert request.
type RateEntryInput struct {
	Date              string `json:"date"`
	Price             string `json:"price"`
	MinStayNights     int    `json:"min_stay_nights"`
	ClosedToArrival   bool   `json:"closed_to_arrival"`
	ClosedToDeparture bool   `json:"closed_to_departure"`
}

func toRateEntryDTO(e rates.Entry) RateEntryDTO {
	return RateEntryDTO{
		UnitID:            string(e.UnitID),
		Date:              e.Date.String(),
		Price:             toMoneyDTO(e.Price),
		MinStayNights:     e.MinStayNights,
		ClosedToArrival:   e.ClosedToArrival,
		ClosedToDeparture: e.ClosedToDeparture,
	}
}

// =============================================================================
// QUOTES
// =============================================================================

// QuoteRequest asks for a priced, restriction-checked stay.
type QuoteRequest struct {
	UnitID   string `json:"unit_id"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

// QuoteDTO is the total price with per-night breakdown.
type QuoteDTO struct {
	UnitID   string          `json:"unit_id"`
	CheckIn  string          `json:"check_in"`
	CheckOut string          `json:"check_out"`
	Nights   int             `json:"nights"`
	Total    MoneyDTO        `json:"total"`
	PerNight []NightPriceDTO `json:"per_night"`
}

// NightPriceDTO is one night of a quote breakdown.
type NightPriceDTO struct {
	Date  string   `json:"date"`
	Price MoneyDTO `json:"price"`
}

func toQuoteDTO(q *rates.Quote) QuoteDTO {
	perNight := make([]NightPriceDTO, len(q.PerNight))
	for i, n := range q.PerNight {
		perNight[i] = NightPriceDTO{Date: n.Date.String(), Price: toMoneyDTO(n.Price)}
	}
	return QuoteDTO{
		UnitID:   string(q.UnitID),
		CheckIn:  q.Stay.CheckIn.String(),
		CheckOut: q.Stay.CheckOut.String(),
		Nights:   q.Stay.Nights(),
		Total:    toMoneyDTO(q.Total),
		PerNight: perNight,
	}
}

// =============================================================================
// PLANS
// =============================================================================

// PlanDTO represents a cancellation plan in API responses.
type PlanDTO struct {
	Config    factory.PlanJSON `json:"config"`
	CreatedAt string           `json:"created_at,omitempty"`
	UpdatedAt string           `json:"updated_at,omitempty"`
}

// CreatePlanRequest is the request to create a plan.
type CreatePlanRequest struct {
	Config factory.PlanJSON `json:"config"`
}

// =============================================================================
// BOOKINGS
// =============================================================================

// CreateBookingRequest is a guest/staff reservation request.
type CreateBookingRequest struct {
	UnitID   string `json:"unit_id"`
	GuestRef string `json:"guest_ref"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Quantity int    `json:"quantity"`
}

// BookingDTO represents a booking in API responses.
type BookingDTO struct {
	ID          string          `json:"id"`
	UnitID      string          `json:"unit_id"`
	GuestRef    string          `json:"guest_ref"`
	CheckIn     string          `json:"check_in"`
	CheckOut    string          `json:"check_out"`
	Quantity    int             `json:"quantity"`
	Status      string          `json:"status"`
	QuotedTotal MoneyDTO        `json:"quoted_total"`
	PerNight    []NightPriceDTO `json:"per_night"`
	Policy      SnapshotDTO     `json:"policy"`
	CreatedAt   string          `json:"created_at"`
	CancelledAt *string         `json:"cancelled_at,omitempty"`
}

// SnapshotDTO is the cancellation policy frozen onto a booking.
type SnapshotDTO struct {
	PlanID          string `json:"plan_id"`
	FreeCancelUntil string `json:"free_cancel_until"`
	PenaltyPercent  int    `json:"penalty_percent"`
	NonRefundable   bool   `json:"non_refundable"`
}

// RefundDTO is the computed refund entitlement after a cancellation.
type RefundDTO struct {
	BookingID      string   `json:"booking_id"`
	PaidAmount     MoneyDTO `json:"paid_amount"`
	RefundAmount   MoneyDTO `json:"refund_amount"`
	FullRefund     bool     `json:"full_refund"`
	PenaltyPercent int      `json:"penalty_percent"`
	EvaluatedAt    string   `json:"evaluated_at"`
}

// EventDTO is one entry of a booking's status-change feed.
type EventDTO struct {
	ID        string `json:"id"`
	BookingID string `json:"booking_id"`
	From      string `json:"from,omitempty"`
	To        string `json:"to"`
	Reason    string `json:"reason,omitempty"`
	At        string `json:"at"`
}

func toBookingDTO(b booking.Booking) BookingDTO {
	perNight := make([]NightPriceDTO, len(b.PerNight))
	for i, n := range b.PerNight {
		perNight[i] = NightPriceDTO{Date: n.Date.String(), Price: toMoneyDTO(n.Price)}
	}
	dto := BookingDTO{
		ID:          string(b.ID),
		UnitID:      string(b.UnitID),
		GuestRef:    string(b.GuestRef),
		CheckIn:     b.Stay.CheckIn.String(),
		CheckOut:    b.Stay.CheckOut.String(),
		Quantity:    int(b.Quantity),
		Status:      string(b.Status),
		QuotedTotal: toMoneyDTO(b.QuotedTotal),
		PerNight:    perNight,
		Policy: SnapshotDTO{
			PlanID:          string(b.PolicySnapshot.PlanID),
			FreeCancelUntil: formatDeadline(b.PolicySnapshot.FreeCancelUntil),
			PenaltyPercent:  b.PolicySnapshot.PenaltyPercent,
			NonRefundable:   b.PolicySnapshot.NonRefundable,
		},
		CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
	}
	if b.CancelledAt != nil {
		t := b.CancelledAt.UTC().Format(time.RFC3339)
		dto.CancelledAt = &t
	}
	return dto
}

func toRefundDTO(r *booking.RefundResult) RefundDTO {
	return RefundDTO{
		BookingID:      string(r.BookingID),
		PaidAmount:     toMoneyDTO(r.PaidAmount),
		RefundAmount:   toMoneyDTO(r.RefundAmount),
		FullRefund:     r.FullRefund,
		PenaltyPercent: r.PenaltyPercent,
		EvaluatedAt:    r.EvaluatedAt.UTC().Format(time.RFC3339),
	}
}

// formatDeadline renders the free-cancellation deadline; a zero deadline
// (no free window) renders as the empty string rather than year one.
func formatDeadline(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toEventDTO(e booking.Event) EventDTO {
	return EventDTO{
		ID:        e.ID,
		BookingID: string(e.BookingID),
		From:      string(e.From),
		To:        string(e.To),
		Reason:    e.Reason,
		At:        e.At.UTC().Format(time.RFC3339),
	}
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}
