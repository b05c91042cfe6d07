/*
Package factory provides JSON to Go rate-plan conversion.

PURPOSE:
  Converts JSON plan definitions into booking.Plan values. This enables
  plan configuration without code changes - property managers can define
  cancellation terms in JSON, and the factory creates the proper Go structs.

JSON SCHEMA:
  {
    "id": "flex-48h",
    "name": "Flexible (48h)",
    "free_cancel_hours_before_check_in": 48,
    "penalty_percent": 50,
    "non_refundable": false
  }

KEY FEATURES:
  - Validates bounds (penalty 0-100, non-negative windows)
  - Sets sensible defaults
  - Round-trips: plans are stored as their config JSON

USAGE:
  f := factory.NewPlanFactory()
  plan, err := f.ParsePlan(jsonString)

SEE ALSO:
  - booking/policy.go: Plan and PolicySnapshot types
  - api/handlers.go: /api/plans endpoints
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a cancellation plan.
type PlanJSON struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	FreeCancelHoursBefore int    `json:"free_cancel_hours_before_check_in"`
	PenaltyPercent        int    `json:"penalty_percent"`
	NonRefundable         bool   `json:"non_refundable"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

type PlanFactory struct{}

func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// ParsePlan converts a JSON plan definition into a booking.Plan.
func (f *PlanFactory) ParsePlan(jsonStr string) (*booking.Plan, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("invalid plan JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts an already-decoded PlanJSON into a booking.Plan.
func (f *PlanFactory) FromJSON(pj PlanJSON) (*booking.Plan, error) {
	if pj.ID == "" {
		return nil, fmt.Errorf("plan id is required")
	}
	if pj.Name == "" {
		pj.Name = pj.ID
	}

	plan := &booking.Plan{
		ID:                           engine.PlanID(pj.ID),
		Name:                         pj.Name,
		FreeCancelHoursBeforeCheckIn: pj.FreeCancelHoursBefore,
		PenaltyPercent:               pj.PenaltyPercent,
		NonRefundable:                pj.NonRefundable,
		CreatedAt:                    time.Now().UTC(),
		UpdatedAt:                    time.Now().UTC(),
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

// ToJSON serializes a plan back to its config JSON (for storage and API).
func (f *PlanFactory) ToJSON(p booking.Plan) PlanJSON {
	return PlanJSON{
		ID:                    string(p.ID),
		Name:                  p.Name,
		FreeCancelHoursBefore: p.FreeCancelHoursBeforeCheckIn,
		PenaltyPercent:        p.PenaltyPercent,
		NonRefundable:         p.NonRefundable,
	}
}

// =============================================================================
// PRESETS - Common hospitality plans
// =============================================================================

// FlexiblePlanJSON builds the config for a classic free-until plan.
func FlexiblePlanJSON(id, name string, freeHours, penaltyPercent int) string {
	b, _ := json.Marshal(PlanJSON{
		ID:                    id,
		Name:                  name,
		FreeCancelHoursBefore: freeHours,
		PenaltyPercent:        penaltyPercent,
	})
	return string(b)
}

// NonRefundablePlanJSON builds the config for a saver/non-refundable plan.
func NonRefundablePlanJSON(id, name string) string {
	b, _ := json.Marshal(PlanJSON{ID: id, Name: name, NonRefundable: true, PenaltyPercent: 100})
	return string(b)
}
