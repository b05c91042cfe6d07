/*
Package rates implements the rate calendar: per-(unit, date) pricing and
stay restrictions.

PURPOSE:
  Read-mostly price and restriction lookup for the booking path, plus the
  idempotent management write used by property tooling. Booking never
  mutates rates; rates never touch the availability ledger.

KEY CONCEPTS:
  - Entry: One (unit, date) row - nightly price, min-stay, CTA/CTD flags
  - Default price fallback: Dates without an entry price at the unit's
    default nightly price; neither configured is an operator error
  - Quote: Total + per-night breakdown, restriction-checked

RESTRICTION EVALUATION:
  Restrictions bind at the stay's boundaries:
  - min-stay and closed-to-arrival are read from the CHECK-IN date's entry
  - closed-to-departure is read from the CHECK-OUT date's entry
  A violated restriction is returned as *RestrictionViolationError carrying
  the specific rule, never as a price.

EXAMPLE:
  cal := rates.NewCalendar(store, unitStore)
  quote, err := cal.Quote(ctx, "unit-1", stay)
  if errors.Is(err, engine.ErrRestrictionViolated) {
      // surface err.(*rates.RestrictionViolationError).Restriction.Describe()
  }

SEE ALSO:
  - restrictions.go: The tagged restriction variants
  - booking/coordinator.go: Quotes before reserving
*/
package rates

import (
	"context"
	"fmt"

	"github.com/warp/booking-engine/engine"
)

// =============================================================================
// ENTRY - One (unit, date) rate calendar row
// =============================================================================

// Entry is the rate calendar row for a unit on a date. Exactly one entry
// exists per (unit, date); Upsert replaces in place.
type Entry struct {
	UnitID engine.UnitID
	Date   engine.Date
	Price  engine.Money

	// MinStayNights >= 1. 1 means unrestricted.
	MinStayNights int

	ClosedToArrival   bool
	ClosedToDeparture bool
}

// RateStore persists calendar entries.
type RateStore interface {
	// GetEntries returns existing entries for the unit covering
	// [stay.CheckIn, stay.CheckOut] INCLUSIVE of the check-out date, which
	// carries the closed-to-departure flag even though it is not priced.
	GetEntries(ctx context.Context, unitID engine.UnitID, stay engine.StayRange) ([]Entry, error)

	// UpsertEntry writes the single entry for (unit, date). Idempotent.
	UpsertEntry(ctx context.Context, entry Entry) error
}

// =============================================================================
// QUOTE - Priced, restriction-checked stay
// =============================================================================

type NightPrice struct {
	Date  engine.Date
	Price engine.Money
}

// Quote is the total price for a stay with its per-night breakdown. A quote
// is only ever produced for a stay that passes all restrictions.
type Quote struct {
	UnitID   engine.UnitID
	Stay     engine.StayRange
	Total    engine.Money
	PerNight []NightPrice
}

// =============================================================================
// CALENDAR
// =============================================================================

type Calendar struct {
	Store RateStore
	Units engine.UnitStore
}

func NewCalendar(store RateStore, units engine.UnitStore) *Calendar {
	return &Calendar{Store: store, Units: units}
}

// Price returns the nightly price for one date: the calendar entry if one
// exists, else the unit's default price, else a ConfigurationError.
func (c *Calendar) Price(ctx context.Context, unitID engine.UnitID, date engine.Date) (engine.Money, error) {
	unit, err := c.unit(ctx, unitID)
	if err != nil {
		return engine.Money{}, err
	}

	oneNight := engine.StayRange{CheckIn: date, CheckOut: date.AddDays(1)}
	entries, err := c.Store.GetEntries(ctx, unitID, oneNight)
	if err != nil {
		return engine.Money{}, fmt.Errorf("failed to load rate entries: %w", err)
	}
	for _, e := range entries {
		if e.Date.Equal(date) {
			return e.Price, nil
		}
	}
	return c.fallback(unit, date)
}

// Quote prices the whole stay and validates boundary restrictions. On a
// violated restriction it returns a *RestrictionViolationError, not a price.
func (c *Calendar) Quote(ctx context.Context, unitID engine.UnitID, stay engine.StayRange) (*Quote, error) {
	unit, err := c.unit(ctx, unitID)
	if err != nil {
		return nil, err
	}

	entries, err := c.Store.GetEntries(ctx, unitID, stay)
	if err != nil {
		return nil, fmt.Errorf("failed to load rate entries: %w", err)
	}
	byDate := make(map[engine.Date]Entry, len(entries))
	for _, e := range entries {
		byDate[e.Date] = e
	}

	if err := c.checkRestrictions(unitID, stay, byDate); err != nil {
		return nil, err
	}

	quote := &Quote{
		UnitID: unitID,
		Stay:   stay,
		Total:  engine.ZeroMoney(unit.PricingCurrency),
	}
	for _, date := range stay.Dates() {
		var price engine.Money
		if entry, ok := byDate[date]; ok {
			price = entry.Price
		} else {
			price, err = c.fallback(unit, date)
			if err != nil {
				return nil, err
			}
		}
		quote.PerNight = append(quote.PerNight, NightPrice{Date: date, Price: price})
		quote.Total = quote.Total.Add(price)
	}
	return quote, nil
}

func (c *Calendar) checkRestrictions(unitID engine.UnitID, stay engine.StayRange, byDate map[engine.Date]Entry) error {
	if arrival, ok := byDate[stay.CheckIn]; ok {
		if arrival.ClosedToArrival {
			return &RestrictionViolationError{
				UnitID:      unitID,
				Date:        stay.CheckIn,
				Restriction: Restriction{Kind: ClosedToArrival},
			}
		}
		if arrival.MinStayNights > 1 && stay.Nights() < arrival.MinStayNights {
			return &RestrictionViolationError{
				UnitID:      unitID,
				Date:        stay.CheckIn,
				Restriction: Restriction{Kind: MinStay, MinNights: arrival.MinStayNights},
			}
		}
	}
	if departure, ok := byDate[stay.CheckOut]; ok && departure.ClosedToDeparture {
		return &RestrictionViolationError{
			UnitID:      unitID,
			Date:        stay.CheckOut,
			Restriction: Restriction{Kind: ClosedToDeparture},
		}
	}
	return nil
}

// Upsert validates and writes one calendar entry. Management path only:
// nothing on the booking path ever calls this.
func (c *Calendar) Upsert(ctx context.Context, entry Entry) error {
	unit, err := c.unit(ctx, entry.UnitID)
	if err != nil {
		return err
	}
	if entry.Price.Currency != unit.PricingCurrency {
		return fmt.Errorf("entry currency %s does not match unit currency %s",
			entry.Price.Currency, unit.PricingCurrency)
	}
	if entry.Price.IsNegative() {
		return fmt.Errorf("price must not be negative, got %s", entry.Price)
	}
	if entry.MinStayNights < 1 {
		entry.MinStayNights = 1
	}
	return c.Store.UpsertEntry(ctx, entry)
}

func (c *Calendar) unit(ctx context.Context, unitID engine.UnitID) (*engine.InventoryUnit, error) {
	unit, err := c.Units.GetUnit(ctx, unitID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unit %s: %w", unitID, err)
	}
	if unit == nil || !unit.Active {
		return nil, fmt.Errorf("unit %s: %w", unitID, engine.ErrUnitNotFound)
	}
	return unit, nil
}

func (c *Calendar) fallback(unit *engine.InventoryUnit, date engine.Date) (engine.Money, error) {
	if unit.DefaultPrice == nil {
		return engine.Money{}, &engine.ConfigurationError{
			UnitID: unit.ID,
			Date:   date,
			Detail: "no rate entry and no default price",
		}
	}
	return *unit.DefaultPrice, nil
}
