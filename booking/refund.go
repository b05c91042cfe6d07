package booking

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/booking-engine/engine"
)

// =============================================================================
// REFUND EVALUATION - Pure function of (now, snapshot, paid)
// =============================================================================

// RefundResult is a computed entitlement, not a payment. Executing the
// actual monetary refund is the payment collaborator's job.
type RefundResult struct {
	BookingID    engine.BookingID
	PaidAmount   engine.Money
	RefundAmount engine.Money

	// FullRefund is true when the cancellation fell inside the free window.
	FullRefund bool

	// PenaltyPercent applied; 0 for full refunds, 100 for non-refundable.
	PenaltyPercent int

	EvaluatedAt time.Time
}

// EvaluateRefund computes the refund entitlement for a cancellation at
// `now`. It is a pure function: identical inputs always produce identical
// results, and it never consults live plan configuration - only the
// booking's immutable snapshot.
//
// Rules, in order:
//  1. now <= FreeCancelUntil          -> full refund (skipped when the
//     snapshot carries no free window, i.e. a zero FreeCancelUntil)
//  2. NonRefundable                   -> zero
//  3. otherwise paid * (1 - penalty%) -> rounded to the currency's minor
//     units with banker's rounding
func EvaluateRefund(now time.Time, snap PolicySnapshot, bookingID engine.BookingID, paid engine.Money) RefundResult {
	result := RefundResult{
		BookingID:   bookingID,
		PaidAmount:  paid,
		EvaluatedAt: now,
	}

	if !snap.FreeCancelUntil.IsZero() && !now.After(snap.FreeCancelUntil) {
		result.RefundAmount = paid.RoundMinor()
		result.FullRefund = true
		return result
	}

	if snap.NonRefundable {
		result.RefundAmount = engine.ZeroMoney(paid.Currency)
		result.PenaltyPercent = 100
		return result
	}

	keep := decimal.NewFromInt(int64(100 - snap.PenaltyPercent)).
		Div(decimal.NewFromInt(100))
	result.RefundAmount = paid.Mul(keep).RoundMinor()
	result.PenaltyPercent = snap.PenaltyPercent
	return result
}
