package booking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/warp/booking-engine/booking"
	"github.com/warp/booking-engine/engine"
)

// =============================================================================
// REFUND EVALUATION
// =============================================================================

var deadline = time.Date(2026, 6, 8, 15, 0, 0, 0, time.UTC)

func flexibleSnapshot(penalty int) booking.PolicySnapshot {
	return booking.PolicySnapshot{
		PlanID:          "flexible",
		FreeCancelUntil: deadline,
		PenaltyPercent:  penalty,
	}
}

func TestEvaluateRefund_InsideFreeWindow_FullRefund(t *testing.T) {
	// GIVEN: A cancellation one hour before the free-cancel deadline
	// THEN: The full paid amount comes back, regardless of penalty config

	paid := engine.NewMoney("250.00", "EUR")
	result := booking.EvaluateRefund(deadline.Add(-time.Hour), flexibleSnapshot(50), "bk-1", paid)

	assert.True(t, result.FullRefund)
	assert.Equal(t, 0, result.PenaltyPercent)
	assert.True(t, result.RefundAmount.Equal(paid),
		"expected %s, got %s", paid, result.RefundAmount)
}

func TestEvaluateRefund_ExactlyAtDeadline_StillFree(t *testing.T) {
	// The free window is inclusive of its last instant.

	paid := engine.NewMoney("250.00", "EUR")
	result := booking.EvaluateRefund(deadline, flexibleSnapshot(50), "bk-1", paid)

	assert.True(t, result.FullRefund)
	assert.True(t, result.RefundAmount.Equal(paid))
}

func TestEvaluateRefund_AfterDeadline_PenaltyApplied(t *testing.T) {
	// GIVEN: A 50% penalty plan, cancelled after the window
	// THEN: Exactly half comes back

	paid := engine.NewMoney("100.00", "EUR")
	result := booking.EvaluateRefund(deadline.Add(time.Minute), flexibleSnapshot(50), "bk-1", paid)

	assert.False(t, result.FullRefund)
	assert.Equal(t, 50, result.PenaltyPercent)
	assert.True(t, result.RefundAmount.Equal(engine.NewMoney("50.00", "EUR")),
		"expected 50.00 EUR, got %s", result.RefundAmount)
}

func TestEvaluateRefund_BankersRounding(t *testing.T) {
	// Half-cent results round to the nearest even cent.

	cases := []struct {
		paid, want string
	}{
		{"0.25", "0.12"}, // 0.125 -> even neighbour 0.12
		{"0.75", "0.38"}, // 0.375 -> even neighbour 0.38
		{"100.01", "50.00"},
		{"100.03", "50.02"},
	}
	for _, tc := range cases {
		result := booking.EvaluateRefund(
			deadline.Add(time.Hour), flexibleSnapshot(50), "bk-1",
			engine.NewMoney(tc.paid, "EUR"))
		assert.True(t, result.RefundAmount.Equal(engine.NewMoney(tc.want, "EUR")),
			"paid %s: expected %s EUR, got %s", tc.paid, tc.want, result.RefundAmount)
	}
}

func TestEvaluateRefund_ZeroDecimalCurrency(t *testing.T) {
	// JPY has no minor units: refunds land on whole yen.

	paid := engine.NewMoney("10001", "JPY")
	result := booking.EvaluateRefund(deadline.Add(time.Hour), flexibleSnapshot(50), "bk-1", paid)

	// 5000.5 rounds to the even neighbour 5000.
	assert.True(t, result.RefundAmount.Equal(engine.NewMoney("5000", "JPY")),
		"expected 5000 JPY, got %s", result.RefundAmount)
}

func TestEvaluateRefund_NonRefundable_AfterWindow_Zero(t *testing.T) {
	snap := booking.PolicySnapshot{
		PlanID:          "saver",
		FreeCancelUntil: deadline,
		PenaltyPercent:  100,
		NonRefundable:   true,
	}

	result := booking.EvaluateRefund(deadline.Add(time.Second), snap, "bk-1", engine.NewMoney("88.00", "EUR"))

	assert.False(t, result.FullRefund)
	assert.Equal(t, 100, result.PenaltyPercent)
	assert.True(t, result.RefundAmount.IsZero())
	assert.Equal(t, engine.Currency("EUR"), result.RefundAmount.Currency)
}

func TestEvaluateRefund_NoFreeWindow_NeverFree(t *testing.T) {
	// GIVEN: A snapshot with a zero FreeCancelUntil (the plan offered no
	// free window)
	// WHEN: Cancelling arbitrarily far before arrival
	// THEN: The penalty rules apply; there is no open-ended free window

	paid := engine.NewMoney("88.00", "EUR")
	snap := booking.PolicySnapshot{
		PlanID:         "prepaid",
		PenaltyPercent: 100,
		NonRefundable:  true,
	}
	result := booking.EvaluateRefund(time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC), snap, "bk-1", paid)

	assert.False(t, result.FullRefund)
	assert.Equal(t, 100, result.PenaltyPercent)
	assert.True(t, result.RefundAmount.IsZero())
	assert.Equal(t, engine.Currency("EUR"), result.RefundAmount.Currency)
}

func TestEvaluateRefund_NoFreeWindow_PenaltyStillPartial(t *testing.T) {
	// A refundable plan without a free window charges its penalty from the
	// moment of booking.

	paid := engine.NewMoney("100.00", "EUR")
	snap := booking.PolicySnapshot{PlanID: "semi-flex", PenaltyPercent: 30}
	result := booking.EvaluateRefund(time.Date(2026, 6, 3, 0, 0, 0, 0, time.UTC), snap, "bk-1", paid)

	assert.False(t, result.FullRefund)
	assert.True(t, result.RefundAmount.Equal(engine.NewMoney("70.00", "EUR")),
		"expected 70.00 EUR, got %s", result.RefundAmount)
}

func TestEvaluateRefund_NonRefundable_InsideWindow_StillFree(t *testing.T) {
	// A non-refundable plan with a non-zero free window honours the window.

	snap := booking.PolicySnapshot{
		PlanID:          "saver",
		FreeCancelUntil: deadline,
		NonRefundable:   true,
	}

	result := booking.EvaluateRefund(deadline.Add(-time.Second), snap, "bk-1", engine.NewMoney("88.00", "EUR"))
	assert.True(t, result.FullRefund)
}

func TestEvaluateRefund_Deterministic(t *testing.T) {
	// Identical inputs always produce identical results.

	now := deadline.Add(3 * time.Hour)
	paid := engine.NewMoney("123.45", "EUR")

	first := booking.EvaluateRefund(now, flexibleSnapshot(30), "bk-9", paid)
	second := booking.EvaluateRefund(now, flexibleSnapshot(30), "bk-9", paid)

	assert.True(t, first.RefundAmount.Equal(second.RefundAmount))
	assert.Equal(t, first.FullRefund, second.FullRefund)
	assert.Equal(t, first.PenaltyPercent, second.PenaltyPercent)
	assert.Equal(t, first.EvaluatedAt, second.EvaluatedAt)
}
